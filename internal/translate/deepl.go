// Package translate provides on-demand English translation of tender titles
// and descriptions, cached on the stored document so each notice is only
// translated once.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/david/tender-radar/internal/store"
	"github.com/david/tender-radar/internal/tender"
)

// DefaultBaseURL is the DeepL free-tier endpoint.
const DefaultBaseURL = "https://api-free.deepl.com/v2/translate"

// Translator turns a batch of texts into English.
type Translator interface {
	Translate(ctx context.Context, texts []string) ([]string, error)
}

// DeepL calls the DeepL v2 translate endpoint.
type DeepL struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewDeepL(apiKey string) *DeepL {
	return &DeepL{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
}

type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Translate sends the batch in one request and returns translations in input
// order.
func (d *DeepL) Translate(ctx context.Context, texts []string) ([]string, error) {
	if d.APIKey == "" {
		return nil, fmt.Errorf("translation is not configured: missing API key")
	}

	body, err := json.Marshal(deeplRequest{Text: texts, TargetLang: "EN"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("translation API returned %d: %s", resp.StatusCode, string(msg))
	}

	var decoded deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode translation response: %w", err)
	}
	if len(decoded.Translations) != len(texts) {
		return nil, fmt.Errorf("translation API returned %d results for %d texts", len(decoded.Translations), len(texts))
	}

	out := make([]string, len(decoded.Translations))
	for i, tr := range decoded.Translations {
		out[i] = tr.Text
	}
	return out, nil
}

// Service translates stored documents and caches the result on them.
type Service struct {
	Translator Translator
	Store      store.TenderStore
}

func NewService(translator Translator, st store.TenderStore) *Service {
	return &Service{Translator: translator, Store: st}
}

// EnsureEnglish returns the document with TitleEN and DescriptionEN filled,
// translating only when the cached fields are absent.
func (s *Service) EnsureEnglish(ctx context.Context, collection, noticeID string) (*tender.Tender, error) {
	doc, err := s.Store.Get(ctx, collection, noticeID)
	if err != nil {
		return nil, err
	}
	if doc.TitleEN != "" {
		return doc, nil
	}

	texts := []string{doc.Title}
	if doc.Description != "" {
		texts = append(texts, doc.Description)
	}

	translated, err := s.Translator.Translate(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to translate %s: %w", noticeID, err)
	}

	doc.TitleEN = translated[0]
	if len(translated) > 1 {
		doc.DescriptionEN = translated[1]
	}

	if err := s.Store.UpdateTranslation(ctx, collection, noticeID, doc.TitleEN, doc.DescriptionEN); err != nil {
		return nil, fmt.Errorf("failed to cache translation for %s: %w", noticeID, err)
	}
	return doc, nil
}
