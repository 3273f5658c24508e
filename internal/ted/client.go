// Package ted talks to the TED notice search service: it builds expert-query
// strings from a search config, posts them, and decodes the returned notice
// summaries.
package ted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/david/tender-radar/internal/config"
)

// DefaultBaseURL is the production notice search endpoint.
const DefaultBaseURL = "https://api.ted.europa.eu/v3/notices/search"

// NoticeSummary is the lightweight per-result object from the search API,
// distinct from the full XML notice body.
type NoticeSummary struct {
	PublicationNumber string            `json:"publication-number"`
	Links             NoticeLinks       `json:"links"`
	DeadlineReceipt   []string          `json:"deadline-receipt-request"`
	ClassificationCPV []string          `json:"classification-cpv"`
}

// NoticeLinks maps document format to language to URL.
type NoticeLinks struct {
	XML map[string]string `json:"xml"`
}

// XMLURL picks the URL of the full notice body: the multilingual variant when
// present, otherwise the first language variant in sorted key order so the
// choice is deterministic. Returns "" when the summary carries no XML link.
func (n NoticeSummary) XMLURL() string {
	if len(n.Links.XML) == 0 {
		return ""
	}
	if url, ok := n.Links.XML["MUL"]; ok && url != "" {
		return url
	}
	langs := make([]string, 0, len(n.Links.XML))
	for lang := range n.Links.XML {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if url := n.Links.XML[lang]; url != "" {
			return url
		}
	}
	return ""
}

// FirstDeadline returns the first API-supplied deadline timestamp, or "".
func (n NoticeSummary) FirstDeadline() string {
	if len(n.DeadlineReceipt) == 0 {
		return ""
	}
	return n.DeadlineReceipt[0]
}

// SearchResult carries one page of summaries plus the service's own total
// match count, which may exceed the requested page size.
type SearchResult struct {
	Notices        []NoticeSummary
	TotalAvailable int
}

type searchResponse struct {
	Notices          []NoticeSummary `json:"notices"`
	TotalNoticeCount int             `json:"totalNoticeCount"`
}

// Client queries the notice search service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Monitored  []config.MonitoredCategory

	// Now is overridable in tests to pin the date window clause.
	Now func() time.Time
}

func NewClient(baseURL string, monitored []config.MonitoredCategory) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Monitored:  monitored,
		Now:        time.Now,
	}
}

// QueryString renders the expert query that Search would post for cfg. The
// run log stores it so operators can replay a run by hand.
func (c *Client) QueryString(cfg SearchConfig) string {
	return BuildQuery(cfg, c.Monitored, c.Now())
}

// Search posts the query built from cfg and decodes the response. A transport
// failure or non-200 status is fatal for the whole search; there is no retry.
func (c *Client) Search(ctx context.Context, cfg SearchConfig) (*SearchResult, error) {
	payload := BuildRequest(cfg, c.Monitored, c.Now())

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, string(msg))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return &SearchResult{
		Notices:        decoded.Notices,
		TotalAvailable: decoded.TotalNoticeCount,
	}, nil
}
