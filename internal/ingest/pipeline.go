// Package ingest runs the search-fetch-normalize-store loop. A run is
// batch-shaped: every notice in the page gets exactly one outcome, and a bad
// item never aborts the rest of the batch.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/david/tender-radar/internal/store"
	"github.com/david/tender-radar/internal/ted"
	"github.com/david/tender-radar/internal/tender"
)

// Per-item outcome statuses.
const (
	StatusSaved     = "saved"
	StatusDuplicate = "duplicate"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// Outcome is the result for a single notice in a batch.
type Outcome struct {
	NoticeID string `json:"noticeId"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Report aggregates a whole run. Saved + Duplicates + Skipped + Errors always
// equals the number of notices in the processed page.
type Report struct {
	RunID          string    `json:"runId,omitempty"`
	Query          string    `json:"query"`
	Saved          int       `json:"saved"`
	Duplicates     int       `json:"duplicates"`
	Skipped        int       `json:"skipped"`
	Errors         int       `json:"errors"`
	TotalAvailable int       `json:"totalAvailable"`
	Outcomes       []Outcome `json:"outcomes"`
}

// Searcher is the slice of the TED client the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, cfg ted.SearchConfig) (*ted.SearchResult, error)
}

// Pipeline wires search, fetch, normalization and storage together.
type Pipeline struct {
	Searcher   Searcher
	Fetcher    Fetcher
	Store      store.TenderStore
	Runs       store.RunLog // optional
	Normalizer *tender.Normalizer
	Query      func(cfg ted.SearchConfig) string
}

func NewPipeline(searcher Searcher, fetcher Fetcher, st store.TenderStore, runs store.RunLog, n *tender.Normalizer) *Pipeline {
	return &Pipeline{
		Searcher:   searcher,
		Fetcher:    fetcher,
		Store:      st,
		Runs:       runs,
		Normalizer: n,
	}
}

// Ingest runs one search page end to end. The returned error covers only
// run-level failures (the search call itself); per-item problems are folded
// into the report.
func (p *Pipeline) Ingest(ctx context.Context, cfg ted.SearchConfig) (*Report, error) {
	report := &Report{Query: p.queryFor(cfg)}

	if p.Runs != nil {
		runID, err := p.Runs.StartRun(ctx, report.Query)
		if err != nil {
			return nil, fmt.Errorf("failed to record run start: %w", err)
		}
		report.RunID = runID
	}

	result, err := p.Searcher.Search(ctx, cfg)
	if err != nil {
		p.finishRun(ctx, report, "failed")
		return nil, fmt.Errorf("search failed: %w", err)
	}
	report.TotalAvailable = result.TotalAvailable
	log.Printf("Search returned %d notices (%d available total)", len(result.Notices), result.TotalAvailable)

	for _, notice := range result.Notices {
		outcome := p.IngestOne(ctx, notice)
		report.Outcomes = append(report.Outcomes, outcome)
		switch outcome.Status {
		case StatusSaved:
			report.Saved++
		case StatusDuplicate:
			report.Duplicates++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Errors++
			log.Printf("Notice %s failed: %s", outcome.NoticeID, outcome.Reason)
		}
	}

	status := "completed"
	if report.Errors > 0 && report.Saved == 0 && len(result.Notices) > 0 {
		status = "failed"
	}
	p.finishRun(ctx, report, status)

	log.Printf("Ingestion done: %d saved, %d duplicates, %d skipped, %d errors",
		report.Saved, report.Duplicates, report.Skipped, report.Errors)
	return report, nil
}

// IngestOne processes a single notice summary: dedup check, XML fetch,
// normalization, and the create-if-absent write into the unresolved
// collection.
func (p *Pipeline) IngestOne(ctx context.Context, notice ted.NoticeSummary) Outcome {
	// The summary's publication number carries leading zeros that the stored
	// NoticeID does not, so strip them before the existence check.
	id := strings.TrimLeft(strings.TrimSpace(notice.PublicationNumber), "0")

	if id != "" {
		found, err := store.ExistsAny(ctx, p.Store, id)
		if err != nil {
			return Outcome{NoticeID: id, Status: StatusError, Reason: fmt.Sprintf("dedup check failed: %v", err)}
		}
		if found {
			return Outcome{NoticeID: id, Status: StatusDuplicate}
		}
	}

	xmlURL := notice.XMLURL()
	if xmlURL == "" {
		return Outcome{NoticeID: id, Status: StatusSkipped, Reason: "no XML link"}
	}

	body, err := p.Fetcher.Fetch(ctx, xmlURL)
	if err != nil {
		return Outcome{NoticeID: id, Status: StatusError, Reason: fmt.Sprintf("fetch failed: %v", err)}
	}

	t, err := p.Normalizer.Normalize(body, tender.NormalizeOptions{
		APIDeadline: notice.FirstDeadline(),
		APICodes:    notice.ClassificationCPV,
		APINoticeID: notice.PublicationNumber,
	})
	if err != nil {
		return Outcome{NoticeID: id, Status: StatusError, Reason: fmt.Sprintf("normalization failed: %v", err)}
	}
	if !t.Parseable() {
		return Outcome{NoticeID: id, Status: StatusError, Reason: "parsing failed"}
	}

	if err := p.Store.Put(ctx, tender.CollectionUnresolved, t); err != nil {
		return Outcome{NoticeID: t.NoticeID, Status: StatusError, Reason: fmt.Sprintf("store write failed: %v", err)}
	}
	return Outcome{NoticeID: t.NoticeID, Status: StatusSaved}
}

func (p *Pipeline) queryFor(cfg ted.SearchConfig) string {
	if p.Query != nil {
		return p.Query(cfg)
	}
	return ""
}

func (p *Pipeline) finishRun(ctx context.Context, report *Report, status string) {
	if p.Runs == nil || report.RunID == "" {
		return
	}
	err := p.Runs.FinishRun(ctx, store.Run{
		ID:             report.RunID,
		Status:         status,
		Saved:          report.Saved,
		Duplicates:     report.Duplicates,
		Skipped:        report.Skipped,
		Errors:         report.Errors,
		TotalAvailable: report.TotalAvailable,
	})
	if err != nil {
		log.Printf("Failed to record run %s: %v", report.RunID, err)
	}
}
