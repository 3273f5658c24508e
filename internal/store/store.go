// Package store persists Tender documents across the three triage
// collections. The backing engine is treated as an abstract document store:
// a document's identity is its NoticeID within a collection, and the only
// write invariant is "never double-write the same ID".
package store

import (
	"context"
	"errors"
	"time"

	"github.com/david/tender-radar/internal/tender"
)

// ErrNotFound is returned by Get when no document exists under the ID.
var ErrNotFound = errors.New("document not found")

// Collections lists the triage collections in dedup-check order. The order is
// fixed: unresolved first, then resolved, then discarded.
var Collections = []string{
	tender.CollectionUnresolved,
	tender.CollectionResolved,
	tender.CollectionDiscarded,
}

// TenderStore is the document store the pipeline writes into.
type TenderStore interface {
	// Exists reports whether a document is present under the ID.
	Exists(ctx context.Context, collection, noticeID string) (bool, error)
	// Put writes the tender keyed by its NoticeID. The write is
	// create-if-absent: an existing document under the same key is left
	// untouched, so a concurrent ingestion run cannot double-write.
	Put(ctx context.Context, collection string, t tender.Tender) error
	// Get loads a document, or ErrNotFound.
	Get(ctx context.Context, collection, noticeID string) (*tender.Tender, error)
	// List returns every document in a collection, newest first.
	List(ctx context.Context, collection string) ([]tender.Tender, error)
	// UpdateTranslation stores cached translation fields on a document.
	UpdateTranslation(ctx context.Context, collection, noticeID, titleEN, descriptionEN string) error
	// Move relocates a document between collections, deleting the source.
	Move(ctx context.Context, noticeID, from, to string) error
}

// ExistsAny checks the three collections in their fixed order and reports the
// first hit. Used by the dedup pre-check before any XML fetch happens.
func ExistsAny(ctx context.Context, s TenderStore, noticeID string) (bool, error) {
	for _, collection := range Collections {
		found, err := s.Exists(ctx, collection, noticeID)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// Run is one recorded ingestion invocation.
type Run struct {
	ID             string     `json:"id"`
	Query          string     `json:"query"`
	Status         string     `json:"status"` // running, completed, failed
	Saved          int        `json:"saved"`
	Duplicates     int        `json:"duplicates"`
	Skipped        int        `json:"skipped"`
	Errors         int        `json:"errors"`
	TotalAvailable int        `json:"total_available"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunLog records ingestion runs for the operator tooling.
type RunLog interface {
	StartRun(ctx context.Context, query string) (string, error)
	FinishRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}
