package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/tender-radar/internal/tender"
)

// Memory is an in-memory TenderStore and RunLog, used in tests and for
// dry-running the pipeline without a database.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]map[string]tender.Tender
	inserts map[string]map[string]int // insertion order per collection
	seq     int
	runs    []Run
}

func NewMemory() *Memory {
	m := &Memory{
		docs:    make(map[string]map[string]tender.Tender),
		inserts: make(map[string]map[string]int),
	}
	for _, c := range Collections {
		m.docs[c] = make(map[string]tender.Tender)
		m.inserts[c] = make(map[string]int)
	}
	return m
}

func (m *Memory) collection(name string) (map[string]tender.Tender, error) {
	docs, ok := m.docs[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return docs, nil
}

func (m *Memory) Exists(ctx context.Context, collection, noticeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.collection(collection)
	if err != nil {
		return false, err
	}
	_, found := docs[noticeID]
	return found, nil
}

func (m *Memory) Put(ctx context.Context, collection string, t tender.Tender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.collection(collection)
	if err != nil {
		return err
	}
	if _, exists := docs[t.NoticeID]; exists {
		return nil // create-if-absent
	}
	docs[t.NoticeID] = t
	m.seq++
	m.inserts[collection][t.NoticeID] = m.seq
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, noticeID string) (*tender.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	t, found := docs[noticeID]
	if !found {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]tender.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	out := make([]tender.Tender, 0, len(docs))
	for _, t := range docs {
		out = append(out, t)
	}
	order := m.inserts[collection]
	sort.Slice(out, func(i, j int) bool {
		return order[out[i].NoticeID] > order[out[j].NoticeID]
	})
	return out, nil
}

func (m *Memory) UpdateTranslation(ctx context.Context, collection, noticeID, titleEN, descriptionEN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.collection(collection)
	if err != nil {
		return err
	}
	t, found := docs[noticeID]
	if !found {
		return ErrNotFound
	}
	t.TitleEN = titleEN
	t.DescriptionEN = descriptionEN
	docs[noticeID] = t
	return nil
}

func (m *Memory) Move(ctx context.Context, noticeID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := m.collection(from)
	if err != nil {
		return err
	}
	dst, err := m.collection(to)
	if err != nil {
		return err
	}
	t, found := src[noticeID]
	if !found {
		return ErrNotFound
	}
	dst[noticeID] = t
	m.seq++
	m.inserts[to][noticeID] = m.seq
	delete(src, noticeID)
	delete(m.inserts[from], noticeID)
	return nil
}

func (m *Memory) StartRun(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := Run{
		ID:        uuid.New().String(),
		Query:     query,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *Memory) FinishRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			now := time.Now()
			run.StartedAt = m.runs[i].StartedAt
			run.Query = m.runs[i].Query
			if run.CompletedAt == nil {
				run.CompletedAt = &now
			}
			m.runs[i] = run
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Run, len(m.runs))
	copy(out, m.runs)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
