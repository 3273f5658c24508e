package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/david/tender-radar/internal/config"
	"github.com/david/tender-radar/internal/store"
	"github.com/david/tender-radar/internal/ted"
	"github.com/david/tender-radar/internal/tender"
)

const noticeBodyTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<cn:ContractNotice xmlns:cn="urn:oasis:names:specification:ubl:schema:xsd:ContractNotice-2"
	xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	xmlns:ext="urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	xmlns:efext="http://data.europa.eu/p27/eforms-ubl-extensions/1"
	xmlns:efac="http://data.europa.eu/p27/eforms-ubl-extension-aggregate-components/1"
	xmlns:efbc="http://data.europa.eu/p27/eforms-ubl-extension-basic-components/1">
	<ext:UBLExtensions>
		<ext:UBLExtension>
			<ext:ExtensionContent>
				<efext:EformsExtension>
					<efac:Publication>
						<efbc:NoticePublicationID>%s</efbc:NoticePublicationID>
					</efac:Publication>
				</efext:EformsExtension>
			</ext:ExtensionContent>
		</ext:UBLExtension>
	</ext:UBLExtensions>
	<cac:ProcurementProject>
		<cbc:Name>Test procurement</cbc:Name>
	</cac:ProcurementProject>
</cn:ContractNotice>`

// noticeWithoutID is a well-formed notice whose publication ID cannot be
// resolved, so normalization yields the sentinel.
const noticeWithoutID = `<?xml version="1.0" encoding="UTF-8"?>
<cn:ContractNotice xmlns:cn="urn:oasis:names:specification:ubl:schema:xsd:ContractNotice-2"
	xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
	<cbc:IssueDate>2025-03-01</cbc:IssueDate>
</cn:ContractNotice>`

type fakeSearcher struct {
	result *ted.SearchResult
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, cfg ted.SearchConfig) (*ted.SearchResult, error) {
	return f.result, f.err
}

// xmlServer serves one notice body per path and counts requests.
func xmlServer(t *testing.T, bodies map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.Error(w, "not here", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func summary(publicationNumber, xmlURL string) ted.NoticeSummary {
	s := ted.NoticeSummary{PublicationNumber: publicationNumber}
	if xmlURL != "" {
		s.Links.XML = map[string]string{"MUL": xmlURL}
	}
	return s
}

func testPipeline(t *testing.T, searcher Searcher) (*Pipeline, *store.Memory) {
	t.Helper()
	tables, err := config.Load("")
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	n := tender.NewNormalizer(tables)
	n.Now = func() time.Time { return time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC) }

	mem := store.NewMemory()
	return NewPipeline(searcher, NewXMLFetcher(), mem, mem, n), mem
}

func TestIngestBatchContinuesPastFailures(t *testing.T) {
	srv, _ := xmlServer(t, map[string]string{
		"/1.xml": fmt.Sprintf(noticeBodyTemplate, "00111111-2025"),
		"/3.xml": fmt.Sprintf(noticeBodyTemplate, "00333333-2025"),
	})

	searcher := &fakeSearcher{result: &ted.SearchResult{
		Notices: []ted.NoticeSummary{
			summary("00111111-2025", srv.URL+"/1.xml"),
			summary("00222222-2025", srv.URL+"/2.xml"), // server answers 500
			summary("00333333-2025", srv.URL+"/3.xml"),
		},
		TotalAvailable: 42,
	}}
	p, mem := testPipeline(t, searcher)

	report, err := p.Ingest(context.Background(), ted.SearchConfig{})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if report.Saved != 2 || report.Errors != 1 || report.Duplicates != 0 || report.Skipped != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if got := report.Saved + report.Duplicates + report.Skipped + report.Errors; got != 3 {
		t.Errorf("outcome counts must add up to batch size, got %d", got)
	}
	if report.TotalAvailable != 42 {
		t.Errorf("expected total from search result, got %d", report.TotalAvailable)
	}

	for _, id := range []string{"111111-2025", "333333-2025"} {
		if _, err := mem.Get(context.Background(), tender.CollectionUnresolved, id); err != nil {
			t.Errorf("expected %s saved to unresolved, got %v", id, err)
		}
	}
	if report.Outcomes[1].Status != StatusError || !strings.Contains(report.Outcomes[1].Reason, "fetch failed") {
		t.Errorf("expected fetch failure outcome for middle notice, got %+v", report.Outcomes[1])
	}
}

func TestIngestDuplicateSkipsFetch(t *testing.T) {
	srv, hits := xmlServer(t, map[string]string{
		"/dup.xml": fmt.Sprintf(noticeBodyTemplate, "00777777-2025"),
	})

	searcher := &fakeSearcher{result: &ted.SearchResult{
		Notices: []ted.NoticeSummary{summary("00777777-2025", srv.URL+"/dup.xml")},
	}}
	p, mem := testPipeline(t, searcher)

	// Already triaged into discarded; any collection must block re-ingestion.
	if err := mem.Put(context.Background(), tender.CollectionDiscarded, tender.Tender{NoticeID: "777777-2025"}); err != nil {
		t.Fatalf("seed put failed: %v", err)
	}

	report, err := p.Ingest(context.Background(), ted.SearchConfig{})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if report.Duplicates != 1 || report.Saved != 0 {
		t.Errorf("expected one duplicate, got %+v", report)
	}
	if hits.Load() != 0 {
		t.Errorf("duplicate must not trigger an XML fetch, got %d fetches", hits.Load())
	}
}

func TestIngestSkipsNoticeWithoutXMLLink(t *testing.T) {
	searcher := &fakeSearcher{result: &ted.SearchResult{
		Notices: []ted.NoticeSummary{summary("00444444-2025", "")},
	}}
	p, _ := testPipeline(t, searcher)

	report, err := p.Ingest(context.Background(), ted.SearchConfig{})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if report.Skipped != 1 {
		t.Errorf("expected one skip, got %+v", report)
	}
	if report.Outcomes[0].Reason != "no XML link" {
		t.Errorf("unexpected skip reason %q", report.Outcomes[0].Reason)
	}
}

func TestIngestUnresolvableIDIsError(t *testing.T) {
	srv, _ := xmlServer(t, map[string]string{"/noid.xml": noticeWithoutID})

	searcher := &fakeSearcher{result: &ted.SearchResult{
		Notices: []ted.NoticeSummary{summary("00555555-2025", srv.URL+"/noid.xml")},
	}}
	p, mem := testPipeline(t, searcher)

	report, err := p.Ingest(context.Background(), ted.SearchConfig{})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if report.Errors != 1 || report.Saved != 0 {
		t.Errorf("expected error outcome for unresolvable ID, got %+v", report)
	}
	if report.Outcomes[0].Reason != "parsing failed" {
		t.Errorf("unexpected reason %q", report.Outcomes[0].Reason)
	}
	list, err := mem.List(context.Background(), tender.CollectionUnresolved)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("nothing must be stored for an unresolvable ID, got %d documents", len(list))
	}
}

func TestIngestIsIdempotentAcrossRuns(t *testing.T) {
	srv, _ := xmlServer(t, map[string]string{
		"/a.xml": fmt.Sprintf(noticeBodyTemplate, "00100001-2025"),
		"/b.xml": fmt.Sprintf(noticeBodyTemplate, "00100002-2025"),
	})

	searcher := &fakeSearcher{result: &ted.SearchResult{
		Notices: []ted.NoticeSummary{
			summary("00100001-2025", srv.URL+"/a.xml"),
			summary("00100002-2025", srv.URL+"/b.xml"),
		},
	}}
	p, _ := testPipeline(t, searcher)

	first, err := p.Ingest(context.Background(), ted.SearchConfig{})
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if first.Saved != 2 {
		t.Fatalf("expected 2 saved on first run, got %+v", first)
	}

	second, err := p.Ingest(context.Background(), ted.SearchConfig{})
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if second.Saved != 0 || second.Duplicates != 2 {
		t.Errorf("second run must report duplicates only, got %+v", second)
	}
}

func TestIngestRecordsRun(t *testing.T) {
	srv, _ := xmlServer(t, map[string]string{
		"/a.xml": fmt.Sprintf(noticeBodyTemplate, "00200001-2025"),
	})

	searcher := &fakeSearcher{result: &ted.SearchResult{
		Notices:        []ted.NoticeSummary{summary("00200001-2025", srv.URL+"/a.xml")},
		TotalAvailable: 9,
	}}
	p, mem := testPipeline(t, searcher)
	p.Query = func(cfg ted.SearchConfig) string { return "ND=200001-2025" }

	report, err := p.Ingest(context.Background(), ted.SearchConfig{NoticeID: "200001-2025"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.RunID == "" {
		t.Fatal("expected a run ID on the report")
	}

	runs, err := mem.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent runs failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != "completed" || run.Saved != 1 || run.TotalAvailable != 9 {
		t.Errorf("unexpected run record: %+v", run)
	}
	if run.Query != "ND=200001-2025" {
		t.Errorf("expected query recorded, got %q", run.Query)
	}
}

func TestIngestSearchFailureMarksRunFailed(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("boom")}
	p, mem := testPipeline(t, searcher)

	if _, err := p.Ingest(context.Background(), ted.SearchConfig{}); err == nil {
		t.Fatal("expected an error when the search itself fails")
	}

	runs, err := mem.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "failed" {
		t.Errorf("expected a failed run record, got %+v", runs)
	}
}
