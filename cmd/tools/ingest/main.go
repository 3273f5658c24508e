package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/tender-radar/internal/config"
	"github.com/david/tender-radar/internal/ingest"
	"github.com/david/tender-radar/internal/store"
	"github.com/david/tender-radar/internal/ted"
	"github.com/david/tender-radar/internal/tender"
)

func main() {
	query := flag.String("query", "", "Free-text search term")
	cpv := flag.String("cpv", "", "Explicit CPV code to search for")
	days := flag.Int("days", 0, "Publication date window in days (0 disables the date clause)")
	limit := flag.Int("limit", ted.DefaultLimit, "Maximum number of notices per run")
	noticeID := flag.String("notice", "", "Exact notice ID lookup (overrides all other filters)")
	flag.Parse()

	tables, err := config.Load(os.Getenv("CATEGORIES_FILE"))
	if err != nil {
		log.Fatalf("Failed to load category tables: %v", err)
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	pg := store.NewPostgres(pool)
	client := ted.NewClient(os.Getenv("TED_API_URL"), tables.Monitored)

	pipeline := ingest.NewPipeline(client, ingest.NewXMLFetcher(), pg, pg, tender.NewNormalizer(tables))
	pipeline.Query = client.QueryString

	cfg := ted.SearchConfig{
		Query:    *query,
		CPVCode:  *cpv,
		DaysBack: *days,
		Limit:    *limit,
		NoticeID: *noticeID,
	}

	log.Printf("Starting ingestion with query: %s", client.QueryString(cfg))
	report, err := pipeline.Ingest(ctx, cfg)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Notice ID", "Status", "Reason"})
	for _, outcome := range report.Outcomes {
		t.AppendRow(table.Row{outcome.NoticeID, outcome.Status, outcome.Reason})
	}
	t.AppendFooter(table.Row{"", "Saved", report.Saved})
	t.Render()

	log.Printf("Done. Saved: %d, Duplicates: %d, Skipped: %d, Errors: %d (of %d available)",
		report.Saved, report.Duplicates, report.Skipped, report.Errors, report.TotalAvailable)
}
