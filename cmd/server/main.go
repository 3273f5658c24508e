package main

import (
	"context"
	"log"
	"os"

	"github.com/david/tender-radar/internal/api"
	"github.com/david/tender-radar/internal/config"
	"github.com/david/tender-radar/internal/ingest"
	"github.com/david/tender-radar/internal/store"
	"github.com/david/tender-radar/internal/ted"
	"github.com/david/tender-radar/internal/tender"
	"github.com/david/tender-radar/internal/translate"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

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

	translator := translate.NewService(translate.NewDeepL(os.Getenv("DEEPL_API_KEY")), pg)

	srv := api.NewServer(pg, pg, pipeline, translator, tables)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
