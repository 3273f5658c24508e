package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/tender-radar/internal/store"
)

func main() {
	ctx := context.Background()
	pool, err := store.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := store.NewPostgres(pool).RecentRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Query", "Status", "Saved", "Dup", "Skip", "Errors", "Duration", "Started At"})

	for _, run := range runs {
		duration := "Running..."
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{run.Query, run.Status, run.Saved, run.Duplicates, run.Skipped, run.Errors, duration, run.StartedAt.Format("15:04:05")})
	}
	t.Render()
}
