// Command sync_summary renders the last N fetch_runs rows as a table,
// mirroring the sibling ingestion package's check_runs debug tool.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/davidclay/rhof-sync/internal/syncstore"
)

func main() {
	limit := flag.Int("limit", 10, "number of recent runs to show")
	flag.Parse()

	ctx := context.Background()
	pool, err := syncstore.Connect(ctx)
	if err != nil {
		log.Fatalf("sync_summary: connecting to db: %v", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT id, status, started_at, finished_at, summary_json
		  FROM fetch_runs
		 ORDER BY started_at DESC
		 LIMIT $1
	`, *limit)
	if err != nil {
		log.Fatalf("sync_summary: querying fetch_runs: %v", err)
	}
	defer rows.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run ID", "Status", "Started At", "Finished At", "Summary"})

	for rows.Next() {
		var (
			id          string
			status      string
			startedAt   time.Time
			finishedAt  *time.Time
			summaryJSON []byte
		)
		if err := rows.Scan(&id, &status, &startedAt, &finishedAt, &summaryJSON); err != nil {
			log.Fatalf("sync_summary: scanning row: %v", err)
		}
		finished := "-"
		if finishedAt != nil {
			finished = finishedAt.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{id, status, startedAt.UTC().Format(time.RFC3339), finished, string(summaryJSON)})
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("sync_summary: iterating rows: %v", err)
	}

	t.Render()
}
