// Command sync is the pipeline's entrypoint: it wires a Pipeline and
// either runs once immediately or, when RHOF_SCHEDULER_ENABLED is set,
// hands run_once to a cron scheduler on the configured ticks. This is the
// scheduler's trigger contract from the orchestrator's perspective; the
// cron shell itself (retries, alerting, process supervision) is an
// external collaborator not re-specified here.
package main

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/syncpipeline"
)

func main() {
	cfg := syncpipeline.LoadConfig()

	ctx := context.Background()
	pipeline, err := syncpipeline.NewPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("sync: failed to wire pipeline: %v", err)
	}
	defer pipeline.Close()

	if !cfg.SchedulerEnabled {
		if _, err := runOnceAndLog(ctx, pipeline); err != nil {
			log.Fatalf("sync: run failed: %v", err)
		}
		return
	}

	c := cron.New()
	for _, spec := range []string{cfg.SyncCron1, cfg.SyncCron2} {
		spec := spec
		if _, err := c.AddFunc(spec, func() {
			if _, err := runOnceAndLog(ctx, pipeline); err != nil {
				log.Printf("sync: scheduled run failed: %v", err)
			}
		}); err != nil {
			log.Fatalf("sync: invalid cron spec %q: %v", spec, err)
		}
	}
	log.Printf("sync: scheduler enabled, ticks at %q and %q", cfg.SyncCron1, cfg.SyncCron2)
	c.Run()
}

func runOnceAndLog(ctx context.Context, pipeline *syncpipeline.Pipeline) (core.SyncRunSummary, error) {
	result, err := pipeline.RunOnce(ctx)
	if err != nil {
		return result, err
	}
	log.Printf(
		"sync: run %s completed: enabled_sources=%d fetched_artifacts=%d parsed_drafts=%d persisted_versions=%d reports_dir=%s",
		result.RunID, result.EnabledSources, result.FetchedArtifacts, result.ParsedDrafts, result.PersistedVersions, result.ReportsDir,
	)
	return result, nil
}
