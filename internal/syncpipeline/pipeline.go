package syncpipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidclay/rhof-sync/internal/adapters"
	"github.com/davidclay/rhof-sync/internal/artifactstore"
	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/dedup"
	"github.com/davidclay/rhof-sync/internal/enrich"
	"github.com/davidclay/rhof-sync/internal/httpfetch"
	"github.com/davidclay/rhof-sync/internal/snapshot"
	"github.com/davidclay/rhof-sync/internal/syncstore"
)

// Pipeline wires together the registry, artifact store, and relational
// store a run needs. NewPipeline is the one-time startup wiring point;
// RunOnce is re-entrant and safe to call repeatedly (by a cron scheduler
// or a CLI entrypoint) with a fresh run id each time.
type Pipeline struct {
	Config   Config
	DB       *pgxpool.Pool
	Store    *syncstore.Store
	Rules    enrich.RuleSet
	DedupCfg dedup.Config
	Fetcher  *httpfetch.Fetcher
}

// NewPipeline connects to the database, applies migrations, and loads the
// enrichment rule set, matching the teacher's NewPipeline wiring pattern
// in internal/ingest/pipeline.go.
func NewPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	pool, err := syncstore.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncpipeline: connecting to db: %w", err)
	}
	if err := syncstore.ApplyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("syncpipeline: applying migrations: %w", err)
	}

	rules, err := enrich.LoadRuleSet(cfg.RulesDir)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("syncpipeline: loading rule set: %w", err)
	}

	fetcherCfg := httpfetch.DefaultConfig()
	fetcherCfg.UserAgent = cfg.UserAgent
	fetcherCfg.Timeout = cfg.HTTPTimeout

	return &Pipeline{
		Config:   cfg,
		DB:       pool,
		Store:    syncstore.NewStore(pool),
		Rules:    rules,
		DedupCfg: dedup.DefaultConfig(),
		Fetcher:  httpfetch.New(fetcherCfg),
	}, nil
}

// Close releases the pipeline's database pool.
func (p *Pipeline) Close() {
	p.DB.Close()
}

func (p *Pipeline) logTransition(runID uuid.UUID, state string) {
	log.Printf("sync: run %s entering %s", runID, state)
}

// RunOnce drives a single run through the full state machine: Init →
// LoadRegistry → OpenDb (already open) → UpsertSources → StartRun →
// PerSource{LoadBundle, FetchListing (PublicHtml sources with
// listing_urls, best-effort), Parse, StageDrafts} → Dedup → Enrich →
// PersistStaged (then every loaded bundle's raw artifact is stored) →
// PersistClusters → WriteReports → ExportSnapshots → FinishRun → Done,
// with a fatal transition to FailRun on any database error.
func (p *Pipeline) RunOnce(ctx context.Context) (core.SyncRunSummary, error) {
	runID := uuid.New()
	startedAt := time.Now().UTC()
	p.logTransition(runID, "Init")

	summary := core.SyncRunSummary{RunID: runID.String(), StartedAt: startedAt}

	p.logTransition(runID, "LoadRegistry")
	sources, err := LoadSourceRegistry(p.Config.SourcesYAMLPath)
	if err != nil {
		return summary, fmt.Errorf("syncpipeline: run %s load registry: %w", runID, err)
	}

	artifacts, err := artifactstore.New(p.Config.ArtifactsDir)
	if err != nil {
		return summary, fmt.Errorf("syncpipeline: run %s opening artifact store: %w", runID, err)
	}

	p.logTransition(runID, "UpsertSources")
	sourceDBIDs, err := p.Store.UpsertSources(ctx, sources)
	if err != nil {
		return summary, p.failRun(ctx, runID, summary, err)
	}

	p.logTransition(runID, "StartRun")
	if err := p.Store.InsertFetchRunStarted(ctx, runID, startedAt); err != nil {
		return summary, p.failRun(ctx, runID, summary, err)
	}

	var enabledSources int
	var fetchedArtifacts int
	var staged []core.StagedOpportunity
	var bundles []adapters.FixtureBundle

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		enabledSources++

		p.logTransition(runID, fmt.Sprintf("PerSource[%s].LoadBundle", src.SourceID))
		bundle, err := loadBundle(src)
		if err != nil {
			return summary, fmt.Errorf("syncpipeline: run %s loading bundle for %s: %w", runID, src.SourceID, err)
		}
		bundles = append(bundles, bundle)
		fetchedArtifacts++

		adapter, err := adapters.AdapterForSource(src.SourceID)
		if err != nil {
			return summary, fmt.Errorf("syncpipeline: run %s resolving adapter for %s: %w", runID, src.SourceID, err)
		}

		if src.Crawlability == core.CrawlabilityPublicHTML && len(src.ListingURLs) > 0 {
			p.logTransition(runID, fmt.Sprintf("PerSource[%s].FetchListing", src.SourceID))
			p.crawlListingBestEffort(ctx, runID, src, adapter, startedAt)
		}

		p.logTransition(runID, fmt.Sprintf("PerSource[%s].Parse", src.SourceID))
		drafts, err := adapter.ParseListing(bundle)
		if err != nil {
			return summary, fmt.Errorf("syncpipeline: run %s parsing %s: %w", runID, src.SourceID, err)
		}

		p.logTransition(runID, fmt.Sprintf("PerSource[%s].StageDrafts", src.SourceID))
		for _, draft := range drafts {
			staged = append(staged, core.StagedOpportunity{
				SourceID:     draft.SourceID,
				CanonicalKey: core.CanonicalKey(draft),
				VersionNo:    1,
				Draft:        draft,
			})
		}
	}

	p.logTransition(runID, "Dedup")
	dedup.Apply(staged, p.DedupCfg)

	p.logTransition(runID, "Enrich")
	for i := range staged {
		enrich.Apply(&staged[i], p.Rules)
	}

	p.logTransition(runID, "PersistStaged")
	persistedVersions, err := p.Store.PersistStaged(ctx, sourceDBIDs, staged)
	if err != nil {
		return summary, p.failRun(ctx, runID, summary, err)
	}

	for _, bundle := range bundles {
		sourceDBID, ok := sourceDBIDs[bundle.SourceID]
		if !ok {
			continue
		}
		if err := p.Store.StoreFixtureRawArtifact(ctx, runID, sourceDBID, bundle, artifacts); err != nil {
			return summary, p.failRun(ctx, runID, summary, err)
		}
	}

	p.logTransition(runID, "PersistClusters")
	if err := p.Store.PersistDedupClusters(ctx, staged, p.DedupCfg); err != nil {
		return summary, p.failRun(ctx, runID, summary, err)
	}

	reportsDir := filepath.Join(p.Config.ReportsDir, runID.String())
	p.logTransition(runID, "WriteReports")
	if err := writeDailyBrief(reportsDir, runID.String(), startedAt, enabledSources, len(staged), staged); err != nil {
		return summary, fmt.Errorf("syncpipeline: run %s writing daily brief: %w", runID, err)
	}
	if err := writeOpportunitiesDelta(reportsDir, runID.String(), staged); err != nil {
		return summary, fmt.Errorf("syncpipeline: run %s writing opportunities delta: %w", runID, err)
	}

	p.logTransition(runID, "ExportSnapshots")
	snapshotsDir := filepath.Join(reportsDir, "snapshots")
	manifest, err := snapshot.WriteSnapshots(snapshotsDir, staged, sources, startedAt)
	if err != nil {
		return summary, fmt.Errorf("syncpipeline: run %s exporting snapshots: %w", runID, err)
	}

	finishedAt := time.Now().UTC()
	p.logTransition(runID, "FinishRun")
	if err := p.Store.InsertFetchRunFinished(ctx, runID, finishedAt, fetchedArtifacts, len(staged), persistedVersions); err != nil {
		return summary, fmt.Errorf("syncpipeline: run %s finishing: %w", runID, err)
	}

	summary.FinishedAt = &finishedAt
	summary.EnabledSources = enabledSources
	summary.FetchedArtifacts = fetchedArtifacts
	summary.ParsedDrafts = len(staged)
	summary.PersistedVersions = persistedVersions
	summary.ReportsDir = reportsDir
	summary.ParquetManifest = filepath.Join(snapshotsDir, "manifest.json")

	p.logTransition(runID, "Done")
	_ = manifest
	return summary, nil
}

// failRun records the run as failed on a best-effort basis, then
// re-raises the original error so the caller sees exactly what broke.
func (p *Pipeline) failRun(ctx context.Context, runID uuid.UUID, summary core.SyncRunSummary, cause error) error {
	p.logTransition(runID, "FailRun")
	finishedAt := time.Now().UTC()
	if _, err := p.DB.Exec(ctx, `UPDATE fetch_runs SET status = 'failed', finished_at = $2 WHERE id = $1`, runID, finishedAt); err != nil {
		log.Printf("sync: run %s failed to record failure status: %v", runID, err)
	}
	return fmt.Errorf("syncpipeline: run %s failed: %w", runID, cause)
}

// crawlListingBestEffort exercises a PublicHtml source's live colly-backed
// FetchListing path for observability: parsing always runs against the
// checked-in fixture bundle regardless of outcome here, so a crawl failure
// (the source is unreachable, rate-limited, or its markup changed) is
// logged and does not fail the run.
func (p *Pipeline) crawlListingBestEffort(ctx context.Context, runID uuid.UUID, src core.SourceConfig, adapter adapters.SourceAdapter, fetchedAt time.Time) {
	targets := make([]adapters.ListingTarget, len(src.ListingURLs))
	for i, u := range src.ListingURLs {
		targets[i] = adapters.ListingTarget{URL: u}
	}
	actx := adapters.AdapterContext{RunID: runID.String(), FetchedAt: fetchedAt}

	pages, err := adapter.FetchListing(ctx, p.Fetcher, actx, targets)
	if err != nil {
		log.Printf("sync: run %s live listing crawl failed for %s: %v", runID, src.SourceID, err)
		return
	}
	log.Printf("sync: run %s live-crawled %d listing page(s) for %s", runID, len(pages), src.SourceID)
}

func loadBundle(src core.SourceConfig) (adapters.FixtureBundle, error) {
	path := bundlePath(src)
	if src.Crawlability == core.CrawlabilityManualOnly {
		return adapters.LoadManualFixtureBundle(path)
	}
	return adapters.LoadFixtureBundle(path)
}
