package syncstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidclay/rhof-sync/internal/adapters"
	"github.com/davidclay/rhof-sync/internal/artifactstore"
	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/dedup"
)

// Store wraps a connection pool with the sync pipeline's idempotent
// upsert sequence: sources, fetch runs, opportunities and their versions,
// tags, risk flags, dedup clusters, and review items.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertSources inserts or updates one row per registered source, keyed
// by its natural source_id, and returns the internal UUID for each.
func (s *Store) UpsertSources(ctx context.Context, sources []core.SourceConfig) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(sources))
	for _, src := range sources {
		configJSON, err := json.Marshal(map[string]any{
			"mode":                src.Mode,
			"listing_urls":        src.ListingURLs,
			"detail_url_patterns": src.DetailURLPatterns,
			"notes":               src.Notes,
		})
		if err != nil {
			return nil, fmt.Errorf("syncstore: marshaling source config for %s: %w", src.SourceID, err)
		}

		var id uuid.UUID
		err = s.pool.QueryRow(ctx, `
			INSERT INTO sources (source_id, display_name, crawlability, enabled, config_json, updated_at)
			VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
			ON CONFLICT (source_id) DO UPDATE
			  SET display_name = EXCLUDED.display_name,
			      crawlability = EXCLUDED.crawlability,
			      enabled = EXCLUDED.enabled,
			      config_json = EXCLUDED.config_json,
			      updated_at = NOW()
			RETURNING id
		`, src.SourceID, src.DisplayName, string(src.Crawlability), src.Enabled, configJSON).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("syncstore: upserting source %s: %w", src.SourceID, err)
		}
		out[src.SourceID] = id
	}
	return out, nil
}

// InsertFetchRunStarted records a new run, tolerating re-delivery of the
// same run id.
func (s *Store) InsertFetchRunStarted(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_runs (id, started_at, status, summary_json, created_at)
		VALUES ($1, $2, 'started', '{}'::jsonb, NOW())
		ON CONFLICT (id) DO NOTHING
	`, runID, startedAt)
	if err != nil {
		return fmt.Errorf("syncstore: inserting fetch_runs started row: %w", err)
	}
	return nil
}

// InsertFetchRunFinished marks a run completed with a summary payload.
func (s *Store) InsertFetchRunFinished(ctx context.Context, runID uuid.UUID, finishedAt time.Time, fetchedArtifacts, parsedDrafts, persistedVersions int) error {
	summary, err := json.Marshal(map[string]any{
		"fetched_artifacts":  fetchedArtifacts,
		"parsed_drafts":      parsedDrafts,
		"persisted_versions": persistedVersions,
	})
	if err != nil {
		return fmt.Errorf("syncstore: marshaling fetch run summary: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE fetch_runs
		   SET finished_at = $2, status = 'completed', summary_json = $3::jsonb
		 WHERE id = $1
	`, runID, finishedAt, summary)
	if err != nil {
		return fmt.Errorf("syncstore: updating fetch_runs finished row: %w", err)
	}
	return nil
}

// PersistStaged upserts every staged item's opportunity row and, only
// when its serialized data differs from the latest stored version,
// inserts a new opportunity_versions row. Returns the count of newly
// inserted versions, satisfying the idempotency law when re-run against
// unchanged input.
func (s *Store) PersistStaged(ctx context.Context, sourceIDs map[string]uuid.UUID, staged []core.StagedOpportunity) (int, error) {
	insertedVersions := 0
	for i := range staged {
		item := &staged[i]
		sourceDBID, ok := sourceIDs[item.SourceID]
		if !ok {
			return insertedVersions, fmt.Errorf("syncstore: missing source db id for %s", item.SourceID)
		}

		opportunityID, err := s.upsertOpportunity(ctx, sourceDBID, item)
		if err != nil {
			return insertedVersions, err
		}

		inserted, currentVersionID, err := s.upsertVersion(ctx, opportunityID, item)
		if err != nil {
			return insertedVersions, err
		}
		if inserted {
			insertedVersions++
		}

		if _, err := s.pool.Exec(ctx, `
			UPDATE opportunities
			   SET current_version_id = $2, source_id = $3, apply_url = $4,
			       last_seen_at = NOW(), updated_at = NOW()
			 WHERE id = $1
		`, opportunityID, currentVersionID, sourceDBID, item.Draft.ApplyURL.Value); err != nil {
			return insertedVersions, fmt.Errorf("syncstore: updating current version for %s: %w", item.CanonicalKey, err)
		}

		if err := s.persistTags(ctx, opportunityID, item.Tags); err != nil {
			return insertedVersions, err
		}
		if err := s.persistRiskFlags(ctx, opportunityID, item.RiskFlags); err != nil {
			return insertedVersions, err
		}
		if err := s.persistReviewItem(ctx, opportunityID, item); err != nil {
			return insertedVersions, err
		}
	}
	return insertedVersions, nil
}

func (s *Store) upsertOpportunity(ctx context.Context, sourceDBID uuid.UUID, item *core.StagedOpportunity) (uuid.UUID, error) {
	var opportunityID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM opportunities WHERE canonical_key = $1 ORDER BY created_at ASC LIMIT 1
	`, item.CanonicalKey).Scan(&opportunityID)
	if err == nil {
		if _, err := s.pool.Exec(ctx, `
			UPDATE opportunities SET source_id = $2, apply_url = $3, last_seen_at = NOW(), updated_at = NOW()
			 WHERE id = $1
		`, opportunityID, sourceDBID, item.Draft.ApplyURL.Value); err != nil {
			return uuid.Nil, fmt.Errorf("syncstore: updating opportunity %s: %w", item.CanonicalKey, err)
		}
		return opportunityID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("syncstore: loading opportunity %s: %w", item.CanonicalKey, err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO opportunities (source_id, canonical_key, apply_url, status, first_seen_at, last_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', NOW(), NOW(), NOW(), NOW())
		RETURNING id
	`, sourceDBID, item.CanonicalKey, item.Draft.ApplyURL.Value).Scan(&opportunityID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("syncstore: inserting opportunity %s: %w", item.CanonicalKey, err)
	}
	return opportunityID, nil
}

// upsertVersion inserts a new opportunity_versions row only when the
// staged item's serialized data differs from the latest stored version;
// otherwise it returns the existing version's id untouched.
func (s *Store) upsertVersion(ctx context.Context, opportunityID uuid.UUID, item *core.StagedOpportunity) (inserted bool, versionID uuid.UUID, err error) {
	dataJSON, err := json.Marshal(item)
	if err != nil {
		return false, uuid.Nil, fmt.Errorf("syncstore: serializing staged opportunity %s: %w", item.CanonicalKey, err)
	}
	evidenceJSON, err := json.Marshal(item.Draft)
	if err != nil {
		return false, uuid.Nil, fmt.Errorf("syncstore: serializing evidence payload %s: %w", item.CanonicalKey, err)
	}

	var existingID uuid.UUID
	var existingVersionNo int
	var existingData []byte
	row := s.pool.QueryRow(ctx, `
		SELECT id, version_no, data_json FROM opportunity_versions
		 WHERE opportunity_id = $1 ORDER BY version_no DESC LIMIT 1
	`, opportunityID)
	scanErr := row.Scan(&existingID, &existingVersionNo, &existingData)

	rawArtifactID := draftRawArtifactID(item.Draft)

	if scanErr == pgx.ErrNoRows {
		newID := uuid.New()
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO opportunity_versions (id, opportunity_id, raw_artifact_id, version_no, data_json, diff_json, evidence_json, created_at)
			VALUES ($1, $2, $3, 1, $4::jsonb, '{}'::jsonb, $5::jsonb, NOW())
		`, newID, opportunityID, nullableUUID(rawArtifactID), dataJSON, evidenceJSON); err != nil {
			return false, uuid.Nil, fmt.Errorf("syncstore: inserting first opportunity version %s: %w", item.CanonicalKey, err)
		}
		return true, newID, nil
	}
	if scanErr != nil {
		return false, uuid.Nil, fmt.Errorf("syncstore: loading latest version for %s: %w", item.CanonicalKey, scanErr)
	}

	if jsonEqual(existingData, dataJSON) {
		return false, existingID, nil
	}

	newID := uuid.New()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO opportunity_versions (id, opportunity_id, raw_artifact_id, version_no, data_json, diff_json, evidence_json, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, '{}'::jsonb, $6::jsonb, NOW())
	`, newID, opportunityID, nullableUUID(rawArtifactID), existingVersionNo+1, dataJSON, evidenceJSON); err != nil {
		return false, uuid.Nil, fmt.Errorf("syncstore: inserting opportunity version %s: %w", item.CanonicalKey, err)
	}
	return true, newID, nil
}

// jsonEqual compares two JSON byte strings by structural equality rather
// than byte-for-byte, so field reordering never causes a spurious version.
func jsonEqual(a, b []byte) bool {
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	canonA, _ := json.Marshal(va)
	canonB, _ := json.Marshal(vb)
	return string(canonA) == string(canonB)
}

// draftRawArtifactID recovers the raw artifact id a draft's fields were
// extracted from, preferring the title's evidence and falling back to
// apply_url, since every populated field of a given draft shares the same
// source bundle.
func draftRawArtifactID(d core.OpportunityDraft) string {
	if d.Title.Evidence != nil {
		return d.Title.Evidence.RawArtifactID
	}
	if d.ApplyURL.Evidence != nil {
		return d.ApplyURL.Evidence.RawArtifactID
	}
	return ""
}

func nullableUUID(raw string) *uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func (s *Store) persistTags(ctx context.Context, opportunityID uuid.UUID, tags []string) error {
	for _, tag := range tags {
		var tagID uuid.UUID
		err := s.pool.QueryRow(ctx, `
			INSERT INTO tags (key, label, created_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET label = EXCLUDED.label
			RETURNING id
		`, tag, tag).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("syncstore: upserting tag %s: %w", tag, err)
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO opportunity_tags (opportunity_id, tag_id, created_at) VALUES ($1, $2, NOW())
			ON CONFLICT (opportunity_id, tag_id) DO NOTHING
		`, opportunityID, tagID); err != nil {
			return fmt.Errorf("syncstore: linking opportunity tag %s: %w", tag, err)
		}
	}
	return nil
}

func (s *Store) persistRiskFlags(ctx context.Context, opportunityID uuid.UUID, flags []string) error {
	for _, flag := range flags {
		var flagID uuid.UUID
		err := s.pool.QueryRow(ctx, `
			INSERT INTO risk_flags (key, label, severity, created_at) VALUES ($1, $2, 'info', NOW())
			ON CONFLICT (key) DO UPDATE SET label = EXCLUDED.label
			RETURNING id
		`, flag, flag).Scan(&flagID)
		if err != nil {
			return fmt.Errorf("syncstore: upserting risk flag %s: %w", flag, err)
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO opportunity_risk_flags (opportunity_id, risk_flag_id, reason, created_at)
			VALUES ($1, $2, NULL, NOW())
			ON CONFLICT (opportunity_id, risk_flag_id) DO NOTHING
		`, opportunityID, flagID); err != nil {
			return fmt.Errorf("syncstore: linking opportunity risk flag %s: %w", flag, err)
		}
	}
	return nil
}

func (s *Store) persistReviewItem(ctx context.Context, opportunityID uuid.UUID, item *core.StagedOpportunity) error {
	if !item.ReviewRequired {
		return nil
	}
	var existing uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM review_items
		 WHERE opportunity_id = $1 AND item_type = 'dedup_review' AND status = 'open'
		 LIMIT 1
	`, opportunityID).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return fmt.Errorf("syncstore: checking existing review item: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"canonical_key":    item.CanonicalKey,
		"dedup_confidence": item.DedupConfidence,
		"source_id":        item.SourceID,
	})
	if err != nil {
		return fmt.Errorf("syncstore: marshaling review item payload: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO review_items (item_type, status, opportunity_id, payload_json, created_at)
		VALUES ('dedup_review', 'open', $1, $2::jsonb, NOW())
	`, opportunityID, payload); err != nil {
		return fmt.Errorf("syncstore: inserting review item: %w", err)
	}
	return nil
}

// PersistDedupClusters recomputes clusters and review pairs over the
// final staged set and upserts the resulting cluster and membership rows,
// so re-running against unchanged input creates zero duplicate rows.
func (s *Store) PersistDedupClusters(ctx context.Context, staged []core.StagedOpportunity, cfg dedup.Config) error {
	if len(staged) < 2 {
		return nil
	}
	canonicalToOpportunity, err := s.loadOpportunityIDsByCanonicalKeys(ctx, staged)
	if err != nil {
		return fmt.Errorf("syncstore: loading opportunity ids for dedup cluster persistence: %w", err)
	}

	clusters, review := dedup.Apply(staged, cfg)

	for _, c := range clusters {
		if err := s.upsertClusterAndMembers(ctx, canonicalToOpportunity, c.ClusterKey, core.DedupClusterProposed, c.ConfidenceScore, []string{c.CanonicalKeyA, c.CanonicalKeyB}); err != nil {
			return err
		}
	}
	for _, r := range review {
		if err := s.upsertClusterAndMembers(ctx, canonicalToOpportunity, r.ClusterKey, core.DedupClusterNeedsReview, r.ConfidenceScore, []string{r.CanonicalKeyA, r.CanonicalKeyB}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadOpportunityIDsByCanonicalKeys(ctx context.Context, staged []core.StagedOpportunity) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID)
	for _, item := range staged {
		if _, ok := out[item.CanonicalKey]; ok {
			continue
		}
		var id uuid.UUID
		err := s.pool.QueryRow(ctx, `
			SELECT id FROM opportunities WHERE canonical_key = $1 ORDER BY created_at ASC LIMIT 1
		`, item.CanonicalKey).Scan(&id)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("syncstore: looking up opportunity id for %s: %w", item.CanonicalKey, err)
		}
		out[item.CanonicalKey] = id
	}
	return out, nil
}

func (s *Store) upsertClusterAndMembers(ctx context.Context, canonicalToOpportunity map[string]uuid.UUID, clusterKey string, status core.DedupClusterStatus, confidence float64, members []string) error {
	clusterID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(clusterKey))
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO dedup_clusters (id, confidence_score, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		  SET confidence_score = EXCLUDED.confidence_score, status = EXCLUDED.status, updated_at = NOW()
	`, clusterID, confidence, string(status)); err != nil {
		return fmt.Errorf("syncstore: upserting dedup cluster %s: %w", clusterKey, err)
	}

	for _, canonicalKey := range members {
		opportunityID, ok := canonicalToOpportunity[canonicalKey]
		if !ok {
			continue
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO dedup_cluster_members (dedup_cluster_id, opportunity_id, member_score, is_primary, created_at)
			VALUES ($1, $2, $3, false, NOW())
			ON CONFLICT (dedup_cluster_id, opportunity_id) DO UPDATE SET member_score = EXCLUDED.member_score
		`, clusterID, opportunityID, confidence); err != nil {
			return fmt.Errorf("syncstore: upserting dedup cluster member %s: %w", canonicalKey, err)
		}
	}
	return nil
}

// StoreFixtureRawArtifact reads the bundle's raw bytes, stores them in
// the content-addressed artifact store, and upserts the corresponding
// raw_artifacts row keyed by the bundle's deterministic artifact id.
func (s *Store) StoreFixtureRawArtifact(ctx context.Context, runID, sourceDBID uuid.UUID, bundle adapters.FixtureBundle, store *artifactstore.Store) error {
	var bytes []byte
	if bundle.RawArtifact.InlineText != nil {
		bytes = []byte(*bundle.RawArtifact.InlineText)
	}

	ext := artifactstore.ExtensionForContentType(bundle.RawArtifact.ContentType)
	stored, err := store.StoreBytes(bundle.FetchedAt, bundle.SourceID, ext, bytes)
	if err != nil {
		return fmt.Errorf("syncstore: storing raw artifact bytes for %s: %w", bundle.SourceID, err)
	}

	rawArtifactID, err := uuid.Parse(adapters.DeterministicRawArtifactID(bundle))
	if err != nil {
		return fmt.Errorf("syncstore: parsing deterministic raw artifact id: %w", err)
	}

	metadata, err := json.Marshal(map[string]any{
		"fixture_id":                bundle.FixtureID,
		"extractor_version":         bundle.ExtractorVersion,
		"evidence_coverage_percent": bundle.EvidenceCoveragePercent,
	})
	if err != nil {
		return fmt.Errorf("syncstore: marshaling raw artifact metadata: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO raw_artifacts (
			id, fetch_run_id, source_id, source_url, storage_path, content_type, content_hash,
			http_status, byte_size, fetched_at, metadata_json, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9, $10::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE
		  SET storage_path = EXCLUDED.storage_path,
		      content_type = EXCLUDED.content_type,
		      content_hash = EXCLUDED.content_hash,
		      byte_size = EXCLUDED.byte_size,
		      fetched_at = EXCLUDED.fetched_at,
		      metadata_json = EXCLUDED.metadata_json
	`, rawArtifactID, runID, sourceDBID, bundle.CapturedFromURL, stored.RelativePath, bundle.RawArtifact.ContentType,
		stored.ContentHash, stored.ByteSize, bundle.FetchedAt, metadata); err != nil {
		return fmt.Errorf("syncstore: upserting raw artifact row for %s: %w", bundle.SourceID, err)
	}
	return nil
}
