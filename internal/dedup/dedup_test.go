package dedup

import (
	"testing"

	"github.com/davidclay/rhof-sync/internal/core"
)

func mkItem(sourceID, canonicalKey, title string) core.StagedOpportunity {
	return core.StagedOpportunity{
		SourceID:     sourceID,
		CanonicalKey: canonicalKey,
		VersionNo:    1,
		Draft: core.OpportunityDraft{
			SourceID: sourceID,
			Title: core.WithValueAndEvidence(title, core.EvidenceRef{
				RawArtifactID:     "test-artifact",
				SourceURL:         "https://example.test",
				SelectorOrPointer: "fixture:title",
				Snippet:           title,
			}),
		},
	}
}

// TestAutoClusterOnNearDuplicateTitles exercises seed scenario S1: two
// near-identical titles differing by a single typo cluster automatically
// under relaxed thresholds, with no review pair produced.
func TestAutoClusterOnNearDuplicateTitles(t *testing.T) {
	items := []core.StagedOpportunity{
		mkItem("clickworker", "clickworker:ai-data-contributor", "AI Data Contributor"),
		mkItem("clickworker", "clickworker:ai-data-contributer", "AI Data Contributer"),
	}
	cfg := Config{AutoClusterThreshold: 0.93, ReviewThreshold: 0.85}

	clusters, review := Apply(items, cfg)

	if len(clusters) != 1 {
		t.Fatalf("expected exactly 1 cluster, got %d", len(clusters))
	}
	if len(review) != 0 {
		t.Fatalf("expected no review pairs, got %d", len(review))
	}
	if clusters[0].ConfidenceScore < 0.93 {
		t.Errorf("cluster confidence = %v, want >= 0.93", clusters[0].ConfidenceScore)
	}
	for _, it := range items {
		if it.DedupConfidence == nil || *it.DedupConfidence < 0.93 {
			t.Errorf("item %s dedup_confidence not stamped >= 0.93", it.CanonicalKey)
		}
		if it.ReviewRequired {
			t.Errorf("item %s should not be review_required", it.CanonicalKey)
		}
	}
}

// TestUnrelatedItemsDoNotMatch exercises seed scenario S2: two entirely
// different listings from different sources produce neither a cluster nor
// a review pair under the default thresholds.
func TestUnrelatedItemsDoNotMatch(t *testing.T) {
	items := []core.StagedOpportunity{
		mkItem("appen-crowdgen", "appen-crowdgen:search-relevance-rater", "Search Relevance Rater"),
		mkItem("prolific", "prolific:paid-academic-study", "Paid Academic Study"),
	}

	clusters, review := Apply(items, DefaultConfig())

	if len(clusters) != 0 {
		t.Errorf("expected no clusters, got %d", len(clusters))
	}
	if len(review) != 0 {
		t.Errorf("expected no review pairs, got %d", len(review))
	}
}

// TestBorderlineTitlesGoToReviewQueue exercises seed scenario S3: two
// similar-but-not-identical titles fall between the review and auto
// thresholds and are routed to the review queue rather than auto-clustered.
func TestBorderlineTitlesGoToReviewQueue(t *testing.T) {
	items := []core.StagedOpportunity{
		mkItem("telus-ai-community", "telus-ai-community:internet-assessor-us", "Internet Assessor - US"),
		mkItem("telus-ai-community", "telus-ai-community:internet-assessor-us-part-time", "Internet Assessor US (Part-Time)"),
	}
	cfg := Config{AutoClusterThreshold: 0.97, ReviewThreshold: 0.88}

	clusters, review := Apply(items, cfg)

	if len(clusters) != 0 {
		t.Fatalf("expected zero clusters, got %d", len(clusters))
	}
	if len(review) != 1 {
		t.Fatalf("expected exactly 1 review pair, got %d", len(review))
	}
	if review[0].ConfidenceScore < 0.88 {
		t.Errorf("review confidence = %v, want >= 0.88", review[0].ConfidenceScore)
	}
	for _, it := range items {
		if !it.ReviewRequired {
			t.Errorf("item %s should be review_required", it.CanonicalKey)
		}
	}
}

// TestDedupPartitionInvariant checks testable property #6: every emitted
// cluster pair scores at or above the auto threshold, every review pair
// scores in [review, auto), and no pair appears in both outputs.
func TestDedupPartitionInvariant(t *testing.T) {
	items := []core.StagedOpportunity{
		mkItem("clickworker", "clickworker:ai-data-contributor", "AI Data Contributor"),
		mkItem("clickworker", "clickworker:ai-data-contributer", "AI Data Contributer"),
		mkItem("telus-ai-community", "telus-ai-community:internet-assessor-us", "Internet Assessor - US"),
		mkItem("oneforma-jobs", "oneforma-jobs:internet-assessor-us-part-time", "Internet Assessor US (Part-Time)"),
		mkItem("appen-crowdgen", "appen-crowdgen:search-relevance-rater", "Search Relevance Rater"),
		mkItem("prolific", "prolific:paid-academic-study", "Paid Academic Study"),
	}
	cfg := Config{AutoClusterThreshold: 0.93, ReviewThreshold: 0.85}

	clusters, review := Apply(items, cfg)

	clusterPairs := make(map[[2]string]bool)
	for _, c := range clusters {
		if c.ConfidenceScore < cfg.AutoClusterThreshold {
			t.Errorf("cluster %s score %v below auto threshold %v", c.ClusterKey, c.ConfidenceScore, cfg.AutoClusterThreshold)
		}
		clusterPairs[sortedKeyPair(c.CanonicalKeyA, c.CanonicalKeyB)] = true
	}
	for _, r := range review {
		if r.ConfidenceScore < cfg.ReviewThreshold || r.ConfidenceScore >= cfg.AutoClusterThreshold {
			t.Errorf("review %s score %v outside [%v, %v)", r.ClusterKey, r.ConfidenceScore, cfg.ReviewThreshold, cfg.AutoClusterThreshold)
		}
		pair := sortedKeyPair(r.CanonicalKeyA, r.CanonicalKeyB)
		if clusterPairs[pair] {
			t.Errorf("pair %v appears in both clusters and review", pair)
		}
	}
}

func sortedKeyPair(a, b string) [2]string {
	lo, hi := sortedPair(a, b)
	return [2]string{lo, hi}
}

// TestClusterIDIsOrderInsensitive confirms the resolved sorted-pair
// normalization: encountering the same pair in either order yields the
// identical cluster key.
func TestClusterIDIsOrderInsensitive(t *testing.T) {
	a, b := "clickworker:ai-data-contributor", "clickworker:ai-data-contributer"
	if autoClusterKey(a, b) != autoClusterKey(b, a) {
		t.Error("autoClusterKey must be order-insensitive")
	}
	if reviewClusterKey(a, b) != reviewClusterKey(b, a) {
		t.Error("reviewClusterKey must be order-insensitive")
	}
}
