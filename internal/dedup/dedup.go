// Package dedup implements the pairwise similarity clustering pass: two
// configurable thresholds partition staged items into auto-clusters,
// review pairs, and unrelated pairs.
package dedup

import (
	"fmt"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/davidclay/rhof-sync/internal/core"
)

const (
	DefaultAutoClusterThreshold = 0.95
	DefaultReviewThreshold      = 0.85

	jaroWinklerBoostThreshold = 0.7
	jaroWinklerPrefixSize     = 4
)

// Config holds the two similarity thresholds that separate auto-clusters
// from review pairs from unrelated items.
type Config struct {
	AutoClusterThreshold float64
	ReviewThreshold      float64
}

// DefaultConfig returns the default thresholds (auto=0.95, review=0.85).
func DefaultConfig() Config {
	return Config{
		AutoClusterThreshold: DefaultAutoClusterThreshold,
		ReviewThreshold:      DefaultReviewThreshold,
	}
}

// normalizeCanonicalKey lowercases the key, replaces every run of
// non-alphanumeric characters with a single space, and trims the result,
// per the dedup engine's comparison normalization.
func normalizeCanonicalKey(key string) string {
	lower := strings.ToLower(key)
	var b strings.Builder
	lastSpace := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity scores two staged items as 0.7·JW(titles) + 0.3·JW(normalized
// canonical keys). Empty titles compare as empty strings; Jaro-Winkler of
// two empties is 1.0, which is harmless because the canonical-key term
// will usually differ.
func Similarity(a, b core.StagedOpportunity) float64 {
	titleA := a.Draft.Title.ValueOr("")
	titleB := b.Draft.Title.ValueOr("")
	titleScore := smetrics.JaroWinkler(titleA, titleB, jaroWinklerBoostThreshold, jaroWinklerPrefixSize)

	keyScore := smetrics.JaroWinkler(
		normalizeCanonicalKey(a.CanonicalKey),
		normalizeCanonicalKey(b.CanonicalKey),
		jaroWinklerBoostThreshold,
		jaroWinklerPrefixSize,
	)

	return 0.7*titleScore + 0.3*keyScore
}

func escapeKey(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

// sortedPair returns (a, b) in lexical order so a cluster id is independent
// of which item was encountered first.
func sortedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

func autoClusterKey(a, b string) string {
	lo, hi := sortedPair(a, b)
	return fmt.Sprintf("cluster-%s-%s", escapeKey(lo), escapeKey(hi))
}

func reviewClusterKey(a, b string) string {
	lo, hi := sortedPair(a, b)
	return fmt.Sprintf("review:%s|%s", lo, hi)
}

// Apply iterates every unordered pair of staged items, scoring each with
// Similarity. A score at or above the auto threshold emits a cluster
// proposal; a score at or above the review threshold (but below auto)
// emits a review pair. Both item slots are stamped with the matching
// score and, for review pairs, marked review_required. Cluster ids are
// derived from the sorted pair of canonical keys, so a pair is never
// emitted twice regardless of encounter order.
func Apply(items []core.StagedOpportunity, cfg Config) ([]core.DedupClusterProposal, []core.DedupReviewItem) {
	var clusters []core.DedupClusterProposal
	var review []core.DedupReviewItem
	seenClusters := make(map[string]bool)
	seenReview := make(map[string]bool)

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			score := Similarity(items[i], items[j])
			keyA := items[i].CanonicalKey
			keyB := items[j].CanonicalKey

			switch {
			case score >= cfg.AutoClusterThreshold:
				ck := autoClusterKey(keyA, keyB)
				if seenClusters[ck] {
					continue
				}
				seenClusters[ck] = true
				clusters = append(clusters, core.DedupClusterProposal{
					ClusterKey:      ck,
					CanonicalKeyA:   keyA,
					CanonicalKeyB:   keyB,
					ConfidenceScore: score,
				})
				stampConfidence(&items[i], score)
				stampConfidence(&items[j], score)

			case score >= cfg.ReviewThreshold:
				rk := reviewClusterKey(keyA, keyB)
				if seenReview[rk] {
					continue
				}
				seenReview[rk] = true
				review = append(review, core.DedupReviewItem{
					ClusterKey:      rk,
					CanonicalKeyA:   keyA,
					CanonicalKeyB:   keyB,
					ConfidenceScore: score,
				})
				items[i].ReviewRequired = true
				items[j].ReviewRequired = true
				stampConfidence(&items[i], score)
				stampConfidence(&items[j], score)
			}
		}
	}

	return clusters, review
}

func stampConfidence(item *core.StagedOpportunity, score float64) {
	v := score
	item.DedupConfidence = &v
}
