package syncpipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/davidclay/rhof-sync/internal/core"
)

// writeDailyBrief writes a short markdown summary of a run: run id,
// start time, enabled source count, parsed draft count, and per-source
// counts, mirroring the sibling reporting helpers retrieved for this
// system.
func writeDailyBrief(dir, runID string, startedAt time.Time, enabledSources, parsedDrafts int, staged []core.StagedOpportunity) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating reports dir: %w", err)
	}

	perSource := map[string]int{}
	for _, item := range staged {
		perSource[item.SourceID]++
	}
	sourceIDs := make([]string, 0, len(perSource))
	for id := range perSource {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Brief: %s\n\n", runID)
	fmt.Fprintf(&b, "- Started at: %s\n", startedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Enabled sources: %d\n", enabledSources)
	fmt.Fprintf(&b, "- Parsed drafts: %d\n\n", parsedDrafts)
	b.WriteString("## Per-source counts\n\n")
	for _, id := range sourceIDs {
		fmt.Fprintf(&b, "- %s: %d\n", id, perSource[id])
	}

	return os.WriteFile(filepath.Join(dir, "daily_brief.md"), []byte(b.String()), 0o644)
}

type opportunitiesDeltaPayload struct {
	FetchRun      string                      `json:"fetch_run"`
	Opportunities []core.StagedOpportunity `json:"opportunities"`
}

// writeOpportunitiesDelta writes the run's full staged set as
// pretty-printed JSON, so a downstream consumer can diff successive runs
// without querying the database.
func writeOpportunitiesDelta(dir, runID string, staged []core.StagedOpportunity) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating reports dir: %w", err)
	}

	payload := opportunitiesDeltaPayload{FetchRun: runID, Opportunities: staged}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling opportunities delta: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "opportunities_delta.json"), data, 0o644)
}
