package syncstore

import (
	"testing"

	"github.com/davidclay/rhof-sync/internal/core"
)

func TestJSONEqualIgnoresKeyOrdering(t *testing.T) {
	a := []byte(`{"a":1,"b":2}`)
	b := []byte(`{"b":2,"a":1}`)
	if !jsonEqual(a, b) {
		t.Error("jsonEqual should treat differently-ordered keys as equal")
	}

	c := []byte(`{"a":1,"b":3}`)
	if jsonEqual(a, c) {
		t.Error("jsonEqual should detect a changed value")
	}
}

func TestDraftRawArtifactIDPrefersTitleEvidence(t *testing.T) {
	draft := core.OpportunityDraft{
		Title:    core.WithValueAndEvidence("t", core.EvidenceRef{RawArtifactID: "title-artifact"}),
		ApplyURL: core.WithValueAndEvidence("https://example.test", core.EvidenceRef{RawArtifactID: "apply-artifact"}),
	}
	if got := draftRawArtifactID(draft); got != "title-artifact" {
		t.Errorf("draftRawArtifactID = %q, want title-artifact", got)
	}
}

func TestDraftRawArtifactIDFallsBackToApplyURL(t *testing.T) {
	draft := core.OpportunityDraft{
		ApplyURL: core.WithValueAndEvidence("https://example.test", core.EvidenceRef{RawArtifactID: "apply-artifact"}),
	}
	if got := draftRawArtifactID(draft); got != "apply-artifact" {
		t.Errorf("draftRawArtifactID = %q, want apply-artifact", got)
	}
}

func TestDraftRawArtifactIDEmptyWhenNoEvidence(t *testing.T) {
	draft := core.OpportunityDraft{}
	if got := draftRawArtifactID(draft); got != "" {
		t.Errorf("draftRawArtifactID = %q, want empty string", got)
	}
}

func TestNullableUUIDRejectsNonUUIDStrings(t *testing.T) {
	if ptr := nullableUUID(""); ptr != nil {
		t.Error("nullableUUID(\"\") should be nil")
	}
	if ptr := nullableUUID("not-a-uuid"); ptr != nil {
		t.Error("nullableUUID of a non-uuid string should be nil")
	}
}

func TestNullableUUIDParsesValidUUID(t *testing.T) {
	ptr := nullableUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	if ptr == nil {
		t.Fatal("expected a parsed UUID pointer")
	}
}
