// Package enrich applies rule-driven tagging, risk flagging, and pay-model
// normalization to staged opportunities. Rules live in YAML files loaded
// once at startup, matching the teacher's configuration-as-YAML idiom.
package enrich

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidclay/rhof-sync/internal/core"
)

// TagRule adds Tag to an item whenever any of ContainsAny occurs as a
// case-insensitive substring of the item's combined title+description.
type TagRule struct {
	Tag         string   `yaml:"tag"`
	ContainsAny []string `yaml:"contains_any"`
}

// RiskRule is the tag rule's counterpart for risk_flags.
type RiskRule struct {
	RiskFlag    string   `yaml:"risk_flag"`
	ContainsAny []string `yaml:"contains_any"`
}

// PayRule replaces an item's pay_model when it case-insensitively equals
// PayModelHint.
type PayRule struct {
	PayModelHint string `yaml:"pay_model_hint"`
	NormalizeTo  string `yaml:"normalize_to"`
}

// RuleSet bundles the three rule tables the enrichment engine consumes.
type RuleSet struct {
	Tags  []TagRule
	Risks []RiskRule
	Pay   []PayRule
}

type tagRuleFile struct {
	Rules []TagRule `yaml:"rules"`
}

type riskRuleFile struct {
	Rules []RiskRule `yaml:"rules"`
}

type payRuleFile struct {
	Rules []PayRule `yaml:"rules"`
}

// LoadRuleSet reads tags.yaml, risk.yaml, and pay.yaml from dir.
func LoadRuleSet(dir string) (RuleSet, error) {
	var tags tagRuleFile
	if err := loadYAML(dir+"/tags.yaml", &tags); err != nil {
		return RuleSet{}, err
	}
	var risks riskRuleFile
	if err := loadYAML(dir+"/risk.yaml", &risks); err != nil {
		return RuleSet{}, err
	}
	var pay payRuleFile
	if err := loadYAML(dir+"/pay.yaml", &pay); err != nil {
		return RuleSet{}, err
	}
	return RuleSet{Tags: tags.Rules, Risks: risks.Rules, Pay: pay.Rules}, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("enrich: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("enrich: parsing %s: %w", path, err)
	}
	return nil
}

func containsInsensitive(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func dedupAppend(existing []string, value string) []string {
	for _, v := range existing {
		if v == value {
			return existing
		}
	}
	return append(existing, value)
}

// Apply mutates item in place: tags and risk flags accumulate from every
// rule whose needles match the item's combined title+description, and
// pay_model is rewritten by the first pay rule whose hint matches the
// item's current pay_model, preserving rule order so earlier rules win on
// conflicting normalizations.
func Apply(item *core.StagedOpportunity, rules RuleSet) {
	combined := strings.ToLower(item.Draft.Title.ValueOr("")) + " " + strings.ToLower(item.Draft.Description.ValueOr(""))

	for _, rule := range rules.Tags {
		for _, needle := range rule.ContainsAny {
			if containsInsensitive(combined, needle) {
				item.Tags = dedupAppend(item.Tags, rule.Tag)
				break
			}
		}
	}

	for _, rule := range rules.Risks {
		for _, needle := range rule.ContainsAny {
			if containsInsensitive(combined, needle) {
				item.RiskFlags = dedupAppend(item.RiskFlags, rule.RiskFlag)
				break
			}
		}
	}

	currentPayModel := item.Draft.PayModel.ValueOr("")
	for _, rule := range rules.Pay {
		if strings.EqualFold(currentPayModel, rule.PayModelHint) {
			normalized := rule.NormalizeTo
			item.Draft.PayModel = core.WithValueAndEvidence(normalized, evidenceForNormalizedPayModel(item))
			break
		}
	}
}

// evidenceForNormalizedPayModel preserves the prior evidence reference
// (source, selector, snippet) while swapping in the rule-normalized value,
// since the normalization is derived from the already-evidenced field
// rather than a fresh extraction.
func evidenceForNormalizedPayModel(item *core.StagedOpportunity) core.EvidenceRef {
	if item.Draft.PayModel.Evidence != nil {
		return *item.Draft.PayModel.Evidence
	}
	return core.EvidenceRef{}
}
