package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/davidclay/rhof-sync/internal/core"
)

var ugcPolicy = bluemonday.UGCPolicy()

// sanitizeSnippet passes extracted text through bluemonday's UGC policy
// (unsafe markup is removed, safe formatting tags are kept) before it is
// recorded as an evidence snippet, matching how the sibling ingestion package
// sanitizes scraped HTML prior to storage.
func sanitizeSnippet(text string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(text))
}

// overrideField is one field an HTML/JSON extraction pass wants to stamp
// onto a draft, carrying its own selector/pointer and snippet for evidence.
type overrideField[T any] struct {
	value             T
	selectorOrPointer string
	snippet           string
}

// htmlOverrides is the result of running the HTML extraction pass over a
// bundle's raw inline text, per the adapter registry's parsing contract.
type htmlOverrides struct {
	title                    *overrideField[string]
	applyURL                 *overrideField[string]
	description              *overrideField[string]
	payModel                 *overrideField[string]
	payRateMin               *overrideField[float64]
	payRateMax               *overrideField[float64]
	currency                 *overrideField[string]
	minHoursPerWeek          *overrideField[float64]
	verificationRequirements *overrideField[string]
	geoConstraints           *overrideField[string]
	oneOffVsOngoing          *overrideField[string]
	paymentMethods           *overrideField[[]string]
	requirements             *overrideField[[]string]
}

// extractHTMLOverrides runs the adapter registry's §4.4 HTML extraction
// pass: h1 for title, first a[href] for apply_url, .job-description/.summary
// for description, .pay for pay model/rate/currency, .hours,
// .verification, .geo, .duration, .payments (li or comma split), and
// .requirements li.
func extractHTMLOverrides(html string) (htmlOverrides, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return htmlOverrides{}, false
	}

	var out htmlOverrides
	found := false

	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		text := strings.TrimSpace(h1.Text())
		if text != "" {
			out.title = &overrideField[string]{value: text, selectorOrPointer: "h1", snippet: sanitizeSnippet(text)}
			found = true
		}
	}

	if link := doc.Find("a[href]").First(); link.Length() > 0 {
		if href, ok := link.Attr("href"); ok && href != "" {
			out.applyURL = &overrideField[string]{value: href, selectorOrPointer: "a[href]", snippet: href}
			found = true
		}
	}

	if desc := firstNonEmpty(doc, ".job-description", ".summary"); desc.sel != "" {
		out.description = &overrideField[string]{value: desc.text, selectorOrPointer: desc.sel, snippet: sanitizeSnippet(desc.text)}
		found = true
	}

	if pay := doc.Find(".pay").First(); pay.Length() > 0 {
		text := strings.TrimSpace(pay.Text())
		if text != "" {
			found = true
			if model := parsePayModel(text); model != "" {
				out.payModel = &overrideField[string]{value: model, selectorOrPointer: ".pay", snippet: sanitizeSnippet(text)}
			}
			if min, max, ok := parsePayRange(text); ok {
				out.payRateMin = &overrideField[float64]{value: min, selectorOrPointer: ".pay", snippet: sanitizeSnippet(text)}
				out.payRateMax = &overrideField[float64]{value: max, selectorOrPointer: ".pay", snippet: sanitizeSnippet(text)}
			}
			if currency, ok := parseCurrency(text); ok {
				out.currency = &overrideField[string]{value: currency, selectorOrPointer: ".pay", snippet: sanitizeSnippet(text)}
			}
		}
	}

	if hours := doc.Find(".hours").First(); hours.Length() > 0 {
		text := strings.TrimSpace(hours.Text())
		if min, _, ok := parsePayRange(text); ok {
			out.minHoursPerWeek = &overrideField[float64]{value: min, selectorOrPointer: ".hours", snippet: sanitizeSnippet(text)}
			found = true
		}
	}

	if verification := doc.Find(".verification").First(); verification.Length() > 0 {
		text := strings.TrimSpace(verification.Text())
		if text != "" {
			out.verificationRequirements = &overrideField[string]{value: text, selectorOrPointer: ".verification", snippet: sanitizeSnippet(text)}
			found = true
		}
	}

	if geo := doc.Find(".geo").First(); geo.Length() > 0 {
		text := strings.TrimSpace(geo.Text())
		if text != "" {
			out.geoConstraints = &overrideField[string]{value: text, selectorOrPointer: ".geo", snippet: sanitizeSnippet(text)}
			found = true
		}
	}

	if duration := doc.Find(".duration").First(); duration.Length() > 0 {
		text := strings.TrimSpace(duration.Text())
		if normalized := normalizeDuration(text); normalized != "" {
			out.oneOffVsOngoing = &overrideField[string]{value: normalized, selectorOrPointer: ".duration", snippet: sanitizeSnippet(text)}
			found = true
		}
	}

	if items := doc.Find(".payments li"); items.Length() > 0 {
		var methods []string
		items.Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				methods = append(methods, text)
			}
		})
		if len(methods) > 0 {
			out.paymentMethods = &overrideField[[]string]{value: methods, selectorOrPointer: ".payments li", snippet: sanitizeSnippet(strings.Join(methods, ", "))}
			found = true
		}
	} else if payments := doc.Find(".payments").First(); payments.Length() > 0 {
		text := strings.TrimSpace(payments.Text())
		if methods := splitCommaList(text); len(methods) > 0 {
			out.paymentMethods = &overrideField[[]string]{value: methods, selectorOrPointer: ".payments", snippet: sanitizeSnippet(text)}
			found = true
		}
	}

	if items := doc.Find(".requirements li"); items.Length() > 0 {
		var reqs []string
		items.Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				reqs = append(reqs, text)
			}
		})
		if len(reqs) > 0 {
			out.requirements = &overrideField[[]string]{value: reqs, selectorOrPointer: ".requirements li", snippet: sanitizeSnippet(strings.Join(reqs, ", "))}
			found = true
		}
	}

	return out, found
}

type selText struct {
	sel  string
	text string
}

func firstNonEmpty(doc *goquery.Document, selectors ...string) selText {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(node.Text())
		if text != "" {
			return selText{sel: sel, text: text}
		}
	}
	return selText{}
}

// applyField overrides dst with ov (when present), attaching evidence
// derived from bundle plus the override's own selector/snippet.
func applyField[T any](dst *core.Field[T], ov *overrideField[T], bundle FixtureBundle) {
	if ov == nil {
		return
	}
	*dst = core.WithValueAndEvidence(ov.value, core.EvidenceRef{
		RawArtifactID:     DeterministicRawArtifactID(bundle),
		SourceURL:         bundle.CapturedFromURL,
		SelectorOrPointer: ov.selectorOrPointer,
		Snippet:           ov.snippet,
		FetchedAt:         bundle.FetchedAt,
		ExtractorVersion:  bundle.ExtractorVersion,
	})
}

func (o htmlOverrides) applyTo(draft *core.OpportunityDraft, bundle FixtureBundle) {
	applyField(&draft.Title, o.title, bundle)
	applyField(&draft.ApplyURL, o.applyURL, bundle)
	applyField(&draft.Description, o.description, bundle)
	applyField(&draft.PayModel, o.payModel, bundle)
	applyField(&draft.PayRateMin, o.payRateMin, bundle)
	applyField(&draft.PayRateMax, o.payRateMax, bundle)
	applyField(&draft.Currency, o.currency, bundle)
	applyField(&draft.MinHoursPerWeek, o.minHoursPerWeek, bundle)
	applyField(&draft.VerificationRequirements, o.verificationRequirements, bundle)
	applyField(&draft.GeoConstraints, o.geoConstraints, bundle)
	applyField(&draft.OneOffVsOngoing, o.oneOffVsOngoing, bundle)
	applyField(&draft.PaymentMethods, o.paymentMethods, bundle)
	applyField(&draft.Requirements, o.requirements, bundle)
}
