package adapters

import (
	"encoding/json"
	"fmt"
)

// jsonOverrides mirrors htmlOverrides but is produced by walking a raw JSON
// object per the adapter registry's JSON fallback-path contract.
type jsonOverrides = htmlOverrides

// extractJSONOverrides walks a raw JSON artifact looking up the canonical
// paths (with fallbacks) the adapter registry's parsing contract specifies
// for JSON sources: title, apply_url, description, reward.model|pay_model,
// reward.{min,max,currency}|pay_{min,max}|currency,
// hours_per_week_min|hours, verification_requirements|requirements,
// audience.country|geo, type (one_off/ongoing), payment_methods|payment,
// eligibility|requirements_list.
func extractJSONOverrides(raw string) (jsonOverrides, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return jsonOverrides{}, false
	}

	var out jsonOverrides
	found := false

	if v, ptr, ok := stringAt(doc, "title"); ok {
		out.title = &overrideField[string]{value: v, selectorOrPointer: ptr, snippet: v}
		found = true
	}
	if v, ptr, ok := stringAt(doc, "apply_url"); ok {
		out.applyURL = &overrideField[string]{value: v, selectorOrPointer: ptr, snippet: v}
		found = true
	}
	if v, ptr, ok := stringAt(doc, "description"); ok {
		out.description = &overrideField[string]{value: v, selectorOrPointer: ptr, snippet: sanitizeSnippet(v)}
		found = true
	}

	if v, ptr, ok := stringAtAny(doc, [][]string{{"reward", "model"}, {"pay_model"}}); ok {
		out.payModel = &overrideField[string]{value: normalizePayModelHint(v), selectorOrPointer: ptr, snippet: v}
		found = true
	}
	if v, ptr, ok := numberAtAny(doc, [][]string{{"reward", "min"}, {"pay_min"}}); ok {
		out.payRateMin = &overrideField[float64]{value: v, selectorOrPointer: ptr, snippet: fmt.Sprintf("%v", v)}
		found = true
	}
	if v, ptr, ok := numberAtAny(doc, [][]string{{"reward", "max"}, {"pay_max"}}); ok {
		out.payRateMax = &overrideField[float64]{value: v, selectorOrPointer: ptr, snippet: fmt.Sprintf("%v", v)}
		found = true
	}
	if v, ptr, ok := stringAtAny(doc, [][]string{{"reward", "currency"}, {"currency"}}); ok {
		out.currency = &overrideField[string]{value: v, selectorOrPointer: ptr, snippet: v}
		found = true
	}
	if v, ptr, ok := numberAtAny(doc, [][]string{{"hours_per_week_min"}, {"hours"}}); ok {
		out.minHoursPerWeek = &overrideField[float64]{value: v, selectorOrPointer: ptr, snippet: fmt.Sprintf("%v", v)}
		found = true
	}
	if v, ptr, ok := stringAtAny(doc, [][]string{{"verification_requirements"}, {"requirements"}}); ok {
		out.verificationRequirements = &overrideField[string]{value: v, selectorOrPointer: ptr, snippet: v}
		found = true
	}
	if v, ptr, ok := stringAtAny(doc, [][]string{{"audience", "country"}, {"geo"}}); ok {
		out.geoConstraints = &overrideField[string]{value: v, selectorOrPointer: ptr, snippet: v}
		found = true
	}
	if v, ptr, ok := stringAt(doc, "type"); ok {
		if normalized := normalizeDuration(v); normalized != "" {
			out.oneOffVsOngoing = &overrideField[string]{value: normalized, selectorOrPointer: ptr, snippet: v}
			found = true
		}
	}
	if v, ptr, ok := stringListAtAny(doc, [][]string{{"payment_methods"}, {"payment"}}); ok {
		out.paymentMethods = &overrideField[[]string]{value: v, selectorOrPointer: ptr, snippet: fmt.Sprintf("%v", v)}
		found = true
	}
	if v, ptr, ok := stringListAtAny(doc, [][]string{{"eligibility"}, {"requirements_list"}}); ok {
		out.requirements = &overrideField[[]string]{value: v, selectorOrPointer: ptr, snippet: fmt.Sprintf("%v", v)}
		found = true
	}

	return out, found
}

// normalizePayModelHint maps a raw JSON reward model string ("one-off",
// "per-task", "hourly", ...) onto the same task-based/fixed/hourly/one_off
// vocabulary the HTML pay parser produces, without discarding an unknown hint.
func normalizePayModelHint(v string) string {
	if model := parsePayModel(v); model != "" {
		return model
	}
	if normalized := normalizeDuration(v); normalized != "" {
		return normalized
	}
	return v
}

func pointerString(path []string) string {
	p := ""
	for _, seg := range path {
		p += "/" + seg
	}
	return p
}

func lookup(doc map[string]any, path []string) (any, bool) {
	var cur any = doc
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringAt(doc map[string]any, key string) (string, string, bool) {
	return stringAtAny(doc, [][]string{{key}})
}

func stringAtAny(doc map[string]any, paths [][]string) (string, string, bool) {
	for _, path := range paths {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s, pointerString(path), true
		}
	}
	return "", "", false
}

func numberAtAny(doc map[string]any, paths [][]string) (float64, string, bool) {
	for _, path := range paths {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		if n, ok := v.(float64); ok {
			return n, pointerString(path), true
		}
	}
	return 0, "", false
}

func stringListAtAny(doc map[string]any, paths [][]string) ([]string, string, bool) {
	for _, path := range paths {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out, pointerString(path), true
		}
	}
	return nil, "", false
}
