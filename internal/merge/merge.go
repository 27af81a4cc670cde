// Package merge implements the deterministic deep-merge engine at the core
// of devstack's composition pipeline.
//
// Merge combines two structured documents (the generic map/array/scalar
// shapes produced by encoding/json and yaml.v3) into a new document,
// never mutating either input. The generic rules are structural; a small
// ordered list of named-field overrides (remoteEnv PATH handling,
// space-separated package lists) is consulted first, keeping the generic
// engine pure and the special cases independently testable.
//
// Merge is total: every pair of well-formed documents merges to a
// well-formed document, so this package has no error path at all. It is
// also order-sensitive — folding documents A,B,C sequentially equals a
// single left-to-right reduce, and array unions keep first-seen elements
// in place — which is why the orchestrator applies overlays in a fixed
// sequence and never in parallel.
package merge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// pathPlaceholder is the devcontainer substitution token for the
// container's inherited PATH. The PATH merge rule keeps exactly one
// occurrence, always at the end of the merged value.
const pathPlaceholder = "${containerEnv:PATH}"

// packageListFields names the space-separated package-list fields that
// merge by token union instead of plain string replacement. Two overlays
// both declaring "curl git" and "git jq" end up with "curl git jq".
var packageListFields = map[string]bool{
	"packages":      true,
	"extraPackages": true,
	"aptPackages":   true,
	"pipPackages":   true,
	"npmPackages":   true,
	"brewPackages":  true,
}

// override is a named-field special case consulted before the generic
// structural rules. Matches receives the key being merged; Apply receives
// the two values and returns the merged value.
type override struct {
	name    string
	matches func(key string, target, source any) bool
	apply   func(target, source any) any
}

// overrides is the ordered list of special cases. Order matters: the
// first match wins, and anything unmatched falls through to the generic
// object/array/scalar rules.
var overrides = []override{
	{
		name: "remoteEnv",
		matches: func(key string, target, source any) bool {
			if key != "remoteEnv" {
				return false
			}
			_, tok := target.(map[string]any)
			_, sok := source.(map[string]any)
			return tok && sok
		},
		apply: func(target, source any) any {
			return mergeRemoteEnv(target.(map[string]any), source.(map[string]any))
		},
	},
	{
		name: "package-list",
		matches: func(key string, target, source any) bool {
			if !packageListFields[key] {
				return false
			}
			_, tok := target.(string)
			_, sok := source.(string)
			return tok && sok
		},
		apply: func(target, source any) any {
			return mergeTokenList(target.(string), source.(string))
		},
	},
}

// Merge combines source into target and returns a new document. Neither
// input is modified. Rules, in priority order:
//
//  1. Named-field overrides (remoteEnv, package lists) — see overrides.
//  2. Both values are objects → recurse per key.
//  3. Both values are arrays → union with dedup: target elements first,
//     then unseen source elements, order preserved. An empty source array
//     never clears a non-empty target array.
//  4. Otherwise → source replaces target. A JSON null is an explicit
//     overwrite, not a no-op.
//  5. Keys absent from source keep their target value untouched.
func Merge(target, source map[string]any) map[string]any {
	result := make(map[string]any, len(target)+len(source))

	// Start from a deep copy of target so later mutation of the result
	// can never reach back into the inputs.
	for k, v := range target {
		result[k] = Clone(v)
	}

	for k, sv := range source {
		tv, exists := result[k]
		if !exists {
			result[k] = Clone(sv)
			continue
		}
		result[k] = mergeValue(k, tv, sv)
	}

	return result
}

// Fold applies Merge left-to-right over a sequence of documents starting
// from base. Fold(base, a, b) is by construction identical to
// Merge(Merge(base, a), b) — the orchestrator relies on this equivalence.
func Fold(base map[string]any, docs ...map[string]any) map[string]any {
	result := Merge(base, map[string]any{})
	for _, doc := range docs {
		result = Merge(result, doc)
	}
	return result
}

// mergeValue merges a single key's values. The key is needed because the
// named-field overrides dispatch on it.
func mergeValue(key string, target, source any) any {
	// Overrides run before everything else, in declaration order.
	for _, ov := range overrides {
		if ov.matches(key, target, source) {
			return ov.apply(target, source)
		}
	}

	// Rule 2: object vs object recurses. Arrays cannot sneak in here — in
	// Go they are []any, not map[string]any, so the assertions are exact.
	tm, tok := target.(map[string]any)
	sm, sok := source.(map[string]any)
	if tok && sok {
		return Merge(tm, sm)
	}

	// Rule 3: array vs array unions.
	ta, tok := target.([]any)
	sa, sok := source.([]any)
	if tok && sok {
		return unionArrays(ta, sa)
	}

	// Rule 4: scalars, type mismatches, and explicit nulls all replace.
	return Clone(source)
}

// unionArrays returns target's elements followed by source elements not
// already present, preserving order. Equality is structural, so two
// distinct map values with the same content count as duplicates.
func unionArrays(target, source []any) []any {
	result := make([]any, 0, len(target)+len(source))
	seen := make(map[string]bool, len(target)+len(source))

	for _, v := range target {
		key := canonicalKey(v)
		if !seen[key] {
			seen[key] = true
			result = append(result, Clone(v))
		}
	}
	for _, v := range source {
		key := canonicalKey(v)
		if !seen[key] {
			seen[key] = true
			result = append(result, Clone(v))
		}
	}

	return result
}

// canonicalKey renders a value to a stable string for structural
// dedup. JSON marshaling sorts map keys, so logically equal maps render
// identically. Values that cannot marshal (never the case for documents
// that came from JSON/YAML) fall back to fmt formatting.
func canonicalKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

// mergeRemoteEnv merges the remoteEnv object: the PATH subkey gets the
// placeholder-aware segment union; every other subkey follows the plain
// replacement rule.
func mergeRemoteEnv(target, source map[string]any) map[string]any {
	result := make(map[string]any, len(target)+len(source))
	for k, v := range target {
		result[k] = Clone(v)
	}

	for k, sv := range source {
		tv, exists := result[k]
		if k == "PATH" && exists {
			ts, tok := tv.(string)
			ss, sok := sv.(string)
			if tok && sok {
				result[k] = mergePathValue(ts, ss)
				continue
			}
		}
		result[k] = Clone(sv)
	}

	return result
}

// mergePathValue merges two PATH-style values. Both sides are split on
// ":", the literal ${containerEnv:PATH} placeholder is dropped from each,
// the remaining segments union-dedup (target first), and the placeholder
// is appended exactly once at the end.
func mergePathValue(target, source string) string {
	segments := make([]string, 0, 8)
	seen := make(map[string]bool)

	appendSegments := func(value string) {
		// Strip the placeholder before splitting — it contains a colon
		// itself, so splitting first would shred it.
		cleaned := strings.ReplaceAll(value, pathPlaceholder, "")
		for _, seg := range strings.Split(cleaned, ":") {
			if seg == "" || seen[seg] {
				continue
			}
			seen[seg] = true
			segments = append(segments, seg)
		}
	}

	appendSegments(target)
	appendSegments(source)

	segments = append(segments, pathPlaceholder)
	return strings.Join(segments, ":")
}

// mergeTokenList merges two space-separated token lists by union-dedup,
// target tokens first, single spaces in the output.
func mergeTokenList(target, source string) string {
	tokens := make([]string, 0, 8)
	seen := make(map[string]bool)

	for _, field := range append(strings.Fields(target), strings.Fields(source)...) {
		if seen[field] {
			continue
		}
		seen[field] = true
		tokens = append(tokens, field)
	}

	return strings.Join(tokens, " ")
}

// Clone deep-copies a document value. Maps and slices are copied
// recursively; scalars are returned as-is (they are immutable in Go).
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	default:
		return val
	}
}

// CloneDoc is Clone specialized to top-level documents, sparing callers a
// type assertion.
func CloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return Clone(doc).(map[string]any)
}
