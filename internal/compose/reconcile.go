// Package compose implements the docker-compose reconciler: it folds the
// compose fragments contributed by the base template and each overlay into
// one consistent compose document.
//
// Services merge by name through the generic deep-merge engine, so
// per-service arrays (volumes, ports, environment) union-dedup instead of
// one overlay clobbering another. Top-level volumes and networks merge
// shallowly by key. After folding, depends_on entries that name services
// absent from the final document are pruned — an overlay may declare a
// dependency on a service contributed by an overlay the user did not
// select.
//
// Like the merge engine, reconciliation operates on schema-less generic
// documents (map[string]any from yaml.v3) so fields this tool has never
// heard of pass through untouched.
package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/devstack/internal/merge"
)

// Parse unmarshals compose YAML into the generic document shape.
func Parse(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse compose YAML: %w", err)
	}
	return doc, nil
}

// Serialize marshals a compose document back to YAML with yaml.v3's
// default two-space indentation.
func Serialize(doc map[string]any) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize compose YAML: %w", err)
	}
	return data, nil
}

// Reconcile folds compose documents left to right into a single document.
// Inputs are never mutated. nil documents are skipped, so callers can pass
// the raw per-overlay fragment list without filtering.
//
// Fold rules:
//   - services: merge per service name via the deep-merge engine
//   - volumes, networks: shallow merge by key, last writer wins per entry
//   - anything else: objects deep-merge, scalars replace
//
// After folding, depends_on entries referencing services absent from the
// final services map are dropped; empty depends_on, volumes, and networks
// are removed entirely.
func Reconcile(docs []map[string]any) map[string]any {
	result := make(map[string]any)

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		foldInto(result, doc)
	}

	pruneDanglingDependsOn(result)
	dropEmptySection(result, "volumes")
	dropEmptySection(result, "networks")

	return result
}

// foldInto merges one compose document into the accumulator.
func foldInto(result, doc map[string]any) {
	for key, value := range doc {
		switch key {
		case "services":
			result["services"] = mergeServices(result["services"], value)
		case "volumes", "networks":
			result[key] = mergeShallow(result[key], value)
		default:
			// version, name, x-* extensions: objects deep-merge, anything
			// else takes the later document's value.
			if tm, ok := result[key].(map[string]any); ok {
				if sm, ok := value.(map[string]any); ok {
					result[key] = merge.Merge(tm, sm)
					continue
				}
			}
			result[key] = merge.Clone(value)
		}
	}
}

// mergeServices merges the services maps of two documents service by
// service. Each service sub-document goes through the full deep-merge
// engine so its arrays union rather than replace.
func mergeServices(target, source any) map[string]any {
	result, _ := target.(map[string]any)
	if result == nil {
		result = make(map[string]any)
	}

	sm, ok := source.(map[string]any)
	if !ok {
		return result
	}

	for name, svc := range sm {
		existing, exists := result[name]
		if !exists {
			result[name] = merge.Clone(svc)
			continue
		}

		tsvc, tok := existing.(map[string]any)
		ssvc, sok := svc.(map[string]any)
		if tok && sok {
			result[name] = merge.Merge(tsvc, ssvc)
		} else {
			result[name] = merge.Clone(svc)
		}
	}

	return result
}

// mergeShallow merges two maps one level deep: later entries replace
// earlier ones wholesale, without recursing.
func mergeShallow(target, source any) map[string]any {
	result, _ := target.(map[string]any)
	if result == nil {
		result = make(map[string]any)
	}

	sm, ok := source.(map[string]any)
	if !ok {
		return result
	}

	for k, v := range sm {
		result[k] = merge.Clone(v)
	}

	return result
}

// pruneDanglingDependsOn walks every service and removes depends_on
// references to services that do not exist in the final document. Both
// forms are handled: the array-of-names form and the map-of-name-to-
// condition form. A depends_on left empty after pruning is removed.
func pruneDanglingDependsOn(doc map[string]any) {
	services, ok := doc["services"].(map[string]any)
	if !ok {
		return
	}

	for _, svc := range services {
		svcMap, ok := svc.(map[string]any)
		if !ok {
			continue
		}

		deps, exists := svcMap["depends_on"]
		if !exists {
			continue
		}

		switch d := deps.(type) {
		case []any:
			kept := make([]any, 0, len(d))
			for _, dep := range d {
				name, ok := dep.(string)
				if !ok {
					kept = append(kept, dep)
					continue
				}
				if _, present := services[name]; present {
					kept = append(kept, dep)
				}
			}
			if len(kept) == 0 {
				delete(svcMap, "depends_on")
			} else {
				svcMap["depends_on"] = kept
			}
		case map[string]any:
			for name := range d {
				if _, present := services[name]; !present {
					delete(d, name)
				}
			}
			if len(d) == 0 {
				delete(svcMap, "depends_on")
			}
		}
	}
}

// dropEmptySection removes a top-level map key when it folded down to an
// empty map, keeping the output document minimal.
func dropEmptySection(doc map[string]any, key string) {
	if m, ok := doc[key].(map[string]any); ok && len(m) == 0 {
		delete(doc, key)
	}
}

// ServiceNames returns the service names present in a compose document,
// in map iteration order. Callers needing stable order must sort.
func ServiceNames(doc map[string]any) []string {
	services, ok := doc["services"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	return names
}
