// Package resolver expands a requested overlay set into its dependency
// closure over the overlay metadata graph.
//
// Resolution is a breadth-first walk of requires edges: newly discovered
// overlays are re-enqueued so multi-hop chains (a requires b requires c)
// resolve fully, and a processed guard keeps cyclic metadata — an
// authoring error, not a crash — from looping forever. After closure, the
// resolved set is scanned for declared conflicts. Conflicting overlays
// are reported but both stay in the result: a user's explicit selection
// is never silently dropped.
package resolver

import (
	"github.com/mmr-tortoise/devstack/internal/model"
	"github.com/mmr-tortoise/devstack/internal/overlay"
)

// Resolve computes the dependency closure of a selection request against
// a registry. The returned selection lists the requested overlays in
// category order followed by auto-added dependencies in discovery order,
// and satisfies the fixed-point invariant: every requires edge of every
// resolved overlay is itself in the resolved set.
//
// An id absent from the registry — whether requested directly or named
// by a requires edge — yields a model.ValidationError and no selection.
func Resolve(req model.SelectionRequest, reg *overlay.Registry) (*model.ResolvedSelection, error) {
	requested := req.AllOverlays()

	// Validate the explicit request up front so the error names the id
	// the user actually typed, not a transitive discovery.
	for _, id := range requested {
		if !reg.Has(id) {
			return nil, model.NewUnknownOverlayError(id)
		}
	}

	resolved := &model.ResolvedSelection{Request: req}

	processed := make(map[string]bool, len(requested))
	inResult := make(map[string]bool, len(requested))

	queue := make([]string, 0, len(requested))
	for _, id := range requested {
		if inResult[id] {
			continue
		}
		inResult[id] = true
		resolved.Overlays = append(resolved.Overlays, id)
		queue = append(queue, id)
	}

	// Breadth-first closure over requires edges.
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if processed[id] {
			continue
		}
		processed[id] = true

		manifest, ok := reg.Manifest(id)
		if !ok {
			// Requested ids were validated above, so this is a dangling
			// requires edge in overlay metadata.
			return nil, model.NewUnknownOverlayError(id)
		}

		for _, reqID := range manifest.Requires {
			if !inResult[reqID] {
				if !reg.Has(reqID) {
					return nil, model.NewUnknownOverlayError(reqID)
				}
				inResult[reqID] = true
				resolved.Overlays = append(resolved.Overlays, reqID)
				resolved.AutoAdded = append(resolved.AutoAdded, model.AutoAdded{
					ID:     reqID,
					Reason: id,
				})
			}
			// Re-enqueue even already-present ids: they may not have been
			// processed yet, and their own requires must still be walked.
			if !processed[reqID] {
				queue = append(queue, reqID)
			}
		}
	}

	resolved.Conflicts = scanConflicts(resolved.Overlays, reg)

	return resolved, nil
}

// scanConflicts finds declared conflicts within a resolved set. Each
// unordered pair is reported once, in the order the scan encounters it.
func scanConflicts(ids []string, reg *overlay.Registry) []model.ConflictPair {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	seen := make(map[[2]string]bool)
	var pairs []model.ConflictPair

	for _, id := range ids {
		manifest, ok := reg.Manifest(id)
		if !ok {
			continue
		}
		for _, other := range manifest.Conflicts {
			if !inSet[other] {
				continue
			}
			key := [2]string{id, other}
			if other < id {
				key = [2]string{other, id}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, model.ConflictPair{A: id, B: other})
		}
	}

	return pairs
}
