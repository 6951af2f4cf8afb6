// Package chainfinder backtracks breadth-first from a sink Signature
// through the reverse call graph until it reaches an HTTP entry point,
// with visited-state pruning, a cycle guard, and a depth cap.
package chainfinder

import (
	"github.com/wardenscan/javasentry/callgraph"
	"github.com/wardenscan/javasentry/classindex"
	"github.com/wardenscan/javasentry/model"
)

// EffectiveDepth applies the configured floor: a requested depth below 10
// is raised to 15, depths in [10,14] pass through unchanged (so they stay
// below the 15 floor), depths >= 15 pass through unchanged. This
// intentionally leaves [10,14] under-floored relative to the stated
// intent of "at least 15" — preserved verbatim from the reference
// implementation rather than "fixed", per the design notes.
func EffectiveDepth(requested int) int {
	if requested < 10 {
		return 15
	}
	return requested
}

type state struct {
	path    model.Chain
	depth   int
	visited map[model.Signature]bool
}

// Find enumerates every complete chain from sink back to an entry point,
// honoring depthCap (already passed through EffectiveDepth by the
// caller — chainfinder does not re-apply the floor, so callers that want
// the documented floor must call EffectiveDepth themselves; engine does).
// stop is polled once per BFS iteration; when it returns true the search
// returns immediately with whatever chains were already found.
func Find(sink model.Signature, depthCap int, reverse *callgraph.Reverse, index *classindex.Index, stop func() bool) []model.Chain {
	var chains []model.Chain

	globalVisited := make(map[model.Signature]map[int]bool)
	markVisited := func(sig model.Signature, depth int) bool {
		if globalVisited[sig] == nil {
			globalVisited[sig] = make(map[int]bool)
		}
		if globalVisited[sig][depth] {
			return false
		}
		globalVisited[sig][depth] = true
		return true
	}

	queue := []state{{
		path:    model.Chain{sink},
		depth:   0,
		visited: map[model.Signature]bool{sink: true},
	}}

	for len(queue) > 0 {
		if stop != nil && stop() {
			return chains
		}

		cur := queue[0]
		queue = queue[1:]

		callers := reverse.Callers(cur.path[0])
		if len(callers) == 0 {
			continue
		}

		newDepth := cur.depth + 1
		for _, caller := range callers {
			if cur.visited[caller] {
				continue // cycle guard within this path
			}
			if newDepth > depthCap {
				continue // len(chain) <= depthCap+1 invariant
			}
			if !markVisited(caller, newDepth) {
				continue // already explored this node at this exact depth
			}
			if !index.IsHasParameters(caller) {
				continue // no-arg methods can't carry tainted input
			}

			newPath := make(model.Chain, 0, len(cur.path)+1)
			newPath = append(newPath, caller)
			newPath = append(newPath, cur.path...)

			if index.IsEntryPoint(caller) {
				chains = append(chains, newPath)
				continue // entry points terminate the chain, never extended further
			}

			newVisited := make(map[model.Signature]bool, len(cur.visited)+1)
			for k := range cur.visited {
				newVisited[k] = true
			}
			newVisited[caller] = true

			queue = append(queue, state{path: newPath, depth: newDepth, visited: newVisited})
		}
	}

	return chains
}
