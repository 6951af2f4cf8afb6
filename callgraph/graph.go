// Package callgraph builds the forward and reverse call graphs the
// backtracker walks: "Class:method" nodes connected by the method
// invocations tree-sitter finds in every parsed source file.
package callgraph

import (
	"sync"

	"github.com/wardenscan/javasentry/model"
)

// Graph is the forward call graph: caller -> ordered callees (duplicates
// allowed, insertion order preserved per caller). All mutation is
// expected to go through AddEdge while callers hold the shared engine
// mutex; Graph's own mutex makes it independently safe for package tests.
type Graph struct {
	mu      sync.Mutex
	forward map[model.Signature][]model.Signature
}

// New returns an empty call graph.
func New() *Graph {
	return &Graph{forward: make(map[model.Signature][]model.Signature)}
}

// AddEdge appends callee to caller's edge list.
func (g *Graph) AddEdge(caller, callee model.Signature) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forward[caller] = append(g.forward[caller], callee)
}

// Callees returns caller's recorded callees, in insertion order.
func (g *Graph) Callees(caller model.Signature) []model.Signature {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Signature, len(g.forward[caller]))
	copy(out, g.forward[caller])
	return out
}

// Reverse inverts the forward graph into a deduplicated callee -> callers
// map. It is built once, after all AST parsing completes, and never
// mutated afterward — callers treat it as an immutable snapshot.
type Reverse struct {
	callers map[model.Signature][]model.Signature
}

// BuildReverse derives the reverse graph. Single-threaded by contract:
// the build phase (forward graph construction) must have fully completed.
func (g *Graph) BuildReverse() *Reverse {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[model.Signature]map[model.Signature]bool)
	order := make(map[model.Signature][]model.Signature)
	for caller, callees := range g.forward {
		for _, callee := range callees {
			if seen[callee] == nil {
				seen[callee] = make(map[model.Signature]bool)
			}
			if seen[callee][caller] {
				continue
			}
			seen[callee][caller] = true
			order[callee] = append(order[callee], caller)
		}
	}
	return &Reverse{callers: order}
}

// Callers returns the deduplicated list of signatures that call callee.
func (r *Reverse) Callers(callee model.Signature) []model.Signature {
	out := make([]model.Signature, len(r.callers[callee]))
	copy(out, r.callers[callee])
	return out
}
