// Package procgraph is a tiny read-only adjacency list of related
// administrative procedure IDs, consulted by context assembly to annotate
// "related procedures" without needing the full relationship-detection
// graph builder the original indexing pipeline ran offline.
package procgraph

// Graph maps a procedure ID to the IDs of procedures related to it (same
// domain, shared legal basis, or sequential flow — the distinction is
// flattened here since the retrieval core only needs the edge, not its
// kind).
type Graph struct {
	adjacency map[string][]string
}

// New builds a Graph from a precomputed adjacency list. The caller owns
// producing this list (e.g. by loading the indexing pipeline's graph
// export); Graph itself never mutates or recomputes it.
func New(adjacency map[string][]string) *Graph {
	if adjacency == nil {
		adjacency = map[string][]string{}
	}
	return &Graph{adjacency: adjacency}
}

// Related returns the procedure IDs related to procedureID, or nil if the
// graph has no entry for it. A nil Graph always returns nil, so callers can
// treat procgraph as an optional, nil-safe dependency.
func (g *Graph) Related(procedureID string) []string {
	if g == nil {
		return nil
	}
	return g.adjacency[procedureID]
}

// Len reports how many procedures have an entry in the adjacency list,
// including entries whose related-ID list is empty.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.adjacency)
}
