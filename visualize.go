package bitvmx

import "github.com/bitvmx-labs/protocol-builder/graph"

// Visualize renders the protocol's transaction graph as Graphviz DOT,
// permitted in any lifecycle state.
func (p *Protocol) Visualize(mode graph.VisualizeMode) string {
	return p.Graph.Visualize(mode)
}
