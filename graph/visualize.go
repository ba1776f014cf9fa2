package graph

import (
	"fmt"
	"strings"
)

// VisualizeMode selects how Visualize renders a connection between two
// transactions.
type VisualizeMode uint8

const (
	// Default labels each edge with its connection name.
	Default VisualizeMode = iota
	// EdgeArrows additionally labels each edge with the output/input
	// index pair it connects, useful when a transaction has several
	// outputs feeding different downstream inputs.
	EdgeArrows
)

// Visualize renders the graph as a Graphviz DOT document, built directly via
// string concatenation rather than through a graphviz client library.
func (g *TransactionGraph) Visualize(mode VisualizeMode) string {
	var b strings.Builder
	b.WriteString("digraph {\ngraph [rankdir=LR]\nnode [shape=Record]\n")

	for _, e := range g.edges {
		from := e.From
		if e.External {
			from = fmt.Sprintf("external_%s", e.Txid.String()[:8])
		}

		label := e.Name
		if mode == EdgeArrows {
			label = fmt.Sprintf("%s (%d->%d)", e.Name, e.OutputIndex, e.InputIndex)
		}

		fmt.Fprintf(&b, "%s -> %s [label=%q]\n", from, e.To, label)
	}

	b.WriteByte('}')
	return b.String()
}
