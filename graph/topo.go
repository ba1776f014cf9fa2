package graph

// TopoSort computes a dependency order for the graph's transactions: every
// transaction appears after every transaction that funds one of its inputs.
// It implements Kahn's algorithm directly over the name-keyed adjacency
// built from g.edges rather than reaching for a graph library, since ties
// (multiple transactions simultaneously ready) are broken by insertion
// order, which this loop gets for free by always scanning g.order from the
// front.
func (g *TransactionGraph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.order))
	outgoing := make(map[string][]string, len(g.order))
	for _, name := range g.order {
		indegree[name] = 0
	}
	for _, e := range g.edges {
		if e.External {
			continue
		}
		outgoing[e.From] = append(outgoing[e.From], e.To)
		indegree[e.To]++
	}

	done := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))

	for len(result) < len(g.order) {
		progressed := false
		for _, name := range g.order {
			if done[name] || indegree[name] != 0 {
				continue
			}
			done[name] = true
			result = append(result, name)
			progressed = true
			for _, next := range outgoing[name] {
				indegree[next]--
			}
		}
		if !progressed {
			break
		}
	}

	if len(result) < len(g.order) {
		var remaining []string
		for _, name := range g.order {
			if !done[name] {
				remaining = append(remaining, name)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}

	return result, nil
}
