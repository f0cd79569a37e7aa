package layout

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Cycles reports recursive groups among names: every strongly connected
// component with more than one member, plus each node that lists itself as
// a child. Members are ordered as in names, and groups by their first
// member. Children outside names are ignored.
func Cycles(names []string, g Graph) [][]string {
	ids := make(map[string]int64, len(names))
	for i, name := range names {
		if _, ok := ids[name]; !ok {
			ids[name] = int64(i)
		}
	}

	directed := simple.NewDirectedGraph()
	for _, id := range ids {
		directed.AddNode(simple.Node(id))
	}

	selfLoops := make(map[int64]bool)
	for name, from := range ids {
		for _, child := range g.Children(name) {
			to, ok := ids[child]
			if !ok {
				continue
			}
			// simple graphs reject self edges
			if to == from {
				selfLoops[from] = true
				continue
			}
			directed.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}

	var groups [][]int64
	for _, scc := range topo.TarjanSCC(directed) {
		if len(scc) == 1 {
			if id := scc[0].ID(); selfLoops[id] {
				groups = append(groups, []int64{id})
			}
			continue
		}
		group := make([]int64, len(scc))
		for i, n := range scc {
			group[i] = n.ID()
		}
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	out := make([][]string, len(groups))
	for i, group := range groups {
		out[i] = make([]string, len(group))
		for j, id := range group {
			out[i][j] = names[id]
		}
	}
	return out
}
