package layout

import (
	"strings"

	"github.com/l3aro/go-ir-query/pkg/ir"
)

// CallGraph exposes the call edges of a function list. Callees are
// resolved to the qualified name of a defined function, first by exact
// name and then by simple name; callees with no definition stay as leaves
// under the name they were called by.
type CallGraph struct {
	byName   map[string]int
	bySimple map[string]int
	fns      []ir.FunctionInfo
}

// NewCallGraph indexes functions for layout.
func NewCallGraph(functions []ir.FunctionInfo) *CallGraph {
	g := &CallGraph{
		byName:   make(map[string]int, len(functions)),
		bySimple: make(map[string]int, len(functions)),
		fns:      functions,
	}
	for i, fn := range functions {
		g.byName[fn.Name] = i
		if _, ok := g.bySimple[fn.SimpleName]; !ok {
			g.bySimple[fn.SimpleName] = i
		}
	}
	return g
}

// Resolve maps a callee reference onto the qualified name of its definition.
func (g *CallGraph) Resolve(name string) string {
	name = strings.TrimPrefix(name, "@")
	if _, ok := g.byName[name]; ok {
		return name
	}
	simple := name
	if i := strings.IndexByte(simple, '.'); i >= 0 {
		simple = simple[:i]
	}
	if i, ok := g.bySimple[simple]; ok {
		return g.fns[i].Name
	}
	return name
}

// Children returns the resolved callees of name.
func (g *CallGraph) Children(name string) []string {
	i, ok := g.byName[g.Resolve(name)]
	if !ok {
		return nil
	}
	return dedup(g.fns[i].Callees, g.Resolve)
}

// Names returns every function name in definition order.
func (g *CallGraph) Names() []string {
	out := make([]string, len(g.fns))
	for i, fn := range g.fns {
		out[i] = fn.Name
	}
	return out
}

// DataFlowGraph exposes operand edges of a node set: the children of a
// variable are the variables it reads. Parameters and other inputs with no
// defining node are leaves.
type DataFlowGraph struct {
	nodes *ir.NodeSet
}

// NewDataFlowGraph wraps a node set for layout.
func NewDataFlowGraph(nodes *ir.NodeSet) *DataFlowGraph {
	return &DataFlowGraph{nodes: nodes}
}

// Children returns the distinct inputs of variable name.
func (g *DataFlowGraph) Children(name string) []string {
	n, ok := g.nodes.Get(name)
	if !ok {
		return nil
	}
	return dedup(n.VarInputs, nil)
}

// Names returns every defined variable in discovery order.
func (g *DataFlowGraph) Names() []string {
	if g.nodes == nil {
		return nil
	}
	return append([]string(nil), g.nodes.Order...)
}

func dedup(in []string, resolve func(string) string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if resolve != nil {
			s = resolve(s)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
