package layout

import "github.com/l3aro/go-ir-query/pkg/ir"

// View is a laid out graph together with the cycles found in it.
type View struct {
	Root   string     `json:"root"`
	Layout *Result    `json:"layout"`
	Cycles [][]string `json:"cycles"`
}

// CallsView lays out the call graph of g. An empty root starts at the entry
// function. With all set, functions the traversal never reaches get columns
// of their own.
func CallsView(g *ir.Graph, root string, opts Options, all bool) *View {
	cg := NewCallGraph(g.Functions)
	if root == "" {
		root = cg.Resolve(g.Entry)
	}
	return view(root, cg, cg.Names(), opts, all)
}

// DataFlowView lays out the nodes of fn. An empty root starts at the
// returned variable.
func DataFlowView(fn ir.FunctionInfo, nodes *ir.NodeSet, root string, opts Options, all bool) *View {
	df := NewDataFlowGraph(nodes)
	if root == "" {
		root = fn.ReturnVariable
	}
	return view(root, df, df.Names(), opts, all)
}

func view(root string, g Graph, names []string, opts Options, all bool) *View {
	if all {
		opts.Unreached = names
	}
	return &View{
		Root:   root,
		Layout: Layout(root, g, opts),
		Cycles: Cycles(names, g),
	}
}
