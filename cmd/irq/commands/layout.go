package commands

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/layout"
	"github.com/spf13/cobra"
)

// LayoutOutput represents the output of the layout command
type LayoutOutput struct {
	File     string         `json:"file"`
	Graph    string         `json:"graph"` // "calls" or "nodes"
	Function string         `json:"function,omitempty"`
	Root     string         `json:"root"`
	Options  layout.Options `json:"options"`
	Layout   *layout.Result `json:"layout"`
	Cycles   [][]string     `json:"cycles"`
	Warnings []string       `json:"warnings,omitempty"`
}

var layoutCmd = &cobra.Command{
	Use:   "layout <file> [root]",
	Short: "Compute grid positions for a graph",
	Long: `Lays out the call graph of an IR dump, or with --nodes the data flow of one
function, on an integer grid. The tree strategy spreads siblings along X; the
depth strategy gives each depth its own row. The root defaults to the entry
function, or to the return variable for a data-flow layout. With --all the
names the traversal never reaches are placed in columns to the right.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}

		opts := ws.cfg.LayoutOptions()
		if s, _ := cmd.Flags().GetString("strategy"); s != "" {
			if opts.Strategy, err = layout.ParseStrategy(s); err != nil {
				return err
			}
		}
		if d, _ := cmd.Flags().GetInt("max-depth"); d > 0 {
			opts.MaxDepth = d
		}

		g, err := ws.docs.Graph(cmd.Context(), path)
		if err != nil {
			return err
		}

		var root string
		if len(args) > 1 {
			root = args[1]
		}
		all, _ := cmd.Flags().GetBool("all")

		out := LayoutOutput{File: path, Graph: "calls", Options: opts}
		var v *layout.View
		if function, _ := cmd.Flags().GetString("nodes"); function != "" {
			fn, ok := g.Function(function)
			if !ok {
				return fmt.Errorf("function %q not found in %s", function, path)
			}
			set, err := ws.docs.Nodes(cmd.Context(), path, fn.Name)
			if err != nil {
				if errors.Is(err, ir.ErrUnknownFunction) {
					return fmt.Errorf("function %q not found in %s", function, path)
				}
				return fmt.Errorf("extracting nodes: %w", err)
			}
			v = layout.DataFlowView(fn, set, root, opts, all)
			out.Graph, out.Function = "nodes", fn.Name
		} else {
			v = layout.CallsView(g, root, opts, all)
		}
		out.Root, out.Layout, out.Cycles = v.Root, v.Layout, v.Cycles
		for _, w := range out.Layout.Warnings {
			ws.logger.Warn("layout", "error", w)
			out.Warnings = append(out.Warnings, w.Error())
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(out)
		}
		printLayout(out)
		return nil
	},
}

func printLayout(out LayoutOutput) {
	title := "call graph"
	if out.Graph == "nodes" {
		title = "data flow of " + out.Function
	}
	fmt.Printf("=== Layout of %s (%s, root %s) ===\n", title, out.Options.Strategy, out.Root)

	fmt.Printf("\nPositions (%d):\n", len(out.Layout.Order))
	for _, name := range out.Layout.Order {
		p := out.Layout.Positions[name]
		fmt.Printf("  %-30s (%d, %d)\n", name, p.X, p.Y)
	}

	fmt.Printf("\nEdges (%d):\n", len(out.Layout.Edges))
	for _, e := range out.Layout.Edges {
		fmt.Printf("  %s -> %s\n", e.From, e.To)
	}
	fmt.Printf("\nBounds: %d x %d\n", out.Layout.Bounds.MaxX, out.Layout.Bounds.MaxY)

	if len(out.Cycles) > 0 {
		fmt.Printf("\nCycles (%d):\n", len(out.Cycles))
		for _, c := range out.Cycles {
			fmt.Printf("  %v\n", c)
		}
	}
	if len(out.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(out.Warnings))
		for _, w := range out.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}
}

func init() {
	layoutCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	layoutCmd.Flags().StringP("strategy", "s", "", "Layout strategy: tree or depth (default from config)")
	layoutCmd.Flags().StringP("nodes", "n", "", "Lay out the data flow of this function instead of the call graph")
	layoutCmd.Flags().BoolP("all", "a", false, "Also place names unreachable from the root")
	layoutCmd.Flags().Int("max-depth", 0, "Depth limit for the depth strategy (default from config)")
}
