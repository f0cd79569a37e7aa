package commands

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/spf13/cobra"
)

var funcsCmd = &cobra.Command{
	Use:   "funcs <file>",
	Short: "List the functions of an IR dump",
	Long: `Parses an IR dump and lists every function graph with its byte span,
return variable, return value and callees. Structural problems found while
parsing are reported as diagnostics; functions before them are still listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}

		g, err := ws.docs.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(g)
		}
		printGraph(args[0], g)
		return nil
	},
}

func printGraph(path string, g *ir.Graph) {
	fmt.Printf("=== Functions in %s ===\n", path)
	if g.Entry != "" {
		fmt.Printf("Entry: %s\n", g.Entry)
	}
	fmt.Printf("\nFunctions (%d):\n", len(g.Functions))
	for _, fn := range g.Functions {
		fmt.Printf("  %s [%d, %d)\n", fn.Name, fn.Span.Start, fn.Span.End)
		fmt.Printf("    returns %%%s : %s\n", fn.ReturnVariable, fn.ReturnValue)
		if len(fn.Callees) > 0 {
			fmt.Printf("    calls: %s\n", strings.Join(fn.Callees, ", "))
		}
	}
	printDiagnostics(g.Diagnostics)
}

func init() {
	funcsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
