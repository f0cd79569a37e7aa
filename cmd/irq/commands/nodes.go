package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/textsource"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes <file> <function>",
	Short: "List the instruction nodes of a function",
	Long: `Extracts the nodes of one function graph: for every defined variable the
operator it applies, the variables it reads and whether it also takes a
constant operand. The function may be named by its qualified or simple name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, function := args[0], args[1]
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}

		text, err := readDump(path)
		if err != nil {
			return err
		}
		set, err := ws.docs.Nodes(cmd.Context(), path, function)
		if err != nil {
			if errors.Is(err, ir.ErrUnknownFunction) {
				return fmt.Errorf("function %q not found in %s", function, path)
			}
			return fmt.Errorf("extracting nodes: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(set)
		}
		printNodes(textsource.NewDocument(text), set)
		return nil
	},
}

func printNodes(doc *textsource.Document, set *ir.NodeSet) {
	fmt.Printf("=== Nodes of %s ===\n", set.Function)
	fmt.Printf("\nNodes (%d):\n", set.Len())
	for _, v := range set.Order {
		n, _ := set.Get(v)
		inputs := "-"
		if len(n.VarInputs) > 0 {
			inputs = "%" + strings.Join(n.VarInputs, ", %")
		}
		constant := ""
		if n.HasConstantInput {
			constant = " +const"
		}
		fmt.Printf("  %%%-6s line %-5d %s (%s)%s\n", n.VariableName, doc.LineNumber(n.DefinePos), n.OperatorName, inputs, constant)
	}
	printDiagnostics(set.Diagnostics)
}

func init() {
	nodesCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
