package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "irq",
	Short: "go-ir-query - Function graph queries over IR dumps",
	Long: `go-ir-query reads textual IR graph dumps and answers structural questions about them.

Commands:
  funcs       List the functions of a dump with their callees and return values
  at          Find the function containing an offset or line:column
  nodes       List the instruction nodes of one function
  layout      Compute grid positions for the call graph or a function's data flow
  scan        Parse every dump under a directory
  init        Create a configuration file interactively
  doctor      Check configuration and local cache state
  daemon      Start, stop or inspect irqd, the background parsing daemon

Use "irq [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: project, then global config)")
	RootCmd.PersistentFlags().Bool("daemon", false, "Answer document queries through a running irqd")

	RootCmd.AddCommand(funcsCmd)
	RootCmd.AddCommand(atCmd)
	RootCmd.AddCommand(nodesCmd)
	RootCmd.AddCommand(layoutCmd)
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(daemonCmd)
}
