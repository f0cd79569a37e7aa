package commands

import (
	"fmt"
	"time"

	"github.com/l3aro/go-ir-query/internal/daemon"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage irqd, the background parsing daemon",
	Long: `irqd keeps dumps parsed between commands. Once it runs, pass --daemon to
funcs, at, nodes and layout to answer them from the daemon.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start irqd in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		socketPath, _ := cmd.Flags().GetString("socket")
		verbose, _ := cmd.Flags().GetBool("verbose")
		foreground, _ := cmd.Flags().GetBool("foreground")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		result, err := daemon.Start(cmd.Context(), &daemon.StartOptions{
			ConfigPath:   configPath,
			SocketPath:   socketPath,
			Verbose:      verbose,
			WaitForReady: true,
			ReadyTimeout: timeout,
			Background:   !foreground,
		})
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("%s (pid %d)", result.Error, result.PID)
		}
		fmt.Printf("irqd started (pid %d)\n", result.PID)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop irqd",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := daemon.Stop()
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("%s", result.Error)
		}
		if result.Forced {
			fmt.Printf("irqd killed (pid %d) after it ignored the stop request\n", result.PID)
			return nil
		}
		fmt.Printf("irqd stopped (pid %d)\n", result.PID)
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether irqd is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := daemon.GetStatus()
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(result)
		}

		fmt.Printf("Status: %s\n", result.Status)
		if result.PID != 0 {
			fmt.Printf("PID: %d\n", result.PID)
		}
		if result.Version != "" {
			fmt.Printf("Version: %s\n", result.Version)
		}
		if result.Ready {
			fmt.Printf("Open documents: %d\n", result.Documents)
			if !result.StartedAt.IsZero() {
				fmt.Printf("Up since: %s\n", result.StartedAt.Format(time.RFC3339))
			}
		}
		if result.Error != "" {
			fmt.Printf("Error: %s\n", result.Error)
		}
		return nil
	},
}

func init() {
	daemonStartCmd.Flags().String("socket", "", "Unix socket path (default: $IRQ_SOCKET_PATH or the temp directory)")
	daemonStartCmd.Flags().Bool("verbose", false, "Log at debug level")
	daemonStartCmd.Flags().Bool("foreground", false, "Keep irqd attached to this terminal's output")
	daemonStartCmd.Flags().Duration("timeout", daemon.ReadyTimeout, "How long to wait for irqd to answer")
	daemonStatusCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd)
}
