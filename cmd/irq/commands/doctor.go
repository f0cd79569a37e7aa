package commands

import (
	"fmt"
	"os"

	"github.com/l3aro/go-ir-query/internal/config"
	"github.com/l3aro/go-ir-query/internal/healthcheck"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration and cache state",
	Long: `Checks the configuration and verifies that the cache directory, the
snapshot cache and the edit tracker state can be read and written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfigWithPath(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		result, err := healthcheck.Check(cfg, configPath, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed: one or more components are unusable")
		}
		return nil
	},
}

// loadConfigWithPath loads the effective config and reports which file it
// came from. Without any config file the defaults are used and the path is
// empty.
func loadConfigWithPath(cmd *cobra.Command) (*config.Config, string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFromFile(path)
		return cfg, path, err
	}

	effectivePath := ""
	for _, path := range []string{config.ProjectPath(), config.GlobalPath()} {
		if fileExists(path) {
			effectivePath = path
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	return cfg, effectivePath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Println("Using config: built-in defaults (run 'irq init' to create a config file)")
	} else {
		fmt.Printf("Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}
	displayComponents(result)
}

func displayComponents(result *healthcheck.HealthCheckResult) {
	for _, c := range result.Components() {
		fmt.Printf("\n%s:\n", c.Name)
		if c.Path != "" {
			fmt.Printf("  Path: %s\n", c.Path)
		}
		fmt.Printf("  Status: %s %s\n", formatStatusIcon(c.Status), c.Status)
		if c.Entries > 0 {
			fmt.Printf("  Entries: %d\n", c.Entries)
		}
		if c.Error != "" {
			fmt.Printf("  Error: %s\n", c.Error)
		}
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return "✓"
	case healthcheck.StatusMissing:
		return "○"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}
