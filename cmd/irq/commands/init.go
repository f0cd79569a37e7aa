package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/l3aro/go-ir-query/internal/config"
	"github.com/l3aro/go-ir-query/internal/healthcheck"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize irq configuration interactively",
	Long: `Guides you through setting up irq configuration step by step.
Creates a config file with dump discovery, layout and parsing settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

// positiveInt validates a numeric form field.
func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Scope ===
	scope := "project"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the configuration be saved?").
				Options(
					huh.NewOption("This project ("+config.ProjectPath()+")", "project"),
					huh.NewOption("All projects ("+config.GlobalPath()+")", "global"),
				).
				Value(&scope),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Discovery ===
	extensions := strings.Join(cfg.Extensions, ", ")
	workers := strconv.Itoa(cfg.Workers)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IR dump extensions").
				Description("Comma separated, each starting with a dot").
				Placeholder(".ir").
				Value(&extensions),
			huh.NewInput().
				Title("Parallel parses during scans").
				Placeholder("4").
				Validate(positiveInt).
				Value(&workers),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Layout ===
	strategy := cfg.LayoutStrategy
	distanceX := strconv.Itoa(cfg.LayoutDistanceX)
	distanceY := strconv.Itoa(cfg.LayoutDistanceY)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Layout strategy").
				Description("Tree spreads siblings along X; depth gives every level its own row").
				Options(
					huh.NewOption("Tree", "tree"),
					huh.NewOption("Depth", "depth"),
				).
				Value(&strategy),
			huh.NewInput().
				Title("Horizontal spacing").
				Placeholder("200").
				Validate(positiveInt).
				Value(&distanceX),
			huh.NewInput().
				Title("Vertical spacing").
				Placeholder("100").
				Validate(positiveInt).
				Value(&distanceY),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 4: Parsing ===
	threshold := strconv.Itoa(cfg.ReparseThreshold)
	logLevel := cfg.LogLevel
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Re-parse threshold").
				Description("Edited characters before an open dump is parsed again").
				Placeholder("64").
				Validate(positiveInt).
				Value(&threshold),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&logLevel),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.Extensions = nil
	for _, ext := range strings.Split(extensions, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			cfg.Extensions = append(cfg.Extensions, ext)
		}
	}
	// validated by the form
	cfg.Workers, _ = strconv.Atoi(strings.TrimSpace(workers))
	cfg.LayoutStrategy = strategy
	cfg.LayoutDistanceX, _ = strconv.Atoi(strings.TrimSpace(distanceX))
	cfg.LayoutDistanceY, _ = strconv.Atoi(strings.TrimSpace(distanceY))
	cfg.LayoutColumnWidth = cfg.LayoutDistanceX
	cfg.ReparseThreshold, _ = strconv.Atoi(strings.TrimSpace(threshold))
	cfg.LogLevel = logLevel

	// Validate config before saving
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	configPath := config.ProjectPath()
	if scope == "global" {
		configPath = config.GlobalPath()
	}

	// Show config preview
	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Extensions: %s\n", strings.Join(cfg.Extensions, ", "))
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Layout: %s (%d x %d)\n", cfg.LayoutStrategy, cfg.LayoutDistanceX, cfg.LayoutDistanceY)
	fmt.Printf("Re-parse threshold: %d\n", cfg.ReparseThreshold)
	fmt.Printf("Log level: %s\n", cfg.LogLevel)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// === SECTION 5: Health Check ===
	fmt.Println("\n=== Running Health Check ===")

	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}

	result, err := healthcheck.Check(loadedCfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("\nConfig Scope: %s\n", result.SavedScope)
	if result.SavedScope == "global" {
		fmt.Printf("Config Path: %s\n", configPath)
	} else {
		absPath, _ := filepath.Abs(configPath)
		fmt.Printf("Config Path: %s\n", absPath)
	}
	displayComponents(result)

	fmt.Println("\n=== Initialization Complete ===")
	return nil
}
