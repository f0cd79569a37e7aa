// Package main implements irqd, the daemon that keeps IR dumps parsed
// between irq requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l3aro/go-ir-query/internal/config"
	"github.com/l3aro/go-ir-query/internal/daemon"
	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/dirty"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/session"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "irqd",
	Short: "irqd - keeps IR dumps parsed for irq",
	Long: `irqd serves document queries over a Unix socket (TCP on Windows). Dumps
stay parsed between requests and are only parsed again once enough edits
have been reported. Start it with 'irq daemon start' or run it directly.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	socketPath, _ := cmd.Flags().GetString("socket")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := cfg.Logger(os.Stderr)

	sess := session.New(
		session.WithLogger(logger),
		session.WithParseOptions(cfg.ParseOptions()),
		session.WithTracker(dirty.New(
			dirty.WithCacheDir(cfg.CacheDir),
			dirty.WithThreshold(cfg.ReparseThreshold),
		)),
		session.WithCache(cache.New(cache.Options[*ir.Snapshot]{MaxSize: cfg.CacheSize})),
		session.WithCachePath(cfg.CachePath()),
	)
	if err := sess.Load(); err != nil {
		logger.Warn("ignoring snapshot cache", "error", err)
	}

	srv := daemon.NewServer(cmd.Context(), sess,
		daemon.WithLogger(logger),
		daemon.WithLayoutOptions(cfg.LayoutOptions()),
		daemon.WithVersion(version),
	)

	l, err := daemon.Listen(socketPath)
	if err != nil {
		return err
	}

	pid := os.Getpid()
	if err := daemon.WritePID(pid); err != nil {
		l.Close()
		return err
	}
	if err := daemon.WriteStatus(&daemon.DaemonStatus{
		Running:   true,
		Ready:     true,
		PID:       pid,
		StartedAt: time.Now(),
		Version:   version,
	}); err != nil {
		logger.Warn("writing status file", "error", err)
	}
	defer cleanup(pid, logger)

	logger.Info("irqd started", "version", version, "pid", pid)
	if err := srv.Serve(l); err != nil {
		return err
	}

	logger.Info("irqd stopping", "documents", sess.Documents())
	if err := sess.Save(); err != nil {
		logger.Error("saving state", "error", err)
	}
	return nil
}

// cleanup removes the PID and status files unless another daemon has
// claimed them since.
func cleanup(pid int, logger log.Logger) {
	if owner, err := daemon.ReadPID(); err != nil || owner != pid {
		return
	}
	if err := daemon.RemovePID(); err != nil {
		logger.Warn("removing PID file", "error", err)
	}
	if err := daemon.RemoveStatus(); err != nil {
		logger.Warn("removing status file", "error", err)
	}
}

func main() {
	rootCmd.Flags().String("config", "", "Config file path (default: project, then global config)")
	rootCmd.Flags().String("socket", "", "Unix socket path (default: $IRQ_SOCKET_PATH or the temp directory)")
	rootCmd.Flags().Bool("verbose", false, "Log at debug level")
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`irqd version {{.Version}}
`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "irqd:", err)
		stop()
		os.Exit(1)
	}
}
