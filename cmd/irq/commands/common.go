// Package commands provides the CLI commands for the go-ir-query tool.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/l3aro/go-ir-query/internal/config"
	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/client"
	"github.com/l3aro/go-ir-query/pkg/dirty"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/session"
	"github.com/spf13/cobra"
)

// workspace bundles what every command needs.
type workspace struct {
	cfg     *config.Config
	logger  log.Logger
	session *session.Session
	// docs is the workspace itself, or irqd with --daemon
	docs documents
}

// documents answers document queries in process or through irqd.
type documents interface {
	Graph(ctx context.Context, path string) (*ir.Graph, error)
	Nodes(ctx context.Context, path, function string) (*ir.NodeSet, error)
}

// loadConfig honours --config, otherwise layers global, project and env.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openWorkspace loads config and builds a session backed by the persisted
// snapshot cache. A cache that cannot be read is reported and ignored.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
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

	ws := &workspace{cfg: cfg, logger: logger, session: sess}
	ws.docs = ws
	if useDaemon, _ := cmd.Flags().GetBool("daemon"); useDaemon {
		c := client.New()
		if !c.Available(cmd.Context()) {
			return nil, fmt.Errorf("irqd is not running (start it with 'irq daemon start')")
		}
		ws.docs = remote{client: c}
	}
	return ws, nil
}

// readDump reads an IR dump from disk.
func readDump(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Graph reads path and syncs it into the session.
func (w *workspace) Graph(ctx context.Context, path string) (*ir.Graph, error) {
	text, err := readDump(path)
	if err != nil {
		return nil, err
	}
	g, _, err := w.session.Sync(ctx, path, text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// Nodes extracts the nodes of function from the current text of path.
func (w *workspace) Nodes(ctx context.Context, path, function string) (*ir.NodeSet, error) {
	if _, err := w.Graph(ctx, path); err != nil {
		return nil, err
	}
	return w.session.Nodes(path, function)
}

// remote forwards document queries to irqd. Documents are opened by
// absolute path so the daemon can read them from any working directory.
type remote struct {
	client *client.Client
}

func (r remote) Graph(ctx context.Context, path string) (*ir.Graph, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	res, err := r.client.Open(ctx, abs, nil)
	if err != nil {
		return nil, err
	}
	return res.Graph, nil
}

func (r remote) Nodes(ctx context.Context, path, function string) (*ir.NodeSet, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := r.client.Open(ctx, abs, nil); err != nil {
		return nil, err
	}
	return r.client.Nodes(ctx, abs, function)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printDiagnostics(diags []ir.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Printf("\nDiagnostics (%d):\n", len(diags))
	for _, d := range diags {
		fmt.Printf("  [%s] %s\n", d.Kind, d)
	}
}
