package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/l3aro/go-ir-query/internal/scanner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ScanFile is the per-dump result of a scan.
type ScanFile struct {
	Path        string `json:"path"`
	Entry       string `json:"entry,omitempty"`
	Functions   int    `json:"functions"`
	Callees     int    `json:"callees"`
	Diagnostics int    `json:"diagnostics"`
	Sniffed     bool   `json:"sniffed,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ScanOutput represents the output of the scan command
type ScanOutput struct {
	RootDir     string     `json:"root_dir"`
	Files       []ScanFile `json:"files"`
	Functions   int        `json:"functions"`
	Diagnostics int        `json:"diagnostics"`
	Failed      int        `json:"failed"`
	CacheHits   int64      `json:"cache_hits"`
	Workers     int        `json:"workers"`
	Elapsed     string     `json:"elapsed"`
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Parse every IR dump under a directory",
	Long: `Walks a directory for IR dumps, honouring .irqignore files, and parses them
concurrently. Parsed graphs are kept in the snapshot cache so later queries
on unchanged dumps skip parsing.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("getting absolute path: %w", err)
		}

		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}

		opts := scanner.DefaultOptions()
		opts.Extensions = ws.cfg.Extensions
		opts.SniffHeaders, _ = cmd.Flags().GetBool("sniff")
		opts.FollowSymlinks, _ = cmd.Flags().GetBool("follow-symlinks")

		files, err := scanner.New(opts).Scan(absRoot)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", root, err)
		}
		ws.logger.Debug("discovered dumps", "root", absRoot, "count", len(files))

		out, err := ws.parseAll(cmd.Context(), files)
		if err != nil {
			return err
		}
		out.RootDir = absRoot

		if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
			if err := ws.session.Save(); err != nil {
				return err
			}
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(out)
		}
		printScanOutput(out)
		return nil
	},
}

// parseAll syncs every file into the session, at most cfg.Workers at a
// time. A file that fails to parse is recorded and does not stop the others;
// only cancellation aborts the scan.
func (w *workspace) parseAll(ctx context.Context, files []scanner.FileInfo) (*ScanOutput, error) {
	start := time.Now()
	hitsBefore := w.session.CacheStats().HitCount

	out := &ScanOutput{
		Files:   make([]ScanFile, len(files)),
		Workers: w.cfg.Workers,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)

	for i, f := range files {
		g.Go(func() error {
			res := ScanFile{Path: f.Path, Sniffed: f.Sniffed}

			text, err := readDump(f.FullPath)
			if err != nil {
				res.Error = err.Error()
			} else if graph, _, err := w.session.Sync(ctx, f.FullPath, text); err != nil {
				if ctx.Err() != nil {
					return err
				}
				res.Error = err.Error()
			} else {
				res.Entry = graph.Entry
				res.Functions = len(graph.Functions)
				res.Diagnostics = len(graph.Diagnostics)
				for _, fn := range graph.Functions {
					res.Callees += len(fn.Callees)
				}
			}

			if res.Error != "" {
				w.logger.Warn("failed to parse dump", "path", f.Path, "error", res.Error)
			}

			out.Files[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	for _, f := range out.Files {
		out.Functions += f.Functions
		out.Diagnostics += f.Diagnostics
		if f.Error != "" {
			out.Failed++
		}
	}
	out.CacheHits = w.session.CacheStats().HitCount - hitsBefore
	out.Elapsed = time.Since(start).Round(time.Millisecond).String()
	return out, nil
}

func printScanOutput(out *ScanOutput) {
	fmt.Printf("=== Scan: %s ===\n\n", out.RootDir)
	for _, f := range out.Files {
		if f.Error != "" {
			fmt.Printf("  %-40s error: %s\n", f.Path, f.Error)
			continue
		}
		fmt.Printf("  %-40s %3d functions  %3d calls", f.Path, f.Functions, f.Callees)
		if f.Diagnostics > 0 {
			fmt.Printf("  %d diagnostics", f.Diagnostics)
		}
		fmt.Println()
	}

	fmt.Printf("\nDumps: %d (failed: %d)\n", len(out.Files), out.Failed)
	fmt.Printf("Functions: %d\n", out.Functions)
	fmt.Printf("Diagnostics: %d\n", out.Diagnostics)
	fmt.Printf("Cache hits: %d\n", out.CacheHits)
	fmt.Printf("Workers: %d, elapsed %s\n", out.Workers, out.Elapsed)
}

func init() {
	scanCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	scanCmd.Flags().Bool("sniff", false, "Also detect dumps without a known extension by their header")
	scanCmd.Flags().Bool("follow-symlinks", false, "Follow file symlinks that stay inside the scanned tree")
	scanCmd.Flags().Bool("no-save", false, "Do not persist the snapshot cache after scanning")
}
