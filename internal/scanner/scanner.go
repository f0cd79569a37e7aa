// Package scanner discovers IR graph dumps under a directory tree. It honours
// .irqignore files written in gitignore syntax, selects files by extension,
// and can optionally recognise dumps by their header line instead.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes a discovered dump.
type FileInfo struct {
	Path     string    // Relative path from root, slash separated
	FullPath string    // Absolute path
	Size     int64     // File size in bytes
	ModTime  time.Time // Last modification
	Sniffed  bool      // Recognised by its header rather than its extension
}

// Options configures the scanner behavior.
type Options struct {
	Extensions      []string // Extensions of dump files, with leading dot
	SniffHeaders    bool     // Also accept files without a known extension whose header marks a dump
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	MaxFileSize     int64    // Skip larger files; 0 disables the limit
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file (default: .irqignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Extensions:     []string{".ir"},
		SkipHidden:     true,
		IgnoreFileName: ".irqignore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			".irq",
			"node_modules",
			"__pycache__",
		},
	}
}

// ruleSet holds the rules of one ignore file, relative to its directory.
type ruleSet struct {
	base  string
	rules []IgnoreRule
}

// Scanner walks a directory tree looking for dumps.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".irqignore"
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns the dumps found, in lexical path order.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	var (
		sets  []ruleSet
		files []FileInfo
	)

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." {
				if s.skipDir(info.Name()) || s.ignored(sets, rel, true) {
					return filepath.SkipDir
				}
			}
			rules, err := s.loadRules(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", filepath.Join(path, s.opts.IgnoreFileName), err)
			}
			if len(rules) > 0 {
				base := rel
				if base == "." {
					base = ""
				}
				sets = append(sets, ruleSet{base: base, rules: rules})
			}
			return nil
		}

		if s.opts.SkipHidden && isHidden(info.Name()) {
			return nil
		}
		if s.ignored(sets, rel, false) {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, ok := s.resolveLink(absRoot, path)
			if !ok {
				return nil
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
			return nil
		}

		fi := FileInfo{
			Path:     rel,
			FullPath: path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		}
		switch {
		case MatchExtension(info.Name(), s.opts.Extensions):
		case s.opts.SniffHeaders && sniffFile(path):
			fi.Sniffed = true
		default:
			return nil
		}
		files = append(files, fi)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

func (s *Scanner) skipDir(name string) bool {
	if s.opts.SkipHidden && isHidden(name) {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// ignored evaluates every applicable ignore file, outermost first, so a
// nested file can re-include what a parent excluded.
func (s *Scanner) ignored(sets []ruleSet, rel string, isDir bool) bool {
	ignored := false
	for _, set := range sets {
		local := rel
		if set.base != "" {
			if !strings.HasPrefix(rel, set.base+"/") {
				continue
			}
			local = strings.TrimPrefix(rel, set.base+"/")
		}
		for _, r := range set.rules {
			if r.Match(local, isDir) {
				ignored = !r.Negated()
			}
		}
	}
	return ignored
}

func (s *Scanner) loadRules(dir string) ([]IgnoreRule, error) {
	f, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadIgnoreRules(f)
}

// resolveLink follows a file symlink, refusing targets outside root and
// directory targets.
func (s *Scanner) resolveLink(absRoot, path string) (os.FileInfo, bool) {
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	realAbs, err := filepath.Abs(real)
	if err != nil {
		return nil, false
	}
	if r, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = r
	}
	if realAbs != absRoot && !strings.HasPrefix(realAbs, absRoot+string(filepath.Separator)) {
		return nil, false
	}
	info, err := os.Stat(realAbs)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

func sniffFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return HasIRHeader(f)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
