// Package dirty tracks edits made to open IR documents and decides when a
// document needs a full re-parse. Small edits accumulate until they reach a
// threshold; a document whose text changed with no recorded edits (e.g. it
// was reloaded from disk) is stale straight away.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultCacheDir is the default directory for storing tracker state.
const DefaultCacheDir = ".irq/cache"

// DefaultCacheFile is the default filename for tracker state.
const DefaultCacheFile = "dirty.json"

// DefaultThreshold is the number of edited characters that forces a
// re-parse.
const DefaultThreshold = 64

// docState is the tracked state of a single document.
type docState struct {
	ID       string `json:"id"`
	Hash     string `json:"hash"`
	Pending  int    `json:"pending"`
	Parsed   bool   `json:"parsed"`
	LastSeen int64  `json:"last_seen"` // Unix timestamp
}

// dirtyData is the on-disk JSON structure.
type dirtyData struct {
	Version   int        `json:"version"`
	Threshold int        `json:"threshold"`
	Documents []docState `json:"documents"`
}

// Tracker accumulates edits per document.
type Tracker struct {
	mu        sync.RWMutex
	docs      map[string]docState
	threshold int
	cacheDir  string
	cacheFile string
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets the edited-character count that forces a re-parse.
// Values below 1 are treated as 1.
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		if n < 1 {
			n = 1
		}
		t.threshold = n
	}
}

// WithCacheDir sets the cache directory.
func WithCacheDir(dir string) Option {
	return func(t *Tracker) {
		t.cacheDir = dir
	}
}

// WithCacheFile sets the cache filename.
func WithCacheFile(file string) Option {
	return func(t *Tracker) {
		t.cacheFile = file
	}
}

// New creates a new Tracker with optional configuration.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		docs:      make(map[string]docState),
		threshold: DefaultThreshold,
		cacheDir:  DefaultCacheDir,
		cacheFile: DefaultCacheFile,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// computeHash computes the SHA-256 of document text.
func computeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Threshold returns the configured re-parse threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Touch records that edited characters were inserted or removed in id.
func (t *Tracker) Touch(id string, edited int) {
	if edited <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.docs[id]
	state.ID = id
	state.Pending += edited
	state.LastSeen = t.now().Unix()
	t.docs[id] = state
}

// Stale reports whether id must be re-parsed given its current text: it
// was never parsed, its pending edits reached the threshold, or its text
// changed without any recorded edits.
func (t *Tracker) Stale(id, text string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.docs[id]
	if !ok || !state.Parsed {
		return true
	}
	if state.Pending >= t.threshold {
		return true
	}
	return state.Pending == 0 && state.Hash != computeHash(text)
}

// Clean records a completed parse of text and clears pending edits.
func (t *Tracker) Clean(id, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.docs[id] = docState{
		ID:       id,
		Hash:     computeHash(text),
		Parsed:   true,
		LastSeen: t.now().Unix(),
	}
}

// Pending returns the edited characters recorded since the last parse.
func (t *Tracker) Pending(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.docs[id].Pending
}

// Hash returns the text hash recorded at the last parse.
func (t *Tracker) Hash(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.docs[id]
	if !ok || !state.Parsed {
		return "", false
	}
	return state.Hash, true
}

// Dirty returns the sorted ids with pending edits.
func (t *Tracker) Dirty() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]string, 0, len(t.docs))
	for id, state := range t.docs {
		if state.Pending > 0 {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result
}

// Count returns the number of documents with pending edits.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, state := range t.docs {
		if state.Pending > 0 {
			count++
		}
	}
	return count
}

// TotalCount returns the number of tracked documents.
func (t *Tracker) TotalCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.docs)
}

// Remove stops tracking id.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.docs, id)
}

// Clear removes all tracked documents.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs = make(map[string]docState)
}

// CachePath returns the full path to the state file.
func (t *Tracker) CachePath() string {
	return filepath.Join(t.cacheDir, t.cacheFile)
}

// Save persists the tracker state to the cache file.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(t.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(t.CachePath())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return t.SaveTo(f)
}

// Load restores the tracker state from the cache file. A missing file is
// not an error.
func (t *Tracker) Load() error {
	f, err := os.Open(t.CachePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return t.LoadFrom(f)
}

// SaveTo writes the tracker state as JSON, ordered by document id.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	docs := make([]docState, 0, len(t.docs))
	for _, state := range t.docs {
		docs = append(docs, state)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	data := dirtyData{
		Version:   1,
		Threshold: t.threshold,
		Documents: docs,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode dirty data: %w", err)
	}
	return nil
}

// LoadFrom reads tracker state written by SaveTo. The configured threshold
// is kept.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data dirtyData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode dirty data: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.docs = make(map[string]docState, len(data.Documents))
	for _, state := range data.Documents {
		t.docs[state.ID] = state
	}
	return nil
}
