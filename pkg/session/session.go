// Package session coordinates parsing of open IR documents. For each
// document it decides, through the dirty tracker, whether a full re-parse is
// due, reuses cached snapshots for text it has seen before, and guarantees
// that at most one parse runs per document at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/dirty"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/textsource"
)

// ErrUnknownDocument is returned for a document that was never synced.
var ErrUnknownDocument = errors.New("unknown document")

// DefaultCacheSize is the number of snapshots kept in memory.
const DefaultCacheSize = 128

type document struct {
	mu     sync.Mutex
	parser *ir.Parser
	src    *textsource.Document
}

// Session owns the parsers, the edit tracker and the snapshot cache.
type Session struct {
	logger    log.Logger
	opts      ir.Options
	tracker   *dirty.Tracker
	cache     *cache.LRUCache[*ir.Snapshot]
	cachePath string

	mu   sync.Mutex
	docs map[string]*document
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithParseOptions sets the extraction options used by every parser.
func WithParseOptions(opts ir.Options) Option {
	return func(s *Session) {
		s.opts = opts
	}
}

// WithTracker replaces the default edit tracker.
func WithTracker(t *dirty.Tracker) Option {
	return func(s *Session) {
		s.tracker = t
	}
}

// WithCache replaces the default snapshot cache.
func WithCache(c *cache.LRUCache[*ir.Snapshot]) Option {
	return func(s *Session) {
		s.cache = c
	}
}

// WithCachePath sets the file the snapshot cache is persisted to.
func WithCachePath(path string) Option {
	return func(s *Session) {
		s.cachePath = path
	}
}

// New creates a Session.
func New(opts ...Option) *Session {
	s := &Session{
		logger: log.Default(),
		opts:   ir.DefaultOptions(),
		docs:   make(map[string]*document),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = dirty.New()
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Options[*ir.Snapshot]{MaxSize: DefaultCacheSize})
	}
	return s
}

func (s *Session) document(id string, create bool) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok && create {
		doc = &document{
			parser: ir.NewParser(ir.WithOptions(s.opts), ir.WithLogger(s.logger)),
		}
		s.docs[id] = doc
	}
	return doc
}

// Sync brings the graph of id up to date with text. It returns the
// published graph and whether a new one was produced. While pending edits
// stay under the tracker's threshold the previous graph is returned.
func (s *Session) Sync(ctx context.Context, id, text string) (*ir.Graph, bool, error) {
	doc := s.document(id, true)
	doc.mu.Lock()
	defer doc.mu.Unlock()

	if g := doc.parser.Graph(); g != nil && !s.tracker.Stale(id, text) {
		return g, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	src := textsource.NewDocument(text)
	key := cache.Key(text)

	var g *ir.Graph
	if snap, ok := s.cache.Get(key); ok {
		restored, err := doc.parser.Restore(snap)
		if err != nil {
			s.logger.Warn("discarding cached snapshot", "document", id, "error", err)
			s.cache.Delete(key)
		} else {
			s.logger.Debug("restored cached graph", "document", id)
			g = restored
		}
	}
	if g == nil {
		g = doc.parser.ParseFuncGraph(src)
		s.cache.Set(key, g.Snapshot())
	}

	doc.src = src
	s.tracker.Clean(id, text)
	return g, true, nil
}

// Edit records that edited characters changed in id since the last sync.
func (s *Session) Edit(id string, edited int) {
	s.tracker.Touch(id, edited)
}

// Graph returns the published graph of id.
func (s *Session) Graph(id string) (*ir.Graph, error) {
	doc := s.document(id, false)
	if doc == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownDocument)
	}
	g := doc.parser.Graph()
	if g == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownDocument)
	}
	return g, nil
}

// Nodes extracts the nodes of function from the last synced text of id.
func (s *Session) Nodes(id, function string) (*ir.NodeSet, error) {
	doc := s.document(id, false)
	if doc == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownDocument)
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	if doc.src == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownDocument)
	}
	return doc.parser.ParseNodes(doc.src, function)
}

// Close forgets id.
func (s *Session) Close(id string) {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	s.tracker.Remove(id)
}

// Documents returns the number of open documents.
func (s *Session) Documents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// CacheStats reports snapshot cache usage.
func (s *Session) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Load restores the persisted snapshot cache. Without a cache path it does
// nothing.
func (s *Session) Load() error {
	if s.cachePath == "" {
		return nil
	}
	if err := cache.LoadFromFile(s.cache, s.cachePath); err != nil {
		return fmt.Errorf("loading snapshot cache: %w", err)
	}
	s.logger.Debug("loaded snapshot cache", "path", s.cachePath, "entries", s.cache.Len())
	return nil
}

// Save persists the snapshot cache and the tracker state.
func (s *Session) Save() error {
	if s.cachePath != "" {
		if err := cache.PersistToFile(s.cache, s.cachePath); err != nil {
			return fmt.Errorf("saving snapshot cache: %w", err)
		}
	}
	if err := s.tracker.Save(); err != nil {
		return fmt.Errorf("saving tracker state: %w", err)
	}
	return nil
}
