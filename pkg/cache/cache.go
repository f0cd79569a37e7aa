// Package cache provides an LRU cache of parse results with disk persistence.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the persisted layout changes.
const formatVersion = 1

// Key derives a cache key from document text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Entry is a cache entry with metadata.
type Entry[V any] struct {
	Key        string    `msgpack:"key"`
	Value      V         `msgpack:"value"`
	AccessedAt time.Time `msgpack:"accessed_at"`
	CreatedAt  time.Time `msgpack:"created_at"`
	// Size is the encoded size in bytes
	Size int `msgpack:"size"`
}

// listItem is an item in the doubly-linked recency list.
type listItem[V any] struct {
	Entry[V]
	prev *listItem[V]
	next *listItem[V]
}

// recency is a doubly-linked list, most recently used at head.
type recency[V any] struct {
	head *listItem[V]
	tail *listItem[V]
	len  int
}

func (l *recency[V]) unlink(item *listItem[V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *recency[V]) pushFront(item *listItem[V]) {
	item.prev = nil
	item.next = l.head
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *recency[V]) pushBack(item *listItem[V]) {
	item.next = nil
	item.prev = l.tail
	if l.tail != nil {
		l.tail.next = item
	}
	l.tail = item
	if l.head == nil {
		l.head = item
	}
	l.len++
}

func (l *recency[V]) moveToFront(item *listItem[V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// Options configures the LRU cache.
type Options[V any] struct {
	// MaxSize is the maximum number of entries. 0 means unlimited.
	MaxSize int

	// MaxBytes is the approximate maximum size in bytes. 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when an entry is evicted or deleted.
	OnEvict func(key string, value V)
}

// Stats reports cache usage.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// LRUCache is an in-memory LRU cache with optional disk persistence.
type LRUCache[V any] struct {
	mu           sync.Mutex
	items        map[string]*listItem[V]
	lru          *recency[V]
	maxSize      int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string, value V)

	hits   int64
	misses int64
	now    func() time.Time
}

// New creates a new LRU cache with the given options.
func New[V any](opts Options[V]) *LRUCache[V] {
	return &LRUCache[V]{
		items:    make(map[string]*listItem[V]),
		lru:      &recency[V]{},
		maxSize:  opts.MaxSize,
		maxBytes: opts.MaxBytes,
		onEvict:  opts.OnEvict,
		now:      time.Now,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	item.AccessedAt = c.now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a value, evicting least recently used entries past the limits.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := estimateSize(value)
	now := c.now()

	if item, exists := c.items[key]; exists {
		c.currentBytes += int64(size - item.Size)
		item.Value = value
		item.Size = size
		item.AccessedAt = now
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem[V]{
		Entry: Entry[V]{
			Key:        key,
			Value:      value,
			AccessedAt: now,
			CreatedAt:  now,
			Size:       size,
		},
	}
	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(size)

	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.remove(item)
}

func (c *LRUCache[V]) remove(item *listItem[V]) {
	c.lru.unlink(item)
	delete(c.items, item.Key)
	c.currentBytes -= int64(item.Size)
	if c.onEvict != nil {
		c.onEvict(item.Key, item.Value)
	}
}

// Clear removes all entries and resets statistics.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.hits, c.misses = 0, 0
}

func (c *LRUCache[V]) reset() {
	c.items = make(map[string]*listItem[V])
	c.lru = &recency[V]{}
	c.currentBytes = 0
}

// Len returns the number of entries in the cache.
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CurrentBytes returns the approximate current size in bytes.
func (c *LRUCache[V]) CurrentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes
}

// Keys returns keys from most to least recently used.
func (c *LRUCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for item := c.lru.head; item != nil; item = item.next {
		keys = append(keys, item.Key)
	}
	return keys
}

// Stats returns the current cache statistics.
func (c *LRUCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:       len(c.items),
		CurrentBytes: c.currentBytes,
		HitCount:     c.hits,
		MissCount:    c.misses,
	}
}

func (c *LRUCache[V]) evictIfNeeded() {
	for c.shouldEvict() {
		if c.lru.tail == nil {
			return
		}
		c.remove(c.lru.tail)
	}
}

func (c *LRUCache[V]) shouldEvict() bool {
	if c.maxSize > 0 && c.lru.len > c.maxSize {
		return true
	}
	// a single oversized entry is kept
	if c.maxBytes > 0 && c.currentBytes > c.maxBytes && c.lru.len > 1 {
		return true
	}
	return false
}

type cacheData[V any] struct {
	Version int        `msgpack:"version"`
	Entries []Entry[V] `msgpack:"entries"`
}

// Save persists the cache to a writer using msgpack, most recent first.
func (c *LRUCache[V]) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := cacheData[V]{
		Version: formatVersion,
		Entries: make([]Entry[V], 0, len(c.items)),
	}
	for item := c.lru.head; item != nil; item = item.next {
		data.Entries = append(data.Entries, item.Entry)
	}
	return msgpack.NewEncoder(w).Encode(&data)
}

// Load replaces the cache contents with entries read by Save. Recency
// order is preserved and the size limits are applied.
func (c *LRUCache[V]) Load(r io.Reader) error {
	var data cacheData[V]
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	if data.Version != formatVersion {
		return fmt.Errorf("unsupported cache version %d", data.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	for _, entry := range data.Entries {
		if _, dup := c.items[entry.Key]; dup {
			continue
		}
		item := &listItem[V]{Entry: entry}
		c.items[entry.Key] = item
		c.lru.pushBack(item)
		c.currentBytes += int64(entry.Size)
	}
	c.evictIfNeeded()
	return nil
}

// PersistToFile saves the cache to path, creating parent directories.
// The file is written to a temporary name first and renamed into place.
func PersistToFile[V any](c *LRUCache[V], path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFromFile loads the cache from path. A missing file is not an error.
func LoadFromFile[V any](c *LRUCache[V], path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// estimateSize reports the msgpack-encoded size of a value.
func estimateSize(value interface{}) int {
	switch v := value.(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	default:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return 0
		}
		return len(b)
	}
}
