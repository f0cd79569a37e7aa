// Package rangeindex maps disjoint half-open offset spans to values and
// answers "which span owns this offset" in O(log n).
package rangeindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirkon/rbtree"
)

var (
	// ErrEmptySpan is returned when inserting a span with Start >= End.
	ErrEmptySpan = errors.New("empty span")
	// ErrOverlap is returned when a span overlaps one already in the index.
	ErrOverlap = errors.New("span overlaps an existing entry")
)

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int `json:"start" msgpack:"start"`
	End   int `json:"end" msgpack:"end"`
}

// Contains reports whether off lies inside the span.
func (s Span) Contains(off int) bool {
	return s.Start <= off && off < s.End
}

// Len returns the span width.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// entry is the tree payload.
type entry struct {
	span  Span
	value int
}

// Cmp orders entries as disjoint half-open spans:
// -1 if n ends at or before other starts, 1 if n starts at or after other
// ends, 0 if they share at least one offset. Adjacent spans are ordered,
// never equal.
func (n *entry) Cmp(other *entry) int {
	if n.span.End <= other.span.Start {
		return -1
	}
	if n.span.Start >= other.span.End {
		return 1
	}
	return 0
}

// Index is an ordered set of disjoint spans, each carrying an int payload.
// It is not safe for concurrent mutation; owners rebuild it wholesale.
type Index struct {
	tree    *rbtree.Tree[*entry]
	entries []*entry
}

// New creates an empty index.
func New() *Index {
	return &Index{tree: rbtree.New[*entry]()}
}

// Insert adds span → value. Overlapping spans are rejected, never overwritten.
func (x *Index) Insert(span Span, value int) error {
	if span.Start >= span.End {
		return fmt.Errorf("insert %s: %w", span, ErrEmptySpan)
	}

	e := &entry{span: span, value: value}
	if got := x.tree.InsertReturn(e); got != e {
		return fmt.Errorf("insert %s: %w with %s", span, ErrOverlap, got.span)
	}
	x.entries = append(x.entries, e)
	return nil
}

// Lookup returns the value whose span contains off.
func (x *Index) Lookup(off int) (int, bool) {
	if len(x.entries) == 0 {
		return 0, false
	}
	probe := &entry{span: Span{Start: off, End: off + 1}}
	e := x.tree.Search(probe)
	if e == nil {
		return 0, false
	}
	return e.value, true
}

// LookupSpan returns both the owning span and its value.
func (x *Index) LookupSpan(off int) (Span, int, bool) {
	if len(x.entries) == 0 {
		return Span{}, 0, false
	}
	e := x.tree.Search(&entry{span: Span{Start: off, End: off + 1}})
	if e == nil {
		return Span{}, 0, false
	}
	return e.span, e.value, true
}

// Len returns the number of spans.
func (x *Index) Len() int {
	return len(x.entries)
}

// Spans returns all spans ordered by position.
func (x *Index) Spans() []Span {
	out := make([]Span, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.span
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
