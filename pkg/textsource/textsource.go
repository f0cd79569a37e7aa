// Package textsource exposes an IR document as lines with stable byte
// offsets. It supports forward literal and pattern search and
// bracket-balanced range lookup, which is all the IR extractors need from
// the editor's text buffer.
package textsource

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Default safety bounds for MatchBracket.
const (
	DefaultMaxDistance = 20000
	DefaultMaxDepth    = 10
)

var (
	// ErrNotBracket is returned when MatchBracket starts on a non-bracket character.
	ErrNotBracket = errors.New("not an opening bracket")
	// ErrMaxDistance is returned when the closing bracket is too far away.
	ErrMaxDistance = errors.New("too much distance to matching bracket")
	// ErrMaxDepth is returned when brackets nest deeper than allowed.
	ErrMaxDepth = errors.New("too much recursive depth")
	// ErrUnbalanced is returned when the text ends before the bracket closes.
	ErrUnbalanced = errors.New("unbalanced bracket")
)

// Source is the read-only view of a document consumed by the IR extractors.
// Offsets are byte offsets into the document text; -1 means "not found".
type Source interface {
	// Len returns the document length in bytes.
	Len() int
	// Slice returns text[start:end], clamped to the document.
	Slice(start, end int) string
	// Index returns the offset of the first target at or after from.
	Index(target string, from int) int
	// IndexPattern returns the offset of the first per-line match of re at or after from.
	IndexPattern(re *regexp.Regexp, from int) int
	// Line returns the bounds of the line containing offset, without the line break.
	Line(offset int) (start, end int)
	// EachLine calls fn for every line starting in [line(start), end) until fn returns false.
	EachLine(start, end int, fn func(offset int, line string) bool)
	// MatchBracket returns the offset of the bracket closing the one at open.
	MatchBracket(open int, limits Limits) (int, error)
}

// Limits bounds MatchBracket against malformed or huge input.
// Non-positive values disable the corresponding check.
type Limits struct {
	MaxDistance int
	MaxDepth    int
}

// DefaultLimits returns the standard bracket matching bounds.
func DefaultLimits() Limits {
	return Limits{MaxDistance: DefaultMaxDistance, MaxDepth: DefaultMaxDepth}
}

// Document is an immutable in-memory Source.
type Document struct {
	text       string
	lineStarts []int
}

// NewDocument indexes text line by line.
func NewDocument(text string) *Document {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return &Document{text: text, lineStarts: starts}
}

// Text returns the whole document.
func (d *Document) Text() string {
	return d.text
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	return len(d.text)
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	if len(d.text) == 0 {
		return 0
	}
	return len(d.lineStarts)
}

func (d *Document) clamp(off int) int {
	if off < 0 {
		return 0
	}
	if off > len(d.text) {
		return len(d.text)
	}
	return off
}

// Slice returns text[start:end], clamped to the document.
func (d *Document) Slice(start, end int) string {
	start, end = d.clamp(start), d.clamp(end)
	if start >= end {
		return ""
	}
	return d.text[start:end]
}

// Index returns the offset of the first target at or after from, or -1.
func (d *Document) Index(target string, from int) int {
	from = d.clamp(from)
	i := strings.Index(d.text[from:], target)
	if i < 0 {
		return -1
	}
	return from + i
}

// lineIndex returns the index of the line containing off.
func (d *Document) lineIndex(off int) int {
	off = d.clamp(off)
	return sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > off
	}) - 1
}

// Line returns the bounds of the line containing offset.
// The end excludes the line break, including a trailing carriage return.
func (d *Document) Line(offset int) (int, int) {
	return d.lineBounds(d.lineIndex(offset))
}

// LineNumber returns the 1-based line number containing offset.
func (d *Document) LineNumber(offset int) int {
	return d.lineIndex(offset) + 1
}

// Offset converts a 1-based line and character column to a byte offset. The
// column may point just past the last character of the line.
func (d *Document) Offset(line, col int) (int, bool) {
	if line < 1 || line > d.LineCount() || col < 1 {
		return 0, false
	}
	start, end := d.lineBounds(line - 1)
	off := start
	for ; col > 1; col-- {
		if off >= end {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(d.text[off:end])
		off += size
	}
	return off, true
}

// CharOffset converts an offset counted in characters to a byte offset. An
// offset equal to the character count maps to Len.
func (d *Document) CharOffset(chars int) (int, bool) {
	if chars < 0 {
		return 0, false
	}
	n := 0
	for i := range d.text {
		if n == chars {
			return i, true
		}
		n++
	}
	if n == chars {
		return len(d.text), true
	}
	return 0, false
}

func (d *Document) lineBounds(idx int) (int, int) {
	start := d.lineStarts[idx]
	end := len(d.text)
	if idx+1 < len(d.lineStarts) {
		end = d.lineStarts[idx+1] - 1
	} else if nl := strings.IndexByte(d.text[start:], '\n'); nl >= 0 {
		end = start + nl
	}
	if end > start && d.text[end-1] == '\r' {
		end--
	}
	return start, end
}

// EachLine walks the lines starting in [line(start), end).
func (d *Document) EachLine(start, end int, fn func(offset int, line string) bool) {
	if len(d.text) == 0 {
		return
	}
	end = d.clamp(end)
	for idx := d.lineIndex(start); idx < len(d.lineStarts); idx++ {
		ls, le := d.lineBounds(idx)
		if ls >= end {
			return
		}
		if !fn(ls, d.text[ls:le]) {
			return
		}
	}
}

// IndexPattern returns the offset of the first match of re, evaluated line by
// line so that ^ and $ anchor at line boundaries, at or after from.
func (d *Document) IndexPattern(re *regexp.Regexp, from int) int {
	found := -1
	from = d.clamp(from)
	d.EachLine(from, len(d.text), func(ls int, line string) bool {
		for _, loc := range re.FindAllStringIndex(line, -1) {
			if ls+loc[0] >= from {
				found = ls + loc[0]
				return false
			}
		}
		return true
	})
	return found
}

// MatchBracket returns the offset of the bracket that closes the one at open.
func (d *Document) MatchBracket(open int, limits Limits) (int, error) {
	return MatchBracket(d.text, open, limits)
}

var closing = map[byte]byte{
	'(': ')',
	'[': ']',
	'{': '}',
	'<': '>',
}

// MatchBracket scans text forward from the opening bracket at open, counting
// nested occurrences of the same bracket kind, and returns the offset of the
// bracket that brings the balance back to zero.
func MatchBracket(text string, open int, limits Limits) (int, error) {
	if open < 0 || open >= len(text) {
		return -1, ErrNotBracket
	}
	openCh := text[open]
	closeCh, ok := closing[openCh]
	if !ok {
		return -1, ErrNotBracket
	}

	depth := 0
	for i := open; i < len(text); i++ {
		if limits.MaxDistance > 0 && i-open > limits.MaxDistance {
			return -1, ErrMaxDistance
		}
		switch text[i] {
		case openCh:
			depth++
			if limits.MaxDepth > 0 && depth > limits.MaxDepth {
				return -1, ErrMaxDepth
			}
		case closeCh:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, ErrUnbalanced
}

// SplitTopLevel splits s on sep, ignoring separators nested inside (), [] or {}.
// Fields are trimmed; an empty or blank input yields no fields.
func SplitTopLevel(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				out = append(out, strings.TrimSpace(s[last:i]))
				i += len(sep) - 1
				last = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[last:]))
}

var _ Source = (*Document)(nil)
