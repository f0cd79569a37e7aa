package scanner

import (
	"bufio"
	"io"
	"path"
	"strings"
)

// IgnoreRule is one line of an .irqignore file, using gitignore syntax.
type IgnoreRule struct {
	raw      string
	negate   bool
	dirOnly  bool
	anchored bool
	parts    []string
}

// ParseIgnoreRule compiles a single gitignore-style line.
func ParseIgnoreRule(line string) IgnoreRule {
	r := IgnoreRule{raw: line}

	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	}
	// "a/b" is relative to the ignore file, like a leading slash
	if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		r.anchored = true
	}
	r.parts = strings.Split(line, "/")
	return r
}

// ReadIgnoreRules reads rules from r, skipping blanks and comments.
func ReadIgnoreRules(r io.Reader) ([]IgnoreRule, error) {
	var rules []IgnoreRule
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, ParseIgnoreRule(line))
	}
	return rules, sc.Err()
}

// String returns the line the rule was parsed from.
func (r IgnoreRule) String() string {
	return r.raw
}

// Negated reports whether the rule re-includes what it matches.
func (r IgnoreRule) Negated() bool {
	return r.negate
}

// Match reports whether the slash-separated relative path rel matches the
// rule. isDir says whether rel names a directory.
func (r IgnoreRule) Match(rel string, isDir bool) bool {
	segs := strings.Split(strings.Trim(rel, "/"), "/")

	if r.dirOnly {
		// a directory rule also covers everything below the directory
		limit := len(segs)
		if !isDir {
			limit--
		}
		for n := limit; n >= 1; n-- {
			if r.matchPrefix(segs[:n]) {
				return true
			}
		}
		return false
	}
	for n := len(segs); n >= 1; n-- {
		if r.matchPrefix(segs[:n]) {
			return true
		}
	}
	return false
}

// matchPrefix matches the rule against the whole of segs, or against any
// suffix of segs when the rule is not anchored.
func (r IgnoreRule) matchPrefix(segs []string) bool {
	if r.anchored {
		return globSegments(r.parts, segs)
	}
	for i := range segs {
		if globSegments(r.parts, segs[i:]) {
			return true
		}
	}
	return false
}

func globSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if globSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return globSegments(pattern[1:], segs[1:])
}

// Ignored applies rules in order; the last matching rule wins.
func Ignored(rules []IgnoreRule, rel string, isDir bool) bool {
	ignored := false
	for _, r := range rules {
		if r.Match(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}
