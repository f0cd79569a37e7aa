package ir

import (
	"regexp"
	"strings"

	"github.com/l3aro/go-ir-query/pkg/rangeindex"
	"github.com/l3aro/go-ir-query/pkg/textsource"
)

const (
	entryMarker       = "#IR entry      : "
	attrMarker        = "subgraph attr:"
	defMarker         = "subgraph @"
	returnMarker      = "Return("
	returnValueAnchor = "      : (<"
	sequenceMarker    = ", sequence_nodes"
	valueEndMarker    = ">)"

	directCallMarker = "call @"
	switchMarker     = "Switch("
	unionMarker      = "[@FuncUnion("
	cnodeMarker      = "[@"
	cnodeEndMarker   = "]("
)

var closeBraceRE = regexp.MustCompile(`^\}$`)

// Graph is the result of one full scan of an IR document.
type Graph struct {
	Entry       string            `json:"entry"`
	Functions   []FunctionInfo    `json:"functions"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`
	Index       *rangeindex.Index `json:"-"`

	byName   map[string]int
	bySimple map[string]int
}

func newGraph() *Graph {
	return &Graph{
		Index:    rangeindex.New(),
		byName:   make(map[string]int),
		bySimple: make(map[string]int),
	}
}

// add appends fn and indexes its span. On a span conflict fn is not added.
func (g *Graph) add(fn FunctionInfo) error {
	idx := len(g.Functions)
	if err := g.Index.Insert(fn.Span, idx); err != nil {
		return err
	}
	g.Functions = append(g.Functions, fn)
	g.byName[fn.Name] = idx
	if _, ok := g.bySimple[fn.SimpleName]; !ok {
		g.bySimple[fn.SimpleName] = idx
	}
	return nil
}

func (g *Graph) report(d Diagnostic) {
	g.Diagnostics = append(g.Diagnostics, d)
}

// FunctionAt returns the index of the function whose span contains off.
func (g *Graph) FunctionAt(off int) (int, bool) {
	if g == nil || g.Index == nil {
		return 0, false
	}
	return g.Index.Lookup(off)
}

// Function finds a function by qualified name, then by simple name.
// A leading '@' is ignored.
func (g *Graph) Function(name string) (FunctionInfo, bool) {
	if i, ok := g.lookup(name); ok {
		return g.Functions[i], true
	}
	return FunctionInfo{}, false
}

func (g *Graph) lookup(name string) (int, bool) {
	if g == nil {
		return 0, false
	}
	name = strings.TrimPrefix(name, "@")
	if i, ok := g.byName[name]; ok {
		return i, true
	}
	if i, ok := g.bySimple[simpleName(name)]; ok {
		return i, true
	}
	return 0, false
}

// ExtractGraph scans src once, front to back, for the entry function and
// every subgraph definition. Scanning stops at the first malformed subgraph;
// the functions found before it are kept.
func ExtractGraph(src textsource.Source, opts Options) *Graph {
	g := newGraph()

	entryPos := src.Index(entryMarker, 0)
	if entryPos < 0 {
		g.report(newDiagnostic(KindMissingEntry, 0, "marker %q not found", strings.TrimSpace(entryMarker)))
		return g
	}
	_, entryEnd := src.Line(entryPos)
	entryLine := src.Slice(entryPos+len(entryMarker), entryEnd)
	at := strings.IndexByte(entryLine, '@')
	if at < 0 {
		g.report(newDiagnostic(KindMissingEntry, entryPos, "entry line has no function reference"))
		return g
	}
	g.Entry = strings.TrimSpace(entryLine[at+1:])

	s := &graphScanner{src: src, opts: opts, g: g}
	cursor := entryEnd
	for {
		next, ok := s.scanFunction(cursor)
		if !ok {
			break
		}
		cursor = next
	}
	return g
}

type graphScanner struct {
	src  textsource.Source
	opts Options
	g    *Graph
}

// scanFunction parses the subgraph following cursor and returns the offset
// to resume from. It returns false when there is nothing more to scan.
func (s *graphScanner) scanFunction(cursor int) (int, bool) {
	src := s.src

	funcStart := src.Index(attrMarker, cursor)
	if funcStart < 0 {
		return 0, false
	}

	defPos := src.Index(defMarker, funcStart)
	if defPos < 0 {
		s.g.report(newDiagnostic(KindIncompleteSubgraph, funcStart, "no subgraph definition after attributes"))
		return 0, false
	}
	nameStart := defPos + len(defMarker)
	_, defEnd := src.Line(defPos)
	name := strings.TrimSpace(src.Slice(nameStart, defEnd))
	if paren := src.Index("(", nameStart); paren >= 0 && paren <= defEnd {
		name = strings.TrimSpace(src.Slice(nameStart, paren))
	}

	bodyEnd := src.IndexPattern(closeBraceRE, defEnd)
	retPos := src.Index(returnMarker, defEnd)
	if retPos < 0 || (bodyEnd >= 0 && retPos > bodyEnd) {
		s.g.report(newDiagnostic(KindMissingReturn, defPos, "No Return node found in %s", name))
		return 0, false
	}

	anchor := src.Index(returnValueAnchor, retPos+len(returnMarker))
	if anchor < 0 || (bodyEnd >= 0 && anchor > bodyEnd) {
		s.g.report(newDiagnostic(KindMissingReturnValue, retPos, "no return value after Return node in %s", name))
		return 0, false
	}

	closePos := src.IndexPattern(closeBraceRE, anchor)
	if closePos < 0 {
		s.g.report(newDiagnostic(KindIncompleteSubgraph, defPos, "Incomplete subgraph %s", name))
		return 0, false
	}
	funcEnd := closePos + 1

	fn := FunctionInfo{
		Name:           name,
		SimpleName:     simpleName(name),
		DefinePos:      nameStart,
		ReturnVariable: s.returnVariable(retPos),
		ReturnValue:    s.returnValue(anchor),
		Span:           Span{Start: funcStart, End: funcEnd},
		Callees:        s.callees(funcStart, funcEnd),
	}
	if err := s.g.add(fn); err != nil {
		s.g.report(newDiagnostic(KindIndexConflict, funcStart, "%s: %v", name, err))
		return 0, false
	}
	return funcEnd, true
}

// returnVariable reads the operand of "Return(...)" on the Return line.
func (s *graphScanner) returnVariable(retPos int) string {
	_, lineEnd := s.src.Line(retPos)
	start := retPos + len(returnMarker)
	closePos := s.src.Index(")", start)
	if closePos < 0 || closePos > lineEnd {
		return Unknown
	}
	v := strings.TrimPrefix(strings.TrimSpace(s.src.Slice(start, closePos)), "%")
	if v == "" {
		return Unknown
	}
	return v
}

// returnValue reads the text between the return-value anchor and the first
// terminator on the anchor's line.
func (s *graphScanner) returnValue(anchor int) string {
	_, lineEnd := s.src.Line(anchor)
	text := s.src.Slice(anchor+len(returnValueAnchor), lineEnd)
	if i := strings.Index(text, sequenceMarker); i >= 0 {
		return text[:i]
	}
	if i := strings.Index(text, valueEndMarker); i >= 0 {
		return text[:i]
	}
	return Unknown
}

// callees collects call targets line by line. At most one call form is
// recognised per line, tried in order: direct call, Switch, FuncUnion,
// CNode bracket.
func (s *graphScanner) callees(start, end int) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	addRef := func(arg string) {
		arg = strings.TrimSpace(arg)
		if strings.HasPrefix(arg, "@") {
			add(arg[1:])
		}
	}

	s.src.EachLine(start, end, func(off int, line string) bool {
		if i := strings.Index(line, directCallMarker); i >= 0 {
			rest := line[i+len(directCallMarker):]
			if p := strings.IndexByte(rest, '('); p >= 0 {
				rest = rest[:p]
			}
			add(rest)
			return true
		}

		if i := strings.Index(line, switchMarker); i >= 0 {
			open := off + i + len(switchMarker) - 1
			closePos, err := s.src.MatchBracket(open, s.opts.Brackets)
			if err != nil {
				s.g.report(newDiagnostic(KindBracketMismatch, open, "Switch arguments: %v", err))
				return true
			}
			args := strings.Split(s.src.Slice(open+1, closePos), ", ")
			if len(args) == 3 {
				addRef(args[1])
				addRef(args[2])
			}
			return true
		}

		if i := strings.Index(line, unionMarker); i >= 0 {
			rest := line[i+len(unionMarker):]
			p := strings.IndexByte(rest, ')')
			if p < 0 {
				return true
			}
			args := strings.Split(rest[:p], ", ")
			if len(args) == 2 {
				addRef(args[0])
				addRef(args[1])
			}
			return true
		}

		if i := strings.Index(line, cnodeMarker); i >= 0 {
			rest := line[i+len(cnodeMarker):]
			if p := strings.Index(rest, cnodeEndMarker); p >= 0 {
				add(rest[:p])
			}
		}
		return true
	})
	return out
}
