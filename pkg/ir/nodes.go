package ir

import (
	"strings"

	"github.com/l3aro/go-ir-query/pkg/textsource"
)

const (
	nodeMarker   = "  %"
	assignMarker = " = "
)

// ExtractNodes recovers the instructions defined inside span. Each line of
// the form "  %var(...) = op(operands)" becomes a NodeInfo; operand lists
// are delimited with bracket matching so they may nest and span lines.
func ExtractNodes(src textsource.Source, span Span, opts Options) *NodeSet {
	set := newNodeSet("")

	src.EachLine(span.Start, span.End, func(off int, line string) bool {
		if !strings.HasPrefix(line, nodeMarker) {
			return true
		}
		varStart := len(nodeMarker)
		p := strings.IndexByte(line[varStart:], '(')
		if p <= 0 {
			return true
		}
		varEnd := varStart + p

		eq := strings.Index(line[varEnd:], assignMarker)
		if eq < 0 {
			return true
		}
		opStart := varEnd + eq + len(assignMarker)

		node := &NodeInfo{
			VariableName: line[varStart:varEnd],
			DefinePos:    off + varStart,
		}

		paren := valueAccessParen(src, off, line, opStart, opts)
		if paren < 0 {
			paren = operatorParen(line, opStart)
		}
		if paren < 0 {
			node.OperatorName = strings.TrimSpace(line[opStart:])
			seedValueAccess(node)
			set.put(node)
			return true
		}
		node.OperatorName = line[opStart:paren]
		seedValueAccess(node)

		open := off + paren
		closePos, err := src.MatchBracket(open, opts.Brackets)
		if err != nil {
			set.Diagnostics = append(set.Diagnostics,
				newDiagnostic(KindBracketMismatch, open, "operands of %%%s: %v", node.VariableName, err))
			set.put(node)
			return true
		}

		for _, operand := range textsource.SplitTopLevel(src.Slice(open+1, closePos), ", ") {
			if strings.HasPrefix(operand, "%") {
				node.VarInputs = append(node.VarInputs, operand[1:])
			} else {
				node.HasConstantInput = true
			}
		}
		set.put(node)
		return true
	})

	return set
}

// operatorParen finds the '(' that opens the operand list. A "$(" opener
// is skipped in favour of the next '('.
func operatorParen(line string, opStart int) int {
	p := strings.IndexByte(line[opStart:], '(')
	if p < 0 {
		return -1
	}
	abs := opStart + p
	if abs > opStart && line[abs-1] == '$' {
		if q := strings.IndexByte(line[abs+1:], '('); q >= 0 {
			abs = abs + 1 + q
		}
	}
	return abs
}

// valueAccessParen finds the operand '(' of a "%N[...](...)" operator: the
// first '(' after the bracket closing the access, so that brackets inside
// the access do not end the operator early. It returns -1 for any other
// operator form.
func valueAccessParen(src textsource.Source, off int, line string, opStart int, opts Options) int {
	if !strings.HasPrefix(line[opStart:], "%") {
		return -1
	}
	b := strings.IndexByte(line[opStart:], '[')
	if b < 0 {
		return -1
	}
	closePos, err := src.MatchBracket(off+opStart+b, opts.Brackets)
	if err != nil || closePos-off >= len(line) {
		return -1
	}
	rel := closePos - off + 1
	p := strings.IndexByte(line[rel:], '(')
	if p < 0 {
		return -1
	}
	return rel + p
}

// seedValueAccess handles "%N[...]" operators: the accessed variable is the
// first input.
func seedValueAccess(node *NodeInfo) {
	if !strings.HasPrefix(node.OperatorName, "%") {
		return
	}
	ref := node.OperatorName[1:]
	if b := strings.IndexByte(ref, '['); b >= 0 {
		ref = ref[:b]
	}
	if ref != "" {
		node.VarInputs = append(node.VarInputs, ref)
	}
}
