// Package ir recovers the function ("subgraph") structure and the SSA-like
// instructions of textual IR dumps. Parsing is scan based and tolerant:
// malformed input yields partial results plus diagnostics, never a panic.
package ir

import (
	"strings"

	"github.com/l3aro/go-ir-query/pkg/rangeindex"
	"github.com/l3aro/go-ir-query/pkg/textsource"
)

// Unknown is used when a return variable or value cannot be determined.
const Unknown = "<Unknown>"

// Span is a half-open byte range over the document text.
type Span = rangeindex.Span

// FunctionInfo describes one IR subgraph.
type FunctionInfo struct {
	// Name is the qualified name, e.g. "construct_wrapper.21"
	Name string `json:"name" msgpack:"name"`
	// SimpleName is Name up to the first '.'
	SimpleName string `json:"simple_name" msgpack:"simple_name"`
	// DefinePos is the offset of the name at the definition
	DefinePos int `json:"define_pos" msgpack:"define_pos"`
	// ReturnVariable is the returned SSA variable without the '%' sigil
	ReturnVariable string `json:"return_variable" msgpack:"return_variable"`
	// ReturnValue is the textual type/value of the returned expression
	ReturnValue string `json:"return_value" msgpack:"return_value"`
	// Span covers the "subgraph attr:" marker through the closing brace
	Span Span `json:"span" msgpack:"span"`
	// Callees in discovery order, without duplicates
	Callees []string `json:"callees" msgpack:"callees"`
}

// NodeInfo describes one instruction inside a function body.
type NodeInfo struct {
	VariableName     string   `json:"variable_name" msgpack:"variable_name"`
	OperatorName     string   `json:"operator_name" msgpack:"operator_name"`
	DefinePos        int      `json:"define_pos" msgpack:"define_pos"`
	VarInputs        []string `json:"var_inputs" msgpack:"var_inputs"`
	HasConstantInput bool     `json:"has_constant_input" msgpack:"has_constant_input"`
}

// NodeSet holds the nodes of a single function keyed by variable name.
type NodeSet struct {
	Function    string               `json:"function"`
	Nodes       map[string]*NodeInfo `json:"nodes"`
	Order       []string             `json:"order"`
	Diagnostics []Diagnostic         `json:"diagnostics,omitempty"`
}

func newNodeSet(function string) *NodeSet {
	return &NodeSet{
		Function: function,
		Nodes:    make(map[string]*NodeInfo),
	}
}

// put records n, overwriting an earlier node with the same variable while
// keeping its original discovery slot.
func (s *NodeSet) put(n *NodeInfo) {
	if _, exists := s.Nodes[n.VariableName]; !exists {
		s.Order = append(s.Order, n.VariableName)
	}
	s.Nodes[n.VariableName] = n
}

// Get returns the node defining variable.
func (s *NodeSet) Get(variable string) (*NodeInfo, bool) {
	if s == nil {
		return nil, false
	}
	n, ok := s.Nodes[strings.TrimPrefix(variable, "%")]
	return n, ok
}

// Len returns the number of distinct variables.
func (s *NodeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Nodes)
}

// Options tunes extraction.
type Options struct {
	// Brackets bounds every bracket-balanced lookup
	Brackets textsource.Limits
}

// DefaultOptions returns the standard extraction options.
func DefaultOptions() Options {
	return Options{Brackets: textsource.DefaultLimits()}
}

func simpleName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
