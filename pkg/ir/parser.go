package ir

import (
	"fmt"
	"sync"

	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/textsource"
)

// Parser owns the published results for one document: the function graph
// of the last full scan and the nodes of the last selected function. Each
// scan builds a fresh Graph and swaps it in whole, so readers never observe
// a half-built result.
type Parser struct {
	mu     sync.RWMutex
	opts   Options
	logger log.Logger

	graph *Graph
	nodes *NodeSet
}

// Option configures a Parser.
type Option func(*Parser)

// WithOptions sets the extraction options.
func WithOptions(opts Options) Option {
	return func(p *Parser) {
		p.opts = opts
	}
}

// WithLogger sets the logger diagnostics are reported to.
func WithLogger(l log.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// NewParser creates a Parser with no published results.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		opts:   DefaultOptions(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFuncGraph runs a full scan of src and publishes the result,
// replacing any earlier graph and node set.
func (p *Parser) ParseFuncGraph(src textsource.Source) *Graph {
	g := ExtractGraph(src, p.opts)
	p.logDiagnostics(g.Diagnostics)
	p.logger.Debug("parsed function graph", "entry", g.Entry, "functions", len(g.Functions))
	p.publish(g)
	return g
}

// Restore publishes a previously captured snapshot.
func (p *Parser) Restore(s *Snapshot) (*Graph, error) {
	g, err := FromSnapshot(s)
	if err != nil {
		return nil, err
	}
	p.publish(g)
	return g, nil
}

func (p *Parser) publish(g *Graph) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = g
	p.nodes = nil
}

func (p *Parser) logDiagnostics(diags []Diagnostic) {
	for _, d := range diags {
		p.logger.Warn(d.Message, "kind", d.Kind, "offset", d.Offset)
	}
}

// Graph returns the published graph, or nil before the first scan.
func (p *Parser) Graph() *Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph
}

// Entry returns the entry function name of the published graph.
func (p *Parser) Entry() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.graph == nil {
		return ""
	}
	return p.graph.Entry
}

// Functions returns a copy of the published function list.
func (p *Parser) Functions() []FunctionInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.graph == nil {
		return nil
	}
	return append([]FunctionInfo(nil), p.graph.Functions...)
}

// Function looks a function up by qualified or simple name.
func (p *Parser) Function(name string) (FunctionInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph.Function(name)
}

// FunctionAt returns the index of the function containing off. A miss means
// the offset is outside every known function, or nothing was parsed yet.
func (p *Parser) FunctionAt(off int) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph.FunctionAt(off)
}

// ParseNodes extracts the nodes of the named function from src and makes
// them the current node set.
func (p *Parser) ParseNodes(src textsource.Source, name string) (*NodeSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn, ok := p.graph.Function(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownFunction)
	}

	// the span must come from the graph the set is published against
	set := ExtractNodes(src, fn.Span, p.opts)
	set.Function = fn.Name
	p.logDiagnostics(set.Diagnostics)
	p.nodes = set
	return set, nil
}

// Nodes returns the current node set, or nil.
func (p *Parser) Nodes() *NodeSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nodes
}

// Node looks up a variable in the current node set.
func (p *Parser) Node(variable string) (*NodeInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nodes.Get(variable)
}
