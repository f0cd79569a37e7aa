// Package layout assigns 2D grid coordinates to the nodes of a call graph or
// a data-flow graph. Two strategies are provided: a tree layout that offsets
// each child from its parent, and a depth layout that keeps one row per depth
// with a running column cursor per row.
package layout

import (
	"errors"
	"fmt"
)

// ErrCallDepth is reported when a traversal goes deeper than MaxDepth.
var ErrCallDepth = errors.New("wrong call depth")

// Strategy selects the placement algorithm.
type Strategy string

const (
	// Tree places child i of a node at (x + DistanceX*i, y + DistanceY)
	Tree Strategy = "tree"
	// Depth places a node at depth d on row d, advancing a per-row cursor
	Depth Strategy = "depth"
)

// ParseStrategy converts a flag value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Tree, Depth:
		return Strategy(s), nil
	case "":
		return Tree, nil
	default:
		return "", fmt.Errorf("unknown layout strategy %q", s)
	}
}

// Graph exposes the outgoing edges of a node by name.
type Graph interface {
	Children(name string) []string
}

// GraphFunc adapts a function to the Graph interface.
type GraphFunc func(name string) []string

// Children calls f(name).
func (f GraphFunc) Children(name string) []string {
	return f(name)
}

// Options controls geometry and traversal.
type Options struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	StartX    int `json:"start_x" yaml:"start_x"`
	StartY    int `json:"start_y" yaml:"start_y"`
	DistanceX int `json:"distance_x" yaml:"distance_x"`
	DistanceY int `json:"distance_y" yaml:"distance_y"`
	// ColumnWidth is how far a depth row's cursor advances per node
	ColumnWidth int `json:"column_width" yaml:"column_width"`
	// MaxDepth bounds the depth strategy; deeper children are skipped
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Unreached lists every node name in discovery order. Names the
	// traversal from the root never reaches are laid out afterwards.
	Unreached []string `json:"-" yaml:"-"`
}

// DefaultOptions returns the standard geometry.
func DefaultOptions() Options {
	return Options{
		Strategy:    Tree,
		StartX:      0,
		StartY:      0,
		DistanceX:   200,
		DistanceY:   100,
		ColumnWidth: 200,
		MaxDepth:    100,
	}
}

// Point is a grid coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Edge is a directed parent to child relation that was traversed.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Bounds is the bounding box of every placed node.
type Bounds struct {
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Result is the output of a layout run.
type Result struct {
	Positions map[string]Point `json:"positions"`
	// Order is the placement order
	Order    []string `json:"order"`
	Edges    []Edge   `json:"edges"`
	Bounds   Bounds   `json:"bounds"`
	Warnings []error  `json:"-"`
}

// Position returns the coordinate assigned to name.
func (r *Result) Position(name string) (Point, bool) {
	p, ok := r.Positions[name]
	return p, ok
}

// frame is one level of the explicit traversal stack. It plays the role
// of a recursive call: children are visited left to right and each placed
// child is descended into before the next sibling is considered.
type frame struct {
	name     string
	at       Point
	depth    int
	children []string
	next     int
}

type engine struct {
	opts  Options
	graph Graph
	res   *Result

	// xPos is the running column cursor per depth
	xPos      []int
	levelBase int
	placedAny bool
}

// Layout places root and everything reachable from it, then any names in
// opts.Unreached that were not reached. A node is placed once; edges to
// already placed nodes are still recorded, so cycles terminate.
func Layout(root string, g Graph, opts Options) *Result {
	e := &engine{
		opts:      opts,
		graph:     g,
		levelBase: opts.StartX,
		res: &Result{
			Positions: make(map[string]Point),
		},
	}
	if e.opts.Strategy == "" {
		e.opts.Strategy = Tree
	}

	if root != "" {
		e.traverse(root, e.rootPoint(opts.StartX, opts.StartY))
	}

	for i := len(opts.Unreached) - 1; i >= 0; i-- {
		name := opts.Unreached[i]
		if _, ok := e.res.Positions[name]; ok {
			continue
		}
		e.traverse(name, e.freshColumn())
	}
	return e.res
}

func (e *engine) rootPoint(x, y int) Point {
	if e.opts.Strategy == Depth {
		e.xPos = append(e.xPos[:0], x)
		return Point{X: x, Y: e.opts.DistanceY}
	}
	return Point{X: x, Y: y}
}

// freshColumn starts a new root to the right of everything placed so far.
func (e *engine) freshColumn() Point {
	if !e.placedAny {
		return e.rootPoint(e.opts.StartX, e.opts.StartY)
	}
	maxX := e.res.Bounds.MaxX
	if e.opts.Strategy == Depth {
		base := maxX + e.opts.ColumnWidth
		for d := range e.xPos {
			e.xPos[d] = maxX
		}
		e.levelBase = maxX
		e.xPos[0] = base
		return Point{X: base, Y: e.opts.DistanceY}
	}
	// one DistanceX past the widest node so the column never lands on a
	// placed child
	return Point{X: maxX + e.opts.DistanceX, Y: e.opts.DistanceY}
}

func (e *engine) place(name string, at Point) {
	e.res.Positions[name] = at
	e.res.Order = append(e.res.Order, name)
	if !e.placedAny || at.X > e.res.Bounds.MaxX {
		e.res.Bounds.MaxX = at.X
	}
	if !e.placedAny || at.Y > e.res.Bounds.MaxY {
		e.res.Bounds.MaxY = at.Y
	}
	e.placedAny = true
}

func (e *engine) traverse(root string, at Point) {
	e.place(root, at)
	stack := []*frame{{name: root, at: at, children: e.graph.Children(root)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		i := top.next
		top.next++
		child := top.children[i]

		if _, seen := e.res.Positions[child]; seen {
			e.res.Edges = append(e.res.Edges, Edge{From: top.name, To: child})
			continue
		}

		pos, ok := e.childPoint(top, i, child)
		if !ok {
			continue
		}
		e.res.Edges = append(e.res.Edges, Edge{From: top.name, To: child})
		e.place(child, pos)
		stack = append(stack, &frame{
			name:     child,
			at:       pos,
			depth:    top.depth + 1,
			children: e.graph.Children(child),
		})
	}
}

// childPoint computes where child index i of parent goes. It returns false
// when the child must be skipped.
func (e *engine) childPoint(parent *frame, i int, child string) (Point, bool) {
	if e.opts.Strategy != Depth {
		return Point{
			X: parent.at.X + e.opts.DistanceX*i,
			Y: parent.at.Y + e.opts.DistanceY,
		}, true
	}

	d := parent.depth + 1
	if e.opts.MaxDepth > 0 && d > e.opts.MaxDepth {
		e.res.Warnings = append(e.res.Warnings,
			fmt.Errorf("%s -> %s at depth %d: %w", parent.name, child, d, ErrCallDepth))
		return Point{}, false
	}
	for len(e.xPos) <= d {
		e.xPos = append(e.xPos, e.levelBase)
	}
	e.xPos[d] += e.opts.ColumnWidth
	return Point{X: e.xPos[d], Y: (d + 1) * e.opts.DistanceY}, true
}
