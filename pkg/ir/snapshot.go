package ir

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the serialisable form of a Graph. The range index is rebuilt
// from function spans on restore.
type Snapshot struct {
	Entry       string         `msgpack:"entry"`
	Functions   []FunctionInfo `msgpack:"functions"`
	Diagnostics []Diagnostic   `msgpack:"diagnostics"`
}

// Snapshot captures g for caching.
func (g *Graph) Snapshot() *Snapshot {
	return &Snapshot{
		Entry:       g.Entry,
		Functions:   append([]FunctionInfo(nil), g.Functions...),
		Diagnostics: append([]Diagnostic(nil), g.Diagnostics...),
	}
}

// FromSnapshot rebuilds a Graph, including its range index.
func FromSnapshot(s *Snapshot) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	g := newGraph()
	g.Entry = s.Entry
	g.Diagnostics = append(g.Diagnostics, s.Diagnostics...)
	for _, fn := range s.Functions {
		if err := g.add(fn); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", fn.Name, err)
		}
	}
	return g, nil
}

// UnmarshalJSON decodes a graph and rebuilds its lookup tables and range
// index, so a graph received over the wire answers queries like a parsed one.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var wire struct {
		Entry       string         `json:"entry"`
		Functions   []FunctionInfo `json:"functions"`
		Diagnostics []Diagnostic   `json:"diagnostics"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	restored, err := FromSnapshot(&Snapshot{
		Entry:       wire.Entry,
		Functions:   wire.Functions,
		Diagnostics: wire.Diagnostics,
	})
	if err != nil {
		return err
	}
	*g = *restored
	return nil
}
