package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapGraph map[string][]string

func (m mapGraph) Children(name string) []string {
	return m[name]
}

func testOptions(strategy Strategy) Options {
	return Options{
		Strategy:    strategy,
		DistanceX:   10,
		DistanceY:   5,
		ColumnWidth: 10,
		MaxDepth:    10,
	}
}

var diamond = mapGraph{
	"a": {"b", "c"},
	"b": {"d", "a"},
	"c": {"d"},
}

func TestLayoutTree(t *testing.T) {
	res := Layout("a", diamond, testOptions(Tree))

	assert.Equal(t, map[string]Point{
		"a": {0, 0},
		"b": {0, 5},
		"d": {0, 10},
		"c": {10, 5},
	}, res.Positions)
	assert.Equal(t, []string{"a", "b", "d", "c"}, res.Order)
	assert.Equal(t, []Edge{
		{"a", "b"}, {"b", "d"}, {"b", "a"}, {"a", "c"}, {"c", "d"},
	}, res.Edges)
	assert.Equal(t, Bounds{MaxX: 10, MaxY: 10}, res.Bounds)
	assert.Empty(t, res.Warnings)
}

func TestLayoutTreeStartOffset(t *testing.T) {
	opts := testOptions(Tree)
	opts.StartX, opts.StartY = 100, 50

	res := Layout("a", diamond, opts)

	p, ok := res.Position("c")
	require.True(t, ok)
	assert.Equal(t, Point{X: 110, Y: 55}, p)
}

func TestLayoutDepth(t *testing.T) {
	res := Layout("a", diamond, testOptions(Depth))

	assert.Equal(t, map[string]Point{
		"a": {0, 5},
		"b": {10, 10},
		"d": {10, 15},
		"c": {20, 10},
	}, res.Positions)
	assert.Equal(t, []string{"a", "b", "d", "c"}, res.Order)
	assert.Equal(t, Bounds{MaxX: 20, MaxY: 15}, res.Bounds)
}

func TestLayoutDepthRowsMatchDepth(t *testing.T) {
	g := mapGraph{
		"r": {"a", "b", "c"},
		"a": {"a1", "a2"},
		"b": {"b1"},
	}
	res := Layout("r", g, testOptions(Depth))

	rows := map[int][]int{}
	for _, name := range res.Order {
		p := res.Positions[name]
		rows[p.Y] = append(rows[p.Y], p.X)
	}
	assert.Equal(t, []int{0}, rows[5])
	assert.Equal(t, []int{10, 20, 30}, rows[10])
	assert.Equal(t, []int{10, 20, 30}, rows[15])
}

func TestLayoutDepthLimit(t *testing.T) {
	g := mapGraph{"a": {"b"}, "b": {"c"}, "c": {"d"}}
	opts := testOptions(Depth)
	opts.MaxDepth = 1

	res := Layout("a", g, opts)

	assert.Equal(t, []string{"a", "b"}, res.Order)
	assert.Equal(t, []Edge{{"a", "b"}}, res.Edges)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrCallDepth)
	assert.Contains(t, res.Warnings[0].Error(), "wrong call depth")
}

func TestLayoutCycles(t *testing.T) {
	tests := []struct {
		name  string
		graph mapGraph
		edges []Edge
	}{
		{"two node loop", mapGraph{"a": {"b"}, "b": {"a"}}, []Edge{{"a", "b"}, {"b", "a"}}},
		{"self call", mapGraph{"a": {"a"}}, []Edge{{"a", "a"}}},
	}

	for _, tt := range tests {
		for _, strategy := range []Strategy{Tree, Depth} {
			t.Run(fmt.Sprintf("%s/%s", tt.name, strategy), func(t *testing.T) {
				res := Layout("a", tt.graph, testOptions(strategy))
				assert.Len(t, res.Positions, len(tt.graph))
				assert.Equal(t, tt.edges, res.Edges)
			})
		}
	}
}

func TestLayoutSiblingsNeverShareX(t *testing.T) {
	// every node has up to five children, some shared between parents
	g := mapGraph{}
	for i := 0; i < 40; i++ {
		parent := fmt.Sprintf("n%d", i)
		for k := 1; k <= i%5+1; k++ {
			g[parent] = append(g[parent], fmt.Sprintf("n%d", i*3+k))
		}
	}

	res := Layout("n0", g, testOptions(Tree))
	require.Greater(t, len(res.Positions), 10)

	// the first edge into a node is the one that placed it
	placedBy := map[string]string{}
	for _, e := range res.Edges {
		if _, ok := placedBy[e.To]; !ok && e.To != "n0" {
			placedBy[e.To] = e.From
		}
	}

	xs := map[string]map[int]string{}
	for child, parent := range placedBy {
		if xs[parent] == nil {
			xs[parent] = map[int]string{}
		}
		x := res.Positions[child].X
		other, dup := xs[parent][x]
		require.False(t, dup, "%s and %s under %s share x=%d", other, child, parent, x)
		xs[parent][x] = child
	}
}

func TestLayoutIsReproducible(t *testing.T) {
	for _, strategy := range []Strategy{Tree, Depth} {
		first := Layout("a", diamond, testOptions(strategy))
		second := Layout("a", diamond, testOptions(strategy))
		assert.Equal(t, first, second)
	}
}

func TestLayoutUnreachedTree(t *testing.T) {
	g := mapGraph{"a": {"b"}, "y": {"z"}}
	opts := testOptions(Tree)
	opts.Unreached = []string{"a", "b", "x", "y", "z"}

	res := Layout("a", g, opts)

	assert.Equal(t, []string{"a", "b", "z", "y", "x"}, res.Order)
	assert.Equal(t, map[string]Point{
		"a": {0, 0},
		"b": {0, 5},
		"z": {10, 5},
		"y": {20, 5},
		"x": {30, 5},
	}, res.Positions)
	assert.Contains(t, res.Edges, Edge{"y", "z"})
}

func TestLayoutUnreachedDepth(t *testing.T) {
	g := mapGraph{"a": {"b"}, "y": {"z"}}
	opts := testOptions(Depth)
	opts.Unreached = []string{"a", "b", "x", "y", "z"}

	res := Layout("a", g, opts)

	assert.Equal(t, map[string]Point{
		"a": {0, 5},
		"b": {10, 10},
		"z": {20, 5},
		"y": {30, 5},
		"x": {40, 5},
	}, res.Positions)
}

func TestLayoutUnreachedChildrenStayRightOfPlacedNodes(t *testing.T) {
	g := mapGraph{"a": {"b", "c"}, "p": {"q"}}
	opts := testOptions(Depth)
	opts.Unreached = []string{"p"}

	res := Layout("a", g, opts)

	// b and c occupy row 1 up to x=20, so q must land past them
	assert.Equal(t, Point{X: 30, Y: 5}, res.Positions["p"])
	assert.Equal(t, Point{X: 30, Y: 10}, res.Positions["q"])
}

func TestLayoutWithoutRoot(t *testing.T) {
	res := Layout("", mapGraph{}, testOptions(Tree))
	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Edges)

	opts := testOptions(Tree)
	opts.Unreached = []string{"a"}
	res = Layout("", GraphFunc(func(string) []string { return nil }), opts)
	assert.Equal(t, map[string]Point{"a": {0, 0}}, res.Positions)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"tree", Tree, false},
		{"depth", Depth, false},
		{"", Tree, false},
		{"radial", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
