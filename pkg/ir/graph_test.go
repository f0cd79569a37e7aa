package ir

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-ir-query/pkg/textsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	entryLine  = "#IR entry      : "
	anchorLine = "      : (<"
)

func loadFixture(t *testing.T, name string) *textsource.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return textsource.NewDocument(string(data))
}

func TestExtractGraphEntryAndReturn(t *testing.T) {
	text := entryLine + "@main\n" +
		"subgraph attr:\n" +
		"subgraph @main(%para1_x) {\n" +
		"  %1(CNode_1) = S_Prim_Neg(%para1_x)\n" +
		"  %2(CNode_2) = call @helper(%1)\n" +
		"  Return(%2)\n" +
		anchorLine + "Tensor>, sequence_nodes)\n" +
		"}\n"

	g := ExtractGraph(textsource.NewDocument(text), DefaultOptions())

	assert.Empty(t, g.Diagnostics)
	assert.Equal(t, "main", g.Entry)
	require.Len(t, g.Functions, 1)

	fn := g.Functions[0]
	assert.Equal(t, "main", fn.Name)
	assert.Equal(t, "main", fn.SimpleName)
	assert.Equal(t, []string{"helper"}, fn.Callees)
	assert.Equal(t, "2", fn.ReturnVariable)
	assert.Equal(t, "Tensor>", fn.ReturnValue)
	assert.Equal(t, strings.Index(text, "subgraph attr:"), fn.Span.Start)
	assert.Equal(t, strings.LastIndex(text, "}")+1, fn.Span.End)
	assert.Equal(t, strings.Index(text, "@main(")+1, fn.DefinePos)
}

func TestExtractGraphSample(t *testing.T) {
	doc := loadFixture(t, "sample.ir")
	text := doc.Text()

	g := ExtractGraph(doc, DefaultOptions())

	assert.Empty(t, g.Diagnostics)
	assert.Equal(t, "1_main.10", g.Entry)
	require.Len(t, g.Functions, 3)
	assert.Equal(t, 3, g.Index.Len())

	main := g.Functions[0]
	assert.Equal(t, "1_main.10", main.Name)
	assert.Equal(t, "1_main", main.SimpleName)
	assert.Equal(t, []string{"2_helper.11", "3_branch.12", "4_false.13", "5_other.14"}, main.Callees)
	assert.Equal(t, "5", main.ReturnVariable)
	assert.Equal(t, "Tensor[Float32], (2, 3)", main.ReturnValue)

	helper := g.Functions[1]
	assert.Equal(t, "2_helper.11", helper.Name)
	assert.Equal(t, []string{"2_helper.11"}, helper.Callees)
	assert.Equal(t, "1", helper.ReturnVariable)
	assert.Equal(t, "Tensor>", helper.ReturnValue)

	branch := g.Functions[2]
	assert.Equal(t, "3_branch.12", branch.Name)
	assert.Empty(t, branch.Callees)
	assert.Equal(t, "0", branch.ReturnVariable)
	assert.Equal(t, "Tensor", branch.ReturnValue)

	for i := 1; i < len(g.Functions); i++ {
		assert.LessOrEqual(t, g.Functions[i-1].Span.End, g.Functions[i].Span.Start)
	}

	// every offset inside a span resolves to its function
	for i, fn := range g.Functions {
		assert.Less(t, fn.Span.Start, fn.Span.End)
		for off := fn.Span.Start; off < fn.Span.End; off++ {
			got, ok := g.FunctionAt(off)
			require.True(t, ok, "offset %d", off)
			require.Equal(t, i, got, "offset %d", off)
		}
	}

	// header and the blank lines between functions belong to nothing
	for _, off := range []int{0, main.Span.Start - 1, main.Span.End, helper.Span.Start - 1, len(text) - 1} {
		_, ok := g.FunctionAt(off)
		assert.False(t, ok, "offset %d", off)
	}
}

func TestExtractGraphIdempotent(t *testing.T) {
	doc := loadFixture(t, "sample.ir")

	first := ExtractGraph(doc, DefaultOptions())
	second := ExtractGraph(textsource.NewDocument(doc.Text()), DefaultOptions())

	assert.Equal(t, first.Entry, second.Entry)
	assert.Equal(t, first.Functions, second.Functions)
	assert.Equal(t, first.Index.Spans(), second.Index.Spans())
}

func TestExtractGraphCalleeDedupAcrossForms(t *testing.T) {
	text := entryLine + "@f\n" +
		"subgraph attr:\n" +
		"subgraph @f() {\n" +
		"  %0(CNode_1) = [@g.2](I64(1))\n" +
		"  %1(CNode_2) = call @h.3(%0)\n" +
		"  %2(CNode_3) = call @g.2(%1)\n" +
		"  %3(CNode_4) = [@h.3](%2)\n" +
		"  Return(%3)\n" +
		anchorLine + "Tensor>)\n" +
		"}\n"

	g := ExtractGraph(textsource.NewDocument(text), DefaultOptions())
	require.Len(t, g.Functions, 1)
	assert.Equal(t, []string{"g.2", "h.3"}, g.Functions[0].Callees)
}

func TestExtractGraphOnePatternPerLine(t *testing.T) {
	text := entryLine + "@f\n" +
		"subgraph attr:\n" +
		"subgraph @f() {\n" +
		"  %0(CNode_1) = call @direct.1([@ignored.2](%x))\n" +
		"  %1(CNode_2) = Switch(%c, @yes.3, @no.4)\n" +
		"  %2(CNode_3) = Switch(%c, @only.5)\n" +
		"  %3(CNode_4) = %2[@FuncUnion(@u.6, %v)](%1)\n" +
		"  Return(%3)\n" +
		anchorLine + "Tensor>)\n" +
		"}\n"

	g := ExtractGraph(textsource.NewDocument(text), DefaultOptions())
	require.Len(t, g.Functions, 1)
	assert.Equal(t, []string{"direct.1", "yes.3", "no.4", "u.6"}, g.Functions[0].Callees)
}

func TestExtractGraphMissingEntry(t *testing.T) {
	text := "subgraph attr:\nsubgraph @f() {\n  Return(%0)\n" + anchorLine + "Tensor>)\n}\n"

	g := ExtractGraph(textsource.NewDocument(text), DefaultOptions())

	assert.Empty(t, g.Entry)
	assert.Empty(t, g.Functions)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, KindMissingEntry, g.Diagnostics[0].Kind)
	assert.True(t, errors.Is(g.Diagnostics[0].Err(), ErrMissingEntry))
}

func TestExtractGraphMissingReturnKeepsEarlierFunctions(t *testing.T) {
	doc := loadFixture(t, "missing_return.ir")

	g := ExtractGraph(doc, DefaultOptions())

	require.Len(t, g.Functions, 1)
	assert.Equal(t, "a", g.Functions[0].Name)
	assert.Equal(t, []string{"b"}, g.Functions[0].Callees)
	assert.Equal(t, 1, g.Index.Len())

	require.Len(t, g.Diagnostics, 1)
	d := g.Diagnostics[0]
	assert.Equal(t, KindMissingReturn, d.Kind)
	assert.ErrorIs(t, d.Err(), ErrMissingReturn)
	assert.Contains(t, d.Message, "No Return node found")
	assert.Equal(t, strings.Index(doc.Text(), "subgraph @b"), d.Offset)
}

func TestExtractGraphIncompleteSubgraph(t *testing.T) {
	g := ExtractGraph(loadFixture(t, "incomplete.ir"), DefaultOptions())

	require.Len(t, g.Functions, 1)
	assert.Equal(t, "a", g.Functions[0].Name)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, KindIncompleteSubgraph, g.Diagnostics[0].Kind)
	assert.Contains(t, g.Diagnostics[0].Message, "Incomplete subgraph")
}

func TestExtractGraphMissingReturnValue(t *testing.T) {
	text := entryLine + "@f\n" +
		"subgraph attr:\n" +
		"subgraph @f() {\n" +
		"  Return(%0)\n" +
		"}\n"

	g := ExtractGraph(textsource.NewDocument(text), DefaultOptions())

	assert.Empty(t, g.Functions)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, KindMissingReturnValue, g.Diagnostics[0].Kind)
}

func TestExtractGraphUnknownReturn(t *testing.T) {
	text := entryLine + "@f\n" +
		"subgraph attr:\n" +
		"subgraph @f() {\n" +
		"  Return(\n" +
		anchorLine + "Tensor\n" +
		"}\n"

	g := ExtractGraph(textsource.NewDocument(text), DefaultOptions())

	require.Len(t, g.Functions, 1)
	assert.Equal(t, Unknown, g.Functions[0].ReturnVariable)
	assert.Equal(t, Unknown, g.Functions[0].ReturnValue)
}

func TestExtractGraphBracketLimitIsLocal(t *testing.T) {
	text := entryLine + "@f\n" +
		"subgraph attr:\n" +
		"subgraph @f() {\n" +
		"  %0(CNode_1) = Switch(%cond_value, @yes.1, @no.2)\n" +
		"  %1(CNode_2) = call @g.3(%0)\n" +
		"  Return(%1)\n" +
		anchorLine + "Tensor>)\n" +
		"}\n"

	opts := Options{Brackets: textsource.Limits{MaxDistance: 5, MaxDepth: 10}}
	g := ExtractGraph(textsource.NewDocument(text), opts)

	require.Len(t, g.Functions, 1)
	assert.Equal(t, []string{"g.3"}, g.Functions[0].Callees)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, KindBracketMismatch, g.Diagnostics[0].Kind)
	assert.ErrorIs(t, g.Diagnostics[0].Err(), ErrBracketMismatch)
}

func TestGraphFunctionLookup(t *testing.T) {
	g := ExtractGraph(loadFixture(t, "sample.ir"), DefaultOptions())

	fn, ok := g.Function("2_helper.11")
	require.True(t, ok)
	assert.Equal(t, "2_helper.11", fn.Name)

	fn, ok = g.Function("@3_branch")
	require.True(t, ok)
	assert.Equal(t, "3_branch.12", fn.Name)

	_, ok = g.Function("4_false.13")
	assert.False(t, ok)

	var empty *Graph
	_, ok = empty.Function("x")
	assert.False(t, ok)
	_, ok = empty.FunctionAt(0)
	assert.False(t, ok)
}

func TestSnapshotRoundTripRebuildsIndex(t *testing.T) {
	g := ExtractGraph(loadFixture(t, "sample.ir"), DefaultOptions())

	restored, err := FromSnapshot(g.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, g.Entry, restored.Entry)
	assert.Equal(t, g.Functions, restored.Functions)
	assert.Equal(t, g.Index.Spans(), restored.Index.Spans())

	mid := g.Functions[1].Span.Start + 5
	idx, ok := restored.FunctionAt(mid)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, err = FromSnapshot(nil)
	assert.Error(t, err)

	bad := g.Snapshot()
	bad.Functions = append(bad.Functions, bad.Functions[0])
	_, err = FromSnapshot(bad)
	assert.Error(t, err)
}

func TestGraphJSONRebuildsLookups(t *testing.T) {
	g := ExtractGraph(loadFixture(t, "sample.ir"), DefaultOptions())
	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded Graph
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, g.Entry, decoded.Entry)
	require.Len(t, decoded.Functions, len(g.Functions))
	assert.Equal(t, g.Index.Spans(), decoded.Index.Spans())

	last := g.Functions[len(g.Functions)-1]
	fn, ok := decoded.Function("@" + last.Name)
	require.True(t, ok)
	assert.Equal(t, last.Span, fn.Span)

	idx, ok := decoded.FunctionAt(last.Span.Start)
	require.True(t, ok)
	assert.Equal(t, len(g.Functions)-1, idx)

	assert.Error(t, json.Unmarshal([]byte(`{"functions": 3}`), &decoded))
}
