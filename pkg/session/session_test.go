package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/dirty"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func irText(callee string) string {
	return "#IR entry      : @main\n" +
		"subgraph attr:\n" +
		"subgraph @main(%para1_x) {\n" +
		"  %1(CNode_1) = S_Prim_Neg(%para1_x)\n" +
		"  %2(CNode_2) = call @" + callee + "(%1)\n" +
		"  Return(%2)\n" +
		"      : (<Tensor>, sequence_nodes)\n" +
		"}\n"
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	dir := t.TempDir()
	base := []Option{
		WithLogger(log.Nop()),
		WithTracker(dirty.New(dirty.WithCacheDir(dir), dirty.WithThreshold(10))),
		WithCachePath(filepath.Join(dir, "graphs.msgpack")),
	}
	return New(append(base, opts...)...)
}

func TestSyncParsesOnce(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	g, fresh, err := s.Sync(ctx, "a.ir", irText("helper"))
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, "main", g.Entry)
	assert.Equal(t, []string{"helper"}, g.Functions[0].Callees)

	again, fresh, err := s.Sync(ctx, "a.ir", irText("helper"))
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Same(t, g, again)
	assert.Equal(t, 1, s.Documents())
}

func TestSyncHonoursEditThreshold(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	first, _, err := s.Sync(ctx, "a.ir", irText("helper"))
	require.NoError(t, err)

	// "helper" -> "helpe2": one edited character stays under the threshold
	s.Edit("a.ir", 1)
	g, fresh, err := s.Sync(ctx, "a.ir", irText("helpe2"))
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Same(t, first, g)

	s.Edit("a.ir", 20)
	g, fresh, err = s.Sync(ctx, "a.ir", irText("other"))
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, []string{"other"}, g.Functions[0].Callees)
}

func TestSyncReloadedTextReparses(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	_, _, err := s.Sync(ctx, "a.ir", irText("helper"))
	require.NoError(t, err)

	g, fresh, err := s.Sync(ctx, "a.ir", irText("other"))
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, []string{"other"}, g.Functions[0].Callees)
}

func TestSyncUsesSnapshotCache(t *testing.T) {
	c := cache.New(cache.Options[*ir.Snapshot]{MaxSize: 4})
	s := newTestSession(t, WithCache(c))
	ctx := context.Background()

	_, _, err := s.Sync(ctx, "a.ir", irText("helper"))
	require.NoError(t, err)
	g, fresh, err := s.Sync(ctx, "b.ir", irText("helper"))
	require.NoError(t, err)

	assert.True(t, fresh)
	assert.Equal(t, []string{"helper"}, g.Functions[0].Callees)
	stats := s.CacheStats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, 1, stats.Length)

	idx, ok := g.FunctionAt(g.Functions[0].Span.Start)
	require.True(t, ok)
	assert.Zero(t, idx)
}

func TestSyncDropsBrokenSnapshot(t *testing.T) {
	c := cache.New(cache.Options[*ir.Snapshot]{})
	text := irText("helper")
	fn := ir.FunctionInfo{Name: "x", Span: ir.Span{Start: 0, End: 10}}
	c.Set(cache.Key(text), &ir.Snapshot{Entry: "main", Functions: []ir.FunctionInfo{fn, fn}})

	s := newTestSession(t, WithCache(c))
	g, fresh, err := s.Sync(context.Background(), "a.ir", text)
	require.NoError(t, err)
	assert.True(t, fresh)
	require.Len(t, g.Functions, 1)
	assert.Equal(t, "main", g.Functions[0].Name)
}

func TestSyncCancelled(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Sync(ctx, "a.ir", irText("helper"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNodesAndGraph(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Graph("a.ir")
	assert.ErrorIs(t, err, ErrUnknownDocument)
	_, err = s.Nodes("a.ir", "main")
	assert.ErrorIs(t, err, ErrUnknownDocument)

	_, _, err = s.Sync(context.Background(), "a.ir", irText("helper"))
	require.NoError(t, err)

	g, err := s.Graph("a.ir")
	require.NoError(t, err)
	assert.Equal(t, "main", g.Entry)

	set, err := s.Nodes("a.ir", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, set.Order)
	n, ok := set.Get("2")
	require.True(t, ok)
	assert.Equal(t, "call @helper", n.OperatorName)

	_, err = s.Nodes("a.ir", "missing")
	assert.ErrorIs(t, err, ir.ErrUnknownFunction)

	s.Close("a.ir")
	assert.Zero(t, s.Documents())
	_, err = s.Graph("a.ir")
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestConcurrentSync(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("doc%d.ir", i%4)
			_, _, err := s.Sync(ctx, id, irText(fmt.Sprintf("f%d", i%4)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, s.Documents())
	for i := 0; i < 4; i++ {
		g, err := s.Graph(fmt.Sprintf("doc%d.ir", i))
		require.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("f%d", i)}, g.Functions[0].Callees)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphs.msgpack")
	opts := func() []Option {
		return []Option{
			WithLogger(log.Nop()),
			WithTracker(dirty.New(dirty.WithCacheDir(dir))),
			WithCachePath(path),
		}
	}

	s := New(opts()...)
	_, _, err := s.Sync(context.Background(), "a.ir", irText("helper"))
	require.NoError(t, err)
	require.NoError(t, s.Save())
	assert.FileExists(t, path)
	assert.FileExists(t, filepath.Join(dir, dirty.DefaultCacheFile))

	restored := New(opts()...)
	require.NoError(t, restored.Load())
	_, _, err = restored.Sync(context.Background(), "a.ir", irText("helper"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), restored.CacheStats().HitCount)
}
