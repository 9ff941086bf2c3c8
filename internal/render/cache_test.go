package render

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRenderer fakes the PDF step and records every distinct render.
type countingRenderer struct {
	calls int
}

func (r *countingRenderer) render(_ context.Context, html string) ([]byte, error) {
	r.calls++
	return []byte("pdf:" + html), nil
}

func TestGetOrRenderHitReturnsIdenticalBytes(t *testing.T) {
	cache := NewCache(25)
	renderer := &countingRenderer{}
	ctx := context.Background()

	first, hit, err := cache.GetOrRender(ctx, 1, "<html>resume</html>", renderer.render)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := cache.GetOrRender(ctx, 1, "<html>resume</html>", renderer.render)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, renderer.calls, "renderer must be invoked once for identical HTML")
}

func TestGetOrRenderScopedPerJob(t *testing.T) {
	cache := NewCache(25)
	renderer := &countingRenderer{}
	ctx := context.Background()

	_, _, err := cache.GetOrRender(ctx, 1, "<html>a</html>", renderer.render)
	require.NoError(t, err)
	_, hit, err := cache.GetOrRender(ctx, 2, "<html>a</html>", renderer.render)
	require.NoError(t, err)

	assert.False(t, hit, "jobs must not share cache entries")
	assert.Equal(t, 2, renderer.calls)
}

func TestEvictionDropsExactlyTheLRU(t *testing.T) {
	cache := NewCache(25)
	renderer := &countingRenderer{}
	ctx := context.Background()

	htmlFor := func(i int) string { return fmt.Sprintf("<html>%d</html>", i) }

	for i := 0; i < 25; i++ {
		_, _, err := cache.GetOrRender(ctx, 1, htmlFor(i), renderer.render)
		require.NoError(t, err)
	}
	require.Equal(t, 25, cache.Len(1))

	// Touch entry 0 so entry 1 becomes the least recently used.
	_, hit, err := cache.GetOrRender(ctx, 1, htmlFor(0), renderer.render)
	require.NoError(t, err)
	require.True(t, hit)

	// The 26th distinct entry evicts exactly entry 1.
	_, _, err = cache.GetOrRender(ctx, 1, htmlFor(25), renderer.render)
	require.NoError(t, err)

	assert.Equal(t, 25, cache.Len(1))
	assert.False(t, cache.Contains(1, htmlFor(1)), "LRU entry must be evicted")
	for _, i := range []int{0, 2, 3, 24, 25} {
		assert.True(t, cache.Contains(1, htmlFor(i)), "entry %d must survive", i)
	}
}

func TestRenderErrorIsNotCached(t *testing.T) {
	cache := NewCache(25)
	ctx := context.Background()

	boom := func(context.Context, string) ([]byte, error) {
		return nil, fmt.Errorf("browser crashed")
	}
	_, _, err := cache.GetOrRender(ctx, 1, "<html>x</html>", boom)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len(1))

	renderer := &countingRenderer{}
	_, hit, err := cache.GetOrRender(ctx, 1, "<html>x</html>", renderer.render)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, renderer.calls)
}

func TestDrop(t *testing.T) {
	cache := NewCache(25)
	renderer := &countingRenderer{}
	ctx := context.Background()

	_, _, err := cache.GetOrRender(ctx, 7, "<html>a</html>", renderer.render)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len(7))

	cache.Drop(7)
	assert.Equal(t, 0, cache.Len(7))
}
