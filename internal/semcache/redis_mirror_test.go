package semcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMirror(t *testing.T) *RedisMirror {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	m, err := NewRedisMirror(mr.Addr(), "", 0, "test", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNewRedisMirrorFailsOnUnreachableAddr(t *testing.T) {
	_, err := NewRedisMirror("127.0.0.1:1", "", 0, "test", time.Hour)
	assert.Error(t, err)
}

func TestRedisMirrorMirrorThenWarmRestoresEntries(t *testing.T) {
	m := setupMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Mirror(ctx, "q1", []float32{1, 0, 0}, `{"answer":"r1"}`))
	require.NoError(t, m.Mirror(ctx, "q2", []float32{0, 1, 0}, `{"answer":"r2"}`))

	cache := New(10, time.Hour, 0.92)
	restored, err := m.Warm(ctx, cache)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	result, ok := cache.Get("q1", []float32{1, 0, 0})
	require.True(t, ok)
	assert.Equal(t, `{"answer":"r1"}`, result)
}

func TestRedisMirrorWarmOnEmptyPrefixRestoresNothing(t *testing.T) {
	m := setupMirror(t)
	cache := New(10, time.Hour, 0.92)
	restored, err := m.Warm(context.Background(), cache)
	require.NoError(t, err)
	assert.Equal(t, 0, restored)
}

func TestRedisMirrorNilReceiverIsNoop(t *testing.T) {
	var m *RedisMirror
	assert.NoError(t, m.Mirror(context.Background(), "q", nil, "r"))
	restored, err := m.Warm(context.Background(), New(10, time.Hour, 0.92))
	assert.NoError(t, err)
	assert.Equal(t, 0, restored)
	assert.NoError(t, m.Close())
}
