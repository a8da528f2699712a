package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_SetGet(t *testing.T) {
	c := NewLRUCache(2, time.Second)

	c.Set("a", []byte("1"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Expiration(t *testing.T) {
	c := NewLRUCache(2, 50*time.Millisecond)

	c.Set("a", []byte("1"))
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache(2, time.Second)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	c := NewLRUCache(2, time.Second)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", []byte("3"))

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestLRUCache_SetResetsTTL(t *testing.T) {
	c := NewLRUCache(2, 50*time.Millisecond)

	c.Set("a", []byte("1"))
	time.Sleep(30 * time.Millisecond)
	c.Set("a", []byte("2"))
	time.Sleep(30 * time.Millisecond)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}

func TestLRUCache_Sweep(t *testing.T) {
	c := NewLRUCache(4, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartJanitor(ctx)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	time.Sleep(60 * time.Millisecond)

	c.sweep()
	assert.Equal(t, 0, c.Size())
}
