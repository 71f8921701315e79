package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := New[int64](4)

	c.Set("a", 7, time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(7), v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestGetExpiredRemovesEntry(t *testing.T) {
	c := New[string](4)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", "v", 10*time.Second)

	now = now.Add(11 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestDeleteIdempotent(t *testing.T) {
	c := New[int](4)
	c.Set("k", 1, time.Minute)

	c.Delete("k")
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInsertionOrderEviction(t *testing.T) {
	c := New[int](2)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	// Touching "a" must not protect it; eviction is insertion-order, not LRU.
	_, _ = c.Get("a")

	c.Set("c", 3, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest-inserted key should be evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestSetExistingKeyMovesToBack(t *testing.T) {
	c := New[int](2)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("a", 10, time.Minute) // re-insert, no eviction
	c.Set("c", 3, time.Minute)  // evicts "b", now the oldest

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCleanup(t *testing.T) {
	c := New[int](8)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	now = now.Add(2 * time.Second)
	removed := c.Cleanup()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := New[int](8)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	c.Set("c", 3, time.Minute)
	_, ok := c.Get("c")
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](32)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			keys := []string{"a", "b", "c", "d"}
			for j := 0; j < 500; j++ {
				k := keys[(n+j)%len(keys)]
				switch j % 4 {
				case 0:
					c.Set(k, j, time.Minute)
				case 1:
					c.Get(k)
				case 2:
					c.Delete(k)
				default:
					c.Cleanup()
				}
			}
		}(i)
	}
	wg.Wait()
}
