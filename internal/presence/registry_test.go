package presence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	require.NoError(t, r.Add(ctx, 1, "a"))
	require.NoError(t, r.Add(ctx, 1, "b"))

	online, err := r.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, r.Remove(ctx, 1, "a"))
	online, _ = r.IsOnline(ctx, 1)
	assert.True(t, online, "second connection keeps the account online")

	require.NoError(t, r.Remove(ctx, 1, "b"))
	online, _ = r.IsOnline(ctx, 1)
	assert.False(t, online)

	require.NoError(t, r.Remove(ctx, 2, "missing"))
}

func TestMemoryRegistry_Online(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	_ = r.Add(ctx, 3, "x")

	got, err := r.Online(ctx, []int{3, 4})
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{3: true, 4: false}, got)
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			_ = r.Add(ctx, i%5, id)
			_, _ = r.IsOnline(ctx, i%5)
			_ = r.Remove(ctx, i%5, id)
		}(i)
	}
	wg.Wait()

	got, _ := r.Online(ctx, []int{0, 1, 2, 3, 4})
	for id, online := range got {
		assert.False(t, online, "user %d", id)
	}
}
