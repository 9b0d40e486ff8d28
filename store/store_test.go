package store_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/simple-item-server/item"
	"github.com/stevemurr/simple-item-server/store"
)

func strPtr(s string) *string { return &s }

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("List empty", func(t *testing.T) {
		items, err := s.List()
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("Set and Get", func(t *testing.T) {
		it := item.Item{ID: "k1", Name: "hello", Description: strPtr("world")}
		require.NoError(t, s.Set("k1", it))

		got, ok, err := s.Get("k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, it, got)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, ok, err := s.Get("missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("absent description round trips as nil", func(t *testing.T) {
		require.NoError(t, s.Set("k2", item.Item{ID: "k2", Name: "second"}))
		got, ok, err := s.Get("k2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Nil(t, got.Description)
	})

	t.Run("empty description is kept", func(t *testing.T) {
		require.NoError(t, s.Set("k3", item.Item{ID: "k3", Name: "third", Description: strPtr("")}))
		got, _, err := s.Get("k3")
		require.NoError(t, err)
		require.NotNil(t, got.Description)
		assert.Equal(t, "", *got.Description)
	})

	t.Run("Set overwrites and keeps position", func(t *testing.T) {
		require.NoError(t, s.Set("k1", item.Item{ID: "k1", Name: "updated"}))
		got, _, err := s.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, "updated", got.Name)

		items, err := s.List()
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{"k1", "k2", "k3"}, ids(items))
	})

	t.Run("Has", func(t *testing.T) {
		ok, err := s.Has("k2")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Has("nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete existing", func(t *testing.T) {
		existed, err := s.Delete("k1")
		require.NoError(t, err)
		assert.True(t, existed)

		_, ok, err := s.Get("k1")
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := s.Len()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Delete missing", func(t *testing.T) {
		existed, err := s.Delete("nope")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("returned items are copies", func(t *testing.T) {
		got, _, err := s.Get("k3")
		require.NoError(t, err)
		*got.Description = "mutated"
		got.Name = "mutated"

		again, _, err := s.Get("k3")
		require.NoError(t, err)
		assert.Equal(t, "third", again.Name)
		assert.Equal(t, "", *again.Description)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, s.Clear())
		n, err := s.Len()
		require.NoError(t, err)
		assert.Zero(t, n)
		items, err := s.List()
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("concurrent Set", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("c%d", i)
				assert.NoError(t, s.Set(key, item.Item{ID: key, Name: key}))
			}(i)
		}
		wg.Wait()
		n, err := s.Len()
		require.NoError(t, err)
		assert.Equal(t, 50, n)
	})
}

func ids(items []item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	runStoreTests(t, s)
}

func TestSqliteStore(t *testing.T) {
	s, err := store.NewSqliteStore()
	require.NoError(t, err)
	defer s.Close()
	runStoreTests(t, s)
}

func TestSqliteStoresAreIsolated(t *testing.T) {
	a, err := store.NewSqliteStore()
	require.NoError(t, err)
	defer a.Close()
	b, err := store.NewSqliteStore()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Set("k", item.Item{ID: "k", Name: "a"}))
	ok, err := b.Has("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFactory(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite", ""} {
		t.Run(backend, func(t *testing.T) {
			s, err := store.New(backend)
			require.NoError(t, err)
			require.NotNil(t, s)
			n, err := s.Len()
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := store.New("redis")
		assert.Error(t, err)
	})
}
