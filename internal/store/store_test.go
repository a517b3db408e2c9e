package store_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlforge/internal/store"
)

func TestWriteOnce(t *testing.T) {
	s := store.New()
	k := store.Key{Field: 3, Indexes: []int{0, 2}}
	require.NoError(t, s.Set(k, store.Result{Value: "a"}))
	require.ErrorIs(t, s.Set(k, store.Result{Value: "b"}), store.ErrAlreadySet)

	r, ok := s.Get(store.Key{Field: 3, Indexes: []int{0, 2}})
	require.True(t, ok)
	require.Equal(t, "a", r.Value)
}

func TestKeysDistinguishIndexes(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set(store.Key{Field: 1}, store.Result{Value: 1}))
	require.NoError(t, s.Set(store.Key{Field: 1, Indexes: []int{0}}, store.Result{Value: 2}))
	require.NoError(t, s.Set(store.Key{Field: 1, Indexes: []int{0, 1}}, store.Result{Err: errors.New("boom")}))
	require.NoError(t, s.Set(store.Key{Field: 10}, store.Result{Value: 3}))
	require.Equal(t, 4, s.Len())

	r, ok := s.Get(store.Key{Field: 1, Indexes: []int{0, 1}})
	require.True(t, ok)
	require.EqualError(t, r.Err, "boom")

	_, ok = s.Get(store.Key{Field: 2})
	require.False(t, ok)
}

func TestConcurrentWriters(t *testing.T) {
	s := store.New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Set(store.Key{Field: 7}, store.Result{Value: i}) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
