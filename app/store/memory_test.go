package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestGetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "p", "a", testValue{Name: "first", Count: 1}))

	var got testValue
	require.NoError(t, s.Get(ctx, "p", "a", &got))
	assert.Equal(t, testValue{Name: "first", Count: 1}, got)

	err := s.Get(ctx, "p", "missing", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "p", "a", testValue{Count: 1}))
	require.NoError(t, s.Put(ctx, "p", "a", testValue{Count: 2}))

	var got testValue
	require.NoError(t, s.Get(ctx, "p", "a", &got))
	assert.Equal(t, 2, got.Count)
}

func TestQueryOrderingAndPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, key := range []string{"chat#2", "chat#1", "chat#3", "memo#1"} {
		require.NoError(t, s.Put(ctx, "p", key, testValue{Name: key}))
	}

	records, err := s.Query(ctx, "p", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "chat#1", records[0].Sort)
	assert.Equal(t, "memo#1", records[3].Sort)

	records, err = s.Query(ctx, "p", QueryOptions{Prefix: "chat#", Descending: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "chat#3", records[0].Sort)
	assert.Equal(t, "chat#2", records[1].Sort)
}

func TestQueryEmptyPartition(t *testing.T) {
	s := NewMemoryStore()

	records, err := s.Query(context.Background(), "nope", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPutIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutIfAbsent(ctx, "p", "a", testValue{Count: 1}))

	err := s.PutIfAbsent(ctx, "p", "a", testValue{Count: 2})
	assert.ErrorIs(t, err, ErrConflict)

	var got testValue
	require.NoError(t, s.Get(ctx, "p", "a", &got))
	assert.Equal(t, 1, got.Count, "loser must not overwrite the stored value")
}

func TestPutIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const workers = 32

	var wg sync.WaitGroup
	winners := make(chan int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			if err := s.PutIfAbsent(ctx, "p", "lock", testValue{Count: n}); err == nil {
				winners <- n
			}
		}(i)
	}

	wg.Wait()
	close(winners)

	var winnerCount int
	for range winners {
		winnerCount++
	}

	assert.Equal(t, 1, winnerCount, "exactly one concurrent conditional put may succeed")
}

func TestUpdateAtomicIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "p", "counter", testValue{Count: 0}))

	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := s.Update(ctx, "p", "counter", func(raw json.RawMessage) (any, error) {
				var cur testValue
				if err := json.Unmarshal(raw, &cur); err != nil {
					return nil, err
				}

				cur.Count++

				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	var got testValue
	require.NoError(t, s.Get(ctx, "p", "counter", &got))
	assert.Equal(t, workers, got.Count)
}

func TestUpdateMissing(t *testing.T) {
	s := NewMemoryStore()

	err := s.Update(context.Background(), "p", "nope", func(raw json.RawMessage) (any, error) {
		return nil, fmt.Errorf("must not be called")
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "p", "a", testValue{}))
	require.NoError(t, s.Delete(ctx, "p", "a"))

	var got testValue
	assert.ErrorIs(t, s.Get(ctx, "p", "a", &got), ErrNotFound)

	// deleting a vacant key stays a no-op
	require.NoError(t, s.Delete(ctx, "p", "a"))
}

func TestDeleteIf(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "p", "a", testValue{Name: "keeper"}))

	matches := func(name string) func(raw json.RawMessage) (bool, error) {
		return func(raw json.RawMessage) (bool, error) {
			var v testValue
			if err := json.Unmarshal(raw, &v); err != nil {
				return false, err
			}

			return v.Name == name, nil
		}
	}

	// rejected delete leaves the record in place
	require.NoError(t, s.DeleteIf(ctx, "p", "a", matches("other")))

	var got testValue
	require.NoError(t, s.Get(ctx, "p", "a", &got))
	assert.Equal(t, "keeper", got.Name)

	// approved delete removes it
	require.NoError(t, s.DeleteIf(ctx, "p", "a", matches("keeper")))
	assert.ErrorIs(t, s.Get(ctx, "p", "a", &got), ErrNotFound)

	// vacant key is a no-op and never calls fn
	require.NoError(t, s.DeleteIf(ctx, "p", "a", func(json.RawMessage) (bool, error) {
		return false, fmt.Errorf("must not be called")
	}))
}

func TestDeleteIfPropagatesError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "p", "a", testValue{}))

	err := s.DeleteIf(ctx, "p", "a", func(json.RawMessage) (bool, error) {
		return true, fmt.Errorf("decode failed")
	})
	assert.Error(t, err)

	var got testValue
	require.NoError(t, s.Get(ctx, "p", "a", &got))
}
