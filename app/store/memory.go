package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps every partition as a sorted slice guarded by a
// single RWMutex. Suitable for tests and single instance deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string][]Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string][]Record),
	}
}

// locate returns the insertion index for sort within a partition and
// whether a record with that exact sort key is already there.
func locate(records []Record, sortKey string) (int, bool) {
	i := sort.Search(len(records), func(i int) bool {
		return records[i].Sort >= sortKey
	})

	return i, i < len(records) && records[i].Sort == sortKey
}

func (s *MemoryStore) Get(_ context.Context, partition, sortKey string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.partitions[partition]

	i, found := locate(records, sortKey)
	if !found {
		return ErrNotFound
	}

	return json.Unmarshal(records[i].Value, out)
}

func (s *MemoryStore) Query(_ context.Context, partition string, opts QueryOptions) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record

	for _, rec := range s.partitions[partition] {
		if opts.Prefix != "" && !strings.HasPrefix(rec.Sort, opts.Prefix) {
			continue
		}

		result = append(result, rec)
	}

	if opts.Descending {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

func (s *MemoryStore) Put(_ context.Context, partition, sortKey string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insert(partition, sortKey, data)

	return nil
}

func (s *MemoryStore) PutIfAbsent(_ context.Context, partition, sortKey string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := locate(s.partitions[partition], sortKey); found {
		return ErrConflict
	}

	s.insert(partition, sortKey, data)

	return nil
}

func (s *MemoryStore) Update(_ context.Context, partition, sortKey string, fn func(raw json.RawMessage) (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.partitions[partition]

	i, found := locate(records, sortKey)
	if !found {
		return ErrNotFound
	}

	next, err := fn(records[i].Value)
	if err != nil {
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	records[i].Value = data

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, partition, sortKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.partitions[partition]

	i, found := locate(records, sortKey)
	if !found {
		return nil
	}

	s.partitions[partition] = append(records[:i], records[i+1:]...)

	return nil
}

func (s *MemoryStore) DeleteIf(_ context.Context, partition, sortKey string, fn func(raw json.RawMessage) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.partitions[partition]

	i, found := locate(records, sortKey)
	if !found {
		return nil
	}

	ok, err := fn(records[i].Value)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	s.partitions[partition] = append(records[:i], records[i+1:]...)

	return nil
}

func (s *MemoryStore) insert(partition, sortKey string, data json.RawMessage) {
	records := s.partitions[partition]

	i, found := locate(records, sortKey)
	if found {
		records[i].Value = data
		return
	}

	records = append(records, Record{})
	copy(records[i+1:], records[i:])
	records[i] = Record{Partition: partition, Sort: sortKey, Value: data}

	s.partitions[partition] = records
}
