package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by Get and Update when no record exists
	// under the requested key.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by PutIfAbsent when a record already
	// exists under the requested key.
	ErrConflict = errors.New("record already exists")
)

// Record is a raw row of a partition, ordered by sort key.
type Record struct {
	Partition string
	Sort      string
	Value     json.RawMessage
}

func (r Record) Decode(out any) error {
	return json.Unmarshal(r.Value, out)
}

type QueryOptions struct {
	// Prefix restricts results to sort keys starting with it.
	Prefix string
	// Descending reverses the sort key order.
	Descending bool
	// Limit caps the number of returned records; 0 means no cap.
	Limit int
}

// Store is the key-value persistence contract the engine runs against:
// point reads, ordered partition queries, conditional puts and atomic
// read-modify-write updates. Per-key operations are linearizable in
// every implementation.
type Store interface {
	// Get decodes the record at (partition, sort) into out, or returns
	// ErrNotFound.
	Get(ctx context.Context, partition, sort string, out any) error

	// Query returns the records of a partition ordered by sort key.
	Query(ctx context.Context, partition string, opts QueryOptions) ([]Record, error)

	// Put unconditionally upserts a record.
	Put(ctx context.Context, partition, sort string, value any) error

	// PutIfAbsent inserts a record only when the key is vacant and
	// returns ErrConflict otherwise.
	PutIfAbsent(ctx context.Context, partition, sort string, value any) error

	// Update atomically rewrites one record: fn receives the current
	// raw value and returns the replacement. Returns ErrNotFound when
	// the key is vacant.
	Update(ctx context.Context, partition, sort string, fn func(raw json.RawMessage) (any, error)) error

	// Delete removes a record; deleting a vacant key is a no-op.
	Delete(ctx context.Context, partition, sort string) error

	// DeleteIf removes a record only when fn approves its current raw
	// value, atomically with the read. A vacant key is a no-op.
	DeleteIf(ctx context.Context, partition, sort string, fn func(raw json.RawMessage) (bool, error)) error
}
