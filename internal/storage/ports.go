// Package storage persists serialized ledgers, one record per identity
// partition. The SQLite implementation lives here; memory and redis
// implementations are in subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// RecordStore is a simple keyed-record store.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
