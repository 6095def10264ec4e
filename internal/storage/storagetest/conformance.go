// Package storagetest holds behaviour checks shared by every RecordStore.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/storage"
)

// Run exercises the RecordStore contract against s. Keys are prefixed so
// the checks can run against a shared server.
func Run(t *testing.T, s storage.RecordStore, prefix string) {
	t.Helper()
	ctx := context.Background()
	key := prefix + "ledger:alice"

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, prefix+"ledger:nobody")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, key, []byte(`{"subjects":{}}`)))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"subjects":{}}`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, key, []byte(`{"v":2}`)))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))
	})

	t.Run("partitions are isolated", func(t *testing.T) {
		other := prefix + "ledger:bob"
		require.NoError(t, s.Put(ctx, other, []byte(`{"v":"bob"}`)))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))
		require.NoError(t, s.Delete(ctx, other))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, key))
		_, err := s.Get(ctx, key)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, s.Delete(ctx, key), "deleting twice is fine")
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})
}
