package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract exercises the ledger.Store contract against a fresh,
// empty store from newStore for every subtest.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing ledger loads empty", func(t *testing.T) {
		store := newStore(t)
		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("append then load returns record last", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 3; i++ {
			before, err := store.LoadAll(ctx)
			require.NoError(t, err)

			rec := Record(i)
			require.NoError(t, store.Append(ctx, rec))

			after, err := store.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, after, len(before)+1)
			AssertRecordEqual(t, rec, after[len(after)-1])
		}
	})

	t.Run("remove last undoes append", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, Record(0)))
		require.NoError(t, store.Append(ctx, Record(1)))

		before, err := store.LoadAll(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Append(ctx, Record(2)))
		removed, err := store.RemoveLast(ctx)
		require.NoError(t, err)
		AssertRecordEqual(t, Record(2), removed)

		after, err := store.LoadAll(ctx)
		require.NoError(t, err)
		AssertRecordsEqual(t, before, after)
	})

	t.Run("remove last back to empty", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, Record(0)))

		_, err := store.RemoveLast(ctx)
		require.NoError(t, err)

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("remove last on empty ledger", func(t *testing.T) {
		store := newStore(t)
		_, err := store.RemoveLast(ctx)
		assert.ErrorIs(t, err, ledger.ErrEmptyLedger)

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("remove by id keeps others in order", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Append(ctx, Record(i)))
		}

		removed, err := store.Remove(ctx, Record(1).ID)
		require.NoError(t, err)
		AssertRecordEqual(t, Record(1), removed)

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		AssertRecordsEqual(t, []model.ExpenseRecord{Record(0), Record(2)}, records)

		_, err = store.Remove(ctx, "no-such-id")
		assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
	})

	t.Run("reset empties ledger", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, Record(0)))
		require.NoError(t, store.Reset(ctx))

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)

		require.NoError(t, store.Reset(ctx), "reset of an empty ledger is allowed")
	})
}
