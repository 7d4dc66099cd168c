package txstore

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMemoryDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	return db
}

func TestSqliteBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	sqlDB := getMemoryDB(t)
	defer sqlDB.Close()

	backend, err := NewSqliteBackend(sqlDB)
	require.NoError(t, err)
	defer backend.Close()

	tx := testTx()
	require.NoError(t, backend.AddRecord(ctx, "owner", tx))

	// duplicate add is ignored
	dup := tx.Clone()
	dup.Amount = 99
	require.NoError(t, backend.AddRecord(ctx, "owner", dup))

	txs, err := backend.QueryByOwner(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 0.5, txs[0].Amount)

	tx.Awaiting = AwaitDestConfirming
	tx.DestTxHash = "0xabc"
	require.NoError(t, backend.UpdateRecord(ctx, "owner", tx))

	txs, err = backend.QueryByOwner(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, AwaitDestConfirming, txs[0].Awaiting)
	assert.Equal(t, "0xabc", txs[0].DestTxHash)

	// records are scoped per identity
	txs, err = backend.QueryByOwner(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, txs)

	require.NoError(t, backend.DeleteRecord(ctx, "owner", tx.ID))
	txs, err = backend.QueryByOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSqliteBackendUpdateMissing(t *testing.T) {
	ctx := context.Background()
	sqlDB := getMemoryDB(t)
	defer sqlDB.Close()

	backend, err := NewSqliteBackend(sqlDB)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.UpdateRecord(ctx, "owner", testTx())
	assert.Error(t, err)
}

func TestStoreLoadFromBackend(t *testing.T) {
	ctx := context.Background()
	sqlDB := getMemoryDB(t)
	defer sqlDB.Close()

	backend, err := NewSqliteBackend(sqlDB)
	require.NoError(t, err)

	s := New("owner", backend)
	tx := testTx()
	s.Add(ctx, tx)

	// a second store over the same backend sees the persisted record
	restored := New("owner", backend)
	require.NoError(t, restored.Load(ctx))
	got, ok := restored.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, tx.Amount, got.Amount)
	assert.Equal(t, tx.Awaiting, got.Awaiting)
}

func TestOwnerKeyDeterministic(t *testing.T) {
	k1 := OwnerKey("0xabc", []byte("sig"))
	k2 := OwnerKey("0xabc", []byte("sig"))
	k3 := OwnerKey("0xabc", []byte("other"))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
