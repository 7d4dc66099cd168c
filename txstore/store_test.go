package txstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx() *Transaction {
	return &Transaction{
		ID:              uuid.NewString(),
		Direction:       DirectionToWrapped,
		SourceAsset:     "btc",
		DestAsset:       "wbtc",
		SourceNetwork:   "bitcoin",
		DestNetwork:     "ethereum",
		NetworkVersion:  "testnet",
		Amount:          0.5,
		DestAddress:     "0x00000000000000000000000000000000deadbeef",
		Awaiting:        AwaitGatewayPending,
		MinExchangeRate: 0.99,
		MaxSlippage:     0.005,
	}
}

func TestAddDuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New("owner")

	tx := testTx()
	tx.Amount = 0.5
	s.Add(ctx, tx)

	dup := tx.Clone()
	dup.Amount = 99
	s.Add(ctx, dup)

	got, ok := s.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, 0.5, got.Amount)
	assert.Len(t, s.List(), 1)
}

func TestUpdateMissingDoesNotInsert(t *testing.T) {
	ctx := context.Background()
	s := New("owner")

	s.Update(ctx, testTx())
	assert.Empty(t, s.List())
}

func TestGetAbsenceIsNotAnError(t *testing.T) {
	s := New("owner")
	tx, ok := s.Get("nope")
	assert.Nil(t, tx)
	assert.False(t, ok)
}

func TestWithLatestSeesNewestState(t *testing.T) {
	ctx := context.Background()
	s := New("owner")

	tx := testTx()
	s.Add(ctx, tx)

	// A stale closure captured tx before this update landed.
	s.Update(ctx, func() *Transaction {
		c := tx.Clone()
		c.SourceTxHash = "aa"
		c.SourceTxVOut = 0
		return c
	}())

	updated, err := s.WithLatest(ctx, tx.ID, func(latest *Transaction) {
		// must observe the hash written after the closure was captured
		assert.Equal(t, "aa", latest.SourceTxHash)
		latest.SourceTxConfs = 2
	})
	require.NoError(t, err)
	assert.Equal(t, "aa", updated.SourceTxHash)
	assert.Equal(t, int64(2), updated.SourceTxConfs)

	_, err = s.WithLatest(ctx, "missing", func(*Transaction) {})
	assert.Equal(t, ErrTxNotFound, err)
}

func TestListIsASnapshot(t *testing.T) {
	ctx := context.Background()
	s := New("owner")
	s.Add(ctx, testTx())

	snapshot := s.List()
	snapshot[0].Amount = 42

	got, _ := s.Get(snapshot[0].ID)
	assert.Equal(t, 0.5, got.Amount)
}

// failingBackend refuses deletes for one id, to exercise the partial
// remote-failure path of Reset.
type failingBackend struct {
	failID  string
	deleted []string
}

func (f *failingBackend) AddRecord(ctx context.Context, owner string, tx *Transaction) error {
	return nil
}
func (f *failingBackend) UpdateRecord(ctx context.Context, owner string, tx *Transaction) error {
	return nil
}
func (f *failingBackend) DeleteRecord(ctx context.Context, owner string, id string) error {
	if id == f.failID {
		return errors.New("remote unavailable")
	}
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *failingBackend) QueryByOwner(ctx context.Context, owner string) ([]*Transaction, error) {
	return nil, nil
}
func (f *failingBackend) Close() error { return nil }

func TestResetToleratesPartialRemoteFailure(t *testing.T) {
	ctx := context.Background()

	a, b := testTx(), testTx()
	backend := &failingBackend{failID: b.ID}
	s := New("owner", backend)
	s.Add(ctx, a)
	s.Add(ctx, b)

	err := s.Reset(ctx)
	assert.Error(t, err)
	// local state cleared regardless, remote keeps the undeleted item
	assert.Empty(t, s.List())
	assert.Equal(t, []string{a.ID}, backend.deleted)
}

func TestEncodeDecodeSchemaVersion(t *testing.T) {
	tx := testTx()
	data, err := Encode(tx)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, back.ID)

	_, err = Decode([]byte(`{"schemaVersion":99,"tx":{"id":"x"}}`))
	assert.Error(t, err)
}
