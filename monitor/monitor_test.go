package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbtc-cafe/convert-go/bridge"
	"github.com/wbtc-cafe/convert-go/engine"
	"github.com/wbtc-cafe/convert-go/etherman"
	"github.com/wbtc-cafe/convert-go/txstore"
)

// sinkRecorder captures emitted events instead of dispatching them.
type sinkRecorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *sinkRecorder) Emit(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *sinkRecorder) all() []engine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Event{}, r.events...)
}

type fixture struct {
	store *txstore.Store
	eth   *etherman.Simulated
	sdk   *bridge.Simulated
	sink  *sinkRecorder
	mon   *Monitor
}

func newFixture() *fixture {
	f := &fixture{
		store: txstore.New("monitor-test-owner"),
		eth:   etherman.NewSimulated(),
		sdk:   bridge.NewSimulated("gateway"),
		sink:  &sinkRecorder{},
	}
	f.mon = New(&Config{
		Interval:       time.Hour,
		DestConfTarget: 1,
		BurnConfTarget: 13,
	}, f.store, f.eth, f.sdk, f.sink)
	return f
}

func (f *fixture) addTx(direction txstore.Direction, awaiting string, mutate func(*txstore.Transaction)) *txstore.Transaction {
	tx := &txstore.Transaction{
		ID:        uuid.NewString(),
		Direction: direction,
		Awaiting:  awaiting,
	}
	if mutate != nil {
		mutate(tx)
	}
	f.store.Add(context.Background(), tx)
	return tx
}

func TestMintPollCompletes(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToWrapped, txstore.AwaitDestConfirming, func(t *txstore.Transaction) {
		t.DestTxHash = "0xaaa"
	})
	f.eth.MineTx("0xaaa", true, 1)

	f.mon.Poll(context.Background())

	events := f.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventCompleted, events[0].Type)
	assert.Equal(t, tx.ID, events[0].TxID)

	latest, _ := f.store.Get(tx.ID)
	assert.Equal(t, int64(1), latest.DestTxConfs)
}

func TestMintPollRevert(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToWrapped, txstore.AwaitDestConfirming, func(t *txstore.Transaction) {
		t.DestTxHash = "0xbbb"
	})
	f.eth.MineTx("0xbbb", false, 1)

	f.mon.Poll(context.Background())

	events := f.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventReverted, events[0].Type)
	assert.Equal(t, tx.ID, events[0].TxID)
}

func TestMintPollMissingTx(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToWrapped, txstore.AwaitDestConfirming, func(t *txstore.Transaction) {
		t.DestTxHash = "0xccc"
	})

	f.mon.Poll(context.Background())

	events := f.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventErrored, events[0].Type)
	assert.Equal(t, tx.ID, events[0].TxID)
	assert.ErrorIs(t, events[0].Err, ErrDestTxNotFound)
}

func TestMintPollReportsMissingTxOnce(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToWrapped, txstore.AwaitDestConfirming, func(t *txstore.Transaction) {
		t.DestTxHash = "0xccc"
	})

	f.mon.Poll(context.Background())
	require.Len(t, f.sink.all(), 1)

	// a lookup failure is surfaced, not retried; once the error flag is
	// set further rounds leave the transaction alone
	_, err := f.store.WithLatest(context.Background(), tx.ID, func(t *txstore.Transaction) {
		t.Error = true
	})
	require.NoError(t, err)

	f.mon.Poll(context.Background())
	f.mon.Poll(context.Background())
	assert.Len(t, f.sink.all(), 1)
}

func TestMintPollSkipsOtherStates(t *testing.T) {
	f := newFixture()
	f.addTx(txstore.DirectionToWrapped, txstore.AwaitSourceConfirming, nil)
	f.addTx(txstore.DirectionToWrapped, txstore.AwaitNone, nil)

	f.mon.Poll(context.Background())
	assert.Empty(t, f.sink.all())
}

func TestBurnPollBelowTarget(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToNative, txstore.AwaitSourceConfirming, func(t *txstore.Transaction) {
		t.SourceTxHash = "0xddd"
	})
	f.eth.MineTx("0xddd", true, 5)

	f.mon.Poll(context.Background())

	assert.Empty(t, f.sink.all(), "below target must not emit")
	latest, _ := f.store.Get(tx.ID)
	assert.Equal(t, int64(5), latest.SourceTxConfs)

	// an unchanged head must not re-touch the record
	f.mon.Poll(context.Background())
	again, _ := f.store.Get(tx.ID)
	assert.Equal(t, latest.Updated, again.Updated)
}

func TestBurnPollAtTarget(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToNative, txstore.AwaitSourceConfirming, func(t *txstore.Transaction) {
		t.SourceTxHash = "0xeee"
	})
	f.eth.MineTx("0xeee", true, 13)

	f.mon.Poll(context.Background())

	events := f.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventDetected, events[0].Type)
	assert.Equal(t, tx.ID, events[0].TxID)

	latest, _ := f.store.Get(tx.ID)
	assert.Equal(t, int64(13), latest.SourceTxConfs)
}

func TestBurnPollRelease(t *testing.T) {
	f := newFixture()
	tx := f.addTx(txstore.DirectionToNative, txstore.AwaitBridgeSubmitted, func(t *txstore.Transaction) {
		t.SourceTxHash = "0xfff"
	})

	// still pending: nothing to report
	f.mon.Poll(context.Background())
	assert.Empty(t, f.sink.all())

	f.sdk.SetReleaseStatus("0xfff", bridge.ReleaseStatusDone)
	f.mon.Poll(context.Background())

	events := f.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventCompleted, events[0].Type)
	assert.Equal(t, tx.ID, events[0].TxID)
}
