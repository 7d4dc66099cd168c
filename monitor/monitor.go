/*
Package monitor owns the polled half of the lifecycle: destination-chain
confirmations for mints and source-chain confirmations plus the network
release for burns. It never mutates awaiting tags itself; every
transition is handed back to the engine as an event so ordering stays
with the single dispatch loop.
*/
package monitor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/bridge"
	"github.com/wbtc-cafe/convert-go/engine"
	"github.com/wbtc-cafe/convert-go/etherman"
	"github.com/wbtc-cafe/convert-go/txstore"
)

const DefaultInterval = 5 * time.Second

var ErrDestTxNotFound = errors.New("destination transaction not found on chain")

// EventSink receives lifecycle events; the engine is the production
// implementation.
type EventSink interface {
	Emit(ev engine.Event)
}

type Config struct {
	// Interval between polling rounds
	Interval time.Duration

	// DestConfTarget is the confirmations needed on a mint's
	// destination tx
	DestConfTarget int64

	// BurnConfTarget is the confirmations needed on a burn's source tx
	// before the bridge network will release
	BurnConfTarget int64
}

type Monitor struct {
	cfg   *Config
	store *txstore.Store
	eth   etherman.Client
	sdk   bridge.SDK
	sink  EventSink
}

func New(cfg *Config, store *txstore.Store, eth etherman.Client, sdk bridge.SDK, sink EventSink) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Monitor{cfg: cfg, store: store, eth: eth, sdk: sdk, sink: sink}
}

// Start polls until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	logger.Info("starting confirmation monitor")
	defer logger.Info("stopping confirmation monitor")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll runs one scan over the store. Exported so a round can be driven
// directly without the ticker.
func (m *Monitor) Poll(ctx context.Context) {
	head, err := m.eth.BlockNumber(ctx)
	if err != nil {
		logger.Warnf("fetching head block: %v", err)
		return
	}

	for _, tx := range m.store.List() {
		if tx.Error {
			// already surfaced; a retry entry point clears the flag
			continue
		}
		switch {
		case tx.Direction == txstore.DirectionToWrapped && tx.Awaiting == txstore.AwaitDestConfirming:
			m.pollMint(ctx, tx, head)
		case tx.Direction == txstore.DirectionToNative && tx.Awaiting == txstore.AwaitSourceConfirming:
			m.pollBurnConfs(ctx, tx, head)
		case tx.Direction == txstore.DirectionToNative && tx.Awaiting == txstore.AwaitBridgeSubmitted:
			m.pollBurnRelease(ctx, tx)
		}
	}
}

// pollMint tracks a mint's destination tx. A tx the chain no longer
// knows is an error to surface, a reverted receipt clears the tx
// identity for resubmission, and a confirmed success completes the
// conversion.
func (m *Monitor) pollMint(ctx context.Context, tx *txstore.Transaction, head uint64) {
	if tx.DestTxHash == "" {
		return
	}

	lookup, err := m.eth.LookupTransaction(ctx, tx.DestTxHash)
	if err != nil {
		logger.WithField("id", tx.ID).Warnf("looking up destination tx: %v", err)
		return
	}
	if !lookup.Found {
		m.sink.Emit(engine.Event{Type: engine.EventErrored, TxID: tx.ID, Err: ErrDestTxNotFound})
		return
	}
	if lookup.Pending {
		return
	}

	receipt, err := m.eth.TransactionReceipt(ctx, tx.DestTxHash)
	if err != nil {
		logger.WithField("id", tx.ID).Warnf("fetching destination receipt: %v", err)
		return
	}
	if !receipt.Succeeded {
		m.sink.Emit(engine.Event{Type: engine.EventReverted, TxID: tx.ID})
		return
	}

	confs := etherman.Confirmations(lookup, head)
	if confs <= tx.DestTxConfs {
		return
	}
	if _, err := m.store.WithLatest(ctx, tx.ID, func(t *txstore.Transaction) {
		if confs > t.DestTxConfs {
			t.DestTxConfs = confs
		}
	}); err != nil {
		logger.WithField("id", tx.ID).Errorf("updating destination confs: %v", err)
		return
	}

	if confs >= m.cfg.DestConfTarget {
		m.sink.Emit(engine.Event{Type: engine.EventCompleted, TxID: tx.ID})
	}
}

// pollBurnConfs tracks a burn's source tx until the network's
// confirmation target. Confirmations only move forward; a lagging node
// never rolls the count back.
func (m *Monitor) pollBurnConfs(ctx context.Context, tx *txstore.Transaction, head uint64) {
	if !tx.HasSourceTx() {
		return
	}

	lookup, err := m.eth.LookupTransaction(ctx, tx.SourceTxHash)
	if err != nil {
		logger.WithField("id", tx.ID).Warnf("looking up burn tx: %v", err)
		return
	}
	if !lookup.Found {
		m.sink.Emit(engine.Event{Type: engine.EventErrored, TxID: tx.ID,
			Err: errors.New("burn transaction not found on chain")})
		return
	}
	if lookup.Pending {
		return
	}

	receipt, err := m.eth.TransactionReceipt(ctx, tx.SourceTxHash)
	if err != nil {
		logger.WithField("id", tx.ID).Warnf("fetching burn receipt: %v", err)
		return
	}
	if !receipt.Succeeded {
		m.sink.Emit(engine.Event{Type: engine.EventReverted, TxID: tx.ID})
		return
	}

	confs := etherman.Confirmations(lookup, head)
	if confs <= tx.SourceTxConfs {
		return
	}
	if _, err := m.store.WithLatest(ctx, tx.ID, func(t *txstore.Transaction) {
		if confs > t.SourceTxConfs {
			t.SourceTxConfs = confs
		}
	}); err != nil {
		logger.WithField("id", tx.ID).Errorf("updating burn confs: %v", err)
		return
	}

	if confs >= m.cfg.BurnConfTarget {
		m.sink.Emit(engine.Event{Type: engine.EventDetected, TxID: tx.ID})
	}
}

// pollBurnRelease asks the bridge network whether the native funds for
// a finalized burn have gone out.
func (m *Monitor) pollBurnRelease(ctx context.Context, tx *txstore.Transaction) {
	state, err := m.sdk.ReleaseStatus(ctx, tx.SourceTxHash)
	if err != nil {
		logger.WithField("id", tx.ID).Warnf("querying release status: %v", err)
		return
	}
	if state == bridge.ReleaseStatusDone {
		m.sink.Emit(engine.Event{Type: engine.EventCompleted, TxID: tx.ID})
	}
}
