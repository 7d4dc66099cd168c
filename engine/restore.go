package engine

import (
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/txstore"
)

// handleRestored re-enters a persisted transaction into the live
// machine. The awaiting tag alone decides the re-entry point; the
// deposit-request nonce persisted at creation makes reconstruction
// land on the same gateway address, so no external side effect is
// duplicated.
func (e *Engine) handleRestored(ev Event) {
	tx, ok := e.store.Get(ev.TxID)
	if !ok {
		logger.WithField("id", ev.TxID).Error("restored event for unknown transaction")
		return
	}

	if tx.Direction == txstore.DirectionToNative {
		e.restoreBurn(tx)
		return
	}
	e.restoreMint(tx)
}

func (e *Engine) restoreMint(tx *txstore.Transaction) {
	switch tx.Awaiting {
	case txstore.AwaitGatewayPending:
		// setup never finished; run it again
		e.Emit(Event{Type: EventCreated, TxID: tx.ID})

	case txstore.AwaitSourceDepositPending, txstore.AwaitSourceConfirming, txstore.AwaitBridgeSubmitted:
		if tx.BridgeParams == nil {
			e.Emit(Event{Type: EventErrored, TxID: tx.ID,
				Err: errors.New("restored transaction has no deposit params")})
			return
		}
		// reconstruct the handle, then resume through initialized; the
		// listener re-emits the known outpoint, which replays the
		// deposit path (and the attestation, if still missing)
		e.reconstructDeposit(tx)

	case txstore.AwaitDestSubmitPending:
		e.Emit(Event{Type: EventAccepted, TxID: tx.ID})

	case txstore.AwaitDestConfirming:
		// the destination confirmation poller owns this state

	default:
		logger.WithFields(logger.Fields{"id": tx.ID, "awaiting": tx.Awaiting}).
			Error("restored transaction in unknown state")
	}
}

func (e *Engine) restoreBurn(tx *txstore.Transaction) {
	switch tx.Awaiting {
	case txstore.AwaitSourceDepositPending:
		// the broadcast outcome of the burn is unknown; resubmitting
		// could double-spend, so this needs a human
		e.Emit(Event{Type: EventErrored, TxID: tx.ID,
			Err: errors.New("burn interrupted before broadcast completed")})

	case txstore.AwaitSourceConfirming, txstore.AwaitBridgeSubmitted:
		// the burn poller owns these states

	default:
		logger.WithFields(logger.Fields{"id": tx.ID, "awaiting": tx.Awaiting}).
			Error("restored burn in unknown state")
	}
}

// reconstructDeposit rebuilds the deposit handle from persisted params
// after a restart and resumes via the initialized path.
func (e *Engine) reconstructDeposit(tx *txstore.Transaction) {
	key := "construct:" + tx.ID
	if _, loaded := e.inflight.LoadOrStore(key, struct{}{}); loaded {
		return
	}

	ctx := e.runCtx()
	go func() {
		defer e.inflight.Delete(key)

		handle, err := e.sdk.ConstructDeposit(ctx, depositParams(tx))
		if err != nil {
			e.Emit(Event{Type: EventErrored, TxID: tx.ID, Err: err})
			return
		}
		gateway := tx.GatewayAddress
		if gateway == "" {
			if gateway, err = handle.GatewayAddress(ctx); err != nil {
				e.Emit(Event{Type: EventErrored, TxID: tx.ID, Err: err})
				return
			}
		}

		e.setHandle(tx.ID, handle)
		e.Emit(Event{Type: EventInitialized, TxID: tx.ID, Gateway: gateway})
	}()
}
