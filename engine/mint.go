package engine

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/bridge"
	"github.com/wbtc-cafe/convert-go/common"
	"github.com/wbtc-cafe/convert-go/txstore"
)

func (e *Engine) handleCreated(ev Event) {
	tx, ok := e.store.Get(ev.TxID)
	if !ok {
		logger.WithField("id", ev.TxID).Error("created event for unknown transaction")
		return
	}

	if tx.Direction == txstore.DirectionToNative {
		e.broadcastBurn(tx)
		return
	}
	e.constructDeposit(tx)
}

// constructDeposit asks the bridge network for the one-time gateway
// address. The nonce in the persisted params fixes the derivation, so
// re-running after a restart yields the same address.
func (e *Engine) constructDeposit(tx *txstore.Transaction) {
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
		gateway, err := handle.GatewayAddress(ctx)
		if err != nil {
			e.Emit(Event{Type: EventErrored, TxID: tx.ID, Err: err})
			return
		}

		e.setHandle(tx.ID, handle)
		e.Emit(Event{Type: EventInitialized, TxID: tx.ID, Gateway: gateway})
	}()
}

func (e *Engine) handleInitialized(ev Event) {
	tx, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		if t.Direction == txstore.DirectionToNative {
			t.SourceTxHash = ev.TxHash
			t.Awaiting = txstore.AwaitSourceConfirming
			return
		}
		t.GatewayAddress = ev.Gateway
		if t.Awaiting == txstore.AwaitGatewayPending {
			t.Awaiting = txstore.AwaitSourceDepositPending
		}
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("initialized: %v", err)
		return
	}

	if tx.Direction == txstore.DirectionToNative {
		// confirmation tracking is the burn poller's job from here
		return
	}

	e.notify(Notification{Type: NotifyGatewayReady, TxID: tx.ID, Gateway: tx.GatewayAddress})
	e.startDepositListener(tx)
}

// startDepositListener watches the gateway for the lifetime of the
// deposit phase. At most one listener runs per transaction; it is
// stopped once the deposit is accepted.
func (e *Engine) startDepositListener(tx *txstore.Transaction) {
	handle, ok := e.handle(tx.ID)
	if !ok {
		logger.WithField("id", tx.ID).Error("no deposit handle for listener")
		return
	}

	var known *bridge.UTXO
	if tx.HasSourceTx() {
		known = &bridge.UTXO{
			TxHash:        tx.SourceTxHash,
			VOut:          tx.SourceTxVOut,
			Confirmations: tx.SourceTxConfs,
			AmountSats:    common.ToSats(tx.SourceAmount),
		}
	}

	id := tx.ID
	e.listeners.Go(e.runCtx(), id, func(ctx context.Context) {
		err := handle.WaitForDeposit(ctx, e.cfg.SourceConfTarget, known, func(utxo bridge.UTXO) {
			u := utxo
			e.Emit(Event{Type: EventDeposited, TxID: id, UTXO: &u})
		})
		if err != nil && ctx.Err() == nil {
			e.Emit(Event{Type: EventErrored, TxID: id, Err: err})
		}
	})
}

func (e *Engine) handleDeposited(ev Event) {
	if ev.UTXO == nil {
		logger.WithField("id", ev.TxID).Error("deposited event without utxo")
		return
	}

	tx, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		t.SourceTxHash = ev.UTXO.TxHash
		t.SourceTxVOut = ev.UTXO.VOut
		if ev.UTXO.Confirmations > t.SourceTxConfs {
			t.SourceTxConfs = ev.UTXO.Confirmations
		}
		if ev.UTXO.AmountSats > 0 {
			t.SourceAmount = common.FromSats(ev.UTXO.AmountSats)
		}
		if t.Awaiting == txstore.AwaitSourceDepositPending {
			t.Awaiting = txstore.AwaitSourceConfirming
		}
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("deposited: %v", err)
		return
	}

	switch {
	case tx.Attested() && tx.SourceTxConfs >= e.cfg.SourceConfTarget:
		e.Emit(Event{Type: EventAccepted, TxID: tx.ID})
	case !tx.Attested():
		e.Emit(Event{Type: EventDetected, TxID: tx.ID})
	}
}

func (e *Engine) handleDetected(ev Event) {
	tx, ok := e.store.Get(ev.TxID)
	if !ok {
		logger.WithField("id", ev.TxID).Error("detected event for unknown transaction")
		return
	}

	if tx.Direction == txstore.DirectionToNative {
		e.submitBurnProof(tx)
		return
	}
	if ev.Attestation != nil {
		e.recordAttestation(ev.TxID, ev.Attestation)
		return
	}
	e.submitDepositProof(tx)
}

// recordAttestation persists the network's sign-off. Acceptance needs
// both the attestation and the confirmation target; whichever lands
// second triggers the accepted event.
func (e *Engine) recordAttestation(id string, att *bridge.Attestation) {
	tx, err := e.store.WithLatest(e.runCtx(), id, func(t *txstore.Transaction) {
		if t.BridgeResponse != nil {
			return
		}
		t.BridgeResponse = &txstore.BridgeResponse{
			AttestedAmountSats: att.AttestedAmountSats,
			UtxoAmountSats:     att.UtxoAmountSats,
			NonceHash:          att.NonceHash,
			Raw:                att.Raw,
		}
		t.BridgeSignature = append([]byte{}, att.Signature...)
	})
	if err != nil {
		logger.WithField("id", id).Errorf("recording attestation: %v", err)
		return
	}

	if tx.Attested() && tx.SourceTxConfs >= e.cfg.SourceConfTarget {
		e.Emit(Event{Type: EventAccepted, TxID: id})
	}
}

// submitDepositProof hands the observed outpoint to the bridge network
// and waits (off-loop) for its attestation. The network begins signing
// before the confirmation target; acceptance still waits for both.
func (e *Engine) submitDepositProof(tx *txstore.Transaction) {
	if tx.Attested() || !tx.HasSourceTx() {
		return
	}

	key := "attest:" + tx.ID
	if _, loaded := e.inflight.LoadOrStore(key, struct{}{}); loaded {
		return
	}

	handle, ok := e.handle(tx.ID)
	if !ok {
		e.inflight.Delete(key)
		logger.WithField("id", tx.ID).Error("no deposit handle for attestation")
		return
	}

	ctx := e.runCtx()
	if _, err := e.store.WithLatest(ctx, tx.ID, func(t *txstore.Transaction) {
		if t.Awaiting == txstore.AwaitSourceConfirming {
			t.Awaiting = txstore.AwaitBridgeSubmitted
		}
	}); err != nil {
		e.inflight.Delete(key)
		return
	}

	utxo := bridge.UTXO{
		TxHash:        tx.SourceTxHash,
		VOut:          tx.SourceTxVOut,
		Confirmations: tx.SourceTxConfs,
		AmountSats:    common.ToSats(tx.SourceAmount),
	}
	id := tx.ID
	go func() {
		att, err := handle.SubmitAttestation(ctx, utxo)
		if err != nil {
			// released so a later deposit observation can retry
			e.inflight.Delete(key)
			e.Emit(Event{Type: EventErrored, TxID: id, Err: err})
			return
		}
		e.Emit(Event{Type: EventDetected, TxID: id, Attestation: att})
	}()
}

func (e *Engine) handleAccepted(ev Event) {
	// the gateway watch has done its job
	e.listeners.Stop(ev.TxID)

	tx, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		t.Awaiting = txstore.AwaitDestSubmitPending
		t.Error = false
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("accepted: %v", err)
		return
	}

	e.notify(Notification{Type: NotifyReadyToClaim, TxID: tx.ID})
}

func (e *Engine) handleClaimed(ev Event) {
	_, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		if t.DestTxHash == ev.TxHash && t.Awaiting == txstore.AwaitDestConfirming {
			// already recorded at broadcast time; don't roll back confs
			// the poller may have counted since
			return
		}
		t.DestTxHash = ev.TxHash
		t.DestTxConfs = 0
		t.Awaiting = txstore.AwaitDestConfirming
		t.Error = false
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("claimed: %v", err)
	}
}

func (e *Engine) handleCompleted(ev Event) {
	e.listeners.Stop(ev.TxID)
	e.dropHandle(ev.TxID)

	_, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		t.Awaiting = txstore.AwaitNone
		t.Error = false
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("completed: %v", err)
		return
	}

	e.notify(Notification{Type: NotifyCompleted, TxID: ev.TxID})
}

// handleReverted deals with a destination-chain swap that executed but
// reverted. For a mint the destination tx identity is cleared so the
// attested deposit can be resubmitted; for a burn the wrapped funds
// were returned to the sender and the flow stops.
func (e *Engine) handleReverted(ev Event) {
	_, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		if t.Direction == txstore.DirectionToWrapped {
			t.Error = true
			t.DestTxHash = ""
			t.DestTxConfs = 0
			t.Awaiting = txstore.AwaitDestSubmitPending
			return
		}
		t.SwapReverted = true
		t.Error = true
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("reverted: %v", err)
		return
	}

	e.notify(Notification{Type: NotifyReverted, TxID: ev.TxID})
}

func (e *Engine) handleErrored(ev Event) {
	logger.WithField("id", ev.TxID).Errorf("transaction errored: %v", ev.Err)

	_, err := e.store.WithLatest(e.runCtx(), ev.TxID, func(t *txstore.Transaction) {
		t.Error = true
	})
	if err != nil {
		logger.WithField("id", ev.TxID).Errorf("errored: %v", err)
		return
	}

	e.notify(Notification{Type: NotifyErrored, TxID: ev.TxID, Err: ev.Err})
}

func depositParams(tx *txstore.Transaction) *bridge.DepositParams {
	p := tx.BridgeParams
	return &bridge.DepositParams{
		Nonce:               p.Nonce,
		AdapterAddress:      p.AdapterAddress,
		AmountSats:          common.ToSats(tx.Amount),
		MinExchangeRateSats: p.MinExchangeRateSats,
		SlippageBps:         p.SlippageBps,
		DestAddress:         p.DestAddress,
		Sender:              p.Sender,
	}
}
