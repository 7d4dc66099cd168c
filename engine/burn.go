package engine

import (
	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/common"
	"github.com/wbtc-cafe/convert-go/etherman"
	"github.com/wbtc-cafe/convert-go/txstore"
)

// broadcastBurn submits the swap-then-burn on the destination chain.
// The broadcast hash becomes the burn's source tx: the bridge network
// releases native funds against it once it is final.
func (e *Engine) broadcastBurn(tx *txstore.Transaction) {
	key := "burn:" + tx.ID
	if _, loaded := e.inflight.LoadOrStore(key, struct{}{}); loaded {
		return
	}

	ctx := e.runCtx()
	id := tx.ID
	go func() {
		defer e.inflight.Delete(key)

		txHash, err := e.eth.SubmitSwapThenBurn(ctx, &etherman.BurnParams{
			BtcDestination:      tx.DestAddress,
			AmountSats:          common.ToSats(tx.Amount),
			MinSwapProceedsSats: common.ToSats(tx.MinSwapProceeds),
		})
		if err != nil {
			e.Emit(Event{Type: EventErrored, TxID: id, Err: err})
			return
		}
		logger.WithFields(logger.Fields{"id": id, "hash": common.Shorten(txHash, 8)}).
			Info("burn broadcast")
		e.Emit(Event{Type: EventInitialized, TxID: id, TxHash: txHash})
	}()
}

// submitBurnProof marks the burn as handed over to the bridge network.
// The network picks burns up from the chain itself once the
// confirmation target is met; locally there is nothing to send, only a
// state to record. The release poller watches for the payout.
func (e *Engine) submitBurnProof(tx *txstore.Transaction) {
	if tx.Awaiting != txstore.AwaitSourceConfirming {
		return
	}

	_, err := e.store.WithLatest(e.runCtx(), tx.ID, func(t *txstore.Transaction) {
		if t.Awaiting == txstore.AwaitSourceConfirming {
			t.Awaiting = txstore.AwaitBridgeSubmitted
		}
	})
	if err != nil {
		logger.WithField("id", tx.ID).Errorf("burn proof: %v", err)
	}
}
