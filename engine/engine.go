/*
Package engine drives the conversion lifecycle. Every external
observation (a gateway deposit, an attestation, a destination-chain
receipt) arrives as an Event on a single queue and is dispatched in
strict arrival order, so no two handlers ever race on the same
transaction. Handlers never block: anything that waits on the network
runs in its own goroutine and reports back by enqueuing a follow-up
event.
*/
package engine

import (
	"context"
	"math"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/bridge"
	"github.com/wbtc-cafe/convert-go/common"
	"github.com/wbtc-cafe/convert-go/etherman"
	"github.com/wbtc-cafe/convert-go/quote"
	"github.com/wbtc-cafe/convert-go/txstore"
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidDestAddress = errors.New("destination address is invalid")
	ErrNotClaimable       = errors.New("transaction is not awaiting destination submission")
	ErrMissingAttestation = errors.New("transaction has no attestation")
	ErrRateBelowMinimum   = errors.New("exchange rate fell below the committed minimum")
	ErrSubmissionInFlight = errors.New("destination submission already in flight")
	ErrNotCancelable      = errors.New("transaction already has a deposit and cannot be canceled")
)

type Engine struct {
	cfg    *Config
	store  *txstore.Store
	sdk    bridge.SDK
	eth    etherman.Client
	quoter *quote.Quoter

	events        chan Event
	notifications chan Notification

	mu      sync.Mutex
	ctx     context.Context
	handles map[string]bridge.DepositHandle

	// inflight dedupes external calls per transaction: at most one
	// gateway construction, attestation submission or destination
	// broadcast at a time.
	inflight sync.Map

	listeners *taskGroup
}

func New(cfg *Config, store *txstore.Store, sdk bridge.SDK, eth etherman.Client, quoter *quote.Quoter) *Engine {
	return &Engine{
		cfg:           cfg,
		store:         store,
		sdk:           sdk,
		eth:           eth,
		quoter:        quoter,
		ctx:           context.Background(),
		events:        make(chan Event, cfg.queueSize()),
		notifications: make(chan Notification, cfg.queueSize()),
		handles:       make(map[string]bridge.DepositHandle),
		listeners:     newTaskGroup(),
	}
}

// Start runs the event loop until ctx is cancelled. It must be running
// before any transaction can make progress.
func (e *Engine) Start(ctx context.Context) error {
	logger.WithField("network", e.cfg.NetworkVersion).Info("starting conversion engine")
	defer logger.Info("stopping conversion engine")

	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
	defer e.listeners.StopAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) dispatch(ev Event) {
	logger.WithFields(logger.Fields{"id": ev.TxID, "event": ev.Type}).Debug("dispatching")

	switch ev.Type {
	case EventRestored:
		e.handleRestored(ev)
	case EventCreated:
		e.handleCreated(ev)
	case EventInitialized:
		e.handleInitialized(ev)
	case EventDeposited:
		e.handleDeposited(ev)
	case EventDetected:
		e.handleDetected(ev)
	case EventAccepted:
		e.handleAccepted(ev)
	case EventClaimed:
		e.handleClaimed(ev)
	case EventCompleted:
		e.handleCompleted(ev)
	case EventReverted:
		e.handleReverted(ev)
	case EventErrored:
		e.handleErrored(ev)
	default:
		logger.WithField("event", ev.Type).Error("unknown event type")
	}
}

// Emit enqueues an event. Order of delivery is order of arrival.
func (e *Engine) Emit(ev Event) {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()

	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

// MintRequest asks for a native-to-wrapped conversion.
type MintRequest struct {
	Amount          float64
	DestAddress     string // destination-chain hex address receiving the wrapped asset
	MinExchangeRate float64
	MaxSlippage     float64
}

// BurnRequest asks for a wrapped-to-native conversion.
type BurnRequest struct {
	Amount          float64
	BtcAddress      string
	MinSwapProceeds float64
}

// InitiateMint creates and persists a mint transaction and sets the
// machine in motion. The returned snapshot is already in the store; the
// gateway address arrives later via a NotifyGatewayReady notification.
func (e *Engine) InitiateMint(ctx context.Context, req *MintRequest) (*txstore.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !ethcommon.IsHexAddress(req.DestAddress) {
		return nil, ErrInvalidDestAddress
	}

	tx := &txstore.Transaction{
		ID:              uuid.NewString(),
		Direction:       txstore.DirectionToWrapped,
		SourceAsset:     "btc",
		DestAsset:       "wbtc",
		SourceNetwork:   "bitcoin",
		DestNetwork:     "ethereum",
		NetworkVersion:  e.cfg.NetworkVersion,
		Amount:          req.Amount,
		DestAddress:     req.DestAddress,
		Awaiting:        txstore.AwaitGatewayPending,
		MinExchangeRate: req.MinExchangeRate,
		MaxSlippage:     req.MaxSlippage,
		BridgeParams: &txstore.BridgeParams{
			Nonce:               common.Bytes32ToHexStr(common.RandBytes32()),
			AdapterAddress:      e.cfg.AdapterAddress,
			MinExchangeRateSats: common.ToSats(req.MinExchangeRate),
			SlippageBps:         int64(math.Round(req.MaxSlippage * 10000)),
			DestAddress:         req.DestAddress,
			Sender:              e.cfg.Sender,
		},
	}

	e.store.Add(ctx, tx)
	e.Emit(Event{Type: EventCreated, TxID: tx.ID})

	out, _ := e.store.Get(tx.ID)
	return out, nil
}

// InitiateBurn creates and persists a burn transaction and broadcasts
// the destination-chain burn. Confirmation tracking is asynchronous.
func (e *Engine) InitiateBurn(ctx context.Context, req *BurnRequest) (*txstore.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !common.IsValidBtcAddress(req.BtcAddress, common.BtcParams(e.cfg.NetworkVersion)) {
		return nil, ErrInvalidDestAddress
	}

	tx := &txstore.Transaction{
		ID:              uuid.NewString(),
		Direction:       txstore.DirectionToNative,
		SourceAsset:     "wbtc",
		DestAsset:       "btc",
		SourceNetwork:   "ethereum",
		DestNetwork:     "bitcoin",
		NetworkVersion:  e.cfg.NetworkVersion,
		Amount:          req.Amount,
		DestAddress:     req.BtcAddress,
		Awaiting:        txstore.AwaitSourceDepositPending,
		MinSwapProceeds: req.MinSwapProceeds,
	}

	e.store.Add(ctx, tx)
	e.Emit(Event{Type: EventCreated, TxID: tx.ID})

	out, _ := e.store.Get(tx.ID)
	return out, nil
}

// CompleteMode selects how a rate drop at submission time is resolved.
type CompleteMode int

const (
	// CompleteAtCommittedRate refuses the submission if the live rate
	// is below the minimum committed at creation.
	CompleteAtCommittedRate CompleteMode = iota

	// CompleteAtNewRate re-commits the minimum to the live rate.
	CompleteAtNewRate

	// CompleteAsIntermediate keeps the committed minimum so the
	// on-chain swap falls through and the adapter pays out the
	// intermediate bridge asset instead of the wrapped one.
	CompleteAsIntermediate
)

// CompleteMint submits the attested deposit to the destination chain.
// If the current exchange rate has dropped below the minimum committed
// at creation, the submission is halted with ErrRateBelowMinimum; the
// caller then resolves the drift by re-submitting with
// CompleteAtNewRate or CompleteAsIntermediate.
func (e *Engine) CompleteMint(ctx context.Context, id string, mode CompleteMode) error {
	tx, ok := e.store.Get(id)
	if !ok {
		return txstore.ErrTxNotFound
	}
	if tx.Awaiting != txstore.AwaitDestSubmitPending {
		return ErrNotClaimable
	}
	if !tx.Attested() {
		return ErrMissingAttestation
	}

	rate, err := e.quoter.FinalDepositRate(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "pricing attested deposit")
	}
	if rate < tx.MinExchangeRate && mode == CompleteAtCommittedRate {
		e.notify(Notification{Type: NotifyRateBelowMinimum, TxID: id, Rate: rate})
		return ErrRateBelowMinimum
	}

	if _, loaded := e.inflight.LoadOrStore("mint:"+id, struct{}{}); loaded {
		return ErrSubmissionInFlight
	}
	defer e.inflight.Delete("mint:" + id)

	newMinRateSats := tx.BridgeParams.MinExchangeRateSats
	if mode == CompleteAtNewRate {
		// shave one sat under the live rate so rounding cannot push the
		// committed minimum above what the swap will actually clear
		newMinRateSats = common.ToSats(rate) - 1
	}

	txHash, err := e.eth.SubmitMintThenSwap(ctx, &etherman.MintParams{
		MinExchangeRateSats:    tx.BridgeParams.MinExchangeRateSats,
		NewMinExchangeRateSats: newMinRateSats,
		SlippageBps:            tx.BridgeParams.SlippageBps,
		WbtcDestination:        tx.DestAddress,
		AmountSats:             tx.BridgeResponse.UtxoAmountSats,
		NonceHash:              tx.BridgeResponse.NonceHash,
		Signature:              tx.BridgeSignature,
	})
	if err != nil {
		e.Emit(Event{Type: EventErrored, TxID: id, Err: err})
		return errors.Wrap(err, "broadcasting destination submission")
	}

	// persist the claim before the in-flight key is released, so a
	// caller retrying in the dispatch window sees destConfirming and is
	// refused instead of double-spending the attestation
	if _, uerr := e.store.WithLatest(ctx, id, func(t *txstore.Transaction) {
		t.ExchangeRateOnSubmit = rate
		t.DestTxHash = txHash
		t.DestTxConfs = 0
		t.Awaiting = txstore.AwaitDestConfirming
		t.Error = false
		if mode == CompleteAsIntermediate {
			// the swap is expected to fall through on-chain
			t.SwapReverted = true
		}
	}); uerr != nil {
		logger.WithField("id", id).Errorf("recording destination submission: %v", uerr)
	}

	logger.WithFields(logger.Fields{"id": id, "hash": common.Shorten(txHash, 8)}).
		Info("destination submission broadcast")
	e.Emit(Event{Type: EventClaimed, TxID: id, TxHash: txHash})
	return nil
}

// Cancel removes a transaction that has not yet received a deposit.
// Anything past that point has value in motion and must run to a
// terminal state instead.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	tx, ok := e.store.Get(id)
	if !ok {
		return txstore.ErrTxNotFound
	}
	if tx.HasSourceTx() {
		return ErrNotCancelable
	}
	switch tx.Awaiting {
	case txstore.AwaitGatewayPending, txstore.AwaitSourceDepositPending:
	default:
		return ErrNotCancelable
	}

	e.listeners.Stop(id)
	e.dropHandle(id)
	e.store.Remove(ctx, id)
	return nil
}

// StartMonitoring replays every non-terminal persisted transaction into
// the machine. Call after the store is loaded and the loop is running;
// repeated calls are safe, the listener group and in-flight guards
// dedupe resumed work.
func (e *Engine) StartMonitoring(ctx context.Context) {
	for _, tx := range e.store.List() {
		if tx.Terminal() {
			continue
		}
		e.Emit(Event{Type: EventRestored, TxID: tx.ID})
	}
}

func (e *Engine) runCtx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

func (e *Engine) handle(id string) (bridge.DepositHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[id]
	return h, ok
}

func (e *Engine) setHandle(id string, h bridge.DepositHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handles[id] = h
}

func (e *Engine) dropHandle(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handles, id)
}
