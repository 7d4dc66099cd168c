/*
Package quote computes exchange rates and fee breakdowns for prospective
and in-flight conversions. It is query-only: nothing here transitions
transaction state, and a failed external fetch is reported to the caller
as "cannot proceed" rather than retried.
*/
package quote

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/wbtc-cafe/convert-go/common"
	"github.com/wbtc-cafe/convert-go/txstore"
)

var (
	ErrNoSchedule = errors.New("fee schedule unavailable")
	ErrNoQuote    = errors.New("pool quote unavailable")
	ErrNoAttested = errors.New("transaction has no attested amount")
)

// Pool is a read-only liquidity-pool quote call: the amount of coin j
// returned for dx units of coin i, both in smallest units. Index 0 is
// the intermediate bridge-asset, index 1 the wrapped asset.
type Pool interface {
	Swap(ctx context.Context, i, j int, dxSats int64) (int64, error)
}

// FeeService fetches the bridge network's current fee schedule.
type FeeService interface {
	Fees(ctx context.Context) (*Schedule, error)
}

// Schedule is the network fee schedule: fixed fees in sats, dynamic
// fees in basis points of 10000.
type Schedule struct {
	LockSats    int64
	ReleaseSats int64
	MintBps     int64
	BurnBps     int64
}

// Quote is the user-facing fee breakdown for a candidate conversion.
type Quote struct {
	ExchangeRate float64
	BridgeFee    float64
	NetworkFee   float64
	NetProceeds  float64
}

type Quoter struct {
	pool Pool
	fees FeeService
}

func New(pool Pool, fees FeeService) *Quoter {
	return &Quoter{pool: pool, fees: fees}
}

// Quote prices a candidate conversion. Fee order is fixed: the dynamic
// fee applies to the pre-fee amount, then the fixed fee is subtracted,
// and the result is floored at zero before any pool exchange.
func (q *Quoter) Quote(ctx context.Context, amount float64, direction txstore.Direction) (*Quote, error) {
	schedule, err := q.fees.Fees(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrNoSchedule, err.Error())
	}

	if direction == txstore.DirectionToNative {
		return q.quoteBurn(ctx, amount, schedule)
	}
	return q.quoteMint(ctx, amount, schedule)
}

func (q *Quoter) quoteMint(ctx context.Context, amount float64, schedule *Schedule) (*Quote, error) {
	fixedFee := common.FromSats(schedule.LockSats)
	dynamicRate := float64(schedule.MintBps) / 10000

	bridgeFee := amount * dynamicRate
	afterMint := common.FloorZero(amount - bridgeFee - fixedFee)
	afterMintSats := common.ToSats(afterMint)

	out := &Quote{BridgeFee: bridgeFee, NetworkFee: fixedFee}
	if afterMintSats == 0 {
		return out, nil
	}

	dy, err := q.pool.Swap(ctx, 0, 1, afterMintSats)
	if err != nil {
		return nil, errors.Wrap(ErrNoQuote, err.Error())
	}
	swapped := common.FromSats(dy)
	out.ExchangeRate = swapped / afterMint
	out.NetProceeds = swapped
	return out, nil
}

func (q *Quoter) quoteBurn(ctx context.Context, amount float64, schedule *Schedule) (*Quote, error) {
	fixedFee := common.FromSats(schedule.ReleaseSats)
	dynamicRate := float64(schedule.BurnBps) / 10000

	dy, err := q.pool.Swap(ctx, 1, 0, common.ToSats(amount))
	if err != nil {
		return nil, errors.Wrap(ErrNoQuote, err.Error())
	}
	swapped := common.FromSats(dy)

	bridgeFee := swapped * dynamicRate
	return &Quote{
		ExchangeRate: swapped / amount,
		BridgeFee:    bridgeFee,
		NetworkFee:   fixedFee,
		NetProceeds:  common.FloorZero(swapped - bridgeFee - fixedFee),
	}, nil
}

// FinalDepositRate re-prices an attested deposit at submission time: the
// rate the swap would execute at right now, used against the user's
// committed minimum.
func (q *Quoter) FinalDepositRate(ctx context.Context, tx *txstore.Transaction) (float64, error) {
	if tx.BridgeResponse == nil || tx.BridgeResponse.AttestedAmountSats == 0 {
		return 0, ErrNoAttested
	}

	schedule, err := q.fees.Fees(ctx)
	if err != nil {
		return 0, errors.Wrap(ErrNoSchedule, err.Error())
	}
	dynamicRate := float64(schedule.MintBps) / 10000

	finalSats := int64(math.Round(float64(tx.BridgeResponse.AttestedAmountSats) * (1 - dynamicRate)))
	if finalSats <= 0 {
		return 0, nil
	}

	dy, err := q.pool.Swap(ctx, 0, 1, finalSats)
	if err != nil {
		return 0, errors.Wrap(ErrNoQuote, err.Error())
	}
	return float64(dy) / float64(finalSats), nil
}
