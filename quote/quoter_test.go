package quote

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbtc-cafe/convert-go/txstore"
)

var testSchedule = Schedule{
	LockSats:    35000, // 0.00035
	ReleaseSats: 35000,
	MintBps:     10, // 0.10%
	BurnBps:     10,
}

func TestQuoteMintFeeOrder(t *testing.T) {
	q := New(&RatioPool{Ratio: 1.0}, &StaticFeeService{Schedule: testSchedule})

	out, err := q.Quote(context.Background(), 1.0, txstore.DirectionToWrapped)
	require.NoError(t, err)

	// dynamic fee is taken off the pre-fee amount, then the fixed fee
	assert.InDelta(t, 0.001, out.BridgeFee, 1e-12)
	assert.InDelta(t, 0.00035, out.NetworkFee, 1e-12)
	assert.InDelta(t, 1.0-0.001-0.00035, out.NetProceeds, 1e-8)
	assert.InDelta(t, 1.0, out.ExchangeRate, 1e-8)
}

func TestQuoteBurnFeeOrder(t *testing.T) {
	q := New(&RatioPool{Ratio: 0.998}, &StaticFeeService{Schedule: testSchedule})

	out, err := q.Quote(context.Background(), 1.0, txstore.DirectionToNative)
	require.NoError(t, err)

	// for burns the pool swap runs first, fees come off the proceeds
	swapped := 0.998
	assert.InDelta(t, swapped*0.001, out.BridgeFee, 1e-8)
	assert.InDelta(t, 0.00035, out.NetworkFee, 1e-12)
	assert.InDelta(t, swapped-swapped*0.001-0.00035, out.NetProceeds, 1e-8)
	assert.InDelta(t, swapped, out.ExchangeRate, 1e-8)
}

func TestQuoteNeverNegative(t *testing.T) {
	q := New(&RatioPool{Ratio: 1.0}, &StaticFeeService{Schedule: testSchedule})

	// every amount at or below the combined fees nets exactly zero
	for _, amount := range []float64{0, 0.0000001, 0.0001, 0.0003, 0.00035} {
		out, err := q.Quote(context.Background(), amount, txstore.DirectionToWrapped)
		require.NoError(t, err, "amount %v", amount)
		assert.Equal(t, 0.0, out.NetProceeds, "amount %v", amount)
	}
}

func TestQuoteZeroProceedsSkipsPool(t *testing.T) {
	pool := &RatioPool{Err: errors.New("pool down")}
	q := New(pool, &StaticFeeService{Schedule: testSchedule})

	// when fees swallow the whole amount the pool is never consulted
	out, err := q.Quote(context.Background(), 0.0001, txstore.DirectionToWrapped)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.NetProceeds)
}

func TestQuoteScheduleUnavailable(t *testing.T) {
	q := New(&RatioPool{Ratio: 1.0}, &StaticFeeService{Err: errors.New("lightnode timeout")})

	_, err := q.Quote(context.Background(), 1.0, txstore.DirectionToWrapped)
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestQuotePoolUnavailable(t *testing.T) {
	q := New(&RatioPool{Err: errors.New("node down")}, &StaticFeeService{Schedule: testSchedule})

	_, err := q.Quote(context.Background(), 1.0, txstore.DirectionToWrapped)
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestFinalDepositRate(t *testing.T) {
	q := New(&RatioPool{Ratio: 0.997}, &StaticFeeService{Schedule: testSchedule})

	tx := &txstore.Transaction{
		ID:             "tx-1",
		BridgeResponse: &txstore.BridgeResponse{AttestedAmountSats: 50000000},
	}
	rate, err := q.FinalDepositRate(context.Background(), tx)
	require.NoError(t, err)
	assert.InDelta(t, 0.997, rate, 1e-6)
}

func TestFinalDepositRateRequiresAttestation(t *testing.T) {
	q := New(&RatioPool{Ratio: 1.0}, &StaticFeeService{Schedule: testSchedule})

	_, err := q.FinalDepositRate(context.Background(), &txstore.Transaction{ID: "tx-1"})
	assert.ErrorIs(t, err, ErrNoAttested)
}
