package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(50000000), ToSats(0.5))
	assert.Equal(t, 0.5, FromSats(50000000))
	assert.Equal(t, int64(1), ToSats(0.00000001))
	assert.Equal(t, int64(0), ToSats(0))
}

func TestFloorZero(t *testing.T) {
	assert.Equal(t, 0.0, FloorZero(-0.25))
	assert.Equal(t, 0.0, FloorZero(0))
	assert.Equal(t, 0.25, FloorZero(0.25))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0.997500", FormatRate(0.9975))
	assert.Equal(t, "1.000000", FormatRate(0.9999996))
}

func TestIsValidBtcAddress(t *testing.T) {
	// genesis coinbase address
	assert.True(t, IsValidBtcAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", BtcParams("mainnet")))
	assert.False(t, IsValidBtcAddress("not-an-address", BtcParams("mainnet")))
	assert.False(t, IsValidBtcAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", BtcParams("testnet")))
}
