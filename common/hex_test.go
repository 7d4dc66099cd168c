package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShorten(t *testing.T) {
	hash := "0xf4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"
	assert.Equal(t, "0xf4184fc5...831e9e16", Shorten(hash, 8))
	assert.Equal(t, "0xabcd", Shorten("abcd", 8), "short strings pass through")
}

func TestIsValidBtcTxId(t *testing.T) {
	assert.True(t, IsValidBtcTxId("f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"))
	assert.False(t, IsValidBtcTxId("not-a-txid"))
	assert.False(t, IsValidBtcTxId("f4184f"))
}
