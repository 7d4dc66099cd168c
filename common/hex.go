package common

import (
	"crypto/rand"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// HexStrToBytes32 converts a hex string (with/without prefix 0x) to [32]byte
func HexStrToBytes32(hexStr string) [32]byte {
	var bytes32 [32]byte
	copy(bytes32[:], ethcommon.Hex2BytesFixed(Trim0xPrefix(hexStr), 32))
	return bytes32
}

// Bytes32ToHexStr converts [32]byte to a hex string with prefix 0x.
func Bytes32ToHexStr(b [32]byte) string {
	return Prepend0xPrefix(ethcommon.Bytes2Hex(b[:]))
}

// RandBytes32 generates [32]byte with random values. Used for the
// deposit-request nonce fixed at transaction creation.
func RandBytes32() [32]byte {
	var b [32]byte
	n, err := rand.Read(b[:])

	if err != nil {
		return [32]byte{}
	}
	if n != 32 {
		return [32]byte{}
	}

	return b
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "...". Used in log fields.
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}
