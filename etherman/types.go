package etherman

// MintParams are the arguments of the adapter's mintThenSwap call. The
// committed minimum rate travels alongside the possibly shaved one so
// the contract can tell a user-approved rate change from slippage.
// Amounts are satoshis; the node wrapper widens them to uint256.
type MintParams struct {
	MinExchangeRateSats    int64
	NewMinExchangeRateSats int64
	SlippageBps            int64
	WbtcDestination        string // hex address on the destination chain
	AmountSats             int64
	NonceHash              string // 0x-prefixed 32-byte hex
	Signature              []byte
}

// BurnParams are the arguments of the adapter's swapThenBurn call.
type BurnParams struct {
	BtcDestination      string // native-chain address, encoded by the adapter
	AmountSats          int64
	MinSwapProceedsSats int64
}

// Receipt is the engine's view of a destination-chain receipt.
type Receipt struct {
	Succeeded   bool
	BlockNumber uint64
}

// TxLookup is the engine's view of a transaction-by-hash query.
type TxLookup struct {
	Found       bool
	Pending     bool
	BlockNumber uint64
}
