package etherman

import "context"

// Client is the destination-chain surface the lifecycle engine and the
// confirmation pollers depend on. Etherman implements it against a real
// node; Simulated implements it in memory for tests.
type Client interface {
	// SubmitMintThenSwap broadcasts the adapter mint call and returns
	// the transaction hash once the node accepts the broadcast.
	SubmitMintThenSwap(ctx context.Context, params *MintParams) (string, error)

	// SubmitSwapThenBurn broadcasts the adapter burn call and returns
	// the transaction hash.
	SubmitSwapThenBurn(ctx context.Context, params *BurnParams) (string, error)

	// LookupTransaction fetches a transaction by hash. Absence is
	// reported through TxLookup.Found, not an error.
	LookupTransaction(ctx context.Context, txHash string) (*TxLookup, error)

	// TransactionReceipt fetches the receipt for a mined transaction.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// BlockNumber returns the current chain head height.
	BlockNumber(ctx context.Context) (uint64, error)
}

// Confirmations derives a confirmation count from a lookup and the
// current head: an unmined or future-block transaction counts as zero.
func Confirmations(lookup *TxLookup, head uint64) int64 {
	if lookup == nil || !lookup.Found || lookup.Pending || lookup.BlockNumber > head {
		return 0
	}
	return int64(head - lookup.BlockNumber)
}
