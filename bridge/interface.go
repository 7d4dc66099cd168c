/*
Package bridge defines the narrow surface of the third-party minting and
burning network. The network itself is opaque; the lifecycle engine only
ever talks to these interfaces, and tests script a Simulated one.
*/
package bridge

import "context"

// ReleaseState is the network's view of a burn's downstream release.
type ReleaseState string

const (
	ReleaseStatusPending ReleaseState = "pending"
	ReleaseStatusDone    ReleaseState = "done"
)

// UTXO identifies a source-chain deposit outpoint. Hash and vout are
// only meaningful together.
type UTXO struct {
	TxHash        string
	VOut          int
	Confirmations int64
	AmountSats    int64
}

// DepositParams is everything the network needs to derive a one-time
// gateway address for a specific transaction. The nonce fixes the
// derivation, so reconstructing with persisted params after a restart
// yields the same address.
type DepositParams struct {
	Nonce               string
	AdapterAddress      string
	AmountSats          int64
	MinExchangeRateSats int64
	SlippageBps         int64
	DestAddress         string
	Sender              string
}

// Attestation is the network's proof that it observed a qualifying
// deposit and authorizes a mint on the destination chain.
type Attestation struct {
	AttestedAmountSats int64 // after the network's fixed fee
	UtxoAmountSats     int64 // what the user actually sent
	NonceHash          string
	Signature          []byte
	Raw                string
}

// DepositHandle is one constructed deposit request.
type DepositHandle interface {
	// GatewayAddress returns the one-time deposit address.
	GatewayAddress(ctx context.Context) (string, error)

	// WaitForDeposit watches the gateway for deposits and calls emit for
	// every observation, including repeated confirmation updates for the
	// same outpoint. It is long-lived: it blocks until ctx is cancelled
	// or the watch fails. A known outpoint narrows the watch after a
	// restart.
	WaitForDeposit(ctx context.Context, minConfs int64, known *UTXO, emit func(UTXO)) error

	// SubmitAttestation submits the deposit proof to the network and
	// blocks until the network returns its attestation. Safe to call
	// before the deposit is fully confirmed; the network begins
	// attesting early.
	SubmitAttestation(ctx context.Context, utxo UTXO) (*Attestation, error)
}

// SDK is the client of the bridge network.
type SDK interface {
	ConstructDeposit(ctx context.Context, params *DepositParams) (DepositHandle, error)

	// ReleaseStatus reports whether the network has released the native
	// funds for a burn identified by its source-chain transaction hash.
	ReleaseStatus(ctx context.Context, sourceTxHash string) (ReleaseState, error)
}
