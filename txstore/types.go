package txstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is embedded in every persisted record so a future field
// rename has a migration path.
const SchemaVersion = 1

// Direction says which way value moves through the bridge.
type Direction string

const (
	DirectionToWrapped Direction = "toWrapped" // native coin in, wrapped coin out (mint)
	DirectionToNative  Direction = "toNative"  // wrapped coin in, native coin out (burn)
)

// Awaiting tags. The tag is the authoritative "what are we waiting for"
// field; the empty string denotes terminal success.
const (
	AwaitGatewayPending       = "gatewayPending"       // requesting a gateway deposit address
	AwaitSourceDepositPending = "sourceDepositPending" // gateway shown, no deposit seen yet
	AwaitSourceConfirming     = "sourceConfirming"     // deposit seen, below confirmation target
	AwaitBridgeSubmitted      = "bridgeSubmitted"      // proof submitted, waiting for attestation
	AwaitDestSubmitPending    = "destSubmitPending"    // attested, waiting for destination submission
	AwaitDestConfirming       = "destConfirming"       // destination tx broadcast, waiting for finality
	AwaitNone                 = ""                     // terminal
)

// BridgeParams is the opaque resume data returned when a deposit request
// is constructed. It is persisted so an interrupted flow can re-derive
// the exact same gateway address after a restart.
type BridgeParams struct {
	Nonce               string `json:"nonce"`
	AdapterAddress      string `json:"adapterAddress"`
	MinExchangeRateSats int64  `json:"minExchangeRateSats"`
	SlippageBps         int64  `json:"slippageBps"`
	DestAddress         string `json:"destAddress"`
	Sender              string `json:"sender"`
}

// BridgeResponse is the attestation artifact returned once the bridge
// network has observed a qualifying deposit. Once set it is never
// cleared; its presence is what prevents a duplicate bridge submission.
type BridgeResponse struct {
	AttestedAmountSats int64  `json:"attestedAmountSats"` // amount after the network's fixed fee
	UtxoAmountSats     int64  `json:"utxoAmountSats"`     // amount the user actually sent
	NonceHash          string `json:"nonceHash"`
	Raw                string `json:"raw,omitempty"`
}

// Transaction is one asset conversion request. It is created locally,
// persisted immediately and mutated in place by the lifecycle engine as
// external events arrive.
type Transaction struct {
	ID             string    `json:"id"`
	Direction      Direction `json:"direction"`
	SourceAsset    string    `json:"sourceAsset"`
	DestAsset      string    `json:"destAsset"`
	SourceNetwork  string    `json:"sourceNetwork"`
	DestNetwork    string    `json:"destNetwork"`
	NetworkVersion string    `json:"networkVersion"` // "mainnet" or "testnet"

	Amount       float64 `json:"amount"`       // requested, user-facing units
	SourceAmount float64 `json:"sourceAmount"` // observed on the source chain
	DestAddress  string  `json:"destAddress"`

	Awaiting string `json:"awaiting"`
	Error    bool   `json:"error"`

	SourceTxHash  string `json:"sourceTxHash"`
	SourceTxVOut  int    `json:"sourceTxVOut"`
	SourceTxConfs int64  `json:"sourceTxConfs"`
	DestTxHash    string `json:"destTxHash"`
	DestTxConfs   int64  `json:"destTxConfs"`

	MinExchangeRate      float64 `json:"minExchangeRate"`
	MaxSlippage          float64 `json:"maxSlippage"`
	MinSwapProceeds      float64 `json:"minSwapProceeds"`
	ExchangeRateOnSubmit float64 `json:"exchangeRateOnSubmit"`

	GatewayAddress  string          `json:"gatewayAddress,omitempty"`
	BridgeParams    *BridgeParams   `json:"bridgeParams,omitempty"`
	BridgeResponse  *BridgeResponse `json:"bridgeResponse,omitempty"`
	BridgeSignature []byte          `json:"bridgeSignature,omitempty"`

	SwapReverted bool `json:"swapReverted"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Terminal reports whether the transaction has converged: nothing is
// awaited and the last step did not fail.
func (t *Transaction) Terminal() bool {
	return t.Awaiting == AwaitNone && !t.Error
}

// HasSourceTx reports whether the source-chain outpoint identity is
// known. Hash and vout are only meaningful together.
func (t *Transaction) HasSourceTx() bool {
	return t.SourceTxHash != ""
}

// Attested reports whether the bridge network has already signed off on
// the deposit.
func (t *Transaction) Attested() bool {
	return t.BridgeResponse != nil && len(t.BridgeSignature) > 0
}

func (t *Transaction) Clone() *Transaction {
	clone := *t
	if t.BridgeParams != nil {
		p := *t.BridgeParams
		clone.BridgeParams = &p
	}
	if t.BridgeResponse != nil {
		r := *t.BridgeResponse
		clone.BridgeResponse = &r
	}
	if t.BridgeSignature != nil {
		clone.BridgeSignature = append([]byte{}, t.BridgeSignature...)
	}
	return &clone
}

func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction { id: %s, direction: %s, awaiting: %q, error: %v, amount: %v }",
		t.ID, t.Direction, t.Awaiting, t.Error, t.Amount)
}

// record is the persisted envelope: the serialized snapshot plus the
// explicit schema version.
type record struct {
	SchemaVersion int          `json:"schemaVersion"`
	Tx            *Transaction `json:"tx"`
}

// Encode serializes a transaction into its versioned persistence form.
func Encode(t *Transaction) ([]byte, error) {
	return json.Marshal(&record{SchemaVersion: SchemaVersion, Tx: t})
}

// Decode deserializes a persisted record. Records without a schema
// version are rejected rather than guessed at.
func Decode(data []byte) (*Transaction, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported record schema version %d", r.SchemaVersion)
	}
	if r.Tx == nil || r.Tx.ID == "" {
		return nil, fmt.Errorf("record has no transaction id")
	}
	return r.Tx, nil
}
