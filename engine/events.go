package engine

import (
	"fmt"

	"github.com/wbtc-cafe/convert-go/bridge"
)

// EventType identifies a lifecycle transition. Events are dispatched in
// strict arrival order by the engine loop.
type EventType string

const (
	// EventRestored replays a persisted transaction into the live
	// machine after a restart.
	EventRestored EventType = "restored"

	// EventCreated fires once when a new transaction enters the store.
	EventCreated EventType = "created"

	// EventInitialized fires when the external side of setup is done: a
	// gateway address for mints, a broadcast source tx for burns.
	EventInitialized EventType = "initialized"

	// EventDeposited fires for every deposit observation on the gateway,
	// including repeated confirmation updates for the same outpoint.
	EventDeposited EventType = "deposited"

	// EventDetected fires when a deposit is ready to be proven to the
	// bridge network.
	EventDetected EventType = "detected"

	// EventAccepted fires when the network has attested the deposit and
	// the confirmation target is met.
	EventAccepted EventType = "accepted"

	// EventClaimed fires when the destination-chain transaction has been
	// broadcast.
	EventClaimed EventType = "claimed"

	// EventCompleted fires when the conversion has converged.
	EventCompleted EventType = "completed"

	// EventReverted fires when the destination-chain swap executed but
	// reverted on-chain.
	EventReverted EventType = "reverted"

	// EventErrored fires when a step failed in a way that needs user
	// attention before the flow can continue.
	EventErrored EventType = "errored"
)

// Event is one unit of work for the engine loop. Only the fields
// relevant to the type are set.
type Event struct {
	Type EventType
	TxID string

	Gateway     string
	UTXO        *bridge.UTXO
	Attestation *bridge.Attestation
	TxHash      string
	Err         error
}

func (e Event) String() string {
	return fmt.Sprintf("Event { type: %s, id: %s }", e.Type, e.TxID)
}
