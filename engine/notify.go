package engine

// NotificationType classifies the user-facing signals the engine emits.
// Notifications are advisory: dropping one never affects transaction
// state, which is why delivery is best-effort.
type NotificationType string

const (
	// NotifyGatewayReady carries the one-time deposit address.
	NotifyGatewayReady NotificationType = "gatewayReady"

	// NotifyReadyToClaim says the deposit is attested and confirmed; the
	// user can now complete the conversion.
	NotifyReadyToClaim NotificationType = "readyToClaim"

	// NotifyRateBelowMinimum says the current exchange rate has dropped
	// below the minimum committed at creation. Completion is halted
	// until the caller re-submits at the new rate or falls back to the
	// intermediate asset.
	NotifyRateBelowMinimum NotificationType = "rateBelowMinimum"

	// NotifyCompleted says the conversion converged.
	NotifyCompleted NotificationType = "completed"

	// NotifyReverted says the destination-chain swap reverted.
	NotifyReverted NotificationType = "reverted"

	// NotifyErrored says a step failed and needs attention.
	NotifyErrored NotificationType = "errored"
)

type Notification struct {
	Type NotificationType
	TxID string

	// Gateway is set for NotifyGatewayReady.
	Gateway string

	// Rate is the freshly computed exchange rate, set for
	// NotifyRateBelowMinimum.
	Rate float64

	// Err is set for NotifyErrored.
	Err error
}

// notify delivers best-effort: a full channel drops the notification
// rather than stalling the event loop.
func (e *Engine) notify(n Notification) {
	select {
	case e.notifications <- n:
	default:
	}
}

// Notifications is the stream of user-facing signals. The channel is
// buffered; slow consumers lose notifications, not state.
func (e *Engine) Notifications() <-chan Notification {
	return e.notifications
}
