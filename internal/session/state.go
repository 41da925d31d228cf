package session

// ConnectionState is the lifecycle state of the session channel.
// Transitions only ever follow Disconnected -> Connecting ->
// {Connected | Error} -> Disconnected -> ...
type ConnectionState int

const (
	// StateDisconnected means no channel is open.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the channel is live and Send transmits
	// directly.
	StateConnected

	// StateError means the transport reported a failure; the client is
	// about to evaluate reconnection.
	StateError
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
