package client

// State represents the connection lifecycle of the manager.
type State int32

const (
	// StateIdle means no connection has been requested yet.
	StateIdle State = iota

	// StateConnecting means the transport is being established.
	StateConnecting

	// StateConnected means the transport is live and frames flow.
	StateConnected

	// StateReconnecting means the transport dropped and a bounded retry
	// cycle is in progress.
	StateReconnecting

	// StateDisconnected means the manager was shut down explicitly or the
	// retry cycle was exhausted.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// StateChange is published on the state stream for every transition.
// Err is set when the transition was caused by a transport failure.
type StateChange struct {
	Old State
	New State
	Err error
}
