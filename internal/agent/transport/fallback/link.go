// Package fallback drives the short-range point-to-point synchronization
// path. The underlying radio stack is an external capability the driver only
// starts, stops and observes; everything above it — the connection and
// transfer state machines, the packet handshake, the control and status
// channels — lives here.
package fallback

// Link abstracts the point-to-point radio capability. Implementations bridge
// a platform link layer (advertising, peer sessions, channel reads/writes)
// into discrete events consumed by the Driver.
type Link interface {
	// StartAdvertising begins peer-discoverability. It returns
	// common.ErrCapabilityUnavailable when the radio is disabled, or another
	// error when setup fails. It does not block.
	StartAdvertising() error

	// StopAdvertising is idempotent and always safe to call.
	StopAdvertising()

	// Events delivers link-layer events in arrival order. The channel is
	// closed when the link is torn down for good.
	Events() <-chan Event
}

// Event is a discrete link-layer event. Each event is handled as a pure
// transition from (state, event) to (new state, emitted response).
type Event interface {
	isEvent()
}

// PeerAttached signals that a peer connected to the advertised session.
type PeerAttached struct{}

// PeerDetached signals that the peer disconnected or the session dropped.
type PeerDetached struct{}

// DataRead is a peer read request on the data channel. The driver replies
// with the next serialized packet, or a zero-length terminal response once
// the batch is exhausted.
type DataRead struct {
	Reply chan<- []byte
}

// ControlWrite is a peer command on the control channel. The driver
// acknowledges with nil on success or an error for rejected commands.
type ControlWrite struct {
	Command string
	Ack     chan<- error
}

// StatusRead is a peer read request on the status channel. The driver
// replies with a small serialized status record.
type StatusRead struct {
	Reply chan<- []byte
}

func (PeerAttached) isEvent() {}
func (PeerDetached) isEvent() {}
func (DataRead) isEvent()     {}
func (ControlWrite) isEvent() {}
func (StatusRead) isEvent()   {}

// Control channel command tokens.
const (
	CommandStartSync = "START_SYNC"
	CommandReset     = "RESET"
)
