package fallback

// ConnectionState tracks the advertised session with the peer.
//
// Disconnected → Connecting on advertising start, Connecting → Connected on
// peer attach, back to Disconnected on peer detach or explicit stop. There
// is no Connecting → Connected transition without a peer-attach event.
type ConnectionState string

const (
	Disconnected ConnectionState = "DISCONNECTED"
	Connecting   ConnectionState = "CONNECTING"
	Connected    ConnectionState = "CONNECTED"
)

// TransferState tracks one batch transfer over the data channel.
//
// Idle → Preparing → Transferring → {Completed | TransferError}, and any
// terminal state → Idle on reset. Preparing encodes the pending batch into
// packets; Transferring serves them one read-request at a time in increasing
// sequence order.
type TransferState string

const (
	Idle          TransferState = "IDLE"
	Preparing     TransferState = "PREPARING"
	Transferring  TransferState = "TRANSFERRING"
	Completed     TransferState = "COMPLETED"
	TransferError TransferState = "ERROR"
)

// StateChange is one observed transition of the driver's state pair,
// published on the broadcast stream.
type StateChange struct {
	Connection ConnectionState
	Transfer   TransferState
}
