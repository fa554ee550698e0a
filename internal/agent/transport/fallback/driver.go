package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/wearsync/internal/agent/models"
	"github.com/dmitrijs2005/wearsync/internal/logging"
	"github.com/dmitrijs2005/wearsync/internal/packet"
)

// Status is the serialized reply to a status-channel read.
type Status struct {
	PendingCount    int             `json:"pendingCount"`
	TransferState   TransferState   `json:"transferState"`
	ConnectionState ConnectionState `json:"connectionState"`
}

// Driver owns the fallback connection and transfer state machines. A single
// goroutine consumes link events, so every transition is serialized;
// observers follow along through Subscribe without polling.
type Driver struct {
	link    Link
	log     logging.Logger
	maxUnit int

	mu          sync.Mutex
	conn        ConnectionState
	transfer    TransferState
	batch       []models.Record
	packets     []packet.Packet
	cursor      int
	advertising bool

	watchers map[chan StateChange]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewDriver builds a driver over the given link and starts its event loop.
// A non-positive maxUnit selects packet.DefaultMaxUnitSize. Call Close when
// done with the driver.
func NewDriver(link Link, maxUnit int, log logging.Logger) *Driver {
	if maxUnit <= 0 {
		maxUnit = packet.DefaultMaxUnitSize
	}
	d := &Driver{
		link:     link,
		log:      log,
		maxUnit:  maxUnit,
		conn:     Disconnected,
		transfer: Idle,
		watchers: make(map[chan StateChange]struct{}),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

// Close stops the event loop. The driver must not be used afterwards.
func (d *Driver) Close() {
	d.stopOnce.Do(func() { close(d.done) })
}

// StartAdvertising begins peer-discoverability and moves the connection
// state to Connecting. Failures of the underlying capability are reported
// synchronously; the state is left untouched on failure.
func (d *Driver) StartAdvertising() error {
	if err := d.link.StartAdvertising(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}

	d.mu.Lock()
	d.advertising = true
	d.setConnLocked(Connecting)
	d.mu.Unlock()
	return nil
}

// StopAdvertising is idempotent. It tears the session down: the connection
// returns to Disconnected and any transfer progress is discarded.
func (d *Driver) StopAdvertising() {
	d.link.StopAdvertising()

	d.mu.Lock()
	d.advertising = false
	d.packets = nil
	d.cursor = 0
	d.setConnLocked(Disconnected)
	d.setTransferLocked(Idle)
	d.mu.Unlock()
}

// Enqueue replaces the pending batch to transfer. Not additive: a new call
// supersedes any batch whose transfer has not started. A transfer already
// serving packets keeps its encoded sequence.
func (d *Driver) Enqueue(recs []models.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batch = recs
}

// State returns the current connection and transfer states.
func (d *Driver) State() (ConnectionState, TransferState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn, d.transfer
}

// Subscribe registers a watcher for state changes. The returned cancel
// function must be called to release the watcher. Slow watchers may miss
// intermediate transitions; combine with State to observe the latest.
func (d *Driver) Subscribe() (<-chan StateChange, func()) {
	ch := make(chan StateChange, 16)

	d.mu.Lock()
	d.watchers[ch] = struct{}{}
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		delete(d.watchers, ch)
		d.mu.Unlock()
	}
	return ch, cancel
}

// WaitUntil blocks until pred holds for the driver's state pair, the context
// is cancelled, or the driver is closed.
func (d *Driver) WaitUntil(ctx context.Context, pred func(ConnectionState, TransferState) bool) error {
	ch, cancel := d.Subscribe()
	defer cancel()

	if conn, tr := d.State(); pred(conn, tr) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return fmt.Errorf("fallback driver closed")
		case change := <-ch:
			if pred(change.Connection, change.Transfer) {
				return nil
			}
		}
	}
}

func (d *Driver) loop() {
	for {
		select {
		case <-d.done:
			return
		case ev, ok := <-d.link.Events():
			if !ok {
				return
			}
			d.handle(ev)
		}
	}
}

func (d *Driver) handle(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx := context.Background()

	switch e := ev.(type) {
	case PeerAttached:
		if d.conn == Connecting {
			d.setConnLocked(Connected)
			d.log.Info(ctx, "peer attached")
		}

	case PeerDetached:
		d.setConnLocked(Disconnected)
		if d.transfer == Preparing || d.transfer == Transferring {
			d.log.Warn(ctx, "peer detached mid-transfer, discarding progress")
			d.packets = nil
			d.cursor = 0
			d.setTransferLocked(Idle)
		}

	case ControlWrite:
		d.handleControlLocked(ctx, e)

	case DataRead:
		e.Reply <- d.nextChunkLocked(ctx)

	case StatusRead:
		status := Status{
			PendingCount:    len(d.batch),
			TransferState:   d.transfer,
			ConnectionState: d.conn,
		}
		reply, err := json.Marshal(status)
		if err != nil {
			d.log.Error(ctx, "failed to serialize status", "error", err)
			reply = nil
		}
		e.Reply <- reply
	}
}

func (d *Driver) handleControlLocked(ctx context.Context, e ControlWrite) {
	switch e.Command {
	case CommandStartSync:
		if d.transfer == Preparing || d.transfer == Transferring {
			e.Ack <- fmt.Errorf("transfer already in progress")
			return
		}
		if err := d.prepareLocked(); err != nil {
			d.log.Error(ctx, "failed to prepare transfer", "error", err)
			d.setTransferLocked(TransferError)
			e.Ack <- err
			return
		}
		d.log.Info(ctx, "transfer started", "records", len(d.batch), "packets", len(d.packets))
		d.setTransferLocked(Transferring)
		e.Ack <- nil

	case CommandReset:
		d.packets = nil
		d.cursor = 0
		d.setTransferLocked(Idle)
		e.Ack <- nil

	default:
		d.log.Warn(ctx, "unknown control command", "command", e.Command)
		e.Ack <- fmt.Errorf("unknown command: %q", e.Command)
	}
}

// prepareLocked encodes the pending batch into the packet sequence served
// by subsequent data reads. The batch rides one sequence; the packet kind
// field is informational, taken from the first record.
func (d *Driver) prepareLocked() error {
	d.setTransferLocked(Preparing)

	data, err := json.Marshal(d.batch)
	if err != nil {
		return fmt.Errorf("failed to serialize batch: %w", err)
	}

	kind := ""
	if len(d.batch) > 0 {
		kind = string(d.batch[0].Kind)
	}

	packets, err := packet.Encode(data, kind, d.maxUnit)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	d.packets = packets
	d.cursor = 0
	return nil
}

// nextChunkLocked serves the next packet in sequence order. A read past the
// last packet yields a zero-length terminal response and completes the
// transfer.
func (d *Driver) nextChunkLocked(ctx context.Context) []byte {
	if d.transfer != Transferring {
		return []byte{}
	}

	if d.cursor >= len(d.packets) {
		d.log.Info(ctx, "transfer completed", "packets", len(d.packets))
		d.setTransferLocked(Completed)
		return []byte{}
	}

	chunk, err := json.Marshal(d.packets[d.cursor])
	if err != nil {
		d.log.Error(ctx, "failed to serialize packet", "sequence", d.cursor, "error", err)
		d.setTransferLocked(TransferError)
		return []byte{}
	}
	d.cursor++
	return chunk
}

func (d *Driver) setConnLocked(s ConnectionState) {
	if d.conn == s {
		return
	}
	d.conn = s
	d.broadcastLocked()
}

func (d *Driver) setTransferLocked(s TransferState) {
	if d.transfer == s {
		return
	}
	d.transfer = s
	d.broadcastLocked()
}

func (d *Driver) broadcastLocked() {
	change := StateChange{Connection: d.conn, Transfer: d.transfer}
	for ch := range d.watchers {
		select {
		case ch <- change:
		default:
			// watcher is behind; it reconciles via State
		}
	}
}
