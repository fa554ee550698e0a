package fallback

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wearsync/internal/agent/models"
	"github.com/dmitrijs2005/wearsync/internal/common"
	"github.com/dmitrijs2005/wearsync/internal/logging"
	"github.com/dmitrijs2005/wearsync/internal/packet"
)

type fakeLink struct {
	mu        sync.Mutex
	events    chan Event
	startErr  error
	stopCalls int
}

func newFakeLink() *fakeLink {
	return &fakeLink{events: make(chan Event, 16)}
}

func (f *fakeLink) StartAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startErr
}

func (f *fakeLink) StopAdvertising() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func (f *fakeLink) Events() <-chan Event { return f.events }

func (f *fakeLink) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// peer-side helpers driving the handshake over the fake link

func (f *fakeLink) attach() { f.events <- PeerAttached{} }
func (f *fakeLink) detach() { f.events <- PeerDetached{} }

func (f *fakeLink) writeControl(t *testing.T, cmd string) error {
	t.Helper()
	ack := make(chan error, 1)
	f.events <- ControlWrite{Command: cmd, Ack: ack}
	select {
	case err := <-ack:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control ack")
		return nil
	}
}

func (f *fakeLink) readData(t *testing.T) []byte {
	t.Helper()
	reply := make(chan []byte, 1)
	f.events <- DataRead{Reply: reply}
	select {
	case b := <-reply:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data reply")
		return nil
	}
}

func (f *fakeLink) readStatus(t *testing.T) Status {
	t.Helper()
	reply := make(chan []byte, 1)
	f.events <- StatusRead{Reply: reply}
	select {
	case b := <-reply:
		var s Status
		require.NoError(t, json.Unmarshal(b, &s))
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status reply")
		return Status{}
	}
}

func newTestDriver(t *testing.T, link *fakeLink, maxUnit int) *Driver {
	t.Helper()
	d := NewDriver(link, maxUnit, logging.NewDiscardLogger())
	t.Cleanup(d.Close)
	return d
}

func testBatch(n int) []models.Record {
	recs := make([]models.Record, n)
	for i := range recs {
		recs[i] = models.Record{
			ID:        string(rune('a' + i)),
			Timestamp: int64(i * 1000),
			Kind:      models.KindHeartRate,
			Payload:   map[string]any{"bpm": float64(60 + i)},
			Source:    "test",
		}
	}
	return recs
}

func waitState(t *testing.T, d *Driver, conn ConnectionState, tr TransferState) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.WaitUntil(ctx, func(c ConnectionState, x TransferState) bool {
		return c == conn && x == tr
	})
	require.NoError(t, err)
}

func TestDriver_FullHandshake(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 64)

	batch := testBatch(5)
	d.Enqueue(batch)

	require.NoError(t, d.StartAdvertising())
	conn, tr := d.State()
	assert.Equal(t, Connecting, conn)
	assert.Equal(t, Idle, tr)

	link.attach()
	waitState(t, d, Connected, Idle)

	require.NoError(t, link.writeControl(t, CommandStartSync))
	waitState(t, d, Connected, Transferring)

	// drain the data channel one read at a time
	var packets []packet.Packet
	for {
		chunk := link.readData(t)
		if len(chunk) == 0 {
			break
		}
		var p packet.Packet
		require.NoError(t, json.Unmarshal(chunk, &p))
		packets = append(packets, p)
	}

	waitState(t, d, Connected, Completed)

	// the peer reassembles the batch from the packet sequence
	require.NotEmpty(t, packets)
	for i, p := range packets {
		assert.Equal(t, i, p.Sequence)
		assert.Equal(t, len(packets), p.Total)
		assert.Equal(t, string(models.KindHeartRate), p.Kind)
	}

	data, err := packet.Decode(packets)
	require.NoError(t, err)

	var got []models.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, batch, got)

	d.StopAdvertising()
	conn, tr = d.State()
	assert.Equal(t, Disconnected, conn)
	assert.Equal(t, Idle, tr)
	assert.Equal(t, 1, link.stops())
}

func TestDriver_StartAdvertisingCapabilityUnavailable(t *testing.T) {
	link := newFakeLink()
	link.startErr = common.ErrCapabilityUnavailable
	d := newTestDriver(t, link, 0)

	err := d.StartAdvertising()
	require.ErrorIs(t, err, common.ErrCapabilityUnavailable)

	conn, tr := d.State()
	assert.Equal(t, Disconnected, conn)
	assert.Equal(t, Idle, tr)
}

func TestDriver_NoConnectedWithoutPeerAttach(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 0)

	require.NoError(t, d.StartAdvertising())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := d.WaitUntil(ctx, func(c ConnectionState, _ TransferState) bool { return c == Connected })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDriver_UnknownCommandRejected(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 0)

	require.NoError(t, d.StartAdvertising())
	link.attach()
	waitState(t, d, Connected, Idle)

	err := link.writeControl(t, "FLUSH_ALL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	_, tr := d.State()
	assert.Equal(t, Idle, tr)
}

func TestDriver_ResetDiscardsTransfer(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 32)
	d.Enqueue(testBatch(4))

	require.NoError(t, d.StartAdvertising())
	link.attach()
	require.NoError(t, link.writeControl(t, CommandStartSync))
	waitState(t, d, Connected, Transferring)

	// read a couple of packets, then reset mid-transfer
	require.NotEmpty(t, link.readData(t))
	require.NotEmpty(t, link.readData(t))

	require.NoError(t, link.writeControl(t, CommandReset))
	waitState(t, d, Connected, Idle)

	// data reads after a reset yield only the terminal response
	assert.Empty(t, link.readData(t))
}

func TestDriver_PeerDetachMidTransfer(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 32)
	d.Enqueue(testBatch(4))

	require.NoError(t, d.StartAdvertising())
	link.attach()
	require.NoError(t, link.writeControl(t, CommandStartSync))
	waitState(t, d, Connected, Transferring)

	ch, cancel := d.Subscribe()
	defer cancel()

	link.detach()
	waitState(t, d, Disconnected, Idle)

	// the transition is observable on the broadcast stream
	select {
	case change := <-ch:
		assert.Equal(t, Disconnected, change.Connection)
	case <-time.After(2 * time.Second):
		t.Fatal("no state change observed after detach")
	}
}

func TestDriver_StartSyncRestartsAfterCompleted(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 64)
	d.Enqueue(testBatch(2))

	require.NoError(t, d.StartAdvertising())
	link.attach()

	for round := 0; round < 2; round++ {
		require.NoError(t, link.writeControl(t, CommandStartSync))
		for len(link.readData(t)) > 0 {
		}
		waitState(t, d, Connected, Completed)
	}
}

func TestDriver_EnqueueReplacesBatch(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 1024)

	d.Enqueue(testBatch(5))
	d.Enqueue(testBatch(2))

	require.NoError(t, d.StartAdvertising())
	link.attach()
	require.NoError(t, link.writeControl(t, CommandStartSync))

	var payload []byte
	for {
		chunk := link.readData(t)
		if len(chunk) == 0 {
			break
		}
		var p packet.Packet
		require.NoError(t, json.Unmarshal(chunk, &p))
		payload = append(payload, p.Payload...)
	}

	var got []models.Record
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Len(t, got, 2)
}

func TestDriver_StatusQuery(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 0)
	d.Enqueue(testBatch(3))

	require.NoError(t, d.StartAdvertising())
	link.attach()
	waitState(t, d, Connected, Idle)

	status := link.readStatus(t)
	assert.Equal(t, 3, status.PendingCount)
	assert.Equal(t, Idle, status.TransferState)
	assert.Equal(t, Connected, status.ConnectionState)
}

func TestDriver_StopAdvertisingIdempotent(t *testing.T) {
	link := newFakeLink()
	d := newTestDriver(t, link, 0)

	d.StopAdvertising()
	d.StopAdvertising()
	assert.Equal(t, 2, link.stops())

	conn, tr := d.State()
	assert.Equal(t, Disconnected, conn)
	assert.Equal(t, Idle, tr)
}
