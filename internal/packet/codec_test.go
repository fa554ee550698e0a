package packet

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SplitsAndChecksums(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1200)

	packets, err := Encode(data, "HEART_RATE", 512)
	require.NoError(t, err)
	require.Len(t, packets, 3)

	for i, p := range packets {
		assert.Equal(t, i, p.Sequence)
		assert.Equal(t, 3, p.Total)
		assert.Equal(t, "HEART_RATE", p.Kind)
		assert.LessOrEqual(t, len(p.Payload), 512)
		assert.Len(t, p.Checksum, 32)
	}
	assert.Len(t, packets[2].Payload, 1200-2*512)
}

func TestEncode_InvalidMaxUnit(t *testing.T) {
	for _, m := range []int{0, -1} {
		_, err := Encode([]byte("abc"), "STEPS", m)
		require.Error(t, err)
	}
}

func TestEncode_EmptyInputYieldsSinglePacket(t *testing.T) {
	packets, err := Encode(nil, "STEPS", 512)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, 1, packets[0].Total)
	assert.Empty(t, packets[0].Payload)

	out, err := Decode(packets)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		maxUnit int
	}{
		{name: "smaller than unit", size: 100, maxUnit: 512},
		{name: "exact multiple", size: 1024, maxUnit: 512},
		{name: "one byte over", size: 513, maxUnit: 512},
		{name: "tiny unit", size: 1000, maxUnit: 7},
		{name: "single byte", size: 1, maxUnit: 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.size)
			for i := range data {
				data[i] = byte(i % 251)
			}

			packets, err := Encode(data, "WORKOUT", tt.maxUnit)
			require.NoError(t, err)

			out, err := Decode(packets)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	data := []byte("the same input always yields the same packets")
	a, err := Encode(data, "STEPS", 10)
	require.NoError(t, err)
	b, err := Encode(data, "STEPS", 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_UnsortedInput(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 200)
	packets, err := Encode(data, "STEPS", 100)
	require.NoError(t, err)

	// reverse order
	for i, j := 0, len(packets)-1; i < j; i, j = i+1, j-1 {
		packets[i], packets[j] = packets[j], packets[i]
	}

	out, err := Decode(packets)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecode_ChecksumMismatchIdentifiesSequence(t *testing.T) {
	data := bytes.Repeat([]byte("z"), 2000)
	packets, err := Encode(data, "SLEEP_SESSION", 512)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(packets), 4)

	// flip one byte in packet 2's payload
	corrupted := make([]byte, len(packets[2].Payload))
	copy(corrupted, packets[2].Payload)
	corrupted[0] ^= 0xFF
	packets[2].Payload = corrupted

	out, err := Decode(packets)
	assert.Nil(t, out)

	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Sequence)
}

func TestDecode_IncompleteSequence(t *testing.T) {
	data := bytes.Repeat([]byte("q"), 1500)
	packets, err := Encode(data, "DAILY_METRICS", 512)
	require.NoError(t, err)
	require.Len(t, packets, 3)

	_, err = Decode([]Packet{packets[0], packets[2]})

	var incomplete *IncompleteSequenceError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []int{1}, incomplete.Missing)
}

func TestDecode_InconsistentTotal(t *testing.T) {
	data := bytes.Repeat([]byte("q"), 600)
	packets, err := Encode(data, "STEPS", 512)
	require.NoError(t, err)
	require.Len(t, packets, 2)

	packets[1].Total = 5

	_, err = Decode(packets)

	var inconsistent *InconsistentTotalError
	require.ErrorAs(t, err, &inconsistent)
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
}

func TestPacket_JSONWireShape(t *testing.T) {
	packets, err := Encode([]byte("hello"), "STEPS", 512)
	require.NoError(t, err)

	b, err := json.Marshal(packets[0])
	require.NoError(t, err)

	var decoded Packet
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, packets[0], decoded)

	// field names are part of the wire contract
	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, k := range []string{"sequence", "total", "kind", "payload", "checksum"} {
		assert.Contains(t, raw, k)
	}
}
