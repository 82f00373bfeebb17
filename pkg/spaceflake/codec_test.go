package spaceflake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	tests := []struct {
		name     string
		delta    uint64
		nodeID   uint64
		workerID uint64
		sequence uint64
	}{
		{"all zero", 0, 0, 0, 0},
		{"all max", MaxTime, MaxNodeID, MaxWorkerID, MaxSequence},
		{"mixed", 112110212064, 5, 7, 1337},
		{"time only", 1, 0, 0, 0},
		{"sequence only", 0, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Pack(tt.delta, tt.nodeID, tt.workerID, tt.sequence)
			require.NoError(t, err)

			assert.Equal(t, tt.delta, UnpackTime(id, 0))
			assert.Equal(t, tt.delta+EPOCH, UnpackTime(id, EPOCH))
			assert.Equal(t, tt.nodeID, UnpackNode(id))
			assert.Equal(t, tt.workerID, UnpackWorker(id))
			assert.Equal(t, tt.sequence, UnpackSequence(id))
			assert.Zero(t, id>>63, "reserved bit must stay clear")
		})
	}
}

func TestPackRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		delta    uint64
		nodeID   uint64
		workerID uint64
		sequence uint64
		want     error
	}{
		{"time", MaxTime + 1, 0, 0, 0, ErrInvalidTime},
		{"node", 0, 32, 0, 0, ErrInvalidNodeID},
		{"worker", 0, 0, 32, 0, ErrInvalidWorkerID},
		{"worker at the old 12 bit ceiling", 0, 0, 4095, 0, ErrInvalidWorkerID},
		{"sequence", 0, 0, 0, 4096, ErrInvalidSequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pack(tt.delta, tt.nodeID, tt.workerID, tt.sequence)
			assert.ErrorIs(t, err, tt.want)

			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestBitOffsets(t *testing.T) {
	assert.Equal(t, uint64(1)<<22, pack(1, 0, 0, 0))
	assert.Equal(t, uint64(1)<<17, pack(0, 1, 0, 0))
	assert.Equal(t, uint64(1)<<12, pack(0, 0, 1, 0))
	assert.Equal(t, uint64(1), pack(0, 0, 0, 1))

	assert.Equal(t, uint64(0x3E0000), NodeMask)
	assert.Equal(t, uint64(0x1F000), WorkerMask)
	assert.Equal(t, uint64(0xFFF), SequenceMask)

	// the masks tile the 63 usable bits without overlap
	assert.Zero(t, TimeMask&NodeMask|TimeMask&WorkerMask|TimeMask&SequenceMask|NodeMask&WorkerMask|NodeMask&SequenceMask|WorkerMask&SequenceMask)
	assert.Equal(t, uint64(1)<<63-1, TimeMask|NodeMask|WorkerMask|SequenceMask)
}

func TestToBinaryString(t *testing.T) {
	s := ToBinaryString(1)
	assert.Len(t, s, 64)
	assert.Equal(t, strings.Repeat("0", 63)+"1", s)

	assert.Equal(t, "0001000000101110001100110011101110110011000000000000100000111111", ToBinaryString(1165925685034747967))
	assert.Equal(t, "00101", padBinary(5, 5))
	assert.Equal(t, "111111", padBinary(63, 5), "wider values are not truncated")
}
