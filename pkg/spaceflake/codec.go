package spaceflake

import (
	"strconv"
	"strings"
)

const (
	// TimeBits is the width of the millisecond field. With the default epoch this lasts
	// until 2084.
	TimeBits = 41
	// NodeBits is the width of the node id field.
	NodeBits = 5
	// WorkerBits is the width of the worker id field.
	WorkerBits = 5
	// SequenceBits is the width of the sequence field.
	SequenceBits = 12

	WorkerShift = SequenceBits
	NodeShift   = WorkerShift + WorkerBits
	TimeShift   = NodeShift + NodeBits

	MaxTime     uint64 = (1 << TimeBits) - 1
	MaxNodeID   uint64 = (1 << NodeBits) - 1
	MaxWorkerID uint64 = (1 << WorkerBits) - 1
	MaxSequence uint64 = (1 << SequenceBits) - 1

	TimeMask     uint64 = MaxTime << TimeShift
	NodeMask     uint64 = MaxNodeID << NodeShift
	WorkerMask   uint64 = MaxWorkerID << WorkerShift
	SequenceMask uint64 = MaxSequence

	// IDBits is the width of the binary representation of an id.
	IDBits = 64
)

// Pack assembles an id from its four fields. Every field is checked against its width.
func Pack(delta, nodeID, workerID, sequence uint64) (uint64, error) {
	if delta > MaxTime {
		return 0, newConfigurationError(fieldTime, delta, MaxTime)
	}
	if err := validateNodeID(nodeID); err != nil {
		return 0, err
	}
	if err := validateWorkerID(workerID); err != nil {
		return 0, err
	}
	if sequence > MaxSequence {
		return 0, newConfigurationError(fieldSequence, sequence, MaxSequence)
	}
	return pack(delta, nodeID, workerID, sequence), nil
}

// pack does no range checks, callers validate first.
func pack(delta, nodeID, workerID, sequence uint64) uint64 {
	return delta<<TimeShift | nodeID<<NodeShift | workerID<<WorkerShift | sequence
}

// UnpackTime returns the unix millisecond time of id for the given base epoch.
func UnpackTime(id, baseEpoch uint64) uint64 {
	return (id&TimeMask)>>TimeShift + baseEpoch
}

func UnpackNode(id uint64) uint64 {
	return (id & NodeMask) >> NodeShift
}

func UnpackWorker(id uint64) uint64 {
	return (id & WorkerMask) >> WorkerShift
}

func UnpackSequence(id uint64) uint64 {
	return id & SequenceMask
}

// ToBinaryString renders id as 64 binary digits.
func ToBinaryString(id uint64) string {
	return padBinary(id, IDBits)
}

// padBinary left pads the binary form of v with zeroes to width. Values wider than
// width are returned in full.
func padBinary(v uint64, width int) string {
	s := strconv.FormatUint(v, 2)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
