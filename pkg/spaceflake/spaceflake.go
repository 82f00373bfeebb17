package spaceflake

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// EPOCH is the default base epoch, 2015-01-01T00:00:00Z in unix milliseconds.
const EPOCH uint64 = 1420070400000

// Decompose map keys.
const (
	KeyID       = "id"
	KeyNodeID   = "node_id"
	KeyWorkerID = "worker_id"
	KeySequence = "sequence"
	KeyTime     = "time"
)

var ErrReservedBit = errors.New("the reserved bit of a spaceflake must be zero")

// Spaceflake is a generated id together with the base epoch it was generated against.
type Spaceflake struct {
	id        uint64
	baseEpoch uint64
}

// New wraps a raw id. No validation is done beyond what the accessors need.
func New(id, baseEpoch uint64) Spaceflake {
	return Spaceflake{id: id, baseEpoch: baseEpoch}
}

func (s Spaceflake) ID() uint64 {
	return s.id
}

func (s Spaceflake) BaseEpoch() uint64 {
	return s.baseEpoch
}

// Time returns the unix millisecond time the id was generated at.
func (s Spaceflake) Time() uint64 {
	return UnpackTime(s.id, s.baseEpoch)
}

func (s Spaceflake) NodeID() uint64 {
	return UnpackNode(s.id)
}

func (s Spaceflake) WorkerID() uint64 {
	return UnpackWorker(s.id)
}

func (s Spaceflake) Sequence() uint64 {
	return UnpackSequence(s.id)
}

// String returns the decimal form of the id.
func (s Spaceflake) String() string {
	return strconv.FormatUint(s.id, 10)
}

// ToBinary returns the id as 64 binary digits.
func (s Spaceflake) ToBinary() string {
	return ToBinaryString(s.id)
}

func (s Spaceflake) Base36() string {
	return snowflake.ID(int64(s.id)).Base36()
}

func (s Spaceflake) Base58() string {
	return snowflake.ID(int64(s.id)).Base58()
}

func (s Spaceflake) Base64() string {
	return snowflake.ID(int64(s.id)).Base64()
}

// Decompose returns every part of the spaceflake keyed by KeyID, KeyNodeID, KeyWorkerID,
// KeySequence and KeyTime.
func (s Spaceflake) Decompose() map[string]uint64 {
	return map[string]uint64{
		KeyID:       s.id,
		KeyNodeID:   s.NodeID(),
		KeyWorkerID: s.WorkerID(),
		KeySequence: s.Sequence(),
		KeyTime:     s.Time(),
	}
}

// DecomposeBinary is Decompose with every part rendered as zero padded binary.
func (s Spaceflake) DecomposeBinary() map[string]string {
	return map[string]string{
		KeyID:       padBinary(s.id, IDBits),
		KeyNodeID:   padBinary(s.NodeID(), NodeBits),
		KeyWorkerID: padBinary(s.WorkerID(), WorkerBits),
		KeySequence: padBinary(s.Sequence(), SequenceBits),
		KeyTime:     padBinary(s.Time(), TimeBits),
	}
}

func ParseTime(id, baseEpoch uint64) uint64 {
	return UnpackTime(id, baseEpoch)
}

func ParseNodeID(id uint64) uint64 {
	return UnpackNode(id)
}

func ParseWorkerID(id uint64) uint64 {
	return UnpackWorker(id)
}

func ParseSequence(id uint64) uint64 {
	return UnpackSequence(id)
}

func Decompose(id, baseEpoch uint64) map[string]uint64 {
	return New(id, baseEpoch).Decompose()
}

func DecomposeBinary(id, baseEpoch uint64) map[string]string {
	return New(id, baseEpoch).DecomposeBinary()
}

// ParseBase58 reverses Spaceflake.Base58.
func ParseBase58(s string, baseEpoch uint64) (Spaceflake, error) {
	id, err := snowflake.ParseBase58([]byte(s))
	if err != nil {
		return Spaceflake{}, fmt.Errorf("parse base58 spaceflake %q: %w", s, err)
	}
	return fromSnowflakeID(id, baseEpoch)
}

// ParseBase36 reverses Spaceflake.Base36.
func ParseBase36(s string, baseEpoch uint64) (Spaceflake, error) {
	id, err := snowflake.ParseBase36(s)
	if err != nil {
		return Spaceflake{}, fmt.Errorf("parse base36 spaceflake %q: %w", s, err)
	}
	return fromSnowflakeID(id, baseEpoch)
}

func fromSnowflakeID(id snowflake.ID, baseEpoch uint64) (Spaceflake, error) {
	if id < 0 {
		return Spaceflake{}, ErrReservedBit
	}
	return New(uint64(id), baseEpoch), nil
}
