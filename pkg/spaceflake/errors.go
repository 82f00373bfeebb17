package spaceflake

import (
	"errors"
	"fmt"
)

const (
	fieldNodeID   = "node ID"
	fieldWorkerID = "worker ID"
	fieldSequence = "sequence"
	fieldTime     = "time"
)

// ConfigurationError reports a field that does not fit its bit range.
type ConfigurationError struct {
	Field string
	Value uint64
	Max   uint64
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s must be less than or equal to %d, got %d", e.Field, e.Max, e.Value)
}

// Is matches the field sentinels below, so errors.Is(err, ErrInvalidNodeID) works for
// any out of range node id.
func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	if !ok {
		return false
	}
	return t.Field == e.Field
}

func newConfigurationError(field string, value, max uint64) error {
	return &ConfigurationError{Field: field, Value: value, Max: max}
}

var (
	ErrInvalidNodeID   = &ConfigurationError{Field: fieldNodeID, Max: MaxNodeID}
	ErrInvalidWorkerID = &ConfigurationError{Field: fieldWorkerID, Max: MaxWorkerID}
	ErrInvalidSequence = &ConfigurationError{Field: fieldSequence, Max: MaxSequence}
	ErrInvalidTime     = &ConfigurationError{Field: fieldTime, Max: MaxTime}
)

// TemporalOrderingError is returned when the base epoch, the target time and the
// current time are not in order. Each failing condition has its own sentinel value.
type TemporalOrderingError struct {
	Msg string
}

func (e *TemporalOrderingError) Error() string {
	return e.Msg
}

var (
	ErrBaseEpochAfterTarget = &TemporalOrderingError{Msg: "base epoch must be less than or equal to target time"}
	ErrBaseEpochAfterNow    = &TemporalOrderingError{Msg: "base epoch must be less than or equal to current time"}
	ErrTargetInFuture       = &TemporalOrderingError{Msg: "current time must be greater than target time"}
)

var (
	// ErrClockDrift matches every ClockDriftError.
	ErrClockDrift = errors.New("clock moved backwards")

	// ErrSequenceExhausted is returned when GenerateAt is asked for more ids in one
	// millisecond than the sequence field can hold.
	ErrSequenceExhausted = errors.New("sequence exhausted for the target millisecond")
)

// ClockDriftError reports a backwards clock jump at or above the drift tolerance.
type ClockDriftError struct {
	// Drift is the jump in milliseconds.
	Drift uint64
}

func (e *ClockDriftError) Error() string {
	return fmt.Sprintf("clock moved backwards by %dms", e.Drift)
}

func (e *ClockDriftError) Unwrap() error {
	return ErrClockDrift
}

func validateNodeID(id uint64) error {
	if id > MaxNodeID {
		return newConfigurationError(fieldNodeID, id, MaxNodeID)
	}
	return nil
}

func validateWorkerID(id uint64) error {
	if id > MaxWorkerID {
		return newConfigurationError(fieldWorkerID, id, MaxWorkerID)
	}
	return nil
}

func validateSequence(seq uint64) error {
	if seq > MaxSequence {
		return newConfigurationError(fieldSequence, seq, MaxSequence)
	}
	return nil
}

// checkTemporalOrdering requires baseEpoch <= target <= now.
func checkTemporalOrdering(baseEpoch, target, now uint64) error {
	if baseEpoch > target {
		return ErrBaseEpochAfterTarget
	}
	if baseEpoch > now {
		return ErrBaseEpochAfterNow
	}
	if target > now {
		return ErrTargetInFuture
	}
	return nil
}
