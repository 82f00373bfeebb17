package spaceflake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorSettings(t *testing.T) {
	assert.Equal(t, GeneratorSettings{BaseEpoch: EPOCH}, NewGeneratorSettings())

	s, err := NewGeneratorSettingsFor(5, 31)
	require.NoError(t, err)
	assert.Equal(t, GeneratorSettings{BaseEpoch: EPOCH, NodeID: 5, WorkerID: 31}, s)

	_, err = NewGeneratorSettingsFor(32, 0)
	assert.ErrorIs(t, err, ErrInvalidNodeID)
	_, err = NewGeneratorSettingsFor(0, 32)
	assert.ErrorIs(t, err, ErrInvalidWorkerID)

	s.Sequence = 4096
	assert.ErrorIs(t, s.Validate(), ErrInvalidSequence)

	assert.Equal(t, BulkGeneratorSettings{Amount: 10, BaseEpoch: EPOCH}, NewBulkGeneratorSettings(10))
}

func TestGenerateRandomSequence(t *testing.T) {
	for range 100 {
		sf, err := Generate(NewGeneratorSettings())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), sf.NodeID())
		assert.Equal(t, uint64(0), sf.WorkerID())
		assert.GreaterOrEqual(t, sf.Sequence(), uint64(1))
		assert.LessOrEqual(t, sf.Sequence(), MaxSequence)
	}
}

func TestGenerateWithSettings(t *testing.T) {
	settings := NewGeneratorSettings()
	settings.BaseEpoch = 1640995200000
	settings.NodeID = 5
	settings.WorkerID = 5
	settings.Sequence = 1337

	sf, err := Generate(settings, WithClock(newFakeClock(fakeNow)))
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{
		KeyID:       sf.ID(),
		KeyNodeID:   5,
		KeyWorkerID: 5,
		KeySequence: 1337,
		KeyTime:     fakeNow,
	}, sf.Decompose())
	assert.Equal(t, uint64(1640995200000), sf.BaseEpoch())
}

func TestGenerateRejectsInvalidSettings(t *testing.T) {
	settings := NewGeneratorSettings()
	settings.WorkerID = 4095
	_, err := Generate(settings)
	assert.ErrorIs(t, err, ErrInvalidWorkerID)

	settings = NewGeneratorSettings()
	settings.BaseEpoch = nowMilli() + uint64(time.Hour.Milliseconds())
	_, err = Generate(settings)
	var orderErr *TemporalOrderingError
	assert.ErrorAs(t, err, &orderErr)
}

func TestGenerateAt(t *testing.T) {
	sf, err := GenerateAt(NewGeneratorSettings(), 1532180612064)
	require.NoError(t, err)
	assert.Equal(t, uint64(1532180612064), sf.Time())

	_, err = GenerateAt(NewGeneratorSettings(), nowMilli()+uint64(time.Hour.Milliseconds()))
	assert.ErrorIs(t, err, ErrTargetInFuture)
}

func TestBulkGenerateEmpty(t *testing.T) {
	spaceflakes, err := BulkGenerate(NewBulkGeneratorSettings(0))
	require.NoError(t, err)
	assert.Empty(t, spaceflakes)
}

func TestBulkGenerateUsesBaseEpoch(t *testing.T) {
	settings := NewBulkGeneratorSettings(10)
	settings.BaseEpoch = 1640995200000

	spaceflakes, err := BulkGenerate(settings, WithClock(newFakeClock(fakeNow)))
	require.NoError(t, err)
	require.Len(t, spaceflakes, 10)
	for i, sf := range spaceflakes {
		assert.Equal(t, uint64(1640995200000), sf.BaseEpoch())
		assert.Equal(t, fakeNow, sf.Time())
		assert.Equal(t, bulkNodeID, sf.NodeID())
		assert.Equal(t, uint64(i+1), sf.Sequence())
	}
}

func TestBulkGenerateRebuildsNodeWhenWorkersRunOut(t *testing.T) {
	clock := newFakeClock(fakeNow)

	spaceflakes, err := BulkGenerate(NewBulkGeneratorSettings(idsPerPool+1), WithClock(clock))
	require.NoError(t, err)
	requireUnique(t, spaceflakes)

	assert.Equal(t, uint64(2), spaceflakes[idsPerWorker].WorkerID())
	assert.Equal(t, MaxWorkerID, spaceflakes[idsPerPool-1].WorkerID())

	// no pause is scheduled here, the pool only waits for the clock to move on
	last := spaceflakes[idsPerPool]
	assert.Equal(t, uint64(1), last.WorkerID())
	assert.Equal(t, bulkNodeID, last.NodeID())
	assert.Equal(t, fakeNow+1, last.Time())
	assert.Equal(t, []time.Duration{time.Millisecond}, clock.Sleeps())
}

func TestBulkGenerateFullNodeCycle(t *testing.T) {
	if testing.Short() {
		t.Skip("generates a full node cycle of ids")
	}
	clock := newFakeClock(fakeNow)

	spaceflakes, err := BulkGenerate(NewBulkGeneratorSettings(idsPerNodeCycle+1), WithClock(clock))
	require.NoError(t, err)
	requireUnique(t, spaceflakes)

	// 30 pool rebuilds waiting for the clock plus one scheduled pause
	assert.Len(t, clock.Sleeps(), int(MaxWorkerID))
	assert.Equal(t, fakeNow+uint64(MaxWorkerID), spaceflakes[idsPerNodeCycle].Time())
	assert.Equal(t, uint64(1), spaceflakes[idsPerNodeCycle].WorkerID())
}

func TestBulkGenerateUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("generates a million ids")
	}
	spaceflakes, err := BulkGenerate(NewBulkGeneratorSettings(1_000_000))
	require.NoError(t, err)
	assert.Len(t, spaceflakes, 1_000_000)
	requireUnique(t, spaceflakes)
}
