package spaceflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeNow uint64 = 1700000000000

// fakeClock only moves when told to or when something sleeps on it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock(ms uint64) *fakeClock {
	return &fakeClock{now: time.UnixMilli(int64(ms))}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration{}, c.sleeps...)
}

func nowMilli() uint64 {
	return uint64(time.Now().UnixMilli())
}

func TestWorkerGenerate(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(3, 9, WithClock(clock))
	require.NoError(t, err)

	first, err := w.Generate()
	require.NoError(t, err)
	second, err := w.Generate()
	require.NoError(t, err)

	assert.Equal(t, fakeNow, first.Time())
	assert.Equal(t, uint64(3), first.NodeID())
	assert.Equal(t, uint64(9), first.WorkerID())
	assert.Equal(t, uint64(1), first.Sequence())
	assert.Equal(t, uint64(2), second.Sequence())
	assert.Equal(t, EPOCH, first.BaseEpoch())
	assert.Less(t, first.ID(), second.ID())
}

func TestNewWorkerValidation(t *testing.T) {
	_, err := NewWorker(32, 0)
	assert.ErrorIs(t, err, ErrInvalidNodeID)
	assert.EqualError(t, err, "node ID must be less than or equal to 31, got 32")

	_, err = NewWorker(0, 32)
	assert.ErrorIs(t, err, ErrInvalidWorkerID)

	_, err = NewWorker(MaxNodeID, MaxWorkerID)
	assert.NoError(t, err)
}

func TestWorkerGenerateAtKeepsTime(t *testing.T) {
	w, err := NewWorker(0, 1)
	require.NoError(t, err)

	sf, err := w.GenerateAt(1532180612064)
	require.NoError(t, err)
	assert.Equal(t, uint64(1532180612064), sf.Time())
}

func TestWorkerGenerateAtRejectsFuture(t *testing.T) {
	w, err := NewWorker(0, 1)
	require.NoError(t, err)

	_, err = w.GenerateAt(nowMilli() + uint64(time.Hour.Milliseconds()))
	assert.ErrorIs(t, err, ErrTargetInFuture)
	assert.ErrorContains(t, err, "current time must be greater than target time")
}

func TestWorkerTemporalOrdering(t *testing.T) {
	tests := []struct {
		name      string
		baseEpoch uint64
		at        uint64
		want      error
	}{
		{"base epoch after target", fakeNow - 10, fakeNow - 20, ErrBaseEpochAfterTarget},
		{"base epoch after now", fakeNow + 10, fakeNow + 20, ErrBaseEpochAfterNow},
		{"target after now", EPOCH, fakeNow + 5, ErrTargetInFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWorker(0, 0, WithClock(newFakeClock(fakeNow)), WithBaseEpoch(tt.baseEpoch))
			require.NoError(t, err)

			_, err = w.GenerateAt(tt.at)
			assert.ErrorIs(t, err, tt.want)

			var orderErr *TemporalOrderingError
			assert.ErrorAs(t, err, &orderErr)
		})
	}
}

func TestWorkerEpochInvariance(t *testing.T) {
	defaultEpoch, err := NewWorker(0, 1)
	require.NoError(t, err)
	customEpoch, err := NewWorker(0, 1, WithBaseEpoch(1640995200000))
	require.NoError(t, err)

	a, err := defaultEpoch.Generate()
	require.NoError(t, err)
	b, err := customEpoch.Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.ID()>>TimeShift, b.ID()>>TimeShift)
	assert.InDelta(t, a.Time(), b.Time(), 5)
}

func TestWorkerSequenceWraparound(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)

	for i := uint64(1); i <= MaxSequence; i++ {
		sf, err := w.Generate()
		require.NoError(t, err)
		require.Equal(t, i, sf.Sequence())
		require.Equal(t, fakeNow, sf.Time())
	}
	assert.Empty(t, clock.Sleeps())

	// the clock has not moved, so the wrapped counter waits for the next millisecond
	sf, err := w.Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sf.Sequence())
	assert.Equal(t, fakeNow+1, sf.Time())
	assert.Equal(t, []time.Duration{time.Millisecond}, clock.Sleeps())
}

func TestWorkerSequenceWraparoundAfterClockMoved(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)

	for range MaxSequence {
		_, err := w.Generate()
		require.NoError(t, err)
	}
	clock.Advance(time.Millisecond)

	sf, err := w.Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sf.Sequence())
	assert.Equal(t, fakeNow+1, sf.Time())
	assert.Empty(t, clock.Sleeps())
}

func TestWorkerGenerateAtSequenceExhausted(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)

	for range MaxSequence {
		_, err := w.GenerateAt(fakeNow - 100)
		require.NoError(t, err)
	}
	_, err = w.GenerateAt(fakeNow - 100)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestWorkerClockDrift(t *testing.T) {
	tests := []struct {
		name    string
		back    time.Duration
		wantErr bool
	}{
		{"small jump is waited out", 9 * time.Millisecond, false},
		{"jump at tolerance fails", 10 * time.Millisecond, true},
		{"large jump fails", 11 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(fakeNow)
			w, err := NewWorker(1, 1, WithClock(clock))
			require.NoError(t, err)

			_, err = w.Generate()
			require.NoError(t, err)

			clock.Advance(-tt.back)
			sf, err := w.Generate()
			if tt.wantErr {
				var driftErr *ClockDriftError
				require.ErrorAs(t, err, &driftErr)
				assert.Equal(t, uint64(tt.back.Milliseconds()), driftErr.Drift)
				assert.ErrorIs(t, err, ErrClockDrift)
				assert.Empty(t, clock.Sleeps())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []time.Duration{tt.back + time.Millisecond}, clock.Sleeps())
			assert.Equal(t, fakeNow+1, sf.Time())
		})
	}
}

func TestWorkerClockDriftWithWallClock(t *testing.T) {
	w, err := NewWorker(1, 1)
	require.NoError(t, err)
	now := nowMilli()
	_, err = w.GenerateAt(now)
	require.NoError(t, err)

	sf, err := w.GenerateAt(now - 9)
	require.NoError(t, err)
	assert.Greater(t, sf.Time(), now)

	w, err = NewWorker(1, 2)
	require.NoError(t, err)
	now = nowMilli()
	_, err = w.GenerateAt(now)
	require.NoError(t, err)

	_, err = w.GenerateAt(now - 11)
	assert.ErrorIs(t, err, ErrClockDrift)
	assert.ErrorContains(t, err, "11")
}

func TestWorkerDriftDetectionDisabled(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock), WithDriftDetection(false))
	require.NoError(t, err)

	_, err = w.Generate()
	require.NoError(t, err)
	clock.Advance(-50 * time.Millisecond)

	sf, err := w.Generate()
	require.NoError(t, err)
	assert.Equal(t, fakeNow-50, sf.Time())
	assert.Empty(t, clock.Sleeps())
}

func TestWorkerDriftTolerance(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock), WithDriftTolerance(100))
	require.NoError(t, err)

	_, err = w.Generate()
	require.NoError(t, err)
	clock.Advance(-50 * time.Millisecond)

	_, err = w.Generate()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{51 * time.Millisecond}, clock.Sleeps())
}

func TestWorkerSequenceOverride(t *testing.T) {
	w, err := NewWorker(5, 5, WithClock(newFakeClock(fakeNow)))
	require.NoError(t, err)

	sf, err := w.Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sf.Sequence())

	require.NoError(t, w.SetSequence(1337))
	sf, err = w.Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), sf.Sequence())

	// the counter kept advancing underneath the override
	require.NoError(t, w.SetSequence(0))
	sf, err = w.Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sf.Sequence())

	assert.ErrorIs(t, w.SetSequence(4096), ErrInvalidSequence)
}

func TestWorkerSetBaseEpoch(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)

	_, err = w.Generate()
	require.NoError(t, err)

	// a later epoch shrinks every delta, that must not read as clock drift
	w.SetBaseEpoch(1640995200000)
	sf, err := w.Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1640995200000), sf.BaseEpoch())
	assert.Equal(t, fakeNow, sf.Time())
}

func TestWorkerSetBaseEpochKeepsWrapGuard(t *testing.T) {
	tests := []struct {
		name      string
		baseEpoch uint64
	}{
		{"same epoch", EPOCH},
		{"other epoch", 1640995200000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(fakeNow)
			w, err := NewWorker(1, 1, WithClock(clock))
			require.NoError(t, err)

			spaceflakes := make([]Spaceflake, 0, MaxSequence+1)
			for range MaxSequence {
				sf, err := w.Generate()
				require.NoError(t, err)
				spaceflakes = append(spaceflakes, sf)
			}

			w.SetBaseEpoch(tt.baseEpoch)
			sf, err := w.Generate()
			require.NoError(t, err)
			spaceflakes = append(spaceflakes, New(sf.ID(), EPOCH))

			requireUnique(t, spaceflakes)
			assert.Equal(t, uint64(1), sf.Sequence())
			assert.Equal(t, fakeNow+1, sf.Time())
			assert.Equal(t, []time.Duration{time.Millisecond}, clock.Sleeps())
		})
	}
}

// gatedClock parks the first caller of Now right after it took its sample.
type gatedClock struct {
	*fakeClock
	once    sync.Once
	parked  chan struct{}
	release chan struct{}
}

func (c *gatedClock) Now() time.Time {
	now := c.fakeClock.Now()
	c.once.Do(func() {
		close(c.parked)
		<-c.release
	})
	return now
}

func TestWorkerStalledGenerateIsNotDrift(t *testing.T) {
	clock := &gatedClock{
		fakeClock: newFakeClock(fakeNow),
		parked:    make(chan struct{}),
		release:   make(chan struct{}),
	}
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)

	type result struct {
		sf  Spaceflake
		err error
	}
	stalled := make(chan result, 1)
	go func() {
		sf, err := w.Generate()
		stalled <- result{sf, err}
	}()
	<-clock.parked

	// the clock only moves forward while the first call is stalled
	clock.Advance(20 * time.Millisecond)
	later := make(chan result, 1)
	go func() {
		sf, err := w.Generate()
		later <- result{sf, err}
	}()
	time.Sleep(10 * time.Millisecond)
	close(clock.release)

	first, second := <-stalled, <-later
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.NotEqual(t, first.sf.ID(), second.sf.ID())
	assert.Equal(t, fakeNow, first.sf.Time())
	assert.Equal(t, fakeNow+20, second.sf.Time())
}

func TestWorkerLastTime(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)
	assert.Zero(t, w.LastTime())

	_, err = w.GenerateAt(1532180612064)
	require.NoError(t, err)
	assert.Equal(t, uint64(1532180612064), w.LastTime())

	_, err = w.Generate()
	require.NoError(t, err)
	assert.Equal(t, fakeNow, w.LastTime())
}

func TestWorkerConcurrentGenerate(t *testing.T) {
	w, err := NewWorker(2, 3)
	require.NoError(t, err)

	const goroutines = 8
	const perGoroutine = 20_000

	results := make([][]uint64, goroutines)
	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]uint64, 0, perGoroutine)
			for range perGoroutine {
				sf, err := w.Generate()
				if err != nil {
					t.Error(err)
					return
				}
				ids = append(ids, sf.ID())
			}
			results[g] = ids
		}()
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, goroutines*perGoroutine)
	for _, ids := range results {
		for _, id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %d", id)
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestWorkerBulkGenerateSleepsEveryFullCycle(t *testing.T) {
	clock := newFakeClock(fakeNow)
	w, err := NewWorker(1, 1, WithClock(clock))
	require.NoError(t, err)

	spaceflakes, err := w.BulkGenerate(2*4095 + 1)
	require.NoError(t, err)
	assert.Len(t, spaceflakes, 2*4095+1)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, clock.Sleeps())
	requireUnique(t, spaceflakes)

	assert.Equal(t, uint64(4095), spaceflakes[4094].Sequence())
	assert.Equal(t, uint64(1), spaceflakes[4095].Sequence())
	assert.Equal(t, fakeNow+1, spaceflakes[4095].Time())
	assert.Equal(t, uint64(1), spaceflakes[8190].Sequence())
	assert.Equal(t, fakeNow+2, spaceflakes[8190].Time())
}

func TestWorkerBulkGenerateUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("generates a million ids")
	}
	w, err := NewWorker(2, 1)
	require.NoError(t, err)

	spaceflakes, err := w.BulkGenerate(1_000_000)
	require.NoError(t, err)
	assert.Len(t, spaceflakes, 1_000_000)
	requireUnique(t, spaceflakes)
}

func requireUnique(t *testing.T, spaceflakes []Spaceflake) {
	t.Helper()
	seen := make(map[uint64]struct{}, len(spaceflakes))
	for i, sf := range spaceflakes {
		if _, dup := seen[sf.ID()]; dup {
			require.Failf(t, "duplicate spaceflake", "index %d: %v", i, sf.Decompose())
		}
		seen[sf.ID()] = struct{}{}
	}
}
