package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome int

const (
	fail outcome = iota
	succeed
)

func TestBreakerSequences(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		outcomes []outcome
		wantOpen bool
	}{
		{
			name:     "stays closed below the failure threshold",
			opts:     []Option{WithFailureThreshold(3)},
			outcomes: []outcome{fail, fail},
			wantOpen: false,
		},
		{
			name:     "opens at the failure threshold",
			opts:     []Option{WithFailureThreshold(3)},
			outcomes: []outcome{fail, fail, fail},
			wantOpen: true,
		},
		{
			name:     "a success in between restarts the failure count",
			opts:     []Option{WithFailureThreshold(3)},
			outcomes: []outcome{fail, fail, succeed, fail, fail},
			wantOpen: false,
		},
		{
			name:     "needs consecutive successes to close",
			opts:     []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			outcomes: []outcome{fail, succeed, succeed, fail, succeed, succeed},
			wantOpen: true,
		},
		{
			name:     "closes after the success threshold",
			opts:     []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			outcomes: []outcome{fail, succeed, succeed},
			wantOpen: false,
		},
		{
			name:     "non-positive thresholds keep the defaults",
			opts:     []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			outcomes: []outcome{fail, fail, fail, fail},
			wantOpen: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("organization-cache", tt.opts...)
			for _, o := range tt.outcomes {
				if o == fail {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
			}
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreakerReportsTransitions(t *testing.T) {
	b := New("organization-cache", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "organization-cache", b.Name())
	assert.Equal(t, StateClosed, b.State())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	// Already open: still the fallback, no new transition.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed)
}

func TestBreakerReset(t *testing.T) {
	b := New("organization-cache", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	_, change := b.RecordFailure()
	assert.True(t, change.Opened, "failure count restarts after reset")
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("organization-cache", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, opened)
}

func TestBreakerAllow(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("open circuit rejects until the cooldown passes", func(t *testing.T) {
		b := New("organization-cache", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clock))
		assert.True(t, b.Allow())
		b.RecordFailure()

		assert.False(t, b.Allow())
		now = now.Add(9 * time.Second)
		assert.False(t, b.Allow())

		now = now.Add(2 * time.Second)
		assert.True(t, b.Allow(), "trial call after cooldown")
		assert.False(t, b.Allow(), "one trial per cooldown")
	})

	t.Run("failed trial restarts the cooldown", func(t *testing.T) {
		b := New("organization-cache", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clock))
		b.RecordFailure()
		now = now.Add(10 * time.Second)
		require.True(t, b.Allow())
		b.RecordFailure()

		now = now.Add(5 * time.Second)
		assert.False(t, b.Allow())
	})

	t.Run("successful trials close the circuit", func(t *testing.T) {
		b := New("organization-cache", WithFailureThreshold(1), WithSuccessThreshold(2),
			WithCooldown(10*time.Second), WithClock(clock))
		b.RecordFailure()
		now = now.Add(10 * time.Second)
		require.True(t, b.Allow())
		b.RecordSuccess()

		assert.True(t, b.Allow(), "recovering circuit lets calls through")
		_, change := b.RecordSuccess()
		assert.True(t, change.Closed)
		assert.True(t, b.Allow())
	})
}
