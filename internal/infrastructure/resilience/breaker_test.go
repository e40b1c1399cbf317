package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func run(b *Breaker, success bool) error {
	return b.Execute(func() error {
		if success {
			return nil
		}
		return errFailed
	})
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", []bool{true, true, true}, StateClosed},
		{"stays closed below threshold", []bool{false, false, true, false}, StateClosed},
		{"opens after consecutive failures", []bool{false, false, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", Settings{
				ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 3 },
			})

			for _, success := range tt.requests {
				_ = run(b, success)
			}

			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerOpenRejects(t *testing.T) {
	clock := newFakeClock()
	b := New("origin", Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	require.ErrorIs(t, run(b, false), errFailed)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	b := New("origin", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
		Now: clock.Now,
	})

	_ = run(b, false)
	clock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	// Only MaxRequests trial requests are admitted while half-open
	done1, err := b.Allow()
	require.NoError(t, err)
	done2, err := b.Allow()
	require.NoError(t, err)
	_, err = b.Allow()
	assert.ErrorIs(t, err, ErrTooManyRequests)

	done1(nil)
	done2(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := New("origin", Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	_ = run(b, false)
	clock.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_ = run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clock := newFakeClock()
	b := New("origin", Settings{
		Interval: time.Second,
		Now:      clock.Now,
	})

	_ = run(b, false)
	_ = run(b, true)
	assert.Equal(t, uint32(2), b.Counts().Requests)

	clock.Advance(2 * time.Second)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())
}

func TestBreakerIsSuccessful(t *testing.T) {
	errNotFound := errors.New("404")
	b := New("origin", Settings{
		ReadyToTrip:  func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errNotFound) },
	})

	err := b.Execute(func() error { return errNotFound })
	assert.ErrorIs(t, err, errNotFound)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)
}

func TestBreakerDoneIsIdempotent(t *testing.T) {
	b := New("origin", Settings{})

	done, err := b.Allow()
	require.NoError(t, err)
	done(errFailed)
	done(errFailed)

	assert.Equal(t, uint32(1), b.Counts().TotalFailures)
}

func TestBreakerStaleGenerationIgnored(t *testing.T) {
	clock := newFakeClock()
	b := New("origin", Settings{Interval: time.Second, Now: clock.Now})

	done, err := b.Allow()
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	done(errFailed)

	assert.Equal(t, uint32(0), b.Counts().TotalFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("origin", Settings{})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, uint32(1), b.Counts().TotalFailures)
}

func TestCall(t *testing.T) {
	b := New("origin", Settings{})

	n, err := Call(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestBreakerConcurrentRequests(t *testing.T) {
	b := New("origin", Settings{
		ReadyToTrip: func(counts Counts) bool { return false },
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = run(b, i%2 == 0)
		}(i)
	}
	wg.Wait()

	counts := b.Counts()
	assert.Equal(t, uint32(50), counts.Requests)
	assert.Equal(t, uint32(25), counts.TotalSuccesses)
	assert.Equal(t, uint32(25), counts.TotalFailures)
}

func TestGroup(t *testing.T) {
	g := NewGroup(Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	a := g.Get("a.example")
	assert.Same(t, a, g.Get("a.example"))

	_ = run(a, false)
	_ = run(g.Get("b.example"), true)

	assert.Equal(t, map[string]State{
		"a.example": StateOpen,
		"b.example": StateClosed,
	}, g.States())
}
