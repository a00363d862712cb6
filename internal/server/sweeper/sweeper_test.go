package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// expiringSet holds expiry instants and drops those before the cutoff, the
// way the repositories do.
type expiringSet struct {
	mu      sync.Mutex
	expires []time.Time
	err     error
	calls   []time.Time
	called  chan struct{}
}

func newExpiringSet(expires ...time.Time) *expiringSet {
	return &expiringSet{expires: expires, called: make(chan struct{}, 16)}
}

func (s *expiringSet) purge(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.called <- struct{}{}
	}()

	s.calls = append(s.calls, cutoff)
	if s.err != nil {
		return 0, s.err
	}

	var kept []time.Time
	var n int64
	for _, e := range s.expires {
		if e.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.expires = kept
	return n, nil
}

func (s *expiringSet) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	return s.purge(t)
}

func (s *expiringSet) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return s.purge(now)
}

func (s *expiringSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func TestSweep_RemovesExpiredAndIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	refresh := newExpiringSet(t0.Add(-time.Minute), t0.Add(-time.Hour), t0.Add(time.Hour))
	confirm := newExpiringSet(t0.Add(-time.Second), t0.Add(time.Minute))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(refresh, confirm, 30*time.Minute, clock, nil, m)

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Refresh: 2, Confirmation: 1}, res)
	assert.Equal(t, 1, refresh.len())
	assert.Equal(t, 1, confirm.len())

	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepDeleted.WithLabelValues("refresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepDeleted.WithLabelValues("confirmation")))
}

func TestSweep_OneStoreFailing(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	refresh := newExpiringSet(t0.Add(-time.Minute))
	refresh.err = errors.New("transient failure: connection refused")
	confirm := newExpiringSet(t0.Add(-time.Minute))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(refresh, confirm, time.Minute, clock, nil, m)

	res, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, refresh.err)
	assert.Equal(t, int64(1), res.Confirmation, "second store is still swept")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("error")))
}

type tickingClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

func waitCalled(t *testing.T, s *expiringSet) {
	t.Helper()
	select {
	case <-s.called:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
}

func TestRun_SweepsOnEveryTickAndSurvivesErrors(t *testing.T) {
	var clock tickingClock = clockwork.NewFakeClockAt(t0)
	refresh := newExpiringSet()
	refresh.err = errors.New("boom")
	confirm := newExpiringSet()

	s := New(refresh, confirm, 30*time.Minute, clock, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	bctx, bcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer bcancel()
	require.NoError(t, clock.BlockUntilContext(bctx, 1))

	clock.Advance(30 * time.Minute)
	waitCalled(t, refresh)
	waitCalled(t, confirm)

	clock.Advance(30 * time.Minute)
	waitCalled(t, refresh)
	waitCalled(t, confirm)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	refresh.mu.Lock()
	defer refresh.mu.Unlock()
	require.Len(t, refresh.calls, 2)
	assert.Equal(t, t0.Add(30*time.Minute), refresh.calls[0])
	assert.Equal(t, t0.Add(time.Hour), refresh.calls[1])
}
