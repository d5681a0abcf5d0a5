package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/testutil"
	"github.com/tphakala/safeguard-go/internal/threat"
)

func fastRetry(retries int) QueueConfig {
	return QueueConfig{
		Workers:   2,
		QueueSize: 10,
		Timeout:   time.Second,
		Retry:     RetryConfig{MaxRetries: retries, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	}
}

func startQueue(t *testing.T, cfg QueueConfig) *Queue {
	t.Helper()
	q := NewQueue(cfg, nil, logger.NewDiscardLogger())
	q.Start(t.Context())
	t.Cleanup(func() { require.NoError(t, q.Stop(testutil.DefaultTestTimeout)) })
	return q
}

func testEvent(tt threat.Type) AlertEvent {
	return AlertEvent{ID: uuid.New(), Threat: tt, Severity: tt.Severity(), Timestamp: time.Now()}
}

func TestQueueDelivers(t *testing.T) {
	t.Parallel()
	q := startQueue(t, fastRetry(0))

	got := make(chan AlertEvent, 1)
	sink := SinkFunc("chan", func(_ context.Context, ev AlertEvent) error {
		got <- ev
		return nil
	})
	ev := testEvent(threat.Fire)
	require.NoError(t, q.Enqueue(t.Context(), sink, ev))

	delivered := testutil.Receive(t, got, testutil.DefaultTestTimeout, "event not delivered")
	assert.Equal(t, ev.ID, delivered.ID)
	assert.Eventually(t, func() bool { return q.Stats().Sinks["chan"].Delivered == 1 },
		testutil.DefaultTestTimeout, time.Millisecond)
}

func TestQueueRetriesWithBackoff(t *testing.T) {
	t.Parallel()
	q := startQueue(t, fastRetry(3))

	var calls atomic.Int32
	done := make(chan struct{})
	sink := SinkFunc("flaky", func(context.Context, AlertEvent) error {
		if calls.Add(1) < 3 {
			return errors.New("connection refused")
		}
		close(done)
		return nil
	})
	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Weapon)))
	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "flaky sink never succeeded")

	assert.Eventually(t, func() bool { return q.Stats().Delivered == 1 }, testutil.DefaultTestTimeout, time.Millisecond)
	stats := q.Stats()
	assert.Equal(t, 2, stats.Retries)
	assert.Equal(t, 3, stats.Sinks["flaky"].Attempted)
	assert.Zero(t, stats.Failed)
}

func TestQueuePermanentFailure(t *testing.T) {
	t.Parallel()
	q := startQueue(t, fastRetry(1))

	var calls atomic.Int32
	sink := SinkFunc("down", func(context.Context, AlertEvent) error {
		calls.Add(1)
		return errors.New("503")
	})
	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Fire)))

	assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, testutil.DefaultTestTimeout, time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, q.Stats().Sinks["down"].LastError, ErrDispatchFailure.Error())
}

type recordingReporter struct {
	mu       sync.Mutex
	reported []*serrors.EnhancedError
}

func (r *recordingReporter) ReportError(ee *serrors.EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
}

func (r *recordingReporter) IsEnabled() bool { return true }

func (r *recordingReporter) forSink(name string) []*serrors.EnhancedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*serrors.EnhancedError
	for _, ee := range r.reported {
		if ee.GetContext()["sink"] == name {
			out = append(out, ee)
		}
	}
	return out
}

// Not parallel: the telemetry reporter is process-wide.
func TestQueueReportsPermanentFailure(t *testing.T) {
	reporter := &recordingReporter{}
	serrors.SetTelemetryReporter(reporter)
	t.Cleanup(func() { serrors.SetTelemetryReporter(nil) })

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
	q := NewQueue(fastRetry(0), nil, log)
	q.Start(t.Context())

	sink := SinkFunc("pager", func(context.Context, AlertEvent) error {
		return errors.New("gateway timeout")
	})
	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Weapon)))
	assert.Eventually(t, func() bool { return len(reporter.forSink("pager")) == 1 },
		testutil.DefaultTestTimeout, time.Millisecond)
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))

	ee := reporter.forSink("pager")[0]
	assert.Equal(t, serrors.CategoryDispatch, ee.Category)
	assert.Equal(t, "dispatch", ee.Component)
	assert.Equal(t, string(threat.Weapon), ee.GetContext()["threat"])
	require.ErrorIs(t, ee, ErrDispatchFailure)
	assert.Contains(t, buf.String(), "alert delivery permanently failed")
	assert.Contains(t, buf.String(), "gateway timeout")
}

func TestQueueRecoversSinkPanic(t *testing.T) {
	t.Parallel()
	q := startQueue(t, fastRetry(0))

	sink := SinkFunc("broken", func(context.Context, AlertEvent) error { panic("boom") })
	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Fire)))
	assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, testutil.DefaultTestTimeout, time.Millisecond)
	assert.Contains(t, q.Stats().Sinks["broken"].LastError, "panicked")
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	t.Parallel()
	cfg := fastRetry(0)
	cfg.Workers = 1
	cfg.QueueSize = 2
	q := startQueue(t, cfg)

	started := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan threat.Type, 4)
	sink := SinkFunc("slow", func(_ context.Context, ev AlertEvent) error {
		if ev.Threat == threat.Unconscious {
			close(started)
			<-release
		}
		delivered <- ev.Threat
		return nil
	})

	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Unconscious)))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "worker never started")

	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Sleeping)))
	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Falling)))
	require.NoError(t, q.Enqueue(t.Context(), sink, testEvent(threat.Fire)))
	assert.Equal(t, 1, q.Stats().Dropped)
	assert.Equal(t, 2, q.Stats().Pending)

	close(release)
	var order []threat.Type
	for range 3 {
		order = append(order, testutil.Receive(t, delivered, testutil.DefaultTestTimeout, "delivery missing"))
	}
	assert.Equal(t, []threat.Type{threat.Unconscious, threat.Falling, threat.Fire}, order)
}

func TestQueueSkipsClosedSession(t *testing.T) {
	t.Parallel()
	q := startQueue(t, fastRetry(0))

	var calls atomic.Int32
	sink := SinkFunc("ws", func(context.Context, AlertEvent) error {
		calls.Add(1)
		return nil
	})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, q.Enqueue(ctx, sink, testEvent(threat.Fire)))

	assert.Eventually(t, func() bool { return q.Stats().Skipped == 1 }, testutil.DefaultTestTimeout, time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	t.Parallel()
	q := NewQueue(fastRetry(0), nil, logger.NewDiscardLogger())
	sink := NewLogSink(logger.NewDiscardLogger())

	require.ErrorIs(t, q.Enqueue(t.Context(), sink, testEvent(threat.Fire)), ErrQueueStopped)
	require.ErrorIs(t, q.Enqueue(t.Context(), nil, testEvent(threat.Fire)), ErrNilSink)

	q.Start(t.Context())
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout), "second stop is a no-op")
	require.ErrorIs(t, q.Enqueue(t.Context(), sink, testEvent(threat.Fire)), ErrQueueStopped)
}

func TestCalculateBackoffDelay(t *testing.T) {
	t.Parallel()
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}

	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := calculateBackoffDelay(cfg, attempt)
		assert.GreaterOrEqual(t, d, base*9/10)
		assert.LessOrEqual(t, d, base*11/10)
	}
	assert.Equal(t, 30*time.Second, calculateBackoffDelay(cfg, 10))
}
