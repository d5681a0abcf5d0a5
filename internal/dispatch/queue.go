package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tphakala/safeguard-go/internal/conf"
	serrors "github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
)

// Common errors returned by queue operations.
var (
	ErrNilSink      = errors.New("cannot enqueue nil sink")
	ErrQueueStopped = errors.New("delivery queue has been stopped")
)

// ErrDispatchFailure wraps every error returned by a sink.
var ErrDispatchFailure = errors.New("alert delivery failed")

// Sink delivers alert events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev AlertEvent) error
}

// RetryConfig holds the retry policy for deliveries.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// QueueConfig sizes the delivery queue.
type QueueConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per attempt
	Retry     RetryConfig
}

// QueueConfigFromSettings converts delivery settings.
func QueueConfigFromSettings(s *conf.DeliverySettings) QueueConfig {
	return QueueConfig{
		Workers:   s.Workers,
		QueueSize: s.QueueSize,
		Timeout:   s.Timeout,
		Retry: RetryConfig{
			MaxRetries:   s.MaxRetries,
			InitialDelay: s.InitialDelay,
			MaxDelay:     s.MaxDelay,
			Multiplier:   s.Multiplier,
		},
	}
}

type job struct {
	id       uint64
	ctx      context.Context // owning session; cancelled jobs are skipped
	sink     Sink
	event    AlertEvent
	attempts int
	nextAt   time.Time
}

// SinkStats tracks deliveries to one sink.
type SinkStats struct {
	Attempted   int
	Delivered   int
	Failed      int
	Retried     int
	LastError   string
	LastSuccess time.Time
}

// QueueStats is a point-in-time snapshot of the queue.
type QueueStats struct {
	Enqueued  int
	Delivered int
	Failed    int
	Retries   int
	Dropped   int
	Skipped   int
	Pending   int
	Sinks     map[string]SinkStats
}

// Queue is a bounded delivery queue served by a fixed worker pool. When full
// it drops the oldest pending job. Failed deliveries are retried with
// exponential backoff.
type Queue struct {
	cfg     QueueConfig
	log     logger.Logger
	metrics *metrics.DispatchMetrics

	mu      sync.Mutex
	pending []*job
	counter uint64
	stats   QueueStats
	running bool
	cancel  context.CancelFunc

	wake chan struct{}
	wg   sync.WaitGroup
}

// NewQueue creates a stopped queue. m may be nil.
func NewQueue(cfg QueueConfig, m *metrics.DispatchMetrics, log logger.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = 1
	}
	if log == nil {
		log = GetLogger()
	}
	return &Queue{
		cfg:     cfg,
		log:     log,
		metrics: m,
		wake:    make(chan struct{}, 1),
		stats:   QueueStats{Sinks: make(map[string]SinkStats)},
	}
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	ctx, q.cancel = context.WithCancel(ctx)
	for range q.cfg.Workers {
		q.wg.Go(func() { q.worker(ctx) })
	}
}

// Stop cancels the workers and waits up to timeout for in-flight deliveries.
// Jobs still pending are discarded.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.stats.Dropped += len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for deliveries to complete after %v", timeout)
	}
}

// Enqueue schedules delivery of ev to sink. ctx scopes the job: once it is
// done, the job is skipped.
func (q *Queue) Enqueue(ctx context.Context, sink Sink, ev AlertEvent) error {
	if sink == nil {
		return ErrNilSink
	}

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	if len(q.pending) >= q.cfg.QueueSize {
		dropped := q.pending[0]
		q.pending = q.pending[1:]
		q.stats.Dropped++
		q.metrics.RecordJobDropped()
		q.log.Warn("delivery queue full, dropped oldest job",
			logger.Uint64("job", dropped.id),
			logger.String("sink", dropped.sink.Name()),
			logger.String("alert_id", dropped.event.ID.String()))
	}
	q.counter++
	q.pending = append(q.pending, &job{
		id:     q.counter,
		ctx:    ctx,
		sink:   sink,
		event:  ev,
		nextAt: time.Now(),
	})
	q.stats.Enqueued++
	q.metrics.SetQueueDepth(len(q.pending))
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next pops the first due job. Otherwise it returns how long until one is due,
// or a negative wait when the queue is empty.
func (q *Queue) next(now time.Time) (*job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wait := time.Duration(-1)
	for i, j := range q.pending {
		if !j.nextAt.After(now) {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.metrics.SetQueueDepth(len(q.pending))
			if len(q.pending) > 0 {
				q.signal()
			}
			return j, 0
		}
		if d := j.nextAt.Sub(now); wait < 0 || d < wait {
			wait = d
		}
	}
	return nil, wait
}

func (q *Queue) worker(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		j, wait := q.next(time.Now())
		if j != nil {
			q.execute(ctx, j)
			continue
		}

		var timeout <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-timeout:
		}
		timer.Stop()
	}
}

func (q *Queue) execute(ctx context.Context, j *job) {
	name := j.sink.Name()
	if j.ctx != nil && j.ctx.Err() != nil {
		q.mu.Lock()
		q.stats.Skipped++
		q.mu.Unlock()
		q.metrics.RecordDelivery(name, metrics.StatusSkipped, 0)
		return
	}

	j.attempts++
	start := time.Now()
	err := q.attempt(ctx, j)
	elapsed := time.Since(start)

	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats.Sinks[name]
	stats.Attempted++
	defer func() { q.stats.Sinks[name] = stats }()

	if err == nil {
		stats.Delivered++
		stats.LastSuccess = time.Now()
		q.stats.Delivered++
		q.metrics.RecordDelivery(name, metrics.StatusSuccess, elapsed)
		if j.attempts > 1 {
			q.log.Info("alert delivered after retry",
				logger.String("sink", name),
				logger.String("alert_id", j.event.ID.String()),
				logger.Int("attempts", j.attempts))
		}
		return
	}

	stats.LastError = err.Error()
	if j.attempts <= q.cfg.Retry.MaxRetries && ctx.Err() == nil && q.running {
		delay := calculateBackoffDelay(q.cfg.Retry, j.attempts-1)
		j.nextAt = time.Now().Add(delay)
		q.pending = append(q.pending, j)
		stats.Retried++
		q.stats.Retries++
		q.metrics.RecordRetry(name)
		q.metrics.SetQueueDepth(len(q.pending))
		q.log.Warn("alert delivery failed, will retry",
			logger.String("sink", name),
			logger.String("alert_id", j.event.ID.String()),
			logger.Int("attempt", j.attempts),
			logger.Duration("delay", delay),
			logger.Error(err))
		q.signal()
		return
	}

	stats.Failed++
	q.stats.Failed++
	q.metrics.RecordDelivery(name, metrics.StatusError, elapsed)
	// Build forwards the failure to the telemetry reporter.
	failure := serrors.New(err).
		Component("dispatch").
		Category(serrors.CategoryDispatch).
		Context("sink", name).
		Context("threat", string(j.event.Threat)).
		Context("attempts", j.attempts).
		Build()
	q.log.Error("alert delivery permanently failed",
		logger.String("sink", name),
		logger.String("alert_id", j.event.ID.String()),
		logger.Int("attempts", j.attempts),
		logger.Error(failure))
}

// attempt runs one delivery with the per-attempt timeout, converting panics
// and sink errors into ErrDispatchFailure.
func (q *Queue) attempt(ctx context.Context, j *job) (err error) {
	parent := j.ctx
	if parent == nil {
		parent = ctx
	}
	execCtx, cancel := context.WithTimeout(parent, q.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sink %s panicked: %v", ErrDispatchFailure, j.sink.Name(), r)
		}
	}()
	if derr := j.sink.Deliver(execCtx, j.event); derr != nil {
		return fmt.Errorf("%w: sink %s: %w", ErrDispatchFailure, j.sink.Name(), derr)
	}
	return nil
}

// calculateBackoffDelay returns InitialDelay * Multiplier^attempt with ±10%
// jitter, capped at MaxDelay.
func calculateBackoffDelay(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	backoff *= 0.9 + 0.2*rand.Float64()
	if cfg.MaxDelay > 0 && backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	return time.Duration(backoff)
}

// Stats returns a snapshot of queue statistics.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.stats
	out.Pending = len(q.pending)
	out.Sinks = maps.Clone(q.stats.Sinks)
	return out
}
