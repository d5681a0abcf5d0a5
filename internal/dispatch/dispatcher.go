// Package dispatch turns confirmed threats into alert events. It applies the
// per-type cooldown, records events in a bounded per-session log, picks the
// audible pattern and hands events to a shared delivery queue.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// Options configures a Dispatcher.
type Options struct {
	Session string
	UserID  string
	Alarm   conf.AlarmSettings
	Clock   threat.Clock
	// Queue delivers events to Sinks; nil disables delivery.
	Queue   *Queue
	Sinks   []Sink
	Metrics *metrics.DispatchMetrics
	Logger  logger.Logger
}

// Dispatcher emits alerts for one session.
type Dispatcher struct {
	session string
	userID  string
	alarm   conf.AlarmSettings
	clock   threat.Clock
	queue   *Queue
	metrics *metrics.DispatchMetrics
	log     logger.Logger

	cooldown *Cooldown
	alerts   *AlertLog

	mu    sync.RWMutex
	sinks []Sink
}

// New creates a dispatcher. A zero cooldown uses threat.DefaultCooldown.
func New(opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = threat.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	cooldown := opts.Alarm.Cooldown
	if cooldown <= 0 {
		cooldown = threat.DefaultCooldown
	}
	var exempt []threat.Type
	if opts.Alarm.EyesExempt {
		exempt = append(exempt, threat.EyesClosed)
	}
	return &Dispatcher{
		session:  opts.Session,
		userID:   opts.UserID,
		alarm:    opts.Alarm,
		clock:    opts.Clock,
		queue:    opts.Queue,
		metrics:  opts.Metrics,
		log:      opts.Logger.With(logger.String("session", opts.Session)),
		cooldown: NewCooldown(cooldown, exempt...),
		alerts:   NewAlertLog(opts.Alarm.LogSize),
		sinks:    append([]Sink(nil), opts.Sinks...),
	}
}

// AddSink registers an additional delivery target.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Dispatch emits an alert unless its type is cooling down. Delivery happens
// asynchronously; its failures never surface here. ctx scopes delivery jobs.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (AlertEvent, bool) {
	now := req.Time
	if now.IsZero() {
		now = d.clock.Now()
	}
	if !d.cooldown.Allow(req.Threat, now) {
		d.metrics.RecordSuppressed(string(req.Threat))
		d.log.Debug("alert suppressed by cooldown",
			logger.String("threat", string(req.Threat)),
			logger.Duration("remaining", d.cooldown.Remaining(req.Threat, now)))
		return AlertEvent{}, false
	}

	severity := req.Severity
	if severity == "" {
		severity = req.Threat.Severity()
	}
	var entity *int
	if req.EntityID != nil {
		id := *req.EntityID
		entity = &id
	}
	ev := AlertEvent{
		ID:        uuid.New(),
		Timestamp: now,
		Session:   d.session,
		UserID:    d.userID,
		Threat:    req.Threat,
		EntityID:  entity,
		Severity:  severity,
		Message:   req.Message,
		Pattern:   PatternFor(req.Threat, severity, &d.alarm),
	}
	d.alerts.Append(ev)
	d.metrics.RecordDispatched(string(ev.Threat), string(ev.Severity))

	fields := []logger.Field{
		logger.String("alert_id", ev.ID.String()),
		logger.String("threat", string(ev.Threat)),
		logger.String("severity", string(ev.Severity)),
		logger.String("message", ev.Message),
	}
	if entity != nil {
		fields = append(fields, logger.Int("entity", *entity))
	}
	// eyes_closed repeats every frame while closed
	if ev.Threat == threat.EyesClosed {
		d.log.Debug("alert dispatched", fields...)
	} else {
		d.log.Info("alert dispatched", fields...)
	}

	d.deliver(ctx, ev)
	return ev, true
}

func (d *Dispatcher) deliver(ctx context.Context, ev AlertEvent) {
	if d.queue == nil {
		return
	}
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := d.queue.Enqueue(ctx, s, ev); err != nil {
			d.log.Warn("alert not queued for delivery",
				logger.String("sink", s.Name()),
				logger.String("alert_id", ev.ID.String()),
				logger.Error(err))
		}
	}
}

// Recent returns up to n logged alerts, newest first.
func (d *Dispatcher) Recent(n int) []AlertEvent { return d.alerts.Recent(n) }

// Counts returns alert totals per type for the session.
func (d *Dispatcher) Counts() map[threat.Type]int { return d.alerts.Counts() }

// CooldownRemaining reports how long t stays suppressed at now.
func (d *Dispatcher) CooldownRemaining(t threat.Type, now time.Time) time.Duration {
	return d.cooldown.Remaining(t, now)
}

// Reset clears the cooldown registry. The alert log is kept.
func (d *Dispatcher) Reset() { d.cooldown.Clear() }
