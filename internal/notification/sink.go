// Package notification delivers alerts to people: push services through
// shoutrrr and email to the address in each user's preferences. Every
// provider is wrapped in a dispatch sink with its own circuit breaker; all
// sinks share one rate limiter.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// SinkOptions configures a Sink.
type SinkOptions struct {
	// MinSeverity is the lowest severity notified; empty means high.
	MinSeverity threat.Severity
	Breaker     CircuitBreakerConfig
	// Limiter is shared between sinks; nil disables rate limiting.
	Limiter *RateLimiter
	Metrics *metrics.NotificationMetrics
	Logger  logger.Logger
}

// Sink adapts a Provider to the dispatch delivery queue.
type Sink struct {
	provider    Provider
	breaker     *CircuitBreaker
	limiter     *RateLimiter
	minSeverity threat.Severity
	metrics     *metrics.NotificationMetrics
	log         logger.Logger
}

// NewSink wraps p.
func NewSink(p Provider, opts SinkOptions) *Sink {
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	if opts.MinSeverity == "" {
		opts.MinSeverity = threat.SeverityHigh
	}
	if opts.Breaker == (CircuitBreakerConfig{}) {
		opts.Breaker = DefaultCircuitBreakerConfig()
	}
	log := opts.Logger.With(logger.String("provider", p.Name()))
	return &Sink{
		provider:    p,
		breaker:     NewCircuitBreaker(opts.Breaker, p.Name(), opts.Metrics, log),
		limiter:     opts.Limiter,
		minSeverity: opts.MinSeverity,
		metrics:     opts.Metrics,
		log:         log,
	}
}

func (s *Sink) Name() string { return s.provider.Name() }

// Breaker exposes the sink's circuit breaker.
func (s *Sink) Breaker() *CircuitBreaker { return s.breaker }

// Deliver notifies about ev. Events below the severity floor, declined by
// the provider, or over the rate limit are dropped without error so the
// queue does not retry them.
func (s *Sink) Deliver(ctx context.Context, ev dispatch.AlertEvent) error {
	if ev.Severity.Rank() < s.minSeverity.Rank() {
		s.metrics.RecordDelivery(s.Name(), metrics.StatusSkipped, 0)
		return nil
	}
	msg := NewMessage(&ev)
	if f, ok := s.provider.(Filter); ok && !f.Accepts(&msg) {
		s.metrics.RecordDelivery(s.Name(), metrics.StatusSkipped, 0)
		return nil
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.RecordRateLimited()
		s.log.Warn("notification rate limited",
			logger.String("alert_id", ev.ID.String()),
			logger.String("threat", string(ev.Threat)))
		return nil
	}

	start := time.Now()
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.provider.Send(ctx, &msg)
	})
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		if ctx.Err() != nil {
			status = metrics.StatusTimeout
		}
	}
	s.metrics.RecordDelivery(s.Name(), status, time.Since(start))
	if err != nil {
		return fmt.Errorf("notify via %s: %w", s.Name(), err)
	}
	s.log.Debug("notification sent",
		logger.String("alert_id", ev.ID.String()),
		logger.String("threat", string(ev.Threat)))
	return nil
}

// Options configures FromSettings.
type Options struct {
	Settings   *conf.NotificationSettings
	Recipients RecipientFunc
	// Timeout bounds one push; zero keeps the shoutrrr default.
	Timeout time.Duration
	Metrics *metrics.NotificationMetrics
	Logger  logger.Logger
}

// FromSettings builds the configured notification sinks. It returns no
// sinks when notifications are disabled.
func FromSettings(opts Options) ([]dispatch.Sink, error) {
	s := opts.Settings
	if s == nil || !s.Enabled {
		return nil, nil
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}

	sinkOpts := SinkOptions{
		Breaker: CircuitBreakerConfig{
			MaxFailures:         s.CircuitBreaker.MaxFailures,
			Timeout:             s.CircuitBreaker.Timeout,
			HalfOpenMaxRequests: 1,
		},
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
	}
	if s.RateLimit.Enabled {
		sinkOpts.Limiter = NewRateLimiter(RateLimiterConfig{
			EventsPerMinute: s.RateLimit.EventsPerMinute,
			Burst:           s.RateLimit.Burst,
		})
	}

	var sinks []dispatch.Sink
	if len(s.URLs) > 0 {
		p, err := NewShoutrrrProvider("push", s.URLs, opts.Timeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewSink(p, sinkOpts))
	}
	if s.Email.Enabled {
		p, err := NewEmailProvider(s.Email.URL, opts.Recipients, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewSink(p, sinkOpts))
	}
	opts.Logger.Info("notification sinks configured",
		logger.Int("sinks", len(sinks)),
		logger.Bool("rate_limited", sinkOpts.Limiter != nil))
	return sinks, nil
}
