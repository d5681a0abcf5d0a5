// Package session owns per-client detection sessions. Each session has its
// own processor, so tracks, machines, cooldowns and alert history are never
// shared between clients. Frames are admitted one at a time: a frame that
// arrives while the previous one is still processing, or sooner than the
// minimum interval after the last admitted frame, is dropped.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/processor"
	"github.com/tphakala/safeguard-go/internal/threat"
)

var (
	ErrSessionBusy     = errors.New("session is processing another frame")
	ErrFrameTooSoon    = errors.New("frame arrived before the minimum interval")
	ErrSessionClosed   = errors.New("session is closed")
	ErrTooManySessions = errors.New("session limit reached")
	ErrMissingUser     = errors.New("user id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// DropStats counts frames refused by admission, by reason.
type DropStats struct {
	Busy     uint64 `json:"busy"`
	Interval uint64 `json:"interval"`
	Invalid  uint64 `json:"invalid"`
	Closed   uint64 `json:"closed"`
}

// Session is one client's detection stream.
type Session struct {
	ID      string
	UserID  string
	Opened  time.Time
	onClose func(*Session)

	ctx    context.Context
	cancel context.CancelFunc

	proc        *processor.Processor
	clock       threat.Clock
	minInterval time.Duration
	metrics     *metrics.ThreatMetrics
	log         logger.Logger

	busy   atomic.Bool
	closed atomic.Bool

	mu        sync.Mutex
	lastAdmit time.Time
	processed uint64
	inflight  sync.WaitGroup

	dropBusy, dropInterval, dropInvalid, dropClosed atomic.Uint64
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Dispatcher returns the session's alert dispatcher.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.proc.Dispatcher() }

// Admit reserves the session for one frame. On success the caller must call
// release once the frame is processed.
func (s *Session) Admit() (release func(), err error) {
	if s.closed.Load() {
		s.drop(&s.dropClosed, metrics.DropClosed)
		return nil, ErrSessionClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.drop(&s.dropBusy, metrics.DropBusy)
		return nil, ErrSessionBusy
	}

	now := s.clock.Now()
	s.mu.Lock()
	if !s.lastAdmit.IsZero() && now.Sub(s.lastAdmit) < s.minInterval {
		s.mu.Unlock()
		s.busy.Store(false)
		s.drop(&s.dropInterval, metrics.DropInterval)
		return nil, ErrFrameTooSoon
	}
	s.lastAdmit = now
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { s.busy.Store(false) }) }, nil
}

// Process admits and processes f. Dropped frames return an admission error
// and leave all state untouched.
func (s *Session) Process(f *detection.Frame) (processor.Report, error) {
	release, err := s.Admit()
	if err != nil {
		return processor.Report{}, err
	}
	defer release()
	return s.run(f), nil
}

// Submit admits f and processes it on a new goroutine, handing the report to
// done. Admission errors are returned at once and done is never called.
func (s *Session) Submit(f *detection.Frame, done func(processor.Report)) error {
	release, err := s.Admit()
	if err != nil {
		return err
	}
	s.inflight.Go(func() {
		defer release()
		r := s.run(f)
		if done != nil {
			done(r)
		}
	})
	return nil
}

// Wait blocks until every submitted frame has been processed.
func (s *Session) Wait() { s.inflight.Wait() }

func (s *Session) run(f *detection.Frame) processor.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.proc.Process(s.ctx, f)
	s.processed++
	return r
}

// RecordInvalid counts a message that could not be decoded into a frame.
func (s *Session) RecordInvalid() {
	s.drop(&s.dropInvalid, metrics.DropInvalid)
}

func (s *Session) drop(counter *atomic.Uint64, reason string) {
	counter.Add(1)
	s.metrics.RecordDrop(reason)
}

// Drops returns the admission counters.
func (s *Session) Drops() DropStats {
	return DropStats{
		Busy:     s.dropBusy.Load(),
		Interval: s.dropInterval.Load(),
		Invalid:  s.dropInvalid.Load(),
		Closed:   s.dropClosed.Load(),
	}
}

// Processed is the number of frames that went through the pipeline.
func (s *Session) Processed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// Reset clears the session's detection state without closing it.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc.Reset()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Close cancels the session context so pending deliveries are skipped, and
// detaches the session from its manager. It is safe to call more than once.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.log.Info("session closed",
		logger.Uint64("frames", s.Processed()),
		logger.Uint64("dropped_busy", s.dropBusy.Load()),
		logger.Uint64("dropped_interval", s.dropInterval.Load()),
		logger.Duration("duration", s.clock.Now().Sub(s.Opened)))
	if s.onClose != nil {
		s.onClose(s)
	}
}
