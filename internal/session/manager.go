package session

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	serrors "github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/processor"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// Options configures a Manager.
type Options struct {
	Settings *conf.Settings
	// Queue delivers alerts for every session; nil disables delivery.
	Queue *dispatch.Queue
	// Sinks receive alerts from every session.
	Sinks   []dispatch.Sink
	Metrics *observability.Metrics
	Clock   threat.Clock
	Logger  logger.Logger
}

// Manager tracks open sessions, at most one per user.
type Manager struct {
	settings *conf.Settings
	queue    *dispatch.Queue
	sinks    []dispatch.Sink
	clock    threat.Clock
	log      logger.Logger

	threatMetrics   *metrics.ThreatMetrics
	dispatchMetrics *metrics.DispatchMetrics
	sessionMetrics  *metrics.SessionMetrics

	mu     sync.Mutex
	byUser map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(opts Options) *Manager {
	if opts.Settings == nil {
		opts.Settings = conf.Defaults()
	}
	if opts.Clock == nil {
		opts.Clock = threat.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	m := &Manager{
		settings: opts.Settings,
		queue:    opts.Queue,
		sinks:    slices.Clone(opts.Sinks),
		clock:    opts.Clock,
		log:      opts.Logger,
		byUser:   make(map[string]*Session),
	}
	if opts.Metrics != nil {
		m.threatMetrics = opts.Metrics.Threat
		m.dispatchMetrics = opts.Metrics.Dispatch
		m.sessionMetrics = opts.Metrics.Session
	}
	return m
}

// Open starts a session for userID. A session the user already holds is
// closed and replaced. ctx bounds the session's lifetime. extra sinks
// receive this session's alerts only.
func (m *Manager) Open(ctx context.Context, userID string, extra ...dispatch.Sink) (*Session, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	m.mu.Lock()
	previous := m.byUser[userID]
	limit := m.settings.Intake.MaxSessions
	if previous == nil && limit > 0 && len(m.byUser) >= limit {
		m.mu.Unlock()
		m.sessionMetrics.SessionRejected()
		return nil, serrors.New(ErrTooManySessions).
			Component("session").
			Category(serrors.CategoryLimit).
			Context("max_sessions", limit).
			Context("user_id", userID).
			Build()
	}
	s := m.newSession(ctx, userID, extra)
	m.byUser[userID] = s
	m.mu.Unlock()

	if previous != nil {
		previous.log.Info("session replaced by a new connection")
		previous.Close()
	}
	m.sessionMetrics.SessionOpened()
	s.log.Info("session opened", logger.Int("open_sessions", m.Len()))
	return s, nil
}

func (m *Manager) newSession(ctx context.Context, userID string, extra []dispatch.Sink) *Session {
	id := uuid.NewString()
	log := m.log.With(logger.String("session", id), logger.String("user_id", userID))
	sctx, cancel := context.WithCancel(ctx)

	sinks := append(slices.Clone(m.sinks), extra...)
	d := dispatch.New(dispatch.Options{
		Session: id,
		UserID:  userID,
		Alarm:   m.settings.Alarm,
		Clock:   m.clock,
		Queue:   m.queue,
		Sinks:   sinks,
		Metrics: m.dispatchMetrics,
		Logger:  log,
	})
	return &Session{
		ID:      id,
		UserID:  userID,
		Opened:  m.clock.Now(),
		onClose: m.detach,
		ctx:     sctx,
		cancel:  cancel,
		proc: processor.New(processor.Options{
			Settings:   m.settings,
			Dispatcher: d,
			Clock:      m.clock,
			Metrics:    m.threatMetrics,
			Logger:     log,
		}),
		clock:       m.clock,
		minInterval: m.settings.Intake.MinInterval,
		metrics:     m.threatMetrics,
		log:         log,
	}
}

// detach forgets s unless it was already replaced.
func (m *Manager) detach(s *Session) {
	m.mu.Lock()
	current, ok := m.byUser[s.UserID]
	if ok && current == s {
		delete(m.byUser, s.UserID)
	}
	m.mu.Unlock()
	m.sessionMetrics.SessionClosed()
}

// Get returns the open session of userID.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	return s, ok
}

// Close closes the session of userID.
func (m *Manager) Close(userID string) error {
	s, ok := m.Get(userID)
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

// Users returns the ids of users with an open session, sorted.
func (m *Manager) Users() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.byUser))
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := slices.Collect(maps.Values(m.byUser))
	m.mu.Unlock()
	for _, s := range open {
		s.Close()
	}
}
