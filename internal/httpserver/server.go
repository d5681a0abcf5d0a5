// Package httpserver exposes detection sessions over WebSocket together with
// the health, preferences, alert history and metrics endpoints.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/safeguard-go/internal/buildinfo"
	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/datastore"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/session"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 10 * time.Second

// AlertHistory answers alert history queries. *datastore.Store implements it.
type AlertHistory interface {
	Recent(ctx context.Context, q datastore.Query) ([]dispatch.AlertEvent, error)
	CountByThreat(ctx context.Context, q datastore.Query) (map[threat.Type]int64, error)
}

// Options configures a Server.
type Options struct {
	Settings    *conf.Settings
	Sessions    *session.Manager
	Preferences *session.PreferenceStore
	// History is optional; without it alerts come from the open session.
	History AlertHistory
	Metrics *observability.Metrics
	Build   buildinfo.BuildInfo
	Logger  logger.Logger
}

// Server is the HTTP and WebSocket front end.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	sessions *session.Manager
	prefs    *session.PreferenceStore
	history  AlertHistory
	metrics  *observability.Metrics
	sessionM *metrics.SessionMetrics
	build    buildinfo.BuildInfo
	upgrader websocket.Upgrader
	log      logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
}

// New builds the server and registers its routes. It does not listen.
func New(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("httpserver: session manager is required")
	}
	if opts.Settings == nil {
		opts.Settings = conf.Defaults()
	}
	if opts.Preferences == nil {
		opts.Preferences = session.NewPreferenceStore(0)
	}
	if opts.Build == nil {
		opts.Build = &buildinfo.Context{}
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:     echo.New(),
		settings: opts.Settings,
		sessions: opts.Sessions,
		prefs:    opts.Preferences,
		history:  opts.History,
		metrics:  opts.Metrics,
		build:    opts.Build,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the dashboard origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:       opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	if opts.Metrics != nil {
		s.sessionM = opts.Metrics.Session
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				s.log.Error("request failed", fields...)
			case v.Status >= http.StatusBadRequest:
				s.log.Warn("request rejected", fields...)
			default:
				s.log.Debug("request served", fields...)
			}
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api")
	api.GET("/preferences/:user_id", s.getPreferences)
	api.POST("/preferences/:user_id", s.setPreferences)
	api.GET("/alerts/:user_id", s.getAlerts)
	api.GET("/sessions", s.listSessions)

	s.echo.GET("/ws/detect/:user_id", s.handleDetect)

	if s.metrics != nil && s.settings.Telemetry.Enabled {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Address is the configured listen address.
func (s *Server) Address() string {
	return net.JoinHostPort(s.settings.WebServer.Host, s.settings.WebServer.Port)
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	addr := s.Address()
	s.log.Info("starting HTTP server", logger.String("address", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server on %s: %w", addr, err)
	}
	return nil
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.echo.Listener = l
	s.log.Info("starting HTTP server", logger.String("address", l.Addr().String()))
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server on %s: %w", l.Addr(), err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every WebSocket connection this
// server opened and waits for their goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}
	s.cancel()

	err := s.echo.Shutdown(ctx)
	if err != nil {
		err = fmt.Errorf("http server shutdown: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}
	s.log.Info("HTTP server stopped")
	return err
}
