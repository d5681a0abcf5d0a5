// Package serve implements the serve command: the WebSocket detection
// service with every configured alert destination.
package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/safeguard-go/internal/alertstream"
	"github.com/tphakala/safeguard-go/internal/buildinfo"
	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/datastore"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	serrors "github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/httpserver"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/mqtt"
	"github.com/tphakala/safeguard-go/internal/notification"
	"github.com/tphakala/safeguard-go/internal/observability"
	"github.com/tphakala/safeguard-go/internal/session"
)

const (
	shutdownTimeout = 15 * time.Second
	sentryFlushWait = 2 * time.Second
)

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection service",
		Long:  "Accept detection frames over WebSocket, track threats and deliver alerts to the configured destinations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, build)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Host, "host", settings.WebServer.Host, "Listen host")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Listen port")

	return cmd
}

func getLogger() logger.Logger { return logger.Global().Module("serve") }

// closer releases one resource on shutdown.
type closer struct {
	name string
	fn   func() error
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) (err error) {
	log := getLogger()
	log.Info("starting SafeGuard",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()))

	var closers []closer
	defer func() {
		// release in reverse order of creation
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].fn(); cerr != nil {
				log.Warn("shutdown step failed", logger.String("component", closers[i].name), logger.Error(cerr))
			}
		}
	}()

	if settings.Telemetry.Enabled && settings.Telemetry.SentryDSN != "" {
		reporter, err := serrors.InitSentry(settings.Telemetry.SentryDSN, build.GetVersion(), settings.Telemetry.Environment)
		if err != nil {
			return err
		}
		serrors.SetTelemetryReporter(reporter)
		closers = append(closers, closer{"sentry", func() error {
			reporter.Flush(sentryFlushWait)
			return nil
		}})
		log.Info("error reporting enabled", logger.String("environment", settings.Telemetry.Environment))
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	prefs := session.NewPreferenceStore(0)
	sinks, store, sinkClosers, err := buildSinks(ctx, settings, prefs, m)
	closers = append(closers, sinkClosers...)
	if err != nil {
		return err
	}

	queue := dispatch.NewQueue(dispatch.QueueConfigFromSettings(&settings.Delivery), m.Dispatch, dispatch.GetLogger())
	sessions := session.NewManager(session.Options{
		Settings: settings,
		Queue:    queue,
		Sinks:    sinks,
		Metrics:  m,
	})

	var history httpserver.AlertHistory
	if store != nil {
		history = store
	}
	srv, err := httpserver.New(httpserver.Options{
		Settings:    settings,
		Sessions:    sessions,
		Preferences: prefs,
		History:     history,
		Metrics:     m,
		Build:       build,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	queue.Start(gctx)

	g.Go(func() error {
		if !settings.WebServer.Enabled {
			log.Warn("web server disabled, no detection sessions can connect")
			<-gctx.Done()
			return nil
		}
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(sctx)
		sessions.CloseAll()
		return errors.Join(err, queue.Stop(shutdownTimeout))
	})
	g.Go(func() error {
		return rotateLogsOnHangup(gctx)
	})

	err = g.Wait()
	stats := queue.Stats()
	log.Info("SafeGuard stopped",
		logger.Int("alerts_delivered", stats.Delivered),
		logger.Int("alerts_failed", stats.Failed))
	return err
}

// buildSinks connects every enabled alert destination. Closers are returned
// even on error so partially built resources are released.
func buildSinks(ctx context.Context, settings *conf.Settings, prefs *session.PreferenceStore, m *observability.Metrics) ([]dispatch.Sink, *datastore.Store, []closer, error) {
	log := getLogger()
	sinks := []dispatch.Sink{dispatch.NewLogSink(dispatch.GetLogger())}
	var closers []closer

	var store *datastore.Store
	if settings.Output.SQLite.Enabled || settings.Output.MySQL.Enabled {
		var err error
		store, err = datastore.Open(&settings.Output, datastore.Options{Debug: settings.Debug, Metrics: m.Datastore})
		if err != nil {
			return nil, nil, closers, err
		}
		closers = append(closers, closer{"datastore", store.Close})
		sinks = append(sinks, store.Sink())
	}

	notify, err := notification.FromSettings(notification.Options{
		Settings: &settings.Notification,
		Recipients: func(userID string) (string, bool) {
			p := prefs.Get(userID)
			return p.EmailRecipient()
		},
		Metrics: m.Notification,
	})
	if err != nil {
		return nil, nil, closers, err
	}
	sinks = append(sinks, notify...)

	if settings.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(&settings.MQTT, hostnameClientID())
		client := mqtt.NewClient(cfg, m.MQTT, nil)
		if err := client.Connect(ctx); err != nil {
			// the publisher connects again on the first alert
			log.Warn("MQTT broker not reachable at startup", logger.String("broker", cfg.Broker), logger.Error(err))
		}
		closers = append(closers, closer{"mqtt", func() error {
			client.Disconnect()
			return nil
		}})
		sinks = append(sinks, mqtt.NewPublisher(client, cfg, nil))
	}

	if settings.Redis.Enabled {
		stream, err := alertstream.New(ctx, alertstream.ConfigFromSettings(&settings.Redis))
		if err != nil {
			return nil, nil, closers, err
		}
		closers = append(closers, closer{"redis", stream.Close})
		sinks = append(sinks, stream)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	log.Info("alert destinations ready", logger.Any("sinks", names))
	return sinks, store, closers, nil
}

func hostnameClientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "safeguard"
	}
	return "safeguard-" + host
}

// rotateLogsOnHangup reopens the log file on SIGHUP for external rotation tools.
func rotateLogsOnHangup(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				getLogger().Warn("log rotation failed", logger.Error(err))
			}
		}
	}
}
