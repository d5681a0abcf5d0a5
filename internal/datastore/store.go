// Package datastore persists alert events with GORM on SQLite or MySQL and
// answers history queries for the HTTP API.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	serrors "github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// MaxQueryLimit caps history queries.
const MaxQueryLimit = 1000

var (
	ErrNotConfigured = errors.New("no database output is enabled")
	ErrClosed        = errors.New("database connection is not initialized")
)

// Options configures a Store.
type Options struct {
	Debug   bool
	Metrics *metrics.DatastoreMetrics
	Logger  logger.Logger
}

// Store is the alert history database.
type Store struct {
	db      *gorm.DB
	backend string
	closed  atomic.Bool
	metrics *metrics.DatastoreMetrics
	log     logger.Logger
}

// Open opens the database enabled in settings. MySQL wins when both are.
func Open(s *conf.OutputSettings, opts Options) (*Store, error) {
	switch {
	case s.MySQL.Enabled:
		return OpenMySQL(s, opts)
	case s.SQLite.Enabled:
		return OpenSQLite(s.SQLite.Path, opts)
	default:
		return nil, ErrNotConfigured
	}
}

// OpenSQLite opens or creates the SQLite database at path. ":memory:" and
// "file::memory:" give a private in-memory database.
func OpenSQLite(path string, opts Options) (*Store, error) {
	memory := strings.Contains(path, ":memory:")
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig(opts))
	if err != nil {
		return nil, dbError(err, "open", "sqlite")
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "open", "sqlite")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return newStore(db, "sqlite", opts)
}

// OpenMySQL connects to the configured MySQL server.
func OpenMySQL(s *conf.OutputSettings, opts Options) (*Store, error) {
	m := s.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		m.Username, m.Password, m.Host, m.Port, m.Database)
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, dbError(err, "open", "mysql")
	}
	return newStore(db, "mysql", opts)
}

func gormConfig(opts Options) *gorm.Config {
	level := gormlogger.Warn
	if opts.Debug {
		level = gormlogger.Info
	}
	return &gorm.Config{Logger: NewGormLogger(DefaultSlowQueryThreshold, level, opts.Metrics, opts.Logger)}
}

func newStore(db *gorm.DB, backend string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	if err := db.AutoMigrate(&AlertRecord{}); err != nil {
		return nil, dbError(err, "migrate", backend)
	}
	s := &Store{db: db, backend: backend, metrics: opts.Metrics, log: opts.Logger.With(logger.String("backend", backend))}
	s.log.Info("alert database ready")
	return s, nil
}

func dbError(err error, op, backend string) error {
	return serrors.New(err).
		Component("datastore").
		Category(serrors.CategoryDatabase).
		Context("operation", op).
		Context("backend", backend).
		Build()
}

// Save stores ev. Saving the same alert twice is an error.
func (s *Store) Save(ctx context.Context, ev *dispatch.AlertEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}
	rec, err := NewAlertRecord(ev)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save alert %s: %w", rec.AlertID, err)
	}
	return nil
}

// Query filters alert history. Zero fields match everything.
type Query struct {
	UserID string
	Threat threat.Type
	Since  time.Time
	Limit  int // defaults to 100, capped at MaxQueryLimit
}

func (s *Store) filtered(ctx context.Context, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&AlertRecord{})
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Threat != "" {
		tx = tx.Where("threat = ?", string(q.Threat))
	}
	if !q.Since.IsZero() {
		tx = tx.Where("timestamp >= ?", q.Since.UTC())
	}
	return tx
}

// Recent returns matching alerts, newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]dispatch.AlertEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	limit = min(limit, MaxQueryLimit)

	var recs []AlertRecord
	err := s.filtered(ctx, q).Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	out := make([]dispatch.AlertEvent, 0, len(recs))
	for i := range recs {
		ev, err := recs[i].Event()
		if err != nil {
			s.log.Warn("skipping undecodable alert record",
				logger.Uint64("id", uint64(recs[i].ID)),
				logger.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Count is the number of matching alerts.
func (s *Store) Count(ctx context.Context, q Query) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int64
	if err := s.filtered(ctx, q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

// CountByThreat groups matching alerts by threat type.
func (s *Store) CountByThreat(ctx context.Context, q Query) (map[threat.Type]int64, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var rows []struct {
		Threat string
		N      int64
	}
	err := s.filtered(ctx, q).Select("threat, COUNT(*) AS n").Group("threat").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count alerts by threat: %w", err)
	}
	out := make(map[threat.Type]int64, len(rows))
	for _, r := range rows {
		out[threat.Type(r.Threat)] = r.N
	}
	return out, nil
}

// Prune deletes alerts older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	res := s.db.WithContext(ctx).Where("timestamp < ?", before.UTC()).Delete(&AlertRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune alerts: %w", res.Error)
	}
	s.refreshGauge(ctx)
	return res.RowsAffected, nil
}

func (s *Store) refreshGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.Count(ctx, Query{}); err == nil {
		s.metrics.SetStoredAlerts(n)
	}
}

// Backend names the database engine.
func (s *Store) Backend() string { return s.backend }

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s.closed.Load() {
		return ErrClosed
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return sqlDB.Close()
}

// Sink returns a dispatch sink that saves every alert.
func (s *Store) Sink() dispatch.Sink {
	return dispatch.SinkFunc("datastore", func(ctx context.Context, ev dispatch.AlertEvent) error {
		if err := s.Save(ctx, &ev); err != nil {
			return err
		}
		s.refreshGauge(ctx)
		return nil
	})
}
