package datastore

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability"
	"github.com/tphakala/safeguard-go/internal/threat"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite("file::memory:", Options{Logger: logger.NewDiscardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(user string, tt threat.Type, at time.Time, entity *int) dispatch.AlertEvent {
	alarm := conf.Defaults().Alarm
	return dispatch.AlertEvent{
		ID:        uuid.New(),
		Timestamp: at,
		Session:   "s-" + user,
		UserID:    user,
		Threat:    tt,
		EntityID:  entity,
		Severity:  tt.Severity(),
		Message:   fmt.Sprintf("%s at %s", tt, at.Format(time.TimeOnly)),
		Pattern:   dispatch.PatternFor(tt, tt.Severity(), &alarm),
	}
}

func TestStoreSaveAndRecent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := t.Context()

	id := 4
	first := event("u1", threat.Sleeping, base, &id)
	second := event("u1", threat.Fire, base.Add(time.Second), nil)
	other := event("u2", threat.Weapon, base.Add(2*time.Second), nil)
	for _, ev := range []dispatch.AlertEvent{first, second, other} {
		require.NoError(t, s.Save(ctx, &ev))
	}

	got, err := s.Recent(ctx, Query{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest first")
	assert.Equal(t, first.ID, got[1].ID)

	restored := got[1]
	require.NotNil(t, restored.EntityID)
	assert.Equal(t, 4, *restored.EntityID)
	assert.Equal(t, threat.SeverityMedium, restored.Severity)
	assert.Equal(t, first.Message, restored.Message)
	assert.Equal(t, first.Pattern, restored.Pattern)
	assert.True(t, first.Timestamp.Equal(restored.Timestamp))
	assert.Nil(t, got[0].EntityID)
}

func TestStoreRejectsDuplicateAlert(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ev := event("u1", threat.Fire, base, nil)

	require.NoError(t, s.Save(t.Context(), &ev))
	require.Error(t, s.Save(t.Context(), &ev))
}

func TestStoreFiltersAndCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := t.Context()

	for i := range 5 {
		ev := event("u1", threat.EyesClosed, base.Add(time.Duration(i)*time.Second), nil)
		require.NoError(t, s.Save(ctx, &ev))
	}
	for i := range 2 {
		ev := event("u1", threat.Falling, base.Add(time.Duration(10+i)*time.Second), nil)
		require.NoError(t, s.Save(ctx, &ev))
	}

	n, err := s.Count(ctx, Query{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = s.Count(ctx, Query{UserID: "u1", Threat: threat.Falling})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Count(ctx, Query{Since: base.Add(3 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := s.Recent(ctx, Query{UserID: "u1", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	counts, err := s.CountByThreat(ctx, Query{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, map[threat.Type]int64{threat.EyesClosed: 5, threat.Falling: 2}, counts)
}

func TestStorePrune(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := t.Context()

	old := event("u1", threat.Fire, base.Add(-48*time.Hour), nil)
	recent := event("u1", threat.Fire, base, nil)
	require.NoError(t, s.Save(ctx, &old))
	require.NoError(t, s.Save(ctx, &recent))

	removed, err := s.Prune(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.ID, got[0].ID)
}

func TestStoreSinkUpdatesGauge(t *testing.T) {
	t.Parallel()
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s, err := OpenSQLite("file::memory:", Options{Metrics: m.Datastore, Logger: logger.NewDiscardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	sink := s.Sink()
	assert.Equal(t, "datastore", sink.Name())
	require.NoError(t, sink.Deliver(t.Context(), event("u1", threat.Drowning, base, nil)))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var stored float64
	for _, f := range families {
		if f.GetName() == "datastore_alerts_stored" {
			stored = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.InDelta(t, 1.0, stored, 0)
}

func TestStoreClosed(t *testing.T) {
	t.Parallel()
	s, err := OpenSQLite(":memory:", Options{Logger: logger.NewDiscardLogger()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), ErrClosed)

	ev := event("u1", threat.Fire, base, nil)
	require.ErrorIs(t, s.Save(t.Context(), &ev), ErrClosed)
	_, err = s.Recent(t.Context(), Query{})
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpenFromSettings(t *testing.T) {
	t.Parallel()
	var out conf.OutputSettings
	_, err := Open(&out, Options{})
	require.ErrorIs(t, err, ErrNotConfigured)

	out.SQLite.Enabled = true
	out.SQLite.Path = filepath.Join(t.TempDir(), "data", "alerts.db")
	s, err := Open(&out, Options{Logger: logger.NewDiscardLogger()})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Backend())
	require.NoError(t, s.Close())
	assert.FileExists(t, out.SQLite.Path)
}

func TestParseSQLOperation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "select", parseSQLOperation("SELECT * FROM `alerts`"))
	assert.Equal(t, "insert", parseSQLOperation("  insert into alerts"))
	assert.Equal(t, "unknown", parseSQLOperation("WITH x AS (SELECT 1) SELECT 1"))
}
