package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/safeguard-go/internal/observability"
	"github.com/tphakala/safeguard-go/internal/testutil"
)

func TestManagerSessionLimit(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, func(o *Options) { o.Settings.Intake.MaxSessions = 2 })

	_, err := m.Open(t.Context(), "u1")
	require.NoError(t, err)
	_, err = m.Open(t.Context(), "u2")
	require.NoError(t, err)

	_, err = m.Open(t.Context(), "u3")
	require.ErrorIs(t, err, ErrTooManySessions)

	// Reconnecting an existing user does not count against the limit.
	_, err = m.Open(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, m.Users())
}

func TestManagerReplacesUserSession(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, noInterval)

	first, err := m.Open(t.Context(), "u1")
	require.NoError(t, err)
	second, err := m.Open(t.Context(), "u1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Same(t, second, got, "closing the replaced session keeps the new one")
	assert.Equal(t, 1, m.Len())

	// Sessions are independent: the new one starts with fresh state.
	r, err := second.Process(frame(1, testutil.UprightPose(100, 100)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Frame)
}

func TestManagerCloseAndErrors(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	_, err := m.Open(t.Context(), "")
	require.ErrorIs(t, err, ErrMissingUser)
	require.ErrorIs(t, m.Close("ghost"), ErrSessionNotFound)

	s, err := m.Open(t.Context(), "u1")
	require.NoError(t, err)
	require.NoError(t, m.Close("u1"))
	assert.True(t, s.Closed())
	assert.Zero(t, m.Len())
}

func TestManagerCloseAll(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	a, err := m.Open(t.Context(), "a")
	require.NoError(t, err)
	b, err := m.Open(t.Context(), "b")
	require.NoError(t, err)

	m.CloseAll()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Zero(t, m.Len())
}

func TestManagerRecordsSessionMetrics(t *testing.T) {
	t.Parallel()
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	m, _ := newTestManager(t, func(o *Options) {
		o.Metrics = metrics
		o.Settings.Intake.MaxSessions = 1
	})

	_, err = m.Open(t.Context(), "u1")
	require.NoError(t, err)
	_, err = m.Open(t.Context(), "u2")
	require.Error(t, err)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if g := metric.GetGauge(); g != nil {
				values[f.GetName()] = g.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				values[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.InDelta(t, 1.0, values["safeguard_sessions_active"], 0)
	assert.InDelta(t, 1.0, values["safeguard_sessions_rejected_total"], 0)
}
