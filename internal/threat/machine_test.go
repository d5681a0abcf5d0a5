package threat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fps = 30

var (
	base          = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	frameInterval = time.Second / fps
)

// frameAt is the timestamp of frame n (1-based) of a 30 fps stream.
func frameAt(n int) time.Time {
	return base.Add(time.Duration(n) * time.Second / fps)
}

func TestMachineAlertsOnNinetiethActiveFrame(t *testing.T) {
	t.Parallel()

	m := NewMachine(Sleeping, GlobalScope(), 3*time.Second, frameInterval)
	alerts := 0
	firstAlert := 0
	for n := 1; n <= 200; n++ {
		if m.Update(true, frameAt(n)) {
			alerts++
			if firstAlert == 0 {
				firstAlert = n
			}
		}
	}

	assert.Equal(t, 90, firstAlert)
	assert.Equal(t, 1, alerts, "one alert per incident")
	assert.Equal(t, StateAlerted, m.State())
	assert.True(t, m.AlertDispatched())
}

func TestMachineZeroThresholdConfirmsOnFirstFrame(t *testing.T) {
	t.Parallel()

	m := NewMachine(Weapon, GlobalScope(), 0, frameInterval)
	require.True(t, m.Update(true, frameAt(1)))
	assert.Equal(t, StateConfirmed, m.State())
	assert.False(t, m.Update(true, frameAt(2)))
	assert.Equal(t, StateAlerted, m.State())
}

func TestMachineInterruptedObservationRestarts(t *testing.T) {
	t.Parallel()

	m := NewMachine(EyesClosed, GlobalScope(), time.Second, frameInterval)
	n := 0
	for range 29 {
		n++
		require.False(t, m.Update(true, frameAt(n)))
	}
	n++
	require.False(t, m.Update(false, frameAt(n)))
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, m.Elapsed(frameAt(n)))

	// A fresh run needs the full 30 frames again.
	fired := 0
	for i := 1; i <= 30; i++ {
		n++
		if m.Update(true, frameAt(n)) {
			fired = i
		}
	}
	assert.Equal(t, 30, fired)
}

func TestMachineCooldownLifecycle(t *testing.T) {
	t.Parallel()

	m := NewMachine(Falling, EntityScope(1), 0, frameInterval)
	require.True(t, m.Update(true, frameAt(1)))
	require.False(t, m.Update(true, frameAt(2)))
	require.Equal(t, StateAlerted, m.State())

	require.False(t, m.Update(false, frameAt(3)))
	require.Equal(t, StateCooldown, m.State())

	// Active input during cooldown neither alerts nor ends cooldown early.
	cooldownStart := frameAt(3)
	for n := 4; frameAt(n).Sub(cooldownStart) < DefaultCooldown; n++ {
		assert.False(t, m.Update(true, frameAt(n)))
		assert.Equal(t, StateCooldown, m.State(), "frame %d", n)
	}

	assert.False(t, m.Update(true, cooldownStart.Add(DefaultCooldown)))
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.AlertDispatched())
	assert.Zero(t, m.Elapsed(cooldownStart.Add(DefaultCooldown)))

	// A new incident alerts again.
	assert.True(t, m.Update(true, cooldownStart.Add(DefaultCooldown+frameInterval)))
}

func TestMachineConfirmedResolvesWithoutSecondAlert(t *testing.T) {
	t.Parallel()

	m := NewMachine(Drowning, EntityScope(0), 0, frameInterval)
	require.True(t, m.Update(true, frameAt(1)))
	// Condition clears on the frame after confirmation.
	assert.False(t, m.Update(false, frameAt(2)))
	assert.Equal(t, StateAlerted, m.State())
	assert.False(t, m.Update(false, frameAt(3)))
	assert.Equal(t, StateCooldown, m.State())
}

func TestMachineElapsedAndReset(t *testing.T) {
	t.Parallel()

	m := NewMachine(Sleeping, GlobalScope(), 3*time.Second, frameInterval)
	m.Update(true, frameAt(1))
	m.Update(true, frameAt(15))
	assert.Equal(t, frameAt(15).Sub(base), m.Elapsed(frameAt(15)))
	assert.True(t, m.ConfirmedAt().IsZero())

	m.Reset()
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, m.Elapsed(frameAt(16)))
}

func TestStateNames(t *testing.T) {
	t.Parallel()

	names := map[State]string{
		StateIdle:      "idle",
		StateObserving: "observing",
		StateConfirmed: "confirmed",
		StateAlerted:   "alerted",
		StateCooldown:  "cooldown",
		State(42):      "unknown",
	}
	for s, want := range names {
		text, err := s.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(text))
	}
}

func TestStateUnmarshalText(t *testing.T) {
	t.Parallel()

	for s := StateIdle; s <= StateCooldown; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}

	var s State
	require.Error(t, s.UnmarshalText([]byte("unknown")))
}
