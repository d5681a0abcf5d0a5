package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/safeguard-go/internal/threat"
)

func TestCooldownSuppressesWithinWindow(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	c := NewCooldown(3*time.Second, threat.EyesClosed)

	assert.True(t, c.Allow(threat.Fire, base))
	assert.False(t, c.Allow(threat.Fire, base.Add(2999*time.Millisecond)))
	assert.Equal(t, time.Millisecond, c.Remaining(threat.Fire, base.Add(2999*time.Millisecond)))
	assert.True(t, c.Allow(threat.Fire, base.Add(3*time.Second)), "boundary is inclusive")

	// Types are independent.
	assert.True(t, c.Allow(threat.Weapon, base.Add(3*time.Second)))
}

func TestCooldownEyesExempt(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	c := NewCooldown(3*time.Second, threat.EyesClosed)

	for i := range 10 {
		assert.True(t, c.Allow(threat.EyesClosed, base.Add(time.Duration(i)*33*time.Millisecond)))
	}
	assert.True(t, c.Exempt(threat.EyesClosed))
	assert.Zero(t, c.Remaining(threat.EyesClosed, base))

	strict := NewCooldown(3 * time.Second)
	assert.True(t, strict.Allow(threat.EyesClosed, base))
	assert.False(t, strict.Allow(threat.EyesClosed, base.Add(time.Second)))
}

func TestCooldownResetAndClear(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	c := NewCooldown(3 * time.Second)

	c.Allow(threat.Fire, base)
	c.Allow(threat.Falling, base)
	c.Reset(threat.Fire)
	assert.True(t, c.Allow(threat.Fire, base))
	assert.False(t, c.Allow(threat.Falling, base))

	c.Clear()
	assert.True(t, c.Allow(threat.Falling, base))
}
