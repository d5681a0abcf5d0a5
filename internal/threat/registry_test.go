package threat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOneMachinePerScopeAndType(t *testing.T) {
	t.Parallel()

	r := NewRegistry(map[Type]time.Duration{EyesClosed: time.Second, Sleeping: 3 * time.Second}, frameInterval)

	global := r.Get(GlobalScope(), EyesClosed)
	assert.Same(t, global, r.Get(GlobalScope(), EyesClosed))
	assert.Equal(t, time.Second, global.Threshold)

	entity := r.Get(EntityScope(3), Sleeping)
	assert.Same(t, entity, r.Get(EntityScope(3), Sleeping))
	assert.Zero(t, entity.Threshold, "entity machines rely on evaluator debouncing")
	assert.NotSame(t, entity, r.Get(EntityScope(4), Sleeping))
	assert.Equal(t, 3, r.Len())

	_, ok := r.Lookup(EntityScope(9), Sleeping)
	assert.False(t, ok)
	assert.Equal(t, 3, r.Len(), "lookup does not create")
}

func TestRegistryForgetEntity(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, frameInterval)
	for _, typ := range EntityTypes {
		r.Get(EntityScope(1), typ)
		r.Get(EntityScope(2), typ)
	}
	r.Get(GlobalScope(), Weapon)

	assert.Equal(t, len(EntityTypes), r.ForgetEntity(1))
	assert.Equal(t, len(EntityTypes)+1, r.Len())
	_, ok := r.Lookup(EntityScope(1), Falling)
	assert.False(t, ok)
	assert.Zero(t, r.ForgetEntity(1))

	r.Reset()
	assert.Zero(t, r.Len())
}

func TestRegistryMachinesOrdering(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, frameInterval)
	r.Get(EntityScope(2), Sleeping)
	r.Get(EntityScope(1), Sleeping)
	r.Get(EntityScope(1), Unconscious)
	r.Get(GlobalScope(), Fire)

	ms := r.Machines()
	require.Len(t, ms, 4)
	assert.True(t, ms[0].Scope.IsGlobal())
	assert.Equal(t, Unconscious, ms[1].Type)
	assert.Equal(t, Sleeping, ms[2].Type)
	id, ok := ms[3].Scope.EntityID()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestRegistryCooldownApplies(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, frameInterval)
	r.SetCooldown(time.Second)
	m := r.Get(EntityScope(0), Falling)

	require.True(t, m.Update(true, frameAt(1)))
	m.Update(false, frameAt(2))
	m.Update(false, frameAt(3))
	require.Equal(t, StateCooldown, m.State())
	m.Update(false, frameAt(3).Add(time.Second))
	assert.Equal(t, StateIdle, m.State())
}

func TestPrioritiesAndSeverities(t *testing.T) {
	t.Parallel()

	ladder := []Type{Unconscious, Drowning, Falling, Sleeping, EyesClosed, Weapon, Fire, Sparks}
	for i := 1; i < len(ladder); i++ {
		assert.Greater(t, ladder[i-1].Priority(), ladder[i].Priority())
	}

	assert.Equal(t, SeverityCritical, Weapon.Severity())
	assert.Equal(t, SeverityCritical, Unconscious.Severity())
	assert.Equal(t, SeverityHigh, Falling.Severity())
	assert.Equal(t, SeverityHigh, EyesClosed.Severity())
	assert.Equal(t, SeverityMedium, Sleeping.Severity())
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())

	typ, err := ParseType("eyes_closed")
	require.NoError(t, err)
	assert.Equal(t, EyesClosed, typ)
	_, err = ParseType("meteor")
	assert.Error(t, err)

	assert.Equal(t, "person_7", EntityScope(7).String())
	assert.Equal(t, "global", GlobalScope().String())
}
