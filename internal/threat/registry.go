package threat

import (
	"cmp"
	"slices"
	"time"
)

type key struct {
	scope Scope
	typ   Type
}

// Registry lazily holds exactly one Machine per (scope, type).
type Registry struct {
	thresholds    map[Type]time.Duration
	frameInterval time.Duration
	cooldown      time.Duration
	machines      map[key]*Machine
}

// NewRegistry creates a registry. thresholds applies to the global scope;
// per-entity machines always use a zero threshold because their evaluators
// debounce on their own.
func NewRegistry(thresholds map[Type]time.Duration, frameInterval time.Duration) *Registry {
	return &Registry{
		thresholds:    thresholds,
		frameInterval: frameInterval,
		cooldown:      DefaultCooldown,
		machines:      make(map[key]*Machine),
	}
}

// SetCooldown changes the COOLDOWN length for machines created afterwards.
func (r *Registry) SetCooldown(d time.Duration) { r.cooldown = d }

// Get returns the machine for (scope, t), creating it on first use.
func (r *Registry) Get(scope Scope, t Type) *Machine {
	k := key{scope: scope, typ: t}
	if m, ok := r.machines[k]; ok {
		return m
	}
	var threshold time.Duration
	if scope.IsGlobal() {
		threshold = r.thresholds[t]
	}
	m := NewMachine(t, scope, threshold, r.frameInterval)
	m.cooldown = r.cooldown
	r.machines[k] = m
	return m
}

// Lookup returns an existing machine without creating one.
func (r *Registry) Lookup(scope Scope, t Type) (*Machine, bool) {
	m, ok := r.machines[key{scope: scope, typ: t}]
	return m, ok
}

// ForgetEntity drops every machine of entity id and returns how many were removed.
func (r *Registry) ForgetEntity(id int) int {
	scope := EntityScope(id)
	removed := 0
	for k := range r.machines {
		if k.scope == scope {
			delete(r.machines, k)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int { return len(r.machines) }

// Machines returns every machine ordered by scope then priority, for reports.
func (r *Registry) Machines() []*Machine {
	out := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Machine) int {
		if a.Scope.global != b.Scope.global {
			if a.Scope.global {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Scope.entityID, b.Scope.entityID); c != 0 {
			return c
		}
		return cmp.Compare(b.Priority(), a.Priority())
	})
	return out
}

// Reset drops all machines.
func (r *Registry) Reset() {
	clear(r.machines)
}
