// Package arbiter picks the primary threat for a tracked person when several
// conditions hold at once.
package arbiter

import (
	"slices"

	"github.com/tphakala/safeguard-go/internal/threat"
)

// Primary returns the highest-priority type in active. Ties, which only occur
// for unknown types, go to the earlier entry. ok is false when active is empty.
func Primary(active []threat.Type) (primary threat.Type, ok bool) {
	for _, t := range active {
		if !ok || t.Priority() > primary.Priority() {
			primary, ok = t, true
		}
	}
	return primary, ok
}

// Rank returns active ordered from highest to lowest priority without
// modifying the input.
func Rank(active []threat.Type) []threat.Type {
	out := slices.Clone(active)
	slices.SortStableFunc(out, func(a, b threat.Type) int {
		return b.Priority() - a.Priority()
	})
	return out
}
