package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/safeguard-go/internal/threat"
)

func TestPrimary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		active []threat.Type
		want   threat.Type
		ok     bool
	}{
		{"none", nil, "", false},
		{"single", []threat.Type{threat.Sleeping}, threat.Sleeping, true},
		{"unconscious beats everything", []threat.Type{threat.Sleeping, threat.Falling, threat.Drowning, threat.Unconscious}, threat.Unconscious, true},
		{"drowning beats falling", []threat.Type{threat.Falling, threat.Drowning}, threat.Drowning, true},
		{"falling beats sleeping", []threat.Type{threat.Sleeping, threat.Falling}, threat.Falling, true},
		{"order does not matter", []threat.Type{threat.Unconscious, threat.Sleeping}, threat.Unconscious, true},
		{"unknown loses to known", []threat.Type{"smoke", threat.Sleeping}, threat.Sleeping, true},
		{"unknown ties keep first", []threat.Type{"smoke", "dust"}, "smoke", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Primary(tt.active)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRank(t *testing.T) {
	t.Parallel()

	in := []threat.Type{threat.Sleeping, threat.Fire, threat.Unconscious, threat.Falling}
	got := Rank(in)
	assert.Equal(t, []threat.Type{threat.Unconscious, threat.Falling, threat.Sleeping, threat.Fire}, got)
	assert.Equal(t, threat.Sleeping, in[0], "input untouched")
}
