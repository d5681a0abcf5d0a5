package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/threat"
)

func TestPatternFor(t *testing.T) {
	t.Parallel()
	alarm := conf.AlarmSettings{Frequency: 1800, Duration: 300 * time.Millisecond}

	triple := Pattern{Kind: PatternTriple, Frequency: 2500, Pulse: 200 * time.Millisecond, Repeats: 3, Gap: 100 * time.Millisecond}
	tests := []struct {
		name     string
		threat   threat.Type
		severity threat.Severity
		want     Pattern
	}{
		{"weapon", threat.Weapon, threat.SeverityCritical, triple},
		{"fire", threat.Fire, threat.SeverityCritical, triple},
		{"unconscious", threat.Unconscious, threat.SeverityCritical, triple},
		{"drowning even if downgraded", threat.Drowning, threat.SeverityLow, triple},
		{"critical falling", threat.Falling, threat.SeverityCritical, triple},
		{"falling", threat.Falling, threat.SeverityHigh, Pattern{Kind: PatternSingle, Frequency: 2000, Pulse: 800 * time.Millisecond, Repeats: 1}},
		{"sleeping", threat.Sleeping, threat.SeverityMedium, Pattern{Kind: PatternSingle, Frequency: 1500, Pulse: 500 * time.Millisecond, Repeats: 1}},
		{"eyes closed", threat.EyesClosed, threat.SeverityHigh, Pattern{Kind: PatternContinuous, Frequency: 3000, Pulse: 800 * time.Millisecond, Repeats: 1}},
		{"other uses alarm settings", threat.Sparks, threat.SeverityLow, Pattern{Kind: PatternSingle, Frequency: 1800, Pulse: 300 * time.Millisecond, Repeats: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PatternFor(tt.threat, tt.severity, &alarm))
		})
	}

	def := PatternFor(threat.Sparks, threat.SeverityLow, nil)
	assert.Equal(t, 2500, def.Frequency)
	assert.Equal(t, 500*time.Millisecond, def.Pulse)
}

func TestPatternTotalAndJSON(t *testing.T) {
	t.Parallel()

	p := PatternFor(threat.Fire, threat.SeverityCritical, nil)
	assert.Equal(t, 800*time.Millisecond, p.Total())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pattern":"triple","frequency":2500,"duration":200,"repeats":3,"gap":100}`, string(data))

	var back Pattern
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}
