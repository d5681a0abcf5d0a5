package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", NewContext("", ""), UnknownValue, UnknownValue},
		{"release", NewContext("1.0.0", "2026-01-01"), "1.0.0", "2026-01-01"},
		{"pre-release tag", NewContext("1.0.0-beta.1", ""), "1.0.0-beta.1", UnknownValue},
		{"build metadata", NewContext("1.0.0+build.123", "2026-01-01"), "1.0.0+build.123", "2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.buildDate, tt.ctx.GetBuildDate())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "2.0.0 (built 2026-03-01)", NewContext("2.0.0", "2026-03-01").String())
	assert.Equal(t, "unknown (built unknown)", (*Context)(nil).String())
}

func TestCurrentImplementsBuildInfo(t *testing.T) {
	t.Parallel()
	var bi BuildInfo = Current()
	assert.NotEmpty(t, bi.GetVersion())
	assert.NotEmpty(t, bi.GetBuildDate())
}
