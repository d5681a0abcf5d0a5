package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	t.Setenv("SAFEGUARD_TEST_TOKEN", "secret123")
	t.Setenv("SAFEGUARD_TEST_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty", "", "", false},
		{"literal", "literal-value", "literal-value", false},
		{"variable", "${SAFEGUARD_TEST_TOKEN}", "secret123", false},
		{"embedded", "telegram://${SAFEGUARD_TEST_TOKEN}@telegram?chats=1", "telegram://secret123@telegram?chats=1", false},
		{"default unused", "${SAFEGUARD_TEST_TOKEN:-fallback}", "secret123", false},
		{"default used", "${SAFEGUARD_TEST_UNSET:-fallback}", "fallback", false},
		{"empty default", "${SAFEGUARD_TEST_UNSET:-}", "", false},
		{"empty variable", "${SAFEGUARD_TEST_EMPTY}", "", true},
		{"missing", "${SAFEGUARD_TEST_UNSET}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMissingEnvVar)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeSecret(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	got, err := ReadFile(writeSecret(t, "hunter2\n", 0o600))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	// Permissive files are read with a warning.
	got, err = ReadFile(writeSecret(t, " spaced \r\n", 0o644))
	require.NoError(t, err)
	assert.Equal(t, " spaced ", got)

	_, err = ReadFile("")
	require.ErrorIs(t, err, ErrEmptyPath)

	_, err = ReadFile(writeSecret(t, "\n", 0o600))
	require.ErrorIs(t, err, ErrEmptySecret)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadFile(t.TempDir())
	require.Error(t, err)
}

func TestReadFileTooLarge(t *testing.T) {
	t.Parallel()
	path := writeSecret(t, string(make([]byte, maxSecretFileSize+1)), 0o600)
	_, err := ReadFile(path)
	require.ErrorContains(t, err, "too large")
}

func TestResolveAll(t *testing.T) {
	t.Setenv("SAFEGUARD_TEST_REDIS", "redis-pw")

	file := writeSecret(t, "mqtt-pw\n", 0o600)
	mqtt := FilePrefix + file
	redis := "${SAFEGUARD_TEST_REDIS}"
	literal := "plain"
	empty := ""

	require.NoError(t, ResolveAll(map[string]*string{
		"mqtt.password":  &mqtt,
		"redis.password": &redis,
		"literal":        &literal,
		"empty":          &empty,
		"nil":            nil,
	}))
	assert.Equal(t, "mqtt-pw", mqtt)
	assert.Equal(t, "redis-pw", redis)
	assert.Equal(t, "plain", literal)
	assert.Empty(t, empty)

	bad := FilePrefix + filepath.Join(t.TempDir(), "missing")
	missing := "${SAFEGUARD_TEST_UNSET}"
	err := ResolveAll(map[string]*string{"a": &bad, "b": &missing})
	require.Error(t, err)
	assert.ErrorContains(t, err, "a: secret file")
	assert.ErrorContains(t, err, "b: missing required environment variable")
	assert.NotContains(t, err.Error(), "redis-pw")
}
