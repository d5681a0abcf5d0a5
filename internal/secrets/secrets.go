// Package secrets resolves credential settings from environment variables and
// mounted secret files (Docker or Kubernetes secrets).
//
// Secret values are never logged.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/safeguard-go/internal/logger"
)

// FilePrefix marks a setting whose value is read from a file.
const FilePrefix = "file:"

// maxSecretFileSize bounds secret file reads; secrets are tokens and
// passwords, not documents.
const maxSecretFileSize = 64 * 1024

var (
	ErrEmptyPath     = errors.New("secret file path is empty")
	ErrEmptySecret   = errors.New("secret file is empty")
	ErrMissingEnvVar = errors.New("missing required environment variable")
)

// ExpandString expands ${VAR} and ${VAR:-default} references in s. A
// reference without default to an unset or empty variable is an error.
func ExpandString(s string) (string, error) {
	if s == "" || !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingEnvVar, strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret file, dropping trailing newlines. Files readable by
// group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("secret file %s: %w", clean, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", clean)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, clean)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", clean, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, clean)
	}
	return secret, nil
}

// Resolve returns the secret a setting refers to: the contents of the file
// for "file:<path>", otherwise value with environment references expanded.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, FilePrefix); ok {
		return ReadFile(strings.TrimSpace(path))
	}
	return ExpandString(value)
}

// ResolveAll resolves every named field in place and reports all failures
// together, naming the field but never its value.
func ResolveAll(fields map[string]*string) error {
	var errs []error
	for name, ptr := range fields {
		if ptr == nil || *ptr == "" {
			continue
		}
		resolved, err := Resolve(*ptr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*ptr = resolved
	}
	return errors.Join(errs...)
}
