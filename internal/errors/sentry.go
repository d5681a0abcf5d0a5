package errors

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/safeguard-go/internal/privacy"
)

// SentryReporter forwards enhanced errors to Sentry.
type SentryReporter struct {
	enabled bool
}

// InitSentry initializes the Sentry SDK and returns a reporter for it. An empty
// dsn yields a disabled reporter and leaves the SDK untouched.
func InitSentry(dsn, release, environment string) (*SentryReporter, error) {
	if dsn == "" {
		return &SentryReporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		Environment:      environment,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return &SentryReporter{enabled: true}, nil
}

// NewSentryReporter returns a reporter bound to an already initialized SDK.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr != nil && sr.enabled
}

// ReportError sends ee once. Messages are scrubbed of URL query strings and
// credentials before leaving the process.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.IsEnabled() || ee.IsReported() {
		return
	}

	message := privacy.ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.Context {
			if s, ok := value.(string); ok {
				value = privacy.ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := levelFor(ee)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// Flush waits for queued events to be delivered.
func (sr *SentryReporter) Flush(timeout time.Duration) bool {
	if !sr.IsEnabled() {
		return true
	}
	return sentry.Flush(timeout)
}

func errorTitle(ee *EnhancedError) string {
	var parts []string
	if ee.Component != "" && ee.Component != ComponentUnknown {
		parts = append(parts, titleCase(ee.Component))
	}
	parts = append(parts, titleCase(strings.ReplaceAll(string(ee.Category), "-", " "))+" Error")
	if op, ok := ee.Context["operation"].(string); ok && op != "" {
		words := strings.Fields(strings.ReplaceAll(op, "_", " "))
		for i, w := range words {
			words[i] = titleCase(w)
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func levelFor(ee *EnhancedError) sentry.Level {
	switch ee.Priority {
	case PriorityCritical:
		return sentry.LevelFatal
	case PriorityLow:
		return sentry.LevelInfo
	}
	switch ee.Category {
	case CategoryNetwork, CategoryNotification, CategoryMQTTPublish, CategoryTimeout, CategoryPerception, CategoryTracking:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}
