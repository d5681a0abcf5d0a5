package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu       sync.Mutex
	enabled  bool
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
}

func (r *recordingReporter) IsEnabled() bool { return r.enabled }

func TestBuilderSetsFields(t *testing.T) {
	base := NewStd("smtp dial failed")
	ee := New(base).
		Component("notification").
		Category(CategoryNotification).
		Priority(PriorityHigh).
		Context("provider", "email").
		Build()

	assert.Equal(t, "notification", ee.Component)
	assert.Equal(t, CategoryNotification, ee.Category)
	assert.Equal(t, PriorityHigh, ee.Priority)
	assert.Equal(t, "email", ee.GetContext()["provider"])
	assert.Equal(t, "smtp dial failed", ee.Error())
	assert.True(t, Is(ee, base))
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderDefaults(t *testing.T) {
	ee := Newf("frame %d malformed", 7).Build()
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)

	ee = New(nil).Priority("bogus").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
	assert.Equal(t, "unknown error", ee.Error())
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	inner := New(NewStd("negative duration")).Category(CategoryValidation).Build()
	outer := New(fmt.Errorf("load settings: %w", inner)).Build()

	assert.Equal(t, CategoryValidation, outer.Category)
	assert.True(t, IsCategory(outer, CategoryValidation))
	assert.False(t, IsCategory(outer, CategoryDatabase))
}

func TestTelemetryReporting(t *testing.T) {
	reporter := &recordingReporter{enabled: true}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("publish failed")).Category(CategoryMQTTPublish).Build()
	require.Len(t, reporter.reported, 1)
	assert.Equal(t, CategoryMQTTPublish, reporter.reported[0].Category)

	SetTelemetryReporter(&recordingReporter{enabled: false})
	New(NewStd("ignored")).Build()
	assert.Len(t, reporter.reported, 1)
}

func TestErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "save_alert").
		Build()
	assert.Equal(t, "Datastore Database Error Save Alert", errorTitle(ee))
}
