// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateThreatSettings(&s.Threats) },
		func(s *Settings) error { return validateTrackerSettings(&s.Tracker) },
		func(s *Settings) error { return validateAlarmSettings(&s.Alarm, &s.Intake) },
		func(s *Settings) error { return validateDeliverySettings(&s.Delivery) },
		func(s *Settings) error { return validateNotificationSettings(&s.Notification) },
		func(s *Settings) error { return validateOutputSettings(s) },
		func(s *Settings) error { return validateWebServerSettings(&s.WebServer) },
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func checkUnit(errs *[]string, name string, value float64) {
	if value < 0 || value > 1 {
		*errs = append(*errs, fmt.Sprintf("%s must be between 0 and 1, got %v", name, value))
	}
}

func checkPositive(errs *[]string, name string, value float64) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be greater than 0, got %v", name, value))
	}
}

func checkDuration(errs *[]string, name string, d time.Duration) {
	if d < 0 {
		*errs = append(*errs, fmt.Sprintf("%s must not be negative, got %s", name, d))
	}
}

func joined(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(section + " settings errors: " + strings.Join(errs, ", "))
}

// validateThreatSettings validates evaluator constants and thresholds
func validateThreatSettings(t *ThreatSettings) error {
	var errs []string

	checkPositive(&errs, "threats.fps", t.FPS)
	checkUnit(&errs, "threats.confidence", t.Confidence)
	checkUnit(&errs, "threats.keypointconfidence", t.KeypointConfidence)
	checkPositive(&errs, "threats.referencewidth", t.ReferenceWidth)
	if t.HistorySize < 2 {
		errs = append(errs, fmt.Sprintf("threats.historysize must be at least 2, got %d", t.HistorySize))
	}

	checkDuration(&errs, "threats.sleeping.duration", t.Sleeping.Duration)
	checkDuration(&errs, "threats.falling.duration", t.Falling.Duration)
	checkDuration(&errs, "threats.unconscious.duration", t.Unconscious.Duration)
	checkDuration(&errs, "threats.drowning.duration", t.Drowning.Duration)
	checkDuration(&errs, "threats.eyes.duration", t.Eyes.Duration)
	checkDuration(&errs, "threats.weapon.duration", t.Weapon.Duration)
	checkDuration(&errs, "threats.fire.duration", t.Fire.Duration)

	checkUnit(&errs, "threats.unconscious.groundratio", t.Unconscious.GroundRatio)
	checkUnit(&errs, "threats.weapon.confidence", t.Weapon.Confidence)
	for name, angle := range map[string]float64{
		"threats.sleeping.headangle":         t.Sleeping.HeadAngle,
		"threats.falling.anglethreshold":     t.Falling.AngleThreshold,
		"threats.unconscious.anglethreshold": t.Unconscious.AngleThreshold,
	} {
		if angle < 0 || angle > 180 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 180 degrees, got %v", name, angle))
		}
	}

	if t.Eyes.ClosedThreshold <= 0 || t.Eyes.OpenThreshold <= t.Eyes.ClosedThreshold {
		errs = append(errs, fmt.Sprintf("threats.eyes thresholds must satisfy 0 < closed < open, got closed=%v open=%v",
			t.Eyes.ClosedThreshold, t.Eyes.OpenThreshold))
	}
	if len(t.Weapon.Classes) == 0 {
		errs = append(errs, "threats.weapon.classes must not be empty")
	}
	if t.Fire.MinArea < 0 {
		errs = append(errs, fmt.Sprintf("threats.fire.minarea must not be negative, got %v", t.Fire.MinArea))
	}

	return joined("Threat", errs)
}

func validateTrackerSettings(t *TrackerSettings) error {
	var errs []string
	checkPositive(&errs, "tracker.matchdistance", t.MatchDistance)
	if t.StaleFrames == 0 {
		errs = append(errs, "tracker.staleframes must be at least 1")
	}
	return joined("Tracker", errs)
}

func validateAlarmSettings(a *AlarmSettings, in *IntakeSettings) error {
	var errs []string
	checkDuration(&errs, "alarm.cooldown", a.Cooldown)
	checkDuration(&errs, "alarm.duration", a.Duration)
	checkDuration(&errs, "intake.mininterval", in.MinInterval)
	if a.Frequency < 20 || a.Frequency > 20000 {
		errs = append(errs, fmt.Sprintf("alarm.frequency must be between 20 and 20000 Hz, got %d", a.Frequency))
	}
	if a.LogSize < 1 {
		errs = append(errs, "alarm.logsize must be at least 1")
	}
	if in.MaxSessions < 0 {
		errs = append(errs, "intake.maxsessions must not be negative")
	}
	return joined("Alarm", errs)
}

func validateDeliverySettings(d *DeliverySettings) error {
	var errs []string
	if d.Workers < 1 {
		errs = append(errs, fmt.Sprintf("delivery.workers must be at least 1, got %d", d.Workers))
	}
	if d.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("delivery.queuesize must be at least 1, got %d", d.QueueSize))
	}
	if d.MaxRetries < 0 {
		errs = append(errs, "delivery.maxretries must not be negative")
	}
	if d.Multiplier < 1 {
		errs = append(errs, fmt.Sprintf("delivery.multiplier must be at least 1, got %v", d.Multiplier))
	}
	checkDuration(&errs, "delivery.initialdelay", d.InitialDelay)
	checkDuration(&errs, "delivery.maxdelay", d.MaxDelay)
	checkDuration(&errs, "delivery.timeout", d.Timeout)
	return joined("Delivery", errs)
}

func validateNotificationSettings(n *NotificationSettings) error {
	var errs []string
	if n.Email.Enabled && !strings.HasPrefix(n.Email.URL, "smtp://") {
		errs = append(errs, "notification.email.url must be an smtp:// URL when email is enabled")
	}
	if n.RateLimit.Enabled && (n.RateLimit.EventsPerMinute < 1 || n.RateLimit.Burst < 1) {
		errs = append(errs, "notification.ratelimit eventsperminute and burst must be at least 1")
	}
	if n.CircuitBreaker.MaxFailures < 1 {
		errs = append(errs, "notification.circuitbreaker.maxfailures must be at least 1")
	}
	return joined("Notification", errs)
}

func validateOutputSettings(s *Settings) error {
	var errs []string
	if s.Output.SQLite.Enabled && s.Output.MySQL.Enabled {
		errs = append(errs, "only one of output.sqlite and output.mysql can be enabled")
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path is required")
	}
	if s.Output.MySQL.Enabled && (s.Output.MySQL.Host == "" || s.Output.MySQL.Database == "") {
		errs = append(errs, "output.mysql host and database are required")
	}
	if s.MQTT.Enabled && (s.MQTT.Broker == "" || s.MQTT.Topic == "") {
		errs = append(errs, "mqtt broker and topic are required when mqtt is enabled")
	}
	if s.Redis.Enabled && (s.Redis.Addr == "" || s.Redis.Stream == "") {
		errs = append(errs, "redis addr and stream are required when redis is enabled")
	}
	return joined("Output", errs)
}

func validateWebServerSettings(w *WebServerSettings) error {
	if !w.Enabled {
		return nil
	}
	var errs []string
	port, err := strconv.Atoi(w.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("webserver.port must be a number between 1 and 65535, got %q", w.Port))
	}
	if w.ReadLimit <= 0 {
		errs = append(errs, "webserver.readlimit must be greater than 0")
	}
	return joined("WebServer", errs)
}
