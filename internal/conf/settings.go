// conf/settings.go configuration structures

package conf

import (
	"math"
	"time"

	"github.com/tphakala/safeguard-go/internal/logger"
)

// Settings contains all configuration options for the service.
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug mode

	Main struct {
		Name string               `yaml:"name"` // name reported by /health
		Log  logger.LoggingConfig `yaml:"log"`
	} `yaml:"main"`

	Threats      ThreatSettings       `yaml:"threats"`
	Tracker      TrackerSettings      `yaml:"tracker"`
	Alarm        AlarmSettings        `yaml:"alarm"`
	Intake       IntakeSettings       `yaml:"intake"`
	Delivery     DeliverySettings     `yaml:"delivery"`
	Notification NotificationSettings `yaml:"notification"`
	MQTT         MQTTSettings         `yaml:"mqtt"`
	Redis        RedisSettings        `yaml:"redis"`
	Output       OutputSettings       `yaml:"output"`
	WebServer    WebServerSettings    `yaml:"webserver"`
	Telemetry    TelemetrySettings    `yaml:"telemetry"`
}

// ThreatSettings holds evaluator constants and temporal thresholds.
type ThreatSettings struct {
	FPS                float64 `yaml:"fps"`                // nominal frame rate used to convert durations to frames
	Confidence         float64 `yaml:"confidence"`         // minimum pose confidence to track a person
	KeypointConfidence float64 `yaml:"keypointconfidence"` // minimum keypoint confidence for geometry
	HistorySize        int     `yaml:"historysize"`        // keypoint frames kept per track
	ReferenceWidth     float64 `yaml:"referencewidth"`     // pixel width used to normalize motion

	Sleeping    SleepingSettings    `yaml:"sleeping"`
	Falling     FallingSettings     `yaml:"falling"`
	Unconscious UnconsciousSettings `yaml:"unconscious"`
	Drowning    DrowningSettings    `yaml:"drowning"`
	Eyes        EyesSettings        `yaml:"eyes"`
	Weapon      WeaponSettings      `yaml:"weapon"`
	Fire        FireSettings        `yaml:"fire"`
}

type SleepingSettings struct {
	MovementThreshold float64       `yaml:"movementthreshold"`
	HeadAngle         float64       `yaml:"headangle"` // degrees
	Duration          time.Duration `yaml:"duration"`
}

type FallingSettings struct {
	SpeedThreshold float64       `yaml:"speedthreshold"`
	AngleThreshold float64       `yaml:"anglethreshold"`
	Duration       time.Duration `yaml:"duration"` // kept for config compatibility, falls are instantaneous
}

type UnconsciousSettings struct {
	GroundRatio       float64       `yaml:"groundratio"` // bbox bottom as a fraction of frame height
	AngleThreshold    float64       `yaml:"anglethreshold"`
	MovementThreshold float64       `yaml:"movementthreshold"`
	Duration          time.Duration `yaml:"duration"`
}

type DrowningSettings struct {
	MovementThreshold float64       `yaml:"movementthreshold"`
	VerticalRatio     float64       `yaml:"verticalratio"`
	Duration          time.Duration `yaml:"duration"`
}

// EyesSettings configures the eye aspect ratio hysteresis.
type EyesSettings struct {
	ClosedThreshold float64       `yaml:"closedthreshold"` // EAR below which open eyes become closed
	OpenThreshold   float64       `yaml:"openthreshold"`   // EAR at or above which closed eyes reopen
	PitchOverride   float64       `yaml:"pitchoverride"`   // head pitch above which eyes are treated as open
	Duration        time.Duration `yaml:"duration"`
}

type WeaponSettings struct {
	Classes    []string      `yaml:"classes"`
	Confidence float64       `yaml:"confidence"`
	Duration   time.Duration `yaml:"duration"`
}

type FireSettings struct {
	Enabled  bool          `yaml:"enabled"`
	MinArea  float64       `yaml:"minarea"`
	Duration time.Duration `yaml:"duration"`
}

// TrackerSettings configures nearest-center entity association.
type TrackerSettings struct {
	MatchDistance float64 `yaml:"matchdistance"` // pixels
	StaleFrames   uint64  `yaml:"staleframes"`
}

// AlarmSettings configures alert dispatch and audio patterns.
type AlarmSettings struct {
	Enabled    bool          `yaml:"enabled"`
	Cooldown   time.Duration `yaml:"cooldown"`   // per threat type
	Frequency  int           `yaml:"frequency"`  // default beep frequency in Hz
	Duration   time.Duration `yaml:"duration"`   // default beep duration
	EyesExempt bool          `yaml:"eyesexempt"` // eyes_closed bypasses the cooldown
	LogSize    int           `yaml:"logsize"`    // alerts kept per session
}

// IntakeSettings configures frame admission per session.
type IntakeSettings struct {
	MinInterval time.Duration `yaml:"mininterval"`
	MaxSessions int           `yaml:"maxsessions"`
}

// DeliverySettings configures the bounded delivery worker pool.
type DeliverySettings struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queuesize"`
	MaxRetries   int           `yaml:"maxretries"`
	InitialDelay time.Duration `yaml:"initialdelay"`
	MaxDelay     time.Duration `yaml:"maxdelay"`
	Multiplier   float64       `yaml:"multiplier"`
	Timeout      time.Duration `yaml:"timeout"` // per delivery attempt
}

// NotificationSettings configures push and email notification.
type NotificationSettings struct {
	Enabled bool     `yaml:"enabled"`
	URLs    []string `yaml:"urls"` // shoutrrr service URLs

	Email struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"` // smtp:// shoutrrr URL; the recipient is taken from user preferences
	} `yaml:"email"`

	RateLimit struct {
		Enabled         bool `yaml:"enabled"`
		EventsPerMinute int  `yaml:"eventsperminute"`
		Burst           int  `yaml:"burst"`
	} `yaml:"ratelimit"`

	CircuitBreaker struct {
		MaxFailures int           `yaml:"maxfailures"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"circuitbreaker"`
}

// MQTTSettings configures the MQTT alert publisher.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientid"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// RedisSettings configures the alert stream.
type RedisSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"maxlen"`
}

// OutputSettings configures alert persistence.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"sqlite"`

	MySQL struct {
		Enabled  bool   `yaml:"enabled"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
	} `yaml:"mysql"`
}

// WebServerSettings configures the HTTP and WebSocket server.
type WebServerSettings struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadLimit    int64         `yaml:"readlimit"` // max WebSocket message size in bytes
	PingInterval time.Duration `yaml:"pinginterval"`
}

// TelemetrySettings configures metrics and error reporting.
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled"` // expose /metrics
	SentryDSN   string `yaml:"sentrydsn"`
	Environment string `yaml:"environment"`
}

// FramesFor converts d to a whole number of frames at the configured rate.
// The result is the smallest n with n/fps >= d.
func (t *ThreatSettings) FramesFor(d time.Duration) int {
	if d <= 0 || t.FPS <= 0 {
		return 0
	}
	frames := d.Seconds()*t.FPS - 1e-9
	n := int(frames)
	if float64(n) < frames {
		n++
	}
	return n
}

// FrameInterval is the nominal time between two frames, rounded up to the
// next nanosecond so that N intervals never fall short of N frames.
func (t *ThreatSettings) FrameInterval() time.Duration {
	if t.FPS <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(float64(time.Second) / t.FPS))
}

// FrameOffset is the time of frame n relative to frame 0.
func (t *ThreatSettings) FrameOffset(n int) time.Duration {
	if t.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(n) * float64(time.Second) / t.FPS)
}
