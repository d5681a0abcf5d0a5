// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultWeaponClasses are the object classes treated as weapons.
var DefaultWeaponClasses = []string{"knife", "gun", "scissors", "baseball bat"}

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "SafeGuard")
	v.SetDefault("main.log.defaultlevel", "info")
	v.SetDefault("main.log.timezone", "Local")
	v.SetDefault("main.log.console.enabled", true)
	v.SetDefault("main.log.console.level", "info")
	v.SetDefault("main.log.fileoutput.enabled", false)
	v.SetDefault("main.log.fileoutput.path", "logs/safeguard.log")
	v.SetDefault("main.log.fileoutput.level", "info")
	v.SetDefault("main.log.fileoutput.maxsize", 100)
	v.SetDefault("main.log.fileoutput.maxage", 30)
	v.SetDefault("main.log.fileoutput.maxbackups", 10)
	v.SetDefault("main.log.fileoutput.compress", false)

	v.SetDefault("threats.fps", 30.0)
	v.SetDefault("threats.confidence", 0.5)
	v.SetDefault("threats.keypointconfidence", 0.5)
	v.SetDefault("threats.historysize", 30)
	v.SetDefault("threats.referencewidth", 640.0)

	v.SetDefault("threats.sleeping.movementthreshold", 0.02)
	v.SetDefault("threats.sleeping.headangle", 45.0)
	v.SetDefault("threats.sleeping.duration", 3*time.Second)

	v.SetDefault("threats.falling.speedthreshold", 0.3)
	v.SetDefault("threats.falling.anglethreshold", 60.0)
	v.SetDefault("threats.falling.duration", 500*time.Millisecond)

	v.SetDefault("threats.unconscious.groundratio", 0.8)
	v.SetDefault("threats.unconscious.anglethreshold", 60.0)
	v.SetDefault("threats.unconscious.movementthreshold", 0.01)
	v.SetDefault("threats.unconscious.duration", 5*time.Second)

	v.SetDefault("threats.drowning.movementthreshold", 0.15)
	v.SetDefault("threats.drowning.verticalratio", 0.3)
	v.SetDefault("threats.drowning.duration", 2*time.Second)

	v.SetDefault("threats.eyes.closedthreshold", 0.23)
	v.SetDefault("threats.eyes.openthreshold", 0.27)
	v.SetDefault("threats.eyes.pitchoverride", 15.0)
	v.SetDefault("threats.eyes.duration", time.Second)

	v.SetDefault("threats.weapon.classes", DefaultWeaponClasses)
	v.SetDefault("threats.weapon.confidence", 0.6)
	v.SetDefault("threats.weapon.duration", time.Duration(0))

	v.SetDefault("threats.fire.enabled", false)
	v.SetDefault("threats.fire.minarea", 8000.0)
	v.SetDefault("threats.fire.duration", time.Second)

	v.SetDefault("tracker.matchdistance", 100.0)
	v.SetDefault("tracker.staleframes", 30)

	v.SetDefault("alarm.enabled", true)
	v.SetDefault("alarm.cooldown", 3*time.Second)
	v.SetDefault("alarm.frequency", 2500)
	v.SetDefault("alarm.duration", 500*time.Millisecond)
	v.SetDefault("alarm.eyesexempt", true)
	v.SetDefault("alarm.logsize", 100)

	v.SetDefault("intake.mininterval", 100*time.Millisecond)
	v.SetDefault("intake.maxsessions", 64)

	v.SetDefault("delivery.workers", 4)
	v.SetDefault("delivery.queuesize", 100)
	v.SetDefault("delivery.maxretries", 3)
	v.SetDefault("delivery.initialdelay", time.Second)
	v.SetDefault("delivery.maxdelay", 30*time.Second)
	v.SetDefault("delivery.multiplier", 2.0)
	v.SetDefault("delivery.timeout", 10*time.Second)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.email.enabled", false)
	v.SetDefault("notification.email.url", "")
	v.SetDefault("notification.ratelimit.enabled", true)
	v.SetDefault("notification.ratelimit.eventsperminute", 30)
	v.SetDefault("notification.ratelimit.burst", 5)
	v.SetDefault("notification.circuitbreaker.maxfailures", 5)
	v.SetDefault("notification.circuitbreaker.timeout", time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "safeguard/alerts")
	v.SetDefault("mqtt.clientid", "safeguard")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "safeguard:alerts")
	v.SetDefault("redis.maxlen", 10000)

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "safeguard.db")
	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.username", "safeguard")
	v.SetDefault("output.mysql.password", "")
	v.SetDefault("output.mysql.database", "safeguard")
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", "3306")

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.host", "")
	v.SetDefault("webserver.port", "8000")
	v.SetDefault("webserver.readlimit", 4<<20)
	v.SetDefault("webserver.pinginterval", 30*time.Second)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sentrydsn", "")
	v.SetDefault("telemetry.environment", "production")
}
