// Package mqtt publishes alert events to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/logger"
)

// GetLogger returns the module logger for MQTT.
func GetLogger() logger.Logger { return logger.Global().Module("mqtt") }

// Client defines the MQTT operations the publisher needs.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // base topic; alerts go to <topic>/<threat>
	Retain            bool
	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		Topic:             "safeguard/alerts",
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings applies s over the defaults. clientID is used when the
// settings name none.
func ConfigFromSettings(s *conf.MQTTSettings, clientID string) Config {
	c := DefaultConfig()
	c.Broker = s.Broker
	c.ClientID = s.ClientID
	if c.ClientID == "" {
		c.ClientID = clientID
	}
	c.Username = s.Username
	c.Password = s.Password
	if s.Topic != "" {
		c.Topic = s.Topic
	}
	c.Retain = s.Retain
	return c
}
