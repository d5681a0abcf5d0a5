package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
)

// AlertMessage is the JSON payload published for each alert.
type AlertMessage struct {
	dispatch.AlertEvent
	Source string `json:"source"`
	Title  string `json:"title"`
	Urgent bool   `json:"urgent"`
}

// Publisher is a dispatch sink that publishes alerts.
type Publisher struct {
	client Client
	topic  string
	source string
	log    logger.Logger
}

// NewPublisher publishes through c under the configured base topic.
func NewPublisher(c Client, config Config, log logger.Logger) *Publisher {
	if log == nil {
		log = GetLogger()
	}
	return &Publisher{
		client: c,
		topic:  strings.TrimSuffix(config.Topic, "/"),
		source: config.ClientID,
		log:    log,
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Topic is the topic alerts of ev's type are published to.
func (p *Publisher) Topic(ev *dispatch.AlertEvent) string {
	return p.topic + "/" + string(ev.Threat)
}

// Deliver publishes ev, connecting first when the client is down. Connect
// cooldown refusals are returned so the queue retries later.
func (p *Publisher) Deliver(ctx context.Context, ev dispatch.AlertEvent) error {
	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			if !errors.Is(err, ErrConnectTooRecent) {
				p.log.Warn("MQTT connect failed", logger.Error(err))
			}
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	payload, err := json.Marshal(AlertMessage{
		AlertEvent: ev,
		Source:     p.source,
		Title:      ev.Title(),
		Urgent:     ev.Urgent(),
	})
	if err != nil {
		return fmt.Errorf("mqtt: encode alert: %w", err)
	}
	return p.client.Publish(ctx, p.Topic(&ev), payload)
}
