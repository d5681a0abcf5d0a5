// Package alertstream appends alert events to a Redis stream so other
// services can consume them with XREAD or consumer groups.
package alertstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/dispatch"
)

// Config configures the Redis stream sink.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64 // approximate stream cap; 0 keeps everything
}

// ConfigFromSettings converts redis settings.
func ConfigFromSettings(s *conf.RedisSettings) Config {
	return Config{Addr: s.Addr, Password: s.Password, DB: s.DB, Stream: s.Stream, MaxLen: s.MaxLen}
}

// Streamer is the subset of the Redis client the sink uses.
type Streamer interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Sink writes alerts to a stream.
type Sink struct {
	client Streamer
	closer func() error
	stream string
	maxLen int64
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis alert stream: %w", err)
	}
	s := NewWithClient(client, cfg.Stream, cfg.MaxLen)
	s.closer = client.Close
	return s, nil
}

// NewWithClient uses an existing client.
func NewWithClient(client Streamer, stream string, maxLen int64) *Sink {
	if strings.TrimSpace(stream) == "" {
		stream = "safeguard:alerts"
	}
	return &Sink{client: client, stream: stream, maxLen: maxLen}
}

func (s *Sink) Name() string { return "redis" }

// Stream is the stream key.
func (s *Sink) Stream() string { return s.stream }

// Deliver appends ev with XADD. Flat fields allow filtering without decoding
// the payload; the payload carries the full event.
func (s *Sink) Deliver(ctx context.Context, ev dispatch.AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	values := map[string]any{
		"id":        ev.ID.String(),
		"timestamp": ev.Timestamp.UTC().Format(time.RFC3339Nano),
		"session":   ev.Session,
		"user_id":   ev.UserID,
		"threat":    string(ev.Threat),
		"severity":  string(ev.Severity),
		"message":   ev.Message,
		"payload":   string(payload),
	}
	if ev.EntityID != nil {
		values["entity_id"] = strconv.Itoa(*ev.EntityID)
	}
	args := &redis.XAddArgs{Stream: s.stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the client if the sink created it.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
