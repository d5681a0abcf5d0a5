package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/processor"
	"github.com/tphakala/safeguard-go/internal/session"
)

const (
	// Time allowed to write one message to the client.
	writeWait = 10 * time.Second

	// Outbound messages buffered per connection.
	sendBuffer = 64
)

// Message types on the detection socket.
const (
	MessageFrame           = "frame"
	MessageReset           = "reset"
	MessageDetectionResult = "detection_result"
	MessageAlertsSent      = "alerts_sent"
	MessageError           = "error"
)

// ClientMessage is sent by the client.
type ClientMessage struct {
	Type  string           `json:"type"`
	Frame *detection.Frame `json:"frame,omitempty"`
}

// ResultMessage answers every processed frame.
type ResultMessage struct {
	Type string `json:"type"`
	processor.Report
}

// AlertsMessage confirms alerts after delivery was attempted.
type AlertsMessage struct {
	Type   string                `json:"type"`
	Alerts []dispatch.AlertEvent `json:"alerts"`
}

// StatusMessage acknowledges a control message or reports an error.
type StatusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// client is one detection socket. Only writePump writes to conn.
type client struct {
	conn *websocket.Conn
	sess *session.Session
	send chan []byte
	// done is closed once the read side has finished.
	done chan struct{}

	readLimit    int64
	pingInterval time.Duration
	metrics      *metrics.SessionMetrics
	log          logger.Logger
}

// handleDetect opens a session for the user and upgrades the connection.
func (s *Server) handleDetect(c echo.Context) error {
	userID := c.Param("user_id")
	cl := &client{
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		readLimit:    s.settings.WebServer.ReadLimit,
		pingInterval: s.settings.WebServer.PingInterval,
		metrics:      s.sessionM,
	}

	sess, err := s.sessions.Open(s.ctx, userID, cl.alertSink())
	if err != nil {
		msg, code := sessionError(err)
		return s.fail(c, err, msg, code)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		sess.Close()
		s.log.Warn("websocket upgrade failed", logger.String("user_id", userID), logger.Error(err))
		return nil
	}
	cl.conn = conn
	cl.sess = sess
	cl.log = s.log.With(
		logger.String("user_id", userID),
		logger.String("session", sess.ID),
		logger.String("remote", c.RealIP()))
	cl.log.Info("detection client connected")

	s.wg.Go(cl.writePump)
	s.wg.Go(cl.readPump)
	return nil
}

// alertSink reports delivered alerts back to the client.
func (c *client) alertSink() dispatch.Sink {
	return dispatch.SinkFunc("client", func(_ context.Context, ev dispatch.AlertEvent) error {
		c.enqueue(AlertsMessage{Type: MessageAlertsSent, Alerts: []dispatch.AlertEvent{ev}})
		return nil
	})
}

// enqueue never blocks; a full buffer drops the message.
func (c *client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("failed to encode message", logger.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, message dropped", logger.Int("buffered", len(c.send)))
	}
}

func (c *client) readPump() {
	defer func() {
		c.sess.Close()
		c.sess.Wait()
		close(c.done)
		_ = c.conn.Close()
		c.log.Info("detection client disconnected",
			logger.Uint64("frames", c.sess.Processed()))
	}()

	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	if c.pingInterval > 0 {
		pongWait := 2 * c.pingInterval
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.sess.Closed() {
				c.log.Warn("websocket read failed", logger.Error(err))
			}
			return
		}
		c.handle(data)
	}
}

func (c *client) handle(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.invalid(fmt.Errorf("malformed message: %w", err))
		return
	}

	switch msg.Type {
	case MessageFrame:
		if msg.Frame == nil {
			c.invalid(errors.New("frame message without frame"))
			return
		}
		c.metrics.RecordMessage(MessageFrame)
		err := c.sess.Submit(msg.Frame, func(r processor.Report) {
			c.enqueue(ResultMessage{Type: MessageDetectionResult, Report: r})
		})
		if err != nil {
			c.log.Debug("frame dropped",
				logger.Uint64("sequence", msg.Frame.Sequence),
				logger.Error(err))
		}
	case MessageReset:
		c.metrics.RecordMessage(MessageReset)
		c.sess.Reset()
		c.enqueue(StatusMessage{Type: MessageReset, Status: "ok"})
	default:
		c.invalid(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (c *client) invalid(err error) {
	c.metrics.RecordMessage("invalid")
	c.sess.RecordInvalid()
	c.log.Debug("invalid client message", logger.Error(err))
	c.enqueue(StatusMessage{Type: MessageError, Error: err.Error()})
}

func (c *client) writePump() {
	var ping <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("websocket write failed", logger.Error(err))
				return
			}
		case <-ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sess.Context().Done():
			// closed by the server, or replaced by a newer connection
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-c.done:
			return
		}
	}
}
