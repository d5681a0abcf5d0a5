package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/testutil"
	"github.com/tphakala/safeguard-go/internal/threat"
)

func (e *testEnv) dial(t *testing.T, userID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws/detect/" + userID
	conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

type envelope struct {
	Type string `json:"type"`
	raw  []byte
}

func readMessage(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testutil.DefaultTestTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	env.raw = data
	return env
}

// readUntil skips messages of other types.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	for {
		if env := readMessage(t, conn); env.Type == typ {
			return env
		}
	}
}

func sendFrame(t *testing.T, conn *websocket.Conn, f *detection.Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageFrame, Frame: f}))
}

func TestDetectSocketReturnsResults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	conn, _, err := env.dial(t, "u1")
	require.NoError(t, err)

	pose := testutil.UprightPose(300, 100)
	sendFrame(t, conn, &detection.Frame{
		Sequence:  7,
		Timestamp: time.Now(),
		Width:     640,
		Height:    640,
		Poses:     []detection.PoseDetection{pose},
	})

	msg := readUntil(t, conn, MessageDetectionResult)
	var res ResultMessage
	require.NoError(t, json.Unmarshal(msg.raw, &res))
	assert.Equal(t, uint64(7), res.Sequence)
	require.Len(t, res.Entities, 1)
	assert.Nil(t, res.Audio)

	sess, ok := env.sessions.Get("u1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), sess.Processed())
}

func TestDetectSocketConfirmsAlerts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	conn, _, err := env.dial(t, "u1")
	require.NoError(t, err)

	sendFrame(t, conn, &detection.Frame{
		Sequence:  1,
		Timestamp: time.Now(),
		Objects:   []detection.ObjectDetection{{Class: "knife", Confidence: 0.9}},
	})

	// The confirmation may overtake the frame result.
	got := map[string][]byte{}
	for len(got) < 2 {
		msg := readMessage(t, conn)
		got[msg.Type] = msg.raw
	}

	var result ResultMessage
	require.NoError(t, json.Unmarshal(got[MessageDetectionResult], &result))
	require.NotNil(t, result.Audio)
	assert.Equal(t, threat.Weapon, result.Audio.ThreatType)
	assert.Equal(t, threat.SeverityCritical, result.Audio.Severity)

	var sent AlertsMessage
	require.NoError(t, json.Unmarshal(got[MessageAlertsSent], &sent))
	require.Len(t, sent.Alerts, 1)
	assert.Equal(t, threat.Weapon, sent.Alerts[0].Threat)
	assert.Equal(t, "u1", sent.Alerts[0].UserID)
}

func TestDetectSocketRejectsInvalidMessages(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	conn, _, err := env.dial(t, "u1")
	require.NoError(t, err)

	for _, raw := range []string{`not json`, `{"type":"frame"}`, `{"type":"chat"}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		var st StatusMessage
		require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageError).raw, &st))
		assert.NotEmpty(t, st.Error, raw)
	}

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageReset}))
	var st StatusMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MessageReset).raw, &st))
	assert.Equal(t, "ok", st.Status)

	sess, ok := env.sessions.Get("u1")
	require.True(t, ok)
	assert.Equal(t, uint64(3), sess.Drops().Invalid)
}

func TestDetectSocketSessionLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) { o.Settings.Intake.MaxSessions = 1 })

	_, _, err := env.dial(t, "u1")
	require.NoError(t, err)

	_, resp, err := env.dial(t, "u2")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestDetectSocketReplacedByNewConnection(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	first, _, err := env.dial(t, "u1")
	require.NoError(t, err)
	second, _, err := env.dial(t, "u1")
	require.NoError(t, err)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(testutil.DefaultTestTimeout)))
	_, _, err = first.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// The replacement keeps working.
	sendFrame(t, second, &detection.Frame{Sequence: 1, Timestamp: time.Now()})
	readUntil(t, second, MessageDetectionResult)
	assert.Equal(t, 1, env.sessions.Len())
}

func TestShutdownClosesSockets(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	conn, _, err := env.dial(t, "u1")
	require.NoError(t, err)

	require.NoError(t, env.srv.Shutdown(t.Context()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testutil.DefaultTestTimeout)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return env.sessions.Len() == 0 },
		testutil.DefaultTestTimeout, 10*time.Millisecond)
}
