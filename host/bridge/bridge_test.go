package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/protocol"
)

// sink records command lines that parse
type sink struct {
	mu    sync.Mutex
	lines []string
}

func (s *sink) SendRaw(line string) error {
	if _, err := protocol.ParseLine(line); err != nil {
		return err
	}
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
	return nil
}

func (s *sink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func serve(t *testing.T, b *Bridge) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("bridge did not shut down")
		}
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/telemetry", nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBridgeRelaysHubLines(t *testing.T) {
	b := New(&sink{}, nil)
	addr := serve(t, b)
	conn := dial(t, addr)
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	at := time.UnixMilli(1700000000000)
	b.Publish(protocol.Line{Kind: protocol.LineTelemetry, Text: `{"timestamp":5,"type":"telemetry"}`, At: at})
	b.Publish(protocol.Line{Kind: protocol.LineMenuStatus, Text: "[PILOT:MENU_STATUS] selected=1 total=2 state=menu", At: at})
	b.Publish(protocol.Line{Kind: protocol.LineLog, Text: "[PILOT] hello", At: at})

	msg := readMessage(t, conn)
	assert.Equal(t, KindTelemetry, msg.Kind)
	assert.JSONEq(t, `{"timestamp":5,"type":"telemetry"}`, string(msg.Data))
	assert.EqualValues(t, 1700000000000, msg.At)

	msg = readMessage(t, conn)
	assert.Equal(t, KindMenuStatus, msg.Kind)
	assert.JSONEq(t, `{"selected":1,"total":2,"state":"menu"}`, string(msg.Data))

	msg = readMessage(t, conn)
	assert.Equal(t, KindLog, msg.Kind)
	assert.Equal(t, "[PILOT] hello", msg.Text)
}

func TestBridgeForwardsBrowserCommands(t *testing.T) {
	s := &sink{}
	b := New(s, nil)
	addr := serve(t, b)
	conn := dial(t, addr)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"drive","distance":100}`)))
	msg := readMessage(t, conn)
	assert.Equal(t, KindAck, msg.Kind)
	assert.Equal(t, []string{`{"action":"drive","distance":100}`}, s.received())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	msg = readMessage(t, conn)
	assert.Equal(t, KindError, msg.Kind)
	assert.NotEmpty(t, msg.Text)
	assert.Len(t, s.received(), 1)
}

func TestBridgeHTTP(t *testing.T) {
	s := &sink{}
	b := New(s, nil)

	resp, err := b.App().Test(httptest.NewRequest("POST", "/api/command", strings.NewReader(`[{"action":"stop"}]`)))
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)
	assert.Equal(t, []string{`[{"action":"stop"}]`}, s.received())

	resp, err = b.App().Test(httptest.NewRequest("POST", "/api/command", strings.NewReader(`{"action":`)))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	b.Publish(protocol.Line{Kind: protocol.LinePositionReset, Text: "[PILOT:POSITION_RESET]"})
	resp, err = b.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"clients":0,"published":1,"dropped":0}`, string(body))

	resp, err = b.App().Test(httptest.NewRequest("GET", "/ws/telemetry", nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}

func TestBridgeWithoutHub(t *testing.T) {
	b := New(nil, nil)
	resp, err := b.App().Test(httptest.NewRequest("POST", "/api/command", strings.NewReader(`{"action":"stop"}`)))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestMessageFor(t *testing.T) {
	tests := []struct {
		name    string
		line    protocol.Line
		kind    string
		data    string
		text    string
		wantErr bool
	}{
		{
			name: "set position",
			line: protocol.Line{Kind: protocol.LineSetPosition, Text: `[PILOT:SET_POSITION] {"side":"left","fromBottom":1,"fromSide":2,"heading":3}`},
			kind: KindSetPosition,
			data: `{"side":"left","fromBottom":1,"fromSide":2,"heading":3}`,
		},
		{
			name: "position reset",
			line: protocol.Line{Kind: protocol.LinePositionReset, Text: "[PILOT:POSITION_RESET]"},
			kind: KindPositionReset,
		},
		{
			name: "other output",
			line: protocol.Line{Kind: protocol.LineOther, Text: "Traceback"},
			kind: KindLog,
			text: "Traceback",
		},
		{
			name:    "bad menu status",
			line:    protocol.Line{Kind: protocol.LineMenuStatus, Text: "[PILOT:MENU_STATUS] selected=x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := messageFor(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Kind)
			assert.Equal(t, tt.text, msg.Text)
			if tt.data != "" {
				assert.JSONEq(t, tt.data, string(msg.Data))
			} else {
				assert.Empty(t, msg.Data)
			}
		})
	}
}
