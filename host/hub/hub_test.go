package hub

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/core"
	"pilot/protocol"
	"pilot/targets/sim"
)

type events struct {
	mu        sync.Mutex
	telemetry []*protocol.TelemetryRecord
	statuses  []protocol.MenuStatus
	positions []protocol.Position
	resets    int
	logs      []string
}

func (e *events) handlers() Handlers {
	return Handlers{
		Telemetry: func(r *protocol.TelemetryRecord) {
			e.mu.Lock()
			e.telemetry = append(e.telemetry, r)
			e.mu.Unlock()
		},
		MenuStatus: func(s protocol.MenuStatus) {
			e.mu.Lock()
			e.statuses = append(e.statuses, s)
			e.mu.Unlock()
		},
		SetPosition: func(p protocol.Position) {
			e.mu.Lock()
			e.positions = append(e.positions, p)
			e.mu.Unlock()
		},
		PositionReset: func() {
			e.mu.Lock()
			e.resets++
			e.mu.Unlock()
		},
		Log: func(s string) {
			e.mu.Lock()
			e.logs = append(e.logs, s)
			e.mu.Unlock()
		},
	}
}

func startHub(t *testing.T, port io.ReadWriteCloser) (*Hub, *events, context.CancelFunc, <-chan error) {
	t.Helper()
	h := New(port, nil)
	ev := &events{}
	h.Subscribe(ev.handlers())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		h.Close()
	})
	return h, ev, cancel, done
}

func TestHubClassifiesLines(t *testing.T) {
	hostEnd, hubEnd := net.Pipe()
	defer hubEnd.Close()
	h, ev, _, _ := startHub(t, hostEnd)

	_, err := uuid.Parse(h.ID())
	require.NoError(t, err)

	go func() {
		io.WriteString(hubEnd, "[PILOT] Starting parallel telemetry task\n")
		io.WriteString(hubEnd, `{"timestamp":10,"type":"telemetry","motors":{"left":{"angle":5,"speed":0}}}`+"\n")
		io.WriteString(hubEnd, "[PILOT:MENU_STATUS] selected=2 total=3 state=running\n")
		io.WriteString(hubEnd, `[PILOT:SET_POSITION] {"side":"left","fromBottom":10,"fromSide":20,"heading":90}`+"\n")
		io.WriteString(hubEnd, "[PILOT:POSITION_RESET]\n")
		io.WriteString(hubEnd, "[PILOT:MENU_STATUS] selected=oops\n")
		io.WriteString(hubEnd, "plain output\n")
	}()

	want := Stats{Lines: 7, Telemetry: 1, Signals: 3, Logs: 2, DecodeErrors: 1}
	require.Eventually(t, func() bool { return h.Stats() == want }, 2*time.Second, time.Millisecond)

	rec := h.Telemetry()
	require.NotNil(t, rec)
	assert.EqualValues(t, 10, rec.Timestamp)
	assert.Equal(t, 5.0, *rec.Motors["left"].Angle)

	status, ok := h.MenuStatus()
	require.True(t, ok)
	assert.Equal(t, protocol.MenuStatus{Selected: 2, Total: 3, State: protocol.MenuRunning}, status)

	_, ok = h.Position()
	assert.False(t, ok, "position reset clears the last position")

	ev.mu.Lock()
	defer ev.mu.Unlock()
	require.Len(t, ev.positions, 1)
	assert.Equal(t, "left", ev.positions[0].Side)
	assert.Equal(t, 1, ev.resets)
	assert.Equal(t, []string{"[PILOT] Starting parallel telemetry task", "plain output"}, ev.logs)
}

func TestHubSendsCommands(t *testing.T) {
	hostEnd, hubEnd := net.Pipe()
	defer hubEnd.Close()
	h, _, _, _ := startHub(t, hostEnd)

	received := make(chan string, 8)
	go func() {
		r := bufio.NewReader(hubEnd)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			received <- line
		}
	}()

	next := func() string {
		select {
		case l := <-received:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("no command received")
			return ""
		}
	}

	require.NoError(t, h.Drive(150, 0))
	assert.Equal(t, `{"action":"drive","distance":150}`+"\n", next())

	require.NoError(t, h.Motor("arm", 200, protocol.Ptr(90.0)))
	assert.Equal(t, `{"action":"motor","speed":200,"angle":90,"motor":"arm"}`+"\n", next())

	require.NoError(t, h.SetTelemetry(true, 250))
	assert.Equal(t, `{"action":"set_telemetry","enabled":true,"interval":250}`+"\n", next())

	require.NoError(t, h.SendSequence([]protocol.Command{DriveCommand(100, 0), TurnCommand(90, 0)}))
	assert.Equal(t, `[{"action":"drive","distance":100},{"action":"turn","angle":90}]`+"\n", next())

	require.NoError(t, h.SendRaw(` {"action":"stop"} `))
	assert.Equal(t, `{"action":"stop"}`+"\n", next())

	assert.ErrorIs(t, h.SendRaw(`{"action":`), protocol.ErrInvalidCommand)
	assert.ErrorIs(t, h.SendRaw(`not json`), protocol.ErrInvalidCommand)
	assert.ErrorIs(t, h.SendRaw(`[{"action":"stop"},"turn"]`), protocol.ErrInvalidCommand)
}

func TestHubRunEndsWithLink(t *testing.T) {
	hostEnd, hubEnd := net.Pipe()
	_, _, _, done := startHub(t, hostEnd)

	hubEnd.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the port closed")
	}
}

// TestHubDrivesSimulatedAgent runs the agent on a simulated robot at the
// far end of a pipe and drives it through the host connection.
func TestHubDrivesSimulatedAgent(t *testing.T) {
	hostEnd, hubEnd := net.Pipe()
	defer hubEnd.Close()

	// Pipe writes block, so the host side must be reading first
	h, _, _, _ := startHub(t, hostEnd)

	opts := core.DefaultOptions()
	opts.TelemetryInterval = core.MinTelemetryInterval
	input := protocol.NewFifoBuffer(1024)
	agent := core.NewAgent(input, core.NewConsole(core.WriterLines(hubEnd)), nil, opts)
	robot := sim.NewRobot("pipe-hub")
	robot.Register(agent.Registry())

	agentCtx, stopAgent := context.WithCancel(context.Background())
	defer stopAgent()
	go protocol.Pump(agentCtx, hubEnd, input)
	go agent.Run(agentCtx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	require.NoError(t, h.Drive(250, 0))
	require.Eventually(t, func() bool {
		rec := h.Telemetry()
		return rec != nil && rec.Drivebase != nil && rec.Drivebase.Distance != nil &&
			*rec.Drivebase.Distance > 249 && *rec.Drivebase.Distance < 251
	}, 5*time.Second, 5*time.Millisecond)

	rec := h.Telemetry()
	assert.Equal(t, "pipe-hub", rec.Hub.System.Name)
	assert.Contains(t, rec.Motors, "arm")
	stopAgent()
}
