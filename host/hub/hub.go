// Package hub is the host side of a connection to a robot hub running the agent.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pilot/host/serial"
	"pilot/protocol"
)

// Handlers receive classified hub output. Nil handlers are skipped.
type Handlers struct {
	Telemetry     func(*protocol.TelemetryRecord)
	MenuStatus    func(protocol.MenuStatus)
	SetPosition   func(protocol.Position)
	PositionReset func()
	Log           func(string)

	// Line sees every line before classification-specific handlers
	Line func(protocol.Line)
}

// Stats counts received lines by kind
type Stats struct {
	Lines        int
	Telemetry    int
	Signals      int
	Logs         int
	DecodeErrors int
}

// Hub represents a connection to a hub
type Hub struct {
	id     string
	link   *protocol.Link
	logger *slog.Logger

	mu            sync.RWMutex
	subscribers   []Handlers
	lastTelemetry *protocol.TelemetryRecord
	lastStatus    *protocol.MenuStatus
	lastPosition  *protocol.Position
	stats         Stats
}

// New wraps an open port. A nil logger uses slog.Default.
func New(port io.ReadWriteCloser, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Hub{
		id:     id,
		link:   protocol.NewLink(port),
		logger: logger.With("session", id),
	}
}

// Connect opens the serial device in cfg and wraps it
func Connect(cfg *serial.Config, logger *slog.Logger) (*Hub, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	h := New(port, logger)
	h.logger.Info("connected", "device", cfg.Device, "backend", cfg.Backend)
	return h, nil
}

// ID is the session identifier of this connection
func (h *Hub) ID() string { return h.id }

// Subscribe adds a set of handlers
func (h *Hub) Subscribe(hs Handlers) {
	h.mu.Lock()
	h.subscribers = append(h.subscribers, hs)
	h.mu.Unlock()
}

// Run delivers hub output to subscribers until ctx is done or the link
// closes. It returns the link's read error, if any.
func (h *Hub) Run(ctx context.Context) error {
	lines := h.link.Lines()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := h.link.Err(); err != nil {
					return err
				}
				return io.EOF
			}
			h.handleLine(line)
		}
	}
}

func (h *Hub) handleLine(line protocol.Line) {
	h.mu.Lock()
	h.stats.Lines++
	subs := append([]Handlers(nil), h.subscribers...)
	h.mu.Unlock()

	for _, s := range subs {
		if s.Line != nil {
			s.Line(line)
		}
	}

	switch line.Kind {
	case protocol.LineTelemetry:
		rec, err := protocol.DecodeTelemetry(line.Text)
		if err != nil {
			h.decodeError(line, err)
			return
		}
		h.mu.Lock()
		h.stats.Telemetry++
		h.lastTelemetry = rec
		h.mu.Unlock()
		for _, s := range subs {
			if s.Telemetry != nil {
				s.Telemetry(rec)
			}
		}

	case protocol.LineMenuStatus:
		st, err := protocol.ParseMenuStatus(line.Text)
		if err != nil {
			h.decodeError(line, err)
			return
		}
		h.mu.Lock()
		h.stats.Signals++
		h.lastStatus = &st
		h.mu.Unlock()
		for _, s := range subs {
			if s.MenuStatus != nil {
				s.MenuStatus(st)
			}
		}

	case protocol.LineSetPosition:
		p, err := protocol.ParseSetPosition(line.Text)
		if err != nil {
			h.decodeError(line, err)
			return
		}
		h.mu.Lock()
		h.stats.Signals++
		h.lastPosition = &p
		h.mu.Unlock()
		for _, s := range subs {
			if s.SetPosition != nil {
				s.SetPosition(p)
			}
		}

	case protocol.LinePositionReset:
		h.mu.Lock()
		h.stats.Signals++
		h.lastPosition = nil
		h.mu.Unlock()
		for _, s := range subs {
			if s.PositionReset != nil {
				s.PositionReset()
			}
		}

	default:
		h.mu.Lock()
		h.stats.Logs++
		h.mu.Unlock()
		for _, s := range subs {
			if s.Log != nil {
				s.Log(line.Text)
			}
		}
	}
}

func (h *Hub) decodeError(line protocol.Line, err error) {
	h.mu.Lock()
	h.stats.DecodeErrors++
	h.mu.Unlock()
	h.logger.Warn("undecodable hub line", "kind", line.Kind.String(), "error", err)
}

// Telemetry returns the most recent telemetry record, or nil
func (h *Hub) Telemetry() *protocol.TelemetryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTelemetry
}

// MenuStatus returns the most recent menu status
func (h *Hub) MenuStatus() (protocol.MenuStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastStatus == nil {
		return protocol.MenuStatus{}, false
	}
	return *h.lastStatus, true
}

// Position returns the starting position of the running program, if one was sent
func (h *Hub) Position() (protocol.Position, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastPosition == nil {
		return protocol.Position{}, false
	}
	return *h.lastPosition, true
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// Send writes one command, or several as a sequence
func (h *Hub) Send(cmds ...protocol.Command) error {
	if len(cmds) > 0 {
		h.logger.Debug("send", "action", cmds[0].Action, "count", len(cmds))
	}
	return h.link.Send(cmds...)
}

// SendSequence writes cmds as a command sequence
func (h *Hub) SendSequence(cmds []protocol.Command) error {
	return h.link.SendSequence(cmds)
}

// SendRaw writes a JSON command line after checking that it and every
// sequence step parse
func (h *Hub) SendRaw(line string) error {
	line = strings.TrimSpace(line)
	batch, err := protocol.ParseLine(line)
	if err != nil {
		return err
	}
	if err := batch.Err(); err != nil {
		return err
	}
	return h.link.SendRaw(line)
}

func (h *Hub) Close() error {
	err := h.link.Close()
	if errors.Is(err, protocol.ErrLinkClosed) {
		return nil
	}
	return err
}
