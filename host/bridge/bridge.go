// Package bridge relays hub output to browsers over WebSocket and forwards
// browser commands back to the hub.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pilot/protocol"
)

// Message kinds sent to browsers
const (
	KindTelemetry     = "telemetry"
	KindMenuStatus    = "menu_status"
	KindSetPosition   = "set_position"
	KindPositionReset = "position_reset"
	KindLog           = "log"
	KindError         = "error"
	KindAck           = "ack"
)

// Message is the envelope of every frame sent to a browser
type Message struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
	Text string          `json:"text,omitempty"`
	At   int64           `json:"at"`
}

// Sink receives command lines from browsers
type Sink interface {
	SendRaw(line string) error
}

// Bridge is the WebSocket relay
type Bridge struct {
	app    *fiber.App
	sink   Sink
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	quit       chan struct{}

	mu        sync.RWMutex
	count     int
	published uint64
	dropped   uint64
}

// New creates a bridge forwarding browser commands to sink
func New(sink Sink, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		sink:       sink,
		logger:     logger.With("component", "bridge"),
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		quit:       make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "pilot bridge",
		DisableStartupMessage: true,
	})

	api := app.Group("/api")
	api.Get("/status", b.handleStatus)
	api.Post("/command", b.handleCommand)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(b.handleWS))

	b.app = app
	return b
}

// App exposes the fiber app for extra routes
func (b *Bridge) App() *fiber.App { return b.app }

// Serve runs the fan-out loop and serves HTTP on ln until ctx is done
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.run(gctx)
		return nil
	})
	g.Go(func() error {
		b.logger.Info("listening", "addr", ln.Addr().String())
		return b.app.Listener(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		return b.app.ShutdownWithTimeout(2 * time.Second)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ListenAndServe listens on addr and calls Serve
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return b.Serve(ctx, ln)
}

// run owns the client set
func (b *Bridge) run(ctx context.Context) {
	defer close(b.quit)
	for {
		select {
		case <-ctx.Done():
			for c := range b.clients {
				delete(b.clients, c)
				close(c.send)
			}
			b.setCount(0)
			return

		case c := <-b.register:
			b.clients[c] = true
			b.setCount(len(b.clients))
			b.logger.Info("client connected", "client", c.id, "total", len(b.clients))

		case c := <-b.unregister:
			if _, ok := b.clients[c]; ok {
				delete(b.clients, c)
				close(c.send)
			}
			b.setCount(len(b.clients))
			b.logger.Info("client disconnected", "client", c.id, "remaining", len(b.clients))

		case msg := <-b.broadcast:
			for c := range b.clients {
				select {
				case c.send <- msg:
				default:
					// Client's buffer is full; drop it
					close(c.send)
					delete(b.clients, c)
					b.logger.Warn("dropped slow client", "client", c.id)
				}
			}
			b.setCount(len(b.clients))
		}
	}
}

func (b *Bridge) setCount(n int) {
	b.mu.Lock()
	b.count = n
	b.mu.Unlock()
}

// ClientCount returns the number of connected browsers
func (b *Bridge) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Publish relays one hub line to every browser
func (b *Bridge) Publish(line protocol.Line) {
	msg, err := messageFor(line)
	if err != nil {
		b.logger.Debug("not relayed", "kind", line.Kind.String(), "error", err)
		return
	}
	select {
	case b.broadcast <- msg:
		b.mu.Lock()
		b.published++
		b.mu.Unlock()
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
}

// messageFor converts a hub line into a browser message
func messageFor(line protocol.Line) (Message, error) {
	msg := Message{At: line.At.UnixMilli()}
	switch line.Kind {
	case protocol.LineTelemetry:
		msg.Kind = KindTelemetry
		msg.Data = json.RawMessage(line.Text)
	case protocol.LineMenuStatus:
		st, err := protocol.ParseMenuStatus(line.Text)
		if err != nil {
			return msg, err
		}
		msg.Kind = KindMenuStatus
		msg.Data, _ = json.Marshal(st)
	case protocol.LineSetPosition:
		p, err := protocol.ParseSetPosition(line.Text)
		if err != nil {
			return msg, err
		}
		msg.Kind = KindSetPosition
		msg.Data, _ = json.Marshal(p)
	case protocol.LinePositionReset:
		msg.Kind = KindPositionReset
	default:
		msg.Kind = KindLog
		msg.Text = line.Text
	}
	return msg, nil
}

type statusResponse struct {
	Clients   int    `json:"clients"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

func (b *Bridge) handleStatus(c *fiber.Ctx) error {
	b.mu.RLock()
	resp := statusResponse{Clients: b.count, Published: b.published, Dropped: b.dropped}
	b.mu.RUnlock()
	return c.JSON(resp)
}

// handleCommand forwards a POSTed command line to the hub
func (b *Bridge) handleCommand(c *fiber.Ctx) error {
	if err := b.forward(string(c.Body())); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Message{Kind: KindError, Text: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(Message{Kind: KindAck})
}

func (b *Bridge) forward(line string) error {
	if b.sink == nil {
		return errors.New("no hub connected")
	}
	return b.sink.SendRaw(line)
}

func (b *Bridge) handleWS(conn *websocket.Conn) {
	c := &client{
		id:      uuid.NewString(),
		bridge:  b,
		conn:    conn,
		send:    make(chan Message, 256),
		replies: make(chan Message, 16),
	}
	select {
	case b.register <- c:
	case <-b.quit:
		conn.Close()
		return
	}
	c.run()
}
