package protocol

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// DefaultByteBudget bounds how many input bytes one Poll may consume
const DefaultByteBudget = 50

// LineHandler receives one complete, trimmed, non-empty input line
type LineHandler func(line string)

// Channel reassembles newline-delimited lines from a non-blocking byte
// source. The source's ReadByte must return an error (normally ErrNoInput)
// instead of blocking when no byte is available.
type Channel struct {
	src     io.ByteReader
	budget  int
	handler LineHandler

	mu      sync.Mutex
	pending []byte // bytes received since the last newline
}

// NewChannel creates a channel reading at most budget bytes per Poll.
// A budget <= 0 drains everything available.
func NewChannel(src io.ByteReader, budget int, handler LineHandler) *Channel {
	return &Channel{
		src:     src,
		budget:  budget,
		handler: handler,
		pending: make([]byte, 0, 128),
	}
}

// SetHandler replaces the line handler
func (c *Channel) SetHandler(handler LineHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Poll reads available bytes and dispatches every completed line in
// arrival order. It returns the number of bytes consumed. A read error
// ends the poll early and is never reported to the caller.
func (c *Channel) Poll() int {
	n := 0
	for c.budget <= 0 || n < c.budget {
		b, err := c.src.ReadByte()
		if err != nil {
			break
		}
		n++

		c.mu.Lock()
		c.pending = append(c.pending, b)
		c.mu.Unlock()

		if b == '\n' {
			c.dispatch(c.drain())
		}
	}
	return n
}

// Feed appends data as if it had been read from the source. Used by hosts
// that already own a read loop.
func (c *Channel) Feed(data []byte) {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	hasLine := bytes.IndexByte(data, '\n') >= 0
	c.mu.Unlock()

	if hasLine {
		c.dispatch(c.drain())
	}
}

// drain splits the buffer on newlines, keeps the trailing fragment and
// returns the completed lines
func (c *Channel) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := bytes.LastIndexByte(c.pending, '\n')
	if idx < 0 {
		return nil
	}
	complete := string(c.pending[:idx])
	rest := copy(c.pending, c.pending[idx+1:])
	c.pending = c.pending[:rest]

	parts := strings.Split(complete, "\n")
	lines := parts[:0]
	for _, p := range parts {
		if line := strings.TrimSpace(p); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (c *Channel) dispatch(lines []string) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler == nil {
		return
	}
	for _, line := range lines {
		handler(line)
	}
}

// Pending returns the incomplete fragment waiting for a newline
func (c *Channel) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.pending)
}

// Reset discards any partial line
func (c *Channel) Reset() {
	c.mu.Lock()
	c.pending = c.pending[:0]
	c.mu.Unlock()
}
