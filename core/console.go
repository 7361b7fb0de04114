package core

import (
	"io"
	"sync"

	"pilot/protocol"
)

// LineWriter writes one complete output line. The newline is added by the writer.
type LineWriter func(string)

// Console is the agent's output stream. Telemetry records, signal lines
// and [PILOT] log lines all go through it one whole line at a time.
type Console struct {
	mu      sync.Mutex
	write   LineWriter
	verbose bool

	// Async output, see StartAsync
	queue   chan string
	dropped uint32
}

// NewConsole creates a console writing through w. A nil w discards output.
func NewConsole(w LineWriter) *Console {
	if w == nil {
		w = func(string) {}
	}
	return &Console{write: w, verbose: true}
}

// WriterLines adapts an io.Writer into a LineWriter
func WriterLines(w io.Writer) LineWriter {
	return func(s string) {
		io.WriteString(w, s+"\n")
	}
}

// SetVerbose enables or disables free-form log lines.
// Telemetry and signal lines are always written.
func (c *Console) SetVerbose(verbose bool) {
	c.mu.Lock()
	c.verbose = verbose
	c.mu.Unlock()
}

// StartAsync moves output onto a worker goroutine with a queue of depth
// lines. Emit never blocks afterwards; lines that do not fit are dropped.
func (c *Console) StartAsync(depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue != nil {
		return
	}
	c.queue = make(chan string, depth)
	go c.outputWorker(c.queue, c.write)
}

func (c *Console) outputWorker(queue chan string, write LineWriter) {
	for line := range queue {
		write(line)
	}
}

// Dropped returns the number of lines lost in async mode
func (c *Console) Dropped() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Emit writes a line unconditionally
func (c *Console) Emit(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue != nil {
		select {
		case c.queue <- line:
		default:
			c.dropped++
		}
		return
	}
	c.write(line)
}

// Log writes a [PILOT] line built from args separated by spaces
func (c *Console) Log(args ...interface{}) {
	c.logTagged(protocol.TagPilot, args)
}

// Menu writes a [PILOT:MENU] line
func (c *Console) Menu(args ...interface{}) {
	c.logTagged(protocol.TagMenu, args)
}

func (c *Console) logTagged(tag string, args []interface{}) {
	c.mu.Lock()
	verbose := c.verbose
	c.mu.Unlock()
	if !verbose {
		return
	}
	c.Emit(tag + " " + sprint(args...))
}
