package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrLinkClosed is returned by Link operations after Close
var ErrLinkClosed = errors.New("link closed")

// Line is one classified output line received from the hub
type Line struct {
	Kind LineKind
	Text string
	At   time.Time
}

// Link is the host side of the line protocol: it writes command lines to
// the hub and delivers every output line read back from it.
type Link struct {
	port io.ReadWriteCloser

	inputBuffer *FifoBuffer
	channel     *Channel

	lines chan Line

	writeMutex sync.Mutex

	readErr   error
	readErrMu sync.Mutex

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewLink starts reading from port in the background
func NewLink(port io.ReadWriteCloser) *Link {
	l := &Link{
		port:        port,
		inputBuffer: NewFifoBuffer(4096),
		lines:       make(chan Line, 64),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	l.channel = NewChannel(l.inputBuffer, 0, l.deliver)

	go l.readLoop()

	return l
}

// Lines returns the stream of received lines. It is closed when the read
// loop ends.
func (l *Link) Lines() <-chan Line {
	return l.lines
}

// Send writes one command, or a sequence when more than one is given
func (l *Link) Send(cmds ...Command) error {
	data, err := EncodeLine(cmds...)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	return l.write(data)
}

// SendSequence writes cmds as a command sequence
func (l *Link) SendSequence(cmds []Command) error {
	data, err := EncodeSequence(cmds)
	if err != nil {
		return fmt.Errorf("failed to encode sequence: %w", err)
	}
	return l.write(data)
}

// SendRaw writes a pre-encoded line, appending the newline if missing
func (l *Link) SendRaw(line string) error {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	return l.write([]byte(line))
}

func (l *Link) write(msg []byte) error {
	select {
	case <-l.stopChan:
		return ErrLinkClosed
	default:
	}

	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	n, err := l.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// Err returns the error that ended the read loop, if any
func (l *Link) Err() error {
	l.readErrMu.Lock()
	defer l.readErrMu.Unlock()
	return l.readErr
}

// readLoop continuously reads from the port and splits lines
func (l *Link) readLoop() {
	defer close(l.doneChan)
	defer close(l.lines)

	buffer := make([]byte, 256)

	for {
		select {
		case <-l.stopChan:
			return
		default:
		}

		n, err := l.port.Read(buffer)
		if n > 0 {
			// Large bursts can exceed the FIFO; drain between chunks
			data := buffer[:n]
			for len(data) > 0 {
				w := l.inputBuffer.writeSome(data)
				data = data[w:]
				l.channel.Poll()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-l.stopChan:
				return
			default:
			}
			l.readErrMu.Lock()
			l.readErr = err
			l.readErrMu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (l *Link) deliver(text string) {
	line := Line{Kind: ClassifyLine(text), Text: text, At: time.Now()}
	select {
	case l.lines <- line:
	case <-l.stopChan:
	}
}

// Close stops the read loop and closes the port
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		if l.port != nil {
			err = l.port.Close()
		}
		<-l.doneChan
	})
	return err
}
