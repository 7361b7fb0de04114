package protocol

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrNoInput is returned by a non-blocking byte source when nothing is buffered
var ErrNoInput = errors.New("no input available")

// FifoBuffer is a circular buffer for serial I/O.
// A reader goroutine writes into it and the control loop drains it, so
// every method takes the buffer lock.
type FifoBuffer struct {
	mu    sync.Mutex
	buf   []byte
	read  int
	write int
	size  int

	dropped uint32 // bytes rejected because the buffer was full
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer and returns the number of bytes stored
func (f *FifoBuffer) Write(data []byte) int {
	written := f.writeSome(data)
	if written < len(data) {
		f.mu.Lock()
		f.dropped += uint32(len(data) - written)
		f.mu.Unlock()
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// ReadByte returns the next buffered byte, or ErrNoInput when empty.
// It never blocks.
func (f *FifoBuffer) ReadByte() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.read == f.write {
		return 0, ErrNoInput
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, nil
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available()
}

func (f *FifoBuffer) available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size - f.available() - 1
}

// Dropped returns how many bytes were rejected since the last Reset
func (f *FifoBuffer) Dropped() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = 0
	f.write = 0
	f.dropped = 0
}

// Pump copies bytes from r into f until r fails or ctx is done.
// It is the blocking half of a non-blocking input: run it on its own
// goroutine and let the control loop drain f with ReadByte.
// When f is full, Pump waits for the consumer instead of dropping input.
func Pump(ctx context.Context, r io.Reader, f *FifoBuffer) error {
	chunk := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		pending := chunk[:n]
		for len(pending) > 0 {
			w := f.writeSome(pending)
			pending = pending[w:]
			if len(pending) == 0 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// writeSome is Write without counting a partial store as dropped input
func (f *FifoBuffer) writeSome(data []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}
