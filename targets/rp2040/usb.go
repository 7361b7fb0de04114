//go:build rp2040

package main

import (
	"machine"
	"time"

	"pilot/protocol"
)

// Consecutive failed writes before the host is considered gone
const maxWriteFailures = 10

// InitUSB configures machine.Serial, which is USB CDC on RP2040. The USB
// descriptors are set by TinyGo's runtime.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbLink moves bytes between USB CDC and the agent
type usbLink struct {
	input *protocol.FifoBuffer

	writeFailures int
	disconnected  bool
	overflows     uint32
	bytesReceived uint32
	linesSent     uint32
	linesDropped  uint32
}

func newUSBLink(input *protocol.FifoBuffer) *usbLink {
	return &usbLink{input: input}
}

// readLoop copies received bytes into the input FIFO. It never returns.
func (u *usbLink) readLoop() {
	for {
		for machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			// Fresh host session: drop stale partial input
			if u.disconnected {
				u.disconnected = false
				u.input.Reset()
			}
			if u.input.Write([]byte{b}) == 0 {
				u.overflows++
			}
			u.bytesReceived++
		}
		// Yield to avoid a busy loop
		time.Sleep(500 * time.Microsecond)
	}
}

// writeLine sends one output line. After repeated failures the host is
// assumed gone and lines are dropped until it sends data again.
func (u *usbLink) writeLine(line string) {
	if u.disconnected {
		u.linesDropped++
		return
	}
	data := append([]byte(line), '\n')
	written := 0
	for written < len(data) {
		n, err := machine.Serial.Write(data[written:])
		if err != nil || n == 0 {
			u.writeFailures++
			if u.writeFailures > maxWriteFailures {
				u.disconnected = true
				u.writeFailures = 0
			}
			u.linesDropped++
			return
		}
		written += n
	}
	u.writeFailures = 0
	u.linesSent++
}
