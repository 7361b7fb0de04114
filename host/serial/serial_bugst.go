package serial

import (
	"fmt"
	"time"

	bugst "go.bug.st/serial"
)

// BugSTPort wraps a go.bug.st/serial port
type BugSTPort struct {
	port bugst.Port
}

// OpenBugST opens a serial port with go.bug.st/serial
func OpenBugST(cfg *Config) (Port, error) {
	port, err := bugst.Open(cfg.Device, &bugst.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(time.Duration(cfg.ReadTimeout) * time.Millisecond); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Device, err)
		}
	}
	return &BugSTPort{port: port}, nil
}

// Read returns (0, nil) when the read timeout expires
func (p *BugSTPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *BugSTPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *BugSTPort) Close() error {
	return p.port.Close()
}

func (p *BugSTPort) Flush() error {
	return p.port.Drain()
}
