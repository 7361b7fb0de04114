package serial

import (
	"errors"
	"fmt"
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - tarm/serial (OpenTarm)
// - go.bug.st/serial (OpenBugST), the default
// - Pipes and fakes in tests
type Port interface {
	io.ReadWriteCloser

	// Flush waits until written data has been transmitted
	Flush() error
}

// Backends
const (
	BackendTarm  = "tarm"
	BackendBugST = "bugst"
)

var ErrUnknownBackend = errors.New("unknown serial backend")

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC hubs ignore this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	// Backend selects the driver library, BackendBugST when empty
	Backend string
}

// DefaultConfig returns the default configuration for a hub on device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
		Backend:     BackendBugST,
	}
}

// Open opens cfg.Device with the configured backend
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("no serial device configured")
	}
	switch cfg.Backend {
	case BackendTarm:
		return OpenTarm(cfg)
	case BackendBugST, "":
		return OpenBugST(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
