package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// TarmPort wraps the tarm/serial implementation
type TarmPort struct {
	port *serial.Port
	cfg  *Config
}

// OpenTarm opens a serial port with tarm/serial
func OpenTarm(cfg *Config) (Port, error) {
	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &TarmPort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read maps the io.EOF tarm/serial reports on an expired read timeout to (0, nil)
func (p *TarmPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && p.cfg.ReadTimeout > 0 {
		return 0, nil
	}
	return n, err
}

func (p *TarmPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *TarmPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards data not yet transmitted or read
func (p *TarmPort) Flush() error {
	return p.port.Flush()
}
