// Command pilot-host connects to a hub running the agent over USB serial,
// offers an interactive command prompt and relays telemetry to browsers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pilot/config"
	"pilot/host/bridge"
	"pilot/host/hub"
	hostlog "pilot/host/log"
	"pilot/host/serial"
	"pilot/protocol"
)

var (
	configPath = flag.String("config", "", "configuration file (.json or .yaml)")
	device     = flag.String("device", "", "serial device path (discovered when empty)")
	backend    = flag.String("backend", "", "serial backend: bugst or tarm")
	bridgeAddr = flag.String("bridge", "", "WebSocket bridge listen address")
	noBridge   = flag.Bool("no-bridge", false, "disable the WebSocket bridge")
	watch      = flag.Bool("watch", false, "print every line received from the hub")
	logLevel   = flag.String("log-level", "", "debug, info, warn or error")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// Flags win over files and environment
	if *device != "" {
		cfg.Host.Device = *device
	}
	if *backend != "" {
		cfg.Host.Backend = *backend
	}
	if *bridgeAddr != "" {
		cfg.Host.BridgeAddr = *bridgeAddr
	}
	if *logLevel != "" {
		cfg.Host.LogLevel = *logLevel
	}
	return cfg, cfg.Validate()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hostlog.Init(cfg.Host.LogLevel)

	dev := cfg.Host.Device
	if dev == "" || cfg.Host.AutoDiscover {
		port, err := serial.FindHub()
		if err != nil {
			if dev == "" {
				return err
			}
			hostlog.Warn("hub discovery failed, using configured device", "device", dev, "error", err)
		} else {
			dev = port.Name
			hostlog.Info("discovered hub", "port", port.String())
		}
	}

	fmt.Println("Pilot Host")
	fmt.Println("==========")
	fmt.Printf("Connecting to hub on %s...\n", dev)

	h, err := hub.Connect(&serial.Config{
		Device:      dev,
		Baud:        cfg.Host.Baud,
		ReadTimeout: cfg.Host.ReadTimeoutMS,
		Backend:     cfg.Host.Backend,
	}, hostlog.L())
	if err != nil {
		return err
	}
	defer h.Close()
	fmt.Println("Connected successfully!")

	h.Subscribe(printer(os.Stdout, *watch))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(gctx) })

	if !*noBridge && cfg.Host.BridgeAddr != "" {
		b := bridge.New(h, hostlog.L())
		h.Subscribe(hub.Handlers{Line: b.Publish})
		g.Go(func() error { return b.ListenAndServe(gctx, cfg.Host.BridgeAddr) })
		fmt.Printf("Telemetry bridge on ws://%s/ws/telemetry\n", displayAddr(cfg.Host.BridgeAddr))
	}

	// The prompt blocks on stdin, so it ends the session rather than
	// joining the group.
	go func() {
		fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
		if err := newREPL(h, os.Stdout).run(os.Stdin); err != nil {
			hostlog.Error("reading input", "error", err)
		}
		stop()
	}()

	err = g.Wait()
	if errors.Is(err, io.EOF) {
		fmt.Println("Hub disconnected")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printer shows hub output on the terminal. Telemetry is only shown in
// watch mode since it arrives several times a second.
func printer(w io.Writer, watch bool) hub.Handlers {
	hs := hub.Handlers{
		Log: func(s string) { fmt.Fprintln(w, s) },
		MenuStatus: func(st protocol.MenuStatus) {
			fmt.Fprintf(w, "[menu] program %d of %d, %s\n", st.Selected, st.Total, st.State)
		},
		SetPosition: func(p protocol.Position) {
			fmt.Fprintf(w, "[position] %s side, %.0f/%.0f, heading %.0f\n", p.Side, p.FromBottom, p.FromSide, p.Heading)
		},
	}
	if watch {
		hs.Line = func(l protocol.Line) {
			if l.Kind == protocol.LineTelemetry {
				fmt.Fprintln(w, l.Text)
			}
		}
	}
	return hs
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
