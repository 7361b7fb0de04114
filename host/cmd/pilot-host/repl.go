package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"pilot/core"
	"pilot/host/hub"
	"pilot/host/serial"
	"pilot/protocol"
)

var errQuit = errors.New("quit")

// repl is the interactive command loop
type repl struct {
	hub *hub.Hub
	out io.Writer

	// listPorts is swapped in tests
	listPorts func() ([]serial.PortInfo, error)
}

func newREPL(h *hub.Hub, out io.Writer) *repl {
	return &repl{hub: h, out: out, listPorts: serial.ListPorts}
}

// run reads commands from in until EOF or quit
func (r *repl) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		err := r.execute(scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// execute runs one input line
func (r *repl) execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	// raw keeps its JSON quoting, so it bypasses the tokenizer
	if name, rest, _ := strings.Cut(line, " "); name == "raw" {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return errors.New("usage: raw <json>")
		}
		return r.hub.SendRaw(rest)
	}

	parts, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(parts) == 0 {
		return nil
	}
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		r.printHelp()
		return nil

	case "drive":
		v, err := floats(args, 1, 2, "drive <mm> [speed]")
		if err != nil {
			return err
		}
		return r.hub.Drive(v[0], v[1])

	case "turn":
		v, err := floats(args, 1, 2, "turn <deg> [speed]")
		if err != nil {
			return err
		}
		return r.hub.Turn(v[0], v[1])

	case "arc":
		v, err := floats(args, 2, 3, "arc <radius> <deg> [speed]")
		if err != nil {
			return err
		}
		return r.hub.Arc(v[0], v[1], v[2])

	case "stop":
		if len(args) == 1 {
			return r.hub.StopMotor(args[0])
		}
		return r.hub.Stop()

	case "motor":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: motor <name> <speed> [deg]")
		}
		v, err := floats(args[1:], 1, 2, "motor <name> <speed> [deg]")
		if err != nil {
			return err
		}
		var angle *float64
		if len(args) == 3 {
			angle = protocol.Ptr(v[1])
		}
		return r.hub.Motor(args[0], v[0], angle)

	case "telemetry":
		if len(args) != 1 {
			return errors.New("usage: telemetry on|off|<ms>")
		}
		switch args[0] {
		case "on":
			return r.hub.SetTelemetry(true, 0)
		case "off":
			return r.hub.SetTelemetry(false, 0)
		}
		ms, err := strconv.ParseFloat(args[0], 64)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid interval %q", args[0])
		}
		return r.hub.SetTelemetry(true, ms)

	case "select":
		if len(args) != 1 {
			return errors.New("usage: select <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid program number %q", args[0])
		}
		return r.hub.SelectProgram(n)

	case "run":
		return r.hub.RunSelected()

	case "beep":
		v, err := floats(args, 0, 2, "beep [hz] [ms]")
		if err != nil {
			return err
		}
		if len(args) < 1 {
			v[0] = core.DefaultStartBeepHz
		}
		if len(args) < 2 {
			v[1] = core.DefaultStartBeepMS
		}
		return r.hub.Beep(v[0], v[1])

	case "led":
		if len(args) != 1 {
			return errors.New("usage: led <color>")
		}
		return r.hub.LED(args[0])

	case "reset":
		return r.hub.ResetDrivebase()

	case "ports":
		return r.printPorts()

	case "status":
		r.printStatus()
		return nil

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// floats parses between lo and hi numeric arguments. The result always
// has hi entries; missing ones are zero.
func floats(args []string, lo, hi int, usage string) ([]float64, error) {
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	out := make([]float64, hi)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func (r *repl) printPorts() error {
	ports, err := r.listPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(r.out, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		marker := " "
		if p.IsHub() {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s\n", marker, p)
	}
	return nil
}

func (r *repl) printStatus() {
	stats := r.hub.Stats()
	fmt.Fprintf(r.out, "Session:   %s\n", r.hub.ID())
	fmt.Fprintf(r.out, "Lines:     %d (telemetry %d, signals %d, logs %d, errors %d)\n",
		stats.Lines, stats.Telemetry, stats.Signals, stats.Logs, stats.DecodeErrors)

	if st, ok := r.hub.MenuStatus(); ok {
		fmt.Fprintf(r.out, "Menu:      program %d of %d, %s\n", st.Selected, st.Total, st.State)
	}
	if p, ok := r.hub.Position(); ok {
		fmt.Fprintf(r.out, "Position:  %s side, %.0fmm from bottom, %.0fmm from side, heading %.0f\n",
			p.Side, p.FromBottom, p.FromSide, p.Heading)
	}

	rec := r.hub.Telemetry()
	if rec == nil {
		fmt.Fprintln(r.out, "Telemetry: none received")
		return
	}
	fmt.Fprintf(r.out, "Telemetry: t=%dms\n", rec.Timestamp)
	if db := rec.Drivebase; db != nil && db.Distance != nil && db.Angle != nil {
		fmt.Fprintf(r.out, "  drivebase distance=%.1f angle=%.1f\n", *db.Distance, *db.Angle)
	}
	for _, name := range slices.Sorted(maps.Keys(rec.Motors)) {
		m := rec.Motors[name]
		switch {
		case m.Error != "":
			fmt.Fprintf(r.out, "  motor %s error=%s\n", name, m.Error)
		case m.Angle != nil && m.Speed != nil:
			fmt.Fprintf(r.out, "  motor %s angle=%.0f speed=%.0f\n", name, *m.Angle, *m.Speed)
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "\nAvailable commands:")
	fmt.Fprintln(r.out, "  drive <mm> [speed]         - Drive straight")
	fmt.Fprintln(r.out, "  turn <deg> [speed]         - Turn in place")
	fmt.Fprintln(r.out, "  arc <radius> <deg> [speed] - Drive along an arc")
	fmt.Fprintln(r.out, "  stop [motor]               - Stop the drivebase, or one motor")
	fmt.Fprintln(r.out, "  motor <name> <speed> [deg] - Run a motor")
	fmt.Fprintln(r.out, "  telemetry on|off|<ms>      - Switch telemetry or set its interval")
	fmt.Fprintln(r.out, "  select <n>                 - Select a menu program")
	fmt.Fprintln(r.out, "  run                        - Run the selected program")
	fmt.Fprintln(r.out, "  beep [hz] [ms]             - Play a tone")
	fmt.Fprintln(r.out, "  led <color>                - Set the hub light")
	fmt.Fprintln(r.out, "  reset                      - Reset the drivebase")
	fmt.Fprintln(r.out, "  raw <json>                 - Send a command line as is")
	fmt.Fprintln(r.out, "  ports                      - List serial ports")
	fmt.Fprintln(r.out, "  status                     - Show the latest hub state")
	fmt.Fprintln(r.out, "  quit/exit/q                - Exit the program")
	fmt.Fprintln(r.out)
}
