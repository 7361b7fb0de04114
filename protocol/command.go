package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidCommand is returned when a line is not a command or command list
var ErrInvalidCommand = errors.New("invalid command")

// Command actions
const (
	ActionDrive           = "drive"
	ActionTurn            = "turn"
	ActionArc             = "arc"
	ActionTurnAndDrive    = "turn_and_drive"
	ActionStop            = "stop"
	ActionDriveContinuous = "drive_continuous"
	ActionMotor           = "motor"
	ActionSetTelemetry    = "set_telemetry"
	ActionResetDrivebase  = "reset_drivebase"
	ActionSelectProgram   = "select_program"
	ActionRunSelected     = "run_selected"
	ActionBeep            = "beep"
	ActionLED             = "led"
)

// Stop behavior names accepted in stop_behavior
const (
	StopHold       = "hold"
	StopCoastSmart = "coast_smart"
	StopCoast      = "coast"
	StopBrake      = "brake"
)

// Command is one decoded input command. Optional fields are pointers so
// that an absent field can be told apart from an explicit zero.
type Command struct {
	Action        string   `json:"action"`
	Distance      *float64 `json:"distance,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
	Angle         *float64 `json:"angle,omitempty"`
	Radius        *float64 `json:"radius,omitempty"`
	StartAngle    *float64 `json:"startAngle,omitempty"`
	EndAngle      *float64 `json:"endAngle,omitempty"`
	TurnRate      *float64 `json:"turn_rate,omitempty"`
	StopBehavior  *string  `json:"stop_behavior,omitempty"`
	Motor         string   `json:"motor,omitempty"`
	Port          string   `json:"port,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
	Interval      *float64 `json:"interval,omitempty"`
	ProgramNumber *float64 `json:"program_number,omitempty"`
	Frequency     *float64 `json:"frequency,omitempty"`
	Duration      *float64 `json:"duration,omitempty"`
	Color         string   `json:"color,omitempty"`
}

// Batch is the result of parsing one input line
type Batch struct {
	Commands []Command
	// Errors holds the decode failure of each sequence step, indexed like
	// Commands. The Command at a failed index is zero. Nil when every step
	// decoded.
	Errors   []error
	Sequence bool // the line was a JSON array
}

// StepErr returns the decode failure of step i, or nil
func (b Batch) StepErr(i int) error {
	if i < len(b.Errors) {
		return b.Errors[i]
	}
	return nil
}

// Err returns the first step decode failure, or nil
func (b Batch) Err() error {
	for _, err := range b.Errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// Or returns *p, or def when p is nil
func Or[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// IsMotion reports whether the action settles a drivebase move and so
// takes part in sequence stop-behavior chaining
func IsMotion(action string) bool {
	switch action {
	case ActionDrive, ActionTurn, ActionArc:
		return true
	}
	return false
}

// MotorName returns the motor field, falling back to port
func (c *Command) MotorName() string {
	if c.Motor != "" {
		return c.Motor
	}
	return c.Port
}

// StopBehaviorName returns the declared stop behavior, or hold
func (c *Command) StopBehaviorName() string {
	return Or(c.StopBehavior, StopHold)
}

// ProgramNum returns program_number as a program number. A missing or
// fractional value reports false.
func (c *Command) ProgramNum() (int, bool) {
	if c.ProgramNumber == nil {
		return 0, false
	}
	n := *c.ProgramNumber
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// WithStopBehavior returns a copy of c with stop_behavior replaced
func (c Command) WithStopBehavior(name string) Command {
	c.StopBehavior = &name
	return c
}

// ParseLine decodes one input line. The literal null decodes to an empty
// batch. A sequence step that does not decode is recorded in
// Batch.Errors; the other steps are kept.
func ParseLine(line string) (Batch, error) {
	data := bytes.TrimSpace([]byte(line))
	if len(data) == 0 {
		return Batch{}, fmt.Errorf("%w: empty line", ErrInvalidCommand)
	}

	switch data[0] {
	case '[':
		var steps []json.RawMessage
		if err := json.Unmarshal(data, &steps); err != nil {
			return Batch{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		batch := Batch{Commands: make([]Command, len(steps)), Sequence: true}
		for i, step := range steps {
			if err := json.Unmarshal(step, &batch.Commands[i]); err != nil {
				if batch.Errors == nil {
					batch.Errors = make([]error, len(steps))
				}
				batch.Commands[i] = Command{}
				batch.Errors[i] = fmt.Errorf("%w: step %d: %v", ErrInvalidCommand, i+1, err)
			}
		}
		return batch, nil

	case '{':
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return Batch{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return Batch{Commands: []Command{cmd}}, nil
	}

	if string(data) == "null" {
		return Batch{}, nil
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	// Valid JSON that is neither an object nor a list
	return Batch{}, fmt.Errorf("%w: expected object or list, got %s", ErrInvalidCommand, truncate(string(data), 32))
}

// EncodeLine renders commands as one input line. A single command is
// written as an object, more than one as a sequence.
func EncodeLine(cmds ...Command) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch len(cmds) {
	case 0:
		return nil, fmt.Errorf("%w: nothing to encode", ErrInvalidCommand)
	case 1:
		data, err = json.Marshal(cmds[0])
	default:
		data, err = json.Marshal(cmds)
	}
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeSequence always renders a list, even for one command
func EncodeSequence(cmds []Command) ([]byte, error) {
	data, err := json.Marshal(cmds)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
