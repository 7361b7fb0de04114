package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestParseLineSingle(t *testing.T) {
	batch, err := ParseLine(`{"action":"drive","distance":100,"speed":200}`)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if batch.Sequence {
		t.Error("Single object should not be a sequence")
	}
	if len(batch.Commands) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(batch.Commands))
	}

	cmd := batch.Commands[0]
	if cmd.Action != ActionDrive {
		t.Errorf("Expected action drive, got %q", cmd.Action)
	}
	if Or(cmd.Distance, 0) != 100 || Or(cmd.Speed, 0) != 200 {
		t.Errorf("Unexpected fields: distance=%v speed=%v", Or(cmd.Distance, 0), Or(cmd.Speed, 0))
	}
	if cmd.Angle != nil {
		t.Error("Absent angle should stay nil")
	}
	if cmd.StopBehaviorName() != StopHold {
		t.Errorf("Expected default stop behavior hold, got %q", cmd.StopBehaviorName())
	}
}

func TestParseLineSequence(t *testing.T) {
	batch, err := ParseLine(`[{"action":"turn","angle":90},{"action":"drive","distance":50,"stop_behavior":"brake"}]`)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if !batch.Sequence {
		t.Error("List should be a sequence")
	}
	if len(batch.Commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(batch.Commands))
	}
	if batch.Commands[1].StopBehaviorName() != StopBrake {
		t.Errorf("Expected brake, got %q", batch.Commands[1].StopBehaviorName())
	}
}

func TestParseLineRejects(t *testing.T) {
	tests := []string{
		"",
		"not json",
		`{"action":`,
		`42`,
		`"drive"`,
		`[{"action":"drive"}`,
		`{"action":"drive","distance":"far"}`,
	}

	for _, line := range tests {
		_, err := ParseLine(line)
		if !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("ParseLine(%q): expected ErrInvalidCommand, got %v", line, err)
		}
	}
}

func TestParseLineSequenceKeepsGoodSteps(t *testing.T) {
	batch, err := ParseLine(`[{"action":"drive","distance":"100"},"turn",{"action":"turn","angle":90}]`)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if len(batch.Commands) != 3 || len(batch.Errors) != 3 {
		t.Fatalf("Expected 3 positions, got %d commands and %d errors", len(batch.Commands), len(batch.Errors))
	}
	for i := 0; i < 2; i++ {
		if !errors.Is(batch.StepErr(i), ErrInvalidCommand) {
			t.Errorf("Step %d: expected ErrInvalidCommand, got %v", i+1, batch.StepErr(i))
		}
		if batch.Commands[i].Action != "" {
			t.Errorf("Step %d: expected a zero command, got %+v", i+1, batch.Commands[i])
		}
	}
	if batch.StepErr(2) != nil || batch.Commands[2].Action != ActionTurn || Or(batch.Commands[2].Angle, 0) != 90 {
		t.Errorf("Expected the turn step kept, got %+v (%v)", batch.Commands[2], batch.StepErr(2))
	}
	if !errors.Is(batch.Err(), ErrInvalidCommand) {
		t.Errorf("Expected Err to report the first failure, got %v", batch.Err())
	}

	batch, _ = ParseLine(`[{"action":"stop"}]`)
	if batch.Errors != nil || batch.Err() != nil {
		t.Errorf("Expected no step errors, got %v", batch.Errors)
	}
}

func TestProgramNum(t *testing.T) {
	tests := []struct {
		line string
		want int
		ok   bool
	}{
		{`{"action":"select_program","program_number":3}`, 3, true},
		{`{"action":"select_program","program_number":1.0}`, 1, true},
		{`{"action":"select_program","program_number":1.5}`, 0, false},
		{`{"action":"select_program"}`, 0, false},
	}

	for _, tt := range tests {
		batch, err := ParseLine(tt.line)
		if err != nil {
			t.Fatalf("ParseLine(%q) failed: %v", tt.line, err)
		}
		got, ok := batch.Commands[0].ProgramNum()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: got (%d, %v), want (%d, %v)", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseLineNull(t *testing.T) {
	batch, err := ParseLine("null")
	if err != nil {
		t.Fatalf("null should parse, got %v", err)
	}
	if len(batch.Commands) != 0 {
		t.Errorf("null should yield no commands, got %d", len(batch.Commands))
	}
}

func TestMotorName(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Motor: "arm"}, "arm"},
		{Command{Port: "A"}, "A"},
		{Command{Motor: "arm", Port: "A"}, "arm"},
		{Command{}, ""},
	}

	for _, tt := range tests {
		if got := tt.cmd.MotorName(); got != tt.want {
			t.Errorf("MotorName(%+v) = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestWithStopBehaviorCopies(t *testing.T) {
	orig := Command{Action: ActionDrive, StopBehavior: Ptr(StopBrake)}
	forced := orig.WithStopBehavior(StopCoastSmart)

	if orig.StopBehaviorName() != StopBrake {
		t.Errorf("Original was modified: %q", orig.StopBehaviorName())
	}
	if forced.StopBehaviorName() != StopCoastSmart {
		t.Errorf("Expected coast_smart, got %q", forced.StopBehaviorName())
	}
}

func TestIsMotion(t *testing.T) {
	for _, a := range []string{ActionDrive, ActionTurn, ActionArc} {
		if !IsMotion(a) {
			t.Errorf("%s should be a motion action", a)
		}
	}
	for _, a := range []string{ActionTurnAndDrive, ActionStop, ActionMotor, ActionBeep, ""} {
		if IsMotion(a) {
			t.Errorf("%q should not be a motion action", a)
		}
	}
}

func TestEncodeLine(t *testing.T) {
	one, err := EncodeLine(Command{Action: ActionStop})
	if err != nil {
		t.Fatalf("EncodeLine failed: %v", err)
	}
	if string(one) != `{"action":"stop"}`+"\n" {
		t.Errorf("Unexpected encoding: %q", one)
	}

	two, err := EncodeLine(
		Command{Action: ActionTurn, Angle: Ptr(90.0)},
		Command{Action: ActionDrive, Distance: Ptr(50.0)},
	)
	if err != nil {
		t.Fatalf("EncodeLine failed: %v", err)
	}
	if !strings.HasPrefix(string(two), "[") || !strings.HasSuffix(string(two), "]\n") {
		t.Errorf("Expected a list line, got %q", two)
	}

	batch, err := ParseLine(string(two))
	if err != nil || len(batch.Commands) != 2 || !batch.Sequence {
		t.Errorf("Encoded sequence did not parse back: %+v, %v", batch, err)
	}

	seq, err := EncodeSequence([]Command{{Action: ActionStop}})
	if err != nil {
		t.Fatalf("EncodeSequence failed: %v", err)
	}
	if string(seq) != `[{"action":"stop"}]`+"\n" {
		t.Errorf("Unexpected sequence encoding: %q", seq)
	}

	if _, err := EncodeLine(); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand for empty encode, got %v", err)
	}
}
