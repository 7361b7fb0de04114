package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Output line tags. Signal lines are machine-parsed, plain [PILOT] lines are not.
const (
	TagPilot         = "[PILOT]"
	TagMenu          = "[PILOT:MENU]"
	TagMenuStatus    = "[PILOT:MENU_STATUS]"
	TagSetPosition   = "[PILOT:SET_POSITION]"
	TagPositionReset = "[PILOT:POSITION_RESET]"
)

// Menu states as reported in status lines
const (
	MenuIdle    = "idle"
	MenuMenu    = "menu"
	MenuRunning = "running"
)

var (
	ErrNotTelemetry = errors.New("not a telemetry record")
	ErrNotSignal    = errors.New("not a signal line")
)

// LineKind classifies one output line
type LineKind uint8

const (
	LineOther LineKind = iota
	LineTelemetry
	LineMenuStatus
	LineSetPosition
	LinePositionReset
	LineLog
)

func (k LineKind) String() string {
	switch k {
	case LineTelemetry:
		return "telemetry"
	case LineMenuStatus:
		return "menu_status"
	case LineSetPosition:
		return "set_position"
	case LinePositionReset:
		return "position_reset"
	case LineLog:
		return "log"
	}
	return "other"
}

// ClassifyLine tells the host what kind of output line it received
func ClassifyLine(line string) LineKind {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, TagMenuStatus):
		return LineMenuStatus
	case strings.HasPrefix(line, TagSetPosition):
		return LineSetPosition
	case strings.HasPrefix(line, TagPositionReset):
		return LinePositionReset
	case strings.HasPrefix(line, "[PILOT"):
		return LineLog
	case strings.HasPrefix(line, "{") && strings.Contains(line, `"type"`):
		var head struct {
			Type string `json:"type"`
		}
		if json.Unmarshal([]byte(line), &head) == nil && head.Type == TelemetryType {
			return LineTelemetry
		}
	}
	return LineOther
}

// MenuStatus is the payload of a [PILOT:MENU_STATUS] line
type MenuStatus struct {
	Selected int    `json:"selected"`
	Total    int    `json:"total"`
	State    string `json:"state"`
}

func (s MenuStatus) String() string {
	return fmt.Sprintf("%s selected=%d total=%d state=%s", TagMenuStatus, s.Selected, s.Total, s.State)
}

// ParseMenuStatus parses a [PILOT:MENU_STATUS] line
func ParseMenuStatus(line string) (MenuStatus, error) {
	var s MenuStatus
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), TagMenuStatus)
	if !ok {
		return s, ErrNotSignal
	}
	_, err := fmt.Sscanf(rest, " selected=%d total=%d state=%s", &s.Selected, &s.Total, &s.State)
	if err != nil {
		return s, fmt.Errorf("menu status %q: %w", line, err)
	}
	return s, nil
}

// Position is a program's configured starting position on the field
type Position struct {
	Side       string  `json:"side"`
	FromBottom float64 `json:"fromBottom"`
	FromSide   float64 `json:"fromSide"`
	Heading    float64 `json:"heading"`
}

// FormatSetPosition renders a [PILOT:SET_POSITION] line
func FormatSetPosition(p Position) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return TagSetPosition + " " + string(data), nil
}

// ParseSetPosition parses a [PILOT:SET_POSITION] line
func ParseSetPosition(line string) (Position, error) {
	var p Position
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), TagSetPosition)
	if !ok {
		return p, ErrNotSignal
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest)), &p); err != nil {
		return p, fmt.Errorf("set position: %w", err)
	}
	return p, nil
}
