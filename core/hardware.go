package core

// Hardware interfaces the agent drives. Blocking motion calls return once
// the move has settled under the requested stop behavior.

// Motor is a single regulated motor
type Motor interface {
	Angle() (float64, error)
	Speed() (float64, error)
	Run(speed float64) error
	RunAngle(speed, angle float64, then StopBehavior) error
	Stop() error
}

// LoadReporter is implemented by motors that can report their load
type LoadReporter interface {
	Load() (float64, error)
}

// Drivebase is a two-wheeled chassis
type Drivebase interface {
	SetStraightSpeed(speed float64) error
	SetTurnRate(rate float64) error
	Straight(distance float64, then StopBehavior) error
	Turn(angle float64, then StopBehavior) error
	Curve(radius, angle float64, then StopBehavior) error
	Drive(speed, turnRate float64) error
	Stop() error
	Reset() error
	Distance() (float64, error)
	Angle() (float64, error)
}

// Arcer is implemented by drivebases with a native arc primitive
type Arcer interface {
	Arc(radius, angle float64, then StopBehavior) error
}

// DriveState is the full drivebase state vector
type DriveState struct {
	Distance   float64
	DriveSpeed float64
	Angle      float64
	TurnRate   float64
}

// StateReporter is implemented by drivebases that expose their state vector
type StateReporter interface {
	State() (DriveState, error)
}

// Gyro is a heading source registered separately from the hub
type Gyro interface {
	Angle() (float64, error)
}

// SpeedReporter is implemented by gyros and rotation sensors with a rate output
type SpeedReporter interface {
	Speed() (float64, error)
}

// Sensor kinds

type ColorSensor interface {
	Color() (string, error)
}

type ReflectionSensor interface {
	Reflection() (float64, error)
}

type AmbientSensor interface {
	Ambient() (float64, error)
}

type UltrasonicSensor interface {
	Distance() (float64, error)
}

type ForceSensor interface {
	Force() (float64, error)
	Pressed() (bool, error)
}

type RotationSensor interface {
	Angle() (float64, error)
}

// Hub subsystems. A hub implements any subset of these.

// Hub is the central controller. Name is its system name.
type Hub interface {
	Name() (string, error)
}

type Battery interface {
	Voltage() (float64, error)
	Current() (float64, error)
}

// IMU is the hub's inertial unit. Vector readings should have three components.
type IMU interface {
	Heading() (float64, error)
	Acceleration() ([]float64, error)
	AngularVelocity() ([]float64, error)
	ResetHeading(angle float64) error
}

type Display interface {
	Number(n int) error
	Text(s string) error
}

type Light interface {
	On(c Color) error
}

type Speaker interface {
	Beep(frequency, durationMS int) error
}

type ButtonReader interface {
	Pressed() (ButtonSet, error)
}

type StopButtonSetter interface {
	SetStopButton(b Button) error
}

// Button identifies a hub button
type Button uint8

const (
	ButtonLeft Button = 1 << iota
	ButtonRight
	ButtonCenter
	ButtonBluetooth
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "LEFT"
	case ButtonRight:
		return "RIGHT"
	case ButtonCenter:
		return "CENTER"
	case ButtonBluetooth:
		return "BLUETOOTH"
	}
	return "UNKNOWN"
}

// ButtonSet is a bit set of pressed buttons
type ButtonSet uint8

// Buttons builds a set
func Buttons(bs ...Button) ButtonSet {
	var s ButtonSet
	for _, b := range bs {
		s |= ButtonSet(b)
	}
	return s
}

// Has reports whether b is in the set
func (s ButtonSet) Has(b Button) bool {
	return s&ButtonSet(b) != 0
}

// Color is a hub light color
type Color uint8

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorBlue
	ColorYellow
	ColorWhite
	ColorOrange
	ColorViolet
)

var colorNames = [...]string{"NONE", "RED", "GREEN", "BLUE", "YELLOW", "WHITE", "ORANGE", "VIOLET"}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "UNKNOWN"
}

// ParseColor maps a color name to a Color. "off" is an alias for none.
func ParseColor(name string) (Color, bool) {
	n := toUpper(name)
	if n == "OFF" {
		return ColorNone, true
	}
	for i, cn := range colorNames {
		if cn == n {
			return Color(i), true
		}
	}
	return ColorNone, false
}
