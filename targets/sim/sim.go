// Package sim provides simulated hub hardware. Moves complete instantly and
// every reading can be set or made to fail.
package sim

import (
	"math"
	"sync"

	"pilot/core"
)

// Motor is a simulated regulated motor
type Motor struct {
	mu      sync.Mutex
	angle   float64
	speed   float64
	load    float64
	last    core.StopBehavior
	err     error
	history []MotorMove
}

// MotorMove records one completed RunAngle
type MotorMove struct {
	Speed float64
	Angle float64
	Then  core.StopBehavior
}

var (
	_ core.Motor        = (*Motor)(nil)
	_ core.LoadReporter = (*Motor)(nil)
)

func NewMotor() *Motor { return &Motor{} }

// Fail makes every call return err until cleared with Fail(nil)
func (m *Motor) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Motor) SetLoad(load float64) {
	m.mu.Lock()
	m.load = load
	m.mu.Unlock()
}

func (m *Motor) Angle() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.angle, m.err
}

func (m *Motor) Speed() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed, m.err
}

func (m *Motor) Load() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load, m.err
}

func (m *Motor) Run(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.speed = speed
	return nil
}

// RunAngle turns angle degrees in the direction of speed
func (m *Motor) RunAngle(speed, angle float64, then core.StopBehavior) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if speed == 0 {
		return nil
	}
	m.angle += math.Copysign(math.Abs(angle), speed)
	m.speed = 0
	m.last = then
	m.history = append(m.history, MotorMove{Speed: speed, Angle: angle, Then: then})
	return nil
}

func (m *Motor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.speed = 0
	return nil
}

// Advance integrates a running motor over ms milliseconds
func (m *Motor) Advance(ms int64) {
	m.mu.Lock()
	m.angle += m.speed * float64(ms) / 1000
	m.mu.Unlock()
}

// LastStop returns the stop behavior of the most recent move
func (m *Motor) LastStop() core.StopBehavior {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Motor) History() []MotorMove {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MotorMove(nil), m.history...)
}

// Gyro reports the heading of a source function, plus an offset
type Gyro struct {
	mu     sync.Mutex
	source func() (float64, error)
	offset float64
	err    error
}

// NewGyro reads its heading from source; a nil source reads 0
func NewGyro(source func() (float64, error)) *Gyro {
	if source == nil {
		source = func() (float64, error) { return 0, nil }
	}
	return &Gyro{source: source}
}

func (g *Gyro) Angle() (float64, error) {
	g.mu.Lock()
	offset, err, src := g.offset, g.err, g.source
	g.mu.Unlock()
	if err != nil {
		return 0, err
	}
	a, err := src()
	if err != nil {
		return 0, err
	}
	return a + offset, nil
}

// Reset makes the current heading read angle
func (g *Gyro) Reset(angle float64) error {
	raw, err := g.source()
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.offset = angle - raw
	g.mu.Unlock()
	return nil
}

// Drift adds deg to every reading
func (g *Gyro) Drift(deg float64) {
	g.mu.Lock()
	g.offset += deg
	g.mu.Unlock()
}

func (g *Gyro) Fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

// ColorSensor is a simulated color sensor. Colors use the Color.NAME form.
type ColorSensor struct {
	mu         sync.Mutex
	color      string
	reflection float64
	ambient    float64
	err        error
}

func NewColorSensor() *ColorSensor { return &ColorSensor{color: "Color.NONE"} }

// Set changes the sensor's readings
func (s *ColorSensor) Set(color string, reflection, ambient float64) {
	s.mu.Lock()
	s.color, s.reflection, s.ambient = color, reflection, ambient
	s.mu.Unlock()
}

func (s *ColorSensor) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *ColorSensor) Color() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color, s.err
}

func (s *ColorSensor) Reflection() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reflection, s.err
}

func (s *ColorSensor) Ambient() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ambient, s.err
}

// UltrasonicSensor measures distance in millimeters
type UltrasonicSensor struct {
	mu       sync.Mutex
	distance float64
	err      error
}

func NewUltrasonicSensor(distance float64) *UltrasonicSensor {
	return &UltrasonicSensor{distance: distance}
}

func (s *UltrasonicSensor) Set(distance float64) {
	s.mu.Lock()
	s.distance = distance
	s.mu.Unlock()
}

func (s *UltrasonicSensor) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *UltrasonicSensor) Distance() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance, s.err
}

// ForceSensor reads newtons and reports pressed above the threshold
type ForceSensor struct {
	mu        sync.Mutex
	force     float64
	threshold float64
}

func NewForceSensor() *ForceSensor { return &ForceSensor{threshold: 1} }

func (s *ForceSensor) Set(force float64) {
	s.mu.Lock()
	s.force = force
	s.mu.Unlock()
}

func (s *ForceSensor) Force() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.force, nil
}

func (s *ForceSensor) Pressed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.force >= s.threshold, nil
}

// RotationSensor follows a motor's angle
type RotationSensor struct {
	motor *Motor
}

func NewRotationSensor(m *Motor) *RotationSensor { return &RotationSensor{motor: m} }

func (s *RotationSensor) Angle() (float64, error) { return s.motor.Angle() }

func (s *RotationSensor) Speed() (float64, error) { return s.motor.Speed() }
