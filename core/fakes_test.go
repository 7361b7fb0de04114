package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"pilot/protocol"
)

// lineLog captures console output
type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) write(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

func (l *lineLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *lineLog) has(sub string) bool {
	for _, s := range l.all() {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (l *lineLog) withPrefix(prefix string) []string {
	var out []string
	for _, s := range l.all() {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func newTestConsole() (*Console, *lineLog) {
	log := &lineLog{}
	return NewConsole(log.write), log
}

// move is one recorded drivebase call
type move struct {
	Kind   string
	Value  float64
	Radius float64
	Then   StopBehavior
}

type fakeDrivebase struct {
	mu        sync.Mutex
	moves     []move
	speed     float64
	turnRate  float64
	distance  float64
	angle     float64
	resets    int
	failWith  error
	panicWith interface{}
}

func (d *fakeDrivebase) record(m move) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicWith != nil {
		panic(d.panicWith)
	}
	if d.failWith != nil {
		return d.failWith
	}
	d.moves = append(d.moves, m)
	return nil
}

func (d *fakeDrivebase) Moves() []move {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]move(nil), d.moves...)
}

func (d *fakeDrivebase) SetStraightSpeed(speed float64) error {
	d.mu.Lock()
	d.speed = speed
	d.mu.Unlock()
	return nil
}

func (d *fakeDrivebase) SetTurnRate(rate float64) error {
	d.mu.Lock()
	d.turnRate = rate
	d.mu.Unlock()
	return nil
}

func (d *fakeDrivebase) Straight(distance float64, then StopBehavior) error {
	if err := d.record(move{Kind: "straight", Value: distance, Then: then}); err != nil {
		return err
	}
	d.mu.Lock()
	d.distance += distance
	d.mu.Unlock()
	return nil
}

func (d *fakeDrivebase) Turn(angle float64, then StopBehavior) error {
	if err := d.record(move{Kind: "turn", Value: angle, Then: then}); err != nil {
		return err
	}
	d.mu.Lock()
	d.angle += angle
	d.mu.Unlock()
	return nil
}

func (d *fakeDrivebase) Curve(radius, angle float64, then StopBehavior) error {
	return d.record(move{Kind: "curve", Value: angle, Radius: radius, Then: then})
}

func (d *fakeDrivebase) Drive(speed, turnRate float64) error {
	return d.record(move{Kind: "drive", Value: speed, Radius: turnRate})
}

func (d *fakeDrivebase) Stop() error {
	return d.record(move{Kind: "stop"})
}

func (d *fakeDrivebase) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	d.distance, d.angle = 0, 0
	return nil
}

func (d *fakeDrivebase) Distance() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.distance, nil
}

func (d *fakeDrivebase) Angle() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.angle, nil
}

// arcDrivebase adds a native arc primitive
type arcDrivebase struct {
	fakeDrivebase
}

func (d *arcDrivebase) Arc(radius, angle float64, then StopBehavior) error {
	return d.record(move{Kind: "arc", Value: angle, Radius: radius, Then: then})
}

// stateDrivebase reports a full state vector
type stateDrivebase struct {
	fakeDrivebase
	state DriveState
}

func (d *stateDrivebase) State() (DriveState, error) {
	return d.state, nil
}

type fakeMotor struct {
	mu      sync.Mutex
	angle   float64
	speed   float64
	load    float64
	running float64
	stopped int
	ranTo   []float64
	err     error
}

func (m *fakeMotor) Angle() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.angle, m.err
}

func (m *fakeMotor) Speed() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed, m.err
}

func (m *fakeMotor) Run(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = speed
	return nil
}

func (m *fakeMotor) RunAngle(speed, angle float64, then StopBehavior) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranTo = append(m.ranTo, angle)
	m.angle += angle
	return nil
}

func (m *fakeMotor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	m.running = 0
	return nil
}

// loadMotor reports load
type loadMotor struct {
	fakeMotor
	loadErr error
}

func (m *loadMotor) Load() (float64, error) {
	return m.load, m.loadErr
}

type fakeGyro struct {
	mu    sync.Mutex
	angle float64
	err   error
}

func (g *fakeGyro) Set(angle float64) {
	g.mu.Lock()
	g.angle = angle
	g.mu.Unlock()
}

func (g *fakeGyro) Angle() (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.angle, g.err
}

// fakeHub implements every hub subsystem
type fakeHub struct {
	mu          sync.Mutex
	name        string
	voltage     float64
	current     float64
	batteryErr  error
	heading     float64
	accel       []float64
	gyroRate    []float64
	displayed   []string
	lights      []Color
	beeps       [][2]int
	pressed     ButtonSet
	stopButton  Button
	headingSets []float64
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		name:     "pilot-hub",
		voltage:  8.1,
		current:  0.2,
		accel:    []float64{0, 0, 9.8},
		gyroRate: []float64{0, 0, 0},
	}
}

func (h *fakeHub) Name() (string, error) {
	return h.name, nil
}

func (h *fakeHub) Voltage() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.voltage, h.batteryErr
}

func (h *fakeHub) Current() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.batteryErr
}

func (h *fakeHub) Heading() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heading, nil
}

func (h *fakeHub) Acceleration() ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accel, nil
}

func (h *fakeHub) AngularVelocity() ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gyroRate, nil
}

func (h *fakeHub) ResetHeading(angle float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heading = angle
	h.headingSets = append(h.headingSets, angle)
	return nil
}

func (h *fakeHub) Number(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displayed = append(h.displayed, fmt.Sprint(n))
	return nil
}

func (h *fakeHub) Text(s string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displayed = append(h.displayed, s)
	return nil
}

func (h *fakeHub) On(c Color) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lights = append(h.lights, c)
	return nil
}

func (h *fakeHub) Beep(frequency, duration int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beeps = append(h.beeps, [2]int{frequency, duration})
	return nil
}

func (h *fakeHub) Press(bs ...Button) {
	h.mu.Lock()
	h.pressed = Buttons(bs...)
	h.mu.Unlock()
}

func (h *fakeHub) Pressed() (ButtonSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pressed, nil
}

func (h *fakeHub) SetStopButton(b Button) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopButton = b
	return nil
}

func (h *fakeHub) lastDisplay() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.displayed) == 0 {
		return ""
	}
	return h.displayed[len(h.displayed)-1]
}

func (h *fakeHub) lastLight() Color {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lights) == 0 {
		return ColorNone
	}
	return h.lights[len(h.lights)-1]
}

// minimalHub only has a name
type minimalHub struct{}

func (minimalHub) Name() (string, error) { return "minimal", nil }

// Sensors

type fakeColorSensor struct {
	color      string
	reflection float64
	ambient    float64
	colorErr   error
	reflectErr error
}

func (s *fakeColorSensor) Color() (string, error) { return s.color, s.colorErr }

func (s *fakeColorSensor) Reflection() (float64, error) { return s.reflection, s.reflectErr }

func (s *fakeColorSensor) Ambient() (float64, error) { return s.ambient, nil }

type fakeUltrasonic struct {
	distance float64
	err      error
}

func (s *fakeUltrasonic) Distance() (float64, error) { return s.distance, s.err }

type fakeForce struct {
	force   float64
	pressed bool
}

func (s *fakeForce) Force() (float64, error) { return s.force, nil }

func (s *fakeForce) Pressed() (bool, error) { return s.pressed, nil }

type fakeRotation struct {
	angle float64
}

func (s *fakeRotation) Angle() (float64, error) { return s.angle, nil }

type panicSensor struct{}

func (panicSensor) Distance() (float64, error) { panic("sensor unplugged") }

type genericSensor struct{}

func (genericSensor) String() string { return "GenericSensor(port A)" }

var errRead = errors.New("read failed")

// testAgent builds an agent on a manual clock with a byte feed
type testAgent struct {
	*Agent
	clock *ManualClock
	log   *lineLog
	input *protocol.FifoBuffer
}

func newTestAgent() *testAgent {
	console, log := newTestConsole()
	clock := NewManualClock(1000)
	input := protocol.NewFifoBuffer(1024)
	a := NewAgent(input, console, clock, DefaultOptions())
	return &testAgent{Agent: a, clock: clock, log: log, input: input}
}

// send queues one input line
func (ta *testAgent) send(line string) {
	ta.input.Write([]byte(line + "\n"))
}

// drain polls until the input is consumed
func (ta *testAgent) drain() {
	for i := 0; i < 1000 && ta.ProcessCommands() > 0; i++ {
	}
}
