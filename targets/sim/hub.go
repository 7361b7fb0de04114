package sim

import (
	"math"
	"strconv"
	"sync"

	"pilot/core"
)

// Hub is a simulated hub with every subsystem
type Hub struct {
	name string

	mu          sync.Mutex
	voltage     float64
	current     float64
	heading     func() (float64, error)
	headingZero float64
	accel       []float64
	gyroRate    []float64
	pressed     core.ButtonSet
	stopButton  core.Button
	light       core.Color
	display     string
	beeps       []Beep

	// OnDisplay and OnLight, when set, observe display and light changes
	OnDisplay func(string)
	OnLight   func(core.Color)
}

// Beep records one speaker tone
type Beep struct {
	Frequency  int
	DurationMS int
}

var (
	_ core.Hub              = (*Hub)(nil)
	_ core.Battery          = (*Hub)(nil)
	_ core.IMU              = (*Hub)(nil)
	_ core.Display          = (*Hub)(nil)
	_ core.Light            = (*Hub)(nil)
	_ core.Speaker          = (*Hub)(nil)
	_ core.ButtonReader     = (*Hub)(nil)
	_ core.StopButtonSetter = (*Hub)(nil)
)

// NewHub creates a hub at rest with a full battery
func NewHub(name string) *Hub {
	return &Hub{
		name:       name,
		voltage:    8.3,
		current:    120,
		accel:      []float64{0, 0, 9810},
		gyroRate:   []float64{0, 0, 0},
		stopButton: core.ButtonCenter,
	}
}

func (h *Hub) Name() (string, error) { return h.name, nil }

func (h *Hub) Voltage() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.voltage, nil
}

func (h *Hub) Current() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, nil
}

// SetBattery changes the battery readings: volts and milliamps
func (h *Hub) SetBattery(voltage, current float64) {
	h.mu.Lock()
	h.voltage, h.current = voltage, current
	h.mu.Unlock()
}

// FollowHeading makes the IMU heading track source, such as a drivebase angle
func (h *Hub) FollowHeading(source func() (float64, error)) {
	h.mu.Lock()
	h.heading = source
	h.mu.Unlock()
}

func (h *Hub) Heading() (float64, error) {
	h.mu.Lock()
	src, zero := h.heading, h.headingZero
	h.mu.Unlock()
	if src == nil {
		return zero, nil
	}
	a, err := src()
	if err != nil {
		return 0, err
	}
	return a + zero, nil
}

func (h *Hub) ResetHeading(angle float64) error {
	var raw float64
	h.mu.Lock()
	src := h.heading
	h.mu.Unlock()
	if src != nil {
		a, err := src()
		if err != nil {
			return err
		}
		raw = a
	}
	h.mu.Lock()
	h.headingZero = angle - raw
	h.mu.Unlock()
	return nil
}

func (h *Hub) Acceleration() ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.accel...), nil
}

func (h *Hub) AngularVelocity() ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.gyroRate...), nil
}

// Tilt sets the gravity vector from pitch and roll in degrees
func (h *Hub) Tilt(pitch, roll float64) {
	p, r := pitch*math.Pi/180, roll*math.Pi/180
	h.mu.Lock()
	h.accel = []float64{
		-9810 * math.Sin(p),
		9810 * math.Sin(r) * math.Cos(p),
		9810 * math.Cos(r) * math.Cos(p),
	}
	h.mu.Unlock()
}

func (h *Hub) Number(n int) error {
	return h.show(strconv.Itoa(n))
}

func (h *Hub) Text(s string) error {
	return h.show(s)
}

func (h *Hub) show(s string) error {
	h.mu.Lock()
	h.display = s
	cb := h.OnDisplay
	h.mu.Unlock()
	if cb != nil {
		cb(s)
	}
	return nil
}

// Shown returns what the display last showed
func (h *Hub) Shown() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.display
}

func (h *Hub) On(c core.Color) error {
	h.mu.Lock()
	h.light = c
	cb := h.OnLight
	h.mu.Unlock()
	if cb != nil {
		cb(c)
	}
	return nil
}

func (h *Hub) LightColor() core.Color {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.light
}

func (h *Hub) Beep(frequency, durationMS int) error {
	h.mu.Lock()
	h.beeps = append(h.beeps, Beep{Frequency: frequency, DurationMS: durationMS})
	h.mu.Unlock()
	return nil
}

func (h *Hub) Beeps() []Beep {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Beep(nil), h.beeps...)
}

// Press holds buttons down until Release
func (h *Hub) Press(bs ...core.Button) {
	h.mu.Lock()
	h.pressed = core.Buttons(bs...)
	h.mu.Unlock()
}

func (h *Hub) Release() {
	h.mu.Lock()
	h.pressed = 0
	h.mu.Unlock()
}

func (h *Hub) Pressed() (core.ButtonSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pressed, nil
}

func (h *Hub) SetStopButton(b core.Button) error {
	h.mu.Lock()
	h.stopButton = b
	h.mu.Unlock()
	return nil
}

func (h *Hub) StopButton() core.Button {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopButton
}
