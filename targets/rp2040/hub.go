//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync"
	"time"

	"pilot/core"
)

// Board wiring
const (
	buttonLeftPin   = machine.GP10
	buttonRightPin  = machine.GP11
	buttonCenterPin = machine.GP12
	buzzerPin       = machine.GP15

	// VSYS through the on-board 1/3 divider
	batteryPin     = machine.ADC3
	batteryDivider = 3.0
	adcReference   = 3.3
)

var errNoAccelerometer = errors.New("no accelerometer")

// buzzerPWM abstracts over TinyGo's unexported *pwmGroup type
type buzzerPWM interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	SetPeriod(period uint64) error
	Top() uint32
	Set(channel uint8, value uint32)
}

// Hub is a Pico based hub: battery sense, an optional accelerometer,
// the on-board LED, a PWM buzzer and three push buttons. Its heading
// comes from the drivebase.
type Hub struct {
	name string

	battery machine.ADC
	accel   *Accelerometer
	heading func() (float64, error)

	buzzer  buzzerPWM
	channel uint8

	mu          sync.Mutex
	headingZero float64
	lastHeading float64
	lastAt      time.Time
	stopButton  core.Button
}

var (
	_ core.Hub              = (*Hub)(nil)
	_ core.Battery          = (*Hub)(nil)
	_ core.IMU              = (*Hub)(nil)
	_ core.Light            = (*Hub)(nil)
	_ core.Speaker          = (*Hub)(nil)
	_ core.ButtonReader     = (*Hub)(nil)
	_ core.StopButtonSetter = (*Hub)(nil)
)

// NewHub configures the board peripherals. accel may be nil.
func NewHub(name string, accel *Accelerometer, heading func() (float64, error)) (*Hub, error) {
	h := &Hub{
		name:       name,
		battery:    machine.ADC{Pin: batteryPin},
		accel:      accel,
		heading:    heading,
		buzzer:     machine.PWM7,
		stopButton: core.ButtonCenter,
	}

	machine.InitADC()
	if err := h.battery.Configure(machine.ADCConfig{}); err != nil {
		return nil, err
	}

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	for _, pin := range []machine.Pin{buttonLeftPin, buttonRightPin, buttonCenterPin} {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}

	// GP15 is PWM slice 7, channel B
	if err := h.buzzer.Configure(machine.PWMConfig{Period: uint64(time.Second / 1000)}); err != nil {
		return nil, err
	}
	ch, err := h.buzzer.Channel(buzzerPin)
	if err != nil {
		return nil, err
	}
	h.channel = ch
	h.buzzer.Set(h.channel, 0)
	return h, nil
}

func (h *Hub) Name() (string, error) { return h.name, nil }

// Voltage returns the supply voltage in volts
func (h *Hub) Voltage() (float64, error) {
	raw := h.battery.Get()
	return float64(raw) / 65535 * adcReference * batteryDivider, nil
}

// Current is not sensed on this board
func (h *Hub) Current() (float64, error) {
	return 0, nil
}

func (h *Hub) Heading() (float64, error) {
	a, err := h.heading()
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return a - h.headingZero, nil
}

func (h *Hub) ResetHeading(angle float64) error {
	a, err := h.heading()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.headingZero = a - angle
	h.mu.Unlock()
	return nil
}

func (h *Hub) Acceleration() ([]float64, error) {
	if h.accel == nil {
		return nil, errNoAccelerometer
	}
	return h.accel.Acceleration()
}

// AngularVelocity differentiates the heading between calls; only the
// vertical axis is known
func (h *Hub) AngularVelocity() ([]float64, error) {
	a, err := h.heading()
	if err != nil {
		return nil, err
	}
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	rate := 0.0
	if !h.lastAt.IsZero() {
		if dt := now.Sub(h.lastAt).Seconds(); dt > 0 {
			rate = (a - h.lastHeading) / dt
		}
	}
	h.lastHeading, h.lastAt = a, now
	return []float64{0, 0, rate}, nil
}

// On lights the on-board LED for any color but none
func (h *Hub) On(c core.Color) error {
	machine.LED.Set(c != core.ColorNone)
	return nil
}

// Beep plays a square wave and blocks for its duration
func (h *Hub) Beep(frequency, durationMS int) error {
	if frequency <= 0 || durationMS <= 0 {
		return nil
	}
	if err := h.buzzer.SetPeriod(uint64(time.Second) / uint64(frequency)); err != nil {
		return err
	}
	h.buzzer.Set(h.channel, h.buzzer.Top()/2)
	time.Sleep(time.Duration(durationMS) * time.Millisecond)
	h.buzzer.Set(h.channel, 0)
	return nil
}

// Pressed reads the buttons; they pull low when pressed
func (h *Hub) Pressed() (core.ButtonSet, error) {
	var pressed []core.Button
	if !buttonLeftPin.Get() {
		pressed = append(pressed, core.ButtonLeft)
	}
	if !buttonRightPin.Get() {
		pressed = append(pressed, core.ButtonRight)
	}
	if !buttonCenterPin.Get() {
		pressed = append(pressed, core.ButtonCenter)
	}
	return core.Buttons(pressed...), nil
}

// SetStopButton records the program stop button. The board has no
// firmware level stop, so the setting only affects StopButton.
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
