// Package pio drives stepper motors from RP2040 PIO state machines and
// exposes them to the agent as motors.
package pio

import (
	"errors"
	"math"
	"sync"
	"time"

	"pilot/core"
)

var ErrStepsPerDegree = errors.New("steps per degree must be positive")

// Stepper emits step pulse trains on one step and direction pin pair
type Stepper interface {
	// Queue emits count pulses spaced periodUS microseconds apart. It
	// gives up on pulses not yet handed to hardware once abort is closed.
	Queue(count uint32, periodUS uint32, reverse bool, abort <-chan struct{})
	// Halt drops pulses that have not been emitted yet
	Halt()
	Name() string
}

// Run feeds the stepper in slices of this length
const feedSlice = 100 * time.Millisecond

// Motor is an open-loop stepper motor. Its angle is counted from emitted
// steps, so it is only as accurate as the motor is unloaded. A stepper
// holds its position for every stop behavior.
type Motor struct {
	stepper        Stepper
	stepsPerDegree float64
	invert         bool

	now func() time.Time

	mu     sync.Mutex
	base   float64 // angle at the start of the current move
	speed  float64 // signed deg/s of the current move, zero when idle
	limit  float64 // travel of the current move in degrees, +Inf for Run
	start  time.Time
	cancel chan struct{}
}

// NewMotor wraps stepper. stepsPerDegree is full steps times microsteps
// per revolution, divided by 360.
func NewMotor(stepper Stepper, stepsPerDegree float64, invert bool) (*Motor, error) {
	if stepsPerDegree <= 0 {
		return nil, ErrStepsPerDegree
	}
	return &Motor{
		stepper:        stepper,
		stepsPerDegree: stepsPerDegree,
		invert:         invert,
		now:            time.Now,
	}, nil
}

func (m *Motor) Angle() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base + m.progressLocked(), nil
}

func (m *Motor) Speed() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speed == 0 || math.Abs(m.progressLocked()) >= m.limit {
		return 0, nil
	}
	return m.speed, nil
}

// progressLocked is the travel of the current move so far
func (m *Motor) progressLocked() float64 {
	if m.speed == 0 {
		return 0
	}
	travel := math.Abs(m.speed) * m.now().Sub(m.start).Seconds()
	if travel > m.limit {
		travel = m.limit
	}
	return math.Copysign(travel, m.speed)
}

// begin ends any current move and starts a new one
func (m *Motor) begin(speed, limit float64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.stepper.Halt()
	}
	m.endLocked()
	m.speed = speed
	m.limit = limit
	m.start = m.now()
	m.cancel = make(chan struct{})
	return m.cancel
}

// endLocked folds the current move into base and wakes its waiter
func (m *Motor) endLocked() {
	if m.cancel != nil {
		close(m.cancel)
		m.cancel = nil
	}
	m.base += m.progressLocked()
	m.speed = 0
}

// finish ends the move identified by cancel, if it is still current
func (m *Motor) finish(cancel chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == cancel {
		m.endLocked()
	}
}

// period converts a speed into a pulse period
func (m *Motor) period(speed float64) uint32 {
	us := math.Round(1e6 / (math.Abs(speed) * m.stepsPerDegree))
	return uint32(math.Min(us, math.MaxUint32))
}

func (m *Motor) reverse(speed float64) bool {
	return (speed < 0) != m.invert
}

// RunAngle turns angle degrees at speed and returns when done. The sign
// of speed times the sign of angle gives the direction.
func (m *Motor) RunAngle(speed, angle float64, then core.StopBehavior) error {
	steps := uint32(math.Round(math.Abs(angle) * m.stepsPerDegree))
	if steps == 0 || speed == 0 {
		return m.Stop()
	}
	if angle < 0 {
		speed = -speed
	}
	travel := float64(steps) / m.stepsPerDegree
	cancel := m.begin(speed, travel)

	m.stepper.Queue(steps, m.period(speed), m.reverse(speed), cancel)

	// Queue may return before the pulses are out
	wait := time.Duration(travel/math.Abs(speed)*float64(time.Second)) - m.now().Sub(m.start)
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-cancel:
			return nil
		}
	}
	m.finish(cancel)
	return nil
}

// Run turns at speed until stopped or given another move
func (m *Motor) Run(speed float64) error {
	if speed == 0 {
		return m.Stop()
	}
	cancel := m.begin(speed, math.Inf(1))
	period := m.period(speed)
	reverse := m.reverse(speed)
	perSlice := uint32(math.Max(1, math.Round(feedSlice.Seconds()*math.Abs(speed)*m.stepsPerDegree)))

	go func() {
		for {
			select {
			case <-cancel:
				return
			default:
			}
			m.stepper.Queue(perSlice, period, reverse, cancel)
		}
	}()
	return nil
}

func (m *Motor) Stop() error {
	m.mu.Lock()
	moving := m.cancel != nil
	m.endLocked()
	m.mu.Unlock()
	if moving {
		m.stepper.Halt()
	}
	return nil
}

// ResetAngle sets the counted angle without moving
func (m *Motor) ResetAngle(angle float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
	m.base = angle
}
