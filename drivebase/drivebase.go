// Package drivebase implements a differential two-wheel chassis on top of
// two regulated motors. Distances are in millimeters, angles in degrees,
// positive turns are clockwise.
package drivebase

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"pilot/core"
)

// Default motion settings
const (
	DefaultStraightSpeed = 200.0 // mm/s
	DefaultTurnRate      = 90.0  // deg/s
)

var ErrGeometry = errors.New("drivebase: wheel diameter and axle track must be positive")

// DriveBase drives two wheels as one chassis
type DriveBase struct {
	left, right core.Motor

	wheelDiameter float64
	axleTrack     float64

	mu            sync.Mutex
	straightSpeed float64
	turnRate      float64
	leftZero      float64
	rightZero     float64
}

var (
	_ core.Drivebase     = (*DriveBase)(nil)
	_ core.Arcer         = (*DriveBase)(nil)
	_ core.StateReporter = (*DriveBase)(nil)
)

// New creates a drivebase; wheelDiameter and axleTrack are in millimeters
func New(left, right core.Motor, wheelDiameter, axleTrack float64) (*DriveBase, error) {
	if left == nil || right == nil {
		return nil, errors.New("drivebase: both motors are required")
	}
	if !(wheelDiameter > 0) || !(axleTrack > 0) {
		return nil, fmt.Errorf("%w: diameter=%v track=%v", ErrGeometry, wheelDiameter, axleTrack)
	}
	d := &DriveBase{
		left:          left,
		right:         right,
		wheelDiameter: wheelDiameter,
		axleTrack:     axleTrack,
		straightSpeed: DefaultStraightSpeed,
		turnRate:      DefaultTurnRate,
	}
	if err := d.Reset(); err != nil {
		return nil, err
	}
	return d, nil
}

// degPerMM converts wheel travel to motor degrees
func (d *DriveBase) degPerMM() float64 {
	return 360 / (math.Pi * d.wheelDiameter)
}

func (d *DriveBase) settings() (speed, rate float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.straightSpeed, d.turnRate
}

func (d *DriveBase) SetStraightSpeed(speed float64) error {
	if math.IsNaN(speed) || speed == 0 {
		return fmt.Errorf("drivebase: invalid straight speed %v", speed)
	}
	d.mu.Lock()
	d.straightSpeed = math.Abs(speed)
	d.mu.Unlock()
	return nil
}

func (d *DriveBase) SetTurnRate(rate float64) error {
	if math.IsNaN(rate) || rate == 0 {
		return fmt.Errorf("drivebase: invalid turn rate %v", rate)
	}
	d.mu.Lock()
	d.turnRate = math.Abs(rate)
	d.mu.Unlock()
	return nil
}

// move runs both wheels to their targets at once; travel and speed are mm and mm/s
func (d *DriveBase) move(leftMM, rightMM, leftSpeed, rightSpeed float64, then core.StopBehavior) error {
	k := d.degPerMM()
	var g errgroup.Group
	g.Go(func() error { return runWheel(d.left, leftSpeed*k, leftMM*k, then) })
	g.Go(func() error { return runWheel(d.right, rightSpeed*k, rightMM*k, then) })
	return g.Wait()
}

// runWheel moves one wheel; the direction comes from the travel sign
func runWheel(m core.Motor, speed, angle float64, then core.StopBehavior) error {
	if angle == 0 {
		return nil
	}
	speed = math.Abs(speed)
	if angle < 0 {
		speed = -speed
	}
	return m.RunAngle(speed, math.Abs(angle), then)
}

// Straight drives distance millimeters; negative drives backwards
func (d *DriveBase) Straight(distance float64, then core.StopBehavior) error {
	speed, _ := d.settings()
	return d.move(distance, distance, speed, speed, then)
}

// Turn rotates in place by angle degrees
func (d *DriveBase) Turn(angle float64, then core.StopBehavior) error {
	_, rate := d.settings()
	arc := math.Pi * d.axleTrack * angle / 360
	wheelSpeed := math.Pi * d.axleTrack * rate / 360
	return d.move(arc, -arc, wheelSpeed, wheelSpeed, then)
}

// Curve drives along a circle of radius millimeters for angle degrees.
// A zero radius turns in place.
func (d *DriveBase) Curve(radius, angle float64, then core.StopBehavior) error {
	if radius == 0 {
		return d.Turn(angle, then)
	}
	speed, _ := d.settings()
	theta := angle * math.Pi / 180
	half := d.axleTrack / 2
	center := math.Abs(radius * theta)
	leftMM := (radius + half) * theta
	rightMM := (radius - half) * theta
	if radius < 0 {
		leftMM, rightMM = -leftMM, -rightMM
	}
	leftSpeed := speed * math.Abs(leftMM) / center
	rightSpeed := speed * math.Abs(rightMM) / center
	return d.move(leftMM, rightMM, leftSpeed, rightSpeed, then)
}

// Arc is Curve under the arc command's name
func (d *DriveBase) Arc(radius, angle float64, then core.StopBehavior) error {
	return d.Curve(radius, angle, then)
}

// Drive starts driving at speed mm/s while turning at turnRate deg/s until stopped
func (d *DriveBase) Drive(speed, turnRate float64) error {
	k := d.degPerMM()
	diff := turnRate * math.Pi / 180 * d.axleTrack / 2
	if err := d.left.Run((speed + diff) * k); err != nil {
		return err
	}
	return d.right.Run((speed - diff) * k)
}

func (d *DriveBase) Stop() error {
	return errors.Join(d.left.Stop(), d.right.Stop())
}

// Reset zeroes the distance and angle counters
func (d *DriveBase) Reset() error {
	l, r, err := d.wheelAngles()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.leftZero, d.rightZero = l, r
	d.mu.Unlock()
	return nil
}

func (d *DriveBase) wheelAngles() (left, right float64, err error) {
	if left, err = d.left.Angle(); err != nil {
		return 0, 0, err
	}
	if right, err = d.right.Angle(); err != nil {
		return 0, 0, err
	}
	return left, right, nil
}

// travel returns each wheel's travel in mm since the last reset
func (d *DriveBase) travel() (left, right float64, err error) {
	l, r, err := d.wheelAngles()
	if err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	l -= d.leftZero
	r -= d.rightZero
	d.mu.Unlock()
	k := d.degPerMM()
	return l / k, r / k, nil
}

// Distance is the mean wheel travel in millimeters
func (d *DriveBase) Distance() (float64, error) {
	l, r, err := d.travel()
	if err != nil {
		return 0, err
	}
	return (l + r) / 2, nil
}

// Angle is the chassis rotation in degrees estimated from the wheels
func (d *DriveBase) Angle() (float64, error) {
	l, r, err := d.travel()
	if err != nil {
		return 0, err
	}
	return (l - r) / d.axleTrack * 180 / math.Pi, nil
}

func (d *DriveBase) State() (core.DriveState, error) {
	l, r, err := d.travel()
	if err != nil {
		return core.DriveState{}, err
	}
	ls, err := d.left.Speed()
	if err != nil {
		return core.DriveState{}, err
	}
	rs, err := d.right.Speed()
	if err != nil {
		return core.DriveState{}, err
	}
	k := d.degPerMM()
	ls, rs = ls/k, rs/k
	return core.DriveState{
		Distance:   (l + r) / 2,
		DriveSpeed: (ls + rs) / 2,
		Angle:      (l - r) / d.axleTrack * 180 / math.Pi,
		TurnRate:   (ls - rs) / d.axleTrack * 180 / math.Pi,
	}, nil
}
