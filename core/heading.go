package core

import (
	"math"
	"sync"
)

// Turn-to-heading defaults
const (
	DefaultHeadingSpeed     = 90.0
	DefaultHeadingTolerance = 1.0
)

// Normalize maps an angle in degrees into (-180, 180].
// Non-finite input yields NaN.
func Normalize(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return math.NaN()
	}
	a := math.Mod(angle, 360)
	if a <= -180 {
		a += 360
	} else if a > 180 {
		a -= 360
	}
	return a
}

// HeadingTracker measures heading relative to a captured gyro reference
type HeadingTracker struct {
	registry *Registry
	console  *Console

	mu        sync.Mutex
	reference float64
	hasRef    bool
}

// NewHeadingTracker creates a tracker with no reference
func NewHeadingTracker(registry *Registry, console *Console) *HeadingTracker {
	return &HeadingTracker{registry: registry, console: console}
}

// rawHeading reads the registered gyro. The hub IMU is only used when it
// was registered as the gyro with GyroFromIMU.
func (h *HeadingTracker) rawHeading() (float64, bool) {
	g := h.registry.Gyro()
	if g == nil {
		return 0, false
	}

	var angle float64
	err := guard(func() error {
		var err error
		angle, err = g.Angle()
		return err
	})
	if err != nil {
		h.console.Log("Gyro read error:", err)
		return 0, false
	}
	return angle, true
}

// ResetReference captures the current raw heading as zero. Without a
// heading source the reference is cleared.
func (h *HeadingTracker) ResetReference() bool {
	raw, ok := h.rawHeading()

	h.mu.Lock()
	h.reference = raw
	h.hasRef = ok
	h.mu.Unlock()

	if ok {
		h.console.Log("Heading reference reset to 0")
	} else {
		h.console.Log("Warning: No gyro available; turn_to_heading will use relative turns")
	}
	return ok
}

// Reference returns the captured raw reference
func (h *HeadingTracker) Reference() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reference, h.hasRef
}

// RelativeHeading returns the heading relative to the reference, or the
// normalized raw heading when no reference is set
func (h *HeadingTracker) RelativeHeading() (float64, bool) {
	raw, ok := h.rawHeading()
	if !ok {
		return 0, false
	}
	ref, hasRef := h.Reference()
	if !hasRef {
		return Normalize(raw), true
	}
	return Normalize(raw - ref), true
}

// DriveStraight drives distance mm. A zero speed keeps the current
// straight speed.
func (a *Agent) DriveStraight(distance, speed float64, then StopBehavior) error {
	db := a.registry.Drivebase()
	if db == nil {
		a.console.Log("No drivebase registered for drive_straight")
		return ErrNoDrivebase
	}
	if speed != 0 {
		if err := db.SetStraightSpeed(speed); err != nil {
			return err
		}
	}
	return db.Straight(distance, then)
}

// DriveArc drives a curve of radius mm through angle degrees
func (a *Agent) DriveArc(radius, angle, speed float64, then StopBehavior) error {
	db := a.registry.Drivebase()
	if db == nil {
		a.console.Log("No drivebase registered for drive_arc")
		return ErrNoDrivebase
	}
	if speed != 0 {
		if err := db.SetStraightSpeed(speed); err != nil {
			return err
		}
	}
	return db.Curve(radius, angle, then)
}

// TurnToHeading turns to target degrees relative to the heading
// reference and returns the relative heading after the turn. The
// reference is captured on first use. Without a gyro the target is
// turned as a relative angle, unnormalized, and returned normalized. Errors within
// tolerance command no motion.
func (a *Agent) TurnToHeading(target, speed, tolerance float64, then StopBehavior) (float64, error) {
	db := a.registry.Drivebase()
	if db == nil {
		a.console.Log("No drivebase registered for turn_to_heading")
		return 0, ErrNoDrivebase
	}
	if speed != 0 {
		if err := db.SetTurnRate(speed); err != nil {
			return 0, err
		}
	}

	current, ok := a.heading.RelativeHeading()
	if !ok {
		a.console.Log("No gyro heading; relative turn of", target, "degrees")
		return Normalize(target), db.Turn(target, then)
	}
	if _, hasRef := a.heading.Reference(); !hasRef {
		a.heading.ResetReference()
		current, _ = a.heading.RelativeHeading()
	}

	delta := Normalize(target - current)
	if math.Abs(delta) <= tolerance {
		return current, nil
	}
	a.console.Log("Turning to heading", target, "from", current, "by", delta)
	if err := db.Turn(delta, then); err != nil {
		return current, err
	}
	if after, ok := a.heading.RelativeHeading(); ok {
		return after, nil
	}
	return Normalize(current + delta), nil
}
