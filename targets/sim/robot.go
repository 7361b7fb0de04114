package sim

import (
	"pilot/core"
	"pilot/drivebase"
)

// Robot geometry in millimeters
const (
	WheelDiameter = 56.0
	AxleTrack     = 112.0
)

// Robot is a complete simulated robot: a hub, two drive motors on a
// drivebase, an arm motor and a set of sensors.
type Robot struct {
	Hub       *Hub
	Left      *Motor
	Right     *Motor
	Arm       *Motor
	Drivebase *drivebase.DriveBase
	Gyro      *Gyro
	Eye       *ColorSensor
	Sonar     *UltrasonicSensor
	Bumper    *ForceSensor
	Dial      *RotationSensor
}

// NewRobot builds a robot whose hub heading follows the drivebase angle
func NewRobot(name string) *Robot {
	r := &Robot{
		Hub:    NewHub(name),
		Left:   NewMotor(),
		Right:  NewMotor(),
		Arm:    NewMotor(),
		Eye:    NewColorSensor(),
		Sonar:  NewUltrasonicSensor(500),
		Bumper: NewForceSensor(),
	}
	r.Dial = NewRotationSensor(r.Arm)

	// Both motors are fresh and the geometry is constant, so New cannot fail
	db, err := drivebase.New(r.Left, r.Right, WheelDiameter, AxleTrack)
	if err != nil {
		panic(err)
	}
	r.Drivebase = db
	r.Gyro = NewGyro(db.Angle)
	r.Hub.FollowHeading(db.Angle)
	return r
}

// Register adds every device to reg
func (r *Robot) Register(reg *core.Registry) {
	reg.SetupAdvancedRobot(r.Hub,
		map[string]core.Motor{"left": r.Left, "right": r.Right, "arm": r.Arm},
		map[string]interface{}{"eye": r.Eye, "sonar": r.Sonar, "bumper": r.Bumper, "dial": r.Dial},
		r.Drivebase, r.Gyro)
}

// Advance integrates running motors over ms milliseconds
func (r *Robot) Advance(ms int64) {
	for _, m := range []*Motor{r.Left, r.Right, r.Arm} {
		m.Advance(ms)
	}
}
