package core

import (
	"fmt"

	"pilot/protocol"
)

// Command field defaults
const (
	DefaultSpeed         = 100.0
	DefaultRadius        = 100.0
	DefaultBeepFrequency = 500
	DefaultBeepDuration  = 100
)

// registerActions installs the built-in command actions
func (a *Agent) registerActions() {
	d := a.dispatcher
	d.Register(protocol.ActionDrive, a.cmdDrive)
	d.Register(protocol.ActionTurn, a.cmdTurn)
	d.Register(protocol.ActionArc, a.cmdArc)
	d.Register(protocol.ActionTurnAndDrive, a.cmdTurnAndDrive)
	d.Register(protocol.ActionStop, a.cmdStop)
	d.Register(protocol.ActionDriveContinuous, a.cmdDriveContinuous)
	d.Register(protocol.ActionMotor, a.cmdMotor)
	d.Register(protocol.ActionSetTelemetry, a.cmdSetTelemetry)
	d.Register(protocol.ActionResetDrivebase, a.cmdResetDrivebase)
	d.Register(protocol.ActionSelectProgram, a.cmdSelectProgram)
	d.Register(protocol.ActionRunSelected, a.cmdRunSelected)
	d.Register(protocol.ActionBeep, a.cmdBeep)
	d.Register(protocol.ActionLED, a.cmdLED)
}

// drivebaseFor returns the drivebase or logs that action was skipped
func (a *Agent) drivebaseFor(action string) (Drivebase, error) {
	db := a.registry.Drivebase()
	if db == nil {
		a.console.Log("No drivebase registered, ignoring", action)
		return nil, ErrNoDrivebase
	}
	return db, nil
}

func (a *Agent) cmdDrive(cmd *protocol.Command) error {
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	distance := protocol.Or(cmd.Distance, 0)
	speed := protocol.Or(cmd.Speed, DefaultSpeed)
	then := ResolveStopBehavior(cmd.StopBehaviorName())

	if err := db.SetStraightSpeed(speed); err != nil {
		return err
	}
	if err := db.Straight(distance, then); err != nil {
		return err
	}
	a.console.Log("Executed drive:", distance, "mm at", speed, "mm/s with", then)
	return nil
}

func (a *Agent) cmdTurn(cmd *protocol.Command) error {
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	angle := protocol.Or(cmd.Angle, 0)
	speed := protocol.Or(cmd.Speed, DefaultSpeed)
	then := ResolveStopBehavior(cmd.StopBehaviorName())

	if err := db.SetTurnRate(speed); err != nil {
		return err
	}
	if err := db.Turn(angle, then); err != nil {
		return err
	}
	a.console.Log("Executed turn:", angle, "degrees at", speed, "deg/s with", then)
	return nil
}

// arcAngle returns the arc sweep. Without an explicit angle it is the
// shortest signed path from startAngle to endAngle.
func arcAngle(cmd *protocol.Command) (float64, bool) {
	if cmd.Angle != nil {
		return *cmd.Angle, true
	}
	if cmd.StartAngle != nil && cmd.EndAngle != nil {
		return Normalize(*cmd.EndAngle - *cmd.StartAngle), true
	}
	return 0, false
}

func (a *Agent) cmdArc(cmd *protocol.Command) error {
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	angle, ok := arcAngle(cmd)
	if !ok {
		a.console.Log("Arc command missing angle parameter")
		return fmt.Errorf("arc: %w", protocol.ErrInvalidCommand)
	}
	radius := protocol.Or(cmd.Radius, DefaultRadius)
	speed := protocol.Or(cmd.Speed, DefaultSpeed)
	then := ResolveStopBehavior(cmd.StopBehaviorName())

	if err := db.SetStraightSpeed(speed); err != nil {
		return err
	}
	if arcer, ok := db.(Arcer); ok {
		err = arcer.Arc(radius, angle, then)
	} else {
		err = db.Curve(radius, angle, then)
	}
	if err != nil {
		return err
	}
	a.console.Log("Executed arc: radius", radius, "mm, angle", angle, "degrees at", speed, "mm/s with", then)
	return nil
}

func (a *Agent) cmdTurnAndDrive(cmd *protocol.Command) error {
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	angle := protocol.Or(cmd.Angle, 0)
	distance := protocol.Or(cmd.Distance, 0)
	speed := protocol.Or(cmd.Speed, DefaultSpeed)
	then := ResolveStopBehavior(cmd.StopBehaviorName())

	if angle != 0 {
		if err := db.SetTurnRate(speed); err != nil {
			return err
		}
		if err := db.Turn(angle, StopCoastSmart); err != nil {
			return err
		}
	}
	if distance != 0 {
		if err := db.SetStraightSpeed(speed); err != nil {
			return err
		}
		if err := db.Straight(distance, then); err != nil {
			return err
		}
	}
	a.console.Log("Executed turn_and_drive:", angle, "degrees then", distance, "mm with", then)
	return nil
}

func (a *Agent) cmdStop(cmd *protocol.Command) error {
	if name := cmd.MotorName(); name != "" {
		if m, ok := a.registry.Motor(name); ok {
			if err := m.Stop(); err != nil {
				return err
			}
			a.console.Log("Stopped motor '" + name + "'")
			return nil
		}
	}
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	if err := db.Stop(); err != nil {
		return err
	}
	a.console.Log("Executed stop")
	return nil
}

func (a *Agent) cmdDriveContinuous(cmd *protocol.Command) error {
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	speed := protocol.Or(cmd.Speed, 0)
	rate := protocol.Or(cmd.TurnRate, 0)
	if err := db.Drive(speed, rate); err != nil {
		return err
	}
	a.console.Log("Executed drive_continuous:", speed, "mm/s, turn rate", rate, "deg/s")
	return nil
}

func (a *Agent) cmdMotor(cmd *protocol.Command) error {
	name := cmd.MotorName()
	m, ok := a.registry.Motor(name)
	if !ok {
		a.console.Log("Unknown motor:", name)
		return nil
	}
	speed := protocol.Or(cmd.Speed, DefaultSpeed)

	if cmd.Angle != nil {
		if err := m.RunAngle(speed, *cmd.Angle, StopHold); err != nil {
			return err
		}
		a.console.Log("Executed motor '"+name+"':", *cmd.Angle, "degrees at", speed, "deg/s")
		return nil
	}
	if err := m.Run(speed); err != nil {
		return err
	}
	a.console.Log("Executed motor '"+name+"': run at", speed, "deg/s")
	return nil
}

func (a *Agent) cmdSetTelemetry(cmd *protocol.Command) error {
	a.sampler.SetEnabled(protocol.Or(cmd.Enabled, true))
	if interval := protocol.Or(cmd.Interval, 0); interval != 0 {
		a.sampler.SetInterval(int64(interval))
	}
	return nil
}

func (a *Agent) cmdResetDrivebase(cmd *protocol.Command) error {
	db, err := a.drivebaseFor(cmd.Action)
	if err != nil {
		return err
	}
	if err := db.Reset(); err != nil {
		a.console.Log("Drivebase reset error:", err)
		return err
	}
	if parts := a.registry.HubParts(); parts != nil && parts.IMU != nil {
		if err := parts.IMU.ResetHeading(0); err != nil {
			a.console.Log("IMU heading reset error:", err)
		}
	}
	a.console.Log("Drivebase reset")
	return nil
}

func (a *Agent) cmdSelectProgram(cmd *protocol.Command) error {
	if !a.menu.Active() {
		a.console.Log("Menu not active, ignoring", cmd.Action)
		return ErrMenuInactive
	}
	if cmd.ProgramNumber == nil {
		a.console.Log("select_program missing program_number")
		return fmt.Errorf("select_program: %w", protocol.ErrInvalidCommand)
	}
	num, ok := cmd.ProgramNum()
	if !ok || num == 0 {
		a.console.Log("select_program invalid program_number:", *cmd.ProgramNumber)
		return fmt.Errorf("select_program: %w", protocol.ErrInvalidCommand)
	}
	a.menu.SelectProgram(num)
	return nil
}

func (a *Agent) cmdRunSelected(cmd *protocol.Command) error {
	if !a.menu.Active() {
		a.console.Log("Menu not active, ignoring", cmd.Action)
		return ErrMenuInactive
	}
	a.menu.RequestRun()
	return nil
}

func (a *Agent) cmdBeep(cmd *protocol.Command) error {
	parts := a.registry.HubParts()
	if parts == nil || parts.Speaker == nil {
		a.console.Log("No hub speaker, ignoring beep")
		return ErrNoHub
	}
	freq := int(protocol.Or(cmd.Frequency, DefaultBeepFrequency))
	duration := int(protocol.Or(cmd.Duration, DefaultBeepDuration))
	return parts.Speaker.Beep(freq, duration)
}

func (a *Agent) cmdLED(cmd *protocol.Command) error {
	parts := a.registry.HubParts()
	if parts == nil || parts.Light == nil {
		a.console.Log("No hub light, ignoring led")
		return ErrNoHub
	}
	c, ok := ParseColor(cmd.Color)
	if !ok {
		a.console.Log("Unknown color:", cmd.Color)
		return fmt.Errorf("led color %q: %w", cmd.Color, protocol.ErrInvalidCommand)
	}
	return parts.Light.On(c)
}
