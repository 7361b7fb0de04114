package hub

import "pilot/protocol"

// Command builders. A zero speed leaves the hub's default in place.

func withSpeed(c protocol.Command, speed float64) protocol.Command {
	if speed != 0 {
		c.Speed = protocol.Ptr(speed)
	}
	return c
}

func DriveCommand(distance, speed float64) protocol.Command {
	return withSpeed(protocol.Command{Action: protocol.ActionDrive, Distance: protocol.Ptr(distance)}, speed)
}

func TurnCommand(angle, speed float64) protocol.Command {
	return withSpeed(protocol.Command{Action: protocol.ActionTurn, Angle: protocol.Ptr(angle)}, speed)
}

func ArcCommand(radius, angle, speed float64) protocol.Command {
	return withSpeed(protocol.Command{
		Action: protocol.ActionArc,
		Radius: protocol.Ptr(radius),
		Angle:  protocol.Ptr(angle),
	}, speed)
}

// MotorCommand runs a named motor; a nil angle runs it continuously
func MotorCommand(name string, speed float64, angle *float64) protocol.Command {
	return withSpeed(protocol.Command{Action: protocol.ActionMotor, Motor: name, Angle: angle}, speed)
}

func (h *Hub) Drive(distance, speed float64) error {
	return h.Send(DriveCommand(distance, speed))
}

func (h *Hub) Turn(angle, speed float64) error {
	return h.Send(TurnCommand(angle, speed))
}

func (h *Hub) Arc(radius, angle, speed float64) error {
	return h.Send(ArcCommand(radius, angle, speed))
}

func (h *Hub) Stop() error {
	return h.Send(protocol.Command{Action: protocol.ActionStop})
}

// StopMotor stops one named motor
func (h *Hub) StopMotor(name string) error {
	return h.Send(protocol.Command{Action: protocol.ActionStop, Motor: name})
}

func (h *Hub) Motor(name string, speed float64, angle *float64) error {
	return h.Send(MotorCommand(name, speed, angle))
}

// SetTelemetry switches telemetry; a zero interval keeps the current one
func (h *Hub) SetTelemetry(enabled bool, intervalMS float64) error {
	c := protocol.Command{Action: protocol.ActionSetTelemetry, Enabled: protocol.Ptr(enabled)}
	if intervalMS != 0 {
		c.Interval = protocol.Ptr(intervalMS)
	}
	return h.Send(c)
}

func (h *Hub) SelectProgram(num int) error {
	return h.Send(protocol.Command{Action: protocol.ActionSelectProgram, ProgramNumber: protocol.Ptr(float64(num))})
}

func (h *Hub) RunSelected() error {
	return h.Send(protocol.Command{Action: protocol.ActionRunSelected})
}

func (h *Hub) Beep(frequency, durationMS float64) error {
	return h.Send(protocol.Command{
		Action:    protocol.ActionBeep,
		Frequency: protocol.Ptr(frequency),
		Duration:  protocol.Ptr(durationMS),
	})
}

func (h *Hub) LED(color string) error {
	return h.Send(protocol.Command{Action: protocol.ActionLED, Color: color})
}

func (h *Hub) ResetDrivebase() error {
	return h.Send(protocol.Command{Action: protocol.ActionResetDrivebase})
}
