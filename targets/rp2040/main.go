//go:build rp2040

// Firmware for a Pico based robot: two stepper drive wheels and an arm
// stepper on PIO, a VL53L1X range sensor and an ADXL345 accelerometer on
// I2C0. The agent talks to the host over USB CDC.
package main

import (
	"context"
	"errors"
	"machine"
	"time"

	"pilot/core"
	"pilot/drivebase"
	"pilot/protocol"
	"pilot/targets/pio"
)

// Stepper wiring: step and direction pins
const (
	leftStepPin  = machine.GP2
	leftDirPin   = machine.GP3
	rightStepPin = machine.GP6
	rightDirPin  = machine.GP7
	armStepPin   = machine.GP8
	armDirPin    = machine.GP9
)

// 200 full steps, 16 microsteps per revolution
const stepsPerDegree = 200 * 16 / 360.0

// Chassis geometry in millimeters
const (
	wheelDiameter = 56.0
	axleTrack     = 112.0
)

const hubName = "pilot-pico"

func main() {
	// Disable the watchdog left over from a previous reset
	_ = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	InitUSB()

	input := protocol.NewFifoBuffer(1024)
	usb := newUSBLink(input)
	go usb.readLoop()

	console := core.NewConsole(usb.writeLine)
	// USB writes stall while the host is not reading
	console.StartAsync(32)
	agent := core.NewAgent(input, console, hardwareClock{}, core.DefaultOptions())

	if err := setupRobot(agent); err != nil {
		// Stay up so the host can read the error
		for {
			console.Log("Setup failed:", err.Error())
			time.Sleep(2 * time.Second)
		}
	}

	agent.InitHubMenu(programs(agent))
	for {
		// A program panic or error ends the run; start the menu again
		err := agent.Run(context.Background(), agent.RunHubMenu)
		if err != nil && !errors.Is(err, context.Canceled) {
			console.Log("Menu stopped:", err.Error())
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func setupRobot(agent *core.Agent) error {
	left, err := pio.New(leftStepPin, leftDirPin, stepsPerDegree, false)
	if err != nil {
		return err
	}
	// Mirrored mounting
	right, err := pio.New(rightStepPin, rightDirPin, stepsPerDegree, true)
	if err != nil {
		return err
	}
	arm, err := pio.New(armStepPin, armDirPin, stepsPerDegree, false)
	if err != nil {
		return err
	}
	db, err := drivebase.New(left, right, wheelDiameter, axleTrack)
	if err != nil {
		return err
	}

	sensors := map[string]interface{}{}
	var accel *Accelerometer
	if err := configureSensorBus(); err != nil {
		agent.Console().Log("I2C unavailable:", err.Error())
	} else {
		if rng, err := NewRangeSensor(sensorBus); err != nil {
			agent.Console().Log("Range sensor unavailable:", err.Error())
		} else {
			sensors["range"] = rng
		}
		accel = NewAccelerometer(sensorBus)
	}

	hub, err := NewHub(hubName, accel, db.Angle)
	if err != nil {
		return err
	}

	// Heading turns use the drivebase derived hub heading
	agent.Registry().SetupAdvancedRobot(hub,
		map[string]core.Motor{"left": left, "right": right, "arm": arm},
		sensors, db, core.GyroFromIMU(hub))
	return nil
}

// programs are the hub menu entries
func programs(agent *core.Agent) []core.Program {
	return []core.Program{
		{
			Num:      1,
			Name:     "Out and back",
			Side:     "left",
			Position: &protocol.Position{Side: "left", FromBottom: 100, FromSide: 150, Heading: 0},
			Main: func(ctx context.Context) error {
				if err := agent.DriveStraight(500, 0, core.StopHold); err != nil {
					return err
				}
				if _, err := agent.TurnToHeading(180, core.DefaultHeadingSpeed, core.DefaultHeadingTolerance, core.StopHold); err != nil {
					return err
				}
				return agent.DriveStraight(500, 0, core.StopHold)
			},
		},
		{
			Num:  2,
			Name: "Arm cycle",
			Main: func(ctx context.Context) error {
				arm, ok := agent.Registry().Motor("arm")
				if !ok {
					return errors.New("no arm motor")
				}
				if err := arm.RunAngle(180, 90, core.StopHold); err != nil {
					return err
				}
				return arm.RunAngle(180, -90, core.StopHold)
			},
		},
	}
}
