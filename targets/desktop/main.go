// Command desktop runs the agent on a simulated robot. Commands are read
// from stdin and telemetry, signal and log lines are written to stdout,
// so a host can drive it through a pipe or a pty.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pilot/config"
	"pilot/core"
	"pilot/protocol"
	"pilot/targets/sim"
)

// Robot motion integration period
const simTick = 20 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "agent configuration file (.json or .yaml)")
	menu := flag.Bool("menu", false, "run the hub menu with the demo programs")
	quiet := flag.Bool("quiet", false, "suppress [PILOT] log lines")
	flag.Parse()

	if err := run(*configPath, *menu, *quiet); err != nil {
		fmt.Fprintln(os.Stderr, "desktop:", err)
		os.Exit(1)
	}
}

func run(configPath string, menu, quiet bool) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := protocol.NewFifoBuffer(1024)
	go protocol.Pump(ctx, os.Stdin, input)

	console := core.NewConsole(core.WriterLines(os.Stdout))
	console.SetVerbose(!quiet)
	agent := core.NewAgent(input, console, nil, cfg.Agent.Options())

	robot := sim.NewRobot("desktop-hub")
	robot.Register(agent.Registry())
	go integrate(ctx, robot)

	if menu {
		agent.InitHubMenu(demoPrograms(agent))
		return ignoreCancel(agent.Run(ctx, agent.RunHubMenu))
	}
	return ignoreCancel(agent.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
}

// integrate advances running motors so drive_continuous moves the robot
func integrate(ctx context.Context, robot *sim.Robot) {
	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			robot.Advance(simTick.Milliseconds())
		}
	}
}

func demoPrograms(agent *core.Agent) []core.Program {
	return []core.Program{
		{
			Num:      1,
			Name:     "Square",
			Side:     "left",
			Position: &protocol.Position{Side: "left", FromBottom: 100, FromSide: 150, Heading: 0},
			Main: func(ctx context.Context) error {
				for _, heading := range []float64{90, 180, -90, 0} {
					if err := ctx.Err(); err != nil {
						return err
					}
					if err := agent.DriveStraight(300, 0, core.StopCoastSmart); err != nil {
						return err
					}
					if _, err := agent.TurnToHeading(heading, core.DefaultHeadingSpeed, core.DefaultHeadingTolerance, core.StopHold); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Num:  2,
			Name: "Arc",
			Main: func(ctx context.Context) error {
				return agent.DriveArc(200, 180, 150, core.StopHold)
			},
		},
		{
			Num:      3,
			Name:     "Arm",
			Side:     "right",
			Position: &protocol.Position{Side: "right", FromBottom: 50, FromSide: 80, Heading: 90},
			Main: func(ctx context.Context) error {
				arm, ok := agent.Registry().Motor("arm")
				if !ok {
					return errors.New("no arm motor")
				}
				if err := arm.RunAngle(300, 90, core.StopHold); err != nil {
					return err
				}
				return arm.RunAngle(-300, 90, core.StopHold)
			},
		},
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
