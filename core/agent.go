package core

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"pilot/protocol"
)

// DefaultPollInterval is the background command poll period in milliseconds
const DefaultPollInterval = 20

// Options configures an Agent
type Options struct {
	TelemetryEnabled  bool
	TelemetryInterval int64
	ByteBudget        int
	PollInterval      int64
	Menu              MenuOptions
}

// DefaultOptions returns the stock agent settings
func DefaultOptions() Options {
	return Options{
		TelemetryEnabled:  true,
		TelemetryInterval: DefaultTelemetryInterval,
		ByteBudget:        protocol.DefaultByteBudget,
		PollInterval:      DefaultPollInterval,
		Menu:              DefaultMenuOptions(),
	}
}

// Agent owns the registry, the command channel and the background tasks.
// The command channel has one reader at a time. Telemetry does not wait
// for commands, so records keep flowing while a command moves the robot.
type Agent struct {
	console    *Console
	clock      Clock
	registry   *Registry
	sampler    *Sampler
	dispatcher *Dispatcher
	heading    *HeadingTracker
	menu       *Menu
	channel    *protocol.Channel
	scheduler  *Scheduler
	opts       Options

	// poll serializes reads of the command channel
	poll sync.Mutex
}

// NewAgent builds an agent reading commands from input and writing lines
// through console. A nil clock uses the system clock.
func NewAgent(input io.ByteReader, console *Console, clock Clock, opts Options) *Agent {
	if console == nil {
		console = NewConsole(nil)
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	a := &Agent{
		console:   console,
		clock:     clock,
		registry:  NewRegistry(console),
		scheduler: NewScheduler(clock),
		opts:      opts,
	}
	a.sampler = NewSampler(a.registry, console)
	a.sampler.enabled = opts.TelemetryEnabled
	if opts.TelemetryInterval > 0 {
		a.sampler.interval = max(opts.TelemetryInterval, MinTelemetryInterval)
	}
	a.dispatcher = NewDispatcher(a.registry, console)
	a.heading = NewHeadingTracker(a.registry, console)
	a.menu = NewMenu(a.registry, console, clock, opts.Menu)
	a.channel = protocol.NewChannel(input, opts.ByteBudget, a.dispatcher.Dispatch)
	a.registerActions()
	return a
}

// Console returns the agent's output console
func (a *Agent) Console() *Console { return a.console }

// Clock returns the agent's clock
func (a *Agent) Clock() Clock { return a.clock }

// Registry returns the hardware registry
func (a *Agent) Registry() *Registry { return a.registry }

func (a *Agent) Sampler() *Sampler { return a.sampler }

func (a *Agent) Dispatcher() *Dispatcher { return a.dispatcher }

func (a *Agent) Heading() *HeadingTracker { return a.heading }

func (a *Agent) Menu() *Menu { return a.menu }

// SetTelemetryEnabled turns telemetry emission on or off
func (a *Agent) SetTelemetryEnabled(enabled bool) {
	a.sampler.SetEnabled(enabled)
}

// SetTelemetryInterval sets the emission interval in milliseconds
func (a *Agent) SetTelemetryInterval(ms int64) {
	a.sampler.SetInterval(ms)
}

// SendTelemetry emits one record if one is due and reports whether it did
func (a *Agent) SendTelemetry() bool {
	rec := a.sampler.Sample(a.clock.Now())
	if rec == nil {
		return false
	}
	line, err := rec.Encode()
	if err != nil {
		a.console.Log("Telemetry error:", err)
		return false
	}
	a.console.Emit(line)
	return true
}

// ProcessCommands polls the command channel once, dispatching every
// complete line it finds, and returns the bytes consumed. Dispatched
// motion blocks until it settles.
func (a *Agent) ProcessCommands() int {
	a.poll.Lock()
	defer a.poll.Unlock()
	return a.channel.Poll()
}

// AutoSendTelemetry does one telemetry attempt and one command poll
func (a *Agent) AutoSendTelemetry() {
	a.SendTelemetry()
	a.ProcessCommands()
}

// SendPositionReset tells the host to reset the robot to its start position
func (a *Agent) SendPositionReset() {
	a.console.Emit(protocol.TagPositionReset)
	a.console.Log("Position reset command sent to browser")
}

// InitHubMenu loads the menu programs and enters the menu state
func (a *Agent) InitHubMenu(programs []Program) {
	a.menu.Init(programs)
}

// StopHubMenu ends RunHubMenu after its current turn
func (a *Agent) StopHubMenu() {
	a.menu.Stop()
}

// menuTurn reads buttons and polls commands, then reports whether a run
// was requested
func (a *Agent) menuTurn() bool {
	if !a.menu.Active() {
		return false
	}
	a.menu.ProcessButtons()
	a.ProcessCommands()
	return a.menu.takeRunRequest()
}

// RunHubMenu runs the menu loop until the menu is stopped or ctx is done
func (a *Agent) RunHubMenu(ctx context.Context) error {
	if !a.menu.Active() {
		a.console.Menu("Menu not initialized or no programs available")
		return nil
	}
	a.console.Menu("Starting menu loop")

	for a.menu.Active() {
		if a.menu.State() == StateMenu && a.menuTurn() {
			// The program runs as the user task
			a.menu.runSelected(ctx)
		}
		if err := a.clock.Sleep(ctx, a.opts.Menu.LoopDelay); err != nil {
			return err
		}
	}
	return nil
}

// commandPollActive reports whether the background task owns the command
// channel. The menu loop polls it while a menu is waiting for selection.
func (a *Agent) commandPollActive() bool {
	return !a.menu.Active() || a.menu.State() != StateMenu
}

// BackgroundTelemetryTask emits telemetry and polls commands until ctx is
// done. Polls run on a worker goroutine so a blocking command never holds
// up the telemetry timer. While the worker is busy at most one poll
// waits; later ones are dropped.
// Cancellation waits for a running command to finish.
func (a *Agent) BackgroundTelemetryTask(ctx context.Context) error {
	a.console.Log("Starting parallel telemetry task")
	a.console.Log("Parallel telemetry active with non-blocking command processing - data every",
		a.sampler.Interval(), "ms")

	now := a.clock.Now()
	telemetry := &Timer{
		WakeTime: now,
		Handler: func(t *Timer) uint8 {
			a.SendTelemetry()
			t.WakeTime = a.clock.Now() + a.sampler.Interval()
			return SF_RESCHEDULE
		},
	}
	polls := make(chan struct{}, 1)
	poll := &Timer{
		WakeTime: now,
		Handler: func(t *Timer) uint8 {
			if a.commandPollActive() {
				select {
				case polls <- struct{}{}:
				default:
				}
			}
			t.WakeTime = a.clock.Now() + a.opts.PollInterval
			return SF_RESCHEDULE
		},
	}
	a.scheduler.ScheduleTimer(telemetry)
	a.scheduler.ScheduleTimer(poll)
	defer func() {
		a.scheduler.CancelTimer(telemetry)
		a.scheduler.CancelTimer(poll)
	}()

	var g errgroup.Group
	g.Go(func() error {
		for range polls {
			// The menu may have taken the channel since the request
			if a.commandPollActive() {
				a.ProcessCommands()
			}
		}
		return nil
	})
	err := a.scheduler.Run(ctx)
	close(polls)
	_ = g.Wait()

	a.console.Log("Parallel telemetry stopped")
	return err
}

// Run runs the background task alongside main and returns when main
// returns. The background task is stopped afterwards.
func (a *Agent) Run(ctx context.Context, main func(ctx context.Context) error) error {
	bgCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bgCtx)

	g.Go(func() error {
		if err := a.BackgroundTelemetryTask(gctx); err != nil && bgCtx.Err() == nil {
			return err
		}
		return nil
	})

	var mainErr error
	g.Go(func() error {
		defer cancel()
		mainErr = guard(func() error { return main(gctx) })
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return mainErr
}
