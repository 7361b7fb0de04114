package core

import (
	"errors"
	"sort"
	"sync"

	"pilot/protocol"
)

var (
	ErrUnknownAction = errors.New("unknown command action")
	ErrNoDrivebase   = errors.New("drivebase is not registered")
	ErrNoGyro        = errors.New("gyro is not registered")
	ErrNoHub         = errors.New("hub is not registered")
	ErrMenuInactive  = errors.New("hub menu is not active")
)

// ActionHandler executes one command. cmd is a private copy.
type ActionHandler func(cmd *protocol.Command) error

// Action is a registered command action
type Action struct {
	Name    string
	Handler ActionHandler
}

// Dispatcher parses command lines and executes them through its action
// table. Execution is serialized: one command settles before the next.
type Dispatcher struct {
	mu      sync.RWMutex
	actions map[string]*Action

	execMu   sync.Mutex
	registry *Registry
	console  *Console
}

// NewDispatcher creates a dispatcher with an empty action table
func NewDispatcher(registry *Registry, console *Console) *Dispatcher {
	return &Dispatcher{
		actions:  make(map[string]*Action),
		registry: registry,
		console:  console,
	}
}

// Register adds or replaces an action handler
func (d *Dispatcher) Register(name string, handler ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[name] = &Action{Name: name, Handler: handler}
}

// GetAction looks up an action by name
func (d *Dispatcher) GetAction(name string) (*Action, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.actions[name]
	return a, ok
}

// Actions returns the registered action names, sorted
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.actions))
	for name := range d.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses one input line and executes it. Parse failures are
// logged and dropped.
func (d *Dispatcher) Dispatch(line string) {
	d.console.Log("Received command:", line)

	batch, err := protocol.ParseLine(line)
	if err != nil {
		d.console.Log("Command parse/execute error:", err)
		return
	}
	d.Execute(batch)
}

// Execute runs a parsed batch as a single command or as a sequence
func (d *Dispatcher) Execute(batch protocol.Batch) {
	if batch.Sequence {
		d.ExecuteSequence(batch)
		return
	}
	for _, cmd := range batch.Commands {
		d.ExecuteCommand(cmd)
	}
}

// ExecuteSequence runs the steps of batch in order. Motion steps have
// their stop behavior replaced: COAST_SMART for every step but the last,
// HOLD for the last. Other steps keep their own. Steps that failed to
// decode are logged and skipped.
func (d *Dispatcher) ExecuteSequence(batch protocol.Batch) {
	n := len(batch.Commands)
	d.console.Log("Executing command sequence of", n, "commands")

	for i, cmd := range batch.Commands {
		pos := itoa(i+1) + "/" + itoa(n)
		if err := batch.StepErr(i); err != nil {
			d.console.Log("Skipping command "+pos+":", err)
			continue
		}
		if protocol.IsMotion(cmd.Action) {
			if i == n-1 {
				cmd = cmd.WithStopBehavior(protocol.StopHold)
				d.console.Log("Executing final command " + pos + " with HOLD")
			} else {
				cmd = cmd.WithStopBehavior(protocol.StopCoastSmart)
				d.console.Log("Executing command " + pos + " with COAST_SMART")
			}
		} else {
			d.console.Log("Executing non-movement command " + pos)
		}
		d.ExecuteCommand(cmd)
	}

	d.console.Log("Command sequence completed")
}

// ExecuteCommand runs one command. Errors and panics are logged and
// returned; they never escape as panics.
func (d *Dispatcher) ExecuteCommand(cmd protocol.Command) (err error) {
	d.execMu.Lock()
	defer d.execMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
			d.console.Log("Command execution error:", err)
		}
	}()

	switch cmd.Action {
	case protocol.ActionDrive, protocol.ActionTurn, protocol.ActionArc, protocol.ActionStop:
		d.console.Log("Command:", cmd.Action,
			"- Drivebase registered:", d.registry.Drivebase() != nil,
			"- Stop behavior:", cmd.StopBehaviorName())
	}

	action, ok := d.GetAction(cmd.Action)
	if !ok {
		d.console.Log("Unknown command action:", cmd.Action)
		return ErrUnknownAction
	}

	if err = action.Handler(&cmd); err != nil {
		d.console.Log("Command execution error:", err)
	}
	return err
}
