package core

import (
	"context"
	"errors"
	"sync"

	"pilot/protocol"
)

// Menu timing defaults, in milliseconds
const (
	DefaultDebounce     = 300
	DefaultLoopDelay    = 50
	DefaultErrorPause   = 2000
	DefaultStartBeepHz  = 660
	DefaultStartBeepMS  = 200
	menuDisplayErrGlyph = "ERR"
)

var errNoEntryPoint = errors.New("program has no entry point")

// Program is one selectable menu entry
type Program struct {
	Num      int
	Name     string
	Side     string
	Position *protocol.Position
	Main     func(ctx context.Context) error
}

// MenuState is the hub menu's state
type MenuState uint8

const (
	StateIdle MenuState = iota
	StateMenu
	StateRunning
)

func (s MenuState) String() string {
	switch s {
	case StateMenu:
		return protocol.MenuMenu
	case StateRunning:
		return protocol.MenuRunning
	}
	return protocol.MenuIdle
}

// MenuOptions holds the menu's timing settings
type MenuOptions struct {
	Debounce    int64
	LoopDelay   int64
	ErrorPause  int64
	StartBeepHz int
	StartBeepMS int
}

// DefaultMenuOptions returns the stock menu timings
func DefaultMenuOptions() MenuOptions {
	return MenuOptions{
		Debounce:    DefaultDebounce,
		LoopDelay:   DefaultLoopDelay,
		ErrorPause:  DefaultErrorPause,
		StartBeepHz: DefaultStartBeepHz,
		StartBeepMS: DefaultStartBeepMS,
	}
}

// Menu is the hub menu state machine: idle, then menu, then running and
// back to menu with the selection advanced.
type Menu struct {
	registry *Registry
	console  *Console
	clock    Clock
	opts     MenuOptions

	mu           sync.Mutex
	programs     []Program
	index        int
	state        MenuState
	active       bool
	runRequested bool
	lastButton   int64
	hasPressed   bool
}

// NewMenu creates an idle menu
func NewMenu(registry *Registry, console *Console, clock Clock, opts MenuOptions) *Menu {
	return &Menu{registry: registry, console: console, clock: clock, opts: opts}
}

// Init loads programs and enters the menu state. The hub stop button
// moves to BLUETOOTH so CENTER can start programs.
func (m *Menu) Init(programs []Program) {
	m.mu.Lock()
	m.programs = append([]Program(nil), programs...)
	m.index = 0
	m.runRequested = false
	m.hasPressed = false
	m.active = len(m.programs) > 0
	if m.active {
		m.state = StateMenu
	} else {
		m.state = StateIdle
	}
	n := len(m.programs)
	m.mu.Unlock()

	if n == 0 {
		m.console.Menu("No programs to initialize")
		return
	}

	if parts := m.registry.HubParts(); parts != nil {
		if parts.StopButton != nil {
			_ = parts.StopButton.SetStopButton(ButtonBluetooth)
		}
		m.light(ColorGreen)
		m.display(programs[0].Num)
	}

	m.console.Menu("Initialized with", n, "programs")
	m.SendStatus()
}

// Active reports whether the menu loop should keep running
func (m *Menu) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Stop deactivates the menu; RunHubMenu returns after its current turn
func (m *Menu) Stop() {
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
}

// State returns the current state
func (m *Menu) State() MenuState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Index returns the highlighted program position
func (m *Menu) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Selected returns the highlighted program
func (m *Menu) Selected() (Program, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.programs) == 0 {
		return Program{}, false
	}
	return m.programs[m.index], true
}

// Status returns the menu status signal payload
func (m *Menu) Status() protocol.MenuStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := protocol.MenuStatus{Total: len(m.programs), State: m.state.String()}
	if len(m.programs) > 0 {
		st.Selected = m.programs[m.index].Num
	}
	return st
}

// SendStatus emits a [PILOT:MENU_STATUS] line
func (m *Menu) SendStatus() {
	m.console.Emit(m.Status().String())
}

// ProcessButtons applies one button reading. LEFT and RIGHT move the
// selection, CENTER requests a run. Presses inside the debounce window
// of the last accepted press are ignored.
func (m *Menu) ProcessButtons() {
	parts := m.registry.HubParts()
	if parts == nil || parts.Buttons == nil {
		return
	}

	now := m.clock.Now()
	m.mu.Lock()
	if !m.active || m.state != StateMenu || len(m.programs) == 0 {
		m.mu.Unlock()
		return
	}
	if m.hasPressed && now-m.lastButton < m.opts.Debounce {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	pressed, err := parts.Buttons.Pressed()
	if err != nil || pressed == 0 {
		return
	}

	m.mu.Lock()
	n := len(m.programs)
	moved := false
	switch {
	case pressed.Has(ButtonLeft):
		m.index = (m.index - 1 + n) % n
		moved = true
	case pressed.Has(ButtonRight):
		m.index = (m.index + 1) % n
		moved = true
	case pressed.Has(ButtonCenter):
		m.runRequested = true
	default:
		m.mu.Unlock()
		return
	}
	m.lastButton = now
	m.hasPressed = true
	selected := m.programs[m.index]
	m.mu.Unlock()

	if moved {
		m.display(selected.Num)
		m.console.Menu("Selected:", selected.Name)
		m.SendStatus()
	}
}

// SelectProgram highlights the program numbered num
func (m *Menu) SelectProgram(num int) bool {
	m.mu.Lock()
	found := -1
	for i, p := range m.programs {
		if p.Num == num {
			found = i
			break
		}
	}
	if found < 0 {
		m.mu.Unlock()
		m.console.Menu("No program numbered", num)
		return false
	}
	m.index = found
	selected := m.programs[found]
	m.mu.Unlock()

	m.display(selected.Num)
	m.console.Menu("UI selected:", selected.Name)
	m.SendStatus()
	return true
}

// RequestRun asks the next menu turn to start the selected program
func (m *Menu) RequestRun() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateMenu {
		return false
	}
	m.runRequested = true
	return true
}

// takeRunRequest clears and returns the run request when in menu state
func (m *Menu) takeRunRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.runRequested || m.state != StateMenu {
		return false
	}
	m.runRequested = false
	return true
}

// runSelected runs the highlighted program to completion. Failures are
// logged and shown, never returned.
func (m *Menu) runSelected(ctx context.Context) {
	m.mu.Lock()
	if len(m.programs) == 0 || m.state != StateMenu {
		m.mu.Unlock()
		return
	}
	selected := m.programs[m.index]
	m.state = StateRunning
	m.mu.Unlock()

	m.sendPosition(selected)

	m.console.Menu("Starting Program", selected.Num, ":", selected.Name)
	m.console.Menu("Starting side:", selected.Side)
	m.SendStatus()

	if parts := m.registry.HubParts(); parts != nil {
		if parts.Speaker != nil {
			_ = parts.Speaker.Beep(m.opts.StartBeepHz, m.opts.StartBeepMS)
		}
		m.light(ColorRed)
	}

	if err := runProgram(ctx, selected); err != nil {
		m.console.Menu("Program error:", err)
		if parts := m.registry.HubParts(); parts != nil {
			if parts.Display != nil {
				_ = parts.Display.Text(menuDisplayErrGlyph)
			}
			_ = m.clock.Sleep(ctx, m.opts.ErrorPause)
		}
	} else {
		m.console.Menu("Program", selected.Num, "completed successfully")
	}

	m.mu.Lock()
	m.state = StateMenu
	m.index = (m.index + 1) % len(m.programs)
	next := m.programs[m.index]
	m.mu.Unlock()

	m.light(ColorGreen)
	m.display(next.Num)
	m.console.Menu("Returned to menu")
	m.console.Menu("Auto-advanced to:", next.Name)
	m.SendStatus()
}

func (m *Menu) sendPosition(p Program) {
	if p.Position == nil {
		m.console.Emit(protocol.TagPositionReset)
		m.console.Menu("Using default position reset")
		return
	}
	line, err := protocol.FormatSetPosition(*p.Position)
	if err != nil {
		m.console.Menu("Position encode error:", err)
		return
	}
	m.console.Emit(line)
	m.console.Menu("Set position for side", p.Position.Side)
}

// runProgram calls the program's entry point, turning a panic into an error
func runProgram(ctx context.Context, p Program) error {
	if p.Main == nil {
		return errNoEntryPoint
	}
	return guard(func() error { return p.Main(ctx) })
}

func (m *Menu) display(n int) {
	if parts := m.registry.HubParts(); parts != nil && parts.Display != nil {
		_ = parts.Display.Number(n)
	}
}

func (m *Menu) light(c Color) {
	if parts := m.registry.HubParts(); parts != nil && parts.Light != nil {
		_ = parts.Light.On(c)
	}
}
