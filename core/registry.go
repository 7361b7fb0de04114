package core

import (
	"sort"
	"sync"
)

// SensorKind is fixed when a sensor is registered
type SensorKind uint8

const (
	SensorGeneric SensorKind = iota
	SensorColor
	SensorUltrasonic
	SensorForce
	SensorRotation
)

func (k SensorKind) String() string {
	switch k {
	case SensorColor:
		return "color"
	case SensorUltrasonic:
		return "ultrasonic"
	case SensorForce:
		return "force"
	case SensorRotation:
		return "rotation"
	}
	return "generic"
}

// ClassifySensor picks the sensor kind from the interfaces s implements.
// Checked in order: color, ultrasonic, force, rotation.
func ClassifySensor(s interface{}) SensorKind {
	switch s.(type) {
	case ColorSensor:
		return SensorColor
	case UltrasonicSensor:
		return SensorUltrasonic
	case ForceSensor:
		return SensorForce
	case RotationSensor:
		return SensorRotation
	}
	return SensorGeneric
}

// SensorEntry is a registered sensor
type SensorEntry struct {
	Name   string
	Kind   SensorKind
	Device interface{}
}

// HubParts holds the subsystems found on the registered hub. Absent
// subsystems are nil.
type HubParts struct {
	Hub        Hub
	Battery    Battery
	IMU        IMU
	Display    Display
	Light      Light
	Speaker    Speaker
	Buttons    ButtonReader
	StopButton StopButtonSetter
}

func newHubParts(h Hub) *HubParts {
	p := &HubParts{Hub: h}
	p.Battery, _ = h.(Battery)
	p.IMU, _ = h.(IMU)
	p.Display, _ = h.(Display)
	p.Light, _ = h.(Light)
	p.Speaker, _ = h.(Speaker)
	p.Buttons, _ = h.(ButtonReader)
	p.StopButton, _ = h.(StopButtonSetter)
	return p
}

// Registry holds the hardware the agent may read and drive.
// Entries are replaced on re-registration and never removed.
type Registry struct {
	mu        sync.RWMutex
	hub       *HubParts
	drivebase Drivebase
	gyro      Gyro
	motors    map[string]Motor
	sensors   map[string]*SensorEntry

	console *Console
}

// NewRegistry creates an empty registry logging to console
func NewRegistry(console *Console) *Registry {
	if console == nil {
		console = NewConsole(nil)
	}
	return &Registry{
		motors:  make(map[string]Motor),
		sensors: make(map[string]*SensorEntry),
		console: console,
	}
}

// RegisterHub registers the hub and detects its subsystems once
func (r *Registry) RegisterHub(h Hub) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.hub = newHubParts(h)
	r.mu.Unlock()
	r.console.Log("Registered hub")
}

// RegisterMotor registers a motor under name
func (r *Registry) RegisterMotor(name string, m Motor) {
	if m == nil {
		return
	}
	r.mu.Lock()
	r.motors[name] = m
	r.mu.Unlock()
	r.console.Log("Registered motor '" + name + "'")
}

// RegisterSensor registers a sensor under name and returns its kind
func (r *Registry) RegisterSensor(name string, s interface{}) SensorKind {
	if s == nil {
		return SensorGeneric
	}
	kind := ClassifySensor(s)
	r.mu.Lock()
	r.sensors[name] = &SensorEntry{Name: name, Kind: kind, Device: s}
	r.mu.Unlock()
	r.console.Log("Registered sensor '" + name + "'")
	return kind
}

// RegisterDrivebase registers the drivebase
func (r *Registry) RegisterDrivebase(d Drivebase) {
	if d == nil {
		return
	}
	r.mu.Lock()
	r.drivebase = d
	r.mu.Unlock()
	r.console.Log("Registered drivebase")
}

// RegisterGyro registers a separate heading source
func (r *Registry) RegisterGyro(g Gyro) {
	if g == nil {
		return
	}
	r.mu.Lock()
	r.gyro = g
	r.mu.Unlock()
	r.console.Log("Registered gyro sensor")
}

// HubParts returns the registered hub, or nil
func (r *Registry) HubParts() *HubParts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hub
}

// Drivebase returns the registered drivebase, or nil
func (r *Registry) Drivebase() Drivebase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.drivebase
}

// Gyro returns the registered gyro, or nil
func (r *Registry) Gyro() Gyro {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gyro
}

// Motor looks up a motor by name
func (r *Registry) Motor(name string) (Motor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.motors[name]
	return m, ok
}

// MotorNames returns the registered motor names in sorted order
func (r *Registry) MotorNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.motors))
	for name := range r.motors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sensors returns the registered sensors sorted by name
func (r *Registry) Sensors() []SensorEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SensorEntry, 0, len(r.sensors))
	for _, s := range r.sensors {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetupBasicRobot registers a hub with motors "left" and "right" and an
// optional drivebase
func (r *Registry) SetupBasicRobot(h Hub, left, right Motor, d Drivebase) {
	r.RegisterHub(h)
	r.RegisterMotor("left", left)
	r.RegisterMotor("right", right)
	if d != nil {
		r.RegisterDrivebase(d)
	}
	r.console.Log("Basic robot setup complete")
}

// SetupAdvancedRobot registers a hub plus any number of motors and sensors
func (r *Registry) SetupAdvancedRobot(h Hub, motors map[string]Motor, sensors map[string]interface{}, d Drivebase, g Gyro) {
	r.RegisterHub(h)
	for _, name := range sortedKeys(motors) {
		r.RegisterMotor(name, motors[name])
	}
	for _, name := range sortedKeys(sensors) {
		r.RegisterSensor(name, sensors[name])
	}
	if d != nil {
		r.RegisterDrivebase(d)
	}
	if g != nil {
		r.RegisterGyro(g)
	}
	r.console.Log("Advanced robot setup complete")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// imuGyro reads the hub IMU heading as a gyro angle
type imuGyro struct {
	imu IMU
}

// GyroFromIMU exposes an IMU heading as a Gyro
func GyroFromIMU(imu IMU) Gyro {
	return imuGyro{imu: imu}
}

func (g imuGyro) Angle() (float64, error) {
	return g.imu.Heading()
}
