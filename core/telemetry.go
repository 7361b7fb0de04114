package core

import (
	"errors"
	"reflect"
	"sync"

	"pilot/protocol"
)

// Telemetry interval defaults, in milliseconds
const (
	DefaultTelemetryInterval = 100
	MinTelemetryInterval     = 50
)

// ErrUnsupportedVector is returned for vector readings without three components
var ErrUnsupportedVector = errors.New(protocol.UnsupportedVector)

// Sampler produces telemetry snapshots from the registry
type Sampler struct {
	registry *Registry
	console  *Console

	mu       sync.Mutex
	enabled  bool
	interval int64
	last     int64
}

// NewSampler creates an enabled sampler with the default interval
func NewSampler(registry *Registry, console *Console) *Sampler {
	return &Sampler{
		registry: registry,
		console:  console,
		enabled:  true,
		interval: DefaultTelemetryInterval,
	}
}

// SetEnabled turns emission on or off
func (s *Sampler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	if enabled {
		s.console.Log("Telemetry", "enabled")
	} else {
		s.console.Log("Telemetry", "disabled")
	}
}

// SetInterval sets the emission interval, clamped to MinTelemetryInterval
func (s *Sampler) SetInterval(ms int64) {
	if ms < MinTelemetryInterval {
		ms = MinTelemetryInterval
	}
	s.mu.Lock()
	s.interval = ms
	s.mu.Unlock()
	s.console.Log("Telemetry interval set to", ms, "ms")
}

// Enabled reports whether emission is on
func (s *Sampler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Interval returns the emission interval
func (s *Sampler) Interval() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Sample returns a record when telemetry is enabled and at least one
// interval has passed since the previous emission; otherwise nil
func (s *Sampler) Sample(now int64) *protocol.TelemetryRecord {
	s.mu.Lock()
	if !s.enabled || now-s.last < s.interval {
		s.mu.Unlock()
		return nil
	}
	s.last = now
	s.mu.Unlock()

	return s.Snapshot(now)
}

// Snapshot collects every registered device regardless of the interval
func (s *Sampler) Snapshot(now int64) *protocol.TelemetryRecord {
	r := protocol.NewTelemetryRecord(now)

	if motors := s.motorTelemetry(); len(motors) > 0 {
		r.Motors = motors
	}
	if sensors := s.sensorTelemetry(); len(sensors) > 0 {
		r.Sensors = sensors
	}
	if hub := s.hubTelemetry(); !hub.IsZero() {
		r.Hub = hub
	}
	if db := s.registry.Drivebase(); db != nil {
		r.Drivebase = drivebaseTelemetry(db)
	}
	return r
}

func (s *Sampler) motorTelemetry() map[string]protocol.MotorTelemetry {
	names := s.registry.MotorNames()
	if len(names) == 0 {
		return nil
	}

	out := make(map[string]protocol.MotorTelemetry, len(names))
	for _, name := range names {
		m, ok := s.registry.Motor(name)
		if !ok {
			continue
		}
		var mt protocol.MotorTelemetry
		err := guard(func() error {
			angle, err := m.Angle()
			if err != nil {
				return err
			}
			speed, err := m.Speed()
			if err != nil {
				return err
			}
			mt = protocol.MotorTelemetry{Angle: &angle, Speed: &speed}
			return nil
		})
		if err != nil {
			out[name] = protocol.MotorTelemetry{Error: err.Error()}
			continue
		}
		// Load is optional; a failed read leaves it out
		if lr, ok := m.(LoadReporter); ok {
			_ = guard(func() error {
				load, err := lr.Load()
				if err == nil {
					mt.Load = &load
				}
				return err
			})
		}
		out[name] = mt
	}
	return out
}

func (s *Sampler) sensorTelemetry() map[string]protocol.SensorTelemetry {
	sensors := s.registry.Sensors()
	if len(sensors) == 0 {
		return nil
	}

	out := make(map[string]protocol.SensorTelemetry, len(sensors))
	for _, entry := range sensors {
		var st protocol.SensorTelemetry
		err := guard(func() error {
			var err error
			st, err = readSensor(entry)
			return err
		})
		if err != nil {
			st = protocol.SensorTelemetry{Type: protocol.SensorTypeError, Error: err.Error()}
		}
		out[entry.Name] = st
	}
	return out
}

// readSensor reads the fields of one sensor kind. Color and ultrasonic
// failures are reported on the record; others are returned.
func readSensor(entry SensorEntry) (protocol.SensorTelemetry, error) {
	switch entry.Kind {
	case SensorColor:
		return readColor(entry.Device), nil

	case SensorUltrasonic:
		d, err := entry.Device.(UltrasonicSensor).Distance()
		if err != nil {
			return protocol.SensorTelemetry{
				Type:  protocol.SensorTypeUltrasonic,
				Error: "Distance read error: " + err.Error(),
			}, nil
		}
		return protocol.SensorTelemetry{Type: protocol.SensorTypeUltrasonic, Distance: &d}, nil

	case SensorForce:
		fs := entry.Device.(ForceSensor)
		force, err := fs.Force()
		if err != nil {
			return protocol.SensorTelemetry{}, err
		}
		pressed, err := fs.Pressed()
		if err != nil {
			return protocol.SensorTelemetry{}, err
		}
		return protocol.SensorTelemetry{Type: protocol.SensorTypeForce, Force: &force, Pressed: &pressed}, nil

	case SensorRotation:
		angle, err := entry.Device.(RotationSensor).Angle()
		if err != nil {
			return protocol.SensorTelemetry{}, err
		}
		st := protocol.SensorTelemetry{Type: protocol.SensorTypeRotation, Angle: &angle}
		if sr, ok := entry.Device.(SpeedReporter); ok {
			speed, err := sr.Speed()
			if err != nil {
				return protocol.SensorTelemetry{}, err
			}
			st.Speed = &speed
		}
		return st, nil
	}

	return protocol.SensorTelemetry{Type: protocol.SensorTypeGeneric, Value: describe(entry.Device)}, nil
}

func readColor(dev interface{}) protocol.SensorTelemetry {
	color, err := dev.(ColorSensor).Color()
	if err != nil {
		return protocol.SensorTelemetry{
			Type:  protocol.SensorTypeColor,
			Error: "Color read error: " + err.Error(),
		}
	}

	st := protocol.SensorTelemetry{Type: protocol.SensorTypeColor, Color: color}
	if rs, ok := dev.(ReflectionSensor); ok {
		if v, err := rs.Reflection(); err != nil {
			st.ReflectionError = err.Error()
		} else {
			st.Reflection = &v
		}
	}
	if as, ok := dev.(AmbientSensor); ok {
		if v, err := as.Ambient(); err != nil {
			st.AmbientError = err.Error()
		} else {
			st.Ambient = &v
		}
	}
	return st
}

func (s *Sampler) hubTelemetry() *protocol.HubTelemetry {
	ht := &protocol.HubTelemetry{}

	if parts := s.registry.HubParts(); parts != nil {
		if parts.Battery != nil {
			err := guard(func() error {
				v, err := parts.Battery.Voltage()
				if err != nil {
					return err
				}
				c, err := parts.Battery.Current()
				if err != nil {
					return err
				}
				ht.Battery = &protocol.BatteryTelemetry{Voltage: v, Current: c}
				return nil
			})
			if err != nil {
				ht.Error = err.Error()
			}
		}

		if parts.IMU != nil {
			ht.IMU = imuTelemetry(parts.IMU)
		}

		_ = guard(func() error {
			name, err := parts.Hub.Name()
			if err == nil {
				ht.System = &protocol.SystemTelemetry{Name: name}
			}
			return err
		})
	}

	if g := s.registry.Gyro(); g != nil {
		ht.Gyro = gyroTelemetry(g)
	}
	return ht
}

func imuTelemetry(imu IMU) *protocol.IMUTelemetry {
	it := &protocol.IMUTelemetry{}

	err := guard(func() error {
		if h, err := imu.Heading(); err != nil {
			it.HeadingError = err.Error()
		} else {
			it.Heading = &h
		}
		return nil
	})
	if err != nil {
		it.HeadingError = err.Error()
	}

	if v, err := readVector(imu.Acceleration); err != nil {
		it.AccelerationError = protocol.UnsupportedVector
	} else {
		it.Acceleration = v
	}
	if v, err := readVector(imu.AngularVelocity); err != nil {
		it.AngularVelocityError = protocol.UnsupportedVector
	} else {
		it.AngularVelocity = v
	}
	return it
}

// readVector projects a reading to exactly three components
func readVector(read func() ([]float64, error)) (out []float64, err error) {
	err = guard(func() error {
		v, err := read()
		if err != nil {
			return err
		}
		if len(v) < 3 {
			return ErrUnsupportedVector
		}
		out = []float64{v[0], v[1], v[2]}
		return nil
	})
	return out, err
}

func gyroTelemetry(g Gyro) *protocol.GyroTelemetry {
	gt := &protocol.GyroTelemetry{}
	err := guard(func() error {
		angle, err := g.Angle()
		if err != nil {
			return err
		}
		gt.Angle = &angle
		if sr, ok := g.(SpeedReporter); ok {
			speed, err := sr.Speed()
			if err != nil {
				return err
			}
			gt.Speed = &speed
		}
		return nil
	})
	if err != nil {
		return &protocol.GyroTelemetry{Error: err.Error()}
	}
	return gt
}

func drivebaseTelemetry(db Drivebase) *protocol.DrivebaseTelemetry {
	dt := &protocol.DrivebaseTelemetry{}
	err := guard(func() error {
		distance, err := db.Distance()
		if err != nil {
			return err
		}
		angle, err := db.Angle()
		if err != nil {
			return err
		}
		dt.Distance = &distance
		dt.Angle = &angle

		if sr, ok := db.(StateReporter); ok {
			st, err := sr.State()
			if err != nil {
				return err
			}
			dt.State = &protocol.DriveStateTelemetry{
				Distance:   st.Distance,
				DriveSpeed: st.DriveSpeed,
				Angle:      st.Angle,
				TurnRate:   st.TurnRate,
			}
		}
		return nil
	})
	if err != nil {
		return &protocol.DrivebaseTelemetry{Error: err.Error()}
	}
	return dt
}

// describe renders a generic sensor for telemetry
func describe(dev interface{}) string {
	if s, ok := dev.(interface{ String() string }); ok {
		return s.String()
	}
	return reflect.TypeOf(dev).String()
}

// panicError carries a recovered panic value
type panicError struct {
	value interface{}
}

func (e panicError) Error() string {
	return valueToString(e.value)
}

// guard runs f and turns a panic into an error
func guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return f()
}
