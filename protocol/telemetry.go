package protocol

import "encoding/json"

// TelemetryType is the type discriminant of telemetry records
const TelemetryType = "telemetry"

// Sensor kinds as reported in sensor telemetry
const (
	SensorTypeColor      = "color"
	SensorTypeUltrasonic = "ultrasonic"
	SensorTypeForce      = "force"
	SensorTypeRotation   = "rotation"
	SensorTypeGeneric    = "generic"
	SensorTypeError      = "error"
)

// UnsupportedVector is reported when a vector reading has no three scalar components
const UnsupportedVector = "Matrix conversion not supported"

// TelemetryRecord is one snapshot of the registered hardware
type TelemetryRecord struct {
	Timestamp int64                      `json:"timestamp"`
	Type      string                     `json:"type"`
	Motors    map[string]MotorTelemetry  `json:"motors,omitempty"`
	Sensors   map[string]SensorTelemetry `json:"sensors,omitempty"`
	Hub       *HubTelemetry              `json:"hub,omitempty"`
	Drivebase *DrivebaseTelemetry        `json:"drivebase,omitempty"`
}

// MotorTelemetry holds angle and speed, or an error when either read fails
type MotorTelemetry struct {
	Angle *float64 `json:"angle,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
	Load  *float64 `json:"load,omitempty"`
	Error string   `json:"error,omitempty"`
}

// SensorTelemetry carries the fields of one sensor kind
type SensorTelemetry struct {
	Type            string   `json:"type"`
	Color           string   `json:"color,omitempty"`
	Reflection      *float64 `json:"reflection,omitempty"`
	ReflectionError string   `json:"reflection_error,omitempty"`
	Ambient         *float64 `json:"ambient,omitempty"`
	AmbientError    string   `json:"ambient_error,omitempty"`
	Distance        *float64 `json:"distance,omitempty"`
	Force           *float64 `json:"force,omitempty"`
	Pressed         *bool    `json:"pressed,omitempty"`
	Angle           *float64 `json:"angle,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	Value           string   `json:"value,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// MarshalJSON writes an explicit null speed for rotation sensors without one
func (s SensorTelemetry) MarshalJSON() ([]byte, error) {
	type plain SensorTelemetry
	if s.Type != SensorTypeRotation || s.Speed != nil || s.Error != "" {
		return json.Marshal(plain(s))
	}
	return json.Marshal(struct {
		plain
		Speed *float64 `json:"speed"`
	}{plain: plain(s)})
}

// HubTelemetry groups the hub subsystems
type HubTelemetry struct {
	Battery *BatteryTelemetry `json:"battery,omitempty"`
	IMU     *IMUTelemetry     `json:"imu,omitempty"`
	System  *SystemTelemetry  `json:"system,omitempty"`
	Gyro    *GyroTelemetry    `json:"gyro,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// IsZero reports whether nothing was collected
func (h *HubTelemetry) IsZero() bool {
	return h == nil || (h.Battery == nil && h.IMU == nil && h.System == nil && h.Gyro == nil && h.Error == "")
}

type BatteryTelemetry struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

// IMUTelemetry reports each field or its error independently
type IMUTelemetry struct {
	Heading              *float64  `json:"heading,omitempty"`
	HeadingError         string    `json:"heading_error,omitempty"`
	Acceleration         []float64 `json:"acceleration,omitempty"`
	AccelerationError    string    `json:"acceleration_error,omitempty"`
	AngularVelocity      []float64 `json:"angular_velocity,omitempty"`
	AngularVelocityError string    `json:"angular_velocity_error,omitempty"`
	Error                string    `json:"error,omitempty"`
}

type SystemTelemetry struct {
	Name string `json:"name"`
}

// GyroTelemetry is the separately registered gyro
type GyroTelemetry struct {
	Angle *float64 `json:"angle,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
	Error string   `json:"error,omitempty"`
}

// MarshalJSON writes an explicit null speed when the gyro reports none
func (g GyroTelemetry) MarshalJSON() ([]byte, error) {
	type plain GyroTelemetry
	if g.Speed != nil || g.Error != "" {
		return json.Marshal(plain(g))
	}
	return json.Marshal(struct {
		plain
		Speed *float64 `json:"speed"`
	}{plain: plain(g)})
}

type DrivebaseTelemetry struct {
	Distance *float64             `json:"distance,omitempty"`
	Angle    *float64             `json:"angle,omitempty"`
	State    *DriveStateTelemetry `json:"state,omitempty"`
	Error    string               `json:"error,omitempty"`
}

type DriveStateTelemetry struct {
	Distance   float64 `json:"distance"`
	DriveSpeed float64 `json:"drive_speed"`
	Angle      float64 `json:"angle"`
	TurnRate   float64 `json:"turn_rate"`
}

// NewTelemetryRecord creates an empty record stamped with now
func NewTelemetryRecord(now int64) *TelemetryRecord {
	return &TelemetryRecord{Timestamp: now, Type: TelemetryType}
}

// Encode renders the record as one output line without the newline
func (r *TelemetryRecord) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTelemetry parses a telemetry output line
func DecodeTelemetry(line string) (*TelemetryRecord, error) {
	var r TelemetryRecord
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, err
	}
	if r.Type != TelemetryType {
		return nil, ErrNotTelemetry
	}
	return &r, nil
}
