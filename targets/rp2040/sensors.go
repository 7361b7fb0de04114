//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync"

	"tinygo.org/x/drivers/adxl345"
	"tinygo.org/x/drivers/vl53l1x"
)

// I2C0: SDA=GP4, SCL=GP5
const (
	sensorBusSDA  = machine.GP4
	sensorBusSCL  = machine.GP5
	sensorBusFreq = 400 * machine.KHz

	// VL53L1X timing budget in microseconds
	rangeTimingBudget = 50000
	// VL53L1X continuous measurement period in milliseconds
	rangePeriodMS = 50

	// VL53L1X reports large values when nothing is in range
	rangeMaxMM = 4000
)

var errNoEcho = errors.New("no target in range")

var sensorBus = machine.I2C0

// configureSensorBus brings up the shared sensor I2C bus at 400kHz
func configureSensorBus() error {
	return sensorBus.Configure(machine.I2CConfig{
		SDA:       sensorBusSDA,
		SCL:       sensorBusSCL,
		Frequency: sensorBusFreq,
	})
}

// RangeSensor is a VL53L1X time-of-flight sensor reported as a distance
// sensor in millimeters
type RangeSensor struct {
	mu     sync.Mutex
	dev    vl53l1x.Device
	lastMM uint16
}

// NewRangeSensor configures the sensor in 2.8V mode and starts continuous
// ranging
func NewRangeSensor(bus *machine.I2C) (*RangeSensor, error) {
	r := &RangeSensor{dev: vl53l1x.New(bus)}
	if !r.dev.Configure(true) {
		return nil, errors.New("vl53l1x: sensor not found")
	}
	r.dev.SetMeasurementTimingBudget(rangeTimingBudget)
	r.dev.StartContinuous(rangePeriodMS)
	return r, nil
}

// Distance returns the last range in millimeters
func (r *RangeSensor) Distance() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Non-blocking read returns 0 when no new sample is ready
	if mm := r.dev.Read(false); mm != 0 {
		r.lastMM = mm
	}
	if r.lastMM == 0 || r.lastMM >= rangeMaxMM {
		return 0, errNoEcho
	}
	return float64(r.lastMM), nil
}

// Standard gravity in mm/s² per micro-g
const mmPerSecondSquaredPerMicroG = 9806.65 / 1e6

// Accelerometer is an ADXL345 read in mm/s²
type Accelerometer struct {
	mu  sync.Mutex
	dev adxl345.Device
}

func NewAccelerometer(bus *machine.I2C) *Accelerometer {
	a := &Accelerometer{dev: adxl345.New(bus)}
	a.dev.Configure()
	a.dev.SetRate(adxl345.RATE_100HZ)
	a.dev.SetRange(adxl345.RANGE_4G)
	return a
}

func (a *Accelerometer) Acceleration() ([]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	x, y, z, err := a.dev.ReadAcceleration()
	if err != nil {
		return nil, err
	}
	return []float64{
		float64(x) * mmPerSecondSquaredPerMicroG,
		float64(y) * mmPerSecondSquaredPerMicroG,
		float64(z) * mmPerSecondSquaredPerMicroG,
	}, nil
}

func (a *Accelerometer) Halt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dev.Halt()
}
