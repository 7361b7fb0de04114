//go:build rp2040

package pio

import (
	"device/arm"
	"device/rp"
	"machine"
	"time"
)

// GPIOStepper toggles the step pin from software. It is the fallback once
// every PIO state machine is taken and tops out at a few kHz.
type GPIOStepper struct {
	stepPin machine.Pin
	dirPin  machine.Pin

	// Cached masks for SIO access
	stepMask uint32
	dirMask  uint32
}

func NewGPIOStepper() *GPIOStepper {
	return &GPIOStepper{}
}

func (b *GPIOStepper) Init(stepPin, dirPin machine.Pin) error {
	b.stepPin = stepPin
	b.dirPin = dirPin

	b.stepPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.stepPin.Low()
	b.dirPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.dirPin.Low()

	b.stepMask = 1 << uint32(stepPin)
	b.dirMask = 1 << uint32(dirPin)
	return nil
}

// Queue emits count pulses spaced periodUS microseconds apart. It returns
// once the train is done or abort is closed.
func (b *GPIOStepper) Queue(count uint32, periodUS uint32, reverse bool, abort <-chan struct{}) {
	if reverse {
		rp.SIO.GPIO_OUT_SET.Set(b.dirMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(b.dirMask)
	}
	// Dir-to-step setup time: 20ns minimum for TMC2209
	arm.Asm("nop\nnop\nnop")

	period := time.Duration(periodUS) * time.Microsecond
	for i := uint32(0); i < count; i++ {
		select {
		case <-abort:
			return
		default:
		}
		b.step()
		time.Sleep(period)
	}
}

// step emits one pulse of about 100ns
func (b *GPIOStepper) step() {
	rp.SIO.GPIO_OUT_SET.Set(b.stepMask)
	arm.Asm("nop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop")
	rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
}

// Halt leaves the step pin low; pulse trains end through their abort channel
func (b *GPIOStepper) Halt() {
	rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
}

func (b *GPIOStepper) Name() string {
	return "gpio"
}
