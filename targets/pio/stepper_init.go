//go:build rp2040

package pio

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

var errNoStateMachine = errors.New("no free PIO state machine")

var (
	// PIO allocation tracking
	// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each
	pioAllocations = [2][4]bool{} // [pioNum][smNum]

	// Program offset per PIO block, once loaded
	programOffsets = [2]int{-1, -1}
)

func pioBlock(n uint8) *rp2pio.PIO {
	if n == 0 {
		return rp2pio.PIO0
	}
	return rp2pio.PIO1
}

// New creates a stepper motor on the given pins. It uses a free PIO state
// machine and falls back to GPIO stepping when all eight are taken.
func New(stepPin, dirPin machine.Pin, stepsPerDegree float64, invert bool) (*Motor, error) {
	var stepper interface {
		Stepper
		Init(stepPin, dirPin machine.Pin) error
	}
	if s, err := newAllocatedStepper(); err == nil {
		stepper = s
	} else {
		stepper = NewGPIOStepper()
	}
	if err := stepper.Init(stepPin, dirPin); err != nil {
		return nil, err
	}
	return NewMotor(stepper, stepsPerDegree, invert)
}

// newAllocatedStepper claims the next free state machine, loading the
// step program into its PIO block first if needed
func newAllocatedStepper() (*PIOStepper, error) {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return nil, errNoStateMachine
	}
	block := pioBlock(pioNum)
	if programOffsets[pioNum] < 0 {
		offset, err := block.AddProgram(buildStepperProgram(), stepperPIOOrigin)
		if err != nil {
			pioAllocations[pioNum][smNum] = false
			return nil, err
		}
		programOffsets[pioNum] = int(offset)
	}
	return newPIOStepper(block, smNum, uint8(programOffsets[pioNum])), nil
}

// allocatePIO claims the first free state machine
// Returns (pioNum, smNum, ok)
func allocatePIO() (uint8, uint8, bool) {
	for pioNum := uint8(0); pioNum < 2; pioNum++ {
		for smNum := uint8(0); smNum < 4; smNum++ {
			if !pioAllocations[pioNum][smNum] {
				pioAllocations[pioNum][smNum] = true
				return pioNum, smNum, true
			}
		}
	}
	return 0, 0, false
}
