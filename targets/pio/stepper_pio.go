//go:build rp2040

package pio

// Step pulse generation on a PIO state machine.
// Command word format:
//
//	Bits 0-14:  pulse count minus one
//	Bits 15-30: delay cycles (inter-pulse spacing)
//	Bit 31:     direction (0=forward, 1=reverse)
//
// Program flow:
//  1. Pull 32-bit command from FIFO
//  2. Extract pulse count into X register
//  3. Extract delay cycles into Y register
//  4. Set direction pin
//  5. Generate X+1 pulses with Y cycle delays between them

import (
	"machine"
	"runtime"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// The state machine runs at 1MHz, so one cycle is one microsecond
const (
	pioClockDiv = 125

	// Cycles spent per pulse besides the delay loop
	pulseOverhead = 11

	maxChunk = 1 << 15
	maxDelay = 1<<16 - 1
)

// buildStepperProgram creates the stepper PIO program using AssemblerV0
func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 15).Encode(),   // 1: out x, 15 (pulse count)
		asm.Out(rp2pio.OutDestY, 16).Encode(),   // 2: out y, 16 (delay cycles)
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 3: out pins, 1 (direction)
		// step_loop:
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 4: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 5: set pins, 0
		// delay_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 7: jmp x--, 4
		// .wrap
	}
}

const stepperPIOOrigin = 0 // Load at offset 0 for correct jump addresses

// PIOStepper generates step pulses on one PIO state machine
type PIOStepper struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	stepPin machine.Pin
	dirPin  machine.Pin
	offset  uint8
}

func newPIOStepper(pioHW *rp2pio.PIO, smNum uint8, offset uint8) *PIOStepper {
	return &PIOStepper{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		offset: offset,
	}
}

// Init claims the state machine and starts it on the step and direction pins
func (b *PIOStepper) Init(stepPin, dirPin machine.Pin) error {
	b.stepPin = stepPin
	b.dirPin = dirPin

	// The state machine must be claimed before it is configured
	b.sm.TryClaim()

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)

	// Shift right, explicit PULL, 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(b.offset+uint8(len(buildStepperProgram()))-1, b.offset)
	cfg.SetClkDivIntFrac(pioClockDiv, 0)

	b.sm.Init(b.offset, cfg)

	// Pin directions must be set after Init
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, false)

	b.sm.SetEnabled(true)
	return nil
}

// Queue emits count pulses spaced periodUS microseconds apart. It yields
// while the TX FIFO is full.
func (b *PIOStepper) Queue(count uint32, periodUS uint32, reverse bool, abort <-chan struct{}) {
	delay := uint32(0)
	if periodUS > pulseOverhead {
		delay = periodUS - pulseOverhead
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	for count > 0 {
		chunk := count
		if chunk > maxChunk {
			chunk = maxChunk
		}
		cmd := (chunk - 1) | delay<<15
		if reverse {
			cmd |= 1 << 31
		}
		for b.sm.IsTxFIFOFull() {
			runtime.Gosched()
		}
		select {
		case <-abort:
			return
		default:
		}
		b.sm.TxPut(cmd)
		count -= chunk
	}
}

// Halt drops queued pulses and restarts the program
func (b *PIOStepper) Halt() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.Exec(rp2pio.AssemblerV0{}.Jmp(b.offset, rp2pio.JmpAlways).Encode())
	b.sm.SetEnabled(true)
}

func (b *PIOStepper) Name() string {
	return "pio"
}
