//go:build rp2040

package main

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"engbench/device"
)

// sysClockHz is the RP2040 system clock the PIO runs from.
const sysClockHz = 125_000_000

// buildTrainProgram creates the sample output PIO program using
// AssemblerV0. It is a single instruction: shift the low 8 bits of the
// next FIFO word onto the OUT pins. With autopull at an 8 bit
// threshold every instruction consumes one queued sample, so the state
// machine clock divider alone sets the sample rate and the pin timing
// is jitter-free regardless of what the cores are doing.
func buildTrainProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Out(rp2pio.OutDestPins, 8).Encode(), // 0: out pins, 8
		// .wrap
	}
}

const trainPIOOrigin = 0

// TrainOutput drives the eight signal pins (cam, crank, TDC0..TDC5)
// from queued pulse train samples using a PIO state machine.
type TrainOutput struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	basePin machine.Pin
	offset  uint8
	rate    uint32
	enabled bool
}

// NewTrainOutput creates a train output on the given PIO block and
// state machine, driving eight consecutive pins starting at basePin.
func NewTrainOutput(pioNum, smNum uint8, basePin machine.Pin) *TrainOutput {
	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	return &TrainOutput{
		pio:     pioHW,
		sm:      pioHW.StateMachine(smNum),
		basePin: basePin,
	}
}

// Init claims the state machine, loads the program and configures the
// pins. The output stays disabled until Start.
func (o *TrainOutput) Init() error {
	o.sm.TryClaim()

	program := buildTrainProgram()
	offset, err := o.pio.AddProgram(program, trainPIOOrigin)
	if err != nil {
		return err
	}
	o.offset = offset

	// Configure pins for PIO
	for i := 0; i < 8; i++ {
		(o.basePin + machine.Pin(i)).Configure(machine.PinConfig{Mode: o.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()

	// Eight consecutive OUT pins carry one sample
	cfg.SetOutPins(o.basePin, 8)

	// Shift right, autopull at 8 bits: one FIFO word per sample
	cfg.SetOutShift(true, true, 8)

	// Wrap the single instruction onto itself
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	div, frac := rateDivider(device.DefaultRate)
	cfg.SetClkDivIntFrac(div, frac)

	o.sm.Init(offset, cfg)

	// Pin directions must be set after Init
	o.sm.SetPindirsConsecutive(o.basePin, 8, true)
	o.sm.SetPinsConsecutive(o.basePin, 8, false)

	o.rate = device.DefaultRate
	return nil
}

// SetRate changes the sample clock to rate samples per second.
func (o *TrainOutput) SetRate(rate uint32) error {
	if rate == 0 {
		return errors.New("rate must be positive")
	}
	div, frac := rateDivider(rate)

	o.sm.SetEnabled(false)
	o.sm.SetClkDivIntFrac(div, frac)
	o.sm.ClearFIFOs()
	o.sm.Restart()
	if o.enabled {
		o.sm.SetEnabled(true)
	}
	o.rate = rate
	return nil
}

// Start enables the sample clock.
func (o *TrainOutput) Start() {
	o.enabled = true
	o.sm.SetEnabled(true)
}

// Stop disables the sample clock and drops any queued samples.
func (o *TrainOutput) Stop() {
	o.enabled = false
	o.sm.SetEnabled(false)
	o.sm.ClearFIFOs()
	o.sm.Restart()
	// Leave the pins at idle
	o.sm.SetPinsConsecutive(o.basePin, 8, false)
}

// Full reports whether the TX FIFO has no room for another sample.
func (o *TrainOutput) Full() bool {
	return o.sm.IsTxFIFOFull()
}

// Push queues one sample. The caller checks Full first; pushing into a
// full FIFO would stall the main loop.
func (o *TrainOutput) Push(sample uint32) {
	o.sm.TxPut(sample)
}

// rateDivider computes the state machine clock divider for one PIO
// instruction per sample.
func rateDivider(rate uint32) (uint16, uint8) {
	div := uint32(sysClockHz) / rate
	if div < 1 {
		div = 1
	}
	if div > 0xFFFF {
		div = 0xFFFF
	}
	rem := uint64(sysClockHz) % uint64(rate)
	frac := uint8(rem * 256 / uint64(rate))
	return uint16(div), frac
}
