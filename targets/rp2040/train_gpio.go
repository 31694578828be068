//go:build rp2040

package main

import (
	"errors"
	"machine"

	"engbench/device"
)

// GPIOTrainOutput drives the signal pins from the CPU, paced by the
// hardware microsecond timer. It is the fallback when no PIO state
// machine could be set up; sample timing then carries the main loop's
// jitter, which is acceptable for bench work below a few thousand rpm.
type GPIOTrainOutput struct {
	pins [8]machine.Pin

	rate    uint32
	nextDue uint32 // timer tick the next sample is due at
	acc     uint32 // fractional microseconds, in units of 1/rate
	running bool
}

// NewGPIOTrainOutput creates a CPU-driven output on eight consecutive
// pins starting at basePin.
func NewGPIOTrainOutput(basePin machine.Pin) *GPIOTrainOutput {
	o := &GPIOTrainOutput{}
	for i := range o.pins {
		o.pins[i] = basePin + machine.Pin(i)
	}
	return o
}

// Init configures the pins as outputs, driven low.
func (o *GPIOTrainOutput) Init() error {
	for _, p := range o.pins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	o.rate = device.DefaultRate
	return nil
}

// SetRate changes the sample pacing to rate samples per second.
func (o *GPIOTrainOutput) SetRate(rate uint32) error {
	if rate == 0 {
		return errors.New("rate must be positive")
	}
	o.rate = rate
	o.acc = 0
	o.nextDue = GetHardwareTime()
	return nil
}

// Start begins accepting samples.
func (o *GPIOTrainOutput) Start() {
	o.nextDue = GetHardwareTime()
	o.acc = 0
	o.running = true
}

// Stop stops output and idles the pins.
func (o *GPIOTrainOutput) Stop() {
	o.running = false
	for _, p := range o.pins {
		p.Low()
	}
}

// Full reports whether it is too early for the next sample. The main
// loop polls this the same way it polls the PIO FIFO.
func (o *GPIOTrainOutput) Full() bool {
	if !o.running {
		return true
	}
	return int32(GetHardwareTime()-o.nextDue) < 0
}

// Push writes one sample to the pins and schedules the next slot.
func (o *GPIOTrainOutput) Push(sample uint32) {
	for i, p := range o.pins {
		p.Set(sample&(1<<i) != 0)
	}

	// Advance by 1e6/rate microseconds, carrying the fraction so the
	// average rate stays exact.
	o.nextDue += 1_000_000 / o.rate
	o.acc += 1_000_000 % o.rate
	if o.acc >= o.rate {
		o.acc -= o.rate
		o.nextDue++
	}
}
