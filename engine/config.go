package engine

import (
	"errors"
	"fmt"
)

// Configuration validation errors. All of them are detected once, when
// a Config is validated or registered; the generation path itself never
// fails on a validated Config.
var (
	ErrInvalidToothCount    = errors.New("unsupported crank tooth count")
	ErrInvalidMissingTeeth  = errors.New("unsupported missing tooth count")
	ErrInvalidCylinderCount = errors.New("unsupported cylinder count")
	ErrTooManyCamEdges      = errors.New("too many cam edges")
	ErrCamEdgesNotAscending = errors.New("cam edges not strictly ascending")
	ErrCamEdgeOutOfRange    = errors.New("cam edge angle out of range")
	ErrTDCOutOfRange        = errors.New("TDC position out of range")
)

// supportedCylinders is the closed set of cylinder counts the TDC bit
// layout and placement support.
var supportedCylinders = [...]int{4, 6}

// Config is the full description of one emulated engine.
//
// A Config is built once, validated, and read-only from then on. The
// generator never mutates it, so one Config may be shared by concurrent
// generation calls operating on distinct buffers.
type Config struct {
	Cam       Cam      // camshaft wheel
	Crk       CrkWheel // crankshaft wheel geometry
	RefToTDC0 int      // angle from the crank gap reference to cylinder 0 TDC, 0.1° units
	Cylinders int      // number of cylinders, TDCs are spaced evenly
}

// Validate checks every construction-time invariant of the
// configuration. The error wraps one of the Err* sentinels.
func (c *Config) Validate() error {
	if err := c.Crk.Validate(); err != nil {
		return err
	}
	if err := c.Cam.Validate(); err != nil {
		return err
	}

	ok := false
	for _, n := range supportedCylinders {
		if c.Cylinders == n {
			ok = true
			break
		}
	}
	if !ok || TrainLen%c.Cylinders != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCylinderCount, c.Cylinders)
	}

	if c.RefToTDC0 < 0 || c.RefToTDC0 >= TrainLen {
		return fmt.Errorf("%w: refToTDC0=%d", ErrTDCOutOfRange, c.RefToTDC0)
	}
	// Defensive re-check of the wrapped placement math. With a valid
	// RefToTDC0 this cannot trip; it guards the invariant the playback
	// hardware depends on.
	interval := TrainLen / c.Cylinders
	for cyl := 0; cyl < c.Cylinders; cyl++ {
		pos := (c.RefToTDC0 + cyl*interval) % TrainLen
		if pos < 0 || pos >= TrainLen {
			return fmt.Errorf("%w: cylinder %d at %d", ErrTDCOutOfRange, cyl, pos)
		}
	}
	return nil
}
