package engine

import "fmt"

// CrkWheel describes the geometry of a crankshaft tooth wheel.
//
// The wheel produces a square wave with one High+Low pair per tooth,
// except for a gap of Missing consecutive tooth widths at the end of
// each revolution where the signal is held at a fixed level instead of
// toggling. The gap is the absolute angular reference an ECU uses to
// synchronize to wheel position.
type CrkWheel struct {
	Teeth    int  // teeth on the full wheel: 30, 60 or 120
	Missing  int  // consecutive missing teeth forming the gap: 1 or 2
	Inverted bool // true when the gap is held High instead of Low
}

// Preset wheels covering every supported geometry.
var (
	Crk30m1     = CrkWheel{Teeth: 30, Missing: 1}
	Crk30m2     = CrkWheel{Teeth: 30, Missing: 2}
	Crk60m1     = CrkWheel{Teeth: 60, Missing: 1}
	Crk60m2     = CrkWheel{Teeth: 60, Missing: 2}
	Crk120m1    = CrkWheel{Teeth: 120, Missing: 1}
	Crk120m2    = CrkWheel{Teeth: 120, Missing: 2}
	Crk30m1Inv  = CrkWheel{Teeth: 30, Missing: 1, Inverted: true}
	Crk30m2Inv  = CrkWheel{Teeth: 30, Missing: 2, Inverted: true}
	Crk60m1Inv  = CrkWheel{Teeth: 60, Missing: 1, Inverted: true}
	Crk60m2Inv  = CrkWheel{Teeth: 60, Missing: 2, Inverted: true}
	Crk120m1Inv = CrkWheel{Teeth: 120, Missing: 1, Inverted: true}
	Crk120m2Inv = CrkWheel{Teeth: 120, Missing: 2, Inverted: true}
)

// ToothAngle returns the angular width of one tooth in 0.1° units.
// It is even for every supported tooth count, so the generator's
// half-tooth step is always a whole number of samples.
func (w CrkWheel) ToothAngle() int {
	return DegPerRev / w.Teeth
}

// FirstLevel returns the level seen at angle 0, immediately after the gap.
func (w CrkWheel) FirstLevel() Level {
	if w.Inverted {
		return Low
	}
	return High
}

// GapLevel returns the level the signal is held at inside the gap.
func (w CrkWheel) GapLevel() Level {
	return w.FirstLevel().Not()
}

// GapSpan returns the angular width of the gap in 0.1° units.
func (w CrkWheel) GapSpan() int {
	return w.Missing * w.ToothAngle()
}

// Validate checks the wheel geometry against the supported set.
func (w CrkWheel) Validate() error {
	switch w.Teeth {
	case 30, 60, 120:
	default:
		return fmt.Errorf("%w: %d teeth", ErrInvalidToothCount, w.Teeth)
	}
	if w.Missing != 1 && w.Missing != 2 {
		return fmt.Errorf("%w: %d missing teeth", ErrInvalidMissingTeeth, w.Missing)
	}
	return nil
}
