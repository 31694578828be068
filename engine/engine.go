// Package engine generates 4-stroke engine sensor waveforms as a pulse
// train suitable for direct writing on a GPIO port as a bit mask.
//
// The pulse train carries three synchronized signals over one full 720°
// engine cycle:
//   - crankshaft tooth wheel signal
//   - camshaft wheel signal
//   - top-dead-center (TDC) marker for each cylinder
//
// The buffer is an array of 7200 elements (one per 0.1° of crank angle
// over two revolutions) of a caller-chosen register width (u8, u16 or
// u32, depending on the GPIO port). An array is used so the buffer can
// be handed to a circular DMA or a timer interrupt that replays it
// element by element, wrapping from index 7199 back to 0, at a rate
// matching the emulated engine speed.
//
// Each element is a bit field holding the crank, cam and TDC state at
// that exact position in the cycle:
//
//	| Bit | Signal      |
//	|-----|-------------|
//	| 0   | Camshaft    |
//	| 1   | Crankshaft  |
//	| 2+k | TDC cyl. k  |
//
// Bit positions are identical for every element width; only the element
// type widens.
package engine

const (
	// TrainLen is the number of samples in one pulse train: two full
	// crankshaft revolutions at 0.1° resolution.
	TrainLen = 7200

	// DegPerRev is the number of 0.1° units in one crankshaft revolution.
	DegPerRev = 3600

	// MaxCylinders is the highest cylinder count a pulse train element
	// can carry a TDC bit for.
	MaxCylinders = 6

	// MaxCamEdges is the most camshaft edges a configuration may define
	// over one engine cycle.
	MaxCamEdges = 20
)
