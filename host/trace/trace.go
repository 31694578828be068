// Package trace exports a generated pulse train to waveform files: a
// flat little-endian binary dump for replay tooling, and VCD (value
// change dump) for inspection in a wave viewer such as GTKWave.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"engbench/engine"
	"engbench/protocol"
)

// WriteRaw dumps the train as consecutive little-endian samples. The
// byte width follows the buffer's element type.
func WriteRaw[W engine.Word](out io.Writer, pt *[engine.TrainLen]W) error {
	width := wordWidth[W]()
	w := bufio.NewWriter(out)

	var scratch [protocol.Width32]byte
	for i := range pt {
		protocol.PutSample(scratch[:], width, uint32(pt[i]))
		if _, err := w.Write(scratch[:width]); err != nil {
			return fmt.Errorf("write sample %d: %w", i, err)
		}
	}
	return w.Flush()
}

// vcdIDs assigns one printable identifier per signal: cam, crank, then
// one per cylinder TDC.
var vcdIDs = []byte{'!', '"', '#', '$', '%', '&', '\'', '('}

// WriteVCD dumps the train as a value change dump with one wire per
// signal. The rate in samples per second sets the timescale so a
// viewer shows real playback time.
func WriteVCD[W engine.Word](out io.Writer, pt *[engine.TrainLen]W, cylinders int, rate uint32) error {
	if cylinders < 1 || cylinders > engine.MaxCylinders {
		return fmt.Errorf("cylinder count %d out of range 1..%d", cylinders, engine.MaxCylinders)
	}
	if rate == 0 {
		return fmt.Errorf("rate must be positive")
	}
	// One sample every 1e9/rate nanoseconds.
	period := uint64(1_000_000_000) / uint64(rate)
	if period == 0 {
		period = 1
	}

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "$date %s $end\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(w, "$version engbench %s $end\n", protocol.Version)
	fmt.Fprintf(w, "$timescale 1 ns $end\n")
	fmt.Fprintf(w, "$scope module engine $end\n")
	fmt.Fprintf(w, "$var wire 1 %c cam $end\n", vcdIDs[0])
	fmt.Fprintf(w, "$var wire 1 %c crank $end\n", vcdIDs[1])
	for cyl := 0; cyl < cylinders; cyl++ {
		fmt.Fprintf(w, "$var wire 1 %c tdc%d $end\n", vcdIDs[2+cyl], cyl)
	}
	fmt.Fprintf(w, "$upscope $end\n")
	fmt.Fprintf(w, "$enddefinitions $end\n")

	// Initial values, then only the bits that change per sample.
	levels := signalLevels(pt[0], cylinders)
	fmt.Fprintf(w, "$dumpvars\n")
	for s, lvl := range levels {
		fmt.Fprintf(w, "%d%c\n", lvl, vcdIDs[s])
	}
	fmt.Fprintf(w, "$end\n")

	for i := 1; i < engine.TrainLen; i++ {
		next := signalLevels(pt[i], cylinders)
		stamped := false
		for s, lvl := range next {
			if lvl == levels[s] {
				continue
			}
			if !stamped {
				fmt.Fprintf(w, "#%d\n", uint64(i)*period)
				stamped = true
			}
			fmt.Fprintf(w, "%d%c\n", lvl, vcdIDs[s])
		}
		levels = next
	}
	fmt.Fprintf(w, "#%d\n", uint64(engine.TrainLen)*period)

	return w.Flush()
}

// signalLevels decodes one sample into the per-signal levels in the
// same order as vcdIDs.
func signalLevels[W engine.Word](sample W, cylinders int) []engine.Level {
	levels := make([]engine.Level, 2+cylinders)
	levels[0] = engine.GetCam(sample)
	levels[1] = engine.GetCrk(sample)
	for cyl := 0; cyl < cylinders; cyl++ {
		levels[2+cyl] = engine.GetTDC(sample, cyl)
	}
	return levels
}

// wordWidth maps the buffer element type to its byte width.
func wordWidth[W engine.Word]() int {
	switch {
	case uint64(^W(0)) == 0xFF:
		return protocol.Width8
	case uint64(^W(0)) == 0xFFFF:
		return protocol.Width16
	default:
		return protocol.Width32
	}
}
