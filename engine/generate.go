package engine

// Generate writes the full pulse train for cfg into pt.
//
// It runs a single forward pass over all 7200 samples writing the cam
// and crank bits of every element, then a second O(cylinders) pass
// setting one TDC bit per cylinder. The two passes touch disjoint bits.
//
// cfg must already be valid (see Config.Validate and Registry.Add);
// Generate performs no checks and cannot fail. It allocates nothing and
// runs in constant bounded time, so it is safe to call from
// interrupt-adjacent code. The caller must own pt exclusively for the
// duration of the call.
func Generate[W Word](cfg *Config, pt *[TrainLen]W) {
	camEdges := cfg.Cam.UsedEdges()
	camLvl := cfg.Cam.FirstLevel
	nextEdge := 0

	halfTooth := cfg.Crk.ToothAngle() / 2
	gapSpan := cfg.Crk.GapSpan()
	crkFirst := cfg.Crk.FirstLevel()
	crkLvl := crkFirst

	for angle := range pt {
		// The written bits hold the level valid at this angle; both
		// transition rules below take effect from the next sample on.
		SetCam(&pt[angle], camLvl)
		if nextEdge < len(camEdges) && camEdges[nextEdge] == angle {
			camLvl = camLvl.Not()
			nextEdge++
		}

		SetCrk(&pt[angle], crkLvl)
		if angle != 0 && angle%halfTooth == 0 {
			if angle%DegPerRev >= DegPerRev-gapSpan {
				// Inside the missing tooth window: hold the gap level
				// no matter how many half-tooth boundaries it spans.
				// The mod DegPerRev makes both revolutions of the
				// cycle carry an identical gap.
				crkLvl = crkFirst.Not()
			} else {
				crkLvl = crkLvl.Not()
			}
		}
	}

	// TDC markers, one sample wide, spaced evenly around the cycle.
	// Positions wrap modulo the train length so a late reference angle
	// never runs past the buffer.
	interval := TrainLen / cfg.Cylinders
	for cyl := 0; cyl < cfg.Cylinders; cyl++ {
		SetTDC(&pt[(cfg.RefToTDC0+cyl*interval)%TrainLen], cyl, High)
	}
}

// GenerateChecked validates cfg and then generates the pulse train.
// Prefer registering configurations up front and calling Generate on
// the hot path.
func GenerateChecked[W Word](cfg *Config, pt *[TrainLen]W) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	Generate(cfg, pt)
	return nil
}
