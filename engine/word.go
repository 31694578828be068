package engine

// Word constrains a pulse train element to the unsigned widths a GPIO
// port register can take. The bit layout (see the package doc) is the
// same for every width; this is the wire contract with the peripheral
// layer and must not change.
type Word interface {
	~uint8 | ~uint16 | ~uint32
}

// Signal bit masks within one pulse train element.
const (
	camMask uint32 = 1 << 0
	crkMask uint32 = 1 << 1
)

// tdcMasks holds the per-cylinder TDC bit masks. Indexing it with a
// cylinder outside 0..MaxCylinders-1 is a bug in the caller and panics.
var tdcMasks = [MaxCylinders]uint32{
	1 << 2, 1 << 3, 1 << 4, 1 << 5, 1 << 6, 1 << 7,
}

// SetCam sets the camshaft bit of one element to lvl.
func SetCam[W Word](w *W, lvl Level) {
	setMask(w, camMask, lvl)
}

// GetCam returns the camshaft level stored in one element.
func GetCam[W Word](w W) Level {
	return getMask(w, camMask)
}

// SetCrk sets the crankshaft bit of one element to lvl.
func SetCrk[W Word](w *W, lvl Level) {
	setMask(w, crkMask, lvl)
}

// GetCrk returns the crankshaft level stored in one element.
func GetCrk[W Word](w W) Level {
	return getMask(w, crkMask)
}

// SetTDC sets the TDC bit for cylinder cyl (0..5) of one element to lvl.
func SetTDC[W Word](w *W, cyl int, lvl Level) {
	setMask(w, tdcMasks[cyl], lvl)
}

// GetTDC returns the TDC level for cylinder cyl (0..5) stored in one element.
func GetTDC[W Word](w W, cyl int) Level {
	return getMask(w, tdcMasks[cyl])
}

func setMask[W Word](w *W, mask uint32, lvl Level) {
	if lvl == High {
		*w |= W(mask)
	} else {
		*w &^= W(mask)
	}
}

func getMask[W Word](w W, mask uint32) Level {
	if uint32(w)&mask != 0 {
		return High
	}
	return Low
}
