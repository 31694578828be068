package protocol

// Sample widths carried on the link, in bytes per sample. The width
// matches the GPIO register the device plays the train out of.
const (
	Width8  = 1
	Width16 = 2
	Width32 = 4
)

// ValidWidth reports whether width is a supported sample width.
func ValidWidth(width int) bool {
	return width == Width8 || width == Width16 || width == Width32
}

// PutSample stores one sample little-endian into b, which must hold
// width bytes.
func PutSample(b []byte, width int, v uint32) {
	_ = b[width-1]
	for i := 0; i < width; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// GetSample loads one little-endian sample from b, which must hold
// width bytes.
func GetSample(b []byte, width int) uint32 {
	_ = b[width-1]
	v := uint32(0)
	for i := 0; i < width; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}
