// Package protocol implements the framed serial link between the bench
// host tool and the pulse train playback device.
//
// Every message travels in a frame:
//
//	| len | seq | payload ... | crc16 hi | crc16 lo | sync |
//
// len counts the whole frame, seq carries a 4-bit window counter in its
// low nibble (high nibble fixed at SeqBase), the CRC covers len, seq
// and payload, and the trailing sync byte lets either side resume after
// line garbage. The payload is a VLQ command id followed by VLQ-encoded
// arguments.
package protocol

// Version identifies the bench link protocol and firmware build.
const Version = "0.1.0"

// Frame layout constants.
const (
	FrameHeaderSize  = 2 // len + seq
	FrameTrailerSize = 3 // crc16 + sync
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 64

	FramePosLen = 0
	FramePosSeq = 1

	FrameSync byte = 0x7E

	// SeqMask selects the rolling window counter; SeqBase is the fixed
	// high nibble of every sequence byte.
	SeqMask byte = 0x0F
	SeqBase byte = 0x10

	// ScratchMax sizes the device-side output scratch buffer; it must
	// hold several frames between drains.
	ScratchMax = 512
)

// NextSeq returns the sequence byte following seq in the rolling window.
func NextSeq(seq byte) byte {
	return ((seq + 1) & SeqMask) | SeqBase
}
