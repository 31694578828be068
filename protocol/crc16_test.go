package protocol

import "testing"

func TestCRC16Empty(t *testing.T) {
	if crc := CRC16(nil); crc != 0xFFFF {
		t.Errorf("CRC16 of empty input: expected 0xFFFF, got 0x%04X", crc)
	}
}

func TestCRC16Consistency(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	crc1 := CRC16(data)
	crc2 := CRC16(data)

	if crc1 != crc2 {
		t.Errorf("CRC16 not consistent: first=%04X, second=%04X", crc1, crc2)
	}
}

func TestCRC16Different(t *testing.T) {
	data1 := []byte{0x01, 0x02, 0x03}
	data2 := []byte{0x01, 0x02, 0x04}

	crc1 := CRC16(data1)
	crc2 := CRC16(data2)

	if crc1 == crc2 {
		t.Errorf("CRC16 collision: both inputs produced %04X", crc1)
	}
}

func TestCRC16SingleBitSensitivity(t *testing.T) {
	// Flipping any single bit of a frame header must change the CRC.
	base := []byte{FrameLengthMin, SeqBase}
	baseCRC := CRC16(base)

	for bytePos := range base {
		for bit := 0; bit < 8; bit++ {
			mutated := []byte{base[0], base[1]}
			mutated[bytePos] ^= 1 << bit
			if CRC16(mutated) == baseCRC {
				t.Errorf("CRC16 unchanged after flipping byte %d bit %d", bytePos, bit)
			}
		}
	}
}
