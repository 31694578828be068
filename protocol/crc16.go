package protocol

// CRC16 computes the CCITT-style checksum protecting every frame on the
// bench link. The device also uses it to fingerprint a loaded pulse
// train so the host can verify an upload.
func CRC16(data []byte) uint16 {
	return CRC16Update(0xFFFF, data)
}

// CRC16Update folds data into a running checksum, letting the device
// fingerprint its sample buffer without serializing it in one piece.
// Seed with 0xFFFF.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
