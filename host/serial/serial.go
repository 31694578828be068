// Package serial abstracts the serial connection between the host tool
// and the playback device, so the bench client can also run over
// in-memory pipes in tests.
package serial

import (
	"io"
)

// Port represents an open serial connection.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (ignored by USB CDC devices)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the standard configuration for a bench device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}
