// Package bench implements the host-side client of a pulse train
// playback device: upload of a generated train, playback rate control,
// and status queries over the framed serial link.
package bench

import (
	"fmt"
	"io"
	"time"

	"engbench/engine"
	"engbench/host/serial"
	"engbench/protocol"
)

// Info describes a connected playback device.
type Info struct {
	Version  string
	TrainLen int
	MaxWidth int
}

// Status is a snapshot of the device state.
type Status struct {
	Running bool
	Rate    uint32 // samples per second
	Loaded  int    // samples of the current train on the device
	CRC     uint16 // fingerprint of the loaded sample bytes
}

// DeviceError is an error the device reported in-band.
type DeviceError struct {
	Code   uint32
	Detail string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error %d: %s", e.Code, e.Detail)
}

// Client talks to one playback device.
type Client struct {
	transport *protocol.HostTransport
}

// Connect opens the serial device and returns a client for it.
func Connect(device string, baud int) (*Client, error) {
	cfg := serial.DefaultConfig(device)
	if baud != 0 {
		cfg.Baud = baud
	}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(port), nil
}

// NewClient wraps an already-open connection, e.g. a pipe in tests.
func NewClient(rw io.ReadWriteCloser) *Client {
	return &Client{transport: protocol.NewHostTransport(rw)}
}

// Close shuts the link down.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Identify queries the device identity.
func (c *Client) Identify() (*Info, error) {
	payload, err := c.request(protocol.CmdIdentify, nil, protocol.RspIdentify)
	if err != nil {
		return nil, err
	}

	version, err := protocol.DecodeVLQString(&payload)
	if err != nil {
		return nil, fmt.Errorf("bad identify response: %w", err)
	}
	trainLen, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("bad identify response: %w", err)
	}
	maxWidth, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("bad identify response: %w", err)
	}
	return &Info{Version: version, TrainLen: int(trainLen), MaxWidth: int(maxWidth)}, nil
}

// Upload pushes a full pulse train to the device and verifies the
// device-side fingerprint against the bytes sent. The sample width on
// the wire follows the buffer's element type.
func Upload[W engine.Word](c *Client, pt *[engine.TrainLen]W) error {
	width := wordWidth[W]()

	err := c.transport.SendCommand(protocol.CmdBeginLoad, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(width))
		protocol.EncodeVLQUint(o, engine.TrainLen)
	})
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}

	crc := uint16(0xFFFF)
	samplesPerChunk := protocol.ChunkBytesMax / width
	var chunk [protocol.ChunkBytesMax]byte

	for offset := 0; offset < engine.TrainLen; offset += samplesPerChunk {
		n := samplesPerChunk
		if offset+n > engine.TrainLen {
			n = engine.TrainLen - offset
		}
		for i := 0; i < n; i++ {
			protocol.PutSample(chunk[i*width:], width, uint32(pt[offset+i]))
		}
		raw := chunk[:n*width]
		crc = protocol.CRC16Update(crc, raw)

		off := uint32(offset)
		err := c.transport.SendCommand(protocol.CmdLoadChunk, func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, off)
			protocol.EncodeVLQBytes(o, raw)
		})
		if err != nil {
			return fmt.Errorf("chunk at %d: %w", offset, err)
		}
	}

	// A chunk the device rejected surfaces here as a short or
	// mismatching fingerprint.
	status, err := c.Status()
	if err != nil {
		return fmt.Errorf("verify upload: %w", err)
	}
	if status.Loaded != engine.TrainLen {
		return fmt.Errorf("verify upload: device holds %d of %d samples", status.Loaded, engine.TrainLen)
	}
	if status.CRC != crc {
		return fmt.Errorf("verify upload: fingerprint mismatch: sent %#04x, device %#04x", crc, status.CRC)
	}
	return nil
}

// SetRPM sets the playback rate for an emulated engine speed. One
// cycle is 7200 samples over two crankshaft revolutions, so the rate
// is rpm * 60 samples per second.
func (c *Client) SetRPM(rpm int) error {
	if rpm <= 0 {
		return fmt.Errorf("rpm must be positive, got %d", rpm)
	}
	return c.SetRate(uint32(rpm) * 60)
}

// SetRate sets the playback rate in samples per second.
func (c *Client) SetRate(rate uint32) error {
	return c.transport.SendCommand(protocol.CmdSetRate, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, rate)
	})
}

// Start begins cyclic playback.
func (c *Client) Start() error {
	if err := c.transport.SendCommand(protocol.CmdStart, nil); err != nil {
		return err
	}
	// Start is refused in-band when no full train is loaded.
	return c.checkPendingError()
}

// Stop halts playback.
func (c *Client) Stop() error {
	return c.transport.SendCommand(protocol.CmdStop, nil)
}

// Status queries the device state.
func (c *Client) Status() (*Status, error) {
	payload, err := c.request(protocol.CmdStatus, nil, protocol.RspStatus)
	if err != nil {
		return nil, err
	}

	vals := make([]uint32, 4)
	for i := range vals {
		if vals[i], err = protocol.DecodeVLQUint(&payload); err != nil {
			return nil, fmt.Errorf("bad status response: %w", err)
		}
	}
	return &Status{
		Running: vals[0] != 0,
		Rate:    vals[1],
		Loaded:  int(vals[2]),
		CRC:     uint16(vals[3]),
	}, nil
}

// request sends a command and waits for the given response id,
// surfacing device errors and skipping unrelated stale responses.
func (c *Client) request(cmd uint16, args func(protocol.OutputBuffer), want uint16) ([]byte, error) {
	if err := c.transport.SendCommand(cmd, args); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(protocol.DefaultCommandTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response to command %d", cmd)
		}
		frame, err := c.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}

		payload := frame.Payload
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			continue
		}
		switch uint16(id) {
		case want:
			return payload, nil
		case protocol.RspError:
			return nil, decodeDeviceError(payload)
		default:
			// Stale response from an earlier exchange; drop it.
		}
	}
}

// checkPendingError gives the device a short window to reject the
// previous command in-band.
func (c *Client) checkPendingError() error {
	frame, err := c.transport.ReceiveResponse(50 * time.Millisecond)
	if err != nil {
		return nil // no news is good news
	}
	payload := frame.Payload
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil || uint16(id) != protocol.RspError {
		return nil
	}
	return decodeDeviceError(payload)
}

func decodeDeviceError(payload []byte) error {
	code, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return fmt.Errorf("unparseable device error")
	}
	detail, _ := protocol.DecodeVLQString(&payload)
	return &DeviceError{Code: code, Detail: detail}
}

// wordWidth maps the buffer element type to its wire width in bytes.
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
