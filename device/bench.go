// Package device implements the portable side of the pulse train
// playback device: command handling, the sample buffer, and the
// playback cursor. It contains no hardware access, so the same logic
// runs under the host test suite and under the TinyGo firmware
// targets, which only add the serial wiring and the port writes.
package device

import (
	"engbench/engine"
	"engbench/protocol"
)

// DefaultRate is the playback rate a target starts with before the
// host sets one: 3000 rpm at one sample per 0.1 degree.
const DefaultRate uint32 = 180000

// Bench is the playback device state machine. It is driven from a
// single goroutine (the firmware main loop) through its Transport; the
// playback cursor is the one exception, advanced by the target's
// sample timer via Next.
type Bench struct {
	transport *protocol.Transport

	// Sample storage, widened to the largest supported width. The
	// target masks each word down to its port width on output.
	train [engine.TrainLen]uint32

	width  int // bytes per sample on the wire: 1, 2 or 4
	total  int // samples expected by the current load
	loaded int // samples received so far

	rate    uint32 // playback rate in samples per second
	running bool
	pos     int // playback cursor

	resetHook func()
}

// New creates a Bench encoding its responses into output.
func New(output protocol.OutputBuffer) *Bench {
	b := &Bench{width: protocol.Width16}
	b.transport = protocol.NewTransport(output, b.handleCommand)
	b.transport.SetResetCallback(b.hostReset)
	return b
}

// Transport returns the link transport to be fed by the target's
// serial reader.
func (b *Bench) Transport() *protocol.Transport {
	return b.transport
}

// Running reports whether playback is active.
func (b *Bench) Running() bool {
	return b.running
}

// Rate returns the configured playback rate in samples per second.
func (b *Bench) Rate() uint32 {
	return b.rate
}

// Loaded returns how many samples of the current train have arrived.
func (b *Bench) Loaded() int {
	return b.loaded
}

// Next returns the port word for the current playback position and
// advances the cursor, wrapping at the end of the train so the cycle
// repeats indefinitely. It allocates nothing and is safe to call from
// a timer interrupt while no command is being processed.
func (b *Bench) Next() uint32 {
	if !b.running || b.total == 0 {
		return 0
	}
	v := b.train[b.pos]
	b.pos++
	if b.pos == b.total {
		b.pos = 0
	}
	return v
}

// SetResetHook registers fn to run after the bench clears its own
// state on a host restart, for targets that also need to drop their
// serial buffers.
func (b *Bench) SetResetHook(fn func()) {
	b.resetHook = fn
}

// hostReset is invoked when the transport detects a host restart.
func (b *Bench) hostReset() {
	b.running = false
	b.loaded = 0
	b.pos = 0
	if b.resetHook != nil {
		b.resetHook()
	}
}

// handleCommand dispatches one decoded command from the host.
func (b *Bench) handleCommand(cmd uint16, data *[]byte) error {
	switch cmd {
	case protocol.CmdIdentify:
		b.transport.SendResponse(protocol.RspIdentify, func(o protocol.OutputBuffer) {
			protocol.EncodeVLQString(o, protocol.Version)
			protocol.EncodeVLQUint(o, engine.TrainLen)
			protocol.EncodeVLQUint(o, protocol.Width32)
		})
		return nil

	case protocol.CmdBeginLoad:
		width, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		total, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if !protocol.ValidWidth(int(width)) || total != engine.TrainLen {
			b.sendError(protocol.ErrCodeBadArgs, "bad width or train length")
			return nil
		}
		b.width = int(width)
		b.total = int(total)
		b.loaded = 0
		b.running = false
		b.pos = 0
		return nil

	case protocol.CmdLoadChunk:
		offset, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		raw, err := protocol.DecodeVLQBytes(data)
		if err != nil {
			return err
		}
		if len(raw)%b.width != 0 {
			b.sendError(protocol.ErrCodeBadArgs, "chunk not a whole number of samples")
			return nil
		}
		n := len(raw) / b.width
		// Chunks arrive in order over the sequenced link.
		if int(offset) != b.loaded || b.loaded+n > b.total {
			b.sendError(protocol.ErrCodeBadArgs, "chunk offset out of order")
			return nil
		}
		for i := 0; i < n; i++ {
			b.train[b.loaded+i] = protocol.GetSample(raw[i*b.width:], b.width)
		}
		b.loaded += n
		return nil

	case protocol.CmdSetRate:
		rate, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if rate == 0 {
			b.sendError(protocol.ErrCodeBadArgs, "rate must be positive")
			return nil
		}
		b.rate = rate
		return nil

	case protocol.CmdStart:
		if b.loaded != b.total || b.total == 0 {
			b.sendError(protocol.ErrCodeNotLoaded, "train not fully loaded")
			return nil
		}
		if b.rate == 0 {
			b.sendError(protocol.ErrCodeBadArgs, "rate not set")
			return nil
		}
		b.pos = 0
		b.running = true
		return nil

	case protocol.CmdStop:
		b.running = false
		return nil

	case protocol.CmdStatus:
		running := uint32(0)
		if b.running {
			running = 1
		}
		crc := b.trainCRC()
		b.transport.SendResponse(protocol.RspStatus, func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, running)
			protocol.EncodeVLQUint(o, b.rate)
			protocol.EncodeVLQUint(o, uint32(b.loaded))
			protocol.EncodeVLQUint(o, uint32(crc))
		})
		return nil

	default:
		// Unknown command: the argument layout is unknown too, so the
		// rest of the frame cannot be parsed.
		*data = (*data)[len(*data):]
		b.sendError(protocol.ErrCodeBadCommand, "unknown command")
		return nil
	}
}

// trainCRC fingerprints the loaded samples as their wire bytes, so the
// host can compare against the bytes it sent.
func (b *Bench) trainCRC() uint16 {
	crc := uint16(0xFFFF)
	var scratch [protocol.Width32]byte
	for i := 0; i < b.loaded; i++ {
		protocol.PutSample(scratch[:], b.width, b.train[i])
		crc = protocol.CRC16Update(crc, scratch[:b.width])
	}
	return crc
}

func (b *Bench) sendError(code uint32, detail string) {
	b.transport.SendResponse(protocol.RspError, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, code)
		protocol.EncodeVLQString(o, detail)
	})
}
