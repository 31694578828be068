package protocol

// CommandHandler processes one decoded command. data points at the
// arguments following the command id and is advanced as they are
// consumed.
type CommandHandler func(cmd uint16, data *[]byte) error

// Transport is the device side of the bench link. It parses frames
// from the host, dispatches commands, and encodes ACKs and responses
// into the output buffer.
//
// A Transport is driven from a single goroutine (the device main
// loop); it is not safe for concurrent use.
type Transport struct {
	output  OutputBuffer
	handler CommandHandler

	synced  bool
	nextSeq byte // sequence expected in the next host frame

	resetCallback func() // invoked when a host restart is detected
	flushCallback func() // invoked to push an ACK to the wire immediately
}

// NewTransport creates a device transport writing to output and
// dispatching commands to handler.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		output:  output,
		handler: handler,
		synced:  true,
		nextSeq: SeqBase,
	}
}

// SetResetCallback registers a callback for host restart detection.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback registers a callback that drains the output buffer
// to the wire. The host waits for the ACK before reading responses, so
// ACKs must not sit in the buffer until the next main loop pass.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Receive parses and consumes as many complete frames as input holds.
// Incomplete trailing data is left for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.synced {
			// Scan for a sync byte; everything before it is garbage.
			syncPos := -1
			for i, b := range data {
				if b == FrameSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			t.synced = true
			t.encodeAckNak()
			continue
		}

		// Skip idle sync bytes between frames.
		if data[0] == FrameSync {
			data = data[1:]
			continue
		}

		if len(data) < FrameLengthMin {
			break
		}

		frameLen := int(data[FramePosLen])
		if frameLen < FrameLengthMin || frameLen > FrameLengthMax {
			t.synced = false
			continue
		}

		seq := data[FramePosSeq]
		if seq&^SeqMask != SeqBase {
			t.synced = false
			continue
		}

		if len(data) < frameLen {
			break
		}

		if data[frameLen-1] != FrameSync {
			t.synced = false
			continue
		}

		wireCRC := uint16(data[frameLen-FrameTrailerSize])<<8 |
			uint16(data[frameLen-FrameTrailerSize+1])
		if wireCRC != CRC16(data[:frameLen-FrameTrailerSize]) {
			t.synced = false
			continue
		}

		frame := data[FrameHeaderSize : frameLen-FrameTrailerSize]
		data = data[frameLen:]

		// A frame at the window base while we expect a later sequence
		// means the host restarted; fall back in step with it.
		if seq == SeqBase && t.nextSeq != SeqBase {
			t.nextSeq = SeqBase
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == t.nextSeq {
			t.nextSeq = NextSeq(seq)
			_ = t.parseFrame(frame)
		}
		// ACK in sequence, NAK (ACK with the expected sequence) out of
		// sequence; either way the host learns what to send next.
		t.encodeAckNak()
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every command packed into one frame.
func (t *Transport) parseFrame(frame []byte) (err error) {
	// A handler panic must not take the device down; resync instead.
	defer func() {
		if r := recover(); r != nil {
			t.synced = false
		}
	}()

	for len(frame) > 0 {
		cmd, err := DecodeVLQUint(&frame)
		if err != nil {
			t.synced = false
			return err
		}
		if t.handler != nil {
			if err := t.handler(uint16(cmd), &frame); err != nil {
				// Handler errors are reported in-band by the handler;
				// they do not desynchronize the link.
				return err
			}
		}
	}
	return nil
}

// encodeAckNak emits a minimal frame carrying the next expected
// sequence, then flushes it.
func (t *Transport) encodeAckNak() {
	crc := CRC16([]byte{FrameLengthMin, t.nextSeq})
	t.output.Output([]byte{
		FrameLengthMin,
		t.nextSeq,
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		FrameSync,
	})
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame appends one framed payload to the output buffer. The
// payload writer receives the output positioned after the header; the
// length field and trailer are patched in afterwards.
func (t *Transport) EncodeFrame(payload func(output OutputBuffer)) {
	cursor := t.output.CurPosition()

	t.output.Output([]byte{0, t.nextSeq})
	payload(t.output)

	written := len(t.output.DataSince(cursor))
	t.output.Update(cursor, uint8(written+FrameTrailerSize))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		FrameSync,
	})
}

// SendResponse encodes a response frame: the VLQ response id followed
// by its arguments.
func (t *Transport) SendResponse(rsp uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(rsp))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its initial link state.
func (t *Transport) Reset() {
	t.synced = true
	t.nextSeq = SeqBase
	if t.resetCallback != nil {
		t.resetCallback()
	}
}
