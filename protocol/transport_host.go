package protocol

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ResponseHandler processes one decoded response asynchronously.
type ResponseHandler func(rsp uint16, data *[]byte) error

// Frame is one parsed frame received from the device.
type Frame struct {
	Seq     byte
	Payload []byte // frame data without header and trailer
}

// HostTransport is the host side of the bench link: it sends commands,
// waits for the device's ACK, and routes response frames to the
// caller. A background goroutine owns all reads from the port.
type HostTransport struct {
	port io.ReadWriteCloser

	// seq is the sequence of the next command; writeMu serializes
	// command traffic and guards seq.
	seq     byte
	writeMu sync.Mutex

	// Read-loop state, touched only by the reader goroutine.
	synced bool
	input  *FifoBuffer

	ackChan chan *Frame
	rspChan chan *Frame

	responseHandler ResponseHandler

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// DefaultCommandTimeout bounds the wait for a device ACK.
const DefaultCommandTimeout = 2 * time.Second

// NewHostTransport creates a host transport over port and starts its
// reader goroutine. Close must be called to release it.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		seq:      SeqBase,
		synced:   true,
		input:    NewFifoBuffer(1024),
		ackChan:  make(chan *Frame, 1),
		rspChan:  make(chan *Frame, 16),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SetResponseHandler registers a callback invoked for every response
// frame, before it is queued for ReceiveResponse. Set it before any
// traffic is started.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.responseHandler = handler
}

// SendCommand sends one command and waits for the device ACK.
func (t *HostTransport) SendCommand(cmd uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmd, args, DefaultCommandTimeout)
}

// SendCommandWithTimeout sends one command with a custom ACK timeout.
func (t *HostTransport) SendCommandWithTimeout(cmd uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	msg := t.buildFrame(cmd, args)
	if msg == nil {
		return fmt.Errorf("command %d does not fit a frame", cmd)
	}

	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write command %d: %w", cmd, err)
	}
	if n != len(msg) {
		return fmt.Errorf("write command %d: short write %d/%d", cmd, n, len(msg))
	}

	return t.waitForAck(timeout)
}

// Request sends one command and then waits for the next response frame.
func (t *HostTransport) Request(cmd uint16, args func(output OutputBuffer), timeout time.Duration) (*Frame, error) {
	if err := t.SendCommandWithTimeout(cmd, args, timeout); err != nil {
		return nil, err
	}
	return t.ReceiveResponse(timeout)
}

// ReceiveResponse returns the next response frame from the device.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Frame, error) {
	select {
	case rsp := <-t.rspChan:
		return rsp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, fmt.Errorf("transport stopped")
	}
}

// Close stops the reader goroutine and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}

// buildFrame assembles a complete command frame, or nil when the
// payload exceeds the frame size.
func (t *HostTransport) buildFrame(cmd uint16, args func(output OutputBuffer)) []byte {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmd))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()

	frameLen := FrameHeaderSize + len(payload) + FrameTrailerSize
	if frameLen > FrameLengthMax {
		return nil
	}

	msg := make([]byte, 0, frameLen)
	msg = append(msg, uint8(frameLen), t.seq)
	msg = append(msg, payload...)
	crc := CRC16(msg)
	msg = append(msg, uint8(crc>>8), uint8(crc&0xFF), FrameSync)
	return msg
}

// waitForAck blocks until the device acknowledges the sequence just
// sent. The ACK carries the sequence the device expects next; anything
// else is a NAK.
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	select {
	case ack := <-t.ackChan:
		want := NextSeq(t.seq)
		if ack.Seq != want {
			return fmt.Errorf("device NAK: expected seq 0x%02x, got 0x%02x", want, ack.Seq)
		}
		t.seq = want
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("ACK timeout after %v", timeout)
	case <-t.stopChan:
		return fmt.Errorf("transport stopped")
	}
}

// readLoop continuously reads the port and parses frames.
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if err != nil {
			if err == io.EOF {
				return
			}
			// Transient read error; back off briefly.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n > 0 {
			t.input.Write(buffer[:n])
			t.parseFrames()
		}
	}
}

// parseFrames consumes complete frames from the input FIFO.
func (t *HostTransport) parseFrames() {
	data := t.input.Data()

	for len(data) > 0 {
		if !t.synced {
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
			continue
		}

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

		payload := make([]byte, frameLen-FrameHeaderSize-FrameTrailerSize)
		copy(payload, data[FrameHeaderSize:frameLen-FrameTrailerSize])
		frame := &Frame{Seq: data[FramePosSeq], Payload: payload}
		data = data[frameLen:]

		t.dispatch(frame)
	}

	consumed := t.input.Available() - len(data)
	if consumed > 0 {
		t.input.Pop(consumed)
	}
}

// dispatch routes one frame: empty payload is an ACK/NAK, anything
// else a response.
func (t *HostTransport) dispatch(frame *Frame) {
	if len(frame.Payload) == 0 {
		select {
		case t.ackChan <- frame:
		default:
		}
		return
	}

	if t.responseHandler != nil {
		payload := frame.Payload
		if rsp, err := DecodeVLQUint(&payload); err == nil {
			_ = t.responseHandler(uint16(rsp), &payload)
		}
	}

	select {
	case t.rspChan <- frame:
	default:
		// Queue full: drop the oldest response to keep the link moving.
		select {
		case <-t.rspChan:
		default:
		}
		t.rspChan <- frame
	}
}
