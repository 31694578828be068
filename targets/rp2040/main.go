//go:build rp2040

package main

import (
	"time"

	"engbench/device"
	"engbench/protocol"
)

// Pulse train output starts at this GPIO: cam on trainBasePin,
// crank on trainBasePin+1, TDC0..TDC5 on the six pins above that.
const trainBasePin = 2

// trainDriver is what the main loop needs from a sample output: the
// PIO path and the CPU fallback both satisfy it.
type trainDriver interface {
	SetRate(rate uint32) error
	Start()
	Stop()
	Full() bool
	Push(sample uint32)
}

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput

	bench    *device.Bench
	trainOut trainDriver

	// Debug counters
	messagesReceived uint32
	msgerrors        uint32
)

func main() {
	// Initialize USB CDC immediately
	InitUSB()

	// Create buffers
	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	// The bench owns the transport and the loaded train
	bench = device.New(outputBuffer)
	bench.SetResetHook(func() {
		// Clear buffers on host reset
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// Send ACKs immediately; the host waits for the ACK before the
	// next command
	bench.Transport().SetFlushCallback(func() {
		writeUSB()
	})

	// PIO-clocked sample output, with a CPU-paced fallback if the PIO
	// could not be claimed
	pioOut := NewTrainOutput(0, 0, trainBasePin)
	if err := pioOut.Init(); err != nil {
		gpioOut := NewGPIOTrainOutput(trainBasePin)
		gpioOut.Init()
		trainOut = gpioOut
	} else {
		trainOut = pioOut
	}

	initDisplay()

	// Start USB reader goroutine
	go usbReaderLoop()

	lastRate := uint32(0)
	wasRunning := false
	lastDisplay := GetHardwareTime()

	// Main loop
	for {
		// Recover from panics to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			// Process incoming messages
			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				originalLen := len(data)
				inputBuf := protocol.NewSliceInputBuffer(data)

				bench.Transport().Receive(inputBuf)
				messagesReceived++

				// Remove consumed bytes from FIFO
				consumed := originalLen - inputBuf.Available()
				if consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			// Write outgoing USB data
			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}

			// Track playback state changes from the host
			if rate := bench.Rate(); rate != lastRate {
				trainOut.SetRate(rate)
				lastRate = rate
			}
			if running := bench.Running(); running != wasRunning {
				if running {
					trainOut.Start()
				} else {
					trainOut.Stop()
				}
				wasRunning = running
			}

			// Keep the PIO FIFO topped up while playing
			if wasRunning {
				for !trainOut.Full() {
					trainOut.Push(bench.Next())
				}
			}

			// Refresh the status display at ~4Hz
			if now := GetHardwareTime(); now-lastDisplay > 250000 {
				updateDisplay(bench)
				lastDisplay = now
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(time.Millisecond)
				continue
			}

			written := inputBuffer.Write([]byte{data})
			if written == 0 {
				// Buffer full - error condition
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes available data from the output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Write error - likely disconnect; drop the stale data
			outputBuffer.Reset()
			return
		}
		written += n
	}
	outputBuffer.Reset()
}
