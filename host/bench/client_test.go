package bench

import (
	"errors"
	"net"
	"testing"

	"engbench/device"
	"engbench/engine"
	"engbench/protocol"
)

// startDevice runs a device.Bench main loop over the given pipe end
// until the pipe closes, mirroring the firmware target's serial loop.
func startDevice(conn net.Conn) *device.Bench {
	out := protocol.NewScratchOutput()
	b := device.New(out)
	b.Transport().SetFlushCallback(func() {
		if res := out.Result(); len(res) > 0 {
			conn.Write(res)
			out.Reset()
		}
	})

	go func() {
		fifo := protocol.NewFifoBuffer(1024)
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			data := fifo.Data()
			in := protocol.NewSliceInputBuffer(data)
			b.Transport().Receive(in)
			fifo.Pop(len(data) - in.Available())
			if res := out.Result(); len(res) > 0 {
				conn.Write(res)
				out.Reset()
			}
		}
	}()
	return b
}

func newLoopback(t *testing.T) (*Client, *device.Bench) {
	t.Helper()
	hostConn, devConn := net.Pipe()
	dev := startDevice(devConn)
	client := NewClient(hostConn)
	t.Cleanup(func() {
		client.Close()
		devConn.Close()
	})
	return client, dev
}

func TestClientIdentify(t *testing.T) {
	client, _ := newLoopback(t)

	info, err := client.Identify()
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if info.Version != protocol.Version {
		t.Errorf("Expected version %q, got %q", protocol.Version, info.Version)
	}
	if info.TrainLen != engine.TrainLen {
		t.Errorf("Expected train length %d, got %d", engine.TrainLen, info.TrainLen)
	}
	if info.MaxWidth != protocol.Width32 {
		t.Errorf("Expected max width %d, got %d", protocol.Width32, info.MaxWidth)
	}
}

func TestClientUploadAndPlay(t *testing.T) {
	client, dev := newLoopback(t)

	var train [engine.TrainLen]uint16
	engine.Generate(&engine.I660m2, &train)

	if err := Upload(client, &train); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if dev.Loaded() != engine.TrainLen {
		t.Fatalf("Device loaded %d samples, expected %d", dev.Loaded(), engine.TrainLen)
	}

	if err := client.SetRPM(3000); err != nil {
		t.Fatalf("SetRPM failed: %v", err)
	}
	if err := client.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running {
		t.Error("Device not running after start")
	}
	// 3000 rpm over a 7200 sample cycle per two revolutions.
	if status.Rate != 180000 {
		t.Errorf("Expected rate 180000, got %d", status.Rate)
	}

	// The device now replays the exact train that was generated.
	for i := 0; i < 16; i++ {
		if got := dev.Next(); got != uint32(train[i]) {
			t.Fatalf("Playback sample %d: expected %#x, got %#x", i, train[i], got)
		}
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Running {
		t.Error("Device still running after stop")
	}
}

func TestClientUploadByteWide(t *testing.T) {
	client, dev := newLoopback(t)

	var train [engine.TrainLen]uint8
	engine.Generate(&engine.I460m1, &train)

	if err := Upload(client, &train); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if dev.Loaded() != engine.TrainLen {
		t.Errorf("Device loaded %d samples, expected %d", dev.Loaded(), engine.TrainLen)
	}
}

func TestClientStartWithoutTrain(t *testing.T) {
	client, _ := newLoopback(t)

	err := client.Start()
	if err == nil {
		t.Fatal("Start succeeded with no train loaded")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Expected a DeviceError, got %T: %v", err, err)
	}
	if devErr.Code != protocol.ErrCodeNotLoaded {
		t.Errorf("Expected error code %d, got %d", protocol.ErrCodeNotLoaded, devErr.Code)
	}
}

func TestClientRPMValidation(t *testing.T) {
	client, _ := newLoopback(t)
	if err := client.SetRPM(0); err == nil {
		t.Error("SetRPM(0) should fail")
	}
	if err := client.SetRPM(-100); err == nil {
		t.Error("SetRPM(-100) should fail")
	}
}
