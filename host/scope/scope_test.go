package scope

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"engbench/engine"
	"engbench/protocol"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New(Config{Registry: engine.DefaultRegistry()})
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)
	return server
}

func TestConfigsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/configs")
	if err != nil {
		t.Fatalf("GET /configs failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var infos []configInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 configs, got %d", len(infos))
	}

	// Names() sorts, so the four cylinder config comes first.
	if infos[0].Name != "i4-60m1" || infos[1].Name != "i6-60m2" {
		t.Errorf("Unexpected config names: %q, %q", infos[0].Name, infos[1].Name)
	}
	six := infos[1]
	if six.Cylinders != 6 || six.Teeth != 60 || six.Missing != 2 || !six.Inverted {
		t.Errorf("Unexpected six cylinder config: %+v", six)
	}
	if six.RefToTDC0 != 658 {
		t.Errorf("Expected reference 658, got %d", six.RefToTDC0)
	}
	if len(six.CamEdges) != 20 {
		t.Errorf("Expected 20 cam edges, got %d", len(six.CamEdges))
	}
}

func TestTrainEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/train?config=i6-60m2")
	if err != nil {
		t.Fatalf("GET /train failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if len(raw) != engine.TrainLen*protocol.Width16 {
		t.Fatalf("Expected %d bytes, got %d", engine.TrainLen*protocol.Width16, len(raw))
	}

	var train [engine.TrainLen]uint16
	engine.Generate(&engine.I660m2, &train)
	for _, i := range []int{0, 658, 3601, engine.TrainLen - 1} {
		got := protocol.GetSample(raw[i*protocol.Width16:], protocol.Width16)
		if got != uint32(train[i]) {
			t.Errorf("Sample %d: expected %#x, got %#x", i, train[i], got)
		}
	}
}

func TestTrainEndpointUnknownConfig(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/train?config=nope")
	if err != nil {
		t.Fatalf("GET /train failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func dialStream(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStream(t *testing.T) {
	server := newTestServer(t)
	conn := dialStream(t, server)

	// A high speed keeps the chunk pacing short for the test.
	if err := conn.WriteJSON(streamRequest{Config: "i6-60m2", RPM: 60000}); err != nil {
		t.Fatalf("Failed to send stream request: %v", err)
	}

	var meta streamMeta
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&meta); err != nil {
		t.Fatalf("Failed to read stream meta: %v", err)
	}
	if meta.Rate != 3600000 {
		t.Errorf("Expected rate 3600000, got %d", meta.Rate)
	}
	if meta.TrainLen != engine.TrainLen || meta.ChunkSamples != StreamChunkSamples {
		t.Errorf("Unexpected meta: %+v", meta)
	}

	// Collect one full cycle of binary chunks.
	raw := make([]byte, 0, engine.TrainLen*protocol.Width16)
	for len(raw) < engine.TrainLen*protocol.Width16 {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read chunk: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			t.Fatalf("Expected a binary chunk, got message type %d", msgType)
		}
		if len(data) != StreamChunkSamples*protocol.Width16 {
			t.Fatalf("Expected %d byte chunks, got %d", StreamChunkSamples*protocol.Width16, len(data))
		}
		raw = append(raw, data...)
	}

	var train [engine.TrainLen]uint16
	engine.Generate(&engine.I660m2, &train)
	for i := range train {
		got := protocol.GetSample(raw[i*protocol.Width16:], protocol.Width16)
		if got != uint32(train[i]) {
			t.Fatalf("Streamed sample %d: expected %#x, got %#x", i, train[i], got)
		}
	}
}

func TestStreamBadRequest(t *testing.T) {
	server := newTestServer(t)
	conn := dialStream(t, server)

	if err := conn.WriteJSON(streamRequest{Config: "nope", RPM: 3000}); err != nil {
		t.Fatalf("Failed to send stream request: %v", err)
	}
	var errMsg map[string]string
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&errMsg); err != nil {
		t.Fatalf("Failed to read error response: %v", err)
	}
	if errMsg["error"] == "" {
		t.Error("Expected an error message for an unknown config")
	}

	if err := conn.WriteJSON(streamRequest{Config: "i6-60m2", RPM: 0}); err != nil {
		t.Fatalf("Failed to send stream request: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&errMsg); err != nil {
		t.Fatalf("Failed to read error response: %v", err)
	}
	if errMsg["error"] == "" {
		t.Error("Expected an error message for a zero rpm")
	}
}
