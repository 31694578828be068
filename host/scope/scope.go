// Package scope provides a small HTTP server for previewing generated
// pulse trains in a browser: a JSON listing of the registered engine
// configurations, raw train downloads, and a websocket endpoint that
// streams samples paced to the emulated engine speed.
package scope

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"engbench/engine"
	"engbench/protocol"
)

// StreamChunkSamples is the number of samples per binary websocket
// message. It divides the train length, so chunks never straddle a
// cycle boundary.
const StreamChunkSamples = 1800

// Config holds server configuration.
type Config struct {
	// HTTP address to listen on (e.g., ":8086")
	Addr string

	// Registry of engine configurations to serve
	Registry *engine.Registry
}

// Server serves pulse train previews over HTTP and websocket.
type Server struct {
	registry *engine.Registry
	addr     string

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	running bool
}

// New creates a scope server over the given registry.
func New(cfg Config) *Server {
	s := &Server{
		registry: cfg.Registry,
		addr:     cfg.Addr,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // local preview tool, any origin is fine
		},
	}
	return s
}

// Handler returns the HTTP handler tree, for mounting in tests or an
// existing server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/configs", s.handleConfigs)
	mux.HandleFunc("/train", s.handleTrain)
	mux.HandleFunc("/stream", s.handleStream)
	return mux
}

// Start starts the server and blocks until it shuts down.
func (s *Server) Start() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("scope server listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// configInfo is the JSON shape of one registry entry.
type configInfo struct {
	Name      string `json:"name"`
	Cylinders int    `json:"cylinders"`
	Teeth     int    `json:"teeth"`
	Missing   int    `json:"missing"`
	Inverted  bool   `json:"inverted"`
	RefToTDC0 int    `json:"ref_to_tdc0"`
	CamEdges  []int  `json:"cam_edges"`
}

// handleConfigs lists the registered engine configurations.
func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var infos []configInfo
	for _, name := range s.registry.Names() {
		cfg, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, configInfo{
			Name:      name,
			Cylinders: cfg.Cylinders,
			Teeth:     cfg.Crk.Teeth,
			Missing:   cfg.Crk.Missing,
			Inverted:  cfg.Crk.Inverted,
			RefToTDC0: cfg.RefToTDC0,
			CamEdges:  cfg.Cam.UsedEdges(),
		})
	}
	s.writeJSON(w, infos)
}

// handleTrain serves a full generated train as little-endian binary.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("config")
	cfg, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown config %q", name), http.StatusNotFound)
		return
	}

	var train [engine.TrainLen]uint16
	engine.Generate(cfg, &train)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprint(engine.TrainLen*protocol.Width16))
	buf := make([]byte, engine.TrainLen*protocol.Width16)
	for i, sample := range train {
		protocol.PutSample(buf[i*protocol.Width16:], protocol.Width16, uint32(sample))
	}
	w.Write(buf)
}

// streamRequest is what a websocket client sends to select a stream.
type streamRequest struct {
	Config string `json:"config"`
	RPM    int    `json:"rpm"`
}

// streamMeta is sent as JSON before the binary sample chunks.
type streamMeta struct {
	Config       string `json:"config"`
	Rate         uint32 `json:"rate"` // samples per second
	TrainLen     int    `json:"train_len"`
	Width        int    `json:"width"`
	ChunkSamples int    `json:"chunk_samples"`
}

// handleStream upgrades to a websocket and streams generated samples.
// The client sends a streamRequest; the server answers with a
// streamMeta and then repeats the train in binary chunks paced to the
// requested engine speed, until the client disconnects or sends a new
// request.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("scope: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	requests := make(chan streamRequest)
	go func() {
		defer close(requests)
		for {
			var req streamRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			requests <- req
		}
	}()

	var (
		train     [engine.TrainLen]uint16
		chunk     [StreamChunkSamples * protocol.Width16]byte
		streaming bool
		offset    int
		ticker    *time.Ticker
		tick      <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return
			}
			cfg, ok := s.registry.Get(req.Config)
			if !ok {
				conn.WriteJSON(map[string]string{"error": fmt.Sprintf("unknown config %q", req.Config)})
				continue
			}
			if req.RPM <= 0 {
				conn.WriteJSON(map[string]string{"error": "rpm must be positive"})
				continue
			}
			rate := uint32(req.RPM) * 60
			engine.Generate(cfg, &train)

			if err := conn.WriteJSON(streamMeta{
				Config:       req.Config,
				Rate:         rate,
				TrainLen:     engine.TrainLen,
				Width:        protocol.Width16,
				ChunkSamples: StreamChunkSamples,
			}); err != nil {
				return
			}

			if ticker != nil {
				ticker.Stop()
			}
			interval := time.Duration(StreamChunkSamples) * time.Second / time.Duration(rate)
			if interval <= 0 {
				interval = time.Millisecond
			}
			ticker = time.NewTicker(interval)
			tick = ticker.C
			streaming = true
			offset = 0

		case <-tick:
			if !streaming {
				continue
			}
			for i := 0; i < StreamChunkSamples; i++ {
				protocol.PutSample(chunk[i*protocol.Width16:], protocol.Width16, uint32(train[offset+i]))
			}
			offset = (offset + StreamChunkSamples) % engine.TrainLen
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:]); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
