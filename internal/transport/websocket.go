// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fftplot/internal/analysis"
	applog "fftplot/internal/log"

	"github.com/gorilla/websocket"
)

// SpectrumPath is the WebSocket endpoint.
const SpectrumPath = "/spectrum"

const writeTimeout = time.Second

var wsLog = applog.Component("websocket")

// SpectrumMessage is the JSON document sent to every client per spectrum.
type SpectrumMessage struct {
	Seq   uint64    `json:"seq"`
	Freqs []float64 `json:"freqs"`
	DB    []float64 `json:"db"`
}

// WebSocketSink is an analysis.Sink that broadcasts spectra as JSON to all
// connected WebSocket clients.
//
// Publish copies into one of a fixed pool of pre-allocated messages and
// queues it without blocking; when every message is in flight the spectrum
// is dropped. Encoding and network writes happen on the broadcast goroutine.
type WebSocketSink struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	free      chan *SpectrumMessage // Messages available to Publish.
	broadcast chan *SpectrumMessage // Messages waiting to be sent.
	done      chan struct{}         // Closed when the broadcaster exits.
	closeOnce sync.Once

	seq     uint64 // Written only by Publish.
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewWebSocketSink creates a sink for spectra of the given bin count with
// queueSize pre-allocated messages, and starts its broadcaster. Call
// ListenAndServe to accept clients.
func NewWebSocketSink(addr string, bins, queueSize int) *WebSocketSink {
	s := newWebSocketSink(addr, bins, queueSize)
	go s.handleBroadcasts()
	return s
}

func newWebSocketSink(addr string, bins, queueSize int) *WebSocketSink {
	if queueSize < 1 {
		queueSize = 1
	}
	s := &WebSocketSink{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualisers are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		free:      make(chan *SpectrumMessage, queueSize),
		broadcast: make(chan *SpectrumMessage, queueSize),
		done:      make(chan struct{}),
	}
	for range queueSize {
		s.free <- &SpectrumMessage{
			Freqs: make([]float64, bins),
			DB:    make([]float64, bins),
		}
	}
	return s
}

// Handler returns the HTTP handler serving SpectrumPath.
func (s *WebSocketSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SpectrumPath, s.handleWebSocket)
	return mux
}

// ListenAndServe binds the configured address and serves clients in the
// background. It returns the bound address.
func (s *WebSocketSink) ListenAndServe() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wsLog.Infof("serving %s on %s", SpectrumPath, ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wsLog.Errorf("server: %v", err)
		}
	}()
	return ln.Addr(), nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Warnf("upgrade: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	total := len(s.clients)
	s.clientsMu.Unlock()
	wsLog.Infof("client connected (%d total)", total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.removeClient(conn)
				return
			}
		}
	}()
}

func (s *WebSocketSink) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	total := len(s.clients)
	s.clientsMu.Unlock()

	conn.Close()
	if ok {
		wsLog.Infof("client disconnected (%d total)", total)
	}
}

// Publish implements analysis.Sink. It never blocks or allocates.
func (s *WebSocketSink) Publish(freqs, magnitudesDB []float64) error {
	var msg *SpectrumMessage
	select {
	case msg = <-s.free:
	default:
		s.dropped.Add(1)
		return nil
	}

	s.seq++
	msg.Seq = s.seq
	msg.Freqs = msg.Freqs[:copy(msg.Freqs[:cap(msg.Freqs)], freqs)]
	msg.DB = msg.DB[:copy(msg.DB[:cap(msg.DB)], magnitudesDB)]

	// Cannot be full: at most queueSize messages exist.
	s.broadcast <- msg
	return nil
}

// handleBroadcasts sends queued messages to all connected clients.
func (s *WebSocketSink) handleBroadcasts() {
	defer close(s.done)
	for msg := range s.broadcast {
		s.clientsMu.Lock()
		for client := range s.clients {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteJSON(msg); err != nil {
				wsLog.Warnf("dropping client: %v", err)
				client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsMu.Unlock()

		s.sent.Add(1)
		s.free <- msg
	}
}

// Clients returns the number of connected clients.
func (s *WebSocketSink) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Sent returns how many spectra were broadcast.
func (s *WebSocketSink) Sent() uint64 { return s.sent.Load() }

// Dropped returns how many spectra were dropped because the queue was full.
func (s *WebSocketSink) Dropped() uint64 { return s.dropped.Load() }

// Close stops the broadcaster and the server and disconnects every client.
// Publish must not be called afterwards.
func (s *WebSocketSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		wsLog.Infof("closing (sent %d, dropped %d)", s.Sent(), s.Dropped())
		close(s.broadcast)
		<-s.done

		s.clientsMu.Lock()
		for client := range s.clients {
			client.Close()
		}
		s.clients = make(map[*websocket.Conn]bool)
		s.clientsMu.Unlock()

		if s.server != nil {
			err = s.server.Close()
		}
	})
	return err
}

var _ analysis.Sink = (*WebSocketSink)(nil)
