// Package status serves a read-only view of the bridge over HTTP.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bryanchriswhite/RiverLayout/internal/bridge"
	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

// OutputStatus is what the server knows about one output.
type OutputStatus struct {
	RegistryName uint32        `json:"registry_name"`
	Name         string        `json:"name,omitempty"`
	HasSession   bool          `json:"has_session"`
	LastCommit   *CommitStatus `json:"last_commit,omitempty"`
}

// CommitStatus is the last layout committed for an output.
type CommitStatus struct {
	Layout string             `json:"layout"`
	Serial uint32             `json:"serial"`
	Tags   uint32             `json:"tags"`
	Views  []layout.Rectangle `json:"views"`
	Time   time.Time          `json:"time"`
}

// Server mirrors bridge events into a snapshot and serves it. It is a
// bridge.Observer; Observe never blocks the dispatch loop.
type Server struct {
	router    *mux.Router
	upgrader  websocket.Upgrader
	namespace string
	started   time.Time
	log       *zerolog.Logger

	mu        sync.RWMutex
	outputs   map[uint32]*OutputStatus
	listeners []chan bridge.Event
}

var _ bridge.Observer = (*Server)(nil)

// NewServer creates a status server for a bridge serving namespace.
func NewServer(namespace string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		namespace: namespace,
		started:   time.Now(),
		log:       logger.WithComponent("status"),
		outputs:   make(map[uint32]*OutputStatus),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // read-only, local tooling
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/outputs", s.handleGetOutputs).Methods("GET")
	api.HandleFunc("/outputs/{name}", s.handleGetOutput).Methods("GET")
	api.HandleFunc("/events", s.handleEventStream)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on port and serves until the listener fails.
func (s *Server) Start(port int) error {
	srv := s.httpServer(port)
	s.log.Info().Str("addr", srv.Addr).Msg("Status server listening")
	return srv.ListenAndServe()
}

// httpServer binds the router to the loopback interface. No write timeout:
// /api/events connections stay open.
func (s *Server) httpServer(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Observe applies a bridge event to the snapshot and forwards it to
// WebSocket listeners.
func (s *Server) Observe(e bridge.Event) {
	s.mu.Lock()
	switch e.Type {
	case bridge.EventOutputAdded:
		s.outputs[e.RegistryName] = &OutputStatus{RegistryName: e.RegistryName}
	case bridge.EventOutputRemoved:
		delete(s.outputs, e.RegistryName)
	case bridge.EventSessionCreated:
		if o, ok := s.outputs[e.RegistryName]; ok {
			o.Name = e.Output
			o.HasSession = true
		}
	case bridge.EventLayoutCommitted:
		if o, ok := s.outputs[e.RegistryName]; ok && e.Layout != nil {
			o.LastCommit = &CommitStatus{
				Layout: e.Layout.Name,
				Serial: e.Serial,
				Tags:   e.Tags,
				Views:  e.Layout.Views,
				Time:   e.Time,
			}
		}
	}
	s.mu.Unlock()

	s.notifyListeners(e)
}

// Outputs returns the current snapshot sorted by registry name.
func (s *Server) Outputs() []OutputStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outputs := make([]OutputStatus, 0, len(s.outputs))
	for _, o := range s.outputs {
		outputs = append(outputs, *o)
	}
	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].RegistryName < outputs[j].RegistryName
	})
	return outputs
}

// Subscribe adds a listener for bridge events
func (s *Server) Subscribe() chan bridge.Event {
	ch := make(chan bridge.Event, 32)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (s *Server) Unsubscribe(ch chan bridge.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, listener := range s.listeners {
		if listener == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (s *Server) listenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Server) notifyListeners(e bridge.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, listener := range s.listeners {
		select {
		case listener <- e:
		default:
			// Slow client, drop the event
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   Version,
		"namespace": s.namespace,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleGetOutputs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Outputs())
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, o := range s.Outputs() {
		if o.Name == name {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	http.Error(w, "Output not found", http.StatusNotFound)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.Subscribe()
	defer s.Unsubscribe(updates)

	// Reads only detect the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e := <-updates:
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
