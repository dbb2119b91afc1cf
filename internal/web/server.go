// Package web provides an HTTP status server for the button-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/status"
)

// resetTimeout bounds how long a reset request waits for the run loop.
const resetTimeout = 2 * time.Second

// ResetRequest asks the run loop to reset a button. An empty Button resets
// every button. The run loop replies on Done.
type ResetRequest struct {
	Button string
	Done   chan error
}

// Options configures optional server features.
type Options struct {
	// Hub serves /ws when set.
	Hub *Hub
	// Resets receives POST /reset requests when set.
	Resets chan<- ResetRequest
	Logger logrus.FieldLogger
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	resets     chan<- ResetRequest
	log        logrus.FieldLogger
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{tracker: tracker, resets: opts.Resets, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if opts.Hub != nil {
		mux.Handle("/ws", opts.Hub)
	}
	if opts.Resets != nil {
		mux.HandleFunc("/reset", s.handleReset)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.WithError(err).Error("render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

type resetResponse struct {
	Reset string `json:"reset"`
	Error string `json:"error,omitempty"`
}

func writeReset(w http.ResponseWriter, code int, resp resetResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("button")
	target := name
	if target == "" {
		target = "all"
	} else if _, ok := s.tracker.Snapshot().Button(name); !ok {
		writeReset(w, http.StatusNotFound, resetResponse{Reset: name, Error: "unknown button"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), resetTimeout)
	defer cancel()

	req := ResetRequest{Button: name, Done: make(chan error, 1)}
	select {
	case s.resets <- req:
	case <-ctx.Done():
		writeReset(w, http.StatusServiceUnavailable, resetResponse{Reset: target, Error: "run loop busy"})
		return
	}

	select {
	case err := <-req.Done:
		if err != nil {
			writeReset(w, http.StatusInternalServerError, resetResponse{Reset: target, Error: err.Error()})
			return
		}
	case <-ctx.Done():
		writeReset(w, http.StatusServiceUnavailable, resetResponse{Reset: target, Error: "timed out waiting for run loop"})
		return
	}

	s.log.WithField("button", target).Info("reset requested over http")
	writeReset(w, http.StatusOK, resetResponse{Reset: target})
}
