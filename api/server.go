package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soilvm/soil/config"
)

// Server is the HTTP + WebSocket inspector. It is an ordinary Go host
// surface, not a GUI: it renders no pixels itself, only JSON and an event
// stream a real front end (out of this module's scope) could consume.
type Server struct {
	sessions    *SessionManager
	broadcaster *Broadcaster
	mux         *http.ServeMux
	httpServer  *http.Server
	port        int
}

func NewServer(cfg *config.Config) *Server {
	s := &Server{
		sessions:    NewSessionManager(cfg),
		broadcaster: NewBroadcaster(),
		mux:         http.NewServeMux(),
		port:        cfg.Inspector.Port,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/ws", s.handleWebSocket)
	s.mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/v1/sessions/", s.handleSessionRoute)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("soil inspector listening on http://127.0.0.1:%d", s.port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.broadcaster.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSessions handles POST /api/v1/sessions — load a .soil binary and
// start a session.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	session, err := s.sessions.Create(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": session.ID})
}

// handleSessionRoute dispatches every /api/v1/sessions/{id}[/action] request.
func (s *Server) handleSessionRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]

	session, err := s.sessions.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleSessionDelete(w, r, id)
	case "state":
		s.handleState(w, r, session)
	case "step":
		s.handleStep(w, r, session)
	case "run":
		s.handleRun(w, r, session)
	case "reset":
		s.handleReset(w, r, session)
	case "breakpoints":
		s.handleBreakpoints(w, r, session)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.sessions.Destroy(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, session *Session) {
	var snap StateSnapshot
	session.RunLocked(func() { snap = session.Snapshot() })
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, session *Session) {
	var snap StateSnapshot
	session.RunLocked(func() {
		session.Debugger.StepInto() //nolint:errcheck
		snap = session.Snapshot()
	})
	s.broadcaster.BroadcastState(session.ID, snap)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, session *Session) {
	var snap StateSnapshot
	session.RunLocked(func() {
		session.Debugger.Continue() //nolint:errcheck
		snap = session.Snapshot()
	})
	s.broadcaster.BroadcastState(session.ID, snap)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, session *Session) {
	var snap StateSnapshot
	session.RunLocked(func() {
		session.Debugger.VM.Reset()
		snap = session.Snapshot()
	})
	s.broadcaster.BroadcastState(session.ID, snap)
	writeJSON(w, http.StatusOK, snap)
}

type breakpointRequest struct {
	Address   uint64 `json:"address"`
	Temporary bool   `json:"temporary"`
}

func (s *Server) handleBreakpoints(w http.ResponseWriter, r *http.Request, session *Session) {
	switch r.Method {
	case http.MethodGet:
		var out []*struct {
			ID      int    `json:"id"`
			Address uint64 `json:"address"`
		}
		session.RunLocked(func() {
			for _, bp := range session.Debugger.Breakpoints.All() {
				out = append(out, &struct {
					ID      int    `json:"id"`
					Address uint64 `json:"address"`
				}{bp.ID, bp.Address})
			}
		})
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req breakpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		var id int
		session.RunLocked(func() {
			id = session.Debugger.Breakpoints.Add(req.Address, req.Temporary).ID
		})
		writeJSON(w, http.StatusCreated, map[string]int{"id": id})

	case http.MethodDelete:
		idStr := r.URL.Query().Get("id")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
			return
		}
		var removeErr error
		session.RunLocked(func() { removeErr = session.Debugger.Breakpoints.Remove(id) })
		if removeErr != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": removeErr.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
