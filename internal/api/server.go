// Package api exposes the moderation gateway: authenticated HTTP
// endpoints that mutate ban and message state through the hub, plus the
// health probe. No business logic lives here, only HTTP handling and
// JSON serialization.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"chatrelay/internal/audit"
	"chatrelay/internal/hub"
)

// SecretHeader carries the shared moderation secret.
const SecretHeader = "X-MOD-SECRET"

// ActorHeader optionally names the operator behind a request, for the
// audit trail. The bot relay sets it to the moderator's username.
const ActorHeader = "X-MOD-ACTOR"

// Recorder is the audit dependency. It is satisfied by *audit.Log and by
// test fakes; a nil Recorder disables auditing.
type Recorder interface {
	Record(ctx context.Context, action, actor, target string) error
}

// Server handles the /moderator/* surface and /health.
type Server struct {
	hub     *hub.Hub
	trail   Recorder
	secret  string
	started time.Time
	handler http.Handler
}

type moderationRequest struct {
	User string `json:"user"`
	ID   string `json:"id"`
}

type moderationResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type healthResponse struct {
	OK          bool    `json:"ok"`
	Uptime      float64 `json:"uptime"`
	Connections int     `json:"connections"`
	Messages    int     `json:"messages"`
}

// NewServer builds the gateway. The secret must be non-empty; trail may
// be nil when auditing is disabled.
func NewServer(h *hub.Hub, trail Recorder, secret string) *Server {
	s := &Server{
		hub:     h,
		trail:   trail,
		secret:  secret,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/moderator/ban", s.requireSecret(s.handleBan))
	mux.HandleFunc("/moderator/unban", s.requireSecret(s.handleUnban))
	mux.HandleFunc("/moderator/delete", s.requireSecret(s.handleDelete))
	mux.HandleFunc("/health", s.handleHealth)

	s.handler = cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", SecretHeader, ActorHeader},
	}).Handler(mux)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// requireSecret rejects any request whose secret header does not match.
// Comparison is constant-time; a failed check never reaches a handler,
// so no state can change.
func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if s.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			s.sendJSON(w, http.StatusForbidden, moderationResponse{OK: false, Error: "forbidden"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeModeration(w, r)
	if !ok {
		return
	}
	if req.User == "" {
		s.sendJSON(w, http.StatusBadRequest, moderationResponse{OK: false, Error: "user_required"})
		return
	}

	if err := s.hub.Ban(r.Context(), req.User); err != nil {
		s.sendJSON(w, http.StatusInternalServerError, moderationResponse{OK: false, Error: "internal"})
		return
	}

	s.record(r, audit.ActionBan, req.User)
	s.sendJSON(w, http.StatusOK, moderationResponse{OK: true})
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeModeration(w, r)
	if !ok {
		return
	}
	if req.User == "" {
		s.sendJSON(w, http.StatusBadRequest, moderationResponse{OK: false, Error: "user_required"})
		return
	}

	if err := s.hub.Unban(r.Context(), req.User); err != nil {
		s.sendJSON(w, http.StatusInternalServerError, moderationResponse{OK: false, Error: "internal"})
		return
	}

	s.record(r, audit.ActionUnban, req.User)
	s.sendJSON(w, http.StatusOK, moderationResponse{OK: true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeModeration(w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		s.sendJSON(w, http.StatusBadRequest, moderationResponse{OK: false, Error: "id_required"})
		return
	}

	err := s.hub.Delete(r.Context(), req.ID)
	switch {
	case errors.Is(err, hub.ErrMessageNotFound):
		s.sendJSON(w, http.StatusNotFound, moderationResponse{OK: false, Error: "not_found"})
		return
	case err != nil:
		s.sendJSON(w, http.StatusInternalServerError, moderationResponse{OK: false, Error: "internal"})
		return
	}

	s.record(r, audit.ActionDelete, req.ID)
	s.sendJSON(w, http.StatusOK, moderationResponse{OK: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSON(w, http.StatusMethodNotAllowed, moderationResponse{OK: false, Error: "method_not_allowed"})
		return
	}

	stats := s.hub.Stats()
	s.sendJSON(w, http.StatusOK, healthResponse{
		OK:          true,
		Uptime:      time.Since(s.started).Seconds(),
		Connections: stats.Connections,
		Messages:    stats.Messages,
	})
}

// decodeModeration enforces POST and parses the request body.
func (s *Server) decodeModeration(w http.ResponseWriter, r *http.Request) (moderationRequest, bool) {
	if r.Method != http.MethodPost {
		s.sendJSON(w, http.StatusMethodNotAllowed, moderationResponse{OK: false, Error: "method_not_allowed"})
		return moderationRequest{}, false
	}

	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSON(w, http.StatusBadRequest, moderationResponse{OK: false, Error: "invalid_json"})
		return moderationRequest{}, false
	}
	return req, true
}

// record appends to the audit trail. The mutation already happened, so
// trail failures are logged rather than surfaced to the operator.
func (s *Server) record(r *http.Request, action, target string) {
	if s.trail == nil {
		return
	}
	actor := r.Header.Get(ActorHeader)
	if actor == "" {
		actor = "operator"
	}
	if err := s.trail.Record(r.Context(), action, actor, target); err != nil {
		log.Printf("[api] audit record failed: %v", err)
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] response encoding failed: %v", err)
	}
}
