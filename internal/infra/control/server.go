package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"voice-client/internal/domain"
)

// Session is the subset of the session the control server drives.
type Session interface {
	ToggleChatState(ctx context.Context) error
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) error
	AbortSpeaking(ctx context.Context) error
	State() domain.DeviceState
	VoiceDetected() bool
}

// Server exposes session controls over HTTP so that push-to-talk buttons and
// home automation can drive the device.
type Server struct {
	addr        string
	session     Session
	server      *http.Server
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	authToken   string
}

func NewServer(addr, authToken string, session Session, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		session:     session,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute),
		authToken:   authToken,
	}
	s.mux.HandleFunc("POST /chat/toggle", s.command(session.ToggleChatState))
	s.mux.HandleFunc("POST /listen/start", s.command(session.StartListening))
	s.mux.HandleFunc("POST /listen/stop", s.command(session.StopListening))
	s.mux.HandleFunc("POST /abort", s.command(session.AbortSpeaking))
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("control server starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("control server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	token := r.Header.Get("X-Auth-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return token == s.authToken
}

func (s *Server) command(fn func(ctx context.Context) error) http.HandlerFunc {
	return s.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			s.logger.Warn("unauthorized control request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.Warn("control request failed", "path", r.URL.Path, "error", err)
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		s.logger.Info("control request accepted", "path", r.URL.Path)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
		})
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	state := s.session.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":          state.String(),
		"ready":          state.IsReady(),
		"voice_detected": s.session.VoiceDetected(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.session.State()

	status := "ok"
	statusCode := http.StatusOK
	if state == domain.StateError {
		status = "error"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status": status,
		"state":  state.String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
