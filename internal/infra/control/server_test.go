package control_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"voice-client/internal/domain"
	"voice-client/internal/infra/control"
)

type mockSession struct {
	mu    sync.Mutex
	calls []string
	state domain.DeviceState
	err   error
}

func (m *mockSession) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockSession) ToggleChatState(context.Context) error { return m.record("toggle") }
func (m *mockSession) StartListening(context.Context) error  { return m.record("start") }
func (m *mockSession) StopListening(context.Context) error   { return m.record("stop") }
func (m *mockSession) AbortSpeaking(context.Context) error   { return m.record("abort") }
func (m *mockSession) State() domain.DeviceState             { return m.state }
func (m *mockSession) VoiceDetected() bool                   { return true }

func TestServer_Commands(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := &mockSession{}
	handler := control.NewServer(":0", "", session, logger).Handler()

	paths := map[string]string{
		"/chat/toggle":  "toggle",
		"/listen/start": "start",
		"/listen/stop":  "stop",
		"/abort":        "abort",
	}

	for path, call := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusAccepted {
				t.Errorf("status code: got %d, want %d", rec.Code, http.StatusAccepted)
			}
			session.mu.Lock()
			last := session.calls[len(session.calls)-1]
			session.mu.Unlock()
			if last != call {
				t.Errorf("call: got %s, want %s", last, call)
			}
		})
	}
}

func TestServer_CommandRejectedWhenSessionClosed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := &mockSession{err: context.Canceled}
	handler := control.NewServer(":0", "", session, logger).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/toggle", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_AuthToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authToken := "test-secret-token-123"
	handler := control.NewServer(":0", authToken, &mockSession{}, logger).Handler()

	tests := []struct {
		name       string
		token      string
		method     string
		wantStatus int
	}{
		{
			name:       "valid token in header",
			token:      authToken,
			method:     "header",
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "valid token in query",
			token:      authToken,
			method:     "query",
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "invalid token",
			token:      "wrong-token",
			method:     "header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing token",
			token:      "",
			method:     "header",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.method == "query" {
				req = httptest.NewRequest(http.MethodPost, "/listen/start?token="+tt.token, nil)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/listen/start", nil)
				if tt.token != "" {
					req.Header.Set("X-Auth-Token", tt.token)
				}
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestServer_StateAndHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := &mockSession{state: domain.StateSpeaking}
	handler := control.NewServer(":0", "", session, logger).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	var body struct {
		State         string `json:"state"`
		Ready         bool   `json:"ready"`
		VoiceDetected bool   `json:"voice_detected"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if body.State != "speaking" || !body.Ready || !body.VoiceDetected {
		t.Errorf("unexpected state body %+v", body)
	}

	session.state = domain.StateError
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_StartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := control.NewServer("127.0.0.1:0", "", &mockSession{}, logger)

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := server.Stop(); err != nil {
		t.Errorf("stopping server: %v", err)
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := control.NewRateLimiter(2, time.Minute)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("expected first two requests allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("expected third request rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("expected other client allowed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := control.NewRateLimiter(1, time.Minute)
	handler := rl.Middleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/abort", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}
}
