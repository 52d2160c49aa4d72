package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kindred-voice/relay/pkg/gateway/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	s, err := New(context.Background(), config.Config{
		AuthMode:           config.AuthModeDisabled,
		CORSAllowedOrigins: map[string]struct{}{},
		InputSampleRateHz:  16000,
		OutputSampleRateHz: 24000,
		MaxAudioFrameBytes: 8192,
		AudioQueueSize:     16,
		OutboundQueueSize:  16,
		BackendIdleTimeout: time.Minute,
		WSWriteTimeout:     time.Second,
		WSPingInterval:     time.Minute,
		HandshakeTimeout:   time.Second,
		GeminiAPIKey:       "gk_test",
		GeminiModel:        "gemini-2.0-flash-live-001",
		DatabaseURL:        "postgres://localhost:5432/relay_test",
		S3Bucket:           "voice-recordings",
		S3Region:           "us-east-1",
	}, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), "not found") {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_Healthz_OK(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Request-ID"); got == "" {
		t.Fatal("expected X-Request-ID header from middleware chain")
	}
}

func TestServer_RealtimeRoute_RejectsNonGet(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ws/realtime", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
