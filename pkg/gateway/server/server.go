// Package server wires configuration into the HTTP surface of the relay:
// health endpoints, the realtime websocket route, and the shared
// infrastructure clients behind them.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/kindred-voice/relay/pkg/gateway/auth"
	"github.com/kindred-voice/relay/pkg/gateway/config"
	"github.com/kindred-voice/relay/pkg/gateway/handlers"
	"github.com/kindred-voice/relay/pkg/gateway/lifecycle"
	"github.com/kindred-voice/relay/pkg/gateway/mw"
	"github.com/kindred-voice/relay/pkg/live/backend"
	"github.com/kindred-voice/relay/pkg/live/sessions"
	"github.com/kindred-voice/relay/pkg/live/tools"
	"github.com/kindred-voice/relay/pkg/memory"
	"github.com/kindred-voice/relay/pkg/storage/audio"
	"github.com/kindred-voice/relay/pkg/storage/transcripts"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	pool      *pgxpool.Pool
	store     *transcripts.PGStore
	recording audio.ObjectStore
	connector backend.Connector
	dispatch  *tools.Dispatcher
	verifier  *auth.Verifier
	registry  *sessions.Registry
	lifecycle *lifecycle.Lifecycle
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	memories := memory.NewHTTPClient(cfg.MemoryAPIKey, cfg.MemoryBaseURL, httpClient)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		pool:   pool,
		store:  transcripts.NewPGStore(pool),
		recording: audio.NewS3Store(audio.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}),
		connector: backend.NewGeminiConnector(genaiClient, backend.GeminiConfig{
			Model:        cfg.GeminiModel,
			VoiceName:    cfg.VoiceName,
			SystemPrompt: cfg.SystemPrompt,
		}),
		dispatch:  tools.NewDispatcher(memories, cfg.MemoryRelevanceThreshold, logger),
		verifier:  auth.NewVerifier(cfg.JWTSecret),
		registry:  sessions.NewRegistry(),
		lifecycle: &lifecycle.Lifecycle{},
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
		Registry:  s.registry,
		DB:        s.store,
	})
	s.mux.Handle("/ws/realtime", handlers.LiveHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Lifecycle: s.lifecycle,
		Verifier:  s.verifier,
		Registry:  s.registry,
		Connector: s.connector,
		Tools:     s.dispatch,
		Store:     s.store,
		Recording: s.recording,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness so load balancers stop routing new
// sessions here.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WarnSessionsDraining tells every live session the server is going away.
func (s *Server) WarnSessionsDraining() {
	n := s.registry.Broadcast("server is shutting down")
	if n > 0 {
		s.logger.Info("warned live sessions about shutdown", "count", n)
	}
}

// WaitSessions blocks until all live sessions finish or ctx expires.
func (s *Server) WaitSessions(ctx context.Context) bool {
	return s.registry.Wait(ctx)
}

// CancelSessions force-cancels whatever sessions remain.
func (s *Server) CancelSessions() {
	n := s.registry.CancelAll()
	if n > 0 {
		s.logger.Warn("canceled live sessions at shutdown", "count", n)
	}
}

// Close releases pooled resources. Call after the HTTP server has
// stopped and sessions have drained.
func (s *Server) Close() {
	s.pool.Close()
}
