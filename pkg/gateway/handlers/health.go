package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kindred-voice/relay/pkg/gateway/config"
	"github.com/kindred-voice/relay/pkg/gateway/lifecycle"
	"github.com/kindred-voice/relay/pkg/live/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Registry  *sessions.Registry
	DB        Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		AuthMode       string   `json:"auth_mode"`
		ActiveSessions int      `json:"active_sessions"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)
	draining := h.Lifecycle.IsDraining()

	if draining {
		issues = append(issues, "draining")
	}

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "backend api key not configured")
	}

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			issues = append(issues, "database unreachable")
		}
	}

	active := 0
	if h.Registry != nil {
		active = h.Registry.Count()
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       draining,
		AuthMode:       string(h.Config.AuthMode),
		ActiveSessions: active,
		Issues:         issues,
	})
}
