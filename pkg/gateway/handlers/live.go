package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kindred-voice/relay/pkg/gateway/auth"
	"github.com/kindred-voice/relay/pkg/gateway/config"
	"github.com/kindred-voice/relay/pkg/gateway/lifecycle"
	"github.com/kindred-voice/relay/pkg/gateway/mw"
	"github.com/kindred-voice/relay/pkg/live/backend"
	"github.com/kindred-voice/relay/pkg/live/session"
	"github.com/kindred-voice/relay/pkg/live/sessions"
	"github.com/kindred-voice/relay/pkg/storage/audio"
	"github.com/kindred-voice/relay/pkg/storage/transcripts"
)

// LiveHandler accepts /ws/realtime websocket sessions and runs one relay
// session per connection.
type LiveHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Verifier  *auth.Verifier
	Registry  *sessions.Registry
	Connector backend.Connector
	Tools     session.ToolDispatcher
	Store     transcripts.Store
	Recording audio.ObjectStore
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}
	if !h.originAllowed(r) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return
	}

	subjectID, ok := h.resolveSubject(w, r)
	if !ok {
		return
	}

	if h.Config.MaxSessions > 0 && h.Registry != nil && h.Registry.Count() >= h.Config.MaxSessions {
		http.Error(w, "too many active sessions", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.HandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.MaxAudioFrameBytes > 0 {
		conn.SetReadLimit(int64(h.Config.MaxAudioFrameBytes))
	}

	sessionID := "s_" + mw.RandHex(8)
	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("request_id", reqID)

	backendSession, err := h.Connector.Connect(r.Context())
	if err != nil {
		logger.Error("backend connect failed", "session_id", sessionID, "error", err)
		h.closeWithError(conn, "backend unavailable")
		return
	}

	startedAt := time.Now()
	sink := audio.NewRecorder(h.Recording, audio.Format{
		SampleRate:    h.Config.InputSampleRateHz,
		Channels:      1,
		BitsPerSample: 16,
	}, subjectID, sessionID, startedAt)

	s, err := session.New(session.Dependencies{
		Conn:      conn,
		Backend:   backendSession,
		Tools:     h.Tools,
		Sink:      sink,
		Store:     h.Store,
		Logger:    logger,
		SessionID: sessionID,
		SubjectID: subjectID,
		StartTime: startedAt,
		Config: session.Config{
			InputSampleRateHz:  h.Config.InputSampleRateHz,
			AudioQueueSize:     h.Config.AudioQueueSize,
			OutboundQueueSize:  h.Config.OutboundQueueSize,
			BackendIdleTimeout: h.Config.BackendIdleTimeout,
			WriteTimeout:       h.Config.WSWriteTimeout,
			PingInterval:       h.Config.WSPingInterval,
		},
	})
	if err != nil {
		logger.Error("session init failed", "session_id", sessionID, "error", err)
		_ = backendSession.Close()
		h.closeWithError(conn, "failed to initialize session")
		return
	}

	unregister := func() {}
	if h.Registry != nil {
		unregister = h.Registry.Register(sessionID, sessions.Handle{
			SubjectID: subjectID,
			Cancel:    s.Cancel,
			Warn:      s.Warn,
		})
	}
	defer unregister()

	if err := s.Run(); err != nil {
		logger.Warn("session ended with error", "session_id", sessionID, "error", err)
	}
}

// resolveSubject authenticates the caller before the upgrade so rejected
// clients get a plain HTTP status instead of a half-open socket.
func (h LiveHandler) resolveSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Config.AuthMode == config.AuthModeDisabled {
		subject := strings.TrimSpace(r.URL.Query().Get("subject_id"))
		if subject == "" {
			subject = "anonymous"
		}
		return subject, true
	}

	p, err := h.Verifier.Authenticate(r)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return "", false
	}
	return p.SubjectID, true
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h LiveHandler) closeWithError(conn *websocket.Conn, message string) {
	msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, message)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
}
