package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode  AuthMode
	JWTSecret string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live audio relay.
	InputSampleRateHz  int
	OutputSampleRateHz int
	MaxAudioFrameBytes int
	AudioQueueSize     int
	OutboundQueueSize  int
	BackendIdleTimeout time.Duration
	WSWriteTimeout     time.Duration
	WSPingInterval     time.Duration
	HandshakeTimeout   time.Duration
	MaxSessions        int // 0 => unlimited

	// Conversational backend.
	GeminiAPIKey string
	GeminiModel  string
	VoiceName    string
	SystemPrompt string

	// Memory service.
	MemoryBaseURL            string
	MemoryAPIKey             string
	MemoryRelevanceThreshold float64

	// Transcript storage.
	DatabaseURL string

	// Audio recording storage.
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                     envOr("RELAY_ADDR", ":8080"),
		AuthMode:                 AuthMode(envOr("RELAY_AUTH_MODE", string(AuthModeRequired))),
		JWTSecret:                strings.TrimSpace(os.Getenv("RELAY_JWT_SECRET")),
		CORSAllowedOrigins:       make(map[string]struct{}),
		InputSampleRateHz:        envIntOr("RELAY_INPUT_SAMPLE_RATE", 16000),
		OutputSampleRateHz:       envIntOr("RELAY_OUTPUT_SAMPLE_RATE", 24000),
		MaxAudioFrameBytes:       envIntOr("RELAY_MAX_AUDIO_FRAME_BYTES", 8192),
		AudioQueueSize:           envIntOr("RELAY_AUDIO_QUEUE_SIZE", 256),
		OutboundQueueSize:        envIntOr("RELAY_OUTBOUND_QUEUE_SIZE", 128),
		BackendIdleTimeout:       envDurationOr("RELAY_BACKEND_IDLE_TIMEOUT", 90*time.Second),
		WSWriteTimeout:           envDurationOr("RELAY_WS_WRITE_TIMEOUT", 5*time.Second),
		WSPingInterval:           envDurationOr("RELAY_WS_PING_INTERVAL", 20*time.Second),
		HandshakeTimeout:         envDurationOr("RELAY_HANDSHAKE_TIMEOUT", 5*time.Second),
		MaxSessions:              envIntOr("RELAY_MAX_SESSIONS", 0),
		GeminiAPIKey:             strings.TrimSpace(os.Getenv("RELAY_GEMINI_API_KEY")),
		GeminiModel:              envOr("RELAY_GEMINI_MODEL", "gemini-2.0-flash-live-001"),
		VoiceName:                envOr("RELAY_VOICE_NAME", "Leda"),
		SystemPrompt:             os.Getenv("RELAY_SYSTEM_PROMPT"),
		MemoryBaseURL:            strings.TrimSpace(os.Getenv("RELAY_MEMORY_BASE_URL")),
		MemoryAPIKey:             strings.TrimSpace(os.Getenv("RELAY_MEMORY_API_KEY")),
		MemoryRelevanceThreshold: envFloat64Or("RELAY_MEMORY_RELEVANCE_THRESHOLD", 0.6),
		DatabaseURL:              strings.TrimSpace(os.Getenv("RELAY_DATABASE_URL")),
		S3Bucket:                 envOr("RELAY_S3_BUCKET", "voice-recordings"),
		S3Region:                 envOr("RELAY_S3_REGION", "us-east-1"),
		S3AccessKeyID:            strings.TrimSpace(os.Getenv("RELAY_S3_ACCESS_KEY_ID")),
		S3SecretAccessKey:        strings.TrimSpace(os.Getenv("RELAY_S3_SECRET_ACCESS_KEY")),
		ReadHeaderTimeout:        envDurationOr("RELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:      envDurationOr("RELAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("RELAY_AUTH_MODE must be one of required|disabled")
	}
	if cfg.AuthMode == AuthModeRequired && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("RELAY_JWT_SECRET must be set when RELAY_AUTH_MODE=required")
	}

	for _, origin := range splitCSV(os.Getenv("RELAY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.InputSampleRateHz <= 0 {
		return Config{}, fmt.Errorf("RELAY_INPUT_SAMPLE_RATE must be > 0")
	}
	if cfg.OutputSampleRateHz <= 0 {
		return Config{}, fmt.Errorf("RELAY_OUTPUT_SAMPLE_RATE must be > 0")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.AudioQueueSize <= 0 {
		return Config{}, fmt.Errorf("RELAY_AUDIO_QUEUE_SIZE must be > 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("RELAY_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.BackendIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_BACKEND_IDLE_TIMEOUT must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_PING_INTERVAL must be > 0")
	}
	if cfg.HandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.MaxSessions < 0 {
		return Config{}, fmt.Errorf("RELAY_MAX_SESSIONS must be >= 0")
	}
	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("RELAY_GEMINI_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.GeminiModel) == "" {
		return Config{}, fmt.Errorf("RELAY_GEMINI_MODEL must not be empty")
	}
	if cfg.MemoryRelevanceThreshold < 0 || cfg.MemoryRelevanceThreshold >= 1 {
		return Config{}, fmt.Errorf("RELAY_MEMORY_RELEVANCE_THRESHOLD must be in [0, 1)")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("RELAY_DATABASE_URL must be set")
	}
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return Config{}, fmt.Errorf("RELAY_S3_BUCKET must not be empty")
	}
	if strings.TrimSpace(cfg.S3Region) == "" {
		return Config{}, fmt.Errorf("RELAY_S3_REGION must not be empty")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RELAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
