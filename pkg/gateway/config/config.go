package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	// PublicBaseURL is the externally reachable base URL of this server.
	// The carrier fetches webhooks and audio from it, so it must be set.
	PublicBaseURL string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Telephony carrier credentials. Optional; without them calls cannot
	// be placed but webhook handling still works for testing.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	OpenAIAPIKey string

	// Azure Speech credentials. Optional; without them replies degrade to
	// carrier-voice spoken text.
	AzureSpeechKey    string
	AzureSpeechRegion string
	AzureVoiceName    string

	LiveModel     string
	AnalysisModel string

	// ListenTimeoutSeconds is the advisory silence window passed to the
	// carrier for each speech capture.
	ListenTimeoutSeconds int

	CacheTTL        time.Duration
	CacheMaxEntries int

	// SessionDestroyGrace delays session destruction after a call ends.
	SessionDestroyGrace time.Duration

	AudioDir          string
	AudioCleanupDelay time.Duration
	ArchiveDir        string

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Outbound HTTP client defaults for provider calls.
	OutboundRequestTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                   envOr("VOICELINE_ADDR", ":8080"),
		PublicBaseURL:          strings.TrimRight(envOr("VOICELINE_PUBLIC_BASE_URL", ""), "/"),
		AuthMode:               AuthMode(envOr("VOICELINE_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:                make(map[string]struct{}),
		CORSAllowedOrigins:     make(map[string]struct{}),
		TwilioAccountSID:       envOr("VOICELINE_TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        envOr("VOICELINE_TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:       envOr("VOICELINE_TWILIO_FROM_NUMBER", ""),
		OpenAIAPIKey:           envOr("VOICELINE_OPENAI_API_KEY", ""),
		AzureSpeechKey:         envOr("VOICELINE_AZURE_SPEECH_KEY", ""),
		AzureSpeechRegion:      envOr("VOICELINE_AZURE_SPEECH_REGION", "eastus"),
		AzureVoiceName:         envOr("VOICELINE_AZURE_VOICE_NAME", "luna"),
		LiveModel:              envOr("VOICELINE_LIVE_MODEL", "gpt-4o-mini"),
		AnalysisModel:          envOr("VOICELINE_ANALYSIS_MODEL", "gpt-4.1"),
		ListenTimeoutSeconds:   envIntOr("VOICELINE_LISTEN_TIMEOUT_SECONDS", 10),
		CacheTTL:               envDurationOr("VOICELINE_CACHE_TTL", 5*time.Minute),
		CacheMaxEntries:        envIntOr("VOICELINE_CACHE_MAX_ENTRIES", 100),
		SessionDestroyGrace:    envDurationOr("VOICELINE_SESSION_DESTROY_GRACE", 60*time.Second),
		AudioDir:               envOr("VOICELINE_AUDIO_DIR", "public/audio"),
		AudioCleanupDelay:      envDurationOr("VOICELINE_AUDIO_CLEANUP_DELAY", 30*time.Second),
		ArchiveDir:             envOr("VOICELINE_ARCHIVE_DIR", "call_archives"),
		ReadHeaderTimeout:      envDurationOr("VOICELINE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:            envDurationOr("VOICELINE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:    envDurationOr("VOICELINE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		OutboundRequestTimeout: envDurationOr("VOICELINE_OUTBOUND_REQUEST_TIMEOUT", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("VOICELINE_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("VOICELINE_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("VOICELINE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.PublicBaseURL == "" {
		return Config{}, fmt.Errorf("VOICELINE_PUBLIC_BASE_URL must be set")
	}
	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("VOICELINE_PUBLIC_BASE_URL must be an absolute URL")
	}
	if cfg.ListenTimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_LISTEN_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_CACHE_TTL must be > 0")
	}
	if cfg.CacheMaxEntries <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_CACHE_MAX_ENTRIES must be > 0")
	}
	if cfg.SessionDestroyGrace < 0 {
		return Config{}, fmt.Errorf("VOICELINE_SESSION_DESTROY_GRACE must be >= 0")
	}
	if cfg.AudioCleanupDelay <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_AUDIO_CLEANUP_DELAY must be > 0")
	}
	if strings.TrimSpace(cfg.AudioDir) == "" {
		return Config{}, fmt.Errorf("VOICELINE_AUDIO_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.ArchiveDir) == "" {
		return Config{}, fmt.Errorf("VOICELINE_ARCHIVE_DIR must not be empty")
	}
	if cfg.LiveModel == "" || cfg.AnalysisModel == "" {
		return Config{}, fmt.Errorf("VOICELINE_LIVE_MODEL and VOICELINE_ANALYSIS_MODEL must not be empty")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.OutboundRequestTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICELINE_OUTBOUND_REQUEST_TIMEOUT must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("VOICELINE_API_KEYS must be set when VOICELINE_AUTH_MODE=required")
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
