package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/restockai/voiceline/pkg/agent/store"
	"github.com/restockai/voiceline/pkg/gateway/config"
	"github.com/restockai/voiceline/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Store     *store.Store
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		AuthMode       string   `json:"auth_mode"`
		CarrierEnabled bool     `json:"carrier_enabled"`
		SpeechEnabled  bool     `json:"speech_enabled"`
		ActiveCalls    int      `json:"active_calls"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.PublicBaseURL == "" {
		issues = append(issues, "public base url not configured")
	}
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "no language model key configured")
	}
	if h.Config.ListenTimeoutSeconds <= 0 {
		issues = append(issues, "listen timeout must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	active := 0
	if h.Store != nil {
		active = h.Store.Count()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       draining,
		AuthMode:       string(h.Config.AuthMode),
		CarrierEnabled: h.Config.TwilioAccountSID != "",
		SpeechEnabled:  h.Config.AzureSpeechKey != "",
		ActiveCalls:    active,
		Issues:         issues,
	})
}
