package mw

import (
	"net/http"
	"strings"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/gateway/config"
)

// authExemptPrefixes are routes the telephony carrier calls directly; it
// cannot present a bearer token. Health probes are exempt for the same
// reason.
var authExemptPrefixes = []string{
	"/webhooks/",
	"/audio/",
	"/healthz",
	"/readyz",
}

func authExempt(path string) bool {
	for _, p := range authExemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func Auth(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ := RequestIDFrom(r.Context())

		if cfg.AuthMode == config.AuthModeDisabled || authExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := parseBearer(r)
		if !ok {
			if cfg.AuthMode == config.AuthModeRequired {
				e := agent.NewAuthenticationError("missing bearer token")
				e.Param = "Authorization"
				e.RequestID = reqID
				writeJSONError(w, http.StatusUnauthorized, e)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := cfg.APIKeys[token]; !ok {
			e := agent.NewAuthenticationError("invalid api key")
			e.RequestID = reqID
			writeJSONError(w, http.StatusUnauthorized, e)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	return token, token != ""
}
