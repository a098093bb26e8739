package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/gateway/apierror"
)

func writeErrorJSON(w http.ResponseWriter, reqID string, err error) {
	agentErr, status := apierror.FromError(err, reqID)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: agentErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, reqID string) {
	agentErr := agent.NewInvalidRequestError("method not allowed")
	agentErr.RequestID = reqID
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: agentErr})
}
