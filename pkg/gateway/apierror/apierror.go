// Package apierror maps domain errors to HTTP responses.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/restockai/voiceline/pkg/agent"
)

type Envelope struct {
	Error *agent.Error `json:"error"`
}

func FromError(err error, requestID string) (*agent.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &agent.Error{
			Type:      agent.ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &agent.Error{
			Type:      agent.ErrAPI,
			Message:   "request cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var agentErr *agent.Error
	if errors.As(err, &agentErr) && agentErr != nil {
		out := *agentErr
		out.RequestID = requestID
		return &out, StatusFromType(agentErr.Type)
	}

	// Unknown errors: treat as internal API error (do not leak details by default).
	return &agent.Error{
		Type:      agent.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func StatusFromType(t agent.ErrorType) int {
	switch t {
	case agent.ErrInvalidRequest:
		return http.StatusBadRequest
	case agent.ErrAuthentication:
		return http.StatusUnauthorized
	case agent.ErrNotFound:
		return http.StatusNotFound
	case agent.ErrRecognition, agent.ErrGeneration, agent.ErrSynthesis, agent.ErrCarrier:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
