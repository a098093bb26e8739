// Package agent holds the domain-level error model and the scripted
// utterances that govern the sales agent's behavior.
package agent

import "fmt"

// Error is the canonical error for all agent-facing failures.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	CallID     string    `json:"call_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Underlying error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("%s: %s (call: %s)", e.Type, e.Message, e.CallID)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrRecognition means no usable transcript was produced. Treated as
	// "caller silent" and routed to the timeout/retry path.
	ErrRecognition ErrorType = "recognition_error"

	// ErrGeneration means the language-model call failed. The orchestrator
	// substitutes a scripted apology and stays in the call.
	ErrGeneration ErrorType = "generation_error"

	// ErrSynthesis means the preferred voice failed. The orchestrator falls
	// back to a plain spoken-text directive.
	ErrSynthesis ErrorType = "synthesis_error"

	// ErrCarrier means an outbound call placement or termination command
	// failed. Surfaced as a structured failure to the call-management API.
	ErrCarrier ErrorType = "carrier_error"

	// ErrNotFound means an operation referenced an unknown call ID.
	ErrNotFound ErrorType = "not_found_error"

	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrAPI            ErrorType = "api_error"
)

// NewRecognitionError creates a recognition error.
func NewRecognitionError(message string, underlying error) *Error {
	return &Error{Type: ErrRecognition, Message: message, Underlying: underlying}
}

// NewGenerationError creates a generation error.
func NewGenerationError(message string, underlying error) *Error {
	return &Error{Type: ErrGeneration, Message: message, Underlying: underlying}
}

// NewSynthesisError creates a synthesis error.
func NewSynthesisError(message string, underlying error) *Error {
	return &Error{Type: ErrSynthesis, Message: message, Underlying: underlying}
}

// NewCarrierError creates a carrier error.
func NewCarrierError(message string, underlying error) *Error {
	return &Error{Type: ErrCarrier, Message: message, Underlying: underlying}
}

// NewNotFoundError creates a not found error for the given call ID.
func NewNotFoundError(callID string) *Error {
	return &Error{Type: ErrNotFound, Message: "call not found", CallID: callID}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewAPIError creates a generic internal error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}
