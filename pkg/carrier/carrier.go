// Package carrier abstracts the telephony platform: placing outbound
// calls, terminating them, and translating the agent's abstract voice
// directives into carrier markup.
package carrier

import "context"

// CallbackURLs are the webhook endpoints the carrier drives the call
// through. Answer must be absolute; the carrier fetches it when the callee
// picks up.
type CallbackURLs struct {
	Answer string
	Status string
}

// Carrier is the interface for telephony platforms.
type Carrier interface {
	// Name returns the carrier identifier.
	Name() string

	// PlaceCall dials destination and returns the carrier's call reference.
	PlaceCall(ctx context.Context, destination string, callbacks CallbackURLs) (string, error)

	// TerminateCall ends an in-flight call.
	TerminateCall(ctx context.Context, carrierCallRef string) error
}
