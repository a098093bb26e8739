// Package tts provides the speech-synthesis capability.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio. The text may contain PauseMarker
	// tokens, which the provider translates to its own break markup.
	Synthesize(ctx context.Context, text string, opts Options) (*Synthesis, error)
}

// Options configures synthesis.
type Options struct {
	Rate   string `json:"rate"`   // e.g. "0%", "+10%"
	Pitch  string `json:"pitch"`  // e.g. "+5%"
	Volume string `json:"volume"` // e.g. "medium"
	Style  string `json:"style"`  // e.g. "conversation"
}

// DefaultOptions is the voice configuration used for all agent speech.
var DefaultOptions = Options{
	Rate:   "0%",
	Pitch:  "+5%",
	Volume: "medium",
	Style:  "conversation",
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio  []byte // Audio data
	Format string // Audio format, e.g. "mp3"
}
