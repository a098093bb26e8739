// Package stt provides the speech-transcription capability.
package stt

import (
	"context"
	"io"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts audio to text. An empty transcript text means
	// "no speech detected" and is not an error.
	Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error)
}

// Options configures transcription.
type Options struct {
	Language   string `json:"language"`    // ISO language code (default "en-US")
	Format     string `json:"format"`      // Audio format hint (wav, mp3, mulaw)
	SampleRate int    `json:"sample_rate"` // Audio sample rate in Hz
}

// Transcript is the result of transcription.
type Transcript struct {
	Text     string  // Full transcribed text; empty means no speech
	Language string  // Detected or specified language
	Duration float64 // Audio duration in seconds, if reported
}
