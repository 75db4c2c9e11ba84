// Package voice wraps speech synthesis and transcription. Both are slow,
// blocking calls, so callers run them through a Pool.
package voice

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a voice backend is missing credentials or binaries
var ErrNotConfigured = errors.New("voice backend not configured")

// Synthesizer turns text into WAV audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns an audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Fallback tries each synthesizer in order until one succeeds
type Fallback []Synthesizer

// Synthesize returns the first successful synthesis
func (f Fallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var errs []error
	for _, s := range f {
		audio, err := s.Synthesize(ctx, text)
		if err == nil {
			return audio, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNotConfigured
	}
	return nil, errors.Join(errs...)
}
