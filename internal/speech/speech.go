// Package speech adapts the speech-to-text and text-to-speech backends.
// Both adapters are pure request/response: retry and timeout policy belongs
// to the caller.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrTranscription covers unsupported audio, empty results, and
	// upstream failures of the speech-to-text backend.
	ErrTranscription = errors.New("transcription failed")

	// ErrSynthesis covers empty output and upstream failures of the
	// text-to-speech backend.
	ErrSynthesis = errors.New("speech synthesis failed")
)

// Transcriber converts voice audio to text in the expected language.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageCode string) (string, error)
}

// Synthesizer converts reply text to voice audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode, voice string) ([]byte, error)
}
