// Package providers defines the opaque external-model interfaces for the
// transcription, diarization, embedding, alignment, and LLM models the
// core never implements directly — it only ever calls through these
// interfaces. HTTPTranscriber wraps its calls in a gobreaker.CircuitBreaker
// built from BreakerSettings; the in-process fakes use no breaker.
package providers

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Capabilities describes what a concrete provider implementation
// supports, so callers can skip optional request fields a given backend
// ignores rather than guessing (mirrors transcribe.TranscribeOpts's
// zero-value-means-omit convention, made introspectable).
type Capabilities struct {
	Name              string
	Model             string
	SupportsLanguage  bool
	SupportsWordTimes bool
	MaxAudioSeconds   float64
}

// TranscriptWord is a timestamped word from any STT provider.
type TranscriptWord struct {
	Word  string
	Start float64
	End   float64
}

// TranscriptionResult is the common shape any Transcriber returns.
type TranscriptionResult struct {
	Text     string
	Language string
	Duration float64
	Words    []TranscriptWord
}

// Transcriber turns an audio blob reference into text plus optional word
// timestamps.
type Transcriber interface {
	Capabilities() Capabilities
	Transcribe(ctx context.Context, audioKey string, language string) (TranscriptionResult, error)
}

// DiarizedSegment is one speaker-attributed time range from a Diarizer.
type DiarizedSegment struct {
	SpeakerLabel string // e.g. "SPEAKER_01"
	Start        float64
	End          float64
}

// Diarizer splits an audio blob into per-speaker segments.
type Diarizer interface {
	Capabilities() Capabilities
	Diarize(ctx context.Context, audioKey string) ([]DiarizedSegment, error)
}

// Embedder computes a fixed-dimension voice embedding for one time range
// of an audio blob. This is the same contract internal/speaker.Embedder
// names; providers supplies the concrete implementations that satisfy it
// (Go interfaces are structural, so no shared type is required — a
// *FakeEmbedder here implicitly is a speaker.Embedder).
type Embedder interface {
	Capabilities() Capabilities
	Embed(ctx context.Context, mediaFileID int64, startTime, endTime float64) ([]float32, error)
}

// AlignedWord is one word/text unit with a start/end timestamp, the
// output of an Aligner given text and audio.
type AlignedWord struct {
	Text  string
	Start float64
	End   float64
}

// Aligner produces word-level timestamps for text known to correspond to
// an audio range (forced alignment).
type Aligner interface {
	Capabilities() Capabilities
	Align(ctx context.Context, audioKey, text string) ([]AlignedWord, error)
}

// Decoder extracts normalized PCM samples from a stored audio blob — the
// external audio-extraction step waveform generation sits downstream of.
// Like Transcriber and the other model interfaces, the core never decodes
// a container itself; it only ever calls through this boundary.
type Decoder interface {
	Capabilities() Capabilities
	Decode(ctx context.Context, audioKey string) (samples []float32, sampleRate int, err error)
}

// ChatMessage is one turn in an LLM chat completion request.
type ChatMessage struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// LLM performs a chat completion, used for summarization, topic
// extraction, and speaker-name suggestion prompts.
type LLM interface {
	Capabilities() Capabilities
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// BreakerSettings returns gobreaker defaults tuned for a provider call:
// trip after 5 consecutive failures, half-open after 30s. Each adapter
// wraps its outbound call in a breaker built from this.
func BreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}
