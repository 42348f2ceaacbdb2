package providers

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
)

// FakeTranscriber returns a fixed transcript for every call, deterministic
// enough for task-graph and recovery tests that don't care about the ML
// output itself.
type FakeTranscriber struct {
	Text     string
	Language string
}

func (f *FakeTranscriber) Capabilities() Capabilities {
	return Capabilities{Name: "fake", Model: "fake-transcriber", SupportsLanguage: true, SupportsWordTimes: true}
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audioKey, language string) (TranscriptionResult, error) {
	text := f.Text
	if text == "" {
		text = "this is a fake transcript"
	}
	lang := language
	if lang == "" {
		lang = f.Language
	}
	if lang == "" {
		lang = "en"
	}
	return TranscriptionResult{Text: text, Language: lang, Duration: 10, Words: nil}, nil
}

// FakeDiarizer splits every file into a fixed number of equal-length
// speaker segments, cycling through SPEAKER_00..SPEAKER_0{N-1}.
type FakeDiarizer struct {
	Speakers      int
	SegmentLength float64
}

func (f *FakeDiarizer) Capabilities() Capabilities {
	return Capabilities{Name: "fake", Model: "fake-diarizer"}
}

func (f *FakeDiarizer) Diarize(ctx context.Context, audioKey string) ([]DiarizedSegment, error) {
	n := f.Speakers
	if n <= 0 {
		n = 2
	}
	segLen := f.SegmentLength
	if segLen <= 0 {
		segLen = 5.0
	}
	segments := make([]DiarizedSegment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, DiarizedSegment{
			SpeakerLabel: fmt.Sprintf("SPEAKER_%02d", i),
			Start:        float64(i) * segLen,
			End:          float64(i+1) * segLen,
		})
	}
	return segments, nil
}

// FakeEmbedder derives a deterministic pseudo-embedding from a hash of its
// inputs, so the same (mediaFileID, startTime, endTime) always produces
// the same vector and distinct inputs produce distinct ones — useful for
// exercising internal/speaker's matching logic without a real model.
type FakeEmbedder struct {
	Dim int
}

func (f *FakeEmbedder) Capabilities() Capabilities {
	return Capabilities{Name: "fake", Model: "fake-embedder"}
}

func (f *FakeEmbedder) Embed(ctx context.Context, mediaFileID int64, startTime, endTime float64) ([]float32, error) {
	dim := f.Dim
	if dim <= 0 {
		dim = 512
	}
	seed := fmt.Sprintf("%d:%f:%f", mediaFileID, startTime, endTime)
	sum := sha256.Sum256([]byte(seed))

	out := make([]float32, dim)
	for i := range out {
		b := sum[i%len(sum)]
		out[i] = float32(math.Sin(float64(b) + float64(i)))
	}
	return out, nil
}

// FakeAligner evenly distributes text's words across [0, duration].
type FakeAligner struct {
	Duration float64
}

func (f *FakeAligner) Capabilities() Capabilities {
	return Capabilities{Name: "fake", Model: "fake-aligner"}
}

func (f *FakeAligner) Align(ctx context.Context, audioKey, text string) ([]AlignedWord, error) {
	words := splitWords(text)
	if len(words) == 0 {
		return nil, nil
	}
	duration := f.Duration
	if duration <= 0 {
		duration = float64(len(words))
	}
	step := duration / float64(len(words))

	out := make([]AlignedWord, len(words))
	for i, w := range words {
		out[i] = AlignedWord{Text: w, Start: float64(i) * step, End: float64(i+1) * step}
	}
	return out, nil
}

func splitWords(text string) []string {
	var words []string
	var cur []rune
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

// FakeDecoder synthesizes a short sine-wave PCM buffer for any audio key,
// deterministic enough that the same key always decodes to the same
// samples.
type FakeDecoder struct {
	SampleRate int
	Seconds    float64
}

func (f *FakeDecoder) Capabilities() Capabilities {
	return Capabilities{Name: "fake", Model: "fake-decoder"}
}

func (f *FakeDecoder) Decode(ctx context.Context, audioKey string) ([]float32, int, error) {
	rate := f.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	seconds := f.Seconds
	if seconds <= 0 {
		seconds = 5
	}
	sum := sha256.Sum256([]byte(audioKey))
	freq := 220 + float64(sum[0])

	n := int(float64(rate) * seconds)
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*t))
	}
	return samples, rate, nil
}

// FakeLLM echoes a canned response, optionally derived from the last user
// message, for summarization/topic-extraction tests.
type FakeLLM struct {
	Response string
}

func (f *FakeLLM) Capabilities() Capabilities {
	return Capabilities{Name: "fake", Model: "fake-llm"}
}

func (f *FakeLLM) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if f.Response != "" {
		return f.Response, nil
	}
	if len(messages) == 0 {
		return "", nil
	}
	return "summary: " + messages[len(messages)-1].Content, nil
}
