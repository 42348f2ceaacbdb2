package providers

import (
	"context"
	"testing"
)

func TestFakeTranscriberDefaults(t *testing.T) {
	ft := &FakeTranscriber{}
	res, err := ft.Transcribe(context.Background(), "key", "")
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if res.Text == "" {
		t.Error("expected non-empty fake transcript")
	}
	if res.Language != "en" {
		t.Errorf("Language = %q, want en", res.Language)
	}
}

func TestFakeDiarizerProducesRequestedSpeakerCount(t *testing.T) {
	fd := &FakeDiarizer{Speakers: 3, SegmentLength: 2}
	segs, err := fd.Diarize(context.Background(), "key")
	if err != nil {
		t.Fatalf("Diarize error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 2 {
		t.Errorf("unexpected first segment: %+v", segs[0])
	}
	if segs[2].SpeakerLabel != "SPEAKER_02" {
		t.Errorf("expected SPEAKER_02, got %s", segs[2].SpeakerLabel)
	}
}

func TestFakeEmbedderDeterministic(t *testing.T) {
	fe := &FakeEmbedder{Dim: 16}
	v1, err := fe.Embed(context.Background(), 1, 0, 5)
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	v2, err := fe.Embed(context.Background(), 1, 0, 5)
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(v1) != 16 {
		t.Fatalf("expected dim 16, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("same inputs produced different embeddings at index %d", i)
		}
	}
}

func TestFakeEmbedderDistinctInputsDiffer(t *testing.T) {
	fe := &FakeEmbedder{Dim: 16}
	v1, _ := fe.Embed(context.Background(), 1, 0, 5)
	v2, _ := fe.Embed(context.Background(), 2, 0, 5)
	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected distinct inputs to produce distinct embeddings")
	}
}

func TestFakeAlignerDistributesWords(t *testing.T) {
	fa := &FakeAligner{Duration: 10}
	words, err := fa.Align(context.Background(), "key", "one two three four five")
	if err != nil {
		t.Fatalf("Align error: %v", err)
	}
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}
	if words[0].Start != 0 {
		t.Errorf("first word start = %v, want 0", words[0].Start)
	}
	if words[4].End != 10 {
		t.Errorf("last word end = %v, want 10", words[4].End)
	}
}

func TestFakeAlignerEmptyText(t *testing.T) {
	fa := &FakeAligner{}
	words, err := fa.Align(context.Background(), "key", "")
	if err != nil {
		t.Fatalf("Align error: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("expected no words for empty text, got %d", len(words))
	}
}

func TestFakeLLMUsesCannedResponse(t *testing.T) {
	fl := &FakeLLM{Response: "canned"}
	out, err := fl.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "canned" {
		t.Errorf("Complete = %q, want canned", out)
	}
}

func TestFakeLLMEchoesLastMessage(t *testing.T) {
	fl := &FakeLLM{}
	out, err := fl.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "summarize this"}})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "summary: summarize this" {
		t.Errorf("Complete = %q", out)
	}
}
