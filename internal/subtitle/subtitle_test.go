package subtitle

import (
	"strings"
	"testing"

	"github.com/lumenprima/mediaplane/internal/model"
)

func TestBuildCuesAndWriteSRTMatchesScenario(t *testing.T) {
	speakerID := int64(1)
	segments := []model.TranscriptSegment{
		{
			SpeakerID: &speakerID,
			StartTime: 62.0,
			EndTime:   64.5,
			Text:      "Hello world, this is a test of the subtitle formatter.",
		},
	}
	names := map[int64]string{1: "Bob"}

	cues := BuildCues(segments, names)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	cue := cues[0]
	if cue.Index != 1 {
		t.Errorf("Index = %d, want 1", cue.Index)
	}

	srt := WriteSRT(cues)
	lines := strings.Split(srt, "\n")
	if lines[0] != "1" {
		t.Errorf("first line = %q, want \"1\"", lines[0])
	}
	wantTimestamp := "00:01:02,000 --> 00:01:04,500"
	if lines[1] != wantTimestamp {
		t.Errorf("timestamp line = %q, want %q", lines[1], wantTimestamp)
	}
	if !strings.HasPrefix(lines[2], "Bob: Hello world,") {
		t.Errorf("content line = %q, want prefix %q", lines[2], "Bob: Hello world,")
	}
}

func TestFormatTimestampSRT(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{62.0, "00:01:02,000"},
		{64.5, "00:01:04,500"},
		{0, "00:00:00,000"},
		{3661.25, "01:01:01,250"},
	}
	for _, tt := range tests {
		if got := formatTimestamp(tt.seconds, ","); got != tt.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatTimestampVTTUsesDot(t *testing.T) {
	got := formatTimestamp(64.5, ".")
	if got != "00:01:04.500" {
		t.Errorf("got %q, want 00:01:04.500", got)
	}
}

func TestWrapTextRespectsMaxLines(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven twelve"
	lines := WrapText(text, 10, 2)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	for i, l := range lines[:len(lines)-1] {
		if len(l) > 10 {
			t.Errorf("line %d exceeds max length: %q", i, l)
		}
	}
}

func TestWrapTextEmpty(t *testing.T) {
	lines := WrapText("", 42, 2)
	if len(lines) != 1 || lines[0] != "" {
		t.Errorf("expected single empty line, got %v", lines)
	}
}

func TestSubtitleRoundTrip(t *testing.T) {
	segments := []model.TranscriptSegment{
		{StartTime: 0, EndTime: 2.5, Text: "first segment"},
		{StartTime: 3, EndTime: 5.125, Text: "second segment here"},
		{StartTime: 10.75, EndTime: 12, Text: "third"},
	}
	cues := BuildCues(segments, nil)
	srt := WriteSRT(cues)

	parsed, err := ParseSRT(srt)
	if err != nil {
		t.Fatalf("ParseSRT error: %v", err)
	}
	if len(parsed) != len(segments) {
		t.Fatalf("parsed %d cues, want %d", len(parsed), len(segments))
	}
	for i, seg := range segments {
		p := parsed[i]
		if diff := p.Start - seg.StartTime; diff > 0.001 || diff < -0.001 {
			t.Errorf("cue %d start = %v, want %v", i, p.Start, seg.StartTime)
		}
		if diff := p.End - seg.EndTime; diff > 0.001 || diff < -0.001 {
			t.Errorf("cue %d end = %v, want %v", i, p.End, seg.EndTime)
		}
		if p.Text() != seg.Text {
			t.Errorf("cue %d text = %q, want %q", i, p.Text(), seg.Text)
		}
	}
}

func TestWriteVTTHasHeader(t *testing.T) {
	cues := []Cue{{Index: 1, Start: 0, End: 1, Lines: []string{"hi"}}}
	vtt := WriteVTT(cues)
	if !strings.HasPrefix(vtt, "WEBVTT\n\n") {
		t.Errorf("WebVTT output missing header: %q", vtt[:20])
	}
	if !strings.Contains(vtt, "00:00:00.000 --> 00:00:01.000") {
		t.Errorf("expected dotted timestamp in WebVTT output, got %q", vtt)
	}
}

func TestReadingSpeed(t *testing.T) {
	c := Cue{Start: 0, End: 2, Lines: []string{"0123456789"}} // 10 chars / 2s = 5 cps
	if got := c.ReadingSpeed(); got != 5 {
		t.Errorf("ReadingSpeed = %v, want 5", got)
	}
}
