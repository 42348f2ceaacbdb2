package analytics

import (
	"testing"

	"github.com/lumenprima/mediaplane/internal/model"
)

func seg(speakerID int64, start, end float64, text string) model.TranscriptSegment {
	return model.TranscriptSegment{SpeakerID: &speakerID, StartTime: start, EndTime: end, Text: text}
}

func TestComputeTalkTimeAndWordCount(t *testing.T) {
	segments := []model.TranscriptSegment{
		seg(1, 0, 10, "one two three four five"),
		seg(2, 10, 20, "six seven"),
	}
	names := map[int64]string{1: "Alice", 2: "Bob"}

	got := Compute(segments, names, 20)

	if got.WordCount != 7 {
		t.Errorf("WordCount = %d, want 7", got.WordCount)
	}
	if got.TalkTime.Total != 20 {
		t.Errorf("TalkTime.Total = %v, want 20", got.TalkTime.Total)
	}
	if got.TalkTime.BySpeaker["Alice"] != 10 || got.TalkTime.BySpeaker["Bob"] != 10 {
		t.Errorf("TalkTime.BySpeaker = %+v, want 10/10", got.TalkTime.BySpeaker)
	}
	if got.SilenceRatio != 0 {
		t.Errorf("SilenceRatio = %v, want 0", got.SilenceRatio)
	}
	wantPace := (7.0 / 20.0) * 60
	if got.SpeakingPaceWPM != wantPace {
		t.Errorf("SpeakingPaceWPM = %v, want %v", got.SpeakingPaceWPM, wantPace)
	}
}

func TestComputeDetectsInterruptionsAndQuestions(t *testing.T) {
	segments := []model.TranscriptSegment{
		seg(1, 0, 5, "are you ready?"),
		seg(2, 4, 8, "yes I am"), // overlaps prior segment's tail -> interruption
		seg(1, 8, 12, "great"),
	}
	names := map[int64]string{1: "Alice", 2: "Bob"}

	got := Compute(segments, names, 12)

	if got.Questions.Total != 1 || got.Questions.BySpeaker["Alice"] != 1 {
		t.Errorf("Questions = %+v, want total 1 from Alice", got.Questions)
	}
	if got.Interruptions.Total != 1 || got.Interruptions.BySpeaker["Bob"] != 1 {
		t.Errorf("Interruptions = %+v, want total 1 from Bob", got.Interruptions)
	}
	if got.TurnTaking.Total != 3 {
		t.Errorf("TurnTaking.Total = %d, want 3", got.TurnTaking.Total)
	}
}

func TestComputeUnknownSpeaker(t *testing.T) {
	segments := []model.TranscriptSegment{
		{StartTime: 0, EndTime: 5, Text: "no speaker assigned"},
	}
	got := Compute(segments, nil, 5)
	if got.TalkTime.BySpeaker["Unknown"] != 5 {
		t.Errorf("expected unassigned segment under Unknown, got %+v", got.TalkTime.BySpeaker)
	}
}

func TestComputeSilenceRatio(t *testing.T) {
	segments := []model.TranscriptSegment{
		seg(1, 0, 5, "hello"),
	}
	got := Compute(segments, map[int64]string{1: "Alice"}, 20)
	if got.SilenceRatio != 0.75 {
		t.Errorf("SilenceRatio = %v, want 0.75", got.SilenceRatio)
	}
}

func TestComputeEmptySegments(t *testing.T) {
	got := Compute(nil, nil, 0)
	if got.WordCount != 0 || got.TalkTime.Total != 0 || got.SpeakingPaceWPM != 0 || got.SilenceRatio != 0 {
		t.Errorf("expected zero-value Overall for no segments, got %+v", got)
	}
}
