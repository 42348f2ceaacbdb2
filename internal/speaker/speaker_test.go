package speaker

import (
	"math"
	"testing"

	"github.com/lumenprima/mediaplane/internal/model"
)

func seg(speakerID int64, start, end float64) model.TranscriptSegment {
	return model.TranscriptSegment{SpeakerID: &speakerID, StartTime: start, EndTime: end}
}

func TestSelectSegmentsFiltersShortSegments(t *testing.T) {
	segments := []model.TranscriptSegment{
		seg(1, 0, 0.3),  // 0.3s, excluded
		seg(1, 1, 2),    // 1.0s
		seg(1, 3, 3.4),  // 0.4s, excluded
	}
	grouped := SelectSegments(segments)
	got := grouped[1]
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving segment, got %d", len(got))
	}
	if got[0].StartTime != 1 {
		t.Errorf("wrong segment survived: %+v", got[0])
	}
}

func TestSelectSegmentsCapsAtFiveLongest(t *testing.T) {
	var segments []model.TranscriptSegment
	for i := 0; i < 8; i++ {
		start := float64(i * 10)
		segments = append(segments, seg(1, start, start+float64(i+1))) // durations 1..8
	}
	grouped := SelectSegments(segments)
	got := grouped[1]
	if len(got) != MaxSegmentsPerSpeaker {
		t.Fatalf("expected %d segments, got %d", MaxSegmentsPerSpeaker, len(got))
	}
	// longest five durations are 4,5,6,7,8 -> first kept should have duration 8
	if d := got[0].EndTime - got[0].StartTime; d != 8 {
		t.Errorf("expected longest segment first (duration 8), got %v", d)
	}
	for i := 1; i < len(got); i++ {
		if got[i].EndTime-got[i].StartTime > got[i-1].EndTime-got[i-1].StartTime {
			t.Errorf("segments not sorted by descending duration: %+v", got)
		}
	}
}

func TestSelectSegmentsSkipsUnassigned(t *testing.T) {
	segments := []model.TranscriptSegment{
		{SpeakerID: nil, StartTime: 0, EndTime: 5},
	}
	grouped := SelectSegments(segments)
	if len(grouped) != 0 {
		t.Errorf("expected no groups for unassigned segments, got %d", len(grouped))
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	v := Normalize([]float64{3, 4})
	var sumSquares float64
	for _, x := range v {
		sumSquares += x * x
	}
	if math.Abs(sumSquares-1.0) > 1e-9 {
		t.Errorf("normalized vector should have unit length, got magnitude^2=%v", sumSquares)
	}
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	v := Normalize([]float64{0, 0, 0})
	for _, x := range v {
		if x != 0 {
			t.Errorf("zero vector should stay zero, got %v", v)
		}
	}
}

func TestAggregateMean(t *testing.T) {
	vectors := [][]float64{
		{1, 0},
		{0, 1},
	}
	mean, err := AggregateMean(vectors)
	if err != nil {
		t.Fatalf("AggregateMean error: %v", err)
	}
	want := []float64{0.5, 0.5}
	for i := range want {
		if math.Abs(mean[i]-want[i]) > 1e-9 {
			t.Errorf("mean[%d] = %v, want %v", i, mean[i], want[i])
		}
	}
}

func TestAggregateMeanRejectsEmpty(t *testing.T) {
	if _, err := AggregateMean(nil); err == nil {
		t.Error("expected error aggregating zero vectors")
	}
}

func TestAggregateMeanRejectsDimensionMismatch(t *testing.T) {
	_, err := AggregateMean([][]float64{{1, 2}, {1, 2, 3}})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestClassifyScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{0.9, TierHigh},
		{HighThreshold, TierHigh},
		{0.6, TierMedium},
		{MediumThreshold, TierMedium},
		{0.49, TierNone},
		{0, TierNone},
	}
	for _, tt := range tests {
		if got := ClassifyScore(tt.score); got != tt.want {
			t.Errorf("ClassifyScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestWeightedMean(t *testing.T) {
	centroid := []float64{0, 0}
	next := []float64{2, 4}
	out, err := weightedMean(centroid, 0, next)
	if err != nil {
		t.Fatalf("weightedMean error: %v", err)
	}
	if out[0] != 2 || out[1] != 4 {
		t.Errorf("first fold should equal the sole vector, got %v", out)
	}

	out2, err := weightedMean(out, 1, []float64{0, 0})
	if err != nil {
		t.Fatalf("weightedMean error: %v", err)
	}
	want := []float64{1, 2}
	for i := range want {
		if math.Abs(out2[i]-want[i]) > 1e-9 {
			t.Errorf("out2[%d] = %v, want %v", i, out2[i], want[i])
		}
	}
}

func TestWeightedMeanRejectsDimensionMismatch(t *testing.T) {
	_, err := weightedMean([]float64{1, 2}, 1, []float64{1, 2, 3})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}
