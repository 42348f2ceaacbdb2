// Package speaker is the Speaker Identity Engine: embedding extraction,
// cross-file kNN matching, retroactive labeling, and profile
// consolidation, built on internal/vectorindex and internal/database the
// same way internal/tasks is built on internal/database and
// internal/queue — a thin orchestration struct, no generic "graph" or
// "pipeline" abstraction layered on top.
//
// The embedding model itself is out of scope: it's a pure function of
// audio + time interval, represented here by the Embedder interface so
// tests can swap in a deterministic fake rather than this package owning
// the model call.
package speaker

import (
	"context"
	"fmt"
	"math"

	"github.com/lumenprima/mediaplane/internal/model"
)

const (
	// EmbeddingDim is the fixed embedding width every stored voiceprint uses.
	EmbeddingDim = 512

	// MinSegmentDuration excludes segments too short to carry a reliable
	// voiceprint.
	MinSegmentDuration = 0.5 // seconds

	// MaxSegmentsPerSpeaker caps how many of a speaker's longest segments
	// feed the embedding average.
	MaxSegmentsPerSpeaker = 5
)

// Embedder extracts one embedding vector for a single time interval of a
// media file's audio.
type Embedder interface {
	Embed(ctx context.Context, mediaFileID int64, startTime, endTime float64) ([]float32, error)
}

// SelectSegments groups segments by their assigned per-file Speaker
// (the "diarization speaker label"), drops anything shorter than
// MinSegmentDuration, and keeps at most the MaxSegmentsPerSpeaker longest
// per speaker — step 1 of the embedding pipeline. Segments with no
// speaker assigned are skipped; they carry no diarization label to group
// by.
func SelectSegments(segments []model.TranscriptSegment) map[int64][]model.TranscriptSegment {
	bySpeaker := make(map[int64][]model.TranscriptSegment)
	for _, s := range segments {
		if s.SpeakerID == nil {
			continue
		}
		if s.EndTime-s.StartTime < MinSegmentDuration {
			continue
		}
		bySpeaker[*s.SpeakerID] = append(bySpeaker[*s.SpeakerID], s)
	}

	for id, segs := range bySpeaker {
		sortByDurationDesc(segs)
		if len(segs) > MaxSegmentsPerSpeaker {
			segs = segs[:MaxSegmentsPerSpeaker]
		}
		bySpeaker[id] = segs
	}
	return bySpeaker
}

func sortByDurationDesc(segs []model.TranscriptSegment) {
	duration := func(s model.TranscriptSegment) float64 { return s.EndTime - s.StartTime }
	// insertion sort: segment counts per speaker are small (<= a few
	// hundred even on long files), so this stays cheap and avoids
	// pulling in sort.Slice for five comparisons' worth of work.
	for i := 1; i < len(segs); i++ {
		for j := i; j > 0 && duration(segs[j]) > duration(segs[j-1]); j-- {
			segs[j], segs[j-1] = segs[j-1], segs[j]
		}
	}
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged (there's nothing to normalize, and the caller's cosine
// similarity will reject it explicitly rather than divide by zero here).
func Normalize(v []float64) []float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += x * x
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// AggregateMean normalizes every vector then takes their arithmetic mean
// — step 3 of the embedding pipeline. Returns an error if the
// vectors have mismatched dimensions or the input is empty.
func AggregateMean(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("speaker: cannot aggregate zero vectors")
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("speaker: dimension mismatch aggregating vectors: %d vs %d", len(v), dim)
		}
		nv := Normalize(v)
		for i, x := range nv {
			sum[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}

func float32ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
