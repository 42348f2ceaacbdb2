// Package analytics computes per-file conversation statistics — talk
// time, interruptions, turn-taking, question frequency, speaking pace,
// and silence ratio — purely from already-persisted TranscriptSegments.
// Like internal/subtitle and internal/waveform it is a pure function over
// values already in hand: no audio decode, no database handle.
package analytics

import (
	"sort"
	"strings"

	"github.com/lumenprima/mediaplane/internal/model"
)

// SpeakerTimeStats breaks a metric down per speaker alongside its total.
type SpeakerTimeStats struct {
	BySpeaker map[string]float64
	Total     float64
}

// SpeakerCountStats is SpeakerTimeStats' integer-valued counterpart.
type SpeakerCountStats struct {
	BySpeaker map[string]int
	Total     int
}

// Overall is one media file's full analytics report.
type Overall struct {
	WordCount       int
	DurationSeconds float64
	TalkTime        SpeakerTimeStats
	Interruptions   SpeakerCountStats
	TurnTaking      SpeakerCountStats
	Questions       SpeakerCountStats
	SpeakingPaceWPM float64
	SilenceRatio    float64
}

// speakerKey resolves a segment's label for grouping: the display name
// when known, "Unknown" otherwise. Segments are grouped by SpeakerID
// rather than by diarization label since that's the stable identity a
// TranscriptSegment actually carries.
func speakerKey(seg model.TranscriptSegment, names map[int64]string) string {
	if seg.SpeakerID == nil {
		return "Unknown"
	}
	if name, ok := names[*seg.SpeakerID]; ok && name != "" {
		return name
	}
	return "Unknown"
}

// Compute derives Overall from segments ordered by start time, using
// names to resolve each segment's speaker to a display label. Segments
// are sorted by StartTime internally; the caller need not pre-sort them.
// Interruptions are detected the same way the original does: a speaker
// change where the previous segment's end time overlaps the new
// segment's start time. Questions are detected by a trailing "?".
func Compute(segments []model.TranscriptSegment, names map[int64]string, totalDuration float64) Overall {
	sorted := make([]model.TranscriptSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	talkTime := SpeakerTimeStats{BySpeaker: map[string]float64{}}
	interruptions := SpeakerCountStats{BySpeaker: map[string]int{}}
	turns := SpeakerCountStats{BySpeaker: map[string]int{}}
	questions := SpeakerCountStats{BySpeaker: map[string]int{}}

	var totalWords int
	var previousSpeaker string
	var havePrevious bool

	for i, seg := range sorted {
		speaker := speakerKey(seg, names)
		duration := seg.EndTime - seg.StartTime
		if duration < 0 {
			duration = 0
		}
		words := len(strings.Fields(seg.Text))

		talkTime.BySpeaker[speaker] += duration
		talkTime.Total += duration
		turns.BySpeaker[speaker]++
		totalWords += words

		if strings.HasSuffix(strings.TrimSpace(seg.Text), "?") {
			questions.BySpeaker[speaker]++
			questions.Total++
		}

		if havePrevious && previousSpeaker != speaker && i > 0 {
			prev := sorted[i-1]
			if prev.EndTime > seg.StartTime {
				interruptions.BySpeaker[speaker]++
				interruptions.Total++
			}
		}

		previousSpeaker = speaker
		havePrevious = true
	}
	turns.Total = len(sorted)

	var pace float64
	if talkTime.Total > 0 {
		pace = (float64(totalWords) / talkTime.Total) * 60
	}

	var silence float64
	if totalDuration > 0 {
		silence = (totalDuration - talkTime.Total) / totalDuration
		if silence < 0 {
			silence = 0
		}
	}

	return Overall{
		WordCount:       totalWords,
		DurationSeconds: totalDuration,
		TalkTime:        talkTime,
		Interruptions:   interruptions,
		TurnTaking:      turns,
		Questions:       questions,
		SpeakingPaceWPM: pace,
		SilenceRatio:    silence,
	}
}
