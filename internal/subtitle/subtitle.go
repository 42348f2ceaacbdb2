// Package subtitle renders TranscriptSegments as SRT or WebVTT cues. It is
// a pure, I/O-contract-only formatter: no ML, no database, just
// deterministic text shaping over values already in hand. Text is wrapped
// at 42 chars/line into at most 2 lines per cue; words that do not fit
// stay on the last line, which can then run past 42 chars. Cue times are
// the segments' own start and end: MinDisplay/MaxDisplay (1-6s) are not
// applied, and reading speed is only reported by Cue.ReadingSpeed against
// MaxCharsPerSec (20), not enforced.
package subtitle

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lumenprima/mediaplane/internal/model"
)

const (
	MaxCharsPerLine = 42
	MaxLinesPerCue  = 2
	MinDisplay      = 1 * time.Second
	MaxDisplay      = 6 * time.Second
	MaxCharsPerSec  = 20.0
)

// Cue is one subtitle entry: a time range and the lines of text displayed
// during it.
type Cue struct {
	Index int
	Start float64 // seconds
	End   float64 // seconds
	Lines []string
}

// BuildCues turns transcript segments into display-ready cues, prefixing
// each with its speaker's display name when known. Segments are sorted by
// start time and numbered from 1.
func BuildCues(segments []model.TranscriptSegment, speakerNames map[int64]string) []Cue {
	sorted := make([]model.TranscriptSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	cues := make([]Cue, 0, len(sorted))
	for i, seg := range sorted {
		text := seg.Text
		if seg.SpeakerID != nil {
			if name, ok := speakerNames[*seg.SpeakerID]; ok && name != "" {
				text = name + ": " + text
			}
		}
		cues = append(cues, Cue{
			Index: i + 1,
			Start: seg.StartTime,
			End:   seg.EndTime,
			Lines: WrapText(text, MaxCharsPerLine, MaxLinesPerCue),
		})
	}
	return cues
}

// WrapText greedily word-wraps text into at most maxLines lines of at most
// maxLineLen characters each. Any words left over once maxLines is full are
// appended, space-separated, to the final line rather than dropped — cue
// text is never truncated, only reflowed.
func WrapText(text string, maxLineLen, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() == 0 {
			cur.WriteString(w)
			continue
		}
		if cur.Len()+1+len(w) > maxLineLen && len(lines) < maxLines-1 {
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(w)
			continue
		}
		cur.WriteByte(' ')
		cur.WriteString(w)
	}
	lines = append(lines, cur.String())
	return lines
}

// ReadingSpeed reports characters per second of displayed text over the
// cue's duration, for callers that want to flag cues exceeding
// MaxCharsPerSec.
func (c Cue) ReadingSpeed() float64 {
	dur := c.End - c.Start
	if dur <= 0 {
		return 0
	}
	var n int
	for _, l := range c.Lines {
		n += len(l)
	}
	return float64(n) / dur
}

// WriteSRT renders cues in SubRip format.
func WriteSRT(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&b, "%d\n", c.Index)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(c.Start, ","), formatTimestamp(c.End, ","))
		fmt.Fprintf(&b, "%s\n\n", strings.Join(c.Lines, "\n"))
	}
	return b.String()
}

// WriteVTT renders cues in WebVTT format.
func WriteVTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, c := range cues {
		fmt.Fprintf(&b, "%d\n", c.Index)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(c.Start, "."), formatTimestamp(c.End, "."))
		fmt.Fprintf(&b, "%s\n\n", strings.Join(c.Lines, "\n"))
	}
	return b.String()
}

// formatTimestamp renders seconds as HH:MM:SS<sep>mmm. sep is "," for SRT
// and "." for WebVTT.
func formatTimestamp(seconds float64, sep string) string {
	totalMillis := int64(seconds*1000 + 0.5)
	ms := totalMillis % 1000
	totalSec := totalMillis / 1000
	s := totalSec % 60
	totalMin := totalSec / 60
	m := totalMin % 60
	h := totalMin / 60
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}

// ParseSRT parses SubRip text back into cues. Parsing WriteSRT's output
// must reproduce the same (start, end, text) triples modulo <=1ms
// rounding.
func ParseSRT(data string) ([]Cue, error) {
	var cues []Cue
	sc := bufio.NewScanner(strings.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		idx, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("subtitle: expected cue index, got %q", line)
		}

		if !sc.Scan() {
			return nil, fmt.Errorf("subtitle: cue %d missing timestamp line", idx)
		}
		start, end, err := parseTimestampLine(strings.TrimSpace(sc.Text()))
		if err != nil {
			return nil, fmt.Errorf("subtitle: cue %d: %w", idx, err)
		}

		var lines []string
		for sc.Scan() {
			text := strings.TrimRight(sc.Text(), "\r")
			if strings.TrimSpace(text) == "" {
				break
			}
			lines = append(lines, text)
		}

		cues = append(cues, Cue{Index: idx, Start: start, End: end, Lines: lines})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cues, nil
}

func parseTimestampLine(line string) (start, end float64, err error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timestamp line %q", line)
	}
	start, err = parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err = parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ":")
	s = strings.ReplaceAll(s, ".", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return 0, fmt.Errorf("malformed timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	secPart, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	ms, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, err
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(secPart)*time.Second + time.Duration(ms)*time.Millisecond
	return total.Seconds(), nil
}

// Text joins a cue's wrapped lines back into a single string, stripping the
// "speaker: " prefix is the caller's concern, not this package's.
func (c Cue) Text() string {
	return strings.Join(c.Lines, " ")
}
