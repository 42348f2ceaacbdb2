// Package waveform downsamples raw PCM audio samples into the
// resolution-keyed RMS buckets MediaFile.waveform_data stores. Like
// subtitle, it is a pure, I/O-contract-only boundary: decoding
// the source media into PCM is a non-goal left to an external extraction
// step, and this package only ever sees normalized float32 samples already
// in hand.
package waveform

import (
	"fmt"
	"math"
)

// Resolutions are the fixed sample-count buckets the original service
// generates per file, keyed the same way MediaFile.waveform_data stores
// them.
var Resolutions = map[string]int{
	"small":  500,
	"medium": 1000,
	"large":  2000,
}

// Data is one resolution's downsampled waveform.
type Data struct {
	Resolution    string
	Samples       []int // normalized to 0-255 for visualization
	Duration      float64
	SecondsPerBin float64
	SourceSampleN int
}

// Generate downsamples normalized PCM samples (range [-1, 1], as produced
// by a 16-bit PCM-to-float conversion) into every entry in Resolutions.
// sampleRate is the PCM sample rate the samples were extracted at; it is
// used only to report Duration.
func Generate(samples []float32, sampleRate int) (map[string]Data, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("waveform: no samples to downsample")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("waveform: invalid sample rate %d", sampleRate)
	}

	duration := float64(len(samples)) / float64(sampleRate)
	out := make(map[string]Data, len(Resolutions))
	for name, target := range Resolutions {
		out[name] = downsample(samples, target, duration)
	}
	return out, nil
}

// downsample computes target RMS buckets over samples, then normalizes the
// result into 0-255 for display.
func downsample(samples []float32, target int, duration float64) Data {
	rms := make([]float64, target)
	total := len(samples)
	chunkSize := float64(total) / float64(target)

	for i := 0; i < target; i++ {
		start := int(float64(i) * chunkSize)
		end := int(float64(i+1) * chunkSize)
		if end > total {
			end = total
		}
		if start >= total || start >= end {
			rms[i] = 0
			continue
		}
		rms[i] = chunkRMS(samples[start:end])
	}

	return Data{
		Resolution:    fmt.Sprintf("waveform_%d", target),
		Samples:       normalize(rms),
		Duration:      duration,
		SecondsPerBin: duration / float64(target),
		SourceSampleN: total,
	}
}

func chunkRMS(chunk []float32) float64 {
	var sumSquares float64
	for _, v := range chunk {
		f := float64(v)
		sumSquares += f * f
	}
	return math.Sqrt(sumSquares / float64(len(chunk)))
}

// normalize scales a slice of non-negative magnitudes to the 0-255 range
// used by the visualization layer, preserving relative proportions.
func normalize(vals []float64) []int {
	var max float64
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	out := make([]int, len(vals))
	if max == 0 {
		return out
	}
	for i, v := range vals {
		out[i] = int(v / max * 255)
	}
	return out
}
