package waveform

import "testing"

func TestGenerateRejectsEmptySamples(t *testing.T) {
	if _, err := Generate(nil, 22050); err == nil {
		t.Error("expected error for empty samples")
	}
}

func TestGenerateRejectsInvalidSampleRate(t *testing.T) {
	if _, err := Generate([]float32{0.1, 0.2}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestGenerateProducesAllResolutions(t *testing.T) {
	samples := make([]float32, 22050*2) // 2 seconds of silence-ish data
	for i := range samples {
		samples[i] = 0.01
	}
	out, err := Generate(samples, 22050)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(out) != len(Resolutions) {
		t.Fatalf("expected %d resolutions, got %d", len(Resolutions), len(out))
	}
	for name, target := range Resolutions {
		d, ok := out[name]
		if !ok {
			t.Fatalf("missing resolution %q", name)
		}
		if len(d.Samples) != target {
			t.Errorf("resolution %q: got %d samples, want %d", name, len(d.Samples), target)
		}
		if d.Duration < 1.9 || d.Duration > 2.1 {
			t.Errorf("resolution %q: duration = %v, want ~2.0", name, d.Duration)
		}
	}
}

func TestDownsampleNormalizesToByteRange(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1.0
		} else {
			samples[i] = -1.0
		}
	}
	d := downsample(samples, 10, 1.0)
	var maxVal int
	for _, v := range d.Samples {
		if v < 0 || v > 255 {
			t.Fatalf("sample out of byte range: %d", v)
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal != 255 {
		t.Errorf("expected peak bucket to normalize to 255, got %d", maxVal)
	}
}

func TestDownsampleAllZeroStaysZero(t *testing.T) {
	samples := make([]float32, 100)
	d := downsample(samples, 5, 1.0)
	for _, v := range d.Samples {
		if v != 0 {
			t.Errorf("expected all-zero input to produce all-zero output, got %v", d.Samples)
		}
	}
}

func TestChunkRMS(t *testing.T) {
	chunk := []float32{1, -1, 1, -1}
	got := chunkRMS(chunk)
	if got < 0.99 || got > 1.01 {
		t.Errorf("chunkRMS = %v, want ~1.0", got)
	}
}
