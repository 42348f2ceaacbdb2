package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Float comparisons here need tolerance-aware assertions, which is the
// one place in this codebase that keeps stretchr/testify/require as a
// direct dependency rather than plain stdlib testing (see DESIGN.md).
func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		want    float64
		wantErr bool
	}{
		{"identical_vectors", []float64{1, 0, 0}, []float64{1, 0, 0}, 1.0, false},
		{"orthogonal_vectors", []float64{1, 0}, []float64{0, 1}, 0.0, false},
		{"opposite_vectors", []float64{1, 0}, []float64{-1, 0}, -1.0, false},
		{"scaled_vectors_match", []float64{2, 2}, []float64{1, 1}, 1.0, false},
		{"dimension_mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0, true},
		{"zero_vector", []float64{0, 0}, []float64{1, 1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTopK(t *testing.T) {
	candidates := []Document{
		{DocumentID: 1, Vector: []float64{1, 0, 0}},
		{DocumentID: 2, Vector: []float64{0.9, 0.1, 0}},
		{DocumentID: 3, Vector: []float64{0, 1, 0}},
		{DocumentID: 4, Vector: []float64{-1, 0, 0}},
	}

	matches, err := TopK(candidates, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, int64(1), matches[0].DocumentID)
	require.InDelta(t, 1.0, matches[0].Score, 1e-9)
	require.Equal(t, int64(2), matches[1].DocumentID)
}

func TestTopKZeroMeansAll(t *testing.T) {
	candidates := []Document{
		{DocumentID: 1, Vector: []float64{1, 0}},
		{DocumentID: 2, Vector: []float64{0, 1}},
	}
	matches, err := TopK(candidates, []float64{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}
