package errors

import (
	"errors"
	"testing"

	"github.com/lumenprima/mediaplane/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorCategory
	}{
		{"no_speech", errors.New("no speech detected in audio"), model.ErrNoSpeech},
		{"corrupt_file", errors.New("invalid data found when processing input"), model.ErrFileQuality},
		{"codec_issue", errors.New("unsupported codec: opus"), model.ErrFormatIssue},
		{"network_timeout", errors.New("dial tcp: i/o timeout"), model.ErrNetworkError},
		{"permission", errors.New("403 access denied"), model.ErrPermissionError},
		{"server_error", errors.New("internal server error from provider"), model.ErrProcessingError},
		{"unrecognized", errors.New("something weird happened"), model.ErrUnknown},
		{"nil_error", nil, model.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Name != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got.Name, tt.want)
			}
		})
	}
}

func TestRetriableCategories(t *testing.T) {
	retriable := map[model.ErrorCategory]bool{
		model.ErrFileQuality:     false,
		model.ErrNoSpeech:        false,
		model.ErrFormatIssue:     false,
		model.ErrNetworkError:    true,
		model.ErrPermissionError: false,
		model.ErrProcessingError: true,
		model.ErrUnknown:         true,
	}
	for cat, want := range retriable {
		if got := Lookup(cat).Retriable; got != want {
			t.Errorf("Lookup(%s).Retriable = %v, want %v", cat, got, want)
		}
	}
}
