package tasks

import (
	"testing"

	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/notify"
)

func TestIsKnownType(t *testing.T) {
	tests := []struct {
		typ  model.TaskType
		want bool
	}{
		{model.TaskTypeTranscription, true},
		{model.TaskTypeRecoveryPass, true},
		{model.TaskType("made_up"), false},
	}
	for _, tt := range tests {
		if got := IsKnownType(tt.typ); got != tt.want {
			t.Errorf("IsKnownType(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestEventTypeFor(t *testing.T) {
	tests := []struct {
		typ  model.TaskType
		want notify.EventType
	}{
		{model.TaskTypeTranscription, notify.EventTranscriptionStatus},
		{model.TaskTypeSummarization, notify.EventSummarizationStatus},
		{model.TaskTypeTopicExtraction, notify.EventTopicExtractionStatus},
		{model.TaskTypeYoutubeDownload, notify.EventYoutubeProcessingStatus},
		{model.TaskTypeSpeakerIdentification, notify.EventSpeakerMatch},
		{model.TaskTypeWaveform, notify.EventDownloadProgress},
	}
	for _, tt := range tests {
		if got := eventTypeFor(tt.typ); got != tt.want {
			t.Errorf("eventTypeFor(%s) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}
