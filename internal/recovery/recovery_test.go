package recovery

import (
	"testing"
	"time"

	"github.com/lumenprima/mediaplane/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StuckThreshold != 2*time.Hour {
		t.Errorf("StuckThreshold = %s, want 2h", cfg.StuckThreshold)
	}
	if cfg.AbandonedThreshold != time.Hour {
		t.Errorf("AbandonedThreshold = %s, want 1h", cfg.AbandonedThreshold)
	}
	if cfg.LockTTL >= 10*time.Minute {
		t.Errorf("LockTTL = %s, want less than the 10m beat interval", cfg.LockTTL)
	}
}

func TestDeriveAggregateStatus(t *testing.T) {
	task := func(status model.TaskStatus) *model.Task { return &model.Task{Status: status} }

	tests := []struct {
		name   string
		tasks  []*model.Task
		want   model.FileStatus
		wantOK bool
	}{
		{
			name:   "empty",
			tasks:  nil,
			wantOK: false,
		},
		{
			name:   "active present stays processing",
			tasks:  []*model.Task{task(model.TaskStatusCompleted), task(model.TaskStatusInProgress)},
			want:   model.FileStatusProcessing,
			wantOK: true,
		},
		{
			name:   "completed with no active means completed",
			tasks:  []*model.Task{task(model.TaskStatusCompleted), task(model.TaskStatusFailed)},
			want:   model.FileStatusCompleted,
			wantOK: true,
		},
		{
			name:   "all failed means error",
			tasks:  []*model.Task{task(model.TaskStatusFailed), task(model.TaskStatusFailed)},
			want:   model.FileStatusError,
			wantOK: true,
		},
		{
			name:   "all pending means processing",
			tasks:  []*model.Task{task(model.TaskStatusPending)},
			want:   model.FileStatusProcessing,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := deriveAggregateStatus(tt.tasks)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}
