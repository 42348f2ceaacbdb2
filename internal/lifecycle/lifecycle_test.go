package lifecycle

import (
	"testing"

	"github.com/lumenprima/mediaplane/internal/model"
)

func TestCanTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    model.FileStatus
		trigger Trigger
		wantTo  model.FileStatus
		wantOK  bool
	}{
		{"pending start", model.FileStatusPending, TriggerStart, model.FileStatusProcessing, true},
		{"processing ok", model.FileStatusProcessing, TriggerOK, model.FileStatusCompleted, true},
		{"processing err", model.FileStatusProcessing, TriggerErr, model.FileStatusError, true},
		{"processing cancel", model.FileStatusProcessing, TriggerCancel, model.FileStatusCancelling, true},
		{"cancelling done", model.FileStatusCancelling, TriggerCancelDone, model.FileStatusCancelled, true},
		{"error retry", model.FileStatusError, TriggerRetry, model.FileStatusPending, true},
		{"orphaned retry", model.FileStatusOrphaned, TriggerRetry, model.FileStatusPending, true},
		{"pending abandon", model.FileStatusPending, TriggerAbandon, model.FileStatusOrphaned, true},
		{"processing abandon", model.FileStatusProcessing, TriggerAbandon, model.FileStatusOrphaned, true},
		{"error abandon", model.FileStatusError, TriggerAbandon, model.FileStatusOrphaned, true},
		{"pending cannot ok", model.FileStatusPending, TriggerOK, "", false},
		{"completed cannot retry", model.FileStatusCompleted, TriggerRetry, "", false},
		{"cancelled cannot abandon", model.FileStatusCancelled, TriggerAbandon, "", false},
		{"orphaned cannot abandon", model.FileStatusOrphaned, TriggerAbandon, "", false},
		{"completed cannot abandon", model.FileStatusCompleted, TriggerAbandon, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, ok := CanTransition(tt.from, tt.trigger)
			if ok != tt.wantOK || to != tt.wantTo {
				t.Errorf("CanTransition(%s, %s) = (%s, %v), want (%s, %v)",
					tt.from, tt.trigger, to, ok, tt.wantTo, tt.wantOK)
			}
		})
	}
}

// TestCancellationMonotonicity is P7: once a file enters
// CANCELLING, no trigger may move it anywhere except CANCELLED.
func TestCancellationMonotonicity(t *testing.T) {
	allTriggers := []Trigger{
		TriggerStart, TriggerOK, TriggerErr, TriggerCancel,
		TriggerCancelDone, TriggerRetry, TriggerAbandon,
	}
	for _, trig := range allTriggers {
		to, ok := CanTransition(model.FileStatusCancelling, trig)
		if trig == TriggerCancelDone {
			if !ok || to != model.FileStatusCancelled {
				t.Errorf("CancelDone from CANCELLING should reach CANCELLED, got (%s, %v)", to, ok)
			}
			continue
		}
		if ok {
			t.Errorf("trigger %s should not be permitted from CANCELLING, got %s", trig, to)
		}
	}
}

func TestAbandonExcludesTerminalAndCancelling(t *testing.T) {
	excluded := []model.FileStatus{
		model.FileStatusCompleted,
		model.FileStatusCancelled,
		model.FileStatusCancelling,
		model.FileStatusOrphaned,
	}
	for _, from := range excluded {
		if _, ok := CanTransition(from, TriggerAbandon); ok {
			t.Errorf("abandon should not be permitted from %s", from)
		}
	}
}
