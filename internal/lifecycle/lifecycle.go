// Package lifecycle is the Media File Lifecycle State Machine: the
// transition table governing PENDING → PROCESSING →
// {COMPLETED, ERROR, CANCELLED, ORPHANED}, and the side effects each
// transition carries on the Relational Store.
//
// Shaped like internal/tasks.Engine — a thin struct wrapping
// *database.DB with one method per state-machine concern — rather than
// a generic FSM library; a seven-state, eight-edge table is plain data.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/model"
)

// Trigger names the event driving a transition.
type Trigger string

const (
	TriggerStart      Trigger = "start"
	TriggerOK         Trigger = "ok"
	TriggerErr        Trigger = "err"
	TriggerCancel     Trigger = "cancel"
	TriggerCancelDone Trigger = "cancel_done"
	TriggerRetry      Trigger = "retry"
	TriggerAbandon    Trigger = "abandon"
)

// edges is the closed transition table. Abandon is handled separately
// since it applies from (almost) any state rather than one fixed source.
var edges = map[model.FileStatus]map[Trigger]model.FileStatus{
	model.FileStatusPending: {
		TriggerStart: model.FileStatusProcessing,
	},
	model.FileStatusProcessing: {
		TriggerOK:     model.FileStatusCompleted,
		TriggerErr:    model.FileStatusError,
		TriggerCancel: model.FileStatusCancelling,
	},
	model.FileStatusCancelling: {
		TriggerCancelDone: model.FileStatusCancelled,
	},
	model.FileStatusError: {
		TriggerRetry: model.FileStatusPending,
	},
	model.FileStatusOrphaned: {
		TriggerRetry: model.FileStatusPending,
	},
}

// abandonableFrom is the set of states the recovery subsystem may abandon
// out of. CANCELLING is excluded deliberately: once a file enters
// CANCELLING no trigger may move it anywhere but CANCELLED. Terminal
// states (COMPLETED, CANCELLED) and ORPHANED itself are excluded as
// no-ops.
var abandonableFrom = map[model.FileStatus]bool{
	model.FileStatusPending:    true,
	model.FileStatusProcessing: true,
	model.FileStatusError:      true,
}

// CanTransition reports the destination state for (from, trigger), or
// false if the table has no such edge. Pure and DB-free so it's easy to
// exhaustively test every (state, trigger) pair in isolation.
func CanTransition(from model.FileStatus, trigger Trigger) (model.FileStatus, bool) {
	if trigger == TriggerAbandon {
		if abandonableFrom[from] {
			return model.FileStatusOrphaned, true
		}
		return "", false
	}
	to, ok := edges[from][trigger]
	return to, ok
}

// DefaultOrphanThreshold is how long a file must sit in ORPHANED before
// the global sweep (SweepOrphanThreshold) flips force_delete_eligible.
const DefaultOrphanThreshold = 12 * time.Hour

// Machine applies transitions against the Relational Store, including the
// side effects each destination state carries.
type Machine struct {
	db              *database.DB
	log             zerolog.Logger
	orphanThreshold time.Duration
}

func NewMachine(db *database.DB, log zerolog.Logger, orphanThreshold time.Duration) *Machine {
	if orphanThreshold <= 0 {
		orphanThreshold = DefaultOrphanThreshold
	}
	return &Machine{db: db, log: log, orphanThreshold: orphanThreshold}
}

// Transition drives fileID from its current status along trigger,
// rejecting the call if the edge doesn't exist in the table (or is
// blocked by the CANCELLING lockout), then applies the matching
// side effects. errMsg is only meaningful for TriggerErr.
func (m *Machine) Transition(ctx context.Context, fileID int64, trigger Trigger, errMsg string) (*model.MediaFile, error) {
	mf, err := m.db.GetMediaFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load media file %d: %w", fileID, err)
	}

	to, ok := CanTransition(mf.Status, trigger)
	if !ok {
		return nil, fmt.Errorf("lifecycle: no transition %s from %s on file %d", trigger, mf.Status, fileID)
	}

	// COMPLETED, CANCELLED, and entry into PROCESSING all clear any prior
	// error text; only TriggerErr sets one.
	msg := errMsg
	if trigger != TriggerErr {
		msg = ""
	}

	if err := m.db.UpdateStatus(ctx, fileID, to, msg); err != nil {
		return nil, fmt.Errorf("lifecycle: update status to %s on file %d: %w", to, fileID, err)
	}

	if to == model.FileStatusOrphaned {
		if err := m.db.TouchLastRecoveryAttempt(ctx, fileID); err != nil {
			m.log.Error().Err(err).Int64("media_file_id", fileID).Msg("lifecycle: failed to stamp last_recovery_attempt")
		}
	}

	m.log.Info().
		Int64("media_file_id", fileID).
		Str("from", string(mf.Status)).
		Str("to", string(to)).
		Str("trigger", string(trigger)).
		Msg("lifecycle: transition applied")

	mf.Status = to
	return mf, nil
}

// SweepOrphanThreshold flips force_delete_eligible on every ORPHANED file
// that has sat past orphanThreshold since its last recovery attempt
// without already being flagged. Distinct from the recovery subsystem's
// own attempt-count-based flag, which sets force_delete_eligible
// immediately at orphaning time instead of waiting out this sweep.
func (m *Machine) SweepOrphanThreshold(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.orphanThreshold)
	candidates, err := m.db.ListOrphanedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: list orphaned older than %s: %w", cutoff, err)
	}

	flipped := 0
	for _, mf := range candidates {
		if err := m.db.MarkForceDeleteEligible(ctx, mf.ID); err != nil {
			m.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("lifecycle: failed to flip force_delete_eligible")
			continue
		}
		flipped++
	}
	return flipped, nil
}
