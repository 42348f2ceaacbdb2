// Package recovery is the Recovery Subsystem:
// periodic and boot-time reconciliation of Tasks and MediaFiles against
// the actual state of the queue. Detection is read-only; reconciliation
// drives the lifecycle.Machine the same way any other caller would.
//
// The distributed lock guarding overlapping passes is a bare Redis
// SET-NX-PX via go-redis/v9 — the client already wired for
// internal/notify — rather than a dedicated lock library; nothing in the
// retrieved corpus imports one (e.g. redsync), so this is the stdlib-of
// -the-driver case DESIGN.md documents rather than a hand-rolled
// reinvention of one.
package recovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/lifecycle"
	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/retrypolicy"
)

const (
	lockKey     = "controlplane:recovery:lock"
	lockMessage = "Task recovered after being stuck in processing"
	bootMessage = "Task interrupted by system restart"
)

// Config holds the recovery subsystem's timing thresholds as startup-time
// tunables. The retry-count ceiling that used to live here has moved to
// retrypolicy.Store, which can change it at runtime without a restart.
type Config struct {
	StuckThreshold     time.Duration
	AbandonedThreshold time.Duration
	LockTTL            time.Duration
}

// DefaultConfig mirrors documented defaults.
func DefaultConfig() Config {
	return Config{
		StuckThreshold:     2 * time.Hour,
		AbandonedThreshold: 1 * time.Hour,
		LockTTL:            9 * time.Minute, // beat interval (10m) minus a safety margin
	}
}

// ResubmitFunc resubmits a fresh transcription task for a media file. The
// recovery subsystem doesn't know how to build a TaskFunc itself, so the
// caller (cmd/controlplaned), which builds the transcription TaskFunc,
// wires in the real submitter at startup.
type ResubmitFunc func(ctx context.Context, userID, mediaFileID int64) error

// Recoverer runs detection + reconciliation passes.
type Recoverer struct {
	db         *database.DB
	redis      *redis.Client
	machine    *lifecycle.Machine
	resubmit   ResubmitFunc
	retryStore *retrypolicy.Store
	cfg        Config
	log        zerolog.Logger

	// Scrape-time gauges for internal/metrics.Collector — the recovery
	// pass runs on a beat tick, not an HTTP request, so it has nowhere
	// else to report what it did.
	lastPassUnix  atomic.Int64
	recoveredLast atomic.Int64
}

func NewRecoverer(db *database.DB, redisClient *redis.Client, machine *lifecycle.Machine, resubmit ResubmitFunc, retryStore *retrypolicy.Store, cfg Config, log zerolog.Logger) *Recoverer {
	return &Recoverer{db: db, redis: redisClient, machine: machine, resubmit: resubmit, retryStore: retryStore, cfg: cfg, log: log}
}

// Stats reports the most recent pass's timestamp and recovered-task count.
func (r *Recoverer) Stats() (lastPassUnix, recoveredLast int64) {
	return r.lastPassUnix.Load(), r.recoveredLast.Load()
}

// RunPass executes one reconciliation pass under the distributed lock,
// skipping entirely (not queueing) if another pass already holds it. The
// lock is best-effort: if Redis cannot be reached, the pass runs without it.
func (r *Recoverer) RunPass(ctx context.Context) error {
	acquired, err := r.redis.SetNX(ctx, lockKey, "1", r.cfg.LockTTL).Result()
	switch {
	case err != nil:
		r.log.Warn().Err(err).Msg("recovery: lock unavailable, running pass without it")
	case !acquired:
		r.log.Debug().Msg("recovery: pass skipped, lock held elsewhere")
		return nil
	default:
		defer r.redis.Del(context.Background(), lockKey)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.LockTTL)
	defer cancel()

	var recovered int64

	n, err := r.reconcileStuckTasks(ctx)
	recovered += n
	if err != nil {
		r.log.Error().Err(err).Msg("recovery: stuck task pass failed")
	}
	n, err = r.reconcileStuckWithoutWorker(ctx)
	recovered += n
	if err != nil {
		r.log.Error().Err(err).Msg("recovery: stuck-without-worker pass failed")
	}
	n, err = r.reconcileInconsistentFiles(ctx)
	recovered += n
	if err != nil {
		r.log.Error().Err(err).Msg("recovery: inconsistent file pass failed")
	}
	n, err = r.reconcileAbandonedFiles(ctx)
	recovered += n
	if err != nil {
		r.log.Error().Err(err).Msg("recovery: abandoned file pass failed")
	}

	r.lastPassUnix.Store(time.Now().Unix())
	r.recoveredLast.Store(recovered)
	return nil
}

// BootReconcile runs once at daemon startup. Every task still recorded as
// pending/in_progress from before this process existed has, by
// definition, no live worker behind it — the "orphaned task" rule is a
// boot-only check for exactly that reason.
func (r *Recoverer) BootReconcile(ctx context.Context) error {
	tasks, err := r.db.ListInProgressTasks(ctx)
	if err != nil {
		return fmt.Errorf("recovery: boot: list in-progress tasks: %w", err)
	}
	pendingStatus := model.TaskStatusPending
	pending, err := r.db.ListTasks(ctx, database.TaskFilter{Status: &pendingStatus, Limit: 10000})
	if err != nil {
		return fmt.Errorf("recovery: boot: list pending tasks: %w", err)
	}
	tasks = append(tasks, pending...)
	for _, t := range tasks {
		if err := r.db.FailTask(ctx, t.ID, bootMessage); err != nil {
			r.log.Error().Err(err).Str("task_id", t.ID).Msg("recovery: boot: failed to fail orphaned task")
			continue
		}
		if t.Type == model.TaskTypeTranscription && t.MediaFileID != nil {
			r.failFileIfNoActiveTasks(ctx, *t.MediaFileID, bootMessage)
		}
	}
	return nil
}

// reconcileStuckTasks implements the "stuck task" rule: pending/in_progress
// tasks whose updated_at predates stuck_threshold.
func (r *Recoverer) reconcileStuckTasks(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.cfg.StuckThreshold)
	tasks, err := r.db.ListStuckTasks(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, t := range tasks {
		if err := r.db.FailTask(ctx, t.ID, lockMessage); err != nil {
			r.log.Error().Err(err).Str("task_id", t.ID).Msg("recovery: failed to fail stuck task")
			continue
		}
		n++
		if t.MediaFileID != nil {
			r.failFileIfNoActiveTasks(ctx, *t.MediaFileID, lockMessage)
		}
	}
	return n, nil
}

// failFileIfNoActiveTasks moves a file to ERROR only if it has no other
// active task, matching "if no other active Tasks for the file, move file
// to ERROR".
func (r *Recoverer) failFileIfNoActiveTasks(ctx context.Context, fileID int64, msg string) {
	active, err := r.db.ListActiveTasksForFile(ctx, fileID)
	if err != nil {
		r.log.Error().Err(err).Int64("media_file_id", fileID).Msg("recovery: failed to list active tasks")
		return
	}
	if len(active) > 0 {
		return
	}
	if _, err := r.machine.Transition(ctx, fileID, lifecycle.TriggerErr, msg); err != nil {
		r.log.Debug().Err(err).Int64("media_file_id", fileID).Msg("recovery: no ERROR transition available")
	}
}

// reconcileStuckWithoutWorker implements the "stuck-without-worker file"
// rule and its reconciliation, including the retry-count-driven escalation
// to ORPHANED once retryStore.ShouldRetry says no more attempts are due.
func (r *Recoverer) reconcileStuckWithoutWorker(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.cfg.StuckThreshold)
	candidates, err := r.db.ListByStatusOlderThan(ctx, model.FileStatusProcessing, cutoff)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, mf := range candidates {
		active, err := r.db.ListActiveTasksForFile(ctx, mf.ID)
		if err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to list active tasks")
			continue
		}
		if len(active) > 0 {
			continue // a live task still exists; not actually stuck-without-worker
		}

		// Reset PROCESSING -> ERROR -> PENDING, the only path the
		// lifecycle table permits back to PENDING.
		if _, err := r.machine.Transition(ctx, mf.ID, lifecycle.TriggerErr, lockMessage); err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: stuck-without-worker: ERROR transition failed")
			continue
		}
		if _, err := r.machine.Transition(ctx, mf.ID, lifecycle.TriggerRetry, ""); err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: stuck-without-worker: retry transition failed")
			continue
		}

		attempts, err := r.db.IncrementRecoveryAttempts(ctx, mf.ID)
		if err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to increment recovery attempts")
			continue
		}

		if !r.retryStore.ShouldRetry(int(attempts)) {
			if _, err := r.machine.Transition(ctx, mf.ID, lifecycle.TriggerAbandon, ""); err != nil {
				r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: abandon transition failed")
				continue
			}
			if err := r.db.MarkForceDeleteEligible(ctx, mf.ID); err != nil {
				r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to flag force_delete_eligible")
			}
			continue
		}

		n++
		if r.resubmit != nil {
			if err := r.resubmit(ctx, mf.UserID, mf.ID); err != nil {
				r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to resubmit transcription")
			}
		}
	}
	return n, nil
}

// reconcileInconsistentFiles re-derives PROCESSING files' target status
// from their Task aggregates ("inconsistent file" rule).
func (r *Recoverer) reconcileInconsistentFiles(ctx context.Context) (int64, error) {
	files, err := r.db.ListMediaFiles(ctx, database.MediaFileFilter{
		Status: statusPtr(model.FileStatusProcessing),
		Limit:  10000,
	})
	if err != nil {
		return 0, err
	}

	var n int64
	for _, mf := range files {
		tasks, err := r.db.ListTasksForFile(ctx, mf.ID)
		if err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to list tasks for file")
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		target, ok := deriveAggregateStatus(tasks)
		if !ok || target == mf.Status {
			continue
		}

		switch target {
		case model.FileStatusCompleted:
			r.machine.Transition(ctx, mf.ID, lifecycle.TriggerOK, "") //nolint:errcheck
			n++
		case model.FileStatusError:
			r.machine.Transition(ctx, mf.ID, lifecycle.TriggerErr, "Inconsistent file reconciled to ERROR") //nolint:errcheck
			n++
		}
	}
	return n, nil
}

// deriveAggregateStatus implements inconsistent-file
// re-derivation rule in isolation from the database: any completed task
// with nothing still active means COMPLETED; all-failed with nothing
// active means ERROR; anything still active means no change is needed.
// The bool return is false when there's nothing to derive (empty input).
func deriveAggregateStatus(tasks []*model.Task) (model.FileStatus, bool) {
	if len(tasks) == 0 {
		return "", false
	}
	var active, completed, failed int
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusPending, model.TaskStatusInProgress:
			active++
		case model.TaskStatusCompleted:
			completed++
		case model.TaskStatusFailed:
			failed++
		}
	}
	if active > 0 {
		return model.FileStatusProcessing, true
	}
	if completed > 0 {
		return model.FileStatusCompleted, true
	}
	if failed == len(tasks) {
		return model.FileStatusError, true
	}
	return "", false
}

// reconcileAbandonedFiles implements the "abandoned file" rule: PROCESSING
// files uploaded long enough ago with no active tasks at all.
func (r *Recoverer) reconcileAbandonedFiles(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.cfg.AbandonedThreshold)
	candidates, err := r.db.ListAbandonedCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, mf := range candidates {
		active, err := r.db.ListActiveTasksForFile(ctx, mf.ID)
		if err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to list active tasks")
			continue
		}
		if len(active) > 0 {
			continue
		}

		if _, err := r.machine.Transition(ctx, mf.ID, lifecycle.TriggerErr, "Abandoned file reset for retry"); err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: abandoned file: ERROR transition failed")
			continue
		}
		if _, err := r.machine.Transition(ctx, mf.ID, lifecycle.TriggerRetry, ""); err != nil {
			r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: abandoned file: retry transition failed")
			continue
		}
		n++
		if r.resubmit != nil {
			if err := r.resubmit(ctx, mf.UserID, mf.ID); err != nil {
				r.log.Error().Err(err).Int64("media_file_id", mf.ID).Msg("recovery: failed to resubmit transcription")
			}
		}
	}
	return n, nil
}

func statusPtr(s model.FileStatus) *model.FileStatus { return &s }
