// Package tasks is the Task Graph Engine:
// submit/update/chain/fan_out over the Task Record Store and Queue
// Router, with progress monotonicity and the stage graph that follows a
// transcription task to completion.
//
// Fan-out supervision uses golang.org/x/sync/errgroup, but deliberately
// without errgroup.WithContext's first-error cancellation: a failed
// child (other than transcription) must not block or cancel its
// siblings.
package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/metrics"
	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/notify"
	"github.com/lumenprima/mediaplane/internal/queue"
)

// TaskFunc is the work a submitted task actually performs. It returns a
// JSON result payload and an Outcome rather than a bare error, so the
// engine never has to guess a failure's error category.
type TaskFunc func(ctx context.Context) ([]byte, model.Outcome)

// ChainSpec describes one fan-out child: the task type to submit and the
// work it runs.
type ChainSpec struct {
	Type model.TaskType
	Fn   TaskFunc
}

// StageGraphFunc builds the fan-out children for a media file whose
// transcription task has just completed.
type StageGraphFunc func(ctx context.Context, userID, mediaFileID int64) []ChainSpec

// Engine wires the Task Record Store, Queue Router, and Notification Bus
// together into submit/update/chain/fan_out.
type Engine struct {
	db         *database.DB
	router     *queue.Router
	bus        notify.Bus
	log        zerolog.Logger
	stageGraph StageGraphFunc
}

func NewEngine(db *database.DB, router *queue.Router, bus notify.Bus, log zerolog.Logger) *Engine {
	return &Engine{db: db, router: router, bus: bus, log: log}
}

// SetStageGraph wires the new-media-file stage graph: once any
// transcription task reaches completed, its children are built by fn and
// dispatched through FanOut. Called once at startup, before any task is
// submitted.
func (e *Engine) SetStageGraph(fn StageGraphFunc) {
	e.stageGraph = fn
}

// Submit persists a Task row in pending status, selects its queue from
// the static routing table, and enqueues it. Returns an error tagged
// QUEUE_UNAVAILABLE-equivalent if either the persist or the enqueue
// fails.
func (e *Engine) Submit(ctx context.Context, userID int64, mediaFileID *int64, typ model.TaskType, fn TaskFunc) (*model.Task, error) {
	if !IsKnownType(typ) {
		return nil, fmt.Errorf("tasks: %q is not a registered task type", typ)
	}

	t, err := e.db.CreateTask(ctx, userID, mediaFileID, typ)
	if err != nil {
		return nil, fmt.Errorf("tasks: submit: queue_unavailable: %w", err)
	}

	q, ok := queue.RouteFor(typ)
	if !ok {
		return nil, fmt.Errorf("tasks: submit: no route for %q", typ)
	}
	if err := e.db.SetQueue(ctx, t.ID, q); err != nil {
		e.log.Warn().Err(err).Str("task_id", t.ID).Msg("tasks: failed to record queue assignment")
	}

	job := queue.Job{
		TaskID: t.ID,
		Run:    func(ctx context.Context) error { return e.run(ctx, t, fn) },
	}
	if err := e.router.Dispatch(typ, job); err != nil {
		_ = e.db.FailTask(ctx, t.ID, err.Error())
		return nil, fmt.Errorf("tasks: submit: queue_unavailable: %w", err)
	}

	if e.bus != nil && mediaFileID != nil {
		notify.Notify(ctx, e.bus, userID, eventTypeFor(typ), t.ID, map[string]any{
			"status":   string(model.TaskStatusPending),
			"task_id":  t.ID,
			"progress": 0,
		})
	}

	metrics.TasksSubmittedTotal.WithLabelValues(string(typ)).Inc()
	return t, nil
}

func (e *Engine) run(ctx context.Context, t *model.Task, fn TaskFunc) error {
	if err := e.db.StartTask(ctx, t.ID); err != nil {
		e.log.Error().Err(err).Str("task_id", t.ID).Msg("tasks: failed to mark task in_progress")
	}
	e.publish(ctx, t, string(model.TaskStatusInProgress), 0, "")

	result, outcome := fn(ctx)

	if outcome.IsOk() {
		if err := e.db.CompleteTask(ctx, t.ID, result); err != nil {
			e.log.Error().Err(err).Str("task_id", t.ID).Msg("tasks: failed to mark task completed")
			return err
		}
		e.publish(ctx, t, string(model.TaskStatusCompleted), 1.0, "")
		metrics.TasksCompletedTotal.WithLabelValues(string(t.Type), "ok").Inc()

		if t.Type == model.TaskTypeTranscription && t.MediaFileID != nil && e.stageGraph != nil {
			specs := e.stageGraph(ctx, t.UserID, *t.MediaFileID)
			if len(specs) > 0 {
				if err := e.FanOut(ctx, t.ID, specs); err != nil {
					e.log.Warn().Err(err).Str("task_id", t.ID).Msg("tasks: fan-out submission had errors")
				}
			}
		}
		return nil
	}

	cerr := outcome.Error()
	if err := e.db.FailTask(ctx, t.ID, cerr.Message); err != nil {
		e.log.Error().Err(err).Str("task_id", t.ID).Msg("tasks: failed to mark task failed")
	}
	e.publish(ctx, t, string(model.TaskStatusFailed), 0, cerr.Message)
	metrics.TasksCompletedTotal.WithLabelValues(string(t.Type), "err").Inc()

	// Transcription failure moves the file to ERROR; every other child's
	// failure records a failed Task row only.
	if t.Type == model.TaskTypeTranscription && t.MediaFileID != nil {
		if err := e.db.UpdateStatus(ctx, *t.MediaFileID, model.FileStatusError, cerr.Message); err != nil {
			e.log.Error().Err(err).Int64("media_file_id", *t.MediaFileID).Msg("tasks: failed to move file to ERROR")
		}
	}

	return cerr
}

// UpdateProgress sets a task's progress, rejecting regressions unless
// the task has been re-entered from pending (a retry) — 's
// monotonicity invariant.
func (e *Engine) UpdateProgress(ctx context.Context, taskID string, progress float64) error {
	current, err := e.db.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if progress < current.Progress && current.Status != model.TaskStatusPending {
		return fmt.Errorf("tasks: progress regression on %s (%.3f -> %.3f)", taskID, current.Progress, progress)
	}
	if err := e.db.UpdateProgress(ctx, taskID, progress); err != nil {
		return err
	}
	e.publish(ctx, current, string(model.TaskStatusInProgress), progress, "")
	return nil
}

// Chain submits typ only if parent's terminal state is completed; on
// failed, typ is skipped and parent's error is returned to the caller
// instead.
func (e *Engine) Chain(ctx context.Context, parentID string, typ model.TaskType, fn TaskFunc) (*model.Task, error) {
	parent, err := e.db.GetTask(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Status == model.TaskStatusFailed {
		return nil, fmt.Errorf("tasks: chain: parent %s failed: %s", parentID, parent.ErrorMessage)
	}
	if parent.Status != model.TaskStatusCompleted {
		return nil, fmt.Errorf("tasks: chain: parent %s is not terminal (status=%s)", parentID, parent.Status)
	}
	return e.Submit(ctx, parent.UserID, parent.MediaFileID, typ, fn)
}

// FanOut submits every child after parent completion, dispatched in
// parallel with no ordering guarantee between them. A submission
// failure for one child does not prevent the others from being
// submitted; the first submission error (errgroup.Group.Wait) is returned.
func (e *Engine) FanOut(ctx context.Context, parentID string, specs []ChainSpec) error {
	parent, err := e.db.GetTask(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Status != model.TaskStatusCompleted {
		return fmt.Errorf("tasks: fan_out: parent %s is not completed (status=%s)", parentID, parent.Status)
	}

	var g errgroup.Group
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			_, err := e.Submit(ctx, parent.UserID, parent.MediaFileID, spec.Type, spec.Fn)
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) publish(ctx context.Context, t *model.Task, status string, progress float64, message string) {
	if e.bus == nil || t.MediaFileID == nil {
		return
	}
	typ := eventTypeFor(t.Type)
	fields := map[string]any{
		"status":   status,
		"task_id":  t.ID,
		"progress": progress,
	}
	if message != "" {
		fields["message"] = message
	} else {
		fields["message"] = notify.ProgressMessage(typ, progress)
	}
	notify.Notify(ctx, e.bus, t.UserID, typ, t.ID, fields)
}

func eventTypeFor(t model.TaskType) notify.EventType {
	switch t {
	case model.TaskTypeTranscription:
		return notify.EventTranscriptionStatus
	case model.TaskTypeSummarization:
		return notify.EventSummarizationStatus
	case model.TaskTypeTopicExtraction:
		return notify.EventTopicExtractionStatus
	case model.TaskTypeYoutubeDownload:
		return notify.EventYoutubeProcessingStatus
	case model.TaskTypeSpeakerIdentification:
		return notify.EventSpeakerMatch
	default:
		return notify.EventDownloadProgress
	}
}
