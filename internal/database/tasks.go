package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumenprima/mediaplane/internal/model"
)

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	MediaFileID *int64
	Status      *model.TaskStatus
	Type        *model.TaskType
	Limit       int
}

// CreateTask inserts a new task record in PENDING status with a
// generated UUID. Queue routing is resolved by internal/tasks, which
// writes it alongside the row via SetQueue.
func (db *DB) CreateTask(ctx context.Context, userID int64, mediaFileID *int64, typ model.TaskType) (*model.Task, error) {
	id := uuid.NewString()
	var t model.Task
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO tasks (id, user_id, media_file_id, type, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, user_id, media_file_id, type, status, progress, result, error_message,
			created_at, updated_at, completed_at`,
		id, userID, mediaFileID, string(typ),
	).Scan(&t.ID, &t.UserID, &t.MediaFileID, &t.Type, &t.Status, &t.Progress, &t.Result, &t.ErrorMessage,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetQueue records the resource-class queue chosen for a task.
func (db *DB) SetQueue(ctx context.Context, taskID string, q model.Queue) error {
	_, err := db.Pool.Exec(ctx, `UPDATE tasks SET queue = $1 WHERE id = $2`, string(q), taskID)
	return err
}

// GetTask fetches a task by ID.
func (db *DB) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, media_file_id, type, status, progress, result, error_message,
			created_at, updated_at, completed_at
		FROM tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.UserID, &t.MediaFileID, &t.Type, &t.Status, &t.Progress, &t.Result, &t.ErrorMessage,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (db *DB) ListTasks(ctx context.Context, filter TaskFilter) ([]*model.Task, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var typeArg, statusArg any
	if filter.Type != nil {
		typeArg = string(*filter.Type)
	}
	if filter.Status != nil {
		statusArg = string(*filter.Status)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, media_file_id, type, status, progress, result, error_message,
			created_at, updated_at, completed_at
		FROM tasks
		WHERE ($1::bigint IS NULL OR media_file_id = $1)
		  AND ($2::text IS NULL OR type = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC LIMIT $4`,
		filter.MediaFileID, typeArg, statusArg, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.MediaFileID, &t.Type, &t.Status, &t.Progress, &t.Result,
			&t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpdateProgress sets a task's progress; internal/tasks enforces
// monotonicity before calling this.
func (db *DB) UpdateProgress(ctx context.Context, id string, progress float64) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE tasks SET progress = $1, updated_at = now() WHERE id = $2`, progress, id)
	return err
}

// CompleteTask marks a task completed with its result payload.
func (db *DB) CompleteTask(ctx context.Context, id string, result []byte) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE tasks SET status = 'completed', progress = 1.0, result = $1, updated_at = now(), completed_at = now()
		WHERE id = $2`, result, id)
	return err
}

// FailTask marks a task failed with an error message.
func (db *DB) FailTask(ctx context.Context, id string, errMsg string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE tasks SET status = 'failed', error_message = $1, updated_at = now(), completed_at = now()
		WHERE id = $2`, errMsg, id)
	return err
}

// StartTask transitions a task from pending to in_progress.
func (db *DB) StartTask(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE tasks SET status = 'in_progress', updated_at = now() WHERE id = $1`, id)
	return err
}

// ListInProgressTasks returns every task still marked in_progress — the
// boot-time set the recovery subsystem reconciles against actual worker
// state.
func (db *DB) ListInProgressTasks(ctx context.Context) ([]*model.Task, error) {
	return db.ListTasks(ctx, TaskFilter{Status: statusPtr(model.TaskStatusInProgress), Limit: 10000})
}

func statusPtr(s model.TaskStatus) *model.TaskStatus { return &s }

// ListStuckTasks returns pending/in_progress tasks whose updated_at
// predates cutoff — the recovery subsystem's "stuck task" detection rule
// (, default stuck_threshold 2h).
func (db *DB) ListStuckTasks(ctx context.Context, cutoff time.Time) ([]*model.Task, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, media_file_id, type, status, progress, result, error_message,
			created_at, updated_at, completed_at
		FROM tasks
		WHERE status IN ('pending', 'in_progress') AND updated_at < $1
		ORDER BY updated_at ASC`, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// ListActiveTasksForFile returns every pending/in_progress task for a
// media file — used to decide whether a file still has live work before
// moving it to ERROR or PENDING.
func (db *DB) ListActiveTasksForFile(ctx context.Context, mediaFileID int64) ([]*model.Task, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, media_file_id, type, status, progress, result, error_message,
			created_at, updated_at, completed_at
		FROM tasks
		WHERE media_file_id = $1 AND status IN ('pending', 'in_progress')`, mediaFileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// ListTasksForFile returns every task recorded against a media file,
// newest first — the aggregate the "inconsistent file" detection rule
// re-derives a target status from.
func (db *DB) ListTasksForFile(ctx context.Context, mediaFileID int64) ([]*model.Task, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, media_file_id, type, status, progress, result, error_message,
			created_at, updated_at, completed_at
		FROM tasks
		WHERE media_file_id = $1
		ORDER BY created_at DESC`, mediaFileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*model.Task, error) {
	var out []*model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.MediaFileID, &t.Type, &t.Status, &t.Progress, &t.Result,
			&t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
