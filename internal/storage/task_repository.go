package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
)

// TaskRepository persists execution tasks.
type TaskRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db dbtx, log zerolog.Logger) *TaskRepository {
	return &TaskRepository{
		db:  db,
		log: log.With().Str("repository", "tasks").Logger(),
	}
}

const taskColumns = `id, request_id, sequence, mode, lifecycle_state,
	scheduled_for, started_at, completed_at, provider_job_id, cli_exit_code,
	stdout_path, stderr_path, artifact_path, attempt, max_attempts, error,
	metadata, created_at, updated_at`

// Create inserts a new execution task row.
func (r *TaskRepository) Create(ctx context.Context, task *domain.ExecutionTask) error {
	task.NormalizeTimes()
	metadata, err := marshalMap(task.Metadata)
	if err != nil {
		return err
	}
	now := domain.UTCNow()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(), task.RequestID.String(), task.Sequence,
		string(task.Mode), string(task.State), unixOrNil(task.ScheduledFor),
		unixOrNil(task.StartedAt), unixOrNil(task.CompletedAt),
		task.ProviderJobID, nilable(task.CliExitCode), task.StdoutPath,
		task.StderrPath, task.ArtifactPath, task.Attempt, task.MaxAttempts,
		task.Error, metadata, task.CreatedAt.Unix(), task.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing task.
func (r *TaskRepository) Update(ctx context.Context, task *domain.ExecutionTask) error {
	task.NormalizeTimes()
	metadata, err := marshalMap(task.Metadata)
	if err != nil {
		return err
	}
	task.UpdatedAt = domain.UTCNow()

	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_tasks SET
			lifecycle_state = ?, scheduled_for = ?, started_at = ?,
			completed_at = ?, provider_job_id = ?, cli_exit_code = ?,
			stdout_path = ?, stderr_path = ?, artifact_path = ?,
			attempt = ?, error = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		string(task.State), unixOrNil(task.ScheduledFor),
		unixOrNil(task.StartedAt), unixOrNil(task.CompletedAt),
		task.ProviderJobID, nilable(task.CliExitCode), task.StdoutPath,
		task.StderrPath, task.ArtifactPath, task.Attempt, task.Error,
		metadata, task.UpdatedAt.Unix(), task.ID.String())
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

// Get returns one task by id, or ErrNotFound.
func (r *TaskRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ExecutionTask, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM execution_tasks WHERE id = ?`, id.String())
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// ListByRequest returns every task under one request, ordered by sequence.
func (r *TaskRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*domain.ExecutionTask, error) {
	return r.list(ctx,
		`SELECT `+taskColumns+` FROM execution_tasks WHERE request_id = ? ORDER BY sequence`,
		requestID.String())
}

// ListByState returns every task in one lifecycle state, oldest first.
func (r *TaskRepository) ListByState(ctx context.Context, state domain.LifecycleState) ([]*domain.ExecutionTask, error) {
	return r.list(ctx,
		`SELECT `+taskColumns+` FROM execution_tasks WHERE lifecycle_state = ? ORDER BY created_at`,
		string(state))
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]*domain.ExecutionTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.ExecutionTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.ExecutionTask, error) {
	var (
		task                               domain.ExecutionTask
		id, requestID, mode, state         string
		scheduledFor, startedAt            sql.NullInt64
		completedAt, cliExitCode           sql.NullInt64
		metadata                           string
		createdAt, updatedAt               int64
	)
	err := row.Scan(&id, &requestID, &task.Sequence, &mode, &state,
		&scheduledFor, &startedAt, &completedAt, &task.ProviderJobID,
		&cliExitCode, &task.StdoutPath, &task.StderrPath, &task.ArtifactPath,
		&task.Attempt, &task.MaxAttempts, &task.Error, &metadata,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if task.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	if task.RequestID, err = uuid.Parse(requestID); err != nil {
		return nil, fmt.Errorf("parse request id: %w", err)
	}
	task.Mode = domain.ExecutionMode(mode)
	task.State = domain.LifecycleState(state)
	task.ScheduledFor = timeFromUnix(scheduledFor)
	task.StartedAt = timeFromUnix(startedAt)
	task.CompletedAt = timeFromUnix(completedAt)
	if cliExitCode.Valid {
		code := int(cliExitCode.Int64)
		task.CliExitCode = &code
	}
	if task.Metadata, err = unmarshalMap(metadata); err != nil {
		return nil, err
	}
	task.CreatedAt = timeUTC(createdAt)
	task.UpdatedAt = timeUTC(updatedAt)
	return &task, nil
}
