package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
)

// LogRepository persists the append-only request audit log. Entries are
// inserted, never updated or deleted.
type LogRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewLogRepository creates a new log repository.
func NewLogRepository(db dbtx, log zerolog.Logger) *LogRepository {
	return &LogRepository{
		db:  db,
		log: log.With().Str("repository", "request_log").Logger(),
	}
}

// Append writes one transition record and fills in its assigned id.
func (r *LogRepository) Append(ctx context.Context, entry *domain.RequestLogEntry) error {
	attributes, err := marshalMap(entry.Attributes)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = domain.UTCNow()
	}

	var taskID any
	if entry.TaskID != nil {
		taskID = entry.TaskID.String()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO request_log (request_id, task_id, previous_state, next_state, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RequestID.String(), taskID, string(entry.PreviousState),
		string(entry.NextState), attributes, entry.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("append log entry for request %s: %w", entry.RequestID, err)
	}
	entry.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read log entry id: %w", err)
	}
	return nil
}

// ListByRequest returns every transition recorded for one request, in
// insertion order.
func (r *LogRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*domain.RequestLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, task_id, previous_state, next_state, attributes, created_at
		FROM request_log WHERE request_id = ? ORDER BY id`, requestID.String())
	if err != nil {
		return nil, fmt.Errorf("list log entries for request %s: %w", requestID, err)
	}
	defer rows.Close()

	var entries []*domain.RequestLogEntry
	for rows.Next() {
		var (
			entry                     domain.RequestLogEntry
			reqID                     string
			taskID                    sql.NullString
			previousState, nextState  string
			attributes                string
			createdAt                 int64
		)
		err := rows.Scan(&entry.ID, &reqID, &taskID, &previousState,
			&nextState, &attributes, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if entry.RequestID, err = uuid.Parse(reqID); err != nil {
			return nil, fmt.Errorf("parse request id: %w", err)
		}
		if taskID.Valid {
			parsed, err := uuid.Parse(taskID.String)
			if err != nil {
				return nil, fmt.Errorf("parse task id: %w", err)
			}
			entry.TaskID = &parsed
		}
		entry.PreviousState = domain.LifecycleState(previousState)
		entry.NextState = domain.LifecycleState(nextState)
		if entry.Attributes, err = unmarshalMap(attributes); err != nil {
			return nil, err
		}
		entry.CreatedAt = timeUTC(createdAt)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
