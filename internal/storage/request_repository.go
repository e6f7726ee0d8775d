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

// RequestRepository persists requests. Rows are inserted once and then
// updated in place by the lifecycle engine; there is no delete path.
type RequestRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(db dbtx, log zerolog.Logger) *RequestRepository {
	return &RequestRepository{
		db:  db,
		log: log.With().Str("repository", "requests").Logger(),
	}
}

const requestColumns = `id, strategy_id, provider_id, mode, request_type, priority,
	lifecycle_state, metadata, scheduled_for, started_at, completed_at, error,
	created_at, updated_at`

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
	req.NormalizeTimes()
	metadata, err := marshalMap(req.Metadata)
	if err != nil {
		return err
	}
	now := domain.UTCNow()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID.String(), req.StrategyID.String(), string(req.ProviderID),
		string(req.Mode), string(req.RequestType), string(req.Priority),
		string(req.State), metadata, unixOrNil(req.ScheduledFor),
		unixOrNil(req.StartedAt), unixOrNil(req.CompletedAt), req.Error,
		req.CreatedAt.Unix(), req.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create request %s: %w", req.ID, err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing request.
func (r *RequestRepository) Update(ctx context.Context, req *domain.Request) error {
	req.NormalizeTimes()
	metadata, err := marshalMap(req.Metadata)
	if err != nil {
		return err
	}
	req.UpdatedAt = domain.UTCNow()

	result, err := r.db.ExecContext(ctx, `
		UPDATE requests SET
			lifecycle_state = ?, metadata = ?, scheduled_for = ?,
			started_at = ?, completed_at = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(req.State), metadata, unixOrNil(req.ScheduledFor),
		unixOrNil(req.StartedAt), unixOrNil(req.CompletedAt), req.Error,
		req.UpdatedAt.Unix(), req.ID.String())
	if err != nil {
		return fmt.Errorf("update request %s: %w", req.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("request %s: %w", req.ID, ErrNotFound)
	}
	return nil
}

// Get returns one request by id, or ErrNotFound.
func (r *RequestRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id.String())
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return req, nil
}

// ListByState returns every request in one lifecycle state, oldest first.
func (r *RequestRepository) ListByState(ctx context.Context, state domain.LifecycleState) ([]*domain.Request, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE lifecycle_state = ? ORDER BY created_at`,
		string(state))
}

// ListByStrategy returns every request for one strategy, newest first.
func (r *RequestRepository) ListByStrategy(ctx context.Context, strategyID uuid.UUID) ([]*domain.Request, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE strategy_id = ? ORDER BY created_at DESC`,
		strategyID.String())
}

// ListRecent returns the most recently created requests, newest first.
func (r *RequestRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Request, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY created_at DESC LIMIT ?`, limit)
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var (
		req                                domain.Request
		id, strategyID, providerID         string
		mode, requestType, priority, state string
		metadata                           string
		scheduledFor, startedAt            sql.NullInt64
		completedAt                        sql.NullInt64
		createdAt, updatedAt               int64
	)
	err := row.Scan(&id, &strategyID, &providerID, &mode, &requestType,
		&priority, &state, &metadata, &scheduledFor, &startedAt,
		&completedAt, &req.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if req.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse request id: %w", err)
	}
	if req.StrategyID, err = uuid.Parse(strategyID); err != nil {
		return nil, fmt.Errorf("parse strategy id: %w", err)
	}
	req.ProviderID = domain.ProviderID(providerID)
	req.Mode = domain.ExecutionMode(mode)
	req.RequestType = domain.RequestType(requestType)
	req.Priority = domain.RequestPriority(priority)
	req.State = domain.LifecycleState(state)
	if req.Metadata, err = unmarshalMap(metadata); err != nil {
		return nil, err
	}
	req.ScheduledFor = timeFromUnix(scheduledFor)
	req.StartedAt = timeFromUnix(startedAt)
	req.CompletedAt = timeFromUnix(completedAt)
	req.CreatedAt = timeUTC(createdAt)
	req.UpdatedAt = timeUTC(updatedAt)
	return &req, nil
}
