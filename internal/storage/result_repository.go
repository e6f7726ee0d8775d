package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/folios/internal/database"
	"github.com/aristath/folios/internal/domain"
)

// ResearchResult is one parsed provider result cached per task. The payload
// is the canonical result envelope produced by the result parser.
type ResearchResult struct {
	TaskID              uuid.UUID         `json:"task_id"`
	RequestID           uuid.UUID         `json:"request_id"`
	ProviderID          domain.ProviderID `json:"provider_id"`
	Payload             map[string]any    `json:"payload"`
	RecommendationCount int               `json:"recommendation_count"`
	CreatedAt           time.Time         `json:"created_at"`
}

// ResultRepository caches parsed results in cache.db. Payloads are msgpack
// encoded; the cache is rebuildable from artifacts on disk, so rows here are
// disposable in a way core.db rows are not.
type ResultRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewResultRepository creates a result repository over cache.db.
func NewResultRepository(db *database.DB, log zerolog.Logger) *ResultRepository {
	return &ResultRepository{
		db:  db.Conn(),
		log: log.With().Str("repository", "results").Logger(),
	}
}

// Save inserts or replaces the cached result for one task.
func (r *ResultRepository) Save(ctx context.Context, result *ResearchResult) error {
	payload, err := msgpack.Marshal(result.Payload)
	if err != nil {
		return fmt.Errorf("encode result payload: %w", err)
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = domain.UTCNow()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO research_results (task_id, request_id, provider_id, payload, recommendation_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			request_id = excluded.request_id,
			provider_id = excluded.provider_id,
			payload = excluded.payload,
			recommendation_count = excluded.recommendation_count,
			created_at = excluded.created_at`,
		result.TaskID.String(), result.RequestID.String(),
		string(result.ProviderID), payload, result.RecommendationCount,
		result.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save result for task %s: %w", result.TaskID, err)
	}
	return nil
}

// Get returns the cached result for one task, or ErrNotFound.
func (r *ResultRepository) Get(ctx context.Context, taskID uuid.UUID) (*ResearchResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT task_id, request_id, provider_id, payload, recommendation_count, created_at
		FROM research_results WHERE task_id = ?`, taskID.String())
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result for task %s: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("get result for task %s: %w", taskID, err)
	}
	return result, nil
}

// ListByRequest returns every cached result under one request.
func (r *ResultRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*ResearchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT task_id, request_id, provider_id, payload, recommendation_count, created_at
		FROM research_results WHERE request_id = ? ORDER BY created_at`, requestID.String())
	if err != nil {
		return nil, fmt.Errorf("list results for request %s: %w", requestID, err)
	}
	defer rows.Close()

	var results []*ResearchResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func scanResult(row rowScanner) (*ResearchResult, error) {
	var (
		result            ResearchResult
		taskID, requestID string
		providerID        string
		payload           []byte
		createdAt         int64
	)
	err := row.Scan(&taskID, &requestID, &providerID, &payload,
		&result.RecommendationCount, &createdAt)
	if err != nil {
		return nil, err
	}
	if result.TaskID, err = uuid.Parse(taskID); err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	if result.RequestID, err = uuid.Parse(requestID); err != nil {
		return nil, fmt.Errorf("parse request id: %w", err)
	}
	result.ProviderID = domain.ProviderID(providerID)
	if err := msgpack.Unmarshal(payload, &result.Payload); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	result.CreatedAt = timeUTC(createdAt)
	return &result, nil
}
