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

// ScheduleRepository persists the weekly research assignment per strategy.
type ScheduleRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db dbtx, log zerolog.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		db:  db,
		log: log.With().Str("repository", "schedules").Logger(),
	}
}

// Upsert inserts or updates the schedule row for the schedule's strategy.
func (r *ScheduleRepository) Upsert(ctx context.Context, s *domain.StrategySchedule) error {
	now := domain.UTCNow()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO strategy_schedules (strategy_id, weekday, next_research_at, last_research_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_id) DO UPDATE SET
			weekday = excluded.weekday,
			next_research_at = excluded.next_research_at,
			last_research_at = excluded.last_research_at,
			updated_at = excluded.updated_at`,
		s.StrategyID.String(), s.Weekday, unixOrNil(s.NextResearchAt),
		unixOrNil(s.LastResearchAt), s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert schedule for strategy %s: %w", s.StrategyID, err)
	}
	return nil
}

// Get returns the schedule row for one strategy, or ErrNotFound.
func (r *ScheduleRepository) Get(ctx context.Context, strategyID uuid.UUID) (*domain.StrategySchedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT strategy_id, weekday, next_research_at, last_research_at, created_at, updated_at
		FROM strategy_schedules WHERE strategy_id = ?`, strategyID.String())
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule for strategy %s: %w", strategyID, ErrNotFound)
		}
		return nil, fmt.Errorf("get schedule for strategy %s: %w", strategyID, err)
	}
	return s, nil
}

// List returns every schedule row.
func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.StrategySchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strategy_id, weekday, next_research_at, last_research_at, created_at, updated_at
		FROM strategy_schedules ORDER BY weekday, strategy_id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.StrategySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// ListByWeekday returns the schedule rows assigned to one weekday (1-5).
func (r *ScheduleRepository) ListByWeekday(ctx context.Context, weekday int) ([]*domain.StrategySchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strategy_id, weekday, next_research_at, last_research_at, created_at, updated_at
		FROM strategy_schedules WHERE weekday = ? ORDER BY strategy_id`, weekday)
	if err != nil {
		return nil, fmt.Errorf("list schedules for weekday %d: %w", weekday, err)
	}
	defer rows.Close()

	var schedules []*domain.StrategySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*domain.StrategySchedule, error) {
	var (
		s                    domain.StrategySchedule
		strategyID           string
		nextAt, lastAt       sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&strategyID, &s.Weekday, &nextAt, &lastAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.StrategyID, err = uuid.Parse(strategyID)
	if err != nil {
		return nil, fmt.Errorf("parse strategy id: %w", err)
	}
	s.NextResearchAt = timeFromUnix(nextAt)
	s.LastResearchAt = timeFromUnix(lastAt)
	s.CreatedAt = timeUTC(createdAt)
	s.UpdatedAt = timeUTC(updatedAt)
	return &s, nil
}
