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

// StrategyRepository persists strategy definitions.
type StrategyRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewStrategyRepository creates a new strategy repository.
func NewStrategyRepository(db dbtx, log zerolog.Logger) *StrategyRepository {
	return &StrategyRepository{
		db:  db,
		log: log.With().Str("repository", "strategies").Logger(),
	}
}

const strategyColumns = `id, name, prompt, tickers, status, risk_controls, screener,
	research_day, runtime_weight, created_at, updated_at`

// Save inserts or replaces a strategy.
func (r *StrategyRepository) Save(ctx context.Context, s *domain.Strategy) error {
	s.NormalizeTickers()
	tickers, err := marshalTickers(s.Tickers)
	if err != nil {
		return err
	}
	riskControls, err := marshalJSON(nilable(s.RiskControls))
	if err != nil {
		return err
	}
	screener, err := marshalJSON(nilable(s.Screener))
	if err != nil {
		return err
	}

	now := domain.UTCNow()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO strategies (`+strategyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			prompt = excluded.prompt,
			tickers = excluded.tickers,
			status = excluded.status,
			risk_controls = excluded.risk_controls,
			screener = excluded.screener,
			research_day = excluded.research_day,
			runtime_weight = excluded.runtime_weight,
			updated_at = excluded.updated_at`,
		s.ID.String(), s.Name, s.Prompt, tickers, string(s.Status),
		riskControls, screener, s.ResearchDay, s.RuntimeWeight,
		s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", s.ID, err)
	}
	return nil
}

// Get returns one strategy by id, or ErrNotFound.
func (r *StrategyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Strategy, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE id = ?`, id.String())
	s, err := scanStrategy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("strategy %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get strategy %s: %w", id, err)
	}
	return s, nil
}

// ListActive returns all strategies with status active, ordered by name.
func (r *StrategyRepository) ListActive(ctx context.Context) ([]*domain.Strategy, error) {
	return r.list(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE status = ? ORDER BY name`,
		string(domain.StrategyActive))
}

// List returns every strategy, ordered by name.
func (r *StrategyRepository) List(ctx context.Context) ([]*domain.Strategy, error) {
	return r.list(ctx, `SELECT `+strategyColumns+` FROM strategies ORDER BY name`)
}

func (r *StrategyRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []*domain.Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategy(row rowScanner) (*domain.Strategy, error) {
	var (
		s                      domain.Strategy
		id, tickers, status    string
		riskControls, screener sql.NullString
		createdAt, updatedAt   int64
	)
	err := row.Scan(&id, &s.Name, &s.Prompt, &tickers, &status,
		&riskControls, &screener, &s.ResearchDay, &s.RuntimeWeight,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse strategy id: %w", err)
	}
	s.Status = domain.StrategyStatus(status)
	if s.Tickers, err = unmarshalTickers(tickers); err != nil {
		return nil, err
	}
	if s.RiskControls, err = unmarshalRiskControls(riskControls); err != nil {
		return nil, err
	}
	if s.Screener, err = unmarshalScreener(screener); err != nil {
		return nil, err
	}
	s.CreatedAt = timeUTC(createdAt)
	s.UpdatedAt = timeUTC(updatedAt)
	return &s, nil
}
