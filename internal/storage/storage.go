// Package storage implements sqlite persistence for strategies, schedules,
// requests, execution tasks and the request audit log, plus the msgpack-
// encoded canonical results cache. Multi-row writes go through the store's
// unit-of-work so callers never observe a partial commit.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/database"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// dbtx is satisfied by both *sql.DB and *sql.Tx so every repository can run
// against the bare connection or inside a unit-of-work.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the core database repositories and the unit-of-work
// boundary.
type Store struct {
	db  *database.DB
	log zerolog.Logger

	Strategies *StrategyRepository
	Schedules  *ScheduleRepository
	Requests   *RequestRepository
	Tasks      *TaskRepository
	Log        *LogRepository
}

// NewStore creates a store over core.db.
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	conn := db.Conn()
	storeLog := log.With().Str("component", "storage").Logger()
	return &Store{
		db:         db,
		log:        storeLog,
		Strategies: NewStrategyRepository(conn, storeLog),
		Schedules:  NewScheduleRepository(conn, storeLog),
		Requests:   NewRequestRepository(conn, storeLog),
		Tasks:      NewTaskRepository(conn, storeLog),
		Log:        NewLogRepository(conn, storeLog),
	}
}

// TxStore exposes the same repositories bound to one transaction.
type TxStore struct {
	Strategies *StrategyRepository
	Schedules  *ScheduleRepository
	Requests   *RequestRepository
	Tasks      *TaskRepository
	Log        *LogRepository
}

// WithTx runs fn inside a single transaction. The transaction commits when
// fn returns nil and rolls back otherwise; there is no partial-commit path.
func (s *Store) WithTx(ctx context.Context, fn func(tx *TxStore) error) error {
	sqlTx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &TxStore{
		Strategies: NewStrategyRepository(sqlTx, s.log),
		Schedules:  NewScheduleRepository(sqlTx, s.log),
		Requests:   NewRequestRepository(sqlTx, s.log),
		Tasks:      NewTaskRepository(sqlTx, s.log),
		Log:        NewLogRepository(sqlTx, s.log),
	}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("Transaction rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
