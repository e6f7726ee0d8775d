package orchestration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/storage"
)

// InvalidTransitionError reports a lifecycle transition that the state
// machine forbids, or an entity found outside the caller's expected states.
type InvalidTransitionError struct {
	Entity   string
	ID       uuid.UUID
	Current  domain.LifecycleState
	Next     domain.LifecycleState
	Expected []domain.LifecycleState
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Expected) > 0 {
		return fmt.Sprintf("%s %s is %s, expected one of %v", e.Entity, e.ID, e.Current, e.Expected)
	}
	return fmt.Sprintf("%s %s cannot transition %s -> %s", e.Entity, e.ID, e.Current, e.Next)
}

// LifecycleEngine is the sole mutator of request and task lifecycle state.
// Every transition is checked against the state machine, applied together
// with its audit log entry in one transaction, and announced on the bus.
type LifecycleEngine struct {
	store *storage.Store
	bus   *events.Bus
	log   zerolog.Logger
}

// NewLifecycleEngine creates a new lifecycle engine.
func NewLifecycleEngine(store *storage.Store, bus *events.Bus, log zerolog.Logger) *LifecycleEngine {
	return &LifecycleEngine{
		store: store,
		bus:   bus,
		log:   log.With().Str("component", "lifecycle").Logger(),
	}
}

// TransitionRequest moves a request to next. When expected is non-empty the
// request's current state must be one of them, otherwise the transition is
// rejected without touching the row. Attributes are recorded on the audit
// log entry.
func (e *LifecycleEngine) TransitionRequest(ctx context.Context, requestID uuid.UUID, next domain.LifecycleState, expected []domain.LifecycleState, attributes map[string]string) (*domain.Request, error) {
	var updated *domain.Request
	err := e.store.WithTx(ctx, func(tx *storage.TxStore) error {
		req, err := tx.Requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if err := e.checkTransition("request", req.ID, req.State, next, expected); err != nil {
			return err
		}

		previous := req.State
		req.State = next
		stampRequest(req, next)
		if err := tx.Requests.Update(ctx, req); err != nil {
			return err
		}
		if err := tx.Log.Append(ctx, &domain.RequestLogEntry{
			RequestID:     req.ID,
			PreviousState: previous,
			NextState:     next,
			Attributes:    attributes,
		}); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("request_id", requestID.String()).
		Str("state", string(next)).
		Msg("Request transitioned")
	e.bus.Emit(events.RequestTransitioned, "lifecycle", map[string]any{
		"request_id": requestID.String(),
		"state":      string(next),
	})
	return updated, nil
}

// TransitionTask moves an execution task to next under the same rules as
// TransitionRequest. The audit log entry carries the task id.
func (e *LifecycleEngine) TransitionTask(ctx context.Context, taskID uuid.UUID, next domain.LifecycleState, expected []domain.LifecycleState, attributes map[string]string) (*domain.ExecutionTask, error) {
	var updated *domain.ExecutionTask
	err := e.store.WithTx(ctx, func(tx *storage.TxStore) error {
		task, err := tx.Tasks.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if err := e.checkTransition("task", task.ID, task.State, next, expected); err != nil {
			return err
		}

		previous := task.State
		task.State = next
		stampTask(task, next)
		if err := tx.Tasks.Update(ctx, task); err != nil {
			return err
		}
		id := task.ID
		if err := tx.Log.Append(ctx, &domain.RequestLogEntry{
			RequestID:     task.RequestID,
			TaskID:        &id,
			PreviousState: previous,
			NextState:     next,
			Attributes:    attributes,
		}); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("task_id", taskID.String()).
		Str("state", string(next)).
		Msg("Task transitioned")
	e.bus.Emit(events.TaskTransitioned, "lifecycle", map[string]any{
		"task_id":    taskID.String(),
		"request_id": updated.RequestID.String(),
		"state":      string(next),
	})
	return updated, nil
}

// UpdateTask rewrites a task's execution artifacts without changing state.
// Used by the driver to record job ids, exit codes and artifact paths as
// phases complete.
func (e *LifecycleEngine) UpdateTask(ctx context.Context, task *domain.ExecutionTask) error {
	return e.store.Tasks.Update(ctx, task)
}

func (e *LifecycleEngine) checkTransition(entity string, id uuid.UUID, current, next domain.LifecycleState, expected []domain.LifecycleState) error {
	if len(expected) > 0 {
		found := false
		for _, state := range expected {
			if current == state {
				found = true
				break
			}
		}
		if !found {
			return &InvalidTransitionError{Entity: entity, ID: id, Current: current, Next: next, Expected: expected}
		}
	}
	if !current.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: entity, ID: id, Current: current, Next: next}
	}
	return nil
}

func stampRequest(req *domain.Request, next domain.LifecycleState) {
	now := domain.UTCNow()
	switch {
	case next == domain.StateRunning && req.StartedAt == nil:
		req.StartedAt = &now
	case next.IsTerminal():
		req.CompletedAt = &now
	}
}

func stampTask(task *domain.ExecutionTask, next domain.LifecycleState) {
	now := domain.UTCNow()
	switch {
	case next == domain.StateRunning && task.StartedAt == nil:
		task.StartedAt = &now
	case next.IsTerminal():
		task.CompletedAt = &now
	}
}
