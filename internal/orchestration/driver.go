package orchestration

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/providers"
	"github.com/aristath/folios/internal/runtime"
	"github.com/aristath/folios/internal/storage"
)

// Archiver uploads a completed task's artifact directory to durable storage.
type Archiver interface {
	ArchiveTask(ctx context.Context, requestID, taskID uuid.UUID, dir string) error
}

// TaskDriver drives one execution task end to end: lifecycle transitions,
// the mode's runtime, result parsing, the results cache and optional
// archival. It is the only caller of the runtimes.
type TaskDriver struct {
	store     *storage.Store
	registry  *providers.Registry
	lifecycle *LifecycleEngine
	batch     *runtime.BatchRuntime
	cli       *runtime.CliRuntime
	results   *storage.ResultRepository
	archiver  Archiver // nil disables archival
	bus       *events.Bus
	log       zerolog.Logger
}

// NewTaskDriver creates a new task driver. archiver may be nil.
func NewTaskDriver(store *storage.Store, registry *providers.Registry, lifecycle *LifecycleEngine, batch *runtime.BatchRuntime, cli *runtime.CliRuntime, results *storage.ResultRepository, archiver Archiver, bus *events.Bus, log zerolog.Logger) *TaskDriver {
	return &TaskDriver{
		store:     store,
		registry:  registry,
		lifecycle: lifecycle,
		batch:     batch,
		cli:       cli,
		results:   results,
		archiver:  archiver,
		bus:       bus,
		log:       log.With().Str("component", "task_driver").Logger(),
	}
}

var startableStates = []domain.LifecycleState{domain.StatePending, domain.StateScheduled}

// Drive executes one task. On success the task (and single-task request)
// end SUCCEEDED with the canonical result cached; execution failures end
// FAILED, and an exhausted batch poll budget ends TIMED_OUT. The returned
// error reflects the execution failure, not a bookkeeping one.
func (d *TaskDriver) Drive(ctx context.Context, taskID uuid.UUID) error {
	task, err := d.store.Tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	request, err := d.store.Requests.Get(ctx, task.RequestID)
	if err != nil {
		return err
	}

	plugin, err := d.registry.Require(request.ProviderID, task.Mode)
	if err != nil {
		return err
	}

	if !request.State.IsTerminal() && request.State != domain.StateRunning {
		if request, err = d.lifecycle.TransitionRequest(ctx, request.ID, domain.StateRunning, startableStates, nil); err != nil {
			return err
		}
	}
	if task, err = d.lifecycle.TransitionTask(ctx, task.ID, domain.StateRunning, startableStates, nil); err != nil {
		return err
	}

	tc := providers.TaskContext{Request: request, Task: task, ArtifactDir: task.ArtifactPath}

	var runErr error
	switch task.Mode {
	case domain.ModeBatch:
		runErr = d.runBatch(ctx, plugin, tc, task)
	case domain.ModeCLI:
		runErr = d.runCli(ctx, plugin, tc, task)
	default:
		runErr = &providers.UnsupportedModeError{Provider: request.ProviderID, Mode: task.Mode}
	}

	if runErr != nil {
		return d.fail(ctx, request, task, runErr)
	}

	result, err := plugin.Parser().Parse(ctx, tc)
	if err != nil {
		return d.fail(ctx, request, task, err)
	}
	if err := d.cacheResult(ctx, request, task, result); err != nil {
		d.log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("Failed to cache result")
	}
	d.archive(ctx, request, task)

	if _, err := d.lifecycle.TransitionTask(ctx, task.ID, domain.StateSucceeded, nil, nil); err != nil {
		return err
	}
	if _, err := d.lifecycle.TransitionRequest(ctx, request.ID, domain.StateSucceeded, nil, nil); err != nil {
		return err
	}

	d.bus.Emit(events.ResearchCompleted, "task_driver", map[string]any{
		"request_id": request.ID.String(),
		"task_id":    task.ID.String(),
		"provider":   string(request.ProviderID),
	})
	return nil
}

func (d *TaskDriver) runBatch(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext, task *domain.ExecutionTask) error {
	payload, err := d.batch.Serialize(ctx, plugin, tc)
	if err != nil {
		return err
	}
	submit, err := d.batch.Submit(ctx, plugin, tc, &payload)
	if err != nil {
		return err
	}

	task.ProviderJobID = submit.ProviderJobID
	if err := d.lifecycle.UpdateTask(ctx, task); err != nil {
		return err
	}
	if _, err := d.lifecycle.TransitionTask(ctx, task.ID, domain.StateAwaitingResults, []domain.LifecycleState{domain.StateRunning}, map[string]string{"provider_job_id": submit.ProviderJobID}); err != nil {
		return err
	}

	_, _, err = d.batch.Await(ctx, plugin, tc, submit.ProviderJobID)
	return err
}

func (d *TaskDriver) runCli(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext, task *domain.ExecutionTask) error {
	outcome, err := d.cli.Run(ctx, plugin, tc)
	if outcome.Result.StdoutPath != "" || outcome.Result.StderrPath != "" {
		exitCode := outcome.Result.ExitCode
		task.CliExitCode = &exitCode
		task.StdoutPath = outcome.Result.StdoutPath
		task.StderrPath = outcome.Result.StderrPath
		if updateErr := d.lifecycle.UpdateTask(ctx, task); updateErr != nil {
			d.log.Warn().Err(updateErr).Str("task_id", task.ID.String()).Msg("Failed to record CLI outcome")
		}
	}
	return err
}

// fail moves the task and request to their failure state. An exhausted batch
// poll budget maps to TIMED_OUT, everything else to FAILED.
func (d *TaskDriver) fail(ctx context.Context, request *domain.Request, task *domain.ExecutionTask, runErr error) error {
	terminal := domain.StateFailed
	var execErr *providers.ExecutionError
	if errors.As(runErr, &execErr) && execErr.Timeout {
		terminal = domain.StateTimedOut
	}

	attrs := map[string]string{"error": runErr.Error()}

	task.Error = runErr.Error()
	if err := d.lifecycle.UpdateTask(ctx, task); err != nil {
		d.log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("Failed to record task error")
	}
	if _, err := d.lifecycle.TransitionTask(ctx, task.ID, terminal, nil, attrs); err != nil {
		d.log.Error().Err(err).Str("task_id", task.ID.String()).Msg("Failed to transition task to terminal state")
	}

	request.Error = runErr.Error()
	if err := d.store.Requests.Update(ctx, request); err != nil {
		d.log.Warn().Err(err).Str("request_id", request.ID.String()).Msg("Failed to record request error")
	}
	if _, err := d.lifecycle.TransitionRequest(ctx, request.ID, terminal, nil, attrs); err != nil {
		d.log.Error().Err(err).Str("request_id", request.ID.String()).Msg("Failed to transition request to terminal state")
	}
	return runErr
}

func (d *TaskDriver) cacheResult(ctx context.Context, request *domain.Request, task *domain.ExecutionTask, result map[string]any) error {
	if d.results == nil {
		return nil
	}
	count := 0
	if recs, ok := result["recommendations"].([]any); ok {
		count = len(recs)
	}
	return d.results.Save(ctx, &storage.ResearchResult{
		TaskID:              task.ID,
		RequestID:           request.ID,
		ProviderID:          request.ProviderID,
		Payload:             result,
		RecommendationCount: count,
	})
}

func (d *TaskDriver) archive(ctx context.Context, request *domain.Request, task *domain.ExecutionTask) {
	if d.archiver == nil || task.ArtifactPath == "" {
		return
	}
	if err := d.archiver.ArchiveTask(ctx, request.ID, task.ID, task.ArtifactPath); err != nil {
		d.log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("Artifact archival failed")
		return
	}
	d.bus.Emit(events.ArtifactArchived, "task_driver", map[string]any{
		"request_id": request.ID.String(),
		"task_id":    task.ID.String(),
	})
}
