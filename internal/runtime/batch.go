package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/providers"
)

const (
	// DefaultPollInterval is the fixed wait between poll attempts.
	DefaultPollInterval = 15 * time.Second
	// DefaultMaxPolls is the poll-attempt budget before a batch job is
	// declared timed out.
	DefaultMaxPolls = 60
)

// BatchRuntime coordinates submit, poll and download for a single task.
// Poll interval and budget are constructor-configured so tests can shrink
// both and avoid real-time waits.
type BatchRuntime struct {
	pollInterval time.Duration
	maxPolls     int
	log          zerolog.Logger
}

// NewBatchRuntime creates a batch runtime. Zero values fall back to the
// defaults.
func NewBatchRuntime(pollInterval time.Duration, maxPolls int, log zerolog.Logger) *BatchRuntime {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	return &BatchRuntime{
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		log:          log.With().Str("component", "batch_runtime").Logger(),
	}
}

// Serialize builds the provider payload for later submission.
func (r *BatchRuntime) Serialize(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext) (providers.SerializeResult, error) {
	if err := plugin.EnsureMode(domain.ModeBatch); err != nil {
		return providers.SerializeResult{}, err
	}
	serializer := plugin.Serializer()
	if serializer == nil {
		return providers.SerializeResult{}, &providers.SerializationError{
			Provider: plugin.ID(),
			Reason:   "no serializer for batch mode",
		}
	}
	return serializer.Serialize(ctx, tc)
}

// Submit sends the payload to the provider without polling. The payload is
// serialized on demand when nil.
func (r *BatchRuntime) Submit(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext, payload *providers.SerializeResult) (providers.SubmitResult, error) {
	executor, err := r.batchExecutor(plugin)
	if err != nil {
		return providers.SubmitResult{}, err
	}
	if payload == nil {
		serialized, err := r.Serialize(ctx, plugin, tc)
		if err != nil {
			return providers.SubmitResult{}, err
		}
		payload = &serialized
	}
	return executor.Submit(ctx, tc, *payload)
}

// PollOnce polls a submitted job exactly once.
func (r *BatchRuntime) PollOnce(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext, providerJobID string) (providers.PollResult, error) {
	executor, err := r.batchExecutor(plugin)
	if err != nil {
		return providers.PollResult{}, err
	}
	return executor.Poll(ctx, tc, providerJobID)
}

// Download fetches the completed job's results artifact.
func (r *BatchRuntime) Download(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext, providerJobID string) (providers.DownloadResult, error) {
	executor, err := r.batchExecutor(plugin)
	if err != nil {
		return providers.DownloadResult{}, err
	}
	return executor.Download(ctx, tc, providerJobID)
}

// Run drives the full batch workflow: serialize, submit, poll until the job
// completes or the attempt budget runs out, then download. Every poll
// outcome is recorded in the returned history. Budget exhaustion is an
// ExecutionError - a timeout, never a silent failure.
func (r *BatchRuntime) Run(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext) (BatchOutcome, error) {
	startedAt := domain.UTCNow()

	payload, err := r.Serialize(ctx, plugin, tc)
	if err != nil {
		return BatchOutcome{}, err
	}
	submit, err := r.Submit(ctx, plugin, tc, &payload)
	if err != nil {
		return BatchOutcome{}, err
	}

	r.log.Debug().
		Str("provider", string(plugin.ID())).
		Str("job_id", submit.ProviderJobID).
		Msg("Batch job submitted")

	history, download, err := r.Await(ctx, plugin, tc, submit.ProviderJobID)
	if err != nil {
		return BatchOutcome{}, err
	}

	return BatchOutcome{
		Submit:      submit,
		Download:    download,
		PollHistory: history,
		StartedAt:   startedAt,
		CompletedAt: domain.UTCNow(),
	}, nil
}

// Await polls a submitted job until it completes or the attempt budget runs
// out, then downloads the result. Budget exhaustion is an ExecutionError.
func (r *BatchRuntime) Await(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext, providerJobID string) ([]providers.PollResult, providers.DownloadResult, error) {
	history := make([]providers.PollResult, 0, 1)
	completed := false
	for attempt := 0; attempt < r.maxPolls; attempt++ {
		poll, err := r.PollOnce(ctx, plugin, tc, providerJobID)
		if err != nil {
			return history, providers.DownloadResult{}, err
		}
		history = append(history, poll)
		if poll.Completed {
			completed = true
			break
		}
		// Sleep only when another attempt remains; an exhausted budget
		// raises immediately.
		if attempt+1 < r.maxPolls {
			if err := sleepCtx(ctx, r.pollInterval); err != nil {
				return history, providers.DownloadResult{}, err
			}
		}
	}
	if !completed {
		return history, providers.DownloadResult{}, &providers.ExecutionError{
			Provider: plugin.ID(),
			JobID:    providerJobID,
			ExitCode: -1,
			Timeout:  true,
			Reason:   fmt.Sprintf("did not complete within %d poll attempts", r.maxPolls),
		}
	}

	download, err := r.Download(ctx, plugin, tc, providerJobID)
	if err != nil {
		return history, providers.DownloadResult{}, err
	}
	return history, download, nil
}

func (r *BatchRuntime) batchExecutor(plugin *providers.Plugin) (providers.BatchExecutor, error) {
	if err := plugin.EnsureMode(domain.ModeBatch); err != nil {
		return nil, err
	}
	executor := plugin.BatchExecutor()
	if executor == nil {
		return nil, &providers.ExecutionError{
			Provider: plugin.ID(),
			ExitCode: -1,
			Reason:   "no batch executor",
		}
	}
	return executor, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
