package runtime

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/providers"
)

// CliRuntime runs CLI-based providers for a single task. There is no retry
// here - retries, if wanted, belong to the caller via the task's
// attempt/max-attempts counters.
type CliRuntime struct {
	failOnNonZero bool
	log           zerolog.Logger
}

// NewCliRuntime creates a CLI runtime. failOnNonZero (the default in
// production wiring) turns non-zero exit codes into ExecutionErrors.
func NewCliRuntime(failOnNonZero bool, log zerolog.Logger) *CliRuntime {
	return &CliRuntime{
		failOnNonZero: failOnNonZero,
		log:           log.With().Str("component", "cli_runtime").Logger(),
	}
}

// Run serializes when the plugin requires it, invokes the CLI executor and
// enforces the exit-code policy.
func (r *CliRuntime) Run(ctx context.Context, plugin *providers.Plugin, tc providers.TaskContext) (CliOutcome, error) {
	if err := plugin.EnsureMode(domain.ModeCLI); err != nil {
		return CliOutcome{}, err
	}
	executor := plugin.CliExecutor()
	if executor == nil {
		return CliOutcome{}, &providers.ExecutionError{
			Provider: plugin.ID(),
			ExitCode: -1,
			Reason:   "no CLI executor",
		}
	}

	startedAt := domain.UTCNow()

	var payload *providers.SerializeResult
	if serializer := plugin.Serializer(); serializer != nil {
		serialized, err := serializer.Serialize(ctx, tc)
		if err != nil {
			return CliOutcome{}, err
		}
		payload = &serialized
	} else if plugin.RequiresSerializer(domain.ModeCLI) {
		return CliOutcome{}, &providers.SerializationError{
			Provider: plugin.ID(),
			Reason:   "serializer required for CLI mode",
		}
	}

	result, err := executor.Run(ctx, tc, payload)
	if err != nil {
		return CliOutcome{}, err
	}

	r.log.Debug().
		Str("provider", string(plugin.ID())).
		Int("exit_code", result.ExitCode).
		Msg("CLI execution finished")

	outcome := CliOutcome{
		Result:      result,
		StartedAt:   startedAt,
		CompletedAt: domain.UTCNow(),
	}
	if r.failOnNonZero && result.ExitCode != 0 {
		return outcome, &providers.ExecutionError{
			Provider: plugin.ID(),
			ExitCode: result.ExitCode,
			Reason:   fmt.Sprintf("CLI provider exited with code %d", result.ExitCode),
		}
	}
	return outcome, nil
}
