// Package runtime drives a single execution task to completion through a
// provider plugin, either via the asynchronous batch workflow or a
// synchronous local CLI invocation. Each Run call owns exactly one task;
// concurrency across tasks is the caller's concern.
package runtime

import (
	"time"

	"github.com/aristath/folios/internal/providers"
)

// BatchOutcome aggregates the results of one batch execution.
type BatchOutcome struct {
	Submit      providers.SubmitResult
	Download    providers.DownloadResult
	PollHistory []providers.PollResult
	StartedAt   time.Time
	CompletedAt time.Time
}

// CliOutcome is the result of one CLI execution.
type CliOutcome struct {
	Result      providers.CliResult
	StartedAt   time.Time
	CompletedAt time.Time
}
