package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is the retry budget assigned to new execution tasks.
const DefaultMaxAttempts = 3

// Request is one persisted unit of intent: a strategy researched (or executed,
// or digested) through one provider in one execution mode. Requests are
// created by the orchestrator, mutated only by the lifecycle engine, and never
// deleted - terminal states are retained for audit.
type Request struct {
	ID           uuid.UUID         `json:"id"`
	StrategyID   uuid.UUID         `json:"strategy_id"`
	ProviderID   ProviderID        `json:"provider_id"`
	Mode         ExecutionMode     `json:"mode"`
	RequestType  RequestType       `json:"request_type"`
	Priority     RequestPriority   `json:"priority"`
	State        LifecycleState    `json:"state"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NormalizeTimes forces every optional timestamp onto UTC.
func (r *Request) NormalizeTimes() {
	r.ScheduledFor = EnsureUTCPtr(r.ScheduledFor)
	r.StartedAt = EnsureUTCPtr(r.StartedAt)
	r.CompletedAt = EnsureUTCPtr(r.CompletedAt)
	r.CreatedAt = EnsureUTC(r.CreatedAt)
	r.UpdatedAt = EnsureUTC(r.UpdatedAt)
}

// ExecutionTask is one concrete execution attempt under a request. The
// sequence number supports multi-step requests; exactly one task with
// sequence 1 exists at creation time.
type ExecutionTask struct {
	ID            uuid.UUID         `json:"id"`
	RequestID     uuid.UUID         `json:"request_id"`
	Sequence      int               `json:"sequence"`
	Mode          ExecutionMode     `json:"mode"`
	State         LifecycleState    `json:"state"`
	ScheduledFor  *time.Time        `json:"scheduled_for,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	ProviderJobID string            `json:"provider_job_id,omitempty"`
	CliExitCode   *int              `json:"cli_exit_code,omitempty"`
	StdoutPath    string            `json:"stdout_path,omitempty"`
	StderrPath    string            `json:"stderr_path,omitempty"`
	ArtifactPath  string            `json:"artifact_path,omitempty"`
	Attempt       int               `json:"attempt"`
	MaxAttempts   int               `json:"max_attempts"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NormalizeTimes forces every optional timestamp onto UTC.
func (t *ExecutionTask) NormalizeTimes() {
	t.ScheduledFor = EnsureUTCPtr(t.ScheduledFor)
	t.StartedAt = EnsureUTCPtr(t.StartedAt)
	t.CompletedAt = EnsureUTCPtr(t.CompletedAt)
	t.CreatedAt = EnsureUTC(t.CreatedAt)
	t.UpdatedAt = EnsureUTC(t.UpdatedAt)
}

// RequestLogEntry is an append-only audit record of one lifecycle transition.
// Entries are written exclusively by the lifecycle engine and are immutable
// once stored.
type RequestLogEntry struct {
	ID            int64             `json:"id"`
	RequestID     uuid.UUID         `json:"request_id"`
	TaskID        *uuid.UUID        `json:"task_id,omitempty"`
	PreviousState LifecycleState    `json:"previous_state"`
	NextState     LifecycleState    `json:"next_state"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
