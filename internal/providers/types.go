// Package providers defines the provider plugin contract: the capability
// record each research backend declares, the collaborator interfaces it may
// supply (serializer, batch executor, CLI executor, parser) and the registry
// used to look plugins up at dispatch time.
package providers

import (
	"context"
	"path/filepath"
	"time"

	"github.com/aristath/folios/internal/domain"
)

// TaskContext is the read-only bundle handed to every collaborator: the
// request, its execution task and the artifact directory for that task.
// It is constructed fresh per invocation and never persisted.
type TaskContext struct {
	Request     *domain.Request
	Task        *domain.ExecutionTask
	ArtifactDir string
}

// Artifact resolves a path relative to the task's artifact directory.
func (c TaskContext) Artifact(name string) string {
	return filepath.Join(c.ArtifactDir, name)
}

// Prompt returns the built research prompt carried in the request metadata.
func (c TaskContext) Prompt() string {
	if c.Request == nil {
		return ""
	}
	return c.Request.Metadata["strategy_prompt"]
}

// Throttle is the rate policy a plugin declares. The core only declares the
// policy; enforcing it across concurrent invocations is the caller's job.
type Throttle struct {
	MaxConcurrent     int
	RequestsPerMinute int
	CoolDown          time.Duration
}

// SerializeResult describes a payload prepared for submission.
type SerializeResult struct {
	PayloadPath string
	ContentType string
	Metadata    map[string]any
}

// SubmitResult is the outcome of submitting a batch job.
type SubmitResult struct {
	ProviderJobID string
	Metadata      map[string]any
}

// PollResult is one polling response from a provider.
type PollResult struct {
	Completed bool
	Status    string
	Metadata  map[string]any
}

// DownloadResult points at the downloaded batch artifact.
type DownloadResult struct {
	ArtifactPath string
	ContentType  string
	Metadata     map[string]any
}

// CliResult is the outcome of one local CLI invocation.
type CliResult struct {
	ExitCode   int
	StdoutPath string
	StderrPath string
	Metadata   map[string]any
}

// RequestSerializer turns the canonical request into a provider-specific
// payload on disk.
type RequestSerializer interface {
	Serialize(ctx context.Context, tc TaskContext) (SerializeResult, error)
}

// BatchExecutor drives the asynchronous submit/poll/download workflow.
type BatchExecutor interface {
	Submit(ctx context.Context, tc TaskContext, payload SerializeResult) (SubmitResult, error)
	Poll(ctx context.Context, tc TaskContext, providerJobID string) (PollResult, error)
	Download(ctx context.Context, tc TaskContext, providerJobID string) (DownloadResult, error)
}

// CliExecutor runs provider logic through a local command. The payload is nil
// when the plugin does not declare a serializer for CLI mode.
type CliExecutor interface {
	Run(ctx context.Context, tc TaskContext, payload *SerializeResult) (CliResult, error)
}

// ResultParser normalizes provider output into the canonical result map.
type ResultParser interface {
	Parse(ctx context.Context, tc TaskContext) (map[string]any, error)
}
