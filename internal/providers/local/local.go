// Package local provides provider collaborators that run entirely on the
// local machine: a JSON payload serializer, a simulated batch executor used
// for provider development and tests, and a CLI executor that drives a real
// external binary.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/providers"
)

// JSONSerializer writes the task prompt into a JSON payload file.
type JSONSerializer struct {
	ProviderID domain.ProviderID
	Filename   string // defaults to payload.json
}

// Serialize builds the payload file inside the task's artifact directory.
func (s *JSONSerializer) Serialize(_ context.Context, tc providers.TaskContext) (providers.SerializeResult, error) {
	prompt := tc.Prompt()
	if prompt == "" {
		return providers.SerializeResult{}, &providers.SerializationError{
			Provider: s.ProviderID,
			Reason:   "strategy_prompt metadata is required for batch serialization",
		}
	}

	filename := s.Filename
	if filename == "" {
		filename = "payload.json"
	}

	payload := map[string]any{
		"provider":    string(s.ProviderID),
		"strategy_id": tc.Request.StrategyID.String(),
		"task_id":     tc.Task.ID.String(),
		"prompt":      prompt,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return providers.SerializeResult{}, &providers.SerializationError{
			Provider: s.ProviderID,
			Reason:   "cannot encode payload",
			Err:      err,
		}
	}

	payloadPath := tc.Artifact(filename)
	if err := os.MkdirAll(filepath.Dir(payloadPath), 0o755); err != nil {
		return providers.SerializeResult{}, &providers.SerializationError{
			Provider: s.ProviderID,
			Reason:   "cannot create artifact directory",
			Err:      err,
		}
	}
	if err := os.WriteFile(payloadPath, data, 0o644); err != nil {
		return providers.SerializeResult{}, &providers.SerializationError{
			Provider: s.ProviderID,
			Reason:   "cannot write payload",
			Err:      err,
		}
	}

	return providers.SerializeResult{
		PayloadPath: payloadPath,
		ContentType: "application/json",
		Metadata:    payload,
	}, nil
}

// BatchExecutor simulates a provider's batch API: submit echoes the prompt
// into a batch results file, poll reports completion for known job ids, and
// download returns the artifact written at submit time. Used when a provider
// has no real batch API configured and in tests.
type BatchExecutor struct {
	ProviderID domain.ProviderID

	mu        sync.Mutex
	responses map[string]string // provider job id -> artifact path
}

// Submit simulates a batch submission, writing the results artifact
// immediately and registering a synthetic provider job id for it.
func (e *BatchExecutor) Submit(_ context.Context, tc providers.TaskContext, payload providers.SerializeResult) (providers.SubmitResult, error) {
	raw, err := os.ReadFile(payload.PayloadPath)
	if err != nil {
		return providers.SubmitResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "serialized payload not readable",
			Err:      err,
		}
	}
	var payloadData map[string]any
	if err := json.Unmarshal(raw, &payloadData); err != nil {
		return providers.SubmitResult{}, &providers.SerializationError{
			Provider: e.ProviderID,
			Reason:   "invalid payload JSON",
			Err:      err,
		}
	}

	jobID := fmt.Sprintf("%s-%s", tc.Task.ID, uuid.NewString()[:8])

	record := map[string]any{
		"custom_id": tc.Task.ID.String(),
		"response": map[string]any{
			"text": fmt.Sprintf(`{"recommendations": [], "analysis_summary": "simulated response for %s"}`, payloadData["strategy_id"]),
		},
	}
	line, err := json.Marshal(record)
	if err != nil {
		return providers.SubmitResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "cannot encode simulated batch record",
			Err:      err,
		}
	}

	artifactPath := tc.Artifact(fmt.Sprintf("%s_batch_results.jsonl", e.ProviderID))
	if err := os.WriteFile(artifactPath, append(line, '\n'), 0o644); err != nil {
		return providers.SubmitResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "cannot write batch results",
			Err:      err,
		}
	}

	e.mu.Lock()
	if e.responses == nil {
		e.responses = make(map[string]string)
	}
	e.responses[jobID] = artifactPath
	e.mu.Unlock()

	return providers.SubmitResult{
		ProviderJobID: jobID,
		Metadata: map[string]any{
			"payload_path":  payload.PayloadPath,
			"artifact_path": artifactPath,
		},
	}, nil
}

// Poll reports completion for job ids created by Submit.
func (e *BatchExecutor) Poll(_ context.Context, _ providers.TaskContext, providerJobID string) (providers.PollResult, error) {
	e.mu.Lock()
	_, completed := e.responses[providerJobID]
	e.mu.Unlock()

	status := "pending"
	if completed {
		status = "succeeded"
	}
	return providers.PollResult{Completed: completed, Status: status}, nil
}

// Download returns the artifact registered at submit time.
func (e *BatchExecutor) Download(_ context.Context, _ providers.TaskContext, providerJobID string) (providers.DownloadResult, error) {
	e.mu.Lock()
	path, ok := e.responses[providerJobID]
	e.mu.Unlock()

	if !ok {
		return providers.DownloadResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			JobID:    providerJobID,
			ExitCode: -1,
			Reason:   "unknown provider job id",
		}
	}
	return providers.DownloadResult{
		ArtifactPath: path,
		ContentType:  "application/jsonl",
	}, nil
}
