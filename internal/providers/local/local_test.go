package local

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/providers"
)

func localTaskContext(t *testing.T, prompt string) providers.TaskContext {
	t.Helper()
	requestID := uuid.New()
	metadata := map[string]string{}
	if prompt != "" {
		metadata["strategy_prompt"] = prompt
	}
	return providers.TaskContext{
		Request: &domain.Request{
			ID:         requestID,
			StrategyID: uuid.New(),
			Metadata:   metadata,
		},
		Task: &domain.ExecutionTask{
			ID:        uuid.New(),
			RequestID: requestID,
			Sequence:  1,
		},
		ArtifactDir: t.TempDir(),
	}
}

func TestJSONSerializer_Serialize(t *testing.T) {
	serializer := &JSONSerializer{ProviderID: "openai"}

	t.Run("writes payload file", func(t *testing.T) {
		tc := localTaskContext(t, "analyze these holdings")

		result, err := serializer.Serialize(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, tc.Artifact("payload.json"), result.PayloadPath)
		assert.Equal(t, "application/json", result.ContentType)

		raw, err := os.ReadFile(result.PayloadPath)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "openai", payload["provider"])
		assert.Equal(t, tc.Request.StrategyID.String(), payload["strategy_id"])
		assert.Equal(t, tc.Task.ID.String(), payload["task_id"])
		assert.Equal(t, "analyze these holdings", payload["prompt"])
	})

	t.Run("custom filename", func(t *testing.T) {
		custom := &JSONSerializer{ProviderID: "openai", Filename: "batch_input.json"}
		tc := localTaskContext(t, "prompt")

		result, err := custom.Serialize(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, tc.Artifact("batch_input.json"), result.PayloadPath)
	})

	t.Run("missing prompt", func(t *testing.T) {
		tc := localTaskContext(t, "")

		_, err := serializer.Serialize(context.Background(), tc)
		var serErr *providers.SerializationError
		require.ErrorAs(t, err, &serErr)
		assert.Equal(t, domain.ProviderID("openai"), serErr.Provider)
	})
}

func TestBatchExecutor_Cycle(t *testing.T) {
	serializer := &JSONSerializer{ProviderID: "openai"}
	executor := &BatchExecutor{ProviderID: "openai"}
	tc := localTaskContext(t, "weekly research pass")

	payload, err := serializer.Serialize(context.Background(), tc)
	require.NoError(t, err)

	submitted, err := executor.Submit(context.Background(), tc, payload)
	require.NoError(t, err)
	require.NotEmpty(t, submitted.ProviderJobID)
	assert.True(t, strings.HasPrefix(submitted.ProviderJobID, tc.Task.ID.String()))

	poll, err := executor.Poll(context.Background(), tc, submitted.ProviderJobID)
	require.NoError(t, err)
	assert.True(t, poll.Completed)
	assert.Equal(t, "succeeded", poll.Status)

	download, err := executor.Download(context.Background(), tc, submitted.ProviderJobID)
	require.NoError(t, err)
	assert.Equal(t, tc.Artifact("openai_batch_results.jsonl"), download.ArtifactPath)

	raw, err := os.ReadFile(download.ArtifactPath)
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, tc.Task.ID.String(), record["custom_id"])
	response, ok := record["response"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, response["text"], tc.Request.StrategyID.String())
}

func TestBatchExecutor_UnknownJob(t *testing.T) {
	executor := &BatchExecutor{ProviderID: "openai"}
	tc := localTaskContext(t, "prompt")

	poll, err := executor.Poll(context.Background(), tc, "batch-does-not-exist")
	require.NoError(t, err)
	assert.False(t, poll.Completed)
	assert.Equal(t, "pending", poll.Status)

	_, err = executor.Download(context.Background(), tc, "batch-does-not-exist")
	var execErr *providers.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "batch-does-not-exist", execErr.JobID)
}

func TestBatchExecutor_MissingPayload(t *testing.T) {
	executor := &BatchExecutor{ProviderID: "openai"}
	tc := localTaskContext(t, "prompt")

	_, err := executor.Submit(context.Background(), tc, providers.SerializeResult{
		PayloadPath: tc.Artifact("never-written.json"),
	})
	var execErr *providers.ExecutionError
	require.ErrorAs(t, err, &execErr)
}
