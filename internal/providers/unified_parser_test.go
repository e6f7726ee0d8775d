package providers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/domain"
)

func testTaskContext(t *testing.T) TaskContext {
	t.Helper()
	dir := t.TempDir()
	request := &domain.Request{
		ID:         uuid.New(),
		StrategyID: uuid.New(),
		Metadata:   map[string]string{"strategy_prompt": "analyze tech stocks"},
	}
	task := &domain.ExecutionTask{ID: uuid.New(), RequestID: request.ID}
	return TaskContext{Request: request, Task: task, ArtifactDir: dir}
}

func writeArtifact(t *testing.T, tc TaskContext, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(tc.ArtifactDir, name), content, 0o644))
}

// recommendationTickers asserts every source emits recommendations as
// []any, the one shape callers type-assert on.
func recommendationTickers(t *testing.T, result map[string]any) []string {
	t.Helper()
	recs, ok := result["recommendations"].([]any)
	require.True(t, ok, "recommendations must be []any, got %T", result["recommendations"])
	var tickers []string
	for _, rec := range recs {
		m, ok := rec.(map[string]any)
		require.True(t, ok)
		tickers = append(tickers, m["ticker"].(string))
	}
	return tickers
}

var sampleAnalysis = map[string]any{
	"analysis_summary": "two strong candidates",
	"recommendations": []any{
		map[string]any{"ticker": "AAPL", "action": "BUY"},
		map[string]any{"ticker": "MSFT", "action": "HOLD"},
	},
}

// The same analysis must parse identically whether it arrives as extracted
// structured output, a raw CLI response, or a batch results file.
func TestUnifiedResultParser_SourceEquivalence(t *testing.T) {
	parser := NewUnifiedResultParser(domain.ProviderOpenAI)
	want := []string{"AAPL", "MSFT"}

	t.Run("structured.json", func(t *testing.T) {
		tc := testTaskContext(t)
		raw, err := json.Marshal(sampleAnalysis)
		require.NoError(t, err)
		writeArtifact(t, tc, "structured.json", raw)

		result, err := parser.Parse(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, "cli_structured", result["source"])
		assert.Equal(t, want, recommendationTickers(t, result))
	})

	t.Run("response.json with nested structured", func(t *testing.T) {
		tc := testTaskContext(t)
		raw, err := json.Marshal(map[string]any{"structured": sampleAnalysis, "exit_code": 0})
		require.NoError(t, err)
		writeArtifact(t, tc, "response.json", raw)

		result, err := parser.Parse(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, "cli_response_structured", result["source"])
		assert.Equal(t, want, recommendationTickers(t, result))
	})

	t.Run("batch results jsonl", func(t *testing.T) {
		tc := testTaskContext(t)
		text, err := json.Marshal(sampleAnalysis)
		require.NoError(t, err)
		record := map[string]any{
			"custom_id": "task-1",
			"response":  map[string]any{"text": string(text)},
		}
		raw, err := json.Marshal(record)
		require.NoError(t, err)
		writeArtifact(t, tc, "openai_batch_results.jsonl", append(raw, '\n'))

		result, err := parser.Parse(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, "batch_jsonl", result["source"])
		assert.Equal(t, 1, result["total"])
		assert.Equal(t, want, recommendationTickers(t, result))
	})
}

func TestUnifiedResultParser_DetectionOrder(t *testing.T) {
	parser := NewUnifiedResultParser(domain.ProviderOpenAI)
	tc := testTaskContext(t)

	structured, err := json.Marshal(sampleAnalysis)
	require.NoError(t, err)
	writeArtifact(t, tc, "structured.json", structured)
	writeArtifact(t, tc, "response.json", []byte(`{"recommendations": []}`))

	result, err := parser.Parse(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, "cli_structured", result["source"], "structured.json wins over response.json")
}

func TestUnifiedResultParser_ChatCompletionShape(t *testing.T) {
	parser := NewUnifiedResultParser(domain.ProviderOpenAI)
	tc := testTaskContext(t)

	content, err := json.Marshal(sampleAnalysis)
	require.NoError(t, err)
	record := map[string]any{
		"response": map[string]any{
			"body": map[string]any{
				"choices": []any{
					map[string]any{"message": map[string]any{"content": string(content)}},
				},
			},
		},
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	writeArtifact(t, tc, "openai_batch_results.jsonl", append(raw, '\n'))

	result, err := parser.Parse(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, recommendationTickers(t, result))
}

func TestUnifiedResultParser_CandidatePartsShape(t *testing.T) {
	parser := NewUnifiedResultParser(domain.ProviderGemini)
	tc := testTaskContext(t)

	payload, err := json.Marshal(sampleAnalysis)
	require.NoError(t, err)
	half := len(payload) / 2
	record := map[string]any{
		"response": map[string]any{
			"body": map[string]any{
				"candidates": []any{
					map[string]any{
						"content": map[string]any{
							"parts": []any{
								map[string]any{"text": string(payload[:half])},
								map[string]any{"text": string(payload[half:])},
							},
						},
					},
				},
			},
		},
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	writeArtifact(t, tc, "gemini_batch_results.jsonl", append(raw, '\n'))

	result, err := parser.Parse(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, recommendationTickers(t, result))
}

func TestUnifiedResultParser_Errors(t *testing.T) {
	parser := NewUnifiedResultParser(domain.ProviderOpenAI)

	t.Run("no recognizable file", func(t *testing.T) {
		tc := testTaskContext(t)
		writeArtifact(t, tc, "notes.txt", []byte("nothing useful"))

		_, err := parser.Parse(context.Background(), tc)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Files, "notes.txt")
	})

	t.Run("malformed batch line", func(t *testing.T) {
		tc := testTaskContext(t)
		writeArtifact(t, tc, "openai_batch_results.jsonl", []byte("{not json}\n"))

		_, err := parser.Parse(context.Background(), tc)
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("unrecognized record is skipped", func(t *testing.T) {
		tc := testTaskContext(t)
		writeArtifact(t, tc, "openai_batch_results.jsonl", []byte(`{"custom_id": "x", "unrelated": true}`+"\n"))

		result, err := parser.Parse(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, recommendationTickers(t, result))
	})
}
