package local

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/providers"
)

// cliScript writes a shell script into a temp dir and returns a BaseCommand
// that executes it via sh. The task prompt arrives as the script's first
// positional argument.
func cliScript(t *testing.T, body string) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake_cli.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return []string{"sh", path}
}

func TestCommandCliExecutor_Run(t *testing.T) {
	t.Run("plain text output", func(t *testing.T) {
		executor := &CommandCliExecutor{
			ProviderID:  "gemini",
			BaseCommand: cliScript(t, `echo "no json here"`),
		}
		tc := localTaskContext(t, "research prompt")

		result, err := executor.Run(context.Background(), tc, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode)
		assert.Empty(t, result.StderrPath)

		prompt, err := os.ReadFile(tc.Artifact("prompt.txt"))
		require.NoError(t, err)
		assert.Equal(t, "research prompt", string(prompt))

		raw, err := os.ReadFile(tc.Artifact("response.json"))
		require.NoError(t, err)
		var response map[string]any
		require.NoError(t, json.Unmarshal(raw, &response))
		assert.Equal(t, "no json here\n", response["raw_stdout"])
		assert.Equal(t, float64(0), response["exit_code"])
	})

	t.Run("json output with fenced block", func(t *testing.T) {
		executor := &CommandCliExecutor{
			ProviderID: "gemini",
			BaseCommand: cliScript(t, `cat <<'EOF'
{"response": "analysis follows\n`+"```"+`json\n{\"recommendations\": [{\"ticker\": \"AAPL\"}]}\n`+"```"+`"}
EOF`),
		}
		tc := localTaskContext(t, "research prompt")

		result, err := executor.Run(context.Background(), tc, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, tc.Artifact("structured.json"), result.Metadata["structured_path"])

		raw, err := os.ReadFile(tc.Artifact("structured.json"))
		require.NoError(t, err)
		var structured map[string]any
		require.NoError(t, json.Unmarshal(raw, &structured))
		recs, ok := structured["recommendations"].([]any)
		require.True(t, ok)
		require.Len(t, recs, 1)
	})

	t.Run("non-zero exit captured", func(t *testing.T) {
		executor := &CommandCliExecutor{
			ProviderID:  "gemini",
			BaseCommand: cliScript(t, `echo "boom" >&2; exit 7`),
		}
		tc := localTaskContext(t, "research prompt")

		result, err := executor.Run(context.Background(), tc, nil)
		require.NoError(t, err)
		assert.Equal(t, 7, result.ExitCode)
		assert.Equal(t, tc.Artifact("stderr.txt"), result.StderrPath)

		stderr, err := os.ReadFile(result.StderrPath)
		require.NoError(t, err)
		assert.Equal(t, "boom\n", string(stderr))
	})

	t.Run("missing prompt", func(t *testing.T) {
		executor := &CommandCliExecutor{
			ProviderID:  "gemini",
			BaseCommand: cliScript(t, "true"),
		}
		tc := localTaskContext(t, "")

		_, err := executor.Run(context.Background(), tc, nil)
		var execErr *providers.ExecutionError
		require.ErrorAs(t, err, &execErr)
	})

	t.Run("no command configured", func(t *testing.T) {
		executor := &CommandCliExecutor{ProviderID: "gemini"}
		tc := localTaskContext(t, "research prompt")

		_, err := executor.Run(context.Background(), tc, nil)
		var execErr *providers.ExecutionError
		require.ErrorAs(t, err, &execErr)
	})

	t.Run("binary not found", func(t *testing.T) {
		executor := &CommandCliExecutor{
			ProviderID:  "gemini",
			BaseCommand: []string{"definitely-not-a-real-binary-xyz"},
		}
		tc := localTaskContext(t, "research prompt")

		_, err := executor.Run(context.Background(), tc, nil)
		var execErr *providers.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, -1, execErr.ExitCode)
	})
}

func TestExtractStructuredJSON(t *testing.T) {
	fence := "```"

	t.Run("valid block", func(t *testing.T) {
		text := "preamble\n" + fence + "json\n{\"analysis_summary\": \"ok\"}\n" + fence + "\ntrailer"
		structured := extractStructuredJSON(text)
		require.NotNil(t, structured)
		assert.Equal(t, "ok", structured["analysis_summary"])
	})

	t.Run("no marker", func(t *testing.T) {
		assert.Nil(t, extractStructuredJSON("plain prose, no fences"))
	})

	t.Run("unterminated block", func(t *testing.T) {
		assert.Nil(t, extractStructuredJSON(fence+"json\n{\"a\": 1}"))
	})

	t.Run("invalid json inside block", func(t *testing.T) {
		assert.Nil(t, extractStructuredJSON(fence+"json\nnot json at all\n"+fence))
	})
}
