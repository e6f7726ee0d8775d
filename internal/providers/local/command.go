package local

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/providers"
)

// CommandCliExecutor runs a research prompt through a local CLI binary.
// It writes prompt.txt before spawning the process, captures stdout and
// stderr, and writes response.json with the full invocation record. When the
// tool's output embeds a recognizable JSON block it is extracted into
// structured.json so the unified parser can pick it up directly.
type CommandCliExecutor struct {
	ProviderID  domain.ProviderID
	BaseCommand []string // e.g. {"gemini", "--output-format", "json", "-y"}
}

// Run executes the CLI tool with the task prompt appended to BaseCommand.
// A non-zero exit is not an error here; the runtime decides how to treat it.
func (e *CommandCliExecutor) Run(ctx context.Context, tc providers.TaskContext, _ *providers.SerializeResult) (providers.CliResult, error) {
	prompt := tc.Prompt()
	if prompt == "" {
		return providers.CliResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "strategy prompt missing from request metadata",
		}
	}
	if len(e.BaseCommand) == 0 {
		return providers.CliResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "no CLI command configured",
		}
	}

	if err := os.MkdirAll(tc.ArtifactDir, 0o755); err != nil {
		return providers.CliResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "cannot create artifact directory",
			Err:      err,
		}
	}
	promptPath := tc.Artifact("prompt.txt")
	if err := os.WriteFile(promptPath, []byte(prompt), 0o644); err != nil {
		return providers.CliResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "cannot write prompt artifact",
			Err:      err,
		}
	}

	args := append(append([]string{}, e.BaseCommand[1:]...), prompt)
	cmd := exec.CommandContext(ctx, e.BaseCommand[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return providers.CliResult{}, &providers.ExecutionError{
				Provider: e.ProviderID,
				ExitCode: -1,
				Reason:   "CLI process failed to start",
				Err:      runErr,
			}
		}
		exitCode = exitErr.ExitCode()
	}

	stdoutText := stdout.String()
	stderrText := stderr.String()

	response := map[string]any{
		"provider":  string(e.ProviderID),
		"prompt":    prompt,
		"exit_code": exitCode,
		"command":   append([]string{e.BaseCommand[0]}, args...),
	}

	// Tools that emit JSON on stdout get their output attached verbatim;
	// anything else is kept as raw text for diagnosis.
	var cliOutput map[string]any
	if stdoutText != "" {
		if err := json.Unmarshal([]byte(stdoutText), &cliOutput); err == nil {
			response["cli_output"] = cliOutput
		} else {
			response["raw_stdout"] = stdoutText
			cliOutput = nil
		}
	}

	var structured map[string]any
	if cliOutput != nil {
		if responseText, ok := cliOutput["response"].(string); ok {
			structured = extractStructuredJSON(responseText)
			if structured != nil {
				response["structured"] = structured
			}
		}
	}

	stderrPath := ""
	if stderrText != "" {
		response["stderr"] = stderrText
		stderrPath = tc.Artifact("stderr.txt")
		if err := os.WriteFile(stderrPath, []byte(stderrText), 0o644); err != nil {
			return providers.CliResult{}, &providers.ExecutionError{
				Provider: e.ProviderID,
				ExitCode: -1,
				Reason:   "cannot write stderr artifact",
				Err:      err,
			}
		}
	}

	responsePath := tc.Artifact("response.json")
	responseData, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return providers.CliResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "cannot encode response artifact",
			Err:      err,
		}
	}
	if err := os.WriteFile(responsePath, responseData, 0o644); err != nil {
		return providers.CliResult{}, &providers.ExecutionError{
			Provider: e.ProviderID,
			ExitCode: -1,
			Reason:   "cannot write response artifact",
			Err:      err,
		}
	}

	structuredPath := ""
	if structured != nil {
		structuredPath = tc.Artifact("structured.json")
		structuredData, err := json.MarshalIndent(structured, "", "  ")
		if err == nil {
			if err := os.WriteFile(structuredPath, structuredData, 0o644); err != nil {
				return providers.CliResult{}, &providers.ExecutionError{
					Provider: e.ProviderID,
					ExitCode: -1,
					Reason:   "cannot write structured artifact",
					Err:      err,
				}
			}
		}
	}

	return providers.CliResult{
		ExitCode:   exitCode,
		StderrPath: stderrPath,
		Metadata: map[string]any{
			"command":         strings.Join(append([]string{e.BaseCommand[0]}, args...), " "),
			"response_path":   responsePath,
			"structured_path": structuredPath,
		},
	}, nil
}

// extractStructuredJSON pulls the first ```json fenced block out of a
// response text and decodes it. Returns nil when no valid block is present.
func extractStructuredJSON(text string) map[string]any {
	const marker = "```json"
	start := strings.Index(text, marker)
	if start == -1 {
		return nil
	}
	rest := text[start+len(marker):]
	newline := strings.Index(rest, "\n")
	if newline == -1 {
		return nil
	}
	body := rest[newline+1:]
	end := strings.Index(body, "```")
	if end == -1 {
		return nil
	}
	var structured map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body[:end])), &structured); err != nil {
		return nil
	}
	return structured
}
