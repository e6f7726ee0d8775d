package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aristath/folios/internal/domain"
)

// maxUnwrapDepth bounds the recursive payload walk so malformed or
// pathologically nested provider output cannot recurse without limit.
const maxUnwrapDepth = 16

// UnifiedResultParser normalizes the many ways providers encode structured
// output into one canonical result map with a "recommendations" list.
//
// Detection order, first match wins:
//   - structured.json: already-extracted structured output
//   - response.json: full raw response, preferring a nested "structured" field
//   - <provider>_batch_results.jsonl: newline-delimited raw batch records
type UnifiedResultParser struct {
	providerID domain.ProviderID
}

// NewUnifiedResultParser creates a parser bound to one provider id. The id
// only selects the batch results filename; the record formats handled are
// provider-agnostic.
func NewUnifiedResultParser(providerID domain.ProviderID) *UnifiedResultParser {
	return &UnifiedResultParser{providerID: providerID}
}

// Parse reads the task's artifact directory and returns the canonical result.
func (p *UnifiedResultParser) Parse(_ context.Context, tc TaskContext) (map[string]any, error) {
	structuredPath := tc.Artifact("structured.json")
	if fileExists(structuredPath) {
		return p.parseStructured(tc, structuredPath)
	}

	responsePath := tc.Artifact("response.json")
	if fileExists(responsePath) {
		return p.parseResponse(tc, responsePath)
	}

	batchPath := tc.Artifact(fmt.Sprintf("%s_batch_results.jsonl", p.providerID))
	if fileExists(batchPath) {
		return p.parseBatchJSONL(tc, batchPath)
	}

	return nil, &ParseError{
		Dir:    tc.ArtifactDir,
		Files:  listDir(tc.ArtifactDir),
		Reason: "no parseable results found",
	}
}

func (p *UnifiedResultParser) envelope(tc TaskContext, source string) map[string]any {
	return map[string]any{
		"provider":    string(p.providerID),
		"request_id":  tc.Request.ID.String(),
		"task_id":     tc.Task.ID.String(),
		"strategy_id": tc.Request.StrategyID.String(),
		"prompt":      tc.Prompt(),
		"source":      source,
	}
}

func (p *UnifiedResultParser) parseStructured(tc TaskContext, path string) (map[string]any, error) {
	data, err := readJSONObject(path)
	if err != nil {
		return nil, err
	}
	result := p.envelope(tc, "cli_structured")
	for key, value := range data {
		result[key] = value
	}
	return result, nil
}

func (p *UnifiedResultParser) parseResponse(tc TaskContext, path string) (map[string]any, error) {
	data, err := readJSONObject(path)
	if err != nil {
		return nil, err
	}

	if structured, ok := data["structured"].(map[string]any); ok {
		result := p.envelope(tc, "cli_response_structured")
		for key, value := range structured {
			result[key] = value
		}
		return result, nil
	}

	recommendations, _ := data["recommendations"].([]any)
	if recommendations == nil {
		recommendations = []any{}
	}
	result := p.envelope(tc, "cli_response_raw")
	result["recommendations"] = recommendations
	result["raw_data"] = data
	return result, nil
}

func (p *UnifiedResultParser) parseBatchJSONL(tc TaskContext, path string) (map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Dir: tc.ArtifactDir, Reason: "cannot open batch results", Err: err}
	}
	defer file.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, &ParseError{Dir: tc.ArtifactDir, Reason: "malformed JSON in batch results", Err: err}
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Dir: tc.ArtifactDir, Reason: "failed reading batch results", Err: err}
	}

	// Recommendations are emitted as []any so every source produces the same
	// shape and callers need a single type assertion.
	recommendations := make([]any, 0)
	for _, record := range records {
		for _, rec := range extractRecommendations(record) {
			recommendations = append(recommendations, rec)
		}
	}

	result := p.envelope(tc, "batch_jsonl")
	result["total"] = len(records)
	result["records"] = records
	result["recommendations"] = recommendations
	return result, nil
}

// extractRecommendations pulls recommendation objects out of one raw batch
// record. Records that fail to yield anything recognizable are skipped, never
// fatal - tolerating irregular shapes is the whole point of this parser.
func extractRecommendations(record map[string]any) []map[string]any {
	var out []map[string]any

	if _, ok := record["recommendations"]; ok {
		return unwrapPayload(record, 0)
	}

	response, ok := record["response"].(map[string]any)
	if !ok {
		return nil
	}

	// Simulator-style responses carry a JSON string under response.text.
	if text, ok := response["text"].(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			out = append(out, unwrapPayload(decoded, 0)...)
		}
		return out
	}

	body, ok := response["body"].(map[string]any)
	if !ok {
		return nil
	}

	// Chat-completion shape: choices[].message.content holds either a JSON
	// string or a list of content blocks with text fragments.
	if choices, ok := body["choices"].([]any); ok {
		for _, rawChoice := range choices {
			choice, ok := rawChoice.(map[string]any)
			if !ok {
				continue
			}
			message, ok := choice["message"].(map[string]any)
			if !ok {
				continue
			}
			switch content := message["content"].(type) {
			case string:
				var decoded any
				if err := json.Unmarshal([]byte(content), &decoded); err == nil {
					out = append(out, unwrapPayload(decoded, 0)...)
				}
			case []any:
				for _, rawBlock := range content {
					block, ok := rawBlock.(map[string]any)
					if !ok {
						continue
					}
					if text, ok := block["text"].(string); ok {
						out = append(out, unwrapPayload(text, 0)...)
					}
				}
			}
		}
	}

	// Generative-model shape: candidates[].content.parts[] text fragments
	// must be concatenated before decoding.
	if candidates, ok := body["candidates"].([]any); ok {
		for _, rawCandidate := range candidates {
			candidate, ok := rawCandidate.(map[string]any)
			if !ok {
				continue
			}
			if content, ok := candidate["content"].(map[string]any); ok {
				out = append(out, unwrapPayload(content, 0)...)
			}
		}
	}

	return out
}

// unwrapPayload recursively walks a generic JSON value collecting
// recommendation objects. Strings are JSON-decoded and re-walked; lists are
// walked element-wise; maps are probed for the shapes providers actually
// produce. Depth is bounded by maxUnwrapDepth.
func unwrapPayload(payload any, depth int) []map[string]any {
	if payload == nil || depth > maxUnwrapDepth {
		return nil
	}

	switch v := payload.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil
		}
		return unwrapPayload(decoded, depth+1)

	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, unwrapPayload(item, depth+1)...)
		}
		return out

	case map[string]any:
		var out []map[string]any

		if recs, ok := v["recommendations"].([]any); ok {
			for _, rec := range recs {
				if m, ok := rec.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}

		// Some responses wrap their fields under a "properties" object.
		if properties, ok := v["properties"].(map[string]any); ok {
			if recs, ok := properties["recommendations"].([]any); ok {
				for _, rec := range recs {
					if m, ok := rec.(map[string]any); ok {
						out = append(out, m)
					}
				}
			}
		}

		for _, key := range []string{"data", "result", "output"} {
			if nested, ok := v[key]; ok && nested != nil {
				out = append(out, unwrapPayload(nested, depth+1)...)
			}
		}

		if content, ok := v["content"].(map[string]any); ok {
			out = append(out, unwrapPayload(content, depth+1)...)
		}

		// Multi-part responses: concatenate the text fragments, then decode.
		if parts, ok := v["parts"].([]any); ok {
			var chunks []string
			for _, rawPart := range parts {
				if part, ok := rawPart.(map[string]any); ok {
					if text, ok := part["text"].(string); ok {
						chunks = append(chunks, text)
					}
				}
			}
			if len(chunks) > 0 {
				out = append(out, unwrapPayload(strings.Join(chunks, ""), depth+1)...)
			}
		}

		return out
	}

	return nil
}

func readJSONObject(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("malformed JSON in %s", path), Err: err}
	}
	return data, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}
