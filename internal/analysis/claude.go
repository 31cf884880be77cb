package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ClaudeCLI analyzes documents by spawning the Claude Code CLI with the prompt
// and the serialized strict schema passed inline as arguments.
type ClaudeCLI struct {
	Bin     string
	Model   string
	Prompt  *PromptTemplate
	Timeout time.Duration
	Runner  Runner
	Log     *slog.Logger
}

func (p *ClaudeCLI) Name() string { return "claude-cli" }

// claudeEnvelope is the CLI's --output-format json stdout shape.
type claudeEnvelope struct {
	StructuredOutput json.RawMessage `json:"structured_output"`
	Model            string          `json:"model"`
	Usage            struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *ClaudeCLI) Analyze(ctx context.Context, req AnalyzeRequest) (DocumentAnalysis, InferenceMetadata, error) {
	prompt := p.Prompt.Build(req.SourceFile, req.PageCount, req.Text)
	schemaJSON, err := json.Marshal(MakeStrict(AnalysisSchema()))
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("marshal schema: %w", err)
	}

	args := []string{
		"-p", prompt,
		"--output-format", "json",
		"--json-schema", string(schemaJSON),
		"--model", p.Model,
		"--no-session-persistence",
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	p.logger().Debug("analyze.claude.start",
		"source_file", req.SourceFile, "pages", req.PageCount, "text_len", len(req.Text))

	// Unset CLAUDECODE so the CLI accepts being spawned from inside a
	// Claude session; it refuses nested invocation otherwise.
	stdout, stderr, err := p.runner().Run(ctx, p.Bin, scrubEnv(os.Environ(), "CLAUDECODE"), args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("claude CLI: %w", ctxErr)
		}
		detail := string(stderr)
		if strings.TrimSpace(detail) == "" {
			detail = "no stderr"
		}
		return DocumentAnalysis{}, InferenceMetadata{},
			classifyTransport(p.Name(), 0, fmt.Sprintf("claude CLI exited: %v: %s", err, detail))
	}

	var env claudeEnvelope
	if err := json.Unmarshal(stdout, &env); err != nil {
		return DocumentAnalysis{}, InferenceMetadata{},
			&ParseError{Provider: p.Name(), Raw: excerpt(string(stdout)), Err: err}
	}
	analysis, err := decodeAnalysis(p.Name(), env.StructuredOutput)
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, err
	}

	model := env.Model
	if model == "" {
		model = p.Model
	}
	meta := InferenceMetadata{
		Method:               "auto",
		Provider:             p.Name(),
		Model:                model,
		PromptVersion:        p.Prompt.Version(),
		Timestamp:            nowUTC(),
		InputTokens:          env.Usage.InputTokens,
		OutputTokens:         env.Usage.OutputTokens,
		EstimatedInputTokens: estimateInputTokens(req.Text),
		ChunkCount:           1,
	}
	return analysis, meta, nil
}

func (p *ClaudeCLI) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *ClaudeCLI) runner() Runner {
	if p.Runner != nil {
		return p.Runner
	}
	return execRunner{}
}

func (p *ClaudeCLI) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// scrubEnv returns env with every "key=..." entry for the given key removed.
func scrubEnv(env []string, key string) []string {
	out := make([]string, 0, len(env))
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
