package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodexCLI analyzes documents via the Codex CLI. Codex runs sandboxed and
// cannot take the schema or deliver output inline: both travel through
// uniquely named temporary files, removed on every exit path.
type CodexCLI struct {
	Bin     string
	Model   string
	Prompt  *PromptTemplate
	Timeout time.Duration
	Runner  Runner
	Log     *slog.Logger
}

func (p *CodexCLI) Name() string { return "codex" }

// codexEvent is one line of the CLI's newline-delimited JSON event stream.
// Usage arrives on the turn.completed event.
type codexEvent struct {
	Type  string `json:"type"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *CodexCLI) Analyze(ctx context.Context, req AnalyzeRequest) (DocumentAnalysis, InferenceMetadata, error) {
	prompt := p.Prompt.Build(req.SourceFile, req.PageCount, req.Text)
	schemaJSON, err := json.Marshal(MakeStrict(AnalysisSchema()))
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("marshal schema: %w", err)
	}

	tmp := os.TempDir()
	schemaPath := filepath.Join(tmp, "codex-schema-"+uuid.NewString()+".json")
	outPath := filepath.Join(tmp, "codex-out-"+uuid.NewString()+".json")
	defer os.Remove(schemaPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(schemaPath, schemaJSON, 0o600); err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("write schema file: %w", err)
	}

	args := []string{
		"exec", prompt,
		"--json",
		"--output-schema", schemaPath,
		"-o", outPath,
		"--skip-git-repo-check",
		"--ephemeral",
	}
	if p.Model != "" {
		args = append(args, "-m", p.Model)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	p.logger().Debug("analyze.codex.start",
		"source_file", req.SourceFile, "pages", req.PageCount, "text_len", len(req.Text))

	stdout, stderr, err := p.runner().Run(ctx, p.Bin, nil, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("codex CLI: %w", ctxErr)
		}
		detail := string(stderr)
		if strings.TrimSpace(detail) == "" {
			detail = "no stderr"
		}
		return DocumentAnalysis{}, InferenceMetadata{},
			classifyTransport(p.Name(), 0, fmt.Sprintf("codex CLI exited: %v: %s", err, detail))
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{},
			&ParseError{Provider: p.Name(), Raw: "", Err: fmt.Errorf("read output file: %w", err)}
	}
	analysis, err := decodeAnalysis(p.Name(), bytes.TrimSpace(raw))
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, err
	}

	inputTokens, outputTokens := scanCodexUsage(stdout)

	model := p.Model
	if model == "" {
		model = "codex-default"
	}
	meta := InferenceMetadata{
		Method:               "auto",
		Provider:             p.Name(),
		Model:                model,
		PromptVersion:        p.Prompt.Version(),
		Timestamp:            nowUTC(),
		InputTokens:          inputTokens,
		OutputTokens:         outputTokens,
		EstimatedInputTokens: estimateInputTokens(req.Text),
		ChunkCount:           1,
	}
	return analysis, meta, nil
}

// scanCodexUsage walks the JSONL event stream for the turn-completion event.
// Lines that are not valid JSON are skipped, not fatal.
func scanCodexUsage(stdout []byte) (inputTokens, outputTokens int) {
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev codexEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.Type == "turn.completed" {
			inputTokens = ev.Usage.InputTokens
			outputTokens = ev.Usage.OutputTokens
		}
	}
	return inputTokens, outputTokens
}

func (p *CodexCLI) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *CodexCLI) runner() Runner {
	if p.Runner != nil {
		return p.Runner
	}
	return execRunner{}
}

func (p *CodexCLI) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}
