package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Ollama analyzes documents through a local OpenAI-compatible chat-completions
// endpoint, requesting a strict JSON-schema-constrained completion.
type Ollama struct {
	BaseURL string // e.g. http://localhost:11434/v1
	Model   string
	Prompt  *PromptTemplate
	Timeout time.Duration
	Client  *http.Client
	Log     *slog.Logger
}

func (p *Ollama) Name() string { return "ollama" }

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *Ollama) Analyze(ctx context.Context, req AnalyzeRequest) (DocumentAnalysis, InferenceMetadata, error) {
	prompt := p.Prompt.Build(req.SourceFile, req.PageCount, req.Text)
	schema := MakeStrict(AnalysisSchema())

	body := map[string]any{
		"model": p.Model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "document_analysis",
				"strict": true,
				"schema": schema,
			},
		},
		"stream": false,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	endpoint := strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger().Debug("analyze.ollama.start",
		"source_file", req.SourceFile, "pages", req.PageCount, "text_len", len(req.Text))

	resp, err := p.client().Do(httpReq)
	if err != nil {
		// Connection and timeout errors keep their net/url error chain so
		// the retry classifier can see them.
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("ollama request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger().Warn("analyze.ollama.body_close", "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return DocumentAnalysis{}, InferenceMetadata{},
			classifyHTTP(p.Name(), resp.StatusCode, string(raw))
	}

	var cc chatCompletion
	if err := json.Unmarshal(raw, &cc); err != nil {
		return DocumentAnalysis{}, InferenceMetadata{},
			&ParseError{Provider: p.Name(), Raw: excerpt(string(raw)), Err: err}
	}
	if len(cc.Choices) == 0 {
		return DocumentAnalysis{}, InferenceMetadata{},
			&ParseError{Provider: p.Name(), Raw: excerpt(string(raw)), Err: fmt.Errorf("no choices in response")}
	}

	analysis, err := decodeAnalysis(p.Name(), []byte(cc.Choices[0].Message.Content))
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, err
	}

	model := cc.Model
	if model == "" {
		model = p.Model
	}
	meta := InferenceMetadata{
		Method:               "auto",
		Provider:             p.Name(),
		Model:                model,
		PromptVersion:        p.Prompt.Version(),
		Timestamp:            nowUTC(),
		InputTokens:          cc.Usage.PromptTokens,
		OutputTokens:         cc.Usage.CompletionTokens,
		EstimatedInputTokens: estimateInputTokens(req.Text),
		ChunkCount:           1,
	}
	return analysis, meta, nil
}

// classifyHTTP checks the error body for rate-limit vocabulary before falling
// back to a status-carrying TransportError. A 429 is retryable either way:
// the status itself is in the classified set.
func classifyHTTP(provider string, status int, body string) error {
	if isRateLimitText(body) {
		return &RateLimitedError{Provider: provider, Detail: fmt.Sprintf("status %d: %s", status, excerpt(body))}
	}
	return &TransportError{Provider: provider, Status: status, Detail: excerpt(body)}
}

func (p *Ollama) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *Ollama) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Ollama) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}
