package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// stubRunner records the invocation and plays back canned output.
type stubRunner struct {
	name   string
	env    []string
	args   []string
	stdout []byte
	stderr []byte
	err    error
	// onRun lets codex tests write the output file the CLI would produce.
	onRun func(args []string)
}

func (s *stubRunner) Run(ctx context.Context, name string, env []string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.env = env
	s.args = args
	if s.onRun != nil {
		s.onRun(args)
	}
	return s.stdout, s.stderr, s.err
}

func testPrompt() *PromptTemplate {
	return NewPromptTemplate("file={source_file} pages={page_count}\n{text}", "document_analysis_v1")
}

func claudeStdout(t *testing.T, structured string) []byte {
	t.Helper()
	out, err := json.Marshal(map[string]any{
		"structured_output": json.RawMessage(structured),
		"model":             "claude-sonnet-4-20250514",
		"usage":             map[string]int{"input_tokens": 1200, "output_tokens": 180},
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestClaudeCLI_Analyze(t *testing.T) {
	runner := &stubRunner{stdout: claudeStdout(t,
		`{"document_type":"tax_return","title":"1998 Federal Return","date":"1999-04-10"}`)}
	p := &ClaudeCLI{Bin: "claude", Model: "claude-sonnet-4-20250514", Prompt: testPrompt(), Runner: runner}

	a, meta, err := p.Analyze(context.Background(), AnalyzeRequest{
		Text: "Form 1040...", SourceFile: "taxes/1998.pdf", PageCount: 4,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.DocumentType != "tax_return" || a.Date != "1999-04-10" {
		t.Errorf("analysis = %+v", a)
	}
	if meta.Provider != "claude-cli" || meta.Method != "auto" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.InputTokens != 1200 || meta.OutputTokens != 180 {
		t.Errorf("tokens = %d/%d, want 1200/180", meta.InputTokens, meta.OutputTokens)
	}
	if meta.PromptVersion != "document_analysis_v1" {
		t.Errorf("prompt_version = %q", meta.PromptVersion)
	}
	if meta.ChunkCount != 1 {
		t.Errorf("chunk_count = %d, want 1", meta.ChunkCount)
	}

	if runner.name != "claude" {
		t.Errorf("binary = %q", runner.name)
	}
	if got := argValue(runner.args, "-p"); !strings.Contains(got, "file=taxes/1998.pdf") || !strings.Contains(got, "pages=4") {
		t.Errorf("prompt arg = %q", got)
	}
	if got := argValue(runner.args, "--output-format"); got != "json" {
		t.Errorf("--output-format = %q", got)
	}
	schemaArg := argValue(runner.args, "--json-schema")
	var schema map[string]any
	if err := json.Unmarshal([]byte(schemaArg), &schema); err != nil {
		t.Fatalf("--json-schema is not valid JSON: %v", err)
	}
	if ap, ok := schema["additionalProperties"].(bool); !ok || ap {
		t.Error("inline schema should be the strict variant")
	}
	if !hasArg(runner.args, "--no-session-persistence") {
		t.Error("missing --no-session-persistence")
	}
}

func TestClaudeCLI_ScrubsNestingGuard(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	runner := &stubRunner{stdout: claudeStdout(t, `{"title":"x"}`)}
	p := &ClaudeCLI{Bin: "claude", Prompt: testPrompt(), Runner: runner}

	if _, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, kv := range runner.env {
		if strings.HasPrefix(kv, "CLAUDECODE=") {
			t.Fatalf("CLAUDECODE leaked into child env: %q", kv)
		}
	}
	if runner.env == nil {
		t.Fatal("env must be passed explicitly, not inherited")
	}
}

func TestClaudeCLI_RateLimitedStderr(t *testing.T) {
	runner := &stubRunner{stderr: []byte("Rate limit exceeded, try again later"), err: errors.New("exit status 1")}
	p := &ClaudeCLI{Bin: "claude", Prompt: testPrompt(), Runner: runner}

	_, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"})
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("rate-limited failure must be retryable")
	}
}

func TestClaudeCLI_ExitError(t *testing.T) {
	long := strings.Repeat("e", 2000)
	runner := &stubRunner{stderr: []byte(long), err: errors.New("exit status 2")}
	p := &ClaudeCLI{Bin: "claude", Prompt: testPrompt(), Runner: runner}

	_, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != 0 {
		t.Errorf("subprocess failure status = %d, want 0", te.Status)
	}
	if IsRetryable(err) {
		t.Error("plain exit failure must not be retryable")
	}
	if len(te.Detail) > errExcerptLimit {
		t.Errorf("detail length = %d, want <= %d", len(te.Detail), errExcerptLimit)
	}
}

func TestClaudeCLI_MalformedStdout(t *testing.T) {
	runner := &stubRunner{stdout: []byte("I could not produce JSON")}
	p := &ClaudeCLI{Bin: "claude", Prompt: testPrompt(), Runner: runner}

	_, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Raw == "" {
		t.Error("parse error should carry a raw excerpt")
	}
}

func TestScrubEnv(t *testing.T) {
	env := []string{"PATH=/bin", "CLAUDECODE=1", "HOME=/root", "CLAUDECODE_EXTRA=x"}
	got := scrubEnv(env, "CLAUDECODE")
	want := []string{"PATH=/bin", "HOME=/root", "CLAUDECODE_EXTRA=x"}
	if len(got) != len(want) {
		t.Fatalf("scrubEnv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scrubEnv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// argValue returns the argument following the given flag, or "".
func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
