package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func codexStdout() []byte {
	return []byte(`{"type":"turn.started"}
not json at all
{"type":"item.completed","item":{"kind":"reasoning"}}
{"type":"turn.completed","usage":{"input_tokens":900,"output_tokens":140}}
`)
}

func TestCodexCLI_Analyze(t *testing.T) {
	var schemaPath, outPath string
	runner := &stubRunner{
		stdout: codexStdout(),
		onRun: func(args []string) {
			schemaPath = argValue(args, "--output-schema")
			outPath = argValue(args, "-o")
			structured := []byte(`{"document_type":"trust_agreement","title":"Family Trust"}`)
			if err := os.WriteFile(outPath, structured, 0o600); err != nil {
				t.Errorf("write stub output: %v", err)
			}
		},
	}
	p := &CodexCLI{Bin: "codex", Model: "gpt-5", Prompt: testPrompt(), Runner: runner}

	a, meta, err := p.Analyze(context.Background(), AnalyzeRequest{
		Text: "THIS TRUST AGREEMENT...", SourceFile: "legal/trust.pdf", PageCount: 12,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.DocumentType != "trust_agreement" || a.Title != "Family Trust" {
		t.Errorf("analysis = %+v", a)
	}
	if meta.Provider != "codex" || meta.Model != "gpt-5" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.InputTokens != 900 || meta.OutputTokens != 140 {
		t.Errorf("tokens = %d/%d, want 900/140", meta.InputTokens, meta.OutputTokens)
	}

	if runner.args[0] != "exec" {
		t.Errorf("first arg = %q, want exec", runner.args[0])
	}
	if !hasArg(runner.args, "--skip-git-repo-check") || !hasArg(runner.args, "--ephemeral") {
		t.Errorf("missing sandbox flags in %v", runner.args)
	}
	if got := argValue(runner.args, "-m"); got != "gpt-5" {
		t.Errorf("-m = %q", got)
	}

	// Both temp files must be gone after the call returns.
	if _, err := os.Stat(schemaPath); !os.IsNotExist(err) {
		t.Errorf("schema temp file left behind: %s", schemaPath)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Errorf("output temp file left behind: %s", outPath)
	}
}

func TestCodexCLI_SchemaFileIsStrict(t *testing.T) {
	var schemaJSON []byte
	runner := &stubRunner{
		stdout: codexStdout(),
		onRun: func(args []string) {
			b, err := os.ReadFile(argValue(args, "--output-schema"))
			if err != nil {
				t.Errorf("read schema file: %v", err)
				return
			}
			schemaJSON = b
			os.WriteFile(argValue(args, "-o"), []byte(`{"title":"x"}`), 0o600)
		},
	}
	p := &CodexCLI{Bin: "codex", Prompt: testPrompt(), Runner: runner}

	if _, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		t.Fatalf("schema file is not valid JSON: %v", err)
	}
	if ap, ok := schema["additionalProperties"].(bool); !ok || ap {
		t.Error("schema file should be the strict variant")
	}
}

func TestCodexCLI_DefaultModelLabel(t *testing.T) {
	runner := &stubRunner{
		stdout: codexStdout(),
		onRun: func(args []string) {
			os.WriteFile(argValue(args, "-o"), []byte(`{"title":"x"}`), 0o600)
		},
	}
	p := &CodexCLI{Bin: "codex", Prompt: testPrompt(), Runner: runner}

	_, meta, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if meta.Model != "codex-default" {
		t.Errorf("model = %q, want codex-default", meta.Model)
	}
	if hasArg(runner.args, "-m") {
		t.Error("-m must be omitted when no model is configured")
	}
}

func TestCodexCLI_MissingOutputFile(t *testing.T) {
	// CLI "succeeds" but never writes the output file.
	runner := &stubRunner{stdout: codexStdout()}
	p := &CodexCLI{Bin: "codex", Prompt: testPrompt(), Runner: runner}

	_, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestCodexCLI_ExitErrorClassified(t *testing.T) {
	runner := &stubRunner{stderr: []byte("quota exhausted for today"), err: errors.New("exit status 1")}
	p := &CodexCLI{Bin: "codex", Prompt: testPrompt(), Runner: runner}

	_, _, err := p.Analyze(context.Background(), AnalyzeRequest{Text: "t"})
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError for quota stderr, got %v", err)
	}
}

func TestScanCodexUsage(t *testing.T) {
	in, out := scanCodexUsage(codexStdout())
	if in != 900 || out != 140 {
		t.Errorf("usage = %d/%d, want 900/140", in, out)
	}

	in, out = scanCodexUsage([]byte("no events here\n"))
	if in != 0 || out != 0 {
		t.Errorf("usage without turn.completed = %d/%d, want 0/0", in, out)
	}
}
