package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PromptTemplate is the externally maintained analysis prompt. The version is
// derived from the file name stem (e.g. prompts/document_analysis_v1.txt) and
// recorded in every manifest so results can be traced to the prompt that
// produced them.
type PromptTemplate struct {
	text    string
	version string
}

// LoadPromptTemplate reads a prompt template from disk. A missing or
// unreadable file is a configuration problem, not a transport one.
func LoadPromptTemplate(path string) (*PromptTemplate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("prompt template not found: %v", err)}
	}
	version := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &PromptTemplate{text: string(b), version: version}, nil
}

// NewPromptTemplate builds a template from an in-memory string; used by tests
// and by callers that embed the template.
func NewPromptTemplate(text, version string) *PromptTemplate {
	return &PromptTemplate{text: text, version: version}
}

func (t *PromptTemplate) Version() string { return t.version }

// Build substitutes the named placeholders. Pure string substitution: if the
// document text itself contains a placeholder token, that is the template
// resource's concern, not ours.
func (t *PromptTemplate) Build(sourceFile string, pageCount int, text string) string {
	r := strings.NewReplacer(
		"{source_file}", sourceFile,
		"{page_count}", strconv.Itoa(pageCount),
		"{text}", text,
	)
	return r.Replace(t.text)
}
