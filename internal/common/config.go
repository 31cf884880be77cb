// Package common holds process-level configuration shared by the CLIs.
package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration, read once at process start.
type Config struct {
	Archive  ArchiveConfig
	Analysis AnalysisConfig
	Server   ServerConfig
}

// ArchiveConfig locates the source documents and the derived AI layer.
type ArchiveConfig struct {
	DocumentsRoot string // NAS mount with the scanned PDFs
	SlicePath     string // subdirectory being processed this run
	LayerDir      string // derived output tree (manifests, text, indexes)
	CatalogPath   string // cross-run asset catalog database
}

// AnalysisConfig configures the LLM dispatch layer.
type AnalysisConfig struct {
	Provider      string // default provider name
	PromptFile    string
	ClaudeBin     string
	ClaudeModel   string
	CodexBin      string
	CodexModel    string
	OllamaURL     string
	OllamaModel   string
	Timeout       time.Duration
	ChunkPages    int
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMax      time.Duration
}

// ServerConfig holds the review server address.
type ServerConfig struct {
	HTTPAddr string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	root := getEnv("DOCUMENTS_ROOT", "")
	layer := getEnv("DOC_AI_LAYER_DIR", filepath.Join(root, "_ai-layer"))
	return &Config{
		Archive: ArchiveConfig{
			DocumentsRoot: root,
			SlicePath:     getEnv("DOC_SLICE_PATH", ""),
			LayerDir:      layer,
			CatalogPath:   getEnv("DOC_CATALOG_PATH", filepath.Join(layer, "catalog.db")),
		},
		Analysis: AnalysisConfig{
			Provider:    getEnv("DOC_PROVIDER", "claude-cli"),
			PromptFile:  getEnv("DOC_PROMPT_FILE", "prompts/document_analysis_v1.txt"),
			ClaudeBin:   getEnv("CLAUDE_CLI", "claude"),
			ClaudeModel: getEnv("DOC_CLI_MODEL", "claude-sonnet-4-20250514"),
			CodexBin:    getEnv("CODEX_CLI", "codex"),
			CodexModel:  getEnv("CODEX_MODEL", ""),
			OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434/v1"),
			OllamaModel: getEnv("OLLAMA_MODEL", "qwen2.5:14b"),
			Timeout:     getEnvAsDuration("DOC_TIMEOUT", 10*time.Minute),
			ChunkPages:  getEnvAsInt("DOC_CHUNK_PAGES", 50),
			MaxAttempts: getEnvAsInt("DOC_MAX_ATTEMPTS", 3),
			RetryBase:   getEnvAsDuration("DOC_RETRY_BASE", 2*time.Second),
			RetryMax:    getEnvAsDuration("DOC_RETRY_MAX", 30*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", "localhost:8377"),
		},
	}
}

// ValidateArchive checks that the batch pipeline can run. Returns error
// messages rather than failing fast so the operator sees everything at once.
func (c *Config) ValidateArchive() []string {
	var errs []string
	if c.Archive.DocumentsRoot == "" {
		errs = append(errs, "DOCUMENTS_ROOT is not set")
	} else if _, err := os.Stat(c.Archive.DocumentsRoot); err != nil {
		errs = append(errs, "DOCUMENTS_ROOT not found: "+c.Archive.DocumentsRoot+" (is the NAS mounted?)")
	}
	if _, err := os.Stat(c.Analysis.PromptFile); err != nil {
		errs = append(errs, "prompt file not found: "+c.Analysis.PromptFile)
	}
	return errs
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
