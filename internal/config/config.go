// Package config loads the demo binary's runtime configuration from
// agentcli.yaml. The runtime packages take their knobs as plain struct
// fields; only cmd/agentcli reads this.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of agentcli.yaml.
type Config struct {
	Backend       string `yaml:"backend"`        // "anthropic" | "openai" | "gemini" | "fake"
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model"`
	APIKey        string `yaml:"api_key"`

	ApprovalMode string `yaml:"approval_mode"` // "default" | "yolo"
	MaxSessionTurns int `yaml:"max_session_turns"`

	SystemPromptOverridePath string `yaml:"system_prompt_override_path"`
	MemoryFilePath           string `yaml:"memory_file_path"`

	HistoryDBPath string `yaml:"history_db_path"` // empty disables sqlite persistence

	DiffViewer string `yaml:"diff_viewer"` // external diff command for modify-with-editor

	CompactionSweepCron string `yaml:"compaction_sweep_cron"` // empty disables the maintenance ticker
}

// Default returns sane defaults for running the demo without any file.
func Default() Config {
	return Config{
		Backend:         "fake",
		Model:           "demo-pro",
		FallbackModel:   "demo-flash",
		ApprovalMode:    "default",
		MaxSessionTurns: 50,
		MemoryFilePath:  "GEMINI.md",
		DiffViewer:      "vimdiff",
	}
}

// Load reads and parses a YAML config file, keeping Default()'s values for
// anything the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

// JSONSchema returns the JSON Schema for Config, generated once and cached.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{FieldNameTag: "yaml"}
		schema := r.Reflect(&Config{})
		schemaJSON, schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	return schemaJSON, schemaErr
}
