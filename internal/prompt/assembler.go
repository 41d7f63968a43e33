// Package prompt builds the system instruction from a base template,
// runtime facts, and user memory, with override-path precedence.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// EnvFacts are the runtime facts folded into the system instruction.
type EnvFacts struct {
	WorkingDirectory string
	Date             string
	OS               string
	SandboxStatus    string
	HasVersionControl bool
}

// OverrideSource resolves, in precedence order, where the base template
// comes from: an explicit path, a default config-dir path gated by an
// enable flag, or the built-in template.
type OverrideSource struct {
	ExplicitPath string
	DefaultPath  string
	Enabled      bool
}

const builtinTemplate = `You are an interactive CLI agent specializing in software engineering tasks.
Use the available tools to accomplish the user's goal safely and efficiently.`

// Assembler builds the system instruction string.
type Assembler struct {
	override OverrideSource
	memory   string
}

func New(override OverrideSource) *Assembler {
	return &Assembler{override: override}
}

// SetMemory installs the opaque user-memory block appended to the
// instruction (the contents of the memory file).
func (a *Assembler) SetMemory(memory string) { a.memory = memory }

// Build produces the full system instruction: base template, then runtime
// facts, then user memory.
func (a *Assembler) Build(facts EnvFacts) (string, error) {
	base, err := a.resolveBase()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(renderFacts(facts))
	if a.memory != "" {
		b.WriteString("\n\n")
		b.WriteString(a.memory)
	}
	return b.String(), nil
}

// resolveBase implements the precedence: explicit override path, then the
// default config-dir path when enabled, then the built-in template. An
// explicit path that does not exist is a fatal ConfigError.
func (a *Assembler) resolveBase() (string, error) {
	if a.override.ExplicitPath != "" {
		data, err := os.ReadFile(expandHome(a.override.ExplicitPath))
		if err != nil {
			return "", protocol.NewRuntimeError(protocol.ErrConfig,
				fmt.Sprintf("system prompt override not found at %s", a.override.ExplicitPath), err)
		}
		return string(data), nil
	}
	if a.override.Enabled && a.override.DefaultPath != "" {
		data, err := os.ReadFile(expandHome(a.override.DefaultPath))
		if err == nil {
			return string(data), nil
		}
	}
	return builtinTemplate, nil
}

// Export writes the built-in template to path and returns it, so the
// caller can continue normally afterward.
func Export(path string) (string, error) {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", protocol.NewRuntimeError(protocol.ErrConfig, "cannot create export directory", err)
	}
	if err := os.WriteFile(path, []byte(builtinTemplate), 0o644); err != nil {
		return "", protocol.NewRuntimeError(protocol.ErrConfig, "cannot write exported template", err)
	}
	return builtinTemplate, nil
}

func renderFacts(f EnvFacts) string {
	var b strings.Builder
	b.WriteString("Environment:\n")
	fmt.Fprintf(&b, "- Working directory: %s\n", f.WorkingDirectory)
	fmt.Fprintf(&b, "- Date: %s\n", f.Date)
	fmt.Fprintf(&b, "- Operating system: %s\n", f.OS)
	fmt.Fprintf(&b, "- Sandbox: %s\n", f.SandboxStatus)
	fmt.Fprintf(&b, "- Version control detected: %t\n", f.HasVersionControl)
	return b.String()
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// OverrideFromEnv interprets the gating environment variable: "0"/"false"
// disables, "1"/"true" enables at defaultPath, any other string is treated
// as an explicit path (with `~` expansion).
func OverrideFromEnv(value, defaultPath string) OverrideSource {
	switch strings.ToLower(value) {
	case "", "0", "false":
		return OverrideSource{Enabled: false, DefaultPath: defaultPath}
	case "1", "true":
		return OverrideSource{Enabled: true, DefaultPath: defaultPath}
	default:
		return OverrideSource{ExplicitPath: value}
	}
}
