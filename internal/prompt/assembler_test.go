package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTemplateUsedWhenNoOverride(t *testing.T) {
	a := New(OverrideSource{})
	out, err := a.Build(EnvFacts{WorkingDirectory: "/tmp"})
	require.NoError(t, err)
	assert.Contains(t, out, "interactive CLI agent")
	assert.Contains(t, out, "/tmp")
}

func TestExplicitOverrideMissingFileIsFatalConfigError(t *testing.T) {
	a := New(OverrideSource{ExplicitPath: "/nonexistent/path/system.md"})
	_, err := a.Build(EnvFacts{})
	assert.Error(t, err)
}

func TestExplicitOverrideUsedWhenPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.md")
	require.NoError(t, os.WriteFile(path, []byte("custom instructions"), 0o644))

	a := New(OverrideSource{ExplicitPath: path})
	out, err := a.Build(EnvFacts{})
	require.NoError(t, err)
	assert.Contains(t, out, "custom instructions")
}

func TestOverrideFromEnvGating(t *testing.T) {
	assert.False(t, OverrideFromEnv("0", "/d").Enabled)
	assert.False(t, OverrideFromEnv("false", "/d").Enabled)
	assert.True(t, OverrideFromEnv("1", "/d").Enabled)
	assert.Equal(t, "/custom/path", OverrideFromEnv("/custom/path", "/d").ExplicitPath)
}

func TestEnvFactsRenderVersionControl(t *testing.T) {
	a := New(OverrideSource{})

	out, err := a.Build(EnvFacts{HasVersionControl: true})
	require.NoError(t, err)
	assert.Contains(t, out, "Version control detected: true")

	out, err = a.Build(EnvFacts{HasVersionControl: false})
	require.NoError(t, err)
	assert.Contains(t, out, "Version control detected: false")
}

func TestMemoryAppendedWhenSet(t *testing.T) {
	a := New(OverrideSource{})
	a.SetMemory("## Gemini Added Memories\n- likes tabs")
	out, err := a.Build(EnvFacts{})
	require.NoError(t, err)
	assert.Contains(t, out, "likes tabs")
}
