package registry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func TestSanitizeNameIdempotent(t *testing.T) {
	cases := []string{
		"read_file",
		"weird name!!",
		strings.Repeat("x", 120),
		"",
		"already-valid.name_123",
	}
	for _, c := range cases {
		once := SanitizeName(c)
		twice := SanitizeName(once)
		assert.Equal(t, once, twice, "sanitize not idempotent for %q", c)
		assert.Regexp(t, `^[A-Za-z0-9_.\-]{1,63}$`, once)
	}
}

func TestSanitizeNameTruncatesOverlongNames(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := SanitizeName(long)
	require.LessOrEqual(t, len(got), 63)
	assert.Contains(t, got, "___")
}

func TestRegisterCollisionStaticOverwrites(t *testing.T) {
	r := New()
	r.Register(&protocol.ToolDescriptor{Name: "read_file", Description: "v1"}, false)
	r.Register(&protocol.ToolDescriptor{Name: "read_file", Description: "v2"}, false)

	d, ok := r.Lookup("read_file")
	require.True(t, ok)
	assert.Equal(t, "v2", d.Description)
}

func TestRegisterCollisionStaticWarnsThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.New(observability.Config{Format: "text", Output: &buf})

	r := New().WithLogger(logger)
	r.Register(&protocol.ToolDescriptor{Name: "read_file", Description: "v1"}, false)
	r.Register(&protocol.ToolDescriptor{Name: "read_file", Description: "v2"}, false)

	assert.Contains(t, buf.String(), "overwriting existing tool registration")
	assert.Contains(t, buf.String(), "read_file")
}

func TestRegisterCollisionDynamicQualifies(t *testing.T) {
	r := New()
	r.Register(&protocol.ToolDescriptor{Name: "read_file", Description: "builtin"}, false)
	r.Register(&protocol.ToolDescriptor{Name: "read_file", Source: "mcp1", Description: "external"}, true)

	builtin, ok := r.Lookup("read_file")
	require.True(t, ok)
	assert.Equal(t, "builtin", builtin.Description)

	qualified, ok := r.Lookup("mcp1__read_file")
	require.True(t, ok)
	assert.Equal(t, "external", qualified.Description)
}

func TestStripUnsupportedSchemaRemovesDefaultAlongsideAnyOf(t *testing.T) {
	schema := map[string]any{
		"anyOf":   []any{map[string]any{"type": "string"}},
		"default": "x",
	}
	out := StripUnsupportedSchema(schema)
	_, hasDefault := out["default"]
	assert.False(t, hasDefault)
	assert.Contains(t, schema, "default", "input must not be mutated")
}

func TestStripUnsupportedSchemaCoercesNonStringEnum(t *testing.T) {
	schema := map[string]any{"enum": []any{1, 2, 3}}
	out := StripUnsupportedSchema(schema)
	enum := out["enum"].([]any)
	for _, v := range enum {
		_, ok := v.(string)
		assert.True(t, ok)
	}
}
