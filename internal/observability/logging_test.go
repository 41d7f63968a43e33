package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRedactsSecretShapedValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Output: &buf})

	l.Info(context.Background(), "request failed", "detail", "api_key=sk1234567890abcdef1234 rejected")

	out := buf.String()
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "sk1234567890abcdef1234")
}

func TestLoggerAttachesContextCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), SessionIDKey, "s-1")
	ctx = context.WithValue(ctx, PromptIDKey, "p-1")
	l.Info(ctx, "turn started")

	out := buf.String()
	assert.Contains(t, out, `"session_id":"s-1"`)
	assert.Contains(t, out, `"prompt_id":"p-1"`)
}
