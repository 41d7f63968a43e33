// Package content defines the ContentGenerator contract and its
// retry/fallback wrapper, plus concrete Anthropic, OpenAI, and Gemini
// backends.
package content

import (
	"context"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// AuthVariant is the backend's auth/credential shape.
type AuthVariant string

const (
	AuthApiKey              AuthVariant = "api_key"
	AuthOAuthPersonal       AuthVariant = "oauth_personal"
	AuthVertexServiceAccount AuthVariant = "vertex_service_account"
)

// GenerateConfig carries per-call knobs (temperature, tool declarations,
// system instruction) that the concrete backend translates to its own wire
// format; the runtime never inspects it directly.
type GenerateConfig struct {
	SystemInstruction string
	Tools             []ToolDeclaration
	Temperature       *float64
}

// ToolDeclaration is the backend-agnostic shape a ContentGenerator
// translates into its wire format's function-declaration list.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is one (possibly partial, when streamed) model response.
type Response struct {
	Parts        []protocol.Part
	FinishReason protocol.FinishReason

	// AutomaticFunctionCallingHistory is the full request history plus any
	// additional entries the backend appended on the model's behalf; the
	// session keeps only the suffix past the length it already knows.
	AutomaticFunctionCallingHistory []protocol.Content
}

// ContentGenerator is the abstract sink/source for model calls.
type ContentGenerator interface {
	Variant() AuthVariant

	Generate(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (Response, error)

	// GenerateStream yields partial responses on the returned channel and
	// closes it when the stream ends, sending exactly one error on the
	// error channel if the stream failed (nil otherwise, also closed).
	GenerateStream(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (<-chan Response, <-chan error)

	CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error)

	// Embed returns one vector per input text; len(result) MUST equal
	// len(texts) or the call is an error.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}
