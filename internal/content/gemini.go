package content

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// GeminiGenerator implements ContentGenerator against Google's Gemini
// models, the VertexServiceAccount-variant backend.
type GeminiGenerator struct {
	client *genai.Client
}

type GeminiConfig struct {
	// APIKey is used for the Gemini Developer API backend. Leave empty and
	// set Project/Location for Vertex AI with application-default
	// credentials, the shape a service-account login would produce.
	APIKey   string
	Project  string
	Location string
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey}
	if cfg.Project != "" {
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	} else {
		clientCfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, protocol.NewRuntimeError(protocol.ErrConfig, "gemini: failed to create client", err)
	}
	return &GeminiGenerator{client: client}, nil
}

func (g *GeminiGenerator) Variant() AuthVariant { return AuthVertexServiceAccount }

func (g *GeminiGenerator) Generate(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (Response, error) {
	req, genCfg := g.buildRequest(contents, cfg)
	resp, err := g.client.Models.GenerateContent(ctx, model, req, genCfg)
	if err != nil {
		return Response{}, classifyGeminiErr(err)
	}
	return geminiResponseToResponse(resp), nil
}

func (g *GeminiGenerator) GenerateStream(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errc := make(chan error, 1)

	req, genCfg := g.buildRequest(contents, cfg)

	go func() {
		defer close(out)
		defer close(errc)

		for chunk, err := range g.client.Models.GenerateContentStream(ctx, model, req, genCfg) {
			if err != nil {
				errc <- classifyGeminiErr(err)
				return
			}
			resp := geminiResponseToResponse(chunk)
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}

func (g *GeminiGenerator) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	req, _ := g.buildRequest(contents, GenerateConfig{})
	resp, err := g.client.Models.CountTokens(ctx, model, req, nil)
	if err != nil {
		return 0, classifyGeminiErr(err)
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiGenerator) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	content := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		content = append(content, &genai.Content{Parts: []*genai.Part{{Text: t}}, Role: "user"})
	}
	resp, err := g.client.Models.EmbedContent(ctx, model, content, nil)
	if err != nil {
		return nil, classifyGeminiErr(err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (g *GeminiGenerator) buildRequest(contents []protocol.Content, cfg GenerateConfig) ([]*genai.Content, *genai.GenerateContentConfig) {
	req := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		req = append(req, contentToGenai(c))
	}

	genCfg := &genai.GenerateContentConfig{}
	if cfg.SystemInstruction != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}
	if cfg.Temperature != nil {
		t := float32(*cfg.Temperature)
		genCfg.Temperature = &t
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return req, genCfg
}

func contentToGenai(c protocol.Content) *genai.Content {
	role := "user"
	if c.Role == protocol.RoleModel {
		role = "model"
	}
	parts := make([]*genai.Part, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p.Kind {
		case protocol.PartText:
			parts = append(parts, &genai.Part{Text: p.Text})
		case protocol.PartFunctionCall:
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: p.CallID, Name: p.Name, Args: p.Args}})
		case protocol.PartFunctionResponse:
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: p.CallID, Name: p.Name, Response: p.Payload}})
		}
	}
	return &genai.Content{Parts: parts, Role: role}
}

// toGenaiSchema converts the backend-agnostic JSON Schema map a
// ToolDeclaration carries into genai's typed Schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func geminiResponseToResponse(resp *genai.GenerateContentResponse) Response {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}
	}
	candidate := resp.Candidates[0]
	var parts []protocol.Part
	for _, p := range candidate.Content.Parts {
		switch {
		case p.Thought && p.Text != "":
			parts = append(parts, protocol.NewThought(p.Text))
		case p.Text != "":
			parts = append(parts, protocol.NewText(p.Text))
		case p.FunctionCall != nil:
			parts = append(parts, protocol.NewFunctionCall(p.FunctionCall.ID, p.FunctionCall.Name, p.FunctionCall.Args))
		}
	}
	out := Response{Parts: parts, FinishReason: protocol.FinishReason(candidate.FinishReason)}
	// google.golang.org/genai v1.43.0 does not expose an
	// AutomaticFunctionCallingHistory field on GenerateContentResponse, so
	// this cannot be populated here; see BUILD_FLAGS.json.
	return out
}

func genaiContentToProtocol(c *genai.Content) protocol.Content {
	role := protocol.RoleUser
	if c.Role == "model" {
		role = protocol.RoleModel
	}
	var parts []protocol.Part
	for _, p := range c.Parts {
		switch {
		case p.Thought && p.Text != "":
			parts = append(parts, protocol.NewThought(p.Text))
		case p.Text != "":
			parts = append(parts, protocol.NewText(p.Text))
		case p.FunctionCall != nil:
			parts = append(parts, protocol.NewFunctionCall(p.FunctionCall.ID, p.FunctionCall.Name, p.FunctionCall.Args))
		case p.FunctionResponse != nil:
			parts = append(parts, protocol.NewFunctionResponse(p.FunctionResponse.ID, p.FunctionResponse.Name, p.FunctionResponse.Response))
		}
	}
	return protocol.Content{Role: role, Parts: parts}
}

// classifyGeminiErr maps genai's untyped error strings onto the shared
// taxonomy. The SDK does not expose a typed status code, so classification
// is done on the error text.
func classifyGeminiErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "403") || strings.Contains(msg, "permission denied"):
		return protocol.NewRuntimeError(protocol.ErrAuth, "", err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota"):
		return protocol.NewRuntimeError(protocol.ErrQuotaExhausted, "", err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "unavailable") || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return protocol.NewRuntimeError(protocol.ErrTransientBackend, "", err)
	default:
		return protocol.NewRuntimeError(protocol.ErrExecution, "", err)
	}
}
