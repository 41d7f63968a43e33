package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// OpenAIGenerator implements ContentGenerator against OpenAI's chat
// completion API, the OAuthPersonal-variant backend: an
// oauth2.TokenSource is accepted and exchanged for a bearer token at
// client construction, the same shape a personal OAuth login produces.
type OpenAIGenerator struct {
	client    *openai.Client
	estimator *LocalEstimator
}

type OpenAIConfig struct {
	// APIKey is used directly when TokenSource is nil.
	APIKey string
	// TokenSource supplies a bearer token, e.g. from an OAuth2
	// client-credentials or refresh-token flow configured elsewhere; the
	// runtime never performs the flow itself.
	TokenSource oauth2.TokenSource
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	key := cfg.APIKey
	if cfg.TokenSource != nil {
		tok, err := cfg.TokenSource.Token()
		if err != nil {
			return nil, protocol.NewRuntimeError(protocol.ErrAuth, "openai: token source failed", err)
		}
		key = tok.AccessToken
	}
	if key == "" {
		return nil, protocol.NewRuntimeError(protocol.ErrAuth, "openai: no credential configured", nil)
	}
	return &OpenAIGenerator{client: openai.NewClient(key), estimator: NewLocalEstimator()}, nil
}

func (g *OpenAIGenerator) Variant() AuthVariant { return AuthOAuthPersonal }

func (g *OpenAIGenerator) Generate(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (Response, error) {
	req, err := g.buildRequest(model, contents, cfg)
	if err != nil {
		return Response{}, err
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, nil
	}
	return openAIChoiceToResponse(resp.Choices[0]), nil
}

func (g *OpenAIGenerator) GenerateStream(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errc := make(chan error, 1)

	req, err := g.buildRequest(model, contents, cfg)
	if err != nil {
		close(out)
		errc <- err
		close(errc)
		return out, errc
	}
	req.Stream = true

	go func() {
		defer close(out)
		defer close(errc)

		stream, err := g.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errc <- classifyOpenAIErr(err)
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errc <- classifyOpenAIErr(err)
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			resp := openAIStreamChoiceToResponse(chunk.Choices[0])
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}

func (g *OpenAIGenerator) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	return g.estimator.Count(model, contents)
}

func (g *OpenAIGenerator) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (g *OpenAIGenerator) buildRequest(model string, contents []protocol.Content, cfg GenerateConfig) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(contents)+1)
	if cfg.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: cfg.SystemInstruction})
	}
	for _, c := range contents {
		messages = append(messages, contentToOpenAIMessages(c)...)
	}

	req := openai.ChatCompletionRequest{Model: model, Messages: messages}
	if cfg.Temperature != nil {
		req.Temperature = float32(*cfg.Temperature)
	}
	if len(cfg.Tools) > 0 {
		req.Tools = make([]openai.Tool, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			req.Tools = append(req.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
	}
	return req, nil
}

func contentToOpenAIMessages(c protocol.Content) []openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if c.Role == protocol.RoleModel {
		role = openai.ChatMessageRoleAssistant
	}

	var out []openai.ChatCompletionMessage
	var text string
	var toolCalls []openai.ToolCall
	for _, p := range c.Parts {
		switch p.Kind {
		case protocol.PartText:
			text += p.Text
		case protocol.PartFunctionCall:
			args, _ := json.Marshal(p.Args)
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   p.CallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      p.Name,
					Arguments: string(args),
				},
			})
		case protocol.PartFunctionResponse:
			payload, _ := json.Marshal(p.Payload)
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: p.CallID,
				Content:    string(payload),
			})
		}
	}
	if text != "" || len(toolCalls) > 0 {
		out = append([]openai.ChatCompletionMessage{{Role: role, Content: text, ToolCalls: toolCalls}}, out...)
	}
	return out
}

func openAIChoiceToResponse(choice openai.ChatCompletionChoice) Response {
	return Response{Parts: openAIMessageToParts(choice.Message), FinishReason: protocol.FinishReason(choice.FinishReason)}
}

func openAIMessageToParts(msg openai.ChatCompletionMessage) []protocol.Part {
	var parts []protocol.Part
	if msg.Content != "" {
		parts = append(parts, protocol.NewText(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		parts = append(parts, protocol.NewFunctionCall(tc.ID, tc.Function.Name, args))
	}
	return parts
}

func openAIStreamChoiceToResponse(choice openai.ChatCompletionStreamChoice) Response {
	var parts []protocol.Part
	if choice.Delta.Content != "" {
		parts = append(parts, protocol.NewText(choice.Delta.Content))
	}
	for _, tc := range choice.Delta.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		parts = append(parts, protocol.NewFunctionCall(tc.ID, tc.Function.Name, args))
	}
	return Response{Parts: parts, FinishReason: protocol.FinishReason(choice.FinishReason)}
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return protocol.NewRuntimeError(protocol.ErrAuth, apiErr.Message, err)
		case 429:
			return protocol.NewRuntimeError(protocol.ErrQuotaExhausted, apiErr.Message, err)
		default:
			if apiErr.HTTPStatusCode >= 500 {
				return protocol.NewRuntimeError(protocol.ErrTransientBackend, apiErr.Message, err)
			}
			return protocol.NewRuntimeError(protocol.ErrExecution, apiErr.Message, err)
		}
	}
	return protocol.NewRuntimeError(protocol.ErrTransientBackend, "", err)
}
