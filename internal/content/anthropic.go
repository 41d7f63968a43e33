package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// AnthropicGenerator implements ContentGenerator against Claude models,
// the ApiKey-variant backend.
type AnthropicGenerator struct {
	client    anthropic.Client
	maxTokens int64
}

type AnthropicConfig struct {
	APIKey    string
	MaxTokens int64
}

func NewAnthropicGenerator(cfg AnthropicConfig) *AnthropicGenerator {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		maxTokens: maxTokens,
	}
}

func (g *AnthropicGenerator) Variant() AuthVariant { return AuthApiKey }

func (g *AnthropicGenerator) Generate(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (Response, error) {
	params, err := g.buildParams(model, contents, cfg)
	if err != nil {
		return Response{}, err
	}
	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicErr(err)
	}
	return anthropicMessageToResponse(msg), nil
}

func (g *AnthropicGenerator) GenerateStream(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errc := make(chan error, 1)

	params, err := g.buildParams(model, contents, cfg)
	if err != nil {
		close(out)
		errc <- err
		close(errc)
		return out, errc
	}

	go func() {
		defer close(out)
		defer close(errc)

		stream := g.client.Messages.NewStreaming(ctx, params)
		acc := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				errc <- classifyAnthropicErr(err)
				return
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if delta.Delta.Text != "" {
					select {
					case out <- Response{Parts: []protocol.Part{protocol.NewText(delta.Delta.Text)}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errc <- classifyAnthropicErr(err)
			return
		}
		select {
		case out <- anthropicMessageToResponse(&acc):
		case <-ctx.Done():
		}
	}()
	return out, errc
}

func (g *AnthropicGenerator) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	messages, err := contentsToAnthropic(contents)
	if err != nil {
		return 0, err
	}
	resp, err := g.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(model),
		Messages: messages,
	})
	if err != nil {
		return 0, classifyAnthropicErr(err)
	}
	return int(resp.InputTokens), nil
}

func (g *AnthropicGenerator) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, protocol.NewRuntimeError(protocol.ErrExecution, "anthropic: embeddings are not offered by this backend", nil)
}

func (g *AnthropicGenerator) buildParams(model string, contents []protocol.Content, cfg GenerateConfig) (anthropic.MessageNewParams, error) {
	messages, err := contentsToAnthropic(contents)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: g.maxTokens,
	}
	if cfg.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: cfg.SystemInstruction}}
	}
	if len(cfg.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			var schema anthropic.ToolInputSchemaParam
			if raw, err := json.Marshal(t.Parameters); err == nil {
				_ = json.Unmarshal(raw, &schema)
			}
			toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
			if toolParam.OfTool != nil {
				toolParam.OfTool.Description = anthropic.String(t.Description)
			}
			tools = append(tools, toolParam)
		}
		params.Tools = tools
	}
	return params, nil
}

func contentsToAnthropic(contents []protocol.Content) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(contents))
	for _, c := range contents {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(c.Parts))
		for _, p := range c.Parts {
			switch p.Kind {
			case protocol.PartText:
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case protocol.PartFunctionCall:
				blocks = append(blocks, anthropic.NewToolUseBlock(p.CallID, p.Args, p.Name))
			case protocol.PartFunctionResponse:
				blocks = append(blocks, anthropic.NewToolResultBlock(p.CallID, fmt.Sprint(p.Payload["output"]), false))
			}
		}
		switch c.Role {
		case protocol.RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		default:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out, nil
}

func anthropicMessageToResponse(msg *anthropic.Message) Response {
	var parts []protocol.Part
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, protocol.NewText(b.Text))
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(b.Input, &args)
			parts = append(parts, protocol.NewFunctionCall(b.ID, b.Name, args))
		}
	}
	return Response{Parts: parts, FinishReason: protocol.FinishReason(msg.StopReason)}
}

func classifyAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return protocol.NewRuntimeError(protocol.ErrAuth, apiErr.Error(), err)
		case 429:
			return protocol.NewRuntimeError(protocol.ErrQuotaExhausted, apiErr.Error(), err)
		default:
			if apiErr.StatusCode >= 500 {
				return protocol.NewRuntimeError(protocol.ErrTransientBackend, apiErr.Error(), err)
			}
			return protocol.NewRuntimeError(protocol.ErrExecution, apiErr.Error(), err)
		}
	}
	return protocol.NewRuntimeError(protocol.ErrTransientBackend, "", err)
}
