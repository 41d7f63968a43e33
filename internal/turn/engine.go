// Package turn runs one request to the model and demultiplexes the
// streaming response into a typed event stream. The engine is a pure
// demux: it never invokes tools and never mutates history.
package turn

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

const defaultDebugBufferSize = 100

// Engine runs one Turn: ingesting a streaming model response and emitting
// a finite, non-restartable sequence of protocol.Event.
type Engine struct {
	Generator       content.ContentGenerator
	Model           string
	DebugBufferSize int

	// OnPart, when set, is invoked with every Part processed, in order,
	// after callID generation and after the part's event is emitted. Callers
	// that need to reconstruct the exact model Content for history
	// (ChatSession) use this instead of re-deriving Parts from events.
	OnPart func(protocol.Part)

	// OnAutomaticFunctionCallingHistory, when set, is invoked with every
	// non-empty AutomaticFunctionCallingHistory slice a partial response
	// carries. ChatSession uses the last one reported to extend the
	// comprehensive history with the backend's own suffix.
	OnAutomaticFunctionCallingHistory func([]protocol.Content)

	// Tracer, when set, wraps each turn in a span.
	Tracer *observability.Tracer
}

func New(gen content.ContentGenerator, model string) *Engine {
	return &Engine{Generator: gen, Model: model, DebugBufferSize: defaultDebugBufferSize}
}

// Run starts the turn and returns a channel of events, closed when the
// stream ends. A Finished event is emitted for each partial response that
// carries a finish reason, and an Error or UserCancelled event precedes the
// close on failure or cancellation; a stream that ends cleanly without a
// finish reason closes with no terminal event. promptID is recorded on the
// turn's trace span; the engine does not itself reset or consult the loop
// detector.
func (e *Engine) Run(ctx context.Context, promptID string, userParts []protocol.Part, cfg content.GenerateConfig) <-chan protocol.Event {
	contents := []protocol.Content{{Role: protocol.RoleUser, Parts: userParts}}
	return e.RunHistory(ctx, promptID, contents, cfg)
}

// RunHistory is Run generalized to a full request content sequence
// (curated history plus the new user turn), the shape ChatSession actually
// sends on every call.
func (e *Engine) RunHistory(ctx context.Context, promptID string, contents []protocol.Content, cfg content.GenerateConfig) <-chan protocol.Event {
	out := make(chan protocol.Event)
	go e.run(ctx, promptID, contents, cfg, out)
	return out
}

func (e *Engine) run(ctx context.Context, promptID string, contents []protocol.Content, cfg content.GenerateConfig, out chan<- protocol.Event) {
	defer close(out)

	if e.Tracer != nil {
		var span trace.Span
		ctx, span = e.Tracer.Start(ctx, "turn.run", attribute.String("prompt_id", promptID), attribute.String("model", e.Model))
		defer span.End()
	}

	bufSize := e.DebugBufferSize
	if bufSize <= 0 {
		bufSize = defaultDebugBufferSize
	}
	debugBuffer := make([]content.Response, 0, bufSize)

	stream, errc := e.Generator.GenerateStream(ctx, e.Model, contents, cfg)

	for {
		// Check cancellation before each partial, so an already-cancelled
		// context wins over a response that is ready at the same time.
		if ctx.Err() != nil {
			out <- protocol.UserCancelledEvent()
			go func() {
				for range stream {
				}
				<-errc
			}()
			return
		}
		select {
		case <-ctx.Done():
			out <- protocol.UserCancelledEvent()
			// drain the generator's goroutine so it doesn't leak.
			go func() {
				for range stream {
				}
				<-errc
			}()
			return
		case resp, ok := <-stream:
			if !ok {
				if err := <-errc; err != nil {
					e.emitError(out, err)
				}
				return
			}
			debugBuffer = appendBounded(debugBuffer, resp, bufSize)
			if len(resp.AutomaticFunctionCallingHistory) > 0 && e.OnAutomaticFunctionCallingHistory != nil {
				e.OnAutomaticFunctionCallingHistory(resp.AutomaticFunctionCallingHistory)
			}
			e.classifyAndEmit(out, resp, promptID)
			if resp.FinishReason != "" {
				out <- protocol.FinishedEvent(resp.FinishReason)
			}
		}
	}
}

func (e *Engine) emitError(out chan<- protocol.Event, err error) {
	kind := protocol.ErrExecution
	msg := err.Error()
	if re, ok := err.(*protocol.RuntimeError); ok {
		kind = re.Kind
		msg = re.Message
		if msg == "" {
			msg = re.Error()
		}
	}
	out <- protocol.ErrorEvent(kind, friendlyMessage(kind, msg))
}

func friendlyMessage(kind protocol.ErrorKind, msg string) string {
	if status := extractHTTPStatus(msg); status != "" {
		return fmt.Sprintf("%s (status %s)", msg, status)
	}
	return msg
}

func extractHTTPStatus(msg string) string {
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return code
		}
	}
	return ""
}

// classifyAndEmit walks the parts of one partial response in order and
// emits the corresponding event per part.
func (e *Engine) classifyAndEmit(out chan<- protocol.Event, resp content.Response, promptID string) {
	for _, p := range resp.Parts {
		switch p.Kind {
		case protocol.PartText:
			if p.Text != "" {
				out <- protocol.ContentEvent(p.Text)
			}
		case protocol.PartThought:
			subject, description := splitThought(p.ThoughtText)
			out <- protocol.ThoughtEvent(subject, description)
		case protocol.PartFunctionCall:
			if p.CallID == "" {
				p.CallID = generateCallID(p.Name)
			}
			out <- protocol.ToolCallRequestEvent(p.CallID, p.Name, p.Args)
		}
		if e.OnPart != nil {
			e.OnPart(p)
		}
	}
}

// splitThought extracts subject as the text between the first pair of
// `**…**` markers and description as the remainder; either may be empty.
func splitThought(raw string) (subject, description string) {
	start := strings.Index(raw, "**")
	if start == -1 {
		return "", raw
	}
	end := strings.Index(raw[start+2:], "**")
	if end == -1 {
		return "", raw
	}
	subject = raw[start+2 : start+2+end]
	description = strings.TrimSpace(raw[:start] + raw[start+2+end+2:])
	return subject, description
}

// generateCallID mints `{name}-{epoch}-{rand}` when the model omitted one.
func generateCallID(name string) string {
	return fmt.Sprintf("%s-%d-%d", name, time.Now().UnixNano(), rand.Intn(1_000_000))
}

func appendBounded(buf []content.Response, r content.Response, max int) []content.Response {
	buf = append(buf, r)
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return buf
}
