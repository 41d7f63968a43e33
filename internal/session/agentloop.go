package session

import (
	"context"
	"sync"

	"github.com/haasonsaas/agentcore/internal/loopdetect"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

const continuePromptText = "Please continue."

// LoopConfig configures AgentLoop's thresholds and optional collaborators.
type LoopConfig struct {
	MaxSessionTurns int // 0 disables the cap
	Compressor      Compressor
	Detector        *loopdetect.Detector
	Prober          *NextSpeakerProbe // nil disables the continuation probe
	IDEContext      func() IDEContext // nil disables IDE-context injection
	Logger          *observability.Logger
}

// AgentLoop is the outer driver: compression check, loop detector reset,
// turn execution, and the continuation decision that turns one user prompt
// into one or more turns.
type AgentLoop struct {
	session *ChatSession
	cfg     LoopConfig

	mu           sync.Mutex
	turnCounter  int
	lastPromptID string
}

func NewAgentLoop(s *ChatSession, cfg LoopConfig) *AgentLoop {
	if cfg.Detector == nil {
		cfg.Detector = loopdetect.New()
	}
	return &AgentLoop{session: s, cfg: cfg}
}

// SendMessageStream runs the prompt to completion, forwarding every turn
// event. cancel aborts the in-flight turn (and any further continuation)
// when the loop detector fires; exceeding the session turn cap emits
// MaxSessionTurns and returns without calling it.
func (a *AgentLoop) SendMessageStream(ctx context.Context, cancel context.CancelFunc, parts []protocol.Part, promptID string, turnsLeft int) <-chan protocol.Event {
	out := make(chan protocol.Event)
	go a.run(ctx, cancel, parts, promptID, turnsLeft, out)
	return out
}

func (a *AgentLoop) run(ctx context.Context, cancel context.CancelFunc, parts []protocol.Part, promptID string, turnsLeft int, out chan<- protocol.Event) {
	defer close(out)

	a.mu.Lock()
	if promptID != a.lastPromptID {
		a.cfg.Detector.Reset()
		a.session.ResetForNewPrompt()
		a.lastPromptID = promptID
	}
	a.mu.Unlock()

	for {
		a.mu.Lock()
		a.turnCounter++
		exceeded := a.cfg.MaxSessionTurns > 0 && a.turnCounter > a.cfg.MaxSessionTurns
		a.mu.Unlock()
		if exceeded {
			out <- protocol.MaxSessionTurnsEvent()
			return
		}

		if a.cfg.Compressor != nil {
			curated := a.session.History().GetCurated()
			record, newHistory, err := a.cfg.Compressor.TryCompress(ctx, curated, false)
			if err != nil && a.cfg.Logger != nil {
				a.cfg.Logger.Warn(ctx, "agentloop: compression attempt failed", "error", err)
			}
			if record != nil {
				a.session.History().Replace(newHistory)
				out <- protocol.ChatCompressedEvent(record.OriginalTokens, record.NewTokens)
			}
		}

		turnParts := parts
		if a.cfg.IDEContext != nil {
			if ide := a.cfg.IDEContext(); !ide.IsEmpty() {
				turnParts = append([]protocol.Part{ide.Part()}, parts...)
			}
		}

		events, err := a.session.SendMessageStream(ctx, turnParts, promptID)
		if err != nil {
			out <- protocol.ErrorEvent(protocol.ErrExecution, err.Error())
			return
		}

		sawToolCall := false
		loopDetected := false
		cancelled := false
		erred := false
		for e := range events {
			if a.cfg.Detector.FeedEvent(e) {
				loopDetected = true
			}
			if e.Kind == protocol.EventToolCallRequest {
				sawToolCall = true
			}
			if e.Kind == protocol.EventUserCancelled {
				cancelled = true
			}
			if e.Kind == protocol.EventError {
				erred = true
			}
			out <- e
			if loopDetected {
				out <- protocol.LoopDetectedEvent()
				if cancel != nil {
					cancel()
				}
				// Keep draining so the session's forwarding goroutine can
				// finish and release the send lock.
				go func() {
					for range events {
					}
				}()
				return
			}
		}

		if cancelled || erred {
			return
		}
		if sawToolCall {
			// The caller owns scheduling the requested tool calls and will
			// feed the responses back as the next user message; AgentLoop's
			// role for this Prompt ends here.
			return
		}

		if ctx.Err() != nil {
			return
		}

		if a.session.ModelSwitchedDuringSession() {
			// No continuation after a mid-turn fallback.
			return
		}

		if a.cfg.Prober == nil || turnsLeft <= 0 {
			return
		}

		curated := a.session.History().GetCurated()
		next, err := a.cfg.Prober.Probe(ctx, curated)
		if err != nil {
			// A failed probe, including cancellation, means stop.
			return
		}
		if next != "model" {
			return
		}

		parts = []protocol.Part{protocol.NewText(continuePromptText)}
		turnsLeft--
	}
}
