// Package session implements ChatSession and AgentLoop: the owner of the
// history store, content generator, and prompt assembler, and the outer
// driver that turns one model turn into a possibly-multi-turn prompt.
package session

import (
	"context"
	"sync"

	"github.com/haasonsaas/agentcore/internal/compaction"
	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/prompt"
	"github.com/haasonsaas/agentcore/internal/registry"
	"github.com/haasonsaas/agentcore/internal/turn"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// Config bundles a ChatSession's collaborators. Generator should already be
// wrapped in a *content.RetryingGenerator when fallback behavior is wanted;
// ChatSession treats it as a plain content.ContentGenerator.
type Config struct {
	History      *history.Store
	Generator    content.ContentGenerator
	Assembler    *prompt.Assembler
	Registry     *registry.Registry
	Logger       *observability.Logger
	Model        string
	FallbackModel string
	EnvFacts     func() prompt.EnvFacts
	Tracer       *observability.Tracer
}

// ChatSession owns its history store and generator handle exclusively and
// serializes sends: a pending send completes before the next begins.
type ChatSession struct {
	sendMu sync.Mutex

	hist      *history.Store
	gen       content.ContentGenerator
	assembler *prompt.Assembler
	reg       *registry.Registry
	logger    *observability.Logger
	envFacts  func() prompt.EnvFacts

	stateMu        sync.Mutex
	model          string
	fallbackModel  string
	quotaExhausted bool
	switchedThisTurn bool

	tracer *observability.Tracer
}

func New(cfg Config) *ChatSession {
	return &ChatSession{
		hist:          cfg.History,
		gen:           cfg.Generator,
		assembler:     cfg.Assembler,
		reg:           cfg.Registry,
		logger:        cfg.Logger,
		envFacts:      cfg.EnvFacts,
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		tracer:        cfg.Tracer,
	}
}

// CurrentModel returns the model in effect for the next send.
func (s *ChatSession) CurrentModel() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.model
}

// History returns the owned store itself, not a read-only view: AgentLoop
// reads the curated view and installs compressed history through it.
func (s *ChatSession) History() *history.Store { return s.hist }

// ResetForNewPrompt clears the sticky quota-exhausted flag; invoked by
// AgentLoop when the user submits a new top-level prompt.
func (s *ChatSession) ResetForNewPrompt() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.quotaExhausted = false
}

// ModelSwitchedDuringSession reports whether the fallback hook fired during
// the current turn. AgentLoop consults this to skip the next-speaker
// continuation after a fallback.
func (s *ChatSession) ModelSwitchedDuringSession() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.switchedThisTurn
}

// FallbackHook mutates s.model to the configured fallback model exactly
// once; wire this into content.NewRetryingGenerator's hook parameter.
func (s *ChatSession) FallbackHook(currentModel string) (string, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.fallbackModel == "" || currentModel == s.fallbackModel {
		return "", false
	}
	s.model = s.fallbackModel
	s.switchedThisTurn = true
	return s.fallbackModel, true
}

// refused returns the sticky QuotaExhausted refusal, or nil if the send
// may proceed.
func (s *ChatSession) refused() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.quotaExhausted && s.model == s.fallbackModel {
		return protocol.NewRuntimeError(protocol.ErrQuotaExhausted,
			"quota exhausted on the fallback model; please resubmit your prompt", nil)
	}
	return nil
}

func (s *ChatSession) markQuotaExhausted() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.quotaExhausted = true
}

// SendMessageStream builds the request as curated history plus the new
// user Content, invokes the generator with retry+fallback, then atomically
// appends the new user Content, the model's content, and any
// automatic-function-calling history suffix once the stream closes.
func (s *ChatSession) SendMessageStream(ctx context.Context, parts []protocol.Part, promptID string) (<-chan protocol.Event, error) {
	if err := s.refused(); err != nil {
		return nil, err
	}

	s.sendMu.Lock()
	s.stateMu.Lock()
	s.switchedThisTurn = false
	model := s.model
	s.stateMu.Unlock()

	userContent := protocol.Content{Role: protocol.RoleUser, Parts: parts}
	curated := s.hist.GetCurated()
	requestContents := make([]protocol.Content, 0, len(curated)+1)
	requestContents = append(requestContents, curated...)
	requestContents = append(requestContents, userContent)

	cfg, err := s.buildGenerateConfig()
	if err != nil {
		s.sendMu.Unlock()
		return nil, err
	}

	engine := &turn.Engine{Generator: s.gen, Model: model, Tracer: s.tracer}

	var mu sync.Mutex
	var modelParts []protocol.Part
	var afcHistory []protocol.Content
	engine.OnPart = func(p protocol.Part) {
		mu.Lock()
		modelParts = append(modelParts, p)
		mu.Unlock()
	}
	engine.OnAutomaticFunctionCallingHistory = func(h []protocol.Content) {
		mu.Lock()
		afcHistory = h
		mu.Unlock()
	}

	inner := engine.RunHistory(ctx, promptID, requestContents, cfg)
	out := make(chan protocol.Event)

	go func() {
		defer close(out)
		defer s.sendMu.Unlock()

		var sawError, sawCancel protocol.ErrorKind
		for e := range inner {
			if e.Kind == protocol.EventError {
				sawError = e.ErrorKind
			}
			if e.Kind == protocol.EventUserCancelled {
				sawCancel = protocol.ErrCancelled
			}
			out <- e
		}

		if sawError == protocol.ErrQuotaExhausted {
			s.markQuotaExhausted()
		}
		if sawCancel != "" || sawError != "" {
			return
		}

		mu.Lock()
		finalModelContent := protocol.Content{Role: protocol.RoleModel, Parts: modelParts}
		var suffix []protocol.Content
		if len(afcHistory) > len(requestContents) {
			suffix = afcHistory[len(requestContents):]
		}
		mu.Unlock()

		entries := []protocol.Content{userContent, finalModelContent}
		entries = append(entries, suffix...)
		if err := s.hist.AppendMany(entries); err != nil && s.logger != nil {
			s.logger.Error(ctx, "chatsession: failed to append turn to history", "error", err)
		}
	}()

	return out, nil
}

func (s *ChatSession) buildGenerateConfig() (content.GenerateConfig, error) {
	var facts prompt.EnvFacts
	if s.envFacts != nil {
		facts = s.envFacts()
	}
	sysInstr := ""
	if s.assembler != nil {
		built, err := s.assembler.Build(facts)
		if err != nil {
			return content.GenerateConfig{}, err
		}
		sysInstr = built
	}

	var decls []content.ToolDeclaration
	if s.reg != nil {
		for _, d := range s.reg.Declarations() {
			decls = append(decls, content.ToolDeclaration{Name: d.Name, Description: d.Description, Parameters: d.ParamsSchema})
		}
	}

	return content.GenerateConfig{SystemInstruction: sysInstr, Tools: decls}, nil
}

// Compressor is the subset of *compaction.Compressor ChatSession/AgentLoop
// need, narrowed for testability.
type Compressor interface {
	TryCompress(ctx context.Context, curated []protocol.Content, force bool) (*compaction.Record, []protocol.Content, error)
}
