// Package scheduler moves a batch of tool-call requests through
// validation, optional confirmation, execution, and completion. One batch
// is in flight at a time; calls within it execute concurrently, state
// mutations are serialized, and the completion listener fires once for
// the whole batch.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/registry"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// ApprovalMode controls the confirmation policy applied when a call leaves
// Validating.
type ApprovalMode string

const (
	ApprovalDefault ApprovalMode = "default" // consult tool.ShouldConfirm
	ApprovalYolo    ApprovalMode = "yolo"    // skip confirmation entirely
)

// ResultGuard redacts a tool result's content before it is persisted to
// history, for secrets appearing in shell output. Off by default.
type ResultGuard func(callID string, result *protocol.ExecuteResult) *protocol.ExecuteResult

func identityGuard(_ string, r *protocol.ExecuteResult) *protocol.ExecuteResult { return r }

// Listener receives snapshot updates during scheduling and the single
// terminal completion callback for a batch.
type Listener struct {
	OnUpdate   func(batch []protocol.ToolCall)
	OnComplete func(batch []protocol.ToolCall)
}

// Scheduler owns the in-flight batch of ToolCalls for one Turn.
type Scheduler struct {
	mu       sync.Mutex
	registry *registry.Registry
	logger   *observability.Logger
	guard    ResultGuard
	metrics  *Metrics

	batch     []*protocol.ToolCall
	completed bool

	approvalMode ApprovalMode
	allowlist    map[string]bool // tool name or source, memoized ProceedAlways scope

	maxConcurrency int
	tracer         *observability.Tracer

	listener Listener
}

// WithTracer attaches a Tracer; every tool execution is wrapped in a span.
func (s *Scheduler) WithTracer(t *observability.Tracer) *Scheduler {
	s.tracer = t
	return s
}

func New(reg *registry.Registry, logger *observability.Logger, mode ApprovalMode) *Scheduler {
	return &Scheduler{
		registry:       reg,
		logger:         logger,
		guard:          identityGuard,
		metrics:        NewMetrics(),
		approvalMode:   mode,
		allowlist:      make(map[string]bool),
		maxConcurrency: 5,
	}
}

func (s *Scheduler) WithResultGuard(g ResultGuard) *Scheduler {
	if g != nil {
		s.guard = g
	}
	return s
}

func (s *Scheduler) WithMaxConcurrency(n int) *Scheduler {
	if n > 0 {
		s.maxConcurrency = n
	}
	return s
}

// Metrics exposes the scheduler's collectors for registration with a
// prometheus registry.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// IsRunning reports whether any entry is Executing or AwaitingApproval,
// the condition that locks the scheduler against new batches.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunningLocked()
}

func (s *Scheduler) isRunningLocked() bool {
	for _, c := range s.batch {
		if c.State == protocol.StateExecuting || c.State == protocol.StateAwaitingApproval {
			return true
		}
	}
	return false
}

// ToolRequest is one entry in a TurnEngine-produced batch.
type ToolRequest struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Schedule begins a new batch. It is an error to call while IsRunning().
func (s *Scheduler) Schedule(ctx context.Context, requests []ToolRequest, listener Listener) error {
	s.mu.Lock()
	if s.isRunningLocked() {
		s.mu.Unlock()
		return protocol.NewRuntimeError(protocol.ErrExecution, "scheduler: a batch is already in flight", nil)
	}
	s.listener = listener
	s.completed = false
	s.batch = make([]*protocol.ToolCall, 0, len(requests))

	for _, req := range requests {
		call := &protocol.ToolCall{CallID: req.CallID, Name: req.Name, Args: req.Args, StartedAt: time.Now()}
		if _, ok := s.registry.Lookup(req.Name); !ok {
			call.State = protocol.StateError
			call.ErrorMessage = fmt.Sprintf("tool %q not found", req.Name)
		} else {
			call.State = protocol.StateValidating
		}
		s.batch = append(s.batch, call)
	}
	s.emitUpdateLocked()

	for _, call := range s.batch {
		if call.State != protocol.StateValidating {
			continue
		}
		s.transitionFromValidatingLocked(ctx, call)
	}
	s.emitUpdateLocked()
	s.mu.Unlock()

	s.attemptExecution(ctx)
	return nil
}

// transitionFromValidatingLocked validates params, then applies the
// confirmation policy: Yolo mode and allowlisted tools skip straight to
// Scheduled; otherwise tool.ShouldConfirm decides. Caller holds s.mu.
func (s *Scheduler) transitionFromValidatingLocked(ctx context.Context, call *protocol.ToolCall) {
	desc, ok := s.registry.Lookup(call.Name)
	if !ok {
		call.State = protocol.StateError
		call.ErrorMessage = fmt.Sprintf("tool %q not found", call.Name)
		return
	}

	if desc.ValidateParams != nil {
		if err := desc.ValidateParams(call.Args); err != nil {
			call.State = protocol.StateError
			call.ErrorMessage = err.Error()
			return
		}
	}

	if s.approvalMode == ApprovalYolo || s.allowlist[allowlistKey(desc)] {
		call.State = protocol.StateScheduled
		return
	}

	if desc.ShouldConfirm == nil {
		call.State = protocol.StateScheduled
		return
	}
	details, err := desc.ShouldConfirm(ctx, call.Args)
	if err != nil {
		call.State = protocol.StateError
		call.ErrorMessage = err.Error()
		return
	}
	if details == nil {
		call.State = protocol.StateScheduled
		return
	}
	call.State = protocol.StateAwaitingApproval
	call.Confirmation = details
}

func allowlistKey(desc *protocol.ToolDescriptor) string {
	if desc.Source != "" {
		return "source:" + desc.Source
	}
	return "tool:" + desc.Name
}

// attemptExecution only runs when every entry is terminal or Scheduled,
// then executes every Scheduled entry concurrently.
func (s *Scheduler) attemptExecution(ctx context.Context) {
	s.mu.Lock()
	for _, c := range s.batch {
		if !c.State.IsTerminal() && c.State != protocol.StateScheduled {
			s.mu.Unlock()
			s.maybeComplete()
			return
		}
	}
	toRun := make([]*protocol.ToolCall, 0, len(s.batch))
	for _, c := range s.batch {
		if c.State == protocol.StateScheduled {
			c.State = protocol.StateExecuting
			toRun = append(toRun, c)
		}
	}
	s.emitUpdateLocked()
	s.mu.Unlock()

	if len(toRun) == 0 {
		s.maybeComplete()
		return
	}

	sem := make(chan struct{}, s.maxConcurrency)
	g, gctx := errgroup.WithContext(ctx)
	for _, call := range toRun {
		call := call
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			s.executeOne(gctx, call)
			return nil
		})
	}
	_ = g.Wait()

	s.maybeComplete()
}

func (s *Scheduler) executeOne(ctx context.Context, call *protocol.ToolCall) {
	desc, ok := s.registry.Lookup(call.Name)
	if !ok {
		s.mu.Lock()
		call.State = protocol.StateError
		call.ErrorMessage = "tool no longer registered"
		s.mu.Unlock()
		s.emitUpdate()
		return
	}

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "scheduler.execute",
			attribute.String("tool", call.Name), attribute.String("call_id", call.CallID))
		defer span.End()
	}

	start := time.Now()
	onProgress := func(chunk string) {
		s.mu.Lock()
		call.LiveOutput += chunk
		s.mu.Unlock()
		s.emitUpdate()
	}

	execCtx := ctx
	if desc.TimeoutMs > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(ctx, time.Duration(desc.TimeoutMs)*time.Millisecond)
		defer cancelTimeout()
	}

	result, err := safeExecute(execCtx, desc, call, onProgress)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		call.State = protocol.StateCancelled
		call.CancelReason = "User cancelled"
		return
	}
	if execCtx.Err() == context.DeadlineExceeded {
		call.State = protocol.StateError
		call.ErrorMessage = fmt.Sprintf("tool %q timed out after %dms", call.Name, desc.TimeoutMs)
		s.metrics.RecordTimeout(call.Name)
		return
	}

	if err != nil {
		call.State = protocol.StateError
		call.ErrorMessage = err.Error()
		if _, panicked := err.(*panicError); panicked {
			s.metrics.RecordPanic(call.Name)
		} else {
			s.metrics.RecordError(call.Name)
		}
		if span != nil {
			observability.RecordError(span, err)
		}
		return
	}

	result = s.guard(call.CallID, result)
	call.Response = CanonicalizeResult(call.CallID, call.Name, result)
	call.DurationMs = time.Since(start).Milliseconds()
	call.State = protocol.StateSuccess
	s.metrics.RecordSuccess(call.Name, call.DurationMs)
}

// panicError marks an execution failure that came from a recovered panic
// rather than an ordinary error return.
type panicError struct {
	tool  string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("tool %q panicked: %v", e.tool, e.value)
}

// safeExecute invokes the descriptor's Execute with panic recovery: a
// panicking tool becomes a terminal Error for that call, never a process
// crash.
func safeExecute(ctx context.Context, desc *protocol.ToolDescriptor, call *protocol.ToolCall, onProgress func(string)) (result *protocol.ExecuteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &panicError{tool: call.Name, value: r}
		}
	}()
	return desc.Execute(ctx, call.Args, onProgress)
}

// HandleConfirmation applies the user's answer to a pending confirmation.
// Legal only when the call is AwaitingApproval.
func (s *Scheduler) HandleConfirmation(ctx context.Context, callID string, outcome protocol.ConfirmationOutcome, payload *protocol.ConfirmationPayload) error {
	s.mu.Lock()
	var call *protocol.ToolCall
	for _, c := range s.batch {
		if c.CallID == callID {
			call = c
			break
		}
	}
	if call == nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown call %q", callID)
	}
	if call.State != protocol.StateAwaitingApproval {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: call %q is not awaiting approval", callID)
	}

	desc, _ := s.registry.Lookup(call.Name)

	switch outcome {
	case protocol.OutcomeCancel:
		call.State = protocol.StateCancelled
		call.CancelReason = "User declined"

	case protocol.OutcomeProceedOnce:
		s.applyInlineEditLocked(desc, call, payload)
		call.State = protocol.StateScheduled

	case protocol.OutcomeProceedAlwaysTool:
		s.applyInlineEditLocked(desc, call, payload)
		if desc != nil {
			s.allowlist["tool:"+desc.Name] = true
		}
		call.State = protocol.StateScheduled

	case protocol.OutcomeProceedAlwaysServer:
		s.applyInlineEditLocked(desc, call, payload)
		if desc != nil && desc.Source != "" {
			s.allowlist["source:"+desc.Source] = true
		}
		call.State = protocol.StateScheduled

	case protocol.OutcomeModifyWithEditor:
		call.IsModifying = true

	default:
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown outcome %q", outcome)
	}

	s.emitUpdateLocked()
	s.mu.Unlock()

	s.attemptExecution(ctx)
	return nil
}

// ApplyEditorResult is called when the editor bridge (internal/editor)
// returns: it updates args and the diff, and leaves the call in
// AwaitingApproval with isModifying=false.
func (s *Scheduler) ApplyEditorResult(callID string, newArgs map[string]any, newDiff string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.batch {
		if c.CallID == callID {
			c.Args = newArgs
			c.IsModifying = false
			if c.Confirmation != nil {
				c.Confirmation.Diff = newDiff
			}
			return nil
		}
	}
	return fmt.Errorf("scheduler: unknown call %q", callID)
}

func (s *Scheduler) applyInlineEditLocked(desc *protocol.ToolDescriptor, call *protocol.ToolCall, payload *protocol.ConfirmationPayload) {
	if payload == nil || payload.NewContent == nil || desc == nil || desc.ModifyContext == nil {
		return
	}
	oldContent, err := desc.ModifyContext.CurrentContent(call.Args)
	if err != nil {
		return
	}
	call.Args = desc.ModifyContext.UpdatedParams(oldContent, *payload.NewContent, call.Args)
}

// CancelAll transitions every non-terminal entry to Cancelled. Callers that
// need a UserCancelled *event* get it from the turn engine; this method
// only governs in-flight ToolCalls.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for _, c := range s.batch {
		if !c.State.IsTerminal() {
			c.State = protocol.StateCancelled
			c.CancelReason = "User cancelled"
		}
	}
	s.emitUpdateLocked()
	s.mu.Unlock()
	s.maybeComplete()
}

// maybeComplete fires the completion listener exactly once per batch, when
// every entry is terminal.
func (s *Scheduler) maybeComplete() {
	s.mu.Lock()
	if s.completed || len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	for _, c := range s.batch {
		if !c.State.IsTerminal() {
			s.mu.Unlock()
			return
		}
	}
	s.completed = true
	snapshot := s.snapshotLocked()
	listener := s.listener
	s.batch = nil
	s.mu.Unlock()

	if listener.OnComplete != nil {
		listener.OnComplete(snapshot)
	}
}

func (s *Scheduler) emitUpdate() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	listener := s.listener
	s.mu.Unlock()
	if listener.OnUpdate != nil {
		listener.OnUpdate(snapshot)
	}
}

func (s *Scheduler) emitUpdateLocked() {
	snapshot := s.snapshotLocked()
	listener := s.listener
	if listener.OnUpdate != nil {
		listener.OnUpdate(snapshot)
	}
}

// snapshotLocked returns a value-copy of the batch in original-request
// order. Caller holds s.mu.
func (s *Scheduler) snapshotLocked() []protocol.ToolCall {
	out := make([]protocol.ToolCall, len(s.batch))
	for i, c := range s.batch {
		out[i] = *c
	}
	return out
}
