package protocol

import (
	"context"
	"time"
)

// ToolCallState discriminates the ToolCall state machine. Transitions are
// enforced by internal/scheduler; this package only names the variants.
type ToolCallState string

const (
	StateValidating       ToolCallState = "validating"
	StateAwaitingApproval ToolCallState = "awaiting_approval"
	StateScheduled        ToolCallState = "scheduled"
	StateExecuting        ToolCallState = "executing"
	StateSuccess          ToolCallState = "success"
	StateError            ToolCallState = "error"
	StateCancelled        ToolCallState = "cancelled"
)

// IsTerminal reports whether the state may never transition further.
func (s ToolCallState) IsTerminal() bool {
	switch s {
	case StateSuccess, StateError, StateCancelled:
		return true
	default:
		return false
	}
}

// ToolKind drives the default confirmation policy for a descriptor.
type ToolKind string

const (
	KindPure     ToolKind = "pure"
	KindMutating ToolKind = "mutating"
	KindExecuting ToolKind = "executing"
	KindFetching ToolKind = "fetching"
)

// ConfirmationOutcome is the user's answer to an AwaitingApproval prompt.
type ConfirmationOutcome string

const (
	OutcomeCancel             ConfirmationOutcome = "cancel"
	OutcomeProceedOnce        ConfirmationOutcome = "proceed_once"
	OutcomeProceedAlwaysTool  ConfirmationOutcome = "proceed_always_tool"
	OutcomeProceedAlwaysServer ConfirmationOutcome = "proceed_always_server"
	OutcomeModifyWithEditor   ConfirmationOutcome = "modify_with_editor"
)

// ConfirmationKind discriminates the confirmation-details tagged union
// surfaced to the UI.
type ConfirmationKind string

const (
	ConfirmEdit ConfirmationKind = "edit"
	ConfirmExec ConfirmationKind = "exec"
	ConfirmMcp  ConfirmationKind = "mcp"
	ConfirmInfo ConfirmationKind = "info"
)

// ConfirmationDetails is the tagged union a tool's shouldConfirm returns.
type ConfirmationDetails struct {
	Kind  ConfirmationKind
	Title string

	// ConfirmEdit
	FileName        string
	Diff            string
	OriginalContent string
	NewContent      string
	IsModifying     bool

	// ConfirmExec
	Command     string
	RootCommand string

	// ConfirmMcp
	ServerName      string
	ToolName        string
	ToolDisplayName string

	// ConfirmInfo
	Prompt string
	URLs   []string
}

// ConfirmationPayload accompanies a ProceedOnce, ProceedAlwaysTool, or
// ProceedAlwaysServer outcome when the user edited content inline before
// confirming.
type ConfirmationPayload struct {
	NewContent *string
}

// ToolCall is one entry in the scheduler's in-flight batch.
type ToolCall struct {
	CallID    string
	Name      string
	Args      map[string]any
	State     ToolCallState
	StartedAt time.Time

	// AwaitingApproval payload
	Confirmation *ConfirmationDetails
	IsModifying  bool

	// Executing payload
	LiveOutput string

	// Success payload. The first part is the canonical FunctionResponse;
	// binary or auxiliary parts follow in their original order.
	Response   []Part
	DurationMs int64

	// Error payload
	ErrorMessage string

	// Cancelled payload
	CancelReason string
}

// ExecuteResult is what a tool's execute operation returns.
type ExecuteResult struct {
	// LLMContent may be a string, []Part, or a single Part; callers set
	// exactly one of the three fields below.
	LLMContentString string
	LLMContentParts   []Part
	LLMContentPart    *Part
	HasLLMContentStr  bool
	HasLLMContentParts bool
	HasLLMContentPart bool

	ReturnDisplay string
	Summary       string
}

// ToolDescriptor is the contract every concrete tool implements.
// Capability is expressed as function fields rather than interface methods
// so a descriptor can be built for tools sourced from dynamic discovery
// (e.g. MCP) without a Go type per tool.
type ToolDescriptor struct {
	Name         string
	DisplayName  string
	Description  string
	ParamsSchema map[string]any
	Kind         ToolKind

	// Source identifies where a dynamically discovered tool came from
	// (e.g. an MCP server name); empty for built-in tools. Used by the
	// registry's collision-handling and by the allowlist's
	// ProceedAlwaysServer outcome.
	Source string

	// TimeoutMs bounds one execution; 0 means no per-tool timeout. On
	// elapse the call ends in Error, not Cancelled.
	TimeoutMs int64

	ValidateParams func(args map[string]any) error
	DescribeAction func(args map[string]any) string
	ShouldConfirm  func(ctx context.Context, args map[string]any) (*ConfirmationDetails, error)
	Execute        func(ctx context.Context, args map[string]any, onProgress func(chunk string)) (*ExecuteResult, error)

	// ModifyContext is non-nil only for tools that support inline-edit
	// confirmation.
	ModifyContext *ModifyContext
}

// ModifyContext is the adapter a tool provides to back-translate a
// confirmation-time inline edit into updated tool arguments.
type ModifyContext struct {
	FilePath        func(args map[string]any) string
	CurrentContent  func(args map[string]any) (string, error)
	ProposedContent func(args map[string]any) (string, error)
	UpdatedParams   func(oldContent, editedContent string, args map[string]any) map[string]any
}
