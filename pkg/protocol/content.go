// Package protocol defines the wire-agnostic data model shared by every
// component of the agent runtime: conversation content, tool calls, and
// the event variants the turn engine emits.
package protocol

import "fmt"

// Role identifies the speaker of a Content entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind discriminates the tagged variants of Part.
type PartKind string

const (
	PartText             PartKind = "text"
	PartInlineBlob       PartKind = "inline_blob"
	PartFileRef          PartKind = "file_ref"
	PartFunctionCall     PartKind = "function_call"
	PartFunctionResponse PartKind = "function_response"
	PartThought          PartKind = "thought"
)

// Part is a tagged union. Exactly the fields relevant to Kind are populated;
// callers must switch on Kind before reading payload fields.
type Part struct {
	Kind PartKind

	// PartText
	Text string

	// PartInlineBlob
	MimeType string
	Bytes    []byte

	// PartFileRef
	URI string

	// PartFunctionCall
	CallID string
	Name   string
	Args   map[string]any

	// PartFunctionResponse
	Payload map[string]any

	// PartThought
	ThoughtText string
}

func NewText(s string) Part                  { return Part{Kind: PartText, Text: s} }
func NewThought(s string) Part                { return Part{Kind: PartThought, ThoughtText: s} }
func NewInlineBlob(mime string, b []byte) Part { return Part{Kind: PartInlineBlob, MimeType: mime, Bytes: b} }
func NewFileRef(mime, uri string) Part        { return Part{Kind: PartFileRef, MimeType: mime, URI: uri} }

func NewFunctionCall(callID, name string, args map[string]any) Part {
	return Part{Kind: PartFunctionCall, CallID: callID, Name: name, Args: args}
}

func NewFunctionResponse(callID, name string, payload map[string]any) Part {
	return Part{Kind: PartFunctionResponse, CallID: callID, Name: name, Payload: payload}
}

// IsEmpty reports whether a part carries no user-visible content. The
// history curation rule does not call it; it uses Content.HasVisibleContent.
func (p Part) IsEmpty() bool {
	switch p.Kind {
	case PartText:
		return p.Text == ""
	case PartThought:
		return true
	case PartInlineBlob:
		return len(p.Bytes) == 0
	case PartFileRef:
		return p.URI == ""
	default:
		return false
	}
}

// Content is an ordered sequence of Parts spoken by one Role.
type Content struct {
	Role  Role
	Parts []Part
}

// HasOnlyFunctionResponses reports whether every part is a FunctionResponse,
// the one case where two consecutive user entries are permitted.
func (c Content) HasOnlyFunctionResponses() bool {
	if len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.Kind != PartFunctionResponse {
			return false
		}
	}
	return true
}

// HasVisibleContent reports whether at least one part is non-empty text or
// a non-thought, non-text part, the test the curation rule applies to
// model entries.
func (c Content) HasVisibleContent() bool {
	for _, p := range c.Parts {
		if p.Kind == PartThought {
			continue
		}
		if p.Kind == PartText {
			if p.Text != "" {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// ApproxCharWeight is the character-length proxy used as the compression
// split-point weight (see internal/compaction); deliberately not a token
// count.
func (c Content) ApproxCharWeight() int {
	n := 0
	for _, p := range c.Parts {
		switch p.Kind {
		case PartText:
			n += len(p.Text)
		case PartThought:
			n += len(p.ThoughtText)
		case PartFunctionCall:
			n += len(p.Name) + len(fmt.Sprint(p.Args))
		case PartFunctionResponse:
			n += len(p.Name) + len(fmt.Sprint(p.Payload))
		case PartInlineBlob:
			n += len(p.Bytes)
		case PartFileRef:
			n += len(p.URI)
		}
	}
	return n
}
