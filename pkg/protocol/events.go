package protocol

// EventKind discriminates the variants a Turn emits.
type EventKind string

const (
	EventContent          EventKind = "content"
	EventThought          EventKind = "thought"
	EventToolCallRequest  EventKind = "tool_call_request"
	EventFinished         EventKind = "finished"
	EventError            EventKind = "error"
	EventUserCancelled    EventKind = "user_cancelled"
	EventChatCompressed   EventKind = "chat_compressed"
	EventLoopDetected     EventKind = "loop_detected"
	EventMaxSessionTurns  EventKind = "max_session_turns"
)

// FinishReason mirrors the backend's own terminology; the runtime passes it
// through unmodified.
type FinishReason string

// Event is the single variant emitted onto a Turn's event stream.
type Event struct {
	Kind EventKind

	// EventContent
	Text string

	// EventThought
	ThoughtSubject     string
	ThoughtDescription string

	// EventToolCallRequest
	CallID string
	Name   string
	Args   map[string]any

	// EventFinished
	Reason FinishReason

	// EventError
	ErrorKind    ErrorKind
	ErrorMessage string

	// EventChatCompressed
	OriginalTokens int
	NewTokens      int
}

func ContentEvent(text string) Event { return Event{Kind: EventContent, Text: text} }

func ThoughtEvent(subject, description string) Event {
	return Event{Kind: EventThought, ThoughtSubject: subject, ThoughtDescription: description}
}

func ToolCallRequestEvent(callID, name string, args map[string]any) Event {
	return Event{Kind: EventToolCallRequest, CallID: callID, Name: name, Args: args}
}

func FinishedEvent(reason FinishReason) Event { return Event{Kind: EventFinished, Reason: reason} }

func ErrorEvent(kind ErrorKind, message string) Event {
	return Event{Kind: EventError, ErrorKind: kind, ErrorMessage: message}
}

func UserCancelledEvent() Event { return Event{Kind: EventUserCancelled} }

func ChatCompressedEvent(original, newTokens int) Event {
	return Event{Kind: EventChatCompressed, OriginalTokens: original, NewTokens: newTokens}
}

func LoopDetectedEvent() Event { return Event{Kind: EventLoopDetected} }

func MaxSessionTurnsEvent() Event { return Event{Kind: EventMaxSessionTurns} }
