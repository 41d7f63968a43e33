package turn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func drain(ch <-chan protocol.Event, timeout time.Duration) []protocol.Event {
	var events []protocol.Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			return events
		}
	}
}

func TestSingleTextTurnEmitsContentThenFinished(t *testing.T) {
	gen := content.NewFakeGenerator(content.AuthApiKey, content.Response{
		Parts:        []protocol.Part{protocol.NewText("Hi!")},
		FinishReason: "STOP",
	})
	e := New(gen, "test-model")
	events := drain(e.Run(context.Background(), "p1", []protocol.Part{protocol.NewText("hello")}, content.GenerateConfig{}), time.Second)

	require.Len(t, events, 2)
	assert.Equal(t, protocol.EventContent, events[0].Kind)
	assert.Equal(t, "Hi!", events[0].Text)
	assert.Equal(t, protocol.EventFinished, events[1].Kind)
}

func TestToolCallRequestGetsGeneratedCallIDWhenAbsent(t *testing.T) {
	gen := content.NewFakeGenerator(content.AuthApiKey, content.Response{
		Parts: []protocol.Part{protocol.NewFunctionCall("", "read_file", map[string]any{"path": "/a"})},
	})
	e := New(gen, "test-model")
	events := drain(e.Run(context.Background(), "p1", nil, content.GenerateConfig{}), time.Second)

	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventToolCallRequest, events[0].Kind)
	assert.NotEmpty(t, events[0].CallID)
	assert.Contains(t, events[0].CallID, "read_file-")
}

func TestThoughtSplitsSubjectAndDescription(t *testing.T) {
	subject, description := splitThought("**Planning** I will read the file next.")
	assert.Equal(t, "Planning", subject)
	assert.Equal(t, "I will read the file next.", description)
}

func TestThoughtWithoutMarkersHasEmptySubject(t *testing.T) {
	subject, description := splitThought("just thinking")
	assert.Equal(t, "", subject)
	assert.Equal(t, "just thinking", description)
}

func TestCancellationEmitsUserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := content.NewFakeGenerator(content.AuthApiKey, content.Response{Parts: []protocol.Part{protocol.NewText("too late")}})
	e := New(gen, "test-model")
	events := drain(e.Run(ctx, "p1", nil, content.GenerateConfig{}), time.Second)

	require.NotEmpty(t, events)
	assert.Equal(t, protocol.EventUserCancelled, events[0].Kind)
}
