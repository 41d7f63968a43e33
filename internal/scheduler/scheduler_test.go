package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/registry"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func newTestScheduler(mode ApprovalMode) (*Scheduler, *registry.Registry) {
	reg := registry.New()
	logger := observability.New(observability.Config{})
	return New(reg, logger, mode), reg
}

func registerEchoTool(reg *registry.Registry, name string, confirm bool) {
	desc := &protocol.ToolDescriptor{
		Name: name,
		Execute: func(ctx context.Context, args map[string]any, onProgress func(string)) (*protocol.ExecuteResult, error) {
			return &protocol.ExecuteResult{LLMContentString: "ok", HasLLMContentStr: true}, nil
		},
	}
	if confirm {
		desc.ShouldConfirm = func(ctx context.Context, args map[string]any) (*protocol.ConfirmationDetails, error) {
			return &protocol.ConfirmationDetails{Kind: protocol.ConfirmExec, Title: "run " + name}, nil
		}
	}
	reg.Register(desc, false)
}

func waitForComplete(t *testing.T, fire func(listener Listener), timeout time.Duration) []protocol.ToolCall {
	t.Helper()
	done := make(chan []protocol.ToolCall, 1)
	fire(Listener{OnComplete: func(batch []protocol.ToolCall) { done <- batch }})
	select {
	case batch := <-done:
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

func TestBatchAllMissingToolsCompleteImmediatelyAsErrors(t *testing.T) {
	s, _ := newTestScheduler(ApprovalYolo)
	batch := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "missing"}}, l))
	}, time.Second)

	require.Len(t, batch, 1)
	assert.Equal(t, protocol.StateError, batch[0].State)
}

func TestYoloModeSkipsConfirmation(t *testing.T) {
	s, reg := newTestScheduler(ApprovalYolo)
	registerEchoTool(reg, "echo", true)

	batch := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "echo"}}, l))
	}, time.Second)

	require.Len(t, batch, 1)
	assert.Equal(t, protocol.StateSuccess, batch[0].State)
}

func TestDefaultModeAwaitsApprovalThenCancel(t *testing.T) {
	s, reg := newTestScheduler(ApprovalDefault)
	registerEchoTool(reg, "echo", true)

	var snapshot []protocol.ToolCall
	done := make(chan []protocol.ToolCall, 1)
	require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "echo"}}, Listener{
		OnUpdate: func(b []protocol.ToolCall) {
			if len(b) > 0 && b[0].State == protocol.StateAwaitingApproval {
				snapshot = b
			}
		},
		OnComplete: func(b []protocol.ToolCall) { done <- b },
	}))

	require.Eventually(t, func() bool { return snapshot != nil }, time.Second, time.Millisecond)
	require.NoError(t, s.HandleConfirmation(context.Background(), "1", protocol.OutcomeCancel, nil))

	select {
	case batch := <-done:
		require.Len(t, batch, 1)
		assert.Equal(t, protocol.StateCancelled, batch[0].State)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestIsRunningTrueOnlyWhileExecutingOrAwaitingApproval(t *testing.T) {
	s, reg := newTestScheduler(ApprovalDefault)
	registerEchoTool(reg, "echo", true)

	assert.False(t, s.IsRunning())
	done := make(chan struct{})
	require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "echo"}}, Listener{
		OnComplete: func(b []protocol.ToolCall) { close(done) },
	}))
	require.Eventually(t, func() bool { return s.IsRunning() }, time.Second, time.Millisecond)

	require.NoError(t, s.HandleConfirmation(context.Background(), "1", protocol.OutcomeCancel, nil))
	<-done
	assert.False(t, s.IsRunning())
}

func TestScheduleRejectedWhileRunning(t *testing.T) {
	s, reg := newTestScheduler(ApprovalDefault)
	registerEchoTool(reg, "echo", true)

	require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "echo"}}, Listener{}))
	require.Eventually(t, func() bool { return s.IsRunning() }, time.Second, time.Millisecond)

	err := s.Schedule(context.Background(), []ToolRequest{{CallID: "2", Name: "echo"}}, Listener{})
	assert.Error(t, err)
}

func TestMaybeCompleteFiresExactlyOnce(t *testing.T) {
	s, reg := newTestScheduler(ApprovalYolo)
	registerEchoTool(reg, "echo", false)

	var mu sync.Mutex
	completions := 0
	done := make(chan struct{})
	require.NoError(t, s.Schedule(context.Background(), []ToolRequest{
		{CallID: "1", Name: "echo"},
		{CallID: "2", Name: "echo"},
		{CallID: "3", Name: "missing"},
	}, Listener{
		OnComplete: func(b []protocol.ToolCall) {
			mu.Lock()
			completions++
			mu.Unlock()
			close(done)
		},
	}))
	<-done
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completions)
}

func TestCompletionSnapshotPreservesOriginalOrder(t *testing.T) {
	s, reg := newTestScheduler(ApprovalYolo)
	registerEchoTool(reg, "echo", false)

	batch := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{
			{CallID: "a", Name: "echo"},
			{CallID: "b", Name: "echo"},
			{CallID: "c", Name: "echo"},
		}, l))
	}, time.Second)

	require.Len(t, batch, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{batch[0].CallID, batch[1].CallID, batch[2].CallID})
}

func TestCanonicalizationIdempotent(t *testing.T) {
	result := &protocol.ExecuteResult{LLMContentString: "hello", HasLLMContentStr: true}
	first := CanonicalizeResult("1", "echo", result)
	require.Len(t, first, 1)

	second := CanonicalizeResult("1", "echo", &protocol.ExecuteResult{
		LLMContentPart:    &first[0],
		HasLLMContentPart: true,
	})
	require.Len(t, second, 1)

	assert.Equal(t, first[0].Payload["output"], second[0].Payload["output"])
}

func TestCanonicalizeBinaryPartKeepsBinaryAfterResponse(t *testing.T) {
	blob := protocol.NewInlineBlob("image/png", []byte{1, 2, 3})
	out := CanonicalizeResult("1", "screenshot", &protocol.ExecuteResult{
		LLMContentPart:    &blob,
		HasLLMContentPart: true,
	})

	require.Len(t, out, 2)
	assert.Equal(t, protocol.PartFunctionResponse, out[0].Kind)
	assert.Equal(t, "Binary content of type image/png was processed.", out[0].Payload["output"])
	assert.Equal(t, protocol.PartInlineBlob, out[1].Kind)
}

func TestCanonicalizePartsListPrependsSyntheticResponse(t *testing.T) {
	out := CanonicalizeResult("1", "multi", &protocol.ExecuteResult{
		LLMContentParts:    []protocol.Part{protocol.NewText("a"), protocol.NewText("b")},
		HasLLMContentParts: true,
	})

	require.Len(t, out, 3)
	assert.Equal(t, protocol.PartFunctionResponse, out[0].Kind)
	assert.Equal(t, "Tool execution succeeded.", out[0].Payload["output"])
	assert.Equal(t, "a", out[1].Text)
	assert.Equal(t, "b", out[2].Text)
}

func TestValidationFailureGoesTerminalErrorAndBatchContinues(t *testing.T) {
	s, reg := newTestScheduler(ApprovalYolo)
	registerEchoTool(reg, "echo", false)
	reg.Register(&protocol.ToolDescriptor{
		Name:           "picky",
		ValidateParams: func(args map[string]any) error { return assert.AnError },
		Execute: func(ctx context.Context, args map[string]any, onProgress func(string)) (*protocol.ExecuteResult, error) {
			t.Fatal("picky must not execute")
			return nil, nil
		},
	}, false)

	batch := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{
			{CallID: "1", Name: "picky"},
			{CallID: "2", Name: "echo"},
		}, l))
	}, time.Second)

	require.Len(t, batch, 2)
	assert.Equal(t, protocol.StateError, batch[0].State)
	assert.Equal(t, protocol.StateSuccess, batch[1].State)
}

func TestPanickingToolEndsInErrorNotCrash(t *testing.T) {
	s, reg := newTestScheduler(ApprovalYolo)
	registerEchoTool(reg, "echo", false)
	reg.Register(&protocol.ToolDescriptor{
		Name: "explosive",
		Execute: func(ctx context.Context, args map[string]any, onProgress func(string)) (*protocol.ExecuteResult, error) {
			panic("boom")
		},
	}, false)

	batch := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{
			{CallID: "1", Name: "explosive"},
			{CallID: "2", Name: "echo"},
		}, l))
	}, time.Second)

	require.Len(t, batch, 2)
	assert.Equal(t, protocol.StateError, batch[0].State)
	assert.Contains(t, batch[0].ErrorMessage, "panicked")
	assert.Contains(t, batch[0].ErrorMessage, "boom")
	assert.Equal(t, protocol.StateSuccess, batch[1].State)
}

func TestPerToolTimeoutEndsInError(t *testing.T) {
	s, reg := newTestScheduler(ApprovalYolo)
	reg.Register(&protocol.ToolDescriptor{
		Name:      "slow",
		TimeoutMs: 20,
		Execute: func(ctx context.Context, args map[string]any, onProgress func(string)) (*protocol.ExecuteResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}, false)

	batch := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "slow"}}, l))
	}, time.Second)

	require.Len(t, batch, 1)
	assert.Equal(t, protocol.StateError, batch[0].State)
	assert.Contains(t, batch[0].ErrorMessage, "timed out")
}

func TestProceedAlwaysToolSkipsLaterConfirmation(t *testing.T) {
	s, reg := newTestScheduler(ApprovalDefault)
	registerEchoTool(reg, "echo", true)

	done := make(chan []protocol.ToolCall, 1)
	require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "1", Name: "echo"}}, Listener{
		OnComplete: func(b []protocol.ToolCall) { done <- b },
	}))
	require.Eventually(t, func() bool { return s.IsRunning() }, time.Second, time.Millisecond)
	require.NoError(t, s.HandleConfirmation(context.Background(), "1", protocol.OutcomeProceedAlwaysTool, nil))
	first := <-done
	require.Len(t, first, 1)
	assert.Equal(t, protocol.StateSuccess, first[0].State)

	// A second batch with the same tool no longer awaits approval.
	second := waitForComplete(t, func(l Listener) {
		require.NoError(t, s.Schedule(context.Background(), []ToolRequest{{CallID: "2", Name: "echo"}}, l))
	}, time.Second)
	require.Len(t, second, 1)
	assert.Equal(t, protocol.StateSuccess, second[0].State)
}
