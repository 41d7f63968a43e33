package compaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

type fakeCounter struct{ perEntry int }

func (f *fakeCounter) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	return len(contents) * f.perEntry, nil
}

type fakeSummarizer struct{ text string }

func (f *fakeSummarizer) Generate(ctx context.Context, model string, contents []protocol.Content, cfg content.GenerateConfig) (content.Response, error) {
	return content.Response{Parts: []protocol.Part{protocol.NewText(f.text)}}, nil
}

func buildHistory(n int) []protocol.Content {
	var out []protocol.Content
	for i := 0; i < n; i++ {
		out = append(out,
			protocol.Content{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText("question")}},
			protocol.Content{Role: protocol.RoleModel, Parts: []protocol.Part{protocol.NewText("answer")}},
		)
	}
	return out
}

func TestTryCompressEmptyHistoryReturnsNone(t *testing.T) {
	c := New(&fakeCounter{perEntry: 100}, &fakeSummarizer{text: "snap"}, "model", 1000)
	rec, _, err := c.TryCompress(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTryCompressBelowThresholdReturnsNoneUnlessForced(t *testing.T) {
	c := New(&fakeCounter{perEntry: 1}, &fakeSummarizer{text: "snap"}, "model", 1000)
	history := buildHistory(5) // 10 entries * 1 token = 10, well under 0.7*1000
	rec, _, err := c.TryCompress(context.Background(), history, false)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, newHistory, err := c.TryCompress(context.Background(), history, true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Less(t, rec.NewTokens, rec.OriginalTokens)
	assert.NotEmpty(t, newHistory)
}

func TestTryCompressAboveThresholdCompresses(t *testing.T) {
	c := New(&fakeCounter{perEntry: 100}, &fakeSummarizer{text: "snap"}, "model", 1000)
	history := buildHistory(10) // 20 entries * 100 = 2000 tokens > 700
	rec, newHistory, err := c.TryCompress(context.Background(), history, false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Less(t, rec.NewTokens, rec.OriginalTokens)
	assert.Equal(t, "snap", rec.SummaryContent)
	// first two entries of the new history are the synthetic exchange
	assert.Equal(t, protocol.RoleUser, newHistory[0].Role)
	assert.Equal(t, protocol.RoleModel, newHistory[1].Role)
	assert.Equal(t, SummaryAck, newHistory[1].Parts[0].Text)
}

func TestFindSplitIndexNeverSplitsMidToolExchange(t *testing.T) {
	history := []protocol.Content{
		{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText("do something")}},
		{Role: protocol.RoleModel, Parts: []protocol.Part{protocol.NewFunctionCall("1", "read_file", nil)}},
		{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewFunctionResponse("1", "read_file", nil)}},
		{Role: protocol.RoleModel, Parts: []protocol.Part{protocol.NewText("here's the content")}},
	}
	idx := FindSplitIndex(history, 0.3)
	if idx > 0 && idx < len(history) {
		assert.True(t, history[idx].Role == protocol.RoleUser)
		assert.NotEqual(t, protocol.PartFunctionResponse, history[idx].Parts[0].Kind)
	}
}

func TestChunkByCharWeightNeverSplitsSingleEntry(t *testing.T) {
	history := buildHistory(5)
	chunks := ChunkByCharWeight(history, 1)
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, len(history), total)
}
