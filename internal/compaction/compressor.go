// Package compaction performs the lossy but structured history compression
// that keeps a growing conversation under the model's context limit: split
// the curated log at a character-weight boundary, summarize the prefix into
// a state snapshot, and rebuild the history around it.
package compaction

import (
	"context"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// Record describes one completed compression.
type Record struct {
	OriginalTokens int
	NewTokens      int
	SummaryContent string
}

// SummaryAck is the synthetic model acknowledgement appended after the
// snapshot.
const SummaryAck = "Got it. Thanks for the additional context!"

// TokenCounter is the subset of ContentGenerator compaction needs.
type TokenCounter interface {
	CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error)
}

// Summarizer performs the dedicated one-shot summarization call.
type Summarizer interface {
	Generate(ctx context.Context, model string, contents []protocol.Content, cfg content.GenerateConfig) (content.Response, error)
}

// Compressor owns the threshold/model configuration TryCompress needs.
type Compressor struct {
	Model           string
	ModelTokenLimit int
	ForceThreshold  float64 // fraction of ModelTokenLimit that triggers compression; default 0.7
	SplitFraction   float64 // fraction of character weight to retain as the held suffix; default 0.3
	SystemPrompt    string

	// MaxSummarizeChars bounds one summarization call; a prefix heavier
	// than this is chunked, summarized piecewise, and merged. 0 disables
	// chunking.
	MaxSummarizeChars int

	Counter    TokenCounter
	Summarizer Summarizer
}

func New(counter TokenCounter, summarizer Summarizer, model string, modelTokenLimit int) *Compressor {
	return &Compressor{
		Model:             model,
		ModelTokenLimit:   modelTokenLimit,
		ForceThreshold:    0.7,
		SplitFraction:     0.3,
		SystemPrompt:      CompressionSystemPrompt,
		MaxSummarizeChars: 200_000,
		Counter:           counter,
		Summarizer:        summarizer,
	}
}

// TryCompress compresses curated when it is over threshold (or force is
// set), returning the record and the rebuilt history. The compressor never
// sees the comprehensive log; the caller passes the curated view and
// installs the result.
func (c *Compressor) TryCompress(ctx context.Context, curated []protocol.Content, force bool) (*Record, []protocol.Content, error) {
	if len(curated) == 0 {
		return nil, curated, nil
	}

	originalTokens, err := c.Counter.CountTokens(ctx, c.Model, curated)
	if err != nil {
		return nil, curated, err
	}
	if !force && float64(originalTokens) < c.ForceThreshold*float64(c.ModelTokenLimit) {
		return nil, curated, nil
	}

	splitIdx := FindSplitIndex(curated, c.SplitFraction)
	prefix, held := curated[:splitIdx], curated[splitIdx:]
	if len(prefix) == 0 {
		return nil, curated, nil
	}

	summaryText, err := c.summarize(ctx, prefix)
	if err != nil {
		return nil, curated, err
	}

	newHistory := make([]protocol.Content, 0, len(held)+2)
	newHistory = append(newHistory,
		protocol.Content{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText(summaryText)}},
		protocol.Content{Role: protocol.RoleModel, Parts: []protocol.Part{protocol.NewText(SummaryAck)}},
	)
	newHistory = append(newHistory, held...)

	newTokens, err := c.Counter.CountTokens(ctx, c.Model, newHistory)
	if err != nil {
		return nil, curated, err
	}
	if newTokens >= originalTokens {
		// The summary did not actually shrink the history; keep the
		// original rather than replace it with something larger.
		return nil, curated, nil
	}

	return &Record{OriginalTokens: originalTokens, NewTokens: newTokens, SummaryContent: summaryText}, newHistory, nil
}

func (c *Compressor) summarize(ctx context.Context, prefix []protocol.Content) (string, error) {
	if c.MaxSummarizeChars > 0 {
		total := 0
		for _, e := range prefix {
			total += e.ApproxCharWeight()
		}
		if total > c.MaxSummarizeChars {
			return c.summarizeChunked(ctx, prefix)
		}
	}
	return c.summarizeOnce(ctx, prefix)
}

// summarizeChunked summarizes each chunk independently, then merges the
// partial snapshots with one final summarization call.
func (c *Compressor) summarizeChunked(ctx context.Context, prefix []protocol.Content) (string, error) {
	chunks := ChunkByCharWeight(prefix, c.MaxSummarizeChars)
	partials := make([]protocol.Content, 0, len(chunks))
	for _, chunk := range chunks {
		text, err := c.summarizeOnce(ctx, chunk)
		if err != nil {
			return "", err
		}
		partials = append(partials, protocol.Content{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText(text)}})
	}
	if len(partials) == 1 {
		return partials[0].Parts[0].Text, nil
	}
	return c.summarizeOnce(ctx, partials)
}

func (c *Compressor) summarizeOnce(ctx context.Context, contents []protocol.Content) (string, error) {
	resp, err := c.Summarizer.Generate(ctx, c.Model, contents, content.GenerateConfig{SystemInstruction: c.SystemPrompt})
	if err != nil {
		return "", err
	}
	for _, p := range resp.Parts {
		if p.Kind == protocol.PartText && p.Text != "" {
			return p.Text, nil
		}
	}
	return "", fmt.Errorf("compaction: summarization call returned no text")
}

// FindSplitIndex returns the first index past `1 - splitFraction` of total
// character weight, advanced forward until it lands on a user entry whose
// first part is not a FunctionResponse (never split mid tool-exchange).
// Character length is the weight proxy deliberately: deterministic and
// cheap, no tokenizer round trip.
func FindSplitIndex(curated []protocol.Content, splitFraction float64) int {
	total := 0
	for _, c := range curated {
		total += c.ApproxCharWeight()
	}
	target := float64(total) * (1 - splitFraction)

	running := 0
	idx := 0
	for i, c := range curated {
		running += c.ApproxCharWeight()
		if float64(running) > target {
			idx = i + 1
			break
		}
		idx = i + 1
	}

	for idx < len(curated) {
		entry := curated[idx]
		if entry.Role == protocol.RoleUser && (len(entry.Parts) == 0 || entry.Parts[0].Kind != protocol.PartFunctionResponse) {
			break
		}
		idx++
	}
	return idx
}
