package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// nextSpeakerSystemPrompt is the fixed instruction for the auxiliary
// one-shot probe: a small model call returning {next_speaker, reasoning}.
const nextSpeakerSystemPrompt = `Analyze the conversation so far. Decide who should speak next.
Respond with a single JSON object of exactly this shape, and nothing else:
{"next_speaker": "user" | "model", "reasoning": "<one sentence>"}
Choose "model" only if the assistant's last turn left a concrete, actionable
next step that it, not the user, should take next.`

type nextSpeakerResult struct {
	NextSpeaker string `json:"next_speaker"`
	Reasoning   string `json:"reasoning"`
}

// NextSpeakerProbe runs the auxiliary one-shot generator call AgentLoop
// consults when a turn finishes with no pending tool calls.
type NextSpeakerProbe struct {
	Generator content.ContentGenerator
	Model     string
}

// Probe returns "model" or "user". Any error from the probe call itself,
// including context cancellation, means the caller must treat it as
// "stop", never continue.
func (p *NextSpeakerProbe) Probe(ctx context.Context, curated []protocol.Content) (string, error) {
	resp, err := p.Generator.Generate(ctx, p.Model, curated, content.GenerateConfig{SystemInstruction: nextSpeakerSystemPrompt})
	if err != nil {
		return "", err
	}
	for _, part := range resp.Parts {
		if part.Kind != protocol.PartText || part.Text == "" {
			continue
		}
		var parsed nextSpeakerResult
		if jsonErr := json.Unmarshal([]byte(part.Text), &parsed); jsonErr == nil && parsed.NextSpeaker != "" {
			return parsed.NextSpeaker, nil
		}
	}
	return "", fmt.Errorf("nextspeaker: probe returned no parseable JSON response")
}
