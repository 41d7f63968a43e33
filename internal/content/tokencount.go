package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// LocalEstimator counts tokens with tiktoken-go rather than a network round
// trip, for backends (or the fake test generator) that do not offer a
// countTokens endpoint.
type LocalEstimator struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
}

func NewLocalEstimator() *LocalEstimator {
	return &LocalEstimator{encs: make(map[string]*tiktoken.Tiktoken)}
}

func (e *LocalEstimator) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.encs[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tokencount: no encoding available: %w", err)
		}
	}
	e.encs[model] = enc
	return enc, nil
}

// Count estimates the token length of a content sequence by serializing
// each part to text and encoding it.
func (e *LocalEstimator) Count(model string, contents []protocol.Content) (int, error) {
	enc, err := e.encodingFor(model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range contents {
		for _, p := range c.Parts {
			total += len(enc.Encode(partText(p), nil, nil))
		}
	}
	return total, nil
}

// CountTokens adapts Count to the compaction.TokenCounter interface.
func (e *LocalEstimator) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	return e.Count(model, contents)
}

func partText(p protocol.Part) string {
	switch p.Kind {
	case protocol.PartText:
		return p.Text
	case protocol.PartThought:
		return p.ThoughtText
	case protocol.PartFunctionCall:
		return fmt.Sprintf("%s(%v)", p.Name, p.Args)
	case protocol.PartFunctionResponse:
		return fmt.Sprintf("%s=%v", p.Name, p.Payload)
	default:
		return ""
	}
}
