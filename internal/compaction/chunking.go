package compaction

import "github.com/haasonsaas/agentcore/pkg/protocol"

// ChunkByCharWeight splits a content sequence into chunks whose cumulative
// character weight does not exceed maxCharsPerChunk, never splitting a
// single Content entry across chunks. Used when the prefix to be
// summarized would itself overflow a single summarization call.
func ChunkByCharWeight(entries []protocol.Content, maxCharsPerChunk int) [][]protocol.Content {
	if maxCharsPerChunk <= 0 {
		return [][]protocol.Content{entries}
	}

	var chunks [][]protocol.Content
	var current []protocol.Content
	weight := 0
	for _, e := range entries {
		w := e.ApproxCharWeight()
		if weight > 0 && weight+w > maxCharsPerChunk {
			chunks = append(chunks, current)
			current = nil
			weight = 0
		}
		current = append(current, e)
		weight += w
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
