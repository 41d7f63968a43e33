package scheduler

import "github.com/haasonsaas/agentcore/pkg/protocol"

// CanonicalizeResult converts a tool's native ExecuteResult into the part
// sequence fed back to the model. The first part is always a
// FunctionResponse; binary or extra parts follow it in their original order.
func CanonicalizeResult(callID, name string, result *protocol.ExecuteResult) []protocol.Part {
	switch {
	case result.HasLLMContentStr:
		return []protocol.Part{protocol.NewFunctionResponse(callID, name, map[string]any{"output": result.LLMContentString})}

	case result.HasLLMContentParts:
		if len(result.LLMContentParts) == 1 {
			return canonicalizeSinglePart(callID, name, result.LLMContentParts[0])
		}
		out := make([]protocol.Part, 0, len(result.LLMContentParts)+1)
		out = append(out, protocol.NewFunctionResponse(callID, name, map[string]any{"output": "Tool execution succeeded."}))
		out = append(out, result.LLMContentParts...)
		return out

	case result.HasLLMContentPart:
		return canonicalizeSinglePart(callID, name, *result.LLMContentPart)

	default:
		return []protocol.Part{protocol.NewFunctionResponse(callID, name, map[string]any{"output": ""})}
	}
}

func canonicalizeSinglePart(callID, name string, part protocol.Part) []protocol.Part {
	switch part.Kind {
	case protocol.PartFunctionResponse:
		// Already canonical: pass through, flattening a list-of-text-parts
		// inner payload to a single string output if present.
		if inner, ok := part.Payload["output"]; ok {
			if parts, ok := inner.([]protocol.Part); ok {
				part.Payload["output"] = flattenTextParts(parts)
			}
		}
		return []protocol.Part{part}

	case protocol.PartInlineBlob, protocol.PartFileRef:
		resp := protocol.NewFunctionResponse(callID, name, map[string]any{
			"output": "Binary content of type " + part.MimeType + " was processed.",
		})
		return []protocol.Part{resp, part}

	default:
		return []protocol.Part{protocol.NewFunctionResponse(callID, name, map[string]any{"output": part.Text})}
	}
}

func flattenTextParts(parts []protocol.Part) string {
	out := ""
	for _, p := range parts {
		if p.Kind == protocol.PartText {
			out += p.Text
		}
	}
	return out
}
