package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func TestToGenaiSchemaConvertsNestedObject(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []any{"path"},
	}
	s := toGenaiSchema(schema)
	assert.Equal(t, genai.Type("OBJECT"), s.Type)
	assert.Equal(t, []string{"path"}, s.Required)
	assert.Equal(t, genai.Type("STRING"), s.Properties["path"].Type)
}

func TestContentToGenaiMapsRoleAndParts(t *testing.T) {
	c := protocol.Content{
		Role: protocol.RoleModel,
		Parts: []protocol.Part{
			protocol.NewText("hi"),
			protocol.NewFunctionCall("c1", "read_file", map[string]any{"path": "a.go"}),
		},
	}
	out := contentToGenai(c)
	assert.Equal(t, "model", out.Role)
	require := assert.New(t)
	require.Len(out.Parts, 2)
	require.Equal("hi", out.Parts[0].Text)
	require.Equal("read_file", out.Parts[1].FunctionCall.Name)
}

func TestGeminiResponseToResponseExtractsFunctionCall(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "ls", Args: map[string]any{}}}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
	r := geminiResponseToResponse(resp)
	require := assert.New(t)
	require.Len(r.Parts, 1)
	require.Equal(protocol.PartFunctionCall, r.Parts[0].Kind)
	require.Equal("ls", r.Parts[0].Name)
}

func TestClassifyGeminiErrMapsQuotaAndAuth(t *testing.T) {
	quota := classifyGeminiErr(errors.New("429: resource exhausted"))
	var re *protocol.RuntimeError
	assert.ErrorAs(t, quota, &re)
	assert.Equal(t, protocol.ErrQuotaExhausted, re.Kind)

	auth := classifyGeminiErr(errors.New("403 permission denied"))
	assert.ErrorAs(t, auth, &re)
	assert.Equal(t, protocol.ErrAuth, re.Kind)
}
