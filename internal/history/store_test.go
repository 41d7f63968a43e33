package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func user(text string) protocol.Content {
	return protocol.Content{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText(text)}}
}

func model(parts ...protocol.Part) protocol.Content {
	return protocol.Content{Role: protocol.RoleModel, Parts: parts}
}

func TestCurateKeepsVisibleModelTurns(t *testing.T) {
	log := []protocol.Content{
		user("hello"),
		model(protocol.NewText("hi")),
	}
	curated := Curate(log)
	require.Len(t, curated, 2)
}

func TestCurateDropsEmptyModelTurnAndItsUser(t *testing.T) {
	log := []protocol.Content{
		user("first"),
		model(protocol.NewText("ok")),
		user("second"),
		model(protocol.NewThought("thinking")), // no visible content
	}
	curated := Curate(log)
	require.Len(t, curated, 2)
	assert.Equal(t, "first", curated[0].Parts[0].Text)
}

func TestCurateIsSubsequenceOfComprehensive(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(user("a")))
	require.NoError(t, s.Append(model(protocol.NewText("b"))))
	require.NoError(t, s.Append(user("c")))
	require.NoError(t, s.Append(model())) // empty -> dropped along with "c"

	curated := s.GetCurated()
	comprehensive := s.GetComprehensive()
	// subsequence check
	j := 0
	for _, c := range comprehensive {
		if j < len(curated) && sameContent(c, curated[j]) {
			j++
		}
	}
	assert.Equal(t, len(curated), j)
}

func sameContent(a, b protocol.Content) bool {
	if a.Role != b.Role || len(a.Parts) != len(b.Parts) {
		return false
	}
	for i := range a.Parts {
		if a.Parts[i].Text != b.Parts[i].Text {
			return false
		}
	}
	return true
}

func TestAppendRejectsConsecutiveUserWithoutFunctionResponse(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(user("a")))
	err := s.Append(user("b"))
	assert.Error(t, err)
}

func TestAppendAllowsConsecutiveUserWhenFunctionResponseOnly(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(user("a")))
	fr := protocol.Content{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewFunctionResponse("1", "x", nil)}}
	assert.NoError(t, s.Append(fr))
}

func TestSetHistoryRoundTripIsNoop(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(user("a")))
	require.NoError(t, s.Append(model(protocol.NewText("b"))))
	before := s.GetComprehensive()
	s.Replace(s.GetComprehensive())
	after := s.GetComprehensive()
	assert.Equal(t, before, after)
}
