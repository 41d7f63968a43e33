package memoryfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendFactCreatesSectionWhenAbsent(t *testing.T) {
	out := AppendFact("# Notes\n\nsome preamble\n", "likes tabs")
	assert.Contains(t, out, "## Gemini Added Memories")
	assert.Contains(t, out, "- likes tabs")
	assert.Contains(t, out, "some preamble")
}

func TestAppendFactAppendsToExistingSection(t *testing.T) {
	in := "# Notes\n\n## Gemini Added Memories\n- fact one\n"
	out := AppendFact(in, "fact two")
	lines := []string{"- fact one", "- fact two"}
	for _, l := range lines {
		assert.Contains(t, out, l)
	}
	// fact two must come after fact one
	assert.Less(t, indexOf(out, "fact one"), indexOf(out, "fact two"))
}

func TestAppendFactPreservesTrailingSections(t *testing.T) {
	in := "## Gemini Added Memories\n- old\n\n## Other Section\ncontent here\n"
	out := AppendFact(in, "new")
	assert.Contains(t, out, "## Other Section")
	assert.Contains(t, out, "content here")
	assert.Less(t, indexOf(out, "- new"), indexOf(out, "## Other Section"))
}

func TestAppendFactStripsLeadingDashes(t *testing.T) {
	out := AppendFact("", "--- already dashed fact")
	assert.Contains(t, out, "- already dashed fact")
	assert.NotContains(t, out, "--- already dashed fact")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
