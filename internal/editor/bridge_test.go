package editor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func TestRunTolerantOfViewerDeletingFiles(t *testing.T) {
	dir := t.TempDir()
	mc := &protocol.ModifyContext{
		FilePath:       func(args map[string]any) string { return "a.txt" },
		CurrentContent: func(args map[string]any) (string, error) { return "old\n", nil },
		ProposedContent: func(args map[string]any) (string, error) { return "new\n", nil },
		UpdatedParams: func(oldContent, editedContent string, args map[string]any) map[string]any {
			return map[string]any{"content": editedContent}
		},
	}

	b := New(Config{
		Command: "rm",
		Args:    []string{"-f"},
		TempDir: dir,
	})

	result, err := b.Run(context.Background(), "write_file", map[string]any{}, mc)
	require.NoError(t, err)
	assert.Equal(t, "", result.NewArgs["content"])

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "temp files must be removed in all exit paths")
}

func TestRunReadsBackEditorChanges(t *testing.T) {
	dir := t.TempDir()
	mc := &protocol.ModifyContext{
		FilePath:       func(args map[string]any) string { return "a.txt" },
		CurrentContent: func(args map[string]any) (string, error) { return "old\n", nil },
		ProposedContent: func(args map[string]any) (string, error) { return "new\n", nil },
		UpdatedParams: func(oldContent, editedContent string, args map[string]any) map[string]any {
			return map[string]any{"content": editedContent}
		},
	}

	// argv passed to `sh -c script` after the script become $0, $1, ...;
	// oldPath is $0 (old-content file), newPath is $1 (new-content file).
	b := New(Config{
		Command: "sh",
		Args:    []string{"-c", `echo -n edited-by-user > "$1"`},
		TempDir: dir,
	})

	result, err := b.Run(context.Background(), "write_file", map[string]any{}, mc)
	require.NoError(t, err)
	assert.Equal(t, "edited-by-user", result.NewArgs["content"])

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestMaterializeUsesDeterministicNamingScheme(t *testing.T) {
	dir := t.TempDir()
	b := New(Config{TempDir: dir})
	oldPath, newPath, err := b.materialize("read_file", "notes/todo.md", "a", "b")
	require.NoError(t, err)
	defer os.Remove(oldPath)
	defer os.Remove(newPath)

	assert.Equal(t, dir, filepath.Dir(oldPath))
	assert.Contains(t, filepath.Base(oldPath), "read_file-todo-old-")
	assert.Contains(t, filepath.Base(newPath), "read_file-todo-new-")
	assert.True(t, filepath.Ext(oldPath) == ".md")
}

func TestUnifiedDiffProducesHunkHeader(t *testing.T) {
	diff := UnifiedDiff("a.txt", "line1\nline2\nline3\n", "line1\nchanged\nline3\n")
	assert.Contains(t, diff, "--- a/a.txt")
	assert.Contains(t, diff, "+++ b/a.txt")
	assert.Contains(t, diff, "-line2")
	assert.Contains(t, diff, "+changed")
}

func TestUnifiedDiffEmptyForIdenticalInput(t *testing.T) {
	diff := UnifiedDiff("a.txt", "same\n", "same\n")
	assert.Equal(t, "", diff)
}

func TestRunErrorsWithoutModifyContext(t *testing.T) {
	b := New(Config{})
	_, err := b.Run(context.Background(), "read_file", map[string]any{}, nil)
	assert.Error(t, err)
}
