// Package editor implements the modify-with-editor bridge: materializing a
// tool's proposed edit into sibling temp files, launching an external diff
// viewer, and reading the user's edits back into updated tool arguments.
package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// Config configures the external diff viewer invocation.
type Config struct {
	// Command is the diff viewer executable, e.g. "code", "vim", "meld".
	// Invoked as: Command Args... oldPath newPath
	Command string
	Args    []string
	TempDir string // defaults to an "agentcore-edits" subdirectory of os.TempDir() when empty
}

// Bridge runs the modify-with-editor flow for one ToolCall.
type Bridge struct {
	cfg Config
}

func New(cfg Config) *Bridge {
	return &Bridge{cfg: cfg}
}

// Result is what the bridge hands back to the scheduler.
type Result struct {
	NewArgs map[string]any
	Diff    string
}

// Run drives the full bridge flow for one tool call: materialize both
// sides, launch the viewer, read back, recompute args and diff, clean up.
func (b *Bridge) Run(ctx context.Context, toolName string, args map[string]any, mc *protocol.ModifyContext) (*Result, error) {
	if mc == nil {
		return nil, fmt.Errorf("editor: tool %q has no modify context", toolName)
	}

	oldContent, err := mc.CurrentContent(args)
	if err != nil {
		return nil, fmt.Errorf("editor: reading current content: %w", err)
	}
	newContent, err := mc.ProposedContent(args)
	if err != nil {
		return nil, fmt.Errorf("editor: reading proposed content: %w", err)
	}

	filePath := ""
	if mc.FilePath != nil {
		filePath = mc.FilePath(args)
	}

	oldPath, newPath, err := b.materialize(toolName, filePath, oldContent, newContent)
	if err != nil {
		return nil, err
	}
	defer os.Remove(oldPath)
	defer os.Remove(newPath)

	if err := b.launch(ctx, oldPath, newPath); err != nil {
		return nil, fmt.Errorf("editor: diff viewer: %w", err)
	}

	editedOld := readTolerant(oldPath)
	editedNew := readTolerant(newPath)

	newArgs := mc.UpdatedParams(editedOld, editedNew, args)
	diff := UnifiedDiff(filePath, editedOld, editedNew)

	return &Result{NewArgs: newArgs, Diff: diff}, nil
}

// materialize writes the current and proposed content to deterministically
// named sibling temp files: {tool}-{stem}-{old|new}-{timestamp}{ext}.
func (b *Bridge) materialize(toolName, filePath, oldContent, newContent string) (oldPath, newPath string, err error) {
	dir := b.cfg.TempDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "agentcore-edits")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("editor: creating temp dir: %w", err)
	}

	stem := "file"
	ext := ""
	if filePath != "" {
		base := filepath.Base(filePath)
		ext = filepath.Ext(base)
		stem = strings.TrimSuffix(base, ext)
	}

	ts := timestamp()
	oldPath = filepath.Join(dir, fmt.Sprintf("%s-%s-old-%d%s", toolName, stem, ts, ext))
	newPath = filepath.Join(dir, fmt.Sprintf("%s-%s-new-%d%s", toolName, stem, ts, ext))

	if err := os.WriteFile(oldPath, []byte(oldContent), 0o600); err != nil {
		return "", "", fmt.Errorf("editor: writing old content: %w", err)
	}
	if err := os.WriteFile(newPath, []byte(newContent), 0o600); err != nil {
		os.Remove(oldPath)
		return "", "", fmt.Errorf("editor: writing new content: %w", err)
	}
	return oldPath, newPath, nil
}

func (b *Bridge) launch(ctx context.Context, oldPath, newPath string) error {
	if b.cfg.Command == "" {
		return fmt.Errorf("no diff viewer configured")
	}
	args := append(append([]string{}, b.cfg.Args...), oldPath, newPath)
	cmd := exec.CommandContext(ctx, b.cfg.Command, args...)
	return cmd.Run()
}

// readTolerant treats a missing file as empty content; the user may have
// deleted one side in the editor.
func readTolerant(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

// tsCounter guards against two temp-file names colliding on fast successive
// calls within the same nanosecond tick.
var tsCounter int64

func timestamp() int64 {
	tsCounter++
	return time.Now().UnixNano() + tsCounter
}
