package session

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// IDEContext is the active-editor snapshot AgentLoop folds into the first
// parts of a user message when IDE-mode is on. Every field is optional;
// absent fields are simply omitted from the rendered block.
type IDEContext struct {
	ActiveFile   string
	CursorLine   int
	CursorChar   int
	Selection    string
	RecentFiles  []string
}

// IsEmpty reports whether there is nothing worth injecting.
func (c IDEContext) IsEmpty() bool {
	return c.ActiveFile == "" && c.Selection == "" && len(c.RecentFiles) == 0
}

// Render builds the injected text block, in order: the active file, the
// cursor position, the selected text, then the recently opened files, most
// recent first. Any section whose inputs are absent is skipped entirely.
func (c IDEContext) Render() string {
	var b strings.Builder
	if c.ActiveFile != "" {
		fmt.Fprintf(&b, "This is the file that the user was most recently looking at:\n- Path: %s", c.ActiveFile)
	}
	if c.ActiveFile != "" && (c.CursorLine != 0 || c.CursorChar != 0) {
		b.WriteString("\n")
		fmt.Fprintf(&b, "This is the cursor position in the file:\n- Cursor Position: Line %d, Character %d", c.CursorLine, c.CursorChar)
	}
	if c.Selection != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "This is the selected text in the active file:\n- %s", c.Selection)
	}
	if len(c.RecentFiles) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Here are files the user has recently opened, with the most recent at the top:\n")
		for i, f := range c.RecentFiles {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- %s", f)
		}
	}
	return b.String()
}

// Part wraps Render as a single text Part, ready to prepend to a user
// message's parts.
func (c IDEContext) Part() protocol.Part {
	return protocol.NewText(c.Render())
}
