package tools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/haasonsaas/agentcore/internal/editor"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// WriteFileArgs is the args struct for write_file.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Absolute path of the file to write"`
	Content string `json:"content" jsonschema:"required,description=Full new content of the file"`
}

// NewWriteFile builds the write_file descriptor: a mutating tool that
// always confirms with an edit prompt and supports the modify-with-editor
// flow.
func NewWriteFile() *protocol.ToolDescriptor {
	schema := ReflectSchema(WriteFileArgs{})
	return &protocol.ToolDescriptor{
		Name:         "write_file",
		DisplayName:  "Write File",
		Description:  "Writes content to a file at the given absolute path, overwriting it if it exists.",
		ParamsSchema: schema,
		Kind:         protocol.KindMutating,
		ValidateParams: func(args map[string]any) error {
			return ValidateArgs("write_file", schema, args)
		},
		DescribeAction: func(args map[string]any) string {
			return fmt.Sprintf("Write %s", stringArg(args, "path"))
		},
		ShouldConfirm: func(ctx context.Context, args map[string]any) (*protocol.ConfirmationDetails, error) {
			path := stringArg(args, "path")
			newContent := stringArg(args, "content")
			oldContent, err := currentContent(args)
			if err != nil {
				return nil, err
			}
			return &protocol.ConfirmationDetails{
				Kind:            protocol.ConfirmEdit,
				Title:           fmt.Sprintf("Confirm write to %s", path),
				FileName:        path,
				Diff:            editor.UnifiedDiff(path, oldContent, newContent),
				OriginalContent: oldContent,
				NewContent:      newContent,
			}, nil
		},
		Execute: func(ctx context.Context, args map[string]any, onProgress func(chunk string)) (*protocol.ExecuteResult, error) {
			path := stringArg(args, "path")
			content := stringArg(args, "content")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("write_file: %w", err)
			}
			return &protocol.ExecuteResult{
				LLMContentString: fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
				HasLLMContentStr: true,
				ReturnDisplay:    fmt.Sprintf("Wrote %s", path),
			}, nil
		},
		ModifyContext: &protocol.ModifyContext{
			FilePath: func(args map[string]any) string { return stringArg(args, "path") },
			CurrentContent: func(args map[string]any) (string, error) {
				return currentContent(args)
			},
			ProposedContent: func(args map[string]any) (string, error) {
				return stringArg(args, "content"), nil
			},
			UpdatedParams: func(oldContent, editedContent string, args map[string]any) map[string]any {
				out := make(map[string]any, len(args))
				for k, v := range args {
					out[k] = v
				}
				out["content"] = editedContent
				return out
			},
		},
	}
}

// currentContent reads the file's existing content, tolerating a missing
// file as empty (the write tool's target may not exist yet).
func currentContent(args map[string]any) (string, error) {
	path := stringArg(args, "path")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("write_file: reading current content: %w", err)
	}
	return string(data), nil
}
