package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// ReadFileArgs is the args struct for read_file, reflected into a JSON
// schema via ReflectSchema.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Absolute path of the file to read"`
}

// NewReadFile builds the read_file descriptor: a pure tool that never
// requires confirmation.
func NewReadFile() *protocol.ToolDescriptor {
	schema := ReflectSchema(ReadFileArgs{})
	return &protocol.ToolDescriptor{
		Name:         "read_file",
		DisplayName:  "Read File",
		Description:  "Reads the contents of a file at the given absolute path.",
		ParamsSchema: schema,
		Kind:         protocol.KindPure,
		ValidateParams: func(args map[string]any) error {
			return ValidateArgs("read_file", schema, args)
		},
		DescribeAction: func(args map[string]any) string {
			return fmt.Sprintf("Read %s", stringArg(args, "path"))
		},
		ShouldConfirm: func(ctx context.Context, args map[string]any) (*protocol.ConfirmationDetails, error) {
			return nil, nil // Pure tools never confirm.
		},
		Execute: func(ctx context.Context, args map[string]any, onProgress func(chunk string)) (*protocol.ExecuteResult, error) {
			path := stringArg(args, "path")
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read_file: %w", err)
			}
			return &protocol.ExecuteResult{
				LLMContentString: string(data),
				HasLLMContentStr: true,
				ReturnDisplay:    fmt.Sprintf("Read %d bytes from %s", len(data), path),
			}, nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
