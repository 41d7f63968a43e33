package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/agentcore/internal/memoryfile"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// MemoryArgs is the args struct for save_memory.
type MemoryArgs struct {
	Fact string `json:"fact" jsonschema:"required,description=The fact to remember about the user or project"`
}

// NewSaveMemory builds the save_memory descriptor: appends a fact to the
// user's memory file so future sessions pick it up through the prompt
// assembler.
func NewSaveMemory(memoryFilePath string) *protocol.ToolDescriptor {
	schema := ReflectSchema(MemoryArgs{})
	return &protocol.ToolDescriptor{
		Name:         "save_memory",
		DisplayName:  "Save Memory",
		Description:  "Saves a fact about the user or project to long-term memory.",
		ParamsSchema: schema,
		Kind:         protocol.KindMutating,
		ValidateParams: func(args map[string]any) error {
			if err := ValidateArgs("save_memory", schema, args); err != nil {
				return err
			}
			if strings.TrimSpace(stringArg(args, "fact")) == "" {
				return fmt.Errorf("save_memory: fact must not be empty")
			}
			return nil
		},
		DescribeAction: func(args map[string]any) string {
			return fmt.Sprintf("Remember %q", stringArg(args, "fact"))
		},
		ShouldConfirm: func(ctx context.Context, args map[string]any) (*protocol.ConfirmationDetails, error) {
			return nil, nil // appending a memory fact needs no approval
		},
		Execute: func(ctx context.Context, args map[string]any, onProgress func(chunk string)) (*protocol.ExecuteResult, error) {
			fact := stringArg(args, "fact")
			if err := memoryfile.WriteFact(memoryFilePath, fact); err != nil {
				return nil, fmt.Errorf("save_memory: %w", err)
			}
			return &protocol.ExecuteResult{
				LLMContentString: fmt.Sprintf("Okay, I've remembered that: %q", fact),
				HasLLMContentStr: true,
				ReturnDisplay:    "Memory saved",
			}, nil
		},
	}
}
