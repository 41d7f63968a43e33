package tools

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// ShellArgs is the args struct for run_shell_command.
type ShellArgs struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to execute"`
	Cwd     string `json:"cwd,omitempty" jsonschema:"description=Working directory (defaults to the current one)"`
}

// NewShell builds the run_shell_command descriptor: an executing tool that
// streams incremental stdout through onProgress and confirms with an exec
// prompt naming the root command.
func NewShell() *protocol.ToolDescriptor {
	schema := ReflectSchema(ShellArgs{})
	return &protocol.ToolDescriptor{
		Name:         "run_shell_command",
		DisplayName:  "Shell",
		Description:  "Runs a shell command and streams its stdout back incrementally.",
		ParamsSchema: schema,
		Kind:         protocol.KindExecuting,
		TimeoutMs:    (5 * time.Minute).Milliseconds(),
		ValidateParams: func(args map[string]any) error {
			if err := ValidateArgs("run_shell_command", schema, args); err != nil {
				return err
			}
			if strings.TrimSpace(stringArg(args, "command")) == "" {
				return fmt.Errorf("run_shell_command: command must not be empty")
			}
			return nil
		},
		DescribeAction: func(args map[string]any) string {
			return fmt.Sprintf("Run `%s`", stringArg(args, "command"))
		},
		ShouldConfirm: func(ctx context.Context, args map[string]any) (*protocol.ConfirmationDetails, error) {
			command := stringArg(args, "command")
			return &protocol.ConfirmationDetails{
				Kind:        protocol.ConfirmExec,
				Title:       "Confirm shell command",
				Command:     command,
				RootCommand: rootCommand(command),
			}, nil
		},
		Execute: func(ctx context.Context, args map[string]any, onProgress func(chunk string)) (*protocol.ExecuteResult, error) {
			return runShell(ctx, args, onProgress)
		},
	}
}

// rootCommand extracts the leading token of a shell command string, shown
// as RootCommand in the exec confirmation.
func rootCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func runShell(ctx context.Context, args map[string]any, onProgress func(chunk string)) (*protocol.ExecuteResult, error) {
	command := stringArg(args, "command")
	cwd := stringArg(args, "cwd")

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("run_shell_command: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // merge streams the way an interactive shell would show them

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("run_shell_command: start: %w", err)
	}

	var collected strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		collected.WriteString(line)
		if onProgress != nil {
			onProgress(line)
		}
	}

	waitErr := cmd.Wait()
	output := collected.String()
	if waitErr != nil {
		return nil, fmt.Errorf("run_shell_command: %w (output: %s)", waitErr, output)
	}

	return &protocol.ExecuteResult{
		LLMContentString: output,
		HasLLMContentStr: true,
		ReturnDisplay:    output,
	}, nil
}
