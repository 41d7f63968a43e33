// Command agentcli is a demo driver that wires AgentLoop end to end against
// the filesystem/shell tools in internal/tools. Its default ("fake") backend
// is a scripted ContentGenerator with no network access; the config can
// select the anthropic, openai, or gemini backend instead.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentcli",
		Short: "Demo driver for the agent core runtime",
		Long: `agentcli wires AgentLoop, ChatSession, the tool Scheduler, and a handful
of filesystem/shell tools together so the core runtime can be exercised
end to end from a terminal.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "agentcli.yaml", "path to agentcli.yaml")

	root.AddCommand(
		buildChatCmd(),
		buildSchemaCmd(),
		buildExportPromptCmd(),
	)
	return root
}
