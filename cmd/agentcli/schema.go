package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/prompt"
)

func buildSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for agentcli.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
}

func buildExportPromptCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-prompt",
		Short: "Write the built-in system prompt template to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := prompt.Export(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(template), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "system-prompt.md", "destination path for the exported template")
	return cmd
}
