package main

import (
	"fmt"
	"os"

	"github.com/perbu/docqa/pkg/config"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long:  `Write a config file with default settings to the --config path.`,
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	cmd.Flags().String("document", config.DefaultDocument, "Document to answer questions about")
	cmd.Flags().String("backend", config.BackendHash, "Embedder backend (hash|openai)")
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	document, _ := cmd.Flags().GetString("document")
	backend, _ := cmd.Flags().GetString("backend")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.Default()
	cfg.Document = document
	cfg.Embedder.Backend = backend
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", path)
	return nil
}
