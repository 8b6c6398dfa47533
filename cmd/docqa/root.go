package main

import (
	"context"
	"fmt"

	"github.com/perbu/docqa/pkg/config"
	"github.com/perbu/docqa/pkg/logger"
	"github.com/perbu/docqa/pkg/pipeline"
	"github.com/spf13/cobra"
)

// envFile is read for OPENAI_API_KEY and DOCQA_* variables when present.
const envFile = ".env"

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Answer questions about a document",
		Long:          `Retrieval based question answering over a single text, markdown, HTML or PDF document.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger.SetVerbose(verbose)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewInitCmd(),
		NewBuildCmd(),
		NewAskCmd(),
		NewSearchCmd(),
	)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigFile, "Path to the config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Debug("config %s: document=%s index=%s backend=%s", path, cfg.Document, cfg.IndexPath, cfg.Embedder.Backend)
	return cfg, nil
}

func openPipeline(ctx context.Context, cmd *cobra.Command, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return p, nil
}
