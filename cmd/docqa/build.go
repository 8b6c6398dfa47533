package main

import (
	"fmt"

	"github.com/perbu/docqa/pkg/pipeline"
	"github.com/spf13/cobra"
)

func NewBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build and save the document index",
		Long:  `Chunk and embed the configured document and write the index to disk, replacing any previous index.`,
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}
}

func runBuild(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Building index for %s...\n", cfg.Document)
	p, err := pipeline.Open(cmd.Context(), cfg, pipeline.WithRebuild())
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	defer p.Close()

	meta := p.Meta()
	fmt.Fprintf(out, "  ✓ Split into %d chunks (size=%d, overlap=%d)\n", p.Index().Len(), meta.ChunkSize, meta.Overlap)
	fmt.Fprintf(out, "  ✓ Embedded with %s (dim=%d)\n", meta.ModelInfo, meta.Dimension)
	if cfg.IndexPath != "" {
		fmt.Fprintf(out, "  ✓ Saved to %s (build %s)\n", cfg.IndexPath, meta.BuildID)
	}
	return nil
}
