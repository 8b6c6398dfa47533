package main

import (
	"fmt"
	"strings"

	"github.com/perbu/docqa/pkg/docqa"
	"github.com/spf13/cobra"
)

func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Print the chunks ranked for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("top", "n", 5, "Number of results to return")
	cmd.Flags().Float32("threshold", 0, "Minimum similarity score")
	cmd.Flags().Bool("full", false, "Show chunk text instead of just chunk ids")
	cmd.Flags().Int("context", 0, "Number of neighbouring chunks to show around each match")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	top, _ := cmd.Flags().GetInt("top")
	threshold, _ := cmd.Flags().GetFloat32("threshold")
	full, _ := cmd.Flags().GetBool("full")
	around, _ := cmd.Flags().GetInt("context")
	out := cmd.OutOrStdout()

	p, err := openPipeline(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.Retrieve(cmd.Context(), query, top)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	res = res.Above(threshold)

	if len(res) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}

	chunks := p.Index().Chunks()
	fmt.Fprintf(out, "Found %d results:\n\n", len(res))
	for i, hit := range res {
		fmt.Fprintf(out, "Score: %.2f | chunk %d [%d:%d]\n", hit.Score, hit.Chunk.ID, hit.Chunk.Start, hit.Chunk.End)
		if !full && around <= 0 {
			continue
		}

		fmt.Fprintln(out)
		if around > 0 {
			for _, c := range surroundingChunks(chunks, hit.Chunk.ID, around) {
				if c.ID == hit.Chunk.ID {
					fmt.Fprintln(out, ">>> MATCHED CHUNK <<<")
				}
				fmt.Fprintln(out, c.Text)
			}
		} else {
			fmt.Fprintln(out, hit.Chunk.Text)
		}

		if i < len(res)-1 {
			fmt.Fprintln(out, "\n"+strings.Repeat("-", 80)+"\n")
		}
	}
	return nil
}

// surroundingChunks returns the chunk with the given id and up to n
// neighbours on each side. chunks must be ordered by id.
func surroundingChunks(chunks []docqa.Chunk, id, n int) []docqa.Chunk {
	if id < 0 || id >= len(chunks) {
		return nil
	}
	start := max(id-n, 0)
	end := min(id+n+1, len(chunks))
	return chunks[start:end]
}
