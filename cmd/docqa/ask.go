package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

// detailMinChars hides fragments too short to be useful in --details.
const detailMinChars = 50

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Answer a question about the document",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().BoolP("details", "d", false, "Also print the retrieved chunks")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	details, _ := cmd.Flags().GetBool("details")
	out := cmd.OutOrStdout()

	p, err := openPipeline(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	answer, res, err := p.AnswerWithResult(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	fmt.Fprintln(out, answer)

	if !details || res == nil {
		return nil
	}

	fmt.Fprintln(out, "\nDetailed results:")
	shown := 0
	for _, hit := range res {
		text := strings.TrimSpace(hit.Chunk.Text)
		if utf8.RuneCountInString(text) <= detailMinChars {
			continue
		}
		shown++
		fmt.Fprintf(out, "\n[%d] chunk %d (score %.2f)\n%s\n", shown, hit.Chunk.ID, hit.Score, text)
	}
	if shown == 0 {
		fmt.Fprintln(out, "  (no chunk long enough to show)")
	}
	return nil
}
