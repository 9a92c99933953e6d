package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/domain"
)

// NewWordsCommand creates the words command.
func NewWordsCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "words <project> <side> <book> <chapter> <verse>",
		Short: "List the tokens of a verse in position order",
		Long: `List the tokens of one verse on one side, in position order.

Example:
  alignsync words p1 sources 40 1 1`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, bcv, err := parseVerse(args[1:])
			if err != nil {
				return err
			}
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tokens, err := s.FindWordsByBCV(cmd.Context(), side, bcv[0], bcv[1], bcv[2])
			if err != nil {
				return storeError("failed to find words", err)
			}
			return root.formatter(cmd).Render(tokens, func(w io.Writer) error {
				return printTokens(w, tokens)
			})
		},
	}
}

func printTokens(w io.Writer, tokens []domain.Token) error {
	if len(tokens) == 0 {
		_, err := fmt.Fprintln(w, "No words found.")
		return err
	}
	rows := make([][]string, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, []string{t.ID, t.Text, t.NormalizedText, t.Gloss, t.CorpusID})
	}
	return renderTable(w, []string{"ID", "TEXT", "NORMALIZED", "GLOSS", "CORPUS"}, rows)
}
