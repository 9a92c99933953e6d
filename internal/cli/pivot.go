package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/querysql"
	"github.com/roach88/alignsync/internal/store"
)

// NewPivotCommand creates the pivot command and its subcommands.
func NewPivotCommand(root *RootOptions) *cobra.Command {
	var sortFlag string

	cmd := &cobra.Command{
		Use:   "pivot",
		Short: "Concordance views over normalized token text",
		Long: `Concordance views: word frequencies on one side, the text pairs a word is
aligned to, and the links behind one pair.

--sort takes "field" or "field:asc|desc". Each view accepts its own fields:
  words    frequency, normalized_text
  aligned  frequency, sources_text, targets_text
  links    id

Example:
  alignsync pivot words p1 sources --aligned --sort normalized_text
  alignsync pivot aligned p1 sources λόγος
  alignsync pivot links p1 λόγος word --sort id:desc`,
	}
	cmd.PersistentFlags().StringVar(&sortFlag, "sort", "", "sort order (field[:asc|desc])")

	parseSort := func() (querysql.Sort, error) {
		s, err := querysql.ParseSort(sortFlag)
		if err != nil {
			return querysql.Sort{}, WrapExitError(ExitCommandError, "invalid --sort", err)
		}
		return s, nil
	}

	var aligned bool
	words := &cobra.Command{
		Use:   "words <project> <side>",
		Short: "Frequency of each normalized text on a side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := domain.ParseSide(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid side", err)
			}
			sort, err := parseSort()
			if err != nil {
				return err
			}
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			filter := store.PivotAll
			if aligned {
				filter = store.PivotAligned
			}
			rows, err := s.CorporaGetPivotWords(cmd.Context(), side, filter, sort)
			if err != nil {
				return storeError("failed to query pivot words", err)
			}
			return root.formatter(cmd).Render(rows, func(w io.Writer) error {
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{r.NormalizedText, r.LanguageID, strconv.Itoa(r.Frequency)})
				}
				return renderTable(w, []string{"TEXT", "LANGUAGE", "FREQUENCY"}, table)
			})
		},
	}
	words.Flags().BoolVar(&aligned, "aligned", false, "count only tokens that belong to a link")

	alignedWords := &cobra.Command{
		Use:   "aligned <project> <side> <text>",
		Short: "Text pairs a pivot word is aligned to",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := domain.ParseSide(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid side", err)
			}
			sort, err := parseSort()
			if err != nil {
				return err
			}
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pairs, err := s.CorporaGetAlignedWordsByPivotWord(cmd.Context(), side, args[2], sort)
			if err != nil {
				return storeError("failed to query aligned words", err)
			}
			return root.formatter(cmd).Render(pairs, func(w io.Writer) error {
				table := make([][]string, 0, len(pairs))
				for _, p := range pairs {
					table = append(table, []string{p.SourcesText, p.TargetsText, strconv.Itoa(p.Frequency)})
				}
				return renderTable(w, []string{"SOURCES TEXT", "TARGETS TEXT", "FREQUENCY"}, table)
			})
		},
	}

	links := &cobra.Command{
		Use:   "links <project> <sources-text> <targets-text>",
		Short: "Links behind one aligned text pair",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := parseSort()
			if err != nil {
				return err
			}
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			found, err := s.CorporaGetLinksByAlignedWord(cmd.Context(), args[1], args[2], sort)
			if err != nil {
				return storeError("failed to query links", err)
			}
			return renderLinks(root, cmd, found)
		},
	}

	cmd.AddCommand(words, alignedWords, links)
	return cmd
}
