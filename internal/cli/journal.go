package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewJournalCommand creates the journal command.
func NewJournalCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "journal <project>",
		Short: "Show link mutations waiting for the next sync",
		Long: `Show the pending link mutations of a project in the order they will be
pushed. The journal is not modified.

Example:
  alignsync journal p1 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, p, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := s.DrainJournal(cmd.Context(), p.ID)
			if err != nil {
				return storeError("failed to read journal", err)
			}
			return root.formatter(cmd).Render(entries, func(w io.Writer) error {
				if len(entries) == 0 {
					_, err := fmt.Fprintln(w, "Journal is empty.")
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(e.Seq, 10), e.ID, string(e.Operation), e.LinkID,
						e.Timestamp.Format(time.RFC3339),
					})
				}
				return renderTable(w, []string{"SEQ", "ID", "OP", "LINK", "TIME"}, rows)
			})
		},
	}
}
