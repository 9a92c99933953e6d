package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRetextCommand creates the retext command.
func NewRetextCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retext <project> [link-id...]",
		Short: "Recompute the denormalized text of links",
		Long: `Recompute sources_text and targets_text from the current tokens, for the
given links or for every link.

Example:
  alignsync retext p1
  alignsync retext p1 L1 L2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ids := args[1:]
			if len(ids) == 0 {
				err = s.UpdateAllLinkText(cmd.Context())
			} else {
				err = s.UpdateLinkText(cmd.Context(), ids)
			}
			if err != nil {
				return storeError("failed to update link text", err)
			}
			result := map[string]any{"project": args[0], "links": ids}
			return root.formatter(cmd).Render(result, func(w io.Writer) error {
				if len(ids) == 0 {
					_, err := fmt.Fprintln(w, "Recomputed text for all links")
					return err
				}
				_, err := fmt.Fprintf(w, "Recomputed text for %d link(s)\n", len(ids))
				return err
			})
		},
	}
}
