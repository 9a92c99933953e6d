package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/tokenid"
)

// NewLinksCommand creates the links command and its subcommands.
func NewLinksCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Query and edit alignment links",
		Long: `Query and edit the alignment links of a project.

Edits to LOCAL and SYNCED projects are journaled for the next sync.

Example:
  alignsync links get p1 L1 L2
  alignsync links range p1 L100 L199
  alignsync links word p1 sources:40001001001
  alignsync links bcv p1 targets 40 1 1
  alignsync links add p1 L3 --sources 40001001002 --targets 40001001002
  alignsync links delete p1 L3`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <project> <id>...",
		Short: "Fetch links by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			links, err := s.FindLinksByIDs(cmd.Context(), args[1:])
			if err != nil {
				return storeError("failed to find links", err)
			}
			return renderLinks(root, cmd, links)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "range <project> <from-id> <to-id>",
		Short: "Fetch links whose id is in [from, to]",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			links, err := s.FindLinksBetweenIDs(cmd.Context(), args[1], args[2])
			if err != nil {
				return storeError("failed to find links", err)
			}
			return renderLinks(root, cmd, links)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "word <project> <side:token-id>",
		Short: "Fetch every link containing a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := tokenid.ParseRef(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid token reference", err)
			}
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			links, err := s.FindLinksByWordID(cmd.Context(), ref.Side, ref.ID)
			if err != nil {
				return storeError("failed to find links", err)
			}
			return renderLinks(root, cmd, links)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "bcv <project> <side> <book> <chapter> <verse>",
		Short: "Fetch links touching a verse",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, bcv, err := parseVerse(args[1:])
			if err != nil {
				return err
			}
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			links, err := s.FindLinksByBCV(cmd.Context(), side, bcv[0], bcv[1], bcv[2])
			if err != nil {
				return storeError("failed to find links", err)
			}
			return renderLinks(root, cmd, links)
		},
	})

	cmd.AddCommand(newLinksAddCommand(root))
	cmd.AddCommand(newLinksDeleteCommand(root))
	return cmd
}

func newLinksAddCommand(root *RootOptions) *cobra.Command {
	var (
		sources []string
		targets []string
		update  bool
	)
	cmd := &cobra.Command{
		Use:   "add <project> <id>",
		Short: "Create a link, or rewrite its membership with --update",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			link := domain.Link{ID: args[1], Sources: sources, Targets: targets}
			if update {
				err = s.SaveLinks(cmd.Context(), []domain.Link{link})
			} else {
				err = s.InsertLinks(cmd.Context(), []domain.Link{link})
			}
			if err != nil {
				return storeError("failed to write link", err)
			}
			saved, err := s.GetLink(cmd.Context(), args[1])
			if err != nil {
				return storeError("failed to read link", err)
			}
			return renderLinks(root, cmd, []domain.Link{saved})
		},
	}
	cmd.Flags().StringSliceVar(&sources, "sources", nil, "source token ids")
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "target token ids")
	cmd.Flags().BoolVar(&update, "update", false, "replace the membership of an existing link")
	return cmd
}

func newLinksDeleteCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project> <id>...",
		Short: "Delete links by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteLinksByIDs(cmd.Context(), args[1:]); err != nil {
				return storeError("failed to delete links", err)
			}
			deleted := args[1:]
			return root.formatter(cmd).Render(map[string][]string{"deleted": deleted}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted %d link(s)\n", len(deleted))
				return err
			})
		},
	}
}

// parseVerse reads "<side> <book> <chapter> <verse>".
func parseVerse(args []string) (domain.Side, [3]int, error) {
	var bcv [3]int
	side, err := domain.ParseSide(args[0])
	if err != nil {
		return "", bcv, WrapExitError(ExitCommandError, "invalid side", err)
	}
	for i, name := range []string{"book", "chapter", "verse"} {
		n, err := strconv.Atoi(args[i+1])
		if err != nil {
			return "", bcv, WrapExitError(ExitCommandError, "invalid "+name, err)
		}
		bcv[i] = n
	}
	return side, bcv, nil
}

func renderLinks(root *RootOptions, cmd *cobra.Command, links []domain.Link) error {
	return root.formatter(cmd).Render(links, func(w io.Writer) error {
		return printLinks(w, links)
	})
}

func printLinks(w io.Writer, links []domain.Link) error {
	if len(links) == 0 {
		_, err := fmt.Fprintln(w, "No links found.")
		return err
	}
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{
			l.ID, strings.Join(l.Sources, ","), strings.Join(l.Targets, ","), l.SourcesText, l.TargetsText,
		})
	}
	return renderTable(w, []string{"ID", "SOURCES", "TARGETS", "SOURCES TEXT", "TARGETS TEXT"}, rows)
}
