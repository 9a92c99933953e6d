package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/registry"
)

// NewProjectsCommand creates the projects command and its subcommands.
func NewProjectsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List local projects",
		Long: `List every project database in the data directory.

Example:
  alignsync projects
  alignsync projects --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := root.Registry().List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list projects", err)
			}
			return root.formatter(cmd).Render(entries, func(w io.Writer) error {
				return printProjects(w, entries)
			})
		},
	}

	cmd.AddCommand(newProjectsCreateCommand(root))
	cmd.AddCommand(newProjectsShowCommand(root))
	return cmd
}

func newProjectsCreateCommand(root *RootOptions) *cobra.Command {
	var (
		name     string
		location string
	)
	cmd := &cobra.Command{
		Use:   "create <project>",
		Short: "Create an empty local project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := domain.ParseLocation(location)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --location", err)
			}
			ok, err := root.Registry().Exists(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to look up project", err)
			}
			if ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("project %q already exists", args[0]))
			}
			if name == "" {
				name = args[0]
			}

			s, err := root.Registry().Get(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create project", err)
			}
			p := domain.Project{ID: args[0], Name: name, Location: loc, State: domain.ProjectStateDraft}
			if err := s.SaveProject(cmd.Context(), p); err != nil {
				return storeError("failed to save project", err)
			}
			return root.formatter(cmd).Render(p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created project %s (%s)\n", p.ID, p.Location)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the project id)")
	cmd.Flags().StringVar(&location, "location", string(domain.LocationLocal), "lifecycle location (LOCAL|SYNCED|REMOTE)")
	return cmd
}

func newProjectsShowCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project>",
		Short: "Show one project record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, p, err := root.openProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pending, err := s.CountJournal(cmd.Context(), p.ID)
			if err != nil {
				return storeError("failed to count journal", err)
			}
			view := projectView{Project: p, PendingMutations: pending}
			return root.formatter(cmd).Render(view, func(w io.Writer) error {
				return printProject(w, view)
			})
		},
	}
}

type projectView struct {
	domain.Project   `yaml:",inline"`
	PendingMutations int `json:"pending_mutations" yaml:"pending_mutations"`
}

func printProjects(w io.Writer, entries []registry.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No projects found.")
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Project.ID, e.Project.Name, string(e.Project.Location), string(e.Project.State),
			humanize.IBytes(uint64(e.Size)), ago(e.Project.LastSyncTime),
		})
	}
	return renderTable(w, []string{"ID", "NAME", "LOCATION", "STATE", "SIZE", "LAST SYNC"}, rows)
}

func printProject(w io.Writer, v projectView) error {
	return renderTable(w, []string{"FIELD", "VALUE"}, [][]string{
		{"ID", v.ID},
		{"Name", v.Name},
		{"Location", string(v.Location)},
		{"State", string(v.State)},
		{"Corpora changed", strconv.FormatBool(v.CorporaChanged)},
		{"Last sync", ago(v.LastSyncTime)},
		{"Pending mutations", humanize.Comma(int64(v.PendingMutations))},
	})
}

// ago renders a past time relative to now, or "never".
func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
