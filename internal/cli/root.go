package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/config"
	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/registry"
	"github.com/roach88/alignsync/internal/store"
)

// skipConfigAnnotation marks commands that run without loading the config.
const skipConfigAnnotation = "alignsync/skip-config"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigPath string
	DataDir    string

	// Config is loaded before any command runs unless already set.
	Config *config.Config

	registry  *registry.Registry
	logCloser io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the alignsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "alignsync",
		Short: "alignsync - alignment link store and project sync",
		Long: `Inspect per-project alignment databases and synchronize them with the
remote project service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if cmd.Annotations[skipConfigAnnotation] != "" {
				return nil
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: <user config dir>/alignsync/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding project databases (overrides data_dir)")

	cmd.AddCommand(NewProjectsCommand(opts))
	cmd.AddCommand(NewLinksCommand(opts))
	cmd.AddCommand(NewWordsCommand(opts))
	cmd.AddCommand(NewPivotCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewRetextCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewServeMetricsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setup loads the config and installs the process logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.Config == nil {
		c, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		o.Config = c
	}
	if o.DataDir != "" {
		o.Config.DataDir = o.DataDir
	}

	logger, closer, err := o.Config.NewLogger(cmd.ErrOrStderr(), o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	slog.SetDefault(logger)
	o.logCloser = closer
	return nil
}

func (o *RootOptions) teardown() error {
	var first error
	if o.registry != nil {
		if err := o.registry.Close(); err != nil {
			first = err
		}
		o.registry = nil
	}
	if o.logCloser != nil {
		if err := o.logCloser.Close(); err != nil && first == nil {
			first = err
		}
		o.logCloser = nil
	}
	return first
}

// Registry returns the project registry for the configured data directory.
func (o *RootOptions) Registry() *registry.Registry {
	if o.registry == nil {
		opts := []registry.Option{registry.WithAppName(o.Config.AppName)}
		if o.Config.TemplateDB != "" {
			opts = append(opts, registry.WithTemplate(o.Config.TemplateDB))
		}
		o.registry = registry.New(o.Config.DataDir, opts...)
	}
	return o.registry
}

// openProject returns the store of an existing project and its record.
func (o *RootOptions) openProject(ctx context.Context, projectID string) (*store.Store, domain.Project, error) {
	ok, err := o.Registry().Exists(projectID)
	if err != nil {
		return nil, domain.Project{}, WrapExitError(ExitCommandError, "failed to look up project", err)
	}
	if !ok {
		return nil, domain.Project{}, NewExitError(ExitCommandError, fmt.Sprintf("project %q not found", projectID))
	}
	s, err := o.Registry().Get(ctx, projectID)
	if err != nil {
		return nil, domain.Project{}, WrapExitError(ExitCommandError, "failed to open project", err)
	}
	p, err := s.GetProject(ctx)
	if err != nil {
		return nil, domain.Project{}, WrapExitError(ExitCommandError, "failed to read project", err)
	}
	return s, p, nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
