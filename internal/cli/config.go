package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/config"
)

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to path, or to --config, or to
config.yaml in the user config directory.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = filepath.Join(config.DefaultDir(), "config.yaml")
			}
			if err := config.WriteDefault(path, force); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			return root.formatter(cmd).Render(map[string]string{"path": path}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Wrote %s\n", path)
				return err
			})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *root.Config
			if c.Remote.Token != "" {
				c.Remote.Token = "<redacted>"
			}
			f := root.formatter(cmd)
			if f.Format == "text" {
				f.Format = "yaml"
			}
			return f.Success(c)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
