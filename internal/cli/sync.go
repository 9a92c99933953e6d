package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/alignsync/internal/engine"
	"github.com/roach88/alignsync/internal/remote"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Endpoint string
	Token    string

	// Client overrides the HTTP client (for testing). If nil, one is built
	// from the remote config.
	Client remote.Client

	// RunIDs overrides run id generation (for testing). If nil, defaults
	// to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <project>",
		Short: "Synchronize a project with the remote service",
		Long: `Run one sync of a project: upsert the remote project, upload corpora when
needed, push the link journal, pull remote links and stamp the project
SYNCED. Progress is written to stderr.

A LOCAL project whose sync fails is restored to its pre-sync record.

Example:
  alignsync sync p1
  alignsync sync p1 --endpoint https://align.example.org --token $TOKEN`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "remote service URL (overrides remote.base_url)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (overrides remote.token)")

	return cmd
}

// newCoordinator builds a coordinator over the registry and the remote
// client described by the config and flags.
func (o *SyncOptions) newCoordinator(opts ...engine.Option) (*engine.Coordinator, error) {
	client := o.Client
	if client == nil {
		endpoint := o.Config.Remote.BaseURL
		if o.Endpoint != "" {
			endpoint = o.Endpoint
		}
		token := o.Config.Remote.Token
		if o.Token != "" {
			token = o.Token
		}
		hc, err := remote.NewHTTPClient(endpoint,
			remote.WithTimeout(o.Config.Remote.Timeout),
			remote.WithToken(token),
		)
		if err != nil {
			return nil, err
		}
		client = hc
	}

	if auth, ok := client.(remote.Authorizer); ok {
		opts = append(opts, engine.WithAuthorizer(auth))
	}
	if o.RunIDs != nil {
		opts = append(opts, engine.WithRunIDs(o.RunIDs))
	}
	return engine.New(o.Registry(), client, opts...), nil
}

func runSync(opts *SyncOptions, cmd *cobra.Command, projectID string) error {
	f := opts.formatter(cmd)

	if _, _, err := opts.openProject(cmd.Context(), projectID); err != nil {
		return err
	}
	coord, err := opts.newCoordinator(engine.WithResetDelay(0))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure remote client", err)
	}

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	events, unsubscribe := coord.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range events {
			printProgress(f.GetErrWriter(), p)
		}
	}()

	syncErr := coord.Sync(ctx, projectID)
	unsubscribe()
	<-done

	if syncErr != nil {
		if f.structured() {
			details := map[string]any{"project": projectID}
			var serr *engine.SyncError
			if errors.As(syncErr, &serr) {
				details["stage"] = serr.Stage.String()
			}
			_ = f.Error(errorCode(syncErr), syncErr.Error(), details)
		}
		return WrapExitError(syncExitCode(syncErr), "sync failed", syncErr)
	}

	_, p, err := opts.openProject(cmd.Context(), projectID)
	if err != nil {
		return err
	}
	return f.Render(p, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Project %s synced (%s)\n", p.ID, p.Location)
		return err
	})
}

func printProgress(w io.Writer, p engine.Progress) {
	switch {
	case p.Err != nil:
		fmt.Fprintf(w, "%-24s %s: %v\n", p.State, p.Message, p.Err)
	case p.Message != "":
		fmt.Fprintf(w, "%-24s %s\n", p.State, p.Message)
	default:
		fmt.Fprintf(w, "%s\n", p.State)
	}
}
