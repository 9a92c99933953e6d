package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/alignsync/internal/engine"
	"github.com/roach88/alignsync/internal/metrics"
)

// ServeMetricsOptions holds flags for the serve-metrics command.
type ServeMetricsOptions struct {
	*SyncOptions
	Addr     string
	Interval time.Duration
}

// NewServeMetricsCommand creates the serve-metrics command.
func NewServeMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeMetricsOptions{SyncOptions: &SyncOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "serve-metrics [project...]",
		Short: "Serve Prometheus metrics, optionally syncing projects periodically",
		Long: `Serve Prometheus metrics at /metrics and a readiness probe at /debug/ready.

With project arguments and --interval, each project is synced on that
interval until the process is stopped.

Example:
  alignsync serve-metrics --addr :9090
  alignsync serve-metrics p1 p2 --interval 10m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMetrics(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides metrics.addr)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "sync interval for the given projects (0 disables syncing)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "remote service URL (overrides remote.base_url)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (overrides remote.token)")

	return cmd
}

func newMetricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(metrics.StoreCollectors()...)
	reg.MustRegister(metrics.SyncCollectors()...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func serveMetrics(opts *ServeMetricsOptions, cmd *cobra.Command, projects []string) error {
	addr := opts.Config.Metrics.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	if len(projects) > 0 && opts.Interval <= 0 {
		return NewExitError(ExitCommandError, "--interval is required when projects are given")
	}

	var coord *engine.Coordinator
	if len(projects) > 0 {
		var err error
		coord, err = opts.newCoordinator(engine.WithResetDelay(opts.Config.Sync.ResetDelay))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to configure remote client", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{Handler: newMetricsHandler(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if coord != nil {
		g.Go(func() error {
			syncLoop(gctx, coord, projects, opts.Interval)
			return nil
		})
	}

	slog.Info("serving metrics", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on http://%s/metrics\n", ln.Addr())

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "metrics server failed", err)
	}
	slog.Info("metrics server stopped")
	return nil
}

// syncLoop syncs every project now and then once per interval until ctx is
// done. Failures are logged; the next tick retries.
func syncLoop(ctx context.Context, coord *engine.Coordinator, projects []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, id := range projects {
			if err := coord.Sync(ctx, id); err != nil {
				if ctx.Err() != nil {
					return
				}
				if engine.IsInProgress(err) {
					slog.Debug("project still syncing, skipping tick", "project", id)
					continue
				}
				slog.Warn("periodic sync failed", "project", id, "code", engine.CodeOf(err), "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
