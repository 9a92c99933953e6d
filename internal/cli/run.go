package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/alignsync/internal/engine"
	"github.com/roach88/alignsync/internal/store"
)

// withSignals returns a context canceled on SIGINT or SIGTERM, or when
// parent is done. The returned stop func releases the signal handler.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context canceled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

// errorCode maps an error to the code shown in structured output.
func errorCode(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	switch {
	case store.IsNotFound(err):
		return "NOT_FOUND"
	case store.IsConflict(err):
		return "CONFLICT"
	case store.IsInvalidArgument(err):
		return "INVALID_ARGUMENT"
	case errors.Is(err, context.Canceled):
		return "ABORTED"
	}
	return "FAILED"
}

// syncExitCode maps a failed sync to its exit code. A run refused because
// another one is in flight is a command error, not a failed run.
func syncExitCode(err error) int {
	if engine.IsInProgress(err) {
		return ExitCommandError
	}
	return ExitFailure
}

// storeError wraps a store failure with the exit code it maps to.
func storeError(message string, err error) error {
	if store.IsInvalidArgument(err) || store.IsNotFound(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}
