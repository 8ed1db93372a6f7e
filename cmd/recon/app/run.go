package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentstation/recon/pkg/errors"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitTimeout     = 3
	ExitNotFound    = 4
	ExitInterrupted = 130
)

const shutdownTimeout = 5 * time.Second

// ExitCode maps err onto the process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsValidationError(err), errors.IsBatchTooLarge(err):
		return ExitUsage
	case errors.IsTimeout(err):
		return ExitTimeout
	case errors.IsNotFound(err):
		return ExitNotFound
	case errors.IsCanceled(err), stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// Run executes the command line in args until it finishes or the process
// receives SIGINT or SIGTERM, releases the engine and returns the exit
// code. Errors are reported on stderr.
func (a *App) Run(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := a.Execute(ctx, args)
	stop()

	// The signal context may already be done, so shutdown gets its own.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := a.Shutdown(shutdownCtx); serr != nil {
		a.Logger().Error().Err(serr).Msg("Shutdown error")
	}

	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
