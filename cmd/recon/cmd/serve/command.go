// Package serve provides the HTTP server command for the recon CLI.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/server"
	"github.com/agentstation/recon/pkg/errors"
)

// ShutdownTimeout bounds connection draining after a shutdown signal.
const ShutdownTimeout = 30 * time.Second

// NewCommand creates the serve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "management",
		Short:   "Start the REST API server with WebSocket and SSE events",
		Long: `Start the reconciliation REST API.

Features:
  - Reconcile, match, deduplicate and validate-matches endpoints
  - Job history at /api/v1/reconciliations
  - WebSocket (/api/v1/events/ws) and SSE (/api/v1/events/stream) job events
  - Response caching for job lookups with configurable TTL
  - Rate limiting (requests per second per client, with burst)
  - CORS support for web applications
  - Request logging and panic recovery
  - Graceful shutdown with connection draining
  - Health, readiness, stats and Prometheus metrics endpoints

Flags override the server section of the config file.`,
		Example: `  # Start on the default port 8002
  recon serve

  # Custom port with CORS for one origin
  recon serve --port 3000 --cors-origins https://app.example.com

  # Persist the job history
  RECON_STORE_DRIVER=sqlite RECON_STORE_PATH=jobs.db recon serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, app)
		},
	}

	def := server.DefaultConfig()

	// Server configuration flags
	cmd.Flags().Int("port", def.Port, "Server port")
	cmd.Flags().String("host", def.Host, "Bind address")
	cmd.Flags().String("prefix", def.PathPrefix, "API path prefix")

	// CORS flags
	cmd.Flags().Bool("cors", def.CORSEnabled, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins (comma-separated; implies --cors)")

	// Performance flags
	cmd.Flags().Float64("rate-limit", def.RateLimit, "Requests per second per client (0 to disable)")
	cmd.Flags().Int("rate-burst", def.RateBurst, "Requests a client may burst above the rate")
	cmd.Flags().Duration("cache-ttl", def.CacheTTL, "Job response cache TTL")
	cmd.Flags().Int64("max-body-bytes", def.MaxBodyBytes, "Maximum request body size (0 for no limit)")

	// Timeout flags
	cmd.Flags().Duration("read-timeout", def.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", def.WriteTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", def.IdleTimeout, "HTTP idle timeout")

	// Features flags
	cmd.Flags().Bool("metrics", def.MetricsEnabled, "Enable the /metrics endpoint")

	return cmd
}

// runServer starts the API server.
func runServer(cmd *cobra.Command, app application.Application) error {
	cfg := parseConfig(cmd, app.Config().Server)
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Float64("rate_limit", cfg.RateLimit).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Starting API server")

	engine, err := app.Engine()
	if err != nil {
		return err
	}

	srv, err := server.New(engine, cfg, logger, app.Metrics())
	if err != nil {
		return errors.WrapResource("create", "server", "", err)
	}

	srv.Start()

	httpServer := srv.HTTPServer()
	logger.Debug().
		Str("addr", httpServer.Addr).
		Dur("read_timeout", cfg.ReadTimeout).
		Dur("write_timeout", cfg.WriteTimeout).
		Dur("idle_timeout", cfg.IdleTimeout).
		Msg("Created HTTP server")

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return errors.WrapResource("listen", "address", httpServer.Addr, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "API server listening on %s\n", listener.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "   Press Ctrl+C to stop")

	// cmd.Context() carries signal handling from main.go
	return serveWithGracefulShutdown(cmd.Context(), httpServer, listener, srv, logger)
}

// parseConfig overlays the flags the user set onto base.
func parseConfig(cmd *cobra.Command, base server.Config) server.Config {
	cfg := base
	flags := cmd.Flags()

	if flags.Changed("port") {
		cfg.Port = mustGet(flags.GetInt("port"))
	}
	if flags.Changed("host") {
		cfg.Host = mustGet(flags.GetString("host"))
	}
	if flags.Changed("prefix") {
		cfg.PathPrefix = mustGet(flags.GetString("prefix"))
	}
	if flags.Changed("cors") {
		cfg.CORSEnabled = mustGet(flags.GetBool("cors"))
	}
	if flags.Changed("cors-origins") {
		cfg.CORSOrigins = mustGet(flags.GetStringSlice("cors-origins"))
		cfg.CORSEnabled = true
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = mustGet(flags.GetFloat64("rate-limit"))
	}
	if flags.Changed("rate-burst") {
		cfg.RateBurst = mustGet(flags.GetInt("rate-burst"))
	}
	if flags.Changed("cache-ttl") {
		cfg.CacheTTL = mustGet(flags.GetDuration("cache-ttl"))
	}
	if flags.Changed("max-body-bytes") {
		cfg.MaxBodyBytes = mustGet(flags.GetInt64("max-body-bytes"))
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout = mustGet(flags.GetDuration("read-timeout"))
	}
	if flags.Changed("write-timeout") {
		cfg.WriteTimeout = mustGet(flags.GetDuration("write-timeout"))
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = mustGet(flags.GetDuration("idle-timeout"))
	}
	if flags.Changed("metrics") {
		cfg.MetricsEnabled = mustGet(flags.GetBool("metrics"))
	}

	return cfg
}

// serveWithGracefulShutdown serves on listener until ctx is cancelled,
// then drains connections and stops the server's background services.
func serveWithGracefulShutdown(ctx context.Context, httpServer *http.Server, listener net.Listener, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", listener.Addr().String()).
			Msg("HTTP server listening")

		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErr <- errors.WrapResource("serve", "http", listener.Addr().String(), err)
		}
	}()

	select {
	case err := <-serverErr:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received via context")

		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.WrapResource("shutdown", "http", "", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

// mustGet unwraps a flag lookup. Lookups only fail for flags this
// package did not define, which is a programming error.
func mustGet[T any](v T, err error) T {
	if err != nil {
		panic("programming error: " + err.Error())
	}
	return v
}
