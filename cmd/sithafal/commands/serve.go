package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sithafal/sithafal/internal/config"
	"github.com/sithafal/sithafal/internal/server"
	"github.com/sithafal/sithafal/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var port int
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sithafal dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefaults(cfgFile)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(os.Stderr, cfg.Server.LogLevel)

			// Graceful shutdown on SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Telemetry.Tracing {
				shutdown, err := setupTracing(cfg.Telemetry.TraceTo)
				if err != nil {
					return err
				}
				defer func() {
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(flushCtx); err != nil {
						logger.Warn("flushing traces", "error", err)
					}
				}()
			}

			var metrics *telemetry.Metrics
			if cfg.Telemetry.Metrics {
				metrics = telemetry.NewMetrics()
			}

			src, err := openSource(ctx, cfg, logger, metrics)
			if err != nil {
				return err
			}
			defer src.Close() //nolint:errcheck

			// Fail fast on a broken source instead of on the first page load.
			rows, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("loading rows from %s: %w", src.Name(), err)
			}
			if metrics != nil {
				metrics.RowsLoaded(len(rows))
			}
			logger.Info("row source ready", "source", src.Name(), "rows", len(rows))

			sinks, closeSinks, err := openSinks(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSinks()

			srv, err := server.NewServer(cfg, server.Deps{
				Source:  src,
				Sinks:   sinks,
				Metrics: metrics,
				Version: version,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			// Print startup banner with dashboard access code
			printBanner(cmd.OutOrStdout(), cfg, srv.DashboardCode(), src.Name(), len(rows))

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "address to bind (default: 127.0.0.1)")
	return cmd
}

// setupTracing exports spans to path, or to stderr when path is empty.
func setupTracing(path string) (func(context.Context) error, error) {
	var w io.Writer = os.Stderr
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		w = f
	}
	shutdown, err := telemetry.SetupTracing(w)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		err := shutdown(ctx)
		if f != nil {
			_ = f.Close()
		}
		return err
	}, nil
}

func printBanner(w io.Writer, cfg *config.Config, dashCode, src string, rows int) {
	bindAddr := cfg.Server.Bind
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}

	p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) } //nolint:errcheck

	p("\n")
	p("  sithafal dashboard\n")
	p("  ────────────────────────────────────────\n")
	p("  Dashboard:  http://%s:%d/dashboard\n", bindAddr, cfg.Server.Port)
	p("  Health:     http://%s:%d/health\n", bindAddr, cfg.Server.Port)
	if cfg.Telemetry.Metrics {
		p("  Metrics:    http://%s:%d/metrics\n", bindAddr, cfg.Server.Port)
	}
	p("  ────────────────────────────────────────\n")
	p("  Access code:  %s\n", dashCode)
	p("  ────────────────────────────────────────\n")
	p("  Source: %s  |  Rows: %d  |  Toggle-all: %s\n", src, rows, cfg.Quarantine.ToggleAll)
	p("\n")
	p("  Enter this code in the browser to access the dashboard.\n")
	p("  Press Ctrl+C to stop.\n")
	p("\n")
}
