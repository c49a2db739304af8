package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/sithafal/sithafal/internal/config"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
	"github.com/sithafal/sithafal/internal/source"
	"github.com/sithafal/sithafal/internal/telemetry"
)

// loadConfig reads cfgFile, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefaults(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel(level)}))
}

// quietLogger is for one-shot commands whose output is the result itself.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// useColor turns colour output on only when writing to a terminal.
func useColor(w io.Writer) {
	color.NoColor = !isTerminal(w) || os.Getenv("NO_COLOR") != ""
}

func riskColor(r quarantine.Risk) *color.Color {
	switch r {
	case quarantine.RiskHigh:
		return color.New(color.FgRed, color.Bold)
	case quarantine.RiskMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// openSource opens the configured row source. YAML fixtures are wrapped in
// a file watcher when quarantine.watch is set.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (source.Source, error) {
	src, err := source.Open(ctx, cfg.Quarantine.Source, logger)
	if err != nil {
		return nil, fmt.Errorf("opening row source: %w", err)
	}
	file, ok := src.(*source.YAMLFile)
	if !ok || !cfg.Quarantine.Watch {
		return src, nil
	}

	var onLoad func(int)
	if metrics != nil {
		onLoad = metrics.RowsLoaded
	}
	w, err := source.Watch(ctx, file, logger, onLoad)
	if err != nil {
		return nil, fmt.Errorf("watching row source: %w", err)
	}
	return w, nil
}

// loadRows opens the row source, loads it once and closes it again.
func loadRows(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]quarantine.Row, error) {
	src, err := source.Open(ctx, cfg.Quarantine.Source, logger)
	if err != nil {
		return nil, fmt.Errorf("opening row source: %w", err)
	}
	defer src.Close() //nolint:errcheck

	rows, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rows from %s: %w", src.Name(), err)
	}
	return rows, nil
}

// openSinks dials the Redis notification sink when one is configured. The
// returned func releases whatever was opened.
func openSinks(ctx context.Context, cfg *config.Config) ([]notify.Sink, func(), error) {
	r := cfg.Notifications.Redis
	if r.Addr == "" {
		return nil, func() {}, nil
	}
	sink, err := notify.DialRedis(ctx, r.Addr, r.Password, r.DB, r.Channel)
	if err != nil {
		return nil, nil, err
	}
	return []notify.Sink{sink}, func() { _ = sink.Close() }, nil
}

// newController builds an interactive controller: notifications go to
// notes and deletes are confirmed through the request context.
func newController(cfg *config.Config, rows []quarantine.Row, notes *notify.Center, logger *slog.Logger) (*quarantine.Controller, error) {
	policy, err := quarantine.ParseToggleAllPolicy(cfg.Quarantine.ToggleAll)
	if err != nil {
		return nil, err
	}
	return quarantine.New(rows,
		quarantine.WithNotifier(notes),
		quarantine.WithConfirmer(quarantine.ContextConfirmer),
		quarantine.WithPolicy(policy),
		quarantine.WithLogger(logger),
	), nil
}
