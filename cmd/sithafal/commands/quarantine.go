package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
	"github.com/sithafal/sithafal/internal/source"
	"github.com/sithafal/sithafal/internal/tui"
)

func newQuarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect and review quarantined emails",
		Long:  "List, count and preview quarantined emails from the configured row source, or review them interactively in the terminal console.",
	}

	cmd.AddCommand(
		newQuarantineListCmd(),
		newQuarantineCountsCmd(),
		newQuarantinePreviewCmd(),
		newQuarantineConsoleCmd(),
		newQuarantineSeedCmd(),
	)

	return cmd
}

// openController loads the configured rows into a read-only controller.
func openController(ctx context.Context) (*quarantine.Controller, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := quietLogger()
	rows, err := loadRows(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return quarantine.New(rows, quarantine.WithLogger(logger)), nil
}

func parseTag(s string) (quarantine.Tag, error) {
	tag, ok := quarantine.ParseTag(s)
	if !ok {
		return "", fmt.Errorf("unknown tag %q (want all, high, medium or released)", s)
	}
	return tag, nil
}

func newQuarantineListCmd() *cobra.Command {
	var tag, query string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quarantined emails",
		Example: `  sithafal quarantine list
  sithafal quarantine list --tag high
  sithafal quarantine list --query invoice --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTag(tag)
			if err != nil {
				return err
			}
			ctrl, err := openController(cmd.Context())
			if err != nil {
				return err
			}
			ctrl.SetFilter(t)
			ctrl.SetQuery(query)

			rows := ctrl.Visible()
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No quarantined emails match.") //nolint:errcheck
				return nil
			}

			useColor(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tRISK\tSENDER\tSUBJECT\tRECEIVED\n") //nolint:errcheck
			for _, r := range rows {
				received := ""
				if !r.Received.IsZero() {
					received = r.Received.Format(quarantine.DateLayout + " " + quarantine.TimeLayout)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
					r.ID, riskColor(r.Risk).Sprint(r.Risk.Label()), r.Sender, r.Subject, received)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "all", "filter tab (all, high, medium, released)")
	cmd.Flags().StringVar(&query, "query", "", "case-insensitive substring of sender or subject")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to print (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

func newQuarantineCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the per-risk breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openController(cmd.Context())
			if err != nil {
				return err
			}
			c := ctrl.Counts()

			out := cmd.OutOrStdout()
			useColor(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\t%d\n", quarantine.TagAll.Label(), c.Total)                                              //nolint:errcheck
			fmt.Fprintf(tw, "%s\t%d\n", riskColor(quarantine.RiskHigh).Sprint(quarantine.TagHigh.Label()), c.High)       //nolint:errcheck
			fmt.Fprintf(tw, "%s\t%d\n", riskColor(quarantine.RiskMedium).Sprint(quarantine.TagMedium.Label()), c.Medium) //nolint:errcheck
			fmt.Fprintf(tw, "%s\t%d\n", riskColor(quarantine.RiskLow).Sprint(quarantine.RiskLow.Label()), c.Low)         //nolint:errcheck
			return tw.Flush()
		},
	}
}

func newQuarantinePreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <id>",
		Short: "Show one quarantined email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openController(cmd.Context())
			if err != nil {
				return err
			}
			p, err := ctrl.Preview(args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID:\t%s\n", p.ID)           //nolint:errcheck
			fmt.Fprintf(tw, "From:\t%s\n", p.Sender)     //nolint:errcheck
			fmt.Fprintf(tw, "Subject:\t%s\n", p.Subject) //nolint:errcheck
			if p.Date != "" {
				fmt.Fprintf(tw, "Date:\t%s\n", p.Date) //nolint:errcheck
			}
			fmt.Fprintf(tw, "Risk:\t%s\n", p.Risk) //nolint:errcheck
			return tw.Flush()
		},
	}
}

func newQuarantineConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Review quarantined emails in an interactive terminal console",
		Long: `Opens the quarantine table in the terminal.

  space/x  select row        a      select all
  tab/1-4  filter tabs       /      search
  enter/p  preview           r/R    release row/selection
  d/D      delete row/selection (asks to confirm)
  q        quit

Releases and deletes only change this console session; the row source is
never modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return errors.New("quarantine console needs an interactive terminal")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// The console owns the screen: log nowhere.
			logger := newLogger(io.Discard, cfg.Server.LogLevel)

			ctx := cmd.Context()
			rows, err := loadRows(ctx, cfg, logger)
			if err != nil {
				return err
			}
			sinks, closeSinks, err := openSinks(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSinks()

			notes := notify.NewCenter(cfg.DismissAfter(), logger, sinks...)
			defer notes.Close()
			ctrl, err := newController(cfg, rows, notes, logger)
			if err != nil {
				return err
			}

			m := tui.New(ctrl, notes, tui.Options{
				Debounce:   cfg.SearchDebounce(),
				FlashAfter: cfg.DismissAfter(),
			})
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
}

func newQuarantineSeedCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the built-in sample rows to a YAML or SQLite file",
		Example: `  sithafal quarantine seed --format yaml --out quarantine.yaml
  sithafal quarantine seed --format sqlite --out quarantine.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rows, err := source.NewSeed().Load(ctx)
			if err != nil {
				return err
			}

			switch format {
			case "yaml":
				if out == "" {
					out = "quarantine.yaml"
				}
				err = source.WriteYAML(out, rows)
			case "sqlite":
				if out == "" {
					out = "quarantine.db"
				}
				err = source.WriteSQLite(ctx, out, rows)
			default:
				return fmt.Errorf("unknown format %q (want yaml or sqlite)", format)
			}
			if err != nil {
				return err
			}

			spec := out
			if format == "sqlite" && filepath.Ext(out) != ".db" {
				spec = "sqlite:" + out
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Wrote %d rows to %s\n", len(rows), out)       //nolint:errcheck
			fmt.Fprintf(w, "Use it with:  quarantine.source: %s\n", spec) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, sqlite)")
	cmd.Flags().StringVar(&out, "out", "", "output path (default quarantine.yaml or quarantine.db)")
	return cmd
}
