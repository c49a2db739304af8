package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sithafal/sithafal/internal/app"
	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/safefile"
	"github.com/sithafal/sithafal/internal/source"
)

func newExportCmd() *cobra.Command {
	var out, period string
	var withCounts bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a dashboard report as JSON",
		Example: `  sithafal export
  sithafal export --period month --out report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			palette, err := charts.DefaultPalette().With(cfg.Dashboard.ChartColors)
			if err != nil {
				return fmt.Errorf("chart colours: %w", err)
			}
			logger := quietLogger()

			src, err := source.Open(cmd.Context(), cfg.Quarantine.Source, logger)
			if err != nil {
				return fmt.Errorf("opening row source: %w", err)
			}
			defer src.Close() //nolint:errcheck

			st, err := app.New(app.Options{
				Source:       src,
				Palette:      palette,
				Theme:        charts.ParseTheme(cfg.Dashboard.Theme),
				AnimationMS:  cfg.Dashboard.AnimationMS,
				DismissAfter: cfg.DismissAfter(),
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.SetPeriod(period); err != nil {
				return err
			}
			if withCounts {
				if _, err := st.Navigate(cmd.Context(), "quarantine"); err != nil {
					return err
				}
			}

			if out == "" {
				_, err = st.ExportReport(cmd.Context(), cmd.OutOrStdout())
				return err
			}
			var buf bytes.Buffer
			if _, err := st.ExportReport(cmd.Context(), &buf); err != nil {
				return err
			}
			if err := safefile.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", out) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	cmd.Flags().StringVar(&period, "period", "today", "threat breakdown period (today, week, month)")
	cmd.Flags().BoolVar(&withCounts, "counts", false, "include quarantine counts from the row source")
	return cmd
}
