package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/config"
)

// chartIDs lists every chart in page order.
func chartIDs() []string {
	ids := []string{charts.ThreatChart, charts.TrafficChart}
	ids = append(ids, charts.MiniCharts...)
	return append(ids, charts.SecurityScoreChart)
}

func newBuilder(cfg *config.Config, theme string) (*charts.Builder, error) {
	palette, err := charts.DefaultPalette().With(cfg.Dashboard.ChartColors)
	if err != nil {
		return nil, fmt.Errorf("chart colours: %w", err)
	}
	if theme == "" {
		theme = cfg.Dashboard.Theme
	}
	return charts.NewBuilder(palette,
		charts.WithTheme(charts.ParseTheme(theme)),
		charts.WithAnimation(cfg.Dashboard.AnimationMS),
	), nil
}

func newChartsCmd() *cobra.Command {
	var period, theme string
	var width int

	cmd := &cobra.Command{
		Use:   "charts [chart-id]",
		Short: "Print the Chart.js configuration of a dashboard chart",
		Long:  "Without an argument, lists the chart ids. With one, prints that chart's configuration as JSON.",
		Example: `  sithafal charts
  sithafal charts threatChart --period week
  sithafal charts trafficChart --width 600 --theme dark`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, id := range chartIDs() {
					fmt.Fprintln(out, id) //nolint:errcheck
				}
				return nil
			}

			p, ok := charts.ParsePeriod(period)
			if !ok {
				return fmt.Errorf("unknown period %q (want today, week or month)", period)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := newBuilder(cfg, theme)
			if err != nil {
				return err
			}

			chart, err := b.Build(args[0], charts.ThreatSeries(p), width)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(chart)
		},
	}

	cmd.Flags().StringVar(&period, "period", "today", "threat breakdown period (today, week, month)")
	cmd.Flags().StringVar(&theme, "theme", "", "light or dark (default from config)")
	cmd.Flags().IntVar(&width, "width", 1280, "viewport width used for axis ticks")
	return cmd
}
