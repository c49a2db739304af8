package commands

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/sithafal/sithafal/internal/mcp"
	"github.com/sithafal/sithafal/internal/notify"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start sithafal as an MCP server (stdio)",
		Long: `Exposes the quarantine table as an MCP tool server. Add to your MCP client config:

  {
    "mcpServers": {
      "sithafal": {
        "command": "sithafal",
        "args": ["mcp", "--config", "./sithafal.yaml"]
      }
    }
  }

Tools: quarantine_list, quarantine_counts, quarantine_preview,
quarantine_release, quarantine_delete, chart_config

Releases and deletes only change the rows held by this server process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// stdout carries the protocol; logs go to stderr.
			logger := quietLogger()
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
			builder, err := newBuilder(cfg, "")
			if err != nil {
				return err
			}

			s := mcpserver.NewServer(ctrl, builder, version, logger)
			return mcpserver.Serve(ctx, s)
		},
	}
}
