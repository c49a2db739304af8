// Package mcp exposes the quarantine table to MCP clients over stdio, so an
// assistant can list, release and delete held emails.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/quarantine"
)

// NewServer creates an MCP server exposing sithafal tools over ctrl. Tool
// results echo the notification each action raised, so ctrl should notify
// through a *notify.Center.
func NewServer(ctrl *quarantine.Controller, builder *charts.Builder, version string, logger *slog.Logger) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "sithafal",
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: "Sithafal holds suspicious emails in quarantine. " +
			"Use these tools to review held emails, release the safe ones, " +
			"delete the malicious ones, and fetch dashboard chart data.",
	})

	h := &handlers{
		ctrl:    ctrl,
		builder: builder,
		logger:  logger,
	}

	s.AddTool(listTool(), h.handleList)
	s.AddTool(countsTool(), h.handleCounts)
	s.AddTool(previewTool(), h.handlePreview)
	s.AddTool(releaseTool(), h.handleRelease)
	s.AddTool(deleteTool(), h.handleDelete)
	s.AddTool(chartTool(), h.handleChart)

	return s
}

// Serve runs the MCP server on stdio until ctx is done or the client leaves.
func Serve(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
