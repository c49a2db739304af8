package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/mcputil"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
)

type handlers struct {
	ctrl    *quarantine.Controller
	builder *charts.Builder
	logger  *slog.Logger
}

// --- Tool definitions ---

func ptr[T any](v T) *T { return &v }

func readOnly() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:    true,
		DestructiveHint: ptr(false),
		OpenWorldHint:   ptr(false),
	}
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func listTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "quarantine_list",
		Description: "List quarantined emails. Filter by risk tab (all, high, medium, released) " +
			"and by a case-insensitive search over sender and subject.",
		InputSchema: object(map[string]any{
			"tag":   map[string]any{"type": "string", "description": "Filter tab: all, high, medium, released (default all)"},
			"query": map[string]any{"type": "string", "description": "Substring to match in sender or subject"},
			"limit": map[string]any{"type": "number", "description": "Maximum rows to return (default 50)"},
		}),
		Annotations: readOnly(),
	}
}

func countsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "quarantine_counts",
		Description: "Return how many emails are held, broken down by risk level.",
		InputSchema: object(map[string]any{}),
		Annotations: readOnly(),
	}
}

func previewTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "quarantine_preview",
		Description: "Show sender, subject, date and risk of one quarantined email.",
		InputSchema: object(map[string]any{
			"id": map[string]any{"type": "string", "description": "Row id"},
		}, "id"),
		Annotations: readOnly(),
	}
}

func releaseTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "quarantine_release",
		Description: "Release quarantined emails to their recipients. Pass one id or a list of ids.",
		InputSchema: object(map[string]any{
			"id":  map[string]any{"type": "string", "description": "Row id"},
			"ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Row ids for a bulk release"},
		}),
		Annotations: &mcp.ToolAnnotations{
			DestructiveHint: ptr(false),
			OpenWorldHint:   ptr(false),
		},
	}
}

func deleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "quarantine_delete",
		Description: "Permanently delete quarantined emails. This cannot be undone, so the " +
			"call must set confirm to true after the user agreed.",
		InputSchema: object(map[string]any{
			"id":      map[string]any{"type": "string", "description": "Row id"},
			"ids":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Row ids for a bulk delete"},
			"confirm": map[string]any{"type": "boolean", "description": "Must be true; the user approved the deletion"},
		}, "confirm"),
		Annotations: &mcp.ToolAnnotations{
			DestructiveHint: ptr(true),
			OpenWorldHint:   ptr(false),
		},
	}
}

func chartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "chart_config",
		Description: "Return the Chart.js configuration of a dashboard chart as JSON.",
		InputSchema: object(map[string]any{
			"chart":  map[string]any{"type": "string", "description": "Chart id, e.g. threatChart, trafficChart, securityScoreChart, emailTrendChart"},
			"period": map[string]any{"type": "string", "description": "Threat breakdown period: today, week, month (default today)"},
			"width":  map[string]any{"type": "number", "description": "Viewport width used for axis ticks (default 1280)"},
		}, "chart"),
		Annotations: readOnly(),
	}
}

// --- Handlers ---

// ids reads "id" and "ids" from the arguments, in that order, without
// duplicates.
func ids(args mcputil.Args) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range append(args.Strings("id"), args.Strings("ids")...) {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// lastMessage returns the newest notification the action raised.
func lastMessage(seen *notify.Collector) string {
	notes := seen.Notifications()
	if len(notes) == 0 {
		return ""
	}
	return notes[len(notes)-1].Message
}

func (h *handlers) handleList(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := mcputil.Parse(req.Params.Arguments)
	tagName := args.String("tag", string(quarantine.TagAll))
	tag, ok := quarantine.ParseTag(tagName)
	if !ok {
		return mcputil.Errorf("unknown tag %q (want all, high, medium, released)", tagName), nil
	}
	limit := args.Int("limit", 50)
	if limit <= 0 {
		limit = 50
	}

	f := quarantine.Filter{Tag: tag, Query: args.String("query", "")}
	rows := make([]quarantine.Row, 0)
	for _, r := range h.ctrl.Rows() {
		if !f.Matches(r) {
			continue
		}
		rows = append(rows, r)
		if len(rows) == limit {
			break
		}
	}
	return mcputil.JSON(map[string]any{"rows": rows, "count": len(rows)}), nil
}

func (h *handlers) handleCounts(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcputil.JSON(h.ctrl.Counts()), nil
}

func (h *handlers) handlePreview(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcputil.Parse(req.Params.Arguments).String("id", "")
	if id == "" {
		return mcputil.Errorf("id is required"), nil
	}
	p, err := h.ctrl.Preview(id)
	if err != nil {
		return mcputil.Errorf("%v", err), nil
	}
	return mcputil.JSON(p), nil
}

func (h *handlers) handleRelease(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targets := ids(mcputil.Parse(req.Params.Arguments))
	if len(targets) == 0 {
		return mcputil.Errorf("id or ids is required"), nil
	}

	ctx, seen := notify.Collect(ctx)
	if len(targets) == 1 {
		if err := h.ctrl.ReleaseRow(ctx, targets[0]); err != nil {
			return mcputil.Errorf("%v", err), nil
		}
		h.logger.Info("mcp release", "id", targets[0])
		return mcputil.Text(lastMessage(seen)), nil
	}

	if err := h.selectOnly(targets); err != nil {
		return mcputil.Errorf("%v", err), nil
	}
	n := h.ctrl.BulkRelease(ctx)
	h.logger.Info("mcp bulk release", "rows", n)
	return mcputil.Text(lastMessage(seen)), nil
}

func (h *handlers) handleDelete(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := mcputil.Parse(req.Params.Arguments)
	targets := ids(args)
	if len(targets) == 0 {
		return mcputil.Errorf("id or ids is required"), nil
	}
	if !args.Bool("confirm") {
		return mcputil.Errorf("deletion not confirmed: ask the user, then call again with confirm=true"), nil
	}
	ctx, seen := notify.Collect(quarantine.WithConfirmation(ctx, true))
	if len(targets) == 1 {
		if _, err := h.ctrl.DeleteRow(ctx, targets[0]); err != nil {
			return mcputil.Errorf("%v", err), nil
		}
		h.logger.Info("mcp delete", "id", targets[0])
		return mcputil.Text(lastMessage(seen)), nil
	}

	if err := h.selectOnly(targets); err != nil {
		return mcputil.Errorf("%v", err), nil
	}
	n := h.ctrl.BulkDelete(ctx)
	h.logger.Info("mcp bulk delete", "rows", n)
	return mcputil.Text(lastMessage(seen)), nil
}

// selectOnly replaces the selection with exactly ids. Unknown ids fail the
// whole call before anything is selected.
func (h *handlers) selectOnly(targets []string) error {
	var missing []string
	for _, id := range targets {
		if _, ok := h.ctrl.Row(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", quarantine.ErrUnknownRow, strings.Join(missing, ", "))
	}
	h.ctrl.ToggleAll(false)
	for _, id := range targets {
		if err := h.ctrl.ToggleRow(id, true); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlers) handleChart(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := mcputil.Parse(req.Params.Arguments)
	id := args.String("chart", "")
	period, ok := charts.ParsePeriod(args.String("period", string(charts.PeriodToday)))
	if !ok {
		return mcputil.Errorf("period must be today, week or month"), nil
	}
	width := args.Int("width", 1280)

	cfg, err := h.builder.Build(id, charts.ThreatSeries(period), width)
	if err != nil {
		if errors.Is(err, charts.ErrUnknownChart) {
			return mcputil.Errorf("unknown chart %q", id), nil
		}
		return mcputil.Errorf("%v", err), nil
	}
	return mcputil.JSON(cfg), nil
}
