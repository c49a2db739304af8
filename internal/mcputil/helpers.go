// Package mcputil decodes tool call arguments and builds tool results for
// the go-sdk MCP server.
package mcputil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Args are the decoded arguments of one tool call. A nil Args answers every
// lookup with its default.
type Args map[string]any

// Parse decodes raw. Empty or malformed input yields nil.
func Parse(raw json.RawMessage) Args {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// String returns the string at key, or def when it is absent or not a string.
func (a Args) String(key, def string) string {
	s, ok := a[key].(string)
	if !ok {
		return def
	}
	return s
}

// Int returns the number at key truncated to an int, or def when it is
// absent or not a number.
func (a Args) Int(key string, def int) int {
	f, ok := a[key].(float64)
	if !ok {
		return def
	}
	return int(f)
}

// Bool reports whether key holds true. Some clients send flags as the
// string "true"; that counts too.
func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// Strings returns the string elements of the array at key. A plain string
// value is returned as a one-element slice.
func (a Args) Strings(key string) []string {
	switch v := a[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Text is a successful result carrying text.
func Text(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Errorf is a tool error result. Tool errors go back to the model as
// content; they are not protocol errors.
func Errorf(format string, args ...any) *mcp.CallToolResult {
	var r mcp.CallToolResult
	r.SetError(fmt.Errorf(format, args...))
	return &r
}

// JSON is a successful result carrying v as indented JSON.
func JSON(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Errorf("encoding result: %v", err)
	}
	return Text(string(data))
}
