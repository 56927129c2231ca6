package mcpmgr

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Result is the outcome of a successful tool call.
type Result struct {
	Content []Content `json:"content"`
}

// Text joins the text items of the result with newlines.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Channel invokes tools on one connected server. Channels are safe for
// concurrent use.
type Channel interface {
	CallTool(ctx context.Context, name string, args any) (*Result, error)
	Close() error
}

type sessionChannel struct {
	key     string
	session *mcp.ClientSession
}

func (c *sessionChannel) CallTool(ctx context.Context, name string, args any) (*Result, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	out := convertResult(res)
	if res.IsError {
		return nil, &ToolError{ServerKey: c.key, Tool: name, Message: out.Text()}
	}
	return out, nil
}

func (c *sessionChannel) Close() error { return c.session.Close() }

func convertResult(res *mcp.CallToolResult) *Result {
	out := &Result{Content: make([]Content, 0, len(res.Content))}
	for _, item := range res.Content {
		switch v := item.(type) {
		case *mcp.TextContent:
			out.Content = append(out.Content, Content{Type: "text", Text: v.Text})
		default:
			out.Content = append(out.Content, Content{Type: contentType(item)})
		}
	}
	return out
}

func contentType(item mcp.Content) string {
	raw, err := json.Marshal(item)
	if err != nil {
		return "unknown"
	}
	var probe struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(raw, &probe) != nil || probe.Type == "" {
		return "unknown"
	}
	return probe.Type
}
