package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/heimdex/heimdex/internal/event"
)

const recentEventsURI = "heimdex://events/recent"

// MCPDeps carries what the MCP tools need.
type MCPDeps struct {
	Ingestor Ingestor
	Answerer Answerer
	Journal  Journal
}

// NewMCPServer exposes question answering and ingestion as MCP tools, plus
// the recent event journal as a resource, for use by MCP-speaking agents.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer("heimdex", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	askTool := mcp.NewTool("ask_home_events",
		mcp.WithDescription("Answer a question about recorded smart home device events."),
		mcp.WithString("user_query",
			mcp.Required(),
			mcp.Description("The question to answer from stored event history"),
		),
	)
	s.AddTool(askTool, handleAskTool(deps))

	ingestTool := mcp.NewTool("ingest_event",
		mcp.WithDescription("Store one smart home device event for later retrieval."),
		mcp.WithString("device_name", mcp.Required(), mcp.Description("Device identifier, e.g. hue.0.living.light")),
		mcp.WithString("event_type", mcp.Required(), mcp.Description("Event description from the device, e.g. on, off, motion")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The raw value, JSON-encoded")),
		mcp.WithString("data_type", mcp.Required(), mcp.Description("One of boolean, number, string, mixed")),
		mcp.WithString("human_readable_description", mcp.Required(), mcp.Description("Human readable device description")),
		mcp.WithString("location", mcp.Description("Room or area of the device")),
		mcp.WithNumber("timestamp", mcp.Description("Event time in milliseconds since epoch")),
	)
	s.AddTool(ingestTool, handleIngestTool(deps))

	recentEvents := mcp.NewResource(recentEventsURI, "recent-events",
		mcp.WithResourceDescription("The most recently ingested device events, newest first."),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(recentEvents, handleRecentEvents(deps))

	return s
}

func handleAskTool(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("user_query")
		if err != nil {
			return mcpError("user_query is required"), nil
		}

		res, err := deps.Answerer.Answer(ctx, query, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}
		return mcpText(res.Answer), nil
	}
}

func handleIngestTool(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec := event.Record{
			DeviceName:  req.GetString("device_name", ""),
			EventType:   req.GetString("event_type", ""),
			DataType:    req.GetString("data_type", ""),
			Description: req.GetString("human_readable_description", ""),
			Location:    req.GetString("location", ""),
		}
		if raw := req.GetString("value", ""); raw != "" {
			rec.Value = rawOrString(raw)
		}
		if ms := req.GetFloat("timestamp", 0); ms != 0 {
			rec.Timestamp = json.RawMessage(fmt.Sprintf("%d", int64(ms)))
		}

		docID, err := deps.Ingestor.Ingest(ctx, rec)
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Event stored with id %s", docID)), nil
	}
}

// rawOrString treats the value as JSON when it parses, and as a plain
// string otherwise, so callers can pass either `true` or `open`.
func rawOrString(raw string) json.RawMessage {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(raw)
	return json.RawMessage(quoted)
}

func handleRecentEvents(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		events, err := deps.Journal.ListEvents(ctx, 50)
		if err != nil {
			return nil, fmt.Errorf("listing events: %w", err)
		}
		payload, err := json.Marshal(events)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      recentEventsURI,
				MIMEType: "application/json",
				Text:     string(payload),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
