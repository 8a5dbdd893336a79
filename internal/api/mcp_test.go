package api

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/heimdex/heimdex/internal/event"
	"github.com/heimdex/heimdex/internal/rag"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestAskTool(t *testing.T) {
	deps := MCPDeps{Answerer: &mockAnswerer{
		answerFn: func(ctx context.Context, question string, options map[string]any) (rag.Result, error) {
			if question != "Is the heating on?" {
				t.Errorf("question = %q", question)
			}
			return rag.Result{Answer: "The heating is off."}, nil
		},
	}}

	res, err := handleAskTool(deps)(context.Background(), toolRequest(map[string]any{
		"user_query": "Is the heating on?",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("result is error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "The heating is off." {
		t.Errorf("text = %q", got)
	}
}

func TestAskTool_MissingQuery(t *testing.T) {
	res, err := handleAskTool(MCPDeps{})(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("result should be an error without user_query")
	}
}

func TestAskTool_AnswerFailure(t *testing.T) {
	deps := MCPDeps{Answerer: &mockAnswerer{
		answerFn: func(ctx context.Context, question string, options map[string]any) (rag.Result, error) {
			return rag.Result{}, errors.New("model not loaded")
		},
	}}

	res, err := handleAskTool(deps)(context.Background(), toolRequest(map[string]any{"user_query": "q"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("result should carry the failure")
	}
}

func TestIngestTool(t *testing.T) {
	var gotRec event.Record
	deps := MCPDeps{Ingestor: &mockIngestor{
		ingestFn: func(ctx context.Context, rec event.Record) (string, error) {
			gotRec = rec
			return "doc-42", nil
		},
	}}

	res, err := handleIngestTool(deps)(context.Background(), toolRequest(map[string]any{
		"device_name":                "hue.0.light",
		"event_type":                 "on",
		"value":                      "true",
		"data_type":                  "boolean",
		"human_readable_description": "Living room light",
		"location":                   "living room",
		"timestamp":                  float64(1700000000000),
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("result is error: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "doc-42") {
		t.Errorf("text = %q, should mention the doc id", resultText(t, res))
	}

	if gotRec.DeviceName != "hue.0.light" || gotRec.DataType != event.TypeBoolean {
		t.Errorf("record = %+v", gotRec)
	}
	if string(gotRec.Value) != "true" {
		t.Errorf("value = %s", gotRec.Value)
	}
	if string(gotRec.Timestamp) != "1700000000000" {
		t.Errorf("timestamp = %s", gotRec.Timestamp)
	}
}

func TestIngestTool_ValidationFailure(t *testing.T) {
	deps := MCPDeps{Ingestor: &mockIngestor{
		ingestFn: func(ctx context.Context, rec event.Record) (string, error) {
			return "", &event.ValidationError{Missing: []string{"value"}}
		},
	}}

	res, err := handleIngestTool(deps)(context.Background(), toolRequest(map[string]any{
		"device_name": "d",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("result should carry the validation failure")
	}
}

func TestRawOrString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"true", "true"},
		{"21.5", "21.5"},
		{`"open"`, `"open"`},
		{"open", `"open"`},
		{"not valid json {", `"not valid json {"`},
	}
	for _, tc := range cases {
		if got := string(rawOrString(tc.in)); got != tc.want {
			t.Errorf("rawOrString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
