package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
	"github.com/hurttlocker/bahi/internal/pipeline"
	"github.com/hurttlocker/bahi/internal/store"
)

const scenario = "प्रा० रामलाल पिता स्व० श्यामलाल जिला बोकारो अस्ती लाये माता सुनीता देवी ता. ०५-०३-०८"

// helper: create an empty in-memory store
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestServer(t *testing.T, s store.Store) *server.MCPServer {
	t.Helper()
	p := pipeline.New(lexicon.Default(), pipeline.WithWorkers(2))
	return NewServer(ServerConfig{Pipeline: p, Store: s, Version: "test"})
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t))
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the JSON-RPC entry point.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

// readResource fetches a resource's text through the JSON-RPC entry point.
func readResource(t *testing.T, srv *server.MCPServer, uri string) string {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": uri},
	}))
	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Result struct {
			Contents []struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if len(resp.Result.Contents) == 0 {
		t.Fatalf("no contents for %s: %s", uri, string(respBytes))
	}
	return resp.Result.Contents[0].Text
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func decodeExtract(t *testing.T, text string) extractResponse {
	t.Helper()
	var out extractResponse
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, text)
	}
	return out
}

func TestExtractTool(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t))

	result := callTool(t, srv, "bahi_extract", map[string]interface{}{
		"text": scenario,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}

	out := decodeExtract(t, getTextContent(t, result))
	if out.Blocks != 1 || out.Degraded != 0 {
		t.Errorf("blocks=%d degraded=%d", out.Blocks, out.Degraded)
	}
	if len(out.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out.Records))
	}
	if out.Records[0].GivenName != "रामलाल" {
		t.Errorf("first record = %q, want applicant", out.Records[0].GivenName)
	}
	if out.RunID != "" {
		t.Errorf("run saved without save=true: %s", out.RunID)
	}
}

func TestExtractTool_CSV(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "bahi_extract", map[string]interface{}{
		"text":   scenario,
		"format": "csv",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	out := decodeExtract(t, getTextContent(t, result))
	if len(out.Records) != 0 {
		t.Error("csv output should not repeat records as JSON")
	}
	lines := strings.Split(strings.TrimSpace(out.CSV), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], ledger.Header[0]) {
		t.Errorf("header = %q", lines[0])
	}
}

func TestExtractTool_EmptyText(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "bahi_extract", map[string]interface{}{
		"text": "   \n  ",
	})
	if !result.IsError {
		t.Fatal("expected error for blank text")
	}
}

func TestExtractTool_BadFormat(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "bahi_extract", map[string]interface{}{
		"text":   scenario,
		"format": "pdf",
	})
	if !result.IsError {
		t.Fatal("expected error for unknown format")
	}
}

func TestExtractTool_SaveDeduplicates(t *testing.T) {
	s := setupTestStore(t)
	srv := newTestServer(t, s)
	args := map[string]interface{}{
		"text":   scenario,
		"save":   true,
		"source": "page-1.txt",
	}

	first := decodeExtract(t, getTextContent(t, callTool(t, srv, "bahi_extract", args)))
	if first.RunID == "" || first.Reused {
		t.Fatalf("first save = %+v", first)
	}
	second := decodeExtract(t, getTextContent(t, callTool(t, srv, "bahi_extract", args)))
	if second.RunID != first.RunID || !second.Reused {
		t.Fatalf("second save should reuse %s, got %+v", first.RunID, second)
	}

	run, err := s.GetRun(context.Background(), first.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v, %v", run, err)
	}
	if run.Source != "page-1.txt" || run.Records != 3 {
		t.Errorf("stored run = %+v", run)
	}
}

func TestFormatTool(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "bahi_format", map[string]interface{}{
		"text": "प्रा० राम ता. ०५-०३-०८\nप्रा० श्याम",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	if got, want := getTextContent(t, result), "प्रा० राम ता. ०५-०३-०८।\n\nप्रा० श्याम।"; got != want {
		t.Errorf("format = %q, want %q", got, want)
	}
}

func TestRunsTool(t *testing.T) {
	s := setupTestStore(t)
	srv := newTestServer(t, s)

	saved := decodeExtract(t, getTextContent(t, callTool(t, srv, "bahi_extract", map[string]interface{}{
		"text": scenario,
		"save": true,
	})))

	text := getTextContent(t, callTool(t, srv, "bahi_runs", map[string]interface{}{}))
	var runs []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(runs) != 1 || runs[0]["id"] != saved.RunID {
		t.Fatalf("runs = %v", runs)
	}

	text = getTextContent(t, callTool(t, srv, "bahi_runs", map[string]interface{}{
		"run_id": saved.RunID,
	}))
	var detail struct {
		Records []ledger.IndividualRecord `json:"records"`
	}
	if err := json.Unmarshal([]byte(text), &detail); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(detail.Records) != 3 {
		t.Errorf("run detail has %d records", len(detail.Records))
	}

	result := callTool(t, srv, "bahi_runs", map[string]interface{}{"run_id": "missing"})
	if !result.IsError {
		t.Error("expected error for unknown run")
	}
}

func TestSearchTool(t *testing.T) {
	s := setupTestStore(t)
	srv := newTestServer(t, s)

	callTool(t, srv, "bahi_extract", map[string]interface{}{"text": scenario, "save": true})

	text := getTextContent(t, callTool(t, srv, "bahi_search", map[string]interface{}{
		"query": "सुनीता",
	}))
	var hits []store.RecordHit
	if err := json.Unmarshal([]byte(text), &hits); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(hits) != 1 || hits[0].Record.GivenName != "सुनीता" {
		t.Fatalf("hits = %+v", hits)
	}

	result := callTool(t, srv, "bahi_search", map[string]interface{}{"query": "  "})
	if !result.IsError {
		t.Error("expected error for blank query")
	}
}

func TestColumnsResource(t *testing.T) {
	srv := newTestServer(t, nil)

	var cols []string
	if err := json.Unmarshal([]byte(readResource(t, srv, "bahi://columns")), &cols); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(cols) != 26 || cols[0] != ledger.Header[0] {
		t.Errorf("columns = %v", cols)
	}
}

func TestLexiconResource(t *testing.T) {
	srv := newTestServer(t, nil)

	var lex struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(readResource(t, srv, "bahi://lexicon")), &lex); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if lex.Version != lexicon.Default().Version {
		t.Errorf("version = %q", lex.Version)
	}
}
