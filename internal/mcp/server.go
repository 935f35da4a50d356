// Package mcp provides a Model Context Protocol server for bahi.
//
// It exposes ledger extraction (extract, format) and the saved run history
// (runs, search) as MCP tools, and the output column order and active lexicon
// as MCP resources. Served over stdio.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/bahi/internal/export"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/pipeline"
	"github.com/hurttlocker/bahi/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store // optional; enables saving and the history tools
	Version  string      // version string for MCP server info
}

// dbMu serializes tool calls that touch the database. mcp-go dispatches
// handlers concurrently and SQLite has a single writer.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all bahi tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"bahi",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerExtractTool(s, cfg.Pipeline, cfg.Store)
	registerFormatTool(s, cfg.Pipeline)
	if cfg.Store != nil {
		registerRunsTool(s, cfg.Store)
		registerSearchTool(s, cfg.Store)
	}

	registerColumnsResource(s)
	registerLexiconResource(s, cfg.Pipeline)

	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(cfg ServerConfig) error {
	return server.ServeStdio(NewServer(cfg))
}

// --- Tools ---

type extractResponse struct {
	RunID    string                    `json:"run_id,omitempty"`
	Reused   bool                      `json:"reused,omitempty"`
	Blocks   int                       `json:"blocks"`
	Degraded int                       `json:"degraded"`
	Statuses []pipeline.BlockStatus    `json:"statuses,omitempty"`
	Records  []ledger.IndividualRecord `json:"records,omitempty"`
	CSV      string                    `json:"csv,omitempty"`
}

func registerExtractTool(s *server.MCPServer, p *pipeline.Pipeline, st store.Store) {
	tool := mcp.NewTool("bahi_extract",
		mcp.WithDescription("Extract one record per individual from Devanagari pilgrimage-ledger text. Returns the 26-column records as JSON, or as CSV text when format is csv."),
		mcp.WithReadOnlyHintAnnotation(st == nil),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw ledger text; records may span several lines"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: json or csv (default: json)"),
			mcp.Enum("json", "csv"),
		),
		mcp.WithString("source",
			mcp.Description("Source label stored with the run (e.g. file name). Defaults to 'mcp'."),
		),
		mcp.WithBoolean("save",
			mcp.Description("Save the run to the local database (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		text = strings.ReplaceAll(text, "\x00", "")

		format := "json"
		if f, err := req.RequireString("format"); err == nil && f != "" {
			format = strings.ToLower(f)
		}
		if format != "json" && format != "csv" {
			return mcp.NewToolResultError(fmt.Sprintf("invalid format %q", format)), nil
		}

		res, err := p.Run(ctx, text)
		if errors.Is(err, pipeline.ErrEmptyInput) {
			return mcp.NewToolResultError("text cannot be empty"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		out := extractResponse{
			Blocks:   len(res.Blocks),
			Degraded: res.Degraded(),
			Records:  res.Records,
		}
		if out.Degraded > 0 {
			out.Statuses = res.Statuses
		}

		if st != nil && req.GetBool("save", false) {
			source := "mcp"
			if src, err := req.RequireString("source"); err == nil && src != "" {
				source = src
			}
			run, reused, err := saveRun(ctx, st, p, text, source, res)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving run: %v", err)), nil
			}
			out.RunID, out.Reused = run.ID, reused
		}

		if format == "csv" {
			var buf bytes.Buffer
			if err := export.WriteCSV(&buf, res.Records); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("csv error: %v", err)), nil
			}
			out.CSV, out.Records = buf.String(), nil
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// saveRun stores res unless a run for the same input and lexicon exists.
func saveRun(ctx context.Context, st store.Store, p *pipeline.Pipeline, text, source string, res *pipeline.Result) (*store.Run, bool, error) {
	dbMu.Lock()
	defer dbMu.Unlock()

	version := p.Lexicon().Version
	return store.SaveOnce(ctx, st, &store.Run{
		InputHash:      store.HashInput(text, p.Lexicon().Fingerprint()),
		Source:         source,
		LexiconVersion: version,
		Blocks:         len(res.Blocks),
		Degraded:       res.Degraded(),
	}, res.Records)
}

func registerFormatTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("bahi_format",
		mcp.WithDescription("Reflow scanned ledger text into one paragraph per record, each ending with a danda (।)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw ledger text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		formatted, err := p.Format(text)
		if err != nil {
			return mcp.NewToolResultError("text cannot be empty"), nil
		}
		return mcp.NewToolResultText(formatted), nil
	})
}

func registerRunsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("bahi_runs",
		mcp.WithDescription("List saved extraction runs, newest first. Pass run_id to get that run's records instead."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("run_id",
			mcp.Description("Return the records of this run"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if id, err := req.RequireString("run_id"); err == nil && id != "" {
			run, err := st.GetRun(ctx, id)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("run lookup error: %v", err)), nil
			}
			if run == nil {
				return mcp.NewToolResultError(fmt.Sprintf("run %s not found", id)), nil
			}
			records, err := st.GetRecords(ctx, id)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("records error: %v", err)), nil
			}
			data, _ := json.MarshalIndent(map[string]interface{}{
				"run":     runView(run),
				"records": records,
			}, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}

		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = min(int(v), 100)
		}
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing runs: %v", err)), nil
		}
		views := make([]map[string]interface{}, 0, len(runs))
		for _, r := range runs {
			views = append(views, runView(r))
		}
		data, _ := json.MarshalIndent(views, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("bahi_search",
		mcp.WithDescription("Search saved records by given name, surname, district or village (substring match)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name or place to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records (default: 20, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = min(int(v), 200)
		}
		hits, err := st.SearchRecords(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}
		if hits == nil {
			hits = []store.RecordHit{}
		}
		data, _ := json.MarshalIndent(hits, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func runView(r *store.Run) map[string]interface{} {
	return map[string]interface{}{
		"id":              r.ID,
		"source":          r.Source,
		"lexicon_version": r.LexiconVersion,
		"blocks":          r.Blocks,
		"records":         r.Records,
		"degraded":        r.Degraded,
		"created_at":      r.CreatedAt,
	}
}

// --- Resources ---

func registerColumnsResource(s *server.MCPServer) {
	resource := mcp.NewResource(
		"bahi://columns",
		"Output Columns",
		mcp.WithResourceDescription("The fixed 26-column order of extracted records."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, _ := json.MarshalIndent(ledger.Header, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerLexiconResource(s *server.MCPServer, p *pipeline.Pipeline) {
	resource := mcp.NewResource(
		"bahi://lexicon",
		"Active Lexicon",
		mcp.WithResourceDescription("Version and relation labels of the word lists driving extraction."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		lex := p.Lexicon()
		relations := make([]string, 0, len(lex.Relations))
		for _, r := range lex.Relations {
			relations = append(relations, r.Label)
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"version":   lex.Version,
			"relations": relations,
			"castes":    len(lex.Castes),
			"rituals":   len(lex.Rituals),
			"surnames":  len(lex.Surnames),
		}, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
