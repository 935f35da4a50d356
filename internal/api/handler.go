// Package api serves ledger extraction over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hurttlocker/bahi/internal/export"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/pipeline"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 10 << 20

// Envelope statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusPartial = "PARTIAL"
	StatusFailed  = "FAILED"
)

// Response is the JSON envelope of /extract.
type Response struct {
	Status string                    `json:"status"`
	Data   []ledger.IndividualRecord `json:"data"`
	Blocks []pipeline.BlockStatus    `json:"blocks,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

// Handler serves the data-extraction endpoints.
type Handler struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	version  string
}

// NewHandler creates a Handler. A nil logger means slog.Default().
func NewHandler(p *pipeline.Pipeline, logger *slog.Logger, version string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: p, logger: logger, version: version}
}

// Routes returns the mux wrapped in the request middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/data-extraction/extract", h.Extract)
	mux.HandleFunc("POST /api/data-extraction/format", h.Format)
	mux.HandleFunc("POST /api/data-extraction/generate", h.Generate)
	mux.HandleFunc("GET /api/data-extraction/health", h.Health)

	return Chain(
		RequestID,
		Recovery(h.logger),
		Logger(h.logger),
	)(mux)
}

// Extract reads raw ledger text from the body and returns the records.
// Blank input is a 400 with status FAILED; blocks that timed out or failed
// turn the status into PARTIAL.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	text, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, Response{Status: StatusFailed, Error: err.Error()})
		return
	}
	if strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusBadRequest, Response{Status: StatusFailed})
		return
	}

	res, err := h.pipeline.Run(r.Context(), text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, Response{Status: StatusFailed, Error: err.Error()})
		return
	}

	resp := Response{Status: StatusSuccess, Data: res.Records}
	if resp.Data == nil {
		resp.Data = []ledger.IndividualRecord{}
	}
	if res.Degraded() > 0 {
		resp.Status = StatusPartial
		resp.Blocks = res.Statuses
	}
	writeJSON(w, http.StatusOK, resp)
}

// Format reflows raw text into one paragraph per record.
func (h *Handler) Format(w http.ResponseWriter, r *http.Request) {
	text, err := readBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	formatted, err := h.pipeline.Format(text)
	if err != nil {
		http.Error(w, "text cannot be empty", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, formatted) //nolint:errcheck
}

// Generate converts a JSON array of records into an XLSX workbook.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	records, err := export.ReadJSON(r.Body)
	if err != nil {
		http.Error(w, "invalid records: "+err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, records); err != nil {
		h.logger.ErrorContext(r.Context(), "generating workbook", slog.Any("error", err))
		http.Error(w, "Error generating Excel: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.FormatXLSX.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="extracted_data.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Lexicon string `json:"lexicon"`
}

// Health always returns 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Lexicon: h.pipeline.Lexicon().Version,
	})
}

func readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
