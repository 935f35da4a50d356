// Package ingest reads ledger text from files, directories and stdin.
//
// Each supported format (plain text, JSON) has its own importer that
// implements the Importer interface. Formats are detected by file extension;
// plain text is the fallback.
package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Engine dispatches paths to importers.
type Engine struct {
	importers []Importer
	stdin     io.Reader
}

// NewEngine creates an engine with the JSON and plain text importers.
func NewEngine() *Engine {
	return &Engine{
		importers: []Importer{&JSONImporter{}, &PlainTextImporter{}},
		stdin:     os.Stdin,
	}
}

// WithStdin replaces the reader used for "-".
func (e *Engine) WithStdin(r io.Reader) *Engine {
	e.stdin = r
	return e
}

// Read reads one file, or stdin when path is "-".
func (e *Engine) Read(ctx context.Context, path string, opts Options) (*Document, error) {
	if path == Stdin {
		data, err := readLimited(e.stdin, opts.maxSize())
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		text, err := decodeText(data)
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return &Document{Text: text, Source: Stdin, Bytes: int64(len(data))}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > opts.maxSize() {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, ErrTooLarge, info.Size(), opts.maxSize())
	}
	return e.importerFor(path).Import(ctx, path, opts)
}

// ReadAll reads every path in order. Directories are expanded to their
// supported files in lexical order, descending only when opts.Recursive is set.
func (e *Engine) ReadAll(ctx context.Context, paths []string, opts Options) ([]*Document, error) {
	var docs []*Document
	for _, p := range paths {
		files, err := e.expand(p, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			doc, err := e.Read(ctx, f, opts)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (e *Engine) expand(path string, opts Options) ([]string, error) {
	if path == Stdin {
		return []string{path}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && (!opts.Recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || filepath.Ext(p) == "" {
			return nil
		}
		if e.supported(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}

func (e *Engine) supported(path string) bool {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return true
		}
	}
	return false
}

func (e *Engine) importerFor(path string) Importer {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return &PlainTextImporter{}
}

// Join concatenates documents with blank lines so no record spans two files.
func Join(docs []*Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
