package ingest

import (
	"context"
	"errors"
)

// Document is one ledger source read into memory.
type Document struct {
	Text   string // decoded UTF-8 text; records separated the way the source had them
	Source string // absolute path, or "-" for stdin
	Bytes  int64  // size before decoding
}

// Importer handles a specific file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import reads the file into a Document.
	Import(ctx context.Context, path string, opts Options) (*Document, error)
}

// Options configures a read.
type Options struct {
	MaxFileSize int64 // bytes, default 10MB
	Recursive   bool  // descend into subdirectories
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// ErrTooLarge is returned for sources over Options.MaxFileSize.
var ErrTooLarge = errors.New("ledger source too large")

func (o Options) maxSize() int64 {
	if o.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return o.MaxFileSize
}
