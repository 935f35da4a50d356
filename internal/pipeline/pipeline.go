// Package pipeline runs the whole extraction: segmentation, per-block field
// and name extraction on a bounded worker pool, then an ordered merge that
// expands every block into individual records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/bahi/internal/dates"
	"github.com/hurttlocker/bahi/internal/expand"
	"github.com/hurttlocker/bahi/internal/extract"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
	"github.com/hurttlocker/bahi/internal/segment"
)

// ErrEmptyInput is returned for empty or blank input text.
var ErrEmptyInput = errors.New("input text is empty")

// DefaultBlockTimeout bounds the time spent on a single block.
const DefaultBlockTimeout = 2 * time.Second

// Pipeline is safe for concurrent use; each Run is independent.
type Pipeline struct {
	lex       *lexicon.Lexicon
	segmenter *segment.Segmenter
	extractor *extract.Extractor
	logger    *slog.Logger
	workers   int
	timeout   time.Duration
	now       func() time.Time

	analyze func(string) extract.Analysis
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithWorkers caps how many blocks are analyzed at once. n <= 0 keeps the
// default of GOMAXPROCS.
//
// The cap covers blocks still within their time budget. A block that times
// out frees its worker while its analysis keeps running to completion in the
// background, so a run with many slow blocks can briefly use more than n
// goroutines. Each such analysis is linear in the block length and ends on
// its own.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBlockTimeout sets the per-block time budget. d <= 0 keeps the default.
func WithBlockTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock sets the clock used to resolve two-digit years.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pipeline over lex.
func New(lex *lexicon.Lexicon, opts ...Option) *Pipeline {
	p := &Pipeline{
		lex:       lex,
		segmenter: segment.New(lex),
		extractor: extract.NewExtractor(lex),
		logger:    slog.Default(),
		workers:   runtime.GOMAXPROCS(0),
		timeout:   DefaultBlockTimeout,
		now:       time.Now,
	}
	p.analyze = p.extractor.Analyze
	for _, o := range opts {
		o(p)
	}
	return p
}

// Lexicon returns the word lists the pipeline was built with.
func (p *Pipeline) Lexicon() *lexicon.Lexicon { return p.lex }

// BlockStatus reports how one block was processed.
type BlockStatus struct {
	Seq      int    `json:"seq"`
	Records  int    `json:"records"`
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the output of one run. Records are in block order.
type Result struct {
	Blocks   []ledger.Block            `json:"blocks"`
	Records  []ledger.IndividualRecord `json:"records"`
	Statuses []BlockStatus             `json:"statuses"`
}

// Degraded counts blocks that could not be fully processed.
func (r *Result) Degraded() int {
	n := 0
	for _, s := range r.Statuses {
		if s.Degraded {
			n++
		}
	}
	return n
}

type outcome struct {
	analysis extract.Analysis
	err      error
}

// Run extracts individual records from text. It fails only on blank input or
// when ctx ends before the run completes; a block that panics or exceeds its
// time budget is reported in Result.Statuses and still yields one record.
func (p *Pipeline) Run(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	start := time.Now()
	blocks := p.segmenter.Split(text)

	outcomes := make([]outcome, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, b := range blocks {
		g.Go(func() error {
			outcomes[i] = p.process(gctx, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("processing blocks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction cancelled: %w", err)
	}

	res := &Result{Blocks: blocks}
	counter := expand.NewCounter()
	now := p.now()
	for i, b := range blocks {
		o := outcomes[i]
		var recs []ledger.IndividualRecord
		status := BlockStatus{Seq: b.Seq}
		if o.err != nil {
			status.Degraded = true
			status.Reason = o.err.Error()
			p.logger.Warn("block degraded", "block", b.Seq, "reason", status.Reason)
			recs = []ledger.IndividualRecord{degradedRecord(b, counter, status.Reason)}
		} else {
			recs = expand.Expand(b, o.analysis, counter, p.blockDate(b, o.analysis, now))
		}
		status.Records = len(recs)
		res.Records = append(res.Records, recs...)
		res.Statuses = append(res.Statuses, status)
	}

	p.logger.Info("extraction complete",
		"blocks", len(blocks),
		"records", len(res.Records),
		"degraded", res.Degraded(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// Format reflows scanned text into one paragraph per record.
func (p *Pipeline) Format(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	return p.segmenter.Reflow(text), nil
}

// process analyzes one block under the per-block budget. Regular expressions
// cannot be interrupted, so on timeout the analysis goroutine is abandoned and
// its result discarded.
func (p *Pipeline) process(ctx context.Context, b ledger.Block) outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		done <- outcome{analysis: p.analyze(b.Text)}
	}()

	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		return outcome{err: fmt.Errorf("block %d: %w", b.Seq, ctx.Err())}
	}
}

func (p *Pipeline) blockDate(b ledger.Block, a extract.Analysis, now time.Time) time.Time {
	raw := a.Fields.Value(ledger.FieldDate)
	if raw == "" {
		return time.Time{}
	}
	t, ok := dates.Parse(raw, now)
	if !ok {
		p.logger.Debug("unparseable date", "block", b.Seq, "raw", raw)
		return time.Time{}
	}
	return t
}

func degradedRecord(b ledger.Block, counter *expand.Counter, reason string) ledger.IndividualRecord {
	fields := ledger.NewFieldSet(map[ledger.Field]string{
		ledger.FieldFlags: "processing aborted: " + reason,
	})
	pos := ledger.Position{Global: counter.Next(), Individual: 1}
	return ledger.NewRecord(b, fields, ledger.Person{}, pos, time.Time{})
}
