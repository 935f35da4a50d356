// Package segment splits raw ledger text into record blocks and reflows
// scanned text into one paragraph per record.
package segment

import (
	"regexp"
	"strings"

	"github.com/hurttlocker/bahi/internal/dates"
	"github.com/hurttlocker/bahi/internal/devanagari"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

const danda = "।"

type state int

const (
	stateEmpty state = iota
	stateAccumulating
)

// Segmenter groups lines into blocks. It holds only compiled patterns and is
// safe for concurrent use.
type Segmenter struct {
	marker    *regexp.Regexp
	date      *regexp.Regexp
	applicant *regexp.Regexp

	starters []string
	ender    *regexp.Regexp
}

// New compiles the record triggers and reflow patterns from lex.
func New(lex *lexicon.Lexicon) *Segmenter {
	d := `[` + devanagari.Digit + `]`
	enders := []string{
		dates.Pattern,
		d + `{10}`,
		d + `{4,5}[-–]` + d + `{4,5}`,
		`वासी\S*`,
		devanagari.Alternation(lex.Reflow.Enders),
	}
	return &Segmenter{
		marker: devanagari.MustCompile(`^` + devanagari.Alternation(lex.RecordMarkers) + `(?:$|[^` + devanagari.Letter + `])`),
		date:   regexp.MustCompile(dates.Pattern),
		applicant: devanagari.MustCompile(devanagari.BoundaryBefore + devanagari.Alternation(lex.Applicant().Keywords) +
			devanagari.KeywordSep + devanagari.Token),
		starters: lex.Reflow.Starters,
		ender:    devanagari.MustCompile(`(?:` + strings.Join(enders, `|`) + `)$`),
	}
}

// IsTrigger reports whether line opens a new record: it starts with a record
// marker, or mentions a date or an applicant.
func (s *Segmenter) IsTrigger(line string) bool {
	line = devanagari.Canonical(strings.TrimSpace(line))
	return s.marker.MatchString(line) || s.date.MatchString(line) || s.applicant.MatchString(line)
}

// Split groups the lines of text into blocks. A trigger line starts a new
// block and a blank line ends the current one. Lines within a block are
// joined by single spaces. Leading blank lines are ignored.
func (s *Segmenter) Split(text string) []ledger.Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		blocks []ledger.Block
		lines  []string
		st     = stateEmpty
	)
	flush := func() {
		blocks = append(blocks, ledger.Block{Seq: len(blocks) + 1, Text: strings.Join(lines, " ")})
		lines = lines[:0]
		st = stateEmpty
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		switch {
		case line == "":
			if st == stateAccumulating {
				flush()
			}
		case st == stateAccumulating && s.IsTrigger(line):
			flush()
			lines = append(lines, line)
			st = stateAccumulating
		default:
			lines = append(lines, line)
			st = stateAccumulating
		}
	}
	if st == stateAccumulating {
		flush()
	}
	return blocks
}

// Reflow rejoins text broken by scanning into one paragraph per record. A word
// starting with a record prefix opens a new paragraph once the previous one has
// reached a record end (a date, a phone number, a closing ritual phrase). Every
// paragraph ends with a danda and paragraphs are separated by a blank line.
func (s *Segmenter) Reflow(raw string) string {
	words := strings.Fields(devanagari.Canonical(raw))

	var (
		paras []string
		cur   []string
		ended = true
	)
	for _, w := range words {
		if ended && s.isStarter(w) {
			if len(cur) > 0 {
				paras = append(paras, finalize(cur))
				cur = cur[:0]
			}
			ended = false
		}
		cur = append(cur, w)
		if s.ender.MatchString(strings.Join(cur, " ")) {
			ended = true
		}
	}
	if len(cur) > 0 {
		paras = append(paras, finalize(cur))
	}
	return strings.Join(paras, "\n\n")
}

func (s *Segmenter) isStarter(word string) bool {
	for _, p := range s.starters {
		if strings.HasPrefix(word, p) {
			return true
		}
	}
	return false
}

func finalize(words []string) string {
	p := strings.Join(words, " ")
	if !strings.HasSuffix(p, danda) {
		p += danda
	}
	return p
}
