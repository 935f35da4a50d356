// Package extract turns one ledger block into structured data: the shared
// fields (places, caste, ritual, contacts, register metadata, date), the
// personal names with their relations, and a residual flags column holding
// whatever the rules could not place.
//
// Extraction is rule-based. Every word list comes from the lexicon, so the
// same code serves registers written with different scribal conventions.
package extract

import (
	"github.com/hurttlocker/bahi/internal/devanagari"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

// Extractor applies the field rules and the name resolver to a block. It is
// safe for concurrent use.
type Extractor struct {
	lex      *lexicon.Lexicon
	resolver *Resolver
	rules    []Rule
}

// Analysis is everything extracted from one block.
type Analysis struct {
	Fields     ledger.FieldSet
	Candidates []Candidate
	Honorees   []Candidate
}

// NewExtractor compiles the rule table for lex.
func NewExtractor(lex *lexicon.Lexicon) *Extractor {
	res := NewResolver(lex)
	return &Extractor{
		lex:      lex,
		resolver: res,
		rules:    buildRules(lex, res),
	}
}

// Rules returns a copy of the rule table in evaluation order.
func (e *Extractor) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Resolver returns the name resolver the extractor uses.
func (e *Extractor) Resolver() *Resolver { return e.resolver }

// Extract returns the shared fields of a block, flags included.
func (e *Extractor) Extract(block string) ledger.FieldSet {
	return e.Analyze(block).Fields
}

// Analyze runs every rule, resolves names and computes the flags column.
func (e *Extractor) Analyze(block string) Analysis {
	block = devanagari.Canonical(block)

	values := map[ledger.Field]string{}
	var claims [][2]int
	for _, r := range e.rules {
		v, spans := r.value(block)
		if v != "" {
			values[r.Field] = v
		}
		for _, s := range spans {
			switch r.Claim {
			case ClaimKeyword:
				claims = append(claims, [2]int{s.matchStart, s.start})
			default:
				claims = append(claims, [2]int{s.matchStart, s.end})
			}
		}
	}

	var places []string
	for _, f := range ledger.LocationFields {
		if v := values[f]; v != "" {
			places = append(places, v)
		}
	}
	candidates := e.resolver.Resolve(block, places...)

	var honorees []Candidate
	for _, f := range []ledger.Field{ledger.FieldRitualPerson1, ledger.FieldRitualPerson2} {
		if v := values[f]; v != "" {
			honorees = append(honorees, e.resolver.Honoree(v))
		}
	}

	claimed := make([]string, 0, len(values)+2*len(candidates))
	for f, v := range values {
		if f != ledger.FieldFlags {
			claimed = append(claimed, v)
		}
	}
	for _, c := range candidates {
		claimed = append(claimed, c.Raw, c.Cleaned)
	}
	if flags := e.flags(block, claims, claimed); flags != "" {
		values[ledger.FieldFlags] = flags
	}

	return Analysis{
		Fields:     ledger.NewFieldSet(values),
		Candidates: candidates,
		Honorees:   honorees,
	}
}
