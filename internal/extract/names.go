package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/bahi/internal/devanagari"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

// MaxNameTokens caps how many words one personal name may span. Anything
// longer is a run of several names or a name swallowing the following text.
const MaxNameTokens = 4

// spanTokens is how far past a keyword the anchored patterns look before the
// span is cut at the first stopword.
const spanTokens = 6

// Candidate is one personal name found in a block.
type Candidate struct {
	Raw       string `json:"raw"`
	Cleaned   string `json:"cleaned"`
	Given     string `json:"given_name"`
	Surname   string `json:"surname"`
	Relation  string `json:"relation"`
	Gender    string `json:"gender"`
	Applicant bool   `json:"applicant,omitempty"`
	Anchored  bool   `json:"anchored,omitempty"`
}

// Resolver discovers personal names in a block and resolves each one's
// relation, gender and given/surname split.
type Resolver struct {
	lex        *lexicon.Lexicon
	tokenRE    *regexp.Regexp
	relations  []*regexp.Regexp // one per lex.Relations entry, same order
	honorifics []string         // longest first
	maleHon    map[string]bool
	femaleHon  map[string]bool
}

// NewResolver compiles the relation-anchored patterns from the lexicon.
func NewResolver(lex *lexicon.Lexicon) *Resolver {
	r := &Resolver{
		lex:       lex,
		tokenRE:   devanagari.MustCompile(devanagari.Token),
		maleHon:   set(lex.MaleHonorifics),
		femaleHon: set(lex.FemaleHonorifics),
	}
	for _, rel := range lex.Relations {
		r.relations = append(r.relations, devanagari.MustCompile(anchoredPattern(rel.Keywords)))
	}
	r.honorifics = append([]string(nil), lex.Honorifics...)
	sort.SliceStable(r.honorifics, func(i, j int) bool {
		return utf8.RuneCountInString(r.honorifics[i]) > utf8.RuneCountInString(r.honorifics[j])
	})
	return r
}

// anchoredPattern matches a keyword followed by a name-shaped span. Group 1 is
// the span; the caller cuts it at the first stopword.
func anchoredPattern(keywords []string) string {
	return devanagari.BoundaryBefore + devanagari.Alternation(keywords) + devanagari.KeywordSep +
		`(` + devanagari.Token + `(?:\s+` + devanagari.Token + `){0,` + strconv.Itoa(spanTokens-1) + `})`
}

// anchor is a name found right after a relation keyword.
type anchor struct {
	relation int
	raw      string
	tokens   []string
}

// Resolve returns every candidate in the block, longest cleaned name first.
// exclude lists words (place names, usually) that must never start or extend
// a generic name.
func (r *Resolver) Resolve(block string, exclude ...string) []Candidate {
	anchors := r.anchors(block)
	found := r.discover(block, anchors, exclude)
	for i := range found {
		c := &found[i]
		c.Relation = r.relationFromAnchors(anchors, c.Cleaned)
		c.Applicant = c.Relation == r.lex.Labels.Applicant
		c.Given, c.Surname = r.SplitName(c.Cleaned)
		c.Gender = r.Gender(*c)
	}
	return found
}

// Discover returns raw and cleaned names only, without relations.
func (r *Resolver) Discover(block string, exclude ...string) []Candidate {
	return r.discover(block, r.anchors(block), exclude)
}

func (r *Resolver) discover(block string, anchors []anchor, exclude []string) []Candidate {
	var out []Candidate
	seen := map[string]bool{}
	add := func(c Candidate) {
		if c.Cleaned == "" || seen[c.Cleaned] {
			return
		}
		seen[c.Cleaned] = true
		out = append(out, c)
	}

	for _, a := range anchors {
		add(Candidate{Raw: a.raw, Cleaned: strings.Join(a.tokens, " "), Anchored: true})
	}
	for _, c := range r.generic(block, exclude) {
		add(c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i].Cleaned) > utf8.RuneCountInString(out[j].Cleaned)
	})
	return out
}

// anchors scans the block once per relation, in lexicon order.
func (r *Resolver) anchors(block string) []anchor {
	var out []anchor
	for i, re := range r.relations {
		for _, span := range scanOverlapping(re, block, 1) {
			fields := strings.Fields(span.text)
			tokens, n := r.cut(fields, r.lex.IsStop)
			if len(tokens) == 0 {
				continue
			}
			out = append(out, anchor{relation: i, raw: strings.Join(fields[:n], " "), tokens: tokens})
		}
	}
	return out
}

// generic finds runs of consecutive name-shaped tokens that no keyword
// introduces. Runs break at stopwords, excluded words, punctuation and digits;
// an honorific starts a new run.
func (r *Resolver) generic(block string, exclude []string) []Candidate {
	excluded := map[string]bool{}
	for _, e := range exclude {
		for _, w := range strings.Fields(e) {
			excluded[devanagari.TrimMarks(w)] = true
		}
	}

	var out []Candidate
	var run []string
	flush := func() {
		if len(run) > 0 {
			out = append(out, r.chunk(run)...)
		}
		run = nil
	}

	prevEnd := 0
	for _, loc := range r.tokenRE.FindAllStringIndex(block, -1) {
		tok := block[loc[0]:loc[1]]
		if strings.TrimSpace(block[prevEnd:loc[0]]) != "" {
			flush()
		}
		prevEnd = loc[1]

		w := devanagari.TrimMarks(tok)
		switch {
		case w == "" || r.lex.IsStop(w) || excluded[w]:
			flush()
			continue
		case r.isLeadHonorific(tok):
			flush()
		}
		run = append(run, tok)
	}
	flush()
	return out
}

// chunk splits one run into names of at most MaxNameTokens words. Single-word
// names are rejected: without a keyword they are indistinguishable from
// ordinary words.
func (r *Resolver) chunk(run []string) []Candidate {
	cleaned := strings.Fields(r.Clean(strings.Join(run, " ")))
	var out []Candidate
	for start := 0; start < len(cleaned); start += MaxNameTokens {
		end := min(start+MaxNameTokens, len(cleaned))
		part := cleaned[start:end]
		if len(part) < 2 {
			continue
		}
		raw := strings.Join(part, " ")
		if start == 0 {
			raw = strings.Join(run, " ")
		}
		out = append(out, Candidate{Raw: raw, Cleaned: strings.Join(part, " ")})
	}
	return out
}

// cut strips leading honorifics from a span and keeps tokens until the first
// one stop reports true, another honorific, or MaxNameTokens. n is how many of
// the input tokens the name used, honorifics included.
func (r *Resolver) cut(tokens []string, stop func(string) bool) (out []string, n int) {
	for i, tok := range tokens {
		w := devanagari.TrimMarks(tok)
		if len(out) == 0 {
			w = r.stripHonorifics(w)
			if w == "" {
				continue
			}
		} else if r.isLeadHonorific(tok) {
			break
		}
		if stop(w) || len(out) == MaxNameTokens {
			break
		}
		out = append(out, w)
		n = i + 1
	}
	return out, n
}

// Clean removes honorifics and abbreviation marks from a name and collapses
// whitespace. Clean(Clean(s)) == Clean(s).
func (r *Resolver) Clean(name string) string {
	var tokens []string
	for _, f := range strings.Fields(devanagari.Canonical(name)) {
		if w := devanagari.TrimMarks(f); w != "" {
			tokens = append(tokens, w)
		}
	}
	for len(tokens) > 0 {
		w := r.stripHonorifics(tokens[0])
		if w == tokens[0] {
			break
		}
		if w == "" {
			tokens = tokens[1:]
		} else {
			tokens[0] = w
		}
	}
	return strings.Join(tokens, " ")
}

// stripHonorifics removes honorifics from the front of one token: "स्व" and
// "स्व०" vanish, "स्व०श्यामलाल" becomes "श्यामलाल". A token that merely starts
// with the same letters ("श्रीनाथ") is left alone.
func (r *Resolver) stripHonorifics(tok string) string {
	for tok != "" {
		h, rest := r.leadingHonorific(tok)
		if h == "" {
			break
		}
		tok = rest
	}
	return tok
}

// leadingHonorific returns the honorific tok starts with and what follows it.
// The honorific must be the whole token or be closed by an abbreviation mark.
func (r *Resolver) leadingHonorific(tok string) (h, rest string) {
	for _, h := range r.honorifics {
		if tok == h {
			return h, ""
		}
		if !strings.HasPrefix(tok, h) {
			continue
		}
		after := tok[len(h):]
		if trimmed := strings.TrimLeft(after, devanagari.AbbrevMark); trimmed != after {
			return h, devanagari.TrimMarks(trimmed)
		}
	}
	return "", tok
}

// isLeadHonorific reports whether tok opens a new name. Honorifics that double
// as surnames (कुमार) do not, so "राज कुमार" stays one name.
func (r *Resolver) isLeadHonorific(tok string) bool {
	w := devanagari.TrimMarks(tok)
	if r.lex.IsSurname(w) {
		return false
	}
	return r.stripHonorifics(w) != w
}

// honorificOf returns the honorific written in front of a raw name, if any.
func (r *Resolver) honorificOf(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	h, _ := r.leadingHonorific(devanagari.TrimMarks(fields[0]))
	return h
}

// Relation returns the relation label of a cleaned name within the block.
func (r *Resolver) Relation(block, cleaned string) string {
	return r.relationFromAnchors(r.anchors(block), cleaned)
}

// relationFromAnchors picks the first relation (in lexicon order) whose keyword
// directly precedes the name, then falls back to a relation keyword fused into
// the name, then to the default label.
func (r *Resolver) relationFromAnchors(anchors []anchor, cleaned string) string {
	name := strings.Fields(cleaned)
	if len(name) == 0 {
		return ""
	}
	best := -1
	for _, a := range anchors {
		if hasPrefix(a.tokens, name) && (best < 0 || a.relation < best) {
			best = a.relation
		}
	}
	if best >= 0 {
		return r.lex.Relations[best].Label
	}
	for _, label := range r.lex.Embedded {
		rel, ok := r.lex.RelationByLabel(label)
		if !ok {
			continue
		}
		for _, kw := range rel.Keywords {
			if strings.Contains(cleaned, kw) {
				return rel.Label
			}
		}
	}
	return r.lex.Labels.DefaultRelation
}

// SplitName splits a cleaned name into given name and surname. A single word is
// a surname only when the lexicon knows it as one; otherwise it is the given
// name and the surname stays empty.
func (r *Resolver) SplitName(cleaned string) (given, surname string) {
	tokens := strings.Fields(cleaned)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		if r.lex.IsSurname(tokens[0]) {
			return tokens[0], tokens[0]
		}
		return tokens[0], ""
	}
	return tokens[0], tokens[len(tokens)-1]
}

// Gender decides from the relation keyword first, then the honorific, then the
// name's last word.
func (r *Resolver) Gender(c Candidate) string {
	if rel, ok := r.lex.RelationByLabel(c.Relation); ok && rel.Gender != "" {
		return r.lex.GenderLabel(rel.Gender)
	}
	if h := r.honorificOf(c.Raw); h != "" {
		switch {
		case r.femaleHon[h]:
			return r.lex.Labels.Female
		case r.maleHon[h]:
			return r.lex.Labels.Male
		}
	}
	tokens := strings.Fields(c.Cleaned)
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		for _, s := range r.lex.FemaleSuffixes {
			if strings.HasSuffix(last, s) {
				return r.lex.Labels.Female
			}
		}
		for _, s := range r.lex.MaleSuffixes {
			if strings.HasSuffix(last, s) {
				return r.lex.Labels.Male
			}
		}
	}
	return r.lex.Labels.Unknown
}

// Honoree builds the candidate for a person a ritual was performed for.
func (r *Resolver) Honoree(name string) Candidate {
	cleaned := r.Clean(name)
	c := Candidate{Raw: name, Cleaned: cleaned, Relation: r.lex.Labels.Deceased}
	c.Given, c.Surname = r.SplitName(cleaned)
	c.Gender = r.Gender(c)
	return c
}

func hasPrefix(tokens, prefix []string) bool {
	if len(prefix) > len(tokens) {
		return false
	}
	for i := range prefix {
		if tokens[i] != prefix[i] {
			return false
		}
	}
	return true
}

func set(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
