package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hurttlocker/bahi/internal/dates"
	"github.com/hurttlocker/bahi/internal/devanagari"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

// Last selects the final non-empty match of a rule instead of the nth.
const Last = -1

// Claim says which part of a rule's match the flags pass erases.
type Claim int

const (
	// ClaimMatch erases the whole match up to the end of the value.
	ClaimMatch Claim = iota
	// ClaimKeyword erases only the keyword in front of the value. Used when the
	// captured span runs past the value and the value itself is erased by word.
	ClaimKeyword
)

// Rule extracts one field. Rules are evaluated independently against the
// whole block; the first match in document order wins unless Occurrence says
// otherwise.
type Rule struct {
	Field   ledger.Field
	Pattern *regexp.Regexp
	// Group is the capture group holding the value. 0 takes the first group
	// that participated in the match.
	Group int
	// Occurrence picks the nth distinct cleaned value (0-based), or with Last
	// the value of the final match even when it repeats an earlier one.
	Occurrence int
	// Overlap lets a keyword inside one match's span start the next match.
	Overlap bool
	Claim   Claim
	Clean   func(string) string
}

// span is one located value.
type span struct {
	text       string
	start, end int // value
	matchStart int
}

// buildRules assembles the rule table from the lexicon. Order follows
// ledger.Fields.
func buildRules(lex *lexicon.Lexicon, res *Resolver) []Rule {
	kw := func(key string) string { return devanagari.Alternation(lex.Keywords[key]) }
	bb := devanagari.BoundaryBefore
	ba := devanagari.BoundaryAfter
	sep := devanagari.KeywordSep
	tok := devanagari.Token
	digits := `[` + devanagari.Digit + `]`
	number := `[.:ः\s]*(` + digits + `+)`
	place := `([^\s,।॥;:]+)`
	phrase := func(n int) string {
		return `(` + tok + `(?:\s+` + tok + `){0,` + strconv.Itoa(n-1) + `})`
	}

	cutBy := func(stop func(string) bool) func(string) string {
		return func(s string) string {
			tokens, _ := res.cut(strings.Fields(s), stop)
			return strings.Join(tokens, " ")
		}
	}
	placeValue := func(s string) string {
		s = cleanToken(s)
		if s == "" || lex.IsStop(devanagari.TrimMarks(s)) {
			return ""
		}
		return s
	}
	ritualPerson := devanagari.MustCompile(bb + devanagari.Alternation(lex.Rituals) +
		`(?:\s+` + kw(lexicon.KeyRitualPersonLink) + `)?\s+` + phrase(spanTokens))
	honoree := func(s string) string { return res.Clean(cutBy(lex.IsStop)(s)) }
	contact := devanagari.MustCompile(`(?:^|[^` + devanagari.Digit + `])([6-9६-९]` + digits + `{9})(?:$|[^` + devanagari.Digit + `])`)

	rules := []Rule{
		{Field: ledger.FieldImageNo, Pattern: devanagari.MustCompile(bb + kw(lexicon.KeyImageNo) + number), Group: 1, Clean: devanagari.NormalizeDigits},
		{Field: ledger.FieldScribeName, Pattern: devanagari.MustCompile(bb + kw(lexicon.KeyScribeName) + sep + phrase(3)), Group: 1, Claim: ClaimKeyword, Clean: cutBy(lex.IsKeyword)},
		{Field: ledger.FieldRegisterName, Pattern: devanagari.MustCompile(`^(` + devanagari.Alternation(lex.RegisterNames) + `)|` + bb + kw(lexicon.KeyRegisterName) + sep + phrase(3)), Claim: ClaimKeyword, Clean: cutBy(lex.IsKeyword)},
		{Field: ledger.FieldFolioNo, Pattern: devanagari.MustCompile(bb + kw(lexicon.KeyFolioNo) + number), Group: 1, Clean: devanagari.NormalizeDigits},
	}
	for _, loc := range []struct {
		field ledger.Field
		key   string
	}{
		{ledger.FieldDistrict, lexicon.KeyDistrict},
		{ledger.FieldTehsil, lexicon.KeyTehsil},
		{ledger.FieldStation, lexicon.KeyStation},
		{ledger.FieldPostOffice, lexicon.KeyPostOffice},
		{ledger.FieldCityVillage, lexicon.KeyCityVillage},
	} {
		rules = append(rules, Rule{Field: loc.field, Pattern: devanagari.MustCompile(bb + kw(loc.key) + sep + place), Group: 1, Clean: placeValue})
	}
	rules = append(rules,
		Rule{Field: ledger.FieldOriginPlace, Pattern: devanagari.MustCompile(bb + `(?:` + kw(lexicon.KeyOriginPlace) + `[:ः\s]*(` + tok + `)|(` + tok + `)\s*` + kw(lexicon.KeyOriginSuffix) + `)` + ba), Clean: placeValue},
		Rule{Field: ledger.FieldCaste, Pattern: devanagari.MustCompile(bb + `(` + devanagari.Alternation(lex.Castes) + `)` + ba), Group: 1, Clean: collapse},
		Rule{Field: ledger.FieldSubcaste, Pattern: devanagari.MustCompile(bb + `(` + devanagari.Alternation(lex.Subcastes) + `)` + ba), Group: 1, Clean: collapse},
		Rule{Field: ledger.FieldRitualName, Pattern: devanagari.MustCompile(bb + `(` + devanagari.Alternation(lex.Rituals) + `)` + ba), Group: 1, Clean: collapse},
		Rule{Field: ledger.FieldRitualPerson1, Pattern: ritualPerson, Group: 1, Overlap: true, Claim: ClaimKeyword, Clean: honoree},
		Rule{Field: ledger.FieldRitualPerson2, Pattern: ritualPerson, Group: 1, Occurrence: 1, Overlap: true, Claim: ClaimKeyword, Clean: honoree},
		Rule{Field: ledger.FieldContact1, Pattern: contact, Group: 1, Overlap: true, Clean: devanagari.NormalizeDigits},
		Rule{Field: ledger.FieldContact2, Pattern: contact, Group: 1, Occurrence: 1, Overlap: true, Clean: devanagari.NormalizeDigits},
		Rule{Field: ledger.FieldDate, Pattern: regexp.MustCompile(dates.Pattern), Occurrence: Last, Clean: devanagari.NormalizeDigits},
	)
	return rules
}

// find returns every located value of the rule in document order.
func (r Rule) find(text string) []span {
	if r.Overlap {
		return scanOverlapping(r.Pattern, text, r.Group)
	}
	var out []span
	for _, loc := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
		if s, e := groupSpan(loc, r.Group); s >= 0 {
			out = append(out, span{text: text[s:e], start: s, end: e, matchStart: loc[0]})
		}
	}
	return out
}

func (r Rule) clean(v string) string {
	if r.Clean != nil {
		v = r.Clean(v)
	}
	return strings.TrimSpace(v)
}

// value applies the rule to text and returns the selected cleaned value.
func (r Rule) value(text string) (string, []span) {
	spans := r.find(text)
	if r.Occurrence == Last {
		for i := len(spans) - 1; i >= 0; i-- {
			if v := r.clean(spans[i].text); v != "" {
				return v, spans
			}
		}
		return "", spans
	}
	var distinct []string
	seen := map[string]bool{}
	for _, s := range spans {
		v := r.clean(s.text)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		distinct = append(distinct, v)
	}
	switch {
	case len(distinct) == 0:
		return "", spans
	case r.Occurrence < len(distinct):
		return distinct[r.Occurrence], spans
	}
	return "", spans
}

// scanOverlapping finds matches of re, resuming each search after the first
// word of the previous value rather than after the whole match, so a greedy
// span cannot swallow the keyword that starts the next match.
func scanOverlapping(re *regexp.Regexp, text string, group int) []span {
	var out []span
	for pos := 0; pos < len(text); {
		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		s, e := groupSpan(loc, group)
		if s < 0 {
			s, e = loc[0], loc[1]
		} else {
			out = append(out, span{text: text[pos+s : pos+e], start: pos + s, end: pos + e, matchStart: pos + loc[0]})
		}

		next := pos + e
		if i := strings.IndexFunc(text[pos+s:pos+e], unicode.IsSpace); i > 0 {
			next = pos + s + i
		}
		if next <= pos {
			_, size := utf8.DecodeRuneInString(text[pos:])
			next = pos + size
		}
		pos = next
	}
	return out
}

// groupSpan returns the offsets of group g, or of the first participating
// group when g is 0. It returns -1 when nothing matched.
func groupSpan(loc []int, g int) (int, int) {
	if g > 0 {
		if 2*g+1 < len(loc) {
			return loc[2*g], loc[2*g+1]
		}
		return -1, -1
	}
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 {
			return loc[i], loc[i+1]
		}
	}
	return loc[0], loc[1]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanToken trims punctuation, and abbreviation marks too when the token is
// a word rather than a number.
func cleanToken(s string) string {
	s = devanagari.TrimPunct(s)
	if strings.IndexFunc(s, devanagari.IsLetter) >= 0 {
		return devanagari.TrimMarks(s)
	}
	return s
}
