package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hurttlocker/bahi/internal/devanagari"
)

// flags erases everything the rules and the resolver claimed from a working
// copy of the block and returns what is left, minus function words, keywords,
// honorifics and fillers. Surviving tokens keep their original spelling.
func (e *Extractor) flags(block string, claims [][2]int, claimed []string) string {
	work := []byte(block)
	// Names are matched against the untouched block: rule spans such as a
	// caste may cover part of a multi-word name.
	if re := claimedPattern(claimed); re != nil {
		for _, s := range scanOverlapping(re, block, 1) {
			blank(work, s.start, s.end)
		}
	}
	for _, c := range claims {
		blank(work, c[0], c[1])
	}

	var kept []string
	for _, tok := range strings.Fields(string(work)) {
		if t, ok := e.flagToken(tok); ok {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// flagToken decides whether a leftover token belongs in the flags column.
func (e *Extractor) flagToken(tok string) (string, bool) {
	t := devanagari.TrimPunct(tok)
	if t == "" || isMarksOnly(t) {
		return "", false
	}
	if strings.IndexFunc(t, unicode.IsLetter) >= 0 {
		w := devanagari.TrimMarks(t)
		if w == "" || e.lex.IsNoise(w) {
			return "", false
		}
		return t, true
	}
	// Bullets and stray symbols carry nothing; leftover numbers do.
	if strings.IndexFunc(t, unicode.IsDigit) < 0 {
		return "", false
	}
	return t, true
}

// claimedPattern matches any claimed value as whole words.
func claimedPattern(claimed []string) *regexp.Regexp {
	var words []string
	for _, c := range claimed {
		if c = strings.TrimSpace(c); c != "" {
			words = append(words, c)
		}
	}
	if len(words) == 0 {
		return nil
	}
	re, err := regexp.Compile(devanagari.BoundaryBefore + `(` + devanagari.Alternation(words) + `)` + devanagari.BoundaryAfter)
	if err != nil {
		return nil
	}
	return re
}

func blank(b []byte, start, end int) {
	start = max(start, 0)
	end = min(end, len(b))
	for i := start; i < end; i++ {
		b[i] = ' '
	}
}

// isMarksOnly is true for tokens made only of abbreviation marks ("०", "..").
func isMarksOnly(s string) bool {
	return strings.Trim(s, devanagari.AbbrevMark) == ""
}
