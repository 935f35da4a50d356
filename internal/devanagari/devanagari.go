// Package devanagari holds the script-level helpers shared by every stage of the
// ledger pipeline: digit normalization, canonical Unicode form, and the regex
// fragments describing Devanagari word tokens.
//
// All functions are pure and safe for concurrent use.
package devanagari

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Regex character-class bodies. They are meant to be wrapped in [...] by callers.
const (
	// Letter covers Devanagari letters, vowel signs and marks. Danda (U+0964/5),
	// the digits (U+0966-096F) and the abbreviation sign (U+0970) are excluded so
	// they act as token separators.
	Letter = `\x{0900}-\x{0963}\x{0971}-\x{097F}`

	// AbbrevMark lists what scribes write after a shortened word (स्व०, प्रा., बा॰).
	// The Devanagari zero doubles as an abbreviation mark in most registers.
	AbbrevMark = `०0॰.`

	// Digit matches Latin and Devanagari digits.
	Digit = `0-9०-९`
)

// Token matches one Devanagari word, optionally carrying abbreviation marks
// (स्व०, स्व०श्यामलाल, ता.).
const Token = `[` + Letter + `]+(?:[` + AbbrevMark + `][` + Letter + `]+)*[` + AbbrevMark + `]?`

// BoundaryBefore and BoundaryAfter stand in for \b, which RE2 only defines for ASCII.
const (
	BoundaryBefore = `(?:^|[^` + Letter + `])`
	BoundaryAfter  = `(?:$|[^` + Letter + `])`
)

// KeywordSep is what may follow a register keyword before its value: an
// abbreviation mark with optional spaces, or at least one space.
const KeywordSep = `(?:[` + AbbrevMark + `।:ः]\s*|\s+)`

// Never is a pattern that matches nothing, used for empty word lists.
const Never = `[^\x00-\x{10FFFF}]`

const (
	zero = '०'
	nine = '९'
)

var digitMapper = runes.Map(func(r rune) rune {
	if r >= zero && r <= nine {
		return '0' + (r - zero)
	}
	return r
})

// NormalizeDigits replaces every Devanagari digit with its Latin equivalent.
// Strings without Devanagari digits are returned unchanged.
func NormalizeDigits(s string) string {
	if !HasDigit(s) {
		return s
	}
	out, _, err := transform.String(digitMapper, s)
	if err != nil {
		return s
	}
	return out
}

// HasDigit reports whether s contains a Devanagari digit.
func HasDigit(s string) bool {
	for _, r := range s {
		if r >= zero && r <= nine {
			return true
		}
	}
	return false
}

// Canonical returns s in Unicode NFC. Nukta letters typed as base+nukta and as
// precomposed code points end up identical, so patterns match either spelling.
func Canonical(s string) string {
	return norm.NFC.String(s)
}

// MustCompile compiles a pattern after bringing its literals to canonical form.
func MustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(Canonical(pattern))
}

// Phrase turns a space-separated phrase into a pattern tolerant of missing or
// repeated spaces between its words ("अस्ती लाये" matches "अस्तीलाये").
func Phrase(p string) string {
	words := strings.Fields(Canonical(p))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s*`)
}

// Alternation builds a non-capturing group matching any of the phrases, longest
// first so that leftmost-first matching prefers the most specific spelling.
func Alternation(phrases []string) string {
	uniq := make([]string, 0, len(phrases))
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(Canonical(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		uniq = append(uniq, p)
	}
	if len(uniq) == 0 {
		return Never
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		return utf8.RuneCountInString(uniq[i]) > utf8.RuneCountInString(uniq[j])
	})
	parts := make([]string, len(uniq))
	for i, p := range uniq {
		parts[i] = Phrase(p)
	}
	return `(?:` + strings.Join(parts, `|`) + `)`
}

const punct = "।॥,;:-–—\"'()[]{}!?"

// TrimMarks strips abbreviation marks and punctuation from both ends of a word
// token. Only use it on words: it would also eat zeros off a number.
func TrimMarks(tok string) string {
	return strings.Trim(tok, "०0॰."+punct)
}

// TrimPunct strips punctuation (but not digits or marks) from both ends of s.
func TrimPunct(s string) string {
	return strings.Trim(s, "."+punct)
}

// IsLetter reports whether r is a Devanagari letter or mark as defined by Letter.
func IsLetter(r rune) bool {
	return (r >= 0x0900 && r <= 0x0963) || (r >= 0x0971 && r <= 0x097F)
}

// IsWord reports whether s is non-empty and made only of Devanagari letters.
func IsWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsLetter(r) {
			return false
		}
	}
	return true
}
