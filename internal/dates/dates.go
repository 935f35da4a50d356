// Package dates finds and normalizes the day-month-year dates scribes write in
// ledger entries (ता. ०५-०३-०८, 12/11/1998, 5.3.76).
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/bahi/internal/devanagari"
)

// Pattern matches a date-shaped span in either digit script.
const Pattern = `[` + devanagari.Digit + `]{1,2}[-./][` + devanagari.Digit + `]{1,2}[-./][` + devanagari.Digit + `]{2,4}`

var (
	dateRE  = regexp.MustCompile(Pattern)
	junkRE  = regexp.MustCompile(`[^0-9./-]`)
	longRE  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	shortRE = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{2})$`)
)

// Parse normalizes a raw date string to a calendar date. Two-digit years up to
// now's two-digit year land in the 2000s, the rest in the 1900s. It reports
// false when the string is not date-shaped or names an impossible day.
func Parse(raw string, now time.Time) (time.Time, bool) {
	s := junkRE.ReplaceAllString(devanagari.NormalizeDigits(raw), "")
	s = strings.NewReplacer("/", "-", ".", "-").Replace(s)
	s = strings.Trim(s, "-")
	if s == "" {
		return time.Time{}, false
	}

	var day, month, year int
	if m := longRE.FindStringSubmatch(s); m != nil {
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
	} else if m := shortRE.FindStringSubmatch(s); m != nil {
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
		if year <= now.Year()%100 {
			year += 2000
		} else {
			year += 1900
		}
	} else {
		return time.Time{}, false
	}

	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date rolls 31-02 over into March; reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// FindAll returns every date-shaped span in text, in document order, with
// their byte offsets.
func FindAll(text string) []Span {
	locs := dateRE.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(locs))
	for _, loc := range locs {
		spans = append(spans, Span{Raw: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
	}
	return spans
}

// Last returns the raw text and parsed value of the final date-shaped span in
// text. A block may mention several dates; the last one is the entry date.
func Last(text string, now time.Time) (raw string, t time.Time, ok bool) {
	spans := FindAll(text)
	if len(spans) == 0 {
		return "", time.Time{}, false
	}
	raw = spans[len(spans)-1].Raw
	t, ok = Parse(raw, now)
	return raw, t, ok
}

// Span is one date-shaped match.
type Span struct {
	Raw        string
	Start, End int
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
