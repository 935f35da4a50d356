// Package lexicon holds the versioned word lists that drive extraction:
// field keywords, honorifics, relation keywords, castes, rituals, stopwords and
// record markers. A default lexicon is embedded; registers with other scribal
// conventions can load their own YAML file.
package lexicon

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/bahi/internal/devanagari"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalid is returned when a lexicon fails validation.
var ErrInvalid = errors.New("invalid lexicon")

// Gender values used in relation entries.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Keyword groups understood by the field extractor.
const (
	KeyImageNo          = "image_no"
	KeyScribeName       = "scribe_name"
	KeyRegisterName     = "register_name"
	KeyFolioNo          = "folio_no"
	KeyDistrict         = "district"
	KeyTehsil           = "tehsil"
	KeyStation          = "station"
	KeyPostOffice       = "post_office"
	KeyCityVillage      = "city_village"
	KeyOriginPlace      = "origin_place"
	KeyOriginSuffix     = "origin_suffix"
	KeyContact          = "contact"
	KeyRitualPersonLink = "ritual_person_link"
)

// Relation is one kinship label with the keywords that introduce it.
type Relation struct {
	Label    string   `yaml:"label"`
	Gender   string   `yaml:"gender"`
	Keywords []string `yaml:"keywords"`
}

// Labels are the fixed output strings for relations and genders.
type Labels struct {
	Applicant       string `yaml:"applicant"`
	DefaultRelation string `yaml:"default_relation"`
	Deceased        string `yaml:"deceased"`
	Male            string `yaml:"male"`
	Female          string `yaml:"female"`
	Unknown         string `yaml:"unknown"`
}

// Lexicon is read-only after Load and safe to share between goroutines.
type Lexicon struct {
	Version          string              `yaml:"version"`
	Labels           Labels              `yaml:"labels"`
	Keywords         map[string][]string `yaml:"keywords"`
	RegisterNames    []string            `yaml:"register_names"`
	Honorifics       []string            `yaml:"honorifics"`
	MaleHonorifics   []string            `yaml:"male_honorifics"`
	FemaleHonorifics []string            `yaml:"female_honorifics"`
	MaleSuffixes     []string            `yaml:"male_suffixes"`
	FemaleSuffixes   []string            `yaml:"female_suffixes"`
	Surnames         []string            `yaml:"surnames"`
	Relations        []Relation          `yaml:"relations"`
	Embedded         []string            `yaml:"embedded_relations"`
	Castes           []string            `yaml:"castes"`
	Subcastes        []string            `yaml:"subcastes"`
	Rituals          []string            `yaml:"rituals"`
	RecordMarkers    []string            `yaml:"record_markers"`
	Stopwords        []string            `yaml:"stopwords"`
	Fillers          []string            `yaml:"fillers"`
	Reflow           struct {
		Starters []string `yaml:"starters"`
		Enders   []string `yaml:"enders"`
	} `yaml:"reflow"`

	digest   string
	surnames map[string]bool
	keyword  map[string]bool
	stop     map[string]bool
	noise    map[string]bool
}

// Default returns the embedded lexicon. It panics only if the embedded file is
// broken, which the package tests rule out.
func Default() *Lexicon {
	lex, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return lex
}

// Load reads a lexicon file. An empty path returns the embedded default.
func Load(path string) (*Lexicon, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse decodes, canonicalizes and validates a YAML lexicon.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	lex.canonicalize()
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	lex.index()
	sum := sha256.Sum256(data)
	lex.digest = hex.EncodeToString(sum[:])
	return &lex, nil
}

// Fingerprint identifies the word lists themselves: the version plus a digest
// of the source YAML. Two files sharing a version string but differing in
// content get different fingerprints.
func (l *Lexicon) Fingerprint() string {
	if l.digest == "" {
		return l.Version
	}
	return l.Version + "@" + l.digest[:16]
}

// Validate checks that the lists every stage depends on are present.
func (l *Lexicon) Validate() error {
	var problems []string
	if l.Version == "" {
		problems = append(problems, "version is required")
	}
	for name, v := range map[string]string{
		"labels.applicant":        l.Labels.Applicant,
		"labels.default_relation": l.Labels.DefaultRelation,
		"labels.deceased":         l.Labels.Deceased,
		"labels.male":             l.Labels.Male,
		"labels.female":           l.Labels.Female,
		"labels.unknown":          l.Labels.Unknown,
	} {
		if v == "" {
			problems = append(problems, name+" is required")
		}
	}
	if len(l.Relations) == 0 {
		problems = append(problems, "at least one relation is required")
	}
	applicant := false
	for i, r := range l.Relations {
		if r.Label == "" || len(r.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("relations[%d] needs a label and keywords", i))
		}
		if r.Gender != "" && r.Gender != GenderMale && r.Gender != GenderFemale {
			problems = append(problems, fmt.Sprintf("relations[%d] has unknown gender %q", i, r.Gender))
		}
		if r.Label == l.Labels.Applicant {
			applicant = true
		}
	}
	if !applicant && l.Labels.Applicant != "" {
		problems = append(problems, "no relation carries the applicant label "+l.Labels.Applicant)
	}
	if len(l.RecordMarkers) == 0 {
		problems = append(problems, "record_markers must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Applicant returns the relation entry for the applicant.
func (l *Lexicon) Applicant() Relation {
	for _, r := range l.Relations {
		if r.Label == l.Labels.Applicant {
			return r
		}
	}
	return Relation{Label: l.Labels.Applicant}
}

// RelationByLabel looks up a relation entry.
func (l *Lexicon) RelationByLabel(label string) (Relation, bool) {
	for _, r := range l.Relations {
		if r.Label == label {
			return r, true
		}
	}
	return Relation{}, false
}

// GenderLabel maps a relation gender to its output label.
func (l *Lexicon) GenderLabel(g string) string {
	switch g {
	case GenderMale:
		return l.Labels.Male
	case GenderFemale:
		return l.Labels.Female
	}
	return l.Labels.Unknown
}

// IsSurname reports whether w is a recognized family name.
func (l *Lexicon) IsSurname(w string) bool { return l.surnames[w] }

// IsKeyword reports whether a (mark-trimmed) token belongs to a field keyword,
// a relation keyword or a record marker.
func (l *Lexicon) IsKeyword(w string) bool { return l.keyword[w] }

// IsStop reports whether a (mark-trimmed) token can never be part of a name:
// keywords, stopwords, ritual words and castes that are not also surnames.
func (l *Lexicon) IsStop(w string) bool { return l.stop[w] }

// IsNoise reports whether a token is dropped from the flags column even though
// it carries no field value: stopwords, keywords, fillers, honorifics.
func (l *Lexicon) IsNoise(w string) bool { return l.noise[w] }

// AllRelationKeywords returns every relation keyword in lexicon order.
func (l *Lexicon) AllRelationKeywords() []string {
	var out []string
	for _, r := range l.Relations {
		out = append(out, r.Keywords...)
	}
	return out
}

func (l *Lexicon) canonicalize() {
	lists := []*[]string{
		&l.RegisterNames, &l.Honorifics, &l.MaleHonorifics, &l.FemaleHonorifics,
		&l.MaleSuffixes, &l.FemaleSuffixes, &l.Surnames, &l.Castes, &l.Subcastes,
		&l.Rituals, &l.RecordMarkers, &l.Stopwords, &l.Fillers,
		&l.Reflow.Starters, &l.Reflow.Enders, &l.Embedded,
	}
	for _, p := range lists {
		*p = canonicalList(*p)
	}
	for k, v := range l.Keywords {
		l.Keywords[k] = canonicalList(v)
	}
	for i := range l.Relations {
		l.Relations[i].Label = strings.TrimSpace(devanagari.Canonical(l.Relations[i].Label))
		l.Relations[i].Gender = strings.ToLower(strings.TrimSpace(l.Relations[i].Gender))
		l.Relations[i].Keywords = canonicalList(l.Relations[i].Keywords)
	}
	lb := &l.Labels
	for _, s := range []*string{&lb.Applicant, &lb.DefaultRelation, &lb.Deceased, &lb.Male, &lb.Female, &lb.Unknown} {
		*s = strings.TrimSpace(devanagari.Canonical(*s))
	}
	l.Version = strings.TrimSpace(l.Version)
}

func (l *Lexicon) index() {
	l.surnames = wordSet(l.Surnames)

	l.keyword = map[string]bool{}
	addWords(l.keyword, l.RecordMarkers)
	addWords(l.keyword, l.AllRelationKeywords())
	for k, words := range l.Keywords {
		if k == KeyRitualPersonLink {
			continue
		}
		addWords(l.keyword, words)
	}

	l.stop = map[string]bool{}
	for w := range l.keyword {
		l.stop[w] = true
	}
	addWords(l.stop, l.Stopwords)
	addWords(l.stop, l.Rituals)
	for _, c := range l.Castes {
		if !l.surnames[c] {
			addWords(l.stop, []string{c})
		}
	}

	l.noise = map[string]bool{}
	for w := range l.stop {
		l.noise[w] = true
	}
	addWords(l.noise, l.Keywords[KeyRitualPersonLink])
	addWords(l.noise, l.Fillers)
	addWords(l.noise, l.Honorifics)
}

func canonicalList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(devanagari.Canonical(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func wordSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// addWords splits phrases into words and indexes each mark-trimmed word.
func addWords(m map[string]bool, phrases []string) {
	for _, p := range phrases {
		for _, w := range strings.Fields(p) {
			if t := devanagari.TrimMarks(w); t != "" {
				m[t] = true
			}
			m[w] = true
		}
	}
}
