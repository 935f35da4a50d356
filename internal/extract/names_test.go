package extract

import (
	"testing"

	"github.com/hurttlocker/bahi/internal/lexicon"
)

const scenario = "प्रा० रामलाल पिता स्व० श्यामलाल जिला बोकारो अस्ती लाये माता सुनीता देवी ता. ०५-०३-०८"

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(lexicon.Default())
}

func findCandidate(t *testing.T, cands []Candidate, cleaned string) Candidate {
	t.Helper()
	for _, c := range cands {
		if c.Cleaned == cleaned {
			return c
		}
	}
	t.Fatalf("no candidate %q in %+v", cleaned, cands)
	return Candidate{}
}

func TestResolve_Scenario(t *testing.T) {
	r := newResolver(t)
	cands := r.Resolve(scenario, "बोकारो")
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(cands), cands)
	}

	applicant := findCandidate(t, cands, "रामलाल")
	if applicant.Relation != "प्रार्थी" || !applicant.Applicant {
		t.Errorf("applicant = %+v", applicant)
	}
	if applicant.Given != "रामलाल" || applicant.Surname != "" {
		t.Errorf("applicant split = %q / %q", applicant.Given, applicant.Surname)
	}
	if applicant.Gender != "पुरुष" {
		t.Errorf("applicant gender = %q, want पुरुष (suffix लाल)", applicant.Gender)
	}

	father := findCandidate(t, cands, "श्यामलाल")
	if father.Relation != "पिता" || father.Gender != "पुरुष" {
		t.Errorf("father = %+v", father)
	}
	if father.Raw != "स्व० श्यामलाल" {
		t.Errorf("father raw = %q", father.Raw)
	}

	mother := findCandidate(t, cands, "सुनीता देवी")
	if mother.Relation != "माता" || mother.Gender != "महिला" || mother.Surname != "देवी" {
		t.Errorf("mother = %+v", mother)
	}

	if cands[0].Cleaned != "सुनीता देवी" {
		t.Errorf("longest name should come first, got %q", cands[0].Cleaned)
	}
}

func TestResolve_AdjacentAnchors(t *testing.T) {
	r := newResolver(t)
	cands := r.Resolve("पिता रामलाल माता सीता देवी")
	if got := findCandidate(t, cands, "रामलाल").Relation; got != "पिता" {
		t.Errorf("रामलाल relation = %q", got)
	}
	if got := findCandidate(t, cands, "सीता देवी").Relation; got != "माता" {
		t.Errorf("सीता देवी relation = %q", got)
	}
}

func TestResolve_HonorificStartsNewName(t *testing.T) {
	r := newResolver(t)
	cands := r.Resolve("पिता रामलाल श्रीमती कमला देवी")
	if got := findCandidate(t, cands, "रामलाल").Relation; got != "पिता" {
		t.Errorf("रामलाल relation = %q", got)
	}
	wife := findCandidate(t, cands, "कमला देवी")
	if wife.Relation != "पत्नी/महिला" || wife.Gender != "महिला" {
		t.Errorf("wife = %+v", wife)
	}
}

func TestDiscover_Generic(t *testing.T) {
	r := newResolver(t)
	cands := r.Discover("रमेश चन्द्र शर्मा, गोपाल")
	if len(cands) != 1 || cands[0].Cleaned != "रमेश चन्द्र शर्मा" {
		t.Fatalf("Discover = %+v", cands)
	}
	if cands[0].Anchored {
		t.Error("generic match must not be marked anchored")
	}
}

func TestDiscover_LongRunIsChunked(t *testing.T) {
	r := newResolver(t)
	cands := r.Discover("राम श्याम मोहन सोहन गोपाल कृष्ण")
	if len(cands) != 2 {
		t.Fatalf("Discover = %+v", cands)
	}
	findCandidate(t, cands, "राम श्याम मोहन सोहन")
	findCandidate(t, cands, "गोपाल कृष्ण")
}

func TestDiscover_ExcludedWordsBreakRuns(t *testing.T) {
	r := newResolver(t)
	cands := r.Discover("रामपुर निवासी", "रामपुर")
	if len(cands) != 0 {
		t.Fatalf("excluded place must not join a name: %+v", cands)
	}
}

func TestClean(t *testing.T) {
	r := newResolver(t)
	tests := []struct {
		in   string
		want string
	}{
		{"स्व० श्यामलाल", "श्यामलाल"},
		{"स्व०श्यामलाल", "श्यामलाल"},
		{"श्रीमती सुनीता देवी", "सुनीता देवी"},
		{"श्री श्री रामनाथ", "रामनाथ"},
		{"(श्री) राम", "राम"},
		{"श्रीनाथ मिश्र", "श्रीनाथ मिश्र"},
		{"  राम   लाल ।", "राम लाल"},
		{"स्वर्गीय", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := r.Clean(tt.in)
			if got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := r.Clean(got); again != got {
				t.Errorf("Clean not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	r := newResolver(t)
	tests := []struct {
		name, given, surname string
	}{
		{"सुनीता देवी", "सुनीता", "देवी"},
		{"राम प्रसाद शर्मा", "राम", "शर्मा"},
		{"रामलाल", "रामलाल", ""},
		{"सिंह", "सिंह", "सिंह"},
		{"", "", ""},
	}
	for _, tt := range tests {
		given, surname := r.SplitName(tt.name)
		if given != tt.given || surname != tt.surname {
			t.Errorf("SplitName(%q) = %q/%q, want %q/%q", tt.name, given, surname, tt.given, tt.surname)
		}
	}
}

func TestGender(t *testing.T) {
	r := newResolver(t)
	tests := []struct {
		c    Candidate
		want string
	}{
		{Candidate{Raw: "कमला देवी", Cleaned: "कमला देवी"}, "महिला"},
		{Candidate{Raw: "मोहन सिंह", Cleaned: "मोहन सिंह"}, "पुरुष"},
		{Candidate{Raw: "श्रीमती कमला", Cleaned: "कमला"}, "महिला"},
		{Candidate{Raw: "श्री अमर", Cleaned: "अमर"}, "पुरुष"},
		{Candidate{Raw: "अमर", Cleaned: "अमर"}, "अज्ञात"},
		{Candidate{Raw: "अमर", Cleaned: "अमर", Relation: "पुत्री"}, "महिला"},
	}
	for _, tt := range tests {
		if got := r.Gender(tt.c); got != tt.want {
			t.Errorf("Gender(%+v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestRelation_Fallbacks(t *testing.T) {
	r := newResolver(t)
	if got := r.Relation("रामपिता आये", "रामपिता"); got != "पिता" {
		t.Errorf("embedded relation = %q, want पिता", got)
	}
	if got := r.Relation("मोहन सोहन", "मोहन सोहन"); got != "अन्य" {
		t.Errorf("default relation = %q, want अन्य", got)
	}
	if got := r.Relation("पिता स्व० मोहन सोहन", "मोहन सोहन"); got != "पिता" {
		t.Errorf("relation across honorific = %q, want पिता", got)
	}
}

func TestHonoree(t *testing.T) {
	r := newResolver(t)
	h := r.Honoree("स्व० मोहन सिंह")
	if h.Cleaned != "मोहन सिंह" || h.Relation != "स्वर्गीय (अनुष्ठान)" || h.Surname != "सिंह" || h.Gender != "पुरुष" {
		t.Errorf("Honoree = %+v", h)
	}
}
