package extract

import (
	"testing"

	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(lexicon.Default())
}

func assertFields(t *testing.T, fs ledger.FieldSet, want map[ledger.Field]string) {
	t.Helper()
	for f, v := range want {
		if got := fs.Value(f); got != v {
			t.Errorf("%s = %q, want %q", f, got, v)
		}
	}
}

func TestAnalyze_Scenario(t *testing.T) {
	e := newExtractor(t)
	a := e.Analyze(scenario)

	assertFields(t, a.Fields, map[ledger.Field]string{
		ledger.FieldDistrict:      "बोकारो",
		ledger.FieldRitualName:    "अस्ती लाये",
		ledger.FieldDate:          "05-03-08",
		ledger.FieldRitualPerson1: "",
		ledger.FieldFlags:         "",
	})
	if len(a.Candidates) != 3 {
		t.Errorf("got %d candidates, want 3", len(a.Candidates))
	}
	if len(a.Honorees) != 0 {
		t.Errorf("unexpected honorees %+v", a.Honorees)
	}
}

func TestExtract_Locations(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("गांव रामपुर थाना सदर तहसील आरा जिला भोजपुर पटना से आये")
	assertFields(t, fs, map[ledger.Field]string{
		ledger.FieldCityVillage: "रामपुर",
		ledger.FieldStation:     "सदर",
		ledger.FieldTehsil:      "आरा",
		ledger.FieldDistrict:    "भोजपुर",
		ledger.FieldOriginPlace: "पटना",
	})
}

func TestExtract_OriginKeywordForm(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("कहाँ से आये: गया")
	if got := fs.Value(ledger.FieldOriginPlace); got != "गया" {
		t.Errorf("origin = %q, want गया", got)
	}
}

func TestExtract_RegisterMetadata(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("ब्राह्मण वाही Image No 12 फोलियो संख्या: ४५ पंडा रामनाथ शर्मा")
	assertFields(t, fs, map[ledger.Field]string{
		ledger.FieldRegisterName: "ब्राह्मण वाही",
		ledger.FieldImageNo:      "12",
		ledger.FieldFolioNo:      "45",
		ledger.FieldScribeName:   "रामनाथ शर्मा",
	})
}

func TestExtract_Contacts(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("मो. ९८७६५४३२१० फोन 9123456789 फिर 9876543210")
	assertFields(t, fs, map[ledger.Field]string{
		ledger.FieldContact1: "9876543210",
		ledger.FieldContact2: "9123456789",
	})
}

func TestExtract_ContactRejectsLongerNumbers(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("खाता 98765432101234")
	if got, ok := fs.Get(ledger.FieldContact1); ok {
		t.Errorf("contact from a 14-digit number: %q", got)
	}
}

func TestExtract_CasteAndSubcaste(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("रामलाल कुर्मी चौहान जिला गया")
	assertFields(t, fs, map[ledger.Field]string{
		ledger.FieldCaste:    "कुर्मी",
		ledger.FieldSubcaste: "चौहान",
	})
}

func TestAnalyze_Honorees(t *testing.T) {
	e := newExtractor(t)
	a := e.Analyze("अस्ती लाये का स्व० रामलाल पिता गोपाल श्राद्ध स्व० मोहनलाल जिला गया")
	assertFields(t, a.Fields, map[ledger.Field]string{
		ledger.FieldRitualName:    "अस्ती लाये",
		ledger.FieldRitualPerson1: "रामलाल",
		ledger.FieldRitualPerson2: "मोहनलाल",
	})
	if len(a.Honorees) != 2 {
		t.Fatalf("got %d honorees, want 2", len(a.Honorees))
	}
	for _, h := range a.Honorees {
		if h.Relation != "स्वर्गीय (अनुष्ठान)" {
			t.Errorf("honoree %q relation = %q", h.Cleaned, h.Relation)
		}
	}
}

func TestAnalyze_Flags(t *testing.T) {
	e := newExtractor(t)
	a := e.Analyze("जिला गया, सफेद, १२३ ●")
	if got := a.Fields.Value(ledger.FieldFlags); got != "सफेद १२३" {
		t.Errorf("flags = %q, want %q", got, "सफेद १२३")
	}
}

func TestAnalyze_FlagsOmitNameSharingCasteWord(t *testing.T) {
	e := newExtractor(t)
	a := e.Analyze("प्रा० रामलाल सिंह जिला गया")
	if len(a.Candidates) == 0 || a.Candidates[0].Cleaned != "रामलाल सिंह" {
		t.Fatalf("candidates = %+v", a.Candidates)
	}
	if got := a.Fields.Value(ledger.FieldFlags); got != "" {
		t.Errorf("flags = %q, want empty", got)
	}
}

func TestExtract_DateRepeatedLastWins(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("ता. 01-01-2000 फिर 02-02-2001 फिर 01-01-2000")
	if got := fs.Value(ledger.FieldDate); got != "01-01-2000" {
		t.Errorf("date = %q, want 01-01-2000", got)
	}
}

func TestExtract_DateTakesLast(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("दि. ०१-०१-९० को आये फिर ता. ०५-०३-०८")
	if got := fs.Value(ledger.FieldDate); got != "05-03-08" {
		t.Errorf("date = %q, want 05-03-08", got)
	}
}

func TestExtract_NoMatchIsEmpty(t *testing.T) {
	e := newExtractor(t)
	fs := e.Extract("कुछ नहीं")
	for _, f := range ledger.Fields {
		if f == ledger.FieldFlags {
			continue
		}
		if v, ok := fs.Get(f); ok {
			t.Errorf("%s = %q, want absent", f, v)
		}
	}
}

func TestRules_Order(t *testing.T) {
	e := newExtractor(t)
	rules := e.Rules()
	want := []ledger.Field{}
	for _, f := range ledger.Fields {
		if f != ledger.FieldFlags {
			want = append(want, f)
		}
	}
	if len(rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(rules), len(want))
	}
	for i, r := range rules {
		if r.Field != want[i] {
			t.Errorf("rule %d field = %s, want %s", i, r.Field, want[i])
		}
	}
}

func TestScanOverlapping_ResumesInsideSpan(t *testing.T) {
	r := newResolver(t)
	spans := scanOverlapping(r.relations[0], "पिता राम पिता श्याम", 1)
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(spans), spans)
	}
	if spans[1].text != "श्याम" {
		t.Errorf("second span = %q", spans[1].text)
	}
}
