package expand

import (
	"testing"
	"time"

	"github.com/hurttlocker/bahi/internal/extract"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

const deceased = "स्वर्गीय (अनुष्ठान)"

func cand(cleaned, relation string, applicant bool) extract.Candidate {
	return extract.Candidate{Raw: cleaned, Cleaned: cleaned, Given: cleaned, Relation: relation, Applicant: applicant}
}

func TestExpand_ApplicantFirst(t *testing.T) {
	a := extract.Analysis{
		Fields: ledger.NewFieldSet(map[ledger.Field]string{ledger.FieldDistrict: "गया"}),
		Candidates: []extract.Candidate{
			cand("सीता", "माता", false),
			cand("राम", "प्रार्थी", true),
			cand("मोहन", "पिता", false),
		},
	}
	recs := Expand(ledger.Block{Seq: 1}, a, NewCounter(), time.Time{})
	want := []string{"राम", "सीता", "मोहन"}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, r := range recs {
		if r.GivenName != want[i] {
			t.Errorf("record %d = %q, want %q", i, r.GivenName, want[i])
		}
		if r.IndividualID != i+1 || r.Position != i+1 {
			t.Errorf("record %d positions = %d/%d", i, r.Position, r.IndividualID)
		}
		if r.District != "गया" {
			t.Errorf("record %d district = %q", i, r.District)
		}
	}
}

func TestExpand_NoNamesYieldsOneRecord(t *testing.T) {
	a := extract.Analysis{
		Fields: ledger.NewFieldSet(map[ledger.Field]string{
			ledger.FieldDistrict: "गया",
			ledger.FieldCaste:    "कुर्मी",
		}),
	}
	recs := Expand(ledger.Block{Seq: 4}, a, NewCounter(), time.Time{})
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.GivenName != "" || r.Surname != "" || r.Relation != "" {
		t.Errorf("person fields should be empty: %+v", r)
	}
	if r.District != "गया" || r.Caste != "कुर्मी" || r.BlockSeq != 4 {
		t.Errorf("shared fields missing: %+v", r)
	}
}

func TestExpand_Honorees(t *testing.T) {
	res := extract.NewResolver(lexicon.Default())
	h1, h2 := res.Honoree("स्व० रामलाल"), res.Honoree("मोहनलाल")
	a := extract.Analysis{
		Fields: ledger.NewFieldSet(map[ledger.Field]string{
			ledger.FieldRitualPerson1: "रामलाल",
			ledger.FieldRitualPerson2: "मोहनलाल",
		}),
		Candidates: []extract.Candidate{
			cand("गोपाल", "प्रार्थी", true),
			cand("रामलाल", "पिता", false),
		},
		Honorees: []extract.Candidate{h1, h2},
	}
	recs := Expand(ledger.Block{Seq: 1}, a, NewCounter(), time.Time{})
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(recs), recs)
	}
	if recs[0].GivenName != "गोपाल" {
		t.Errorf("first record = %q", recs[0].GivenName)
	}
	for _, r := range recs[1:] {
		if r.Relation != deceased {
			t.Errorf("%q relation = %q, want %q", r.GivenName, r.Relation, deceased)
		}
		if r.RitualPerson1 != "रामलाल" || r.RitualPerson2 != "मोहनलाल" {
			t.Errorf("honoree columns = %q / %q", r.RitualPerson1, r.RitualPerson2)
		}
	}
}

func TestExpand_CounterSpansBlocks(t *testing.T) {
	c := NewCounter()
	a := extract.Analysis{Candidates: []extract.Candidate{cand("राम", "अन्य", false), cand("श्याम", "अन्य", false)}}
	Expand(ledger.Block{Seq: 1}, a, c, time.Time{})
	recs := Expand(ledger.Block{Seq: 2}, a, c, time.Time{})
	if recs[0].Position != 3 || recs[1].Position != 4 {
		t.Errorf("positions = %d, %d, want 3, 4", recs[0].Position, recs[1].Position)
	}
	if recs[0].IndividualID != 1 || recs[1].IndividualID != 2 {
		t.Errorf("individual ids = %d, %d, want 1, 2", recs[0].IndividualID, recs[1].IndividualID)
	}
	if c.Last() != 4 {
		t.Errorf("Last = %d, want 4", c.Last())
	}
}

func TestExpand_Scenario(t *testing.T) {
	e := extract.NewExtractor(lexicon.Default())
	block := ledger.Block{Seq: 1, Text: "प्रा० रामलाल पिता स्व० श्यामलाल जिला बोकारो अस्ती लाये माता सुनीता देवी ता. ०५-०३-०८"}
	date := time.Date(2008, time.March, 5, 0, 0, 0, 0, time.UTC)
	recs := Expand(block, e.Analyze(block.Text), NewCounter(), date)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	first := recs[0]
	if first.GivenName != "रामलाल" || first.Relation != "प्रार्थी" {
		t.Errorf("applicant record = %+v", first)
	}
	if first.District != "बोकारो" || first.AdditionalInfo() != "2008-03-05" {
		t.Errorf("shared fields = %q / %q", first.District, first.AdditionalInfo())
	}
	var father bool
	for _, r := range recs {
		if r.GivenName == "श्यामलाल" && r.Relation == "पिता" {
			father = true
		}
	}
	if !father {
		t.Errorf("no father record in %+v", recs)
	}
}
