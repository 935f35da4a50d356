// Package ledger defines the data model shared by every stage: record blocks,
// extracted field sets, resolved persons and the final 26-column individual
// record.
package ledger

import (
	"strconv"
	"time"
)

// Block is one contiguous span of source text believed to describe a single
// ledger entry. Seq is its 1-based position in the input.
type Block struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

// Field names an extractable attribute of a block.
type Field string

const (
	FieldImageNo       Field = "image_no"
	FieldScribeName    Field = "scribe_name"
	FieldRegisterName  Field = "register_name"
	FieldFolioNo       Field = "folio_no"
	FieldDistrict      Field = "district"
	FieldTehsil        Field = "tehsil"
	FieldStation       Field = "station"
	FieldPostOffice    Field = "post_office"
	FieldCityVillage   Field = "city_village"
	FieldOriginPlace   Field = "origin_place"
	FieldCaste         Field = "caste"
	FieldSubcaste      Field = "subcaste"
	FieldRitualName    Field = "ritual_name"
	FieldRitualPerson1 Field = "ritual_person_1"
	FieldRitualPerson2 Field = "ritual_person_2"
	FieldContact1      Field = "contact_1"
	FieldContact2      Field = "contact_2"
	FieldFlags         Field = "flags"
	FieldDate          Field = "date"
)

// Fields lists every Field in extraction order.
var Fields = []Field{
	FieldImageNo, FieldScribeName, FieldRegisterName, FieldFolioNo,
	FieldDistrict, FieldTehsil, FieldStation, FieldPostOffice, FieldCityVillage, FieldOriginPlace,
	FieldCaste, FieldSubcaste, FieldRitualName, FieldRitualPerson1, FieldRitualPerson2,
	FieldContact1, FieldContact2, FieldDate, FieldFlags,
}

// LocationFields are the fields naming places rather than people.
var LocationFields = []Field{
	FieldDistrict, FieldTehsil, FieldStation, FieldPostOffice, FieldCityVillage, FieldOriginPlace,
}

// FieldSet is an immutable mapping from Field to value. Absent fields read as "".
type FieldSet struct {
	values map[Field]string
}

// NewFieldSet copies m, dropping empty values.
func NewFieldSet(m map[Field]string) FieldSet {
	values := make(map[Field]string, len(m))
	for f, v := range m {
		if v != "" {
			values[f] = v
		}
	}
	return FieldSet{values: values}
}

// Get returns the value of f and whether it was extracted.
func (s FieldSet) Get(f Field) (string, bool) {
	v, ok := s.values[f]
	return v, ok
}

// Value returns the value of f or "".
func (s FieldSet) Value(f Field) string {
	return s.values[f]
}

// Len is the number of extracted fields.
func (s FieldSet) Len() int { return len(s.values) }

// Map returns a copy of the extracted values.
func (s FieldSet) Map() map[Field]string {
	out := make(map[Field]string, len(s.values))
	for f, v := range s.values {
		out[f] = v
	}
	return out
}

// Person is one resolved individual. The zero Person stands for a record with
// shared fields only.
type Person struct {
	Given    string `json:"given_name"`
	Surname  string `json:"surname"`
	Relation string `json:"relation"`
	Gender   string `json:"gender"`
}

// Position identifies a record's slot in the output. Global is strictly
// increasing across the whole run; Individual restarts at 1 for each block.
type Position struct {
	Global     int `json:"data_position"`
	Individual int `json:"individual_id"`
}

// IndividualRecord is one output row. Build it with NewRecord.
type IndividualRecord struct {
	BlockSeq      int       `json:"block_seq"`
	ImageNo       string    `json:"image_no"`
	ScribeName    string    `json:"panda_name"`
	RegisterName  string    `json:"bahi_name"`
	FolioNo       string    `json:"folio_no"`
	Position      int       `json:"data_position"`
	District      string    `json:"district"`
	Tehsil        string    `json:"tehsil"`
	Station       string    `json:"station"`
	PostOffice    string    `json:"post_office"`
	CityVillage   string    `json:"city_village"`
	OriginPlace   string    `json:"from_place"`
	Caste         string    `json:"caste"`
	Subcaste      string    `json:"subcaste"`
	IndividualID  int       `json:"individual_id"`
	GivenName     string    `json:"given_name"`
	Surname       string    `json:"surname"`
	Relation      string    `json:"relation"`
	Gender        string    `json:"gender"`
	FamilyID      string    `json:"family_id"`
	RitualName    string    `json:"ritual_name"`
	RitualPerson1 string    `json:"whose_ritual_1"`
	RitualPerson2 string    `json:"whose_ritual_2"`
	Contact1      string    `json:"contact_no_1"`
	Contact2      string    `json:"contact_no_2"`
	Flags         string    `json:"flags"`
	RawDate       string    `json:"raw_date,omitempty"`
	RecordDate    time.Time `json:"record_date"`
}

// NewRecord builds a record from a block's shared fields and one person. date
// is the block's parsed entry date (zero when absent).
func NewRecord(block Block, fields FieldSet, person Person, pos Position, date time.Time) IndividualRecord {
	return IndividualRecord{
		BlockSeq:      block.Seq,
		ImageNo:       fields.Value(FieldImageNo),
		ScribeName:    fields.Value(FieldScribeName),
		RegisterName:  fields.Value(FieldRegisterName),
		FolioNo:       fields.Value(FieldFolioNo),
		Position:      pos.Global,
		District:      fields.Value(FieldDistrict),
		Tehsil:        fields.Value(FieldTehsil),
		Station:       fields.Value(FieldStation),
		PostOffice:    fields.Value(FieldPostOffice),
		CityVillage:   fields.Value(FieldCityVillage),
		OriginPlace:   fields.Value(FieldOriginPlace),
		Caste:         fields.Value(FieldCaste),
		Subcaste:      fields.Value(FieldSubcaste),
		IndividualID:  pos.Individual,
		GivenName:     person.Given,
		Surname:       person.Surname,
		Relation:      person.Relation,
		Gender:        person.Gender,
		RitualName:    fields.Value(FieldRitualName),
		RitualPerson1: fields.Value(FieldRitualPerson1),
		RitualPerson2: fields.Value(FieldRitualPerson2),
		Contact1:      fields.Value(FieldContact1),
		Contact2:      fields.Value(FieldContact2),
		Flags:         fields.Value(FieldFlags),
		RawDate:       fields.Value(FieldDate),
		RecordDate:    date,
	}
}

// Header is the fixed column order of exported rows.
var Header = []string{
	"Image No", "Panda Name", "Bahi Name", "Folio No", "Data Position",
	"District", "Tehsil", "Station", "Post Office", "City/Village", "From Place",
	"Caste", "Subcaste", "Individual ID", "Given Name", "Surname", "Relation", "Gender",
	"Family ID", "Ritual Name", "Whose Ritual 1", "Whose Ritual 2",
	"Contact No1", "Contact No2", "Flags/Exceptions", "Additional Info",
}

// Row renders the record in Header order. Additional Info carries the entry
// date as YYYY-MM-DD, or the raw date text when it could not be parsed.
func (r IndividualRecord) Row() []string {
	return []string{
		r.ImageNo, r.ScribeName, r.RegisterName, r.FolioNo, strconv.Itoa(r.Position),
		r.District, r.Tehsil, r.Station, r.PostOffice, r.CityVillage, r.OriginPlace,
		r.Caste, r.Subcaste, strconv.Itoa(r.IndividualID), r.GivenName, r.Surname, r.Relation, r.Gender,
		r.FamilyID, r.RitualName, r.RitualPerson1, r.RitualPerson2,
		r.Contact1, r.Contact2, r.Flags, r.AdditionalInfo(),
	}
}

// AdditionalInfo is the value of the last column.
func (r IndividualRecord) AdditionalInfo() string {
	if !r.RecordDate.IsZero() {
		return r.RecordDate.Format("2006-01-02")
	}
	return r.RawDate
}

// HasPerson reports whether the record names an individual.
func (r IndividualRecord) HasPerson() bool {
	return r.GivenName != "" || r.Surname != ""
}
