// Package expand turns one analyzed block into its individual records: the
// applicant first, then the other named people, then the ritual honorees.
package expand

import (
	"time"

	"github.com/hurttlocker/bahi/internal/extract"
	"github.com/hurttlocker/bahi/internal/ledger"
)

// Counter hands out global record positions. It is not safe for concurrent
// use; the pipeline assigns positions after merging blocks in order.
type Counter struct {
	last int
}

// NewCounter returns a counter whose first position is 1.
func NewCounter() *Counter { return &Counter{} }

// Next returns the next position.
func (c *Counter) Next() int {
	c.last++
	return c.last
}

// Last returns the most recently issued position, 0 if none.
func (c *Counter) Last() int { return c.last }

// Expand emits at least one record for the block. Honorees that also appear
// among the candidates are emitted once, in the honoree pass.
func Expand(block ledger.Block, a extract.Analysis, counter *Counter, date time.Time) []ledger.IndividualRecord {
	honoree := make(map[string]bool, len(a.Honorees))
	for _, h := range a.Honorees {
		honoree[h.Cleaned] = true
	}

	var people []ledger.Person
	emitted := map[string]bool{}
	add := func(c extract.Candidate) {
		if c.Cleaned == "" || emitted[c.Cleaned] {
			return
		}
		emitted[c.Cleaned] = true
		people = append(people, person(c))
	}

	for _, c := range a.Candidates {
		if c.Applicant && !honoree[c.Cleaned] {
			add(c)
			break
		}
	}
	for _, c := range a.Candidates {
		if !honoree[c.Cleaned] {
			add(c)
		}
	}
	for _, h := range a.Honorees {
		add(h)
	}

	if len(people) == 0 {
		people = []ledger.Person{{}}
	}
	records := make([]ledger.IndividualRecord, 0, len(people))
	for i, p := range people {
		pos := ledger.Position{Global: counter.Next(), Individual: i + 1}
		records = append(records, ledger.NewRecord(block, a.Fields, p, pos, date))
	}
	return records
}

func person(c extract.Candidate) ledger.Person {
	return ledger.Person{
		Given:    c.Given,
		Surname:  c.Surname,
		Relation: c.Relation,
		Gender:   c.Gender,
	}
}
