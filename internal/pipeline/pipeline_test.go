package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hurttlocker/bahi/internal/extract"
	"github.com/hurttlocker/bahi/internal/lexicon"
)

const scenario = "प्रा० रामलाल पिता स्व० श्यामलाल जिला बोकारो अस्ती लाये माता सुनीता देवी ता. ०५-०३-०८"

var fixedNow = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

func newPipeline(t testing.TB, opts ...Option) *Pipeline {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(lexicon.Default(), append(base, opts...)...)
}

func TestRun_Scenario(t *testing.T) {
	p := newPipeline(t)
	res, err := p.Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(res.Blocks))
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	first := res.Records[0]
	if first.GivenName != "रामलाल" || first.Relation != "प्रार्थी" {
		t.Errorf("first record = %+v", first)
	}
	want := time.Date(2008, time.March, 5, 0, 0, 0, 0, time.UTC)
	if !first.RecordDate.Equal(want) {
		t.Errorf("record date = %v, want %v", first.RecordDate, want)
	}
	if first.District != "बोकारो" {
		t.Errorf("district = %q", first.District)
	}
	if res.Degraded() != 0 {
		t.Errorf("unexpected degraded blocks: %+v", res.Statuses)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	p := newPipeline(t)
	for _, in := range []string{"", "   ", "\n\r\n\t"} {
		if _, err := p.Run(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Run(%q) err = %v, want ErrEmptyInput", in, err)
		}
	}
}

func TestRun_NoNamesStillEmits(t *testing.T) {
	p := newPipeline(t)
	res, err := p.Run(context.Background(), "जिला गया कुर्मी")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	r := res.Records[0]
	if r.GivenName != "" || r.Surname != "" || r.Relation != "" {
		t.Errorf("person fields = %q/%q/%q, want empty", r.GivenName, r.Surname, r.Relation)
	}
	if r.District != "गया" || r.Caste != "कुर्मी" {
		t.Errorf("shared fields = %q/%q", r.District, r.Caste)
	}
}

func TestRun_TwoHonorees(t *testing.T) {
	p := newPipeline(t)
	res, err := p.Run(context.Background(), "अस्ती लाये का स्व० रामलाल श्राद्ध स्व० मोहनलाल जिला गया")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var deceased int
	for _, r := range res.Records {
		if r.RitualPerson1 != "रामलाल" || r.RitualPerson2 != "मोहनलाल" {
			t.Errorf("honoree columns = %q / %q", r.RitualPerson1, r.RitualPerson2)
		}
		if r.Relation == "स्वर्गीय (अनुष्ठान)" {
			deceased++
		}
	}
	if deceased != 2 {
		t.Errorf("got %d deceased records, want 2: %+v", deceased, res.Records)
	}
}

func TestRun_PreservesBlockOrder(t *testing.T) {
	places := []string{"गया", "पटना", "आरा", "बोकारो", "भोजपुर", "रांची", "हजारीबाग", "धनबाद"}
	var parts []string
	for i := 0; i < 5; i++ {
		for _, pl := range places {
			parts = append(parts, "जिला "+pl)
		}
	}
	p := newPipeline(t, WithWorkers(4))
	res, err := p.Run(context.Background(), strings.Join(parts, "\n\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != len(parts) {
		t.Fatalf("got %d records, want %d", len(res.Records), len(parts))
	}
	for i, r := range res.Records {
		if want := places[i%len(places)]; r.District != want {
			t.Errorf("record %d district = %q, want %q", i, r.District, want)
		}
		if r.Position != i+1 || r.BlockSeq != i+1 {
			t.Errorf("record %d position/block = %d/%d", i, r.Position, r.BlockSeq)
		}
	}
}

func TestRun_PanicDegradesOneBlock(t *testing.T) {
	p := newPipeline(t)
	analyze := p.analyze
	p.analyze = func(s string) extract.Analysis {
		if strings.Contains(s, "पटना") {
			panic("boom")
		}
		return analyze(s)
	}
	res, err := p.Run(context.Background(), "जिला गया\n\nजिला पटना\n\nजिला आरा")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	if !res.Statuses[1].Degraded || res.Degraded() != 1 {
		t.Errorf("statuses = %+v", res.Statuses)
	}
	if !strings.HasPrefix(res.Records[1].Flags, "processing aborted: panic: boom") {
		t.Errorf("degraded flags = %q", res.Records[1].Flags)
	}
	if res.Records[0].District != "गया" || res.Records[2].District != "आरा" {
		t.Errorf("healthy blocks lost their fields: %+v", res.Records)
	}
}

func TestRun_TimeoutDegradesOneBlock(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := newPipeline(t, WithBlockTimeout(20*time.Millisecond))
	analyze := p.analyze
	p.analyze = func(s string) extract.Analysis {
		if strings.Contains(s, "पटना") {
			<-release
		}
		return analyze(s)
	}
	res, err := p.Run(context.Background(), "जिला गया\n\nजिला पटना")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	st := res.Statuses[1]
	if !st.Degraded || !strings.Contains(st.Reason, context.DeadlineExceeded.Error()) {
		t.Errorf("status = %+v", st)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx, scenario); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFormat(t *testing.T) {
	p := newPipeline(t)
	if _, err := p.Format(" "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Format blank err = %v", err)
	}
	got, err := p.Format("प्रा० राम ता. ०५-०३-०८\nप्रा० श्याम")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if want := "प्रा० राम ता. ०५-०३-०८।\n\nप्रा० श्याम।"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func FuzzRunRecordsCoverBlocks(f *testing.F) {
	f.Add(scenario)
	f.Add("जिला गया\n\nप्रा० सीता देवी\nता. ०५-०३-०८")
	f.Add("●\n०\n.")
	p := newPipeline(f, WithBlockTimeout(time.Minute))
	f.Fuzz(func(t *testing.T, in string) {
		res, err := p.Run(context.Background(), in)
		if strings.TrimSpace(in) == "" {
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("blank input err = %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(res.Records) < len(res.Blocks) {
			t.Fatalf("%d records for %d blocks", len(res.Records), len(res.Blocks))
		}
		for i, r := range res.Records {
			if r.Position != i+1 {
				t.Fatalf("record %d position = %d", i, r.Position)
			}
		}
	})
}
