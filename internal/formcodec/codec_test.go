package formcodec_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/go-cmp/cmp"

	"racecrew/import-service/internal/formcodec"
	"racecrew/import-service/internal/model"
)

func date(y int, m time.Month, d int) *civil.Date {
	return &civil.Date{Year: y, Month: m, Day: d}
}

// ── SelectedIndices ────────────────────────────────────────────────────────

func TestSelectedIndices(t *testing.T) {
	form := url.Values{"selected": {"3", "x", "1", "-2", "3", " 0 "}}
	want := []int{3, 1, 0}
	if diff := cmp.Diff(want, formcodec.SelectedIndices(form)); diff != "" {
		t.Errorf("SelectedIndices mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_NoSelection(t *testing.T) {
	for _, form := range []url.Values{
		{},
		{"selected": {}},
		{"name_0": {"Orphan"}, "start_date_0": {"2026-09-01"}},
	} {
		res := formcodec.Decode(form)
		if len(res.Candidates) != 0 || len(res.Skipped) != 0 {
			t.Errorf("Decode(%v) = %+v, want empty result", form, res)
		}
	}
}

// ── Decode ─────────────────────────────────────────────────────────────────

func TestDecode_SingleRecord(t *testing.T) {
	form := url.Values{
		"selected":       {"0"},
		"name_0":         {"Test Regatta"},
		"location_0":     {"Test YC"},
		"start_date_0":   {"2026-09-01"},
		"end_date_0":     {"2026-09-02"},
		"notes_0":        {""},
		"location_url_0": {""},
		"doc_count_0":    {"0"},
	}
	res := formcodec.Decode(form)
	want := []model.CandidateRecord{{
		Index:     0,
		Name:      "Test Regatta",
		Location:  "Test YC",
		StartDate: date(2026, time.September, 1),
		EndDate:   date(2026, time.September, 2),
	}}
	if diff := cmp.Diff(want, res.Candidates); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none", res.Skipped)
	}
}

func TestDecode_EmptyEndDateIsAbsent(t *testing.T) {
	for _, end := range []string{"", "  ", "not-a-date"} {
		res := formcodec.Decode(url.Values{
			"selected":     {"0"},
			"name_0":       {"One Day"},
			"start_date_0": {"2026-10-01"},
			"end_date_0":   {end},
		})
		if len(res.Candidates) != 1 {
			t.Fatalf("end_date %q: got %d candidates, want 1", end, len(res.Candidates))
		}
		if res.Candidates[0].EndDate != nil {
			t.Errorf("end_date %q decoded to %v, want nil", end, res.Candidates[0].EndDate)
		}
	}
}

func TestDecode_InvalidRecordsAreSkippedNotFatal(t *testing.T) {
	form := url.Values{
		"selected":     {"0", "1", "2", "3"},
		"name_0":       {"No Start"},
		"name_1":       {"Bad Start"},
		"start_date_1": {"01/10/2026"},
		"name_2":       {"Good"},
		"start_date_2": {"2026-10-01"},
		"start_date_3": {"2026-10-01"},
	}
	res := formcodec.Decode(form)

	if len(res.Candidates) != 1 || res.Candidates[0].Name != "Good" {
		t.Fatalf("Candidates = %+v, want only Good", res.Candidates)
	}
	want := []formcodec.Skip{
		{Index: 0, Reason: formcodec.ReasonMissingStartDate},
		{Index: 1, Reason: formcodec.ReasonInvalidStartDate},
		{Index: 3, Reason: formcodec.ReasonMissingName},
	}
	if diff := cmp.Diff(want, res.Skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
}

// Only index 2 of candidates 0-4 is selected; the others must not be read.
func TestDecode_NonContiguousSelection(t *testing.T) {
	form := url.Values{"selected": {"2"}}
	for i := 0; i < 5; i++ {
		form.Set(formcodec.NameField(i), "Regatta "+string(rune('A'+i)))
		form.Set(formcodec.StartDateField(i), "2026-09-0"+string(rune('1'+i)))
		form.Set(formcodec.DocCountField(i), "1")
		form.Set(formcodec.DocField(i, 0), "1")
		form.Set(formcodec.DocTypeField(i, 0), "NOR")
		form.Set(formcodec.DocURLField(i, 0), "https://example.com/nor.pdf")
	}
	// Malformed data on an unselected index must not matter.
	form.Set(formcodec.StartDateField(4), "garbage")

	res := formcodec.Decode(form)
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none", res.Skipped)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	c := res.Candidates[0]
	if c.Index != 2 || c.Name != "Regatta C" || *c.StartDate != *date(2026, time.September, 3) {
		t.Errorf("decoded wrong record: %+v", c)
	}
	if len(c.Documents) != 1 {
		t.Errorf("Documents = %+v, want 1", c.Documents)
	}
}

func TestDecode_Documents(t *testing.T) {
	base := url.Values{
		"selected":       {"0"},
		"name_0":         {"Doc Import Test"},
		"start_date_0":   {"2026-11-01"},
		"doc_count_0":    {"2"},
		"doc_type_0_0":   {"NOR"},
		"doc_url_0_0":    {"https://example.com/nor.pdf"},
		"doc_type_0_1":   {"WWW"},
		"doc_url_0_1":    {"https://example.com/regatta"},
		"location_url_0": {""},
	}

	t.Run("both selected", func(t *testing.T) {
		form := cloneValues(base)
		form.Set("doc_0_0", "1")
		form.Set("doc_0_1", "1")
		docs := formcodec.Decode(form).Candidates[0].Documents
		want := []model.CandidateDocument{
			{Index: 0, DocType: model.DocNoticeOfRace, URL: "https://example.com/nor.pdf", Selected: true},
			{Index: 1, DocType: model.DocWebsite, URL: "https://example.com/regatta", Selected: true},
		}
		if diff := cmp.Diff(want, docs); diff != "" {
			t.Errorf("Documents mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("partial selection", func(t *testing.T) {
		form := cloneValues(base)
		form.Set("doc_0_1", "1")
		docs := formcodec.Decode(form).Candidates[0].Documents
		if len(docs) != 1 || docs[0].Index != 1 || docs[0].URL != "https://example.com/regatta" {
			t.Errorf("Documents = %+v, want only slot 1", docs)
		}
	})

	t.Run("none selected", func(t *testing.T) {
		docs := formcodec.Decode(cloneValues(base)).Candidates[0].Documents
		if len(docs) != 0 {
			t.Errorf("Documents = %+v, want none", docs)
		}
	})

	t.Run("slots beyond doc_count are ignored", func(t *testing.T) {
		form := cloneValues(base)
		form.Set("doc_count_0", "1")
		form.Set("doc_0_0", "1")
		form.Set("doc_0_1", "1")
		if docs := formcodec.Decode(form).Candidates[0].Documents; len(docs) != 1 {
			t.Errorf("Documents = %+v, want 1", docs)
		}
	})

	t.Run("bad doc_count reads as zero", func(t *testing.T) {
		for _, n := range []string{"", "two", "-1"} {
			form := cloneValues(base)
			form.Set("doc_count_0", n)
			form.Set("doc_0_0", "1")
			if docs := formcodec.Decode(form).Candidates[0].Documents; len(docs) != 0 {
				t.Errorf("doc_count %q: Documents = %+v, want none", n, docs)
			}
		}
	})

	t.Run("missing url and type", func(t *testing.T) {
		form := cloneValues(base)
		form.Set("doc_0_0", "1")
		form.Set("doc_url_0_0", "")
		form.Set("doc_0_1", "1")
		form.Set("doc_type_0_1", "")
		form.Set("doc_url_0_1", "https://example.com/sailing-instructions.pdf")
		docs := formcodec.Decode(form).Candidates[0].Documents
		if len(docs) != 1 || docs[0].DocType != model.DocSailingInstructions {
			t.Errorf("Documents = %+v, want one inferred SI", docs)
		}
	})
}

// ── Encode ─────────────────────────────────────────────────────────────────

func TestEncodeDecodeRoundTrip(t *testing.T) {
	candidates := []model.CandidateRecord{
		{
			Index:       0,
			Name:        "Spring Regatta",
			Location:    "Harbour YC",
			StartDate:   date(2026, time.April, 4),
			EndDate:     date(2026, time.April, 5),
			Notes:       "Two races a day",
			LocationURL: "https://harbour.example.com",
			Documents: []model.CandidateDocument{
				{Index: 0, DocType: model.DocNoticeOfRace, URL: "https://example.com/nor.pdf", Selected: true},
				{Index: 1, DocType: model.DocResults, URL: "https://example.com/results", Selected: true},
			},
		},
		{Index: 1, Name: "Summer Bash", StartDate: date(2026, time.July, 11)},
	}

	res := formcodec.Decode(formcodec.Encode(candidates))
	if diff := cmp.Diff(candidates, res.Candidates); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_UndatedCandidateDecodesAsSkip(t *testing.T) {
	form := formcodec.Encode([]model.CandidateRecord{{Index: 0, Name: "TBA Regatta"}})
	if got := form.Get("start_date_0"); got != "" {
		t.Errorf("start_date_0 = %q, want empty", got)
	}
	res := formcodec.Decode(form)
	if len(res.Candidates) != 0 || len(res.Skipped) != 1 {
		t.Errorf("Decode = %+v, want one skip", res)
	}
}

// ── Attachments ────────────────────────────────────────────────────────────

func TestDecodeAttachments(t *testing.T) {
	found := []model.DiscoveredRegatta{
		{Index: 0, RegattaID: "r-0", Documents: []model.CandidateDocument{
			{DocType: model.DocNoticeOfRace, URL: "https://example.com/a/nor.pdf"},
		}},
		{Index: 1, RegattaID: "r-1", Documents: []model.CandidateDocument{
			{DocType: model.DocWebsite, URL: "https://example.com/b"},
			{DocType: model.DocResults, URL: "https://example.com/b/results"},
		}},
	}
	form := formcodec.EncodeDiscoveries(found)
	form.Del("doc_1_0")       // untick the website link of r-1
	form.Add("selected", "7") // stale index with no regatta id

	res := formcodec.DecodeAttachments(form)
	want := []model.DocumentAttachment{
		{RegattaID: "r-0", Documents: []model.CandidateDocument{
			{Index: 0, DocType: model.DocNoticeOfRace, URL: "https://example.com/a/nor.pdf", Selected: true},
		}},
		{RegattaID: "r-1", Documents: []model.CandidateDocument{
			{Index: 1, DocType: model.DocResults, URL: "https://example.com/b/results", Selected: true},
		}},
	}
	if diff := cmp.Diff(want, res.Attachments); diff != "" {
		t.Errorf("Attachments mismatch (-want +got):\n%s", diff)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 7 {
		t.Errorf("Skipped = %+v, want index 7", res.Skipped)
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
