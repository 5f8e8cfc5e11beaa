package formcodec

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"racecrew/import-service/internal/model"
)

// Skip reasons reported for selected records that cannot be imported.
const (
	ReasonMissingName      = "missing name"
	ReasonMissingStartDate = "missing start date"
	ReasonInvalidStartDate = "invalid start date"
	ReasonMissingRegatta   = "missing regatta id"
)

// Skip records a selected index that was excluded from the importable set.
type Skip struct {
	Index  int
	Reason string
}

// Result is the outcome of decoding a confirm submission. Every selected
// index ends up in exactly one of Candidates or Skipped.
type Result struct {
	Candidates []model.CandidateRecord
	Skipped    []Skip
}

// SelectedIndices returns the record indices listed in the repeated
// "selected" field, in submission order. Non-numeric and negative values
// are ignored and repeats collapse onto their first occurrence.
func SelectedIndices(form url.Values) []int {
	raw := form[FieldSelected]
	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || i < 0 || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// Decode reads the selected candidate records of a confirm submission.
// Unselected indices are never read. A malformed record is reported in
// Skipped and never prevents decoding of the others.
func Decode(form url.Values) Result {
	var res Result
	for _, i := range SelectedIndices(form) {
		c, reason := decodeRecord(form, i)
		if reason != "" {
			res.Skipped = append(res.Skipped, Skip{Index: i, Reason: reason})
			continue
		}
		res.Candidates = append(res.Candidates, c)
	}
	return res
}

func decodeRecord(form url.Values, i int) (model.CandidateRecord, string) {
	c := model.CandidateRecord{
		Index:       i,
		Name:        strings.TrimSpace(form.Get(NameField(i))),
		Location:    strings.TrimSpace(form.Get(LocationField(i))),
		Notes:       strings.TrimSpace(form.Get(NotesField(i))),
		LocationURL: strings.TrimSpace(form.Get(LocationURLField(i))),
	}
	if c.Name == "" {
		return c, ReasonMissingName
	}

	rawStart := strings.TrimSpace(form.Get(StartDateField(i)))
	if rawStart == "" {
		return c, ReasonMissingStartDate
	}
	start, err := civil.ParseDate(rawStart)
	if err != nil {
		return c, ReasonInvalidStartDate
	}
	c.StartDate = &start
	c.EndDate = parseOptionalDate(form.Get(EndDateField(i)))
	c.Documents = decodeDocuments(form, i)
	return c, ""
}

// parseOptionalDate returns nil for empty or unparsable input.
func parseOptionalDate(raw string) *civil.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &d
}

// docCount reads doc_count_i, clamped to [0, MaxDocuments].
func docCount(form url.Values, i int) int {
	n, err := strconv.Atoi(strings.TrimSpace(form.Get(DocCountField(i))))
	if err != nil || n < 0 {
		return 0
	}
	if n > MaxDocuments {
		return MaxDocuments
	}
	return n
}

// decodeDocuments returns the ticked document slots of record i. Slots
// without a presence flag or without a URL are dropped.
func decodeDocuments(form url.Values, i int) []model.CandidateDocument {
	n := docCount(form, i)
	var docs []model.CandidateDocument
	for j := 0; j < n; j++ {
		if strings.TrimSpace(form.Get(DocField(i, j))) == "" {
			continue
		}
		u := strings.TrimSpace(form.Get(DocURLField(i, j)))
		if u == "" {
			continue
		}
		docs = append(docs, model.CandidateDocument{
			Index:    j,
			DocType:  model.ResolveDocType(form.Get(DocTypeField(i, j)), u),
			URL:      u,
			Selected: true,
		})
	}
	return docs
}

// AttachResult is the outcome of decoding a document-review submission.
type AttachResult struct {
	Attachments []model.DocumentAttachment
	Skipped     []Skip
}

// DecodeAttachments reads the selected regattas of a document-review
// submission. Regattas whose ticked slots are all empty are left out.
func DecodeAttachments(form url.Values) AttachResult {
	var res AttachResult
	for _, i := range SelectedIndices(form) {
		id := strings.TrimSpace(form.Get(RegattaIDField(i)))
		if id == "" {
			res.Skipped = append(res.Skipped, Skip{Index: i, Reason: ReasonMissingRegatta})
			continue
		}
		docs := decodeDocuments(form, i)
		if len(docs) == 0 {
			continue
		}
		res.Attachments = append(res.Attachments, model.DocumentAttachment{RegattaID: id, Documents: docs})
	}
	return res
}
