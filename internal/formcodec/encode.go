package formcodec

import (
	"net/url"
	"strconv"

	"github.com/golang-sql/civil"

	"racecrew/import-service/internal/model"
)

// Encode renders candidates into preview form values. Every record and
// every document starts out selected; the operator unticks what to drop.
func Encode(candidates []model.CandidateRecord) url.Values {
	form := url.Values{}
	for _, c := range candidates {
		i := c.Index
		form.Add(FieldSelected, strconv.Itoa(i))
		form.Set(NameField(i), c.Name)
		form.Set(LocationField(i), c.Location)
		form.Set(StartDateField(i), formatDate(c.StartDate))
		form.Set(EndDateField(i), formatDate(c.EndDate))
		form.Set(NotesField(i), c.Notes)
		form.Set(LocationURLField(i), c.LocationURL)
		encodeDocuments(form, i, c.Documents)
	}
	return form
}

// EncodeDiscoveries renders document-discovery results into review form values.
func EncodeDiscoveries(found []model.DiscoveredRegatta) url.Values {
	form := url.Values{}
	for _, d := range found {
		i := d.Index
		form.Add(FieldSelected, strconv.Itoa(i))
		form.Set(RegattaIDField(i), d.RegattaID)
		encodeDocuments(form, i, d.Documents)
	}
	return form
}

func encodeDocuments(form url.Values, i int, docs []model.CandidateDocument) {
	form.Set(DocCountField(i), strconv.Itoa(len(docs)))
	for j, d := range docs {
		form.Set(DocField(i, j), "1")
		form.Set(DocTypeField(i, j), string(d.DocType))
		form.Set(DocURLField(i, j), d.URL)
	}
}

func formatDate(d *civil.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
