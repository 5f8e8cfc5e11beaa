package model

import "fmt"

// DocType is the closed set of document tags the catalog accepts.
type DocType string

const (
	DocNoticeOfRace        DocType = "NOR"
	DocSailingInstructions DocType = "SI"
	DocWebsite             DocType = "WWW"
	DocEntryForm           DocType = "ENTRY"
	DocResults             DocType = "RESULTS"
)

// AllDocTypes lists every valid DocType in display order.
var AllDocTypes = []DocType{
	DocNoticeOfRace,
	DocSailingInstructions,
	DocWebsite,
	DocEntryForm,
	DocResults,
}

// ParseDocType converts a raw string to a DocType, returning an error for
// unknown values. Matching is case-sensitive.
func ParseDocType(s string) (DocType, error) {
	dt := DocType(s)
	switch dt {
	case DocNoticeOfRace, DocSailingInstructions, DocWebsite, DocEntryForm, DocResults:
		return dt, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// Label returns a human-readable name for the type.
func (d DocType) Label() string {
	switch d {
	case DocNoticeOfRace:
		return "Notice of Race"
	case DocSailingInstructions:
		return "Sailing Instructions"
	case DocWebsite:
		return "Website"
	case DocEntryForm:
		return "Entry Form"
	case DocResults:
		return "Results"
	}
	return string(d)
}
