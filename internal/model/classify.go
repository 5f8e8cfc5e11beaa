package model

import "strings"

// classifierRules are checked in order; the first rule with a matching
// keyword wins.
var classifierRules = []struct {
	docType  DocType
	keywords []string
}{
	{DocNoticeOfRace, []string{"notice of race", "notice-of-race", "notice_of_race", "noticeofrace", "nor.pdf"}},
	{DocSailingInstructions, []string{"sailing instructions", "sailing-instructions", "sailing_instructions", "sailinginstructions", "si.pdf"}},
	{DocEntryForm, []string{"entry form", "entry-form", "entry_form", "register", "/entry"}},
	{DocResults, []string{"results", "standings"}},
}

// ClassifyDocument infers a DocType from keyword matches (case-insensitive)
// in the document URL and its link label. Anything unrecognised is treated
// as a website link.
func ClassifyDocument(url, label string) DocType {
	combined := strings.ToLower(label + " " + url)
	for _, rule := range classifierRules {
		for _, kw := range rule.keywords {
			if strings.Contains(combined, kw) {
				return rule.docType
			}
		}
	}
	return DocWebsite
}

// ResolveDocType parses raw (ignoring case and surrounding space) and falls
// back to ClassifyDocument when raw is empty or not a known type.
func ResolveDocType(raw, url string) DocType {
	if dt, err := ParseDocType(strings.ToUpper(strings.TrimSpace(raw))); err == nil {
		return dt
	}
	return ClassifyDocument(url, raw)
}
