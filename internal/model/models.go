// Package model defines the candidate and catalog types shared across the
// import pipeline.
package model

import (
	"time"

	"github.com/golang-sql/civil"
)

// CandidateRecord is one extracted regatta awaiting operator review.
// Index is its position in the task's candidate list and keys the form
// fields across the preview/confirm round trip.
type CandidateRecord struct {
	Index       int                 `json:"index"`
	Name        string              `json:"name"`
	Location    string              `json:"location"`
	StartDate   *civil.Date         `json:"start_date,omitempty"`
	EndDate     *civil.Date         `json:"end_date,omitempty"` // nil: single-day event
	Notes       string              `json:"notes,omitempty"`
	LocationURL string              `json:"location_url,omitempty"`
	Documents   []CandidateDocument `json:"documents,omitempty"`
}

// SelectedDocuments returns the documents the operator chose to attach.
func (c CandidateRecord) SelectedDocuments() []CandidateDocument {
	out := make([]CandidateDocument, 0, len(c.Documents))
	for _, d := range c.Documents {
		if d.Selected {
			out = append(out, d)
		}
	}
	return out
}

// CandidateDocument is a document discovered for a candidate or an existing regatta.
type CandidateDocument struct {
	Index    int     `json:"index"`
	DocType  DocType `json:"doc_type"`
	URL      string  `json:"url"`
	Selected bool    `json:"selected"`
}

// DiscoveredRegatta carries documents found for a regatta that already
// exists in the catalog. It is the payload of a document-discovery task.
type DiscoveredRegatta struct {
	Index     int                 `json:"index"`
	RegattaID string              `json:"regatta_id"`
	Name      string              `json:"name"`
	StartDate *civil.Date         `json:"start_date,omitempty"`
	Documents []CandidateDocument `json:"documents,omitempty"`
}

// DocumentAttachment is a decoded request to attach documents to an
// existing regatta.
type DocumentAttachment struct {
	RegattaID string
	Documents []CandidateDocument
}

// Regatta mirrors a row of the regattas table.
type Regatta struct {
	ID          string
	Name        string
	Location    string
	StartDate   civil.Date
	EndDate     *civil.Date
	Notes       string
	LocationURL string
	CreatedBy   string
	CreatedAt   time.Time
}

// Document mirrors a row of the documents table.
type Document struct {
	ID        string
	RegattaID string
	DocType   DocType
	URL       string
	CreatedAt time.Time
}

// DuplicateKey identifies an already-imported regatta.
type DuplicateKey struct {
	Name      string
	StartDate civil.Date
}

// String renders the key as used for advisory locking.
func (k DuplicateKey) String() string {
	return k.Name + "\x00" + k.StartDate.String()
}

// KeyOf returns the duplicate key of an importable candidate.
// Callers must only pass candidates with a start date.
func KeyOf(c CandidateRecord) DuplicateKey {
	return DuplicateKey{Name: c.Name, StartDate: *c.StartDate}
}
