package importer

import (
	"context"
	"errors"
	"fmt"

	"racecrew/import-service/internal/catalog"
	"racecrew/import-service/internal/model"
)

// Summary reports the outcome of one import.
type Summary struct {
	Imported  int // regattas created
	Skipped   int // duplicates of existing regattas
	Documents int // documents attached across all created regattas
	Invalid   int // selected records excluded for missing or bad data

	RegattaIDs []string // ids of the created regattas, in creation order
}

// Committer persists candidates that the Resolver judged new.
type Committer struct{}

// Commit creates, in order, one regatta per candidate owned by operatorID,
// followed by one document per selected candidate document. Any storage
// error is returned immediately; the caller's transaction then rolls back.
// A regatta rejected by the catalog as a duplicate key is counted as
// skipped instead.
func (Committer) Commit(ctx context.Context, tx catalog.Tx, candidates []model.CandidateRecord, operatorID string) (Summary, error) {
	var sum Summary
	for _, c := range candidates {
		r := model.Regatta{
			Name:        c.Name,
			Location:    c.Location,
			StartDate:   *c.StartDate,
			EndDate:     c.EndDate,
			Notes:       c.Notes,
			LocationURL: c.LocationURL,
			CreatedBy:   operatorID,
		}
		err := tx.CreateRegatta(ctx, &r)
		if errors.Is(err, catalog.ErrDuplicateKey) {
			sum.Skipped++
			continue
		}
		if err != nil {
			return Summary{}, fmt.Errorf("create regatta %q: %w", c.Name, err)
		}
		sum.Imported++
		sum.RegattaIDs = append(sum.RegattaIDs, r.ID)

		for _, d := range c.SelectedDocuments() {
			doc := model.Document{RegattaID: r.ID, DocType: d.DocType, URL: d.URL}
			if err := tx.CreateDocument(ctx, &doc); err != nil {
				return Summary{}, fmt.Errorf("create document %s for %q: %w", d.URL, c.Name, err)
			}
			sum.Documents++
		}
	}
	return sum, nil
}
