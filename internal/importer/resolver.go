// Package importer turns reviewed candidate records into catalog rows.
//
// An import is one catalog transaction: lock the duplicate keys of the
// batch, resolve every candidate against the catalog as it stood when the
// locks were granted, then create the non-duplicates and their documents.
package importer

import (
	"context"
	"fmt"

	"racecrew/import-service/internal/catalog"
	"racecrew/import-service/internal/model"
)

// Resolver decides whether a candidate is already in the catalog.
//
// The duplicate key is (exact name, start date). Location and end date are
// not part of it.
type Resolver struct{}

// IsDuplicate reports whether an existing regatta shares c's duplicate key.
// c must have a start date.
func (Resolver) IsDuplicate(ctx context.Context, finder catalog.Finder, c model.CandidateRecord) (bool, error) {
	k := model.KeyOf(c)
	exists, err := finder.RegattaExists(ctx, k.Name, k.StartDate)
	if err != nil {
		return false, fmt.Errorf("resolve %q: %w", c.Name, err)
	}
	return exists, nil
}

// Partition resolves every candidate before anything is written, so two
// candidates of one batch sharing a key are both judged against the catalog
// only and both survive.
func (r Resolver) Partition(ctx context.Context, finder catalog.Finder, candidates []model.CandidateRecord) (fresh []model.CandidateRecord, duplicates int, err error) {
	fresh = make([]model.CandidateRecord, 0, len(candidates))
	for _, c := range candidates {
		dup, err := r.IsDuplicate(ctx, finder, c)
		if err != nil {
			return nil, 0, err
		}
		if dup {
			duplicates++
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, duplicates, nil
}
