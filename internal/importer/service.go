package importer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"racecrew/import-service/internal/catalog"
	"racecrew/import-service/internal/events"
	"racecrew/import-service/internal/metrics"
	"racecrew/import-service/internal/model"
)

// Service runs imports and document attachments against the catalog.
type Service struct {
	catalog   catalog.Catalog
	resolver  Resolver
	committer Committer
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *logrus.Entry
}

// NewService returns a configured Service. pub and m may be nil.
func NewService(cat catalog.Catalog, pub events.Publisher, m *metrics.Metrics, log *logrus.Entry) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{catalog: cat, events: pub, metrics: m, log: log}
}

// Import persists the non-duplicate subset of candidates for operatorID in
// a single transaction. invalid is the number of selected records the
// caller already excluded and is only carried into the summary.
//
// On a storage failure nothing of the batch is persisted and no summary is
// returned.
func (s *Service) Import(ctx context.Context, candidates []model.CandidateRecord, invalid int, operatorID string) (Summary, error) {
	var sum Summary
	err := s.catalog.WithinTx(ctx, func(tx catalog.Tx) error {
		keys := make([]model.DuplicateKey, 0, len(candidates))
		for _, c := range candidates {
			keys = append(keys, model.KeyOf(c))
		}
		if err := tx.LockKeys(ctx, keys); err != nil {
			return err
		}

		fresh, duplicates, err := s.resolver.Partition(ctx, tx, candidates)
		if err != nil {
			return err
		}

		sum, err = s.committer.Commit(ctx, tx, fresh, operatorID)
		if err != nil {
			return err
		}
		sum.Skipped += duplicates
		return nil
	})
	if err != nil {
		s.metrics.CommitFailed()
		s.log.WithError(err).WithField("operator", operatorID).Error("import rolled back")
		return Summary{}, fmt.Errorf("import: %w", err)
	}
	sum.Invalid = invalid

	s.metrics.ObserveImport(sum.Imported, sum.Skipped, sum.Invalid, sum.Documents)
	s.log.WithFields(logrus.Fields{
		"operator":  operatorID,
		"imported":  sum.Imported,
		"skipped":   sum.Skipped,
		"invalid":   sum.Invalid,
		"documents": sum.Documents,
	}).Info("schedule import committed")

	if sum.Imported > 0 {
		// Publish event for SSE (non-fatal)
		err := s.events.Publish(ctx, events.ChannelScheduleImported, events.ScheduleImported{
			Type:       events.ChannelScheduleImported,
			OperatorID: operatorID,
			RegattaIDs: sum.RegattaIDs,
			Imported:   sum.Imported,
			Skipped:    sum.Skipped,
			Documents:  sum.Documents,
		})
		if err != nil {
			s.log.WithError(err).Warn("publish failed")
		}
	}
	return sum, nil
}
