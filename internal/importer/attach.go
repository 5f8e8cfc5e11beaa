package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"racecrew/import-service/internal/catalog"
	"racecrew/import-service/internal/events"
	"racecrew/import-service/internal/model"
)

// AttachSummary reports the outcome of attaching discovered documents.
type AttachSummary struct {
	Attached   int // documents created
	Duplicates int // documents whose URL was already attached to the regatta
	Missing    int // regattas that no longer exist
}

// AttachDocuments attaches the selected documents of each attachment to
// its existing regatta in one transaction. A URL already attached to the
// same regatta is not attached twice.
func (s *Service) AttachDocuments(ctx context.Context, attachments []model.DocumentAttachment, operatorID string) (AttachSummary, error) {
	var (
		sum     AttachSummary
		touched []string
	)
	err := s.catalog.WithinTx(ctx, func(tx catalog.Tx) error {
		sum, touched = AttachSummary{}, nil

		// Racing attaches to one regatta must see each other's rows.
		ids := make([]string, 0, len(attachments))
		for _, a := range attachments {
			ids = append(ids, a.RegattaID)
		}
		if err := tx.LockRegattas(ctx, ids); err != nil {
			return err
		}

		for _, a := range attachments {
			if _, err := tx.GetRegatta(ctx, a.RegattaID); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					sum.Missing++
					continue
				}
				return err
			}

			attached := 0
			for _, d := range a.Documents {
				if !d.Selected {
					continue
				}
				exists, err := tx.DocumentExists(ctx, a.RegattaID, d.URL)
				if err != nil {
					return err
				}
				if exists {
					sum.Duplicates++
					continue
				}
				doc := model.Document{RegattaID: a.RegattaID, DocType: d.DocType, URL: d.URL}
				if err := tx.CreateDocument(ctx, &doc); err != nil {
					return fmt.Errorf("create document %s: %w", d.URL, err)
				}
				attached++
			}
			if attached > 0 {
				touched = append(touched, a.RegattaID)
			}
			sum.Attached += attached
		}
		return nil
	})
	if err != nil {
		s.metrics.CommitFailed()
		s.log.WithError(err).WithField("operator", operatorID).Error("document attachment rolled back")
		return AttachSummary{}, fmt.Errorf("attach documents: %w", err)
	}

	s.metrics.ObserveDocuments(sum.Attached)
	s.log.WithFields(logrus.Fields{
		"operator":   operatorID,
		"attached":   sum.Attached,
		"duplicates": sum.Duplicates,
		"missing":    sum.Missing,
	}).Info("discovered documents attached")

	if sum.Attached > 0 {
		err := s.events.Publish(ctx, events.ChannelDocumentsAttached, events.DocumentsAttached{
			Type:       events.ChannelDocumentsAttached,
			OperatorID: operatorID,
			RegattaIDs: touched,
			Attached:   sum.Attached,
		})
		if err != nil {
			s.log.WithError(err).Warn("publish failed")
		}
	}
	return sum, nil
}
