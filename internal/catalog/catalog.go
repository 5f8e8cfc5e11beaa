// Package catalog is the persistent regatta catalog the import pipeline
// writes into. All writes happen inside a transaction obtained from
// Catalog.WithinTx.
package catalog

import (
	"context"
	"errors"

	"github.com/golang-sql/civil"

	"racecrew/import-service/internal/model"
)

var (
	// ErrDuplicateKey is returned by CreateRegatta when the catalog itself
	// rejects the row as a duplicate (unique violation). The transaction
	// remains usable.
	ErrDuplicateKey = errors.New("regatta already exists")
	// ErrNotFound is returned for unknown regatta ids.
	ErrNotFound = errors.New("regatta not found")
)

// Catalog opens units of work against the catalog.
type Catalog interface {
	// WithinTx runs fn in one transaction. It commits when fn returns nil
	// and rolls back otherwise; fn's error is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Finder answers duplicate-key lookups.
type Finder interface {
	RegattaExists(ctx context.Context, name string, startDate civil.Date) (bool, error)
}

// Tx is the set of catalog operations available inside a transaction.
type Tx interface {
	Finder

	// LockKeys blocks until this transaction holds exclusive locks on all
	// keys. Locks are released at commit or rollback.
	LockKeys(ctx context.Context, keys []model.DuplicateKey) error
	// LockRegattas blocks until this transaction holds the exclusive
	// document locks of all regatta ids. Released at commit or rollback.
	LockRegattas(ctx context.Context, ids []string) error

	// CreateRegatta inserts r, filling in ID and CreatedAt.
	CreateRegatta(ctx context.Context, r *model.Regatta) error
	// CreateDocument inserts d, filling in ID and CreatedAt.
	CreateDocument(ctx context.Context, d *model.Document) error

	GetRegatta(ctx context.Context, id string) (*model.Regatta, error)
	DocumentExists(ctx context.Context, regattaID, url string) (bool, error)
}
