package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"racecrew/import-service/internal/model"
)

// Memory is an in-process Catalog. Transactions are serialized and work on
// a private copy that replaces the committed state only when fn succeeds.
// It backs tests and local runs without Postgres.
type Memory struct {
	mu        sync.Mutex
	regattas  []model.Regatta
	documents []model.Document

	// Optional fault injection, called before each insert. A non-nil error
	// is returned from the insert as-is.
	BeforeCreateRegatta  func(r model.Regatta) error
	BeforeCreateDocument func(d model.Document) error
}

// NewMemory returns an empty Memory catalog.
func NewMemory() *Memory {
	return &Memory{}
}

// WithinTx implements Catalog.
func (m *Memory) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		m:         m,
		regattas:  slices.Clone(m.regattas),
		documents: slices.Clone(m.documents),
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.regattas = tx.regattas
	m.documents = tx.documents
	return nil
}

// Seed inserts a committed regatta outside any transaction and returns it
// with ID and CreatedAt set.
func (m *Memory) Seed(r model.Regatta) model.Regatta {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	m.regattas = append(m.regattas, r)
	return r
}

// Regattas returns a snapshot of the committed regattas in insertion order.
func (m *Memory) Regattas() []model.Regatta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.regattas)
}

// Documents returns a snapshot of the committed documents in insertion order.
func (m *Memory) Documents() []model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.documents)
}

type memTx struct {
	m         *Memory
	regattas  []model.Regatta
	documents []model.Document
}

// LockKeys is a no-op: Memory transactions already run one at a time.
func (t *memTx) LockKeys(context.Context, []model.DuplicateKey) error { return nil }

// LockRegattas is a no-op for the same reason.
func (t *memTx) LockRegattas(context.Context, []string) error { return nil }

func (t *memTx) RegattaExists(_ context.Context, name string, startDate civil.Date) (bool, error) {
	for _, r := range t.regattas {
		if r.Name == name && r.StartDate == startDate {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateRegatta(_ context.Context, r *model.Regatta) error {
	if hook := t.m.BeforeCreateRegatta; hook != nil {
		if err := hook(*r); err != nil {
			return err
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	t.regattas = append(t.regattas, *r)
	return nil
}

func (t *memTx) CreateDocument(_ context.Context, d *model.Document) error {
	if hook := t.m.BeforeCreateDocument; hook != nil {
		if err := hook(*d); err != nil {
			return err
		}
	}
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	t.documents = append(t.documents, *d)
	return nil
}

func (t *memTx) GetRegatta(_ context.Context, id string) (*model.Regatta, error) {
	for _, r := range t.regattas {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) DocumentExists(_ context.Context, regattaID, url string) (bool, error) {
	for _, d := range t.documents {
		if d.RegattaID == regattaID && d.URL == url {
			return true, nil
		}
	}
	return false, nil
}
