package importer_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"racecrew/import-service/internal/catalog"
	"racecrew/import-service/internal/events"
	"racecrew/import-service/internal/importer"
	"racecrew/import-service/internal/metrics"
	"racecrew/import-service/internal/model"
)

// ── Fixtures ───────────────────────────────────────────────────────────────

type recordedEvent struct {
	channel string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{channel, payload})
	return nil
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func day(y int, m time.Month, d int) *civil.Date {
	return &civil.Date{Year: y, Month: m, Day: d}
}

func candidate(i int, name string, start *civil.Date, docs ...model.CandidateDocument) model.CandidateRecord {
	return model.CandidateRecord{Index: i, Name: name, Location: "Test YC", StartDate: start, Documents: docs}
}

func doc(j int, dt model.DocType, url string, selected bool) model.CandidateDocument {
	return model.CandidateDocument{Index: j, DocType: dt, URL: url, Selected: selected}
}

func newService(cat catalog.Catalog) (*importer.Service, *fakePublisher, *prometheus.Registry) {
	pub := &fakePublisher{}
	reg := prometheus.NewRegistry()
	return importer.NewService(cat, pub, metrics.New(reg), quietLog()), pub, reg
}

// ── Import ─────────────────────────────────────────────────────────────────

func TestImport_CreatesRegatta(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, pub, _ := newService(cat)

	end := day(2026, time.September, 2)
	c := candidate(0, "Test Regatta", day(2026, time.September, 1))
	c.EndDate = end
	c.Notes = "Bring lunch"
	c.LocationURL = "https://testyc.example.com"

	sum, err := svc.Import(ctx, []model.CandidateRecord{c}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Imported != 1 || sum.Skipped != 0 || sum.Documents != 0 {
		t.Errorf("summary = %+v, want 1 imported", sum)
	}

	got := cat.Regattas()
	if len(got) != 1 {
		t.Fatalf("catalog has %d regattas, want 1", len(got))
	}
	r := got[0]
	want := model.Regatta{
		ID:          r.ID,
		Name:        "Test Regatta",
		Location:    "Test YC",
		StartDate:   *day(2026, time.September, 1),
		EndDate:     end,
		Notes:       "Bring lunch",
		LocationURL: "https://testyc.example.com",
		CreatedBy:   "admin-1",
		CreatedAt:   r.CreatedAt,
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("regatta mismatch (-want +got):\n%s", diff)
	}
	if len(sum.RegattaIDs) != 1 || sum.RegattaIDs[0] != r.ID {
		t.Errorf("RegattaIDs = %v, want [%s]", sum.RegattaIDs, r.ID)
	}

	if len(pub.events) != 1 || pub.events[0].channel != events.ChannelScheduleImported {
		t.Errorf("events = %+v, want one %s", pub.events, events.ChannelScheduleImported)
	}
}

func TestImport_SkipsDuplicate(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	cat.Seed(model.Regatta{Name: "Duplicate Test", Location: "Test", StartDate: *day(2026, time.October, 1), CreatedBy: "admin-1"})
	svc, pub, _ := newService(cat)

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "Duplicate Test", day(2026, time.October, 1)),
	}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Skipped != 1 || sum.Imported != 0 {
		t.Errorf("summary = %+v, want 1 skipped, 0 imported", sum)
	}
	if n := len(cat.Regattas()); n != 1 {
		t.Errorf("catalog has %d regattas, want 1", n)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %+v, want none when nothing was imported", pub.events)
	}
}

// Location and end date are not part of the duplicate key; name is exact.
func TestImport_DuplicateKeyIsNameAndStartDate(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	cat.Seed(model.Regatta{Name: "Harbour Cup", Location: "North", StartDate: *day(2026, time.June, 6)})
	svc, _, _ := newService(cat)

	moved := candidate(0, "Harbour Cup", day(2026, time.June, 6))
	moved.Location = "South"
	moved.EndDate = day(2026, time.June, 7)

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		moved,
		candidate(1, "Harbour Cup", day(2026, time.June, 13)),
		candidate(2, "harbour cup", day(2026, time.June, 6)),
	}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Skipped != 1 || sum.Imported != 2 {
		t.Errorf("summary = %+v, want 1 skipped, 2 imported", sum)
	}
}

// Two candidates of one batch with the same key are only checked against
// the catalog, so both are created.
func TestImport_SameKeyWithinBatchBothImported(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "Twin", day(2026, time.July, 1)),
		candidate(1, "Twin", day(2026, time.July, 1)),
	}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Imported != 2 || sum.Skipped != 0 {
		t.Errorf("summary = %+v, want 2 imported", sum)
	}
}

func TestImport_ReRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)
	batch := []model.CandidateRecord{
		candidate(0, "Spring", day(2026, time.April, 4), doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true)),
		candidate(1, "Summer", day(2026, time.July, 4)),
	}

	if _, err := svc.Import(ctx, batch, 0, "admin-1"); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	sum, err := svc.Import(ctx, batch, 0, "admin-1")
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if sum.Imported != 0 || sum.Skipped != 2 || sum.Documents != 0 {
		t.Errorf("re-run summary = %+v, want 2 skipped", sum)
	}
	if len(cat.Regattas()) != 2 || len(cat.Documents()) != 1 {
		t.Errorf("catalog = %d regattas / %d documents, want 2 / 1", len(cat.Regattas()), len(cat.Documents()))
	}
}

func TestImport_AttachesDocuments(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "Doc Import Test", day(2026, time.November, 1),
			doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true),
			doc(1, model.DocWebsite, "https://example.com/regatta", true),
		),
	}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Imported != 1 || sum.Documents != 2 {
		t.Errorf("summary = %+v, want 1 imported, 2 documents", sum)
	}

	regattas, docs := cat.Regattas(), cat.Documents()
	if len(regattas) != 1 || len(docs) != 2 {
		t.Fatalf("catalog = %d regattas / %d documents, want 1 / 2", len(regattas), len(docs))
	}
	for _, d := range docs {
		if d.RegattaID != regattas[0].ID {
			t.Errorf("document %s owned by %s, want %s", d.URL, d.RegattaID, regattas[0].ID)
		}
	}
	if docs[0].DocType != model.DocNoticeOfRace || docs[1].URL != "https://example.com/regatta" {
		t.Errorf("documents not copied verbatim: %+v", docs)
	}
}

func TestImport_PartialDocumentSelection(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "Partial", day(2026, time.November, 8),
			doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true),
			doc(1, model.DocWebsite, "https://example.com/regatta", false),
		),
	}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Documents != 1 || len(cat.Documents()) != 1 {
		t.Errorf("documents = %d (catalog %d), want 1", sum.Documents, len(cat.Documents()))
	}
}

// A storage failure on the second of three candidates leaves no trace.
func TestImport_AtomicBatchFailure(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	reg := prometheus.NewRegistry()
	pub := &fakePublisher{}
	svc := importer.NewService(cat, pub, metrics.New(reg), quietLog())

	storageDown := errors.New("connection reset")
	calls := 0
	cat.BeforeCreateRegatta = func(model.Regatta) error {
		calls++
		if calls == 2 {
			return storageDown
		}
		return nil
	}

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "First", day(2026, time.May, 1), doc(0, model.DocNoticeOfRace, "https://example.com/1.pdf", true)),
		candidate(1, "Second", day(2026, time.May, 2)),
		candidate(2, "Third", day(2026, time.May, 3)),
	}, 0, "admin-1")

	if !errors.Is(err, storageDown) {
		t.Fatalf("Import err = %v, want wrapped storage error", err)
	}
	if diff := cmp.Diff(importer.Summary{}, sum); diff != "" {
		t.Errorf("partial summary returned (-want +got):\n%s", diff)
	}
	if n := len(cat.Regattas()); n != 0 {
		t.Errorf("catalog has %d regattas after failed batch, want 0", n)
	}
	if n := len(cat.Documents()); n != 0 {
		t.Errorf("catalog has %d documents after failed batch, want 0", n)
	}
	if len(pub.events) != 0 {
		t.Errorf("events published for failed batch: %+v", pub.events)
	}
	want := `
# HELP regatta_import_commit_failures_total Import transactions rolled back on storage failure.
# TYPE regatta_import_commit_failures_total counter
regatta_import_commit_failures_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "regatta_import_commit_failures_total"); err != nil {
		t.Errorf("commit failure metric: %v", err)
	}
}

func TestImport_DocumentFailureRollsBackRegatta(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)
	cat.BeforeCreateDocument = func(model.Document) error { return errors.New("disk full") }

	_, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "Doc Fail", day(2026, time.May, 1), doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true)),
	}, 0, "admin-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := len(cat.Regattas()); n != 0 {
		t.Errorf("orphan-free rollback expected, catalog has %d regattas", n)
	}
}

// A unique violation raised by the catalog is a skip, not a failure.
func TestImport_CatalogDuplicateKeyIsSkip(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)
	cat.BeforeCreateRegatta = func(r model.Regatta) error {
		if r.Name == "Raced" {
			return catalog.ErrDuplicateKey
		}
		return nil
	}

	sum, err := svc.Import(ctx, []model.CandidateRecord{
		candidate(0, "Raced", day(2026, time.August, 1), doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true)),
		candidate(1, "Clean", day(2026, time.August, 2)),
	}, 0, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Imported != 1 || sum.Skipped != 1 || sum.Documents != 0 {
		t.Errorf("summary = %+v, want 1 imported, 1 skipped, 0 documents", sum)
	}
}

func TestImport_CarriesInvalidCount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(catalog.NewMemory())
	sum, err := svc.Import(ctx, nil, 3, "admin-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Invalid != 3 || sum.Imported != 0 {
		t.Errorf("summary = %+v, want 3 invalid", sum)
	}
}

func TestImport_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)
	names := []string{"Charlie", "Alpha", "Bravo"}
	var batch []model.CandidateRecord
	for i, n := range names {
		batch = append(batch, candidate(i, n, day(2026, time.March, i+1)))
	}
	if _, err := svc.Import(ctx, batch, 0, "admin-1"); err != nil {
		t.Fatalf("Import: %v", err)
	}
	var got []string
	for _, r := range cat.Regattas() {
		got = append(got, r.Name)
	}
	if diff := cmp.Diff(names, got); diff != "" {
		t.Errorf("creation order mismatch (-want +got):\n%s", diff)
	}
}

// Racing double-submits of the same batch create the regatta once.
func TestImport_ConcurrentCommitsSameKey(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)
	batch := []model.CandidateRecord{candidate(0, "Race Day", day(2026, time.September, 19))}

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		imported int
		skipped  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sum, err := svc.Import(ctx, batch, 0, "admin-1")
			if err != nil {
				t.Errorf("Import: %v", err)
				return
			}
			mu.Lock()
			imported += sum.Imported
			skipped += sum.Skipped
			mu.Unlock()
		}()
	}
	wg.Wait()

	if imported != 1 || skipped != n-1 {
		t.Errorf("imported=%d skipped=%d, want 1 and %d", imported, skipped, n-1)
	}
	if got := len(cat.Regattas()); got != 1 {
		t.Errorf("catalog has %d regattas, want 1", got)
	}
}

// ── AttachDocuments ────────────────────────────────────────────────────────

func TestAttachDocuments(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, pub, _ := newService(cat)
	r := cat.Seed(model.Regatta{Name: "Existing", StartDate: *day(2026, time.October, 3)})

	atts := []model.DocumentAttachment{
		{RegattaID: r.ID, Documents: []model.CandidateDocument{
			doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true),
			doc(1, model.DocSailingInstructions, "https://example.com/si.pdf", true),
			doc(2, model.DocResults, "https://example.com/results", false),
		}},
		{RegattaID: "deleted-regatta", Documents: []model.CandidateDocument{
			doc(0, model.DocWebsite, "https://example.com/gone", true),
		}},
	}

	sum, err := svc.AttachDocuments(ctx, atts, "admin-1")
	if err != nil {
		t.Fatalf("AttachDocuments: %v", err)
	}
	if diff := cmp.Diff(importer.AttachSummary{Attached: 2, Missing: 1}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if len(pub.events) != 1 || pub.events[0].channel != events.ChannelDocumentsAttached {
		t.Errorf("events = %+v", pub.events)
	}

	// Re-submitting attaches nothing new.
	sum, err = svc.AttachDocuments(ctx, atts, "admin-1")
	if err != nil {
		t.Fatalf("second AttachDocuments: %v", err)
	}
	if sum.Attached != 0 || sum.Duplicates != 2 {
		t.Errorf("re-run summary = %+v, want 2 duplicates", sum)
	}
	if n := len(cat.Documents()); n != 2 {
		t.Errorf("catalog has %d documents, want 2", n)
	}
}

// lockSpy records the regatta locks taken inside each transaction.
type lockSpy struct {
	catalog.Catalog
	locked [][]string
}

type lockSpyTx struct {
	catalog.Tx
	spy *lockSpy
}

func (s *lockSpy) WithinTx(ctx context.Context, fn func(catalog.Tx) error) error {
	return s.Catalog.WithinTx(ctx, func(tx catalog.Tx) error {
		return fn(lockSpyTx{Tx: tx, spy: s})
	})
}

func (t lockSpyTx) LockRegattas(ctx context.Context, ids []string) error {
	t.spy.locked = append(t.spy.locked, ids)
	return t.Tx.LockRegattas(ctx, ids)
}

func (t lockSpyTx) CreateDocument(ctx context.Context, d *model.Document) error {
	if len(t.spy.locked) == 0 {
		return errors.New("document created before regatta lock")
	}
	return t.Tx.CreateDocument(ctx, d)
}

func TestAttachDocuments_LocksRegattasFirst(t *testing.T) {
	ctx := context.Background()
	mem := catalog.NewMemory()
	a := mem.Seed(model.Regatta{Name: "A", StartDate: *day(2026, time.October, 3)})
	b := mem.Seed(model.Regatta{Name: "B", StartDate: *day(2026, time.October, 4)})
	spy := &lockSpy{Catalog: mem}
	svc, _, _ := newService(spy)

	sum, err := svc.AttachDocuments(ctx, []model.DocumentAttachment{
		{RegattaID: b.ID, Documents: []model.CandidateDocument{doc(0, model.DocWebsite, "https://example.com/b", true)}},
		{RegattaID: a.ID, Documents: []model.CandidateDocument{doc(0, model.DocWebsite, "https://example.com/a", true)}},
	}, "admin-1")
	if err != nil {
		t.Fatalf("AttachDocuments: %v", err)
	}
	if sum.Attached != 2 {
		t.Errorf("attached = %d, want 2", sum.Attached)
	}
	if diff := cmp.Diff([][]string{{b.ID, a.ID}}, spy.locked); diff != "" {
		t.Errorf("locks mismatch (-want +got):\n%s", diff)
	}
}

func TestAttachDocuments_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemory()
	svc, _, _ := newService(cat)
	r := cat.Seed(model.Regatta{Name: "Existing", StartDate: *day(2026, time.October, 3)})

	calls := 0
	cat.BeforeCreateDocument = func(model.Document) error {
		calls++
		if calls == 2 {
			return errors.New("timeout")
		}
		return nil
	}

	_, err := svc.AttachDocuments(ctx, []model.DocumentAttachment{{RegattaID: r.ID, Documents: []model.CandidateDocument{
		doc(0, model.DocNoticeOfRace, "https://example.com/nor.pdf", true),
		doc(1, model.DocWebsite, "https://example.com/www", true),
	}}}, "admin-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := len(cat.Documents()); n != 0 {
		t.Errorf("catalog has %d documents, want 0", n)
	}
}
