// Package review implements the operator-facing review step of a schedule
// import.
//
// All routes require an admin identity forwarded by the Gateway.
//
// Routes (relative to BasePath):
//
//	GET  /                     → entry page, drains flash messages
//	GET  /preview?task_id=     → extracted candidates + preview form
//	POST /confirm              → import the selected candidates
//	GET  /documents?task_id=   → discovered documents for existing regattas
//	POST /documents/confirm    → attach the selected documents
package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"racecrew/import-service/internal/formcodec"
	"racecrew/import-service/internal/importer"
	"racecrew/import-service/internal/metrics"
	"racecrew/import-service/internal/model"
	"racecrew/import-service/internal/taskstore"
)

// BasePath is where the review routes are mounted.
const BasePath = "/admin/import-schedule"

// User-facing messages.
const (
	MsgScheduleNotFound  = "Extraction results not found."
	MsgDocumentsNotFound = "Document discovery results not found."
	MsgNoRegattas        = "No regattas selected."
	MsgNoDocuments       = "No documents selected."
	MsgImportFailed      = "Import failed. No regattas were saved."
	MsgAttachFailed      = "Attaching documents failed. No documents were saved."
)

// Importer is the commit side of the review step.
type Importer interface {
	Import(ctx context.Context, candidates []model.CandidateRecord, invalid int, operatorID string) (importer.Summary, error)
	AttachDocuments(ctx context.Context, attachments []model.DocumentAttachment, operatorID string) (importer.AttachSummary, error)
}

// ─── Page data ───────────────────────────────────────────────────────────────

// PreviewData is the payload of the preview page.
type PreviewData struct {
	TaskID     string                  `json:"task_id"`
	Action     string                  `json:"action"`
	Candidates []model.CandidateRecord `json:"candidates"`
	Form       url.Values              `json:"form"`
}

// DocumentsData is the payload of the document review page.
type DocumentsData struct {
	TaskID   string                    `json:"task_id"`
	Action   string                    `json:"action"`
	Regattas []model.DiscoveredRegatta `json:"regattas"`
	Form     url.Values                `json:"form"`
}

// EntryData lists the document types an operator may pick.
type EntryData struct {
	DocTypes []DocTypeOption `json:"doc_types"`
}

// DocTypeOption is one selectable document type.
type DocTypeOption struct {
	Code  model.DocType `json:"code"`
	Label string        `json:"label"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	schedules   taskstore.Store[[]model.CandidateRecord]
	discoveries taskstore.Store[[]model.DiscoveredRegatta]
	importer    Importer
	resp        Responder
	metrics     *metrics.Metrics
	log         *logrus.Entry
}

// NewHandler returns a configured Handler. resp, m and log may be nil.
func NewHandler(
	schedules taskstore.Store[[]model.CandidateRecord],
	discoveries taskstore.Store[[]model.DiscoveredRegatta],
	imp Importer,
	resp Responder,
	m *metrics.Metrics,
	log *logrus.Entry,
) *Handler {
	if resp == nil {
		resp = NewJSONResponder(BasePath)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		schedules:   schedules,
		discoveries: discoveries,
		importer:    imp,
		resp:        resp,
		metrics:     m,
		log:         log,
	}
}

// Routes returns the review router, to be mounted at BasePath.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireAdmin(h.resp))
	r.Get("/", h.entry)
	r.Get("/preview", h.preview)
	r.Post("/confirm", h.confirm)
	r.Get("/documents", h.documents)
	r.Post("/documents/confirm", h.confirmDocuments)
	return r
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) {
	opts := make([]DocTypeOption, 0, len(model.AllDocTypes))
	for _, dt := range model.AllDocTypes {
		opts = append(opts, DocTypeOption{Code: dt, Label: dt.Label()})
	}
	h.resp.Render(w, r, Page{Title: "Import Schedule", Data: EntryData{DocTypes: opts}})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	candidates, err := h.schedules.Get(r.Context(), taskID)
	h.metrics.TaskLookup(taskstore.KindSchedule, err == nil)
	if err != nil {
		h.lookupFailed(w, r, err, taskID, MsgScheduleNotFound)
		return
	}

	h.resp.Render(w, r, Page{
		Title: "Review Extracted Regattas",
		Data: PreviewData{
			TaskID:     taskID,
			Action:     BasePath + "/confirm",
			Candidates: candidates,
			Form:       formcodec.Encode(candidates),
		},
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	op, _ := OperatorFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.resp.Redirect(w, r, BasePath, Flash{Failure, "Could not read the submitted form."})
		return
	}
	if len(formcodec.SelectedIndices(r.PostForm)) == 0 {
		h.resp.Redirect(w, r, BasePath, Flash{Warning, MsgNoRegattas})
		return
	}

	res := formcodec.Decode(r.PostForm)
	for _, s := range res.Skipped {
		h.log.WithFields(logrus.Fields{"index": s.Index, "reason": s.Reason}).Debug("selected record skipped")
	}

	sum, err := h.importer.Import(r.Context(), res.Candidates, len(res.Skipped), op.ID)
	if err != nil {
		h.resp.Redirect(w, r, BasePath, Flash{Failure, MsgImportFailed})
		return
	}
	h.resp.Redirect(w, r, BasePath, importFlashes(sum)...)
}

func (h *Handler) documents(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	found, err := h.discoveries.Get(r.Context(), taskID)
	h.metrics.TaskLookup(taskstore.KindDocuments, err == nil)
	if err != nil {
		h.lookupFailed(w, r, err, taskID, MsgDocumentsNotFound)
		return
	}

	h.resp.Render(w, r, Page{
		Title: "Review Discovered Documents",
		Data: DocumentsData{
			TaskID:   taskID,
			Action:   BasePath + "/documents/confirm",
			Regattas: found,
			Form:     formcodec.EncodeDiscoveries(found),
		},
	})
}

func (h *Handler) confirmDocuments(w http.ResponseWriter, r *http.Request) {
	op, _ := OperatorFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.resp.Redirect(w, r, BasePath, Flash{Failure, "Could not read the submitted form."})
		return
	}

	res := formcodec.DecodeAttachments(r.PostForm)
	if len(res.Attachments) == 0 {
		h.resp.Redirect(w, r, BasePath, Flash{Warning, MsgNoDocuments})
		return
	}

	sum, err := h.importer.AttachDocuments(r.Context(), res.Attachments, op.ID)
	if err != nil {
		h.resp.Redirect(w, r, BasePath, Flash{Failure, MsgAttachFailed})
		return
	}
	h.resp.Redirect(w, r, BasePath, attachFlashes(sum)...)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// lookupFailed redirects to the entry page. Unknown and expired ids are
// routine; anything else is a store outage and is logged.
func (h *Handler) lookupFailed(w http.ResponseWriter, r *http.Request, err error, taskID, msg string) {
	if !errors.Is(err, taskstore.ErrNotFound) {
		h.log.WithError(err).WithField("task_id", taskID).Error("task store lookup failed")
	}
	h.resp.Redirect(w, r, BasePath, Flash{Warning, msg})
}

func importFlashes(sum importer.Summary) []Flash {
	out := []Flash{{Success, fmt.Sprintf("Successfully imported %d regatta(s).", sum.Imported)}}
	if sum.Skipped > 0 {
		out = append(out, Flash{Info, fmt.Sprintf("Skipped %d regatta(s) that already exist.", sum.Skipped)})
	}
	if sum.Documents > 0 {
		out = append(out, Flash{Success, fmt.Sprintf("%d document(s) attached.", sum.Documents)})
	}
	if sum.Invalid > 0 {
		out = append(out, Flash{Warning, fmt.Sprintf("Skipped %d regatta(s) with missing data.", sum.Invalid)})
	}
	return out
}

func attachFlashes(sum importer.AttachSummary) []Flash {
	out := []Flash{{Success, fmt.Sprintf("%d document(s) attached.", sum.Attached)}}
	if sum.Duplicates > 0 {
		out = append(out, Flash{Info, fmt.Sprintf("Skipped %d document(s) already attached.", sum.Duplicates)})
	}
	if sum.Missing > 0 {
		out = append(out, Flash{Warning, fmt.Sprintf("Skipped %d regatta(s) that no longer exist.", sum.Missing)})
	}
	return out
}
