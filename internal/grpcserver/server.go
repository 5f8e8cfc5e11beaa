// Package grpcserver implements the staging gRPC service through which the
// external extractor hands over extraction results.
//
// It handles only transport concerns: payload decoding, task id
// assignment, error mapping and conversion into candidate records. The
// results land in the task stores read by the review step.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"racecrew/import-service/internal/metrics"
	"racecrew/import-service/internal/model"
	"racecrew/import-service/internal/taskstore"
)

// ─── Payload ──────────────────────────────────────────────────────────────────

// Payload is the request shape of both staging methods:
//
//	{
//	  "task_id": "optional, generated when empty",
//	  "regattas": [{
//	    "regatta_id": "documents only",
//	    "name": "...", "location": "...",
//	    "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD",
//	    "notes": "...", "location_url": "...",
//	    "documents": [{"doc_type": "NOR", "url": "...", "label": "..."}]
//	  }]
//	}
type Payload struct {
	TaskID   string          `json:"task_id" yaml:"task_id"`
	Regattas []StagedRegatta `json:"regattas" yaml:"regattas"`
}

// StagedRegatta is one extracted regatta.
type StagedRegatta struct {
	RegattaID   string           `json:"regatta_id,omitempty" yaml:"regatta_id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Location    string           `json:"location,omitempty" yaml:"location,omitempty"`
	StartDate   string           `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate     string           `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Notes       string           `json:"notes,omitempty" yaml:"notes,omitempty"`
	LocationURL string           `json:"location_url,omitempty" yaml:"location_url,omitempty"`
	Documents   []StagedDocument `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// StagedDocument is one document link found by the extractor.
type StagedDocument struct {
	DocType string `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	URL     string `json:"url" yaml:"url"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// ValidationError is returned for a malformed payload.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ─── Server ───────────────────────────────────────────────────────────────────

// Server implements StagingServer.
type Server struct {
	schedules   taskstore.Store[[]model.CandidateRecord]
	discoveries taskstore.Store[[]model.DiscoveredRegatta]
	metrics     *metrics.Metrics
	log         *logrus.Entry
	newID       func() string
}

// NewServer constructs a Server writing into the given stores. m and log may be nil.
func NewServer(
	schedules taskstore.Store[[]model.CandidateRecord],
	discoveries taskstore.Store[[]model.DiscoveredRegatta],
	m *metrics.Metrics,
	log *logrus.Entry,
) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		schedules:   schedules,
		discoveries: discoveries,
		metrics:     m,
		log:         log,
		newID:       uuid.NewString,
	}
}

// StageSchedule stores the extracted regattas as candidate records and
// returns {"task_id", "count"}.
func (s *Server) StageSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := decodePayload(in)
	if err != nil {
		return nil, toGRPCError(err)
	}
	candidates := ToCandidates(p.Regattas)

	taskID := s.taskID(p)
	if err := s.schedules.Put(ctx, taskID, candidates); err != nil {
		s.log.WithError(err).WithField("task_id", taskID).Warn("stage schedule failed")
		return nil, toGRPCError(err)
	}
	s.metrics.TaskStaged(taskstore.KindSchedule)
	s.log.WithFields(logrus.Fields{"task_id": taskID, "count": len(candidates)}).Info("schedule staged")
	return stagedResponse(taskID, len(candidates))
}

// StageDocuments stores documents discovered for existing regattas and
// returns {"task_id", "count"}. Every regatta must carry a regatta_id.
func (s *Server) StageDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := decodePayload(in)
	if err != nil {
		return nil, toGRPCError(err)
	}
	found, err := ToDiscoveries(p.Regattas)
	if err != nil {
		return nil, toGRPCError(err)
	}

	taskID := s.taskID(p)
	if err := s.discoveries.Put(ctx, taskID, found); err != nil {
		s.log.WithError(err).WithField("task_id", taskID).Warn("stage documents failed")
		return nil, toGRPCError(err)
	}
	s.metrics.TaskStaged(taskstore.KindDocuments)
	s.log.WithFields(logrus.Fields{"task_id": taskID, "count": len(found)}).Info("documents staged")
	return stagedResponse(taskID, len(found))
}

func (s *Server) taskID(p *Payload) string {
	if id := strings.TrimSpace(p.TaskID); id != "" {
		return id
	}
	return s.newID()
}

// ─── Conversion ───────────────────────────────────────────────────────────────

// ToCandidates converts staged regattas into candidate records indexed by
// position. Unparsable dates are left empty for the operator to fill in.
func ToCandidates(regattas []StagedRegatta) []model.CandidateRecord {
	out := make([]model.CandidateRecord, 0, len(regattas))
	for i, r := range regattas {
		out = append(out, model.CandidateRecord{
			Index:       i,
			Name:        strings.TrimSpace(r.Name),
			Location:    strings.TrimSpace(r.Location),
			StartDate:   parseDate(r.StartDate),
			EndDate:     parseDate(r.EndDate),
			Notes:       strings.TrimSpace(r.Notes),
			LocationURL: strings.TrimSpace(r.LocationURL),
			Documents:   toDocuments(r.Documents),
		})
	}
	return out
}

// ToDiscoveries converts staged regattas into document-discovery results.
func ToDiscoveries(regattas []StagedRegatta) ([]model.DiscoveredRegatta, error) {
	out := make([]model.DiscoveredRegatta, 0, len(regattas))
	for i, r := range regattas {
		id := strings.TrimSpace(r.RegattaID)
		if id == "" {
			return nil, &ValidationError{Msg: fmt.Sprintf("regattas[%d]: regatta_id is required", i)}
		}
		out = append(out, model.DiscoveredRegatta{
			Index:     i,
			RegattaID: id,
			Name:      strings.TrimSpace(r.Name),
			StartDate: parseDate(r.StartDate),
			Documents: toDocuments(r.Documents),
		})
	}
	return out, nil
}

// toDocuments drops links without a URL and infers missing types.
func toDocuments(docs []StagedDocument) []model.CandidateDocument {
	var out []model.CandidateDocument
	for _, d := range docs {
		u := strings.TrimSpace(d.URL)
		if u == "" {
			continue
		}
		dt := model.ClassifyDocument(u, d.Label)
		if strings.TrimSpace(d.DocType) != "" {
			dt = model.ResolveDocType(d.DocType, u)
		}
		out = append(out, model.CandidateDocument{Index: len(out), DocType: dt, URL: u, Selected: true})
	}
	return out
}

func parseDate(raw string) *civil.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &d
}

func decodePayload(in *structpb.Struct) (*Payload, error) {
	if in == nil {
		return nil, &ValidationError{Msg: "empty request"}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("encode request: %v", err)}
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("malformed payload: %v", err)}
	}
	return &p, nil
}

// EncodePayload converts p into a request struct.
func EncodePayload(p Payload) (*structpb.Struct, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}

func stagedResponse(taskID string, count int) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{"task_id": taskID, "count": count})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	if errors.Is(err, taskstore.ErrExists) {
		return status.Error(codes.AlreadyExists, err.Error())
	}
	if errors.Is(err, taskstore.ErrInvalidID) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, ve.Msg)
	}
	return status.Error(codes.Internal, "internal server error")
}
