package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dialoguegen/api/internal/dialogue"
	"dialoguegen/api/internal/notify"
	"dialoguegen/api/internal/search"
	"dialoguegen/api/internal/store"
	"dialoguegen/api/internal/validation"

	"github.com/sirupsen/logrus"
)

type documentStore interface {
	Get(string) (store.Snapshot, error)
	Put(string, []byte, store.Guard, func() error) (store.Commit, error)
	List() ([]store.Entry, error)
	Writable() error
}

type converter interface {
	Convert(dialogue.GraphPayload) (dialogue.Document, error)
}

type changePublisher interface {
	Publish(context.Context, notify.Change) error
	Ping(context.Context) error
}

type lineIndex interface {
	IndexDialogue(search.DialogueRecord)
	Search(search.Query) search.Response
}

type Options struct {
	Store     documentStore
	Gate      *validation.Gate
	Converter converter
	Notifier  *notify.Publisher
	Search    *search.Service
	Logger    *logrus.Logger
}

type Service struct {
	store     documentStore
	gate      *validation.Gate
	converter converter
	notifier  changePublisher
	search    lineIndex
	logger    *logrus.Logger
}

func New(opts Options) *Service {
	svc := &Service{
		store:     opts.Store,
		gate:      opts.Gate,
		converter: opts.Converter,
		logger:    opts.Logger,
	}
	if svc.gate == nil {
		svc.gate = validation.NewGate(nil)
	}
	if svc.converter == nil {
		svc.converter = dialogue.GraphConverter{}
	}
	if svc.logger == nil {
		svc.logger = logrus.New()
	}
	if opts.Notifier != nil {
		svc.notifier = opts.Notifier
	}
	if opts.Search != nil {
		svc.search = opts.Search
	}
	return svc
}

type DocumentView struct {
	Document      json.RawMessage `json:"document"`
	SchemaVersion string          `json:"schemaVersion"`
	Revision      int64           `json:"revision"`
}

func viewOf(snapshot store.Snapshot) DocumentView {
	return DocumentView{
		Document:      snapshot.Document,
		SchemaVersion: snapshot.SchemaVersion,
		Revision:      snapshot.Revision,
	}
}

type SaveDocumentInput struct {
	Document       json.RawMessage `json:"document"`
	Revision       int64           `json:"revision"`
	ValidationMode string          `json:"validationMode"`
}

type SaveResult struct {
	Revision         int64             `json:"revision"`
	ValidationReport validation.Report `json:"validationReport"`
}

type GraphResult struct {
	Success          bool              `json:"success"`
	Filename         string            `json:"filename"`
	JSONContent      json.RawMessage   `json:"json_content"`
	ValidationReport validation.Report `json:"validationReport"`
	AckSeq           *int64            `json:"ack_seq,omitempty"`
	LastSeq          *int64            `json:"last_seq,omitempty"`
	Written          *bool             `json:"written,omitempty"`
}

type ValidationOutcome struct {
	Mode             validation.Mode   `json:"mode"`
	Accepted         bool              `json:"accepted"`
	ValidationReport validation.Report `json:"validationReport"`
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (DocumentView, error) {
	snapshot, err := s.store.Get(documentID)
	if err != nil {
		return DocumentView{}, err
	}
	return viewOf(snapshot), nil
}

// SaveDocument is the revision-gated write. The id is checked first, then
// the payload shape and mode; validation runs only after the revision
// comparison has passed.
func (s *Service) SaveDocument(ctx context.Context, documentID string, input SaveDocumentInput, modeOverride string) (SaveResult, error) {
	if err := store.ValidateID(documentID); err != nil {
		return SaveResult{}, err
	}
	doc, err := s.gate.Decode(input.Document)
	if err != nil {
		return SaveResult{}, err
	}
	mode, err := validation.ResolveMode(input.ValidationMode, modeOverride)
	if err != nil {
		return SaveResult{}, err
	}
	blob, err := dialogue.Canonical(input.Document)
	if err != nil {
		return SaveResult{}, domainError(http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
	}

	var report validation.Report
	commit, err := s.store.Put(documentID, blob, store.ExpectRevision(input.Revision), func() error {
		var evalErr error
		report, evalErr = s.gate.Evaluate(mode, doc)
		return evalErr
	})
	if err != nil {
		return SaveResult{}, err
	}

	s.afterWrite(ctx, documentID, doc, notify.Change{
		DocumentID: documentID,
		Revision:   commit.Revision,
		UpdatedAt:  commit.UpdatedAt,
		Source:     notify.SourceDocument,
	})
	return SaveResult{Revision: commit.Revision, ValidationReport: report}, nil
}

// SaveGraph converts an editor graph and writes it. With a seq the write is
// idempotent: a seq at or below the recorded one changes nothing and
// acknowledges the recorded value.
func (s *Service) SaveGraph(ctx context.Context, payload dialogue.GraphPayload, modeOverride string) (GraphResult, error) {
	documentID := dialogue.ResolveDocumentID(payload)
	if documentID == "" {
		return GraphResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document_id, metadata.filename or metadata.title is required", nil)
	}
	if err := store.ValidateID(documentID); err != nil {
		return GraphResult{}, err
	}
	mode, err := validation.ResolveMode(payload.MetadataString("validationMode"), modeOverride)
	if err != nil {
		return GraphResult{}, err
	}
	doc, err := s.converter.Convert(payload)
	if err != nil {
		return GraphResult{}, domainError(http.StatusUnprocessableEntity, "INVALID_GRAPH", err.Error(), nil)
	}
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return GraphResult{}, err
	}
	content = append(content, '\n')

	guard := store.Unconditional()
	if payload.Seq != nil {
		guard = store.AboveSequence(*payload.Seq)
	}
	report := validation.Report{}
	commit, err := s.store.Put(documentID, content, guard, func() error {
		var evalErr error
		report, evalErr = s.gate.Evaluate(mode, doc)
		return evalErr
	})
	if err != nil {
		return GraphResult{}, err
	}

	result := GraphResult{
		Success:          true,
		Filename:         documentID + ".json",
		JSONContent:      content,
		ValidationReport: report,
	}
	if payload.Seq != nil {
		ack, last, written := commit.AckSeq, commit.LastSeq, commit.Written
		result.AckSeq, result.LastSeq, result.Written = &ack, &last, &written
	}
	if !commit.Written {
		s.logger.WithFields(logrus.Fields{
			"document_id": documentID,
			"seq":         *payload.Seq,
			"last_seq":    commit.LastSeq,
		}).Info("stale graph write acknowledged without change")
		return result, nil
	}

	change := notify.Change{DocumentID: documentID, UpdatedAt: commit.UpdatedAt, Source: notify.SourceGraph}
	if payload.Seq != nil {
		seq := *payload.Seq
		change.Seq = &seq
	}
	s.afterWrite(ctx, documentID, doc, change)
	return result, nil
}

// ValidateDocument reports what a save in the resolved mode would decide,
// without writing.
func (s *Service) ValidateDocument(ctx context.Context, documentID string, input SaveDocumentInput, modeOverride string) (ValidationOutcome, error) {
	if err := store.ValidateID(documentID); err != nil {
		return ValidationOutcome{}, err
	}
	doc, err := s.gate.Decode(input.Document)
	if err != nil {
		return ValidationOutcome{}, err
	}
	mode, err := validation.ResolveMode(input.ValidationMode, modeOverride)
	if err != nil {
		return ValidationOutcome{}, err
	}
	report, err := s.gate.Evaluate(mode, doc)
	if err != nil && !errors.Is(err, validation.ErrRejected) {
		return ValidationOutcome{}, err
	}
	return ValidationOutcome{Mode: mode, Accepted: err == nil, ValidationReport: report}, nil
}

func (s *Service) ListDocuments(ctx context.Context) ([]store.Entry, error) {
	return s.store.List()
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Ready reports per-dependency health. The storage check is mandatory;
// Redis is only checked when configured.
func (s *Service) Ready(ctx context.Context) (map[string]any, bool) {
	ready := true
	checks := map[string]any{
		"storage": map[string]any{"status": "ok"},
	}
	if err := s.store.Writable(); err != nil {
		ready = false
		checks["storage"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if s.notifier != nil {
		if err := s.notifier.Ping(ctx); err != nil {
			ready = false
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["redis"] = map[string]any{"status": "ok"}
		}
	}
	return checks, ready
}

// afterWrite runs side channels. Their failures never affect the write.
func (s *Service) afterWrite(ctx context.Context, documentID string, doc dialogue.Document, change notify.Change) {
	if s.search != nil {
		s.search.IndexDialogue(search.RecordFromDocument(documentID, doc))
	}
	if s.notifier == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.notifier.Publish(publishCtx, change); err != nil {
		s.logger.WithFields(logrus.Fields{
			"document_id": documentID,
			"error":       err,
		}).Warn("change notification failed")
	}
}
