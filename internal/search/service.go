package search

import (
	"github.com/sirupsen/logrus"
)

// Service is the facade that tries Meilisearch first and falls back to
// scanning the store.
type Service struct {
	meili  *Meili
	scan   *Scanner
	logger *logrus.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, scan *Scanner, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{meili: meili, scan: scan, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise falls back to a scan.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.WithError(err).Warn("search: meilisearch error, falling back to scan")
	}

	if s.scan == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.scan.Search(q)
	if err != nil {
		s.logger.WithError(err).Error("search: scan error")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDialogue indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDialogue(record DialogueRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDialogue(record); err != nil {
			s.logger.WithFields(logrus.Fields{
				"document_id": record.DocumentID,
				"error":       err,
			}).Warn("search: index dialogue")
		}
	}()
}

// Reindex pushes every stored document to Meilisearch. Called at startup.
func (s *Service) Reindex() {
	if s.meili == nil || !s.meili.Healthy() || s.scan == nil {
		return
	}
	records, err := s.scan.Records()
	if err != nil {
		s.logger.WithError(err).Warn("search: reindex load failed")
		return
	}
	if err := s.meili.IndexDialogues(records); err != nil {
		s.logger.WithError(err).Warn("search: reindex dialogues")
		return
	}
	s.logger.WithField("documents", len(records)).Info("search: reindexed dialogues")
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}
