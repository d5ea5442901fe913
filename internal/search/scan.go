package search

import (
	"errors"
	"strings"

	"dialoguegen/api/internal/dialogue"
	"dialoguegen/api/internal/store"
)

// Source is the read side of the document store.
type Source interface {
	List() ([]store.Entry, error)
	Get(id string) (store.Snapshot, error)
}

// Scanner searches stored documents directly. It is the fallback when
// Meilisearch is not configured or unhealthy.
type Scanner struct {
	source Source
}

func NewScanner(source Source) *Scanner {
	return &Scanner{source: source}
}

func (s *Scanner) Healthy() bool {
	return s != nil && s.source != nil
}

// Search matches the query case-insensitively against speaker and line of
// every node, in document id order then node order.
func (s *Scanner) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}
	records, err := s.Records()
	if err != nil {
		return nil, 0, err
	}

	var matches []Result
	for _, record := range records {
		if q.DocumentID != "" && record.DocumentID != q.DocumentID {
			continue
		}
		for i, nodeID := range record.NodeIDs {
			speaker, line := record.Speakers[i], record.Lines[i]
			if !strings.Contains(strings.ToLower(line), needle) && !strings.Contains(strings.ToLower(speaker), needle) {
				continue
			}
			matches = append(matches, Result{
				DocumentID: record.DocumentID,
				NodeID:     nodeID,
				Speaker:    speaker,
				Snippet:    line,
			})
		}
	}

	total := len(matches)
	start := min(max(q.Offset, 0), total)
	end := min(start+defaultLimit(q.Limit), total)
	return matches[start:end], total, nil
}

// Records loads an index record for every readable stored document.
// Documents removed between listing and reading are skipped.
func (s *Scanner) Records() ([]DialogueRecord, error) {
	entries, err := s.source.List()
	if err != nil {
		return nil, err
	}
	records := make([]DialogueRecord, 0, len(entries))
	for _, entry := range entries {
		snapshot, err := s.source.Get(entry.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		doc, err := dialogue.Decode(snapshot.Document)
		if err != nil {
			continue
		}
		records = append(records, RecordFromDocument(entry.ID, doc))
	}
	return records, nil
}
