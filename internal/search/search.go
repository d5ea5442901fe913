// Package search finds dialogue lines by speaker or text.
package search

import (
	"dialoguegen/api/internal/dialogue"
	"dialoguegen/api/internal/util"
)

// Result is a single matching dialogue node.
type Result struct {
	DocumentID string `json:"documentId"`
	NodeID     string `json:"nodeId"`
	Speaker    string `json:"speaker,omitempty"`
	Snippet    string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	DocumentID string // empty = all documents
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DialogueRecord is what we index for one document. The slices are
// parallel: entry i describes the i-th node with an id.
type DialogueRecord struct {
	ID            string   `json:"id"`
	DocumentID    string   `json:"documentId"`
	SchemaVersion string   `json:"schemaVersion"`
	NodeIDs       []string `json:"nodeIds"`
	Speakers      []string `json:"speakers"`
	Lines         []string `json:"lines"`
}

// RecordFromDocument flattens a document into its index record. Index
// primary keys only allow [A-Za-z0-9_-], so the record id is a digest of
// the document id.
func RecordFromDocument(documentID string, doc dialogue.Document) DialogueRecord {
	record := DialogueRecord{
		ID:            util.Digest(documentID),
		DocumentID:    documentID,
		SchemaVersion: doc.SchemaVersion,
		NodeIDs:       []string{},
		Speakers:      []string{},
		Lines:         []string{},
	}
	for _, node := range doc.Nodes {
		if node.ID == "" {
			continue
		}
		record.NodeIDs = append(record.NodeIDs, node.ID)
		record.Speakers = append(record.Speakers, node.Speaker)
		record.Lines = append(record.Lines, node.Line)
	}
	return record
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
