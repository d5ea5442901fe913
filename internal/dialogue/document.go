// Package dialogue describes the canonical dialogue document and the
// UI-facing graph shape that is converted into it.
package dialogue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Reserved reference values. They are always valid targets and never
// correspond to a stored node unless a document declares one explicitly.
const (
	SentinelStart = "START"
	SentinelEnd   = "END"
)

var ErrNotObject = errors.New("document must be a JSON object")

type Document struct {
	SchemaVersion string `json:"schemaVersion"`
	Nodes         []Node `json:"nodes"`
}

type Node struct {
	ID       string          `json:"id"`
	Speaker  string          `json:"speaker,omitempty"`
	Line     string          `json:"line,omitempty"`
	Choices  []Choice        `json:"choices,omitempty"`
	NextNode string          `json:"nextNode,omitempty"`
	Test     json.RawMessage `json:"test,omitempty"`
}

type Choice struct {
	Text       string          `json:"text"`
	TargetNode string          `json:"targetNode,omitempty"`
	ChoiceID   string          `json:"choiceId,omitempty"`
	Test       json.RawMessage `json:"test,omitempty"`
}

// IsSentinel reports whether ref is one of the reserved reference values.
func IsSentinel(ref string) bool {
	return ref == SentinelStart || ref == SentinelEnd
}

// Decode parses the structural view of a stored blob. Fields outside
// schemaVersion and nodes are ignored here; the blob itself is persisted
// verbatim by the store.
func Decode(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{}, ErrNotObject
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Nodes == nil {
		doc.Nodes = []Node{}
	}
	return doc, nil
}

// SchemaVersionOf extracts schemaVersion without decoding the node list.
// Non-string or missing values yield "".
func SchemaVersionOf(raw []byte) string {
	var probe struct {
		SchemaVersion json.RawMessage `json:"schemaVersion"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.SchemaVersion) == 0 {
		return ""
	}
	var version string
	if err := json.Unmarshal(probe.SchemaVersion, &version); err != nil {
		return ""
	}
	return version
}

// IsLegacyGraphPayload matches the pre-migration contract: top-level nodes
// and edges with no schemaVersion.
func IsLegacyGraphPayload(raw []byte) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return false
	}
	_, hasNodes := top["nodes"]
	_, hasEdges := top["edges"]
	_, hasVersion := top["schemaVersion"]
	return hasNodes && hasEdges && !hasVersion
}

// Canonical re-indents a JSON blob without reordering keys or touching
// values, so the stored file stays readable and round-trips exactly.
func Canonical(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
