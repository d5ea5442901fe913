package dialogue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const DefaultSchemaVersion = "1.1.0"

// GraphPayload is what the graph editor submits.
type GraphPayload struct {
	Nodes      []GraphNode    `json:"nodes"`
	Edges      []GraphEdge    `json:"edges"`
	Metadata   map[string]any `json:"metadata"`
	Seq        *int64         `json:"seq,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
}

type GraphNode struct {
	ID   string        `json:"id"`
	Type string        `json:"type,omitempty"`
	Data GraphNodeData `json:"data"`
}

type GraphNodeData struct {
	Speaker string          `json:"speaker,omitempty"`
	Line    string          `json:"line,omitempty"`
	Test    json.RawMessage `json:"test,omitempty"`
	Choices []GraphChoice   `json:"choices,omitempty"`
}

type GraphChoice struct {
	Text     string          `json:"text"`
	ChoiceID string          `json:"choiceId,omitempty"`
	Test     json.RawMessage `json:"test,omitempty"`
}

type GraphEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

const choiceHandlePrefix = "choice-"

// GraphConverter turns the editor's node/edge view into a Document.
type GraphConverter struct{}

// Convert keeps node and choice order. An edge leaving handle "choice-N"
// sets choices[N].targetNode; any other edge sets nextNode, later edges
// overriding earlier ones. Sentinel nodes are markers only and are not
// materialized; edges leaving them are dropped.
func (GraphConverter) Convert(payload GraphPayload) (Document, error) {
	doc := Document{
		SchemaVersion: metadataString(payload.Metadata, "schemaVersion"),
		Nodes:         make([]Node, 0, len(payload.Nodes)),
	}
	if doc.SchemaVersion == "" {
		doc.SchemaVersion = DefaultSchemaVersion
	}

	positions := make(map[string]int, len(payload.Nodes))
	for _, item := range payload.Nodes {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return Document{}, fmt.Errorf("graph node without id")
		}
		if IsSentinel(id) {
			continue
		}
		if _, exists := positions[id]; exists {
			return Document{}, fmt.Errorf("duplicate graph node %q", id)
		}
		node := Node{
			ID:      id,
			Speaker: item.Data.Speaker,
			Line:    item.Data.Line,
			Test:    item.Data.Test,
		}
		for _, choice := range item.Data.Choices {
			node.Choices = append(node.Choices, Choice{
				Text:     choice.Text,
				ChoiceID: choice.ChoiceID,
				Test:     choice.Test,
			})
		}
		positions[id] = len(doc.Nodes)
		doc.Nodes = append(doc.Nodes, node)
	}

	for _, edge := range payload.Edges {
		if IsSentinel(edge.Source) {
			continue
		}
		index, ok := positions[edge.Source]
		if !ok {
			return Document{}, fmt.Errorf("edge from unknown node %q", edge.Source)
		}
		node := &doc.Nodes[index]
		if strings.HasPrefix(edge.SourceHandle, choiceHandlePrefix) {
			choiceIndex, err := strconv.Atoi(strings.TrimPrefix(edge.SourceHandle, choiceHandlePrefix))
			if err != nil || choiceIndex < 0 || choiceIndex >= len(node.Choices) {
				return Document{}, fmt.Errorf("edge from %q references missing handle %q", edge.Source, edge.SourceHandle)
			}
			node.Choices[choiceIndex].TargetNode = edge.Target
			continue
		}
		node.NextNode = edge.Target
	}
	return doc, nil
}

// ResolveDocumentID picks the target id for a graph save: the explicit id,
// then metadata.filename without its .json suffix, then metadata.title.
func ResolveDocumentID(payload GraphPayload) string {
	if id := strings.TrimSpace(payload.DocumentID); id != "" {
		return id
	}
	if filename := metadataString(payload.Metadata, "filename"); filename != "" {
		return strings.TrimSuffix(filename, ".json")
	}
	return metadataString(payload.Metadata, "title")
}

// MetadataString returns a trimmed string field from metadata, or "".
func (p GraphPayload) MetadataString(key string) string {
	return metadataString(p.Metadata, key)
}

func metadataString(metadata map[string]any, key string) string {
	value, ok := metadata[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
