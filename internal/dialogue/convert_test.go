package dialogue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGraphConverterBuildsDocument(t *testing.T) {
	payload := GraphPayload{
		Metadata: map[string]any{"title": "Gate scene"},
		Nodes: []GraphNode{
			{ID: "START", Type: "start"},
			{ID: "greet", Type: "dialogue", Data: GraphNodeData{Speaker: "Guard", Line: "Who goes there?", Choices: []GraphChoice{
				{Text: "A friend", ChoiceID: "friend"},
				{Text: "None of your business", ChoiceID: "rude"},
			}}},
			{ID: "welcome", Type: "dialogue", Data: GraphNodeData{Speaker: "Guard", Line: "Pass."}},
			{ID: "fight", Type: "dialogue", Data: GraphNodeData{Speaker: "Guard", Line: "To arms!"}},
		},
		Edges: []GraphEdge{
			{Source: "START", Target: "greet"},
			{Source: "greet", Target: "welcome", SourceHandle: "choice-0"},
			{Source: "greet", Target: "fight", SourceHandle: "choice-1"},
			{Source: "welcome", Target: "END"},
		},
	}

	doc, err := GraphConverter{}.Convert(payload)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := Document{
		SchemaVersion: DefaultSchemaVersion,
		Nodes: []Node{
			{ID: "greet", Speaker: "Guard", Line: "Who goes there?", Choices: []Choice{
				{Text: "A friend", ChoiceID: "friend", TargetNode: "welcome"},
				{Text: "None of your business", ChoiceID: "rude", TargetNode: "fight"},
			}},
			{ID: "welcome", Speaker: "Guard", Line: "Pass.", NextNode: "END"},
			{ID: "fight", Speaker: "Guard", Line: "To arms!"},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("Convert() mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphConverterRejectsBadEdges(t *testing.T) {
	base := []GraphNode{{ID: "a", Data: GraphNodeData{Choices: []GraphChoice{{Text: "only"}}}}}

	cases := map[string][]GraphEdge{
		"unknown source": {{Source: "ghost", Target: "a"}},
		"missing handle": {{Source: "a", Target: "END", SourceHandle: "choice-3"}},
		"bad handle":     {{Source: "a", Target: "END", SourceHandle: "choice-x"}},
	}
	for name, edges := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (GraphConverter{}).Convert(GraphPayload{Nodes: base, Edges: edges}); err == nil {
				t.Fatal("expected conversion error")
			}
		})
	}

	dup := []GraphNode{{ID: "a"}, {ID: "a"}}
	if _, err := (GraphConverter{}).Convert(GraphPayload{Nodes: dup}); err == nil {
		t.Fatal("expected duplicate node error")
	}
}

func TestGraphConverterSchemaVersionFromMetadata(t *testing.T) {
	doc, err := GraphConverter{}.Convert(GraphPayload{Metadata: map[string]any{"schemaVersion": "2.0.0"}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if doc.SchemaVersion != "2.0.0" {
		t.Fatalf("schemaVersion = %q", doc.SchemaVersion)
	}
}

func TestResolveDocumentID(t *testing.T) {
	cases := []struct {
		payload GraphPayload
		want    string
	}{
		{GraphPayload{DocumentID: " scene-1 ", Metadata: map[string]any{"filename": "other.json"}}, "scene-1"},
		{GraphPayload{Metadata: map[string]any{"filename": "scene-2.json", "title": "T"}}, "scene-2"},
		{GraphPayload{Metadata: map[string]any{"title": "Scene Three"}}, "Scene Three"},
		{GraphPayload{Metadata: map[string]any{"filename": 42}}, ""},
	}
	for _, tc := range cases {
		if got := ResolveDocumentID(tc.payload); got != tc.want {
			t.Errorf("ResolveDocumentID(%+v) = %q, want %q", tc.payload, got, tc.want)
		}
	}
}
