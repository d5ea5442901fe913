package dialogue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeStructuralView(t *testing.T) {
	raw := []byte(`{
		"schemaVersion": "1.1.0",
		"title": "ignored by the structural view",
		"nodes": [
			{"id": "A", "speaker": "Guard", "line": "Halt.", "nextNode": "B"},
			{"id": "B", "choices": [{"text": "Run", "targetNode": "END", "choiceId": "c1", "test": {"skill": "Agility"}}]}
		]
	}`)

	doc, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := Document{
		SchemaVersion: "1.1.0",
		Nodes: []Node{
			{ID: "A", Speaker: "Guard", Line: "Halt.", NextNode: "B"},
			{ID: "B", Choices: []Choice{{Text: "Run", TargetNode: "END", ChoiceID: "c1", Test: json.RawMessage(`{"skill": "Agility"}`)}}},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{``, `[]`, `"doc"`, `null`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrNotObject) {
			t.Fatalf("Decode(%q) error = %v, want ErrNotObject", raw, err)
		}
	}
	if _, err := Decode([]byte(`{"nodes": "nope"}`)); err == nil {
		t.Fatal("expected error for non-array nodes")
	}
}

func TestDecodeMissingNodesIsEmpty(t *testing.T) {
	doc, err := Decode([]byte(`{"schemaVersion":"1.0"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.Nodes == nil || len(doc.Nodes) != 0 {
		t.Fatalf("expected empty non-nil nodes, got %#v", doc.Nodes)
	}
}

func TestIsLegacyGraphPayload(t *testing.T) {
	cases := map[string]bool{
		`{"nodes":[],"edges":[]}`:                      true,
		`{"nodes":[],"edges":[],"metadata":{}}`:        true,
		`{"nodes":[],"edges":[],"schemaVersion":"1"}`:  false,
		`{"nodes":[]}`:                                 false,
		`{"edges":[]}`:                                 false,
		`{"schemaVersion":"1.1.0","nodes":[]}`:         false,
		`not json`:                                     false,
	}
	for raw, want := range cases {
		if got := IsLegacyGraphPayload([]byte(raw)); got != want {
			t.Errorf("IsLegacyGraphPayload(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestSchemaVersionOf(t *testing.T) {
	if got := SchemaVersionOf([]byte(`{"schemaVersion":"2.0.0-beta","nodes":[]}`)); got != "2.0.0-beta" {
		t.Fatalf("SchemaVersionOf() = %q", got)
	}
	if got := SchemaVersionOf([]byte(`{"schemaVersion":2}`)); got != "" {
		t.Fatalf("SchemaVersionOf(number) = %q, want empty", got)
	}
}

func TestCanonicalPreservesKeyOrder(t *testing.T) {
	got, err := Canonical([]byte(`{"z":1,"schemaVersion":"1.1.0","a":[1,2]}`))
	if err != nil {
		t.Fatalf("Canonical() error = %v", err)
	}
	want := "{\n  \"z\": 1,\n  \"schemaVersion\": \"1.1.0\",\n  \"a\": [\n    1,\n    2\n  ]\n}\n"
	if string(got) != want {
		t.Fatalf("Canonical() = %q, want %q", got, want)
	}
}
