package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dialoguegen/api/internal/store"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const brokenDoc = `{"schemaVersion":"1.1.0","nodes":[{"id":"START","nextNode":"ghost"}]}`

func TestValidateDraftAccepts(t *testing.T) {
	out, err := runCLI(t, "validate", writeDoc(t, brokenDoc))
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	var got validateOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if !got.Accepted || got.Mode != "draft" || !got.ValidationReport.HasErrors() {
		t.Fatalf("unexpected output: %+v", got)
	}
}

func TestValidateExportRejects(t *testing.T) {
	out, err := runCLI(t, "validate", "--mode", "export", writeDoc(t, brokenDoc))
	if err == nil {
		t.Fatal("expected an error for a rejected document")
	}
	if !strings.Contains(out, `"code": "export_validation_failed"`) {
		t.Fatalf("output = %s", out)
	}
}

func TestValidateDeprecatedShape(t *testing.T) {
	out, err := runCLI(t, "validate", writeDoc(t, `{"nodes":[],"edges":[]}`))
	if err == nil {
		t.Fatal("expected an error for the deprecated shape")
	}
	if !strings.Contains(out, "deprecated_payload_shape") {
		t.Fatalf("output = %s", out)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	if _, err := runCLI(t, "validate", "--mode", "strict", writeDoc(t, brokenDoc)); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestShowAndList(t *testing.T) {
	dir := t.TempDir()
	documents, err := store.Open(dir, store.Options{})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	doc := []byte(`{"schemaVersion":"1.1.0","nodes":[{"id":"START"}]}`)
	if _, err := documents.Put("quest", doc, store.ExpectRevision(0), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := documents.Put("quest", doc, store.AboveSequence(7), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	out, err := runCLI(t, "show", "quest", "--data-dir", dir)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	for _, want := range []string{"schemaVersion:  1.1.0", "revision:       1", "lastSeq:        7"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "list", "--data-dir", dir, "--json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var entries []store.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("list output is not JSON: %q", out)
	}
	if len(entries) != 1 || entries[0].ID != "quest" || entries[0].Revision != 1 {
		t.Fatalf("entries = %+v", entries)
	}

	if _, err := runCLI(t, "show", "missing", "--data-dir", dir); err == nil {
		t.Fatal("expected an error for a missing document")
	}
}
