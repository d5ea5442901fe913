package validation

import (
	"fmt"
	"strings"
	"testing"

	"dialoguegen/api/internal/dialogue"

	"github.com/google/go-cmp/cmp"
)

func chain(ids ...string) []dialogue.Node {
	nodes := make([]dialogue.Node, len(ids))
	for i, id := range ids {
		nodes[i] = dialogue.Node{ID: id}
		if i+1 < len(ids) {
			nodes[i].NextNode = ids[i+1]
		}
	}
	return nodes
}

func doc(nodes ...dialogue.Node) dialogue.Document {
	return dialogue.Document{SchemaVersion: "1.1.0", Nodes: nodes}
}

func codes(report Report) []string {
	out := make([]string, 0, len(report))
	for _, finding := range report {
		out = append(out, finding.Code)
	}
	return out
}

func TestCycleThroughStart(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "START", NextNode: "A"},
		dialogue.Node{ID: "A", NextNode: "B"},
		dialogue.Node{ID: "B", NextNode: "C"},
		dialogue.Node{ID: "C", NextNode: "A"},
	)

	cycles := New(0).Validate(d).WithCode(CodeCycleDetected)
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %+v", len(cycles), cycles)
	}
	got := cycles[0]
	if diff := cmp.Diff([]string{"A", "B", "C", "A"}, got.CyclePath); diff != "" {
		t.Fatalf("cycle_path mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, got.CycleNodes); diff != "" {
		t.Fatalf("cycle_nodes mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(got.CycleID, "cycle-") {
		t.Fatalf("unexpected cycle_id %q", got.CycleID)
	}
	if got.Severity != SeverityWarning {
		t.Fatalf("cycles must be warnings, got %s", got.Severity)
	}
}

func TestTwoDisjointCyclesHaveDistinctIDs(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "START", NextNode: "A", Choices: []dialogue.Choice{{Text: "other", TargetNode: "X", ChoiceID: "c1"}}},
		dialogue.Node{ID: "A", NextNode: "B"},
		dialogue.Node{ID: "B", NextNode: "A"},
		dialogue.Node{ID: "X", NextNode: "Y"},
		dialogue.Node{ID: "Y", NextNode: "X"},
	)

	cycles := New(0).Validate(d).WithCode(CodeCycleDetected)
	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(cycles))
	}
	if cycles[0].CycleID == cycles[1].CycleID {
		t.Fatalf("cycle ids collide: %s", cycles[0].CycleID)
	}
	if diff := cmp.Diff([]string{"X", "Y", "X"}, cycles[1].CyclePath); diff != "" {
		t.Fatalf("second cycle mismatch (-want +got):\n%s", diff)
	}
}

func TestAcyclicGraphHasNoCycleFindings(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "A", Choices: []dialogue.Choice{
			{Text: "left", TargetNode: "B", ChoiceID: "l"},
			{Text: "right", TargetNode: "C", ChoiceID: "r"},
		}},
		dialogue.Node{ID: "B", NextNode: "D"},
		dialogue.Node{ID: "C", NextNode: "D"},
		dialogue.Node{ID: "D", NextNode: "END"},
	)

	report := New(0).Validate(d)
	if len(report) != 0 {
		t.Fatalf("expected clean report, got %v", codes(report))
	}
}

func TestOverlappingCyclesAreAllEnumerated(t *testing.T) {
	// A -> B -> A, A -> C -> A and A -> B -> C -> A share A.
	d := doc(
		dialogue.Node{ID: "A", Choices: []dialogue.Choice{
			{Text: "b", TargetNode: "B", ChoiceID: "1"},
			{Text: "c", TargetNode: "C", ChoiceID: "2"},
		}},
		dialogue.Node{ID: "B", Choices: []dialogue.Choice{
			{Text: "a", TargetNode: "A", ChoiceID: "3"},
			{Text: "c", TargetNode: "C", ChoiceID: "4"},
		}},
		dialogue.Node{ID: "C", NextNode: "A"},
	)

	cycles := New(0).Validate(d).WithCode(CodeCycleDetected)
	var paths []string
	for _, c := range cycles {
		paths = append(paths, strings.Join(c.CyclePath, ">"))
	}
	want := []string{"A>B>A", "A>B>C>A", "A>C>A"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("cycles mismatch (-want +got):\n%s", diff)
	}
}

func TestSelfLoop(t *testing.T) {
	d := doc(dialogue.Node{ID: "A", NextNode: "A"})
	cycles := New(0).Validate(d).WithCode(CodeCycleDetected)
	if len(cycles) != 1 || cycles[0].CycleID == "" {
		t.Fatalf("expected one self-loop cycle, got %+v", cycles)
	}
	if diff := cmp.Diff([]string{"A", "A"}, cycles[0].CyclePath); diff != "" {
		t.Fatalf("cycle_path mismatch (-want +got):\n%s", diff)
	}
}

func TestLongChainDoesNotRecurse(t *testing.T) {
	ids := make([]string, 50000)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}
	nodes := chain(ids...)
	nodes[len(nodes)-1].NextNode = ids[0]

	cycles := New(0).Validate(doc(nodes...)).WithCode(CodeCycleDetected)
	if len(cycles) != 1 || len(cycles[0].CyclePath) != len(ids)+1 {
		t.Fatalf("expected a single cycle over the whole chain, got %d", len(cycles))
	}
}

func TestCycleLimit(t *testing.T) {
	// Complete graph on 5 nodes has far more than 3 elementary cycles.
	ids := []string{"a", "b", "c", "d", "e"}
	var nodes []dialogue.Node
	for _, from := range ids {
		node := dialogue.Node{ID: from}
		for _, to := range ids {
			if to != from {
				node.Choices = append(node.Choices, dialogue.Choice{Text: to, TargetNode: to, ChoiceID: from + to})
			}
		}
		nodes = append(nodes, node)
	}

	report := New(3).Validate(doc(nodes...))
	if got := len(report.WithCode(CodeCycleDetected)); got != 3 {
		t.Fatalf("expected 3 cycles, got %d", got)
	}
	if len(report.WithCode(CodeCycleLimitReached)) != 1 {
		t.Fatalf("expected limit warning, got %v", codes(report))
	}
}

func TestBrokenReferencesAndSentinels(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "A", NextNode: "ghost", Choices: []dialogue.Choice{
			{Text: "leave", TargetNode: "END", ChoiceID: "x"},
			{Text: "restart", TargetNode: "START", ChoiceID: "y"},
			{Text: "lost", TargetNode: "nowhere", ChoiceID: "z"},
		}},
	)

	broken := New(0).Validate(d).WithCode(CodeBrokenReference)
	want := Report{
		{
			Code:     CodeBrokenReference,
			Message:  `node "A" references unknown node "nowhere"`,
			Path:     "nodes[0].choices[2].targetNode",
			NodeID:   "A",
			Severity: SeverityError,
		},
		{
			Code:     CodeBrokenReference,
			Message:  `node "A" references unknown node "ghost"`,
			Path:     "nodes[0].nextNode",
			NodeID:   "A",
			Severity: SeverityError,
		},
	}
	if diff := cmp.Diff(want, broken); diff != "" {
		t.Fatalf("broken references mismatch (-want +got):\n%s", diff)
	}
}

func TestOrphansAndUnreachable(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "intro", NextNode: "END"},
		dialogue.Node{ID: "stray", NextNode: "island1"},
		dialogue.Node{ID: "island1", NextNode: "island2"},
		dialogue.Node{ID: "island2", NextNode: "island1"},
	)

	report := New(0).Validate(d)
	orphans := report.WithCode(CodeOrphanNode)
	if len(orphans) != 1 || orphans[0].NodeID != "stray" {
		t.Fatalf("expected stray to be the only orphan, got %+v", orphans)
	}
	unreachable := report.WithCode(CodeUnreachableNode)
	if len(unreachable) != 2 || unreachable[0].NodeID != "island1" || unreachable[1].NodeID != "island2" {
		t.Fatalf("unexpected unreachable findings: %+v", unreachable)
	}
}

func TestExplicitStartNodeIsEntry(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "epilogue", NextNode: "END"},
		dialogue.Node{ID: "START", NextNode: "epilogue"},
	)
	if orphans := New(0).Validate(d).WithCode(CodeOrphanNode); len(orphans) != 0 {
		t.Fatalf("START must be the entry node, got orphans %+v", orphans)
	}
}

func TestIdentityChecks(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "A", NextNode: "END"},
		dialogue.Node{ID: ""},
		dialogue.Node{ID: "A"},
	)
	report := New(0).Validate(d)
	if diff := cmp.Diff([]string{CodeMissingNodeID, CodeDuplicateNodeID}, codes(report)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if report[1].Path != "nodes[2].id" {
		t.Fatalf("duplicate path = %q", report[1].Path)
	}
}

func TestExportRequirements(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "A", Choices: []dialogue.Choice{
			{Text: "one", TargetNode: "END"},
			{Text: "two", TargetNode: "END", ChoiceID: "dup"},
			{Text: "three", TargetNode: "END", ChoiceID: "dup"},
		}},
	)
	report := New(0).Validate(d)
	if diff := cmp.Diff([]string{CodeMissingChoiceID, CodeDuplicateChoiceID}, codes(report)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if !report.HasErrors() {
		t.Fatal("expected error severity")
	}
}

func TestDocumentLevelWarnings(t *testing.T) {
	report := New(0).Validate(dialogue.Document{Nodes: []dialogue.Node{}})
	if diff := cmp.Diff([]string{CodeMissingSchemaVersion, CodeEmptyDocument}, codes(report)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if report.HasErrors() {
		t.Fatal("document-level findings must be warnings")
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	d := doc(
		dialogue.Node{ID: "START", NextNode: "A"},
		dialogue.Node{ID: "A", Choices: []dialogue.Choice{
			{Text: "b", TargetNode: "B"},
			{Text: "c", TargetNode: "C", ChoiceID: "c"},
			{Text: "?", TargetNode: "missing", ChoiceID: "m"},
		}},
		dialogue.Node{ID: "B", NextNode: "A"},
		dialogue.Node{ID: "C", NextNode: "B"},
		dialogue.Node{ID: "lonely"},
	)

	first := New(0).Validate(d)
	for i := 0; i < 25; i++ {
		if diff := cmp.Diff(first, New(0).Validate(d)); diff != "" {
			t.Fatalf("run %d differs (-first +run):\n%s", i, diff)
		}
	}
}
