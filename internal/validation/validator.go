package validation

import (
	"fmt"

	"dialoguegen/api/internal/dialogue"
)

const DefaultMaxCycles = 256

type Validator struct {
	maxCycles int
}

// New returns a validator that stops enumerating cycles after maxCycles.
// Non-positive values select DefaultMaxCycles.
func New(maxCycles int) *Validator {
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	return &Validator{maxCycles: maxCycles}
}

// edge is one outgoing reference, either a choice target or a nextNode.
type edge struct {
	from   int
	target string
	path   string
}

// graph is the indexed view of a document. Only the first node carrying a
// given id takes part in traversal; later duplicates are reported and
// otherwise ignored.
type graph struct {
	doc     dialogue.Document
	index   map[string]int
	members []int
	edges   []edge
	adj     [][]int
	entry   int
}

func buildGraph(doc dialogue.Document) *graph {
	g := &graph{
		doc:   doc,
		index: make(map[string]int, len(doc.Nodes)),
		adj:   make([][]int, len(doc.Nodes)),
		entry: -1,
	}
	for i, node := range doc.Nodes {
		if node.ID == "" {
			continue
		}
		if _, exists := g.index[node.ID]; exists {
			continue
		}
		g.index[node.ID] = i
		g.members = append(g.members, i)
	}

	if start, ok := g.index[dialogue.SentinelStart]; ok {
		g.entry = start
	} else if len(g.members) > 0 {
		g.entry = g.members[0]
	}

	for _, i := range g.members {
		node := doc.Nodes[i]
		seen := make(map[int]struct{})
		add := func(target, path string) {
			g.edges = append(g.edges, edge{from: i, target: target, path: path})
			to, ok := g.index[target]
			if !ok {
				return
			}
			if _, dup := seen[to]; dup {
				return
			}
			seen[to] = struct{}{}
			g.adj[i] = append(g.adj[i], to)
		}
		for j, choice := range node.Choices {
			if choice.TargetNode != "" {
				add(choice.TargetNode, fmt.Sprintf("nodes[%d].choices[%d].targetNode", i, j))
			}
		}
		if node.NextNode != "" {
			add(node.NextNode, fmt.Sprintf("nodes[%d].nextNode", i))
		}
	}
	return g
}

// Validate runs every structural check and merges the findings in a fixed
// order: document, identity, references, orphans, reachability, cycles,
// export requirements. Within a check, findings follow document order.
func (v *Validator) Validate(doc dialogue.Document) Report {
	g := buildGraph(doc)
	report := Report{}
	report = append(report, checkDocument(doc)...)
	report = append(report, checkIdentity(doc)...)
	report = append(report, checkReferences(g)...)
	report = append(report, checkOrphans(g)...)
	report = append(report, checkReachability(g)...)
	report = append(report, findCycles(g, v.maxCycles)...)
	report = append(report, checkExportRequirements(doc)...)
	return report
}

func checkDocument(doc dialogue.Document) Report {
	var findings Report
	if doc.SchemaVersion == "" {
		findings = append(findings, Finding{
			Code:     CodeMissingSchemaVersion,
			Message:  "document has no schemaVersion",
			Path:     "schemaVersion",
			Severity: SeverityWarning,
		})
	}
	if len(doc.Nodes) == 0 {
		findings = append(findings, Finding{
			Code:     CodeEmptyDocument,
			Message:  "document has no nodes",
			Path:     "nodes",
			Severity: SeverityWarning,
		})
	}
	return findings
}

func checkIdentity(doc dialogue.Document) Report {
	var findings Report
	first := make(map[string]int, len(doc.Nodes))
	for i, node := range doc.Nodes {
		path := fmt.Sprintf("nodes[%d].id", i)
		if node.ID == "" {
			findings = append(findings, Finding{
				Code:     CodeMissingNodeID,
				Message:  fmt.Sprintf("node at index %d has no id", i),
				Path:     path,
				Severity: SeverityError,
			})
			continue
		}
		if prev, exists := first[node.ID]; exists {
			findings = append(findings, Finding{
				Code:     CodeDuplicateNodeID,
				Message:  fmt.Sprintf("node id %q already used at index %d", node.ID, prev),
				Path:     path,
				NodeID:   node.ID,
				Severity: SeverityError,
			})
			continue
		}
		first[node.ID] = i
	}
	return findings
}

func checkReferences(g *graph) Report {
	var findings Report
	for _, e := range g.edges {
		if _, ok := g.index[e.target]; ok || dialogue.IsSentinel(e.target) {
			continue
		}
		source := g.doc.Nodes[e.from].ID
		findings = append(findings, Finding{
			Code:     CodeBrokenReference,
			Message:  fmt.Sprintf("node %q references unknown node %q", source, e.target),
			Path:     e.path,
			NodeID:   source,
			Severity: SeverityError,
		})
	}
	return findings
}

func incomingCounts(g *graph) []int {
	counts := make([]int, len(g.doc.Nodes))
	for _, from := range g.members {
		for _, to := range g.adj[from] {
			counts[to]++
		}
	}
	return counts
}

func checkOrphans(g *graph) Report {
	var findings Report
	incoming := incomingCounts(g)
	for _, i := range g.members {
		if i == g.entry || incoming[i] > 0 {
			continue
		}
		id := g.doc.Nodes[i].ID
		findings = append(findings, Finding{
			Code:     CodeOrphanNode,
			Message:  fmt.Sprintf("node %q has no incoming reference", id),
			Path:     fmt.Sprintf("nodes[%d]", i),
			NodeID:   id,
			Severity: SeverityWarning,
		})
	}
	return findings
}

// checkReachability flags nodes that are referenced but still cannot be
// reached from the entry node, e.g. an island loop. Orphans are already
// reported and skipped here.
func checkReachability(g *graph) Report {
	if g.entry < 0 {
		return nil
	}
	reached := make([]bool, len(g.doc.Nodes))
	reached[g.entry] = true
	queue := []int{g.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[current] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var findings Report
	incoming := incomingCounts(g)
	for _, i := range g.members {
		if reached[i] || incoming[i] == 0 {
			continue
		}
		id := g.doc.Nodes[i].ID
		findings = append(findings, Finding{
			Code:     CodeUnreachableNode,
			Message:  fmt.Sprintf("node %q cannot be reached from entry node %q", id, g.doc.Nodes[g.entry].ID),
			Path:     fmt.Sprintf("nodes[%d]", i),
			NodeID:   id,
			Severity: SeverityWarning,
		})
	}
	return findings
}

// checkExportRequirements covers rules that only block in export mode.
func checkExportRequirements(doc dialogue.Document) Report {
	var findings Report
	seen := make(map[string]string)
	for i, node := range doc.Nodes {
		for j, choice := range node.Choices {
			path := fmt.Sprintf("nodes[%d].choices[%d].choiceId", i, j)
			if choice.ChoiceID == "" {
				findings = append(findings, Finding{
					Code:     CodeMissingChoiceID,
					Message:  fmt.Sprintf("choice %d of node %q has no choiceId", j, node.ID),
					Path:     path,
					NodeID:   node.ID,
					Severity: SeverityError,
				})
				continue
			}
			if prev, exists := seen[choice.ChoiceID]; exists {
				findings = append(findings, Finding{
					Code:     CodeDuplicateChoiceID,
					Message:  fmt.Sprintf("choiceId %q already used at %s", choice.ChoiceID, prev),
					Path:     path,
					NodeID:   node.ID,
					Severity: SeverityError,
				})
				continue
			}
			seen[choice.ChoiceID] = path
		}
	}
	return findings
}
