package validation

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"dialoguegen/api/internal/util"
)

// cycleFinder enumerates elementary cycles with Johnson's algorithm. Every
// traversal keeps an explicit stack instead of recursing, so long dialogue
// chains cannot exhaust the goroutine stack.
type cycleFinder struct {
	g     *graph
	succ  [][]int
	pred  [][]int
	limit int

	scc     []int
	stamp   int
	back    []int
	comp    []int
	members []int

	blocked  []bool
	blockers [][]int

	found Report
	full  bool
}

type frame struct {
	v     int
	next  int
	found bool
}

// findCycles works in rank space: rank r is the r-th distinct node in
// document order. Each cycle is reported once, rooted at its earliest node.
func findCycles(g *graph, limit int) Report {
	n := len(g.members)
	rank := make(map[int]int, n)
	for r, i := range g.members {
		rank[i] = r
	}
	f := &cycleFinder{
		g:        g,
		succ:     make([][]int, n),
		pred:     make([][]int, n),
		limit:    limit,
		back:     make([]int, n),
		comp:     make([]int, n),
		blocked:  make([]bool, n),
		blockers: make([][]int, n),
	}
	for r, i := range g.members {
		for _, to := range g.adj[i] {
			t := rank[to]
			f.succ[r] = append(f.succ[r], t)
			f.pred[t] = append(f.pred[t], r)
		}
	}

	f.scc = f.components()
	sizes := make(map[int]int)
	for _, id := range f.scc {
		sizes[id]++
	}
	for s := 0; s < n && !f.full; s++ {
		selfLoop := slices.Contains(f.succ[s], s)
		if sizes[f.scc[s]] == 1 && !selfLoop {
			continue
		}
		if !f.component(s, selfLoop) {
			continue
		}
		f.circuit(s)
	}

	if f.full {
		f.found = append(f.found, Finding{
			Code:     CodeCycleLimitReached,
			Message:  fmt.Sprintf("stopped after %d cycles; more exist", f.limit),
			Path:     "nodes",
			Severity: SeverityWarning,
		})
	}
	return f.found
}

// components labels strongly connected components of the whole graph
// (Kosaraju, both passes iterative).
func (f *cycleFinder) components() []int {
	n := len(f.succ)
	visited := make([]bool, n)
	order := make([]int, 0, n)
	for root := 0; root < n; root++ {
		if visited[root] {
			continue
		}
		visited[root] = true
		stack := []frame{{v: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(f.succ[top.v]) {
				w := f.succ[top.v][top.next]
				top.next++
				if !visited[w] {
					visited[w] = true
					stack = append(stack, frame{v: w})
				}
				continue
			}
			order = append(order, top.v)
			stack = stack[:len(stack)-1]
		}
	}

	scc := make([]int, n)
	for i := range scc {
		scc[i] = -1
	}
	id := 0
	for i := len(order) - 1; i >= 0; i-- {
		root := order[i]
		if scc[root] >= 0 {
			continue
		}
		scc[root] = id
		work := []int{root}
		for len(work) > 0 {
			x := work[len(work)-1]
			work = work[:len(work)-1]
			for _, w := range f.pred[x] {
				if scc[w] < 0 {
					scc[w] = id
					work = append(work, w)
				}
			}
		}
		id++
	}
	return scc
}

// component marks the strongly connected component of s inside the
// subgraph of ranks >= s and reports whether it can hold a cycle through s.
// The backward sweep runs first so chains bail out in constant time.
func (f *cycleFinder) component(s int, selfLoop bool) bool {
	f.stamp++
	stamp := f.stamp
	inScope := func(r int) bool { return r >= s && f.scc[r] == f.scc[s] }

	f.back[s] = stamp
	reached := 1
	work := []int{s}
	for len(work) > 0 {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		for _, w := range f.pred[x] {
			if inScope(w) && f.back[w] != stamp {
				f.back[w] = stamp
				reached++
				work = append(work, w)
			}
		}
	}
	if reached == 1 && !selfLoop {
		return false
	}

	f.members = f.members[:0]
	f.comp[s] = stamp
	f.members = append(f.members, s)
	work = append(work[:0], s)
	for len(work) > 0 {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		for _, w := range f.succ[x] {
			if f.back[w] == stamp && inScope(w) && f.comp[w] != stamp {
				f.comp[w] = stamp
				f.members = append(f.members, w)
				work = append(work, w)
			}
		}
	}
	return true
}

func (f *cycleFinder) inComponent(r int) bool {
	return f.comp[r] == f.stamp
}

func (f *cycleFinder) circuit(s int) {
	for _, r := range f.members {
		f.blocked[r] = false
		f.blockers[r] = f.blockers[r][:0]
	}

	path := []int{s}
	stack := []frame{{v: s}}
	f.blocked[s] = true
	for len(stack) > 0 && !f.full {
		top := &stack[len(stack)-1]
		if top.next < len(f.succ[top.v]) {
			w := f.succ[top.v][top.next]
			top.next++
			switch {
			case !f.inComponent(w):
			case w == s:
				f.emit(path)
				top.found = true
			case !f.blocked[w]:
				f.blocked[w] = true
				path = append(path, w)
				stack = append(stack, frame{v: w})
			}
			continue
		}

		v, found := top.v, top.found
		if found {
			f.unblock(v)
		} else {
			for _, w := range f.succ[v] {
				if f.inComponent(w) && !slices.Contains(f.blockers[w], v) {
					f.blockers[w] = append(f.blockers[w], v)
				}
			}
		}
		stack = stack[:len(stack)-1]
		path = path[:len(path)-1]
		if found && len(stack) > 0 {
			stack[len(stack)-1].found = true
		}
	}
}

func (f *cycleFinder) unblock(u int) {
	f.blocked[u] = false
	work := []int{u}
	for len(work) > 0 {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		for _, w := range f.blockers[x] {
			if f.blocked[w] {
				f.blocked[w] = false
				work = append(work, w)
			}
		}
		f.blockers[x] = f.blockers[x][:0]
	}
}

func (f *cycleFinder) emit(path []int) {
	if len(f.found) >= f.limit {
		f.full = true
		return
	}
	ids := make([]string, len(path))
	for i, r := range path {
		ids[i] = f.g.doc.Nodes[f.g.members[r]].ID
	}
	closed := append(slices.Clone(ids), ids[0])
	nodes := slices.Clone(ids)
	sort.Strings(nodes)

	f.found = append(f.found, Finding{
		Code:       CodeCycleDetected,
		Message:    "cycle detected: " + strings.Join(closed, " -> "),
		Path:       fmt.Sprintf("nodes[%d]", f.g.members[path[0]]),
		NodeID:     ids[0],
		Severity:   SeverityWarning,
		CyclePath:  closed,
		CycleNodes: nodes,
		CycleID:    cycleID(ids),
	})
}

// cycleID hashes the rooted node sequence; distinct cycles in one pass
// always differ in that sequence.
func cycleID(ids []string) string {
	return "cycle-" + util.Digest(ids...)[:12]
}
