package graph

import (
	"testing"
)

func TestFeedbackArcSetOnAcyclicGraph(t *testing.T) {
	g := New(3)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	if fas := g.FeedbackArcSet(); len(fas) != 0 {
		t.Errorf("acyclic graph needs no broken edges, got %v", fas)
	}
}

func TestFeedbackArcSetBreaksCycle(t *testing.T) {
	g := New(2)
	g.AddEdge(0, 1)
	g.AddEdge(1, 0)
	fas := g.FeedbackArcSet()
	if len(fas) != 1 {
		t.Fatalf("a 2-cycle needs exactly one broken edge, got %d", len(fas))
	}
	order := g.TopoSort(fas)
	if len(order) != 2 {
		t.Fatalf("all vertices must appear in the order")
	}
}

func TestFeedbackArcSetSelfLoop(t *testing.T) {
	g := New(1)
	g.AddEdge(0, 0)
	if fas := g.FeedbackArcSet(); len(fas) != 1 {
		t.Errorf("self loops are always broken")
	}
}

func TestTopoSortRespectsEdges(t *testing.T) {
	g := New(4)
	g.AddEdge(0, 1)
	g.AddEdge(0, 2)
	g.AddEdge(1, 3)
	g.AddEdge(2, 3)
	order := g.TopoSort(nil)
	pos := make([]int, 4)
	for i, v := range order {
		pos[v] = i
	}
	// Successors-first: every vertex appears after the vertices it points
	// to.
	for _, e := range g.Edges() {
		if pos[e[0]] < pos[e[1]] {
			t.Errorf("edge %v->%v violated by order %v", e[0], e[1], order)
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	g := New(0)
	if fas := g.FeedbackArcSet(); fas != nil {
		t.Errorf("no vertices, no feedback arcs")
	}
	if order := g.TopoSort(nil); len(order) != 0 {
		t.Errorf("no vertices, empty order")
	}
}
