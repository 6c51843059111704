// Package graph provides the small directed-graph machinery the emitter
// needs: a minimal feedback arc set approximation and topological sorting.
package graph

// Digraph is a directed graph over vertices 0..N-1.
type Digraph struct {
	n     int
	edges [][2]int
}

func New(n int) *Digraph {
	return &Digraph{n: n}
}

func (g *Digraph) AddEdge(from, to int) {
	g.edges = append(g.edges, [2]int{from, to})
}

func (g *Digraph) Edges() [][2]int { return g.edges }

// FeedbackArcSet returns indices into Edges() whose removal makes the graph
// acyclic. It computes a vertex sequence with the Eades–Lin–Smyth
// heuristic, a standard near-minimal approximation, and selects the edges
// that point backwards in it.
func (g *Digraph) FeedbackArcSet() []int {
	if g.n == 0 || len(g.edges) == 0 {
		return nil
	}

	outdeg := make([]int, g.n)
	indeg := make([]int, g.n)
	outs := make([][]int, g.n)
	ins := make([][]int, g.n)
	for _, e := range g.edges {
		if e[0] == e[1] {
			continue
		}
		outdeg[e[0]]++
		indeg[e[1]]++
		outs[e[0]] = append(outs[e[0]], e[1])
		ins[e[1]] = append(ins[e[1]], e[0])
	}

	removed := make([]bool, g.n)
	var left, right []int
	remaining := g.n

	remove := func(v int) {
		removed[v] = true
		remaining--
		for _, w := range outs[v] {
			if !removed[w] {
				indeg[w]--
			}
		}
		for _, w := range ins[v] {
			if !removed[w] {
				outdeg[w]--
			}
		}
	}

	for remaining > 0 {
		progress := true
		for progress {
			progress = false
			for v := 0; v < g.n; v++ {
				if !removed[v] && outdeg[v] == 0 {
					remove(v)
					right = append(right, v)
					progress = true
				}
			}
			for v := 0; v < g.n; v++ {
				if !removed[v] && indeg[v] == 0 {
					remove(v)
					left = append(left, v)
					progress = true
				}
			}
		}
		if remaining == 0 {
			break
		}
		// Pick the vertex maximizing outdeg - indeg.
		best, bestScore := -1, 0
		for v := 0; v < g.n; v++ {
			if removed[v] {
				continue
			}
			score := outdeg[v] - indeg[v]
			if best == -1 || score > bestScore {
				best, bestScore = v, score
			}
		}
		remove(best)
		left = append(left, best)
	}

	pos := make([]int, g.n)
	idx := 0
	for _, v := range left {
		pos[v] = idx
		idx++
	}
	for i := len(right) - 1; i >= 0; i-- {
		pos[right[i]] = idx
		idx++
	}

	var fas []int
	for i, e := range g.edges {
		if e[0] == e[1] || pos[e[0]] > pos[e[1]] {
			fas = append(fas, i)
		}
	}
	return fas
}

// TopoSort orders vertices leaves-first (every vertex comes after the
// vertices it points to), ignoring the edges whose indices appear in skip.
// The graph minus the skipped edges must be acyclic.
func (g *Digraph) TopoSort(skip []int) []int {
	skipped := map[int]bool{}
	for _, i := range skip {
		skipped[i] = true
	}
	outs := make([][]int, g.n)
	for i, e := range g.edges {
		if !skipped[i] {
			outs[e[0]] = append(outs[e[0]], e[1])
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, g.n)
	var order []int
	var visit func(v int)
	visit = func(v int) {
		if state[v] != unvisited {
			return
		}
		state[v] = visiting
		for _, w := range outs[v] {
			visit(w)
		}
		state[v] = done
		order = append(order, v)
	}
	for v := 0; v < g.n; v++ {
		visit(v)
	}
	return order
}
