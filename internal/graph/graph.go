// Package graph is a generic weighted directed graph with a Dijkstra router.
// Node weights fold per-node penalties (e.g. an unusable port) into the route
// cost without touching edges.
package graph

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

var ErrUnknownNode = errors.New("unknown node")

type Edge[N comparable, E any] struct {
	From N
	To   N
	Data E
}

type Graph[N comparable, E any] struct {
	nodes map[N]int
	order []N
	adj   map[N][]Edge[N, E]
	edges int
}

func New[N comparable, E any]() *Graph[N, E] {
	return &Graph[N, E]{nodes: map[N]int{}, adj: map[N][]Edge[N, E]{}}
}

func (g *Graph[N, E]) AddNode(n N) {
	if _, ok := g.nodes[n]; ok {
		return
	}
	g.nodes[n] = len(g.order)
	g.order = append(g.order, n)
}

// AddEdge adds both endpoints if needed. Parallel edges are kept.
func (g *Graph[N, E]) AddEdge(from, to N, data E) {
	g.AddNode(from)
	g.AddNode(to)
	g.adj[from] = append(g.adj[from], Edge[N, E]{From: from, To: to, Data: data})
	g.edges++
}

func (g *Graph[N, E]) Has(n N) bool {
	_, ok := g.nodes[n]
	return ok
}

func (g *Graph[N, E]) Nodes() []N { return append([]N(nil), g.order...) }

func (g *Graph[N, E]) NodeCount() int { return len(g.order) }

func (g *Graph[N, E]) EdgeCount() int { return g.edges }

func (g *Graph[N, E]) Out(n N) []Edge[N, E] { return append([]Edge[N, E](nil), g.adj[n]...) }

// Route alternates Nodes[0], Edges[0], Nodes[1], ... Nodes[len(Edges)].
type Route[N comparable, E any] struct {
	Nodes []N
	Edges []Edge[N, E]
	Cost  float64
}

// Weights supplies the cost model. A nil func counts as zero; +Inf excludes
// the node or edge.
type Weights[N comparable, E any] struct {
	Node func(N) float64
	Edge func(Edge[N, E]) float64
}

type item[N comparable] struct {
	node N
	dist float64
	seq  uint64
}

type queue[N comparable] []item[N]

func (q queue[N]) Len() int { return len(q) }
func (q queue[N]) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q queue[N]) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue[N]) Push(x any)   { *q = append(*q, x.(item[N])) }
func (q *queue[N]) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// Shortest returns the cheapest route from origin to dest. ok is false when
// dest cannot be reached. Ties keep the edge relaxed first.
func (g *Graph[N, E]) Shortest(origin, dest N, w Weights[N, E]) (Route[N, E], bool, error) {
	if !g.Has(origin) {
		return Route[N, E]{}, false, fmt.Errorf("origin %v: %w", origin, ErrUnknownNode)
	}
	if !g.Has(dest) {
		return Route[N, E]{}, false, fmt.Errorf("destination %v: %w", dest, ErrUnknownNode)
	}
	nodeW := func(n N) float64 {
		if w.Node == nil {
			return 0
		}
		return w.Node(n)
	}
	edgeW := func(e Edge[N, E]) float64 {
		if w.Edge == nil {
			return 0
		}
		return w.Edge(e)
	}

	start := nodeW(origin)
	if math.IsInf(start, 1) {
		return Route[N, E]{}, false, nil
	}
	dist := map[N]float64{origin: start}
	via := map[N]Edge[N, E]{}
	done := map[N]bool{}
	var seq uint64
	q := &queue[N]{{node: origin, dist: start, seq: seq}}

	for q.Len() > 0 {
		cur := heap.Pop(q).(item[N])
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == dest {
			break
		}
		for _, e := range g.adj[cur.node] {
			if done[e.To] {
				continue
			}
			l := edgeW(e)
			nw := nodeW(e.To)
			if l < 0 || nw < 0 {
				return Route[N, E]{}, false, fmt.Errorf("negative weight on %v->%v", e.From, e.To)
			}
			nd := cur.dist + l + nw
			if math.IsInf(nd, 1) {
				continue
			}
			if old, ok := dist[e.To]; ok && nd >= old {
				continue
			}
			dist[e.To] = nd
			via[e.To] = e
			seq++
			heap.Push(q, item[N]{node: e.To, dist: nd, seq: seq})
		}
	}

	if !done[dest] {
		return Route[N, E]{}, false, nil
	}
	var edges []Edge[N, E]
	for n := dest; n != origin; {
		e := via[n]
		edges = append(edges, e)
		n = e.From
	}
	r := Route[N, E]{Nodes: make([]N, 0, len(edges)+1), Edges: make([]Edge[N, E], 0, len(edges)), Cost: dist[dest]}
	r.Nodes = append(r.Nodes, origin)
	for i := len(edges) - 1; i >= 0; i-- {
		r.Edges = append(r.Edges, edges[i])
		r.Nodes = append(r.Nodes, edges[i].To)
	}
	return r, true, nil
}
