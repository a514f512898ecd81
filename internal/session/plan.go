package session

import (
	"context"
	"fmt"

	"github.com/whimxiqal/journey-sub005/internal/goal"
	"github.com/whimxiqal/journey-sub005/internal/graph"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

// legPlan is one domain-local search the itinerary needs, plus the port that
// follows it (nil on the last leg).
type legPlan struct {
	origin model.Cell
	goal   goal.Goal
	port   *model.Port
}

type node struct {
	cell model.Cell
	sink bool
}

type hop struct {
	port     *model.Port
	estimate float64
}

// plan picks the ports to take. Goals without targets, or whose targets all
// lie in the origin domain, need a single leg and no routing.
func (s *Session) plan(ctx context.Context) ([]legPlan, bool, error) {
	targets := s.req.Goal.Targets()
	if local(s.req.Origin.Domain, targets) {
		return []legPlan{{origin: s.req.Origin, goal: s.req.Goal}}, true, nil
	}
	if s.env.Ports == nil {
		return nil, false, nil
	}
	all, err := s.env.Ports.All(ctx, s.req.PortModes)
	if err != nil {
		return nil, false, fmt.Errorf("port store: %w", err)
	}

	g := graph.New[node, hop]()
	origin := node{cell: s.req.Origin}
	sink := node{sink: true}
	g.AddNode(origin)
	g.AddNode(sink)

	sources := map[model.DomainID][]model.Cell{s.req.Origin.Domain: {s.req.Origin}}
	exits := map[model.DomainID][]model.Cell{}
	for i := range all {
		p := all[i]
		g.AddEdge(node{cell: p.Origin}, node{cell: p.Destination}, hop{port: &p, estimate: p.Cost})
		exits[p.Origin.Domain] = append(exits[p.Origin.Domain], p.Origin)
		sources[p.Destination.Domain] = append(sources[p.Destination.Domain], p.Destination)
	}
	byDomain := map[model.DomainID][]model.Cell{}
	for _, t := range targets {
		g.AddEdge(node{cell: t}, sink, hop{})
		byDomain[t.Domain] = append(byDomain[t.Domain], t)
	}

	for d, from := range sources {
		for _, a := range from {
			for _, b := range exits[d] {
				est, err := s.estimate(a, goal.At(b))
				if err != nil {
					return nil, false, err
				}
				g.AddEdge(node{cell: a}, node{cell: b}, hop{estimate: est})
			}
			if ts := byDomain[d]; len(ts) > 0 {
				est, err := s.estimate(a, s.req.Goal)
				if err != nil {
					return nil, false, err
				}
				for _, t := range ts {
					g.AddEdge(node{cell: a}, node{cell: t}, hop{estimate: est})
				}
			}
		}
	}

	route, ok, err := g.Shortest(origin, sink, graph.Weights[node, hop]{
		Node: func(n node) float64 {
			if n.sink || s.env.CellWeight == nil {
				return 0
			}
			return s.env.CellWeight(n.cell)
		},
		Edge: func(e graph.Edge[node, hop]) float64 { return e.Data.estimate },
	})
	if err != nil || !ok {
		return nil, false, err
	}

	return assemble(s.req.Origin, s.req.Goal, route.Edges), true, nil
}

// local reports whether a goal can be searched without leaving domain d.
func local(d model.DomainID, targets []model.Cell) bool {
	for _, t := range targets {
		if t.Domain != d {
			return false
		}
	}
	return true
}

// assemble turns a routed edge list into legs. A port taken straight from a
// leg's origin leaves that leg with a single-cell path, so ports always sit
// between two paths. The last leg searches for the request goal.
func assemble(origin model.Cell, g goal.Goal, edges []graph.Edge[node, hop]) []legPlan {
	var legs []legPlan
	cur := legPlan{origin: origin}
	for _, e := range edges {
		switch {
		case e.To.sink:
		case e.Data.port != nil:
			if cur.goal == nil {
				cur.goal = goal.At(cur.origin)
			}
			cur.port = e.Data.port
			legs = append(legs, cur)
			cur = legPlan{origin: e.Data.port.Destination}
		default:
			cur.goal = goal.At(e.To.cell)
		}
	}
	cur.goal = g
	return append(legs, cur)
}

// estimate is the approximate trial's cost for one intra-domain hop.
func (s *Session) estimate(from model.Cell, g goal.Goal) (float64, error) {
	t, err := trial.Approximate(s.trialParams(from, g))
	if err != nil {
		return 0, err
	}
	return t.Estimate(), nil
}
