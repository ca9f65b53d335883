// Package solve implements the Steiner solver (C4): given a solution-space
// graph with indispensable leaves marked, it chooses a minimum-cost
// sub-graph (a Steiner tree rooted at graph.SolutionGraph.Root) that covers
// every indispensable terminal, folding in dispensable requirements via a
// fixed-point cost update before running a greedy FLAC heuristic.
package solve

import (
	"fmt"
	"sort"

	"github.com/kataway/supergateway/federation/graph"
)

// maxFixedPointIterations bounds the dispensable-requirement cost update;
// exceeding it means the requirement graph has a cycle that never settles.
const maxFixedPointIterations = 100

// Error is the solver's failure shape.
type Error struct {
	Code    string // "REQUIREMENT_CYCLE_DETECTED" | "FIELD_CANNOT_BE_RESOLVED"
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Solution is the solved sub-graph: the set of edges selected by the
// Steiner-tree heuristic, in the order greedyFLAC added them.
type Solution struct {
	Edges []graph.SolutionEdge
}

// Solve runs the dispensable-requirement fixed point followed by the greedy
// FLAC heuristic over g, whose indispensable/leaf/providable/unreachable
// flags must already be set (graph.SolutionGraph.MarkUnreachable).
func Solve(g *graph.SolutionGraph) (*Solution, error) {
	for _, n := range g.Nodes {
		if n.Kind == graph.NodeField && n.Indispensable && n.Leaf && n.Unreachable {
			return nil, &Error{Code: "FIELD_CANNOT_BE_RESOLVED", Message: fmt.Sprintf("field %d has no reachable resolver", n.QueryFieldID)}
		}
	}

	cost, err := fixedPointCosts(g)
	if err != nil {
		return nil, err
	}

	terminals := indispensableLeaves(g)
	tree := greedyFLAC(g, terminals, cost)

	return &Solution{Edges: tree}, nil
}

// fixedPointCosts computes each node's settled cost from its outgoing edges,
// where every edge offers its weight plus its target's cost: across
// QueryPartition/Field edges the node takes the largest such value, across
// RequiredBySubgraph/RequiredBySupergraph edges the smallest. Iterates
// until costs stop changing or the iteration cap is hit.
func fixedPointCosts(g *graph.SolutionGraph) (map[graph.SolutionNodeID]int, error) {
	cost := make(map[graph.SolutionNodeID]int, len(g.Nodes))
	for _, n := range g.Nodes {
		cost[n.ID] = 0
	}

	for iter := 0; iter < maxFixedPointIterations; iter++ {
		changed := false
		for _, n := range g.Nodes {
			best := cost[n.ID]
			for _, e := range g.EdgesFrom(n.ID) {
				candidate := e.Weight + cost[e.To]
				switch e.Kind {
				case graph.EdgeRequiredBySubgraph, graph.EdgeRequiredBySupergraph:
					// Dispensable requirement: only adds cost if taking it
					// is cheaper than resolving without it.
					if best == 0 || candidate < best {
						best = candidate
					}
				default:
					if candidate > best {
						best = candidate
					}
				}
			}
			if best != cost[n.ID] {
				cost[n.ID] = best
				changed = true
			}
		}
		if !changed {
			return cost, nil
		}
	}
	return nil, &Error{Code: "REQUIREMENT_CYCLE_DETECTED", Message: "dispensable requirement costs did not converge"}
}

func indispensableLeaves(g *graph.SolutionGraph) []graph.SolutionNodeID {
	var out []graph.SolutionNodeID
	for _, n := range g.Nodes {
		if n.Kind == graph.NodeField && n.Indispensable && n.Leaf {
			out = append(out, n.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// greedyFLAC is the Greedy Flow-based Linking Across Clusters heuristic: for
// each terminal, walk the cheapest path back toward an already-selected
// node (or the root on the first terminal), adding its edges to the tree.
// Ties are broken deterministically by (subgraph id, node id) so the same
// operation always yields the same plan.
func greedyFLAC(g *graph.SolutionGraph, terminals []graph.SolutionNodeID, cost map[graph.SolutionNodeID]int) []graph.SolutionEdge {
	selected := map[graph.SolutionNodeID]bool{g.Root: true}
	var tree []graph.SolutionEdge
	taken := make(map[[2]graph.SolutionNodeID]bool)

	for _, terminal := range terminals {
		path := cheapestPathToSelected(g, terminal, selected, cost)
		for _, e := range path {
			key := [2]graph.SolutionNodeID{e.From, e.To}
			if taken[key] {
				continue
			}
			taken[key] = true
			tree = append(tree, e)
			selected[e.From] = true
			selected[e.To] = true
		}
	}
	return tree
}

// cheapestPathToSelected runs a small deterministic Dijkstra from start
// across reversed edges until it reaches any already-selected node,
// breaking ties by (resolver subgraph id, node id) to match spec.md §4
// tie-breaking.
func cheapestPathToSelected(g *graph.SolutionGraph, start graph.SolutionNodeID, selected map[graph.SolutionNodeID]bool, cost map[graph.SolutionNodeID]int) []graph.SolutionEdge {
	type item struct {
		node graph.SolutionNodeID
		via  graph.SolutionEdge
		hasVia bool
	}

	dist := map[graph.SolutionNodeID]int{start: 0}
	prevEdge := map[graph.SolutionNodeID]graph.SolutionEdge{}
	hasPrev := map[graph.SolutionNodeID]bool{}
	visited := map[graph.SolutionNodeID]bool{}

	frontier := []item{{node: start}}
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			di, dj := dist[frontier[i].node], dist[frontier[j].node]
			if di != dj {
				return di < dj
			}
			ni, nj := g.Node(frontier[i].node), g.Node(frontier[j].node)
			if ni.Resolver != nj.Resolver {
				return ni.Resolver < nj.Resolver
			}
			return frontier[i].node < frontier[j].node
		})
		cur := frontier[0]
		frontier = frontier[1:]
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.hasVia {
			prevEdge[cur.node] = cur.via
			hasPrev[cur.node] = true
		}
		if selected[cur.node] && cur.node != start {
			return reconstructPath(start, cur.node, prevEdge, hasPrev)
		}

		// incoming edges point TO this node; walk them backward.
		for _, e := range g.Edges {
			if e.To != cur.node || visited[e.From] {
				continue
			}
			nd := dist[cur.node] + e.Weight + cost[e.From]
			if old, ok := dist[e.From]; !ok || nd < old {
				dist[e.From] = nd
				frontier = append(frontier, item{node: e.From, via: graph.SolutionEdge{From: e.From, To: cur.node, Kind: e.Kind, Weight: e.Weight}, hasVia: true})
			}
		}
	}
	return nil
}

func reconstructPath(start, end graph.SolutionNodeID, prevEdge map[graph.SolutionNodeID]graph.SolutionEdge, hasPrev map[graph.SolutionNodeID]bool) []graph.SolutionEdge {
	var out []graph.SolutionEdge
	cur := end
	for cur != start {
		if !hasPrev[cur] {
			break
		}
		e := prevEdge[cur]
		out = append(out, e)
		cur = e.To
	}
	return out
}
