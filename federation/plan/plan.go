// Package plan turns a solved solution graph (C4 output) into an ordered
// set of query partitions (C5): one subgraph request each, carrying
// parent/child entity-fetch links for queries and MutationExecutedAfter
// ordering for mutations.
package plan

import (
	"fmt"
	"sort"

	"github.com/kataway/supergateway/federation/bind"
	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/federation/solve"
)

// PartitionID indexes Plan.Partitions.
type PartitionID uint32

// Partition is one subgraph request: a root entity, the subgraph that
// resolves it, the bound fields it must select, and its dependency edges.
type Partition struct {
	ID            PartitionID
	Subgraph      graph.SubgraphID
	Entity        graph.DefinitionID
	RootFields    []bind.FieldID
	Requires      []graph.KeyField
	Provides      []graph.KeyField
	ParentID      PartitionID
	HasParent     bool
	AnchorField   bind.FieldID // parent-scope field whose resolved entities seed this partition's representations; valid iff HasParent
	DeferLabel    string
	IsEntityFetch bool
}

// Plan is the C5 output: a DAG of partitions. For mutations, partitions
// execute strictly in Order; for queries, a partition with HasParent can
// only run after ParentID completes, and partitions without a parent
// relationship may run concurrently.
type Plan struct {
	Operation  *bind.BoundOperation
	Partitions []Partition
	Order      []PartitionID // mutation sequencing; empty for queries
}

// Error is a plan-materialization failure.
type Error struct{ Message string }

func (e *Error) Error() string { return fmt.Sprintf("plan materialization: %s", e.Message) }

// Materialize builds a Plan from the solver's selected sub-graph.
//
// buildSolutionGraph (gateway package) wires each bound field to its
// candidate partitions as root/field -> partition -> field chains: a
// partition's RootFields come from its outgoing EdgeField edges, and the
// partition that resolves a field nested under another field's selection
// set shares that field's SolutionNode as its incoming EdgeQueryPartition
// source. That shared node is what lets Materialize recover the
// parent/child entity-fetch chain: the partition owning the EdgeField edge
// into a field node is that field's resolver (provider); any other
// partition whose EdgeQueryPartition edge originates at that same field
// node is a child needing an `_entities` fetch seeded from what the
// provider already resolved.
func Materialize(schema *graph.Schema, op *bind.BoundOperation, sg *graph.SolutionGraph, sol *solve.Solution) (*Plan, error) {
	m := &materializer{schema: schema, op: op, sg: sg}

	byPartitionNode := make(map[graph.SolutionNodeID]PartitionID)
	providerOfField := make(map[graph.SolutionNodeID]PartitionID)

	for _, e := range sol.Edges {
		if e.Kind != graph.EdgeField {
			continue
		}
		fromNode := sg.Node(e.From)
		if fromNode.Kind != graph.NodeQueryPartition {
			continue
		}
		pid, ok := byPartitionNode[e.From]
		if !ok {
			pid = m.newPartition(fromNode)
			byPartitionNode[e.From] = pid
		}
		toNode := sg.Node(e.To)
		if toNode.Kind == graph.NodeField {
			fid := bind.FieldID(toNode.QueryFieldID)
			p := &m.partitions[pid]
			p.RootFields = append(p.RootFields, fid)
			providerOfField[e.To] = pid
		}
	}

	// Anchor every partition reached through a field (rather than directly
	// through the operation root) to that field and to the partition
	// providing it: that is the parent/child entity-fetch link.
	for _, e := range sol.Edges {
		if e.Kind != graph.EdgeQueryPartition {
			continue
		}
		toNode := sg.Node(e.To)
		if toNode.Kind != graph.NodeQueryPartition {
			continue
		}
		childID, ok := byPartitionNode[e.To]
		if !ok {
			continue
		}
		fromNode := sg.Node(e.From)
		if fromNode.Kind != graph.NodeField {
			continue // rooted directly at the operation root: no parent fetch
		}
		parentID, ok := providerOfField[e.From]
		if !ok {
			continue
		}
		child := &m.partitions[childID]
		child.ParentID = parentID
		child.HasParent = true
		child.IsEntityFetch = true
		child.AnchorField = bind.FieldID(fromNode.QueryFieldID)
		child.Requires = entityKeyFields(schema, child.Entity, child.Subgraph)
	}

	if op.Kind == bind.OperationMutation {
		m.order = mutationOrder(m.partitions)
	}

	return &Plan{Operation: op, Partitions: m.partitions, Order: m.order}, nil
}

// entityKeyFields returns the `@key` selection a subgraph declared for an
// entity type, preferring the key that subgraph itself owns and falling
// back to the first declared key (composite/multi-subgraph keys still
// resolve to a usable representation shape).
func entityKeyFields(schema *graph.Schema, entity graph.DefinitionID, subgraph graph.SubgraphID) []graph.KeyField {
	keys := schema.Type(entity).Keys
	for _, k := range keys {
		if k.Subgraph == subgraph {
			return k.Fields
		}
	}
	if len(keys) > 0 {
		return keys[0].Fields
	}
	return nil
}

type materializer struct {
	schema     *graph.Schema
	op         *bind.BoundOperation
	sg         *graph.SolutionGraph
	partitions []Partition
}

func (m *materializer) newPartition(n *graph.SolutionNode) PartitionID {
	id := PartitionID(len(m.partitions))
	m.partitions = append(m.partitions, Partition{
		ID:       id,
		Subgraph: n.Resolver,
		Entity:   n.Entity,
	})
	return id
}

// mutationOrder returns partitions in declaration (root-selection) order:
// top-level mutation fields execute strictly sequentially per spec, so the
// order is just the order root fields were bound.
func mutationOrder(partitions []Partition) []PartitionID {
	order := make([]PartitionID, len(partitions))
	for i := range partitions {
		order[i] = PartitionID(i)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order
}
