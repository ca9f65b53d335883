package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kataway/supergateway/federation/bind"
	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/federation/solve"
)

const sdl = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean) repeatable on OBJECT
enum join__Graph { A @join__graph(name: "a", url: "http://a") }
type Query { widget: Widget }
type Widget @join__type(graph: A, key: "id") { id: ID! name: String }
`

func TestMaterializeProducesOnePartitionPerResolver(t *testing.T) {
	schema, err := graph.Build([]byte(sdl), []graph.SubgraphConfig{{Name: "a", URL: "http://a"}})
	require.NoError(t, err)

	bo, err := bind.Bind(schema, bind.Request{Query: `query { widget { id name } }`})
	require.NoError(t, err)

	widgetDef, _ := schema.LookupType("Widget")
	aID, _ := schema.SubgraphByName("a")

	sg := graph.NewSolutionGraph(schema)
	fieldNode := sg.AddFieldNode(uint32(bo.RootSelections[0]), true, false)
	partitionNode := sg.AddPartitionNode(widgetDef.ID, aID)
	sg.AddEdge(sg.Root, partitionNode, graph.EdgeQueryPartition, 1)
	sg.AddEdge(partitionNode, fieldNode, graph.EdgeField, 0)
	sg.MarkUnreachable()

	sol, err := solve.Solve(sg)
	require.NoError(t, err)

	p, err := Materialize(schema, bo, sg, sol)
	require.NoError(t, err)
	require.Len(t, p.Partitions, 1)

	want := graph.SubgraphID(aID)
	if diff := cmp.Diff(want, p.Partitions[0].Subgraph); diff != "" {
		t.Fatalf("unexpected partition subgraph (-want +got):\n%s", diff)
	}
}
