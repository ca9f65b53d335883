package solve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kataway/supergateway/federation/graph"
)

func buildSimpleGraph(t *testing.T) *graph.SolutionGraph {
	t.Helper()
	schema, err := graph.Build([]byte(`
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean) repeatable on OBJECT
enum join__Graph { A @join__graph(name: "a", url: "http://a") }
type Query { widget: Widget }
type Widget @join__type(graph: A, key: "id") { id: ID! name: String }
`), []graph.SubgraphConfig{{Name: "a", URL: "http://a"}})
	require.NoError(t, err)

	sg := graph.NewSolutionGraph(schema)
	widgetDef, _ := schema.LookupType("Widget")
	aID, _ := schema.SubgraphByName("a")

	fieldNode := sg.AddFieldNode(1, true, true)
	partitionNode := sg.AddPartitionNode(widgetDef.ID, aID)
	sg.AddEdge(sg.Root, partitionNode, graph.EdgeQueryPartition, 1)
	sg.AddEdge(partitionNode, fieldNode, graph.EdgeField, 0)
	sg.MarkUnreachable()
	return sg
}

func TestSolveCoversIndispensableLeaf(t *testing.T) {
	sg := buildSimpleGraph(t)
	sol, err := Solve(sg)
	require.NoError(t, err)
	require.NotEmpty(t, sol.Edges)
}

func TestSolveReportsUnresolvableField(t *testing.T) {
	schema, err := graph.Build([]byte("type Query { widget: String }"), nil)
	require.NoError(t, err)
	sg := graph.NewSolutionGraph(schema)
	sg.AddFieldNode(1, true, true)
	sg.MarkUnreachable()

	_, err = Solve(sg)
	require.Error(t, err)
	var solveErr *Error
	require.ErrorAs(t, err, &solveErr)
	require.Equal(t, "FIELD_CANNOT_BE_RESOLVED", solveErr.Code)
}
