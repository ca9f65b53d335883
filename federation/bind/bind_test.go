package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kataway/supergateway/federation/graph"
)

func buildTestSchema(t *testing.T) *graph.Schema {
	t.Helper()
	schema, err := graph.Build([]byte(`
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean) repeatable on OBJECT
enum join__Graph { A @join__graph(name: "a", url: "http://a") }
type Query { widget(id: ID!): Widget }
type Widget @join__type(graph: A, key: "id") { id: ID! name: String }
`), []graph.SubgraphConfig{{Name: "a", URL: "http://a"}})
	require.NoError(t, err)
	return schema
}

func TestBindSimpleQuery(t *testing.T) {
	schema := buildTestSchema(t)
	bo, err := Bind(schema, Request{Query: `query { widget(id: "1") { id name } }`})
	require.NoError(t, err)
	require.Equal(t, OperationQuery, bo.Kind)
	require.Len(t, bo.RootSelections, 1)

	widgetField := bo.Fields[bo.RootSelections[0]]
	require.Equal(t, "widget", widgetField.ResponseKey)
	require.Len(t, widgetField.Selections, 2)
}

func TestBindRejectsUnknownField(t *testing.T) {
	schema := buildTestSchema(t)
	_, err := Bind(schema, Request{Query: `query { widget(id: "1") { nope } }`})
	require.Error(t, err)
}

func TestBindRequiresOperationNameWhenAmbiguous(t *testing.T) {
	schema := buildTestSchema(t)
	_, err := Bind(schema, Request{Query: `
query A { widget(id: "1") { id } }
query B { widget(id: "2") { id } }
`})
	require.Error(t, err)
}
