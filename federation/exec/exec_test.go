package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kataway/supergateway/federation/authz"
	"github.com/kataway/supergateway/federation/bind"
	"github.com/kataway/supergateway/federation/capability"
	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/federation/plan"
	"github.com/kataway/supergateway/federation/respstore"
	"github.com/kataway/supergateway/federation/solve"
)

const sdl = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean) repeatable on OBJECT
directive @join__field(graph: join__Graph, requires: String, provides: String) repeatable on FIELD_DEFINITION
enum join__Graph { A @join__graph(name: "a", url: "http://a") B @join__graph(name: "b", url: "http://b") }

type Query { widget: Widget }

type Widget @join__type(graph: A, key: "id") @join__type(graph: B, key: "id") {
  id: ID!
  name: String
  price: Int!
  reviews: [Review!]
}

type Review @join__type(graph: B) { id: ID! score: Int! }
`

type fakeHeaders struct{}

func (fakeHeaders) Header(string) (string, bool) { return "", false }

type stubFetcher struct {
	responses map[string]*capability.SubgraphResponse
}

func (f *stubFetcher) Fetch(ctx context.Context, req capability.SubgraphRequest) (*capability.SubgraphResponse, error) {
	return f.responses[req.Subgraph], nil
}

func buildPlan(t *testing.T, schema *graph.Schema, query string) (*bind.BoundOperation, *plan.Plan) {
	t.Helper()
	bo, err := bind.Bind(schema, bind.Request{Query: query})
	require.NoError(t, err)

	widgetDef, _ := schema.LookupType("Widget")
	aID, _ := schema.SubgraphByName("a")
	bID, _ := schema.SubgraphByName("b")

	sg := graph.NewSolutionGraph(schema)
	rootField := sg.AddFieldNode(uint32(bo.RootSelections[0]), true, false)
	partA := sg.AddPartitionNode(widgetDef.ID, aID)
	sg.AddEdge(sg.Root, partA, graph.EdgeQueryPartition, 1)
	sg.AddEdge(partA, rootField, graph.EdgeField, 0)

	widgetField := &bo.Fields[bo.RootSelections[0]]
	for _, fid := range widgetField.Selections {
		f := &bo.Fields[fid]
		if f.Typename {
			continue
		}
		fieldName := schema.Name(schema.Field(f.Definition).Name)
		switch fieldName {
		case "id", "name", "price":
			childNode := sg.AddFieldNode(uint32(fid), true, true)
			sg.AddEdge(partA, childNode, graph.EdgeField, 0)
		case "reviews":
			childNode := sg.AddFieldNode(uint32(fid), true, false)
			partB := sg.AddPartitionNode(widgetDef.ID, bID)
			sg.AddEdge(rootField, partB, graph.EdgeQueryPartition, 1)
			sg.AddEdge(partB, childNode, graph.EdgeField, 0)
		}
	}
	sg.MarkUnreachable()

	sol, err := solve.Solve(sg)
	require.NoError(t, err)

	p, err := plan.Materialize(schema, bo, sg, sol)
	require.NoError(t, err)
	return bo, p
}

func TestExecuteMergesRootPartitionFields(t *testing.T) {
	schema, err := graph.Build([]byte(sdl), []graph.SubgraphConfig{{Name: "a", URL: "http://a"}, {Name: "b", URL: "http://b"}})
	require.NoError(t, err)

	_, p := buildPlan(t, schema, `query { widget { id name price } }`)

	fetcher := &stubFetcher{responses: map[string]*capability.SubgraphResponse{
		"a": {Data: map[string]any{"widget": map[string]any{"id": "1", "name": "Widget", "price": float64(42)}}},
	}}
	e := &Executor{Schema: schema, Fetcher: fetcher}

	res, err := e.Execute(context.Background(), p, fakeHeaders{}, authz.Claims{})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	got := res.Store.ToJSON(res.Root).(map[string]any)
	widget := got["widget"].(map[string]any)
	require.Equal(t, "1", widget["id"])
	require.Equal(t, "Widget", widget["name"])
	require.Equal(t, int64(42), widget["price"])
}

func TestExecuteNonNullMismatchPropagatesNull(t *testing.T) {
	schema, err := graph.Build([]byte(sdl), []graph.SubgraphConfig{{Name: "a", URL: "http://a"}, {Name: "b", URL: "http://b"}})
	require.NoError(t, err)

	_, p := buildPlan(t, schema, `query { widget { id name price } }`)

	fetcher := &stubFetcher{responses: map[string]*capability.SubgraphResponse{
		// price is Int! but the subgraph sends a string: must be rejected and nulled.
		"a": {Data: map[string]any{"widget": map[string]any{"id": "1", "name": "Widget", "price": "not-a-number"}}},
	}}
	e := &Executor{Schema: schema, Fetcher: fetcher}

	res, err := e.Execute(context.Background(), p, fakeHeaders{}, authz.Claims{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Errors)
	require.Equal(t, authz.CodeSubgraphInvalidResp, res.Errors[0].Code)

	got := res.Store.ToJSON(res.Root)
	// widget.price is non-null, so the invalid value cuts the null up to the
	// nearest nullable ancestor: widget itself (the root field is nullable).
	require.Equal(t, map[string]any{"widget": nil}, got)
}

func TestBuildRepresentationProjectsKeyFields(t *testing.T) {
	store := respstore.New()
	obj := store.NewObject(0, false)
	store.SetField(obj, "id", store.NewScalar(respstore.Value{Kind: respstore.KindStr, Str: "42"}))
	store.SetField(obj, "name", store.NewScalar(respstore.Value{Kind: respstore.KindStr, Str: "Widget"}))

	rep := buildRepresentation(store, "Widget", []graph.KeyField{{Name: "id"}}, obj)
	require.Equal(t, map[string]any{"__typename": "Widget", "id": "42"}, rep)
}

func TestBuildPartitionQueryRendersEntityFetch(t *testing.T) {
	schema, err := graph.Build([]byte(sdl), []graph.SubgraphConfig{{Name: "a", URL: "http://a"}, {Name: "b", URL: "http://b"}})
	require.NoError(t, err)

	bo, p := buildPlan(t, schema, `query { widget { id reviews { id score } } }`)

	var entityPartition *plan.Partition
	for i := range p.Partitions {
		if p.Partitions[i].IsEntityFetch {
			entityPartition = &p.Partitions[i]
		}
	}
	require.NotNil(t, entityPartition)

	q := BuildPartitionQuery(schema, bo, entityPartition)
	require.Contains(t, q, "_entities(representations: $representations)")
	require.Contains(t, q, "... on Widget")
	require.Contains(t, q, "reviews")
}
