package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String) on FIELD_DEFINITION

enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products.internal")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews.internal")
}

type Query {
  product(id: ID!): Product
}

type Product @join__type(graph: PRODUCTS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  name: String @join__field(graph: PRODUCTS)
  reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  body: String
}
`

func TestBuildComposesSubgraphsAndKeys(t *testing.T) {
	schema, err := Build([]byte(testSDL), []SubgraphConfig{
		{Name: "products", URL: "http://products.internal"},
		{Name: "reviews", URL: "http://reviews.internal"},
	})
	require.NoError(t, err)

	productDef, ok := schema.LookupType("Product")
	require.True(t, ok)
	require.True(t, schema.IsEntity(productDef.ID))
	require.Len(t, productDef.Keys, 2)

	owner, ok := schema.EntityOwner(productDef.ID)
	require.True(t, ok)
	require.Equal(t, "products", schema.Name(schema.Subgraph(owner).Name))

	nameResolvers := schema.Resolvers("Product", "name")
	require.Len(t, nameResolvers, 1)
	require.Equal(t, "products", schema.Name(schema.Subgraph(nameResolvers[0].Subgraph).Name))

	reviewsResolvers := schema.Resolvers("Product", "reviews")
	require.Len(t, reviewsResolvers, 1)
	require.Equal(t, "reviews", schema.Name(schema.Subgraph(reviewsResolvers[0].Subgraph).Name))
}

func TestBuildRejectsMissingQueryType(t *testing.T) {
	_, err := Build([]byte("type Foo { bar: String }"), nil)
	require.Error(t, err)
}
