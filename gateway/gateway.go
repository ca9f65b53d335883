// Package gateway is the HTTP/WebSocket transport: CORS, and the
// GraphQL-over-HTTP and graphql-transport-ws protocols, wired to the
// federation core. Each HTTP request carries one JSON-encoded operation and
// gets one application/json response; batched request arrays and
// multipart/mixed @defer responses are not supported.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/kataway/supergateway/federation/authz"
	"github.com/kataway/supergateway/federation/bind"
	"github.com/kataway/supergateway/federation/capability"
	"github.com/kataway/supergateway/federation/exec"
	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/federation/plan"
	"github.com/kataway/supergateway/federation/respstore"
	"github.com/kataway/supergateway/federation/solve"
)

// Gateway is the composed federation server: schema, executor, and the
// capabilities it was constructed with.
type Gateway struct {
	schema     *graph.Schema
	executor   *exec.Executor
	cache      capability.OperationCache
	extensions capability.Extensions
	logger     *slog.Logger
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithOperationCache stores a plan cache on the Gateway. serveGraphQL does
// not read from or write to it; every request is bound, solved and planned
// afresh.
func WithOperationCache(c capability.OperationCache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithExtensions installs the auth capability, shared by the query-time
// modifier pass here and the executor's response-time modifier pass.
func WithExtensions(e capability.Extensions) Option {
	return func(g *Gateway) {
		g.extensions = e
		g.executor.Extensions = e
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New builds a Gateway from a composed schema and a subgraph fetcher.
func New(schema *graph.Schema, fetcher capability.Fetcher, metrics capability.Metrics, opts ...Option) *Gateway {
	g := &Gateway{
		schema:   schema,
		executor: &exec.Executor{Schema: schema, Fetcher: fetcher, Metrics: metrics},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler builds the net/http handler for the GraphQL-over-HTTP transport,
// wrapped in the configured CORS policy.
func (g *Gateway) Handler(corsSettings CORSSetting) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", g.serveGraphQL)
	mux.HandleFunc("/graphql/ws", g.serveWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins: corsSettings.AllowedOrigins,
		AllowedMethods: corsSettings.AllowedMethods,
		AllowedHeaders: corsSettings.AllowedHeaders,
	})
	return c.Handler(mux)
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []authz.Error  `json:"errors,omitempty"`
}

type headerMap http.Header

func (h headerMap) Header(name string) (string, bool) {
	v := http.Header(h).Get(name)
	return v, v != ""
}

func (g *Gateway) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &authz.Error{Code: authz.CodeOperationParsing, Message: err.Error(), Extensions: map[string]any{"requestId": requestID}})
		return
	}

	bo, err := bind.Bind(g.schema, bind.Request{Query: req.Query, OperationName: req.OperationName, Variables: req.Variables})
	if err != nil {
		writeError(w, toAuthzError(err))
		return
	}

	claims, modErrs := g.evaluateQueryTimeMods(r.Context(), bo, r.Header.Get("Authorization"))
	denied := make(map[bind.FieldID]bool, len(modErrs.denied))
	for _, fid := range modErrs.denied {
		denied[fid] = true
	}
	pruneFields(bo, denied)

	sg := buildSolutionGraph(g.schema, bo)
	sg.MarkUnreachable()

	solution, err := solve.Solve(sg)
	if err != nil {
		writeError(w, &authz.Error{Code: authz.CodeInternal, Message: err.Error()})
		return
	}

	p, err := plan.Materialize(g.schema, bo, sg, solution)
	if err != nil {
		writeError(w, &authz.Error{Code: authz.CodeInternal, Message: err.Error()})
		return
	}

	result, err := g.executor.Execute(r.Context(), p, headerMap(r.Header), claims)
	if err != nil {
		writeError(w, &authz.Error{Code: authz.CodeInternal, Message: err.Error()})
		return
	}

	resp := graphQLResponse{Errors: append(modErrs.errs, result.Errors...)}
	if obj, ok := result.Store.ToJSON(result.Root).(map[string]any); ok {
		resp.Data = obj
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// queryTimeResult is the outcome of evaluating every @authenticated/
// @requiresScopes (and query-time @authorized) modifier against a request:
// which fields were denied, by FieldID, plus the authz.Error to surface for
// each. Denied fields are pruned from the operation before planning, rather
// than nulled out post-execution, so a denial never costs a subgraph round
// trip.
type queryTimeResult struct {
	denied []bind.FieldID
	errs   []authz.Error
}

// evaluateQueryTimeMods authenticates the request's bearer token (if any)
// and evaluates every query-time modifier against the resulting claims.
// A request carrying no Extensions implementation allows every field
// through unconditionally: there is no policy to enforce.
func (g *Gateway) evaluateQueryTimeMods(ctx context.Context, bo *bind.BoundOperation, authHeader string) (authz.Claims, queryTimeResult) {
	var claims authz.Claims
	var qr queryTimeResult

	if g.extensions == nil {
		return claims, qr
	}

	if token, ok := bearerToken(authHeader); ok {
		if c, err := g.extensions.Authenticate(ctx, token); err == nil {
			claims = c
		}
	}

	for _, rule := range bo.QueryTimeMods {
		decision, err := g.extensions.Authorize(ctx, rule.Directive, claims, modifierMetadata(rule), respstore.Value{})
		if err != nil || decision != authz.Allow {
			qr.denied = append(qr.denied, rule.Field)
			qr.errs = append(qr.errs, authz.Error{
				Code:    authz.CodeUnauthorized,
				Message: fmt.Sprintf("field denied by @%s", rule.Directive),
			})
		}
	}
	return claims, qr
}

// modifierMetadata builds the metadata map passed to Extensions.Authorize:
// the rule's Metadata when set, otherwise its scope groups under "scopes"
// (requiresScopes carries those in ModifierRule.Scopes rather than
// Metadata, since the binder only populates Metadata for @authorized).
func modifierMetadata(rule bind.ModifierRule) map[string]any {
	if rule.Metadata != nil {
		return rule.Metadata
	}
	if rule.Scopes != nil {
		return map[string]any{"scopes": rule.Scopes}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):], true
	}
	return "", false
}

// pruneFields removes every denied field from bo's root and nested
// selection sets so the solver and executor never see it.
func pruneFields(bo *bind.BoundOperation, denied map[bind.FieldID]bool) {
	if len(denied) == 0 {
		return
	}
	bo.RootSelections = filterFields(bo.RootSelections, denied)
	for i := range bo.Fields {
		bo.Fields[i].Selections = filterFields(bo.Fields[i].Selections, denied)
	}
}

func filterFields(fieldIDs []bind.FieldID, denied map[bind.FieldID]bool) []bind.FieldID {
	if len(denied) == 0 {
		return fieldIDs
	}
	out := fieldIDs[:0:0]
	for _, fid := range fieldIDs {
		if !denied[fid] {
			out = append(out, fid)
		}
	}
	return out
}

func writeError(w http.ResponseWriter, e *authz.Error) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(graphQLResponse{Errors: []authz.Error{*e}})
}

func (g *Gateway) bindOperation(req graphQLRequest) (*bind.BoundOperation, error) {
	return bind.Bind(g.schema, bind.Request{Query: req.Query, OperationName: req.OperationName, Variables: req.Variables})
}

func toAuthzError(err error) *authz.Error {
	switch e := err.(type) {
	case *bind.Error:
		return &authz.Error{Code: authz.Code(e.Code), Message: e.Message}
	default:
		return &authz.Error{Code: authz.CodeInternal, Message: err.Error()}
	}
}

// buildSolutionGraph constructs the C3 solution-space graph for a bound
// operation: one Field/Typename node per bound field, a candidate
// QueryPartition node per (entity, resolver) pair able to resolve it, and
// Field edges wiring partitions to the fields they cover.
func buildSolutionGraph(schema *graph.Schema, bo *bind.BoundOperation) *graph.SolutionGraph {
	sg := graph.NewSolutionGraph(schema)

	var walk func(fieldIDs []bind.FieldID, parentEntity graph.DefinitionID, parentNode graph.SolutionNodeID)
	walk = func(fieldIDs []bind.FieldID, parentEntity graph.DefinitionID, parentNode graph.SolutionNodeID) {
		for _, fid := range fieldIDs {
			f := &bo.Fields[fid]
			leaf := len(f.Selections) == 0
			var fieldNode graph.SolutionNodeID
			if f.Typename {
				fieldNode = sg.AddTypenameNode(uint32(fid))
			} else {
				fieldNode = sg.AddFieldNode(uint32(fid), true, leaf)
				typeName := schema.Name(schema.Type(parentEntity).Name)
				fieldName := schema.Name(schema.Field(f.Definition).Name)
				for _, resolver := range schema.Resolvers(typeName, fieldName) {
					partitionNode := sg.AddPartitionNode(parentEntity, resolver.Subgraph)
					sg.AddEdge(parentNode, partitionNode, graph.EdgeQueryPartition, 1)
					sg.AddEdge(partitionNode, fieldNode, graph.EdgeField, 0)
				}
				if !leaf {
					outDef := schema.Field(f.Definition).OutputType.NamedType
					walk(f.Selections, outDef, fieldNode)
				}
			}
		}
	}

	walk(bo.RootSelections, bo.RootEntity, sg.Root)
	return sg
}
