// Package capability defines the gateway's external collaborator
// contracts (transport, caching, rate limiting, auth), each specified as a
// small interface so a concrete implementation can be swapped at
// construction time without the core planning/execution packages knowing
// about HTTP, JWT, or any particular cache backend.
package capability

import (
	"context"
	"time"

	"github.com/kataway/supergateway/federation/authz"
	"github.com/kataway/supergateway/federation/plan"
	"github.com/kataway/supergateway/federation/respstore"
)

// SubgraphRequest is one outbound request to a subgraph.
type SubgraphRequest struct {
	Subgraph string
	URL      string
	Query    string
	Variables map[string]any
	Headers  map[string]string
}

// SubgraphResponse is a subgraph's raw GraphQL response.
type SubgraphResponse struct {
	Data       map[string]any
	Errors     []authz.Error
	StatusCode int
}

// Fetcher dispatches one GraphQL request to a subgraph over whatever
// transport the gateway was configured with.
type Fetcher interface {
	Fetch(ctx context.Context, req SubgraphRequest) (*SubgraphResponse, error)
}

// EntityCache caches `_entities` resolutions keyed by (subgraph, type, key
// fingerprint), honoring each subgraph's configured TTL.
type EntityCache interface {
	Get(ctx context.Context, key string) (respstore.ValueID, bool)
	Set(ctx context.Context, key string, value respstore.ValueID, ttl time.Duration)
}

// OperationCache caches solved plans keyed by
// (schema_version, operation_document_hash, operation_name).
type OperationCache interface {
	Get(key string) (*plan.Plan, bool)
	Put(key string, p *plan.Plan)
}

// RateLimiter enforces a request budget, per operation or per principal.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Extensions is the authentication/authorization capability contract:
// the core calls it to resolve bearer tokens into Claims and to decide
// @authorized outcomes; the decision logic for any specific identity
// provider lives entirely behind this interface.
type Extensions interface {
	Authenticate(ctx context.Context, token string) (authz.Claims, error)
	Authorize(ctx context.Context, rule string, claims authz.Claims, metadata map[string]any, value respstore.Value) (authz.Decision, error)
}

// Metrics is the process-wide telemetry capability: request counts,
// partition latencies, and solver iteration counts, kept behind an
// interface so the core never imports a metrics backend directly.
type Metrics interface {
	ObserveRequest(operationName string, d time.Duration, ok bool)
	ObservePartition(subgraph string, d time.Duration, ok bool)
	ObserveSolverIterations(n int)
}
