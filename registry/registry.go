// Package registry adapts the gateway's shared-mutable-state idiom
// (atomic.Value snapshot-swap plus a background channel serializing writes)
// into an operation-plan cache: solved plans keyed by
// (schema_version, operation_document_hash, operation_name), evicted on a
// simple size cap rather than a registration-propagation protocol.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/kataway/supergateway/federation/plan"
)

// Key fingerprints one cacheable plan.
type Key struct {
	SchemaVersion string
	OperationHash string
	OperationName string
}

// String renders the cache key's wire form.
func (k Key) String() string {
	return k.SchemaVersion + ":" + k.OperationHash + ":" + k.OperationName
}

// HashOperation returns the stable hash component of a Key for a raw
// operation document.
func HashOperation(document string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:])
}

type putRequest struct {
	key string
	p   *plan.Plan
}

// OperationCache is a bounded plan cache that evicts the least-recently-put
// entry (Get does not refresh an entry's position). Reads never block
// writes: the live cache is an atomic.Value snapshot, and Put calls are
// serialized through a background goroutine, the same shape the teacher's
// Registry used to serialize host registrations through addHostChan.
type OperationCache struct {
	cache   atomic.Value // map[string]*plan.Plan
	order   atomic.Value // []string, most-recently-put last
	puts    chan putRequest
	maxSize int
}

// NewOperationCache starts a cache capped at maxSize entries (0 = unbounded).
func NewOperationCache(maxSize int) *OperationCache {
	c := &OperationCache{puts: make(chan putRequest), maxSize: maxSize}
	c.cache.Store(make(map[string]*plan.Plan))
	c.order.Store(make([]string, 0))
	c.Start()
	return c
}

// Start launches the background writer goroutine.
func (c *OperationCache) Start() {
	go func() {
		for req := range c.puts {
			c.applyPut(req)
		}
	}()
}

func (c *OperationCache) applyPut(req putRequest) {
	cache := cloneCache(c.cache.Load().(map[string]*plan.Plan))
	order := removeKey(c.order.Load().([]string), req.key)

	if _, exists := cache[req.key]; !exists && c.maxSize > 0 && len(order) >= c.maxSize {
		oldest := order[0]
		order = order[1:]
		delete(cache, oldest)
	}
	cache[req.key] = req.p
	order = append(order, req.key)

	c.cache.Store(cache)
	c.order.Store(order)
}

func cloneCache(m map[string]*plan.Plan) map[string]*plan.Plan {
	out := make(map[string]*plan.Plan, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func removeKey(order []string, key string) []string {
	out := make([]string, 0, len(order))
	for _, k := range order {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// Get looks up a cached plan by its fingerprint.
func (c *OperationCache) Get(key string) (*plan.Plan, bool) {
	cache := c.cache.Load().(map[string]*plan.Plan)
	p, ok := cache[key]
	return p, ok
}

// Put registers a solved plan under key, evicting the least-recently-put
// entry if the cache is already at capacity.
func (c *OperationCache) Put(key string, p *plan.Plan) {
	c.puts <- putRequest{key: key, p: p}
}
