// Package exec implements the executor (C6): it drives a materialized
// plan's partitions concurrently honoring their dependencies, builds
// subgraph requests (applying header rules and rendering real selection
// sets and `_entities` representations), deserializes responses into the
// response store with schema-checked merging, enforces null propagation,
// and applies response-time authorization modifiers.
package exec

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kataway/supergateway/federation/authz"
	"github.com/kataway/supergateway/federation/bind"
	"github.com/kataway/supergateway/federation/capability"
	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/federation/plan"
	"github.com/kataway/supergateway/federation/respstore"
)

// Executor drives one plan to completion against a schema and a Fetcher.
type Executor struct {
	Schema     *graph.Schema
	Fetcher    capability.Fetcher
	Metrics    capability.Metrics
	Extensions capability.Extensions // optional; response-time @authorized enforcement is skipped when nil
}

// Result is the fully executed response: the store plus the root value and
// any errors collected along the way.
type Result struct {
	Store  *respstore.Store
	Root   respstore.ValueID
	Errors []authz.Error
}

// headerSource supplies the inbound request's headers, used when applying a
// subgraph's forward/default header rules.
type headerSource interface {
	Header(name string) (string, bool)
}

// mergeTarget is one destination object for a partition's resolved fields,
// paired with its absolute path and non-null chain from the response root
// so a null or invalid value can be propagated to the correct ancestor.
type mergeTarget struct {
	id      respstore.ValueID
	path    []respstore.PathStep
	nonNull []bool
}

// requestCtx carries the per-request state runPartition/mergeFields need
// that isn't part of the plan itself.
type requestCtx struct {
	bo       *bind.BoundOperation
	claims   authz.Claims
	respMods map[bind.FieldID][]bind.ModifierRule
}

// Execute runs p to completion. inbound supplies the client request headers
// consulted by Forward/Default header rules. claims is the principal
// resolved (if any) by the gateway's query-time modifier pass, reused here
// to evaluate response-time @authorized(fields:/node:) modifiers without a
// second round trip through Extensions.Authenticate.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, inbound headerSource, claims authz.Claims) (*Result, error) {
	store := respstore.New()
	root := store.NewObject(0, false)
	res := &Result{Store: store, Root: root}
	bo := p.Operation

	respMods := make(map[bind.FieldID][]bind.ModifierRule, len(bo.ResponseTimeMods))
	for _, m := range bo.ResponseTimeMods {
		respMods[m.Field] = append(respMods[m.Field], m)
	}
	rc := &requestCtx{bo: bo, claims: claims, respMods: respMods}

	byID := make(map[plan.PartitionID]*plan.Partition, len(p.Partitions))
	for i := range p.Partitions {
		byID[p.Partitions[i].ID] = &p.Partitions[i]
	}

	children := make(map[plan.PartitionID][]plan.PartitionID)
	var roots []plan.PartitionID
	for i := range p.Partitions {
		part := &p.Partitions[i]
		if part.HasParent {
			children[part.ParentID] = append(children[part.ParentID], part.ID)
		} else {
			roots = append(roots, part.ID)
		}
	}

	rootTargets := []mergeTarget{{id: root}}

	if len(p.Order) > 0 {
		// Mutations: strictly sequential, each at the response root.
		for _, pid := range p.Order {
			if err := e.runPartition(ctx, byID[pid], store, root, rootTargets, rc, inbound, res); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	var run func(ctx context.Context, pid plan.PartitionID, targets []mergeTarget) error
	run = func(ctx context.Context, pid plan.PartitionID, targets []mergeTarget) error {
		part := byID[pid]
		if err := e.runPartition(ctx, part, store, root, targets, rc, inbound, res); err != nil {
			return err
		}
		kids := children[pid]
		if len(kids) == 0 {
			return nil
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, kid := range kids {
			kid := kid
			childTargets := e.childTargets(store, bo, byID[kid].AnchorField, targets)
			g.Go(func() error { return run(gctx, kid, childTargets) })
		}
		return g.Wait()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rootPID := range roots {
		rootPID := rootPID
		g.Go(func() error { return run(gctx, rootPID, rootTargets) })
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// runPartition dispatches one subgraph request: a direct root-field fetch
// when the partition has no parent, or an `_entities` fetch built from
// targets' already-resolved key fields otherwise.
func (e *Executor) runPartition(ctx context.Context, part *plan.Partition, store *respstore.Store, globalRoot respstore.ValueID, targets []mergeTarget, rc *requestCtx, inbound headerSource, res *Result) error {
	sg := e.Schema.Subgraph(part.Subgraph)
	headers := applyHeaderRules(sg.HeaderRules, inbound)
	subgraphName := e.Schema.Name(sg.Name)

	start := time.Now()
	ok := true
	defer func() {
		if e.Metrics != nil {
			e.Metrics.ObservePartition(subgraphName, time.Since(start), ok)
		}
	}()

	if !part.IsEntityFetch {
		if len(targets) != 1 {
			return nil
		}
		query := BuildPartitionQuery(e.Schema, rc.bo, part)
		req := capability.SubgraphRequest{
			Subgraph: subgraphName,
			URL:      e.Schema.Name(sg.URL),
			Query:    query,
			Headers:  headers,
		}
		resp, err := e.Fetcher.Fetch(ctx, req)
		if err != nil {
			ok = false
			res.Errors = append(res.Errors, authz.Error{Code: authz.CodeSubgraphHttpError, Message: err.Error()})
			return nil
		}
		res.Errors = append(res.Errors, resp.Errors...)
		e.mergeFields(ctx, store, globalRoot, targets[0], part.RootFields, resp.Data, rc, res)
		return nil
	}

	typeName := e.Schema.Name(e.Schema.Type(part.Entity).Name)
	reps := make([]map[string]any, 0, len(targets))
	repOf := make([]int, len(targets))
	seen := make(map[string]int, len(targets))
	for i, t := range targets {
		rep := buildRepresentation(store, typeName, part.Requires, t.id)
		key := fmt.Sprintf("%v", rep)
		idx, dup := seen[key]
		if !dup {
			idx = len(reps)
			reps = append(reps, rep)
			seen[key] = idx
		}
		repOf[i] = idx
	}
	if len(reps) == 0 {
		return nil
	}

	query := BuildPartitionQuery(e.Schema, rc.bo, part)
	req := capability.SubgraphRequest{
		Subgraph:  subgraphName,
		URL:       e.Schema.Name(sg.URL),
		Query:     query,
		Variables: map[string]any{"representations": reps},
		Headers:   headers,
	}
	resp, err := e.Fetcher.Fetch(ctx, req)
	if err != nil {
		ok = false
		res.Errors = append(res.Errors, authz.Error{Code: authz.CodeSubgraphHttpError, Message: err.Error()})
		return nil
	}
	res.Errors = append(res.Errors, resp.Errors...)
	entities, _ := resp.Data["_entities"].([]any)
	for i, t := range targets {
		ri := repOf[i]
		if ri >= len(entities) {
			continue
		}
		ent, isObj := entities[ri].(map[string]any)
		if !isObj {
			continue
		}
		e.mergeFields(ctx, store, globalRoot, t, part.RootFields, ent, rc, res)
	}
	return nil
}

// childTargets projects a parent partition's merge targets through the
// field that anchors a child entity-fetch partition, flattening through any
// list nesting so each element becomes its own representation/merge target.
func (e *Executor) childTargets(store *respstore.Store, bo *bind.BoundOperation, anchor bind.FieldID, parents []mergeTarget) []mergeTarget {
	f := &bo.Fields[anchor]
	fd := e.Schema.Field(f.Definition)
	key := f.ResponseKey

	listElemNonNull := false
	if fd.OutputType.Elem != nil {
		listElemNonNull = fd.OutputType.Elem.NonNull
	}

	var out []mergeTarget
	for _, p := range parents {
		v, found := store.Field(p.id, key)
		if !found {
			continue
		}
		basePath := appendPath(p.path, respstore.PathStep{Key: key})
		baseNonNull := appendBool(p.nonNull, fd.OutputType.NonNull)
		out = append(out, flattenEntityValue(store, v, basePath, baseNonNull, listElemNonNull)...)
	}
	return out
}

func flattenEntityValue(store *respstore.Store, v respstore.ValueID, path []respstore.PathStep, nonNull []bool, listElemNonNull bool) []mergeTarget {
	val := store.Get(v)
	switch val.Kind {
	case respstore.KindObject:
		return []mergeTarget{{id: v, path: path, nonNull: nonNull}}
	case respstore.KindList:
		var out []mergeTarget
		for i, item := range store.ListItems(v) {
			itemPath := appendPath(path, respstore.PathStep{Index: i, IsIndex: true})
			itemNonNull := appendBool(nonNull, listElemNonNull)
			out = append(out, flattenEntityValue(store, item, itemPath, itemNonNull, false)...)
		}
		return out
	default:
		return nil
	}
}

// applyHeaderRules renders a subgraph's header rules against the inbound
// request into the outbound header map, in declaration order.
func applyHeaderRules(rules []graph.HeaderRule, inbound headerSource) map[string]string {
	out := make(map[string]string)
	for _, r := range rules {
		switch r.Kind {
		case graph.HeaderForward:
			if v, ok := inbound.Header(r.Name); ok {
				out[r.Name] = v
			} else if r.Default != "" {
				out[r.Name] = r.Default
			}
		case graph.HeaderInsert:
			out[r.Name] = r.Value
		case graph.HeaderRemove:
			delete(out, r.Name)
		case graph.HeaderRenameDuplicate:
			if v, ok := inbound.Header(r.Name); ok {
				out[r.Rename] = v
			}
		}
	}
	return out
}

// mergeFields deep-merges one subgraph response object into target,
// validating each bound field's value against its declared schema type,
// applying response-time @authorized modifiers, and invoking null
// propagation on any mismatch or denial found at a non-null position.
// It reports invalidated=true when a non-null violation bubbled up to (or
// past) target's own absolute position, so the caller — typically
// decodeValue's object branch — knows target itself must now be treated as
// null rather than assigned as if it decoded cleanly.
func (e *Executor) mergeFields(ctx context.Context, store *respstore.Store, globalRoot respstore.ValueID, target mergeTarget, fieldIDs []bind.FieldID, data map[string]any, rc *requestCtx, res *Result) (invalidated bool) {
	for _, fid := range fieldIDs {
		f := &rc.bo.Fields[fid]
		key := f.ResponseKey
		childPath := appendPath(target.path, respstore.PathStep{Key: key})

		if f.Typename {
			store.SetField(target.id, key, store.NewScalar(respstore.Value{Kind: respstore.KindStr, Str: typenameOf(data)}))
			continue
		}

		fd := e.Schema.Field(f.Definition)
		childNonNull := appendBool(target.nonNull, fd.OutputType.NonNull)

		raw, present := data[key]
		if !present || raw == nil {
			if fd.OutputType.NonNull {
				res.Errors = append(res.Errors, authz.Error{
					Code:    authz.CodeSubgraphInvalidResp,
					Message: fmt.Sprintf("field %s: non-null field missing from subgraph response", pathString(childPath)),
					Path:    pathToAny(childPath),
				})
				store.PropagateNull(globalRoot, childPath, childNonNull)
				if nullCutIndex(childNonNull) < len(target.path) {
					invalidated = true
				}
			} else {
				store.SetField(target.id, key, respstore.Null)
			}
			continue
		}

		id, ok := e.decodeValue(ctx, store, globalRoot, rc, fd.OutputType, f.Selections, raw, childPath, childNonNull, res)
		if ok {
			if rules, hasMods := rc.respMods[fid]; hasMods {
				id, ok = e.applyResponseMods(ctx, store, rules, rc.claims, id)
				if !ok {
					res.Errors = append(res.Errors, authz.Error{
						Code:    authz.CodeUnauthorized,
						Message: fmt.Sprintf("field %s denied by @authorized", pathString(childPath)),
						Path:    pathToAny(childPath),
					})
				}
			}
		}
		if !ok {
			if fd.OutputType.NonNull {
				store.PropagateNull(globalRoot, childPath, childNonNull)
				if nullCutIndex(childNonNull) < len(target.path) {
					invalidated = true
				}
			} else {
				store.SetField(target.id, key, respstore.Null)
			}
			continue
		}
		store.SetField(target.id, key, id)
	}
	return invalidated
}

// nullCutIndex returns the index, scanning backward from the leaf, of the
// nearest step whose own declared type is nullable — the point standard
// GraphQL null propagation collapses to. -1 means every step (the value's
// own slot included) is non-null, so the null must keep propagating past
// the caller's own position.
func nullCutIndex(nonNullAtEachStep []bool) int {
	cut := len(nonNullAtEachStep) - 1
	for cut >= 0 && nonNullAtEachStep[cut] {
		cut--
	}
	return cut
}

// applyResponseMods evaluates every response-time modifier attached to a
// field against its already-decoded value, denying (masking to null) on
// the first non-Allow decision.
func (e *Executor) applyResponseMods(ctx context.Context, store *respstore.Store, rules []bind.ModifierRule, claims authz.Claims, id respstore.ValueID) (respstore.ValueID, bool) {
	if e.Extensions == nil {
		return id, true
	}
	value := store.Get(id)
	for _, rule := range rules {
		decision, err := e.Extensions.Authorize(ctx, rule.Directive, claims, modifierMetadata(rule), value)
		if err != nil || decision != authz.Allow {
			return 0, false
		}
	}
	return id, true
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

// decodeValue validates and converts one subgraph JSON value against its
// declared type, recursing into lists and (when selections are present)
// nested objects. path/nonNull describe this value's own absolute position,
// consulted only if it (or something beneath it) turns out invalid.
func (e *Executor) decodeValue(ctx context.Context, store *respstore.Store, globalRoot respstore.ValueID, rc *requestCtx, t graph.TypeRef, selections []bind.FieldID, raw any, path []respstore.PathStep, nonNull []bool, res *Result) (respstore.ValueID, bool) {
	if raw == nil {
		return respstore.Null, !t.NonNull
	}

	if t.Elem != nil {
		items, isList := raw.([]any)
		if !isList {
			res.Errors = append(res.Errors, invalidShapeError(path, "a list", raw))
			return 0, false
		}
		list := store.NewList(len(items))
		selfInvalid := false
		for i, item := range items {
			itemPath := appendPath(path, respstore.PathStep{Index: i, IsIndex: true})
			itemNonNull := appendBool(nonNull, t.Elem.NonNull)
			if item == nil {
				if t.Elem.NonNull {
					res.Errors = append(res.Errors, authz.Error{
						Code:    authz.CodeSubgraphInvalidResp,
						Message: fmt.Sprintf("field %s: non-null list element is null", pathString(itemPath)),
						Path:    pathToAny(itemPath),
					})
					store.PropagateNull(globalRoot, itemPath, itemNonNull)
					if nullCutIndex(itemNonNull) < len(path) {
						selfInvalid = true
					}
				}
				store.SetIndex(list, i, respstore.Null)
				continue
			}
			id, ok := e.decodeValue(ctx, store, globalRoot, rc, *t.Elem, selections, item, itemPath, itemNonNull, res)
			if !ok {
				if t.Elem.NonNull {
					store.PropagateNull(globalRoot, itemPath, itemNonNull)
					if nullCutIndex(itemNonNull) < len(path) {
						selfInvalid = true
					}
				}
				store.SetIndex(list, i, respstore.Null)
				continue
			}
			store.SetIndex(list, i, id)
		}
		return list, !selfInvalid
	}

	if len(selections) > 0 {
		obj, isObj := raw.(map[string]any)
		if !isObj {
			res.Errors = append(res.Errors, invalidShapeError(path, "an object", raw))
			return 0, false
		}
		objID := store.NewObject(0, false)
		selfInvalid := e.mergeFields(ctx, store, globalRoot, mergeTarget{id: objID, path: path, nonNull: nonNull}, selections, obj, rc, res)
		return objID, !selfInvalid
	}

	return e.decodeScalar(store, t, raw, path, res)
}

func (e *Executor) decodeScalar(store *respstore.Store, t graph.TypeRef, raw any, path []respstore.PathStep, res *Result) (respstore.ValueID, bool) {
	typeName := e.Schema.Name(e.Schema.Type(t.NamedType).Name)
	switch typeName {
	case "Int":
		n, isNum := raw.(float64)
		if !isNum {
			res.Errors = append(res.Errors, invalidShapeError(path, "Int", raw))
			return 0, false
		}
		return store.NewScalar(respstore.Value{Kind: respstore.KindI64, I64: int64(n)}), true
	case "Float":
		n, isNum := raw.(float64)
		if !isNum {
			res.Errors = append(res.Errors, invalidShapeError(path, "Float", raw))
			return 0, false
		}
		return store.NewScalar(respstore.Value{Kind: respstore.KindF64, F64: n}), true
	case "Boolean":
		b, isBool := raw.(bool)
		if !isBool {
			res.Errors = append(res.Errors, invalidShapeError(path, "Boolean", raw))
			return 0, false
		}
		return store.NewScalar(respstore.Value{Kind: respstore.KindBool, Bool: b}), true
	case "String", "ID":
		s, isStr := raw.(string)
		if !isStr {
			res.Errors = append(res.Errors, invalidShapeError(path, typeName, raw))
			return 0, false
		}
		return store.NewScalar(respstore.Value{Kind: respstore.KindStr, Str: s}), true
	default:
		// Custom scalars and enums carry no further shape to validate here.
		return toOpaqueValue(store, raw), true
	}
}

func invalidShapeError(path []respstore.PathStep, want string, got any) authz.Error {
	return authz.Error{
		Code:    authz.CodeSubgraphInvalidResp,
		Message: fmt.Sprintf("field %s: expected %s, got %T", pathString(path), want, got),
		Path:    pathToAny(path),
	}
}

// toOpaqueValue converts a JSON value with no further schema-level shape to
// validate (custom scalars, enums) straight into the response store.
func toOpaqueValue(store *respstore.Store, v any) respstore.ValueID {
	switch vv := v.(type) {
	case nil:
		return respstore.Null
	case string:
		return store.NewScalar(respstore.Value{Kind: respstore.KindStr, Str: vv})
	case bool:
		return store.NewScalar(respstore.Value{Kind: respstore.KindBool, Bool: vv})
	case float64:
		return store.NewScalar(respstore.Value{Kind: respstore.KindF64, F64: vv})
	case map[string]any:
		obj := store.NewObject(0, false)
		for k, sub := range vv {
			store.SetField(obj, k, toOpaqueValue(store, sub))
		}
		return obj
	case []any:
		list := store.NewList(len(vv))
		for i, item := range vv {
			store.SetIndex(list, i, toOpaqueValue(store, item))
		}
		return list
	default:
		return store.NewScalar(respstore.Value{Kind: respstore.KindUnexpected})
	}
}

func typenameOf(data map[string]any) string {
	if s, ok := data["__typename"].(string); ok {
		return s
	}
	return ""
}

func appendPath(path []respstore.PathStep, step respstore.PathStep) []respstore.PathStep {
	out := make([]respstore.PathStep, len(path)+1)
	copy(out, path)
	out[len(path)] = step
	return out
}

func appendBool(bs []bool, b bool) []bool {
	out := make([]bool, len(bs)+1)
	copy(out, bs)
	out[len(bs)] = b
	return out
}

func pathToAny(path []respstore.PathStep) []any {
	out := make([]any, len(path))
	for i, s := range path {
		if s.IsIndex {
			out[i] = s.Index
		} else {
			out[i] = s.Key
		}
	}
	return out
}

func pathString(path []respstore.PathStep) string {
	var b strings.Builder
	for i, s := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		if s.IsIndex {
			fmt.Fprintf(&b, "%d", s.Index)
		} else {
			b.WriteString(s.Key)
		}
	}
	return b.String()
}

// buildRepresentation projects an already-resolved entity object's `@key`
// fields (plus __typename) into the shape `_entities(representations:)`
// expects, per the Apollo Federation subgraph entity-resolution contract.
func buildRepresentation(store *respstore.Store, typeName string, keys []graph.KeyField, obj respstore.ValueID) map[string]any {
	rep := map[string]any{"__typename": typeName}
	for _, k := range keys {
		rep[k.Name] = extractKeyValue(store, obj, k)
	}
	return rep
}

func extractKeyValue(store *respstore.Store, obj respstore.ValueID, k graph.KeyField) any {
	v, ok := store.Field(obj, k.Name)
	if !ok {
		return nil
	}
	val := store.Get(v)
	if len(k.Nested) > 0 && val.Kind == respstore.KindObject {
		nested := make(map[string]any, len(k.Nested))
		for _, nk := range k.Nested {
			nested[nk.Name] = extractKeyValue(store, v, nk)
		}
		return nested
	}
	return scalarGoValue(val)
}

func scalarGoValue(v respstore.Value) any {
	switch v.Kind {
	case respstore.KindBool:
		return v.Bool
	case respstore.KindI32, respstore.KindI64:
		return v.I64
	case respstore.KindU64:
		return v.U64
	case respstore.KindF64:
		return v.F64
	case respstore.KindStr, respstore.KindInternedStr:
		return v.Str
	default:
		return nil
	}
}

// BuildPartitionQuery renders one partition into the GraphQL document sent
// to its subgraph: an `_entities` fetch with the partition's bound fields
// rendered inside the type's inline fragment when the partition resolves a
// parent-supplied entity, or a direct root-field selection otherwise.
func BuildPartitionQuery(schema *graph.Schema, bo *bind.BoundOperation, part *plan.Partition) string {
	sel := renderSelections(schema, bo, part.RootFields)
	if part.IsEntityFetch {
		typeName := schema.Name(schema.Type(part.Entity).Name)
		return fmt.Sprintf("query($representations: [_Any!]!) { _entities(representations: $representations) { ... on %s { __typename %s } } }", typeName, sel)
	}
	return fmt.Sprintf("query { %s }", sel)
}

// renderSelections renders a bound field list into a GraphQL selection set
// body, aliasing a field only when its response key differs from the
// schema field name (the binder already guarantees response keys are
// unique within a selection set, so no further alias-collision scheme is
// needed).
func renderSelections(schema *graph.Schema, bo *bind.BoundOperation, fieldIDs []bind.FieldID) string {
	parts := make([]string, 0, len(fieldIDs))
	for _, fid := range fieldIDs {
		f := &bo.Fields[fid]
		if f.Typename {
			if f.ResponseKey != "__typename" {
				parts = append(parts, f.ResponseKey+": __typename")
			} else {
				parts = append(parts, "__typename")
			}
			continue
		}
		fd := schema.Field(f.Definition)
		name := schema.Name(fd.Name)
		piece := name + renderArguments(bo, f.Arguments)
		if len(f.Selections) > 0 {
			piece += " { " + renderSelections(schema, bo, f.Selections) + " }"
		}
		if f.ResponseKey != name {
			piece = f.ResponseKey + ": " + piece
		}
		parts = append(parts, piece)
	}
	return strings.Join(parts, " ")
}

// renderArguments renders a field's bound arguments as GraphQL literal
// text. Argument.Value already holds raw literal source text for ordinary
// literals (the binder's convention, mirroring directive-argument interning
// in the schema builder). Variable references are inlined as their resolved
// literal value rather than forwarded as a separate $-variable, since the
// subgraph document built here declares no variables of its own besides
// `$representations`.
func renderArguments(bo *bind.BoundOperation, args []bind.Argument) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		switch vv := a.Value.(type) {
		case *bind.VariableRef:
			parts[i] = a.Name + ": " + resolveVariableLiteral(bo, vv.Name)
		case string:
			parts[i] = a.Name + ": " + vv
		default:
			parts[i] = a.Name + ": " + formatLiteral(vv)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// resolveVariableLiteral inlines an operation variable's resolved value as
// a literal in the downstream subgraph query.
func resolveVariableLiteral(bo *bind.BoundOperation, name string) string {
	for _, v := range bo.Variables {
		if v.Name != name {
			continue
		}
		if v.HasValue {
			return formatLiteral(v.Value)
		}
		if v.HasDefault {
			if s, ok := v.DefaultVal.(string); ok {
				return s
			}
		}
		break
	}
	return "null"
}

func formatLiteral(v any) string {
	switch vv := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(vv)
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case int:
		return strconv.Itoa(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case []any:
		parts := make([]string, len(vv))
		for i, item := range vv {
			parts[i] = formatLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + formatLiteral(vv[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", vv)
	}
}
