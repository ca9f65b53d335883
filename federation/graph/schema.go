package graph

import "fmt"

// TypeKind distinguishes the definition kinds the supergraph can carry.
type TypeKind uint8

const (
	KindScalar TypeKind = iota
	KindObject
	KindInterface
	KindUnion
	KindEnum
	KindInput
)

func (k TypeKind) String() string {
	switch k {
	case KindScalar:
		return "SCALAR"
	case KindObject:
		return "OBJECT"
	case KindInterface:
		return "INTERFACE"
	case KindUnion:
		return "UNION"
	case KindEnum:
		return "ENUM"
	case KindInput:
		return "INPUT_OBJECT"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionProtocol names how a subgraph delivers subscription events.
type SubscriptionProtocol uint8

const (
	SubscriptionProtocolNone SubscriptionProtocol = iota
	SubscriptionProtocolGraphQLWS
	SubscriptionProtocolSSE
)

// Subgraph is either an HTTP(S) endpoint or a subgraph flagged Virtual
// (one with no transport of its own). The executor does not special-case
// Virtual: a virtual subgraph's partitions go to the Fetcher with its URL
// like any other.
type Subgraph struct {
	ID                   SubgraphID
	Name                 StringID
	URL                  StringID // the interned config URL, usually the empty string for virtual subgraphs; check Virtual
	Virtual              bool
	SubscriptionProtocol SubscriptionProtocol
	HeaderRules          []HeaderRule
	EntityCacheTTLSec    int
}

// HeaderRuleKind selects how a header rule mutates the outbound request.
type HeaderRuleKind uint8

const (
	HeaderForward HeaderRuleKind = iota
	HeaderInsert
	HeaderRemove
	HeaderRenameDuplicate
)

// HeaderRule is one subgraph header transformation, applied in declaration
// order by the executor when it builds a subgraph request.
type HeaderRule struct {
	Kind     HeaderRuleKind
	Name     string // source header name (Forward/Remove/RenameDuplicate)
	Rename   string // destination name (RenameDuplicate)
	Value    string // static value (Insert)
	Default  string // fallback value if Name is absent (Forward)
}

// Directive is an interned directive application: name plus raw argument
// values keyed by argument name. Each argument value is the argument's
// literal source text as a string; consumers such as the binder parse it
// where they need its structure.
type Directive struct {
	ID        DirectiveID
	Name      string
	Arguments map[string]any
}

// TypeDefinition is one object/interface/union/enum/input/scalar in the
// composed supergraph.
type TypeDefinition struct {
	ID            DefinitionID
	Name          StringID
	Kind          TypeKind
	Fields        []FieldID       // object/interface only
	Interfaces    []DefinitionID  // object only: implemented interfaces
	UnionMembers  []DefinitionID  // union only
	EnumValues    []string        // enum only
	Keys          []EntityKey     // non-empty iff the type is an entity
	Directives    []DirectiveID
	Inaccessible  bool
}

// EntityKey records one `@key` on an entity type: the subgraph that
// declares it, whether it is resolvable, and the key's selection set
// (parsed once into field-reference form, supporting composite keys).
type EntityKey struct {
	Subgraph   SubgraphID
	Resolvable bool
	Fields     []KeyField
}

// KeyField is one leaf of a (possibly nested) key selection set, e.g. the
// "id" in `@key(fields: "id")` or the "id"/"departureDate" pair in
// `@key(fields: "id departureDate")`.
type KeyField struct {
	Name   string
	Nested []KeyField // non-nil for composite nested keys, e.g. "organization { id }"
}

// FieldDefinition is one field on an object or interface type.
type FieldDefinition struct {
	ID          FieldID
	Parent      DefinitionID
	Name        StringID
	OutputType  TypeRef
	Arguments   []InputValueID
	Directives  []DirectiveID
	Resolvers   []FieldResolver // which subgraphs can resolve this field, and how
	Inaccessible bool
	Deprecated   string // reason, empty if not deprecated
	Cost         int    // @cost(weight:) if present, else 0
}

// FieldResolver records that a given subgraph can resolve a field, along
// with its @requires/@provides/@external/@override/@shareable metadata.
type FieldResolver struct {
	Subgraph   SubgraphID
	External   bool
	Shareable  bool
	Requires   []KeyField
	Provides   []KeyField
	OverrideFrom string // subgraph name this field was overridden from, if any
}

// TypeRef is a field or argument's declared type: a named type wrapped by
// zero or more List/NonNull modifiers, innermost-out.
type TypeRef struct {
	NamedType DefinitionID
	List      bool
	NonNull   bool
	Elem      *TypeRef // set iff List
}

func (t TypeRef) String(s *Schema) string {
	if t.Elem != nil {
		inner := t.Elem.String(s)
		if t.NonNull {
			return "[" + inner + "]!"
		}
		return "[" + inner + "]"
	}
	name := s.strings.String(s.defs[t.NamedType].Name)
	if t.NonNull {
		return name + "!"
	}
	return name
}

// InputValueDefinition is an argument or input-object field definition.
type InputValueDefinition struct {
	ID           InputValueID
	Name         StringID
	Type         TypeRef
	DefaultValue any
	HasDefault   bool
	Directives   []DirectiveID
}

// Schema is the immutable, interned supergraph. Every XxxID dereferences
// within its arena once Build returns successfully; nothing mutates the
// arenas afterward, so *Schema is safe to share across every request goroutine
// without locking.
type Schema struct {
	strings *interner

	subgraphs []Subgraph
	defs      []TypeDefinition
	fields    []FieldDefinition
	inputs    []InputValueDefinition
	directives []Directive

	defByName   map[string]DefinitionID
	fieldByName map[string]FieldID // "Type.field" -> FieldID
	subgraphByName map[string]SubgraphID

	queryType        DefinitionID
	mutationType     DefinitionID
	subscriptionType DefinitionID
	hasMutation      bool
	hasSubscription  bool

	// resolver lookup index, built once by the builder and read by
	// Resolvers when a solution graph is wired up per operation.
	resolverIndex map[string][]FieldResolver // "Type.field" -> resolvers, ordered by subgraph id
}

// Subgraphs returns all subgraphs in id order.
func (s *Schema) Subgraphs() []Subgraph { return s.subgraphs }

// Strings returns the interner backing every StringID in the schema.
func (s *Schema) Strings() *interner { return s.strings }

// Name resolves a StringID to its string.
func (s *Schema) Name(id StringID) string { return s.strings.String(id) }

// LookupType returns a type definition by name.
func (s *Schema) LookupType(name string) (*TypeDefinition, bool) {
	id, ok := s.defByName[name]
	if !ok {
		return nil, false
	}
	return &s.defs[id], true
}

// Type returns a type definition by id.
func (s *Schema) Type(id DefinitionID) *TypeDefinition { return &s.defs[id] }

// Field returns a field definition by id.
func (s *Schema) Field(id FieldID) *FieldDefinition { return &s.fields[id] }

// InputValue returns an argument/input-field definition by id.
func (s *Schema) InputValue(id InputValueID) *InputValueDefinition { return &s.inputs[id] }

// Directive returns a directive application by id.
func (s *Schema) Directive(id DirectiveID) *Directive { return &s.directives[id] }

// LookupField returns the field definition for "typeName.fieldName".
func (s *Schema) LookupField(typeName, fieldName string) (*FieldDefinition, bool) {
	id, ok := s.fieldByName[typeName+"."+fieldName]
	if !ok {
		return nil, false
	}
	return &s.fields[id], true
}

// Resolvers returns every subgraph able to resolve "typeName.fieldName",
// ordered deterministically by subgraph id (spec.md §4.4 tie-breaking).
func (s *Schema) Resolvers(typeName, fieldName string) []FieldResolver {
	return s.resolverIndex[typeName+"."+fieldName]
}

// Subgraph returns a subgraph definition by id.
func (s *Schema) Subgraph(id SubgraphID) *Subgraph { return &s.subgraphs[id] }

// SubgraphByName looks up a subgraph id by name.
func (s *Schema) SubgraphByName(name string) (SubgraphID, bool) {
	id, ok := s.subgraphByName[name]
	return id, ok
}

// RootType returns the definition id for query/mutation/subscription.
func (s *Schema) RootType(op string) (DefinitionID, bool) {
	switch op {
	case "query":
		return s.queryType, true
	case "mutation":
		return s.mutationType, s.hasMutation
	case "subscription":
		return s.subscriptionType, s.hasSubscription
	default:
		return 0, false
	}
}

// IsEntity reports whether a type has at least one @key.
func (s *Schema) IsEntity(id DefinitionID) bool {
	return len(s.defs[id].Keys) > 0
}

// EntityOwner returns the subgraph that authoritatively resolves entity
// references for a type: the first subgraph with a resolvable, non-stub key,
// per spec.md §4.1's resolvable-key filtering.
func (s *Schema) EntityOwner(id DefinitionID) (SubgraphID, bool) {
	for _, k := range s.defs[id].Keys {
		if k.Resolvable {
			return k.Subgraph, true
		}
	}
	return 0, false
}

// BuildError is a schema-build failure anchored to the offending subgraph
// and, where available, a source location.
type BuildError struct {
	Subgraph string
	Line     int
	Column   int
	Msg      string
}

func (e *BuildError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema build: %s:%d:%d: %s", e.Subgraph, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("schema build: %s: %s", e.Subgraph, e.Msg)
}
