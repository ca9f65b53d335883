package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// SubgraphConfig supplies the transport-level information that never lives
// in the SDL: the endpoint URL, subscription protocol, header rules, and
// entity cache TTL for one `join__Graph` enum value. Keyed by the subgraph
// name as spelled in `@join__graph(name: ...)`.
type SubgraphConfig struct {
	Name                 string
	URL                  string
	Virtual              bool
	SubscriptionProtocol SubscriptionProtocol
	HeaderRules          []HeaderRule
	EntityCacheTTLSec    int
}

// Build composes the interned Schema from a single federated SDL document
// (carrying `@join__type`/`@join__field`/`@join__graph` directives, per
// spec.md §4.1) and the out-of-band subgraph transport config.
func Build(sdl []byte, configs []SubgraphConfig) (*Schema, error) {
	l := lexer.New(string(sdl))
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &BuildError{Msg: fmt.Sprintf("parse errors: %v", errs)}
	}

	b := &builder{
		doc:            doc,
		strings:        newInterner(),
		defByName:      make(map[string]DefinitionID),
		fieldByName:    make(map[string]FieldID),
		subgraphByName: make(map[string]SubgraphID),
		resolverIndex:  make(map[string][]FieldResolver),
	}

	for i, c := range configs {
		b.subgraphByName[c.Name] = SubgraphID(i)
		b.subgraphs = append(b.subgraphs, Subgraph{
			ID:                   SubgraphID(i),
			Name:                 b.strings.Intern(c.Name),
			URL:                  b.strings.Intern(c.URL),
			Virtual:              c.Virtual,
			SubscriptionProtocol: c.SubscriptionProtocol,
			HeaderRules:          c.HeaderRules,
			EntityCacheTTLSec:    c.EntityCacheTTLSec,
		})
	}

	if err := b.declareTypes(); err != nil {
		return nil, err
	}
	if err := b.declareFields(); err != nil {
		return nil, err
	}
	b.resolveInaccessibility()
	b.buildResolverIndex()

	return &Schema{
		strings:          b.strings,
		subgraphs:        b.subgraphs,
		defs:             b.defs,
		fields:           b.fields,
		inputs:           b.inputs,
		directives:       b.directives,
		defByName:        b.defByName,
		fieldByName:      b.fieldByName,
		subgraphByName:   b.subgraphByName,
		queryType:        b.queryType,
		mutationType:     b.mutationType,
		subscriptionType: b.subscriptionType,
		hasMutation:      b.hasMutation,
		hasSubscription:  b.hasSubscription,
		resolverIndex:    b.resolverIndex,
	}, nil
}

type builder struct {
	doc *ast.Document

	strings *interner

	subgraphs  []Subgraph
	defs       []TypeDefinition
	fields     []FieldDefinition
	inputs     []InputValueDefinition
	directives []Directive

	defByName      map[string]DefinitionID
	fieldByName    map[string]FieldID
	subgraphByName map[string]SubgraphID
	resolverIndex  map[string][]FieldResolver

	queryType        DefinitionID
	mutationType     DefinitionID
	subscriptionType DefinitionID
	hasMutation      bool
	hasSubscription  bool
}

// declareTypes makes a first pass over every type definition, assigning a
// DefinitionID and recording kind/keys/enum-values/union-members, but not
// yet resolving field output types (which may forward-reference a type
// declared later in the document).
func (b *builder) declareTypes() error {
	for _, def := range b.doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			b.declareType(d.Name.String(), KindObject, d.Directives)
		case *ast.InterfaceTypeDefinition:
			b.declareType(d.Name.String(), KindInterface, d.Directives)
		case *ast.InputObjectTypeDefinition:
			b.declareType(d.Name.String(), KindInput, d.Directives)
		case *ast.ScalarTypeDefinition:
			b.declareType(d.Name.String(), KindScalar, d.Directives)
		case *ast.EnumTypeDefinition:
			id := b.declareType(d.Name.String(), KindEnum, d.Directives)
			for _, v := range d.Values {
				b.defs[id].EnumValues = append(b.defs[id].EnumValues, v.Value.String())
			}
		case *ast.UnionTypeDefinition:
			b.declareType(d.Name.String(), KindUnion, d.Directives)
		}
	}

	for name, id := range b.defByName {
		switch name {
		case "Query":
			b.queryType = id
		case "Mutation":
			b.mutationType, b.hasMutation = id, true
		case "Subscription":
			b.subscriptionType, b.hasSubscription = id, true
		}
	}
	if _, ok := b.defByName["Query"]; !ok {
		return &BuildError{Msg: "composed schema has no Query root type"}
	}
	return nil
}

func (b *builder) declareType(name string, kind TypeKind, directives []*ast.Directive) DefinitionID {
	if id, ok := b.defByName[name]; ok {
		return id
	}
	id := DefinitionID(len(b.defs))
	b.defs = append(b.defs, TypeDefinition{
		ID:   id,
		Name: b.strings.Intern(name),
		Kind: kind,
	})
	b.defByName[name] = id
	b.defs[id].Keys = b.parseJoinTypeKeys(directives)
	b.defs[id].Inaccessible = hasDirectiveNamed(directives, "inaccessible")
	return id
}

// declareFields walks every object/interface a second time, now resolving
// field output types (all type names are known) and the per-field
// `@join__field` resolver edges.
func (b *builder) declareFields() error {
	for _, def := range b.doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if err := b.declareFieldsOf(d.Name.String(), d.Interfaces, d.Fields); err != nil {
				return err
			}
		case *ast.InterfaceTypeDefinition:
			if err := b.declareFieldsOf(d.Name.String(), nil, d.Fields); err != nil {
				return err
			}
		case *ast.UnionTypeDefinition:
			id := b.defByName[d.Name.String()]
			for _, member := range d.Types {
				memberID, ok := b.defByName[member.String()]
				if !ok {
					return &BuildError{Msg: fmt.Sprintf("union %s references undefined member %s", d.Name.String(), member.String())}
				}
				b.defs[id].UnionMembers = append(b.defs[id].UnionMembers, memberID)
			}
		case *ast.InputObjectTypeDefinition:
			id := b.defByName[d.Name.String()]
			for _, f := range d.Fields {
				typeRef, err := b.resolveTypeRef(f.Type)
				if err != nil {
					return err
				}
				ivID := InputValueID(len(b.inputs))
				b.inputs = append(b.inputs, InputValueDefinition{
					ID:   ivID,
					Name: b.strings.Intern(f.Name.String()),
					Type: typeRef,
				})
				_ = id
			}
		}
	}
	return nil
}

func (b *builder) declareFieldsOf(typeName string, interfaces []*ast.Name, fields []*ast.FieldDefinition) error {
	id, ok := b.defByName[typeName]
	if !ok {
		return &BuildError{Msg: fmt.Sprintf("undefined type %s", typeName)}
	}
	for _, iface := range interfaces {
		ifaceID, ok := b.defByName[iface.String()]
		if !ok {
			return &BuildError{Subgraph: typeName, Msg: fmt.Sprintf("implements undefined interface %s", iface.String())}
		}
		b.defs[id].Interfaces = append(b.defs[id].Interfaces, ifaceID)
	}

	for _, f := range fields {
		typeRef, err := b.resolveTypeRef(f.Type)
		if err != nil {
			return err
		}

		fieldID := FieldID(len(b.fields))
		fd := FieldDefinition{
			ID:           fieldID,
			Parent:       id,
			Name:         b.strings.Intern(f.Name.String()),
			OutputType:   typeRef,
			Inaccessible: hasDirectiveNamed(f.Directives, "inaccessible"),
			Deprecated:   deprecationReason(f.Directives),
			Cost:         costWeight(f.Directives),
			Directives:   b.internAuthzDirectives(f.Directives),
		}

		for _, arg := range f.Arguments {
			argType, err := b.resolveTypeRef(arg.Type)
			if err != nil {
				return err
			}
			ivID := InputValueID(len(b.inputs))
			iv := InputValueDefinition{
				ID:   ivID,
				Name: b.strings.Intern(arg.Name.String()),
				Type: argType,
			}
			if arg.DefaultValue != nil {
				iv.HasDefault = true
				iv.DefaultValue = arg.DefaultValue.String()
			}
			b.inputs = append(b.inputs, iv)
			fd.Arguments = append(fd.Arguments, ivID)
		}

		fd.Resolvers = b.parseJoinFieldResolvers(f.Directives)

		b.fields = append(b.fields, fd)
		b.defs[id].Fields = append(b.defs[id].Fields, fieldID)
		b.fieldByName[typeName+"."+f.Name.String()] = fieldID
	}
	return nil
}

func (b *builder) resolveTypeRef(t ast.Type) (TypeRef, error) {
	switch tt := t.(type) {
	case *ast.NonNullType:
		inner, err := b.resolveTypeRef(tt.Type)
		if err != nil {
			return TypeRef{}, err
		}
		inner.NonNull = true
		return inner, nil
	case *ast.ListType:
		elem, err := b.resolveTypeRef(tt.Type)
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{List: true, Elem: &elem}, nil
	case *ast.NamedType:
		name := tt.Name.String()
		id, ok := b.defByName[name]
		if !ok {
			// Forward reference to a built-in scalar not declared in the
			// document (Int/Float/String/Boolean/ID); synthesize it.
			id = b.declareType(name, KindScalar, nil)
		}
		return TypeRef{NamedType: id}, nil
	default:
		return TypeRef{}, &BuildError{Msg: fmt.Sprintf("unrecognized type node %T", t)}
	}
}

// parseJoinTypeKeys turns every `@join__type(graph:, key:, resolvable:)`
// application into an EntityKey. A type can carry several `@join__type`
// directives, one per owning subgraph.
func (b *builder) parseJoinTypeKeys(directives []*ast.Directive) []EntityKey {
	var keys []EntityKey
	for _, d := range directives {
		if d.Name != "join__type" {
			continue
		}
		var graphName, fieldSet string
		resolvable := true
		for _, arg := range d.Arguments {
			switch arg.Name.String() {
			case "graph":
				graphName = strings.Trim(arg.Value.String(), "\"")
			case "key":
				fieldSet = strings.Trim(arg.Value.String(), "\"")
			case "resolvable":
				if arg.Value.String() == "false" {
					resolvable = false
				}
			}
		}
		if graphName == "" || fieldSet == "" {
			continue
		}
		sid, ok := b.subgraphByName[graphName]
		if !ok {
			continue
		}
		keys = append(keys, EntityKey{
			Subgraph:   sid,
			Resolvable: resolvable,
			Fields:     parseKeyFieldSet(fieldSet),
		})
	}
	return keys
}

// parseJoinFieldResolvers turns every `@join__field(graph:, requires:,
// provides:, external:, override:)` application into a FieldResolver. A
// field with no `@join__field` at all is resolvable by every subgraph that
// owns its parent type (implicit federation rule); callers fill that in
// via buildResolverIndex once all subgraphs are known.
func (b *builder) parseJoinFieldResolvers(directives []*ast.Directive) []FieldResolver {
	var resolvers []FieldResolver
	for _, d := range directives {
		if d.Name != "join__field" {
			continue
		}
		var graphName, requires, provides, overrideFrom string
		external := false
		for _, arg := range d.Arguments {
			switch arg.Name.String() {
			case "graph":
				graphName = strings.Trim(arg.Value.String(), "\"")
			case "requires":
				requires = strings.Trim(arg.Value.String(), "\"")
			case "provides":
				provides = strings.Trim(arg.Value.String(), "\"")
			case "external":
				external = arg.Value.String() == "true"
			case "override":
				overrideFrom = strings.Trim(arg.Value.String(), "\"")
			}
		}
		if graphName == "" {
			continue
		}
		sid, ok := b.subgraphByName[graphName]
		if !ok {
			continue
		}
		resolvers = append(resolvers, FieldResolver{
			Subgraph:     sid,
			External:     external,
			Shareable:    hasDirectiveNamed(directives, "shareable"),
			Requires:     parseKeyFieldSet(requires),
			Provides:     parseKeyFieldSet(provides),
			OverrideFrom: overrideFrom,
		})
	}
	return resolvers
}

// buildResolverIndex fills resolverIndex for every field, including fields
// whose only resolvers come from the implicit "parent type is owned by
// subgraph X and field carries no @join__field" federation default: such a
// field is resolvable by every subgraph holding a non-stub key for its
// parent type.
func (b *builder) buildResolverIndex() {
	for typeName, id := range b.defByName {
		for _, fieldID := range b.defs[id].Fields {
			fd := &b.fields[fieldID]
			key := typeName + "." + b.strings.String(fd.Name)
			resolvers := fd.Resolvers
			if len(resolvers) == 0 {
				for _, k := range b.defs[id].Keys {
					if k.Resolvable {
						resolvers = append(resolvers, FieldResolver{Subgraph: k.Subgraph})
					}
				}
			}
			// Drop the resolver of any subgraph that another resolver's
			// @override names as the field's overridden owner.
			overridden := make(map[SubgraphID]bool)
			for _, r := range resolvers {
				if sid, ok := b.subgraphByName[r.OverrideFrom]; ok && r.OverrideFrom != "" && sid != r.Subgraph {
					overridden[sid] = true
				}
			}
			var filtered []FieldResolver
			for _, r := range resolvers {
				if !overridden[r.Subgraph] {
					filtered = append(filtered, r)
				}
			}
			sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Subgraph < filtered[j].Subgraph })
			b.resolverIndex[key] = filtered
			fd.Resolvers = filtered
		}
	}
}

// resolveInaccessibility propagates @inaccessible from a type to every
// field whose output type is that (now-inaccessible) type, per spec.md
// §4.1's inaccessibility closure.
func (b *builder) resolveInaccessibility() {
	changed := true
	for changed {
		changed = false
		for i := range b.fields {
			if b.fields[i].Inaccessible {
				continue
			}
			outID := b.fields[i].OutputType.NamedType
			if b.fields[i].OutputType.Elem != nil {
				outID = innermost(&b.fields[i].OutputType).NamedType
			}
			if b.defs[outID].Inaccessible {
				b.fields[i].Inaccessible = true
				changed = true
			}
		}
	}
}

func innermost(t *TypeRef) *TypeRef {
	for t.Elem != nil {
		t = t.Elem
	}
	return t
}

func parseKeyFieldSet(s string) []KeyField {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// A minimal field-set parser: space-separated leaf names, with
	// "parent { child ... }" nesting. Good enough for the key/requires/
	// provides sets this gateway composes (no aliases, no arguments).
	fields, _ := parseFieldSetTokens(tokenizeFieldSet(s), 0)
	return fields
}

func tokenizeFieldSet(s string) []string {
	s = strings.ReplaceAll(s, "{", " { ")
	s = strings.ReplaceAll(s, "}", " } ")
	return strings.Fields(s)
}

func parseFieldSetTokens(tokens []string, pos int) ([]KeyField, int) {
	var out []KeyField
	for pos < len(tokens) {
		tok := tokens[pos]
		if tok == "}" {
			return out, pos + 1
		}
		name := tok
		pos++
		if pos < len(tokens) && tokens[pos] == "{" {
			var nested []KeyField
			nested, pos = parseFieldSetTokens(tokens, pos+1)
			out = append(out, KeyField{Name: name, Nested: nested})
			continue
		}
		out = append(out, KeyField{Name: name})
	}
	return out, pos
}

// internAuthzDirectives interns a field's @authenticated/@requiresScopes/
// @authorized applications into the schema's directive arena, keeping
// argument values as their raw literal source text (the same convention
// federation/bind uses for executable directive arguments) so the C8 layer
// parses them lazily at the point each modifier actually needs them.
func (b *builder) internAuthzDirectives(directives []*ast.Directive) []DirectiveID {
	var out []DirectiveID
	for _, d := range directives {
		switch d.Name {
		case "authenticated", "requiresScopes", "authorized":
		default:
			continue
		}
		args := make(map[string]any, len(d.Arguments))
		for _, a := range d.Arguments {
			args[a.Name.String()] = a.Value.String()
		}
		id := DirectiveID(len(b.directives))
		b.directives = append(b.directives, Directive{ID: id, Name: d.Name, Arguments: args})
		out = append(out, id)
	}
	return out
}

func hasDirectiveNamed(directives []*ast.Directive, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

func deprecationReason(directives []*ast.Directive) string {
	for _, d := range directives {
		if d.Name != "deprecated" {
			continue
		}
		for _, arg := range d.Arguments {
			if arg.Name.String() == "reason" {
				return strings.Trim(arg.Value.String(), "\"")
			}
		}
		return "No longer supported"
	}
	return ""
}

func costWeight(directives []*ast.Directive) int {
	for _, d := range directives {
		if d.Name != "cost" {
			continue
		}
		for _, arg := range d.Arguments {
			if arg.Name.String() == "weight" {
				n, err := strconv.Atoi(arg.Value.String())
				if err == nil {
					return n
				}
			}
		}
	}
	return 0
}
