// Package bind implements the operation binder (C2): it parses an incoming
// GraphQL request, validates it against the composed schema, and normalizes
// it into a request-scoped BoundOperation ready for the solver.
package bind

import (
	"fmt"
	"sort"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"

	"github.com/kataway/supergateway/federation/graph"
)

// FieldID identifies one bound data or typename field within an operation.
// Distinct from graph.FieldID: this indexes the request-scoped field forest,
// not the schema.
type FieldID uint32

// OperationKind is query/mutation/subscription.
type OperationKind uint8

const (
	OperationQuery OperationKind = iota
	OperationMutation
	OperationSubscription
)

// ModifierKind selects whether a modifier is decidable from the request
// alone (query-time) or needs a response value (response-time).
type ModifierKind uint8

const (
	ModifierQueryTime ModifierKind = iota
	ModifierResponseTime
)

// ModifierRule is one authorization-relevant directive attached to a field
// or the operation root, as registered by step 6 of the binder.
type ModifierRule struct {
	Kind       ModifierKind
	Directive  string // "authenticated" | "requiresScopes" | "authorized"
	Scopes     [][]string
	OnNode     bool // @authorized(node:) — needs the child's response value
	OnFields   bool // @authorized(fields:) — needs the parent's response value
	Field      FieldID
	Metadata   map[string]any
}

// Variable is one declared operation variable.
type Variable struct {
	Name       string
	Type       graph.TypeRef
	Value      any
	HasValue   bool
	DefaultVal any
	HasDefault bool
}

// Argument is one resolved, type-checked field argument.
type Argument struct {
	Name  string
	Value any // literal, or a Variable reference encoded as *VariableRef
}

// VariableRef marks an argument value that must be resolved from Variables
// at execution time rather than taken as a literal.
type VariableRef struct{ Name string }

// Field is one bound selection: either a data field or (if Typename is
// true) a `__typename` discriminator. Fragment spreads and inline
// fragments have already been flattened into TypeConditions by the time a
// Field exists.
type Field struct {
	ID              FieldID
	ResponseKey     string
	Definition      graph.FieldID // zero value for Typename fields
	Typename        bool
	Arguments       []Argument
	Selections      []FieldID
	TypeConditions  []graph.DefinitionID // concrete types under which this field applies; empty = unconditional
	Directives      []string             // deduplicated executable directive names (e.g. "include", "skip", "defer")
	DirectiveArgs    map[string]map[string]any
	DeferLabel      string
	Location        Location
}

// Location is a source position, carried through for error reporting.
type Location struct {
	Line, Column int
}

// BoundOperation is the C2 output consumed by the solver/planner/executor.
type BoundOperation struct {
	Kind             OperationKind
	Name             string
	RootEntity       graph.DefinitionID
	Fields           []Field
	RootSelections   []FieldID
	Variables        []Variable
	QueryTimeMods    []ModifierRule
	ResponseTimeMods []ModifierRule
}

// Error is the C2 failure shape: OperationParsing or OperationValidation.
type Error struct {
	Code     string // "OPERATION_PARSING" | "OPERATION_VALIDATION" | "VARIABLE"
	Message  string
	Location Location
	Path     []string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Request is the raw client input to Bind.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]any
}

type binder struct {
	schema    *graph.Schema
	req       Request
	fields    []Field
	dirDedup  map[string]int // canonical directive-list signature -> index, unused placeholder for future sharing
	fragments map[string]*ast.FragmentDefinition
}

// Bind parses, validates, and normalizes req against schema.
func Bind(schema *graph.Schema, req Request) (*BoundOperation, error) {
	l := lexer.New(req.Query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &Error{Code: "OPERATION_PARSING", Message: fmt.Sprintf("%v", errs)}
	}

	b := &binder{schema: schema, req: req, fragments: make(map[string]*ast.FragmentDefinition)}
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			b.fragments[frag.Name.String()] = frag
		}
	}

	var opDef *ast.OperationDefinition
	var candidates []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			candidates = append(candidates, op)
		}
	}
	switch {
	case len(candidates) == 0:
		return nil, &Error{Code: "OPERATION_PARSING", Message: "document contains no operation"}
	case req.OperationName != "":
		for _, op := range candidates {
			if op.Name != nil && op.Name.String() == req.OperationName {
				opDef = op
				break
			}
		}
		if opDef == nil {
			return nil, &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("unknown operation %q", req.OperationName)}
		}
	case len(candidates) == 1:
		opDef = candidates[0]
	default:
		return nil, &Error{Code: "OPERATION_VALIDATION", Message: "ambiguous anonymous operation: multiple operations defined, operationName required"}
	}

	kind := OperationQuery
	rootName := "query"
	switch opDef.Operation {
	case "mutation":
		kind, rootName = OperationMutation, "mutation"
	case "subscription":
		kind, rootName = OperationSubscription, "subscription"
	}
	rootType, ok := schema.RootType(rootName)
	if !ok {
		return nil, &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("schema has no %s root type", rootName)}
	}

	vars, err := b.bindVariables(opDef)
	if err != nil {
		return nil, err
	}

	selections, err := b.bindSelectionSet(opDef.SelectionSet, rootType, nil)
	if err != nil {
		return nil, err
	}

	bo := &BoundOperation{
		Kind:           kind,
		RootEntity:     rootType,
		Fields:         b.fields,
		RootSelections: selections,
		Variables:      vars,
	}
	if opDef.Name != nil {
		bo.Name = opDef.Name.String()
	}
	b.registerModifiers(bo)
	return bo, nil
}

func (b *binder) bindVariables(op *ast.OperationDefinition) ([]Variable, error) {
	var out []Variable
	for _, vd := range op.VariableDefinitions {
		name := vd.Variable.Name.String()
		tref, err := b.resolveAstType(vd.Type)
		if err != nil {
			return nil, err
		}
		v := Variable{Name: name, Type: tref}
		if val, ok := b.req.Variables[name]; ok {
			v.Value, v.HasValue = val, true
		} else if vd.DefaultValue != nil {
			v.DefaultVal, v.HasDefault = vd.DefaultValue.String(), true
		} else if tref.NonNull {
			return nil, &Error{Code: "VARIABLE", Message: fmt.Sprintf("missing required variable $%s", name)}
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *binder) resolveAstType(t ast.Type) (graph.TypeRef, error) {
	switch tt := t.(type) {
	case *ast.NonNullType:
		inner, err := b.resolveAstType(tt.Type)
		if err != nil {
			return graph.TypeRef{}, err
		}
		inner.NonNull = true
		return inner, nil
	case *ast.ListType:
		elem, err := b.resolveAstType(tt.Type)
		if err != nil {
			return graph.TypeRef{}, err
		}
		return graph.TypeRef{List: true, Elem: &elem}, nil
	case *ast.NamedType:
		def, ok := b.schema.LookupType(tt.Name.String())
		if !ok {
			return graph.TypeRef{}, &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("unknown type %s", tt.Name.String())}
		}
		return graph.TypeRef{NamedType: def.ID}, nil
	default:
		return graph.TypeRef{}, &Error{Code: "OPERATION_VALIDATION", Message: "unrecognized type node"}
	}
}

// bindSelectionSet flattens fragment spreads/inline fragments and resolves
// each field against parentType, returning the ids of the fields it created.
func (b *binder) bindSelectionSet(set *ast.SelectionSet, parentType graph.DefinitionID, typeConditions []graph.DefinitionID) ([]FieldID, error) {
	if set == nil {
		return nil, nil
	}
	seen := make(map[string]FieldID)
	var order []FieldID

	var walk func(sels []ast.Selection, conds []graph.DefinitionID) error
	walk = func(sels []ast.Selection, conds []graph.DefinitionID) error {
		for _, sel := range sels {
			switch s := sel.(type) {
			case *ast.Field:
				fid, err := b.bindField(s, parentType, conds)
				if err != nil {
					return err
				}
				key := b.fields[fid].ResponseKey
				if existing, ok := seen[key]; ok {
					// Same response key seen twice on the same concrete
					// type: merge sub-selections rather than duplicate.
					b.fields[existing].Selections = append(b.fields[existing].Selections, b.fields[fid].Selections...)
					continue
				}
				seen[key] = fid
				order = append(order, fid)
			case *ast.InlineFragment:
				var condID graph.DefinitionID
				nextConds := conds
				if s.TypeCondition != nil {
					def, ok := b.schema.LookupType(s.TypeCondition.String())
					if !ok {
						return &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("unknown type condition %s", s.TypeCondition.String())}
					}
					condID = def.ID
					nextConds = append(append([]graph.DefinitionID{}, conds...), condID)
				}
				if err := walk(s.SelectionSet.Selections, nextConds); err != nil {
					return err
				}
			case *ast.FragmentSpread:
				frag, ok := b.fragments[s.Name.String()]
				if !ok {
					return &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("unknown fragment %s", s.Name.String())}
				}
				def, ok := b.schema.LookupType(frag.TypeCondition.String())
				if !ok {
					return &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("fragment %s: unknown type condition", s.Name.String())}
				}
				nextConds := append(append([]graph.DefinitionID{}, conds...), def.ID)
				if err := walk(frag.SelectionSet.Selections, nextConds); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(set.Selections, typeConditions); err != nil {
		return nil, err
	}
	return order, nil
}

func (b *binder) bindField(f *ast.Field, parentType graph.DefinitionID, conds []graph.DefinitionID) (FieldID, error) {
	name := f.Name.String()
	responseKey := name
	if f.Alias != nil {
		responseKey = f.Alias.String()
	}

	loc := Location{}
	if f.Name.Token != nil {
		loc = Location{Line: f.Name.Token.Line, Column: f.Name.Token.Column}
	}

	if name == "__typename" {
		fid := FieldID(len(b.fields))
		b.fields = append(b.fields, Field{
			ID: fid, ResponseKey: responseKey, Typename: true,
			TypeConditions: conds, Location: loc,
			DirectiveArgs: map[string]map[string]any{},
		})
		return fid, nil
	}

	fd, ok := b.schema.LookupField(b.schema.Name(b.schema.Type(parentType).Name), name)
	if !ok {
		return 0, &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("field %s not found", name), Location: loc}
	}

	args, err := b.bindArguments(fd, f.Arguments)
	if err != nil {
		return 0, err
	}

	fid := FieldID(len(b.fields))
	b.fields = append(b.fields, Field{ID: fid}) // reserve slot for recursive selection binding

	outputDef := fd.OutputType.NamedType
	if fd.OutputType.Elem != nil {
		inner := &fd.OutputType
		for inner.Elem != nil {
			inner = inner.Elem
		}
		outputDef = inner.NamedType
	}

	sels, err := b.bindSelectionSet(f.SelectionSet, outputDef, nil)
	if err != nil {
		return 0, err
	}

	dirNames, dirArgs := bindDirectives(f.Directives)

	b.fields[fid] = Field{
		ID: fid, ResponseKey: responseKey, Definition: fd.ID,
		Arguments: args, Selections: sels, TypeConditions: conds,
		Directives: dirNames, DirectiveArgs: dirArgs, Location: loc,
		DeferLabel: deferLabel(dirNames, dirArgs),
	}
	return fid, nil
}

func (b *binder) bindArguments(fd *graph.FieldDefinition, astArgs []*ast.Argument) ([]Argument, error) {
	supplied := make(map[string]ast.Value)
	for _, a := range astArgs {
		supplied[a.Name.String()] = a.Value
	}

	var out []Argument
	for _, ivID := range fd.Arguments {
		iv := b.schema.InputValue(ivID)
		name := b.schema.Name(iv.Name)
		val, has := supplied[name]
		switch {
		case has:
			if vv, ok := val.(*ast.Variable); ok {
				out = append(out, Argument{Name: name, Value: &VariableRef{Name: vv.Name.String()}})
			} else {
				out = append(out, Argument{Name: name, Value: val.String()})
			}
		case iv.HasDefault:
			out = append(out, Argument{Name: name, Value: iv.DefaultValue})
		case iv.Type.NonNull:
			return nil, &Error{Code: "OPERATION_VALIDATION", Message: fmt.Sprintf("missing required argument %s", name)}
		}
	}
	return out, nil
}

func bindDirectives(directives []*ast.Directive) ([]string, map[string]map[string]any) {
	if len(directives) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(directives))
	args := make(map[string]map[string]any, len(directives))
	for _, d := range directives {
		names = append(names, d.Name)
		m := make(map[string]any, len(d.Arguments))
		for _, a := range d.Arguments {
			m[a.Name.String()] = a.Value.String()
		}
		args[d.Name] = m
	}
	sort.Strings(names)
	return names, args
}

func deferLabel(names []string, args map[string]map[string]any) string {
	for _, n := range names {
		if n != "defer" {
			continue
		}
		if lbl, ok := args["defer"]["label"]; ok {
			if s, ok := lbl.(string); ok {
				return s
			}
		}
	}
	return ""
}

// parseScopeGroups parses a `@requiresScopes(scopes: [["a","b"],["c"]])`
// argument's raw literal source text into its OR-of-AND scope groups. The
// schema builder keeps directive arguments as unparsed literal text (like
// every other directive argument in this package), so the nested-list shape
// is decoded by hand here rather than through a generic JSON/AST decoder.
func parseScopeGroups(raw string) [][]string {
	var groups [][]string
	var cur []string
	var buf []byte
	depth, inString := 0, false

	flush := func() {
		if len(buf) > 0 {
			cur = append(cur, string(buf))
			buf = nil
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			inString = !inString
		case inString:
			buf = append(buf, c)
		case c == '[':
			depth++
			if depth == 2 {
				cur = nil
			}
		case c == ']':
			if depth == 2 {
				flush()
				groups = append(groups, cur)
			}
			depth--
		case c == ',':
			flush()
		}
	}
	return groups
}

// registerModifiers walks every bound field, attaching query-time or
// response-time ModifierRules per the directives recorded on its schema
// field definition (step 6 of the binder).
func (b *binder) registerModifiers(bo *BoundOperation) {
	for i := range bo.Fields {
		f := &bo.Fields[i]
		if f.Typename {
			continue
		}
		fd := b.schema.Field(f.Definition)
		for _, dID := range fd.Directives {
			d := b.schema.Directive(dID)
			switch d.Name {
			case "authenticated":
				bo.QueryTimeMods = append(bo.QueryTimeMods, ModifierRule{Kind: ModifierQueryTime, Directive: "authenticated", Field: f.ID})
			case "requiresScopes":
				raw, _ := d.Arguments["scopes"].(string)
				scopes := parseScopeGroups(raw)
				bo.QueryTimeMods = append(bo.QueryTimeMods, ModifierRule{Kind: ModifierQueryTime, Directive: "requiresScopes", Scopes: scopes, Field: f.ID})
			case "authorized":
				_, onFields := d.Arguments["fields"]
				_, onNode := d.Arguments["node"]
				kind := ModifierQueryTime
				if onFields || onNode {
					kind = ModifierResponseTime
				}
				bo.ResponseTimeMods = append(bo.ResponseTimeMods, ModifierRule{
					Kind: kind, Directive: "authorized", Field: f.ID,
					OnFields: onFields, OnNode: onNode, Metadata: d.Arguments,
				})
				if kind == ModifierQueryTime {
					bo.QueryTimeMods = append(bo.QueryTimeMods, bo.ResponseTimeMods[len(bo.ResponseTimeMods)-1])
					bo.ResponseTimeMods = bo.ResponseTimeMods[:len(bo.ResponseTimeMods)-1]
				}
			}
		}
	}
}
