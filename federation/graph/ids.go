// Package graph holds the interned supergraph (C1) and the solution-space
// graph built against it (C3). Every cross-reference in the supergraph is a
// small integer id into one of the arena slices on *Schema, rather than a
// pointer, so the whole schema stays trivially cloneable and free of cyclic
// ownership (types reference fields, fields reference types).
package graph

// SubgraphID identifies one upstream subgraph (endpoint or virtual).
type SubgraphID uint32

// DefinitionID identifies a type definition (object, interface, union,
// input object, enum, or scalar).
type DefinitionID uint32

// FieldID identifies a field definition on an object or interface.
type FieldID uint32

// InputValueID identifies an argument or input-object-field definition.
type InputValueID uint32

// DirectiveID identifies one directive application; every application gets
// its own id, even when it repeats another one exactly.
type DirectiveID uint32

// StringID identifies an interned string.
type StringID uint32

// InvalidID marks an absent reference; every other value must dereference
// within the schema's arenas once the schema is built.
const InvalidID = ^uint32(0)
