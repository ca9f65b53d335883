// Package respstore implements the arena-backed response tree (C7):
// path-addressable, supporting partial updates for @defer and streaming
// subscriptions, with null propagation on required positions performed
// before error reporting.
package respstore

import "github.com/kataway/supergateway/federation/graph"

// Kind discriminates a Value's variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindI32
	KindI64
	KindU64
	KindF64
	KindStr
	KindInternedStr
	KindList
	KindObject
	KindMap
	KindUnexpected
)

// ValueID addresses one value in the arena.
type ValueID uint32

// PathStep is one step of a response path: either an object key or a list
// index (IsIndex true).
type PathStep struct {
	Key     string
	Index   int
	IsIndex bool
}

// Value is the tagged-struct sum type backing every node in the response
// tree: a Kind tag plus whichever of the scalar/handle fields that kind
// uses, kept flat so values live contiguously in the arena instead of
// behind per-variant pointers.
type Value struct {
	Kind        Kind
	Bool        bool
	I64         int64
	U64         uint64
	F64         float64
	Str         string
	InternedStr graph.StringID
	ListID      ValueID
	ObjectID    ValueID
	MapID       ValueID
}

// object is one Object value's backing storage: an optional concrete type
// (for interface/union dispatch) and a sorted (response_key, value) list.
type object struct {
	concreteType graph.DefinitionID
	hasConcrete  bool
	entries      []objectEntry
}

type objectEntry struct {
	Key   string
	Value ValueID
}

type list struct {
	items []ValueID
}

// Store is the arena: Values, object bodies, and list bodies are each a
// growable slice; every handle into it is a small integer index, so the
// whole tree clones cheaply by value-copying the three slices.
type Store struct {
	values  []Value
	objects []object
	lists   []list
	mu      chan struct{} // binary semaphore created by New; a zero-value Store's nil channel blocks forever, so always build a Store with New
}

// New allocates an empty store with its root pointing at a Null value.
func New() *Store {
	s := &Store{mu: make(chan struct{}, 1)}
	s.mu <- struct{}{}
	s.values = append(s.values, Value{Kind: KindNull})
	return s
}

func (s *Store) lock()   { <-s.mu }
func (s *Store) unlock() { s.mu <- struct{}{} }

// NewScalar interns a scalar value and returns its id.
func (s *Store) NewScalar(v Value) ValueID {
	s.lock()
	defer s.unlock()
	id := ValueID(len(s.values))
	s.values = append(s.values, v)
	return id
}

// NewObject allocates a fresh, empty object and returns its value id.
func (s *Store) NewObject(concreteType graph.DefinitionID, hasConcrete bool) ValueID {
	s.lock()
	defer s.unlock()
	objID := ValueID(len(s.objects))
	s.objects = append(s.objects, object{concreteType: concreteType, hasConcrete: hasConcrete})
	id := ValueID(len(s.values))
	s.values = append(s.values, Value{Kind: KindObject, ObjectID: objID})
	return id
}

// SetField inserts or overwrites a (key, value) entry on an object value,
// keeping entries sorted by key so equal response trees compare equal.
func (s *Store) SetField(objectValueID ValueID, key string, value ValueID) {
	s.lock()
	defer s.unlock()
	v := &s.values[objectValueID]
	obj := &s.objects[v.ObjectID]
	for i, e := range obj.entries {
		if e.Key == key {
			obj.entries[i].Value = value
			return
		}
	}
	lo, hi := 0, len(obj.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if obj.entries[mid].Key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	obj.entries = append(obj.entries, objectEntry{})
	copy(obj.entries[lo+1:], obj.entries[lo:])
	obj.entries[lo] = objectEntry{Key: key, Value: value}
}

// NewList allocates a fresh list value with n null-initialized slots.
func (s *Store) NewList(n int) ValueID {
	s.lock()
	defer s.unlock()
	items := make([]ValueID, n)
	listID := ValueID(len(s.lists))
	s.lists = append(s.lists, list{items: items})
	id := ValueID(len(s.values))
	s.values = append(s.values, Value{Kind: KindList, ListID: listID})
	return id
}

// SetIndex sets one slot of a list value.
func (s *Store) SetIndex(listValueID ValueID, index int, value ValueID) {
	s.lock()
	defer s.unlock()
	v := &s.values[listValueID]
	s.lists[v.ListID].items[index] = value
}

// Null is the shared id for a null value (always value id 0, per New).
const Null ValueID = 0

// Get dereferences a value id.
func (s *Store) Get(id ValueID) Value {
	s.lock()
	defer s.unlock()
	return s.values[id]
}

// Field looks up a key on an object value.
func (s *Store) Field(objectValueID ValueID, key string) (ValueID, bool) {
	s.lock()
	defer s.unlock()
	v := s.values[objectValueID]
	if v.Kind != KindObject {
		return 0, false
	}
	for _, e := range s.objects[v.ObjectID].entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return 0, false
}

// ListItems returns the item ids of a list value.
func (s *Store) ListItems(listValueID ValueID) []ValueID {
	s.lock()
	defer s.unlock()
	v := s.values[listValueID]
	return s.lists[v.ListID].items
}

// PropagateNull implements standard GraphQL null propagation: path is the
// absolute sequence of object-key/list-index steps from root down to a
// value that came up null (or invalid) in a non-null position.
// nonNullAtEachStep[i] reports whether path[i]'s own declared type is
// non-null. Scanning from the leaf backward, the first nullable step is
// where the null stops; everything from there down collapses, so
// PropagateNull walks root to that step's container and nulls it out
// there. If every step (and the root's own slot) is non-null, the null
// must propagate past path entirely; the caller is responsible for
// nulling root itself in its own parent.
func (s *Store) PropagateNull(root ValueID, path []PathStep, nonNullAtEachStep []bool) ValueID {
	if len(path) == 0 {
		return Null
	}
	cut := len(path) - 1
	for cut >= 0 && nonNullAtEachStep[cut] {
		cut--
	}
	if cut < 0 {
		return Null
	}

	cur := root
	for i := 0; i < cut; i++ {
		step := path[i]
		if step.IsIndex {
			items := s.ListItems(cur)
			if step.Index < 0 || step.Index >= len(items) {
				return Null
			}
			cur = items[step.Index]
		} else {
			v, ok := s.Field(cur, step.Key)
			if !ok {
				return Null
			}
			cur = v
		}
	}

	step := path[cut]
	if step.IsIndex {
		s.SetIndex(cur, step.Index, Null)
	} else {
		s.SetField(cur, step.Key, Null)
	}
	return Null
}

// ToJSON converts the subtree rooted at id into a plain Go value
// (map[string]any / []any / scalar / nil) suitable for json.Marshal,
// mirroring the shape a GraphQL client expects over the wire.
func (s *Store) ToJSON(id ValueID) any {
	v := s.Get(id)
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindI32, KindI64:
		return v.I64
	case KindU64:
		return v.U64
	case KindF64:
		return v.F64
	case KindStr, KindInternedStr:
		return v.Str
	case KindList:
		items := s.ListItems(id)
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = s.ToJSON(it)
		}
		return out
	case KindObject:
		s.lock()
		entries := append([]objectEntry{}, s.objects[v.ObjectID].entries...)
		s.unlock()
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			out[e.Key] = s.ToJSON(e.Value)
		}
		return out
	default:
		return nil
	}
}
