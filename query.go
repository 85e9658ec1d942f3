package bento

import (
	"unsafe"
)

// Query is a lazy, forward-only iterator over the non-empty archetypes whose
// component sets contain a required set of names. Iteration order follows
// tree node order and is stable while the store is not mutated.
//
// A query is bound to the store's mutation version at creation; advancing or
// reading it after a structural mutation is a programmer error and panics.
// Call Reset to rebind after mutating.
type Query struct {
	store   *Store
	include []NameID
	arch    *Archetype
	nodeIdx int
	version uint32
}

// Query creates a query matching every archetype that has all the given
// component names. With no names it matches every non-empty archetype.
func (self *Store) Query(all ...NameID) *Query {
	include := make([]NameID, len(all))
	copy(include, all)
	return &Query{
		store:   self,
		include: include,
		nodeIdx: -1,
		version: self.mutationVersion,
	}
}

// Next advances to the next matching archetype. It returns false when the
// iteration is exhausted.
func (self *Query) Next() bool {
	self.check()
	nodes := self.store.tree.nodes
outer:
	for i := self.nodeIdx + 1; i < len(nodes); i++ {
		n := &nodes[i]
		if n.arch == nil || n.arch.len == 0 {
			continue
		}
		for _, name := range self.include {
			if !n.set.Contains(uint32(name)) {
				continue outer
			}
		}
		self.nodeIdx = i
		self.arch = n.arch
		return true
	}
	self.nodeIdx = len(nodes)
	self.arch = nil
	return false
}

// Reset rewinds the query and rebinds it to the store's current state.
func (self *Query) Reset() {
	self.nodeIdx = -1
	self.arch = nil
	self.version = self.store.mutationVersion
}

// Archetype returns the current archetype handle. Only valid after Next has
// returned true.
func (self *Query) Archetype() *Archetype {
	self.check()
	return self.arch
}

// Len returns the row count of the current archetype.
func (self *Query) Len() int {
	self.check()
	return self.arch.len
}

// Data returns the current archetype's raw column bytes for name, or nil if
// the column is absent or zero-sized.
func (self *Query) Data(name NameID) []byte {
	self.check()
	return self.arch.Data(name)
}

// Entities returns the current archetype's id column as a typed slice.
func (self *Query) Entities() []EntityID {
	self.check()
	return self.arch.Entities()
}

func (self *Query) check() {
	if self.version != self.store.mutationVersion {
		panic("bento: query used after store mutation; call Reset")
	}
}

// ColumnOf views the current archetype's column for name as a []T of length
// Len(). T's size must match the column's element size; zero-sized
// components have no column data and panic.
func ColumnOf[T any](q *Query, name NameID) []T {
	q.check()
	return ColumnOfArchetype[T](q.arch, name)
}

// ColumnOfArchetype views a's column for name as a []T of length a.Len().
// Same contract as ColumnOf.
func ColumnOfArchetype[T any](a *Archetype, name NameID) []T {
	c := a.columnByName(name)
	if c == nil {
		panic("bento: archetype has no column " + nameOf(a.names, name))
	}
	var zero T
	sz := unsafe.Sizeof(zero)
	if sz == 0 {
		panic("bento: zero-sized component " + nameOf(a.names, name) + " has no column data")
	}
	if uintptr(c.size) != sz {
		panic("bento: component " + nameOf(a.names, name) + " size mismatch")
	}
	if a.len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&c.data[0])), a.len)
}

// Entities returns the archetype's id column as a typed slice of length
// Len(). Invalidated by the next structural mutation of the owning store.
func (self *Archetype) Entities() []EntityID {
	if self.len == 0 {
		return nil
	}
	return unsafe.Slice((*EntityID)(unsafe.Pointer(&self.columns[0].data[0])), self.len)
}
