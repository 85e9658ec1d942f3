package bento

import (
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
)

// Builder spawns entities directly into the archetype for a fixed component
// set, resolved once at construction. Spawned entities skip the per-component
// migration that repeated SetComponent calls would cause, which matters when
// creating entities in bulk.
type Builder[T any] struct {
	store *Store
	arch  *Archetype
	node  uint32
	name  NameID
}

// NewBuilder resolves (or creates) the archetype {id, name} and returns a
// builder that spawns entities into it. The exact-set lookup goes through
// the component-set hash buckets first and falls back to a tree walk.
func NewBuilder[T any](s *Store, name NameID) *Builder[T] {
	node, arch := s.resolveSet(
		[]NameID{name},
		[]ComponentInfo{InfoOf[T]()},
	)
	return &Builder[T]{store: s, arch: arch, node: node, name: name}
}

// NewEntity spawns one entity with a zero-valued component.
func (self *Builder[T]) NewEntity() (EntityID, error) {
	id, _, err := self.store.spawn(self.node)
	return id, err
}

// NewEntityWithValue spawns one entity with the component set to v.
func (self *Builder[T]) NewEntityWithValue(v T) (EntityID, error) {
	id, row, err := self.store.spawn(self.node)
	if err != nil {
		return 0, err
	}
	setAt(self.arch, self.name, row, v)
	return id, nil
}

// NewEntities spawns count entities with zero-valued components and returns
// their ids. Capacity is reserved up front, so a failed allocation spawns
// nothing.
func (self *Builder[T]) NewEntities(count int) ([]EntityID, error) {
	if count == 0 {
		return nil, nil
	}
	if err := self.arch.ensureTotalCapacity(self.arch.len+count, self.store.alloc); err != nil {
		return nil, err
	}
	ids := make([]EntityID, count)
	for i := range ids {
		id, _, err := self.store.spawn(self.node)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Builder2 spawns entities with two components. Semantics match Builder.
type Builder2[A, B any] struct {
	store *Store
	arch  *Archetype
	node  uint32
	nameA NameID
	nameB NameID
}

// NewBuilder2 resolves (or creates) the archetype {id, nameA, nameB} and
// returns a builder that spawns entities into it.
func NewBuilder2[A, B any](s *Store, nameA, nameB NameID) *Builder2[A, B] {
	node, arch := s.resolveSet(
		[]NameID{nameA, nameB},
		[]ComponentInfo{InfoOf[A](), InfoOf[B]()},
	)
	return &Builder2[A, B]{store: s, arch: arch, node: node, nameA: nameA, nameB: nameB}
}

// NewEntity spawns one entity with zero-valued components.
func (self *Builder2[A, B]) NewEntity() (EntityID, error) {
	id, _, err := self.store.spawn(self.node)
	return id, err
}

// NewEntityWithValues spawns one entity with both components set.
func (self *Builder2[A, B]) NewEntityWithValues(a A, b B) (EntityID, error) {
	id, row, err := self.store.spawn(self.node)
	if err != nil {
		return 0, err
	}
	setAt(self.arch, self.nameA, row, a)
	setAt(self.arch, self.nameB, row, b)
	return id, nil
}

// NewEntities spawns count entities with zero-valued components.
func (self *Builder2[A, B]) NewEntities(count int) ([]EntityID, error) {
	if count == 0 {
		return nil, nil
	}
	if err := self.arch.ensureTotalCapacity(self.arch.len+count, self.store.alloc); err != nil {
		return nil, err
	}
	ids := make([]EntityID, count)
	for i := range ids {
		id, _, err := self.store.spawn(self.node)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// setAt writes v into a's column for name at row. Zero-sized values have no
// storage to write.
func setAt[T any](a *Archetype, name NameID, row int, v T) {
	if unsafe.Sizeof(v) == 0 {
		return
	}
	ColumnOfArchetype[T](a, name)[row] = v
}

// resolveSet finds or creates the node for the exact component set
// {id} ∪ names, materializing each archetype along the tree path as needed.
func (self *Store) resolveSet(names []NameID, infos []ComponentInfo) (uint32, *Archetype) {
	set := roaring.New()
	set.Add(uint32(NameIDEntity))
	for _, n := range names {
		set.Add(uint32(n))
	}
	if node, ok := self.tree.lookupBySet(set); ok {
		return node, self.tree.nodes[node].arch
	}
	node := rootNode
	arch := self.tree.nodes[rootNode].arch
	for i, n := range names {
		next := self.tree.add(node, n)
		if next == node {
			continue // duplicate name in the set
		}
		arch = self.materializeAdd(next, arch, n, infos[i])
		node = next
	}
	return node, arch
}
