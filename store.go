// Package bento implements a name-keyed, archetype-based entity store.
//
// Component data lives in dense, column-oriented tables (archetypes), one
// per distinct component set, with columns ordered by interned NameID. An
// archetype tree canonicalizes component sets so that adding or removing a
// single component resolves to the target table by a short parent-chain
// walk instead of a hash rebuild. The store maps entity ids to (archetype,
// row) pairs and migrates rows between tables as component sets change.
//
// The store has exactly one logical writer. Raw column slices and query
// handles are valid only until the next structural mutation (create, delete,
// migration, cache clear); such a mutation may relocate buffers or rows.
// Components are stored as raw bytes and must not contain Go pointers.
package bento

import (
	"fmt"

	"go.uber.org/zap"
)

// ComponentInfo describes the stored representation of a component.
type ComponentInfo struct {
	TypeID uint32 // debug-only type identity; 0 when the host cannot supply one
	Size   uint32 // element size in bytes; 0 for tag components
	Align  uint16
}

// Store owns the archetype tree, all materialized tables and the entity
// directory. Create one with NewStore.
type Store struct {
	tree            archetypeTree
	metas           []entityMeta // indexed by EntityID
	nextID          EntityID
	liveCount       int
	alloc           Allocator
	names           *NameTable
	logger          *zap.Logger
	mutationVersion uint32
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the diagnostics logger. Only debug-level events are
// emitted (archetype materialization, cache clears); hot paths never log.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithAllocator substitutes the column-buffer allocator.
func WithAllocator(a Allocator) Option {
	return func(s *Store) { s.alloc = a }
}

// WithNames lends a NameTable to the store for diagnostics, so panic and log
// messages can name the offending component.
func WithNames(t *NameTable) Option {
	return func(s *Store) { s.names = t }
}

// NewStore creates an empty store. capacity is a hint for the number of
// entities to expect; column buffers themselves grow on demand.
//
// Parameters:
//   - capacity: Directory capacity to pre-allocate. Zero is fine.
//   - opts: Optional configuration (WithLogger, WithAllocator, WithNames).
//
// Returns:
//   - The newly created Store.
func NewStore(capacity int, opts ...Option) *Store {
	self := &Store{
		tree:   newArchetypeTree(),
		alloc:  defaultAllocator,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(self)
	}
	if capacity > 0 {
		self.metas = make([]entityMeta, 0, capacity)
	}
	// The root archetype holds only the reserved id column. Materializing it
	// allocates no buffers, so construction cannot fail.
	self.tree.nodes[rootNode].arch = &Archetype{
		columns: []Column{{name: NameIDEntity, size: entityIDSize, align: entityIDSize}},
		hash:    self.tree.nodes[rootNode].hash,
		next:    nilNode,
		names:   self.names,
	}
	self.tree.registerBucket(rootNode)
	return self
}

// NewEntity allocates a fresh entity with no components (beyond the reserved
// id) and places it in the root archetype.
func (self *Store) NewEntity() (EntityID, error) {
	id, _, err := self.spawn(rootNode)
	return id, err
}

// spawn reserves a zeroed row in node's archetype, assigns a fresh id and
// records the directory entry. Nothing is observable when the row
// reservation fails.
func (self *Store) spawn(node uint32) (EntityID, int, error) {
	a := self.tree.nodes[node].arch
	row, err := a.appendUndefined(self.alloc)
	if err != nil {
		return 0, 0, err
	}
	a.clearRow(row)
	id := self.nextID
	self.nextID++
	a.setEntity(row, id)
	self.metas = append(self.metas, entityMeta{archetypeIndex: node, index: uint32(row), alive: true})
	self.liveCount++
	self.mutationVersion++
	return id, row, nil
}

// DeleteEntity removes e and its row. The vacated slot is filled by the
// archetype's last row; that entity's directory entry is patched.
func (self *Store) DeleteEntity(e EntityID) error {
	meta, err := self.lookup(e)
	if err != nil {
		return err
	}
	a := self.tree.nodes[meta.archetypeIndex].arch
	self.removeRowPatched(a, int(meta.index))
	meta.alive = false
	self.liveCount--
	self.mutationVersion++
	return nil
}

// SetComponent writes value for component name on entity e, migrating the
// entity to the archetype with the extended component set if the component
// is not already present. The transition is atomic: if any allocation fails
// the store is left exactly as it was.
//
// value must be info.Size bytes; a mismatch is a programmer error and
// panics. For zero-sized (tag) components pass a nil value and Size 0.
func (self *Store) SetComponent(e EntityID, name NameID, value []byte, info ComponentInfo) error {
	meta, err := self.lookup(e)
	if err != nil {
		return err
	}
	old := self.tree.nodes[meta.archetypeIndex].arch
	if c := old.columnByName(name); c != nil {
		old.checkType(c, info.TypeID)
		old.setRaw(int(meta.index), name, value)
		return nil
	}
	if len(value) != int(info.Size) {
		panic(fmt.Sprintf("bento: component %s size mismatch: got %d bytes, want %d",
			nameOf(self.names, name), len(value), info.Size))
	}
	newIdx := self.tree.add(meta.archetypeIndex, name)
	dst := self.materializeAdd(newIdx, old, name, info)
	row, err := dst.appendUndefined(self.alloc)
	if err != nil {
		return err
	}
	dst.copyRowFrom(row, old, int(meta.index))
	dst.setRaw(row, name, value)
	dst.setEntity(row, e)
	self.removeRowPatched(old, int(meta.index))
	meta.archetypeIndex = newIdx
	meta.index = uint32(row)
	self.mutationVersion++
	return nil
}

// RemoveComponent removes component name from entity e, migrating it to the
// archetype with the reduced set. Removing an absent component, or the
// reserved id, is a no-op. Atomicity matches SetComponent.
func (self *Store) RemoveComponent(e EntityID, name NameID) error {
	meta, err := self.lookup(e)
	if err != nil {
		return err
	}
	newIdx := self.tree.remove(meta.archetypeIndex, name)
	if newIdx == meta.archetypeIndex {
		return nil
	}
	old := self.tree.nodes[meta.archetypeIndex].arch
	dst := self.materializeRemove(newIdx, old, name)
	row, err := dst.appendUndefined(self.alloc)
	if err != nil {
		return err
	}
	dst.copyRowFrom(row, old, int(meta.index))
	self.removeRowPatched(old, int(meta.index))
	meta.archetypeIndex = newIdx
	meta.index = uint32(row)
	self.mutationVersion++
	return nil
}

// GetComponent returns the element bytes of component name on entity e, or
// nil with a nil error if the entity does not have the component. Zero-sized
// components yield an empty, non-nil slice. The slice aliases column storage
// and is invalidated by the next structural mutation.
func (self *Store) GetComponent(e EntityID, name NameID) ([]byte, error) {
	meta, err := self.lookup(e)
	if err != nil {
		return nil, err
	}
	a := self.tree.nodes[meta.archetypeIndex].arch
	b, ok := a.getRaw(int(meta.index), name)
	if !ok {
		return nil, nil
	}
	return b, nil
}

// HasComponent reports whether entity e carries component name.
func (self *Store) HasComponent(e EntityID, name NameID) (bool, error) {
	meta, err := self.lookup(e)
	if err != nil {
		return false, err
	}
	return self.tree.contains(meta.archetypeIndex, name), nil
}

// Locate returns the archetype table and row currently holding e. The
// returned handle is invalidated by the next structural mutation.
func (self *Store) Locate(e EntityID) (*Archetype, int, error) {
	meta, err := self.lookup(e)
	if err != nil {
		return nil, 0, err
	}
	return self.tree.nodes[meta.archetypeIndex].arch, int(meta.index), nil
}

// ClearCache drops archetype nodes that no live entity uses and compacts the
// tree. Archetypes with rows, and all their ancestors, survive. This is the
// only reclamation the store performs; it is never automatic.
func (self *Store) ClearCache() {
	before := len(self.tree.nodes)
	remap := self.tree.clearCache()
	if remap == nil {
		return
	}
	for i := range self.metas {
		if self.metas[i].alive {
			self.metas[i].archetypeIndex = remap[self.metas[i].archetypeIndex]
		}
	}
	self.mutationVersion++
	self.logger.Debug("archetype cache cleared",
		zap.Int("removed", before-len(self.tree.nodes)),
		zap.Int("nodes", len(self.tree.nodes)))
}

// NumEntities returns the number of live entities.
func (self *Store) NumEntities() int {
	return self.liveCount
}

// NumNodes returns the number of archetype tree nodes, including the root.
func (self *Store) NumNodes() int {
	return len(self.tree.nodes)
}

// NumArchetypes returns the number of materialized archetype tables.
func (self *Store) NumArchetypes() int {
	n := 0
	for i := range self.tree.nodes {
		if self.tree.nodes[i].arch != nil {
			n++
		}
	}
	return n
}

func (self *Store) lookup(e EntityID) (*entityMeta, error) {
	if uint64(e) >= uint64(len(self.metas)) || !self.metas[e].alive {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntity, uint64(e))
	}
	return &self.metas[e], nil
}

// removeRowPatched swap-removes row from a and patches the directory entry
// of the entity displaced from the former last row, if any.
func (self *Store) removeRowPatched(a *Archetype, row int) {
	last := a.len - 1
	if row < last {
		displaced := a.EntityAt(last)
		a.removeRow(row)
		self.metas[displaced].index = uint32(row)
		return
	}
	a.removeRow(row)
}

// materializeAdd ensures the node at idx has a table whose columns are src's
// plus one for name, inserted at its sorted position. Buffers are not
// allocated here; capacity grows on first append.
func (self *Store) materializeAdd(idx uint32, src *Archetype, name NameID, info ComponentInfo) *Archetype {
	n := &self.tree.nodes[idx]
	if n.arch != nil {
		return n.arch
	}
	cols := make([]Column, 0, len(src.columns)+1)
	added := Column{name: name, typeID: info.TypeID, size: info.Size, align: info.Align}
	inserted := false
	for i := range src.columns {
		c := &src.columns[i]
		if !inserted && name < c.name {
			cols = append(cols, added)
			inserted = true
		}
		cols = append(cols, c.meta())
	}
	if !inserted {
		cols = append(cols, added)
	}
	n.arch = &Archetype{columns: cols, hash: n.hash, next: nilNode, names: self.names}
	self.tree.registerBucket(idx)
	self.logger.Debug("archetype materialized",
		zap.Uint32("node", idx), zap.Int("columns", len(cols)))
	return n.arch
}

// materializeRemove ensures the node at idx has a table whose columns are
// src's minus the one for name.
func (self *Store) materializeRemove(idx uint32, src *Archetype, name NameID) *Archetype {
	n := &self.tree.nodes[idx]
	if n.arch != nil {
		return n.arch
	}
	cols := make([]Column, 0, len(src.columns)-1)
	for i := range src.columns {
		if src.columns[i].name == name {
			continue
		}
		cols = append(cols, src.columns[i].meta())
	}
	n.arch = &Archetype{columns: cols, hash: n.hash, next: nilNode, names: self.names}
	self.tree.registerBucket(idx)
	self.logger.Debug("archetype materialized",
		zap.Uint32("node", idx), zap.Int("columns", len(cols)))
	return n.arch
}
