package bento

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// nilNode marks the absence of a node index (bucket chain tails).
const nilNode = ^uint32(0)

// rootNode is the index of the root archetype node, representing the base
// component set {id}. The root is its own parent.
const rootNode = uint32(0)

// treeNode is one node of the archetype tree. The component set of a node is
// the set of names along the parent chain up to the root; children strictly
// increase name, so the walk root→leaf yields components in ascending NameID
// order with no duplicates. That path encoding makes the archetype identity
// a function of the set only, never of insertion order.
type treeNode struct {
	arch   *Archetype      // materialized table, nil until an entity needs it
	set    *roaring.Bitmap // canonical component set, including the reserved id
	hash   uint64          // order-independent fold of the set's name hashes
	name   NameID          // the component this node adds to its parent's set
	parent uint32
}

// treeEdge keys the (parent, name) → child dedupe map.
type treeEdge struct {
	parent uint32
	name   NameID
}

// archetypeTree deduplicates archetypes and turns "the archetype obtained by
// adding/removing one component" into a short parent-chain walk. Nodes live
// in a flat array and reference each other by index only; indices are stable
// except across clearCache, which returns a remap for the caller's directory.
type archetypeTree struct {
	nodes   []treeNode
	edges   map[treeEdge]uint32
	buckets map[uint64]uint32 // component-set hash → head node; ties chain via Archetype.next
	scratch []NameID
	retry   []uint32
}

func newArchetypeTree() archetypeTree {
	set := roaring.New()
	set.Add(uint32(NameIDEntity))
	return archetypeTree{
		nodes: []treeNode{{
			name:   NameIDEntity,
			parent: rootNode,
			set:    set,
			hash:   nameHash(NameIDEntity),
		}},
		edges:   make(map[treeEdge]uint32, 16),
		buckets: make(map[uint64]uint32, 16),
	}
}

// insert returns the child of parent adding name, creating it if needed.
// Shared prefixes dedupe here: the same (parent, name) pair always resolves
// to the same node.
func (self *archetypeTree) insert(parent uint32, name NameID) uint32 {
	if idx, ok := self.edges[treeEdge{parent, name}]; ok {
		return idx
	}
	p := &self.nodes[parent]
	set := p.set.Clone()
	set.Add(uint32(name))
	idx := uint32(len(self.nodes))
	self.nodes = append(self.nodes, treeNode{
		name:   name,
		parent: parent,
		set:    set,
		hash:   p.hash ^ nameHash(name),
	})
	self.edges[treeEdge{parent, name}] = idx
	return idx
}

// add resolves the node whose component set is archIdx's set plus name.
// Walking up from archIdx the names descend, so nodes with a larger name are
// popped onto the scratch buffer until the pivot ancestor (the first node
// whose name is smaller) is reached; the chain is then rebuilt downward with
// name spliced in at its sorted position. Adding a component the set already
// has returns archIdx unchanged.
func (self *archetypeTree) add(archIdx uint32, name NameID) uint32 {
	self.scratch = self.scratch[:0]
	cur := archIdx
	for {
		n := &self.nodes[cur]
		if n.name == name {
			return archIdx
		}
		if n.name < name {
			break
		}
		self.scratch = append(self.scratch, n.name)
		cur = n.parent
	}
	cur = self.insert(cur, name)
	for i := len(self.scratch) - 1; i >= 0; i-- {
		cur = self.insert(cur, self.scratch[i])
	}
	return cur
}

// remove resolves the node whose component set is archIdx's set minus name.
// Removing an absent component, or the reserved id, is a no-op.
func (self *archetypeTree) remove(archIdx uint32, name NameID) uint32 {
	if name == NameIDEntity {
		return archIdx
	}
	self.scratch = self.scratch[:0]
	cur := archIdx
	for {
		n := &self.nodes[cur]
		if n.name < name {
			return archIdx
		}
		if n.name == name {
			cur = n.parent
			break
		}
		self.scratch = append(self.scratch, n.name)
		cur = n.parent
	}
	for i := len(self.scratch) - 1; i >= 0; i-- {
		cur = self.insert(cur, self.scratch[i])
	}
	return cur
}

// contains reports whether archIdx's component set includes name. The walk
// short-circuits as soon as the ascending-order invariant rules name out.
func (self *archetypeTree) contains(archIdx uint32, name NameID) bool {
	cur := archIdx
	for {
		n := &self.nodes[cur]
		if n.name == name {
			return true
		}
		if n.name < name {
			return false
		}
		cur = n.parent
	}
}

// registerBucket links archIdx, whose archetype must be materialized, into
// the component-set hash bucket table.
func (self *archetypeTree) registerBucket(archIdx uint32) {
	n := &self.nodes[archIdx]
	if head, ok := self.buckets[n.hash]; ok {
		n.arch.next = head
	} else {
		n.arch.next = nilNode
	}
	self.buckets[n.hash] = archIdx
}

// lookupBySet finds the node with a materialized archetype whose component
// set equals set exactly, via the hash bucket table.
func (self *archetypeTree) lookupBySet(set *roaring.Bitmap) (uint32, bool) {
	h := foldHash(set)
	cur, ok := self.buckets[h]
	if !ok {
		return 0, false
	}
	for cur != nilNode {
		n := &self.nodes[cur]
		if n.set.Equals(set) {
			return cur, true
		}
		cur = n.arch.next
	}
	return 0, false
}

// clearCache removes nodes that are not the root, have no materialized
// archetype (or an empty one), and are not the parent of any other node.
// Removing a node can expose its parent, so removal cascades through a retry
// buffer until a pass removes nothing. Surviving nodes are compacted;
// the returned remap translates old indices to new ones (nilNode for removed
// entries) so the caller can patch its directory. Returns nil when nothing
// was removed.
func (self *archetypeTree) clearCache() []uint32 {
	childCount := make([]int, len(self.nodes))
	for i := 1; i < len(self.nodes); i++ {
		childCount[self.nodes[i].parent]++
	}
	removed := make([]bool, len(self.nodes))
	any := false

	var tryRemove func(i uint32)
	tryRemove = func(i uint32) {
		if i == rootNode || removed[i] || childCount[i] != 0 {
			return
		}
		n := &self.nodes[i]
		if n.arch != nil && n.arch.len > 0 {
			return
		}
		removed[i] = true
		any = true
		childCount[n.parent]--
		self.retry = append(self.retry, n.parent)
	}

	for i := len(self.nodes) - 1; i >= 1; i-- {
		tryRemove(uint32(i))
	}
	for len(self.retry) > 0 {
		i := self.retry[len(self.retry)-1]
		self.retry = self.retry[:len(self.retry)-1]
		tryRemove(i)
	}
	if !any {
		return nil
	}

	remap := make([]uint32, len(self.nodes))
	kept := self.nodes[:0]
	for i := range self.nodes {
		if removed[i] {
			remap[i] = nilNode
			continue
		}
		remap[i] = uint32(len(kept))
		kept = append(kept, self.nodes[i])
	}
	self.nodes = kept
	for i := range self.nodes {
		self.nodes[i].parent = remap[self.nodes[i].parent]
	}

	// Index maps are rebuilt rather than patched entry by entry.
	clear(self.edges)
	clear(self.buckets)
	for i := 1; i < len(self.nodes); i++ {
		n := &self.nodes[i]
		self.edges[treeEdge{n.parent, n.name}] = uint32(i)
	}
	for i := range self.nodes {
		if self.nodes[i].arch != nil {
			self.registerBucket(uint32(i))
		}
	}
	return remap
}

// nameHash mixes a NameID into 64 bits (splitmix64 finalizer).
func nameHash(n NameID) uint64 {
	x := uint64(n) + 0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// foldHash is the order-independent fold of the name hashes in set.
func foldHash(set *roaring.Bitmap) uint64 {
	var h uint64
	it := set.Iterator()
	for it.HasNext() {
		h ^= nameHash(NameID(it.Next()))
	}
	return h
}
