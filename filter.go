package bento

// Filter provides a typed, entity-level iterator over all entities carrying
// the component stored under one name. It walks the matching archetypes'
// column arrays directly, so iteration is cache-friendly and allocation
// free after construction.
//
// Like Query, a filter is invalidated by any structural mutation of the
// store; call Reset before reusing it.
type Filter[T any] struct {
	query *Query
	data  []T
	ents  []EntityID
	name  NameID
	idx   int
}

// NewFilter creates a new `Filter` that iterates over all entities carrying
// the component stored under name, with element type T.
//
// Parameters:
//   - s: The Store to query.
//   - name: The component name to match.
//
// Returns:
//   - A pointer to the newly created `Filter[T]`.
func NewFilter[T any](s *Store, name NameID) *Filter[T] {
	return &Filter[T]{query: s.Query(name), name: name, idx: -1}
}

// Reset rewinds the filter and rebinds it to the store's current state.
func (self *Filter[T]) Reset() {
	self.query.Reset()
	self.data = nil
	self.ents = nil
	self.idx = -1
}

// Next advances the filter to the next matching entity. It returns true if
// an entity was found, and false if the iteration is complete. This method
// must be called before accessing the entity or its component.
//
// Example:
//
//	f := bento.NewFilter[Position](store, posName)
//	for f.Next() {
//	    // ... process f.Entity(), f.Get()
//	}
func (self *Filter[T]) Next() bool {
	self.idx++
	if self.idx < len(self.ents) {
		return true
	}
	for self.query.Next() {
		self.data = ColumnOf[T](self.query, self.name)
		self.ents = self.query.Entities()
		self.idx = 0
		return true
	}
	return false
}

// Entity returns the current entity. Only valid after Next returned true.
func (self *Filter[T]) Entity() EntityID {
	return self.ents[self.idx]
}

// Get returns a pointer to the component for the current entity. Only valid
// after Next returned true.
func (self *Filter[T]) Get() *T {
	return &self.data[self.idx]
}

// Filter2 iterates entities carrying both named components, yielding typed
// pointers to each. Semantics match Filter.
type Filter2[A, B any] struct {
	query *Query
	dataA []A
	dataB []B
	ents  []EntityID
	nameA NameID
	nameB NameID
	idx   int
}

// NewFilter2 creates a filter over entities that carry both components.
func NewFilter2[A, B any](s *Store, nameA, nameB NameID) *Filter2[A, B] {
	return &Filter2[A, B]{query: s.Query(nameA, nameB), nameA: nameA, nameB: nameB, idx: -1}
}

// Reset rewinds the filter and rebinds it to the store's current state.
func (self *Filter2[A, B]) Reset() {
	self.query.Reset()
	self.dataA = nil
	self.dataB = nil
	self.ents = nil
	self.idx = -1
}

// Next advances the filter to the next matching entity.
func (self *Filter2[A, B]) Next() bool {
	self.idx++
	if self.idx < len(self.ents) {
		return true
	}
	for self.query.Next() {
		self.dataA = ColumnOf[A](self.query, self.nameA)
		self.dataB = ColumnOf[B](self.query, self.nameB)
		self.ents = self.query.Entities()
		self.idx = 0
		return true
	}
	return false
}

// Entity returns the current entity.
func (self *Filter2[A, B]) Entity() EntityID {
	return self.ents[self.idx]
}

// Get returns pointers to both components for the current entity.
func (self *Filter2[A, B]) Get() (*A, *B) {
	return &self.dataA[self.idx], &self.dataB[self.idx]
}
