package bento

import (
	"fmt"
	"math"
	"unsafe"
)

// Archetype is a dense, column-oriented table holding every entity with one
// exact component set. Columns are sorted ascending by NameID and unique;
// row r is the tuple of element r across all columns. The reserved id column
// (NameIDEntity) is always columns[0].
//
// Rows are kept dense by swap-remove, so row order is not stable across
// removals. Raw column slices are valid only until the next mutating call on
// the owning store.
type Archetype struct {
	columns []Column
	len     int
	cap     int
	hash    uint64     // order-independent hash of the component-name set
	next    uint32     // bucket collision chain, nilNode at the tail
	names   *NameTable // borrowed, diagnostics only; may be nil
}

// Len returns the number of live rows.
func (self *Archetype) Len() int {
	return self.len
}

// Hash returns the order-independent hash of the component-name set.
func (self *Archetype) Hash() uint64 {
	return self.hash
}

// Data returns the live region of the column named name as raw bytes
// (Len()*size bytes), or nil if the archetype has no such column or the
// column is zero-sized. The slice is invalidated by any mutation of the
// owning store.
func (self *Archetype) Data(name NameID) []byte {
	c := self.columnByName(name)
	if c == nil || c.size == 0 {
		return nil
	}
	return c.data[:self.len*int(c.size)]
}

// EntityAt returns the entity occupying row.
func (self *Archetype) EntityAt(row int) EntityID {
	self.checkRow(row)
	return *(*EntityID)(unsafe.Pointer(&self.columns[0].data[row*entityIDSize]))
}

// HasComponent reports whether the archetype has a column named name.
func (self *Archetype) HasComponent(name NameID) bool {
	return self.columnByName(name) != nil
}

// HasComponents reports whether the archetype has a column for every name.
func (self *Archetype) HasComponents(names ...NameID) bool {
	for _, n := range names {
		if self.columnByName(n) == nil {
			return false
		}
	}
	return true
}

// Columns returns the column metadata, sorted ascending by NameID.
func (self *Archetype) Columns() []Column {
	return self.columns
}

// columnByName finds the column named name. Columns are sorted, so the scan
// stops at the first larger id. Column counts are small; linear is fine.
func (self *Archetype) columnByName(name NameID) *Column {
	for i := range self.columns {
		if self.columns[i].name == name {
			return &self.columns[i]
		}
		if self.columns[i].name > name {
			return nil
		}
	}
	return nil
}

// appendUndefined reserves one uninitialized row and returns its index,
// growing capacity geometrically when full.
func (self *Archetype) appendUndefined(alloc Allocator) (int, error) {
	if self.len == self.cap {
		if err := self.ensureTotalCapacity(grownCapacity(self.cap), alloc); err != nil {
			return 0, err
		}
	}
	self.len++
	return self.len - 1, nil
}

// ensureTotalCapacity grows every column's buffer to hold at least n rows.
// All new buffers are allocated before any column is touched, so a failed
// allocation leaves the table unchanged. Capacity never shrinks.
func (self *Archetype) ensureTotalCapacity(n int, alloc Allocator) error {
	if n <= self.cap {
		return nil
	}
	staged := make([][]byte, len(self.columns))
	for i := range self.columns {
		c := &self.columns[i]
		if c.size == 0 {
			continue
		}
		buf, err := alloc(n * int(c.size))
		if err != nil {
			return fmt.Errorf("%w: column %s: %v", ErrOutOfMemory, nameOf(self.names, c.name), err)
		}
		copy(buf, c.data[:self.len*int(c.size)])
		staged[i] = buf
	}
	for i := range self.columns {
		if self.columns[i].size == 0 {
			continue
		}
		self.columns[i].data = staged[i]
	}
	self.cap = n
	return nil
}

// setRaw writes src into column name at row. Misuse is a programmer error.
func (self *Archetype) setRaw(row int, name NameID, src []byte) {
	c := self.columnByName(name)
	if c == nil {
		panic(fmt.Sprintf("bento: archetype has no column %s", nameOf(self.names, name)))
	}
	if len(src) != int(c.size) {
		panic(fmt.Sprintf("bento: component %s size mismatch: got %d bytes, want %d",
			nameOf(self.names, name), len(src), c.size))
	}
	self.checkRow(row)
	if c.size == 0 {
		return
	}
	sz := int(c.size)
	copy(c.data[row*sz:(row+1)*sz], src)
}

// getRaw returns the element bytes of column name at row, or false if the
// archetype has no such column. Zero-sized components yield an empty,
// non-nil slice: membership is true, storage is none.
func (self *Archetype) getRaw(row int, name NameID) ([]byte, bool) {
	c := self.columnByName(name)
	if c == nil {
		return nil, false
	}
	self.checkRow(row)
	if c.size == 0 {
		return []byte{}, true
	}
	sz := int(c.size)
	return c.data[row*sz : (row+1)*sz : (row+1)*sz], true
}

// removeRow swap-removes row: the last row's bytes overwrite it in every
// column and the length shrinks by one. The caller is responsible for
// patching the directory entry of the displaced entity.
func (self *Archetype) removeRow(row int) {
	self.checkRow(row)
	last := self.len - 1
	if row < last {
		for i := range self.columns {
			c := &self.columns[i]
			if c.size == 0 {
				continue
			}
			sz := int(c.size)
			copy(c.data[row*sz:(row+1)*sz], c.data[last*sz:(last+1)*sz])
		}
	}
	self.len--
}

// copyRowFrom copies every column value present in both archetypes from
// src's row srcRow into self's row dstRow. Each source column is looked up by
// name in self; columns missing from self are skipped.
func (self *Archetype) copyRowFrom(dstRow int, src *Archetype, srcRow int) {
	for i := range src.columns {
		sc := &src.columns[i]
		dc := self.columnByName(sc.name)
		if dc == nil || sc.size == 0 {
			continue
		}
		sz := int(sc.size)
		copy(dc.data[dstRow*sz:(dstRow+1)*sz], sc.data[srcRow*sz:(srcRow+1)*sz])
	}
}

// clearRow zeroes every column's bytes at row. Used when a reserved row must
// start from zero values rather than recycled bytes.
func (self *Archetype) clearRow(row int) {
	self.checkRow(row)
	for i := range self.columns {
		c := &self.columns[i]
		if c.size == 0 {
			continue
		}
		sz := int(c.size)
		clear(c.data[row*sz : (row+1)*sz])
	}
}

func (self *Archetype) setEntity(row int, e EntityID) {
	self.checkRow(row)
	*(*EntityID)(unsafe.Pointer(&self.columns[0].data[row*entityIDSize])) = e
}

func (self *Archetype) checkRow(row int) {
	if row < 0 || row >= self.len {
		panic(fmt.Sprintf("bento: row %d out of range (len %d)", row, self.len))
	}
}

// checkType asserts the caller's debug type identity against the column's.
// A zero id on either side disables the check.
func (self *Archetype) checkType(c *Column, typeID uint32) {
	if typeID != 0 && c.typeID != 0 && typeID != c.typeID {
		panic(fmt.Sprintf("bento: component %s written with mismatched type (type id %d, column has %d)",
			nameOf(self.names, c.name), typeID, c.typeID))
	}
}

// grownCapacity is the geometric growth schedule, saturating at MaxInt.
func grownCapacity(cur int) int {
	next := cur + cur/2 + 8
	if next < cur {
		return math.MaxInt
	}
	return next
}
