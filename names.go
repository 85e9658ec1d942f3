package bento

import "fmt"

// NameID is a stable 32-bit identifier for an interned component name.
// NameIDs are totally ordered by numeric value; that order defines the
// canonical column order within an archetype.
type NameID uint32

// NameIDEntity is the reserved id of the "id" pseudo-component that every
// entity carries. Its column stores the EntityID of each row.
const NameIDEntity NameID = 0

// NameTable interns component names to stable NameIDs. Ids are assigned in
// interning order and remain valid for the lifetime of the table. The name
// "id" is pre-interned as NameIDEntity.
type NameTable struct {
	ids   map[string]NameID
	names []string
}

// NewNameTable creates a NameTable with the reserved "id" name interned.
func NewNameTable() *NameTable {
	self := &NameTable{ids: make(map[string]NameID, 16)}
	self.Intern("id")
	return self
}

// Intern returns the NameID for name, assigning a fresh id on first use.
// It is idempotent: interning the same string always yields the same id.
func (self *NameTable) Intern(name string) NameID {
	if id, ok := self.ids[name]; ok {
		return id
	}
	id := NameID(len(self.names))
	self.ids[name] = id
	self.names = append(self.names, name)
	return id
}

// String returns the name interned under id. Diagnostics only.
func (self *NameTable) String(id NameID) string {
	if int(id) >= len(self.names) {
		return fmt.Sprintf("name#%d", uint32(id))
	}
	return self.names[id]
}

// Len returns the number of interned names, including the reserved "id".
func (self *NameTable) Len() int {
	return len(self.names)
}

// nameOf formats a NameID for panic and log messages, tolerating a nil table.
func nameOf(t *NameTable, id NameID) string {
	if t != nil {
		return t.String(id)
	}
	return fmt.Sprintf("name#%d", uint32(id))
}
