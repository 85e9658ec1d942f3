package bento

import (
	"fmt"
	"reflect"
	"unsafe"
)

// The raw byte API (SetComponent, GetComponent) is the full mutation
// surface; the generic helpers below are a thin typed layer over it. Type
// identity is tracked by a process-wide registry and checked only as a debug
// guard: archetype equality is always a function of NameID sets.

var (
	typeIDs           = make(map[reflect.Type]uint32, 64)
	nextTypeID uint32 = 1
)

func typeIDOf(t reflect.Type) uint32 {
	if id, ok := typeIDs[t]; ok {
		return id
	}
	id := nextTypeID
	nextTypeID++
	typeIDs[t] = id
	return id
}

// InfoOf returns the ComponentInfo for Go type T.
func InfoOf[T any]() ComponentInfo {
	t := reflect.TypeFor[T]()
	return ComponentInfo{
		TypeID: typeIDOf(t),
		Size:   uint32(t.Size()),
		Align:  uint16(t.Align()),
	}
}

// Set writes component value v under name on entity e, adding the component
// (and migrating the entity) if it is not already present. T must not
// contain Go pointers; the value is stored as raw bytes.
func Set[T any](s *Store, e EntityID, name NameID, v T) error {
	info := InfoOf[T]()
	var src []byte
	if info.Size > 0 {
		src = unsafe.Slice((*byte)(unsafe.Pointer(&v)), int(info.Size))
	}
	return s.SetComponent(e, name, src, info)
}

// Get returns a pointer to entity e's component under name, or nil and false
// if the entity is unknown or does not carry the component. The pointer
// aliases column storage and is invalidated by the next structural mutation.
func Get[T any](s *Store, e EntityID, name NameID) (*T, bool) {
	meta, err := s.lookup(e)
	if err != nil {
		return nil, false
	}
	a := s.tree.nodes[meta.archetypeIndex].arch
	c := a.columnByName(name)
	if c == nil {
		return nil, false
	}
	var zero T
	if uintptr(c.size) != unsafe.Sizeof(zero) {
		panic(fmt.Sprintf("bento: component %s size mismatch: column has %d bytes, type wants %d",
			nameOf(s.names, name), c.size, unsafe.Sizeof(zero)))
	}
	a.checkType(c, typeIDOf(reflect.TypeFor[T]()))
	if c.size == 0 {
		return &zero, true
	}
	return (*T)(unsafe.Pointer(&c.data[int(meta.index)*int(c.size)])), true
}
