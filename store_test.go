package bento_test

import (
	"errors"
	"testing"

	"github.com/edwinsyarief/bento"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Components ---

type Position struct{ X, Y float32 }
type Velocity struct{ DX, DY float32 }
type Rotation struct{ Deg float32 }
type Label struct{ A, B uint64 }
type Tag struct{}

func newTestStore(_ *testing.T) (*bento.Store, *bento.NameTable) {
	names := bento.NewNameTable()
	return bento.NewStore(16, bento.WithNames(names)), names
}

func TestNewEntity(t *testing.T) {
	s, _ := newTestStore(t)
	e1, err := s.NewEntity()
	require.NoError(t, err)
	e2, err := s.NewEntity()
	require.NoError(t, err)

	assert.Equal(t, bento.EntityID(0), e1)
	assert.Equal(t, bento.EntityID(1), e2)
	assert.Equal(t, 2, s.NumEntities())
}

func TestIDsNeverReused(t *testing.T) {
	s, _ := newTestStore(t)
	e1, _ := s.NewEntity()
	require.NoError(t, s.DeleteEntity(e1))
	e2, _ := s.NewEntity()

	assert.NotEqual(t, e1, e2)
	_, err := s.GetComponent(e1, bento.NameIDEntity)
	assert.ErrorIs(t, err, bento.ErrUnknownEntity)
}

func TestRoundTrip(t *testing.T) {
	s, names := newTestStore(t)
	pos := names.Intern("position")
	e, _ := s.NewEntity()

	require.NoError(t, bento.Set(s, e, pos, Position{X: 3, Y: 4}))
	p, ok := bento.Get[Position](s, e, pos)
	require.True(t, ok)
	assert.Equal(t, Position{X: 3, Y: 4}, *p)

	// Overwrite in place.
	require.NoError(t, bento.Set(s, e, pos, Position{X: 5, Y: 6}))
	p, ok = bento.Get[Position](s, e, pos)
	require.True(t, ok)
	assert.Equal(t, Position{X: 5, Y: 6}, *p)

	require.NoError(t, s.RemoveComponent(e, pos))
	_, ok = bento.Get[Position](s, e, pos)
	assert.False(t, ok)
	b, err := s.GetComponent(e, pos)
	require.NoError(t, err)
	assert.Nil(t, b)

	// Removing an absent component is a no-op.
	require.NoError(t, s.RemoveComponent(e, pos))
}

func TestInPlaceUpdateKeepsOtherComponents(t *testing.T) {
	s, names := newTestStore(t)
	pos := names.Intern("position")
	vel := names.Intern("velocity")
	e, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e, pos, Position{X: 1, Y: 2}))
	require.NoError(t, bento.Set(s, e, vel, Velocity{DX: 7, DY: 8}))

	require.NoError(t, bento.Set(s, e, pos, Position{X: 9, Y: 9}))

	v, ok := bento.Get[Velocity](s, e, vel)
	require.True(t, ok)
	assert.Equal(t, Velocity{DX: 7, DY: 8}, *v)
}

// Adding the same components in a different order must land both entities in
// the same archetype table.
func TestSetOrderIndependence(t *testing.T) {
	s, names := newTestStore(t)
	loc := names.Intern("location")
	rot := names.Intern("rotation")

	e1, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e1, loc, Position{X: 1}))
	require.NoError(t, bento.Set(s, e1, rot, Rotation{Deg: 90}))

	e2, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e2, rot, Rotation{Deg: 90}))
	require.NoError(t, bento.Set(s, e2, loc, Position{X: 1}))

	a1, _, err := s.Locate(e1)
	require.NoError(t, err)
	a2, _, err := s.Locate(e2)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
}

// Deleting from the middle keeps rows dense: the last row drops into the
// vacated slot and the displaced entity's directory entry follows it.
func TestDenseLayoutAfterDelete(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")

	ents := make([]bento.EntityID, 5)
	for i := range ents {
		e, err := s.NewEntity()
		require.NoError(t, err)
		require.NoError(t, bento.Set(s, e, val, int64(i+1)))
		ents[i] = e
	}

	require.NoError(t, s.DeleteEntity(ents[2]))

	arch, _, err := s.Locate(ents[0])
	require.NoError(t, err)
	assert.Equal(t, 4, arch.Len())

	q := s.Query(val)
	var got []int64
	for q.Next() {
		got = append(got, bento.ColumnOf[int64](q, val)...)
	}
	assert.ElementsMatch(t, []int64{1, 2, 4, 5}, got)

	_, row, err := s.Locate(ents[4])
	require.NoError(t, err)
	assert.Equal(t, 2, row)
}

func TestMigrationPreservesValues(t *testing.T) {
	s, names := newTestStore(t)
	a := names.Intern("a")
	b := names.Intern("b")
	c := names.Intern("c")
	e, _ := s.NewEntity()

	require.NoError(t, bento.Set(s, e, a, int64(10)))
	require.NoError(t, bento.Set(s, e, b, int64(20)))
	require.NoError(t, bento.Set(s, e, c, int64(30)))

	for name, want := range map[bento.NameID]int64{a: 10, b: 20, c: 30} {
		v, ok := bento.Get[int64](s, e, name)
		require.True(t, ok)
		assert.Equal(t, want, *v)
	}

	require.NoError(t, s.RemoveComponent(e, b))

	v, ok := bento.Get[int64](s, e, a)
	require.True(t, ok)
	assert.Equal(t, int64(10), *v)
	_, ok = bento.Get[int64](s, e, b)
	assert.False(t, ok)
	v, ok = bento.Get[int64](s, e, c)
	require.True(t, ok)
	assert.Equal(t, int64(30), *v)

	has, err := s.HasComponent(e, b)
	require.NoError(t, err)
	assert.False(t, has)
}

// After any deletion, every surviving entity's directory entry must point at
// a row whose id column holds that entity.
func TestSwapRemoveDirectoryConsistency(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")

	ents := make([]bento.EntityID, 8)
	for i := range ents {
		e, _ := s.NewEntity()
		require.NoError(t, bento.Set(s, e, val, int64(i)))
		ents[i] = e
	}
	for _, i := range []int{1, 4, 6} {
		require.NoError(t, s.DeleteEntity(ents[i]))
	}

	for _, i := range []int{0, 2, 3, 5, 7} {
		arch, row, err := s.Locate(ents[i])
		require.NoError(t, err)
		assert.Equal(t, ents[i], arch.EntityAt(row))
		v, ok := bento.Get[int64](s, ents[i], val)
		require.True(t, ok)
		assert.Equal(t, int64(i), *v)
	}
}

func TestCacheClear(t *testing.T) {
	s, names := newTestStore(t)
	loc := names.Intern("location")
	rot := names.Intern("rotation")
	nam := names.Intern("name")

	e, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e, loc, Position{X: 1}))
	require.NoError(t, bento.Set(s, e, rot, Rotation{Deg: 2}))
	require.NoError(t, bento.Set(s, e, nam, Label{A: 3}))
	require.Equal(t, 4, s.NumNodes())

	// The entity sits at the deepest node; the whole ancestor chain must
	// survive.
	s.ClearCache()
	assert.Equal(t, 4, s.NumNodes())

	require.NoError(t, s.RemoveComponent(e, nam))
	require.NoError(t, s.RemoveComponent(e, rot))
	s.ClearCache()
	assert.Equal(t, 2, s.NumNodes())

	// The directory survived the compaction remap.
	p, ok := bento.Get[Position](s, e, loc)
	require.True(t, ok)
	assert.Equal(t, Position{X: 1}, *p)
	has, err := s.HasComponent(e, loc)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUnknownEntity(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")
	missing := bento.EntityID(99)

	assert.ErrorIs(t, s.DeleteEntity(missing), bento.ErrUnknownEntity)
	assert.ErrorIs(t, bento.Set(s, missing, val, int64(1)), bento.ErrUnknownEntity)
	assert.ErrorIs(t, s.RemoveComponent(missing, val), bento.ErrUnknownEntity)
	_, err := s.GetComponent(missing, val)
	assert.ErrorIs(t, err, bento.ErrUnknownEntity)
	_, err = s.HasComponent(missing, val)
	assert.ErrorIs(t, err, bento.ErrUnknownEntity)
}

func TestReservedIDComponent(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")
	e, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e, val, int64(5)))

	has, err := s.HasComponent(e, bento.NameIDEntity)
	require.NoError(t, err)
	assert.True(t, has)

	// Removing the reserved id is a no-op.
	require.NoError(t, s.RemoveComponent(e, bento.NameIDEntity))
	has, err = s.HasComponent(e, bento.NameIDEntity)
	require.NoError(t, err)
	assert.True(t, has)
	v, ok := bento.Get[int64](s, e, val)
	require.True(t, ok)
	assert.Equal(t, int64(5), *v)
}

func TestZeroSizedComponent(t *testing.T) {
	s, names := newTestStore(t)
	tag := names.Intern("tag")
	e, _ := s.NewEntity()

	require.NoError(t, bento.Set(s, e, tag, Tag{}))
	has, err := s.HasComponent(e, tag)
	require.NoError(t, err)
	assert.True(t, has)

	// Membership is true, storage is none.
	b, err := s.GetComponent(e, tag)
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Len(t, b, 0)

	require.NoError(t, s.RemoveComponent(e, tag))
	has, err = s.HasComponent(e, tag)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSizeMismatchPanics(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")
	e, _ := s.NewEntity()
	require.NoError(t, s.SetComponent(e, val, []byte{1, 2, 3, 4, 5, 6, 7, 8}, bento.ComponentInfo{Size: 8, Align: 8}))

	assert.Panics(t, func() {
		_ = s.SetComponent(e, val, []byte{1, 2, 3}, bento.ComponentInfo{Size: 3, Align: 1})
	})
}

func TestTypeMismatchPanics(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")
	e, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e, val, int64(1)))

	// Same size, different registered type.
	assert.Panics(t, func() {
		bento.Set(s, e, val, float64(1))
	})
	assert.Panics(t, func() {
		bento.Get[float64](s, e, val)
	})
}

// A failed allocation mid-migration must leave the store exactly as it was:
// old row live, directory untouched, no half-migrated state.
func TestOOMAtomicity(t *testing.T) {
	for _, succeedBeforeFail := range []int{0, 1, 2} {
		remaining := -1 // -1 disables fault injection
		alloc := func(n int) ([]byte, error) {
			if remaining == 0 {
				return nil, errors.New("boom")
			}
			if remaining > 0 {
				remaining--
			}
			return make([]byte, n), nil
		}

		names := bento.NewNameTable()
		a := names.Intern("a")
		b := names.Intern("b")
		s := bento.NewStore(4, bento.WithNames(names), bento.WithAllocator(alloc))

		e1, err := s.NewEntity()
		require.NoError(t, err)
		e2, err := s.NewEntity()
		require.NoError(t, err)
		require.NoError(t, bento.Set(s, e1, a, int64(11)))
		require.NoError(t, bento.Set(s, e2, a, int64(22)))

		// Adding b to e1 needs the {id,a,b} table materialized and grown:
		// three column allocations. Fail on each of them in turn.
		remaining = succeedBeforeFail
		err = bento.Set(s, e1, b, int64(33))
		require.ErrorIs(t, err, bento.ErrOutOfMemory, "fail after %d allocations", succeedBeforeFail)
		remaining = -1

		for ent, want := range map[bento.EntityID]int64{e1: 11, e2: 22} {
			v, ok := bento.Get[int64](s, ent, a)
			require.True(t, ok)
			assert.Equal(t, want, *v)
			arch, row, err := s.Locate(ent)
			require.NoError(t, err)
			assert.Equal(t, ent, arch.EntityAt(row))
		}
		has, err := s.HasComponent(e1, b)
		require.NoError(t, err)
		assert.False(t, has)

		// The partially materialized {id,a,b} table is reused once memory
		// is back.
		require.NoError(t, bento.Set(s, e1, b, int64(33)))
		v, ok := bento.Get[int64](s, e1, b)
		require.True(t, ok)
		assert.Equal(t, int64(33), *v)
	}
}

func TestRawGetAliasesStorage(t *testing.T) {
	s, names := newTestStore(t)
	val := names.Intern("value")
	e, _ := s.NewEntity()
	require.NoError(t, bento.Set(s, e, val, int64(7)))

	raw, err := s.GetComponent(e, val)
	require.NoError(t, err)
	require.Len(t, raw, 8)

	require.NoError(t, bento.Set(s, e, val, int64(9)))
	v, ok := bento.Get[int64](s, e, val)
	require.True(t, ok)
	assert.Equal(t, int64(9), *v)

	// The slice fetched before the in-place write sees the new bytes.
	again, err := s.GetComponent(e, val)
	require.NoError(t, err)
	assert.Equal(t, again, raw)
}
