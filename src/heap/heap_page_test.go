package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"txn-db-golang/src/common"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

func intDesc(t *testing.T) *tuple.Desc {
	t.Helper()
	d, err := tuple.NewDesc([]tuple.FieldType{tuple.IntType}, []string{"v"})
	require.NoError(t, err)
	return d
}

func intTuple(t *testing.T, d *tuple.Desc, v int64) *tuple.Tuple {
	t.Helper()
	tup := tuple.NewTuple(d)
	require.NoError(t, tup.SetField(0, tuple.NewIntField(v)))
	return tup
}

func TestSlotsPerPage(t *testing.T) {
	// 4096*8 bits / (8*8+1 bits per tuple) = 504 slots
	require.Equal(t, 504, SlotsPerPage(4096, 8))
	require.Equal(t, 0, SlotsPerPage(64, 4096))
}

func TestEmptyPageAllSlotsFree(t *testing.T) {
	d := intDesc(t)
	pid := common.PageId{TableId: 1, PageNo: 0}
	p, err := NewPage(pid, EmptyPageData(), d)
	require.NoError(t, err)

	require.Equal(t, SlotsPerPage(storage.PageSize(), d.Size()), p.NumSlots())
	require.Equal(t, p.NumSlots(), p.NumEmptySlots())
	require.Empty(t, p.UsedTuples())

	_, dirty := p.Dirty()
	require.False(t, dirty)
}

func TestPageInsertUntilFull(t *testing.T) {
	d := intDesc(t)
	pid := common.PageId{TableId: 1, PageNo: 0}
	p, err := NewPage(pid, EmptyPageData(), d)
	require.NoError(t, err)

	n := p.NumSlots()
	for i := 0; i < n; i++ {
		tup := intTuple(t, d, int64(i))
		require.NoError(t, p.InsertTuple(tup))
		require.NotNil(t, tup.RID)
		require.Equal(t, pid, tup.RID.PageId)
	}
	require.Equal(t, 0, p.NumEmptySlots())

	err = p.InsertTuple(intTuple(t, d, 999))
	require.ErrorIs(t, err, ErrPageFull)
}

func TestPageDelete(t *testing.T) {
	d := intDesc(t)
	pid := common.PageId{TableId: 1, PageNo: 0}
	p, err := NewPage(pid, EmptyPageData(), d)
	require.NoError(t, err)

	tup := intTuple(t, d, 7)
	require.NoError(t, p.InsertTuple(tup))
	require.Len(t, p.UsedTuples(), 1)

	require.NoError(t, p.DeleteTuple(tup))
	require.Empty(t, p.UsedTuples())
	require.Equal(t, p.NumSlots(), p.NumEmptySlots())

	// Deleting again fails, the slot is already free.
	require.ErrorIs(t, p.DeleteTuple(tup), ErrNoSuchTuple)

	// A tuple from some other page is rejected.
	other := intTuple(t, d, 8)
	other.RID = &common.RID{PageId: common.PageId{TableId: 1, PageNo: 9}, SlotNum: 0}
	require.ErrorIs(t, p.DeleteTuple(other), ErrNoSuchTuple)
}

func TestPageSerializeRoundTrip(t *testing.T) {
	d := intDesc(t)
	pid := common.PageId{TableId: 3, PageNo: 2}
	p, err := NewPage(pid, EmptyPageData(), d)
	require.NoError(t, err)

	for i := int64(0); i < 10; i++ {
		require.NoError(t, p.InsertTuple(intTuple(t, d, i*11)))
	}

	data, err := p.Data()
	require.NoError(t, err)
	require.Len(t, data, storage.PageSize())

	reparsed, err := NewPage(pid, data, d)
	require.NoError(t, err)
	got := reparsed.UsedTuples()
	require.Len(t, got, 10)
	for i, tup := range got {
		f, err := tup.Field(0)
		require.NoError(t, err)
		require.Equal(t, tuple.NewIntField(int64(i)*11), f)
		require.Equal(t, i, tup.RID.SlotNum)
	}
}

func TestPageDirtyTracking(t *testing.T) {
	d := intDesc(t)
	p, err := NewPage(common.PageId{TableId: 1, PageNo: 0}, EmptyPageData(), d)
	require.NoError(t, err)

	tid := common.NewTransactionId()
	p.MarkDirty(tid)
	got, dirty := p.Dirty()
	require.True(t, dirty)
	require.Equal(t, tid, got)

	p.MarkClean()
	_, dirty = p.Dirty()
	require.False(t, dirty)
}

func TestPageBeforeImage(t *testing.T) {
	d := intDesc(t)
	pid := common.PageId{TableId: 1, PageNo: 0}
	p, err := NewPage(pid, EmptyPageData(), d)
	require.NoError(t, err)

	// Mutate without capturing: the before image stays empty.
	require.NoError(t, p.InsertTuple(intTuple(t, d, 42)))
	before, err := p.BeforeImage()
	require.NoError(t, err)
	require.Empty(t, before.(*Page).UsedTuples())

	// After capturing, the snapshot includes the tuple.
	require.NoError(t, p.CaptureBeforeImage())
	require.NoError(t, p.InsertTuple(intTuple(t, d, 43)))
	before, err = p.BeforeImage()
	require.NoError(t, err)
	require.Len(t, before.(*Page).UsedTuples(), 1)
	require.Len(t, p.UsedTuples(), 2)
}

func TestPageRejectsWrongSchema(t *testing.T) {
	d := intDesc(t)
	p, err := NewPage(common.PageId{TableId: 1, PageNo: 0}, EmptyPageData(), d)
	require.NoError(t, err)

	other, err := tuple.NewDesc([]tuple.FieldType{tuple.BoolType}, nil)
	require.NoError(t, err)
	err = p.InsertTuple(tuple.NewTuple(other))
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestNewPageRejectsWrongSize(t *testing.T) {
	d := intDesc(t)
	_, err := NewPage(common.PageId{TableId: 1, PageNo: 0}, make([]byte, 100), d)
	require.Error(t, err)
}
