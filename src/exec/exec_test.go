package exec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"txn-db-golang/src/buffer"
	"txn-db-golang/src/catalog"
	"txn-db-golang/src/common"
	"txn-db-golang/src/heap"
	"txn-db-golang/src/lock"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

func twoIntDesc(t *testing.T, a, b string) *tuple.Desc {
	t.Helper()
	d, err := tuple.NewDesc([]tuple.FieldType{tuple.IntType, tuple.IntType}, []string{a, b})
	require.NoError(t, err)
	return d
}

func row(t *testing.T, d *tuple.Desc, vals ...int64) *tuple.Tuple {
	t.Helper()
	tup := tuple.NewTuple(d)
	for i, v := range vals {
		require.NoError(t, tup.SetField(i, tuple.NewIntField(v)))
	}
	return tup
}

func intAt(t *testing.T, tup *tuple.Tuple, i int) int64 {
	t.Helper()
	f, err := tup.Field(i)
	require.NoError(t, err)
	return f.(tuple.IntField).Value
}

func drain(t *testing.T, it Iterator) []*tuple.Tuple {
	t.Helper()
	var out []*tuple.Tuple
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
}

func TestListIterator(t *testing.T) {
	d := twoIntDesc(t, "a", "b")
	rows := []*tuple.Tuple{row(t, d, 1, 2), row(t, d, 3, 4)}
	it := NewListIterator(d, rows)

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, ok, "nothing before Open")

	require.NoError(t, it.Open())
	require.Len(t, drain(t, it), 2)

	require.NoError(t, it.Rewind())
	got, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, rows[0], got)
	require.NoError(t, it.Close())
}

func TestPredicate(t *testing.T) {
	d := twoIntDesc(t, "a", "b")
	p := NewPredicate(0, tuple.OpGreaterThan, tuple.NewIntField(5))

	ok, err := p.Matches(row(t, d, 6, 0))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Matches(row(t, d, 5, 0))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJoinPredicate(t *testing.T) {
	d := twoIntDesc(t, "a", "b")
	p := NewJoinPredicate(0, tuple.OpEquals, 1)

	ok, err := p.Filter(row(t, d, 7, 0), row(t, d, 0, 7))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Filter(row(t, d, 7, 0), row(t, d, 0, 8))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilter(t *testing.T) {
	d := twoIntDesc(t, "a", "b")
	var rows []*tuple.Tuple
	for i := int64(0); i < 10; i++ {
		rows = append(rows, row(t, d, i, i*i))
	}
	f := NewFilter(NewPredicate(0, tuple.OpGreaterThanOrEq, tuple.NewIntField(6)), NewListIterator(d, rows))

	require.NoError(t, f.Open())
	got := drain(t, f)
	require.Len(t, got, 4)
	for i, tup := range got {
		require.Equal(t, int64(6+i), intAt(t, tup, 0))
	}

	require.NoError(t, f.Rewind())
	require.Len(t, drain(t, f), 4)
	require.NoError(t, f.Close())

	ok, err := f.HasNext()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashEquiJoinRequiresEquality(t *testing.T) {
	d := twoIntDesc(t, "a", "b")
	_, err := NewHashEquiJoin(NewJoinPredicate(0, tuple.OpLessThan, 0), NewListIterator(d, nil), NewListIterator(d, nil))
	require.Error(t, err)
}

func TestHashEquiJoin(t *testing.T) {
	left := twoIntDesc(t, "id", "x")
	right := twoIntDesc(t, "id", "y")

	outer := NewListIterator(left, []*tuple.Tuple{
		row(t, left, 1, 10),
		row(t, left, 2, 20),
		row(t, left, 2, 21),
		row(t, left, 3, 30),
	})
	inner := NewListIterator(right, []*tuple.Tuple{
		row(t, right, 2, 200),
		row(t, right, 3, 300),
		row(t, right, 9, 900),
	})

	j, err := NewHashEquiJoin(NewJoinPredicate(0, tuple.OpEquals, 0), outer, inner)
	require.NoError(t, err)
	require.Equal(t, 4, j.TupleDesc().NumFields())

	require.NoError(t, j.Open())
	got := drain(t, j)
	require.Len(t, got, 3) // (2,20)x(2,200), (2,21)x(2,200), (3,30)x(3,300)

	for _, tup := range got {
		require.Nil(t, tup.RID)
		require.Equal(t, intAt(t, tup, 0), intAt(t, tup, 2), "joined on key equality")
	}

	require.NoError(t, j.Rewind())
	require.Len(t, drain(t, j), 3)
	require.NoError(t, j.Close())
}

func TestHashEquiJoinSpillsToBatches(t *testing.T) {
	left := twoIntDesc(t, "id", "x")
	right := twoIntDesc(t, "id", "y")

	// More outer tuples than one hash batch holds.
	total := maxHashSize + 5
	outerRows := make([]*tuple.Tuple, 0, total)
	for i := 0; i < total; i++ {
		outerRows = append(outerRows, row(t, left, int64(i%3), int64(i)))
	}
	innerRows := []*tuple.Tuple{
		row(t, right, 0, 0),
		row(t, right, 1, 1),
		row(t, right, 2, 2),
	}

	j, err := NewHashEquiJoin(NewJoinPredicate(0, tuple.OpEquals, 0),
		NewListIterator(left, outerRows), NewListIterator(right, innerRows))
	require.NoError(t, err)
	require.NoError(t, j.Open())

	count := 0
	for {
		ok, err := j.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		tup, err := j.Next()
		require.NoError(t, err)
		require.Equal(t, intAt(t, tup, 0), intAt(t, tup, 2))
		count++
	}
	// Every outer row has exactly one inner partner.
	require.Equal(t, total, count)
	require.NoError(t, j.Close())
}

type scanHarness struct {
	cat  *catalog.Catalog
	pool *buffer.Pool
}

func newScanHarness(t *testing.T) *scanHarness {
	t.Helper()
	storage.SetPageSize(1024)
	t.Cleanup(storage.ResetPageSize)

	cat := catalog.New()
	pool := buffer.NewPool(buffer.DefaultCapacity, cat, lock.NewManager())
	t.Cleanup(func() { cat.Close() })
	return &scanHarness{cat: cat, pool: pool}
}

func (h *scanHarness) addTable(t *testing.T, name string, desc *tuple.Desc) *heap.File {
	t.Helper()
	f, err := heap.NewFile(filepath.Join(t.TempDir(), name+".dat"), desc, h.pool)
	require.NoError(t, err)
	h.cat.AddTable(f, name)
	return f
}

func TestSeqScanReadsCommittedRows(t *testing.T) {
	h := newScanHarness(t)
	f := h.addTable(t, "rows", twoIntDesc(t, "id", "v"))

	writer := common.NewTransactionId()
	const n = 100 // spans multiple pages at this page size
	for i := 0; i < n; i++ {
		require.NoError(t, h.pool.InsertTuple(writer, f.ID(), row(t, f.TupleDesc(), int64(i), int64(i*2))))
	}
	require.NoError(t, h.pool.CommitTransaction(writer))
	require.Greater(t, f.NumPages(), 1)

	reader := common.NewTransactionId()
	scan := NewSeqScan(reader, f)
	require.True(t, scan.TupleDesc().Equals(f.TupleDesc()))
	require.NoError(t, scan.Open())

	got := drain(t, scan)
	require.Len(t, got, n)

	require.NoError(t, scan.Rewind())
	require.Len(t, drain(t, scan), n)
	require.NoError(t, scan.Close())
	require.NoError(t, h.pool.CommitTransaction(reader))
}

func TestJoinOverSeqScans(t *testing.T) {
	h := newScanHarness(t)
	users := h.addTable(t, "users", twoIntDesc(t, "id", "v"))
	orders := h.addTable(t, "orders", twoIntDesc(t, "user_id", "amount"))

	writer := common.NewTransactionId()
	for i := 0; i < 10; i++ {
		require.NoError(t, h.pool.InsertTuple(writer, users.ID(), row(t, users.TupleDesc(), int64(i), int64(i))))
	}
	require.NoError(t, h.pool.InsertTuple(writer, orders.ID(), row(t, orders.TupleDesc(), 3, 300)))
	require.NoError(t, h.pool.InsertTuple(writer, orders.ID(), row(t, orders.TupleDesc(), 7, 700)))
	require.NoError(t, h.pool.CommitTransaction(writer))

	reader := common.NewTransactionId()
	j, err := NewHashEquiJoin(NewJoinPredicate(0, tuple.OpEquals, 0),
		NewSeqScan(reader, users), NewSeqScan(reader, orders))
	require.NoError(t, err)
	require.NoError(t, j.Open())

	got := drain(t, j)
	require.Len(t, got, 2)
	amounts := map[int64]int64{}
	for _, tup := range got {
		amounts[intAt(t, tup, 0)] = intAt(t, tup, 3)
	}
	require.Equal(t, map[int64]int64{3: 300, 7: 700}, amounts)

	require.NoError(t, j.Close())
	require.NoError(t, h.pool.CommitTransaction(reader))
}
