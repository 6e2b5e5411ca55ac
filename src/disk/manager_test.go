package disk

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"txn-db-golang/src/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "table.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerAllocateSequence(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 5; i++ {
		pageNo, err := m.AllocatePage()
		require.NoError(t, err)
		require.Equal(t, i, pageNo)

		n, err := m.NumPages()
		require.NoError(t, err)
		require.Equal(t, i+1, n)
	}
}

func TestManagerReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.dat")
	m, err := NewManager(path)
	require.NoError(t, err)

	allData := make([][]byte, 0, 10)
	for i := 0; i < 10; i++ {
		pageNo, err := m.AllocatePage()
		require.NoError(t, err)

		data := make([]byte, m.PageSize())
		rand.Read(data)
		allData = append(allData, data)

		require.NoError(t, m.WritePageData(pageNo, data))
		got, err := m.ReadPageData(pageNo)
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
	require.NoError(t, m.Close())

	// Reopen and make sure everything survived.
	reopened, err := NewManager(path)
	require.NoError(t, err)
	defer reopened.Close()
	for i := 0; i < 10; i++ {
		got, err := reopened.ReadPageData(i)
		require.NoError(t, err)
		require.Equal(t, allData[i], got)
	}
}

func TestManagerReadPastEOF(t *testing.T) {
	m := newTestManager(t)

	_, err := m.ReadPageData(0)
	require.ErrorIs(t, err, ErrPastEOF)

	_, err = m.AllocatePage()
	require.NoError(t, err)
	_, err = m.ReadPageData(0)
	require.NoError(t, err)
	_, err = m.ReadPageData(1)
	require.ErrorIs(t, err, ErrPastEOF)
}

func TestManagerRejectsBadArguments(t *testing.T) {
	m := newTestManager(t)

	_, err := m.ReadPageData(-1)
	require.ErrorIs(t, err, ErrNegativePageNo)

	err = m.WritePageData(0, make([]byte, m.PageSize()-1))
	require.ErrorIs(t, err, ErrShortPage)

	// Writing page 3 of an empty file would leave holes.
	err = m.WritePageData(3, make([]byte, m.PageSize()))
	require.Error(t, err)
}

func TestManagerSmallPageSize(t *testing.T) {
	storage.SetPageSize(1024)
	defer storage.ResetPageSize()

	m := newTestManager(t)
	require.Equal(t, 1024, m.PageSize())

	pageNo, err := m.AllocatePage()
	require.NoError(t, err)

	data := make([]byte, 1024)
	rand.Read(data)
	require.NoError(t, m.WritePageData(pageNo, data))
	got, err := m.ReadPageData(pageNo)
	require.NoError(t, err)
	require.Equal(t, data, got)
}
