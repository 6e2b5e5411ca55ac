package heap

import (
	"path/filepath"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"

	"txn-db-golang/src/common"
	"txn-db-golang/src/disk"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

// File stores one table as an array of slotted pages. All tuple-level access
// runs through the fetcher so that pages are locked and cached in one place;
// ReadPage/WritePage are the raw disk hooks the cache itself uses.
type File struct {
	id      int
	desc    *tuple.Desc
	mgr     *disk.Manager
	fetcher storage.PageFetcher

	mu       sync.Mutex
	numPages int
}

// NewFile opens (or creates) the table file at path. The table id is derived
// from the absolute path, so reopening the same file yields the same id.
func NewFile(path string, desc *tuple.Desc, fetcher storage.PageFetcher) (*File, error) {
	if SlotsPerPage(storage.PageSize(), desc.Size()) < 1 {
		return nil, errors.Errorf("heap: tuple size %d too large for %d byte pages", desc.Size(), storage.PageSize())
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "heap: resolve %s", path)
	}
	mgr, err := disk.NewManager(abs)
	if err != nil {
		return nil, err
	}
	n, err := mgr.NumPages()
	if err != nil {
		mgr.Close()
		return nil, err
	}
	return &File{
		id:       int(xxhash.Checksum64([]byte(abs)) & 0x7FFFFFFF),
		desc:     desc,
		mgr:      mgr,
		fetcher:  fetcher,
		numPages: n,
	}, nil
}

func (f *File) ID() int {
	return f.id
}

func (f *File) TupleDesc() *tuple.Desc {
	return f.desc
}

func (f *File) Path() string {
	return f.mgr.Path()
}

func (f *File) NumPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPages
}

// ReadPage loads a page straight from disk, without locking or caching.
func (f *File) ReadPage(pid common.PageId) (storage.Page, error) {
	if pid.TableId != f.id {
		return nil, errors.Errorf("heap: page %v does not belong to table %d", pid, f.id)
	}
	data, err := f.mgr.ReadPageData(pid.PageNo)
	if err != nil {
		return nil, err
	}
	return NewPage(pid, data, f.desc)
}

// WritePage pushes a page's current content to disk. Writing the page right
// past the current end grows the file.
func (f *File) WritePage(p storage.Page) error {
	pid := p.ID()
	if pid.TableId != f.id {
		return errors.Errorf("heap: page %v does not belong to table %d", pid, f.id)
	}
	data, err := p.Data()
	if err != nil {
		return err
	}
	if err := f.mgr.WritePageData(pid.PageNo, data); err != nil {
		return err
	}
	f.mu.Lock()
	if pid.PageNo >= f.numPages {
		f.numPages = pid.PageNo + 1
	}
	f.mu.Unlock()
	return nil
}

// InsertTuple finds a page with a free slot, locking each candidate for
// writing through the fetcher. A full page that this transaction has not
// written is released again right away: nothing was read or modified, so
// giving the lock back cannot break two-phase locking. When every page is
// full a zeroed page is appended to the file first.
func (f *File) InsertTuple(tid common.TransactionId, t *tuple.Tuple) ([]storage.Page, error) {
	if !f.desc.Equals(t.Desc) {
		return nil, ErrSchemaMismatch
	}
	for {
		n := f.NumPages()
		for pageNo := 0; pageNo < n; pageNo++ {
			pid := common.PageId{TableId: f.id, PageNo: pageNo}
			pg, err := f.fetchOwnPage(tid, pid, common.PermExclusive)
			if err != nil {
				return nil, err
			}
			if pg.NumEmptySlots() == 0 {
				if _, dirty := pg.Dirty(); !dirty {
					f.fetcher.ReleasePage(tid, pid)
				}
				continue
			}
			if err := pg.InsertTuple(t); err != nil {
				return nil, err
			}
			return []storage.Page{pg}, nil
		}
		if err := f.appendPage(); err != nil {
			return nil, err
		}
		// Loop around: the fresh page is fetched under a lock like any
		// other, so a racing transaction may fill it first.
	}
}

// DeleteTuple frees the slot named by t's RID.
func (f *File) DeleteTuple(tid common.TransactionId, t *tuple.Tuple) ([]storage.Page, error) {
	if t.RID == nil {
		return nil, ErrNoSuchTuple
	}
	if t.RID.PageId.TableId != f.id {
		return nil, errors.Errorf("heap: tuple at %v does not belong to table %d", t.RID, f.id)
	}
	pg, err := f.fetchOwnPage(tid, t.RID.PageId, common.PermExclusive)
	if err != nil {
		return nil, err
	}
	if err := pg.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{pg}, nil
}

func (f *File) Iterator(tid common.TransactionId) storage.TupleIterator {
	return &fileIterator{f: f, tid: tid}
}

func (f *File) Sync() error {
	return f.mgr.Sync()
}

func (f *File) Close() error {
	return f.mgr.Close()
}

func (f *File) fetchOwnPage(tid common.TransactionId, pid common.PageId, perm common.Permission) (*Page, error) {
	pg, err := f.fetcher.FetchPage(tid, pid, perm)
	if err != nil {
		return nil, err
	}
	hp, ok := pg.(*Page)
	if !ok {
		return nil, errors.Errorf("heap: page %v is not a heap page", pid)
	}
	return hp, nil
}

// appendPage grows the file by one zeroed page. Serialized so concurrent
// growers get distinct page numbers.
func (f *File) appendPage() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pageNo, err := f.mgr.AllocatePage()
	if err != nil {
		return err
	}
	if pageNo >= f.numPages {
		f.numPages = pageNo + 1
	}
	return nil
}

// fileIterator scans every tuple in the file, page by page, taking shared
// locks through the fetcher as it goes.
type fileIterator struct {
	f      *File
	tid    common.TransactionId
	open   bool
	pageNo int
	tuples []*tuple.Tuple
	idx    int
}

func (it *fileIterator) Open() error {
	it.open = true
	it.pageNo = 0
	it.tuples = nil
	it.idx = 0
	return nil
}

func (it *fileIterator) HasNext() (bool, error) {
	if !it.open {
		return false, nil
	}
	for it.idx >= len(it.tuples) {
		if it.pageNo >= it.f.NumPages() {
			return false, nil
		}
		pid := common.PageId{TableId: it.f.id, PageNo: it.pageNo}
		pg, err := it.f.fetchOwnPage(it.tid, pid, common.PermShared)
		if err != nil {
			return false, err
		}
		it.tuples = pg.UsedTuples()
		it.idx = 0
		it.pageNo++
	}
	return true, nil
}

func (it *fileIterator) Next() (*tuple.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("heap: iterator exhausted")
	}
	t := it.tuples[it.idx]
	it.idx++
	return t, nil
}

func (it *fileIterator) Rewind() error {
	if !it.open {
		return errors.New("heap: iterator not open")
	}
	return it.Open()
}

func (it *fileIterator) Close() error {
	it.open = false
	it.tuples = nil
	return nil
}
