package buffer

import (
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"txn-db-golang/src/common"
	"txn-db-golang/src/lock"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

// DefaultCapacity is how many pages the pool caches unless configured
// otherwise.
const DefaultCapacity = 50

var ErrBufferFull = errors.New("buffer: pool is full and every page is dirty")

// FileLookup resolves a table id to its file. The catalog implements it.
type FileLookup interface {
	FileForTable(tableId int) (storage.DbFile, error)
}

// Pool is the transactional page cache. Every page a transaction touches is
// locked first and fetched through here, and stays locked until the
// transaction commits or aborts. Dirty pages are never written back early
// (no steal) and never evicted; commit flushes them, abort rolls them back
// in memory from their before images.
//
// The page table is sharded, so cache hits take no pool-wide lock. One
// structural mutex serializes the slow paths: miss handling with eviction,
// flushes, rollback and discards.
type Pool struct {
	capacity int
	tables   FileLookup
	locks    *lock.Manager
	pages    *pageTable

	mu sync.Mutex
}

func NewPool(capacity int, tables FileLookup, locks *lock.Manager) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		tables:   tables,
		locks:    locks,
		pages:    newPageTable(),
	}
}

func (p *Pool) Capacity() int {
	return p.capacity
}

func (p *Pool) NumCachedPages() int {
	return p.pages.Len()
}

// FetchPage returns the page after acquiring the requested lock for tid.
// Blocks while a conflicting transaction holds the page; fails with
// lock.ErrDeadlock when waiting would close a cycle (the caller aborts) and
// with ErrBufferFull when the cache is saturated with uncommitted pages. The
// lock is kept on failure; rollback will release it.
func (p *Pool) FetchPage(tid common.TransactionId, pid common.PageId, perm common.Permission) (storage.Page, error) {
	if err := p.locks.Acquire(tid, pid, perm); err != nil {
		return nil, err
	}
	if pg, ok := p.pages.Get(pid); ok {
		return pg, nil
	}
	return p.loadPage(pid)
}

func (p *Pool) loadPage(pid common.PageId) (storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Another transaction may have loaded it while we waited.
	if pg, ok := p.pages.Get(pid); ok {
		return pg, nil
	}
	// Absorbing mutation results can leave the cache over capacity, so a
	// single victim is not always enough.
	for p.pages.Len() >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
	}
	f, err := p.tables.FileForTable(pid.TableId)
	if err != nil {
		return nil, err
	}
	pg, err := f.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	p.pages.Put(pid, pg)
	return pg, nil
}

// evictLocked drops one clean page, scanning from a random start so no
// single page gets picked over and over. Dirty pages are pinned by their
// uncommitted transactions and are skipped; if nothing is clean the cache
// cannot shrink.
func (p *Pool) evictLocked() error {
	ids := p.pages.IDs()
	if len(ids) == 0 {
		return nil
	}
	start := rand.Intn(len(ids))
	for i := 0; i < len(ids); i++ {
		pid := ids[(start+i)%len(ids)]
		pg, ok := p.pages.Get(pid)
		if !ok {
			continue
		}
		if _, dirty := pg.Dirty(); dirty {
			continue
		}
		p.pages.Delete(pid)
		return nil
	}
	log.Warnf("Buffer pool is full and every page is dirty.")
	return ErrBufferFull
}

// InsertTuple adds t to the named table on behalf of tid. Pages the file
// touches are fetched back through the pool with write locks; every modified
// page is marked dirty and kept in the cache.
func (p *Pool) InsertTuple(tid common.TransactionId, tableId int, t *tuple.Tuple) error {
	f, err := p.tables.FileForTable(tableId)
	if err != nil {
		return err
	}
	dirtied, err := f.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	p.markDirtied(tid, dirtied)
	return nil
}

// DeleteTuple removes t from the table its RID points into.
func (p *Pool) DeleteTuple(tid common.TransactionId, t *tuple.Tuple) error {
	if t.RID == nil {
		return errors.New("buffer: tuple has no record id")
	}
	f, err := p.tables.FileForTable(t.RID.PageId.TableId)
	if err != nil {
		return err
	}
	dirtied, err := f.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	p.markDirtied(tid, dirtied)
	return nil
}

// markDirtied absorbs the pages a file mutation touched: marks them dirty
// for tid and (re)inserts them so future fetches see the new content. A page
// may have been evicted while clean between the file touching it and us
// marking it; putting it back can need a victim first. When no victim exists
// the page is cached anyway, uncommitted changes must not be lost.
func (p *Pool) markDirtied(tid common.TransactionId, pages []storage.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range pages {
		pg.MarkDirty(tid)
		pid := pg.ID()
		if _, ok := p.pages.Get(pid); !ok && p.pages.Len() >= p.capacity {
			if err := p.evictLocked(); err != nil {
				log.WithError(err).Warnf("Caching modified page %v over capacity.", pid)
			}
		}
		p.pages.Put(pid, pg)
	}
}

// ReleasePage gives back tid's lock on one page before end of transaction.
// Only safe when the page was not read or written, for example after finding
// it full during an insert scan.
func (p *Pool) ReleasePage(tid common.TransactionId, pid common.PageId) {
	p.locks.Release(tid, pid)
}

func (p *Pool) HoldsLock(tid common.TransactionId, pid common.PageId) bool {
	return p.locks.HoldsLock(tid, pid)
}

// CommitTransaction makes tid's writes durable and releases its locks.
func (p *Pool) CommitTransaction(tid common.TransactionId) error {
	return p.TransactionComplete(tid, true)
}

// AbortTransaction rolls tid's writes back and releases its locks.
func (p *Pool) AbortTransaction(tid common.TransactionId) error {
	return p.TransactionComplete(tid, false)
}

// TransactionComplete finishes tid. On commit the pages it dirtied are
// flushed and their before images advance to the new on-disk content. On
// abort the cached copies are replaced by their before images; disk is
// untouched, which is already correct because dirty pages never leak out.
// Locks are released last. If a commit flush fails the error is returned
// with locks still held, the caller recovers by aborting.
func (p *Pool) TransactionComplete(tid common.TransactionId, commit bool) error {
	if commit {
		if err := p.FlushPages(tid); err != nil {
			return err
		}
	} else {
		p.rollback(tid)
	}
	p.locks.ReleaseAll(tid)
	return nil
}

// rollback restores the before image of every page tid dirtied. Under
// strict two-phase locking tid still holds an exclusive lock on each of
// them, so the held-page set is a complete list of candidates.
func (p *Pool) rollback(tid common.TransactionId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pid := range p.locks.HeldPages(tid) {
		pg, ok := p.pages.Get(pid)
		if !ok {
			continue
		}
		dirtier, dirty := pg.Dirty()
		if !dirty || dirtier != tid {
			continue
		}
		before, err := pg.BeforeImage()
		if err != nil {
			// The snapshot equals the on-disk content, so dropping the
			// page altogether rolls back just as well.
			log.WithError(err).Errorf("Cannot rebuild before image of page %v, discarding it.", pid)
			p.pages.Delete(pid)
			continue
		}
		p.pages.Put(pid, before)
	}
}

// FlushPages writes every page tid dirtied and captures fresh before images,
// the commit-time checkpoint for those pages.
func (p *Pool) FlushPages(tid common.TransactionId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pid := range p.locks.HeldPages(tid) {
		pg, ok := p.pages.Get(pid)
		if !ok {
			continue
		}
		dirtier, dirty := pg.Dirty()
		if !dirty || dirtier != tid {
			continue
		}
		if err := p.flushLocked(pg); err != nil {
			return err
		}
		if err := pg.CaptureBeforeImage(); err != nil {
			return err
		}
	}
	return nil
}

// FlushPage writes one page to disk if it is cached and dirty. Absent or
// clean pages are a no-op. The before image is left alone, this is not a
// commit.
func (p *Pool) FlushPage(pid common.PageId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages.Get(pid)
	if !ok {
		return nil
	}
	if _, dirty := pg.Dirty(); !dirty {
		return nil
	}
	return p.flushLocked(pg)
}

// FlushAllPages writes every dirty page to disk. Breaks the no-steal
// guarantee for pages of live transactions; useful only for shutdown and
// tests.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range p.pages.Snapshot() {
		if _, dirty := pg.Dirty(); !dirty {
			continue
		}
		if err := p.flushLocked(pg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) flushLocked(pg storage.Page) error {
	pid := pg.ID()
	f, err := p.tables.FileForTable(pid.TableId)
	if err != nil {
		return err
	}
	if err := f.WritePage(pg); err != nil {
		log.WithError(err).Errorf("Cannot flush page %v.", pid)
		return err
	}
	pg.MarkClean()
	return nil
}

// DiscardPage drops a page from the cache without writing it, dirty or not.
func (p *Pool) DiscardPage(pid common.PageId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages.Delete(pid)
}
