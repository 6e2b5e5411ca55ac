package lock

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"txn-db-golang/src/common"
)

// ErrDeadlock aborts the requester whose lock wait would close a cycle.
// Callers must roll the transaction back; its locks are not released here.
var ErrDeadlock = errors.New("lock: deadlock detected")

// pageLock is the grant state of one page: any number of sharers, or a
// single exclusive holder.
type pageLock struct {
	sharers   map[common.TransactionId]struct{}
	exclusive common.TransactionId
	hasExcl   bool
}

func (pl *pageLock) empty() bool {
	return !pl.hasExcl && len(pl.sharers) == 0
}

// Manager implements strict page-level two-phase locking. Shared locks admit
// concurrent readers, exclusive locks a single writer, and a transaction
// that is the only sharer may upgrade in place. Conflicting requests block
// on a condition variable; a wait-for graph is checked before every sleep so
// a request that would complete a cycle fails with ErrDeadlock instead of
// blocking forever.
type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond

	locks map[common.PageId]*pageLock
	held  map[common.TransactionId]map[common.PageId]struct{}
	graph *waitGraph
}

func NewManager() *Manager {
	m := &Manager{
		locks: make(map[common.PageId]*pageLock),
		held:  make(map[common.TransactionId]map[common.PageId]struct{}),
		graph: newWaitGraph(),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Acquire blocks until tid holds a lock of at least the requested strength
// on pid. Re-acquiring an already held lock is a no-op; requesting exclusive
// while being the only sharer upgrades. Returns ErrDeadlock if waiting would
// create a cycle, in which case tid keeps its other locks and the caller is
// expected to abort it. An unknown permission fails outright rather than
// wait for a grant that can never come.
func (m *Manager) Acquire(tid common.TransactionId, pid common.PageId, perm common.Permission) error {
	if perm != common.PermShared && perm != common.PermExclusive {
		return errors.Errorf("lock: unknown permission %v", perm)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.tryGrant(tid, pid, perm) {
			m.graph.clearWaiter(tid)
			return nil
		}
		m.graph.setEdges(tid, m.blockers(tid, pid, perm))
		if m.graph.hasCycleFrom(tid) {
			m.graph.clearWaiter(tid)
			log.WithFields(log.Fields{"tid": tid, "page": pid, "perm": perm}).
				Debugf("Lock wait would deadlock, aborting requester.")
			return errors.Wrapf(ErrDeadlock, "%v waiting for %v on %v", tid, perm, pid)
		}
		m.cond.Wait()
	}
}

// Release gives back tid's lock on pid. Safe to call for locks not held.
func (m *Manager) Release(tid common.TransactionId, pid common.PageId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release(tid, pid)
	m.cond.Broadcast()
}

// ReleaseAll drops every lock tid holds, at commit or abort.
func (m *Manager) ReleaseAll(tid common.TransactionId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid := range m.held[tid] {
		m.release(tid, pid)
	}
	m.graph.clearWaiter(tid)
	m.cond.Broadcast()
}

// HoldsLock reports whether tid holds any lock on pid.
func (m *Manager) HoldsLock(tid common.TransactionId, pid common.PageId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.locks[pid]
	if !ok {
		return false
	}
	if pl.hasExcl && pl.exclusive == tid {
		return true
	}
	_, shared := pl.sharers[tid]
	return shared
}

// HeldPages lists the pages tid currently has locked.
func (m *Manager) HeldPages(tid common.TransactionId) []common.PageId {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]common.PageId, 0, len(m.held[tid]))
	for pid := range m.held[tid] {
		out = append(out, pid)
	}
	return out
}

func (m *Manager) tryGrant(tid common.TransactionId, pid common.PageId, perm common.Permission) bool {
	pl, ok := m.locks[pid]
	if !ok {
		pl = &pageLock{sharers: make(map[common.TransactionId]struct{})}
		m.locks[pid] = pl
	}
	if pl.hasExcl && pl.exclusive == tid {
		return true
	}
	switch perm {
	case common.PermShared:
		if pl.hasExcl {
			return false
		}
		pl.sharers[tid] = struct{}{}
	case common.PermExclusive:
		if pl.hasExcl {
			return false
		}
		if _, mine := pl.sharers[tid]; len(pl.sharers) > 1 || (len(pl.sharers) == 1 && !mine) {
			return false
		}
		delete(pl.sharers, tid)
		pl.hasExcl = true
		pl.exclusive = tid
	default:
		return false
	}
	if m.held[tid] == nil {
		m.held[tid] = make(map[common.PageId]struct{})
	}
	m.held[tid][pid] = struct{}{}
	return true
}

// blockers lists the holders tid is waiting on for this request.
func (m *Manager) blockers(tid common.TransactionId, pid common.PageId, perm common.Permission) []common.TransactionId {
	pl, ok := m.locks[pid]
	if !ok {
		return nil
	}
	var out []common.TransactionId
	if pl.hasExcl && pl.exclusive != tid {
		out = append(out, pl.exclusive)
	}
	if perm == common.PermExclusive {
		for t := range pl.sharers {
			if t != tid {
				out = append(out, t)
			}
		}
	}
	return out
}

func (m *Manager) release(tid common.TransactionId, pid common.PageId) {
	if pl, ok := m.locks[pid]; ok {
		delete(pl.sharers, tid)
		if pl.hasExcl && pl.exclusive == tid {
			pl.hasExcl = false
			pl.exclusive = 0
		}
		if pl.empty() {
			delete(m.locks, pid)
		}
	}
	if pages, ok := m.held[tid]; ok {
		delete(pages, pid)
		if len(pages) == 0 {
			delete(m.held, tid)
		}
	}
}
