package buffer

import (
	"encoding/binary"
	"sync"

	"github.com/OneOfOne/xxhash"

	"txn-db-golang/src/common"
	"txn-db-golang/src/storage"
)

const numShards = 16

// pageTable is the pool's page cache, sharded so that the hot path, point
// lookups of already cached pages, never funnels through one mutex.
// Structural scans (eviction, flush, rollback) snapshot shard by shard.
type pageTable struct {
	shards [numShards]*tableShard
}

type tableShard struct {
	mu    sync.RWMutex
	pages map[common.PageId]storage.Page
}

func newPageTable() *pageTable {
	t := &pageTable{}
	for i := range t.shards {
		t.shards[i] = &tableShard{pages: make(map[common.PageId]storage.Page)}
	}
	return t
}

func (t *pageTable) shardFor(pid common.PageId) *tableShard {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(pid.TableId))
	binary.LittleEndian.PutUint64(buf[8:], uint64(pid.PageNo))
	return t.shards[xxhash.Checksum64(buf[:])%numShards]
}

func (t *pageTable) Get(pid common.PageId) (storage.Page, bool) {
	s := t.shardFor(pid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[pid]
	return p, ok
}

func (t *pageTable) Put(pid common.PageId, p storage.Page) {
	s := t.shardFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pid] = p
}

func (t *pageTable) Delete(pid common.PageId) {
	s := t.shardFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, pid)
}

func (t *pageTable) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.pages)
		s.mu.RUnlock()
	}
	return n
}

// Snapshot copies out the cached pages. The copy is not a consistent cut
// across shards; callers run under the pool's structural mutex when that
// matters.
func (t *pageTable) Snapshot() []storage.Page {
	out := make([]storage.Page, 0, t.Len())
	for _, s := range t.shards {
		s.mu.RLock()
		for _, p := range s.pages {
			out = append(out, p)
		}
		s.mu.RUnlock()
	}
	return out
}

func (t *pageTable) IDs() []common.PageId {
	out := make([]common.PageId, 0, t.Len())
	for _, s := range t.shards {
		s.mu.RLock()
		for pid := range s.pages {
			out = append(out, pid)
		}
		s.mu.RUnlock()
	}
	return out
}
