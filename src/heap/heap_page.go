package heap

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"txn-db-golang/src/common"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

var (
	ErrPageFull       = errors.New("heap: no empty slot on page")
	ErrNoSuchTuple    = errors.New("heap: tuple is not on this page")
	ErrSchemaMismatch = errors.New("heap: tuple schema does not match table")
)

// Page is one slotted heap page. A bitmap header marks which of the
// fixed-size tuple slots are in use:
//
//	slots  = floor(pageSize*8 / (tupleSize*8 + 1))
//	header = ceil(slots/8) bytes, bit i set means slot i holds a tuple
//
// The page keeps a byte snapshot of its last on-disk content so an aborted
// transaction can be rolled back without touching the file.
type Page struct {
	mu sync.Mutex

	pid      common.PageId
	desc     *tuple.Desc
	pageSize int
	numSlots int

	header []byte
	tuples []*tuple.Tuple

	dirty   bool
	dirtier common.TransactionId

	oldData []byte
}

// SlotsPerPage computes how many tuples of the given size fit on a page,
// accounting for the one header bit each slot costs.
func SlotsPerPage(pageSize, tupleSize int) int {
	return pageSize * 8 / (tupleSize*8 + 1)
}

// EmptyPageData returns the content of a freshly allocated page: all slots
// free.
func EmptyPageData() []byte {
	return make([]byte, storage.PageSize())
}

// NewPage parses raw page content. The snapshot for rollback is captured
// immediately, data is what the disk holds.
func NewPage(pid common.PageId, data []byte, desc *tuple.Desc) (*Page, error) {
	if len(data) != storage.PageSize() {
		return nil, errors.Errorf("heap: page %v has %d bytes, want %d", pid, len(data), storage.PageSize())
	}
	tupleSize := desc.Size()
	numSlots := SlotsPerPage(len(data), tupleSize)
	if numSlots < 1 {
		return nil, errors.Errorf("heap: tuple size %d does not fit a %d byte page", tupleSize, len(data))
	}
	headerSize := (numSlots + 7) / 8

	p := &Page{
		pid:      pid,
		desc:     desc,
		pageSize: len(data),
		numSlots: numSlots,
		header:   make([]byte, headerSize),
		tuples:   make([]*tuple.Tuple, numSlots),
	}
	copy(p.header, data[:headerSize])

	for i := 0; i < numSlots; i++ {
		if !p.slotUsed(i) {
			continue
		}
		off := headerSize + i*tupleSize
		t, err := tuple.ReadTuple(bytes.NewReader(data[off:off+tupleSize]), desc)
		if err != nil {
			return nil, errors.Wrapf(err, "heap: parse slot %d of page %v", i, pid)
		}
		t.RID = &common.RID{PageId: pid, SlotNum: i}
		p.tuples[i] = t
	}

	p.oldData = make([]byte, len(data))
	copy(p.oldData, data)
	return p, nil
}

func (p *Page) ID() common.PageId {
	return p.pid
}

func (p *Page) TupleDesc() *tuple.Desc {
	return p.desc
}

func (p *Page) NumSlots() int {
	return p.numSlots
}

func (p *Page) NumEmptySlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := 0
	for i := 0; i < p.numSlots; i++ {
		if !p.slotUsed(i) {
			free++
		}
	}
	return free
}

func (p *Page) SlotUsed(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return i >= 0 && i < p.numSlots && p.slotUsed(i)
}

func (p *Page) slotUsed(i int) bool {
	return p.header[i/8]&(1<<(uint(i)%8)) != 0
}

func (p *Page) setSlot(i int, used bool) {
	if used {
		p.header[i/8] |= 1 << (uint(i) % 8)
	} else {
		p.header[i/8] &^= 1 << (uint(i) % 8)
	}
}

// InsertTuple places t in the first empty slot and stamps its RID.
func (p *Page) InsertTuple(t *tuple.Tuple) error {
	if !p.desc.Equals(t.Desc) {
		return ErrSchemaMismatch
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < p.numSlots; i++ {
		if p.slotUsed(i) {
			continue
		}
		p.setSlot(i, true)
		t.RID = &common.RID{PageId: p.pid, SlotNum: i}
		p.tuples[i] = t
		return nil
	}
	return ErrPageFull
}

// DeleteTuple frees the slot named by t's RID.
func (p *Page) DeleteTuple(t *tuple.Tuple) error {
	if t.RID == nil || t.RID.PageId != p.pid {
		return ErrNoSuchTuple
	}
	i := t.RID.SlotNum
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= p.numSlots || !p.slotUsed(i) {
		return ErrNoSuchTuple
	}
	p.setSlot(i, false)
	p.tuples[i] = nil
	return nil
}

// UsedTuples returns the live tuples in slot order.
func (p *Page) UsedTuples() []*tuple.Tuple {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*tuple.Tuple, 0, p.numSlots)
	for i := 0; i < p.numSlots; i++ {
		if p.slotUsed(i) {
			out = append(out, p.tuples[i])
		}
	}
	return out
}

func (p *Page) Data() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serialize()
}

func (p *Page) serialize() ([]byte, error) {
	data := make([]byte, p.pageSize)
	copy(data, p.header)
	tupleSize := p.desc.Size()
	base := len(p.header)
	for i, t := range p.tuples {
		if t == nil {
			continue
		}
		var buf bytes.Buffer
		if err := t.Serialize(&buf); err != nil {
			return nil, errors.Wrapf(err, "heap: serialize slot %d of page %v", i, p.pid)
		}
		copy(data[base+i*tupleSize:], buf.Bytes())
	}
	return data, nil
}

func (p *Page) Dirty() (common.TransactionId, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirtier, p.dirty
}

func (p *Page) MarkDirty(tid common.TransactionId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
	p.dirtier = tid
}

func (p *Page) MarkClean() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = false
	p.dirtier = 0
}

// BeforeImage rebuilds the page from its last captured snapshot.
func (p *Page) BeforeImage() (storage.Page, error) {
	p.mu.Lock()
	snapshot := make([]byte, len(p.oldData))
	copy(snapshot, p.oldData)
	p.mu.Unlock()
	return NewPage(p.pid, snapshot, p.desc)
}

// CaptureBeforeImage snapshots the current content as the new rollback
// point.
func (p *Page) CaptureBeforeImage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.serialize()
	if err != nil {
		return err
	}
	p.oldData = data
	return nil
}
