package storage

import (
	"sync/atomic"

	"txn-db-golang/src/common"
)

// DefaultPageSize is the on-disk page size in bytes.
const DefaultPageSize = 4096

var pageSize = int32(DefaultPageSize)

// PageSize returns the page size currently in effect. Every page in the
// system serializes to exactly this many bytes.
func PageSize() int {
	return int(atomic.LoadInt32(&pageSize))
}

// SetPageSize overrides the page size process-wide. Call it before any pages
// exist, at engine startup or in tests; resizing live pages is not a thing.
func SetPageSize(n int) {
	atomic.StoreInt32(&pageSize, int32(n))
}

// ResetPageSize restores the default page size.
func ResetPageSize() {
	atomic.StoreInt32(&pageSize, DefaultPageSize)
}

// Page is one cached disk page. Implementations track which transaction
// dirtied them and keep a before image, a snapshot of the last content known
// to be on disk, so that an abort can roll the page back without any I/O.
type Page interface {
	ID() common.PageId

	// Data serializes the page to exactly PageSize() bytes.
	Data() ([]byte, error)

	// Dirty reports the transaction holding uncommitted changes to the
	// page, if any.
	Dirty() (common.TransactionId, bool)
	MarkDirty(tid common.TransactionId)
	MarkClean()

	// BeforeImage reconstructs the page from its last captured snapshot.
	BeforeImage() (Page, error)

	// CaptureBeforeImage snapshots the current content. Called right after
	// a page reaches disk, never while it carries uncommitted changes that
	// may still be rolled back.
	CaptureBeforeImage() error
}
