package storage

import (
	"txn-db-golang/src/common"
	"txn-db-golang/src/tuple"
)

// PageFetcher hands out pages under transactional locking. Table files go
// through a fetcher for every page they touch on behalf of a transaction, so
// that locking and caching stay in one place.
type PageFetcher interface {
	FetchPage(tid common.TransactionId, pid common.PageId, perm common.Permission) (Page, error)
	ReleasePage(tid common.TransactionId, pid common.PageId)
}

// TupleIterator walks the tuples of a table file. Open must be called before
// HasNext/Next, Rewind restarts the scan, Close releases any held state.
type TupleIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*tuple.Tuple, error)
	Rewind() error
	Close() error
}

// DbFile is a table stored as a sequence of fixed-size pages. ReadPage and
// WritePage move raw pages between disk and memory without any locking; all
// transactional access goes through a PageFetcher.
type DbFile interface {
	// ID identifies the table. It doubles as the table component of every
	// PageId the file owns.
	ID() int

	TupleDesc() *tuple.Desc
	NumPages() int

	ReadPage(pid common.PageId) (Page, error)
	WritePage(p Page) error

	// InsertTuple adds t somewhere in the file on behalf of tid, growing
	// the file if no page has room. It returns every page it modified.
	InsertTuple(tid common.TransactionId, t *tuple.Tuple) ([]Page, error)

	// DeleteTuple removes t, located by its RID. It returns every page it
	// modified.
	DeleteTuple(tid common.TransactionId, t *tuple.Tuple) ([]Page, error)

	Iterator(tid common.TransactionId) TupleIterator

	Close() error
}
