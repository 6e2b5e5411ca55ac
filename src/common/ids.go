package common

import (
	"fmt"
	"sync/atomic"
)

// PageId identifies a page by the table owning it and the page's position
// inside that table's file. Values are immutable and used as cache and
// lock-table keys.
type PageId struct {
	TableId int
	PageNo  int
}

func (pid PageId) String() string {
	return fmt.Sprintf("[table %d, page %d]", pid.TableId, pid.PageNo)
}

// TransactionId identifies a transaction. Fresh ids come from
// NewTransactionId and are unique within the process.
type TransactionId int64

var transactionCounter int64

func NewTransactionId() TransactionId {
	return TransactionId(atomic.AddInt64(&transactionCounter, 1))
}

func (tid TransactionId) String() string {
	return fmt.Sprintf("txn-%d", int64(tid))
}

// Permission is the access level a transaction requests on a page.
type Permission int

const (
	// PermShared grants read-only access, compatible with other shared holders.
	PermShared Permission = iota
	// PermExclusive grants sole access for reads and writes.
	PermExclusive
)

func (p Permission) String() string {
	switch p {
	case PermShared:
		return "shared"
	case PermExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("permission(%d)", int(p))
	}
}
