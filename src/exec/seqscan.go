package exec

import (
	"github.com/pkg/errors"

	"txn-db-golang/src/common"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

// SeqScan reads every tuple of a table in page order, on behalf of one
// transaction. Pages are locked shared as the scan reaches them.
type SeqScan struct {
	tid  common.TransactionId
	file storage.DbFile
	it   storage.TupleIterator
}

func NewSeqScan(tid common.TransactionId, file storage.DbFile) *SeqScan {
	return &SeqScan{tid: tid, file: file}
}

func (s *SeqScan) TupleDesc() *tuple.Desc {
	return s.file.TupleDesc()
}

func (s *SeqScan) Open() error {
	s.it = s.file.Iterator(s.tid)
	return s.it.Open()
}

func (s *SeqScan) HasNext() (bool, error) {
	if s.it == nil {
		return false, nil
	}
	return s.it.HasNext()
}

func (s *SeqScan) Next() (*tuple.Tuple, error) {
	if s.it == nil {
		return nil, errors.New("exec: scan is not open")
	}
	return s.it.Next()
}

func (s *SeqScan) Rewind() error {
	if s.it == nil {
		return errors.New("exec: scan is not open")
	}
	return s.it.Rewind()
}

func (s *SeqScan) Close() error {
	if s.it == nil {
		return nil
	}
	err := s.it.Close()
	s.it = nil
	return err
}
