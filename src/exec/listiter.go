package exec

import (
	"github.com/pkg/errors"

	"txn-db-golang/src/tuple"
)

// ListIterator serves tuples from memory. Handy as a plan source for fixed
// rows and in tests.
type ListIterator struct {
	desc *tuple.Desc
	rows []*tuple.Tuple
	idx  int
	open bool
}

func NewListIterator(desc *tuple.Desc, rows []*tuple.Tuple) *ListIterator {
	return &ListIterator{desc: desc, rows: rows}
}

func (l *ListIterator) TupleDesc() *tuple.Desc {
	return l.desc
}

func (l *ListIterator) Open() error {
	l.open = true
	l.idx = 0
	return nil
}

func (l *ListIterator) HasNext() (bool, error) {
	return l.open && l.idx < len(l.rows), nil
}

func (l *ListIterator) Next() (*tuple.Tuple, error) {
	if !l.open {
		return nil, errors.New("exec: iterator is not open")
	}
	if l.idx >= len(l.rows) {
		return nil, errors.New("exec: iterator exhausted")
	}
	t := l.rows[l.idx]
	l.idx++
	return t, nil
}

func (l *ListIterator) Rewind() error {
	if !l.open {
		return errors.New("exec: iterator is not open")
	}
	l.idx = 0
	return nil
}

func (l *ListIterator) Close() error {
	l.open = false
	return nil
}
