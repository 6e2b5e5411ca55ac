package exec

import (
	"github.com/pkg/errors"

	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

// Iterator is one operator in a query plan: a tuple iterator that also knows
// the schema of the rows it produces.
type Iterator interface {
	storage.TupleIterator
	TupleDesc() *tuple.Desc
}

// fetcher is the pull loop an operator implements; returning (nil, nil)
// means exhausted.
type fetcher interface {
	fetchNext() (*tuple.Tuple, error)
}

// opBase supplies HasNext/Next on top of fetchNext by buffering one tuple of
// lookahead. Operators embed it and flip open in their Open/Close/Rewind.
type opBase struct {
	self   fetcher
	peeked *tuple.Tuple
	open   bool
}

func (b *opBase) reset(open bool) {
	b.open = open
	b.peeked = nil
}

func (b *opBase) HasNext() (bool, error) {
	if !b.open {
		return false, nil
	}
	if b.peeked != nil {
		return true, nil
	}
	t, err := b.self.fetchNext()
	if err != nil {
		return false, err
	}
	b.peeked = t
	return t != nil, nil
}

func (b *opBase) Next() (*tuple.Tuple, error) {
	ok, err := b.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("exec: iterator exhausted")
	}
	t := b.peeked
	b.peeked = nil
	return t, nil
}
