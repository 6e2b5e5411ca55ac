package exec

import "txn-db-golang/src/tuple"

// Filter passes through the child's tuples that satisfy the predicate.
type Filter struct {
	opBase
	pred  *Predicate
	child Iterator
}

func NewFilter(pred *Predicate, child Iterator) *Filter {
	f := &Filter{pred: pred, child: child}
	f.self = f
	return f
}

func (f *Filter) TupleDesc() *tuple.Desc {
	return f.child.TupleDesc()
}

func (f *Filter) Open() error {
	if err := f.child.Open(); err != nil {
		return err
	}
	f.reset(true)
	return nil
}

func (f *Filter) fetchNext() (*tuple.Tuple, error) {
	for {
		ok, err := f.child.HasNext()
		if err != nil || !ok {
			return nil, err
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, err
		}
		match, err := f.pred.Matches(t)
		if err != nil {
			return nil, err
		}
		if match {
			return t, nil
		}
	}
}

func (f *Filter) Rewind() error {
	if err := f.child.Rewind(); err != nil {
		return err
	}
	f.reset(f.open)
	return nil
}

func (f *Filter) Close() error {
	f.reset(false)
	return f.child.Close()
}
