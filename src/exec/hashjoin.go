package exec

import (
	"github.com/pkg/errors"

	"txn-db-golang/src/tuple"
)

// maxHashSize caps how many outer tuples are hashed at once. Larger outer
// inputs are processed in batches, rescanning the inner child per batch.
const maxHashSize = 8192

// HashEquiJoin joins two children on field equality. The outer child is
// loaded into a hash table keyed by the join field, at most maxHashSize
// tuples at a time, and the inner child probes it; output rows are outer
// fields followed by inner fields.
type HashEquiJoin struct {
	opBase
	pred  *JoinPredicate
	outer Iterator
	inner Iterator
	desc  *tuple.Desc

	table    map[string][]*tuple.Tuple
	cur      *tuple.Tuple
	matches  []*tuple.Tuple
	matchIdx int
}

func NewHashEquiJoin(pred *JoinPredicate, outer, inner Iterator) (*HashEquiJoin, error) {
	if pred.op != tuple.OpEquals {
		return nil, errors.New("exec: hash join needs an equality predicate")
	}
	h := &HashEquiJoin{
		pred:  pred,
		outer: outer,
		inner: inner,
		desc:  outer.TupleDesc().Combine(inner.TupleDesc()),
	}
	h.self = h
	return h, nil
}

func (h *HashEquiJoin) TupleDesc() *tuple.Desc {
	return h.desc
}

func (h *HashEquiJoin) Open() error {
	if err := h.outer.Open(); err != nil {
		return err
	}
	if err := h.inner.Open(); err != nil {
		return err
	}
	if _, err := h.loadBatch(); err != nil {
		return err
	}
	h.cur = nil
	h.matches = nil
	h.matchIdx = 0
	h.reset(true)
	return nil
}

// loadBatch fills the hash table with the next chunk of outer tuples and
// reports how many it read.
func (h *HashEquiJoin) loadBatch() (int, error) {
	h.table = make(map[string][]*tuple.Tuple)
	n := 0
	for n < maxHashSize {
		ok, err := h.outer.HasNext()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		t, err := h.outer.Next()
		if err != nil {
			return 0, err
		}
		f, err := t.Field(h.pred.field1)
		if err != nil {
			return 0, err
		}
		key := f.Key()
		h.table[key] = append(h.table[key], t)
		n++
	}
	return n, nil
}

func (h *HashEquiJoin) fetchNext() (*tuple.Tuple, error) {
	for {
		// Drain the matches for the current inner tuple. Keys are
		// canonical strings, so recheck the predicate to rule out
		// equal keys of different field types.
		for h.matchIdx < len(h.matches) {
			left := h.matches[h.matchIdx]
			h.matchIdx++
			ok, err := h.pred.Filter(left, h.cur)
			if err != nil {
				return nil, err
			}
			if ok {
				return tuple.Combine(left, h.cur), nil
			}
		}

		ok, err := h.inner.HasNext()
		if err != nil {
			return nil, err
		}
		if ok {
			h.cur, err = h.inner.Next()
			if err != nil {
				return nil, err
			}
			f, err := h.cur.Field(h.pred.field2)
			if err != nil {
				return nil, err
			}
			h.matches = h.table[f.Key()]
			h.matchIdx = 0
			continue
		}

		// Inner exhausted: hash the next outer batch and rescan it.
		n, err := h.loadBatch()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		if err := h.inner.Rewind(); err != nil {
			return nil, err
		}
	}
}

func (h *HashEquiJoin) Rewind() error {
	if err := h.outer.Rewind(); err != nil {
		return err
	}
	if err := h.inner.Rewind(); err != nil {
		return err
	}
	if _, err := h.loadBatch(); err != nil {
		return err
	}
	h.cur = nil
	h.matches = nil
	h.matchIdx = 0
	h.reset(h.open)
	return nil
}

func (h *HashEquiJoin) Close() error {
	h.table = nil
	h.matches = nil
	h.cur = nil
	h.reset(false)
	if err := h.outer.Close(); err != nil {
		h.inner.Close()
		return err
	}
	return h.inner.Close()
}
