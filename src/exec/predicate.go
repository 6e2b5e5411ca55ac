package exec

import "txn-db-golang/src/tuple"

// Predicate compares one field of a tuple against a constant.
type Predicate struct {
	field   int
	op      tuple.Op
	operand tuple.Field
}

func NewPredicate(field int, op tuple.Op, operand tuple.Field) *Predicate {
	return &Predicate{field: field, op: op, operand: operand}
}

func (p *Predicate) Matches(t *tuple.Tuple) (bool, error) {
	f, err := t.Field(p.field)
	if err != nil {
		return false, err
	}
	return f.Compare(p.op, p.operand)
}

// JoinPredicate compares field1 of a left tuple with field2 of a right
// tuple.
type JoinPredicate struct {
	field1 int
	field2 int
	op     tuple.Op
}

func NewJoinPredicate(field1 int, op tuple.Op, field2 int) *JoinPredicate {
	return &JoinPredicate{field1: field1, field2: field2, op: op}
}

func (p *JoinPredicate) Filter(a, b *tuple.Tuple) (bool, error) {
	fa, err := a.Field(p.field1)
	if err != nil {
		return false, err
	}
	fb, err := b.Field(p.field2)
	if err != nil {
		return false, err
	}
	return fa.Compare(p.op, fb)
}
