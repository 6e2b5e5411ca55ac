package tuple

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"txn-db-golang/src/common"
)

// Tuple is one row. RID is nil until the tuple has been placed on a page.
type Tuple struct {
	Desc   *Desc
	RID    *common.RID
	fields []Field
}

func NewTuple(d *Desc) *Tuple {
	return &Tuple{Desc: d, fields: make([]Field, d.NumFields())}
}

func (t *Tuple) SetField(i int, f Field) error {
	if i < 0 || i >= len(t.fields) {
		return errors.Errorf("tuple: field index %d out of range", i)
	}
	if f.Type() != t.Desc.Types[i] {
		return errors.Wrapf(ErrTypeMismatch, "field %d wants %s, got %s", i, t.Desc.Types[i], f.Type())
	}
	t.fields[i] = f
	return nil
}

func (t *Tuple) Field(i int) (Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, errors.Errorf("tuple: field index %d out of range", i)
	}
	if t.fields[i] == nil {
		return nil, errors.Errorf("tuple: field %d is unset", i)
	}
	return t.fields[i], nil
}

// Serialize writes every field in schema order. All fields must be set.
func (t *Tuple) Serialize(w io.Writer) error {
	for i, f := range t.fields {
		if f == nil {
			return errors.Errorf("tuple: cannot serialize with unset field %d", i)
		}
		if err := f.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadTuple parses one tuple laid out according to d.
func ReadTuple(r io.Reader, d *Desc) (*Tuple, error) {
	t := NewTuple(d)
	for i, ft := range d.Types {
		f, err := ParseField(r, ft)
		if err != nil {
			return nil, err
		}
		t.fields[i] = f
	}
	return t, nil
}

// Combine builds the joined row: fields of a followed by fields of b.
// The result has no RID, it does not live on any page.
func Combine(a, b *Tuple) *Tuple {
	out := NewTuple(a.Desc.Combine(b.Desc))
	copy(out.fields, a.fields)
	copy(out.fields[len(a.fields):], b.fields)
	return out
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		if f == nil {
			parts[i] = "?"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "\t")
}
