package tuple

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// StringMaxLen is the fixed payload size reserved for string fields.
	StringMaxLen = 128
	// DecimalMaxLen bounds the textual form of a decimal field.
	DecimalMaxLen = 38
)

type FieldType int

const (
	IntType FieldType = iota
	FloatType
	BoolType
	StringType
	DecimalType
)

// Size returns the serialized width of the type in bytes. Every type is
// fixed-width so that heap pages can compute slot counts up front.
func (t FieldType) Size() int {
	switch t {
	case IntType, FloatType:
		return 8
	case BoolType:
		return 1
	case StringType:
		return 4 + StringMaxLen
	case DecimalType:
		return 2 + DecimalMaxLen
	default:
		return 0
	}
}

func (t FieldType) String() string {
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case BoolType:
		return "bool"
	case StringType:
		return "string"
	case DecimalType:
		return "decimal"
	default:
		return fmt.Sprintf("fieldtype(%d)", int(t))
	}
}

// Op is a comparison operator applied between two fields of the same type.
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpLessThan
	OpLessThanOrEq
	OpGreaterThan
	OpGreaterThanOrEq
)

func (op Op) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessThanOrEq:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEq:
		return ">="
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

var (
	ErrTypeMismatch  = errors.New("tuple: field type mismatch")
	ErrStringTooLong = errors.New("tuple: string exceeds maximum field length")
)

// Field is a single column value. Implementations serialize to the fixed
// width reported by their type, compare against same-typed fields and expose
// a canonical key usable for hashing (equal values share a key).
type Field interface {
	Type() FieldType
	Serialize(w io.Writer) error
	Compare(op Op, other Field) (bool, error)
	Key() string
	String() string
}

func cmpResult(op Op, cmp int) (bool, error) {
	switch op {
	case OpEquals:
		return cmp == 0, nil
	case OpNotEquals:
		return cmp != 0, nil
	case OpLessThan:
		return cmp < 0, nil
	case OpLessThanOrEq:
		return cmp <= 0, nil
	case OpGreaterThan:
		return cmp > 0, nil
	case OpGreaterThanOrEq:
		return cmp >= 0, nil
	default:
		return false, errors.Errorf("tuple: unknown comparison op %d", int(op))
	}
}

type IntField struct {
	Value int64
}

func NewIntField(v int64) IntField { return IntField{Value: v} }

func (f IntField) Type() FieldType { return IntType }

func (f IntField) Serialize(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, f.Value)
}

func (f IntField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(IntField)
	if !ok {
		return false, ErrTypeMismatch
	}
	cmp := 0
	if f.Value < o.Value {
		cmp = -1
	} else if f.Value > o.Value {
		cmp = 1
	}
	return cmpResult(op, cmp)
}

func (f IntField) Key() string    { return strconv.FormatInt(f.Value, 10) }
func (f IntField) String() string { return strconv.FormatInt(f.Value, 10) }

type FloatField struct {
	Value float64
}

func NewFloatField(v float64) FloatField { return FloatField{Value: v} }

func (f FloatField) Type() FieldType { return FloatType }

func (f FloatField) Serialize(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, f.Value)
}

func (f FloatField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(FloatField)
	if !ok {
		return false, ErrTypeMismatch
	}
	cmp := 0
	if f.Value < o.Value {
		cmp = -1
	} else if f.Value > o.Value {
		cmp = 1
	}
	return cmpResult(op, cmp)
}

func (f FloatField) Key() string    { return strconv.FormatFloat(f.Value, 'g', -1, 64) }
func (f FloatField) String() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

type BoolField struct {
	Value bool
}

func NewBoolField(v bool) BoolField { return BoolField{Value: v} }

func (f BoolField) Type() FieldType { return BoolType }

func (f BoolField) Serialize(w io.Writer) error {
	var b byte
	if f.Value {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func (f BoolField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(BoolField)
	if !ok {
		return false, ErrTypeMismatch
	}
	// false sorts before true
	cmp := 0
	if !f.Value && o.Value {
		cmp = -1
	} else if f.Value && !o.Value {
		cmp = 1
	}
	return cmpResult(op, cmp)
}

func (f BoolField) Key() string    { return strconv.FormatBool(f.Value) }
func (f BoolField) String() string { return strconv.FormatBool(f.Value) }

type StringField struct {
	Value string
}

func NewStringField(v string) (StringField, error) {
	if len(v) > StringMaxLen {
		return StringField{}, ErrStringTooLong
	}
	return StringField{Value: v}, nil
}

func (f StringField) Type() FieldType { return StringType }

func (f StringField) Serialize(w io.Writer) error {
	if len(f.Value) > StringMaxLen {
		return ErrStringTooLong
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(f.Value))); err != nil {
		return err
	}
	buf := make([]byte, StringMaxLen)
	copy(buf, f.Value)
	_, err := w.Write(buf)
	return err
}

func (f StringField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(StringField)
	if !ok {
		return false, ErrTypeMismatch
	}
	cmp := 0
	if f.Value < o.Value {
		cmp = -1
	} else if f.Value > o.Value {
		cmp = 1
	}
	return cmpResult(op, cmp)
}

func (f StringField) Key() string    { return f.Value }
func (f StringField) String() string { return f.Value }

type DecimalField struct {
	Value decimal.Decimal
}

func NewDecimalField(v decimal.Decimal) DecimalField { return DecimalField{Value: v} }

func NewDecimalFieldFromString(s string) (DecimalField, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return DecimalField{}, errors.Wrap(err, "tuple: parse decimal")
	}
	return DecimalField{Value: d}, nil
}

func (f DecimalField) Type() FieldType { return DecimalType }

func (f DecimalField) Serialize(w io.Writer) error {
	s := f.Value.String()
	if len(s) > DecimalMaxLen {
		return errors.Errorf("tuple: decimal %q exceeds %d characters", s, DecimalMaxLen)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	buf := make([]byte, DecimalMaxLen)
	copy(buf, s)
	_, err := w.Write(buf)
	return err
}

func (f DecimalField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(DecimalField)
	if !ok {
		return false, ErrTypeMismatch
	}
	return cmpResult(op, f.Value.Cmp(o.Value))
}

// Key canonicalizes through big.Rat so that representations with different
// scales (1.5 vs 1.50) hash identically.
func (f DecimalField) Key() string    { return f.Value.Rat().RatString() }
func (f DecimalField) String() string { return f.Value.String() }

// ParseField reads one fixed-width field of the given type.
func ParseField(r io.Reader, t FieldType) (Field, error) {
	switch t {
	case IntType:
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, errors.Wrap(err, "tuple: read int field")
		}
		return NewIntField(v), nil
	case FloatType:
		var v float64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, errors.Wrap(err, "tuple: read float field")
		}
		return NewFloatField(v), nil
	case BoolType:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Wrap(err, "tuple: read bool field")
		}
		return NewBoolField(b[0] != 0), nil
	case StringType:
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, errors.Wrap(err, "tuple: read string length")
		}
		buf := make([]byte, StringMaxLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "tuple: read string payload")
		}
		if n < 0 || int(n) > StringMaxLen {
			return nil, errors.Errorf("tuple: corrupt string length %d", n)
		}
		return StringField{Value: string(buf[:n])}, nil
	case DecimalType:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, errors.Wrap(err, "tuple: read decimal length")
		}
		buf := make([]byte, DecimalMaxLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "tuple: read decimal payload")
		}
		if int(n) > DecimalMaxLen {
			return nil, errors.Errorf("tuple: corrupt decimal length %d", n)
		}
		d, err := decimal.NewFromString(string(buf[:n]))
		if err != nil {
			return nil, errors.Wrap(err, "tuple: corrupt decimal payload")
		}
		return NewDecimalField(d), nil
	default:
		return nil, errors.Errorf("tuple: unknown field type %d", int(t))
	}
}
