package tuple

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Desc describes the schema of a tuple: an ordered list of field types with
// optional column names. All fields are fixed-width, so the byte size of any
// tuple with this schema is known without looking at values.
type Desc struct {
	Types []FieldType
	Names []string
}

func NewDesc(types []FieldType, names []string) (*Desc, error) {
	if len(types) == 0 {
		return nil, errors.New("tuple: schema needs at least one field")
	}
	if names != nil && len(names) != len(types) {
		return nil, errors.Errorf("tuple: %d names for %d types", len(names), len(types))
	}
	if names == nil {
		names = make([]string, len(types))
	}
	return &Desc{Types: types, Names: names}, nil
}

func (d *Desc) NumFields() int {
	return len(d.Types)
}

// Size is the number of bytes a tuple with this schema occupies on a page.
func (d *Desc) Size() int {
	total := 0
	for _, t := range d.Types {
		total += t.Size()
	}
	return total
}

// Equals compares field types only; column names do not affect layout.
func (d *Desc) Equals(o *Desc) bool {
	if o == nil || len(d.Types) != len(o.Types) {
		return false
	}
	for i, t := range d.Types {
		if t != o.Types[i] {
			return false
		}
	}
	return true
}

// FieldIndex resolves a column name to its position.
func (d *Desc) FieldIndex(name string) (int, error) {
	for i, n := range d.Names {
		if n == name {
			return i, nil
		}
	}
	return 0, errors.Errorf("tuple: no field named %q", name)
}

// Combine concatenates two schemas, left fields first. Used by joins.
func (d *Desc) Combine(o *Desc) *Desc {
	types := make([]FieldType, 0, len(d.Types)+len(o.Types))
	types = append(types, d.Types...)
	types = append(types, o.Types...)
	names := make([]string, 0, len(d.Names)+len(o.Names))
	names = append(names, d.Names...)
	names = append(names, o.Names...)
	return &Desc{Types: types, Names: names}
}

func (d *Desc) String() string {
	parts := make([]string, len(d.Types))
	for i, t := range d.Types {
		parts[i] = fmt.Sprintf("%s(%s)", d.Names[i], t)
	}
	return strings.Join(parts, ", ")
}
