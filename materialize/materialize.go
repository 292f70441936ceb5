// Package materialize turns result rows into view values following a select plan.
package materialize

import (
	"bytes"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/projection"
	"github.com/chmenegatti/graphorm/query"
)

// Result holds the views read by the primary select and the root keys of each view, used
// to read and attach collections.
type Result struct {
	// Views are pointers to the view type, in row order.
	Views []reflect.Value
	Keys  [][]any
}

// Scan reads every row of the primary select. It does not close rows.
func Scan(rows *sql.Rows, plan *query.SelectPlan) (*Result, error) {
	view := plan.Model.View
	out := &Result{}
	width := countColumns(plan.Slots)
	for _, col := range plan.Keys {
		width = max(width, col+1)
	}
	err := each(rows, width, func(raw []any) error {
		v := reflect.New(view)
		if err := fill(v.Elem(), plan.Slots, raw); err != nil {
			return err
		}
		out.Views = append(out.Views, v)
		if len(plan.Keys) > 0 {
			key := make([]any, len(plan.Keys))
			for i, col := range plan.Keys {
				key[i] = raw[col]
			}
			out.Keys = append(out.Keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Groups are collection elements keyed by owner key.
type Groups map[string][]reflect.Value

// ScanCollection reads the rows of a collection's secondary select, grouped by owner.
// It does not close rows.
func ScanCollection(rows *sql.Rows, coll *query.Collection) (Groups, error) {
	elem := coll.Binding.Sub.View
	groups := make(Groups)
	width := countColumns(coll.Slots)
	for _, col := range coll.Owner {
		width = max(width, col+1)
	}
	err := each(rows, width, func(raw []any) error {
		owner := make([]any, len(coll.Owner))
		for i, col := range coll.Owner {
			owner[i] = raw[col]
		}
		v := reflect.New(elem)
		if err := fill(v.Elem(), coll.Slots, raw); err != nil {
			return err
		}
		k := KeyString(owner)
		groups[k] = append(groups[k], v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Attach sets the collection field of every view from groups. Views without elements get
// an empty, non-nil slice.
func Attach(res *Result, coll *query.Collection, groups Groups) {
	for i, v := range res.Views {
		field := v.Elem().FieldByIndex(coll.Binding.ViewIndex)
		elems := groups[KeyString(res.Keys[i])]
		slice := reflect.MakeSlice(field.Type(), 0, len(elems))
		byPointer := field.Type().Elem().Kind() == reflect.Pointer
		for _, e := range elems {
			if byPointer {
				slice = reflect.Append(slice, e)
			} else {
				slice = reflect.Append(slice, e.Elem())
			}
		}
		field.Set(slice)
	}
}

// KeyString is a comparable form of a key read from any driver.
func KeyString(key []any) string {
	parts := make([]string, len(key))
	for i, k := range key {
		switch v := k.(type) {
		case []byte:
			parts[i] = string(v)
		case [16]byte:
			parts[i] = string(v[:])
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, "\x1f")
}

// countColumns is the highest column index used by slots, plus one.
func countColumns(slots []query.Slot) int {
	n := 0
	for _, s := range slots {
		n = max(n, s.Column+1, s.Marker+1, countColumns(s.Children))
	}
	return n
}

func each(rows *sql.Rows, width int, fn func(raw []any) error) error {
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("materialize: reading columns: %w", err)
	}
	if len(cols) < width {
		return fmt.Errorf("materialize: result has %d columns, layout needs %d", len(cols), width)
	}
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("materialize: scanning row: %w", err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

// fill writes the slots of one row into v, a settable struct.
func fill(v reflect.Value, slots []query.Slot, raw []any) error {
	for _, s := range slots {
		b := s.Binding
		fv := v.FieldByIndex(b.ViewIndex)
		switch f := b.Field().(type) {
		case *metadata.ValueField:
			stored, err := Read(raw[s.Column], f.Type)
			if err != nil {
				return fmt.Errorf("materialize %s.%s: %w", v.Type().Name(), b.ViewField, err)
			}
			val, err := projection.Convert(stored, fv.Type())
			if err != nil {
				return fmt.Errorf("materialize %s.%s: %w", v.Type().Name(), b.ViewField, err)
			}
			fv.Set(val)
		case *metadata.EmbeddedField:
			if !truthy(raw[s.Marker]) {
				continue
			}
			if err := nested(fv, s.Children, raw); err != nil {
				return err
			}
		case *metadata.SingleRelatedField:
			if raw[s.Marker] == nil {
				continue
			}
			if err := nested(fv, s.Children, raw); err != nil {
				return err
			}
		case *metadata.ManyRelatedField:
			fv.Set(reflect.MakeSlice(fv.Type(), 0, 0))
		default:
			panic(fmt.Sprintf("materialize: unknown field variant %T", f))
		}
	}
	return nil
}

// nested builds the object of a Construct binding into fv, allocating it when held by
// pointer.
func nested(fv reflect.Value, slots []query.Slot, raw []any) error {
	if fv.Kind() == reflect.Pointer {
		obj := reflect.New(fv.Type().Elem())
		if err := fill(obj.Elem(), slots, raw); err != nil {
			return err
		}
		fv.Set(obj)
		return nil
	}
	return fill(fv, slots, raw)
}

// truthy reads a presence marker. Engines without a boolean type return integers or text.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case []byte:
		return len(v) > 0 && !bytes.Equal(v, []byte("0")) && !bytes.EqualFold(v, []byte("false")) && !bytes.EqualFold(v, []byte("f"))
	case string:
		return v != "" && v != "0" && !strings.EqualFold(v, "false") && !strings.EqualFold(v, "f")
	}
	return true
}
