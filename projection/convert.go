package projection

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chmenegatti/graphorm/metadata"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	bytesType    = reflect.TypeOf([]byte(nil))
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// timeLayouts are tried in order when parsing a string into a time.Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Classify returns the conversion from a stored scalar type to a view field type, or 0 when
// the view field cannot hold the value.
func Classify(from, to reflect.Type) Conversion {
	src, _ := metadata.UnwrapNullable(from)
	dst, _ := metadata.UnwrapNullable(to)
	switch {
	case src == dst:
		return Identity
	case isNumeric(src.Kind()) && isNumeric(dst.Kind()):
		if lossless(src.Kind(), dst.Kind()) {
			return Widen
		}
		return Narrow
	case src.Kind() == dst.Kind() && src.ConvertibleTo(dst) && src.Kind() != reflect.Struct:
		return Widen
	case dst.Kind() == reflect.String && formattable(src):
		return Format
	case src.Kind() == reflect.String && parsable(dst):
		return Parse
	}
	return 0
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// bits is the value width of a numeric kind; mantissa width for floats.
func bits(k reflect.Kind) int {
	switch k {
	case reflect.Int8, reflect.Uint8:
		return 8
	case reflect.Int16, reflect.Uint16:
		return 16
	case reflect.Int32, reflect.Uint32:
		return 32
	case reflect.Float32:
		return 24
	case reflect.Float64:
		return 53
	}
	return 64
}

func isInt(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Int64 }

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

// lossless tells whether every value of kind from is exactly representable in kind to.
func lossless(from, to reflect.Kind) bool {
	switch {
	case isFloat(from):
		return isFloat(to) && bits(to) >= bits(from)
	case isFloat(to):
		// the sign takes no mantissa bit
		w := bits(from)
		if isInt(from) {
			w--
		}
		return w <= bits(to)
	case isInt(from):
		return isInt(to) && bits(to) >= bits(from)
	case isInt(to):
		return bits(to) > bits(from)
	}
	return bits(to) >= bits(from)
}

// convertNumber converts between numeric kinds, failing when the value does not fit or a
// float has a fractional part an integer cannot hold.
func convertNumber(src reflect.Value, to reflect.Type) (reflect.Value, error) {
	out := reflect.New(to).Elem()
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("projection: %v overflows %s", src.Interface(), to)
	}
	switch {
	case src.CanInt():
		n := src.Int()
		switch {
		case out.CanInt():
			if out.OverflowInt(n) {
				return fail()
			}
			out.SetInt(n)
		case out.CanUint():
			if n < 0 || out.OverflowUint(uint64(n)) {
				return fail()
			}
			out.SetUint(uint64(n))
		default:
			out.SetFloat(float64(n))
			if f := out.Float(); f >= 1<<63 || int64(f) != n {
				return fail()
			}
		}
	case src.CanUint():
		n := src.Uint()
		switch {
		case out.CanInt():
			if n > math.MaxInt64 || out.OverflowInt(int64(n)) {
				return fail()
			}
			out.SetInt(int64(n))
		case out.CanUint():
			if out.OverflowUint(n) {
				return fail()
			}
			out.SetUint(n)
		default:
			out.SetFloat(float64(n))
			if f := out.Float(); f >= 1<<64 || uint64(f) != n {
				return fail()
			}
		}
	default:
		f := src.Float()
		switch {
		case out.CanFloat():
			if out.OverflowFloat(f) {
				return fail()
			}
			out.SetFloat(f)
		case f != math.Trunc(f):
			return reflect.Value{}, fmt.Errorf("projection: %v has a fraction %s cannot hold", f, to)
		case out.CanInt():
			if f < math.MinInt64 || f >= 1<<63 || out.OverflowInt(int64(f)) {
				return fail()
			}
			out.SetInt(int64(f))
		default:
			if f < 0 || f >= 1<<64 || out.OverflowUint(uint64(f)) {
				return fail()
			}
			out.SetUint(uint64(f))
		}
	}
	return out, nil
}

func formattable(t reflect.Type) bool {
	return t == timeType || t == uuidType || t == bytesType || t.Kind() == reflect.Bool || isNumeric(t.Kind()) || t.Implements(stringerType)
}

func parsable(t reflect.Type) bool {
	return t == timeType || t == uuidType || t.Kind() == reflect.Bool || isNumeric(t.Kind())
}

// Convert converts v to type to. Nil pointers and invalid sql.Null values become the zero
// value of to; pointer and sql.Null targets are filled in.
func Convert(v reflect.Value, to reflect.Type) (reflect.Value, error) {
	src := unwrap(v)
	if !src.IsValid() {
		return reflect.Zero(to), nil
	}
	return build(src, to)
}

// unwrap strips pointers, interfaces and sql.Null wrappers. It returns the invalid Value
// for an absent value.
func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() {
		switch {
		case v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface:
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		case metadata.IsNullWrapper(v.Type()):
			if !v.FieldByName("Valid").Bool() {
				return reflect.Value{}
			}
			v = v.Field(0)
		default:
			return v
		}
	}
	return v
}

func build(src reflect.Value, to reflect.Type) (reflect.Value, error) {
	if src.Type() == to {
		return src, nil
	}
	if to.Kind() == reflect.Pointer {
		inner, err := build(src, to.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(to.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if metadata.IsNullWrapper(to) {
		inner, err := build(src, to.Field(0).Type)
		if err != nil {
			return reflect.Value{}, err
		}
		w := reflect.New(to).Elem()
		w.Field(0).Set(inner)
		w.FieldByName("Valid").SetBool(true)
		return w, nil
	}

	st := src.Type()
	switch {
	case isNumeric(st.Kind()) && isNumeric(to.Kind()):
		return convertNumber(src, to)
	case st.Kind() == to.Kind() && st.ConvertibleTo(to) && st.Kind() != reflect.Struct:
		return src.Convert(to), nil
	case to.Kind() == reflect.String && formattable(st):
		return reflect.ValueOf(format(src)).Convert(to), nil
	case st.Kind() == reflect.String && parsable(to):
		return parse(src.String(), to)
	}
	return reflect.Value{}, fmt.Errorf("projection: cannot convert %s to %s", st, to)
}

func format(v reflect.Value) string {
	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339Nano)
	case uuidType:
		return v.Interface().(uuid.UUID).String()
	case bytesType:
		return string(v.Bytes())
	}
	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String()
	}
	switch v.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	}
	return fmt.Sprint(v.Interface())
}

func parse(s string, to reflect.Type) (reflect.Value, error) {
	switch to {
	case timeType:
		t, err := ParseTime(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t), nil
	case uuidType:
		id, err := uuid.Parse(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projection: parse uuid %q: %w", s, err)
		}
		return reflect.ValueOf(id), nil
	}

	out := reflect.New(to).Elem()
	switch to.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projection: parse %s: %w", to, err)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, to.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projection: parse %s: %w", to, err)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, to.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projection: parse %s: %w", to, err)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, to.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projection: parse %s: %w", to, err)
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("projection: cannot parse %s", to)
	}
	return out, nil
}

// ParseTime parses the textual timestamp forms drivers return.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("projection: parse time %q: unknown layout", s)
}
