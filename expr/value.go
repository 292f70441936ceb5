package expr

import (
	"database/sql/driver"
	"math"
	"reflect"
	"strconv"
	"time"
)

var (
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
)

// Normalize turns a Go value into a driver argument. Nil pointers become nil, pointers are
// dereferenced, and named scalar types (enums) fold to their underlying kind. Unsigned
// values above math.MaxInt64 become decimal strings. Values that implement driver.Valuer
// are kept for the driver to convert.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	return normalizeValue(reflect.ValueOf(v))
}

// NormalizeValue is Normalize over a reflect.Value.
func NormalizeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	return normalizeValue(rv)
}

func normalizeValue(rv reflect.Value) any {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	t := rv.Type()
	if t.Implements(valuerType) || t == timeType {
		return rv.Interface()
	}
	if reflect.PointerTo(t).Implements(valuerType) && rv.CanAddr() {
		return rv.Addr().Interface()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		// database/sql refuses uint64 arguments with the high bit set.
		if n := rv.Uint(); n > math.MaxInt64 {
			return strconv.FormatUint(n, 10)
		}
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return nil
			}
			return rv.Bytes()
		}
	}
	return rv.Interface()
}
