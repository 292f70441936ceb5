// metadata/sqltype.go
package metadata

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLKind is the portable scalar kind of a column. Dialects turn it into concrete DDL.
type SQLKind int

const (
	KindBool SQLKind = iota + 1
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat
	KindDecimal
	KindText
	KindBinary
	KindDateTime
	KindUUID
)

var kindNames = map[SQLKind]string{
	KindBool:     "bool",
	KindInt8:     "int8",
	KindInt16:    "int16",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint8:    "uint8",
	KindUint16:   "uint16",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindText:     "text",
	KindBinary:   "binary",
	KindDateTime: "datetime",
	KindUUID:     "uuid",
}

func (k SQLKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SQLKind(%d)", int(k))
}

// IsInteger reports whether the kind belongs to the integer family.
func (k SQLKind) IsInteger() bool {
	return k >= KindInt8 && k <= KindUint64
}

// Unbounded marks a text/binary column without a length limit.
const Unbounded = -1

// Default numeric parameters used when a field does not customize them.
const (
	DefaultDecimalPrecision = 18
	DefaultDecimalScale     = 4
	Float32Precision        = 24
	Float64Precision        = 53
)

// SQLType is a scalar SQL type with its length/precision/scale parameters.
type SQLType struct {
	Kind      SQLKind
	Length    int // text/binary; 0 or Unbounded means no limit
	Precision int // float/decimal
	Scale     int // decimal
}

func (t SQLType) String() string {
	switch {
	case t.Kind == KindDecimal:
		return fmt.Sprintf("%s(%d,%d)", t.Kind, t.Precision, t.Scale)
	case t.Kind == KindFloat:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Precision)
	case (t.Kind == KindText || t.Kind == KindBinary) && t.Length > 0:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Length)
	}
	return t.Kind.String()
}

// --- Tipos Go comuns para referência ---
var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte{})
)

// nullWrappers maps the database/sql Null* wrappers to the type they carry.
var nullWrappers = map[reflect.Type]reflect.Type{
	reflect.TypeOf(sql.NullString{}):  reflect.TypeOf(""),
	reflect.TypeOf(sql.NullInt64{}):   reflect.TypeOf(int64(0)),
	reflect.TypeOf(sql.NullInt32{}):   reflect.TypeOf(int32(0)),
	reflect.TypeOf(sql.NullInt16{}):   reflect.TypeOf(int16(0)),
	reflect.TypeOf(sql.NullByte{}):    reflect.TypeOf(byte(0)),
	reflect.TypeOf(sql.NullFloat64{}): reflect.TypeOf(float64(0)),
	reflect.TypeOf(sql.NullBool{}):    reflect.TypeOf(false),
	reflect.TypeOf(sql.NullTime{}):    timeType,
}

// UnwrapNullable strips pointers and database/sql Null wrappers (including sql.Null[T]).
// It returns the carried type and whether any wrapper was removed.
func UnwrapNullable(t reflect.Type) (reflect.Type, bool) {
	nullable := false
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
		nullable = true
	}
	if inner, ok := nullWrappers[t]; ok {
		return inner, true
	}
	if t.PkgPath() == "database/sql" && strings.HasPrefix(t.Name(), "Null[") && t.NumField() > 0 {
		return t.Field(0).Type, true
	}
	return t, nullable
}

// IsNullWrapper reports whether t is one of the database/sql Null types.
func IsNullWrapper(t reflect.Type) bool {
	if _, ok := nullWrappers[t]; ok {
		return true
	}
	return t.PkgPath() == "database/sql" && strings.HasPrefix(t.Name(), "Null[")
}

// IsScalar reports whether a Go type has a direct column mapping.
func IsScalar(t reflect.Type) bool {
	base, _ := UnwrapNullable(t)
	_, ok := scalarKind(base)
	return ok
}

func scalarKind(t reflect.Type) (SQLKind, bool) {
	switch t {
	case timeType:
		return KindDateTime, true
	case uuidType:
		return KindUUID, true
	case bytesType:
		return KindBinary, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return KindBool, true
	case reflect.Int8:
		return KindInt8, true
	case reflect.Int16:
		return KindInt16, true
	case reflect.Int32:
		return KindInt32, true
	case reflect.Int, reflect.Int64:
		return KindInt64, true
	case reflect.Uint8:
		return KindUint8, true
	case reflect.Uint16:
		return KindUint16, true
	case reflect.Uint32:
		return KindUint32, true
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return KindUint64, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, true
	case reflect.String:
		return KindText, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBinary, true
		}
	}
	return 0, false
}

// MapType maps a Go field type to its SQL type. Named integer types (enums) map to their
// underlying integer, pointers and sql.Null wrappers map to the carried type and report nullable.
func MapType(t reflect.Type, opts FieldOptions) (SQLType, bool, error) {
	base, nullable := UnwrapNullable(t)
	kind, ok := scalarKind(base)
	if !ok {
		return SQLType{}, false, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	st := SQLType{Kind: kind}
	switch kind {
	case KindText:
		if opts.Length > 0 {
			st.Length = opts.Length
		} else {
			st.Length = Unbounded
		}
	case KindBinary:
		if opts.Length == 0 {
			return SQLType{}, false, fmt.Errorf("%w: binary field of type %s needs a size (use size:max for unbounded)", ErrMissingLength, t)
		}
		st.Length = opts.Length
		nullable = true
	case KindFloat:
		switch {
		case opts.Decimal:
			st.Kind = KindDecimal
			st.Precision, st.Scale = DefaultDecimalPrecision, DefaultDecimalScale
			if opts.Precision > 0 {
				st.Precision = opts.Precision
			}
			if opts.Scale > 0 {
				st.Scale = opts.Scale
			}
		case opts.Precision > 0:
			st.Precision = opts.Precision
		case base.Kind() == reflect.Float32:
			st.Precision = Float32Precision
		default:
			st.Precision = Float64Precision
		}
	}
	if opts.Nullable != nil {
		nullable = *opts.Nullable
	}
	return st, nullable, nil
}
