package materialize

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chmenegatti/graphorm/projection"
)

var ErrUnsupportedType = errors.New("no reader for type")

// Reader stores a driver value into dst, a settable value of the reader's type. src is
// never nil.
type Reader func(src any, dst reflect.Value) error

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	bytesType   = reflect.TypeOf([]byte(nil))
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

var (
	mu      sync.RWMutex
	readers = map[reflect.Type]Reader{
		timeType:  readTime,
		uuidType:  readUUID,
		bytesType: readBytes,
	}
)

// Register adds a reader for an exact type. It overrides the built-in readers.
func Register(t reflect.Type, r Reader) {
	mu.Lock()
	defer mu.Unlock()
	readers[t] = r
}

func lookup(t reflect.Type) (Reader, bool) {
	mu.RLock()
	defer mu.RUnlock()
	r, ok := readers[t]
	return r, ok
}

// Read converts a driver value into a new value of type t. NULL yields the zero value;
// pointer types are allocated.
func Read(src any, t reflect.Type) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(t), nil
	}
	if t.Kind() == reflect.Pointer {
		inner, err := Read(src, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}

	dst := reflect.New(t).Elem()
	if r, ok := lookup(t); ok {
		if err := r(src, dst); err != nil {
			return reflect.Value{}, fmt.Errorf("read %T into %s: %w", src, t, err)
		}
		return dst, nil
	}
	if reflect.PointerTo(t).Implements(scannerType) {
		if err := dst.Addr().Interface().(sql.Scanner).Scan(src); err != nil {
			return reflect.Value{}, fmt.Errorf("scan %T into %s: %w", src, t, err)
		}
		return dst, nil
	}
	if err := readKind(src, dst); err != nil {
		return reflect.Value{}, fmt.Errorf("read %T into %s: %w", src, t, err)
	}
	return dst, nil
}

// readKind covers bool, strings and numbers, named types included.
func readKind(src any, dst reflect.Value) error {
	switch dst.Kind() {
	case reflect.Bool:
		b, err := toBool(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint(src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.String:
		switch v := src.(type) {
		case string:
			dst.SetString(v)
		case []byte:
			dst.SetString(string(v))
		default:
			return fmt.Errorf("%w: string from %T", ErrUnsupportedType, src)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, dst.Type())
	}
	return nil
}

func toBool(src any) (bool, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("%w: bool from %T", ErrUnsupportedType, src)
}

func toInt(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not integral", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("%w: integer from %T", ErrUnsupportedType, src)
}

func toUint(src any) (uint64, error) {
	switch v := src.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%d is negative", v)
		}
		return uint64(v), nil
	case []byte:
		return strconv.ParseUint(string(v), 10, 64)
	case string:
		return strconv.ParseUint(v, 10, 64)
	}
	n, err := toInt(src)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

func toFloat(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("%w: float from %T", ErrUnsupportedType, src)
}

func readTime(src any, dst reflect.Value) error {
	var t time.Time
	var err error
	switch v := src.(type) {
	case time.Time:
		t = v
	case string:
		t, err = projection.ParseTime(v)
	case []byte:
		t, err = projection.ParseTime(string(v))
	default:
		err = fmt.Errorf("%w: time from %T", ErrUnsupportedType, src)
	}
	if err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(t))
	return nil
}

// readUUID accepts the 16-byte array pgx returns as well as raw and textual forms.
func readUUID(src any, dst reflect.Value) error {
	var id uuid.UUID
	switch v := src.(type) {
	case [16]byte:
		id = v
	case uuid.UUID:
		id = v
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		id = parsed
	case []byte:
		if len(v) == 16 {
			copy(id[:], v)
			break
		}
		parsed, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		id = parsed
	default:
		return fmt.Errorf("%w: uuid from %T", ErrUnsupportedType, src)
	}
	dst.Set(reflect.ValueOf(id))
	return nil
}

func readBytes(src any, dst reflect.Value) error {
	switch v := src.(type) {
	case []byte:
		dst.SetBytes(append([]byte(nil), v...))
	case string:
		dst.SetBytes([]byte(v))
	default:
		return fmt.Errorf("%w: bytes from %T", ErrUnsupportedType, src)
	}
	return nil
}
