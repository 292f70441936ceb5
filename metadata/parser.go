// metadata/parser.go
package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TagName is the struct tag read by the schema builder.
const TagName = "orm"

// FieldOptions holds the customization of one field. Tri-state flags are pointers so an
// explicit "false" can override a default.
type FieldOptions struct {
	Column          string
	PrimaryKey      *bool
	AutoIncrement   *bool
	ClientGenerated *bool
	Nullable        *bool
	Length          int // Unbounded for size:max
	Precision       int
	Scale           int
	Decimal         bool
	Unique          bool
	Index           string
	UniqueIndex     string
	Default         string
	Ignore          bool
}

// FieldOption customizes a field programmatically.
type FieldOption func(*FieldOptions)

func boolPtr(b bool) *bool { return &b }

// ColumnName overrides the column name.
func ColumnName(name string) FieldOption {
	return func(o *FieldOptions) { o.Column = name }
}

// PrimaryKey marks the field as (part of) the primary key.
func PrimaryKey() FieldOption {
	return func(o *FieldOptions) { o.PrimaryKey = boolPtr(true) }
}

// NotPrimaryKey stops a field named Id from becoming the primary key.
func NotPrimaryKey() FieldOption {
	return func(o *FieldOptions) { o.PrimaryKey = boolPtr(false) }
}

// AutoIncrement sets whether the server assigns the key.
func AutoIncrement(on bool) FieldOption {
	return func(o *FieldOptions) { o.AutoIncrement = boolPtr(on) }
}

// ClientGenerated sets whether the application assigns the key before insertion.
func ClientGenerated(on bool) FieldOption {
	return func(o *FieldOptions) { o.ClientGenerated = boolPtr(on) }
}

// Nullable overrides the nullability inferred from the Go type.
func Nullable(on bool) FieldOption {
	return func(o *FieldOptions) { o.Nullable = boolPtr(on) }
}

// Length sets the length of a text or binary column.
func Length(n int) FieldOption {
	return func(o *FieldOptions) { o.Length = n }
}

// MaxLength marks a text or binary column as unbounded.
func MaxLength() FieldOption {
	return func(o *FieldOptions) { o.Length = Unbounded }
}

// Precision sets the precision (and scale) of a numeric column.
func Precision(precision, scale int) FieldOption {
	return func(o *FieldOptions) { o.Precision, o.Scale = precision, scale }
}

// Decimal stores a floating point field as an exact DECIMAL.
func Decimal(precision, scale int) FieldOption {
	return func(o *FieldOptions) {
		o.Decimal = true
		o.Precision, o.Scale = precision, scale
	}
}

// Unique adds a UNIQUE constraint.
func Unique() FieldOption {
	return func(o *FieldOptions) { o.Unique = true }
}

// Indexed adds the column to a (possibly shared) index. An empty name is generated.
func Indexed(name string) FieldOption {
	return func(o *FieldOptions) {
		if name == "" {
			name = "-"
		}
		o.Index = name
	}
}

// UniqueIndexed adds the column to a (possibly shared) unique index.
func UniqueIndexed(name string) FieldOption {
	return func(o *FieldOptions) {
		if name == "" {
			name = "-"
		}
		o.UniqueIndex = name
	}
}

// Default sets the DDL default expression.
func Default(expr string) FieldOption {
	return func(o *FieldOptions) { o.Default = expr }
}

// Ignore excludes the field from the schema.
func Ignore() FieldOption {
	return func(o *FieldOptions) { o.Ignore = true }
}

// EntityOptions is the programmatic customization of one entity.
type EntityOptions struct {
	Table  string
	Fields map[string][]FieldOption // keyed by field path, e.g. "Address.Street"
}

// Customizer mutates EntityOptions when an entity is defined.
type Customizer func(*EntityOptions)

// TableName overrides the table name.
func TableName(name string) Customizer {
	return func(o *EntityOptions) { o.Table = name }
}

// ForField customizes the field at path. Nested embedded fields use dotted paths.
func ForField(path string, opts ...FieldOption) Customizer {
	return func(o *EntityOptions) {
		if o.Fields == nil {
			o.Fields = make(map[string][]FieldOption)
		}
		o.Fields[path] = append(o.Fields[path], opts...)
	}
}

// ParseTag parses an `orm:"..."` tag value. Options are separated by ';' and take an
// optional ':value'. All problems found are reported together.
func ParseTag(tag string) (FieldOptions, error) {
	var opts FieldOptions
	if strings.TrimSpace(tag) == "-" {
		opts.Ignore = true
		return opts, nil
	}

	var allParseErrors []error
	definedTags := make(map[string]bool)
	for _, opt := range strings.Split(tag, ";") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, _ := strings.Cut(opt, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if definedTags[key] {
			allParseErrors = append(allParseErrors, fmt.Errorf("%w: duplicate tag %q", ErrInvalidOption, key))
			continue
		}
		definedTags[key] = true

		switch key {
		case "column":
			opts.Column = value
		case "primarykey", "pk":
			opts.PrimaryKey = boolPtr(value == "" || value == "true")
		case "autoincrement", "auto_increment":
			b, err := parseFlag(key, value)
			if err != nil {
				allParseErrors = append(allParseErrors, err)
			}
			opts.AutoIncrement = boolPtr(b)
		case "clientgenerated", "client_generated":
			b, err := parseFlag(key, value)
			if err != nil {
				allParseErrors = append(allParseErrors, err)
			}
			opts.ClientGenerated = boolPtr(b)
		case "size", "length":
			if strings.EqualFold(value, "max") {
				opts.Length = Unbounded
				continue
			}
			n, err := parseInt(key, value)
			if err != nil {
				allParseErrors = append(allParseErrors, err)
			}
			opts.Length = n
		case "precision":
			n, err := parseInt(key, value)
			if err != nil {
				allParseErrors = append(allParseErrors, err)
			}
			opts.Precision = n
		case "scale":
			n, err := parseInt(key, value)
			if err != nil {
				allParseErrors = append(allParseErrors, err)
			}
			opts.Scale = n
		case "decimal":
			opts.Decimal = true
		case "notnull", "not_null":
			opts.Nullable = boolPtr(false)
		case "nullable":
			opts.Nullable = boolPtr(true)
		case "unique":
			opts.Unique = true
		case "default":
			opts.Default = value
		case "index":
			opts.Index = orDash(value)
		case "uniqueindex", "unique_index":
			opts.UniqueIndex = orDash(value)
		default:
			allParseErrors = append(allParseErrors, fmt.Errorf("%w: unknown tag %q", ErrInvalidOption, key))
		}
	}
	return opts, errors.Join(allParseErrors...)
}

func parseFlag(key, value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: parse '%s' (%s): %v", ErrInvalidOption, key, value, err)
	}
	return b, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: parse '%s' (%s): expected a non-negative integer", ErrInvalidOption, key, value)
	}
	return n, nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
