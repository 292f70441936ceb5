package metadata

import (
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
)

const nullCheckSuffix = "has_value"

// NamingStrategy converts Go names to database names.
type NamingStrategy interface {
	TableName(entity string) string
	ColumnName(field string) string
	// ForeignKeyName names the local column referencing target on the related table.
	ForeignKeyName(field, target string) string
	// EmbeddedPrefix is prepended to every column of an embedded object.
	EmbeddedPrefix(field string) string
	NullCheckName(prefix string) string
	JunctionTableName(ownerTable, field string) string
	// JunctionColumnName names a junction column referencing column of entity.
	JunctionColumnName(entity, column string) string
	IndexName(table, column string, unique bool) string
}

// DefaultNamingStrategy provides snake_case names and pluralized table names.
type DefaultNamingStrategy struct {
	SingularTables bool
}

var _ NamingStrategy = DefaultNamingStrategy{}

func (ns DefaultNamingStrategy) TableName(entity string) string {
	name := strcase.ToSnake(entity)
	if ns.SingularTables {
		return name
	}
	return inflection.Plural(name)
}

func (ns DefaultNamingStrategy) ColumnName(field string) string {
	return strcase.ToSnake(field)
}

func (ns DefaultNamingStrategy) ForeignKeyName(field, target string) string {
	return strcase.ToSnake(field) + "_" + target
}

func (ns DefaultNamingStrategy) EmbeddedPrefix(field string) string {
	return strcase.ToSnake(field) + "_"
}

func (ns DefaultNamingStrategy) NullCheckName(prefix string) string {
	return prefix + nullCheckSuffix
}

func (ns DefaultNamingStrategy) JunctionTableName(ownerTable, field string) string {
	return ownerTable + "_" + strcase.ToSnake(field)
}

func (ns DefaultNamingStrategy) JunctionColumnName(entity, column string) string {
	return inflection.Singular(strcase.ToSnake(entity)) + "_" + column
}

func (ns DefaultNamingStrategy) IndexName(table, column string, unique bool) string {
	if unique {
		return "uidx_" + table + "_" + column
	}
	return "idx_" + table + "_" + column
}

func equalFold(a, b string) bool { return strings.EqualFold(a, b) }
