package metadata_test

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/metadata"
)

type color uint8

func TestMapType(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		opts     metadata.FieldOptions
		want     metadata.SQLType
		nullable bool
	}{
		{"bool", false, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindBool}, false},
		{"int", 0, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindInt64}, false},
		{"int16", int16(0), metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindInt16}, false},
		{"uint32", uint32(0), metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindUint32}, false},
		{"enum", color(0), metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindUint8}, false},
		{"float32", float32(0), metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindFloat, Precision: 24}, false},
		{"float64", 0.0, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindFloat, Precision: 53}, false},
		{"decimal default", 0.0, metadata.FieldOptions{Decimal: true}, metadata.SQLType{Kind: metadata.KindDecimal, Precision: 18, Scale: 4}, false},
		{"string", "", metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindText, Length: metadata.Unbounded}, false},
		{"varchar", "", metadata.FieldOptions{Length: 40}, metadata.SQLType{Kind: metadata.KindText, Length: 40}, false},
		{"binary", []byte(nil), metadata.FieldOptions{Length: 16}, metadata.SQLType{Kind: metadata.KindBinary, Length: 16}, true},
		{"time", time.Time{}, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindDateTime}, false},
		{"uuid", uuid.UUID{}, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindUUID}, false},
		{"pointer", new(int32), metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindInt32}, true},
		{"null string", sql.NullString{}, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindText, Length: metadata.Unbounded}, true},
		{"null time", sql.NullTime{}, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindDateTime}, true},
		{"generic null", sql.Null[int16]{}, metadata.FieldOptions{}, metadata.SQLType{Kind: metadata.KindInt16}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, nullable, err := metadata.MapType(reflect.TypeOf(tc.value), tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.nullable, nullable)
		})
	}
}

func TestMapType_Errors(t *testing.T) {
	_, _, err := metadata.MapType(reflect.TypeOf([]byte(nil)), metadata.FieldOptions{})
	assert.ErrorIs(t, err, metadata.ErrMissingLength)

	_, _, err = metadata.MapType(reflect.TypeOf(map[string]int{}), metadata.FieldOptions{})
	assert.ErrorIs(t, err, metadata.ErrUnsupportedType)

	_, _, err = metadata.MapType(reflect.TypeOf(struct{ A int }{}), metadata.FieldOptions{})
	assert.ErrorIs(t, err, metadata.ErrUnsupportedType)
}

func TestMapType_NullableOverride(t *testing.T) {
	off := false
	_, nullable, err := metadata.MapType(reflect.TypeOf(new(string)), metadata.FieldOptions{Nullable: &off})
	require.NoError(t, err)
	assert.False(t, nullable)
}
