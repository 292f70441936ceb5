package metadata_test

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/metadata"
)

// --- Structs de Exemplo para os Testes ---

type status int

type address struct {
	Street string `orm:"size:120"`
	City   string
	Zip    *string
}

type author struct {
	Id      int64
	Name    string `orm:"size:80;index"`
	Email   *string
	Address *address
}

type tag struct {
	Id    uuid.UUID
	Label string
}

type post struct {
	Id      int64
	Title   string
	Status  status
	Rating  float64 `orm:"decimal;precision:10;scale:2"`
	Body    []byte  `orm:"size:max"`
	Created time.Time
	Author  *author
	Tags    []tag
}

type postStats struct {
	Post  *post `orm:"pk"`
	Likes int
}

func buildBlog(t *testing.T) *metadata.Schema {
	t.Helper()
	s, err := metadata.NewBuilder().
		Define(postStats{}). // defined before its key target on purpose
		Define(author{}).
		Define(tag{}).
		Define(&post{}).
		Build()
	require.NoError(t, err)
	return s
}

func entity(t *testing.T, s *metadata.Schema, v any) *metadata.EntitySchema {
	t.Helper()
	e, err := s.EntityOf(v)
	require.NoError(t, err)
	return e
}

func TestBuild_IntegerIdIsAutoIncrementKey(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, author{})

	require.Len(t, e.PrimaryKey, 1)
	vf, ok := e.PrimaryKey[0].(*metadata.ValueField)
	require.True(t, ok)
	assert.Equal(t, "Id", vf.Name)
	assert.True(t, vf.Column.PrimaryKey)
	assert.True(t, vf.Column.AutoIncrement)
	assert.False(t, vf.Column.ClientGenerated)
	assert.False(t, vf.Column.Nullable)
	assert.Equal(t, vf.Column, e.ServerKey())
}

func TestBuild_UUIDIdIsClientGeneratedKey(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, tag{})

	cols := e.PrimaryKeyColumns()
	require.Len(t, cols, 1)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, metadata.KindUUID, cols[0].Type.Kind)
	assert.True(t, cols[0].ClientGenerated)
	assert.False(t, cols[0].AutoIncrement)
	assert.Nil(t, e.ServerKey())
}

func TestBuild_TableNamesArePluralSnakeCase(t *testing.T) {
	s := buildBlog(t)
	assert.Equal(t, "authors", entity(t, s, author{}).Table.Name)
	assert.Equal(t, "post_stats", entity(t, s, postStats{}).Table.Name)

	var names []string
	for _, tbl := range s.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"authors", "posts", "post_stats", "tags", "posts_tags"}, names)
}

func TestBuild_EmbeddedObject(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, author{})

	ef, ok := e.Field("Address").(*metadata.EmbeddedField)
	require.True(t, ok, "Address should be embedded")
	assert.Equal(t, "address_", ef.Prefix)
	assert.Equal(t, "address_has_value", ef.NullCheck.Name)
	assert.False(t, ef.NullCheck.Nullable)
	assert.Equal(t, "false", ef.NullCheck.Default)
	assert.True(t, ef.NullCheck.NullCheck)
	require.Len(t, ef.Fields, 3)

	street := e.Table.Column("address_street")
	require.NotNil(t, street)
	assert.Equal(t, 120, street.Type.Length)
	assert.True(t, street.Nullable)

	var names []string
	for _, c := range e.Table.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "name", "email", "address_has_value", "address_street", "address_city", "address_zip"}, names)
	require.Len(t, e.Table.Indexes, 1)
	assert.Equal(t, "idx_authors_name", e.Table.Indexes[0].Name)
}

func TestBuild_SingleRelatedField(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, post{})

	sf, ok := e.Field("Author").(*metadata.SingleRelatedField)
	require.True(t, ok)
	assert.Equal(t, "author", sf.Related.Name)
	require.Len(t, sf.ForeignKeys, 1)
	assert.Equal(t, "author_id", sf.ForeignKeys[0].Column.Name)
	assert.True(t, sf.ForeignKeys[0].Column.Nullable)
	assert.Equal(t, metadata.KindInt64, sf.ForeignKeys[0].Column.Type.Kind)
	assert.Same(t, entity(t, s, author{}).Table.Column("id"), sf.ForeignKeys[0].Target)
}

func TestBuild_ManyRelatedField(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, post{})

	mf, ok := e.Field("Tags").(*metadata.ManyRelatedField)
	require.True(t, ok)
	require.NotNil(t, mf.Junction)
	assert.Equal(t, "posts_tags", mf.Junction.Name)
	assert.Equal(t, metadata.JunctionTable, mf.Junction.Kind)
	assert.Equal(t, [2]reflect.Type{reflect.TypeOf(post{}), reflect.TypeOf(tag{})}, mf.Junction.Relates)
	assert.Equal(t, []string{"post_id", "tag_id"}, mf.Junction.PrimaryKey)
	assert.Equal(t, metadata.KindUUID, mf.ForeignKeys[0].Column.Type.Kind)
	assert.Equal(t, []*metadata.Table{mf.Junction}, e.Junctions)
	assert.Nil(t, e.Table.Column("tags"), "collections never add columns")
}

func TestBuild_RelationshipValuedKey(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, postStats{})

	require.Len(t, e.PrimaryKey, 1)
	cols := e.PrimaryKeyColumns()
	require.Len(t, cols, 1)
	assert.Equal(t, "post_id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.False(t, cols[0].Nullable)
	assert.False(t, cols[0].AutoIncrement)
	assert.Equal(t, []string{"post_id"}, e.Table.PrimaryKey)
}

func TestBuild_TypeMapping(t *testing.T) {
	s := buildBlog(t)
	e := entity(t, s, post{})

	assert.Equal(t, metadata.SQLType{Kind: metadata.KindInt64}, e.Table.Column("status").Type, "enum maps to its underlying integer")
	assert.Equal(t, metadata.SQLType{Kind: metadata.KindDecimal, Precision: 10, Scale: 2}, e.Table.Column("rating").Type)
	assert.Equal(t, metadata.SQLType{Kind: metadata.KindBinary, Length: metadata.Unbounded}, e.Table.Column("body").Type)
	assert.Equal(t, metadata.SQLType{Kind: metadata.KindText, Length: metadata.Unbounded}, e.Table.Column("title").Type)
	assert.Equal(t, metadata.KindDateTime, e.Table.Column("created").Type.Kind)
	assert.False(t, e.Table.Column("created").Nullable)
}

func TestBuild_BinaryWithoutLength(t *testing.T) {
	type blob struct {
		Id   int
		Data []byte
	}
	_, err := metadata.NewBuilder().Define(blob{}).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrMissingLength)

	var se *metadata.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "blob", se.Entity)
	assert.Equal(t, "Data", se.Field)
}

func TestBuild_UnsupportedType(t *testing.T) {
	type bad struct {
		Id    int
		Attrs map[string]string
		Ch    chan int
	}
	_, err := metadata.NewBuilder().Define(bad{}).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrUnsupportedType)
	assert.Contains(t, err.Error(), "bad.Attrs")
	assert.Contains(t, err.Error(), "bad.Ch")
}

type cycleA struct {
	B *cycleB `orm:"pk"`
}

type cycleB struct {
	A *cycleA `orm:"pk"`
}

func TestBuild_CyclicPrimaryKeys(t *testing.T) {
	_, err := metadata.NewBuilder().Define(cycleA{}).Define(cycleB{}).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrCyclicDependency)

	var ce *metadata.CyclicDependencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"cycleA", "cycleB", "cycleA"}, ce.Chain)
}

func TestBuild_RelationToKeylessEntity(t *testing.T) {
	type note struct {
		Text string
	}
	type holder struct {
		Id   int
		Note *note
	}
	_, err := metadata.NewBuilder().Define(note{}).Define(holder{}).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrUnresolvedRelation)
	assert.ErrorIs(t, err, metadata.ErrNoPrimaryKey)
}

type person struct {
	Id      int
	Friends []*person
}

func TestBuild_SelfReferencingCollection(t *testing.T) {
	s, err := metadata.NewBuilder().Define(person{}).Build()
	require.NoError(t, err)

	e := entity(t, s, person{})
	assert.Equal(t, "people", e.Table.Name)
	mf := e.Field("Friends").(*metadata.ManyRelatedField)
	assert.Equal(t, "people_friends", mf.Junction.Name)
	assert.Equal(t, []string{"person_id", "related_person_id"}, mf.Junction.PrimaryKey)
	assert.True(t, mf.ElemIsPointer())
}

func TestBuild_ExplicitKeyWins(t *testing.T) {
	type order struct {
		Id     int `orm:"pk:false"`
		Number string `orm:"pk;size:20"`
	}
	s, err := metadata.NewBuilder().Define(order{}).Build()
	require.NoError(t, err)

	e := entity(t, s, order{})
	cols := e.PrimaryKeyColumns()
	require.Len(t, cols, 1)
	assert.Equal(t, "number", cols[0].Name)
	assert.False(t, cols[0].AutoIncrement)
	assert.False(t, e.Table.Column("id").PrimaryKey)
}

func TestBuild_DefineErrors(t *testing.T) {
	_, err := metadata.NewBuilder().Define(42).Build()
	assert.ErrorIs(t, err, metadata.ErrInvalidDefinition)

	_, err = metadata.NewBuilder().Define(tag{}).Define(&tag{}).Build()
	assert.ErrorIs(t, err, metadata.ErrInvalidDefinition)
}

func TestDeclaredFields_FlattensAnonymous(t *testing.T) {
	type Base struct {
		Id      int
		Created time.Time
	}
	type doc struct {
		Base
		Title string
		Id    string // shadows Base.Id
		hidden int
	}
	_ = doc{}.hidden

	fields := metadata.DeclaredFields(reflect.TypeOf(doc{}))
	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Created", "Title", "Id"}, names)
	assert.Equal(t, []int{0, 1}, fields[0].Index)
	assert.Equal(t, reflect.TypeOf(""), fields[2].Type)
}

func TestSchemaMemo_ComputesOnce(t *testing.T) {
	s := buildBlog(t)

	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Memo("key", func() (any, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "value", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}
