package sqlast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// numbered is ANSI with Postgres-style placeholders.
type numbered struct{ sqlast.ANSI }

func (numbered) BindVar(i int) string { return "$" + string(rune('0'+i)) }

func TestRender_Select(t *testing.T) {
	stmt := &sqlast.Select{
		Columns: []sqlast.Expr{
			sqlast.Col("posts", "id"),
			sqlast.Aliased{Expr: sqlast.Col("Author", "name"), Alias: "Author_name"},
		},
		From: sqlast.TableRef{Name: "posts"},
		Joins: []sqlast.Join{{
			Kind:  sqlast.LeftJoin,
			Table: sqlast.TableRef{Name: "authors", Alias: "Author"},
			On:    sqlast.Eq(sqlast.Col("Author", "id"), sqlast.Col("posts", "author_id")),
		}},
		Where: sqlast.And(
			sqlast.Eq(sqlast.Col("posts", "views"), sqlast.Lit(5)),
			sqlast.Binary{Op: sqlast.OpLike, Left: sqlast.Col("Author", "name"), Right: sqlast.Lit("a%")},
		),
		OrderBy: []sqlast.OrderTerm{{Expr: sqlast.Col("posts", "id"), Desc: true}},
		Limit:   10,
		Offset:  20,
	}

	r, err := sqlast.Render(stmt, numbered{})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "posts"."id", "Author"."name" AS "Author_name" FROM "posts" LEFT JOIN "authors" AS "Author" ON "Author"."id" = "posts"."author_id" WHERE "posts"."views" = $1 AND "Author"."name" LIKE $2 ORDER BY "posts"."id" DESC OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY`,
		r.SQL)
	assert.Equal(t, []any{5, "a%"}, r.Args)
}

func TestRender_Parentheses(t *testing.T) {
	a := sqlast.Eq(sqlast.Col("", "a"), sqlast.Lit(1))
	b := sqlast.Eq(sqlast.Col("", "b"), sqlast.Lit(2))
	c := sqlast.Eq(sqlast.Col("", "c"), sqlast.Lit(3))

	testCases := []struct {
		name string
		expr sqlast.Expr
		want string
	}{
		{"and chain", sqlast.And(a, b, c), `"a" = ? AND "b" = ? AND "c" = ?`},
		{"or inside and", sqlast.And(a, sqlast.Or(b, c)), `"a" = ? AND ("b" = ? OR "c" = ?)`},
		{"and inside or", sqlast.Or(sqlast.And(a, b), c), `("a" = ? AND "b" = ?) OR "c" = ?`},
		{"flag test", sqlast.Eq(sqlast.Binary{Op: sqlast.OpBitAnd, Left: sqlast.Col("", "p"), Right: sqlast.Lit(4)}, sqlast.Lit(4)), `("p" & ?) = ?`},
		{"arithmetic", sqlast.Binary{Op: sqlast.OpMul, Left: sqlast.Binary{Op: sqlast.OpAdd, Left: sqlast.Col("", "x"), Right: sqlast.Lit(1)}, Right: sqlast.Lit(2)}, `("x" + ?) * ?`},
		{"not", sqlast.Unary{Op: sqlast.OpNot, Operand: sqlast.And(a, b)}, `NOT ("a" = ? AND "b" = ?)`},
		{"is null", sqlast.Unary{Op: sqlast.OpIsNull, Operand: sqlast.Col("t", "x")}, `"t"."x" IS NULL`},
		{"in", sqlast.In{Operand: sqlast.Col("", "x"), Set: []sqlast.Expr{sqlast.Lit(1), sqlast.Lit(2)}}, `"x" IN (?, ?)`},
		{"empty in", sqlast.In{Operand: sqlast.Col("", "x")}, `1 = 0`},
		{"count star", sqlast.Func{Name: sqlast.FuncCount, Args: []sqlast.Expr{sqlast.Star{}}}, `COUNT(*)`},
		{"random", sqlast.Func{Name: sqlast.FuncRandom}, `RANDOM()`},
		{"nil literal", sqlast.Lit(nil), `NULL`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := sqlast.RenderExpr(tc.expr, sqlast.ANSI{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.SQL)
		})
	}
}

func TestRender_InsertUpdateDelete(t *testing.T) {
	insert := &sqlast.Insert{
		Table:   "tags",
		Columns: []string{"id", "label"},
		Rows: [][]sqlast.Expr{
			{sqlast.Lit("a"), sqlast.Lit("x")},
			{sqlast.Lit("b"), sqlast.Lit(nil)},
		},
	}
	update := &sqlast.Update{
		Table: "tags",
		Set:   []sqlast.Assignment{{Column: "label", Value: sqlast.Null{}}},
		Where: sqlast.Eq(sqlast.Col("tags", "id"), sqlast.Lit("a")),
	}
	del := &sqlast.Delete{Table: "tags", Where: sqlast.Eq(sqlast.Col("tags", "id"), sqlast.Lit("b"))}

	rendered, err := sqlast.RenderAll(&sqlast.Composite{Statements: []sqlast.Stmt{insert, update, del}}, sqlast.ANSI{})
	require.NoError(t, err)
	require.Len(t, rendered, 3)

	assert.Equal(t, `INSERT INTO "tags" ("id", "label") VALUES (?, ?), (?, NULL)`, rendered[0].SQL)
	assert.Equal(t, []any{"a", "x", "b"}, rendered[0].Args)
	assert.Equal(t, `UPDATE "tags" SET "label" = NULL WHERE "tags"."id" = ?`, rendered[1].SQL)
	assert.Equal(t, `DELETE FROM "tags" WHERE "tags"."id" = ?`, rendered[2].SQL)
}

func TestRender_CreateTable(t *testing.T) {
	stmt := &sqlast.CreateTable{
		Name: "authors",
		Columns: []sqlast.ColumnDef{
			{Name: "id", Type: metadata.SQLType{Kind: metadata.KindInt64}, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: metadata.SQLType{Kind: metadata.KindText, Length: 80}, Unique: true},
			{Name: "address_has_value", Type: metadata.SQLType{Kind: metadata.KindBool}, Default: "false"},
		},
		PrimaryKey: []string{"id"},
	}
	r, err := sqlast.Render(stmt, sqlast.ANSI{})
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE "authors" ("id" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, "name" VARCHAR(80) NOT NULL UNIQUE, "address_has_value" BOOLEAN NOT NULL DEFAULT FALSE)`,
		r.SQL)

	junction := &sqlast.CreateTable{
		Name: "posts_tags",
		Columns: []sqlast.ColumnDef{
			{Name: "post_id", Type: metadata.SQLType{Kind: metadata.KindInt64}, PrimaryKey: true},
			{Name: "tag_id", Type: metadata.SQLType{Kind: metadata.KindUUID}, PrimaryKey: true},
		},
		PrimaryKey: []string{"post_id", "tag_id"},
	}
	r, err = sqlast.Render(junction, sqlast.ANSI{})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "posts_tags" ("post_id" BIGINT NOT NULL, "tag_id" UUID NOT NULL, PRIMARY KEY ("post_id", "tag_id"))`, r.SQL)
}

func TestRender_Errors(t *testing.T) {
	_, err := sqlast.Render(&sqlast.Update{Table: "t"}, sqlast.ANSI{})
	assert.ErrorIs(t, err, sqlast.ErrUnsupportedNode)

	_, err = sqlast.Render(&sqlast.Composite{}, sqlast.ANSI{})
	assert.ErrorIs(t, err, sqlast.ErrUnsupportedNode)

	_, err = sqlast.RenderExpr(nil, sqlast.ANSI{})
	assert.ErrorIs(t, err, sqlast.ErrUnsupportedNode)
}

func TestRender_TableExistsAndLastID(t *testing.T) {
	r, err := sqlast.Render(&sqlast.TableExists{Table: "authors"}, numbered{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM information_schema.tables WHERE table_name = $1", r.SQL)
	assert.Equal(t, []any{"authors"}, r.Args)

	assert.Equal(t, "SELECT LAST_INSERT_ID()", sqlast.String(&sqlast.SelectLastInsertID{Table: "authors", Column: "id"}))
}
