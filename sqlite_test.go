package graphorm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm"
	_ "github.com/chmenegatti/graphorm/driver/sqlite"
	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/internal/testmodels"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/config"
)

func openSQLite(t *testing.T) *graphorm.DB {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Database.Dialect = "sqlite"
	cfg.Database.DSN = ":memory:"
	cfg.Logging.Level = "disabled"

	db, err := graphorm.Open(cfg, func(b *metadata.Builder) {
		b.Define(testmodels.Country{}).
			Define(testmodels.Author{}).
			Define(testmodels.Tag{}).
			Define(testmodels.Post{}).
			Define(testmodels.Comment{}).
			Define(testmodels.Category{})
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.CreateTables(ctx))
	return db
}

func TestSQLite_CreateTablesIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	for _, table := range []string{"countries", "authors", "tags", "posts", "comments", "categories", "posts_tags"} {
		ok, err := db.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}
	ok, err := db.TableExists(ctx, "notes")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, db.CreateTables(ctx))
}

func TestSQLite_RoundTrip(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	goTag, sqlTag := &testmodels.Tag{Label: "go"}, &testmodels.Tag{Label: "sql"}
	_, err := graphorm.Insert(ctx, db, goTag, sqlTag)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, goTag.Id)

	email := "ana@example.com"
	ana := &testmodels.Author{
		Name:    "ana",
		Email:   &email,
		Perms:   testmodels.PermRead | testmodels.PermWrite,
		Address: &testmodels.Address{Street: "Rua A", City: "Recife"},
	}
	bob := &testmodels.Author{Name: "bob"}
	res, err := graphorm.Insert(ctx, db, ana, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.NotZero(t, ana.Id)
	assert.NotEqual(t, ana.Id, bob.Id)

	first := &testmodels.Post{
		Title: "first", Status: testmodels.StatusPublished, Views: 10, Rating: 4.5,
		Created: created, Author: ana, Tags: []testmodels.Tag{*goTag, *sqlTag},
	}
	second := &testmodels.Post{Title: "second", Views: 3, Created: created, Author: bob}
	orphan := &testmodels.Post{Title: "orphan", Created: created}
	_, err = graphorm.Insert(ctx, db, first, second, orphan)
	require.NoError(t, err)

	byID := graphorm.Order(expr.Asc(expr.Col("Id")))

	t.Run("identity", func(t *testing.T) {
		got, err := graphorm.First[testmodels.Post, testmodels.Post](ctx, db,
			graphorm.Where(expr.Eq(expr.Col("Id"), first.Id)))
		require.NoError(t, err)
		assert.Equal(t, "first", got.Title)
		assert.Equal(t, testmodels.StatusPublished, got.Status)
		assert.InDelta(t, 4.5, got.Rating, 0.001)
		assert.True(t, created.Equal(got.Created), got.Created)
		require.NotNil(t, got.Author)
		assert.Equal(t, ana.Id, got.Author.Id)
		assert.Equal(t, &email, got.Author.Email)
		assert.Equal(t, ana.Perms, got.Author.Perms)
		require.NotNil(t, got.Author.Address)
		assert.Equal(t, "Recife", got.Author.Address.City)
		assert.Nil(t, got.Author.Address.Zip)
		assert.Nil(t, got.Author.Country)
		assert.ElementsMatch(t, []testmodels.Tag{*goTag, *sqlTag}, got.Tags)
	})

	t.Run("nested view", func(t *testing.T) {
		views, err := graphorm.Select[testmodels.Post, testmodels.PostWithAuthor](ctx, db, byID)
		require.NoError(t, err)
		require.Len(t, views, 3)
		assert.Equal(t, &testmodels.AuthorView{Id: ana.Id, Name: "ana", AddressCity: "Recife"}, views[0].Author)
		assert.Equal(t, &testmodels.AuthorView{Id: bob.Id, Name: "bob"}, views[1].Author)
		assert.Nil(t, views[2].Author)
	})

	t.Run("flattened view", func(t *testing.T) {
		views, err := graphorm.Select[testmodels.Post, testmodels.PostSummary](ctx, db,
			graphorm.Where(expr.Eq(expr.Col("Author.Name"), "ana")))
		require.NoError(t, err)
		assert.Equal(t, []testmodels.PostSummary{{Id: first.Id, Title: "first", AuthorName: "ana", Views: "10"}}, views)
	})

	t.Run("collections", func(t *testing.T) {
		views, err := graphorm.Select[testmodels.Post, testmodels.PostWithTags](ctx, db, byID)
		require.NoError(t, err)
		require.Len(t, views, 3)
		assert.ElementsMatch(t,
			[]testmodels.TagView{{Id: goTag.Id, Label: "go"}, {Id: sqlTag.Id, Label: "sql"}},
			views[0].Tags)
		assert.NotNil(t, views[1].Tags)
		assert.Empty(t, views[1].Tags)
	})

	t.Run("aggregates", func(t *testing.T) {
		n, err := graphorm.Count[testmodels.Post](ctx, db, graphorm.Where(expr.Gt(expr.Col("Views"), 5)))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		top, err := graphorm.Scalar[testmodels.Post, int](ctx, db, expr.Max(expr.Col("Views")))
		require.NoError(t, err)
		assert.Equal(t, 10, top)
	})

	t.Run("update", func(t *testing.T) {
		second.Title = "renamed"
		_, err := graphorm.Update[testmodels.Post](ctx, db, second)
		require.NoError(t, err)

		got, err := graphorm.First[testmodels.Post, testmodels.PostTitle](ctx, db,
			graphorm.Where(expr.Eq(expr.Col("Id"), second.Id)))
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
	})

	t.Run("link and unlink", func(t *testing.T) {
		_, err := graphorm.Link(ctx, db, second, "Tags", goTag)
		require.NoError(t, err)
		got, err := graphorm.First[testmodels.Post, testmodels.PostWithTags](ctx, db,
			graphorm.Where(expr.Eq(expr.Col("Id"), second.Id)))
		require.NoError(t, err)
		assert.Equal(t, []testmodels.TagView{{Id: goTag.Id, Label: "go"}}, got.Tags)

		res, err := graphorm.Unlink(ctx, db, second, "Tags")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
	})

	t.Run("delete", func(t *testing.T) {
		res, err := graphorm.Delete[testmodels.Post](ctx, db, first)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)

		var links int
		require.NoError(t, db.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM posts_tags`).Scan(&links))
		assert.Zero(t, links)

		_, err = graphorm.First[testmodels.Post, testmodels.PostTitle](ctx, db,
			graphorm.Where(expr.Eq(expr.Col("Id"), first.Id)))
		assert.ErrorIs(t, err, graphorm.ErrNotFound)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		abort := errors.New("abort")
		err := db.Transaction(ctx, func(tx *graphorm.Tx) error {
			if _, err := graphorm.Insert(ctx, tx, &testmodels.Author{Name: "carol"}); err != nil {
				return err
			}
			return abort
		})
		assert.ErrorIs(t, err, abort)

		n, err := graphorm.Count[testmodels.Author](ctx, db)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestSQLite_ClientKeyedRelation(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	post := &testmodels.Post{Title: "p", Created: time.Now().UTC()}
	_, err := graphorm.Insert(ctx, db, post)
	require.NoError(t, err)

	c := &testmodels.Comment{Body: "nice", Post: post}
	_, err = graphorm.Insert(ctx, db, c)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.Id)

	got, err := graphorm.Select[testmodels.Comment, testmodels.CommentBody](ctx, db,
		graphorm.Where(expr.Eq(expr.Col("Post.Id"), post.Id)))
	require.NoError(t, err)
	assert.Equal(t, []testmodels.CommentBody{{Body: "nice"}}, got)
}

func TestSQLite_SelfReference(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	root := &testmodels.Category{Name: "lang"}
	_, err := graphorm.Insert(ctx, db, root)
	require.NoError(t, err)
	child := &testmodels.Category{Name: "go", Parent: root}
	_, err = graphorm.Insert(ctx, db, child)
	require.NoError(t, err)

	byID := func(id int64) testmodels.Category {
		t.Helper()
		got, err := graphorm.First[testmodels.Category, testmodels.Category](ctx, db,
			graphorm.Where(expr.Eq(expr.Col("Id"), id)))
		require.NoError(t, err)
		return got
	}

	got := byID(child.Id)
	require.NotNil(t, got.Parent)
	assert.Equal(t, root.Id, got.Parent.Id)
	assert.Nil(t, byID(root.Id).Parent)

	child.Name = "golang"
	_, err = graphorm.Update[testmodels.Category](ctx, db, child)
	require.NoError(t, err)
	got = byID(child.Id)
	assert.Equal(t, "golang", got.Name)
	require.NotNil(t, got.Parent)
	assert.Equal(t, root.Id, got.Parent.Id)
}

func TestSQLite_FailedInsertLeavesNothing(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	tag := &testmodels.Tag{Label: "go"}
	_, err := graphorm.Insert(ctx, db, tag)
	require.NoError(t, err)

	// The repeated tag violates the junction key after the post row is written.
	post := &testmodels.Post{Title: "dup", Created: time.Now().UTC(), Tags: []testmodels.Tag{*tag, *tag}}
	_, err = graphorm.Insert(ctx, db, post)
	require.Error(t, err)

	n, err := graphorm.Count[testmodels.Post](ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)
}
