// Package testmodels holds the blog entities shared by the package tests.
package testmodels

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chmenegatti/graphorm/metadata"
)

type Status int

const (
	StatusDraft Status = iota
	StatusPublished
	StatusArchived
)

// Permission is a bit set.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermAdmin
)

type Address struct {
	Street string `orm:"size:120"`
	City   string `orm:"size:60"`
	Zip    *string
}

type Country struct {
	Code string `orm:"pk;size:2"`
	Name string
}

type Author struct {
	Id      int64
	Name    string `orm:"size:80;index"`
	Email   *string
	Perms   Permission
	Address *Address
	Country *Country
}

type Tag struct {
	Id    uuid.UUID
	Label string `orm:"size:40;unique"`
}

type Post struct {
	Id      int64
	Title   string `orm:"size:200"`
	Status  Status
	Views   int
	Rating  float64 `orm:"decimal;precision:10;scale:2"`
	Created time.Time
	Author  *Author
	Tags    []Tag
}

// Comment has a client-generated key and a relationship.
type Comment struct {
	Id   uuid.UUID
	Body string
	Post *Post
}

// Category references its own entity type.
type Category struct {
	Id     int64
	Name   string `orm:"size:60"`
	Parent *Category
}

// Note has no primary key.
type Note struct {
	Text string
}

// --- Views ---

type PostTitle struct {
	Id    int64
	Title string
}

type PostSummary struct {
	Id         int64
	Title      string
	AuthorName string
	Views      string // formatted
}

type AuthorView struct {
	Id          int64
	Name        string
	AddressCity string
}

type PostWithAuthor struct {
	Id     int64
	Title  string
	Author *AuthorView
}

type TagView struct {
	Id    uuid.UUID
	Label string
}

type PostWithTags struct {
	Id    int64
	Title string
	Tags  []TagView
}

type CommentBody struct {
	Body string
}

var (
	blogOnce   sync.Once
	blogSchema *metadata.Schema
)

// Blog returns the schema of every entity above.
func Blog() *metadata.Schema {
	blogOnce.Do(func() {
		blogSchema = metadata.NewBuilder().
			Define(Country{}).
			Define(Author{}).
			Define(Tag{}).
			Define(Post{}).
			Define(Comment{}).
			Define(Note{}).
			Define(Category{}).
			MustBuild()
	})
	return blogSchema
}
