// Package projection binds view types to entity schemas. A view is any struct whose fields
// name entity fields directly or through a flattened path ("AuthorName" for Author.Name).
package projection

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/chmenegatti/graphorm/metadata"
)

var ErrInvalidView = errors.New("invalid view type")

// Conversion tells how a stored value becomes a view field value.
type Conversion int

const (
	Identity  Conversion = iota + 1
	Widen                // lossless numeric or same-kind conversion
	Format               // to string
	Parse                // from string
	Construct            // nested view over a related, embedded or collection field
	Narrow               // numeric conversion failing on values out of range
)

func (c Conversion) String() string {
	switch c {
	case Identity:
		return "identity"
	case Widen:
		return "widen"
	case Format:
		return "format"
	case Parse:
		return "parse"
	case Construct:
		return "construct"
	case Narrow:
		return "narrow"
	}
	return fmt.Sprintf("Conversion(%d)", int(c))
}

// Binding ties one view field to a path of schema fields.
type Binding struct {
	ViewField string
	ViewIndex []int
	ViewType  reflect.Type
	// Path runs from the model scope to the bound field. Every element but the last is an
	// embedded or related field.
	Path       []metadata.Field
	Conversion Conversion
	// Sub is the nested model of a Construct binding.
	Sub *Model
}

// Field is the bound schema field.
func (b *Binding) Field() metadata.Field { return b.Path[len(b.Path)-1] }

// PathString is the dotted path of the binding relative to its model.
func (b *Binding) PathString() string {
	names := make([]string, len(b.Path))
	for i, f := range b.Path {
		names[i] = f.FieldName()
	}
	return strings.Join(names, ".")
}

// Model is the binding of a view type to an entity or to an embedded object.
type Model struct {
	View reflect.Type
	// Entity is the projected entity; for an embedded model it is the entity that owns
	// the embedded object.
	Entity *metadata.EntitySchema
	// Embedded is set when the model projects an embedded object.
	Embedded *metadata.EmbeddedField
	Bindings []*Binding
}

// Binding finds the binding of a view field.
func (m *Model) Binding(viewField string) *Binding {
	for _, b := range m.Bindings {
		if b.ViewField == viewField {
			return b
		}
	}
	return nil
}

// KeyBinding returns the binding carrying a primary-key field of the entity, or nil.
func (m *Model) KeyBinding(pk metadata.Field) *Binding {
	for _, b := range m.Bindings {
		if b.Path[0] == pk {
			return b
		}
	}
	return nil
}

// RequirePrimaryKey fails when a primary-key field of the entity is not bound.
func (m *Model) RequirePrimaryKey() error {
	if m.Embedded != nil || !m.Entity.HasPrimaryKey() {
		return fmt.Errorf("%w: %s", metadata.ErrNoPrimaryKey, m.Entity.Name)
	}
	for _, pk := range m.Entity.PrimaryKey {
		if m.KeyBinding(pk) == nil {
			return fmt.Errorf("%w: view %s does not carry %s.%s", metadata.ErrNoPrimaryKey, m.View, m.Entity.Name, pk.FieldName())
		}
	}
	return nil
}

// Collections returns the root bindings of many-to-many fields.
func (m *Model) Collections() []*Binding {
	var out []*Binding
	for _, b := range m.Bindings {
		if _, ok := b.Field().(*metadata.ManyRelatedField); ok {
			out = append(out, b)
		}
	}
	return out
}

// For projects entity E onto view V.
func For[E, V any](s *metadata.Schema) (*Model, error) {
	return Project(s, reflect.TypeFor[E](), reflect.TypeFor[V]())
}

// Project binds view to entity. Models are computed once per (entity, view) pair and cached
// in the schema.
func Project(s *metadata.Schema, entity, view reflect.Type) (*Model, error) {
	e, ok := s.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownEntity, entity)
	}
	for view.Kind() == reflect.Pointer {
		view = view.Elem()
	}
	if view.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidView, view)
	}

	key := "projection:" + typeKey(e.Type) + "->" + typeKey(view)
	v, err := s.Memo(key, func() (any, error) {
		p := &projector{}
		return p.entity(e, view, 0), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

func typeKey(t reflect.Type) string { return t.PkgPath() + "." + t.String() }

// projector walks one view tree. stack holds the (scope, view) pairs being expanded on the
// current path; an entity pair met again binds its primary key only.
type projector struct {
	stack []string
}

func (p *projector) push(key string) bool {
	for _, k := range p.stack {
		if k == key {
			return false
		}
	}
	p.stack = append(p.stack, key)
	return true
}

func (p *projector) pop() { p.stack = p.stack[:len(p.stack)-1] }

func (p *projector) entity(e *metadata.EntitySchema, view reflect.Type, depth int) *Model {
	if !p.push(typeKey(e.Type) + "->" + typeKey(view)) {
		return p.keys(e, view, depth)
	}
	defer p.pop()
	return &Model{View: view, Entity: e, Bindings: p.bindAll(e, e.Fields, view, depth)}
}

// keys binds the primary key of an entity already expanded on the current path, as in
// Category.Parent. Key dependencies are acyclic, so the recursion ends.
func (p *projector) keys(e *metadata.EntitySchema, view reflect.Type, depth int) *Model {
	b := p.bindAll(e, e.PrimaryKey, view, depth)
	if len(b) == 0 {
		return nil
	}
	return &Model{View: view, Entity: e, Bindings: b}
}

func (p *projector) embedded(owner *metadata.EntitySchema, f *metadata.EmbeddedField, view reflect.Type, depth int) *Model {
	if !p.push(typeKey(f.Type) + "->" + typeKey(view)) {
		return nil
	}
	defer p.pop()
	return &Model{View: view, Entity: owner, Embedded: f, Bindings: p.bindAll(owner, f.Fields, view, depth)}
}

func (p *projector) bindAll(owner *metadata.EntitySchema, fields []metadata.Field, view reflect.Type, depth int) []*Binding {
	var out []*Binding
	for _, vf := range metadata.DeclaredFields(view) {
		if !vf.Writable {
			continue
		}
		for _, path := range candidates(fields, vf.Name) {
			if b := p.bind(owner, path, vf, depth); b != nil {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// candidates lists the field paths a view field name may denote: the field of that name
// first, then flattened paths through embedded and related fields.
func candidates(fields []metadata.Field, name string) [][]metadata.Field {
	var out [][]metadata.Field
	if f := lookup(fields, name); f != nil {
		out = append(out, []metadata.Field{f})
	}
	for _, f := range fields {
		if len(name) <= len(f.FieldName()) || !strings.EqualFold(name[:len(f.FieldName())], f.FieldName()) {
			continue
		}
		var children []metadata.Field
		switch f := f.(type) {
		case *metadata.EmbeddedField:
			children = f.Fields
		case *metadata.SingleRelatedField:
			children = f.Related.Fields
		default:
			continue
		}
		for _, rest := range candidates(children, name[len(f.FieldName()):]) {
			out = append(out, append([]metadata.Field{f}, rest...))
		}
	}
	return out
}

func lookup(fields []metadata.Field, name string) metadata.Field {
	for _, f := range fields {
		if f.FieldName() == name {
			return f
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.FieldName(), name) {
			return f
		}
	}
	return nil
}

// ownerOf returns the entity that stores the last field of path, given the scope owner.
func ownerOf(owner *metadata.EntitySchema, path []metadata.Field) *metadata.EntitySchema {
	for _, f := range path[:len(path)-1] {
		if rel, ok := f.(*metadata.SingleRelatedField); ok {
			owner = rel.Related
		}
	}
	return owner
}

func (p *projector) bind(owner *metadata.EntitySchema, path []metadata.Field, vf metadata.TypeField, depth int) *Binding {
	b := &Binding{ViewField: vf.Name, ViewIndex: vf.Index, ViewType: vf.Type, Path: path}
	switch f := path[len(path)-1].(type) {
	case *metadata.ValueField:
		if b.Conversion = Classify(f.Type, vf.Type); b.Conversion == 0 {
			return nil
		}
	case *metadata.EmbeddedField:
		vt, ok := structOf(vf.Type)
		if !ok {
			return nil
		}
		if b.Sub = p.embedded(ownerOf(owner, path), f, vt, depth+1); b.Sub == nil {
			return nil
		}
		b.Conversion = Construct
	case *metadata.SingleRelatedField:
		vt, ok := structOf(vf.Type)
		if !ok {
			return nil
		}
		if b.Sub = p.entity(f.Related, vt, depth+1); b.Sub == nil {
			return nil
		}
		b.Conversion = Construct
	case *metadata.ManyRelatedField:
		if depth > 0 || len(path) > 1 || vf.Type.Kind() != reflect.Slice {
			return nil
		}
		vt, ok := structOf(vf.Type.Elem())
		if !ok {
			return nil
		}
		// A collection is read by its own query, so its expansion starts a fresh path.
		sub := (&projector{}).entity(f.Related, vt, depth+1)
		if sub == nil {
			return nil
		}
		b.Sub = sub
		b.Conversion = Construct
	default:
		panic(fmt.Sprintf("projection: unknown field variant %T", f))
	}
	return b
}

// structOf returns the struct type a view field holds directly or by pointer.
func structOf(t reflect.Type) (reflect.Type, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || metadata.IsScalar(t) {
		return nil, false
	}
	return t, true
}
