package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Builder collects entity definitions and builds them into one immutable Schema.
type Builder struct {
	defs   []*definition
	byType map[reflect.Type]*definition
	naming NamingStrategy
	logger zerolog.Logger
	errs   []error
}

type definition struct {
	typ  reflect.Type
	opts EntityOptions
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithNamingStrategy replaces the default snake_case strategy.
func WithNamingStrategy(ns NamingStrategy) BuilderOption {
	return func(b *Builder) {
		if ns != nil {
			b.naming = ns
		}
	}
}

// WithLogger sets the logger used while building.
func WithLogger(l zerolog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		byType: make(map[reflect.Type]*definition),
		naming: DefaultNamingStrategy{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Define registers an entity type. v is a struct value, a pointer to one, or a reflect.Type.
// Definition errors are reported by Build.
func (b *Builder) Define(v any, customizers ...Customizer) *Builder {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	if t == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: nil entity", ErrInvalidDefinition))
		return b
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || IsScalar(t) {
		b.errs = append(b.errs, fmt.Errorf("%w: %s is not a struct", ErrInvalidDefinition, t))
		return b
	}
	if _, dup := b.byType[t]; dup {
		b.errs = append(b.errs, &SchemaError{Entity: t.Name(), Err: fmt.Errorf("%w: defined twice", ErrInvalidDefinition)})
		return b
	}
	def := &definition{typ: t}
	for _, c := range customizers {
		c(&def.opts)
	}
	b.defs = append(b.defs, def)
	b.byType[t] = def
	return b
}

// MustBuild is Build for package-level schemas; it panics on error.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Build classifies every defined type, resolves primary keys in dependency order and then
// every remaining relationship. All schema-definition errors found are returned together.
func (b *Builder) Build() (*Schema, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	st := &buildState{
		b:        b,
		entities: make(map[reflect.Type]*entityState, len(b.defs)),
	}
	for _, def := range b.defs {
		name := def.typ.Name()
		table := def.opts.Table
		if table == "" {
			table = b.naming.TableName(name)
		}
		es := &entityState{
			def: def,
			schema: &EntitySchema{
				Type:  def.typ,
				Name:  name,
				Table: &Table{Name: table, Kind: EntityTable},
			},
			usedPaths: make(map[string]bool),
		}
		st.entities[def.typ] = es
		st.ordered = append(st.ordered, es)
	}

	// phase 1: provisional field graphs
	for _, es := range st.ordered {
		es.schema.Fields = st.classify(es, DeclaredFields(es.def.typ), "", "", nil, true)
		st.choosePrimaryKey(es)
		st.checkUnusedPaths(es)
		b.logger.Debug().Str("entity", es.schema.Name).Int("fields", len(es.schema.Fields)).Int("pending", len(es.pending)).Msg("entity classified")
	}
	if err := st.err(); err != nil {
		return nil, err
	}

	// phase 2: primary keys in dependency order
	order, err := st.keyOrder()
	if err != nil {
		return nil, err
	}
	for _, es := range order {
		st.resolveKey(es)
	}
	if err := st.err(); err != nil {
		return nil, err
	}

	// finalize: remaining relationships, tables and names
	for _, es := range st.ordered {
		for _, p := range es.pending {
			st.resolveRelation(es, p)
		}
	}
	if err := st.err(); err != nil {
		return nil, err
	}

	schema := &Schema{
		entities: make(map[reflect.Type]*EntitySchema, len(st.ordered)),
		memo:     newMemo(),
	}
	for _, es := range st.ordered {
		st.finalizeTable(es)
		schema.entities[es.def.typ] = es.schema
		schema.order = append(schema.order, es.schema)
	}
	for _, es := range st.tableOrder() {
		schema.tables = append(schema.tables, es.schema.Table)
	}
	for _, es := range st.ordered {
		schema.tables = append(schema.tables, es.schema.Junctions...)
	}
	st.checkTableNames(schema.tables)
	if err := st.err(); err != nil {
		return nil, err
	}

	b.logger.Info().Int("entities", len(schema.order)).Int("tables", len(schema.tables)).Msg("schema built")
	return schema, nil
}

type buildState struct {
	b        *Builder
	entities map[reflect.Type]*entityState
	ordered  []*entityState
	errs     []error
}

type entityState struct {
	def       *definition
	schema    *EntitySchema
	pending   []*pendingRelation
	keyCands  []keyCandidate
	indexes   []indexRequest
	usedPaths map[string]bool
}

// pendingRelation is a relationship placeholder created in phase 1 and completed once
// both sides have primary keys.
type pendingRelation struct {
	field     Field // *SingleRelatedField or *ManyRelatedField
	path      string
	colPrefix string
	opts      FieldOptions
	nullable  bool
	resolved  bool
}

type keyCandidate struct {
	field Field
	opts  FieldOptions
}

type indexRequest struct {
	column *Column
	name   string
	unique bool
}

func (st *buildState) fail(es *entityState, path string, err error) {
	st.errs = append(st.errs, &SchemaError{Entity: es.schema.Name, Field: path, Err: err})
}

func (st *buildState) err() error {
	return errors.Join(st.errs...)
}

func (st *buildState) fieldOptions(es *entityState, tf TypeField, path string) (FieldOptions, bool) {
	opts, err := ParseTag(tf.Tag.Get(TagName))
	if err != nil {
		st.fail(es, path, err)
		return opts, false
	}
	if custom, ok := es.def.opts.Fields[path]; ok {
		es.usedPaths[path] = true
		for _, o := range custom {
			o(&opts)
		}
	}
	return opts, true
}

func (st *buildState) relatedEntity(t reflect.Type) (*entityState, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	es, ok := st.entities[t]
	return es, ok
}

// classify turns declared fields into provisional Field nodes. Relationships become
// pending placeholders; embedded objects recurse under a column prefix.
func (st *buildState) classify(es *entityState, fields []TypeField, pathPrefix, colPrefix string, chain []reflect.Type, top bool) []Field {
	naming := st.b.naming
	var out []Field
	for _, tf := range fields {
		path := pathPrefix + tf.Name
		opts, ok := st.fieldOptions(es, tf, path)
		if !ok || opts.Ignore {
			continue
		}
		t := tf.Type

		if IsScalar(t) {
			sqlType, nullable, err := MapType(t, opts)
			if err != nil {
				st.fail(es, path, err)
				continue
			}
			name := opts.Column
			if name == "" {
				name = naming.ColumnName(tf.Name)
			}
			col := &Column{
				Name:     colPrefix + name,
				Type:     sqlType,
				Nullable: nullable || !top,
				Unique:   opts.Unique,
				Default:  opts.Default,
			}
			vf := &ValueField{Name: tf.Name, Type: t, Index: tf.Index, Column: col}
			st.requestIndexes(es, col, opts)
			if top {
				es.keyCands = append(es.keyCands, keyCandidate{field: vf, opts: opts})
			}
			out = append(out, vf)
			continue
		}

		if target, ok := st.relatedEntity(t); ok {
			sf := &SingleRelatedField{Name: tf.Name, Type: t, Index: tf.Index, Related: target.schema}
			es.pending = append(es.pending, &pendingRelation{
				field:     sf,
				path:      path,
				colPrefix: colPrefix,
				opts:      opts,
				nullable:  t.Kind() == reflect.Pointer || !top,
			})
			if top {
				es.keyCands = append(es.keyCands, keyCandidate{field: sf, opts: opts})
			}
			out = append(out, sf)
			continue
		}

		if t.Kind() == reflect.Slice {
			if target, ok := st.relatedEntity(t.Elem()); ok {
				if !top {
					st.fail(es, path, fmt.Errorf("%w: many-to-many collection inside embedded object", ErrUnsupportedType))
					continue
				}
				mf := &ManyRelatedField{Name: tf.Name, Type: t, Elem: t.Elem(), Index: tf.Index, Related: target.schema}
				es.pending = append(es.pending, &pendingRelation{field: mf, path: path, opts: opts})
				if opts.PrimaryKey != nil && *opts.PrimaryKey {
					st.fail(es, path, fmt.Errorf("%w: a collection cannot be a primary key", ErrInvalidOption))
				}
				out = append(out, mf)
				continue
			}
		}

		base := t
		if base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		if base.Kind() != reflect.Struct {
			st.fail(es, path, fmt.Errorf("%w: %s", ErrUnsupportedType, t))
			continue
		}
		if base == es.def.typ || containsType(chain, base) {
			st.fail(es, path, fmt.Errorf("%w: recursive embedded type %s", ErrUnsupportedType, base))
			continue
		}
		prefix := colPrefix + naming.EmbeddedPrefix(tf.Name)
		if opts.Column != "" {
			prefix = colPrefix + opts.Column + "_"
		}
		ef := &EmbeddedField{
			Name:   tf.Name,
			Type:   t,
			Index:  tf.Index,
			Prefix: prefix,
			NullCheck: &Column{
				Name:      naming.NullCheckName(prefix),
				Type:      SQLType{Kind: KindBool},
				Default:   "false",
				NullCheck: true,
			},
		}
		ef.Fields = st.classify(es, DeclaredFields(base), path+".", prefix, append(chain, base), false)
		if top {
			es.keyCands = append(es.keyCands, keyCandidate{field: ef, opts: opts})
		}
		out = append(out, ef)
	}
	return out
}

func containsType(chain []reflect.Type, t reflect.Type) bool {
	for _, c := range chain {
		if c == t {
			return true
		}
	}
	return false
}

func (st *buildState) requestIndexes(es *entityState, col *Column, opts FieldOptions) {
	if opts.Index != "" {
		es.indexes = append(es.indexes, indexRequest{column: col, name: opts.Index})
	}
	if opts.UniqueIndex != "" {
		es.indexes = append(es.indexes, indexRequest{column: col, name: opts.UniqueIndex, unique: true})
	}
}

// choosePrimaryKey applies explicit key options, or defaults a top-level field named Id.
func (st *buildState) choosePrimaryKey(es *entityState) {
	var keys []keyCandidate
	for _, c := range es.keyCands {
		if c.opts.PrimaryKey != nil && *c.opts.PrimaryKey {
			keys = append(keys, c)
		}
	}
	if len(keys) == 0 {
		for _, c := range es.keyCands {
			if equalFold(c.field.FieldName(), "id") && (c.opts.PrimaryKey == nil || *c.opts.PrimaryKey) {
				keys = append(keys, c)
				break
			}
		}
	}

	for _, k := range keys {
		switch f := k.field.(type) {
		case *ValueField:
			col := f.Column
			col.PrimaryKey = true
			col.Nullable = false
			if k.opts.AutoIncrement != nil {
				col.AutoIncrement = *k.opts.AutoIncrement
			} else {
				col.AutoIncrement = col.Type.Kind.IsInteger() && len(keys) == 1
			}
			if k.opts.ClientGenerated != nil {
				col.ClientGenerated = *k.opts.ClientGenerated
			} else {
				col.ClientGenerated = col.Type.Kind == KindUUID
			}
			if col.AutoIncrement && !col.Type.Kind.IsInteger() {
				st.fail(es, f.Name, fmt.Errorf("%w: autoincrement on a %s column", ErrInvalidOption, col.Type))
			}
			if col.AutoIncrement && col.ClientGenerated {
				st.fail(es, f.Name, fmt.Errorf("%w: a key cannot be both autoincrement and client generated", ErrInvalidOption))
			}
		case *SingleRelatedField:
			// completed in phase 2 once the target key exists
		case *EmbeddedField:
			st.fail(es, f.Name, fmt.Errorf("%w: an embedded object cannot be a primary key", ErrInvalidOption))
			continue
		case *ManyRelatedField:
			continue
		default:
			panic(fmt.Sprintf("metadata: unknown field variant %T", f))
		}
		es.schema.PrimaryKey = append(es.schema.PrimaryKey, k.field)
	}
}

func (st *buildState) checkUnusedPaths(es *entityState) {
	paths := make([]string, 0, len(es.def.opts.Fields))
	for path := range es.def.opts.Fields {
		if !es.usedPaths[path] {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		st.fail(es, path, fmt.Errorf("%w: customized field does not exist", ErrInvalidOption))
	}
}

// keyOrder sorts entities so that every entity comes after the targets of its
// relationship-valued primary key fields.
func (st *buildState) keyOrder() ([]*entityState, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*entityState]int, len(st.ordered))
	var order, stack []*entityState

	var visit func(es *entityState) error
	visit = func(es *entityState) error {
		switch state[es] {
		case done:
			return nil
		case visiting:
			var chain []string
			start := 0
			for i, s := range stack {
				if s == es {
					start = i
					break
				}
			}
			for _, s := range stack[start:] {
				chain = append(chain, s.schema.Name)
			}
			chain = append(chain, es.schema.Name)
			return &CyclicDependencyError{Chain: chain}
		}
		state[es] = visiting
		stack = append(stack, es)
		for _, f := range es.schema.PrimaryKey {
			sf, ok := f.(*SingleRelatedField)
			if !ok {
				continue
			}
			if err := visit(st.entities[sf.Related.Type]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[es] = done
		order = append(order, es)
		return nil
	}

	for _, es := range st.ordered {
		if err := visit(es); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// tableOrder places referenced tables before the tables holding foreign keys to them.
// Reference cycles outside primary keys are legal and broken at the back edge.
func (st *buildState) tableOrder() []*entityState {
	visited := make(map[*entityState]bool, len(st.ordered))
	var order []*entityState
	var visit func(es *entityState)
	visit = func(es *entityState) {
		if visited[es] {
			return
		}
		visited[es] = true
		var walk func(fields []Field)
		walk = func(fields []Field) {
			for _, f := range fields {
				switch f := f.(type) {
				case *SingleRelatedField:
					visit(st.entities[f.Related.Type])
				case *EmbeddedField:
					walk(f.Fields)
				}
			}
		}
		walk(es.schema.Fields)
		order = append(order, es)
	}
	for _, es := range st.ordered {
		visit(es)
	}
	return order
}

// resolveKey completes relationship-valued key fields. Targets are already resolved.
func (st *buildState) resolveKey(es *entityState) {
	for _, p := range es.pending {
		sf, ok := p.field.(*SingleRelatedField)
		if !ok || !es.schema.IsPrimaryKey(sf) {
			continue
		}
		p.nullable = false
		st.resolveRelation(es, p)
		for _, fk := range sf.ForeignKeys {
			fk.Column.PrimaryKey = true
		}
	}
}

func (st *buildState) resolveRelation(es *entityState, p *pendingRelation) {
	if p.resolved {
		return
	}
	p.resolved = true
	naming := st.b.naming

	switch f := p.field.(type) {
	case *SingleRelatedField:
		targetCols := f.Related.PrimaryKeyColumns()
		if len(targetCols) == 0 {
			st.fail(es, p.path, fmt.Errorf("%w: %s: %w", ErrUnresolvedRelation, f.Related.Name, ErrNoPrimaryKey))
			return
		}
		for _, tc := range targetCols {
			name := p.colPrefix + naming.ForeignKeyName(f.Name, tc.Name)
			if p.opts.Column != "" && len(targetCols) == 1 {
				name = p.colPrefix + p.opts.Column
			}
			nullable := p.nullable
			if p.opts.Nullable != nil {
				nullable = *p.opts.Nullable
			}
			col := &Column{Name: name, Type: tc.Type, Nullable: nullable, Unique: p.opts.Unique}
			st.requestIndexes(es, col, p.opts)
			f.ForeignKeys = append(f.ForeignKeys, ForeignKey{Column: col, Target: tc})
		}

	case *ManyRelatedField:
		localCols := es.schema.PrimaryKeyColumns()
		targetCols := f.Related.PrimaryKeyColumns()
		if len(localCols) == 0 {
			st.fail(es, p.path, fmt.Errorf("%w: %s: %w", ErrUnresolvedRelation, es.schema.Name, ErrNoPrimaryKey))
			return
		}
		if len(targetCols) == 0 {
			st.fail(es, p.path, fmt.Errorf("%w: %s: %w", ErrUnresolvedRelation, f.Related.Name, ErrNoPrimaryKey))
			return
		}
		junctionName := naming.JunctionTableName(es.schema.Table.Name, f.Name)
		if p.opts.Column != "" {
			junctionName = p.opts.Column
		}
		junction := &Table{
			Name:    junctionName,
			Kind:    JunctionTable,
			Relates: [2]reflect.Type{es.schema.Type, f.Related.Type},
		}
		taken := make(map[string]bool)
		for _, lc := range localCols {
			col := &Column{Name: naming.JunctionColumnName(es.schema.Name, lc.Name), Type: lc.Type, PrimaryKey: true}
			taken[col.Name] = true
			f.Local = append(f.Local, ForeignKey{Column: col, Target: lc})
		}
		for _, tc := range targetCols {
			name := naming.JunctionColumnName(f.Related.Name, tc.Name)
			if taken[name] {
				name = "related_" + name
			}
			col := &Column{Name: name, Type: tc.Type, PrimaryKey: true}
			f.ForeignKeys = append(f.ForeignKeys, ForeignKey{Column: col, Target: tc})
		}
		for _, fk := range append(append([]ForeignKey(nil), f.Local...), f.ForeignKeys...) {
			junction.Columns = append(junction.Columns, fk.Column)
			junction.PrimaryKey = append(junction.PrimaryKey, fk.Column.Name)
		}
		f.Junction = junction
		es.schema.Junctions = append(es.schema.Junctions, junction)

	default:
		panic(fmt.Sprintf("metadata: unexpected pending field %T", f))
	}
}

func (st *buildState) finalizeTable(es *entityState) {
	table := es.schema.Table
	seen := make(map[string]bool)
	for _, f := range es.schema.Fields {
		for _, col := range Columns(f) {
			if seen[col.Name] {
				st.fail(es, f.FieldName(), fmt.Errorf("%w: column %q in table %q", ErrDuplicateName, col.Name, table.Name))
				continue
			}
			seen[col.Name] = true
			table.Columns = append(table.Columns, col)
		}
	}
	for _, col := range es.schema.PrimaryKeyColumns() {
		table.PrimaryKey = append(table.PrimaryKey, col.Name)
	}

	byName := make(map[string]*Index)
	for _, req := range es.indexes {
		name := req.name
		if name == "-" {
			name = st.b.naming.IndexName(table.Name, req.column.Name, req.unique)
		}
		idx, ok := byName[name]
		if !ok {
			idx = &Index{Name: name, Unique: req.unique}
			byName[name] = idx
			table.Indexes = append(table.Indexes, idx)
		} else if idx.Unique != req.unique {
			st.fail(es, req.column.Name, fmt.Errorf("%w: index %q declared both unique and non-unique", ErrInvalidOption, name))
			continue
		}
		idx.Columns = append(idx.Columns, req.column.Name)
	}
}

func (st *buildState) checkTableNames(tables []*Table) {
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		if seen[key] {
			st.errs = append(st.errs, &SchemaError{Entity: t.Name, Err: fmt.Errorf("%w: table %q", ErrDuplicateName, t.Name)})
			continue
		}
		seen[key] = true
	}
}
