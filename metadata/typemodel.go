package metadata

import "reflect"

// TypeField is one declared field of a struct type as seen by the schema builder.
type TypeField struct {
	Name     string
	Type     reflect.Type
	Index    []int
	Tag      reflect.StructTag
	Readable bool
	Writable bool
}

// DeclaredFields returns the exported fields of a struct type in declaration order.
// Anonymous struct fields are flattened in place; a shallower field shadows a promoted one of
// the same name.
func DeclaredFields(t reflect.Type) []TypeField {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	direct := make(map[string]bool)
	for i := range t.NumField() {
		sf := t.Field(i)
		if !isPromoted(sf) && sf.IsExported() {
			direct[sf.Name] = true
		}
	}

	var out []TypeField
	seen := make(map[string]bool)
	for i := range t.NumField() {
		sf := t.Field(i)
		if isPromoted(sf) {
			for _, inner := range DeclaredFields(sf.Type) {
				if direct[inner.Name] || seen[inner.Name] {
					continue
				}
				seen[inner.Name] = true
				inner.Index = append([]int{i}, inner.Index...)
				out = append(out, inner)
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		seen[sf.Name] = true
		out = append(out, TypeField{
			Name:     sf.Name,
			Type:     sf.Type,
			Index:    []int{i},
			Tag:      sf.Tag,
			Readable: true,
			Writable: true,
		})
	}
	return out
}

// isPromoted reports whether an anonymous field is a plain struct whose fields get flattened.
func isPromoted(sf reflect.StructField) bool {
	return sf.Anonymous && sf.Type.Kind() == reflect.Struct && !IsScalar(sf.Type)
}
