package query

import (
	"fmt"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Link builds the junction rows adding related entities to the collection field of owner.
func Link(s *metadata.Schema, owner any, field string, related ...any) (*Plan, error) {
	const op = "link"
	_, many, ownerKeys, err := collection(s, op, owner, field)
	if err != nil {
		return nil, err
	}
	if len(related) == 0 {
		return nil, usage(op, "nothing to link")
	}
	ins := junctionInsert(many)
	for i, r := range related {
		rv, ok := entityValue(many.Related, r)
		if !ok {
			return nil, usage(op, "related %d must be a %s, got %T", i, many.Related.Name, r)
		}
		ins.Rows = append(ins.Rows, junctionRow(many, ownerKeys, keyValues(many.Related, rv)))
	}
	p := newPlan()
	p.Statement.Append(ins)
	return p, nil
}

// Unlink builds the DELETE removing related entities from the collection field of owner.
// Without related entities every link of owner through field is removed.
func Unlink(s *metadata.Schema, owner any, field string, related ...any) (*Plan, error) {
	const op = "unlink"
	_, many, ownerKeys, err := collection(s, op, owner, field)
	if err != nil {
		return nil, err
	}
	table := many.Junction.Name
	where := keyCondition(table, fkColumns(many.Local), []columnValues{ownerKeys})
	if len(related) > 0 {
		rows := make([]columnValues, len(related))
		for i, r := range related {
			rv, ok := entityValue(many.Related, r)
			if !ok {
				return nil, usage(op, "related %d must be a %s, got %T", i, many.Related.Name, r)
			}
			rows[i] = remap(keyValues(many.Related, rv), many.ForeignKeys)
		}
		where = sqlast.And(where, keyCondition(table, fkColumns(many.ForeignKeys), rows))
	}
	p := newPlan()
	p.Statement.Append(&sqlast.Delete{Table: table, Where: where})
	return p, nil
}

// collection resolves owner and its many-to-many field, and returns the owner key values
// renamed to the junction columns.
func collection(s *metadata.Schema, op string, owner any, field string) (*metadata.EntitySchema, *metadata.ManyRelatedField, columnValues, error) {
	e, err := s.EntityOf(owner)
	if err != nil {
		return nil, nil, nil, usageErr(op, err)
	}
	ov, ok := entityValue(e, owner)
	if !ok {
		return nil, nil, nil, usage(op, "owner must be a non-nil %s, got %T", e.Name, owner)
	}
	many, ok := e.Field(field).(*metadata.ManyRelatedField)
	if !ok {
		return nil, nil, nil, usageErr(op, fmt.Errorf("%w: %s.%s is not a many-to-many field", ErrUsage, e.Name, field))
	}
	return e, many, remap(keyValues(e, ov), many.Local), nil
}
