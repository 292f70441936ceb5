package query

import (
	"reflect"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Plan is the ordered statement list of one write operation and the key write-backs to apply
// once it ran.
type Plan struct {
	Statement  *sqlast.Composite
	Writebacks []Writeback
}

// Writeback copies the key read by the statement at Index into Target.
type Writeback struct {
	Index  int
	Column *metadata.Column
	// Target is the settable key field of the inserted entity.
	Target reflect.Value
	// Entity is the inserted entity, for the links emitted once its key is known.
	Entity reflect.Value
}

// Len is the number of statements.
func (p *Plan) Len() int { return len(p.Statement.Statements) }

func newPlan() *Plan { return &Plan{Statement: &sqlast.Composite{}} }
