package gdao

import (
	"fmt"
	"strings"
)

// =====================================
// Query Model
// =====================================

// Expression is anything that resolves to a column reference
type Expression interface {
	Path() Path
}

// Path references a column, optionally qualified by a table or join alias.
// An empty Table leaves the column unqualified.
type Path struct {
	Table  string
	Column string
}

// Path implements Expression
func (p Path) Path() Path { return p }

func (p Path) String() string {
	if p.Table == "" {
		return p.Column
	}
	return p.Table + "." + p.Column
}

// Predicate represents a filter expression understood by session providers
type Predicate interface {
	String() string
	predicate()
}

// BasicPredicate compares a column against a value
type BasicPredicate struct {
	Field Path
	Op    Operator
	Value interface{}
}

func (BasicPredicate) predicate() {}

func (p BasicPredicate) String() string {
	switch p.Op {
	case OpIsNull, OpIsNotNull:
		return p.Field.String() + " " + string(p.Op)
	case OpIn, OpNotIn:
		return p.Field.String() + " " + string(p.Op) + " (?)"
	default:
		return p.Field.String() + " " + string(p.Op) + " ?"
	}
}

// Values returns the operand of an IN/NOT IN predicate as a slice
func (p BasicPredicate) Values() []interface{} {
	if values, ok := p.Value.([]interface{}); ok {
		return values
	}
	return nil
}

// CompositePredicate combines predicates with AND/OR.
// An empty AND is always true, an empty OR is always false.
type CompositePredicate struct {
	Predicates []Predicate
	Logic      LogicOperator
}

func (CompositePredicate) predicate() {}

func (p CompositePredicate) String() string {
	if len(p.Predicates) == 0 {
		if p.Logic == LogicOr {
			return "FALSE"
		}
		return "TRUE"
	}

	parts := make([]string, 0, len(p.Predicates))
	for _, pred := range p.Predicates {
		parts = append(parts, pred.String())
	}

	return "(" + strings.Join(parts, " "+string(p.Logic)+" ") + ")"
}

// NormalizePredicate returns p with every pointer predicate, at any depth,
// replaced by its value. Providers only translate value predicates.
func NormalizePredicate(p Predicate) (Predicate, error) {
	switch pred := p.(type) {
	case BasicPredicate:
		return pred, nil
	case *BasicPredicate:
		if pred == nil {
			return nil, NewError(ErrorTypeInvalidArgument, "nil predicate")
		}
		return *pred, nil
	case CompositePredicate:
		return normalizeComposite(pred)
	case *CompositePredicate:
		if pred == nil {
			return nil, NewError(ErrorTypeInvalidArgument, "nil predicate")
		}
		return normalizeComposite(*pred)
	case nil:
		return nil, NewError(ErrorTypeInvalidArgument, "nil predicate")
	default:
		return nil, UnsupportedPredicate(p)
	}
}

func normalizeComposite(c CompositePredicate) (Predicate, error) {
	if len(c.Predicates) == 0 {
		return c, nil
	}
	children := make([]Predicate, 0, len(c.Predicates))
	for _, child := range c.Predicates {
		n, err := NormalizePredicate(child)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return CompositePredicate{Predicates: children, Logic: c.Logic}, nil
}

// UnsupportedPredicate reports a predicate a provider cannot translate
func UnsupportedPredicate(p Predicate) error {
	return NewError(ErrorTypeUnsupported, fmt.Sprintf("unsupported predicate type %T", p))
}

// =====================================
// Predicate Constructors
// =====================================

func compare(e Expression, op Operator, value interface{}) Predicate {
	return BasicPredicate{Field: e.Path(), Op: op, Value: value}
}

// Equal creates an equality predicate
func Equal(e Expression, value interface{}) Predicate { return compare(e, OpEqual, value) }

// NotEqual creates an inequality predicate
func NotEqual(e Expression, value interface{}) Predicate { return compare(e, OpNotEqual, value) }

// Gt creates a greater-than predicate
func Gt(e Expression, value interface{}) Predicate { return compare(e, OpGreaterThan, value) }

// Ge creates a greater-than-or-equal predicate
func Ge(e Expression, value interface{}) Predicate {
	return compare(e, OpGreaterThanOrEqual, value)
}

// Lt creates a less-than predicate
func Lt(e Expression, value interface{}) Predicate { return compare(e, OpLessThan, value) }

// Le creates a less-than-or-equal predicate
func Le(e Expression, value interface{}) Predicate { return compare(e, OpLessThanOrEqual, value) }

// Like creates a LIKE predicate. The pattern uses SQL wildcards (% and _).
func Like(e Expression, pattern string) Predicate { return compare(e, OpLike, pattern) }

// NotLike creates a NOT LIKE predicate
func NotLike(e Expression, pattern string) Predicate { return compare(e, OpNotLike, pattern) }

// In creates an IN predicate. An empty value list matches nothing.
func In(e Expression, values ...interface{}) Predicate {
	return compare(e, OpIn, append([]interface{}{}, values...))
}

// NotIn creates a NOT IN predicate. An empty value list matches everything.
func NotIn(e Expression, values ...interface{}) Predicate {
	return compare(e, OpNotIn, append([]interface{}{}, values...))
}

// IsNull creates an IS NULL predicate
func IsNull(e Expression) Predicate { return compare(e, OpIsNull, nil) }

// IsNotNull creates an IS NOT NULL predicate
func IsNotNull(e Expression) Predicate { return compare(e, OpIsNotNull, nil) }

// And combines predicates with AND
func And(predicates ...Predicate) Predicate {
	return CompositePredicate{Predicates: predicates, Logic: LogicAnd}
}

// Or combines predicates with OR
func Or(predicates ...Predicate) Predicate {
	return CompositePredicate{Predicates: predicates, Logic: LogicOr}
}

// =====================================
// Ordering and Joins
// =====================================

// Order represents a sort key
type Order struct {
	Field     Path
	Direction OrderDirection
}

func (o Order) String() string {
	return o.Field.String() + " " + string(o.Direction)
}

// Asc sorts by the expression in ascending order
func Asc(e Expression) Order { return Order{Field: e.Path(), Direction: OrderAsc} }

// Desc sorts by the expression in descending order
func Desc(e Expression) Order { return Order{Field: e.Path(), Direction: OrderDesc} }

// JoinClause represents a one-to-many join from the query root to a child table.
// The join condition is Alias.ForeignKey = Root.ParentKey.
type JoinClause struct {
	Type       JoinType
	Table      string
	Alias      string
	ForeignKey string
	ParentKey  string
}

// Query is the descriptor handed to a session provider for execution
type Query struct {
	Table    string
	IDColumn string
	Fields   []Path
	Joins    []JoinClause
	Where    []Predicate
	Orders   []Order
	Distinct bool
	Offset   int
	Limit    int
}

// Root returns a path to the given column of the query root
func (q Query) Root(column string) Path {
	return Path{Table: q.Table, Column: column}
}

// ID returns a path to the root identifier column
func (q Query) ID() Path {
	return q.Root(q.IDColumn)
}

// Normalize returns a copy of q whose predicates are all value predicates
func (q Query) Normalize() (Query, error) {
	if len(q.Where) == 0 {
		return q, nil
	}
	where := make([]Predicate, 0, len(q.Where))
	for _, p := range q.Where {
		n, err := NormalizePredicate(p)
		if err != nil {
			return Query{}, err
		}
		where = append(where, n)
	}
	q.Where = where
	return q, nil
}

// Condition returns the query's predicates combined into one, or nil if there are none
func (q Query) Condition() Predicate {
	switch len(q.Where) {
	case 0:
		return nil
	case 1:
		return q.Where[0]
	default:
		return And(q.Where...)
	}
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(q.Fields) == 0 {
		b.WriteString(q.Table + ".*")
	} else {
		fields := make([]string, len(q.Fields))
		for i, f := range q.Fields {
			fields[i] = f.String()
		}
		b.WriteString(strings.Join(fields, ", "))
	}
	b.WriteString(" FROM " + q.Table)
	for _, j := range q.Joins {
		b.WriteString(" " + string(j.Type) + " JOIN " + j.Table + " " + j.Alias +
			" ON " + j.Alias + "." + j.ForeignKey + " = " + q.Table + "." + j.ParentKey)
	}
	if cond := q.Condition(); cond != nil {
		b.WriteString(" WHERE " + cond.String())
	}
	if len(q.Orders) > 0 {
		orders := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			orders[i] = o.String()
		}
		b.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	return b.String()
}
