package gdao

import (
	"fmt"
)

// =====================================
// Query DSL
// =====================================

// QueryContext is the entry point of the query DSL. Each builder call is
// translated into exactly one CriteriaQuery construction.
//
//	people, err := gdao.CreateQuery(s, person.Model, func(q *gdao.QueryContext[person.Person]) {
//		q.Where(func(w *gdao.WhereBuilder[person.Person]) {
//			w.Like(person.Name, "%te%")
//			w.Ge(person.Age, 18)
//		})
//		q.OrderBy(func(o *gdao.OrderByBuilder[person.Person]) {
//			o.Asc(person.Age)
//		})
//	}).ResultList(ctx)
type QueryContext[X any] struct {
	criteria *CriteriaQuery[X]
	scope    string
	err      error
}

// NewQueryContext starts a DSL query rooted at the entity
func NewQueryContext[X any, ID comparable](e *Entity[X, ID]) *QueryContext[X] {
	return &QueryContext[X]{criteria: NewCriteriaQuery(e)}
}

// Criteria exposes the underlying criteria query
func (q *QueryContext[X]) Criteria() *CriteriaQuery[X] { return q.criteria }

// Root returns the query root
func (q *QueryContext[X]) Root() From { return q.criteria.Root() }

// Where opens a predicate scope; predicates collected in it are ANDed with
// those of earlier scopes.
func (q *QueryContext[X]) Where(fn func(w *WhereBuilder[X])) {
	w := &WhereBuilder[X]{}
	if !q.enter("Where", func() { fn(w) }) {
		return
	}
	q.criteria.Where(w.predicates...)
}

// OrderBy opens an ordering scope; keys apply in declaration order
func (q *QueryContext[X]) OrderBy(fn func(o *OrderByBuilder[X])) {
	o := &OrderByBuilder[X]{}
	if !q.enter("OrderBy", func() { fn(o) }) {
		return
	}
	q.criteria.OrderBy(o.orders...)
}

// Select restricts the selected columns
func (q *QueryContext[X]) Select(exprs ...Expression) {
	if q.rejectNested("Select") {
		return
	}
	q.criteria.Select(exprs...)
}

// Distinct removes duplicate root rows introduced by joins
func (q *QueryContext[X]) Distinct(distinct bool) {
	q.criteria.Distinct(distinct)
}

// Err returns the first error recorded while building
func (q *QueryContext[X]) Err() error {
	if q.err != nil {
		return q.err
	}
	return q.criteria.Err()
}

// Build returns the query descriptor or the first builder error
func (q *QueryContext[X]) Build() (Query, error) {
	if q.err != nil {
		return Query{}, q.err
	}
	return q.criteria.Build()
}

func (q *QueryContext[X]) enter(name string, fn func()) bool {
	if q.rejectNested(name) {
		return false
	}
	q.scope = name
	defer func() { q.scope = "" }()
	fn()
	return true
}

func (q *QueryContext[X]) rejectNested(name string) bool {
	if q.scope == "" {
		return false
	}
	if q.err == nil {
		q.err = NewError(ErrorTypeUnsupported,
			fmt.Sprintf("query builders can't be nested: %s called inside %s", name, q.scope))
	}
	return true
}

// CreateQuery builds a DSL query and prepares it for execution in the session
func CreateQuery[X any, ID comparable](s Session, e *Entity[X, ID], fn func(q *QueryContext[X])) *TypedQuery[X] {
	q := NewQueryContext(e)
	fn(q)
	return &TypedQuery[X]{session: s, build: q.Build}
}

// =====================================
// Where Builder
// =====================================

// WhereBuilder collects predicates; predicates of one scope are ANDed
type WhereBuilder[X any] struct {
	predicates []Predicate
}

func (w *WhereBuilder[X]) add(p Predicate) *WhereBuilder[X] {
	w.predicates = append(w.predicates, p)
	return w
}

// Equal adds e = v
func (w *WhereBuilder[X]) Equal(e Expression, v interface{}) *WhereBuilder[X] {
	return w.add(Equal(e, v))
}

// NotEqual adds e <> v
func (w *WhereBuilder[X]) NotEqual(e Expression, v interface{}) *WhereBuilder[X] {
	return w.add(NotEqual(e, v))
}

// Lt adds e < v
func (w *WhereBuilder[X]) Lt(e Expression, v interface{}) *WhereBuilder[X] { return w.add(Lt(e, v)) }

// Le adds e <= v
func (w *WhereBuilder[X]) Le(e Expression, v interface{}) *WhereBuilder[X] { return w.add(Le(e, v)) }

// Gt adds e > v
func (w *WhereBuilder[X]) Gt(e Expression, v interface{}) *WhereBuilder[X] { return w.add(Gt(e, v)) }

// Ge adds e >= v
func (w *WhereBuilder[X]) Ge(e Expression, v interface{}) *WhereBuilder[X] { return w.add(Ge(e, v)) }

// Like adds a LIKE pattern match
func (w *WhereBuilder[X]) Like(e Expression, pattern string) *WhereBuilder[X] {
	return w.add(Like(e, pattern))
}

// NotLike adds a NOT LIKE pattern match
func (w *WhereBuilder[X]) NotLike(e Expression, pattern string) *WhereBuilder[X] {
	return w.add(NotLike(e, pattern))
}

// In adds a membership test; no values matches nothing
func (w *WhereBuilder[X]) In(e Expression, values ...interface{}) *WhereBuilder[X] {
	return w.add(In(e, values...))
}

// IsNull adds e IS NULL
func (w *WhereBuilder[X]) IsNull(e Expression) *WhereBuilder[X] { return w.add(IsNull(e)) }

// IsNotNull adds e IS NOT NULL
func (w *WhereBuilder[X]) IsNotNull(e Expression) *WhereBuilder[X] { return w.add(IsNotNull(e)) }

// Add appends prebuilt predicates, such as those of typed attributes
func (w *WhereBuilder[X]) Add(predicates ...Predicate) *WhereBuilder[X] {
	for _, p := range predicates {
		if p != nil {
			w.add(p)
		}
	}
	return w
}

// And nests a scope whose predicates are ANDed. An empty scope adds nothing.
func (w *WhereBuilder[X]) And(fn func(w *WhereBuilder[X])) *WhereBuilder[X] {
	return w.nest(LogicAnd, fn)
}

// Or nests a scope whose predicates are ORed. An empty scope adds nothing.
func (w *WhereBuilder[X]) Or(fn func(w *WhereBuilder[X])) *WhereBuilder[X] {
	return w.nest(LogicOr, fn)
}

func (w *WhereBuilder[X]) nest(logic LogicOperator, fn func(w *WhereBuilder[X])) *WhereBuilder[X] {
	sub := &WhereBuilder[X]{}
	fn(sub)
	if len(sub.predicates) == 0 {
		return w
	}
	return w.add(CompositePredicate{Predicates: sub.predicates, Logic: logic})
}

// Predicates returns the predicates collected so far
func (w *WhereBuilder[X]) Predicates() []Predicate {
	return append([]Predicate(nil), w.predicates...)
}

// =====================================
// Order By Builder
// =====================================

// OrderByBuilder collects sort keys
type OrderByBuilder[X any] struct {
	orders []Order
}

// Asc sorts ascending by e
func (o *OrderByBuilder[X]) Asc(e Expression) *OrderByBuilder[X] {
	o.orders = append(o.orders, Asc(e))
	return o
}

// Desc sorts descending by e
func (o *OrderByBuilder[X]) Desc(e Expression) *OrderByBuilder[X] {
	o.orders = append(o.orders, Desc(e))
	return o
}

// Orders returns the sort keys collected so far
func (o *OrderByBuilder[X]) Orders() []Order {
	return append([]Order(nil), o.orders...)
}

// =====================================
// Joins
// =====================================

// JoinPath references columns of a joined child entity C
type JoinPath[C any] struct {
	from From
}

// Get returns the path of a child attribute through the join alias
func (j JoinPath[C]) Get(a Attribute[C]) Path {
	return j.from.Get(a.Column())
}

// Alias returns the join alias
func (j JoinPath[C]) Alias() string { return j.from.Alias() }

// Join expands a one-to-many collection of the query root into a joined path
func Join[X any, C any](q *QueryContext[X], c *Collection[X, C]) JoinPath[C] {
	return JoinPath[C]{from: q.criteria.Join(c.Name())}
}
