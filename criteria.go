package gdao

import (
	"context"
	"fmt"
)

// =====================================
// Criteria API
// =====================================

// From is a query source: the root entity or a joined relation
type From struct {
	alias string
}

// Get returns a path to a column of this source
func (f From) Get(column string) Path {
	return Path{Table: f.alias, Column: column}
}

// Alias returns the table name or join alias qualifying this source's columns
func (f From) Alias() string { return f.alias }

// CriteriaQuery builds a Query against entity X from explicit roots, joins,
// predicates and orders. Construction errors are kept and returned by Build.
type CriteriaQuery[X any] struct {
	model model
	query Query
	err   error
}

// NewCriteriaQuery starts a criteria query rooted at the entity
func NewCriteriaQuery[X any, ID comparable](e *Entity[X, ID]) *CriteriaQuery[X] {
	return &CriteriaQuery[X]{
		model: e,
		query: Query{Table: e.Table(), IDColumn: e.IDColumn()},
	}
}

// Root returns the query root
func (c *CriteriaQuery[X]) Root() From {
	return From{alias: c.query.Table}
}

// Join adds an inner join on the named one-to-many relation of the root.
// Joining the same relation twice reuses the first join.
func (c *CriteriaQuery[X]) Join(relation string) From {
	j, ok := c.model.relation(relation)
	if !ok {
		c.fail(NewError(ErrorTypeInvalidArgument, fmt.Sprintf("unknown relation %q on %s", relation, c.query.Table)))
		return From{alias: relation}
	}
	for _, existing := range c.query.Joins {
		if existing.Alias == j.Alias {
			return From{alias: j.Alias}
		}
	}
	c.query.Joins = append(c.query.Joins, j)
	return From{alias: j.Alias}
}

// Select restricts the selected columns. No expressions selects the root entity.
func (c *CriteriaQuery[X]) Select(exprs ...Expression) *CriteriaQuery[X] {
	fields := make([]Path, 0, len(exprs))
	for _, e := range exprs {
		fields = append(fields, e.Path())
	}
	c.query.Fields = fields
	return c
}

// Where adds restrictions; all restrictions of a query are ANDed.
// Pointer predicates are stored by value; a nil pointer fails the query.
func (c *CriteriaQuery[X]) Where(predicates ...Predicate) *CriteriaQuery[X] {
	for _, p := range predicates {
		if p == nil {
			continue
		}
		n, err := NormalizePredicate(p)
		if err != nil {
			c.fail(err)
			continue
		}
		c.query.Where = append(c.query.Where, n)
	}
	return c
}

// OrderBy appends sort keys in declaration order
func (c *CriteriaQuery[X]) OrderBy(orders ...Order) *CriteriaQuery[X] {
	c.query.Orders = append(c.query.Orders, orders...)
	return c
}

// Distinct removes duplicate root rows introduced by joins
func (c *CriteriaQuery[X]) Distinct(distinct bool) *CriteriaQuery[X] {
	c.query.Distinct = distinct
	return c
}

// Err returns the first construction error
func (c *CriteriaQuery[X]) Err() error { return c.err }

// Build returns the query descriptor
func (c *CriteriaQuery[X]) Build() (Query, error) {
	if c.err != nil {
		return Query{}, c.err
	}
	q := c.query
	q.Fields = append([]Path(nil), q.Fields...)
	q.Joins = append([]JoinClause(nil), q.Joins...)
	q.Where = append([]Predicate(nil), q.Where...)
	q.Orders = append([]Order(nil), q.Orders...)
	return q, nil
}

func (c *CriteriaQuery[X]) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// =====================================
// Typed Query Execution
// =====================================

// TypedQuery executes a built query in a session and returns entities of X
type TypedQuery[X any] struct {
	session     Session
	build       func() (Query, error)
	firstResult int
	maxResults  int
}

// NewTypedQuery prepares a criteria query for execution in the session
func NewTypedQuery[X any](s Session, cq *CriteriaQuery[X]) *TypedQuery[X] {
	return &TypedQuery[X]{session: s, build: cq.Build}
}

// SetFirstResult skips the first n results
func (t *TypedQuery[X]) SetFirstResult(n int) *TypedQuery[X] {
	t.firstResult = n
	return t
}

// SetMaxResults limits the number of results; n <= 0 means unbounded
func (t *TypedQuery[X]) SetMaxResults(n int) *TypedQuery[X] {
	t.maxResults = n
	return t
}

// Query returns the descriptor that will be executed
func (t *TypedQuery[X]) Query() (Query, error) {
	q, err := t.build()
	if err != nil {
		return Query{}, err
	}
	if t.firstResult > 0 {
		q.Offset = t.firstResult
	}
	if t.maxResults > 0 {
		q.Limit = t.maxResults
	}
	return q, nil
}

// ResultList executes the query and returns every match
func (t *TypedQuery[X]) ResultList(ctx context.Context) ([]*X, error) {
	q, err := t.Query()
	if err != nil {
		return nil, err
	}
	var results []*X
	if err := t.session.List(ctx, &results, q); err != nil {
		return nil, err
	}
	if results == nil {
		results = []*X{}
	}
	return results, nil
}

// SingleResult executes the query and returns its only match. It fails with
// a not-found error when nothing matches and a validation error when more
// than one row does.
func (t *TypedQuery[X]) SingleResult(ctx context.Context) (*X, error) {
	q, err := t.Query()
	if err != nil {
		return nil, err
	}
	q.Limit = 2
	var results []*X
	if err := t.session.List(ctx, &results, q); err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, NewError(ErrorTypeNotFound, "query returned no result")
	case 1:
		return results[0], nil
	default:
		return nil, NewError(ErrorTypeValidation, "query returned more than one result")
	}
}
