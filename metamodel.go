package gdao

import (
	"context"
)

// =====================================
// Entity Metamodel
// =====================================

// model is the untyped view of an entity used while building queries
type model interface {
	Table() string
	IDColumn() string
	relation(name string) (JoinClause, bool)
}

// owned is a child collection whose lifecycle follows its parent
type owned[X any] interface {
	relationName() string
	joinClause() JoinClause
	cascadeSave(ctx context.Context, s Session, parent *X, removeOrphans bool) error
	cascadeDelete(ctx context.Context, s Session, parent *X) error
	fetch(ctx context.Context, s Session, parents []*X) error
}

// Entity maps a Go struct to its table and identifier column. Entities are
// declared once per type, next to the struct, together with their attributes
// and collections.
type Entity[X any, ID comparable] struct {
	table    string
	idColumn string
	id       func(*X) ID
	owned    []owned[X]
}

// NewEntity declares an entity stored in table with the given identifier
// column. The id accessor returns the zero ID for transient instances.
func NewEntity[X any, ID comparable](table, idColumn string, id func(*X) ID) *Entity[X, ID] {
	return &Entity[X, ID]{table: table, idColumn: idColumn, id: id}
}

// Table returns the table (or collection) name
func (e *Entity[X, ID]) Table() string { return e.table }

// IDColumn returns the identifier column name
func (e *Entity[X, ID]) IDColumn() string { return e.idColumn }

// ID returns the identifier of x
func (e *Entity[X, ID]) ID(x *X) ID { return e.id(x) }

// HasID reports whether x has been assigned an identifier
func (e *Entity[X, ID]) HasID(x *X) bool {
	var zero ID
	return e.id(x) != zero
}

// New allocates a zero instance
func (e *Entity[X, ID]) New() *X { return new(X) }

// Get returns a path to a root column
func (e *Entity[X, ID]) Get(column string) Path {
	return Path{Table: e.table, Column: column}
}

// Relations returns the names of the owned collections
func (e *Entity[X, ID]) Relations() []string {
	names := make([]string, 0, len(e.owned))
	for _, o := range e.owned {
		names = append(names, o.relationName())
	}
	return names
}

func (e *Entity[X, ID]) relation(name string) (JoinClause, bool) {
	for _, o := range e.owned {
		if o.relationName() == name {
			return o.joinClause(), true
		}
	}
	return JoinClause{}, false
}

// =====================================
// Attributes
// =====================================

// Attribute is a typed reference to a column of X
type Attribute[X any] interface {
	Expression
	Column() string
	attributeOf(*X)
}

type attribute[X any] struct {
	path Path
}

func (a attribute[X]) Path() Path     { return a.path }
func (a attribute[X]) Column() string { return a.path.Column }
func (a attribute[X]) attributeOf(*X) {}

func newAttribute[X any, ID comparable](e *Entity[X, ID], column string) attribute[X] {
	return attribute[X]{path: e.Get(column)}
}

// StringAttribute is a text column
type StringAttribute[X any] struct {
	attribute[X]
}

// NewStringAttribute declares a text column of the entity
func NewStringAttribute[X any, ID comparable](e *Entity[X, ID], column string) StringAttribute[X] {
	return StringAttribute[X]{newAttribute(e, column)}
}

func (a StringAttribute[X]) Equal(v string) Predicate    { return Equal(a, v) }
func (a StringAttribute[X]) NotEqual(v string) Predicate { return NotEqual(a, v) }
func (a StringAttribute[X]) Like(p string) Predicate     { return Like(a, p) }
func (a StringAttribute[X]) NotLike(p string) Predicate  { return NotLike(a, p) }
func (a StringAttribute[X]) IsNull() Predicate           { return IsNull(a) }

func (a StringAttribute[X]) In(values ...string) Predicate {
	return In(a, toInterfaces(values)...)
}

// Number is the set of numeric column types
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NumberAttribute is a numeric column
type NumberAttribute[X any, N Number] struct {
	attribute[X]
}

// NewNumberAttribute declares a numeric column of the entity
func NewNumberAttribute[N Number, X any, ID comparable](e *Entity[X, ID], column string) NumberAttribute[X, N] {
	return NumberAttribute[X, N]{newAttribute(e, column)}
}

func (a NumberAttribute[X, N]) Equal(v N) Predicate    { return Equal(a, v) }
func (a NumberAttribute[X, N]) NotEqual(v N) Predicate { return NotEqual(a, v) }
func (a NumberAttribute[X, N]) Lt(v N) Predicate       { return Lt(a, v) }
func (a NumberAttribute[X, N]) Le(v N) Predicate       { return Le(a, v) }
func (a NumberAttribute[X, N]) Gt(v N) Predicate       { return Gt(a, v) }
func (a NumberAttribute[X, N]) Ge(v N) Predicate       { return Ge(a, v) }

// Between matches lo <= a <= hi
func (a NumberAttribute[X, N]) Between(lo, hi N) Predicate {
	return And(Ge(a, lo), Le(a, hi))
}

func (a NumberAttribute[X, N]) In(values ...N) Predicate {
	return In(a, toInterfaces(values)...)
}

// ValueAttribute is a column of any comparable Go type
type ValueAttribute[X any, V any] struct {
	attribute[X]
}

// NewValueAttribute declares a column of the entity holding values of type V
func NewValueAttribute[V any, X any, ID comparable](e *Entity[X, ID], column string) ValueAttribute[X, V] {
	return ValueAttribute[X, V]{newAttribute(e, column)}
}

func (a ValueAttribute[X, V]) Equal(v V) Predicate    { return Equal(a, v) }
func (a ValueAttribute[X, V]) NotEqual(v V) Predicate { return NotEqual(a, v) }
func (a ValueAttribute[X, V]) IsNull() Predicate      { return IsNull(a) }

func (a ValueAttribute[X, V]) In(values ...V) Predicate {
	return In(a, toInterfaces(values)...)
}

func toInterfaces[V any](values []V) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// =====================================
// Owned Collections
// =====================================

// CollectionOf describes a one-to-many relation from X to its children C
type CollectionOf[X any, ID comparable, C any] struct {
	// Name is the relation name used by joins
	Name string
	// Alias is the join alias; defaults to Name
	Alias string
	// ForeignKey is the column on the child table referencing the parent id
	ForeignKey string

	Get   func(*X) []*C
	Set   func(*X, []*C)
	Owner func(*C) ID
	// Link points a child at its parent (foreign key and back reference)
	Link func(*X, *C)
}

// Collection is an owned one-to-many relation. Children are saved, removed
// and deleted together with their parent.
type Collection[X any, C any] struct {
	name       string
	alias      string
	foreignKey string
	parent     model
	child      model
	parentKey  func(*X) interface{}
	childKey   func(*C) (interface{}, bool)
	ownerKey   func(*C) interface{}
	get        func(*X) []*C
	set        func(*X, []*C)
	link       func(*X, *C)
}

// NewCollection declares an owned collection and registers it on the parent
func NewCollection[X any, ID comparable, C any, CID comparable](
	parent *Entity[X, ID], child *Entity[C, CID], def CollectionOf[X, ID, C],
) *Collection[X, C] {
	alias := def.Alias
	if alias == "" {
		alias = def.Name
	}
	c := &Collection[X, C]{
		name:       def.Name,
		alias:      alias,
		foreignKey: def.ForeignKey,
		parent:     parent,
		child:      child,
		parentKey:  func(x *X) interface{} { return parent.ID(x) },
		childKey:   func(ch *C) (interface{}, bool) { return child.ID(ch), child.HasID(ch) },
		ownerKey:   func(ch *C) interface{} { return def.Owner(ch) },
		get:        def.Get,
		set:        def.Set,
		link:       def.Link,
	}
	parent.owned = append(parent.owned, c)
	return c
}

// Name returns the relation name
func (c *Collection[X, C]) Name() string { return c.name }

// Alias returns the join alias
func (c *Collection[X, C]) Alias() string { return c.alias }

func (c *Collection[X, C]) relationName() string { return c.name }

func (c *Collection[X, C]) joinClause() JoinClause {
	return JoinClause{
		Type:       JoinInner,
		Table:      c.child.Table(),
		Alias:      c.alias,
		ForeignKey: c.foreignKey,
		ParentKey:  c.parent.IDColumn(),
	}
}

func (c *Collection[X, C]) childQuery() Query {
	return Query{Table: c.child.Table(), IDColumn: c.child.IDColumn()}
}

func (c *Collection[X, C]) cascadeSave(ctx context.Context, s Session, parent *X, removeOrphans bool) error {
	children := c.get(parent)
	keep := make([]interface{}, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		c.link(parent, child)
		if err := runValidation(ctx, child); err != nil {
			return err
		}
		if _, persisted := c.childKey(child); persisted {
			if err := s.Update(ctx, child); err != nil {
				return err
			}
		} else if err := s.Insert(ctx, child); err != nil {
			return err
		}
		id, _ := c.childKey(child)
		keep = append(keep, id)
	}

	if !removeOrphans {
		return nil
	}

	q := c.childQuery()
	q.Where = []Predicate{Equal(Path{Column: c.foreignKey}, c.parentKey(parent))}
	if len(keep) > 0 {
		q.Where = append(q.Where, NotIn(Path{Column: c.child.IDColumn()}, keep...))
	}
	_, err := s.DeleteWhere(ctx, new(C), q)
	return err
}

func (c *Collection[X, C]) cascadeDelete(ctx context.Context, s Session, parent *X) error {
	q := c.childQuery()
	q.Where = []Predicate{Equal(Path{Column: c.foreignKey}, c.parentKey(parent))}
	_, err := s.DeleteWhere(ctx, new(C), q)
	return err
}

// fetch loads the collection of every parent in one query, ordered by child id
func (c *Collection[X, C]) fetch(ctx context.Context, s Session, parents []*X) error {
	if len(parents) == 0 {
		return nil
	}

	ids := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		ids = append(ids, c.parentKey(p))
	}

	q := c.childQuery()
	q.Where = []Predicate{In(Path{Table: q.Table, Column: c.foreignKey}, ids...)}
	q.Orders = []Order{Asc(q.ID())}

	var children []*C
	if err := s.List(ctx, &children, q); err != nil {
		return err
	}

	grouped := make(map[interface{}][]*C, len(parents))
	for _, child := range children {
		key := c.ownerKey(child)
		grouped[key] = append(grouped[key], child)
	}
	for _, p := range parents {
		items := grouped[c.parentKey(p)]
		for _, child := range items {
			c.link(p, child)
		}
		c.set(p, items)
	}
	return nil
}
