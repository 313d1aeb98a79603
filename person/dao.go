package person

import (
	"context"

	"github.com/lemmego/gdao"
)

// PersonCriteria restricts a person search. Nil or empty fields add no condition.
type PersonCriteria struct {
	Name      *string
	MinAge    *int
	MaxAge    *int
	TaskNames []string
}

// PersonDao adds person searches to the generic DAO. Searches are distinct
// and ordered by age, then name.
type PersonDao struct {
	*gdao.GenericDao[Person, int64]
}

// NewPersonDao creates a person DAO bound to the session
func NewPersonDao(s gdao.Session) *PersonDao {
	return &PersonDao{GenericDao: gdao.NewGenericDao(s, Model)}
}

// Find searches with the criteria API
func (d *PersonDao) Find(ctx context.Context, c PersonCriteria) ([]*Person, error) {
	cq := gdao.NewCriteriaQuery(Model)
	root := cq.Root()

	if c.Name != nil {
		cq.Where(gdao.Equal(root.Get(Name.Column()), *c.Name))
	}
	if c.MinAge != nil {
		cq.Where(gdao.Ge(root.Get(Age.Column()), *c.MinAge))
	}
	if c.MaxAge != nil {
		cq.Where(gdao.Le(root.Get(Age.Column()), *c.MaxAge))
	}
	if len(c.TaskNames) > 0 {
		tasks := cq.Join(Tasks.Name())
		names := make([]gdao.Predicate, 0, len(c.TaskNames))
		for _, n := range c.TaskNames {
			names = append(names, gdao.Equal(tasks.Get(TaskName.Column()), n))
		}
		cq.Where(gdao.Or(names...))
	}

	cq.OrderBy(gdao.Asc(root.Get(Age.Column())), gdao.Asc(root.Get(Name.Column()))).
		Distinct(true)

	return gdao.NewTypedQuery(d.Session(), cq).ResultList(ctx)
}

// Find2 runs the same search as Find, built with the query DSL
func (d *PersonDao) Find2(ctx context.Context, c PersonCriteria) ([]*Person, error) {
	return gdao.CreateQuery(d.Session(), Model, func(q *gdao.QueryContext[Person]) {
		var tasks gdao.JoinPath[Task]
		if len(c.TaskNames) > 0 {
			tasks = gdao.Join(q, Tasks)
		}

		q.Where(func(w *gdao.WhereBuilder[Person]) {
			if c.Name != nil {
				w.Add(Name.Equal(*c.Name))
			}
			if c.MinAge != nil {
				w.Add(Age.Ge(*c.MinAge))
			}
			if c.MaxAge != nil {
				w.Add(Age.Le(*c.MaxAge))
			}
			w.Or(func(w *gdao.WhereBuilder[Person]) {
				for _, n := range c.TaskNames {
					w.Equal(tasks.Get(TaskName), n)
				}
			})
		})
		q.OrderBy(func(o *gdao.OrderByBuilder[Person]) {
			o.Asc(Age)
			o.Asc(Name)
		})
		q.Distinct(true)
	}).ResultList(ctx)
}

// FindAbove18AndNameContains returns adults whose name contains s
func (d *PersonDao) FindAbove18AndNameContains(ctx context.Context, s string) ([]*Person, error) {
	return gdao.CreateQuery(d.Session(), Model, func(q *gdao.QueryContext[Person]) {
		q.Where(func(w *gdao.WhereBuilder[Person]) {
			w.Like(Name, "%"+s+"%")
			w.Ge(Age, 18)
		})
		q.OrderBy(func(o *gdao.OrderByBuilder[Person]) {
			o.Asc(Age)
			o.Asc(Name)
		})
		q.Distinct(true)
	}).ResultList(ctx)
}
