package gdao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathString(t *testing.T) {
	assert.Equal(t, "age", Path{Column: "age"}.String())
	assert.Equal(t, "person.age", Path{Table: "person", Column: "age"}.String())
}

func TestBasicPredicateString(t *testing.T) {
	age := Path{Table: "person", Column: "age"}

	tests := []struct {
		name     string
		pred     Predicate
		expected string
	}{
		{"equal", Equal(age, 18), "person.age = ?"},
		{"not equal", NotEqual(age, 18), "person.age != ?"},
		{"greater", Gt(age, 18), "person.age > ?"},
		{"greater or equal", Ge(age, 18), "person.age >= ?"},
		{"less", Lt(age, 18), "person.age < ?"},
		{"less or equal", Le(age, 18), "person.age <= ?"},
		{"like", Like(age, "1%"), "person.age LIKE ?"},
		{"not like", NotLike(age, "1%"), "person.age NOT LIKE ?"},
		{"in", In(age, 1, 2), "person.age IN (?)"},
		{"not in", NotIn(age, 1, 2), "person.age NOT IN (?)"},
		{"is null", IsNull(age), "person.age IS NULL"},
		{"is not null", IsNotNull(age), "person.age IS NOT NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pred.String())
		})
	}
}

func TestNotLikeIsNotLike(t *testing.T) {
	p := NotLike(Path{Column: "name"}, "%x%").(BasicPredicate)
	assert.Equal(t, OpNotLike, p.Op)
	assert.Equal(t, "%x%", p.Value)
}

func TestInCopiesValues(t *testing.T) {
	values := []interface{}{1, 2}
	p := In(Path{Column: "id"}, values...).(BasicPredicate)
	values[0] = 99

	assert.Equal(t, []interface{}{1, 2}, p.Values())
	assert.Empty(t, In(Path{Column: "id"}).(BasicPredicate).Values())
}

func TestCompositePredicateString(t *testing.T) {
	name := Path{Table: "person", Column: "name"}
	age := Path{Table: "person", Column: "age"}

	and := And(Equal(name, "a"), Ge(age, 18))
	assert.Equal(t, "(person.name = ? AND person.age >= ?)", and.String())

	or := Or(Equal(name, "a"), And(Ge(age, 18), Le(age, 25)))
	assert.Equal(t, "(person.name = ? OR (person.age >= ? AND person.age <= ?))", or.String())

	assert.Equal(t, "TRUE", And().String())
	assert.Equal(t, "FALSE", Or().String())
}

func TestQueryString(t *testing.T) {
	q := Query{
		Table:    "person",
		IDColumn: "id",
		Joins: []JoinClause{{
			Type: JoinInner, Table: "task", Alias: "tasks", ForeignKey: "person_id", ParentKey: "id",
		}},
		Where:    []Predicate{Equal(Path{Table: "tasks", Column: "name"}, "x"), Ge(Path{Table: "person", Column: "age"}, 18)},
		Orders:   []Order{Asc(Path{Table: "person", Column: "age"}), Desc(Path{Table: "person", Column: "name"})},
		Distinct: true,
	}

	assert.Equal(t,
		"SELECT DISTINCT person.* FROM person INNER JOIN task tasks ON tasks.person_id = person.id"+
			" WHERE (tasks.name = ? AND person.age >= ?) ORDER BY person.age ASC, person.name DESC",
		q.String())
	assert.Equal(t, Path{Table: "person", Column: "id"}, q.ID())
}

func TestQueryCondition(t *testing.T) {
	q := Query{Table: "person"}
	assert.Nil(t, q.Condition())

	single := Equal(q.Root("name"), "a")
	q.Where = []Predicate{single}
	assert.Equal(t, single, q.Condition())

	q.Where = append(q.Where, Ge(q.Root("age"), 1))
	composite, ok := q.Condition().(CompositePredicate)
	assert.True(t, ok)
	assert.Equal(t, LogicAnd, composite.Logic)
	assert.Len(t, composite.Predicates, 2)
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "person.age ASC", Asc(Path{Table: "person", Column: "age"}).String())
	assert.Equal(t, "name DESC", Desc(Path{Column: "name"}).String())
}

func TestNormalizePredicate(t *testing.T) {
	age := Path{Table: "person", Column: "age"}
	name := Path{Table: "person", Column: "name"}

	p, err := NormalizePredicate(&BasicPredicate{Field: age, Op: OpEqual, Value: 20})
	require.NoError(t, err)
	assert.Equal(t, BasicPredicate{Field: age, Op: OpEqual, Value: 20}, p)

	p, err = NormalizePredicate(&CompositePredicate{
		Logic: LogicOr,
		Predicates: []Predicate{
			&BasicPredicate{Field: name, Op: OpEqual, Value: "a"},
			CompositePredicate{Logic: LogicAnd, Predicates: []Predicate{&BasicPredicate{Field: age, Op: OpGreaterThan, Value: 1}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Or(Equal(name, "a"), And(Gt(age, 1))), p)

	_, err = NormalizePredicate((*BasicPredicate)(nil))
	assert.True(t, IsInvalidArgument(err))
	_, err = NormalizePredicate(And((*CompositePredicate)(nil)))
	assert.True(t, IsInvalidArgument(err))
	_, err = NormalizePredicate(nil)
	assert.True(t, IsInvalidArgument(err))
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Table: "person"}
	n, err := q.Normalize()
	require.NoError(t, err)
	assert.Equal(t, q, n)

	q.Where = []Predicate{&BasicPredicate{Field: q.Root("age"), Op: OpEqual, Value: 20}}
	n, err = q.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []Predicate{Equal(q.Root("age"), 20)}, n.Where)
	_, isPointer := q.Where[0].(*BasicPredicate)
	assert.True(t, isPointer)

	q.Where = []Predicate{(*CompositePredicate)(nil)}
	_, err = q.Normalize()
	assert.True(t, IsInvalidArgument(err))
}

func TestUnsupportedPredicate(t *testing.T) {
	err := UnsupportedPredicate(nil)
	assert.True(t, IsUnsupported(err))
}
