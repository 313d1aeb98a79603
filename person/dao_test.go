package person_test

import (
	"context"
	"testing"

	"github.com/lemmego/gdao"
	"github.com/lemmego/gdao/gdaobun"
	"github.com/lemmego/gdao/gdaogorm"
	"github.com/lemmego/gdao/person"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func ptr[T any](v T) *T { return &v }

func ids(people []*person.Person) []int64 {
	out := make([]int64, 0, len(people))
	for _, p := range people {
		out = append(out, p.ID)
	}
	return out
}

func newPerson(name string, age int, tasks ...string) *person.Person {
	p := &person.Person{Name: name, Age: age}
	for _, t := range tasks {
		p.AddTask(&person.Task{Name: t})
	}
	return p
}

// Test suite, run once per SQL provider
type PersonDaoTestSuite struct {
	suite.Suite
	open    func(ctx context.Context) (gdao.SessionFactory, error)
	factory gdao.SessionFactory
	manager *gdao.SessionManager
	ctx     context.Context
}

func (suite *PersonDaoTestSuite) SetupTest() {
	suite.ctx = context.Background()

	// Each test gets a fresh in-memory database
	factory, err := suite.open(suite.ctx)
	require.NoError(suite.T(), err)
	suite.factory = factory
	suite.manager = gdao.NewSessionManager(factory)
}

func (suite *PersonDaoTestSuite) TearDownTest() {
	if suite.manager != nil {
		suite.manager.Close()
	}
}

func (suite *PersonDaoTestSuite) do(fn func(ctx context.Context, dao *person.PersonDao) error) {
	require.NoError(suite.T(), suite.manager.Do(suite.ctx, func(ctx context.Context, s gdao.Session) error {
		return fn(ctx, person.NewPersonDao(s))
	}))
}

func (suite *PersonDaoTestSuite) seed(people ...*person.Person) {
	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		for _, p := range people {
			if _, err := dao.Save(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// population returns people around the boundaries of the sample criteria
func population() map[string]*person.Person {
	return map[string]*person.Person{
		"match20":   newPerson("test", 20, "test", "test2"),
		"match25":   newPerson("test", 25, "test"),
		"tooOld":    newPerson("test", 26, "test"),
		"tooYoung":  newPerson("test", 17, "test2"),
		"wrongTask": newPerson("test", 22, "other"),
		"wrongName": newPerson("other", 21, "test"),
		"noTasks":   newPerson("tester", 30),
	}
}

func (suite *PersonDaoTestSuite) seedPopulation() map[string]*person.Person {
	people := population()
	suite.seed(
		people["match20"], people["match25"], people["tooOld"], people["tooYoung"],
		people["wrongTask"], people["wrongName"], people["noTasks"],
	)
	return people
}

func (suite *PersonDaoTestSuite) TestSaveCascadesTasks() {
	p := newPerson("ann", 30, "a", "b")
	suite.seed(p)

	require.NotZero(suite.T(), p.ID)
	for _, t := range p.Tasks {
		assert.NotZero(suite.T(), t.ID)
		assert.Equal(suite.T(), p.ID, t.PersonID)
	}

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		loaded, err := dao.Load(ctx, p.ID)
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), loaded)
		require.NoError(suite.T(), dao.Initialize(ctx, loaded))

		require.Len(suite.T(), loaded.Tasks, 2)
		assert.Equal(suite.T(), "a", loaded.Tasks[0].Name)
		assert.Equal(suite.T(), "b", loaded.Tasks[1].Name)
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestUpdateRemovesOrphanTasks() {
	p := newPerson("ann", 30, "keep", "drop")
	suite.seed(p)

	p.Name = "anna"
	p.Tasks = p.Tasks[:1]
	p.AddTask(&person.Task{Name: "new"})
	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		return dao.SaveOrUpdate(ctx, p)
	})

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		loaded, err := dao.Load(ctx, p.ID)
		require.NoError(suite.T(), err)
		require.NoError(suite.T(), dao.Initialize(ctx, loaded))

		assert.Equal(suite.T(), "anna", loaded.Name)
		names := []string{}
		for _, t := range loaded.Tasks {
			names = append(names, t.Name)
		}
		assert.Equal(suite.T(), []string{"keep", "new"}, names)
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestDeleteRemovesTasks() {
	p := newPerson("ann", 30, "a", "b")
	other := newPerson("bob", 40, "c")
	suite.seed(p, other)

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		return dao.Delete(ctx, p)
	})

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		loaded, err := dao.Load(ctx, p.ID)
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), loaded)

		n, err := dao.Count(ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(1), n)

		remaining, err := dao.Session().Count(ctx, &person.Task{}, gdao.Query{Table: "task", IDColumn: "id"})
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(1), remaining)
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestInvalidTaskRollsBackSave() {
	err := suite.manager.Do(suite.ctx, func(ctx context.Context, s gdao.Session) error {
		_, err := person.NewPersonDao(s).Save(ctx, newPerson("ann", 30, "ok", " "))
		return err
	})
	assert.True(suite.T(), gdao.IsValidation(err))

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		n, err := dao.Count(ctx)
		require.NoError(suite.T(), err)
		assert.Zero(suite.T(), n)
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestMultiLoad() {
	a, b := newPerson("ann", 30), newPerson("bob", 40)
	suite.seed(a, b)

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		ordered, err := dao.MultiLoad(ctx, []int64{b.ID, 999, a.ID}, true)
		require.NoError(suite.T(), err)
		require.Len(suite.T(), ordered, 3)
		assert.Equal(suite.T(), "bob", ordered[0].Name)
		assert.Nil(suite.T(), ordered[1])
		assert.Equal(suite.T(), "ann", ordered[2].Name)

		found, err := dao.MultiLoad(ctx, []int64{b.ID, 999, a.ID}, false)
		require.NoError(suite.T(), err)
		assert.ElementsMatch(suite.T(), []int64{a.ID, b.ID}, ids(found))
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestFindWithSampleCriteria() {
	people := suite.seedPopulation()
	criteria := person.PersonCriteria{
		Name:      ptr("test"),
		MinAge:    ptr(18),
		MaxAge:    ptr(25),
		TaskNames: []string{"test", "test2"},
	}

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		found, err := dao.Find(ctx, criteria)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), []int64{people["match20"].ID, people["match25"].ID}, ids(found))

		found2, err := dao.Find2(ctx, criteria)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), ids(found), ids(found2))
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestFindOmitsAbsentCriteria() {
	people := suite.seedPopulation()

	tests := []struct {
		name     string
		criteria person.PersonCriteria
		expected []string
	}{
		{"empty", person.PersonCriteria{}, []string{"tooYoung", "match20", "wrongName", "wrongTask", "match25", "tooOld", "noTasks"}},
		{"min age only", person.PersonCriteria{MinAge: ptr(26)}, []string{"tooOld", "noTasks"}},
		{"max age only", person.PersonCriteria{MaxAge: ptr(20)}, []string{"tooYoung", "match20"}},
		{"name only", person.PersonCriteria{Name: ptr("other")}, []string{"wrongName"}},
		{"task names only", person.PersonCriteria{TaskNames: []string{"test2"}}, []string{"tooYoung", "match20"}},
		{"empty task names", person.PersonCriteria{Name: ptr("tester"), TaskNames: []string{}}, []string{"noTasks"}},
		{"no match", person.PersonCriteria{Name: ptr("nobody")}, []string{}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			expected := make([]int64, 0, len(tt.expected))
			for _, key := range tt.expected {
				expected = append(expected, people[key].ID)
			}

			suite.do(func(ctx context.Context, dao *person.PersonDao) error {
				found, err := dao.Find(ctx, tt.criteria)
				require.NoError(suite.T(), err)
				assert.Equal(suite.T(), expected, ids(found))

				found2, err := dao.Find2(ctx, tt.criteria)
				require.NoError(suite.T(), err)
				assert.Equal(suite.T(), expected, ids(found2))
				return nil
			})
		})
	}
}

func (suite *PersonDaoTestSuite) TestFindAbove18AndNameContains() {
	people := suite.seedPopulation()

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		found, err := dao.FindAbove18AndNameContains(ctx, "te")
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), []int64{
			people["match20"].ID,
			people["wrongTask"].ID,
			people["match25"].ID,
			people["tooOld"].ID,
			people["noTasks"].ID,
		}, ids(found))

		found, err = dao.FindAbove18AndNameContains(ctx, "ther")
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), []int64{people["wrongName"].ID}, ids(found))
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestSameAgeOrdersByName() {
	zed, amy, bob := newPerson("zed", 20), newPerson("amy", 20), newPerson("bob", 19)
	suite.seed(zed, amy, bob)
	expected := []int64{bob.ID, amy.ID, zed.ID}

	suite.do(func(ctx context.Context, dao *person.PersonDao) error {
		found, err := dao.Find(ctx, person.PersonCriteria{})
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), expected, ids(found))

		found, err = dao.Find2(ctx, person.PersonCriteria{})
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), expected, ids(found))

		found, err = dao.FindAbove18AndNameContains(ctx, "")
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), expected, ids(found))
		return nil
	})
}

func (suite *PersonDaoTestSuite) TestPointerPredicateFindsPerson() {
	amy, bob := newPerson("amy", 20, "test"), newPerson("bob", 30)
	suite.seed(amy, bob)

	err := suite.manager.Do(suite.ctx, func(ctx context.Context, s gdao.Session) error {
		cq := gdao.NewCriteriaQuery(person.Model)
		cq.Where(&gdao.BasicPredicate{Field: cq.Root().Get("age"), Op: gdao.OpEqual, Value: 20})
		found, err := gdao.NewTypedQuery(s, cq).ResultList(ctx)
		if err != nil {
			return err
		}
		assert.Equal(suite.T(), []int64{amy.ID}, ids(found))
		return nil
	})
	require.NoError(suite.T(), err)
}

func (suite *PersonDaoTestSuite) TestNestedBuilderIsRejected() {
	err := suite.manager.Do(suite.ctx, func(ctx context.Context, s gdao.Session) error {
		_, err := gdao.CreateQuery(s, person.Model, func(q *gdao.QueryContext[person.Person]) {
			q.Where(func(w *gdao.WhereBuilder[person.Person]) {
				w.Ge(person.Age, 18)
				q.OrderBy(func(o *gdao.OrderByBuilder[person.Person]) {
					o.Asc(person.Name)
				})
			})
		}).ResultList(ctx)
		return err
	})
	assert.True(suite.T(), gdao.IsUnsupported(err))
}

func TestPersonDaoGorm(t *testing.T) {
	suite.Run(t, &PersonDaoTestSuite{
		open: func(ctx context.Context) (gdao.SessionFactory, error) {
			p, err := gdaogorm.Open(gdao.Config{
				Driver:       "sqlite",
				Database:     ":memory:",
				MaxOpenConns: 1,
				Options: map[string]interface{}{
					"gorm": map[string]interface{}{"log_level": "silent"},
				},
			})
			if err != nil {
				return nil, err
			}
			return p, p.AutoMigrate(ctx, &person.Person{}, &person.Task{})
		},
	})
}

func TestPersonDaoBun(t *testing.T) {
	suite.Run(t, &PersonDaoTestSuite{
		open: func(ctx context.Context) (gdao.SessionFactory, error) {
			p, err := gdaobun.Open(gdao.Config{
				Driver:       "sqlite",
				Database:     ":memory:",
				MaxOpenConns: 1,
				Options: map[string]interface{}{
					"bun": map[string]interface{}{"log_level": "silent"},
				},
			})
			if err != nil {
				return nil, err
			}
			return p, p.CreateTables(ctx, (*person.Person)(nil), (*person.Task)(nil))
		},
	})
}
