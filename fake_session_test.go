package gdao

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

type testParent struct {
	ID       int64
	Name     string
	Age      int
	Children []*testChild
}

type testChild struct {
	ID       int64
	Name     string
	ParentID int64
	Parent   *testParent
}

// Validate requires a child name
func (c *testChild) Validate(context.Context) error {
	if c.Name == "" {
		return errors.New("child name is required")
	}
	return nil
}

// BeforeDelete protects parents named "locked"
func (p *testParent) BeforeDelete(context.Context) error {
	if p.Name == "locked" {
		return NewError(ErrorTypeConstraint, "parent is locked")
	}
	return nil
}

var (
	parentModel = NewEntity("parent", "id", func(p *testParent) int64 { return p.ID })
	childModel  = NewEntity("child", "id", func(c *testChild) int64 { return c.ID })

	parentName = NewStringAttribute(parentModel, "name")
	parentAge  = NewNumberAttribute[int](parentModel, "age")
	childName  = NewStringAttribute(childModel, "name")

	parentChildren = NewCollection(parentModel, childModel, CollectionOf[testParent, int64, testChild]{
		Name:       "children",
		ForeignKey: "parent_id",
		Get:        func(p *testParent) []*testChild { return p.Children },
		Set:        func(p *testParent, c []*testChild) { p.Children = c },
		Owner:      func(c *testChild) int64 { return c.ParentID },
		Link: func(p *testParent, c *testChild) {
			c.ParentID = p.ID
			c.Parent = p
		},
	})
)

// fakeSession records every call and answers from scripted hooks
type fakeSession struct {
	calls   []string
	queries []Query
	nextID  int64
	open    bool
	inTx    bool

	get      func(dest interface{}, q Query) error
	list     func(dest interface{}, q Query) error
	count    int64
	update   func(entity interface{}) error
	deleted  int64
	beginErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{open: true, nextID: 100, deleted: 1}
}

func (s *fakeSession) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *fakeSession) Get(_ context.Context, dest interface{}, q Query) error {
	s.record("get %s", q.Table)
	s.queries = append(s.queries, q)
	if s.get != nil {
		return s.get(dest, q)
	}
	return NewError(ErrorTypeNotFound, "record not found")
}

func (s *fakeSession) List(_ context.Context, dest interface{}, q Query) error {
	s.record("list %s", q.Table)
	s.queries = append(s.queries, q)
	if s.list != nil {
		return s.list(dest, q)
	}
	return nil
}

func (s *fakeSession) Count(_ context.Context, _ interface{}, q Query) (int64, error) {
	s.record("count %s distinct=%t", q.Table, q.Distinct)
	s.queries = append(s.queries, q)
	return s.count, nil
}

func (s *fakeSession) Insert(_ context.Context, entity interface{}) error {
	s.nextID++
	switch e := entity.(type) {
	case *testParent:
		e.ID = s.nextID
		s.record("insert parent %s", e.Name)
	case *testChild:
		e.ID = s.nextID
		s.record("insert child %s parent=%d", e.Name, e.ParentID)
	}
	return nil
}

func (s *fakeSession) Update(_ context.Context, entity interface{}) error {
	switch e := entity.(type) {
	case *testParent:
		s.record("update parent %d", e.ID)
	case *testChild:
		s.record("update child %d", e.ID)
	}
	if s.update != nil {
		return s.update(entity)
	}
	return nil
}

func (s *fakeSession) DeleteWhere(_ context.Context, _ interface{}, q Query) (int64, error) {
	s.record("delete %s where %s", q.Table, q.Condition())
	s.queries = append(s.queries, q)
	return s.deleted, nil
}

func (s *fakeSession) Begin(context.Context) error {
	if s.beginErr != nil {
		return s.beginErr
	}
	s.record("begin")
	s.inTx = true
	return nil
}

func (s *fakeSession) Commit() error {
	s.record("commit")
	s.inTx = false
	return nil
}

func (s *fakeSession) Rollback() error {
	s.record("rollback")
	s.inTx = false
	return nil
}

func (s *fakeSession) InTransaction() bool { return s.inTx }

func (s *fakeSession) Close() error {
	if s.inTx {
		s.record("rollback")
		s.inTx = false
	}
	s.record("close")
	s.open = false
	return nil
}

func (s *fakeSession) IsOpen() bool { return s.open }

func (s *fakeSession) trace() string { return strings.Join(s.calls, "; ") }

// fakeFactory hands out one prepared session
type fakeFactory struct {
	session *fakeSession
	opened  int
}

func (f *fakeFactory) OpenSession(context.Context) (Session, error) {
	f.opened++
	return f.session, nil
}

func (f *fakeFactory) Health(context.Context) error { return nil }

func (f *fakeFactory) ProviderInfo() ProviderInfo {
	return ProviderInfo{Name: "fake", DatabaseType: DatabaseTypeSQL}
}

func (f *fakeFactory) Close() error { return nil }
