package gdao

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidChildStopsSave(t *testing.T) {
	s := newFakeSession()
	dao := NewGenericDao(s, parentModel)
	p := &testParent{Name: "test", Children: []*testChild{{Name: "a"}, {}}}

	_, err := dao.Save(context.Background(), p)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "child name is required")
	assert.Equal(t, "insert parent test; insert child a parent=101", s.trace())
}

func TestInvalidChildStopsUpdate(t *testing.T) {
	s := newFakeSession()
	dao := NewGenericDao(s, parentModel)
	p := &testParent{ID: 1, Name: "test", Children: []*testChild{{ID: 10}}}

	err := dao.SaveOrUpdate(context.Background(), p)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "update parent 1", s.trace())
}

func TestBeforeDeleteHook(t *testing.T) {
	s := newFakeSession()
	dao := NewGenericDao(s, parentModel)

	err := dao.Delete(context.Background(), &testParent{ID: 4, Name: "locked"})
	assert.True(t, IsErrorType(err, ErrorTypeConstraint))
	assert.Empty(t, s.calls)

	require.NoError(t, dao.Delete(context.Background(), &testParent{ID: 4, Name: "open"}))
	assert.NotEmpty(t, s.calls)
}

func TestAsValidationError(t *testing.T) {
	assert.Nil(t, asValidationError(nil))

	err := asValidationError(errors.New("bad"))
	assert.True(t, IsValidation(err))
	assert.Equal(t, "bad", errors.UnwrapAll(err).Error())

	typed := NewError(ErrorTypeDuplicate, "taken")
	assert.Equal(t, typed, asValidationError(typed))
}
