package gdao

import (
	"context"

	"github.com/cockroachdb/errors"
)

// =====================================
// Entity Hook Interfaces
// =====================================

// ValidationHook is called to validate an entity, or an owned child,
// before it is inserted or updated
type ValidationHook interface {
	Validate(ctx context.Context) error
}

// BeforeDeleteHook is called before an entity and its owned children are deleted
type BeforeDeleteHook interface {
	BeforeDelete(ctx context.Context) error
}

func runValidation(ctx context.Context, entity interface{}) error {
	h, ok := entity.(ValidationHook)
	if !ok {
		return nil
	}
	return asValidationError(h.Validate(ctx))
}

func runBeforeDelete(ctx context.Context, entity interface{}) error {
	h, ok := entity.(BeforeDeleteHook)
	if !ok {
		return nil
	}
	return asValidationError(h.BeforeDelete(ctx))
}

// asValidationError keeps typed errors and reports anything else as a
// validation failure
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var typed Error
	if errors.As(err, &typed) {
		return err
	}
	return NewErrorWithCause(ErrorTypeValidation, err.Error(), err)
}
