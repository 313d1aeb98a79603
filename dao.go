package gdao

import (
	"context"
	"fmt"
)

// =====================================
// Generic DAO
// =====================================

// GenericDao implements the common persistence operations for entity T
// with identifier ID on top of a session.
type GenericDao[T any, ID comparable] struct {
	session Session
	entity  *Entity[T, ID]
}

// NewGenericDao creates a DAO bound to the session
func NewGenericDao[T any, ID comparable](s Session, e *Entity[T, ID]) *GenericDao[T, ID] {
	return &GenericDao[T, ID]{session: s, entity: e}
}

// Session returns the session the DAO works in
func (d *GenericDao[T, ID]) Session() Session { return d.session }

// Entity returns the entity metamodel
func (d *GenericDao[T, ID]) Entity() *Entity[T, ID] { return d.entity }

func (d *GenericDao[T, ID]) query() Query {
	return Query{Table: d.entity.Table(), IDColumn: d.entity.IDColumn()}
}

// Load returns the entity with the given id, or nil if there is none
func (d *GenericDao[T, ID]) Load(ctx context.Context, id ID) (*T, error) {
	q := d.query()
	q.Where = []Predicate{Equal(q.ID(), id)}
	q.Limit = 1

	entity := d.entity.New()
	if err := d.session.Get(ctx, entity, q); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

// MultiLoad loads the entities with the given ids in one query. With
// orderedReturn the result follows ids and holds nil for missing ids;
// otherwise it holds only the entities found.
func (d *GenericDao[T, ID]) MultiLoad(ctx context.Context, ids []ID, orderedReturn bool) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}

	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	q := d.query()
	q.Where = []Predicate{In(q.ID(), values...)}

	var found []*T
	if err := d.session.List(ctx, &found, q); err != nil {
		return nil, err
	}

	if !orderedReturn {
		if found == nil {
			found = []*T{}
		}
		return found, nil
	}

	byID := make(map[ID]*T, len(found))
	for _, entity := range found {
		byID[d.entity.ID(entity)] = entity
	}
	results := make([]*T, len(ids))
	for i, id := range ids {
		results[i] = byID[id]
	}
	return results, nil
}

// LoadAll returns a page of entities ordered by id. limit <= 0 is unbounded.
func (d *GenericDao[T, ID]) LoadAll(ctx context.Context, offset, limit int) ([]*T, error) {
	q := d.query()
	q.Orders = []Order{Asc(q.ID())}
	q.Offset = offset
	q.Limit = limit

	var results []*T
	if err := d.session.List(ctx, &results, q); err != nil {
		return nil, err
	}
	if results == nil {
		results = []*T{}
	}
	return results, nil
}

// Count returns the number of distinct entities
func (d *GenericDao[T, ID]) Count(ctx context.Context) (int64, error) {
	q := d.query()
	q.Distinct = true
	return d.session.Count(ctx, d.entity.New(), q)
}

// Save persists a transient entity with its owned children and returns the
// generated id.
func (d *GenericDao[T, ID]) Save(ctx context.Context, entity *T) (ID, error) {
	var zero ID
	if entity == nil {
		return zero, NewError(ErrorTypeInvalidArgument, "cannot save a nil entity")
	}
	if d.entity.HasID(entity) {
		return zero, NewError(ErrorTypeInvalidArgument,
			fmt.Sprintf("%s %v is already persistent", d.entity.Table(), d.entity.ID(entity)))
	}

	if err := runValidation(ctx, entity); err != nil {
		return zero, err
	}
	if err := d.session.Insert(ctx, entity); err != nil {
		return zero, err
	}
	for _, o := range d.entity.owned {
		if err := o.cascadeSave(ctx, d.session, entity, false); err != nil {
			return zero, err
		}
	}
	return d.entity.ID(entity), nil
}

// SaveOrUpdate saves a transient entity or updates a persistent one. On
// update, children missing from the owned collections are deleted.
func (d *GenericDao[T, ID]) SaveOrUpdate(ctx context.Context, entity *T) error {
	if entity == nil {
		return NewError(ErrorTypeInvalidArgument, "cannot save a nil entity")
	}
	if !d.entity.HasID(entity) {
		_, err := d.Save(ctx, entity)
		return err
	}

	if err := runValidation(ctx, entity); err != nil {
		return err
	}
	if err := d.session.Update(ctx, entity); err != nil {
		return err
	}
	for _, o := range d.entity.owned {
		if err := o.cascadeSave(ctx, d.session, entity, true); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the entity and its owned children
func (d *GenericDao[T, ID]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return NewError(ErrorTypeInvalidArgument, "cannot delete a nil entity")
	}
	if !d.entity.HasID(entity) {
		return NewError(ErrorTypeInvalidArgument,
			fmt.Sprintf("cannot delete a transient %s", d.entity.Table()))
	}
	if err := runBeforeDelete(ctx, entity); err != nil {
		return err
	}

	for _, o := range d.entity.owned {
		if err := o.cascadeDelete(ctx, d.session, entity); err != nil {
			return err
		}
	}

	q := d.query()
	q.Where = []Predicate{Equal(Path{Column: q.IDColumn}, d.entity.ID(entity))}
	n, err := d.session.DeleteWhere(ctx, d.entity.New(), q)
	if err != nil {
		return err
	}
	if n == 0 {
		return NewError(ErrorTypeNotFound,
			fmt.Sprintf("%s %v not found", d.entity.Table(), d.entity.ID(entity)))
	}
	return nil
}

// Initialize loads the owned collections of the given entities
func (d *GenericDao[T, ID]) Initialize(ctx context.Context, entities ...*T) error {
	loaded := make([]*T, 0, len(entities))
	for _, e := range entities {
		if e != nil && d.entity.HasID(e) {
			loaded = append(loaded, e)
		}
	}
	for _, o := range d.entity.owned {
		if err := o.fetch(ctx, d.session, loaded); err != nil {
			return err
		}
	}
	return nil
}
