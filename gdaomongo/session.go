package gdaomongo

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lemmego/gdao"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// transactionTimeout bounds commit and abort, which take no context
const transactionTimeout = 10 * time.Second

// =====================================
// Session Implementation
// =====================================

// Session implements gdao.Session on a MongoDB database. Transactions need
// a replica set and are only started when the provider enables them;
// otherwise Begin, Commit and Rollback only track the transaction state.
type Session struct {
	provider *Provider
	tx       mongo.Session
	inTx     bool
	open     bool
}

func (s *Session) sessionContext(ctx context.Context) (context.Context, error) {
	if !s.open {
		return nil, gdao.ErrSessionClosed
	}
	if s.tx != nil {
		return mongo.NewSessionContext(ctx, s.tx), nil
	}
	return ctx, nil
}

func (s *Session) collection(name string) *mongo.Collection {
	return s.provider.database.Collection(name)
}

// find runs a plain find, or an aggregation when the query joins
func (s *Session) find(ctx context.Context, q gdao.Query) (*mongo.Cursor, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	coll := s.collection(q.Table)
	if len(q.Joins) > 0 {
		pipeline, err := buildPipeline(q)
		if err != nil {
			return nil, err
		}
		return coll.Aggregate(ctx, pipeline)
	}

	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	return coll.Find(ctx, filter, buildFindOptions(q))
}

// Get loads the first document matching q into dest
func (s *Session) Get(ctx context.Context, dest interface{}, q gdao.Query) error {
	ctx, err := s.sessionContext(ctx)
	if err != nil {
		return err
	}

	q.Limit = 1
	cursor, err := s.find(ctx, q)
	if err != nil {
		return convertMongoError(err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return convertMongoError(err)
		}
		return convertMongoError(mongo.ErrNoDocuments)
	}
	return convertMongoError(cursor.Decode(dest))
}

// List loads every document matching q into dest
func (s *Session) List(ctx context.Context, dest interface{}, q gdao.Query) error {
	ctx, err := s.sessionContext(ctx)
	if err != nil {
		return err
	}

	cursor, err := s.find(ctx, q)
	if err != nil {
		return convertMongoError(err)
	}
	return convertMongoError(cursor.All(ctx, dest))
}

// Count counts documents matching q. Joined documents never multiply the
// root documents, so distinct and plain counts agree.
func (s *Session) Count(ctx context.Context, model interface{}, q gdao.Query) (int64, error) {
	ctx, err := s.sessionContext(ctx)
	if err != nil {
		return 0, err
	}
	if q, err = q.Normalize(); err != nil {
		return 0, err
	}
	coll := s.collection(collectionName(model, q))

	if len(q.Joins) == 0 {
		filter, err := buildFilter(q)
		if err != nil {
			return 0, err
		}
		count, err := coll.CountDocuments(ctx, filter)
		return count, convertMongoError(err)
	}

	pipeline, err := buildCountPipeline(q)
	if err != nil {
		return 0, err
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, convertMongoError(err)
	}
	var rows []struct {
		N int64 `bson:"n"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, convertMongoError(err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].N, nil
}

// Insert stores the entity, assigning the next sequence value to a zero
// integer id.
func (s *Session) Insert(ctx context.Context, entity interface{}) error {
	ctx, err := s.sessionContext(ctx)
	if err != nil {
		return err
	}

	name := collectionName(entity, gdao.Query{})
	id, err := idField(entity)
	if err != nil {
		return err
	}

	if id.IsZero() {
		switch id.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			seq, err := s.nextSequence(ctx, name)
			if err != nil {
				return err
			}
			id.SetInt(seq)
		}
	}

	result, err := s.collection(name).InsertOne(ctx, entity)
	if err != nil {
		return convertMongoError(err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok && id.Type() == reflect.TypeOf(oid) && id.IsZero() {
		id.Set(reflect.ValueOf(oid))
	}
	return nil
}

// nextSequence increments and returns the counter of a collection
func (s *Session) nextSequence(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, convertMongoError(err)
	}
	return counter.Seq, nil
}

// Update replaces the stored document with the entity
func (s *Session) Update(ctx context.Context, entity interface{}) error {
	ctx, err := s.sessionContext(ctx)
	if err != nil {
		return err
	}

	id, err := idField(entity)
	if err != nil {
		return err
	}

	result, err := s.collection(collectionName(entity, gdao.Query{})).
		ReplaceOne(ctx, bson.M{"_id": id.Interface()}, entity)
	if err != nil {
		return convertMongoError(err)
	}

	if result.MatchedCount == 0 {
		return gdao.Error{
			Type:    gdao.ErrorTypeNotFound,
			Message: "document not found",
		}
	}
	return nil
}

// DeleteWhere deletes the documents matching q
func (s *Session) DeleteWhere(ctx context.Context, model interface{}, q gdao.Query) (int64, error) {
	ctx, err := s.sessionContext(ctx)
	if err != nil {
		return 0, err
	}

	if q, err = q.Normalize(); err != nil {
		return 0, err
	}
	filter, err := buildFilter(q)
	if err != nil {
		return 0, err
	}

	result, err := s.collection(collectionName(model, q)).DeleteMany(ctx, filter)
	if err != nil {
		return 0, convertMongoError(err)
	}
	return result.DeletedCount, nil
}

// Begin starts a transaction
func (s *Session) Begin(ctx context.Context) error {
	if !s.open {
		return gdao.ErrSessionClosed
	}
	if s.inTx {
		return gdao.ErrTransactionActive
	}

	if s.provider.transactions {
		sess, err := s.provider.client.StartSession()
		if err != nil {
			return gdao.NewErrorWithCause(gdao.ErrorTypeTransaction, "failed to start session", err)
		}
		if err := sess.StartTransaction(); err != nil {
			sess.EndSession(ctx)
			return gdao.NewErrorWithCause(gdao.ErrorTypeTransaction, "failed to begin transaction", err)
		}
		s.tx = sess
	}
	s.inTx = true
	return nil
}

// Commit commits the active transaction
func (s *Session) Commit() error {
	return s.finish(func(ctx context.Context, sess mongo.Session) error {
		return sess.CommitTransaction(ctx)
	})
}

// Rollback aborts the active transaction
func (s *Session) Rollback() error {
	return s.finish(func(ctx context.Context, sess mongo.Session) error {
		return sess.AbortTransaction(ctx)
	})
}

func (s *Session) finish(end func(ctx context.Context, sess mongo.Session) error) error {
	if !s.inTx {
		return gdao.ErrNoTransaction
	}
	sess := s.tx
	s.tx, s.inTx = nil, false
	if sess == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), transactionTimeout)
	defer cancel()
	defer sess.EndSession(ctx)
	return convertMongoError(end(ctx, sess))
}

// InTransaction reports whether a transaction is active
func (s *Session) InTransaction() bool { return s.inTx }

// Close aborts an open transaction and closes the session
func (s *Session) Close() error {
	if !s.open {
		return nil
	}
	var err error
	if s.inTx {
		err = s.Rollback()
	}
	s.open = false
	return err
}

// IsOpen reports whether the session can still be used
func (s *Session) IsOpen() bool { return s.open }

// =====================================
// Entity Helpers
// =====================================

// collectionName resolves the collection of a model, preferring the query
// table when one is set.
func collectionName(model interface{}, q gdao.Query) string {
	if q.Table != "" {
		return q.Table
	}
	switch m := model.(type) {
	case interface{ CollectionName() string }:
		return m.CollectionName()
	case interface{ TableName() string }:
		return m.TableName()
	}
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return strings.ToLower(t.Name())
}

// idField returns the settable field mapped to "_id"
func idField(entity interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, gdao.NewError(gdao.ErrorTypeInvalidArgument,
			fmt.Sprintf("entity must be a non-nil struct pointer, got %T", entity))
	}

	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("bson")
		if name, _, _ := strings.Cut(tag, ","); name == "_id" {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, gdao.NewError(gdao.ErrorTypeInvalidArgument,
		fmt.Sprintf("%T has no field mapped to _id", entity))
}
