package gdao

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =====================================
// Session Contracts
// =====================================

// Session is a unit of exclusive access to a data store, executing query
// descriptors through an ORM. A session is not safe for concurrent use.
type Session interface {
	// Get loads the first row matching q into dest. It returns a not-found
	// error when nothing matches.
	Get(ctx context.Context, dest interface{}, q Query) error
	// List loads every row matching q into dest, a pointer to a slice.
	List(ctx context.Context, dest interface{}, q Query) error
	// Count counts rows matching q. A distinct query counts distinct ids.
	Count(ctx context.Context, model interface{}, q Query) (int64, error)
	// Insert persists a new entity and assigns its generated id.
	Insert(ctx context.Context, entity interface{}) error
	// Update writes every column of a persisted entity. It returns a
	// not-found error when no row has the entity's id.
	Update(ctx context.Context, entity interface{}) error
	// DeleteWhere deletes rows of model's table matching q.
	DeleteWhere(ctx context.Context, model interface{}, q Query) (int64, error)

	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
	InTransaction() bool

	// Close releases the session, rolling back an open transaction.
	Close() error
	IsOpen() bool
}

// SessionFactory opens sessions on a configured data store
type SessionFactory interface {
	OpenSession(ctx context.Context) (Session, error)
	Health(ctx context.Context) error
	ProviderInfo() ProviderInfo
	Close() error
}

// =====================================
// Session Manager
// =====================================

// SessionManager runs units of work, each in its own transactional session
type SessionManager struct {
	factory SessionFactory
	logger  *zap.Logger
	metrics *Metrics
}

// ManagerOption configures a SessionManager
type ManagerOption func(*SessionManager)

// WithLogger sets the logger used for unit-of-work diagnostics
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records unit-of-work outcomes and durations
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *SessionManager) {
		m.metrics = metrics
	}
}

// NewSessionManager creates a manager owning the factory
func NewSessionManager(factory SessionFactory, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Factory returns the underlying session factory
func (m *SessionManager) Factory() SessionFactory { return m.factory }

// Close shuts down the session factory
func (m *SessionManager) Close() error {
	return m.factory.Close()
}

// Do runs fn as a unit of work. See InSession.
func (m *SessionManager) Do(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	_, err := InSession(ctx, m, func(ctx context.Context, s Session) (struct{}, error) {
		return struct{}{}, fn(ctx, s)
	})
	return err
}

// InSession opens a session, begins a transaction and runs fn. The
// transaction commits when fn succeeds and rolls back when it fails or
// panics; the error or panic is passed on unchanged. The session is closed
// on every path. If fn closes the session itself a warning is logged and
// the result is returned as is.
func InSession[R any](ctx context.Context, m *SessionManager, fn func(ctx context.Context, s Session) (R, error)) (result R, err error) {
	log := m.logger.With(zap.String("unit_of_work", uuid.NewString()))
	start := time.Now()

	s, err := m.factory.OpenSession(ctx)
	if err != nil {
		return result, err
	}
	if err = s.Begin(ctx); err != nil {
		m.release(log, s)
		return result, err
	}
	log.Debug("transaction started")

	outcome := OutcomeRollback
	defer func() {
		if r := recover(); r != nil {
			log.Error("unit of work panicked", zap.Any("panic", r))
			m.rollback(log, s)
			m.release(log, s)
			m.metrics.observe(OutcomePanic, time.Since(start))
			panic(r)
		}
		m.release(log, s)
		m.metrics.observe(outcome, time.Since(start))
	}()

	result, err = fn(ctx, s)

	if !s.IsOpen() {
		outcome = OutcomeClosed
		return result, err
	}
	if err != nil {
		log.Debug("unit of work failed", zap.Error(err))
		m.rollback(log, s)
		return result, err
	}
	if err = s.Commit(); err != nil {
		log.Error("commit failed", zap.Error(err))
		return result, err
	}
	outcome = OutcomeCommit
	log.Debug("transaction committed")
	return result, nil
}

func (m *SessionManager) rollback(log *zap.Logger, s Session) {
	if !s.IsOpen() || !s.InTransaction() {
		return
	}
	if err := s.Rollback(); err != nil {
		log.Error("rollback failed", zap.Error(err))
		return
	}
	log.Debug("transaction rolled back")
}

func (m *SessionManager) release(log *zap.Logger, s Session) {
	if !s.IsOpen() {
		log.Warn("session was already closed by the unit of work")
		return
	}
	if err := s.Close(); err != nil {
		log.Error("failed to close session", zap.Error(err))
	}
}
