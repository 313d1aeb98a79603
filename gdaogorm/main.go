// Package gdaogorm provides a GORM session provider for gdao
package gdaogorm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lemmego/gdao"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements gdao.SessionFactory using GORM
type Provider struct {
	db     *gorm.DB
	config gdao.Config
}

// Factory implements gdao.ProviderFactory
type Factory struct{}

// Create creates a new GORM provider instance
func (f *Factory) Create(config gdao.Config) (gdao.SessionFactory, error) {
	return Open(config)
}

// Open connects to the database described by config
func Open(config gdao.Config) (*Provider, error) {
	provider := &Provider{config: config}

	// Configure GORM
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	}

	// Apply custom configurations from options
	if gormOpts := config.ProviderOptions("gorm"); gormOpts != nil {
		if logLevel, ok := gormOpts["log_level"].(string); ok {
			switch logLevel {
			case "silent":
				gormConfig.Logger = logger.Default.LogMode(logger.Silent)
			case "error":
				gormConfig.Logger = logger.Default.LogMode(logger.Error)
			case "warn":
				gormConfig.Logger = logger.Default.LogMode(logger.Warn)
			case "info":
				gormConfig.Logger = logger.Default.LogMode(logger.Info)
			}
		}

		if singularTable, ok := gormOpts["singular_table"].(bool); ok {
			gormConfig.NamingStrategy = schema.NamingStrategy{
				SingularTable: singularTable,
			}
		}
	}

	// Initialize database connection
	var dialector gorm.Dialector

	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(buildPostgresDSN(config))
	case "mysql":
		dialector = mysql.Open(buildMySQLDSN(config))
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(config.Database)
	case "sqlserver", "mssql":
		dialector = sqlserver.Open(buildSQLServerDSN(config))
	default:
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeUnsupported,
			Message: fmt.Sprintf("unsupported driver: %s", config.Driver),
		}
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "failed to connect to database",
			Cause:   err,
		}
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "failed to get underlying sql.DB",
			Cause:   err,
		}
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	provider.db = db
	return provider, nil
}

// NewProvider wraps an already opened GORM database
func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

// SupportedDrivers returns the list of supported database drivers
func (f *Factory) SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3", "sqlserver", "mssql"}
}

// DB returns the underlying GORM database
func (p *Provider) DB() *gorm.DB { return p.db }

// OpenSession opens a session on the shared connection pool
func (p *Provider) OpenSession(ctx context.Context) (gdao.Session, error) {
	return &Session{db: p.db, open: true}, nil
}

// AutoMigrate creates or updates the tables of the given models
func (p *Provider) AutoMigrate(ctx context.Context, models ...interface{}) error {
	return convertGormError(p.db.WithContext(ctx).AutoMigrate(models...))
}

// Health checks the database connection health
func (p *Provider) Health(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "failed to get underlying sql.DB",
			Cause:   err,
		}
	}
	return convertGormError(sqlDB.PingContext(ctx))
}

// Close closes the database connection
func (p *Provider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SupportedFeatures returns the list of supported features
func (p *Provider) SupportedFeatures() []gdao.Feature {
	return []gdao.Feature{
		gdao.FeatureTransactions,
		gdao.FeatureJoins,
		gdao.FeatureDistinct,
		gdao.FeaturePagination,
		gdao.FeatureAggregation,
	}
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() gdao.ProviderInfo {
	return gdao.ProviderInfo{
		Name:         "GORM",
		Version:      "1.0.0",
		DatabaseType: gdao.DatabaseTypeSQL,
		Features:     p.SupportedFeatures(),
	}
}

// =====================================
// Session Implementation
// =====================================

// Session implements gdao.Session on a GORM connection or transaction
type Session struct {
	db   *gorm.DB
	tx   *gorm.DB
	open bool
}

func (s *Session) conn(ctx context.Context) (*gorm.DB, error) {
	if !s.open {
		return nil, gdao.ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx.WithContext(ctx), nil
	}
	return s.db.WithContext(ctx), nil
}

// Get loads the first row matching q into dest
func (s *Session) Get(ctx context.Context, dest interface{}, q gdao.Query) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if q, err = q.Normalize(); err != nil {
		return err
	}
	return convertGormError(applyQuery(db, q).Take(dest).Error)
}

// List loads every row matching q into dest
func (s *Session) List(ctx context.Context, dest interface{}, q gdao.Query) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if q, err = q.Normalize(); err != nil {
		return err
	}
	return convertGormError(applyQuery(db, q).Find(dest).Error)
}

// Count counts rows matching q, or distinct ids when q is distinct
func (s *Session) Count(ctx context.Context, model interface{}, q gdao.Query) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	if q, err = q.Normalize(); err != nil {
		return 0, err
	}

	distinct := q.Distinct
	q.Distinct = false
	q.Orders = nil
	q.Offset, q.Limit = 0, 0
	query := applyQuery(db.Model(model), q)

	var count int64
	if distinct {
		err = query.Select("COUNT(DISTINCT ?)", column(q.ID())).Scan(&count).Error
	} else {
		err = query.Count(&count).Error
	}
	return count, convertGormError(err)
}

// Insert creates the entity without touching its associations
func (s *Session) Insert(ctx context.Context, entity interface{}) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return convertGormError(db.Omit(clause.Associations).Create(entity).Error)
}

// Update writes every column of the entity by primary key
func (s *Session) Update(ctx context.Context, entity interface{}) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	result := db.Model(entity).Select("*").Omit(clause.Associations).Updates(entity)
	if result.Error != nil {
		return convertGormError(result.Error)
	}

	if result.RowsAffected == 0 {
		return gdao.Error{
			Type:    gdao.ErrorTypeNotFound,
			Message: "entity not found",
		}
	}

	return nil
}

// DeleteWhere deletes the rows of model's table matching q
func (s *Session) DeleteWhere(ctx context.Context, model interface{}, q gdao.Query) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	if q, err = q.Normalize(); err != nil {
		return 0, err
	}

	result := applyWhere(db, q.Where).Delete(model)
	if result.Error != nil {
		return 0, convertGormError(result.Error)
	}
	return result.RowsAffected, nil
}

// Begin starts a transaction
func (s *Session) Begin(ctx context.Context) error {
	if !s.open {
		return gdao.ErrSessionClosed
	}
	if s.tx != nil {
		return gdao.ErrTransactionActive
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return gdao.Error{
			Type:    gdao.ErrorTypeTransaction,
			Message: "failed to begin transaction",
			Cause:   tx.Error,
		}
	}
	s.tx = tx
	return nil
}

// Commit commits the active transaction
func (s *Session) Commit() error {
	if s.tx == nil {
		return gdao.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return convertGormError(tx.Commit().Error)
}

// Rollback rolls back the active transaction
func (s *Session) Rollback() error {
	if s.tx == nil {
		return gdao.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return convertGormError(tx.Rollback().Error)
}

// InTransaction reports whether a transaction is active
func (s *Session) InTransaction() bool { return s.tx != nil }

// Close rolls back an open transaction and closes the session
func (s *Session) Close() error {
	if !s.open {
		return nil
	}
	var err error
	if s.tx != nil {
		err = s.Rollback()
	}
	s.open = false
	return err
}

// IsOpen reports whether the session can still be used
func (s *Session) IsOpen() bool { return s.open }

// =====================================
// Query Translation
// =====================================

// applyQuery translates a gdao query descriptor onto a GORM statement
func applyQuery(db *gorm.DB, q gdao.Query) *gorm.DB {
	if q.Table != "" {
		db = db.Table(q.Table)
	}

	for _, j := range q.Joins {
		db = db.Joins(string(j.Type)+" JOIN ? ? ON ? = ?",
			clause.Table{Name: j.Table},
			clause.Table{Name: j.Alias},
			clause.Column{Table: j.Alias, Name: j.ForeignKey},
			clause.Column{Table: q.Table, Name: j.ParentKey},
		)
	}

	if len(q.Fields) > 0 {
		columns := make([]clause.Column, len(q.Fields))
		for i, f := range q.Fields {
			columns[i] = column(f)
		}
		db = db.Clauses(clause.Select{Distinct: q.Distinct, Columns: columns})
	} else if q.Distinct {
		db = db.Distinct()
	}

	db = applyWhere(db, q.Where)

	for _, o := range q.Orders {
		db = db.Order(clause.OrderByColumn{
			Column: column(o.Field),
			Desc:   o.Direction == gdao.OrderDesc,
		})
	}

	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	return db
}

func applyWhere(db *gorm.DB, predicates []gdao.Predicate) *gorm.DB {
	if len(predicates) == 0 {
		return db
	}
	exprs := make([]clause.Expression, 0, len(predicates))
	for _, p := range predicates {
		expr, err := toExpression(p)
		if err != nil {
			db.AddError(err)
			return db
		}
		exprs = append(exprs, expr)
	}
	return db.Clauses(clause.Where{Exprs: exprs})
}

func column(p gdao.Path) clause.Column {
	return clause.Column{Table: p.Table, Name: p.Column}
}

var (
	alwaysTrue  = clause.Expr{SQL: "1 = 1"}
	alwaysFalse = clause.Expr{SQL: "1 = 0"}
)

// toExpression converts a predicate into a GORM clause expression
func toExpression(p gdao.Predicate) (clause.Expression, error) {
	switch pred := p.(type) {
	case gdao.BasicPredicate:
		return basicExpression(pred), nil
	case gdao.CompositePredicate:
		if len(pred.Predicates) == 0 {
			if pred.Logic == gdao.LogicOr {
				return alwaysFalse, nil
			}
			return alwaysTrue, nil
		}
		if len(pred.Predicates) == 1 {
			return toExpression(pred.Predicates[0])
		}
		exprs := make([]clause.Expression, 0, len(pred.Predicates))
		for _, child := range pred.Predicates {
			expr, err := toExpression(child)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		if pred.Logic == gdao.LogicOr {
			return clause.Or(exprs...), nil
		}
		return clause.And(exprs...), nil
	default:
		return nil, gdao.UnsupportedPredicate(p)
	}
}

func basicExpression(p gdao.BasicPredicate) clause.Expression {
	col := column(p.Field)

	switch p.Op {
	case gdao.OpEqual:
		return clause.Eq{Column: col, Value: p.Value}
	case gdao.OpNotEqual:
		return clause.Neq{Column: col, Value: p.Value}
	case gdao.OpGreaterThan:
		return clause.Gt{Column: col, Value: p.Value}
	case gdao.OpGreaterThanOrEqual:
		return clause.Gte{Column: col, Value: p.Value}
	case gdao.OpLessThan:
		return clause.Lt{Column: col, Value: p.Value}
	case gdao.OpLessThanOrEqual:
		return clause.Lte{Column: col, Value: p.Value}
	case gdao.OpLike:
		return clause.Like{Column: col, Value: p.Value}
	case gdao.OpNotLike:
		return clause.Not(clause.Like{Column: col, Value: p.Value})
	case gdao.OpIn:
		values := p.Values()
		if len(values) == 0 {
			return alwaysFalse
		}
		return clause.IN{Column: col, Values: values}
	case gdao.OpNotIn:
		values := p.Values()
		if len(values) == 0 {
			return alwaysTrue
		}
		return clause.Not(clause.IN{Column: col, Values: values})
	case gdao.OpIsNull:
		return clause.Eq{Column: col, Value: nil}
	case gdao.OpIsNotNull:
		return clause.Neq{Column: col, Value: nil}
	default:
		return clause.Expr{SQL: "? " + string(p.Op) + " ?", Vars: []interface{}{col, p.Value}}
	}
}

// =====================================
// Error Conversion
// =====================================

// convertGormError converts GORM errors to gdao errors
func convertGormError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return gdao.Error{
			Type:    gdao.ErrorTypeNotFound,
			Message: "record not found",
			Cause:   err,
		}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return gdao.Error{
			Type:    gdao.ErrorTypeDuplicate,
			Message: "duplicate key violation",
			Cause:   err,
		}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return gdao.Error{
			Type:    gdao.ErrorTypeConstraint,
			Message: "foreign key violation",
			Cause:   err,
		}
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return gdao.Error{
			Type:    gdao.ErrorTypeTransaction,
			Message: "invalid transaction",
			Cause:   err,
		}
	case errors.Is(err, gorm.ErrNotImplemented), errors.Is(err, gorm.ErrUnsupportedRelation):
		return gdao.Error{
			Type:    gdao.ErrorTypeUnsupported,
			Message: "operation not supported",
			Cause:   err,
		}
	case errors.Is(err, gorm.ErrMissingWhereClause):
		return gdao.Error{
			Type:    gdao.ErrorTypeValidation,
			Message: "missing where clause",
			Cause:   err,
		}
	case errors.Is(err, gorm.ErrPrimaryKeyRequired), errors.Is(err, gorm.ErrModelValueRequired),
		errors.Is(err, gorm.ErrInvalidData):
		return gdao.Error{
			Type:    gdao.ErrorTypeValidation,
			Message: "invalid model",
			Cause:   err,
		}
	}

	var gdaoErr gdao.Error
	if errors.As(err, &gdaoErr) {
		return err
	}

	// Check for common database constraint errors
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique") {
		return gdao.Error{
			Type:    gdao.ErrorTypeDuplicate,
			Message: "duplicate key violation",
			Cause:   err,
		}
	}
	if strings.Contains(errStr, "foreign key") || strings.Contains(errStr, "constraint") {
		return gdao.Error{
			Type:    gdao.ErrorTypeConstraint,
			Message: "constraint violation",
			Cause:   err,
		}
	}
	if strings.Contains(errStr, "timeout") || errors.Is(err, context.DeadlineExceeded) {
		return gdao.Error{
			Type:    gdao.ErrorTypeTimeout,
			Message: "operation timeout",
			Cause:   err,
		}
	}
	if strings.Contains(errStr, "connection") {
		return gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "connection error",
			Cause:   err,
		}
	}

	return gdao.Error{
		Type:    gdao.ErrorTypeDatabase,
		Message: "database operation failed",
		Cause:   err,
	}
}

// =====================================
// DSN Builders
// =====================================

// buildPostgresDSN builds a PostgreSQL DSN
func buildPostgresDSN(config gdao.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}

	return dsn
}

// buildMySQLDSN builds a MySQL DSN. clientFoundRows makes an update of an
// unchanged row report it as affected.
func buildMySQLDSN(config gdao.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn += "&tls=" + config.SSL.Mode
	}

	return dsn
}

// buildSQLServerDSN builds a SQL Server DSN
func buildSQLServerDSN(config gdao.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}

// =====================================
// Registration
// =====================================

// init registers the GORM provider factory
func init() {
	gdao.RegisterProvider("gorm", &Factory{})
}
