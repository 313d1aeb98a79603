// Package gdaobun provides a Bun session provider for gdao
package gdaobun

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/gdao"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements gdao.SessionFactory using Bun
type Provider struct {
	db     *bun.DB
	config gdao.Config
}

// Factory implements gdao.ProviderFactory
type Factory struct{}

// Create creates a new Bun provider instance
func (f *Factory) Create(config gdao.Config) (gdao.SessionFactory, error) {
	return Open(config)
}

// Open connects to the database described by config
func Open(config gdao.Config) (*Provider, error) {
	provider := &Provider{config: config}
	bunOpts := config.ProviderOptions("bun")

	// Initialize database connection
	var sqlDB *sql.DB
	var err error

	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		if driver, _ := bunOpts["driver"].(string); driver == "pq" {
			sqlDB, err = createPostgresConnection(config)
		} else {
			sqlDB, err = createPgDriverConnection(config)
		}
	case "mysql":
		sqlDB, err = createMySQLConnection(config)
	case "sqlite", "sqlite3":
		sqlDB, err = createSQLiteConnection(config)
	default:
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeUnsupported,
			Message: fmt.Sprintf("unsupported driver: %s", config.Driver),
		}
	}

	if err != nil {
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "failed to connect to database",
			Cause:   err,
		}
	}

	// Configure connection pool
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

	// Create Bun database instance
	var bunDB *bun.DB
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		bunDB = bun.NewDB(sqlDB, mysqldialect.New())
	case "sqlite", "sqlite3":
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	// Add query hook for logging if enabled
	if logLevel, ok := bunOpts["log_level"].(string); ok && logLevel != "silent" {
		bunDB.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(logLevel == "debug"),
		))
	}

	provider.db = bunDB
	return provider, nil
}

// NewProvider wraps an already opened Bun database
func NewProvider(db *bun.DB) *Provider {
	return &Provider{db: db}
}

// SupportedDrivers returns the list of supported database drivers
func (f *Factory) SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}
}

// DB returns the underlying Bun database
func (p *Provider) DB() *bun.DB { return p.db }

// OpenSession opens a session on the shared connection pool
func (p *Provider) OpenSession(ctx context.Context) (gdao.Session, error) {
	return &Session{db: p.db, open: true}, nil
}

// CreateTables creates the tables of the given models when missing
func (p *Provider) CreateTables(ctx context.Context, models ...interface{}) error {
	for _, model := range models {
		if _, err := p.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return convertBunError(err)
		}
	}
	return nil
}

// Health checks the database connection health
func (p *Provider) Health(ctx context.Context) error {
	return convertBunError(p.db.PingContext(ctx))
}

// Close closes the database connection
func (p *Provider) Close() error {
	return p.db.Close()
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
		Name:         "Bun",
		Version:      "1.0.0",
		DatabaseType: gdao.DatabaseTypeSQL,
		Features:     p.SupportedFeatures(),
	}
}

// =====================================
// Session Implementation
// =====================================

// Session implements gdao.Session on a Bun connection or transaction
type Session struct {
	db   *bun.DB
	tx   *bun.Tx
	open bool
}

func (s *Session) conn() (bun.IDB, error) {
	if !s.open {
		return nil, gdao.ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.db, nil
}

// Get loads the first row matching q into dest
func (s *Session) Get(ctx context.Context, dest interface{}, q gdao.Query) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if q, err = q.Normalize(); err != nil {
		return err
	}
	q.Limit = 1
	return convertBunError(buildSelect(db.NewSelect().Model(dest), q).Scan(ctx))
}

// List loads every row matching q into dest
func (s *Session) List(ctx context.Context, dest interface{}, q gdao.Query) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if q, err = q.Normalize(); err != nil {
		return err
	}
	return convertBunError(buildSelect(db.NewSelect().Model(dest), q).Scan(ctx))
}

// Count counts rows matching q, or distinct ids when q is distinct
func (s *Session) Count(ctx context.Context, model interface{}, q gdao.Query) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if q, err = q.Normalize(); err != nil {
		return 0, err
	}

	distinct := q.Distinct
	q.Distinct = false
	q.Fields = nil
	q.Orders = nil
	q.Offset, q.Limit = 0, 0
	query := buildSelect(db.NewSelect().Model(model), q)

	if distinct {
		var count int64
		err := query.ColumnExpr("COUNT(DISTINCT ?)", ident(q.ID())).Scan(ctx, &count)
		return count, convertBunError(err)
	}

	count, err := query.Count(ctx)
	return int64(count), convertBunError(err)
}

// Insert creates the entity and reads back its generated id
func (s *Session) Insert(ctx context.Context, entity interface{}) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.NewInsert().Model(entity).Exec(ctx)
	return convertBunError(err)
}

// Update writes every column of the entity by primary key
func (s *Session) Update(ctx context.Context, entity interface{}) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	result, err := db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return convertBunError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return convertBunError(err)
	}

	if rowsAffected == 0 {
		return gdao.Error{
			Type:    gdao.ErrorTypeNotFound,
			Message: "entity not found",
		}
	}

	return nil
}

// DeleteWhere deletes the rows of model's table matching q
func (s *Session) DeleteWhere(ctx context.Context, model interface{}, q gdao.Query) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if q, err = q.Normalize(); err != nil {
		return 0, err
	}

	query := db.NewDelete().Model(model)
	if len(q.Where) == 0 {
		query = query.Where("1 = 1")
	}
	for _, p := range q.Where {
		sql, args, err := renderPredicate(p)
		if err != nil {
			return 0, err
		}
		query = query.Where(sql, args...)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return 0, convertBunError(err)
	}

	rowsAffected, err := result.RowsAffected()
	return rowsAffected, convertBunError(err)
}

// Begin starts a transaction
func (s *Session) Begin(ctx context.Context) error {
	if !s.open {
		return gdao.ErrSessionClosed
	}
	if s.tx != nil {
		return gdao.ErrTransactionActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gdao.Error{
			Type:    gdao.ErrorTypeTransaction,
			Message: "failed to begin transaction",
			Cause:   err,
		}
	}
	s.tx = &tx
	return nil
}

// Commit commits the active transaction
func (s *Session) Commit() error {
	if s.tx == nil {
		return gdao.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return convertBunError(tx.Commit())
}

// Rollback rolls back the active transaction
func (s *Session) Rollback() error {
	if s.tx == nil {
		return gdao.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return convertBunError(tx.Rollback())
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

// buildSelect applies a gdao query descriptor to a Bun select query
func buildSelect(query *bun.SelectQuery, q gdao.Query) *bun.SelectQuery {
	if q.Table != "" {
		query = query.ModelTableExpr("? AS ?", bun.Ident(q.Table), bun.Ident(q.Table))
	}

	for _, j := range q.Joins {
		query = query.Join(string(j.Type)+" JOIN ? AS ? ON ? = ?",
			bun.Ident(j.Table),
			bun.Ident(j.Alias),
			ident(gdao.Path{Table: j.Alias, Column: j.ForeignKey}),
			ident(gdao.Path{Table: q.Table, Column: j.ParentKey}),
		)
	}

	for _, f := range q.Fields {
		query = query.ColumnExpr("?", ident(f))
	}
	if q.Distinct {
		query = query.Distinct()
	}

	for _, p := range q.Where {
		sql, args, err := renderPredicate(p)
		if err != nil {
			return query.Err(err)
		}
		query = query.Where(sql, args...)
	}

	for _, o := range q.Orders {
		query = query.OrderExpr("? "+string(o.Direction), ident(o.Field))
	}

	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	return query
}

func ident(p gdao.Path) bun.Ident {
	if p.Table == "" {
		return bun.Ident(p.Column)
	}
	return bun.Ident(p.Table + "." + p.Column)
}

// renderPredicate renders a predicate as a Bun query fragment and its args
func renderPredicate(p gdao.Predicate) (string, []interface{}, error) {
	switch pred := p.(type) {
	case gdao.BasicPredicate:
		sql, args := renderBasic(pred)
		return sql, args, nil
	case gdao.CompositePredicate:
		if len(pred.Predicates) == 0 {
			if pred.Logic == gdao.LogicOr {
				return "1 = 0", nil, nil
			}
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var args []interface{}
		for _, child := range pred.Predicates {
			sql, childArgs, err := renderPredicate(child)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, childArgs...)
		}
		if len(parts) == 1 {
			return parts[0], args, nil
		}
		return "(" + strings.Join(parts, " "+string(pred.Logic)+" ") + ")", args, nil
	default:
		return "", nil, gdao.UnsupportedPredicate(p)
	}
}

func renderBasic(p gdao.BasicPredicate) (string, []interface{}) {
	col := ident(p.Field)

	switch p.Op {
	case gdao.OpIn, gdao.OpNotIn:
		values := p.Values()
		if len(values) == 0 {
			if p.Op == gdao.OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		return "? " + string(p.Op) + " (?)", []interface{}{col, bun.In(values)}
	case gdao.OpIsNull, gdao.OpIsNotNull:
		return "? " + string(p.Op), []interface{}{col}
	case gdao.OpNotEqual:
		return "? <> ?", []interface{}{col, p.Value}
	default:
		return "? " + string(p.Op) + " ?", []interface{}{col, p.Value}
	}
}

// =====================================
// Connections
// =====================================

// createPostgresConnection creates a PostgreSQL connection using lib/pq
func createPostgresConnection(config gdao.Config) (*sql.DB, error) {
	return sql.Open("postgres", buildPostgresDSN(config))
}

// createPgDriverConnection creates a PostgreSQL connection using pgdriver
func createPgDriverConnection(config gdao.Config) (*sql.DB, error) {
	dsn := buildPostgresDSN(config)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	return sql.OpenDB(connector), nil
}

// createMySQLConnection creates a MySQL connection
func createMySQLConnection(config gdao.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}
	return sql.Open("mysql", buildMySQLConfig(config).FormatDSN())
}

// createSQLiteConnection creates a SQLite connection
func createSQLiteConnection(config gdao.Config) (*sql.DB, error) {
	return sql.Open("sqlite3", config.Database)
}

// buildPostgresDSN builds a PostgreSQL DSN string
func buildPostgresDSN(config gdao.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	params := []string{}
	if config.SSL.Enabled {
		params = append(params, "sslmode="+config.SSL.Mode)
		if config.SSL.CertFile != "" {
			params = append(params, "sslcert="+config.SSL.CertFile)
		}
		if config.SSL.KeyFile != "" {
			params = append(params, "sslkey="+config.SSL.KeyFile)
		}
		if config.SSL.CAFile != "" {
			params = append(params, "sslrootcert="+config.SSL.CAFile)
		}
	} else {
		params = append(params, "sslmode=disable")
	}

	return dsn + "?" + strings.Join(params, "&")
}

// buildMySQLConfig builds a MySQL driver configuration. ClientFoundRows
// makes an update of an unchanged row report it as affected.
func buildMySQLConfig(config gdao.Config) *mysql.Config {
	mysqlConfig := mysql.NewConfig()
	mysqlConfig.User = config.Username
	mysqlConfig.Passwd = config.Password
	mysqlConfig.Net = "tcp"
	mysqlConfig.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	mysqlConfig.DBName = config.Database
	mysqlConfig.ParseTime = true
	mysqlConfig.ClientFoundRows = true
	if config.SSL.Enabled {
		mysqlConfig.TLSConfig = config.SSL.Mode
	}
	return mysqlConfig
}

// =====================================
// Registration
// =====================================

// init registers the Bun provider factory
func init() {
	gdao.RegisterProvider("bun", &Factory{})
}
