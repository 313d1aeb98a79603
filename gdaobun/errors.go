package gdaobun

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/gdao"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/driver/pgdriver"
)

// SQLSTATE codes shared by both PostgreSQL drivers
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// MySQL server error numbers
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// =====================================
// Error Conversion
// =====================================

// convertBunError converts Bun and driver errors to gdao errors
func convertBunError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return gdao.Error{
			Type:    gdao.ErrorTypeNotFound,
			Message: "record not found",
			Cause:   err,
		}
	}
	if errors.Is(err, sql.ErrTxDone) {
		return gdao.Error{
			Type:    gdao.ErrorTypeTransaction,
			Message: "transaction already finished",
			Cause:   err,
		}
	}

	var gdaoErr gdao.Error
	if errors.As(err, &gdaoErr) {
		return err
	}

	if errType, ok := driverErrorType(err); ok {
		return gdao.Error{
			Type:    errType,
			Message: string(errType) + " violation",
			Cause:   err,
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique"):
		return gdao.Error{
			Type:    gdao.ErrorTypeDuplicate,
			Message: "duplicate key violation",
			Cause:   err,
		}
	case strings.Contains(errStr, "foreign key") || strings.Contains(errStr, "constraint"):
		return gdao.Error{
			Type:    gdao.ErrorTypeConstraint,
			Message: "constraint violation",
			Cause:   err,
		}
	case strings.Contains(errStr, "timeout") || errors.Is(err, context.DeadlineExceeded):
		return gdao.Error{
			Type:    gdao.ErrorTypeTimeout,
			Message: "operation timeout",
			Cause:   err,
		}
	case strings.Contains(errStr, "connection"):
		return gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "connection error",
			Cause:   err,
		}
	default:
		return gdao.Error{
			Type:    gdao.ErrorTypeDatabase,
			Message: "database operation failed",
			Cause:   err,
		}
	}
}

// driverErrorType classifies the typed errors of the supported drivers
func driverErrorType(err error) (gdao.ErrorType, bool) {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return sqlStateType(pgErr.Field('C'))
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlStateType(string(pqErr.Code))
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlDuplicateEntry:
			return gdao.ErrorTypeDuplicate, true
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return gdao.ErrorTypeConstraint, true
		}
		return "", false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return gdao.ErrorTypeDuplicate, true
		default:
			return gdao.ErrorTypeConstraint, true
		}
	}

	return "", false
}

func sqlStateType(code string) (gdao.ErrorType, bool) {
	switch code {
	case pgUniqueViolation:
		return gdao.ErrorTypeDuplicate, true
	case pgForeignKeyViolation:
		return gdao.ErrorTypeConstraint, true
	}
	return "", false
}
