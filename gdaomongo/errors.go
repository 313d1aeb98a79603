package gdaomongo

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lemmego/gdao"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
	codeNamespaceNotFound    = 26
	codeCollectionNotFound   = 48
	codeDocumentValidation   = 121
	codeTransactionTooOld    = 244
	codeNoSuchTransaction    = 251
)

// =====================================
// Error Conversion
// =====================================

// convertMongoError converts MongoDB errors to gdao errors
func convertMongoError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return gdao.Error{
			Type:    gdao.ErrorTypeNotFound,
			Message: "document not found",
			Cause:   err,
		}
	case errors.Is(err, mongo.ErrNilDocument), errors.Is(err, mongo.ErrNilValue):
		return gdao.Error{
			Type:    gdao.ErrorTypeValidation,
			Message: "nil document provided",
			Cause:   err,
		}
	case mongo.IsDuplicateKeyError(err):
		return gdao.Error{
			Type:    gdao.ErrorTypeDuplicate,
			Message: "duplicate key violation",
			Cause:   err,
		}
	case mongo.IsTimeout(err):
		return gdao.Error{
			Type:    gdao.ErrorTypeTimeout,
			Message: "operation timeout",
			Cause:   err,
		}
	case mongo.IsNetworkError(err):
		return gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "connection error",
			Cause:   err,
		}
	}

	var gdaoErr gdao.Error
	if errors.As(err, &gdaoErr) {
		return err
	}

	// Check for MongoDB-specific errors
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeDocumentValidation {
				return gdao.Error{
					Type:    gdao.ErrorTypeValidation,
					Message: "document validation failed",
					Cause:   err,
				}
			}
		}
	}

	// Check for command errors
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case codeNamespaceNotFound, codeCollectionNotFound:
			return gdao.Error{
				Type:    gdao.ErrorTypeNotFound,
				Message: "collection not found",
				Cause:   err,
			}
		case codeUnauthorized, codeAuthenticationFailed:
			return gdao.Error{
				Type:    gdao.ErrorTypeConnection,
				Message: "authentication failed",
				Cause:   err,
			}
		case codeNoSuchTransaction, codeTransactionTooOld:
			return gdao.Error{
				Type:    gdao.ErrorTypeTransaction,
				Message: "transaction aborted by the server",
				Cause:   err,
			}
		}
		if cmdErr.HasErrorLabel("TransientTransactionError") {
			return gdao.Error{
				Type:    gdao.ErrorTypeTransaction,
				Message: "transient transaction error",
				Cause:   err,
			}
		}
	}

	// Check for connection errors
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "connection error",
			Cause:   err,
		}
	}

	// Default to generic error
	return gdao.Error{
		Type:    gdao.ErrorTypeDatabase,
		Message: "database operation failed",
		Cause:   err,
	}
}
