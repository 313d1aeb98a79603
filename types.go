package gdao

// ProviderInfo contains information about the provider
type ProviderInfo struct {
	Name         string
	Version      string
	DatabaseType DatabaseType
	Features     []Feature
}

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQL      DatabaseType = "sql"
	DatabaseTypeDocument DatabaseType = "document"
)

// Feature represents a database feature
type Feature string

const (
	FeatureTransactions Feature = "transactions"
	FeatureJoins        Feature = "joins"
	FeatureDistinct     Feature = "distinct"
	FeaturePagination   Feature = "pagination"
	FeatureAggregation  Feature = "aggregation"
	FeatureRawSQL       Feature = "raw_sql"
)

// Has reports whether the provider supports the given feature.
func (i ProviderInfo) Has(f Feature) bool {
	for _, feature := range i.Features {
		if feature == f {
			return true
		}
	}
	return false
}

// Operator represents query operators
type Operator string

const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "!="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpLike               Operator = "LIKE"
	OpNotLike            Operator = "NOT LIKE"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT IN"
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
)

// LogicOperator represents logic operators for combining predicates
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// JoinType represents types of table joins
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeDuplicate       ErrorType = "duplicate"
	ErrorTypeConnection      ErrorType = "connection"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeConstraint      ErrorType = "constraint"
	ErrorTypeTransaction     ErrorType = "transaction"
	ErrorTypeUnsupported     ErrorType = "unsupported"
	ErrorTypeInternal        ErrorType = "internal"
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeDatabase        ErrorType = "database"
)
