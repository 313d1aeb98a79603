package gdaomongo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lemmego/gdao"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// matchNothing is a filter no document satisfies
var matchNothing = bson.M{"_id": bson.M{"$in": bson.A{}}}

// =====================================
// Filter Building
// =====================================

// fieldName maps a query path to a document field. Columns of the root
// collection map to top level fields, joined columns to fields of the
// looked up array, and "id" to "_id".
func fieldName(q gdao.Query, p gdao.Path) string {
	column := p.Column
	if strings.EqualFold(column, "id") {
		column = "_id"
	}
	if p.Table == "" || p.Table == q.Table {
		return column
	}
	return p.Table + "." + column
}

// buildFilter converts the query predicates into a MongoDB filter
func buildFilter(q gdao.Query) (bson.M, error) {
	switch len(q.Where) {
	case 0:
		return bson.M{}, nil
	case 1:
		return buildPredicate(q, q.Where[0])
	}

	filters := make(bson.A, 0, len(q.Where))
	for _, p := range q.Where {
		filter, err := buildPredicate(q, p)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}
	return bson.M{"$and": filters}, nil
}

// buildPredicate builds a MongoDB filter from a predicate
func buildPredicate(q gdao.Query, p gdao.Predicate) (bson.M, error) {
	switch pred := p.(type) {
	case gdao.BasicPredicate:
		return buildOperatorCondition(fieldName(q, pred.Field), pred), nil
	case gdao.CompositePredicate:
		return buildCompositeCondition(q, pred)
	default:
		return nil, gdao.UnsupportedPredicate(p)
	}
}

// buildCompositeCondition builds MongoDB filter from a composite predicate
func buildCompositeCondition(q gdao.Query, pred gdao.CompositePredicate) (bson.M, error) {
	if len(pred.Predicates) == 0 {
		if pred.Logic == gdao.LogicOr {
			return matchNothing, nil
		}
		return bson.M{}, nil
	}
	if len(pred.Predicates) == 1 {
		return buildPredicate(q, pred.Predicates[0])
	}

	filters := make(bson.A, 0, len(pred.Predicates))
	for _, child := range pred.Predicates {
		filter, err := buildPredicate(q, child)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}

	if pred.Logic == gdao.LogicOr {
		return bson.M{"$or": filters}, nil
	}
	return bson.M{"$and": filters}, nil
}

// buildOperatorCondition builds MongoDB filter for a specific operator
func buildOperatorCondition(field string, p gdao.BasicPredicate) bson.M {
	value := p.Value

	switch p.Op {
	case gdao.OpEqual:
		return bson.M{field: bson.M{"$eq": value}}
	case gdao.OpNotEqual:
		return bson.M{field: bson.M{"$ne": value}}
	case gdao.OpGreaterThan:
		return bson.M{field: bson.M{"$gt": value}}
	case gdao.OpGreaterThanOrEqual:
		return bson.M{field: bson.M{"$gte": value}}
	case gdao.OpLessThan:
		return bson.M{field: bson.M{"$lt": value}}
	case gdao.OpLessThanOrEqual:
		return bson.M{field: bson.M{"$lte": value}}
	case gdao.OpLike:
		return bson.M{field: bson.M{"$regex": likeToRegex(value)}}
	case gdao.OpNotLike:
		return bson.M{field: bson.M{"$not": primitive.Regex{Pattern: likeToRegex(value)}}}
	case gdao.OpIn:
		values := p.Values()
		if len(values) == 0 {
			return matchNothing
		}
		return bson.M{field: bson.M{"$in": values}}
	case gdao.OpNotIn:
		values := p.Values()
		if len(values) == 0 {
			return bson.M{}
		}
		return bson.M{field: bson.M{"$nin": values}}
	case gdao.OpIsNull:
		return bson.M{field: nil}
	case gdao.OpIsNotNull:
		return bson.M{field: bson.M{"$ne": nil}}
	default:
		return matchNothing
	}
}

// likeToRegex converts a LIKE pattern into an anchored regular expression
func likeToRegex(pattern interface{}) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range fmt.Sprintf("%v", pattern) {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// =====================================
// Find Options and Pipelines
// =====================================

// buildSort creates an ordered sort document
func buildSort(q gdao.Query) bson.D {
	sort := bson.D{}
	for _, order := range q.Orders {
		direction := 1
		if order.Direction == gdao.OrderDesc {
			direction = -1
		}
		sort = append(sort, bson.E{Key: fieldName(q, order.Field), Value: direction})
	}
	return sort
}

// buildProjection keeps only the selected root fields
func buildProjection(q gdao.Query) bson.M {
	if len(q.Fields) == 0 {
		return nil
	}
	projection := bson.M{}
	for _, f := range q.Fields {
		projection[fieldName(q, f)] = 1
	}
	return projection
}

// buildFindOptions translates ordering, paging and projection
func buildFindOptions(q gdao.Query) *options.FindOptions {
	findOpts := options.Find()
	if sort := buildSort(q); len(sort) > 0 {
		findOpts.SetSort(sort)
	}
	if q.Offset > 0 {
		findOpts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}
	if projection := buildProjection(q); projection != nil {
		findOpts.SetProjection(projection)
	}
	return findOpts
}

// BuildLookupStage creates a $lookup stage for a join
func BuildLookupStage(j gdao.JoinClause) bson.M {
	return bson.M{
		"$lookup": bson.M{
			"from":         j.Table,
			"localField":   fieldName(gdao.Query{}, gdao.Path{Column: j.ParentKey}),
			"foreignField": j.ForeignKey,
			"as":           j.Alias,
		},
	}
}

// buildPipeline builds an aggregation pipeline for a query with joins.
// Each root document appears at most once, whatever the number of joined
// documents it matches.
func buildPipeline(q gdao.Query) ([]bson.M, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}

	pipeline := []bson.M{}
	for _, j := range q.Joins {
		pipeline = append(pipeline, BuildLookupStage(j))
	}
	pipeline = append(pipeline, bson.M{"$match": filter})

	// Drop the looked up arrays before decoding
	if len(q.Joins) > 0 {
		unset := bson.M{}
		for _, j := range q.Joins {
			unset[j.Alias] = 0
		}
		pipeline = append(pipeline, bson.M{"$project": unset})
	}

	if sort := buildSort(q); len(sort) > 0 {
		pipeline = append(pipeline, bson.M{"$sort": sort})
	}
	if q.Offset > 0 {
		pipeline = append(pipeline, bson.M{"$skip": q.Offset})
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": q.Limit})
	}
	if projection := buildProjection(q); projection != nil {
		pipeline = append(pipeline, bson.M{"$project": projection})
	}
	return pipeline, nil
}

// buildCountPipeline counts the documents a joined query matches
func buildCountPipeline(q gdao.Query) ([]bson.M, error) {
	q.Orders = nil
	q.Offset, q.Limit = 0, 0
	q.Fields = nil
	pipeline, err := buildPipeline(q)
	if err != nil {
		return nil, err
	}
	return append(pipeline, bson.M{"$count": "n"}), nil
}
