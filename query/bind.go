package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/bmeg/doctable"
	"github.com/bmeg/grip/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var comparisonOps = map[string]string{
	opEq:  "$eq",
	opNe:  "$ne",
	opLt:  "$lt",
	opLte: "$lte",
	opGt:  "$gt",
	opGte: "$gte",
}

// Bind substitutes args for the placeholders, in order, and builds the
// native query. The statement itself is left untouched.
func (s *Statement) Bind(args ...any) (*doctable.NativeQuery, error) {
	if len(args) != s.params {
		return nil, fmt.Errorf("%w: statement has %d parameters, %d values supplied", doctable.ErrParameterBinding, s.params, len(args))
	}
	bound := make([]any, len(args))
	for i, a := range args {
		v, err := wireValue(a)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %d: %v", doctable.ErrParameterBinding, i+1, err)
		}
		bound[i] = v
	}

	q := &doctable.NativeQuery{Collection: s.collection, Limit: s.limit}
	filter, err := s.filter(bound)
	if err != nil {
		return nil, err
	}
	q.Filter = filter
	q.Projection = s.projection()
	for _, o := range s.order {
		dir := 1
		if o.desc {
			dir = -1
		}
		q.Sort = append(q.Sort, bson.E{Key: o.field, Value: dir})
	}
	log.Debugf("Translated '%s' to filter=%v projection=%v sort=%v limit=%d", s.text, q.Filter, q.Projection, q.Sort, q.Limit)
	return q, nil
}

// wireValue converts a Go value supplied for a placeholder into the
// driver's wire representation.
func wireValue(a any) (any, error) {
	switch v := a.(type) {
	case nil:
		return nil, nil
	case doctable.Value:
		return v.ToBSON()
	case bool, string, int32, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int32(v), nil
	case int16:
		return int32(v), nil
	case uint8:
		return int32(v), nil
	case uint16:
		return int32(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []byte:
		return primitive.Binary{Data: append([]byte(nil), v...)}, nil
	case time.Time:
		return primitive.NewDateTimeFromTime(v), nil
	case decimal.Decimal:
		return doctable.NewDecimal(v).ToBSON()
	case primitive.ObjectID, primitive.DateTime, primitive.Decimal128, primitive.Binary:
		return v, nil
	}
	return nil, fmt.Errorf("values of type %T cannot be represented", a)
}

func (s *Statement) resolve(o operand, bound []any) (any, error) {
	if o.param >= 0 {
		return bound[o.param], nil
	}
	return o.value.ToBSON()
}

type clause struct {
	op    string
	value any
}

// filter merges clauses by field. A field with a single equality keeps the
// short {f: v} form; otherwise its clauses share one operator document.
// Clauses that repeat an operator on the same field move into $and.
func (s *Statement) filter(bound []any) (bson.D, error) {
	var fields []string
	byField := map[string][]clause{}
	for _, c := range s.conds {
		cl, err := s.translate(c, bound)
		if err != nil {
			return nil, err
		}
		if _, ok := byField[c.field]; !ok {
			fields = append(fields, c.field)
		}
		byField[c.field] = append(byField[c.field], cl...)
	}
	out := bson.D{}
	var and bson.A
	for _, f := range fields {
		cls := byField[f]
		if len(cls) == 1 && cls[0].op == "$eq" {
			out = append(out, bson.E{Key: f, Value: cls[0].value})
			continue
		}
		ops := bson.D{}
		seen := map[string]bool{}
		for _, cl := range cls {
			if seen[cl.op] {
				and = append(and, bson.D{{Key: f, Value: bson.D{{Key: cl.op, Value: cl.value}}}})
				continue
			}
			seen[cl.op] = true
			ops = append(ops, bson.E{Key: cl.op, Value: cl.value})
		}
		out = append(out, bson.E{Key: f, Value: ops})
	}
	if len(and) > 0 {
		out = append(out, bson.E{Key: "$and", Value: and})
	}
	return out, nil
}

func (s *Statement) translate(c condition, bound []any) ([]clause, error) {
	switch c.op {
	case opIsNull:
		return []clause{{"$eq", nil}}, nil
	case opIsNotNull:
		return []clause{{"$ne", nil}}, nil
	case opIn:
		list := make(bson.A, 0, len(c.operands))
		for _, o := range c.operands {
			v, err := s.resolve(o, bound)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return []clause{{"$in", list}}, nil
	case opLike:
		v, err := s.resolve(c.operands[0], bound)
		if err != nil {
			return nil, err
		}
		pattern, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: LIKE pattern for %s must be a string, got %T", doctable.ErrParameterBinding, c.field, v)
		}
		return []clause{{"$regex", primitive.Regex{Pattern: LikeToRegex(pattern), Options: "s"}}}, nil
	}
	op, ok := comparisonOps[c.op]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s", doctable.ErrUnsupportedQueryConstruct, c.op)
	}
	v, err := s.resolve(c.operands[0], bound)
	if err != nil {
		return nil, err
	}
	return []clause{{op, v}}, nil
}

// LikeToRegex converts a LIKE pattern into an anchored regular expression.
// % matches any run, _ any single character and a backslash escapes the
// next character.
func LikeToRegex(pattern string) string {
	var sb strings.Builder
	sb.WriteByte('^')
	var lit strings.Builder
	flush := func() {
		sb.WriteString(regexp.QuoteMeta(lit.String()))
		lit.Reset()
	}
	rs := []rune(pattern)
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; {
		case r == '\\' && i+1 < len(rs):
			i++
			lit.WriteRune(rs[i])
		case r == '%':
			flush()
			sb.WriteString(".*")
		case r == '_':
			flush()
			sb.WriteByte('.')
		default:
			lit.WriteRune(r)
		}
	}
	flush()
	sb.WriteByte('$')
	return sb.String()
}

// projection selects the named columns. A column below another selected
// column is covered by its ancestor and left out.
func (s *Statement) projection() bson.D {
	if s.columns == nil {
		return nil
	}
	out := bson.D{}
	seen := map[string]bool{}
	wantID := false
	for _, c := range s.columns {
		if c == "_id" {
			wantID = true
		}
		if seen[c] || s.coveredByAncestor(c) {
			continue
		}
		seen[c] = true
		out = append(out, bson.E{Key: c, Value: 1})
	}
	if !wantID {
		out = append(out, bson.E{Key: "_id", Value: 0})
	}
	return out
}

func (s *Statement) coveredByAncestor(col string) bool {
	for _, other := range s.columns {
		if other != col && strings.HasPrefix(col, other+".") {
			return true
		}
	}
	return false
}
