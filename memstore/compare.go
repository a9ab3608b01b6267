package memstore

import (
	"bytes"
	"strings"

	"github.com/bmeg/doctable"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// typeRank orders value classes the way the document store sorts mixed
// types. Numbers of every width share a rank.
func typeRank(v doctable.Value) int {
	switch v.Kind() {
	case doctable.KindNull:
		return 0
	case doctable.KindInteger, doctable.KindLong, doctable.KindDouble, doctable.KindDecimal:
		return 1
	case doctable.KindString:
		return 2
	case doctable.KindDocument:
		return 3
	case doctable.KindArray:
		return 4
	case doctable.KindBinary:
		return 5
	case doctable.KindBoolean:
		return 6
	case doctable.KindDateTime:
		return 7
	}
	return 8
}

func isNumeric(v doctable.Value) bool {
	return typeRank(v) == 1
}

func toDecimal(v doctable.Value) decimal.Decimal {
	switch v.Kind() {
	case doctable.KindDecimal:
		return v.Decimal()
	case doctable.KindInteger, doctable.KindLong:
		return decimal.NewFromInt(v.Int64())
	}
	return decimal.NewFromFloat(v.Float64())
}

func compareNumbers(a, b doctable.Value) int {
	if a.Kind() == doctable.KindDecimal || b.Kind() == doctable.KindDecimal {
		return toDecimal(a).Cmp(toDecimal(b))
	}
	if a.Kind() != doctable.KindDouble && b.Kind() != doctable.KindDouble {
		switch {
		case a.Int64() < b.Int64():
			return -1
		case a.Int64() > b.Int64():
			return 1
		}
		return 0
	}
	af, _ := cast.ToFloat64E(a.Interface())
	bf, _ := cast.ToFloat64E(b.Interface())
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

// compare orders two values of the same class. ok is false when the values
// belong to different classes and cannot be range-compared.
func compare(a, b doctable.Value) (int, bool) {
	if typeRank(a) != typeRank(b) {
		return 0, false
	}
	switch {
	case isNumeric(a):
		return compareNumbers(a, b), true
	case a.Kind() == doctable.KindString:
		return strings.Compare(a.Str(), b.Str()), true
	case a.Kind() == doctable.KindDateTime:
		return a.Time().Compare(b.Time()), true
	case a.Kind() == doctable.KindBoolean:
		return boolRank(a.Bool()) - boolRank(b.Bool()), true
	case a.Kind() == doctable.KindBinary:
		return bytes.Compare(a.Bytes(), b.Bytes()), true
	case a.Kind() == doctable.KindNull:
		return 0, true
	}
	return 0, false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// equal is Value equality with numbers compared by value across widths.
func equal(a, b doctable.Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return compareNumbers(a, b) == 0
	}
	return doctable.Equal(a, b)
}

// sortCompare is the total order used for sorting: class rank first, then
// value within the class, with documents and arrays by their text form.
func sortCompare(a, b doctable.Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	if c, ok := compare(a, b); ok {
		return c
	}
	return strings.Compare(a.String(), b.String())
}
