package doctable

// ColumnType is the display type reported for a column.
type ColumnType uint8

const (
	TypeNull ColumnType = iota
	TypeBoolean
	TypeInteger
	TypeBigInt
	TypeDouble
	TypeDecimal
	TypeVarchar
	TypeBinary
	TypeTimestamp
	TypeObject
	TypeArray
)

var columnTypeNames = [...]string{
	TypeNull:      "NULL",
	TypeBoolean:   "BOOLEAN",
	TypeInteger:   "INTEGER",
	TypeBigInt:    "BIGINT",
	TypeDouble:    "DOUBLE",
	TypeDecimal:   "DECIMAL",
	TypeVarchar:   "VARCHAR",
	TypeBinary:    "VARBINARY",
	TypeTimestamp: "TIMESTAMP",
	TypeObject:    "OBJECT",
	TypeArray:     "ARRAY",
}

func (t ColumnType) String() string {
	if int(t) < len(columnTypeNames) {
		return columnTypeNames[t]
	}
	return "VARCHAR"
}

// TypeOf maps a value variant onto its display type.
func TypeOf(v Value) ColumnType {
	switch v.Kind() {
	case KindNull:
		return TypeNull
	case KindBoolean:
		return TypeBoolean
	case KindInteger:
		return TypeInteger
	case KindLong:
		return TypeBigInt
	case KindDouble:
		return TypeDouble
	case KindDecimal:
		return TypeDecimal
	case KindString:
		return TypeVarchar
	case KindBinary:
		return TypeBinary
	case KindDateTime:
		return TypeTimestamp
	case KindDocument:
		return TypeObject
	case KindArray:
		return TypeArray
	}
	return TypeVarchar
}

func numericRank(t ColumnType) int {
	switch t {
	case TypeInteger:
		return 1
	case TypeBigInt:
		return 2
	case TypeDouble:
		return 3
	case TypeDecimal:
		return 4
	}
	return 0
}

// Widen returns a type able to represent values of both a and b.
// Null is the identity, numeric types widen to the larger of the two,
// and every other disagreement widens to Varchar. Widen is commutative
// and associative.
func Widen(a, b ColumnType) ColumnType {
	switch {
	case a == b:
		return a
	case a == TypeNull:
		return b
	case b == TypeNull:
		return a
	}
	ra, rb := numericRank(a), numericRank(b)
	if ra > 0 && rb > 0 {
		if ra > rb {
			return a
		}
		return b
	}
	return TypeVarchar
}

// Column describes one column of a virtual table.
type Column struct {
	Name        string     `bson:"name" json:"name"`
	Type        ColumnType `bson:"type" json:"type"`
	DisplaySize int        `bson:"displaySize" json:"displaySize"`
}

// Table is the column layout inferred for a collection.
type Table struct {
	Name     string       `bson:"name" json:"name"`
	Strategy ScanStrategy `bson:"strategy" json:"strategy"`
	Columns  []Column     `bson:"columns" json:"columns"`
}

// Index returns the 0-based position of the named column, or -1.
// Names match case-sensitively, first match wins.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) (Column, bool) {
	if i := t.Index(name); i >= 0 {
		return t.Columns[i], true
	}
	return Column{}, false
}

func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
