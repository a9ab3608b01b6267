package resultset

import (
	"fmt"
	"unicode/utf8"

	"github.com/bmeg/doctable"
)

// Metadata describes the columns of a result set at the time it was taken.
type Metadata struct {
	tableName    string
	names        []string
	types        []doctable.ColumnType
	displaySizes []int
}

// Metadata snapshots column names, types and display sizes. A column's
// display size is the longest text form in the column, never narrower than
// its name. Columns without a declared type report VARCHAR.
func (rs *ResultSet) Metadata() (*Metadata, error) {
	if err := rs.checkClosed(); err != nil {
		return nil, err
	}
	if rs.columnNames == nil {
		return nil, fmt.Errorf("%w: metadata requires column names", doctable.ErrUnknownColumn)
	}
	md := &Metadata{
		tableName:    rs.tableName,
		names:        append([]string(nil), rs.columnNames...),
		types:        make([]doctable.ColumnType, len(rs.columnNames)),
		displaySizes: make([]int, len(rs.columnNames)),
	}
	for i, name := range rs.columnNames {
		md.types[i] = doctable.TypeVarchar
		if i < len(rs.columnTypes) && rs.columnTypes[i] != doctable.TypeNull {
			md.types[i] = rs.columnTypes[i]
		}
		md.displaySizes[i] = utf8.RuneCountInString(name)
	}
	for _, row := range rs.rows {
		for i, v := range row {
			if i >= len(md.displaySizes) || v.IsNull() {
				continue
			}
			if n := utf8.RuneCountInString(v.String()); n > md.displaySizes[i] {
				md.displaySizes[i] = n
			}
		}
	}
	return md, nil
}

func (md *Metadata) ColumnCount() int {
	return len(md.names)
}

func (md *Metadata) check(column int) error {
	if column < 1 || column > len(md.names) {
		return fmt.Errorf("%w: %d", doctable.ErrColumnIndexOutOfRange, column)
	}
	return nil
}

func (md *Metadata) ColumnName(column int) (string, error) {
	if err := md.check(column); err != nil {
		return "", err
	}
	return md.names[column-1], nil
}

// ColumnLabel is the same as ColumnName; columns have no aliases.
func (md *Metadata) ColumnLabel(column int) (string, error) {
	return md.ColumnName(column)
}

func (md *Metadata) ColumnType(column int) (doctable.ColumnType, error) {
	if err := md.check(column); err != nil {
		return doctable.TypeVarchar, err
	}
	return md.types[column-1], nil
}

func (md *Metadata) ColumnTypeName(column int) (string, error) {
	t, err := md.ColumnType(column)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

func (md *Metadata) ColumnDisplaySize(column int) (int, error) {
	if err := md.check(column); err != nil {
		return 0, err
	}
	return md.displaySizes[column-1], nil
}

func (md *Metadata) TableName() string {
	return md.tableName
}
