// Package resultset holds materialized query results behind a forward-only
// cursor with 1-based column access.
package resultset

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bmeg/doctable"
	"github.com/shopspring/decimal"
)

// ResultSet is a materialized, append-only table of values. It is owned by
// one query execution and is not safe for concurrent mutation.
type ResultSet struct {
	tableName   string
	columnNames []string
	columnTypes []doctable.ColumnType
	rows        [][]doctable.Value
	arity       int
	currentRow  int
	closed      bool
	wasNull     bool
}

func New() *ResultSet {
	return &ResultSet{currentRow: -1, arity: -1}
}

// NewFromStrings preseeds a result set with raw string rows.
func NewFromStrings(data [][]string, columnNames []string) (*ResultSet, error) {
	rs := New()
	if columnNames != nil {
		if err := rs.SetColumnNames(columnNames...); err != nil {
			return nil, err
		}
	}
	for _, raw := range data {
		row := make([]doctable.Value, len(raw))
		for i, s := range raw {
			row[i] = doctable.NewString(s)
		}
		if err := rs.AddRow(row...); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

func (rs *ResultSet) checkClosed() error {
	if rs.closed {
		return doctable.ErrClosedBuffer
	}
	return nil
}

// SetColumnNames names the columns. The count must match the rows already
// stored; with no rows yet it fixes the arity of later rows.
func (rs *ResultSet) SetColumnNames(names ...string) error {
	if err := rs.checkClosed(); err != nil {
		return err
	}
	if err := rs.fitNames(len(names)); err != nil {
		return err
	}
	rs.columnNames = append([]string(nil), names...)
	return nil
}

func (rs *ResultSet) fitNames(n int) error {
	if len(rs.rows) > 0 {
		if n != rs.arity {
			return fmt.Errorf("%w: %d column names for rows of %d columns", doctable.ErrArityMismatch, n, rs.arity)
		}
		return nil
	}
	rs.arity = n
	return nil
}

// SetColumnTypes layers declared types over the default Varchar.
func (rs *ResultSet) SetColumnTypes(types ...doctable.ColumnType) error {
	if err := rs.checkClosed(); err != nil {
		return err
	}
	rs.columnTypes = append([]doctable.ColumnType(nil), types...)
	return nil
}

// SetColumns sets names and declared types from a scanned table layout.
func (rs *ResultSet) SetColumns(cols []doctable.Column) error {
	if err := rs.checkClosed(); err != nil {
		return err
	}
	if err := rs.fitNames(len(cols)); err != nil {
		return err
	}
	rs.columnNames = make([]string, len(cols))
	rs.columnTypes = make([]doctable.ColumnType, len(cols))
	for i, c := range cols {
		rs.columnNames[i] = c.Name
		rs.columnTypes[i] = c.Type
	}
	return nil
}

func (rs *ResultSet) SetTableName(name string) error {
	if err := rs.checkClosed(); err != nil {
		return err
	}
	rs.tableName = name
	return nil
}

// AddRow appends a copy of values. The column names, or else the first row,
// fix the column count; rows with a different count are rejected and nothing
// is stored.
func (rs *ResultSet) AddRow(values ...doctable.Value) error {
	if err := rs.checkClosed(); err != nil {
		return err
	}
	if rs.arity >= 0 && len(values) != rs.arity {
		return fmt.Errorf("%w: row has %d columns, result set has %d", doctable.ErrArityMismatch, len(values), rs.arity)
	}
	rs.arity = len(values)
	rs.rows = append(rs.rows, append([]doctable.Value(nil), values...))
	return nil
}

// AddResultSet appends copies of every row of other.
func (rs *ResultSet) AddResultSet(other *ResultSet) error {
	if err := rs.checkClosed(); err != nil {
		return err
	}
	if err := other.checkClosed(); err != nil {
		return err
	}
	if len(other.rows) == 0 {
		return nil
	}
	if rs.arity >= 0 && other.arity != rs.arity {
		return fmt.Errorf("%w: merged result set has %d columns, this result set has %d", doctable.ErrArityMismatch, other.arity, rs.arity)
	}
	rs.arity = other.arity
	for _, row := range other.rows {
		rs.rows = append(rs.rows, append([]doctable.Value(nil), row...))
	}
	return nil
}

func (rs *ResultSet) RowCount() (int, error) {
	if err := rs.checkClosed(); err != nil {
		return 0, err
	}
	return len(rs.rows), nil
}

// ColumnCount is the number of named columns, or the row arity when names
// were never set.
func (rs *ResultSet) ColumnCount() (int, error) {
	if err := rs.checkClosed(); err != nil {
		return 0, err
	}
	if rs.columnNames != nil {
		return len(rs.columnNames), nil
	}
	if rs.arity < 0 {
		return 0, nil
	}
	return rs.arity, nil
}

// Next moves the cursor forward. It returns false once the last row has
// been passed and keeps returning false afterwards.
func (rs *ResultSet) Next() (bool, error) {
	if err := rs.checkClosed(); err != nil {
		return false, err
	}
	if rs.currentRow < len(rs.rows) {
		rs.currentRow++
	}
	return rs.currentRow < len(rs.rows), nil
}

// Row is the 1-based number of the current row, 0 when off a row.
func (rs *ResultSet) Row() (int, error) {
	if err := rs.checkClosed(); err != nil {
		return 0, err
	}
	if rs.currentRow < 0 || rs.currentRow >= len(rs.rows) {
		return 0, nil
	}
	return rs.currentRow + 1, nil
}

func (rs *ResultSet) IsBeforeFirst() (bool, error) {
	if err := rs.checkClosed(); err != nil {
		return false, err
	}
	return rs.currentRow < 0 && len(rs.rows) > 0, nil
}

func (rs *ResultSet) IsAfterLast() (bool, error) {
	if err := rs.checkClosed(); err != nil {
		return false, err
	}
	return rs.currentRow >= len(rs.rows) && len(rs.rows) > 0, nil
}

// Close releases the rows. Closing twice is allowed.
func (rs *ResultSet) Close() error {
	rs.closed = true
	rs.rows = nil
	return nil
}

func (rs *ResultSet) IsClosed() bool {
	return rs.closed
}

// WasNull reports whether the last cell read was Null.
func (rs *ResultSet) WasNull() (bool, error) {
	if err := rs.checkClosed(); err != nil {
		return false, err
	}
	return rs.wasNull, nil
}

// Unsupported is the answer to write-side cursor operations such as
// updateRow or insertRow, which a materialized result never supports.
func (rs *ResultSet) Unsupported(op string) error {
	return fmt.Errorf("%w: %s", doctable.ErrNotSupported, op)
}

// FindColumn maps a label onto its 1-based column index.
func (rs *ResultSet) FindColumn(label string) (int, error) {
	if err := rs.checkClosed(); err != nil {
		return 0, err
	}
	if rs.columnNames == nil {
		return 0, fmt.Errorf("%w: %s: column names were never set", doctable.ErrUnknownColumn, label)
	}
	for i, n := range rs.columnNames {
		if n == label {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: column %s doesn't exist in this result set", doctable.ErrUnknownColumn, label)
}

// Value returns the cell at the 1-based column of the current row.
func (rs *ResultSet) Value(columnIndex int) (doctable.Value, error) {
	if err := rs.checkClosed(); err != nil {
		return doctable.Null(), err
	}
	if rs.currentRow < 0 || rs.currentRow >= len(rs.rows) {
		return doctable.Null(), fmt.Errorf("%w: current row = %d", doctable.ErrExhaustedCursor, rs.currentRow)
	}
	row := rs.rows[rs.currentRow]
	if columnIndex < 1 || columnIndex > len(row) {
		return doctable.Null(), fmt.Errorf("%w: %d", doctable.ErrColumnIndexOutOfRange, columnIndex)
	}
	v := row[columnIndex-1]
	rs.wasNull = v.IsNull()
	return v, nil
}

// cell returns the canonical text of a cell; ok is false for Null.
func (rs *ResultSet) cell(columnIndex int) (string, bool, error) {
	v, err := rs.Value(columnIndex)
	if err != nil || v.IsNull() {
		return "", false, err
	}
	return v.String(), true, nil
}

func malformed(columnIndex int, s string, want string, err error) error {
	return fmt.Errorf("%w: column %d value %q is not a valid %s: %v", doctable.ErrMalformedValue, columnIndex, s, want, err)
}

func (rs *ResultSet) String(columnIndex int) (string, error) {
	s, _, err := rs.cell(columnIndex)
	return s, err
}

func (rs *ResultSet) Boolean(columnIndex int) (bool, error) {
	s, ok, err := rs.cell(columnIndex)
	if err != nil || !ok {
		return false, err
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, malformed(columnIndex, s, "boolean", err)
	}
	return b, nil
}

func (rs *ResultSet) parseInt(columnIndex int, bits int, want string) (int64, error) {
	s, ok, err := rs.cell(columnIndex)
	if err != nil || !ok {
		return 0, err
	}
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, malformed(columnIndex, s, want, err)
	}
	return i, nil
}

func (rs *ResultSet) Short(columnIndex int) (int16, error) {
	i, err := rs.parseInt(columnIndex, 16, "short")
	return int16(i), err
}

func (rs *ResultSet) Int(columnIndex int) (int32, error) {
	i, err := rs.parseInt(columnIndex, 32, "int")
	return int32(i), err
}

func (rs *ResultSet) Long(columnIndex int) (int64, error) {
	return rs.parseInt(columnIndex, 64, "long")
}

func (rs *ResultSet) parseFloat(columnIndex int, bits int, want string) (float64, error) {
	s, ok, err := rs.cell(columnIndex)
	if err != nil || !ok {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
	if err != nil {
		return 0, malformed(columnIndex, s, want, err)
	}
	return f, nil
}

func (rs *ResultSet) Float(columnIndex int) (float32, error) {
	f, err := rs.parseFloat(columnIndex, 32, "float")
	return float32(f), err
}

func (rs *ResultSet) Double(columnIndex int) (float64, error) {
	return rs.parseFloat(columnIndex, 64, "double")
}

func (rs *ResultSet) Decimal(columnIndex int) (decimal.Decimal, error) {
	s, ok, err := rs.cell(columnIndex)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, malformed(columnIndex, s, "decimal", err)
	}
	return d, nil
}

// Bytes returns binary cells as stored; other cells return the bytes of
// their text form.
func (rs *ResultSet) Bytes(columnIndex int) ([]byte, error) {
	v, err := rs.Value(columnIndex)
	if err != nil || v.IsNull() {
		return nil, err
	}
	if v.Kind() == doctable.KindBinary {
		return append([]byte(nil), v.Bytes()...), nil
	}
	return []byte(v.String()), nil
}

// Time returns DateTime cells directly and parses RFC 3339 text otherwise.
func (rs *ResultSet) Time(columnIndex int) (time.Time, error) {
	v, err := rs.Value(columnIndex)
	if err != nil || v.IsNull() {
		return time.Time{}, err
	}
	if v.Kind() == doctable.KindDateTime {
		return v.Time(), nil
	}
	s := v.String()
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, malformed(columnIndex, s, "timestamp", err)
	}
	return t, nil
}

// HexBytes decodes a hex encoded text cell.
func (rs *ResultSet) HexBytes(columnIndex int) ([]byte, error) {
	s, ok, err := rs.cell(columnIndex)
	if err != nil || !ok {
		return nil, err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, malformed(columnIndex, s, "hex string", err)
	}
	return b, nil
}

func (rs *ResultSet) ValueByLabel(label string) (doctable.Value, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return doctable.Null(), err
	}
	return rs.Value(i)
}

func (rs *ResultSet) StringByLabel(label string) (string, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return "", err
	}
	return rs.String(i)
}

func (rs *ResultSet) BooleanByLabel(label string) (bool, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return false, err
	}
	return rs.Boolean(i)
}

func (rs *ResultSet) IntByLabel(label string) (int32, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return 0, err
	}
	return rs.Int(i)
}

func (rs *ResultSet) LongByLabel(label string) (int64, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return 0, err
	}
	return rs.Long(i)
}

func (rs *ResultSet) DoubleByLabel(label string) (float64, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return 0, err
	}
	return rs.Double(i)
}

func (rs *ResultSet) DecimalByLabel(label string) (decimal.Decimal, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return decimal.Zero, err
	}
	return rs.Decimal(i)
}

func (rs *ResultSet) BytesByLabel(label string) ([]byte, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return nil, err
	}
	return rs.Bytes(i)
}

func (rs *ResultSet) TimeByLabel(label string) (time.Time, error) {
	i, err := rs.FindColumn(label)
	if err != nil {
		return time.Time{}, err
	}
	return rs.Time(i)
}
