// Package query translates a small SQL subset into native document store
// queries. Statements are parsed once and bound any number of times.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmeg/doctable"
)

const (
	opEq        = "="
	opNe        = "!="
	opLt        = "<"
	opLte       = "<="
	opGt        = ">"
	opGte       = ">="
	opIn        = "IN"
	opIsNull    = "IS NULL"
	opIsNotNull = "IS NOT NULL"
	opLike      = "LIKE"
)

// operand is a literal or a positional placeholder.
type operand struct {
	param int
	value doctable.Value
}

func literal(v doctable.Value) operand {
	return operand{param: -1, value: v}
}

type condition struct {
	field    string
	op       string
	operands []operand
}

type orderTerm struct {
	field string
	desc  bool
}

// Statement is a parsed SELECT. It holds no bound values and may be bound
// concurrently.
type Statement struct {
	text       string
	collection string
	columns    []string
	conds      []condition
	order      []orderTerm
	limit      int64
	params     int
}

func (s *Statement) NumParams() int {
	return s.params
}

// Columns returns the selected columns, or nil for SELECT *.
func (s *Statement) Columns() []string {
	if s.columns == nil {
		return nil
	}
	return append([]string(nil), s.columns...)
}

func (s *Statement) Collection() string {
	return s.collection
}

func (s *Statement) String() string {
	return s.text
}

// Prepare is Parse, named for call sites that bind repeatedly.
func Prepare(text string) (*Statement, error) {
	return Parse(text)
}

var unsupportedStatements = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "CREATE": true, "DROP": true,
	"ALTER": true, "WITH": true, "MERGE": true, "REPLACE": true, "TRUNCATE": true,
}

var joinWords = []string{"JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "NATURAL", "OUTER"}

func Parse(text string) (*Statement, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	stmt.text = text
	stmt.params = p.params
	return stmt, nil
}

type parser struct {
	toks   []token
	pos    int
	params int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if !t.keyword(kw) {
		return syntaxError(t.pos, "expected %s, found %s", kw, t)
	}
	return nil
}

func unsupported(t token, what string) error {
	return fmt.Errorf("%w: %s at %d", doctable.ErrUnsupportedQueryConstruct, what, t.pos)
}

func (p *parser) parseSelect() (*Statement, error) {
	first := p.next()
	if !first.keyword("SELECT") {
		if first.kind == tokIdent && unsupportedStatements[strings.ToUpper(first.text)] {
			return nil, unsupported(first, strings.ToUpper(first.text)+" statements")
		}
		return nil, syntaxError(first.pos, "expected SELECT, found %s", first)
	}
	stmt := &Statement{}
	if t := p.peek(); t.keyword("DISTINCT") {
		return nil, unsupported(t, "DISTINCT")
	}

	if p.peek().symbol("*") {
		p.next()
	} else {
		for {
			col, err := p.parseColumn()
			if err != nil {
				return nil, err
			}
			if t := p.peek(); t.keyword("AS") {
				return nil, unsupported(t, "column aliases")
			}
			stmt.columns = append(stmt.columns, col)
			if !p.peek().symbol(",") {
				break
			}
			p.next()
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if t := p.peek(); t.symbol("(") {
		return nil, unsupported(t, "sub-selects")
	}
	coll, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt.collection = coll
	if t := p.peek(); t.symbol(",") {
		return nil, unsupported(t, "joins")
	}
	for _, w := range joinWords {
		if t := p.peek(); t.keyword(w) {
			return nil, unsupported(t, "joins")
		}
	}

	if p.peek().keyword("WHERE") {
		p.next()
		for {
			c, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			stmt.conds = append(stmt.conds, c)
			t := p.peek()
			if t.keyword("OR") {
				return nil, unsupported(t, "OR")
			}
			if !t.keyword("AND") {
				break
			}
			p.next()
		}
	}

	if t := p.peek(); t.keyword("GROUP") || t.keyword("HAVING") {
		return nil, unsupported(t, strings.ToUpper(t.text))
	}

	if p.peek().keyword("ORDER") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			field, err := p.parseColumn()
			if err != nil {
				return nil, err
			}
			term := orderTerm{field: field}
			if t := p.peek(); t.keyword("DESC") {
				term.desc = true
				p.next()
			} else if t.keyword("ASC") {
				p.next()
			}
			stmt.order = append(stmt.order, term)
			if !p.peek().symbol(",") {
				break
			}
			p.next()
		}
	}

	if p.peek().keyword("LIMIT") {
		p.next()
		t := p.next()
		if t.kind != tokNumber {
			return nil, syntaxError(t.pos, "LIMIT expects a number, found %s", t)
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil || n < 0 {
			return nil, syntaxError(t.pos, "invalid LIMIT %s", t.text)
		}
		stmt.limit = n
	}

	if t := p.peek(); t.keyword("OFFSET") || t.keyword("UNION") {
		return nil, unsupported(t, strings.ToUpper(t.text))
	}
	if p.peek().symbol(";") {
		p.next()
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, "unexpected %s", t)
	}
	return stmt, nil
}

func (p *parser) parseIdent() (string, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		if strings.HasSuffix(t.text, ".") || strings.Contains(t.text, "..") {
			return "", syntaxError(t.pos, "malformed identifier %s", t)
		}
	case tokQuotedIdent:
		if t.text == "" {
			return "", syntaxError(t.pos, "empty identifier")
		}
	default:
		return "", syntaxError(t.pos, "expected identifier, found %s", t)
	}
	// the store reads a leading $ as an operator
	for _, part := range strings.Split(t.text, ".") {
		if strings.HasPrefix(part, "$") {
			return "", unsupported(t, "identifier "+t.text+" starting with $")
		}
	}
	return t.text, nil
}

// parseColumn reads a column reference and rejects function calls.
func (p *parser) parseColumn() (string, error) {
	col, err := p.parseIdent()
	if err != nil {
		return "", err
	}
	if t := p.peek(); t.symbol("(") {
		return "", unsupported(t, "function "+col)
	}
	return col, nil
}

func (p *parser) parseCondition() (condition, error) {
	t := p.peek()
	switch {
	case t.symbol("("):
		return condition{}, unsupported(t, "parentheses in WHERE")
	case t.keyword("NOT"):
		return condition{}, unsupported(t, "NOT")
	case t.keyword("EXISTS"):
		return condition{}, unsupported(t, "EXISTS")
	}
	field, err := p.parseColumn()
	if err != nil {
		return condition{}, err
	}
	c := condition{field: field}

	t = p.next()
	switch {
	case t.kind == tokSymbol && isComparison(t.text):
		c.op = t.text
		if c.op == "<>" {
			c.op = opNe
		}
		o, err := p.parseOperand()
		if err != nil {
			return condition{}, err
		}
		c.operands = []operand{o}
	case t.keyword("IN"):
		c.op = opIn
		if open := p.next(); !open.symbol("(") {
			return condition{}, syntaxError(open.pos, "IN expects '(', found %s", open)
		}
		if s := p.peek(); s.keyword("SELECT") {
			return condition{}, unsupported(s, "sub-selects")
		}
		for {
			o, err := p.parseOperand()
			if err != nil {
				return condition{}, err
			}
			c.operands = append(c.operands, o)
			sep := p.next()
			if sep.symbol(")") {
				break
			}
			if !sep.symbol(",") {
				return condition{}, syntaxError(sep.pos, "expected ',' or ')', found %s", sep)
			}
		}
	case t.keyword("IS"):
		c.op = opIsNull
		if p.peek().keyword("NOT") {
			p.next()
			c.op = opIsNotNull
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return condition{}, err
		}
	case t.keyword("LIKE"):
		c.op = opLike
		o, err := p.parseOperand()
		if err != nil {
			return condition{}, err
		}
		if o.param < 0 && o.value.Kind() != doctable.KindString {
			return condition{}, unsupported(t, "LIKE with a non-string pattern")
		}
		c.operands = []operand{o}
	case t.keyword("NOT"), t.keyword("BETWEEN"):
		return condition{}, unsupported(t, strings.ToUpper(t.text))
	default:
		return condition{}, syntaxError(t.pos, "expected an operator after %s, found %s", field, t)
	}
	return c, nil
}

func isComparison(s string) bool {
	switch s {
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	neg := false
	if t.symbol("-") {
		neg = true
		t = p.next()
		if t.kind != tokNumber {
			return operand{}, syntaxError(t.pos, "expected a number after '-', found %s", t)
		}
	}
	switch t.kind {
	case tokParam:
		o := operand{param: p.params}
		p.params++
		return o, nil
	case tokString:
		return literal(doctable.NewString(t.text)), nil
	case tokNumber:
		text := t.text
		if neg {
			text = "-" + text
		}
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return literal(doctable.NewLong(i)), nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return operand{}, syntaxError(t.pos, "malformed number %s", t.text)
		}
		return literal(doctable.NewDouble(f)), nil
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "TRUE":
			return literal(doctable.NewBoolean(true)), nil
		case "FALSE":
			return literal(doctable.NewBoolean(false)), nil
		case "NULL":
			return literal(doctable.Null()), nil
		case "SELECT":
			return operand{}, unsupported(t, "sub-selects")
		}
		if p.peek().symbol("(") {
			return operand{}, unsupported(t, "function "+t.text)
		}
		return operand{}, unsupported(t, "column to column comparison")
	case tokQuotedIdent:
		return operand{}, unsupported(t, "column to column comparison")
	case tokSymbol:
		if t.text == "(" {
			return operand{}, unsupported(t, "sub-expressions")
		}
	}
	return operand{}, syntaxError(t.pos, "expected a value, found %s", t)
}
