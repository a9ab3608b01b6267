package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bmeg/doctable"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokSymbol
	tokParam
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports whether t is the given bare word, case-insensitively.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) symbol(s string) bool {
	return t.kind == tokSymbol && t.text == s
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of query"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

func syntaxError(pos int, format string, args ...any) error {
	return fmt.Errorf("%w: at %d: %s", doctable.ErrUnsupportedQueryConstruct, pos, fmt.Sprintf(format, args...))
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '.' || unicode.IsDigit(r)
}

func tokenize(text string) ([]token, error) {
	rs := []rune(text)
	var out []token
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case isIdentStart(r):
			start := i
			for i < len(rs) && isIdentPart(rs[i]) {
				i++
			}
			out = append(out, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				i++
				if i < len(rs) && (rs[i] == '+' || rs[i] == '-') {
					i++
				}
				for i < len(rs) && unicode.IsDigit(rs[i]) {
					i++
				}
			}
			out = append(out, token{kind: tokNumber, text: string(rs[start:i]), pos: start})
		case r == '\'' || r == '"' || r == '`':
			s, next, err := readQuoted(rs, i)
			if err != nil {
				return nil, err
			}
			kind := tokQuotedIdent
			if r == '\'' {
				kind = tokString
			}
			out = append(out, token{kind: kind, text: s, pos: i})
			i = next
		case r == '?':
			out = append(out, token{kind: tokParam, text: "?", pos: i})
			i++
		case r == '<' || r == '>' || r == '!':
			start := i
			i++
			if i < len(rs) && (rs[i] == '=' || (r == '<' && rs[i] == '>')) {
				i++
			}
			sym := string(rs[start:i])
			if sym == "!" {
				return nil, syntaxError(start, "unexpected '!'")
			}
			out = append(out, token{kind: tokSymbol, text: sym, pos: start})
		case strings.ContainsRune("=,*();-+/|%", r):
			out = append(out, token{kind: tokSymbol, text: string(r), pos: i})
			i++
		default:
			return nil, syntaxError(i, "unexpected character %q", r)
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(rs)})
	return out, nil
}

// readQuoted reads a quoted run starting at rs[start]; a doubled quote
// character stands for itself.
func readQuoted(rs []rune, start int) (string, int, error) {
	q := rs[start]
	var sb strings.Builder
	for i := start + 1; i < len(rs); i++ {
		if rs[i] == q {
			if i+1 < len(rs) && rs[i+1] == q {
				sb.WriteRune(q)
				i++
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(rs[i])
	}
	return "", 0, syntaxError(start, "unterminated quote")
}
