package query

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/bmeg/doctable"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func mustParse(t *testing.T, text string) *Statement {
	t.Helper()
	s, err := Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return s
}

func render(d bson.D) string {
	return fmt.Sprintf("%v", d)
}

func TestSelectStar(t *testing.T) {
	s := mustParse(t, "select * from people")
	if s.Collection() != "people" || s.Columns() != nil || s.NumParams() != 0 {
		t.Errorf("unexpected statement %+v", s)
	}
	q, err := s.Bind()
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Filter) != 0 || q.Projection != nil || q.Limit != 0 {
		t.Errorf("unexpected native query %+v", q)
	}
}

func TestTranslation(t *testing.T) {
	cases := []struct {
		sql    string
		filter string
	}{
		{"SELECT * FROM c WHERE a = 1", "[{a 1}]"},
		{"SELECT * FROM c WHERE a <> 'x'", "[{a [{$ne x}]}]"},
		{"SELECT * FROM c WHERE a > 1 AND a <= 5.5", "[{a [{$gt 1} {$lte 5.5}]}]"},
		{"SELECT * FROM c WHERE a IN (1, 'two', TRUE)", "[{a [{$in [1 two true]}]}]"},
		{"SELECT * FROM c WHERE a IS NULL", "[{a <nil>}]"},
		{"SELECT * FROM c WHERE a IS NOT NULL", "[{a [{$ne <nil>}]}]"},
		{"SELECT * FROM c WHERE a > -3 AND a > 7", "[{a [{$gt -3}]} {$and [[{a [{$gt 7}]}]]}]"},
		{"SELECT * FROM c WHERE address.city = 'Seattle' AND b != FALSE", "[{address.city Seattle} {b [{$ne false}]}]"},
		{"SELECT * FROM c WHERE \"odd name\" = 'x'", "[{odd name x}]"},
	}
	for _, c := range cases {
		q, err := mustParse(t, c.sql).Bind()
		if err != nil {
			t.Errorf("%s: %v", c.sql, err)
			continue
		}
		if got := render(q.Filter); got != c.filter {
			t.Errorf("%s: filter %s, expected %s", c.sql, got, c.filter)
		}
	}
}

func TestProjectionOrderLimit(t *testing.T) {
	q, err := mustParse(t, "SELECT name, address, address.city FROM people ORDER BY age DESC, name LIMIT 10;").Bind()
	if err != nil {
		t.Fatal(err)
	}
	if got := render(q.Projection); got != "[{name 1} {address 1} {_id 0}]" {
		t.Errorf("projection %s", got)
	}
	if got := render(q.Sort); got != "[{age -1} {name 1}]" {
		t.Errorf("sort %s", got)
	}
	if q.Limit != 10 {
		t.Errorf("limit %d", q.Limit)
	}
	q, _ = mustParse(t, "SELECT _id, name FROM people").Bind()
	if got := render(q.Projection); got != "[{_id 1} {name 1}]" {
		t.Errorf("projection with _id %s", got)
	}
}

func TestLike(t *testing.T) {
	q, err := mustParse(t, "SELECT * FROM c WHERE name LIKE 'a.b%_'").Bind()
	if err != nil {
		t.Fatal(err)
	}
	ops := q.Filter[0].Value.(bson.D)
	re := ops[0].Value.(primitive.Regex)
	if re.Pattern != `^a\.b.*.$` {
		t.Errorf("unexpected pattern %s", re.Pattern)
	}
	m := regexp.MustCompile(re.Pattern)
	if !m.MatchString("a.bcd") || m.MatchString("axbcd") || m.MatchString("a.b") {
		t.Error("pattern matches incorrectly")
	}
	if LikeToRegex(`100\%`) != `^100%$` {
		t.Errorf("escape not honored: %s", LikeToRegex(`100\%`))
	}
}

func TestPreparedReuse(t *testing.T) {
	s := mustParse(t, "SELECT * FROM people WHERE age > ? AND name LIKE ?")
	if s.NumParams() != 2 {
		t.Fatalf("NumParams = %d", s.NumParams())
	}
	q1, err := s.Bind(30, "a%")
	if err != nil {
		t.Fatal(err)
	}
	q2, err := s.Bind(int64(40), "b%")
	if err != nil {
		t.Fatal(err)
	}
	if render(q1.Filter) == render(q2.Filter) {
		t.Error("rebinding did not change the query")
	}
	if got := q1.Filter[0].Value.(bson.D)[0].Value; got != int64(30) {
		t.Errorf("first binding leaked: %v", got)
	}
	if _, err := s.Bind(30, 5); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("non-string LIKE parameter: %v", err)
	}
}

func TestBindErrors(t *testing.T) {
	s := mustParse(t, "SELECT * FROM c WHERE a = ?")
	if _, err := s.Bind(); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("missing parameter: %v", err)
	}
	if _, err := s.Bind(1, 2); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("extra parameter: %v", err)
	}
	if _, err := s.Bind(uint64(math.MaxUint64)); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("overflowing uint64: %v", err)
	}
	if _, err := s.Bind(struct{}{}); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("struct parameter: %v", err)
	}
	if _, err := s.Bind(decimal.New(1, 7000)); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("decimal overflow: %v", err)
	}
}

func TestBindTypes(t *testing.T) {
	s := mustParse(t, "SELECT * FROM c WHERE a = ?")
	now := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	oid := primitive.NewObjectID()
	cases := []struct {
		in  any
		out any
	}{
		{nil, nil},
		{true, true},
		{int8(3), int32(3)},
		{uint32(7), int64(7)},
		{float32(1.5), 1.5},
		{"s", "s"},
		{now, primitive.NewDateTimeFromTime(now)},
		{oid, oid},
		{doctable.NewLong(9), int64(9)},
	}
	for _, c := range cases {
		q, err := s.Bind(c.in)
		if err != nil {
			t.Errorf("bind %T: %v", c.in, err)
			continue
		}
		if got := q.Filter[0].Value; got != c.out {
			t.Errorf("bind %T: got %#v, expected %#v", c.in, got, c.out)
		}
	}
	q, err := s.Bind([]byte{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := q.Filter[0].Value.(primitive.Binary); !ok || len(b.Data) != 2 {
		t.Errorf("binary bound as %#v", q.Filter[0].Value)
	}
}

func TestUnsupported(t *testing.T) {
	queries := []string{
		"SELECT * FROM c WHERE a = 1 OR b = 2",
		"SELECT * FROM c WHERE NOT a = 1",
		"SELECT * FROM c WHERE (a = 1)",
		"SELECT * FROM a JOIN b",
		"SELECT * FROM a, b",
		"SELECT a FROM c GROUP BY a",
		"SELECT DISTINCT a FROM c",
		"SELECT count(a) FROM c",
		"SELECT * FROM c WHERE a IN (SELECT b FROM d)",
		"SELECT * FROM (SELECT * FROM c)",
		"DELETE FROM c",
		"UPDATE c SET a = 1",
		"SELECT * FROM c WHERE a = b",
		"SELECT * FROM c WHERE a BETWEEN 1 AND 2",
		"SELECT * FROM c WHERE a LIKE 5",
		"SELECT a AS b FROM c",
		"SELECT * FROM c LIMIT 5 OFFSET 2",
		"SELECT * FROM",
		"SELECT * FROM c WHERE a = 'unterminated",
		"SELECT * FROM c WHERE $where = 'sleep(100)'",
		"SELECT * FROM c WHERE a.$expr = 1",
		"SELECT * FROM c WHERE \"$or\" = 1",
		"SELECT $a FROM c",
		"SELECT * FROM $cmd",
		"SELECT * FROM c ORDER BY $natural",
		"",
	}
	for _, text := range queries {
		if _, err := Parse(text); !errors.Is(err, doctable.ErrUnsupportedQueryConstruct) {
			t.Errorf("%q: expected ErrUnsupportedQueryConstruct, got %v", text, err)
		}
	}
}
