package driver_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/catalog"
	"github.com/bmeg/doctable/driver"
	"github.com/bmeg/doctable/memstore"
	"github.com/bmeg/doctable/resultset"
	"github.com/bmeg/doctable/test/fixtures"
	"github.com/bmeg/doctable/util"
)

func openSession(t *testing.T, uri string) *driver.Session {
	t.Helper()
	ctx := context.Background()
	r := driver.NewRegistry()
	r.Register("mem", func(ctx context.Context, uri string) (doctable.Store, string, error) {
		s, err := fixtures.NewStore(ctx)
		return s, "shop", err
	})
	s, err := r.Open(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func collect(t *testing.T, rs *resultset.ResultSet, label string) []string {
	t.Helper()
	out := []string{}
	for {
		ok, err := rs.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			return out
		}
		v, err := rs.StringByLabel(label)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, v)
	}
}

func same(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectStar(t *testing.T) {
	s := openSession(t, "mem://shop")
	defer s.Close(context.Background())
	rs, err := s.Query(context.Background(), "SELECT * FROM people")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := rs.ColumnCount(); n != 7 {
		t.Errorf("column count %d", n)
	}
	if n, _ := rs.RowCount(); n != 3 {
		t.Errorf("row count %d", n)
	}
	md, err := rs.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if md.TableName() != "people" {
		t.Errorf("table name %s", md.TableName())
	}
	if name, _ := md.ColumnName(3); name != "age" {
		t.Errorf("column 3 is %s", name)
	}
	if typ, _ := md.ColumnTypeName(3); typ != "DOUBLE" {
		t.Errorf("age type %s", typ)
	}
	if got := collect(t, rs, "address.city"); !same(got, []string{"Portland", "Seattle", ""}) {
		t.Errorf("unexpected cities %v", got)
	}
}

func TestWhereAndProjection(t *testing.T) {
	s := openSession(t, "mem://shop")
	defer s.Close(context.Background())
	rs, err := s.Query(context.Background(), "SELECT name, address.city, phone FROM people WHERE tags = 'dev' ORDER BY name DESC")
	if err != nil {
		t.Fatal(err)
	}
	md, _ := rs.Metadata()
	if md.ColumnCount() != 3 {
		t.Fatalf("column count %d", md.ColumnCount())
	}
	if typ, _ := md.ColumnTypeName(3); typ != "VARCHAR" {
		t.Errorf("unknown column type %s", typ)
	}
	rs.Next()
	if v, _ := rs.String(2); v != "Seattle" {
		t.Errorf("first row city %s", v)
	}
	rs.String(3)
	if wn, _ := rs.WasNull(); !wn {
		t.Error("unknown column should be null")
	}
	rs.Next()
	if v, _ := rs.String(1); v != "alice" {
		t.Errorf("second row name %s", v)
	}
	if ok, _ := rs.Next(); ok {
		t.Error("too many rows")
	}
}

func TestPreparedStatementReuse(t *testing.T) {
	s := openSession(t, "mem://shop")
	defer s.Close(context.Background())
	ps, err := s.Prepare("SELECT name FROM people WHERE age > ? ORDER BY name")
	if err != nil {
		t.Fatal(err)
	}
	if ps.NumParams() != 1 {
		t.Fatalf("NumParams %d", ps.NumParams())
	}
	rs, err := ps.Query(context.Background(), 30)
	if err != nil {
		t.Fatal(err)
	}
	if got := collect(t, rs, "name"); !same(got, []string{"alice", "bob"}) {
		t.Errorf("age > 30: %v", got)
	}
	rs, err = ps.Query(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if got := collect(t, rs, "name"); !same(got, []string{"bob"}) {
		t.Errorf("age > 100: %v", got)
	}
	if _, err := ps.Query(context.Background()); !errors.Is(err, doctable.ErrParameterBinding) {
		t.Errorf("expected ErrParameterBinding, got %v", err)
	}
}

func TestExpandSession(t *testing.T) {
	s := openSession(t, "mem://shop?expand=true&scan=full")
	defer s.Close(context.Background())
	if !s.Options().Expand || s.Options().Scan != doctable.ScanFull {
		t.Fatalf("options not parsed: %+v", s.Options())
	}
	rs, err := s.Query(context.Background(), "SELECT name, tags FROM people")
	if err != nil {
		t.Fatal(err)
	}
	if got := collect(t, rs, "name"); !same(got, []string{"alice", "alice", "bob", "chelsie"}) {
		t.Errorf("unexpected expanded rows %v", got)
	}
}

func TestUnsupportedQuery(t *testing.T) {
	s := openSession(t, "mem://shop")
	defer s.Close(context.Background())
	if _, err := s.Query(context.Background(), "SELECT * FROM people WHERE age > 1 OR name = 'bob'"); !errors.Is(err, doctable.ErrUnsupportedQueryConstruct) {
		t.Errorf("expected ErrUnsupportedQueryConstruct, got %v", err)
	}
}

func TestTablesAreCached(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, "mem://shop")
	defer s.Close(ctx)
	first, err := s.Table(ctx, "mixed")
	if err != nil {
		t.Fatal(err)
	}
	loader := s.Store().(doctable.Loader)
	loader.InsertMany(ctx, "mixed", []doctable.Document{{{Key: "late", Value: doctable.NewString("x")}}})
	again, _ := s.Table(ctx, "mixed")
	if again != first || again.Index("late") >= 0 {
		t.Error("cached table changed without a rescan")
	}
	rescanned, err := s.Rescan(ctx, "mixed")
	if err != nil {
		t.Fatal(err)
	}
	if rescanned.Index("late") < 0 {
		t.Error("rescan missed the new field")
	}
	tables, err := s.Tables(ctx)
	if err != nil || len(tables) != 2 {
		t.Errorf("Tables returned %d tables: %v", len(tables), err)
	}
}

func TestCatalogBackedSession(t *testing.T) {
	ctx := context.Background()
	name := "test.data" + util.RandomString(5)
	defer os.RemoveAll(name)

	cat, err := catalog.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	s := openSession(t, "mem://shop")
	s.UseCatalog(cat)
	if _, err := s.Table(ctx, "people"); err != nil {
		t.Fatal(err)
	}
	s.Close(ctx)

	cat, err = catalog.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	empty := driver.NewSession(memstore.New(), "shop", doctable.DefaultOptions())
	empty.UseCatalog(cat)
	defer empty.Close(ctx)
	tbl, err := empty.Table(ctx, "people")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Index("address.city") < 0 {
		t.Errorf("table not loaded from catalog: %v", tbl.ColumnNames())
	}
}

func TestRegistry(t *testing.T) {
	r := driver.DefaultRegistry()
	if got := r.Schemes(); !same(got, []string{"mem", "mongodb", "mongodb+srv"}) {
		t.Errorf("unexpected schemes %v", got)
	}
	s, err := r.Open(context.Background(), "mem://warehouse?scan=bogus")
	if err != nil {
		t.Fatal(err)
	}
	if s.Database() != "warehouse" || s.Options().Scan != doctable.ScanFast {
		t.Errorf("unexpected session %s %+v", s.Database(), s.Options())
	}
	s.Close(context.Background())
	s, err = r.Open(context.Background(), "jdbc:mem://warehouse")
	if err != nil {
		t.Fatalf("jdbc prefix: %v", err)
	}
	if s.Database() != "warehouse" {
		t.Errorf("jdbc prefix: database %s", s.Database())
	}
	s.Close(context.Background())
	if _, err := r.Open(context.Background(), "jdbc:postgres://localhost"); !errors.Is(err, doctable.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
	if _, err := r.Open(context.Background(), "postgres://localhost"); !errors.Is(err, doctable.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

func TestTablesSavedToCatalog(t *testing.T) {
	ctx := context.Background()
	name := "test.data" + util.RandomString(5)
	defer os.RemoveAll(name)

	cat, err := catalog.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	s := openSession(t, "mem://shop")
	s.UseCatalog(cat)
	tables, err := s.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[0].Name != "mixed" || tables[1].Name != "people" {
		t.Fatalf("unexpected tables %v", tables)
	}
	stored, err := cat.List("shop")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("catalog holds %d tables, expected 2", len(stored))
	}
	s.Close(ctx)

	cat, err = catalog.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	s = openSession(t, "mem://shop")
	s.UseCatalog(cat)
	defer s.Close(ctx)
	loader := s.Store().(doctable.Loader)
	loader.InsertMany(ctx, "mixed", []doctable.Document{{{Key: "late", Value: doctable.NewString("x")}}})
	tables, err = s.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[0].Index("late") >= 0 {
		t.Errorf("stored layout was not reused: %v", tables[0].ColumnNames())
	}
}
