package catalog

import (
	"os"
	"testing"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/util"
)

func people() *doctable.Table {
	return &doctable.Table{
		Name:     "people",
		Strategy: doctable.ScanFull,
		Columns: []doctable.Column{
			{Name: "_id", Type: doctable.TypeInteger, DisplaySize: 3},
			{Name: "name", Type: doctable.TypeVarchar, DisplaySize: 7},
			{Name: "address.city", Type: doctable.TypeVarchar, DisplaySize: 12},
		},
	}
}

func TestCatalogReopen(t *testing.T) {
	name := "test.data" + util.RandomString(5)
	defer os.RemoveAll(name)

	c, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("shop", people()); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	tbl, ok, err := c.Get("shop", "people")
	if err != nil || !ok {
		t.Fatalf("table not found after reopen: %v", err)
	}
	if tbl.Strategy != doctable.ScanFull || len(tbl.Columns) != 3 {
		t.Errorf("unexpected table %+v", tbl)
	}
	if col := tbl.Columns[2]; col.Name != "address.city" || col.Type != doctable.TypeVarchar || col.DisplaySize != 12 {
		t.Errorf("unexpected column %+v", col)
	}
	if _, ok, _ := c.Get("other", "people"); ok {
		t.Error("tables leaked across databases")
	}
}

func TestCatalogListAndDelete(t *testing.T) {
	name := "test.data" + util.RandomString(5)
	defer os.RemoveAll(name)
	c, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	orders := &doctable.Table{Name: "orders", Columns: []doctable.Column{{Name: "total", Type: doctable.TypeDecimal}}}
	if err := c.PutAll("shop", []*doctable.Table{people(), orders}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("shop2", orders); err != nil {
		t.Fatal(err)
	}
	tables, err := c.List("shop")
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[0].Name != "orders" || tables[1].Name != "people" {
		t.Errorf("unexpected listing %v", tables)
	}

	if err := c.Delete("shop", "orders"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("shop", "orders"); ok {
		t.Error("deleted table still present")
	}
	if err := c.DeleteDatabase("shop"); err != nil {
		t.Fatal(err)
	}
	if tables, _ := c.List("shop"); len(tables) != 0 {
		t.Errorf("database not dropped: %v", tables)
	}
	if tables, _ := c.List("shop2"); len(tables) != 1 {
		t.Errorf("other database affected: %v", tables)
	}
}
