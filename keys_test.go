package doctable_test

import (
	"bytes"
	"testing"

	"github.com/bmeg/doctable"
)

func TestTableKeyParse(t *testing.T) {
	key := doctable.NewTableKey("shop", "orders.archive")
	db, coll := doctable.ParseTableKey(key)
	if db != "shop" {
		t.Errorf("%s != shop", db)
	}
	if coll != "orders.archive" {
		t.Errorf("%s != orders.archive", coll)
	}
}

func TestTablePrefix(t *testing.T) {
	key := doctable.NewTableKey("shop", "orders")
	if !bytes.HasPrefix(key, doctable.NewTablePrefix("shop")) {
		t.Errorf("key %q missing database prefix", key)
	}
	if bytes.HasPrefix(key, doctable.NewTablePrefix("sho")) {
		t.Errorf("key %q matched a shorter database name", key)
	}
}
