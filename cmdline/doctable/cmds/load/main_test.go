package load

import (
	"testing"

	"github.com/bmeg/doctable"
)

func TestParseLine(t *testing.T) {
	doc, err := ParseLine(`{"_id": {"$numberInt": "7"}, "name": "alice", "address": {"city": "Portland"}}`)
	if err != nil {
		t.Fatal(err)
	}
	keys := doc.Keys()
	if len(keys) != 3 || keys[0] != "_id" || keys[2] != "address" {
		t.Errorf("field order not kept: %v", keys)
	}
	if v, _ := doc.Get("_id"); v.Kind() != doctable.KindInteger {
		t.Errorf("_id decoded as %v", v.Kind())
	}
	if _, err := ParseLine(`{"broken": `); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}
