package pebblebulk

import (
	"bytes"
	"os"
	"testing"

	"github.com/bmeg/doctable/util"
)

func TestBulkWriteAndScan(t *testing.T) {
	name := "test.data" + util.RandomString(5)
	defer os.RemoveAll(name)

	kv, err := NewPebbleKV(name)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	kv.CompactLimit = 2

	err = kv.BulkWrite(func(tx *PebbleBulk) error {
		for _, k := range []string{"a/1", "a/2", "b/1", "a/3"} {
			if err := tx.Set([]byte(k), []byte("v"+k), nil); err != nil {
				return err
			}
		}
		return tx.Delete([]byte("a/3"), nil)
	})
	if err != nil {
		t.Fatal(err)
	}

	keys := []string{}
	err = kv.View(func(it *PebbleIterator) error {
		return it.ScanPrefix([]byte("a/"), func(k, v []byte) error {
			if !bytes.Equal(v, append([]byte("v"), k...)) {
				t.Errorf("unexpected value %s for %s", v, k)
			}
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "a/1" || keys[1] != "a/2" {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := kv.DeletePrefix([]byte("a/")); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := kv.GetCopy([]byte("a/1")); ok || err != nil {
		t.Errorf("a/1 survived prefix delete: %v %v", ok, err)
	}
	if v, ok, err := kv.GetCopy([]byte("b/1")); !ok || err != nil || string(v) != "vb/1" {
		t.Errorf("b/1 lost: %s %v %v", v, ok, err)
	}
}

func TestFailedBulkWriteIsDiscarded(t *testing.T) {
	name := "test.data" + util.RandomString(5)
	defer os.RemoveAll(name)

	kv, err := NewPebbleKV(name)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	err = kv.BulkWrite(func(tx *PebbleBulk) error {
		tx.Set([]byte("k"), []byte("v"), nil)
		return os.ErrInvalid
	})
	if err != os.ErrInvalid {
		t.Errorf("expected the callback error, got %v", err)
	}
	if _, ok, _ := kv.GetCopy([]byte("k")); ok {
		t.Error("failed batch was committed")
	}
}

func TestPrefixEnd(t *testing.T) {
	if got := prefixEnd([]byte{'a', 0xFF}); !bytes.Equal(got, []byte{'b'}) {
		t.Errorf("prefixEnd = %v", got)
	}
	if got := prefixEnd([]byte("t/")); string(got) != "t0" {
		t.Errorf("prefixEnd = %q", got)
	}
}
