// Package catalog persists scanned table layouts so that a session can
// reuse them across restarts instead of sampling every collection again.
package catalog

import (
	"fmt"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/pebblebulk"
	"github.com/bmeg/grip/log"
	multierror "github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
)

type Catalog struct {
	kv   *pebblebulk.PebbleKV
	Path string
}

func Open(path string) (*Catalog, error) {
	kv, err := pebblebulk.NewPebbleKV(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	log.Debugf("Opened table catalog at %s", path)
	return &Catalog{kv: kv, Path: path}, nil
}

func (c *Catalog) Put(database string, t *doctable.Table) error {
	data, err := bson.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding table %s: %w", t.Name, err)
	}
	return c.kv.Set(doctable.NewTableKey(database, t.Name), data, nil)
}

// PutAll writes every table in one batch. Tables that fail to encode are
// skipped and reported together; the rest are still written.
func (c *Catalog) PutAll(database string, tables []*doctable.Table) error {
	var errs *multierror.Error
	err := c.kv.BulkWrite(func(tx *pebblebulk.PebbleBulk) error {
		for _, t := range tables {
			data, err := bson.Marshal(t)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("encoding table %s: %w", t.Name, err))
				continue
			}
			if err := tx.Set(doctable.NewTableKey(database, t.Name), data, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Get returns the stored table; ok is false when none was stored.
func (c *Catalog) Get(database, collection string) (*doctable.Table, bool, error) {
	data, ok, err := c.kv.GetCopy(doctable.NewTableKey(database, collection))
	if err != nil || !ok {
		return nil, false, err
	}
	t := &doctable.Table{}
	if err := bson.Unmarshal(data, t); err != nil {
		return nil, false, fmt.Errorf("decoding table %s: %w", collection, err)
	}
	return t, true, nil
}

// List returns every stored table of database ordered by collection name.
func (c *Catalog) List(database string) ([]*doctable.Table, error) {
	out := []*doctable.Table{}
	prefix := doctable.NewTablePrefix(database)
	err := c.kv.View(func(it *pebblebulk.PebbleIterator) error {
		return it.ScanPrefix(prefix, func(key, value []byte) error {
			t := &doctable.Table{}
			if err := bson.Unmarshal(value, t); err != nil {
				_, coll := doctable.ParseTableKey(key)
				return fmt.Errorf("decoding table %s: %w", coll, err)
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

func (c *Catalog) Delete(database, collection string) error {
	return c.kv.Delete(doctable.NewTableKey(database, collection), nil)
}

// DeleteDatabase drops every stored table of database.
func (c *Catalog) DeleteDatabase(database string) error {
	return c.kv.DeletePrefix(doctable.NewTablePrefix(database))
}

func (c *Catalog) Close() error {
	log.Debugf("Closing table catalog at %s", c.Path)
	return c.kv.Close()
}
