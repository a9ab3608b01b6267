// Package pebblebulk wraps a pebble database with batched writes and
// copying iterators.
package pebblebulk

import (
	"errors"
	"io"
	"sync"

	"github.com/bmeg/grip/log"
	"github.com/cockroachdb/pebble"
)

type KVStore interface {
	Get(key []byte) ([]byte, io.Closer, error)
	View(func(it *PebbleIterator) error) error
	Set(key, value []byte, opts *pebble.WriteOptions) error
	Delete(key []byte, opts *pebble.WriteOptions) error
	BulkWrite(func(tx *PebbleBulk) error) error
	Close() error
}

type PebbleKV struct {
	Db           *pebble.DB
	InsertCount  uint32
	CompactLimit uint32
	mu           sync.Mutex
}

func NewPebbleKV(path string) (*PebbleKV, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleKV{
		Db:           db,
		CompactLimit: uint32(1000),
	}, nil
}

func (pdb *PebbleKV) Set(id []byte, val []byte, opts *pebble.WriteOptions) error {
	return pdb.Db.Set(id, val, opts)
}

// BulkWrite runs u against a fresh batch. The batch is committed only when
// u succeeds.
func (pdb *PebbleKV) BulkWrite(u func(tx *PebbleBulk) error) error {
	batch := pdb.Db.NewBatch()
	ptx := &PebbleBulk{Db: pdb.Db, Batch: batch}
	defer batch.Close()
	if err := u(ptx); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}

	pdb.mu.Lock()
	defer pdb.mu.Unlock()
	pdb.InsertCount += ptx.totalInserts
	if pdb.InsertCount > pdb.CompactLimit && ptx.Lowest != nil {
		log.Debugf("Running pebble compact %d > %d", pdb.InsertCount, pdb.CompactLimit)
		if err := pdb.Db.Compact(ptx.Lowest, append(copyBytes(ptx.Highest), 0xFF), true); err != nil {
			log.Errorf("Error compacting pebble: %s", err)
		}
		pdb.InsertCount = 0
	}
	return nil
}

func (pdb *PebbleKV) View(u func(it *PebbleIterator) error) error {
	it, err := pdb.Db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	pit := &PebbleIterator{db: pdb.Db, iter: it, forward: true}
	defer it.Close()
	return u(pit)
}

func (pdb *PebbleKV) Close() error {
	return pdb.Db.Close()
}

func (pdb *PebbleKV) Delete(key []byte, opts *pebble.WriteOptions) error {
	return pdb.Db.Delete(key, opts)
}

func (pdb *PebbleKV) Get(key []byte) ([]byte, io.Closer, error) {
	return pdb.Db.Get(key)
}

// GetCopy returns a copy of the value stored at key; found is false when
// the key is absent.
func (pdb *PebbleKV) GetCopy(key []byte) ([]byte, bool, error) {
	val, closer, err := pdb.Db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return copyBytes(val), true, nil
}

// DeletePrefix removes every key starting with prefix.
func (pdb *PebbleKV) DeletePrefix(prefix []byte) error {
	return pdb.Db.DeleteRange(prefix, prefixEnd(prefix), pebble.Sync)
}

// prefixEnd is the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := copyBytes(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
