package pebblebulk

import (
	"bytes"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
)

const (
	maxWriterBuffer = 3 << 30
)

type PebbleBulk struct {
	Db              *pebble.DB
	Batch           *pebble.Batch
	Highest, Lowest []byte
	CurSize         int
	mu              sync.Mutex
	totalInserts    uint32
}

func (pb *PebbleBulk) track(start, end []byte) {
	if pb.Highest == nil || bytes.Compare(end, pb.Highest) > 0 {
		pb.Highest = copyBytes(end)
	}
	if pb.Lowest == nil || bytes.Compare(start, pb.Lowest) < 0 {
		pb.Lowest = copyBytes(start)
	}
}

func (pb *PebbleBulk) flushIfFull() error {
	if pb.CurSize <= maxWriterBuffer {
		return nil
	}
	if err := pb.Batch.Commit(nil); err != nil {
		return err
	}
	pb.Batch.Reset()
	pb.CurSize = 0
	return nil
}

func (pb *PebbleBulk) Set(id []byte, val []byte, opts *pebble.WriteOptions) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.CurSize += len(id) + len(val)
	pb.totalInserts++
	pb.track(id, id)
	if err := pb.Batch.Set(id, val, opts); err != nil {
		return err
	}
	return pb.flushIfFull()
}

func (pb *PebbleBulk) Get(key []byte) ([]byte, io.Closer, error) {
	return pb.Db.Get(key)
}

func (pb *PebbleBulk) Delete(key []byte, opts *pebble.WriteOptions) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.CurSize += len(key)
	pb.track(key, key)
	if err := pb.Batch.Delete(key, opts); err != nil {
		return err
	}
	return pb.flushIfFull()
}

func (pb *PebbleBulk) DeletePrefix(prefix []byte) error {
	return pb.DeleteRange(prefix, prefixEnd(prefix), nil)
}

func (pb *PebbleBulk) DeleteRange(start, end []byte, opts *pebble.WriteOptions) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.track(start, end)
	if err := pb.Batch.DeleteRange(start, end, opts); err != nil {
		return err
	}
	return pb.flushIfFull()
}
