// Package memstore is an in-memory document store. It evaluates the same
// native queries the mongo store receives and backs tests and offline use.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmeg/doctable"
	"github.com/bmeg/grip/log"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"
)

type collection struct {
	docs    []bson.Raw
	indexes []doctable.IndexSpec
}

// Store keeps every collection as encoded documents so that callers never
// share memory with stored data.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

func (s *Store) coll(name string, create bool) *collection {
	c, ok := s.collections[name]
	if !ok && create {
		c = &collection{indexes: []doctable.IndexSpec{{Name: "_id_", Keys: []doctable.IndexKey{{Field: "_id", Direction: 1}}}}}
		s.collections[name] = c
	}
	return c
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memstore: store is closed")
	}
	return nil
}

// InsertMany stores docs, assigning an ObjectID _id to documents without one.
func (s *Store) InsertMany(ctx context.Context, name string, docs []doctable.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	c := s.coll(name, true)
	count := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		d, err := doc.BSON()
		if err != nil {
			return count, err
		}
		if _, ok := doc.Get("_id"); !ok {
			d = append(bson.D{{Key: "_id", Value: primitive.NewObjectID()}}, d...)
		}
		raw, err := bson.Marshal(d)
		if err != nil {
			return count, err
		}
		c.docs = append(c.docs, raw)
		count++
	}
	log.Debugf("memstore: inserted %d documents into '%s'", count, name)
	return count, nil
}

// CreateIndex records an index specification. Indexes only inform
// ListIndexes; queries always scan.
func (s *Store) CreateIndex(name string, spec doctable.IndexSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	c := s.coll(name, true)
	if spec.Name == "" {
		for i, k := range spec.Keys {
			if i > 0 {
				spec.Name += "_"
			}
			spec.Name += fmt.Sprintf("%s_%d", k.Field, k.Direction)
		}
	}
	c.indexes = append(c.indexes, spec)
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.collections))
	for name := range s.collections {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) ListIndexes(ctx context.Context, name string) ([]doctable.IndexSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	c := s.coll(name, false)
	if c == nil {
		return nil, nil
	}
	return append([]doctable.IndexSpec(nil), c.indexes...), nil
}

// Execute filters, sorts, limits and projects the collection. Unknown
// collections yield an empty iterator, as in the document store.
func (s *Store) Execute(ctx context.Context, q *doctable.NativeQuery) (doctable.DocumentIter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proj, err := parseProjection(q.Projection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	var raws []bson.Raw
	if c := s.coll(q.Collection, false); c != nil {
		raws = append(raws, c.docs...)
	}
	s.mu.RUnlock()

	matched := make([]doctable.Document, 0, len(raws))
	for _, raw := range raws {
		var d bson.D
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		doc := doctable.DocumentFromBSON(d)
		ok, err := Match(doc, q.Filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	if len(q.Sort) > 0 {
		if err := sortDocuments(matched, q.Sort); err != nil {
			return nil, err
		}
	}
	if q.Limit > 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}
	for i, doc := range matched {
		matched[i] = proj.apply(doc)
	}
	return &iterator{docs: matched, pos: -1}, nil
}

func sortDocuments(docs []doctable.Document, spec bson.D) error {
	dirs := make([]int, len(spec))
	for i, e := range spec {
		d, err := cast.ToIntE(e.Value)
		if err != nil || (d != 1 && d != -1) {
			return fmt.Errorf("sort direction for %s must be 1 or -1, got %v", e.Key, e.Value)
		}
		dirs[i] = d
	}
	slices.SortStableFunc(docs, func(a, b doctable.Document) int {
		for i, e := range spec {
			if c := sortCompare(sortKey(a, e.Key), sortKey(b, e.Key)); c != 0 {
				return c * dirs[i]
			}
		}
		return 0
	})
	return nil
}

func sortKey(doc doctable.Document, path string) doctable.Value {
	cands := resolve(doc, path)
	if len(cands) == 0 {
		return doctable.Null()
	}
	return cands[0]
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.collections = map[string]*collection{}
	return nil
}

type iterator struct {
	docs []doctable.Document
	pos  int
}

func (it *iterator) Next(ctx context.Context) bool {
	if ctx.Err() != nil || it.pos >= len(it.docs) {
		return false
	}
	it.pos++
	return it.pos < len(it.docs)
}

func (it *iterator) Document() doctable.Document {
	if it.pos < 0 || it.pos >= len(it.docs) {
		return nil
	}
	return it.docs[it.pos]
}

func (it *iterator) Err() error {
	return nil
}

func (it *iterator) Close(ctx context.Context) error {
	it.docs = nil
	return nil
}
