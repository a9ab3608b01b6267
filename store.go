package doctable

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// NativeQuery is a translated request in the store's own query language.
type NativeQuery struct {
	Collection string
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Limit      int64
}

// IndexKey is one key of a secondary index. Direction is 1 or -1.
type IndexKey struct {
	Field     string
	Direction int
}

type IndexSpec struct {
	Name string
	Keys []IndexKey
}

// DocumentIter is a finite, non-restartable sequence of documents.
type DocumentIter interface {
	Next(ctx context.Context) bool
	Document() Document
	Err() error
	Close(ctx context.Context) error
}

// Store is the document store the engine reads from. It is the only
// component that touches the network.
type Store interface {
	Execute(ctx context.Context, q *NativeQuery) (DocumentIter, error)
	ListCollections(ctx context.Context) ([]string, error)
	ListIndexes(ctx context.Context, collection string) ([]IndexSpec, error)
	Close(ctx context.Context) error
}

// Loader is implemented by stores that accept writes.
type Loader interface {
	InsertMany(ctx context.Context, collection string, docs []Document) (int, error)
}
