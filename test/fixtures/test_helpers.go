package fixtures

import (
	"context"
	"time"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/memstore"
	"go.mongodb.org/mongo-driver/bson"
)

var People = []bson.D{
	{
		{Key: "_id", Value: int32(1)},
		{Key: "name", Value: "alice"},
		{Key: "age", Value: int32(34)},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Portland"}, {Key: "zip", Value: "97201"}}},
		{Key: "tags", Value: bson.A{"admin", "dev"}},
	},
	{
		{Key: "_id", Value: int32(2)},
		{Key: "name", Value: "bob"},
		{Key: "age", Value: int64(5000000000)},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Seattle"}}},
		{Key: "tags", Value: bson.A{"dev"}},
	},
	{
		{Key: "_id", Value: int32(3)},
		{Key: "name", Value: "chelsie"},
		{Key: "age", Value: 27.5},
		{Key: "nickname", Value: nil},
		{Key: "joined", Value: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
	},
}

// Mixed holds a field whose type changes between documents.
var Mixed = []bson.D{
	{{Key: "_id", Value: int32(1)}, {Key: "v", Value: int32(1)}},
	{{Key: "_id", Value: int32(2)}, {Key: "v", Value: "12345"}},
	{{Key: "_id", Value: int32(3)}, {Key: "v", Value: nil}},
}

func Documents(data []bson.D) []doctable.Document {
	out := make([]doctable.Document, len(data))
	for i, d := range data {
		out[i] = doctable.DocumentFromBSON(d)
	}
	return out
}

// NewStore returns a memory store loaded with the People and Mixed
// collections, with a secondary index on people.age.
func NewStore(ctx context.Context) (*memstore.Store, error) {
	s := memstore.New()
	if _, err := s.InsertMany(ctx, "people", Documents(People)); err != nil {
		return nil, err
	}
	if _, err := s.InsertMany(ctx, "mixed", Documents(Mixed)); err != nil {
		return nil, err
	}
	if err := s.CreateIndex("people", doctable.IndexSpec{Keys: []doctable.IndexKey{{Field: "age", Direction: 1}}}); err != nil {
		return nil, err
	}
	return s, nil
}
