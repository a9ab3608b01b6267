// Package mongostore implements doctable.Store over a MongoDB deployment.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/bmeg/doctable"
	"github.com/bmeg/grip/log"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"golang.org/x/exp/slices"
)

// DefaultDatabase is used when the connection string names no database.
const DefaultDatabase = "admin"

type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	Database string
}

// DatabaseName returns the database named by uri, or DefaultDatabase.
func DatabaseName(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", err
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}

// Connect opens a client for uri and checks that the deployment answers.
// uri must already be stripped of doctable's own options.
func Connect(ctx context.Context, uri string) (*Store, error) {
	dbName, err := DatabaseName(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Infof("Connected to mongo database %s", dbName)
	return &Store{client: client, db: client.Database(dbName), Database: dbName}, nil
}

func findOptions(q *doctable.NativeQuery) *options.FindOptions {
	opts := options.Find()
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return opts
}

func (s *Store) Execute(ctx context.Context, q *doctable.NativeQuery) (doctable.DocumentIter, error) {
	filter := q.Filter
	if filter == nil {
		filter = bson.D{}
	}
	log.Debugf("mongo find %s filter=%v", q.Collection, filter)
	cur, err := s.db.Collection(q.Collection).Find(ctx, filter, findOptions(q))
	if err != nil {
		return nil, fmt.Errorf("find on %s: %w", q.Collection, err)
	}
	return &cursor{cur: cur}, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) ListIndexes(ctx context.Context, collection string) ([]doctable.IndexSpec, error) {
	specs, err := s.db.Collection(collection).Indexes().ListSpecifications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]doctable.IndexSpec, 0, len(specs))
	for _, spec := range specs {
		keys, err := indexKeys(spec.KeysDocument)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", spec.Name, err)
		}
		out = append(out, doctable.IndexSpec{Name: spec.Name, Keys: keys})
	}
	return out, nil
}

// indexKeys reads an index key document. Special index types such as
// "text" or "hashed" have direction 0.
func indexKeys(raw bson.Raw) ([]doctable.IndexKey, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	keys := make([]doctable.IndexKey, 0, len(d))
	for _, e := range d {
		dir, err := cast.ToIntE(e.Value)
		if err != nil {
			dir = 0
		}
		keys = append(keys, doctable.IndexKey{Field: e.Key, Direction: dir})
	}
	return keys, nil
}

func (s *Store) InsertMany(ctx context.Context, collection string, docs []doctable.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := make([]any, len(docs))
	for i, doc := range docs {
		d, err := doc.BSON()
		if err != nil {
			return 0, err
		}
		batch[i] = d
	}
	res, err := s.db.Collection(collection).InsertMany(ctx, batch)
	if res != nil {
		return len(res.InsertedIDs), err
	}
	return 0, err
}

func (s *Store) Close(ctx context.Context) error {
	log.Infoln("Disconnecting from mongo")
	return s.client.Disconnect(ctx)
}

type cursor struct {
	cur *mongo.Cursor
	doc doctable.Document
	err error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.cur.Next(ctx) {
		return false
	}
	var d bson.D
	if err := c.cur.Decode(&d); err != nil {
		c.err = err
		return false
	}
	c.doc = doctable.DocumentFromBSON(d)
	return true
}

func (c *cursor) Document() doctable.Document {
	return c.doc
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
