// Package scan discovers the column layout of a collection by sampling its
// documents.
package scan

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/flatten"
	"github.com/bmeg/grip/log"
	multierror "github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/exp/slices"
)

type Scanner struct {
	Store   doctable.Store
	Options doctable.Options
}

func New(store doctable.Store, opts doctable.Options) *Scanner {
	return &Scanner{Store: store, Options: opts}
}

// accumulator collects widened column state in discovery order.
type accumulator struct {
	order   []string
	columns map[string]*doctable.Column
}

func newAccumulator() *accumulator {
	return &accumulator{columns: map[string]*doctable.Column{}}
}

func (a *accumulator) observe(path string, v doctable.Value) {
	if v.IsNull() {
		return
	}
	col, ok := a.columns[path]
	if !ok {
		col = &doctable.Column{Name: path, Type: doctable.TypeNull, DisplaySize: utf8.RuneCountInString(path)}
		a.columns[path] = col
		a.order = append(a.order, path)
	}
	col.Type = doctable.Widen(col.Type, doctable.TypeOf(v))
	if n := utf8.RuneCountInString(v.String()); n > col.DisplaySize {
		col.DisplaySize = n
	}
}

func (a *accumulator) table(name string, strategy doctable.ScanStrategy, sorted bool) *doctable.Table {
	names := append([]string(nil), a.order...)
	if sorted {
		slices.Sort(names)
	}
	t := &doctable.Table{Name: name, Strategy: strategy, Columns: make([]doctable.Column, 0, len(names))}
	for _, n := range names {
		t.Columns = append(t.Columns, *a.columns[n])
	}
	return t
}

// Scan samples collection according to the configured strategy and returns
// the inferred table. Paths that never carry a non-null value are left out.
func (s *Scanner) Scan(ctx context.Context, collection string) (*doctable.Table, error) {
	strategy := s.Options.Scan
	if strategy == "" {
		strategy = doctable.ScanFast
	}
	acc := newAccumulator()

	var queries []*doctable.NativeQuery
	switch strategy {
	case doctable.ScanFast, doctable.ScanMedium, doctable.ScanFull:
	case doctable.ScanIndex:
		q, err := s.indexQueries(ctx, collection)
		if err != nil {
			return nil, err
		}
		queries = q
	default:
		log.Warningf("ScanStrategy: %s", fmt.Errorf("%w: %q, using %s", doctable.ErrUnrecognizedScanStrategy, strategy, doctable.ScanFast))
		strategy = doctable.ScanFast
	}
	if queries == nil {
		queries = append(queries, &doctable.NativeQuery{Collection: collection, Limit: strategy.SampleSize()})
	}

	sampled := 0
	for _, q := range queries {
		n, err := s.sample(ctx, q, acc)
		sampled += n
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", collection, err)
		}
	}
	t := acc.table(collection, strategy, s.Options.SortFields)
	log.Debugf("Scanned %d documents of '%s' (%s): %d columns", sampled, collection, strategy, len(t.Columns))
	return t, nil
}

// indexQueries builds the idx samples: the first documents in ascending and
// in descending order of the first secondary index key.
func (s *Scanner) indexQueries(ctx context.Context, collection string) ([]*doctable.NativeQuery, error) {
	specs, err := s.Store.ListIndexes(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("listing indexes of %s: %w", collection, err)
	}
	size := doctable.ScanIndex.SampleSize()
	for _, spec := range specs {
		for _, key := range spec.Keys {
			if key.Field == "_id" {
				continue
			}
			log.Debugf("Sampling '%s' along index %s on %s", collection, spec.Name, key.Field)
			return []*doctable.NativeQuery{
				{Collection: collection, Sort: bson.D{{Key: key.Field, Value: 1}}, Limit: size},
				{Collection: collection, Sort: bson.D{{Key: key.Field, Value: -1}}, Limit: size},
			}, nil
		}
	}
	log.Warningf("Collection '%s' has no secondary index, falling back to %s scan", collection, doctable.ScanFast)
	return []*doctable.NativeQuery{{Collection: collection, Limit: doctable.ScanFast.SampleSize()}}, nil
}

func (s *Scanner) sample(ctx context.Context, q *doctable.NativeQuery, acc *accumulator) (int, error) {
	it, err := s.Store.Execute(ctx, q)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := it.Close(ctx); err != nil {
			log.Errorf("Error closing scan cursor on %s: %s", q.Collection, err)
		}
	}()
	n := 0
	for it.Next(ctx) {
		flatten.Walk(it.Document(), s.Options.Expand, acc.observe)
		n++
	}
	if err := it.Err(); err != nil {
		return n, err
	}
	return n, ctx.Err()
}

// ScanAll scans the named collections, or every collection of the store
// when none are named. Collections that fail are missing from the result
// and their errors are returned together.
func (s *Scanner) ScanAll(ctx context.Context, names ...string) (map[string]*doctable.Table, error) {
	if len(names) == 0 {
		var err error
		if names, err = s.Store.ListCollections(ctx); err != nil {
			return nil, err
		}
	}
	out := make(map[string]*doctable.Table, len(names))
	var errs *multierror.Error
	for _, name := range names {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		t, err := s.Scan(ctx, name)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		out[name] = t
	}
	return out, errs.ErrorOrNil()
}
