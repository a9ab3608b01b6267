package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/catalog"
	"github.com/bmeg/doctable/flatten"
	"github.com/bmeg/doctable/query"
	"github.com/bmeg/doctable/resultset"
	"github.com/bmeg/doctable/scan"
	"github.com/bmeg/grip/log"
	multierror "github.com/hashicorp/go-multierror"
)

// Session runs queries against one database of a store. Scanned tables are
// cached for the life of the session and only change through Rescan.
type Session struct {
	store    doctable.Store
	database string
	opts     doctable.Options
	catalog  *catalog.Catalog

	mu     sync.Mutex
	tables map[string]*doctable.Table
}

func NewSession(store doctable.Store, database string, opts doctable.Options) *Session {
	return &Session{
		store:    store,
		database: database,
		opts:     opts,
		tables:   map[string]*doctable.Table{},
	}
}

// UseCatalog makes the session read scanned tables from c before sampling
// and write new scans to it. The session closes c on Close.
func (s *Session) UseCatalog(c *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
}

func (s *Session) Store() doctable.Store {
	return s.store
}

func (s *Session) Database() string {
	return s.database
}

func (s *Session) Options() doctable.Options {
	return s.opts
}

func (s *Session) ListCollections(ctx context.Context) ([]string, error) {
	return s.store.ListCollections(ctx)
}

// Table returns the layout of collection, scanning it on first use.
func (s *Session) Table(ctx context.Context, collection string) (*doctable.Table, error) {
	if t, ok := s.known(collection); ok {
		return t, nil
	}
	return s.Rescan(ctx, collection)
}

// known returns a cached layout, or one from the catalog scanned with the
// session's strategy.
func (s *Session) known(collection string) (*doctable.Table, bool) {
	s.mu.Lock()
	if t, ok := s.tables[collection]; ok {
		s.mu.Unlock()
		return t, true
	}
	cat := s.catalog
	s.mu.Unlock()

	if cat == nil {
		return nil, false
	}
	t, ok, err := cat.Get(s.database, collection)
	if err != nil {
		log.Errorf("Error reading catalog entry for %s: %s", collection, err)
		return nil, false
	}
	if !ok || t.Strategy != s.opts.Scan {
		return nil, false
	}
	log.Debugf("Loaded table '%s' from catalog", collection)
	return s.remember(t, false), true
}

// Rescan samples collection again and replaces the cached layout.
func (s *Session) Rescan(ctx context.Context, collection string) (*doctable.Table, error) {
	t, err := scan.New(s.store, s.opts).Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	t = s.remember(t, true)
	s.persist(t)
	return t, nil
}

// remember caches t. Unless replace is set an already cached layout wins.
func (s *Session) remember(t *doctable.Table, replace bool) *doctable.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !replace {
		if cached, ok := s.tables[t.Name]; ok {
			return cached
		}
	}
	s.tables[t.Name] = t
	return t
}

func (s *Session) persist(tables ...*doctable.Table) {
	s.mu.Lock()
	cat := s.catalog
	s.mu.Unlock()
	if cat == nil || len(tables) == 0 {
		return
	}
	var err error
	if len(tables) == 1 {
		err = cat.Put(s.database, tables[0])
	} else {
		err = cat.PutAll(s.database, tables)
	}
	if err != nil {
		log.Errorf("Error saving tables to catalog: %s", err)
	}
}

// Tables returns the layout of every collection, in collection order.
// Collections without a known layout are scanned together and saved to the
// catalog in one batch. Collections that fail to scan are left out and
// their errors returned together.
func (s *Session) Tables(ctx context.Context) ([]*doctable.Table, error) {
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	found := make(map[string]*doctable.Table, len(names))
	var missing []string
	for _, name := range names {
		if t, ok := s.known(name); ok {
			found[name] = t
			continue
		}
		missing = append(missing, name)
	}

	var errs *multierror.Error
	if len(missing) > 0 {
		scanned, err := scan.New(s.store, s.opts).ScanAll(ctx, missing...)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		fresh := make([]*doctable.Table, 0, len(scanned))
		for _, name := range missing {
			if t, ok := scanned[name]; ok {
				found[name] = s.remember(t, true)
				fresh = append(fresh, t)
			}
		}
		s.persist(fresh...)
	}

	out := make([]*doctable.Table, 0, len(found))
	for _, name := range names {
		if t, ok := found[name]; ok {
			out = append(out, t)
		}
	}
	return out, errs.ErrorOrNil()
}

// Query parses, binds and runs text in one step.
func (s *Session) Query(ctx context.Context, text string, args ...any) (*resultset.ResultSet, error) {
	ps, err := s.Prepare(text)
	if err != nil {
		return nil, err
	}
	return ps.Query(ctx, args...)
}

func (s *Session) Prepare(text string) (*PreparedStatement, error) {
	stmt, err := query.Prepare(text)
	if err != nil {
		return nil, err
	}
	return &PreparedStatement{session: s, stmt: stmt}, nil
}

// Close closes the store and the catalog.
func (s *Session) Close(ctx context.Context) error {
	var errs *multierror.Error
	if err := s.store.Close(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
		s.catalog = nil
	}
	s.tables = map[string]*doctable.Table{}
	log.Infoln("Session closed")
	return errs.ErrorOrNil()
}

// PreparedStatement is a parsed query bound afresh on every execution.
type PreparedStatement struct {
	session *Session
	stmt    *query.Statement
}

func (ps *PreparedStatement) NumParams() int {
	return ps.stmt.NumParams()
}

// Query binds args and materializes the result. The columns are the
// selected ones in their requested order, or every column of the scanned
// table for SELECT *. A selected column the scan never saw is reported as
// VARCHAR and holds whatever the documents carry at that path.
func (ps *PreparedStatement) Query(ctx context.Context, args ...any) (*resultset.ResultSet, error) {
	nq, err := ps.stmt.Bind(args...)
	if err != nil {
		return nil, err
	}
	s := ps.session
	table, err := s.Table(ctx, nq.Collection)
	if err != nil {
		return nil, err
	}
	cols := layout(table, ps.stmt.Columns())

	rs := resultset.New()
	if err := rs.SetColumns(cols); err != nil {
		return nil, err
	}
	rs.SetTableName(table.Name)

	it, err := s.store.Execute(ctx, nq)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := it.Close(ctx); err != nil {
			log.Errorf("Error closing cursor on %s: %s", nq.Collection, err)
		}
	}()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	norm := flatten.Normalizer{Expand: s.opts.Expand}
	for it.Next(ctx) {
		for _, row := range norm.Rows(it.Document(), names) {
			if err := rs.AddRow(row...); err != nil {
				return nil, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", nq.Collection, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func layout(t *doctable.Table, selected []string) []doctable.Column {
	if selected == nil {
		return append([]doctable.Column(nil), t.Columns...)
	}
	out := make([]doctable.Column, len(selected))
	for i, name := range selected {
		if c, ok := t.Column(name); ok {
			out[i] = c
			continue
		}
		out[i] = doctable.Column{Name: name, Type: doctable.TypeVarchar, DisplaySize: len([]rune(name))}
	}
	return out
}
