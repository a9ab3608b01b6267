// Package driver opens sessions against document stores and runs SQL
// queries through scan, translation and materialization.
package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/memstore"
	"github.com/bmeg/doctable/mongostore"
	"github.com/bmeg/grip/log"
	"golang.org/x/exp/slices"
)

// Factory connects to a store. uri has already been stripped of the scan,
// expand and sort options. It returns the store and the database name.
type Factory func(ctx context.Context, uri string) (doctable.Store, string, error)

// Registry maps URI schemes onto store factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry knows the mongodb, mongodb+srv and mem schemes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("mongodb", mongoFactory)
	r.Register("mongodb+srv", mongoFactory)
	r.Register("mem", memFactory)
	return r
}

func mongoFactory(ctx context.Context, uri string) (doctable.Store, string, error) {
	s, err := mongostore.Connect(ctx, uri)
	if err != nil {
		return nil, "", err
	}
	return s, s.Database, nil
}

// memFactory opens an empty in-memory store; mem://name names the database.
func memFactory(ctx context.Context, uri string) (doctable.Store, string, error) {
	name := strings.TrimPrefix(uri, "mem://")
	name, _, _ = strings.Cut(name, "?")
	name = strings.Trim(name, "/")
	if name == "" {
		name = mongostore.DefaultDatabase
	}
	return memstore.New(), name, nil
}

func (r *Registry) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = f
}

func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// jdbcPrefix is accepted in front of any registered scheme.
const jdbcPrefix = "jdbc:"

// Open strips doctable's options from uri, connects with the factory for
// its scheme and returns a session. Malformed options are logged and
// replaced by their defaults.
func (r *Registry) Open(ctx context.Context, uri string) (*Session, error) {
	if len(uri) > len(jdbcPrefix) && strings.EqualFold(uri[:len(jdbcPrefix)], jdbcPrefix) {
		uri = uri[len(jdbcPrefix):]
	}
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("%w: connection string %q has no scheme", doctable.ErrNotSupported, uri)
	}
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no store registered for scheme %s", doctable.ErrNotSupported, scheme)
	}
	stripped, opts, err := doctable.StripOptions(uri)
	if err != nil {
		log.Warningf("Connection options: %s", err)
	}
	store, database, err := f(ctx, stripped)
	if err != nil {
		return nil, err
	}
	log.Infof("Opened %s session on database %s", scheme, database)
	return NewSession(store, database, opts), nil
}
