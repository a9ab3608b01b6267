package memstore

import (
	"fmt"
	"strings"

	"github.com/bmeg/doctable"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

type projection struct {
	include   bool
	paths     []string
	includeID bool
}

// parseProjection reads {field: 1, ...} or {field: 0, ...}. _id is included
// unless it is explicitly set to 0. Mixing inclusion and exclusion of other
// fields is rejected, as the document store does.
func parseProjection(p bson.D) (*projection, error) {
	if len(p) == 0 {
		return nil, nil
	}
	out := &projection{includeID: true}
	mode := 0
	for _, e := range p {
		on, err := cast.ToBoolE(e.Value)
		if err != nil {
			return nil, fmt.Errorf("projection of %s: %w", e.Key, err)
		}
		if e.Key == "_id" {
			out.includeID = on
			continue
		}
		m := -1
		if on {
			m = 1
		}
		if mode != 0 && mode != m {
			return nil, fmt.Errorf("%w: projection mixes inclusion and exclusion", doctable.ErrNotSupported)
		}
		mode = m
		out.paths = append(out.paths, e.Key)
	}
	out.include = mode >= 0
	if mode == 0 && !out.includeID {
		// only {_id: 0}
		out.include = false
		out.paths = nil
	}
	return out, nil
}

func (p *projection) apply(doc doctable.Document) doctable.Document {
	if p == nil {
		return doc
	}
	var out doctable.Document
	if p.include {
		out = includePaths(doc, p.paths)
		if p.includeID {
			if id, ok := doc.Get("_id"); ok {
				out = append(doctable.Document{{Key: "_id", Value: id}}, out...)
			}
		}
		return out
	}
	out = excludePaths(doc, p.paths)
	if !p.includeID {
		out = excludePaths(out, []string{"_id"})
	}
	return out
}

// subPaths returns the remainders of paths below key and whether key itself
// is listed.
func subPaths(key string, paths []string) ([]string, bool) {
	var subs []string
	whole := false
	for _, p := range paths {
		if p == key {
			whole = true
		} else if strings.HasPrefix(p, key+".") {
			subs = append(subs, p[len(key)+1:])
		}
	}
	return subs, whole
}

func includePaths(doc doctable.Document, paths []string) doctable.Document {
	out := doctable.Document{}
	for _, f := range doc {
		if f.Key == "_id" {
			continue
		}
		subs, whole := subPaths(f.Key, paths)
		switch {
		case whole:
			out = append(out, f)
		case len(subs) > 0:
			if v, ok := includeValue(f.Value, subs); ok {
				out = append(out, doctable.Field{Key: f.Key, Value: v})
			}
		}
	}
	return out
}

func includeValue(v doctable.Value, subs []string) (doctable.Value, bool) {
	switch v.Kind() {
	case doctable.KindDocument:
		return doctable.NewDocument(includePaths(v.Document(), subs)), true
	case doctable.KindArray:
		var elems []doctable.Value
		for _, e := range v.Array() {
			if e.Kind() == doctable.KindDocument {
				elems = append(elems, doctable.NewDocument(includePaths(e.Document(), subs)))
			}
		}
		return doctable.NewArray(elems...), true
	}
	return doctable.Null(), false
}

func excludePaths(doc doctable.Document, paths []string) doctable.Document {
	out := doctable.Document{}
	for _, f := range doc {
		subs, whole := subPaths(f.Key, paths)
		switch {
		case whole:
			continue
		case len(subs) > 0 && f.Value.Kind() == doctable.KindDocument:
			out = append(out, doctable.Field{Key: f.Key, Value: doctable.NewDocument(excludePaths(f.Value.Document(), subs))})
		default:
			out = append(out, f)
		}
	}
	return out
}
