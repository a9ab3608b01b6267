// Package flatten turns nested documents into flat rows keyed by dotted paths.
package flatten

import (
	"github.com/bmeg/doctable"
)

// Walk visits every leaf of doc with its dotted path, in document order.
// Sub-documents are descended into. Arrays are leaves unless expand is set,
// in which case each element is visited under the array's path and
// document elements are descended into.
func Walk(doc doctable.Document, expand bool, fn func(path string, v doctable.Value)) {
	walkDoc(doc, "", expand, fn)
}

func walkDoc(doc doctable.Document, prefix string, expand bool, fn func(string, doctable.Value)) {
	for _, f := range doc {
		walkValue(child(prefix, f.Key), f.Value, expand, fn)
	}
}

func walkValue(path string, v doctable.Value, expand bool, fn func(string, doctable.Value)) {
	switch {
	case v.Kind() == doctable.KindDocument:
		walkDoc(v.Document(), path, expand, fn)
	case v.Kind() == doctable.KindArray && expand:
		for _, e := range v.Array() {
			if e.Kind() == doctable.KindDocument {
				walkDoc(e.Document(), path, expand, fn)
			} else {
				fn(path, e)
			}
		}
	default:
		fn(path, v)
	}
}

// Lookup resolves a dotted path through nested documents.
func Lookup(doc doctable.Document, path string) (doctable.Value, bool) {
	cur := doctable.NewDocument(doc)
	for _, key := range Split(path) {
		if cur.Kind() != doctable.KindDocument {
			return doctable.Null(), false
		}
		v, ok := cur.Document().Get(key)
		if !ok {
			return doctable.Null(), false
		}
		cur = v
	}
	return cur, true
}

// Normalizer materializes documents as rows of a fixed column list.
type Normalizer struct {
	Expand bool
}

// combo is one flattened variant of a document: path -> leaf value.
type combo map[string]doctable.Value

// Rows flattens doc into rows ordered by columns. Without Expand exactly
// one row is produced. With Expand every array contributes one row per
// element; several arrays produce their cross product, the leftmost array
// varying slowest. Columns missing from the document are Null and fields
// not listed in columns are dropped. A column naming a sub-document holds
// the whole sub-document.
func (n Normalizer) Rows(doc doctable.Document, columns []string) [][]doctable.Value {
	combos := n.expandDoc(doc, "")
	out := make([][]doctable.Value, 0, len(combos))
	for _, c := range combos {
		row := make([]doctable.Value, len(columns))
		for i, col := range columns {
			if v, ok := c[col]; ok {
				row[i] = v
			} else if v, ok := Lookup(doc, col); ok && v.Kind() == doctable.KindDocument {
				row[i] = v
			}
		}
		out = append(out, row)
	}
	return out
}

func (n Normalizer) expandDoc(doc doctable.Document, prefix string) []combo {
	acc := []combo{{}}
	for _, f := range doc {
		acc = cross(acc, n.expandValue(child(prefix, f.Key), f.Value))
	}
	return acc
}

func (n Normalizer) expandValue(path string, v doctable.Value) []combo {
	switch {
	case v.Kind() == doctable.KindDocument:
		return n.expandDoc(v.Document(), path)
	case v.Kind() == doctable.KindArray && n.Expand:
		elems := v.Array()
		if len(elems) == 0 {
			return []combo{{}}
		}
		out := make([]combo, 0, len(elems))
		for _, e := range elems {
			if e.Kind() == doctable.KindDocument {
				out = append(out, n.expandDoc(e.Document(), path)...)
			} else {
				out = append(out, combo{path: e})
			}
		}
		return out
	}
	return []combo{{path: v}}
}

func cross(left, right []combo) []combo {
	if len(right) == 1 {
		for _, l := range left {
			for k, v := range right[0] {
				l[k] = v
			}
		}
		return left
	}
	out := make([]combo, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			c := make(combo, len(l)+len(r))
			for k, v := range l {
				c[k] = v
			}
			for k, v := range r {
				c[k] = v
			}
			out = append(out, c)
		}
	}
	return out
}
