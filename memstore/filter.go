package memstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/flatten"
	"github.com/bmeg/grip/log"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"
)

// Match evaluates a native filter document against doc. Top level keys are
// field paths, or $and with a list of filters. Field values are either a
// literal (equality) or an operator document.
func Match(doc doctable.Document, filter bson.D) (bool, error) {
	for _, e := range filter {
		if e.Key == "$and" {
			ok, err := matchAnd(doc, e.Value)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(e.Key, "$") {
			return false, fmt.Errorf("%w: filter operator %s", doctable.ErrNotSupported, e.Key)
		}
		cands := resolve(doc, e.Key)
		ops, isOps := operatorDoc(e.Value)
		if !isOps {
			if !matchEq(cands, doctable.FromBSON(e.Value)) {
				return false, nil
			}
			continue
		}
		ok, err := matchOperators(cands, ops)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchAnd(doc doctable.Document, v any) (bool, error) {
	var list []any
	switch t := v.(type) {
	case bson.A:
		list = t
	case []any:
		list = t
	default:
		return false, fmt.Errorf("$and expects a list, got %T", v)
	}
	for _, sub := range list {
		d, ok := sub.(bson.D)
		if !ok {
			return false, fmt.Errorf("$and element is %T, not a document", sub)
		}
		m, err := Match(doc, d)
		if err != nil || !m {
			return false, err
		}
	}
	return true, nil
}

// operatorDoc reports whether v is an operator document like {$gt: 1}.
func operatorDoc(v any) (bson.D, bool) {
	var d bson.D
	switch t := v.(type) {
	case bson.D:
		d = t
	case bson.M:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: t[k]})
		}
	default:
		return nil, false
	}
	if len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func matchOperators(cands []doctable.Value, ops bson.D) (bool, error) {
	var regexOpts string
	for _, e := range ops {
		if e.Key == "$options" {
			regexOpts = cast.ToString(e.Value)
		}
	}
	for _, e := range ops {
		var ok bool
		arg := doctable.FromBSON(e.Value)
		switch e.Key {
		case "$eq":
			ok = matchEq(cands, arg)
		case "$ne":
			ok = !matchEq(cands, arg)
		case "$gt":
			ok = matchCmp(cands, arg, func(c int) bool { return c > 0 })
		case "$gte":
			ok = matchCmp(cands, arg, func(c int) bool { return c >= 0 })
		case "$lt":
			ok = matchCmp(cands, arg, func(c int) bool { return c < 0 })
		case "$lte":
			ok = matchCmp(cands, arg, func(c int) bool { return c <= 0 })
		case "$in":
			if arg.Kind() != doctable.KindArray {
				return false, fmt.Errorf("$in expects an array, got %s", arg.Kind())
			}
			ok = matchIn(cands, arg.Array())
		case "$nin":
			if arg.Kind() != doctable.KindArray {
				return false, fmt.Errorf("$nin expects an array, got %s", arg.Kind())
			}
			ok = !matchIn(cands, arg.Array())
		case "$exists":
			want, err := cast.ToBoolE(e.Value)
			if err != nil {
				return false, fmt.Errorf("$exists: %w", err)
			}
			ok = (len(cands) > 0) == want
		case "$regex":
			re, err := compileRegex(e.Value, regexOpts)
			if err != nil {
				return false, err
			}
			ok = matchRegex(cands, re)
		case "$options":
			continue
		default:
			return false, fmt.Errorf("%w: filter operator %s", doctable.ErrNotSupported, e.Key)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// resolve collects the values a dotted path reaches. Arrays along the path
// are traversed element-wise; an array at the end contributes itself and
// each of its elements.
func resolve(doc doctable.Document, path string) []doctable.Value {
	return resolveParts(doctable.NewDocument(doc), flatten.Split(path))
}

func resolveParts(cur doctable.Value, parts []string) []doctable.Value {
	if len(parts) == 0 {
		if cur.Kind() == doctable.KindArray {
			return append([]doctable.Value{cur}, cur.Array()...)
		}
		return []doctable.Value{cur}
	}
	switch cur.Kind() {
	case doctable.KindDocument:
		v, ok := cur.Document().Get(parts[0])
		if !ok {
			return nil
		}
		return resolveParts(v, parts[1:])
	case doctable.KindArray:
		var out []doctable.Value
		for _, e := range cur.Array() {
			if e.Kind() == doctable.KindDocument {
				out = append(out, resolveParts(e, parts)...)
			}
		}
		return out
	}
	return nil
}

func matchEq(cands []doctable.Value, arg doctable.Value) bool {
	if arg.IsNull() && len(cands) == 0 {
		return true
	}
	for _, c := range cands {
		if equal(c, arg) {
			return true
		}
	}
	return false
}

func matchIn(cands []doctable.Value, list []doctable.Value) bool {
	for _, v := range list {
		if matchEq(cands, v) {
			return true
		}
	}
	return false
}

func matchCmp(cands []doctable.Value, arg doctable.Value, pred func(int) bool) bool {
	for _, c := range cands {
		if r, ok := compare(c, arg); ok && pred(r) {
			return true
		}
	}
	return false
}

func compileRegex(v any, opts string) (*regexp.Regexp, error) {
	pattern := ""
	switch t := v.(type) {
	case primitive.Regex:
		pattern = t.Pattern
		opts += t.Options
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("$regex: %w", err)
		}
		pattern = s
	}
	if strings.Contains(opts, "i") {
		pattern = "(?i)" + pattern
	}
	if strings.Contains(opts, "s") {
		pattern = "(?s)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Debugf("UserError: could not compile $regex %q: %v", pattern, err)
		return nil, fmt.Errorf("$regex: %w", err)
	}
	return re, nil
}

func matchRegex(cands []doctable.Value, re *regexp.Regexp) bool {
	for _, c := range cands {
		if c.Kind() == doctable.KindString && re.MatchString(c.Str()) {
			return true
		}
	}
	return false
}
