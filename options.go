package doctable

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bmeg/grip/log"
	multierror "github.com/hashicorp/go-multierror"
)

// ScanStrategy selects how much of a collection is sampled to infer its columns.
type ScanStrategy string

const (
	ScanFast   ScanStrategy = "fast"
	ScanMedium ScanStrategy = "medium"
	ScanFull   ScanStrategy = "full"
	ScanIndex  ScanStrategy = "idx"
)

const (
	fastSampleSize   = 100
	mediumSampleSize = 1000
)

// SampleSize is the number of documents read by the strategy. Zero means
// the whole collection. For ScanIndex it is the count read from each end
// of the index.
func (s ScanStrategy) SampleSize() int64 {
	switch s {
	case ScanMedium:
		return mediumSampleSize
	case ScanFull:
		return 0
	}
	return fastSampleSize
}

// ParseScanStrategy resolves a strategy token. Unknown tokens resolve to
// ScanFast and the returned error wraps ErrUnrecognizedScanStrategy; the
// strategy is usable either way.
func ParseScanStrategy(token string) (ScanStrategy, error) {
	switch s := ScanStrategy(strings.ToLower(strings.TrimSpace(token))); s {
	case ScanFast, ScanMedium, ScanFull, ScanIndex:
		return s, nil
	}
	return ScanFast, fmt.Errorf("%w: %q, using %s", ErrUnrecognizedScanStrategy, token, ScanFast)
}

// Options configure schema discovery and row materialization.
type Options struct {
	Scan       ScanStrategy
	Expand     bool
	SortFields bool
}

func DefaultOptions() Options {
	return Options{Scan: ScanFast}
}

const (
	optScan   = "scan"
	optExpand = "expand"
	optSort   = "sort"
)

func isOptionKey(key string) bool {
	switch strings.ToLower(key) {
	case optScan, optExpand, optSort:
		return true
	}
	return false
}

// ParseOptions reads the scan, expand and sort keys from params. Keys are
// matched case-insensitively. Bad values fall back to the defaults; the
// returned error lists every diagnostic and is never fatal.
func ParseOptions(params url.Values) (Options, error) {
	opts := DefaultOptions()
	var diag *multierror.Error
	for key, values := range params {
		if len(values) == 0 {
			continue
		}
		value := values[len(values)-1]
		switch strings.ToLower(key) {
		case optScan:
			s, err := ParseScanStrategy(value)
			if err != nil {
				log.Warningf("ScanStrategy: %s", err)
				diag = multierror.Append(diag, err)
			}
			opts.Scan = s
		case optExpand:
			b, err := strconv.ParseBool(value)
			if err != nil {
				diag = multierror.Append(diag, fmt.Errorf("expand=%q: %w", value, err))
			}
			opts.Expand = b
		case optSort:
			b, err := strconv.ParseBool(value)
			if err != nil {
				diag = multierror.Append(diag, fmt.Errorf("sort=%q: %w", value, err))
			}
			opts.SortFields = b
		}
	}
	log.Debugf("ScanStrategy=%s expand=%t sort=%t", opts.Scan, opts.Expand, opts.SortFields)
	return opts, diag.ErrorOrNil()
}

// StripOptions removes the recognized option pairs from a connection URI
// and returns the remaining URI with the parsed options. Only the query
// part is touched; host lists are left as they are.
func StripOptions(uri string) (string, Options, error) {
	idx := strings.Index(uri, "?")
	if idx < 0 {
		return uri, DefaultOptions(), nil
	}
	base, rawQuery := uri[:idx], uri[idx+1:]
	params := url.Values{}
	kept := []string{}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if isOptionKey(key) {
			if v, err := url.QueryUnescape(value); err == nil {
				value = v
			}
			params.Add(key, value)
			continue
		}
		kept = append(kept, pair)
	}
	opts, err := ParseOptions(params)
	if len(kept) == 0 {
		return base, opts, err
	}
	return base + "?" + strings.Join(kept, "&"), opts, err
}
