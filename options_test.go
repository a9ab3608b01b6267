package doctable_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/bmeg/doctable"
)

func TestParseScanStrategyFallback(t *testing.T) {
	s, err := doctable.ParseScanStrategy("deep")
	if s != doctable.ScanFast {
		t.Errorf("expected fallback to fast, got %s", s)
	}
	if !errors.Is(err, doctable.ErrUnrecognizedScanStrategy) {
		t.Errorf("expected ErrUnrecognizedScanStrategy, got %v", err)
	}

	s, err = doctable.ParseScanStrategy("full")
	if err != nil || s != doctable.ScanFull {
		t.Errorf("unexpected %s %v", s, err)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := doctable.ParseOptions(url.Values{"Scan": {"idx"}, "expand": {"true"}, "sort": {"TRUE"}})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Scan != doctable.ScanIndex || !opts.Expand || !opts.SortFields {
		t.Errorf("unexpected options %+v", opts)
	}

	opts, err = doctable.ParseOptions(url.Values{"scan": {"bogus"}, "expand": {"maybe"}})
	if err == nil {
		t.Error("expected diagnostics")
	}
	if opts.Scan != doctable.ScanFast || opts.Expand {
		t.Errorf("bad values should fall back to defaults, got %+v", opts)
	}
}

func TestStripOptions(t *testing.T) {
	uri, opts, err := doctable.StripOptions("mongodb://h1:27017,h2:27018/shop?replicaSet=rs0&scan=full&expand=true&w=majority")
	if err != nil {
		t.Fatal(err)
	}
	if uri != "mongodb://h1:27017,h2:27018/shop?replicaSet=rs0&w=majority" {
		t.Errorf("unexpected uri %s", uri)
	}
	if opts.Scan != doctable.ScanFull || !opts.Expand || opts.SortFields {
		t.Errorf("unexpected options %+v", opts)
	}

	uri, _, _ = doctable.StripOptions("mongodb://localhost/shop?sort=true")
	if uri != "mongodb://localhost/shop" {
		t.Errorf("unexpected uri %s", uri)
	}
}
