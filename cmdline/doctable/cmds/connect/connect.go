// Package connect opens driver sessions for the command line tools.
package connect

import (
	"context"

	"github.com/bmeg/doctable/catalog"
	"github.com/bmeg/doctable/driver"
	"github.com/spf13/cobra"
)

var catalogPath string

// AddFlags registers the flags shared by commands that open a session.
func AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Directory of a table catalog to reuse scans across runs")
}

// Session opens uri with the default registry and attaches the catalog
// when one was requested.
func Session(ctx context.Context, uri string) (*driver.Session, error) {
	s, err := driver.DefaultRegistry().Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	if catalogPath != "" {
		c, err := catalog.Open(catalogPath)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.UseCatalog(c)
	}
	return s, nil
}
