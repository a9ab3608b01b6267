package describe

import (
	"fmt"

	"github.com/bmeg/doctable/cmdline/doctable/cmds/connect"
	"github.com/spf13/cobra"
)

var rescan = false

var Cmd = &cobra.Command{
	Use:   "describe <uri> <collection>",
	Short: "Show the inferred columns of a collection",
	Long:  ``,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect.Session(ctx, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		get := s.Table
		if rescan {
			get = s.Rescan
		}
		t, err := get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s (scan=%s)\n", t.Name, t.Strategy)
		for _, c := range t.Columns {
			fmt.Printf("%s\t%s\t%d\n", c.Name, c.Type, c.DisplaySize)
		}
		return nil
	},
}

func init() {
	connect.AddFlags(Cmd)
	Cmd.Flags().BoolVar(&rescan, "rescan", rescan, "Ignore cached layouts and sample the collection again")
}
