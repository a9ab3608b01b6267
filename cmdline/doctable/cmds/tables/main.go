package tables

import (
	"fmt"

	"github.com/bmeg/doctable/cmdline/doctable/cmds/connect"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "tables <uri>",
	Short: "List tables",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect.Session(ctx, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		tables, err := s.Tables(ctx)
		for _, t := range tables {
			fmt.Printf("%s\t%d columns\n", t.Name, len(t.Columns))
		}
		return err
	},
}

func init() {
	connect.AddFlags(Cmd)
}
