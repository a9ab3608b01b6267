package cmds

import (
	"os"

	"github.com/bmeg/doctable/cmdline/doctable/cmds/describe"
	"github.com/bmeg/doctable/cmdline/doctable/cmds/load"
	"github.com/bmeg/doctable/cmdline/doctable/cmds/query"
	"github.com/bmeg/doctable/cmdline/doctable/cmds/tables"
	"github.com/bmeg/grip/log"

	"github.com/spf13/cobra"
)

var logLevel = "info"

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:           "doctable",
	Short:         "Query document collections as tables",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		conf := log.DefaultLoggerConfig()
		conf.Level = logLevel
		log.ConfigureLogger(conf)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warning, error)")

	RootCmd.AddCommand(tables.Cmd)
	RootCmd.AddCommand(describe.Cmd)
	RootCmd.AddCommand(query.Cmd)
	RootCmd.AddCommand(load.Cmd)

	RootCmd.AddCommand(genBashCompletionCmd)
}

var genBashCompletionCmd = &cobra.Command{
	Use:   "bash",
	Short: "Generate bash completions file",
	Run: func(cmd *cobra.Command, args []string) {
		RootCmd.GenBashCompletion(os.Stdout)
	},
}
