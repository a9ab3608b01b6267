package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmeg/doctable/cmdline/doctable/cmds/connect"
	"github.com/bmeg/doctable/resultset"
	"github.com/spf13/cobra"
)

var maxWidth = 40

var Cmd = &cobra.Command{
	Use:   "query <uri> <sql> [params...]",
	Short: "Run a SELECT and print the result",
	Long: `Runs a SELECT against a collection. Values for ? placeholders follow
the query; numbers and true/false are bound as such, anything else as text.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect.Session(ctx, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		params := make([]any, 0, len(args)-2)
		for _, a := range args[2:] {
			params = append(params, ParseParam(a))
		}
		rs, err := s.Query(ctx, args[1], params...)
		if err != nil {
			return err
		}
		defer rs.Close()
		return Print(rs)
	},
}

func init() {
	connect.AddFlags(Cmd)
	Cmd.Flags().IntVar(&maxWidth, "max-width", maxWidth, "Truncate cells wider than this")
}

// ParseParam infers the bind type of a command line value.
func ParseParam(a string) any {
	if i, err := strconv.ParseInt(a, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(a, 64); err == nil {
		return f
	}
	switch strings.ToLower(a) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return a
}

// Print writes a result as padded columns sized from its metadata.
func Print(rs *resultset.ResultSet) error {
	md, err := rs.Metadata()
	if err != nil {
		return err
	}
	widths := make([]int, md.ColumnCount())
	header := make([]string, md.ColumnCount())
	for i := range widths {
		w, _ := md.ColumnDisplaySize(i + 1)
		widths[i] = min(w, maxWidth)
		header[i], _ = md.ColumnName(i + 1)
	}
	printRow(header, widths)
	rows := 0
	for {
		ok, err := rs.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		cells := make([]string, len(widths))
		for i := range cells {
			if cells[i], err = rs.String(i + 1); err != nil {
				return err
			}
		}
		printRow(cells, widths)
		rows++
	}
	fmt.Printf("(%d rows)\n", rows)
	return nil
}

func printRow(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		r := []rune(c)
		if len(r) > widths[i] {
			c = string(r[:widths[i]])
		}
		parts[i] = fmt.Sprintf("%-*s", widths[i], c)
	}
	fmt.Println(strings.TrimRight(strings.Join(parts, " | "), " "))
}
