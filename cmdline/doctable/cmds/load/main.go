package load

import (
	"fmt"

	"github.com/bmeg/doctable"
	"github.com/bmeg/doctable/cmdline/doctable/cmds/connect"
	"github.com/bmeg/doctable/util"
	"github.com/bmeg/grip/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

var batchSize = 1000

var Cmd = &cobra.Command{
	Use:   "load <uri> <collection> <filepath>",
	Short: "Load documents from a file of JSON lines",
	Long:  `Each line is one document in MongoDB extended JSON. Files ending in .gz are decompressed.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		collection := args[1]
		filePath := args[2]

		s, err := connect.Session(ctx, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)
		loader, ok := s.Store().(doctable.Loader)
		if !ok {
			return fmt.Errorf("%w: store does not accept writes", doctable.ErrNotSupported)
		}

		lineCount, _ := util.LineCounter(filePath)
		lines, err := util.StreamLines(filePath, 10)
		if err != nil {
			return err
		}

		bar := progressbar.Default(int64(lineCount))
		batch := make([]doctable.Document, 0, batchSize)
		total, skipped := 0, 0
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := loader.InsertMany(ctx, collection, batch)
			total += n
			batch = batch[:0]
			return err
		}
		for l := range lines {
			bar.Add(1)
			if l == "" {
				continue
			}
			doc, err := ParseLine(l)
			if err != nil {
				log.Errorf("Skipping line: %s", err)
				skipped++
				continue
			}
			batch = append(batch, doc)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}
		log.Infof("Loaded %d documents into %s (%d skipped)", total, collection, skipped)
		return nil
	},
}

// ParseLine decodes one extended JSON document, keeping field order.
func ParseLine(line string) (doctable.Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON([]byte(line), false, &d); err != nil {
		return nil, err
	}
	return doctable.DocumentFromBSON(d), nil
}

func init() {
	connect.AddFlags(Cmd)
	flags := Cmd.Flags()
	flags.IntVarP(&batchSize, "batch", "b", batchSize, "Documents per insert")
}
