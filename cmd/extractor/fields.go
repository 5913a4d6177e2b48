package main

import (
	"github.com/spf13/cobra"

	"go-metadata-extractor/internal/config"
	"go-metadata-extractor/internal/model"
)

var (
	fieldsFlags runFlags
	fieldPaths  []string
	rawValues   bool
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Extract the values at one or more dotted field paths",
	Example: `  extractor fields -i dump/ -o subjects.csv -p subjects.subject
  extractor fields -i dump/ -o out/ --organize -p creators.affiliation.name,titles.title`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := loadOptions(cmd, model.ToolFields, &fieldsFlags, func(o *model.Options) error {
			if cmd.Flags().Changed("paths") {
				o.Paths = config.SplitList(fieldPaths)
			}
			if cmd.Flags().Changed("raw") {
				o.RawValues = rawValues
			}
			return nil
		})
		if err != nil {
			return err
		}
		return executeRun(cmd, opts)
	},
}

func init() {
	addRunFlags(fieldsCmd, &fieldsFlags)
	fieldsCmd.Flags().StringSliceVarP(&fieldPaths, "paths", "p", nil, "Comma separated field paths, e.g. creators.name")
	fieldsCmd.Flags().BoolVar(&rawValues, "raw", false, "Emit whole values (objects and arrays as JSON) instead of scalars")
	rootCmd.AddCommand(fieldsCmd)
}
