package main

import (
	"github.com/spf13/cobra"

	"go-metadata-extractor/internal/config"
	"go-metadata-extractor/internal/model"
)

var (
	relatedFlags  runFlags
	doiListFile   string
	relationTypes []string
)

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Find records whose related identifiers point at a list of DOIs",
	Long: `related reads a CSV file with a "doi" column and emits one row for every
related identifier that points at one of those DOIs. Only findable records are
considered unless --state is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := loadOptions(cmd, model.ToolRelated, &relatedFlags, func(o *model.Options) error {
			if cmd.Flags().Changed("doi-list") {
				o.DOIListFile = doiListFile
			}
			if cmd.Flags().Changed("relation-type") {
				o.RelationTypes = config.SplitList(relationTypes)
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
	addRunFlags(relatedCmd, &relatedFlags)
	relatedCmd.Flags().StringVarP(&doiListFile, "doi-list", "d", "", "CSV file with a doi column")
	relatedCmd.Flags().StringSliceVar(&relationTypes, "relation-type", nil, "Only these relation types, e.g. IsCitedBy,References")
	rootCmd.AddCommand(relatedCmd)
}
