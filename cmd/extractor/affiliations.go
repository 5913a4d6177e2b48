package main

import (
	"github.com/spf13/cobra"

	"go-metadata-extractor/internal/model"
)

var affiliationsFlags runFlags

var affiliationsCmd = &cobra.Command{
	Use:   "affiliations",
	Short: "Extract creator and contributor affiliations, one row per affiliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := loadOptions(cmd, model.ToolAffiliations, &affiliationsFlags, nil)
		if err != nil {
			return err
		}
		return executeRun(cmd, opts)
	},
}

func init() {
	addRunFlags(affiliationsCmd, &affiliationsFlags)
	rootCmd.AddCommand(affiliationsCmd)
}
