package main

import (
	"github.com/spf13/cobra"

	"go-metadata-extractor/internal/api"
)

var (
	serveAddr      string
	serveOutputDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API with Swagger UI under /swagger/",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, logger, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		db := dbPath
		if db == "" {
			db = "extractor.db"
		}
		return api.Serve(ctx, api.ServerConfig{
			Addr:      serveAddr,
			DBPath:    db,
			OutputDir: serveOutputDir,
			Color:     logFormat == "console",
		}, logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveOutputDir, "output-dir", "outputs", "Base directory for relative run outputs")
	rootCmd.AddCommand(serveCmd)
}
