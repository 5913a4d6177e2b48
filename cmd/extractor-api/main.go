package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"go-metadata-extractor/internal/api"
	"go-metadata-extractor/pkg/logging"
)

func main() {
	logger, err := logging.New(getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "json"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := api.ServerConfig{
		Addr:      getenv("EXTRACTOR_API_ADDR", ":8080"),
		DBPath:    getenv("EXTRACTOR_DB", "extractor.db"),
		OutputDir: getenv("EXTRACTOR_OUTPUT_DIR", "outputs"),
	}
	if err := api.Serve(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
