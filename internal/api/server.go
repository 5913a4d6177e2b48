package api

import (
	"context"

	"go.uber.org/zap"

	"go-metadata-extractor/internal/api/handler"
	"go-metadata-extractor/internal/store"
	"go-metadata-extractor/pkg/router"
)

// ServerConfig describes where the API listens and keeps its state
type ServerConfig struct {
	Addr      string
	DBPath    string
	OutputDir string
	Color     bool
}

// Serve opens the run history, registers the routes and serves until ctx is
// done. In-flight runs are cancelled and awaited before it returns.
func Serve(ctx context.Context, cfg ServerConfig, logger *zap.Logger) error {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	h := handler.New(s, logger).WithOutputDir(cfg.OutputDir)
	r := router.New(router.WithLogger(logger), router.WithColor(cfg.Color))
	RegisterRoutes(r, h)

	err = r.Start(ctx, cfg.Addr)
	h.CancelAll()
	h.Wait()
	logger.Info("Server stopped", zap.String("addr", cfg.Addr))
	return err
}
