package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-metadata-extractor/docs"
	"go-metadata-extractor/internal/api/handler"
	"go-metadata-extractor/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.PATCH("/api/v1/runs/*/cancel", h.CancelRun)
	r.GET("/api/v1/runs/*", h.GetRun)

	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
