package server

import (
	"net/http"

	"github.com/OFFIS-RIT/ontokit/internal/metrics"
	"github.com/OFFIS-RIT/ontokit/internal/server/middleware"
	"github.com/OFFIS-RIT/ontokit/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Ontology routes
	apiRoutes.GET("/ontology", routes.GetOntologyHandler)
	apiRoutes.GET("/terms/:id", routes.GetTermHandler)
	apiRoutes.GET("/terms/:id/ancestors", routes.GetAncestorsHandler)
	apiRoutes.GET("/terms/:id/descendants", routes.GetDescendantsHandler)

	// Scoring routes
	apiRoutes.GET("/similarity", routes.GetSimilarityHandler)
	apiRoutes.POST("/score", routes.ScoreHandler)
	apiRoutes.POST("/score/batch", routes.ScoreBatchHandler)
	apiRoutes.POST("/correct", routes.CorrectHandler)

	// Sampling routes
	apiRoutes.GET("/sampling/jobs", routes.ListSamplingJobsHandler, middleware.RequirePermission("sampling.view"))
	apiRoutes.POST("/sampling/jobs", routes.CreateSamplingJobHandler, middleware.RequirePermission("sampling.create"))
	apiRoutes.GET("/sampling/jobs/:id", routes.GetSamplingJobHandler, middleware.RequirePermission("sampling.view"))
	apiRoutes.POST("/distributions/reload", routes.ReloadDistributionsHandler, middleware.RequirePermission("distributions.reload"))
}
