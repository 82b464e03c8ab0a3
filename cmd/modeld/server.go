package main

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/modelfab/cmd/modeld/handlers"
	"github.com/opst/modelfab/pkg/echoutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newServer builds the API server. Paths are trailing-slashed.
func newServer(svc handlers.ModelService, gatherer prometheus.Gatherer, loglevel string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	{
		e.GET("/api/models/", handlers.GetModelsHandler(svc))
		e.GET("/api/models/node/", handlers.GetNodeHandler(svc, "selector"))
		e.GET("/api/models/hierarchy/", handlers.GetHierarchyHandler(svc))
		e.GET("/api/models/meta/", handlers.GetMetaHandler(svc))

		e.GET("/api/models/changes/", handlers.GetChangesHandler(svc, "after"))
		e.POST("/api/models/changes/", handlers.PostChangesHandler(svc))

		e.GET("/api/models/deployment/", handlers.GetDeploymentHandler(svc))
		e.POST("/api/models/deployment/", handlers.PostDeploymentHandler(svc))
	}

	e.GET("/metrics/", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return e
}
