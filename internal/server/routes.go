package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/server/api"
	"github.com/leadhub/leadhub/internal/server/middleware"
)

type Handlers struct {
	fx.In

	List   *api.ListHandlers
	Access *api.AccessHandlers
	Cron   *api.CronHandlers
	System *api.SystemHandlers
}

func SetupRoutes(server *Server, handlers Handlers) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithLoggingTracing(server.Config.Trace))
	server.Use(middleware.WithMetrics())

	// Setup CORS middleware at server level if enabled
	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	base := server.Group(server.Config.BasePath)

	publicGroup := base.Group("", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		// Health check endpoint - no authentication required
		publicGroup.GET("/health", handlers.System.Health)
	}

	listGroup := base.Group("/api/list", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		listGroup.POST("/summary", handlers.List.Summary)
		listGroup.POST("/store", handlers.List.Store)
		listGroup.POST("/show", handlers.List.Show)
		listGroup.POST("/create", handlers.List.Create)
		listGroup.POST("/export", handlers.List.Export)
	}

	accessGroup := base.Group("/api/access", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		accessGroup.POST("", handlers.Access.Grant)
		accessGroup.POST("/map", handlers.Access.Map)
	}

	cronGroup := base.Group("/api/cron", middleware.WithTimeout(server.Config.CronTimeout))
	{
		cronGroup.POST("/export", handlers.Cron.RunExport)
		cronGroup.POST("/checkpoint", handlers.Cron.RunCheckpoint)
		cronGroup.GET("/export/stats", handlers.Cron.ExportStats)
		cronGroup.GET("/export/dead", handlers.Cron.DeadLetters)
		cronGroup.GET("/export/history", handlers.Cron.ExportHistory)
	}
}
