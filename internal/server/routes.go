package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	accessH "github.com/accessd/accessd/internal/server/handlers/access"
	"github.com/accessd/accessd/internal/server/handlers/events"
	"github.com/accessd/accessd/internal/server/handlers/users"
	"github.com/accessd/accessd/internal/server/middlewares"
	"github.com/accessd/accessd/internal/version"
)

func SetupRoutes(svc *Services) http.Handler {
	r := gin.New()

	accessHandler := accessH.New(svc.Resolver, svc.Store)
	usersHandler := users.New(svc.Store)
	eventsHandler := events.New(svc.Notifier)

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.Identity(svc.Store))
	{
		v1.GET("/me", usersHandler.Me)
		v1.GET("/me/permissions", usersHandler.MePermissions)
		v1.POST("/me/token", usersHandler.RegenerateToken)
		v1.DELETE("/me/token", usersHandler.RevokeToken)

		v1.GET("/access/resolve", accessHandler.Resolve)
		v1.GET("/access/check", accessHandler.Check)

		admin := v1.Group("/")
		admin.Use(middlewares.RequireAdmin(svc.Store))
		{
			admin.GET("/users", usersHandler.List)
			admin.GET("/users/:username", usersHandler.Get)
			admin.GET("/users/:username/permissions", usersHandler.ListPermissions)
			admin.PUT("/users/:username/access", usersHandler.SetDefaultAccess)
			admin.DELETE("/users/:username", usersHandler.Delete)

			admin.POST("/permissions", accessHandler.Assign)
			admin.DELETE("/permissions/:id", accessHandler.Revoke)

			admin.GET("/events", eventsHandler.Stream)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.Detailed())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
