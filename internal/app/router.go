package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridematch/internal/domain"
	"ridematch/internal/handler"
	"ridematch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler   *handler.RideHandler
	DriverHandler *handler.DriverHandler
	UserHandler   *handler.UserHandler
	Tokens        middleware.TokenValidator
	RedisClient   redis.Cmdable
	NewRelicApp   *newrelic.Application
	Logger        *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	// Registration is the only unauthenticated API call.
	v1.POST("/users/register", deps.UserHandler.Register)

	api := v1.Group("")
	api.Use(middleware.AuthMiddleware(deps.Tokens))
	api.Use(middleware.NewRelicActorMiddleware())
	api.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	operators := middleware.RequireRole(domain.RoleAdmin, domain.RoleSystem)

	api.GET("/users", operators, deps.UserHandler.GetAll)

	rides := api.Group("/rides")
	{
		rides.POST("", middleware.RequireRole(domain.RoleRider), deps.RideHandler.CreateRide)
		rides.GET("", operators, deps.RideHandler.GetAll)
		rides.GET("/:id", deps.RideHandler.GetRide)
		rides.POST("/:id/transition", deps.RideHandler.Transition)
		rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		rides.POST("/:id/match", deps.RideHandler.Match)
		rides.POST("/:id/assign", operators, deps.RideHandler.Assign)
	}

	drivers := api.Group("/drivers")
	{
		drivers.GET("/nearby", operators, deps.DriverHandler.Nearby)
		drivers.GET("/:id", deps.DriverHandler.GetDriver)
		drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
		drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		drivers.POST("/:id/release", operators, deps.DriverHandler.Release)
	}

	return router
}

// requestLogger logs one structured line per request.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		log.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}
